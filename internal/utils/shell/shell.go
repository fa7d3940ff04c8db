package shell

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/open-edge-platform/pkg-builder/internal/utils/logger"
)

// getShell returns the preferred shell, falling back to /bin/sh if bash is not available
func getShell() string {
	shells := []string{"/bin/bash", "/usr/bin/bash", "/bin/sh"}
	for _, shell := range shells {
		if _, err := os.Stat(shell); err == nil {
			return shell
		}
	}
	return "/bin/sh" // fallback
}

// buildEnv merges extra KEY=VALUE pairs over the process environment.
func buildEnv(extra map[string]string) []string {
	env := os.Environ()
	for key, value := range extra {
		env = append(env, key+"="+value)
	}
	return env
}

// ExecCmd executes a single command line in dir and returns its combined output.
func ExecCmd(cmdStr string, dir string, env map[string]string) (string, error) {
	log := logger.Logger()
	log.Debugf("exec: [%s]", cmdStr)

	cmd := exec.Command(getShell(), "-c", cmdStr)
	cmd.Dir = dir
	cmd.Env = buildEnv(env)

	output, err := cmd.CombinedOutput()
	outputStr := string(output)

	if err != nil {
		if outputStr != "" {
			log.Infof(outputStr)
		}
		return outputStr, fmt.Errorf("failed to exec %s: %w", cmdStr, err)
	}
	if outputStr != "" {
		log.Debugf(outputStr)
	}
	return outputStr, nil
}

// ExecScript runs a multi-line script in dir with the given environment,
// streaming stdout and stderr through the logger line by line. The script
// runs under `set -e`, so the first failing command aborts it.
func ExecScript(script string, dir string, env map[string]string) (string, error) {
	log := logger.Logger()

	body := "set -e\n" + script
	cmd := exec.Command(getShell(), "-c", body)
	cmd.Dir = dir
	cmd.Env = buildEnv(env)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start script: %w", err)
	}

	var outputStr string
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			str := scanner.Text()
			if str != "" {
				outputStr += str + "\n"
				log.Infof(str)
			}
		}
		if err := scanner.Err(); err != nil {
			log.Warnf("reading script stdout: %v", err)
		}
	}()

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			str := scanner.Text()
			if str != "" {
				log.Infof(str)
			}
		}
		if err := scanner.Err(); err != nil {
			log.Warnf("reading script stderr: %v", err)
		}
	}()

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return outputStr, fmt.Errorf("script failed: %w", err)
	}
	return outputStr, nil
}

// IsCommandExist checks whether a command is resolvable from PATH.
func IsCommandExist(cmd string) bool {
	output, _ := exec.Command(getShell(), "-c", "command -v "+cmd).Output()
	return strings.TrimSpace(string(output)) != ""
}
