package builder

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-edge-platform/pkg-builder/internal/config"
	"github.com/open-edge-platform/pkg-builder/internal/descriptor"
	"github.com/open-edge-platform/pkg-builder/internal/stage"
)

func checkShellAvailable(t *testing.T) {
	t.Helper()
	for _, shell := range []string{"/bin/bash", "/usr/bin/bash", "/bin/sh"} {
		if _, err := exec.LookPath(shell); err == nil {
			return
		}
	}
	t.Skip("No shell available in test environment")
}

// makeSourceArchive writes a demo-1.0.tar.gz source tree and returns
// its path and sha256 hex digest.
func makeSourceArchive(t *testing.T) (string, string) {
	t.Helper()

	var raw bytes.Buffer
	tw := tar.NewWriter(&raw)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "demo-1.0/", Mode: 0755, Typeflag: tar.TypeDir,
	}))
	content := []byte("bindings = True\n")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "demo-1.0/demo.py", Mode: 0644, Size: int64(len(content)), Typeflag: tar.TypeReg,
	}))
	_, err := tw.Write(content)
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	var gzBuf bytes.Buffer
	gw := gzip.NewWriter(&gzBuf)
	_, err = gw.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	path := filepath.Join(t.TempDir(), "demo-1.0.tar.gz")
	require.NoError(t, os.WriteFile(path, gzBuf.Bytes(), 0644))

	sum := sha256.Sum256(gzBuf.Bytes())
	return path, hex.EncodeToString(sum[:])
}

func testConfig(t *testing.T) *config.GlobalConfig {
	t.Helper()
	base := t.TempDir()
	return &config.GlobalConfig{
		WorkDir:   filepath.Join(base, "builds"),
		CacheDir:  filepath.Join(base, "cache"),
		OutputDir: filepath.Join(base, "artifacts"),
		Workers:   1,
	}
}

func demoDescriptor(checksum string) *descriptor.Descriptor {
	return &descriptor.Descriptor{
		Name:      "demo",
		Version:   "1.0",
		Release:   "1",
		Summary:   "demo library",
		License:   "MIT",
		Prefix:    "/usr",
		SourceURL: "https://example.com/demo-1.0.tar.gz",
		Checksum:  checksum,
		BuildScript: strings.Join([]string{
			"touch build-ran.marker",
		}, "\n"),
		InstallScript: strings.Join([]string{
			"mkdir -p %{buildroot}%{prefix}/lib/demo",
			"cp demo.py %{buildroot}%{prefix}/lib/demo/",
			"cp demo.py %{buildroot}%{prefix}/lib/demo/example.py",
		}, "\n"),
		ExcludePatterns: []string{"%{prefix}/lib/demo/example.py*"},
		FilePatterns:    []string{"%{prefix}/lib/demo/demo.py"},
		Changelog: []descriptor.ChangelogEntry{{
			Date: "Wed Aug 12 2020", Author: "Jane Doe <jane@example.com>",
			VersionRelease: "1.0-1", Notes: []string{"initial package"},
		}},
	}
}

func TestRunBuildsArtifact(t *testing.T) {
	checkShellAvailable(t)

	archivePath, checksum := makeSourceArchive(t)
	b := &Builder{
		Descriptor:  demoDescriptor(checksum),
		Config:      testConfig(t),
		LocalSource: archivePath,
	}

	result, err := b.Run()
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join("usr", "lib", "demo", "demo.py")}, result.Files)

	assert.FileExists(t, result.ArtifactPath)
	assert.Equal(t, "demo-1.0-1.noarch.rpm", filepath.Base(result.ArtifactPath))
	assert.FileExists(t, result.ManifestPath)

	// The excluded example script never reaches the manifest.
	for _, f := range result.Files {
		assert.NotContains(t, f, "example.py")
	}

	// Workspace is removed after a successful build.
	entries, err := os.ReadDir(b.Config.WorkDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunChecksumMismatchAbortsBeforeBuild(t *testing.T) {
	checkShellAvailable(t)

	archivePath, _ := makeSourceArchive(t)
	marker := filepath.Join(t.TempDir(), "build-ran.marker")

	d := demoDescriptor(strings.Repeat("00", 32))
	d.BuildScript = "touch " + marker

	b := &Builder{
		Descriptor:  d,
		Config:      testConfig(t),
		LocalSource: archivePath,
	}

	_, err := b.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
	assert.Contains(t, err.Error(), archivePath)
	assert.NoFileExists(t, marker, "build step must not run after a failed verification")
}

func TestRunFailingBuildScriptIsFatal(t *testing.T) {
	checkShellAvailable(t)

	archivePath, checksum := makeSourceArchive(t)
	d := demoDescriptor(checksum)
	d.BuildScript = "exit 3"

	b := &Builder{
		Descriptor:  d,
		Config:      testConfig(t),
		LocalSource: archivePath,
	}

	_, err := b.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "%build failed")
}

func TestRunMissingFilePatternIsFatal(t *testing.T) {
	checkShellAvailable(t)

	archivePath, checksum := makeSourceArchive(t)
	d := demoDescriptor(checksum)
	d.FilePatterns = []string{"%{prefix}/lib/demo/missing-*.whl"}

	b := &Builder{
		Descriptor:  d,
		Config:      testConfig(t),
		LocalSource: archivePath,
	}

	_, err := b.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matched nothing")
}

func TestRunAllowEmptyPatternPolicy(t *testing.T) {
	checkShellAvailable(t)

	archivePath, checksum := makeSourceArchive(t)
	d := demoDescriptor(checksum)
	d.FilePatterns = append(d.FilePatterns, "%{prefix}/lib/demo/missing-*.whl")

	b := &Builder{
		Descriptor:  d,
		Config:      testConfig(t),
		LocalSource: archivePath,
		Policy:      stage.Policy{AllowEmptyPatterns: true},
	}

	result, err := b.Run()
	require.NoError(t, err)
	assert.Len(t, result.Files, 1)
}

func TestRunSignatureWithoutKeyring(t *testing.T) {
	archivePath, checksum := makeSourceArchive(t)
	d := demoDescriptor(checksum)
	d.Signature = "https://example.com/demo-1.0.tar.gz.asc"

	b := &Builder{
		Descriptor:  d,
		Config:      testConfig(t),
		LocalSource: archivePath,
	}

	_, err := b.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no keyring is configured")
}

func TestRunRejectsInvalidDescriptor(t *testing.T) {
	b := &Builder{
		Descriptor: &descriptor.Descriptor{Name: "demo"},
		Config:     testConfig(t),
	}
	_, err := b.Run()
	require.Error(t, err)
}

func TestRunMissingLocalSource(t *testing.T) {
	_, checksum := makeSourceArchive(t)
	b := &Builder{
		Descriptor:  demoDescriptor(checksum),
		Config:      testConfig(t),
		LocalSource: filepath.Join(t.TempDir(), "nope.tar.gz"),
	}
	_, err := b.Run()
	require.Error(t, err)
}

func TestRunKeepWorkspace(t *testing.T) {
	checkShellAvailable(t)

	archivePath, checksum := makeSourceArchive(t)
	b := &Builder{
		Descriptor:    demoDescriptor(checksum),
		Config:        testConfig(t),
		LocalSource:   archivePath,
		KeepWorkspace: true,
	}

	result, err := b.Run()
	require.NoError(t, err)
	assert.DirExists(t, result.StagingRoot)
}
