// Package builder runs the linear build pipeline for one package
// descriptor: fetch, verify, unpack, build, install, clean, enumerate,
// pack. Every stage failure is fatal to the whole build.
package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/open-edge-platform/pkg-builder/internal/archive"
	"github.com/open-edge-platform/pkg-builder/internal/config"
	"github.com/open-edge-platform/pkg-builder/internal/descriptor"
	"github.com/open-edge-platform/pkg-builder/internal/fetcher"
	"github.com/open-edge-platform/pkg-builder/internal/integrity"
	"github.com/open-edge-platform/pkg-builder/internal/rpmwriter"
	"github.com/open-edge-platform/pkg-builder/internal/stage"
	"github.com/open-edge-platform/pkg-builder/internal/utils/logger"
	"github.com/open-edge-platform/pkg-builder/internal/utils/shell"
)

// Builder executes the pipeline for one descriptor. Each build owns an
// isolated workspace under the configured work directory, so no two
// builds share a staging root.
type Builder struct {
	Descriptor *descriptor.Descriptor
	Config     *config.GlobalConfig

	// LocalSource points at a pre-fetched archive. When set, the
	// download stage is skipped but verification still runs.
	LocalSource string

	// Policy controls %files pattern resolution.
	Policy stage.Policy

	// KeepWorkspace leaves the build workspace on disk for debugging.
	KeepWorkspace bool
}

// Result reports what a successful build produced.
type Result struct {
	ArchivePath  string
	SourceDir    string
	StagingRoot  string
	Files        []string
	ManifestPath string
	ArtifactPath string
}

// Run executes the whole pipeline and returns the build result.
func (b *Builder) Run() (*Result, error) {
	log := logger.Logger()
	d := b.Descriptor

	if err := d.Validate(); err != nil {
		return nil, err
	}
	log.Infof("building %s %s", d.Name, d.VersionRelease())

	archivePath, err := b.resolveSource()
	if err != nil {
		return nil, err
	}

	if err := b.verifySource(archivePath); err != nil {
		return nil, err
	}

	workspace, err := b.createWorkspace()
	if err != nil {
		return nil, err
	}
	if !b.KeepWorkspace {
		defer func() {
			if err := os.RemoveAll(workspace); err != nil {
				log.Warnf("leaving workspace %s behind: %v", workspace, err)
			}
		}()
	}
	stagingRoot := filepath.Join(workspace, "buildroot")
	if err := os.MkdirAll(stagingRoot, 0755); err != nil {
		return nil, fmt.Errorf("creating staging root %s: %w", stagingRoot, err)
	}

	sourceDir, err := archive.Unpack(archivePath, filepath.Join(workspace, "src"))
	if err != nil {
		return nil, err
	}

	macros := b.buildMacros(sourceDir, stagingRoot)
	env := b.buildEnv(sourceDir, stagingRoot)

	if err := b.runScript("prep", d.PrepScript, sourceDir, macros, env); err != nil {
		return nil, err
	}
	if err := b.runScript("build", d.BuildScript, sourceDir, macros, env); err != nil {
		return nil, err
	}

	if strings.TrimSpace(d.InstallScript) == "" {
		return nil, fmt.Errorf("descriptor %s has no %%install script", d.Name)
	}
	if err := b.runScript("install", d.InstallScript, sourceDir, macros, env); err != nil {
		return nil, err
	}

	if err := b.runScript("clean", d.CleanScript, stagingRoot, macros, env); err != nil {
		return nil, err
	}
	excludes, err := expandPatterns(d.ExcludePatterns, macros)
	if err != nil {
		return nil, err
	}
	if err := stage.Cleanup(stagingRoot, excludes); err != nil {
		return nil, err
	}

	patterns, err := expandPatterns(d.FilePatterns, macros)
	if err != nil {
		return nil, err
	}
	files, err := stage.EnumerateFiles(stagingRoot, patterns, b.Policy)
	if err != nil {
		return nil, err
	}
	log.Infof("enumerated %d files for %s", len(files), d.Name)

	outDir, err := b.Config.AbsOutputDir()
	if err != nil {
		return nil, fmt.Errorf("resolving output directory: %w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", outDir, err)
	}

	manifest, err := stage.BuildManifest(d.Name, d.VersionRelease(), stagingRoot, files)
	if err != nil {
		return nil, err
	}
	manifestPath := filepath.Join(outDir,
		fmt.Sprintf("%s-%s.manifest.yml", d.Name, d.VersionRelease()))
	if err := manifest.Write(manifestPath); err != nil {
		return nil, err
	}

	artifactPath, err := rpmwriter.Write(d, stagingRoot, files, outDir)
	if err != nil {
		return nil, err
	}

	log.Infof("build of %s %s complete", d.Name, d.VersionRelease())
	return &Result{
		ArchivePath:  archivePath,
		SourceDir:    sourceDir,
		StagingRoot:  stagingRoot,
		Files:        files,
		ManifestPath: manifestPath,
		ArtifactPath: artifactPath,
	}, nil
}

// resolveSource returns the local archive path, downloading into the
// cache when no pre-fetched archive was supplied.
func (b *Builder) resolveSource() (string, error) {
	if b.LocalSource != "" {
		if _, err := os.Stat(b.LocalSource); err != nil {
			return "", fmt.Errorf("pre-fetched source %s: %w", b.LocalSource, err)
		}
		return b.LocalSource, nil
	}

	cacheDir, err := b.Config.AbsCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving cache directory: %w", err)
	}
	return fetcher.Fetch(b.Descriptor.SourceURL, cacheDir, b.Descriptor.Checksum)
}

// verifySource gates the pipeline on archive authenticity. The
// checksum compare always runs; the signature check runs when the
// descriptor declares one.
func (b *Builder) verifySource(archivePath string) error {
	d := b.Descriptor

	if d.Signature != "" {
		if b.Config.Keyring == "" {
			return fmt.Errorf("descriptor %s declares a signature but no keyring is configured", d.Name)
		}
		cacheDir, err := b.Config.AbsCacheDir()
		if err != nil {
			return fmt.Errorf("resolving cache directory: %w", err)
		}
		sigPath, err := fetcher.Fetch(d.Signature, cacheDir, "")
		if err != nil {
			return err
		}
		if err := integrity.VerifySignature(archivePath, sigPath, b.Config.Keyring); err != nil {
			return err
		}
	}

	return integrity.VerifyChecksum(archivePath, d.Checksum)
}

// createWorkspace makes the per-build directory under the work dir.
func (b *Builder) createWorkspace() (string, error) {
	workDir, err := b.Config.AbsWorkDir()
	if err != nil {
		return "", fmt.Errorf("resolving work directory: %w", err)
	}

	name := fmt.Sprintf("%s-%s-%s", b.Descriptor.Name, b.Descriptor.VersionRelease(),
		uuid.NewString()[:8])
	workspace := filepath.Join(workDir, name)
	if err := os.MkdirAll(workspace, 0755); err != nil {
		return "", fmt.Errorf("creating workspace %s: %w", workspace, err)
	}
	return workspace, nil
}

// buildMacros extends the header macros with build-time paths.
func (b *Builder) buildMacros(sourceDir, stagingRoot string) map[string]string {
	macros := b.Descriptor.Macros()
	macros["sourcedir"] = sourceDir
	macros["buildroot"] = stagingRoot
	return macros
}

// buildEnv mirrors the macros into the script environment.
func (b *Builder) buildEnv(sourceDir, stagingRoot string) map[string]string {
	d := b.Descriptor
	return map[string]string{
		"PKG_NAME":    d.Name,
		"PKG_VERSION": d.Version,
		"PKG_RELEASE": d.Release,
		"PREFIX":      d.Prefix,
		"BUILDROOT":   stagingRoot,
		"SOURCE_DIR":  sourceDir,
	}
}

// runScript expands macros in a section script and executes it in dir.
// An empty script is a no-op.
func (b *Builder) runScript(name, script, dir string, macros map[string]string, env map[string]string) error {
	if strings.TrimSpace(script) == "" {
		return nil
	}

	expanded, err := descriptor.ExpandMacros(script, macros)
	if err != nil {
		return fmt.Errorf("%%%s script: %w", name, err)
	}

	logger.Logger().Infof("running %%%s for %s", name, b.Descriptor.Name)
	if _, err := shell.ExecScript(expanded, dir, env); err != nil {
		return fmt.Errorf("%%%s failed for %s: %w", name, b.Descriptor.Name, err)
	}
	return nil
}

// expandPatterns expands macros in %files patterns and rebases the
// absolute install paths onto the staging root.
func expandPatterns(patterns []string, macros map[string]string) ([]string, error) {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		expanded, err := descriptor.ExpandMacros(p, macros)
		if err != nil {
			return nil, fmt.Errorf("file pattern %q: %w", p, err)
		}
		out = append(out, strings.TrimPrefix(expanded, "/"))
	}
	return out, nil
}
