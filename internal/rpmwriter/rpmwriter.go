// Package rpmwriter packs the enumerated staging files into an
// installable .rpm artifact.
package rpmwriter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/rpmpack"

	"github.com/open-edge-platform/pkg-builder/internal/descriptor"
	"github.com/open-edge-platform/pkg-builder/internal/utils/logger"
)

// Arch is stamped into the artifact. The descriptors this tool
// processes wrap interpreter-level libraries, so noarch is the default.
const Arch = "noarch"

// Write assembles an .rpm from the descriptor metadata and the
// enumerated staging-root-relative file list, and returns the artifact
// path inside outDir.
func Write(d *descriptor.Descriptor, stagingRoot string, files []string, outDir string) (string, error) {
	log := logger.Logger()

	r, err := rpmpack.NewRPM(rpmpack.RPMMetaData{
		Name:        d.Name,
		Version:     d.Version,
		Release:     d.Release,
		Summary:     d.Summary,
		Description: d.Description,
		Licence:     d.License,
		URL:         d.URL,
		Group:       d.Group,
		Arch:        Arch,
	})
	if err != nil {
		return "", fmt.Errorf("initializing rpm for %s: %w", d.Name, err)
	}

	for _, rel := range files {
		full := filepath.Join(stagingRoot, rel)
		info, err := os.Stat(full)
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", full, err)
		}
		body, err := os.ReadFile(full)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", full, err)
		}
		r.AddFile(rpmpack.RPMFile{
			Name:  "/" + filepath.ToSlash(rel),
			Body:  body,
			Mode:  uint(info.Mode().Perm()),
			MTime: uint32(info.ModTime().Unix()),
		})
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory %s: %w", outDir, err)
	}

	artifactPath := filepath.Join(outDir,
		fmt.Sprintf("%s-%s.%s.rpm", d.Name, d.VersionRelease(), Arch))
	out, err := os.Create(artifactPath)
	if err != nil {
		return "", fmt.Errorf("creating artifact %s: %w", artifactPath, err)
	}
	defer out.Close()

	if err := r.Write(out); err != nil {
		return "", fmt.Errorf("writing artifact %s: %w", artifactPath, err)
	}

	log.Infof("wrote artifact %s (%d files)", artifactPath, len(files))
	return artifactPath, nil
}
