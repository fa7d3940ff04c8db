package stage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest records the final set of files collected from the staging
// root, with per-file digests for later auditing.
type Manifest struct {
	Package        string          `yaml:"package"`
	VersionRelease string          `yaml:"versionRelease"`
	GeneratedAt    time.Time       `yaml:"generatedAt"`
	Files          []ManifestEntry `yaml:"files"`
}

// ManifestEntry describes one packaged file.
type ManifestEntry struct {
	Path   string `yaml:"path"`
	Size   int64  `yaml:"size"`
	Mode   uint32 `yaml:"mode"`
	SHA256 string `yaml:"sha256"`
}

// BuildManifest hashes every enumerated file under the staging root.
// The input order is preserved, so an EnumerateFiles result yields a
// deterministic manifest.
func BuildManifest(pkg, versionRelease, stagingRoot string, files []string) (*Manifest, error) {
	m := &Manifest{
		Package:        pkg,
		VersionRelease: versionRelease,
		GeneratedAt:    time.Now().UTC(),
		Files:          make([]ManifestEntry, 0, len(files)),
	}

	for _, rel := range files {
		full := filepath.Join(stagingRoot, rel)
		info, err := os.Stat(full)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", full, err)
		}

		digest, err := hashFile(full)
		if err != nil {
			return nil, err
		}

		m.Files = append(m.Files, ManifestEntry{
			Path:   rel,
			Size:   info.Size(),
			Mode:   uint32(info.Mode().Perm()),
			SHA256: digest,
		})
	}
	return m, nil
}

// Write serializes the manifest as YAML.
func (m *Manifest) Write(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
