// Package archive unpacks compressed tar source archives into an
// isolated build directory.
package archive

import (
	"archive/tar"
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/open-edge-platform/pkg-builder/internal/utils/logger"
)

// Unpack extracts a tar archive into destDir and returns the path of
// the unpacked source tree. When the archive has a single top-level
// directory (the common upstream layout), that directory is returned;
// otherwise destDir itself is.
func Unpack(archivePath string, destDir string) (string, error) {
	log := logger.Logger()

	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("opening archive %s: %w", archivePath, err)
	}
	defer f.Close()

	reader, closer, err := decompressor(archivePath, f)
	if err != nil {
		return "", err
	}
	if closer != nil {
		defer closer()
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("creating build directory %s: %w", destDir, err)
	}

	topLevels := map[string]bool{}
	tr := tar.NewReader(reader)
	count := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading archive %s: %w", archivePath, err)
		}

		name := filepath.Clean(hdr.Name)
		if name == "." {
			continue
		}
		if strings.HasPrefix(name, "..") || filepath.IsAbs(name) {
			return "", fmt.Errorf("archive %s contains unsafe path %q", archivePath, hdr.Name)
		}
		topLevels[strings.SplitN(name, string(os.PathSeparator), 2)[0]] = true

		target := filepath.Join(destDir, name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)&0777|0700); err != nil {
				return "", fmt.Errorf("creating directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(hdr.Mode)&0777); err != nil {
				return "", err
			}
			count++
		case tar.TypeSymlink:
			// The link target is resolved relative to the entry's own
			// directory, so contain it the same way as hdr.Name.
			link := filepath.Join(filepath.Dir(name), hdr.Linkname)
			if filepath.IsAbs(hdr.Linkname) || strings.HasPrefix(link, "..") {
				return "", fmt.Errorf("archive %s contains unsafe link target %q", archivePath, hdr.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return "", fmt.Errorf("creating directory for %s: %w", target, err)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return "", fmt.Errorf("creating symlink %s: %w", target, err)
			}
		default:
			log.Debugf("skipping archive entry %s (type %d)", hdr.Name, hdr.Typeflag)
		}
	}

	log.Infof("unpacked %d files from %s", count, filepath.Base(archivePath))

	if len(topLevels) == 1 {
		for root := range topLevels {
			return filepath.Join(destDir, root), nil
		}
	}
	return destDir, nil
}

// decompressor wraps the raw archive stream based on the file suffix.
func decompressor(path string, f io.Reader) (io.Reader, func(), error) {
	switch {
	case strings.HasSuffix(path, ".tar.gz"), strings.HasSuffix(path, ".tgz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gz, func() { gz.Close() }, nil
	case strings.HasSuffix(path, ".tar.xz"), strings.HasSuffix(path, ".txz"):
		xzr, err := xz.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return xzr, nil, nil
	case strings.HasSuffix(path, ".tar.zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return zr, func() { zr.Close() }, nil
	case strings.HasSuffix(path, ".tar.bz2"), strings.HasSuffix(path, ".tbz2"):
		return bzip2.NewReader(f), nil, nil
	case strings.HasSuffix(path, ".tar"):
		return f, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported archive format: %s", filepath.Base(path))
	}
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", target, err)
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", target, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("writing file %s: %w", target, err)
	}
	return nil
}
