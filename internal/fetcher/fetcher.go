// Package fetcher downloads source artifacts into the local cache.
package fetcher

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/open-edge-platform/pkg-builder/internal/integrity"
	"github.com/open-edge-platform/pkg-builder/internal/utils/logger"
	"github.com/open-edge-platform/pkg-builder/internal/utils/network"
)

const downloadTimeout = 15 * time.Minute

// httpClient is replaceable by tests.
var httpClient = network.NewSecureHTTPClient(downloadTimeout)

// Fetch downloads url into destDir and returns the local file path.
// When expectedChecksum is non-empty and a cached copy already matches
// it, the download is skipped.
func Fetch(url string, destDir string, expectedChecksum string) (string, error) {
	log := logger.Logger()

	name := path.Base(url)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("cannot derive file name from url %s", url)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("creating cache directory %s: %w", destDir, err)
	}
	destPath := filepath.Join(destDir, name)

	if expectedChecksum != "" {
		if _, err := os.Stat(destPath); err == nil {
			if err := integrity.VerifyChecksum(destPath, expectedChecksum); err == nil {
				log.Infof("using cached %s", name)
				return destPath, nil
			}
			log.Warnf("cached %s does not match declared checksum, re-downloading", name)
		}
	}

	log.Infof("downloading %s", url)
	if err := download(url, destPath); err != nil {
		return "", err
	}
	return destPath, nil
}

// Request names one source archive to download and the checksum it
// must match. An empty Checksum skips verification.
type Request struct {
	URL      string
	Checksum string
}

// FetchAll downloads the given sources into destDir using a pool of
// workers, verifying each against its declared checksum. It shows a
// single progress bar tracking files completed vs total. The first
// failure is returned after all workers drain.
func FetchAll(reqs []Request, destDir string, workers int) error {
	if len(reqs) == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(reqs) {
		workers = len(reqs)
	}

	total := len(reqs)
	jobs := make(chan Request, total)
	var wg sync.WaitGroup

	var mu sync.Mutex
	var firstErr error

	bar := progressbar.NewOptions(total,
		progressbar.OptionFullWidth(),
		progressbar.OptionSetDescription("downloading"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range jobs {
				bar.Describe(fmt.Sprintf("downloading %s", path.Base(req.URL)))

				if err := fetchOne(req, destDir); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
				bar.Add(1)
			}
		}()
	}

	for _, req := range reqs {
		jobs <- req
	}
	close(jobs)

	wg.Wait()
	bar.Finish()
	return firstErr
}

func fetchOne(req Request, destDir string) error {
	dest, err := Fetch(req.URL, destDir, req.Checksum)
	if err != nil {
		return err
	}
	if req.Checksum != "" {
		return integrity.VerifyChecksum(dest, req.Checksum)
	}
	return nil
}

func download(url string, destPath string) error {
	resp, err := httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: bad status: %s", url, resp.Status)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("writing %s: %w", destPath, err)
	}
	return nil
}
