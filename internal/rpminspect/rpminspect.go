// Package rpminspect reads metadata back out of a built .rpm artifact.
package rpminspect

import (
	"fmt"
	"io"
	"os"

	"github.com/sassoftware/go-rpmutils"
)

// Info is the subset of artifact metadata the inspect command reports.
type Info struct {
	Name    string
	Version string
	Release string
	Arch    string
	Summary string
	License string
	Files   []string
}

// Inspect opens an .rpm file and extracts its header metadata and
// payload file list.
func Inspect(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening artifact %s: %w", path, err)
	}
	defer f.Close()

	rpm, err := rpmutils.ReadRpm(f)
	if err != nil {
		return nil, fmt.Errorf("reading artifact %s: %w", path, err)
	}

	nevra, err := rpm.Header.GetNEVRA()
	if err != nil {
		return nil, fmt.Errorf("reading artifact header %s: %w", path, err)
	}

	info := &Info{
		Name:    nevra.Name,
		Version: nevra.Version,
		Release: nevra.Release,
		Arch:    nevra.Arch,
	}

	// Summary and license are optional in the header.
	if summary, err := rpm.Header.GetString(rpmutils.SUMMARY); err == nil {
		info.Summary = summary
	}
	if license, err := rpm.Header.GetString(rpmutils.LICENSE); err == nil {
		info.License = license
	}

	files, err := rpm.Header.GetFiles()
	if err != nil {
		return nil, fmt.Errorf("reading artifact file list %s: %w", path, err)
	}
	for _, fi := range files {
		info.Files = append(info.Files, fi.Name())
	}

	return info, nil
}

// Render writes a human-readable report of the artifact metadata.
func Render(w io.Writer, info *Info) {
	fmt.Fprintf(w, "Name:    %s\n", info.Name)
	fmt.Fprintf(w, "Version: %s\n", info.Version)
	fmt.Fprintf(w, "Release: %s\n", info.Release)
	fmt.Fprintf(w, "Arch:    %s\n", info.Arch)
	if info.Summary != "" {
		fmt.Fprintf(w, "Summary: %s\n", info.Summary)
	}
	if info.License != "" {
		fmt.Fprintf(w, "License: %s\n", info.License)
	}
	fmt.Fprintf(w, "Files:\n")
	for _, f := range info.Files {
		fmt.Fprintf(w, "  %s\n", f)
	}
}
