// Package descriptor parses package build descriptor files: key/value
// header fields followed by named script sections, in the style of an
// RPM spec file.
package descriptor

import (
	"fmt"
	"regexp"
	"strings"
)

// Descriptor holds everything declared by one package build descriptor.
// A descriptor is authored once per upstream version and is immutable
// for the duration of a build.
type Descriptor struct {
	Name        string
	Version     string
	Release     string
	Summary     string
	License     string
	Group       string
	URL         string
	Prefix      string
	SourceURL   string
	Checksum    string // sha256 hex digest of the source archive
	Signature   string // optional URL of a detached OpenPGP signature
	Description string

	PrepScript    string
	BuildScript   string
	InstallScript string
	CleanScript   string

	FilePatterns    []string // inclusion patterns, relative to the staging root
	ExcludePatterns []string // %exclude lines, removed during cleanup

	Changelog []ChangelogEntry
}

// ChangelogEntry is one dated record in the %changelog section,
// newest first.
type ChangelogEntry struct {
	Date           string
	Author         string
	VersionRelease string
	Notes          []string
}

// VersionRelease returns the combined "<version>-<release>" string.
func (d *Descriptor) VersionRelease() string {
	return d.Version + "-" + d.Release
}

var sha256HexRe = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// Validate checks that the descriptor declares everything a build needs.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor is missing Name")
	}
	if d.Version == "" {
		return fmt.Errorf("descriptor %s is missing Version", d.Name)
	}
	if d.Release == "" {
		return fmt.Errorf("descriptor %s is missing Release", d.Name)
	}
	if d.SourceURL == "" {
		return fmt.Errorf("descriptor %s is missing Source", d.Name)
	}
	if d.Checksum == "" {
		return fmt.Errorf("descriptor %s is missing Checksum", d.Name)
	}
	if !sha256HexRe.MatchString(d.Checksum) {
		return fmt.Errorf("descriptor %s: checksum %q is not a sha256 hex digest", d.Name, d.Checksum)
	}
	if len(d.FilePatterns) == 0 {
		return fmt.Errorf("descriptor %s has an empty %%files section", d.Name)
	}
	if len(d.Changelog) > 0 {
		top := d.Changelog[0]
		if top.VersionRelease != d.VersionRelease() {
			return fmt.Errorf("descriptor %s: newest changelog entry is %s, header declares %s",
				d.Name, top.VersionRelease, d.VersionRelease())
		}
	}
	return nil
}

var macroRe = regexp.MustCompile(`%\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandMacros substitutes every %{key} occurrence from the given map.
// Unresolved macros are an error so that a typo never reaches the shell.
func ExpandMacros(s string, macros map[string]string) (string, error) {
	var missing []string
	out := macroRe.ReplaceAllStringFunc(s, func(m string) string {
		key := strings.ToLower(m[2 : len(m)-1])
		if val, ok := macros[key]; ok {
			return val
		}
		missing = append(missing, key)
		return m
	})
	if len(missing) > 0 {
		return out, fmt.Errorf("unresolved macros: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// Macros returns the substitution map derived from the header fields.
func (d *Descriptor) Macros() map[string]string {
	return map[string]string{
		"name":    d.Name,
		"version": d.Version,
		"release": d.Release,
		"prefix":  d.Prefix,
		"url":     d.URL,
	}
}
