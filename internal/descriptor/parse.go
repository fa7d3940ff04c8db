package descriptor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

const defaultPrefix = "/usr"

// section names accepted after a '%' at the start of a line.
var sectionNames = map[string]bool{
	"description": true,
	"prep":        true,
	"build":       true,
	"install":     true,
	"clean":       true,
	"files":       true,
	"changelog":   true,
}

// ParseFile reads and parses a descriptor from disk.
func ParseFile(path string) (*Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening descriptor %s: %w", path, err)
	}
	defer f.Close()

	d, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing descriptor %s: %w", path, err)
	}
	return d, nil
}

// Parse reads a descriptor document. Header fields come first, then
// %-sections in any order. Header values may reference earlier header
// fields through %{...} macros.
func Parse(r io.Reader) (*Descriptor, error) {
	d := &Descriptor{Prefix: defaultPrefix}

	section := ""
	var body []string
	flush := func() error {
		if section == "" {
			return nil
		}
		text := strings.TrimRight(strings.Join(body, "\n"), "\n")
		switch section {
		case "description":
			d.Description = text
		case "prep":
			d.PrepScript = text
		case "build":
			d.BuildScript = text
		case "install":
			d.InstallScript = text
		case "clean":
			d.CleanScript = text
		case "files":
			if err := d.parseFiles(body); err != nil {
				return err
			}
		case "changelog":
			entries, err := parseChangelog(body)
			if err != nil {
				return err
			}
			d.Changelog = entries
		}
		body = body[:0]
		return nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		// section header
		if strings.HasPrefix(trimmed, "%") {
			name := strings.ToLower(strings.TrimPrefix(trimmed, "%"))
			if sectionNames[name] {
				if err := flush(); err != nil {
					return nil, err
				}
				section = name
				continue
			}
		}

		if section != "" {
			body = append(body, line)
			continue
		}

		// header area
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		key, value, found := strings.Cut(trimmed, ":")
		if !found {
			return nil, fmt.Errorf("line %d: expected 'Field: value', got %q", lineNo, trimmed)
		}
		if err := d.setHeaderField(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading descriptor: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return d, nil
}

// setHeaderField assigns one header key/value pair, expanding macros
// against the fields parsed so far.
func (d *Descriptor) setHeaderField(key, value string) error {
	expanded, err := ExpandMacros(value, d.Macros())
	if err != nil {
		return fmt.Errorf("field %s: %w", key, err)
	}

	switch strings.ToLower(key) {
	case "name":
		d.Name = expanded
	case "version":
		d.Version = expanded
	case "release":
		d.Release = expanded
	case "summary":
		d.Summary = expanded
	case "license":
		d.License = expanded
	case "group":
		d.Group = expanded
	case "url":
		d.URL = expanded
	case "prefix":
		d.Prefix = expanded
	case "source", "source0":
		d.SourceURL = expanded
	case "signature", "signature0":
		d.Signature = expanded
	case "checksum":
		digest := expanded
		if rest, ok := strings.CutPrefix(strings.ToLower(digest), "sha256:"); ok {
			digest = rest
		}
		d.Checksum = digest
	default:
		return fmt.Errorf("unknown header field %q", key)
	}
	return nil
}

// parseFiles consumes the %files body: one inclusion pattern per line,
// with %exclude lines feeding the staging cleanup step.
func (d *Descriptor) parseFiles(lines []string) error {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if pat, ok := strings.CutPrefix(trimmed, "%exclude"); ok {
			pat = strings.TrimSpace(pat)
			if pat == "" {
				return fmt.Errorf("%%exclude without a pattern")
			}
			d.ExcludePatterns = append(d.ExcludePatterns, pat)
			continue
		}
		// %{...} is a macro reference, not a directive.
		if strings.HasPrefix(trimmed, "%") && !strings.HasPrefix(trimmed, "%{") {
			return fmt.Errorf("unknown %%files directive %q", trimmed)
		}
		d.FilePatterns = append(d.FilePatterns, trimmed)
	}
	return nil
}
