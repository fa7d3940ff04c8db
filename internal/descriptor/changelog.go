package descriptor

import (
	"fmt"
	"strings"
)

// parseChangelog consumes the %changelog body. Each entry opens with
//
//   - <Day> <Month> <DayNum> <Year> <Author ...> <version>-<release>
//
// followed by "- note" bullet lines. Entries are append-only and the
// document keeps them newest first.
func parseChangelog(lines []string) ([]ChangelogEntry, error) {
	var entries []ChangelogEntry
	var current *ChangelogEntry

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if header, ok := strings.CutPrefix(trimmed, "*"); ok {
			entry, err := parseEntryHeader(strings.TrimSpace(header))
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
			current = &entries[len(entries)-1]
			continue
		}

		if current == nil {
			return nil, fmt.Errorf("changelog note before any '*' entry header: %q", trimmed)
		}
		note := strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))
		current.Notes = append(current.Notes, note)
	}

	return entries, nil
}

// parseEntryHeader splits "<date> <author> <version-release>". The date
// is the leading four tokens (weekday, month, day, year), the
// version-release string is the final token, the author is everything
// in between.
func parseEntryHeader(s string) (ChangelogEntry, error) {
	fields := strings.Fields(s)
	if len(fields) < 6 {
		return ChangelogEntry{}, fmt.Errorf("malformed changelog entry header %q", s)
	}

	vr := fields[len(fields)-1]
	if !strings.Contains(vr, "-") {
		return ChangelogEntry{}, fmt.Errorf("changelog entry %q does not end with a version-release string", s)
	}

	return ChangelogEntry{
		Date:           strings.Join(fields[:4], " "),
		Author:         strings.Join(fields[4:len(fields)-1], " "),
		VersionRelease: vr,
	}, nil
}

// RenderChangelog formats entries newest first for terminal output.
func RenderChangelog(entries []ChangelogEntry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "* %s %s %s\n", e.Date, e.Author, e.VersionRelease)
		for _, note := range e.Notes {
			fmt.Fprintf(&b, "- %s\n", note)
		}
	}
	return b.String()
}
