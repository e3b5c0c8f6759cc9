// Package manifest reads ordered dependency manifests in the requirements
// format: one entry per line, an optional version constraint, comments and
// blank lines ignored. The manifest is read once and treated as immutable;
// its digest anchors deterministic image tags.
package manifest

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

var operators = []string{"==", ">=", "<=", "~=", "!=", ">", "<"}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)

// Entry is a single declared dependency.
type Entry struct {
	Name       string // canonical package name (lowercased, separator runs collapsed)
	Constraint string // version constraint including its operator, empty when unpinned
	Raw        string // the line as written, extras and markers included
}

// Manifest is an ordered, immutable dependency list.
type Manifest struct {
	Path    string
	Entries []Entry
}

// ParseError reports an unusable manifest line.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("manifest line %d: %s (%q)", e.Line, e.Reason, e.Text)
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest %s: %w", path, err)
	}
	defer f.Close()

	entries, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &Manifest{Path: path, Entries: entries}, nil
}

// Parse reads entries from r, preserving their order. A name repeated with
// the same constraint collapses to one entry so it is installed exactly once;
// a repeat with a different constraint is an error.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	seen := make(map[string]int) // canonical name -> index into entries

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "-") {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: "installer options are not supported"}
		}

		entry, perr := parseLine(line)
		if perr != nil {
			perr.Line = lineNo
			return nil, perr
		}

		if idx, dup := seen[entry.Name]; dup {
			if entries[idx].Constraint == entry.Constraint {
				continue
			}
			return nil, &ParseError{
				Line:   lineNo,
				Text:   line,
				Reason: fmt.Sprintf("conflicting constraint for %s (already %q)", entry.Name, entries[idx].Constraint),
			}
		}
		seen[entry.Name] = len(entries)
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return entries, nil
}

func parseLine(line string) (Entry, *ParseError) {
	raw := line

	// Trailing comments and environment markers do not affect entry identity.
	if i := strings.Index(line, "#"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if i := strings.Index(line, ";"); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}

	name := line
	constraint := ""
	if idx := findOperator(line); idx >= 0 {
		name = strings.TrimSpace(line[:idx])
		constraint = line[idx:]
	}
	// Spacing inside a constraint is not significant.
	constraint = strings.Join(strings.Fields(constraint), "")

	// Extras like package[extra] stay in Raw only.
	if i := strings.Index(name, "["); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}

	if !namePattern.MatchString(name) {
		return Entry{}, &ParseError{Text: raw, Reason: "invalid package name"}
	}
	return Entry{Name: canonicalName(name), Constraint: constraint, Raw: raw}, nil
}

// findOperator returns the position of the earliest constraint operator in
// line, or -1 when the entry is unpinned.
func findOperator(line string) int {
	idx := -1
	for _, op := range operators {
		if j := strings.Index(line, op); j >= 0 && (idx == -1 || j < idx) {
			idx = j
		}
	}
	return idx
}

// canonicalName lowercases a package name and collapses runs of '-', '_' and
// '.' into single hyphens, the normalization installers apply themselves.
func canonicalName(name string) string {
	var b strings.Builder
	lastSep := false
	for _, r := range strings.ToLower(name) {
		if r == '-' || r == '_' || r == '.' {
			if !lastSep {
				b.WriteByte('-')
			}
			lastSep = true
			continue
		}
		b.WriteRune(r)
		lastSep = false
	}
	return strings.Trim(b.String(), "-")
}

// Digest returns the sha256 over the canonical entry lines. Formatting-only
// edits (comments, blank lines, spacing) do not change it; adding, removing,
// reordering or repinning entries does.
func (m *Manifest) Digest() string {
	h := sha256.New()
	for _, e := range m.Entries {
		fmt.Fprintf(h, "%s %s\n", e.Name, e.Constraint)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Empty reports whether the manifest declares no dependencies.
func (m *Manifest) Empty() bool {
	return len(m.Entries) == 0
}

// Names returns the canonical entry names in declaration order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		names[i] = e.Name
	}
	return names
}
