package fsscan

import (
	"bufio"
	"os"
	"path"
	"regexp"
	"strings"
)

// overlay is the fixed set of paths always excluded from a context,
// regardless of .gitignore contents (spec.md §4.1 step 2 "plus a fixed
// overlay of always-excluded paths").
var overlay = []string{".git", ".hg", ".svn"}

// Matcher decides whether a relative path is excluded from a context scan.
// It intentionally only honors a single .gitignore file at the context
// root (spec.md §4.2: "do not respect global ignore or info/exclude"),
// using the same homebrew glob-to-regex translation please's src/fs/glob.go
// uses for its own Ant-style ** patterns — no gitignore-parsing library
// appears anywhere in the example pack, so this is the stdlib-adjacent
// choice closest to the corpus's own precedent (see DESIGN.md).
type Matcher struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	regex   *regexp.Regexp
	dirOnly bool
}

// NewMatcher builds a Matcher for root. An unreadable or absent .gitignore
// is non-fatal: the overlay-only exclusion list is used instead
// (spec.md §4.1 "Failure semantics").
func NewMatcher(root string) *Matcher {
	m := &Matcher{}
	for _, p := range overlay {
		m.patterns = append(m.patterns, compileIgnoreLine(p))
	}
	f, err := os.Open(path.Join(root, ".gitignore"))
	if err != nil {
		log.Debug("no readable .gitignore in %s, using overlay exclusions only: %s", root, err)
		return m
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m.patterns = append(m.patterns, compileIgnoreLine(line))
	}
	return m
}

func compileIgnoreLine(line string) ignorePattern {
	dirOnly := strings.HasSuffix(line, "/")
	line = strings.TrimSuffix(line, "/")
	anchored := strings.HasPrefix(line, "/")
	line = strings.TrimPrefix(line, "/")
	re := ignoreLineToRegex(line, anchored)
	return ignorePattern{regex: regexp.MustCompile(re), dirOnly: dirOnly}
}

// ignoreLineToRegex translates a single gitignore-style pattern into a
// regex, mirroring the escaping order please's fs/glob.go toRegexString
// uses for its own ** expansion.
func ignoreLineToRegex(pattern string, anchored bool) string {
	p := pattern
	p = strings.ReplaceAll(p, "+", `\+`)
	p = strings.ReplaceAll(p, ".", `\.`)
	p = strings.ReplaceAll(p, "?", "[^/]")
	p = strings.ReplaceAll(p, "**/", "\x00")
	p = strings.ReplaceAll(p, "*", "[^/]*")
	p = strings.ReplaceAll(p, "\x00", "(.*/)?")
	if anchored {
		return "^" + p + "(/.*)?$"
	}
	// Unanchored: matches the pattern as any path component, at any depth.
	return "(^|.*/)" + p + "(/.*)?$"
}

// Excluded reports whether relPath (slash-separated, relative to the
// context root) should be omitted from the scan.
func (m *Matcher) Excluded(relPath string, isDir bool) bool {
	for _, p := range m.patterns {
		if p.regex.MatchString(relPath) {
			return true
		}
	}
	return false
}

// Patterns returns the source text of each compiled exclude regex (not the
// original .gitignore lines), overlay entries first and then .gitignore
// entries in file order, for use as the Local source op's
// "local.excludepatterns" attr (spec.md §4.1 step 2).
func (m *Matcher) Patterns() []string {
	out := make([]string, 0, len(m.patterns))
	for _, p := range m.patterns {
		out = append(out, p.regex.String())
	}
	return out
}
