// Package exclude implements exclusion sets: classes the call-graph builder
// creates nodes for but never analyzes.
package exclude

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/715d/reflectcg/pkg/types"
)

// Set is an immutable list of patterns matched against type names such as
// "Ljava/awt/Frame". The nil Set excludes nothing.
type Set struct {
	patterns []*regexp.Regexp
}

// New compiles patterns into a set.
func New(patterns ...string) (*Set, error) {
	s := &Set{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile exclusion %q: %w", p, err)
		}
		s.patterns = append(s.patterns, re)
	}
	return s, nil
}

// Parse reads a set from text holding either a YAML list of patterns or one
// pattern per line, with '#' starting a comment line.
func Parse(text string) (*Set, error) {
	var list []string
	if err := yaml.Unmarshal([]byte(text), &list); err == nil && list != nil {
		return New(list...)
	}

	var patterns []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return New(patterns...)
}

// Load parses the exclusions file at path.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read exclusions: %w", err)
	}
	s, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse exclusions %s: %w", path, err)
	}
	return s, nil
}

// IsExcluded reports whether t is excluded and, if so, the first pattern
// that matched.
func (s *Set) IsExcluded(t types.TypeReference) (bool, string) {
	if s == nil {
		return false, ""
	}
	for _, re := range s.patterns {
		if re.MatchString(t.Name()) {
			return true, re.String()
		}
	}
	return false, ""
}

// Merge returns a set holding the patterns of s followed by those of other.
func (s *Set) Merge(other *Set) *Set {
	out := &Set{}
	if s != nil {
		out.patterns = append(out.patterns, s.patterns...)
	}
	if other != nil {
		out.patterns = append(out.patterns, other.patterns...)
	}
	return out
}

// Len returns the number of patterns.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.patterns)
}

// Patterns returns the source text of each pattern.
func (s *Set) Patterns() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.patterns))
	for i, re := range s.patterns {
		out[i] = re.String()
	}
	return out
}
