package config

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys maps each section to its valid keys.
var knownKeys = map[string][]string{
	"auth": {
		"base_domain", "auth_endpoint", "api_endpoint",
		"client_id", "client_secret", "redirect_uri", "token_file",
	},
	"network":   {"connect_timeout", "data_timeout", "user_agent"},
	"logging":   {"log_level", "log_format"},
	"upload":    {"empty_actions"},
	"transfers": {"download_dir", "parallel_downloads"},
}

// knownSectionsList is the sorted list of section names. Sorted for
// deterministic suggestions when two candidates have the same distance.
var knownSectionsList = func() []string {
	sections := make([]string, 0, len(knownKeys))
	for s := range knownKeys {
		sections = append(sections, s)
	}

	sort.Strings(sections)

	return sections
}()

// sectionForKey finds which section a misplaced key belongs to, if any.
func sectionForKey(key string) string {
	for _, section := range knownSectionsList {
		if slices.Contains(knownKeys[section], key) {
			return section
		}
	}

	return ""
}

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	for _, key := range md.Undecoded() {
		errs = append(errs, buildKeyError(key))
	}

	return errors.Join(errs...)
}

// buildKeyError describes one undecoded key. Top-level keys are either an
// unknown section or a known key that belongs inside a section. Returns nil
// for keys inside an unknown section.
func buildKeyError(key toml.Key) error {
	if len(key) == 1 {
		name := key[0]

		if section := sectionForKey(name); section != "" {
			return fmt.Errorf("config key %q must be inside the [%s] section", name, section)
		}

		if suggestion := closestMatch(name, knownSectionsList); suggestion != "" {
			return fmt.Errorf("unknown config section %q, did you mean %q?", name, suggestion)
		}

		return fmt.Errorf("unknown config key %q", name)
	}

	section, field := key[0], strings.Join(key[1:], ".")

	known, ok := knownKeys[section]
	if !ok {
		// The section key itself is undecoded too and already reported.
		return nil
	}

	if suggestion := closestMatch(field, known); suggestion != "" {
		return fmt.Errorf("unknown config key %q in [%s], did you mean %q?", field, section, suggestion)
	}

	return fmt.Errorf("unknown config key %q in [%s]", field, section)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Single-row optimization instead of a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
