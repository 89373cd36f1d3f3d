// Package homepage reads Homepage (gethomepage.dev) bookmarks.yaml files so
// they can be imported as bookmarks.
package homepage

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// MaxImport caps how many bookmarks a single file may carry.
const MaxImport = 500

var (
	ErrEmpty    = errors.New("no bookmarks found in file")
	ErrTooLarge = fmt.Errorf("more than %d bookmarks in file", MaxImport)

	templateVar = regexp.MustCompile(`\{\{[^}]+\}\}`)
)

// stripTemplateVariables removes Homepage template variables from YAML
// Example: {{HOMEPAGE_VAR_ADGUARD_USER}} -> ""
func stripTemplateVariables(data []byte) []byte {
	return templateVar.ReplaceAll(data, []byte(`""`))
}

// Parse decodes a bookmarks.yaml document.
func Parse(data []byte) (BookmarksConfig, error) {
	var config BookmarksConfig
	if err := yaml.Unmarshal(stripTemplateVariables(data), &config); err != nil {
		return nil, fmt.Errorf("failed to parse bookmarks yaml: %w", err)
	}
	return config, nil
}

// Inputs flattens config into bookmark inputs in file order. The bookmark
// name becomes the title, abbr is used when the name is blank. Entries
// without href are skipped, a repeated href keeps its first occurrence.
func Inputs(config BookmarksConfig) ([]domain.Input, error) {
	out := make([]domain.Input, 0)
	seen := make(map[string]bool)

	for _, category := range config {
		for _, categoryName := range sortedKeys(category) {
			for _, bookmarkMap := range category[categoryName] {
				for _, name := range sortedKeys(bookmarkMap) {
					entries := bookmarkMap[name]
					if len(entries) == 0 {
						continue
					}
					entry := entries[0]

					href := strings.TrimSpace(entry.Href)
					if href == "" || seen[href] {
						continue
					}
					seen[href] = true

					title := strings.TrimSpace(name)
					if title == "" {
						title = strings.TrimSpace(entry.Abbr)
					}
					out = append(out, domain.Input{Title: title, URL: href})
				}
			}
		}
	}

	switch {
	case len(out) == 0:
		return nil, ErrEmpty
	case len(out) > MaxImport:
		return nil, ErrTooLarge
	}
	return out, nil
}

// sortedKeys keeps the output stable, YAML mappings here hold a single key
// in practice.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
