package aggregate

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tsops/pulseboard/internal/clickup"
)

// VisibilityRule restricts which projects are shown for matching spaces.
// A space matches when its trimmed name equals SpaceEquals, or its lowercased
// name contains SpaceContains. Within a matching space only projects whose
// name contains one of Keywords (case-insensitive) are kept.
type VisibilityRule struct {
	SpaceEquals   string   `yaml:"space_equals"`
	SpaceContains string   `yaml:"space_contains"`
	Keywords      []string `yaml:"keywords"`
}

type rulesFile struct {
	Rules []VisibilityRule `yaml:"rules"`
}

// DefaultVisibilityRules returns the built-in rule set: the TS Sales space
// only shows its reporting and logistics folders.
func DefaultVisibilityRules() []VisibilityRule {
	return []VisibilityRule{
		{
			SpaceEquals:   "TS Sales Inc.",
			SpaceContains: "ts sales",
			Keywords:      []string{"report", "email request", "accounting", "shipment tracking"},
		},
	}
}

// LoadVisibilityRules reads rules from a YAML file. An empty path returns the
// built-in defaults.
func LoadVisibilityRules(path string) ([]VisibilityRule, error) {
	if path == "" {
		return DefaultVisibilityRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading visibility rules: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing visibility rules: %w", err)
	}
	return f.Rules, nil
}

func (r VisibilityRule) matchesSpace(name string) bool {
	if r.SpaceEquals != "" && strings.TrimSpace(name) == r.SpaceEquals {
		return true
	}
	return r.SpaceContains != "" && strings.Contains(strings.ToLower(name), r.SpaceContains)
}

func (r VisibilityRule) allowsProject(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range r.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// FilterProjects applies the visibility rules. Projects in spaces no rule
// matches pass through untouched. Applied identically in home and detail
// scopes.
func FilterProjects(projects []Project, spaces []clickup.Space, rules []VisibilityRule) []Project {
	names := make(map[string]string, len(spaces))
	for _, s := range spaces {
		names[s.ID] = s.Name
	}

	out := make([]Project, 0, len(projects))
	for _, p := range projects {
		visible := true
		for _, r := range rules {
			if r.matchesSpace(names[p.SpaceID]) {
				visible = r.allowsProject(p.Name)
				break
			}
		}
		if visible {
			out = append(out, p)
		}
	}
	return out
}
