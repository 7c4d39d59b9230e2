// Package classify maps free-text run error messages onto a fixed set of
// error categories via ordered pattern rules. The rule set is data, not
// code: the default lives in categories.yaml and alternate sets load at
// runtime. Classification is total; anything unmatched falls back to
// FallbackKey.
package classify

import (
	_ "embed"
	"fmt"
	"log/slog"
	"regexp"

	"gopkg.in/yaml.v3"

	"tracelens/internal/logging"
)

//go:embed categories.yaml
var defaultCategoriesYAML []byte

// FallbackKey is returned for messages no configured pattern matches.
// It is always a valid category key even though no rule declares it.
const FallbackKey = "unknown_errors"

// Category is one immutable classification rule entry.
type Category struct {
	Key         string   `yaml:"key"`
	Description string   `yaml:"description"`
	Patterns    []string `yaml:"patterns"`
}

type rule struct {
	re  *regexp.Regexp
	key string
}

// Classifier categorizes error messages against a compiled rule set.
// For a fixed rule set it is a pure deterministic function of the
// message string.
type Classifier struct {
	categories []Category
	rules      []rule
	log        *slog.Logger
}

type categoryFile struct {
	Categories []Category `yaml:"categories"`
}

// Default returns a classifier over the embedded rule set. The embedded
// file ships with the binary, so a parse failure is a programming error.
func Default() *Classifier {
	c, err := Load(defaultCategoriesYAML)
	if err != nil {
		panic(fmt.Sprintf("parse embedded categories.yaml: %v", err))
	}
	return c
}

// Load compiles a classifier from YAML rule bytes. Patterns compile once
// here, never in the per-message path.
func Load(data []byte) (*Classifier, error) {
	var f categoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("classify: parse categories: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("classify: rule set defines no categories")
	}

	c := &Classifier{categories: f.Categories, log: logging.New("classifier")}
	for _, cat := range f.Categories {
		if cat.Key == "" {
			return nil, fmt.Errorf("classify: category with empty key")
		}
		for _, p := range cat.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("classify: pattern %q for %q: %w", p, cat.Key, err)
			}
			c.rules = append(c.rules, rule{re: re, key: cat.Key})
		}
	}
	return c, nil
}

// Categorize returns the key of the first matching category, or
// FallbackKey when nothing matches. It never fails.
func (c *Classifier) Categorize(message string) string {
	for _, r := range c.rules {
		if r.re.MatchString(message) {
			return r.key
		}
	}
	return FallbackKey
}

// CategorizeRun classifies a run's error message and logs unmatched
// messages with enough context (project, trace id, full message) for
// later rule-set expansion.
func (c *Classifier) CategorizeRun(project, traceID, message string) string {
	key := c.Categorize(message)
	if key == FallbackKey && message != "" {
		c.log.Info("unclassified error message",
			"project", project, "trace_id", traceID, "message", message)
	}
	return key
}

// Categories returns the configured rule entries in order. The fallback
// category is implicit and not included.
func (c *Classifier) Categories() []Category {
	out := make([]Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// Keys returns every category key the classifier can emit, fallback
// included, in rule order.
func (c *Classifier) Keys() []string {
	seen := make(map[string]bool, len(c.categories)+1)
	keys := make([]string, 0, len(c.categories)+1)
	for _, cat := range c.categories {
		if !seen[cat.Key] {
			seen[cat.Key] = true
			keys = append(keys, cat.Key)
		}
	}
	keys = append(keys, FallbackKey)
	return keys
}
