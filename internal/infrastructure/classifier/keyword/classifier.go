package keyword

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/ebook-catalog/internal/core/domain"
)

type Classifier struct {
	rules    []Rule
	fallback string
}

func NewClassifier(rules []Rule) *Classifier {
	normalized := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		category := strings.TrimSpace(rule.Category)
		if category == "" {
			continue
		}
		keywords := make([]string, 0, len(rule.Keywords))
		for _, kw := range rule.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				keywords = append(keywords, kw)
			}
		}
		normalized = append(normalized, Rule{
			Category:  category,
			Keywords:  keywords,
			MatchPath: rule.MatchPath,
		})
	}
	return &Classifier{
		rules:    normalized,
		fallback: domain.CategoryOther,
	}
}

func NewDefaultClassifier() *Classifier {
	return NewClassifier(DefaultRules())
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads an ordered rule list from a YAML document of the form
//
//	rules:
//	  - category: IT/프로그래밍
//	    match_path: true
//	    keywords: [python, golang]
func LoadRules(path string) ([]Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "read classifier rules", err)
	}
	var file rulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "parse classifier rules", err)
	}
	if len(file.Rules) == 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "parse classifier rules", fmt.Errorf("no rules in %s", path))
	}
	return file.Rules, nil
}

// Classify matches keywords case-insensitively against "title toc" and, for rules
// with MatchPath, against the file path. It always returns a label.
func (c *Classifier) Classify(title, toc, filepath string) string {
	text := strings.ToLower(title + " " + toc)
	path := strings.ToLower(filepath)

	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) || (rule.MatchPath && strings.Contains(path, kw)) {
				return rule.Category
			}
		}
	}
	return c.fallback
}
