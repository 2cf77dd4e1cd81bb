package rules

import (
	"fmt"
	"os"

	"github.com/opensource-finance/riskiq/internal/domain"
	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Name  string     `yaml:"name"`
	Rules []ruleItem `yaml:"rules"`
}

// enabled is a pointer so that omitting it keeps the rule on.
type ruleItem struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Group       string `yaml:"group"`
	Expression  string `yaml:"expression"`
	Points      int    `yaml:"points"`
	Reason      string `yaml:"reason"`
	Enabled     *bool  `yaml:"enabled"`
}

// LoadRuleSet reads a YAML rule table from disk.
func LoadRuleSet(path string) (*domain.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file %s: %w", path, err)
	}
	rs, err := ParseRuleSet(data)
	if err != nil {
		return nil, fmt.Errorf("rule file %s: %w", path, err)
	}
	return rs, nil
}

// ParseRuleSet decodes a YAML rule table.
func ParseRuleSet(data []byte) (*domain.RuleSet, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rule set %q has no rules", f.Name)
	}

	rs := &domain.RuleSet{Name: f.Name, Rules: make([]*domain.ScoringRule, 0, len(f.Rules))}
	for i, item := range f.Rules {
		if item.ID == "" || item.Expression == "" {
			return nil, fmt.Errorf("rule %d: id and expression are required", i+1)
		}
		enabled := true
		if item.Enabled != nil {
			enabled = *item.Enabled
		}
		rs.Rules = append(rs.Rules, &domain.ScoringRule{
			ID:          item.ID,
			Description: item.Description,
			Group:       item.Group,
			Expression:  item.Expression,
			Points:      item.Points,
			Reason:      item.Reason,
			Enabled:     enabled,
		})
	}
	return rs, nil
}

// MarshalRuleSet encodes a rule table as YAML.
func MarshalRuleSet(rs *domain.RuleSet) ([]byte, error) {
	return yaml.Marshal(rs)
}

// LoadEngine builds an engine and loads either the rule file at path or,
// when path is empty, the given defaults.
func LoadEngine(newEngine func() (*Engine, error), path string, defaults []*domain.ScoringRule) (*Engine, error) {
	engine, err := newEngine()
	if err != nil {
		return nil, err
	}

	table := defaults
	if path != "" {
		rs, err := LoadRuleSet(path)
		if err != nil {
			return nil, err
		}
		table = rs.Rules
	}

	if err := engine.LoadRules(table); err != nil {
		return nil, err
	}
	return engine, nil
}
