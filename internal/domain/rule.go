package domain

// ScoringRule is one CEL condition in a fraud or loan-risk rule table.
type ScoringRule struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Group makes rules mutually exclusive: within a group only the
	// first matching rule in table order contributes. Empty means the
	// rule is its own group.
	Group string `json:"group,omitempty" yaml:"group,omitempty"`

	// CEL expression, must return bool
	Expression string `json:"expression" yaml:"expression"`

	Points int    `json:"points" yaml:"points"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	Enabled bool `json:"enabled" yaml:"enabled"`
}

// RuleSet is a named, ordered rule table.
type RuleSet struct {
	Name  string         `json:"name" yaml:"name"`
	Rules []*ScoringRule `json:"rules" yaml:"rules"`
}

// RuleHit is a rule that matched during evaluation.
type RuleHit struct {
	RuleID string `json:"ruleId"`
	Group  string `json:"group,omitempty"`
	Points int    `json:"points"`
	Reason string `json:"reason,omitempty"`
}

// CatalogEntry maps a clause keyword to a regulatory rule identifier.
type CatalogEntry struct {
	Keyword string `json:"keyword" yaml:"keyword"`
	RuleID  string `json:"ruleId" yaml:"ruleId"`
}

// Rule set names.
const (
	RuleSetFraud = "fraud"
	RuleSetRisk  = "risk"
)
