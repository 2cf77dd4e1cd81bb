// Package rules provides the CEL-Go based scoring engine and the static rule tables.
package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/riskiq/internal/domain"
)

// Engine evaluates an ordered table of boolean CEL rules.
type Engine struct {
	mu       sync.RWMutex
	name     string
	env      *cel.Env
	compiled []*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.ScoringRule
	Program cel.Program
}

// NewEngine creates an engine over the given CEL variable declarations.
func NewEngine(name string, vars ...cel.EnvOption) (*Engine, error) {
	env, err := cel.NewEnv(vars...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Engine{name: name, env: env}, nil
}

// NewFraudEngine declares the applicant variables visible to fraud rules.
func NewFraudEngine() (*Engine, error) {
	return NewEngine(domain.RuleSetFraud,
		cel.Variable("name", cel.StringType),
		cel.Variable("government_id", cel.StringType),
		cel.Variable("mobile", cel.StringType),
		cel.Variable("email", cel.StringType),
		cel.Variable("ip_address", cel.StringType),
		cel.Variable("device_info", cel.StringType),
		cel.Variable("login_frequency", cel.IntType),
		cel.Variable("behavior", cel.StringType),
		cel.Variable("recent_submissions", cel.IntType),
	)
}

// NewRiskEngine declares the borrower variables visible to loan-risk rules.
func NewRiskEngine() (*Engine, error) {
	return NewEngine(domain.RuleSetRisk,
		cel.Variable("age", cel.IntType),
		cel.Variable("income", cel.DoubleType),
		cel.Variable("credit_score", cel.IntType),
		cel.Variable("employment", cel.StringType),
		cel.Variable("existing_loans", cel.StringType),
		cel.Variable("loan_amount", cel.DoubleType),
		cel.Variable("purpose", cel.StringType),
		cel.Variable("social_presence", cel.StringType),
		cel.Variable("ecommerce_activity", cel.StringType),
	)
}

// Name returns the rule set name.
func (e *Engine) Name() string {
	return e.name
}

// ValidateRule compiles a rule without mutating the loaded table.
func (e *Engine) ValidateRule(cfg *domain.ScoringRule) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}
	_, err := e.compileRule(cfg)
	return err
}

// LoadRules compiles the enabled rules and replaces the loaded table.
// Table order is preserved; on error the previous table stays active.
func (e *Engine) LoadRules(configs []*domain.ScoringRule) error {
	compiled := make([]*CompiledRule, 0, len(configs))
	seen := make(map[string]bool, len(configs))

	for _, cfg := range configs {
		if cfg == nil || !cfg.Enabled {
			continue
		}
		if seen[cfg.ID] {
			return fmt.Errorf("duplicate rule id %s in %s rules", cfg.ID, e.name)
		}
		seen[cfg.ID] = true

		c, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		compiled = append(compiled, c)
	}

	e.mu.Lock()
	e.compiled = compiled
	e.mu.Unlock()
	return nil
}

// Evaluate runs the table against the activation and returns matching rules
// in table order. Within a group only the first match is returned.
func (e *Engine) Evaluate(ctx context.Context, activation map[string]any) ([]domain.RuleHit, error) {
	e.mu.RLock()
	rules := e.compiled
	e.mu.RUnlock()

	matchedGroups := make(map[string]bool)
	var hits []domain.RuleHit

	for _, r := range rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		group := r.Config.Group
		if group != "" && matchedGroups[group] {
			continue
		}

		out, _, err := r.Program.Eval(activation)
		if err != nil {
			return nil, fmt.Errorf("rule %s: evaluation error: %w", r.Config.ID, err)
		}
		if out != types.True {
			continue
		}

		if group != "" {
			matchedGroups[group] = true
		}
		hits = append(hits, domain.RuleHit{
			RuleID: r.Config.ID,
			Group:  group,
			Points: r.Config.Points,
			Reason: r.Config.Reason,
		})
	}

	return hits, nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// Rules returns the loaded rule configurations in table order.
func (e *Engine) Rules() []*domain.ScoringRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.ScoringRule, len(e.compiled))
	for i, c := range e.compiled {
		out[i] = c.Config
	}
	return out
}

func (e *Engine) compileRule(cfg *domain.ScoringRule) (*CompiledRule, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("rule id is required")
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{Config: cfg, Program: program}, nil
}

// Score sums the points of the hits.
func Score(hits []domain.RuleHit) int {
	total := 0
	for _, h := range hits {
		total += h.Points
	}
	return total
}
