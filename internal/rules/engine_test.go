package rules

import (
	"context"
	"strings"
	"testing"

	"github.com/opensource-finance/riskiq/internal/domain"
)

func fraudActivation(id, mobile, behavior string, logins int) map[string]any {
	return map[string]any{
		"name":               "Test Applicant",
		"government_id":      id,
		"mobile":             mobile,
		"email":              "",
		"ip_address":         "",
		"device_info":        "",
		"login_frequency":    int64(logins),
		"behavior":           behavior,
		"recent_submissions": int64(0),
	}
}

func riskActivation(age int, income float64, credit int, employment, loans, social, ecommerce string) map[string]any {
	return map[string]any{
		"age":                int64(age),
		"income":             income,
		"credit_score":       int64(credit),
		"employment":         employment,
		"existing_loans":     loans,
		"loan_amount":        0.0,
		"purpose":            "",
		"social_presence":    social,
		"ecommerce_activity": ecommerce,
	}
}

func TestEngineCreation(t *testing.T) {
	engine, err := NewFraudEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RulesCount())
	}
	if engine.Name() != domain.RuleSetFraud {
		t.Errorf("expected name %s, got %s", domain.RuleSetFraud, engine.Name())
	}
}

func TestLoadDefaultRules(t *testing.T) {
	fraud, err := LoadEngine(NewFraudEngine, "", DefaultFraudRules())
	if err != nil {
		t.Fatalf("failed to load fraud rules: %v", err)
	}
	// the repeat-submission rule ships disabled
	if fraud.RulesCount() != len(DefaultFraudRules())-1 {
		t.Errorf("unexpected fraud rule count %d", fraud.RulesCount())
	}

	risk, err := LoadEngine(NewRiskEngine, "", DefaultRiskRules())
	if err != nil {
		t.Fatalf("failed to load risk rules: %v", err)
	}
	if risk.RulesCount() != len(DefaultRiskRules()) {
		t.Errorf("unexpected risk rule count %d", risk.RulesCount())
	}
}

func TestLoadInvalidRule(t *testing.T) {
	engine, _ := NewFraudEngine()

	t.Run("Syntax", func(t *testing.T) {
		err := engine.LoadRules([]*domain.ScoringRule{
			{ID: "bad", Expression: "this is not valid CEL !!!", Enabled: true},
		})
		if err == nil {
			t.Error("expected error for invalid CEL expression")
		}
	})

	t.Run("NonBool", func(t *testing.T) {
		err := engine.ValidateRule(&domain.ScoringRule{ID: "num", Expression: "login_frequency + 1"})
		if err == nil || !strings.Contains(err.Error(), "must return bool") {
			t.Errorf("expected bool output error, got %v", err)
		}
	})

	t.Run("UnknownVariable", func(t *testing.T) {
		err := engine.ValidateRule(&domain.ScoringRule{ID: "unknown", Expression: "credit_score > 1"})
		if err == nil {
			t.Error("expected error for undeclared variable")
		}
	})

	t.Run("Duplicate", func(t *testing.T) {
		err := engine.LoadRules([]*domain.ScoringRule{
			{ID: "dup", Expression: "true", Enabled: true},
			{ID: "dup", Expression: "false", Enabled: true},
		})
		if err == nil {
			t.Error("expected duplicate id error")
		}
	})

	t.Run("PreviousTableKept", func(t *testing.T) {
		if err := engine.LoadRules(DefaultFraudRules()); err != nil {
			t.Fatalf("load defaults: %v", err)
		}
		before := engine.RulesCount()
		_ = engine.LoadRules([]*domain.ScoringRule{{ID: "broken", Expression: "(", Enabled: true}})
		if engine.RulesCount() != before {
			t.Errorf("expected %d rules after failed reload, got %d", before, engine.RulesCount())
		}
	})
}

func TestFraudRules(t *testing.T) {
	engine, err := LoadEngine(NewFraudEngine, "", DefaultFraudRules())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ctx := context.Background()

	tests := []struct {
		name     string
		act      map[string]any
		want     int
		wantRule string
	}{
		{"Clean", fraudActivation("ABCDE1234F", "9876543210", "", 3), 0, ""},
		{"EmptyIDIsInvalid", fraudActivation("", "", "", 0), 30, "fraud-id-format"},
		{"LowercaseID", fraudActivation("abcde1234f", "", "", 0), 30, "fraud-id-format"},
		{"ShortMobile", fraudActivation("ABCDE1234F", "98765", "", 0), 15, "fraud-mobile-format"},
		{"NonDigitMobile", fraudActivation("ABCDE1234F", "98765abcde", "", 0), 15, "fraud-mobile-format"},
		{"MultipleIPs", fraudActivation("ABCDE1234F", "", "logins from multiple IPs", 0), 25, "fraud-multiple-ips"},
		{"CaseSensitiveBehavior", fraudActivation("ABCDE1234F", "", "Multiple ips", 0), 0, ""},
		{"Logins", fraudActivation("ABCDE1234F", "", "", 21), 20, "fraud-login-frequency"},
		{"LoginsAtThreshold", fraudActivation("ABCDE1234F", "", "", 20), 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := engine.Evaluate(ctx, tt.act)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if got := Score(hits); got != tt.want {
				t.Errorf("expected score %d, got %d (%+v)", tt.want, got, hits)
			}
			if tt.wantRule != "" && (len(hits) != 1 || hits[0].RuleID != tt.wantRule) {
				t.Errorf("expected single hit %s, got %+v", tt.wantRule, hits)
			}
		})
	}
}

func TestFraudScenarioHits(t *testing.T) {
	engine, _ := LoadEngine(NewFraudEngine, "", DefaultFraudRules())

	hits, err := engine.Evaluate(context.Background(),
		fraudActivation("ABCDE1234F", "98765", "mismatched documents, multiple IPs", 0))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if Score(hits) != 75 {
		t.Errorf("expected 75, got %d", Score(hits))
	}

	// hits come back in table order
	want := []string{"fraud-mobile-format", "fraud-multiple-ips", "fraud-document-mismatch"}
	if len(hits) != len(want) {
		t.Fatalf("expected %d hits, got %d", len(want), len(hits))
	}
	for i, id := range want {
		if hits[i].RuleID != id {
			t.Errorf("hit %d: expected %s, got %s", i, id, hits[i].RuleID)
		}
	}
}

func TestRiskGroupsFirstMatch(t *testing.T) {
	engine, err := LoadEngine(NewRiskEngine, "", DefaultRiskRules())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ctx := context.Background()

	t.Run("HighRiskProfile", func(t *testing.T) {
		hits, err := engine.Evaluate(ctx, riskActivation(22, 250000, 580, "unemployed", "multiple", "", ""))
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		// 10 + 15 + 25 + 25 + 15
		if Score(hits) != 90 {
			t.Errorf("expected 90, got %d", Score(hits))
		}
		groups := make(map[string]int)
		for _, h := range hits {
			groups[h.Group]++
		}
		for g, n := range groups {
			if n != 1 {
				t.Errorf("group %s matched %d times", g, n)
			}
		}
	})

	t.Run("StrongProfile", func(t *testing.T) {
		hits, _ := engine.Evaluate(ctx, riskActivation(35, 1500000, 820, "employed", "none", "high", ""))
		// -5 -15 -20 -10 -5
		if Score(hits) != -55 {
			t.Errorf("expected -55, got %d", Score(hits))
		}
		for _, h := range hits {
			if h.Reason != "" {
				t.Errorf("unexpected factor %q", h.Reason)
			}
		}
	})

	t.Run("EcommerceHighIsIndependent", func(t *testing.T) {
		hits, _ := engine.Evaluate(ctx, riskActivation(35, 700000, 750, "", "", "", "high"))
		// -5 -5 -10 then ecommerce -5 and spending +10
		if Score(hits) != -15 {
			t.Errorf("expected -15, got %d", Score(hits))
		}
		found := false
		for _, h := range hits {
			if h.RuleID == "risk-ecommerce-spending" {
				found = true
			}
		}
		if !found {
			t.Error("expected impulsive spending factor")
		}
	})

	t.Run("Boundaries", func(t *testing.T) {
		hits, _ := engine.Evaluate(ctx, riskActivation(25, 300000, 600, "student", "none", "medium", "medium"))
		// age 25 is prime (-5), income 300000 lower-mid (+5), credit 600 below-average (+10)
		if Score(hits) != 10 {
			t.Errorf("expected 10, got %d (%+v)", Score(hits), hits)
		}
	})
}

func TestEvaluateCancelled(t *testing.T) {
	engine, _ := LoadEngine(NewFraudEngine, "", DefaultFraudRules())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Evaluate(ctx, fraudActivation("", "", "", 0)); err == nil {
		t.Error("expected context error")
	}
}

func TestEvaluateMissingVariable(t *testing.T) {
	engine, _ := LoadEngine(NewFraudEngine, "", DefaultFraudRules())
	if _, err := engine.Evaluate(context.Background(), map[string]any{}); err == nil {
		t.Error("expected evaluation error for missing variables")
	}
}
