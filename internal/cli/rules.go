package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/riskiq/internal/domain"
	"github.com/opensource-finance/riskiq/internal/rules"
)

func (a *app) rulesCommand() *cobra.Command {
	var which string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the active rule tables as YAML",
		Long: `Print the fraud and loan-risk rule tables in the format accepted by
rules.fraudFile and rules.riskFile, followed by the compliance keyword
catalog. The output of "riskiq rules --set fraud" is a valid starting
point for a custom fraud table.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(a.v)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if which == "" || which == domain.RuleSetFraud {
				engine, err := rules.LoadEngine(rules.NewFraudEngine, cfg.Rules.FraudFile, rules.DefaultFraudRules())
				if err != nil {
					return fmt.Errorf("failed to load fraud rules: %w", err)
				}
				data, err := rules.MarshalRuleSet(&domain.RuleSet{Name: domain.RuleSetFraud, Rules: engine.Rules()})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "---\n%s", data)
			}

			if which == "" || which == domain.RuleSetRisk {
				engine, err := rules.LoadEngine(rules.NewRiskEngine, cfg.Rules.RiskFile, rules.DefaultRiskRules())
				if err != nil {
					return fmt.Errorf("failed to load risk rules: %w", err)
				}
				data, err := rules.MarshalRuleSet(&domain.RuleSet{Name: domain.RuleSetRisk, Rules: engine.Rules()})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "---\n%s", data)
			}

			if which == "" || which == "compliance" {
				data, err := yaml.Marshal(map[string]any{
					"name":         "compliance",
					"catalog":      rules.ComplianceCatalog(),
					"nonCompliant": rules.NonCompliantKeywords(),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "---\n%s", data)
			}

			switch which {
			case "", domain.RuleSetFraud, domain.RuleSetRisk, "compliance":
				return nil
			default:
				return fmt.Errorf("unknown rule set %q (want fraud, risk or compliance)", which)
			}
		},
	}
	cmd.Flags().StringVar(&which, "set", "", "print only one set: fraud, risk or compliance")
	return cmd
}
