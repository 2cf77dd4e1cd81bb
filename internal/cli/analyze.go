package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/riskiq/internal/cache"
	"github.com/opensource-finance/riskiq/internal/domain"
)

func (a *app) analyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run a single analysis locally and print the result as JSON",
		Long: `Run one compliance, fraud or loan-risk analysis without starting the
server. Results are printed and not stored. Use "-" to read from stdin.`,
	}
	cmd.AddCommand(a.analyzeComplianceCommand(), a.analyzeFraudCommand(), a.analyzeRiskCommand())
	return cmd
}

func (a *app) analyzeComplianceCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "compliance",
		Short: "Check a loan agreement against the RBI catalog",
		Example: `  riskiq analyze compliance --file agreement.txt
  cat agreement.txt | riskiq analyze compliance --file -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			text := strings.TrimSpace(string(data))
			switch {
			case text == "":
				return errors.New("document is empty")
			case strings.HasPrefix(text, "%PDF"):
				return errors.New("binary PDF content is not supported; extract the text first")
			}

			svc, done, err := a.localServices(cmd)
			if err != nil {
				return err
			}
			defer done()

			name := "document.txt"
			if file != "-" {
				name = filepath.Base(file)
			}
			return printJSON(cmd.OutOrStdout(), svc.compliance.Analyze(cmd.Context(), name, text))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "agreement text file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (a *app) analyzeFraudCommand() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:     "fraud",
		Short:   "Score a loan applicant for fraud",
		Example: `  riskiq analyze fraud --input applicant.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var applicant domain.Applicant
			if err := decodeInput(cmd, input, &applicant); err != nil {
				return err
			}
			if applicant.Name == "" || applicant.GovernmentID == "" {
				return errors.New("name and governmentId are required")
			}

			svc, done, err := a.localServices(cmd)
			if err != nil {
				return err
			}
			defer done()

			assessment, err := svc.fraud.Score(cmd.Context(), domain.DefaultTenantID, applicant)
			if err != nil {
				return fmt.Errorf("fraud scoring failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), assessment)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "applicant JSON file")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) analyzeRiskCommand() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:     "risk",
		Short:   "Score a borrower for loan risk",
		Example: `  riskiq analyze risk --input borrower.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var borrower domain.Borrower
			if err := decodeInput(cmd, input, &borrower); err != nil {
				return err
			}
			if borrower.Name == "" {
				return errors.New("name is required")
			}

			svc, done, err := a.localServices(cmd)
			if err != nil {
				return err
			}
			defer done()

			assessment, err := svc.risk.Score(cmd.Context(), domain.DefaultTenantID, borrower)
			if err != nil {
				return fmt.Errorf("risk scoring failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), assessment)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "borrower JSON file")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// localServices builds the analyzers on an in-process cache. Logs go to
// stderr so stdout stays valid JSON.
func (a *app) localServices(cmd *cobra.Command) (*services, func(), error) {
	cfg, err := loadConfig(a.v)
	if err != nil {
		return nil, nil, err
	}
	level := "warn"
	if a.verbose {
		level = "debug"
	}
	logger := newLogger(cmd.ErrOrStderr(), level, "text", a.verbose)

	mem := cache.NewMemoryCache(5*time.Minute, 10*time.Minute)
	svc, err := newServices(cmd.Context(), cfg, mem, logger, nil)
	if err != nil {
		mem.Close()
		return nil, nil, err
	}
	return svc, func() {
		_ = svc.Close()
		_ = mem.Close()
	}, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func decodeInput(cmd *cobra.Command, path string, v any) error {
	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON input: %w", err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
