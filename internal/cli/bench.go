package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/opensource-finance/riskiq/internal/domain"
)

// labelledApplicant is one row of a benchmark dataset.
type labelledApplicant struct {
	Applicant domain.Applicant
	IsFraud   bool
}

// benchResult is the confusion matrix of a benchmark run.
type benchResult struct {
	TruePositives  int64 // fraud flagged
	FalsePositives int64
	TrueNegatives  int64
	FalseNegatives int64 // fraud missed

	Processed int64
	Errors    int64
	LatencyMs int64
}

func (r *benchResult) precision() float64 {
	return ratio(r.TruePositives, r.TruePositives+r.FalsePositives)
}

func (r *benchResult) recall() float64 {
	return ratio(r.TruePositives, r.TruePositives+r.FalseNegatives)
}

func (r *benchResult) f1() float64 {
	p, rc := r.precision(), r.recall()
	if p+rc == 0 {
		return 0
	}
	return 2 * p * rc / (p + rc)
}

func (r *benchResult) accuracy() float64 {
	return ratio(r.TruePositives+r.TrueNegatives, r.Processed-r.Errors)
}

func ratio(a, b int64) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

func (a *app) benchCommand() *cobra.Command {
	var (
		csvPath  string
		baseURL  string
		tenantID string
		limit    int
		workers  int
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Replay a labelled applicant dataset against a running server",
		Long: `Send every applicant of a labelled CSV to POST /fraud/score and compare
the verdict with the label. Prints precision, recall, F1 and the confusion
matrix.

The CSV needs a header. Recognised columns (case-insensitive): name,
governmentId, mobile, email, ipAddress, deviceInfo, loginFrequency,
behavior, isFraud.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			f, err := os.Open(csvPath)
			if err != nil {
				return fmt.Errorf("failed to open dataset: %w", err)
			}
			defer f.Close()

			rows, err := readApplicantsCSV(f, limit)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return errors.New("dataset has no rows")
			}

			client := &http.Client{Timeout: 10 * time.Second}
			if err := checkHealth(cmd.Context(), client, baseURL); err != nil {
				return fmt.Errorf("riskiq not reachable at %s: %w", baseURL, err)
			}

			fmt.Fprintf(out, "Dataset:  %s (%d applicants)\n", csvPath, len(rows))
			fmt.Fprintf(out, "Server:   %s\n", baseURL)
			fmt.Fprintf(out, "Tenant:   %s\n", tenantID)
			fmt.Fprintf(out, "Workers:  %d\n\n", workers)

			start := time.Now()
			res := runBench(cmd.Context(), client, baseURL, tenantID, rows, workers, func(row labelledApplicant, a *domain.FraudAssessment, err error) {
				if !verbose {
					return
				}
				if err != nil {
					fmt.Fprintf(out, "ERROR %-20s %v\n", row.Applicant.Name, err)
					return
				}
				mark := "ok "
				if a.IsFraudulent != row.IsFraud {
					mark = "!! "
				}
				fmt.Fprintf(out, "%s %-20s score=%3d risk=%-6s label=%v\n", mark, row.Applicant.Name, a.Score, a.Risk, row.IsFraud)
			})
			printBenchResult(out, res, time.Since(start))
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "labelled applicant CSV")
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "RiskIQ base URL")
	cmd.Flags().StringVar(&tenantID, "tenant", "benchmark", "tenant ID for requests")
	cmd.Flags().IntVar(&limit, "limit", 10000, "maximum rows (0 = all)")
	cmd.Flags().IntVar(&workers, "workers", 10, "concurrent requests")
	cmd.Flags().BoolVar(&verbose, "detail", false, "print every result")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

func checkHealth(ctx context.Context, client *http.Client, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readApplicantsCSV(r io.Reader, limit int) ([]labelledApplicant, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := col["name"]; !ok {
		return nil, errors.New(`dataset header has no "name" column`)
	}

	field := func(record []string, name string) string {
		i, ok := col[strings.ToLower(name)]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []labelledApplicant
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}

		rows = append(rows, labelledApplicant{
			Applicant: domain.Applicant{
				Name:           field(record, "name"),
				GovernmentID:   field(record, "governmentId"),
				Mobile:         field(record, "mobile"),
				Email:          field(record, "email"),
				IPAddress:      field(record, "ipAddress"),
				DeviceInfo:     field(record, "deviceInfo"),
				LoginFrequency: cast.ToInt(field(record, "loginFrequency")),
				Behavior:       field(record, "behavior"),
			},
			IsFraud: cast.ToBool(field(record, "isFraud")),
		})
		if limit > 0 && len(rows) >= limit {
			break
		}
	}
	return rows, nil
}

// runBench scores rows with a fixed pool of workers. observe is called once
// per row from the worker goroutines.
func runBench(ctx context.Context, client *http.Client, baseURL, tenantID string, rows []labelledApplicant, workers int,
	observe func(labelledApplicant, *domain.FraudAssessment, error)) *benchResult {
	if workers <= 0 {
		workers = 1
	}
	res := &benchResult{}
	work := make(chan labelledApplicant)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := range work {
				start := time.Now()
				a, err := scoreApplicant(ctx, client, baseURL, tenantID, row.Applicant)
				atomic.AddInt64(&res.LatencyMs, time.Since(start).Milliseconds())
				atomic.AddInt64(&res.Processed, 1)

				if observe != nil {
					mu.Lock()
					observe(row, a, err)
					mu.Unlock()
				}
				if err != nil {
					atomic.AddInt64(&res.Errors, 1)
					continue
				}

				switch predicted := a.IsFraudulent; {
				case predicted && row.IsFraud:
					atomic.AddInt64(&res.TruePositives, 1)
				case predicted:
					atomic.AddInt64(&res.FalsePositives, 1)
				case row.IsFraud:
					atomic.AddInt64(&res.FalseNegatives, 1)
				default:
					atomic.AddInt64(&res.TrueNegatives, 1)
				}
			}
		}()
	}

	for _, row := range rows {
		work <- row
	}
	close(work)
	wg.Wait()
	return res
}

func scoreApplicant(ctx context.Context, client *http.Client, baseURL, tenantID string, a domain.Applicant) (*domain.FraudAssessment, error) {
	body, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/fraud/score", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var out domain.FraudAssessment
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func printBenchResult(w io.Writer, r *benchResult, elapsed time.Duration) {
	fmt.Fprintf(w, "Processed: %d  Errors: %d  Elapsed: %s\n", r.Processed, r.Errors, elapsed.Round(time.Millisecond))
	if ok := r.Processed - r.Errors; ok > 0 {
		fmt.Fprintf(w, "Avg latency: %.1f ms\n", float64(r.LatencyMs)/float64(r.Processed))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "                 predicted fraud   predicted clean")
	fmt.Fprintf(w, "actual fraud     %15d   %15d\n", r.TruePositives, r.FalseNegatives)
	fmt.Fprintf(w, "actual clean     %15d   %15d\n", r.FalsePositives, r.TrueNegatives)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Precision: %.2f%%\n", 100*r.precision())
	fmt.Fprintf(w, "Recall:    %.2f%%\n", 100*r.recall())
	fmt.Fprintf(w, "F1:        %.2f%%\n", 100*r.f1())
	fmt.Fprintf(w, "Accuracy:  %.2f%%\n", 100*r.accuracy())
}
