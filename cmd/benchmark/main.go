// Benchmark tool for testing Talon against labeled credit data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/applicants.csv -url http://localhost:8080
//
// This tool:
//   1. Reads applicant records (with default labels)
//   2. Sends each applicant to Talon for assessment
//   3. Compares Talon's risk band (High vs not) with actual default labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ApplicantRecord represents a labeled row from the credit dataset.
type ApplicantRecord struct {
	UserID                string
	Age                   int
	Occupation            string
	MonthlyIncome         float64
	TransactionCount30d   int
	AvgTransactionAmount  float64
	LocationRiskScore     float64
	DeviceChangeFrequency int
	PreviousFraudFlag     bool
	AccountAgeMonths      int
	ChargebackCount       int
	Defaulted             bool
}

// AssessRequest is the Talon API request format.
type AssessRequest struct {
	UserID                string  `json:"user_id"`
	Age                   int     `json:"age"`
	Occupation            string  `json:"occupation"`
	MonthlyIncome         float64 `json:"monthly_income"`
	TransactionCount30d   int     `json:"transaction_count_30d"`
	AvgTransactionAmount  float64 `json:"avg_transaction_amount"`
	LocationRiskScore     float64 `json:"location_risk_score"`
	DeviceChangeFrequency int     `json:"device_change_frequency"`
	PreviousFraudFlag     bool    `json:"previous_fraud_flag"`
	AccountAgeMonths      int     `json:"account_age_months"`
	ChargebackCount       int     `json:"chargeback_count"`
}

// AssessResponse is the subset of the Talon response the benchmark uses.
type AssessResponse struct {
	AssessmentID string `json:"assessmentId"`
	Decision     struct {
		FinalScore  int      `json:"finalScore"`
		RiskBand    string   `json:"riskBand"`
		ReasonCodes []string `json:"reasonCodes"`
	} `json:"decision"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Defaulters banded High
	FalsePositives int64 // Non-defaulters banded High
	TrueNegatives  int64 // Non-defaulters not banded High
	FalseNegatives int64 // Defaulters not banded High (missed risk!)

	TotalProcessed  int64
	TotalDefaulters int64
	TotalGood       int64
	TotalErrors     int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled applicant CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Talon base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum applicants to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each assessment result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/applicants.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║            TALON BENCHMARK - Credit Default Data              ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Talon URL:   %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Println()

	// Check Talon is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Talon not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Talon is running:")
		fmt.Println("  cd talon && go run cmd/talon/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Talon is healthy")

	// Read applicant data
	fmt.Printf("\nReading applicant data from %s...\n", *csvPath)
	applicants, err := readApplicantCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d applicants\n", len(applicants))

	defaultCount := 0
	for _, a := range applicants {
		if a.Defaulted {
			defaultCount++
		}
	}
	fmt.Printf("  - Defaulters: %d (%.2f%%)\n", defaultCount, 100*float64(defaultCount)/float64(len(applicants)))
	fmt.Printf("  - Good:       %d (%.2f%%)\n", len(applicants)-defaultCount, 100*float64(len(applicants)-defaultCount)/float64(len(applicants)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(applicants, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readApplicantCSV(path string, limit int) ([]ApplicantRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	var applicants []ApplicantRecord

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		age, _ := strconv.Atoi(record[colIndex["age"]])
		income, _ := strconv.ParseFloat(record[colIndex["monthly_income"]], 64)
		txCount, _ := strconv.Atoi(record[colIndex["transaction_count_30d"]])
		avgAmount, _ := strconv.ParseFloat(record[colIndex["avg_transaction_amount"]], 64)
		locRisk, _ := strconv.ParseFloat(record[colIndex["location_risk_score"]], 64)
		deviceChanges, _ := strconv.Atoi(record[colIndex["device_change_frequency"]])
		accountAge, _ := strconv.Atoi(record[colIndex["account_age_months"]])
		chargebacks, _ := strconv.Atoi(record[colIndex["chargeback_count"]])

		a := ApplicantRecord{
			UserID:                record[colIndex["user_id"]],
			Age:                   age,
			Occupation:            record[colIndex["occupation"]],
			MonthlyIncome:         income,
			TransactionCount30d:   txCount,
			AvgTransactionAmount:  avgAmount,
			LocationRiskScore:     locRisk,
			DeviceChangeFrequency: deviceChanges,
			PreviousFraudFlag:     record[colIndex["previous_fraud_flag"]] == "1",
			AccountAgeMonths:      accountAge,
			ChargebackCount:       chargebacks,
			Defaulted:             record[colIndex["defaulted"]] == "1",
		}

		applicants = append(applicants, a)

		if limit > 0 && len(applicants) >= limit {
			break
		}
	}

	return applicants, nil
}

func runBenchmark(applicants []ApplicantRecord, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan ApplicantRecord, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for a := range work {
				start := time.Now()
				result, err := assessApplicant(client, baseURL, tenantID, a)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", a.UserID, err)
					}
					continue
				}

				// Track actual labels
				if a.Defaulted {
					atomic.AddInt64(&metrics.TotalDefaulters, 1)
				} else {
					atomic.AddInt64(&metrics.TotalGood, 1)
				}

				// Calculate confusion matrix
				predicted := result.Decision.RiskBand == "High"
				actual := a.Defaulted

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if (predicted && !actual) || (!predicted && actual) {
						status = "✗"
					}
					fmt.Printf("%s %-12s | Income: $%10.2f | Defaulted: %-5v | Talon: %-8s (%d)\n",
						status,
						a.UserID,
						a.MonthlyIncome,
						a.Defaulted,
						result.Decision.RiskBand,
						result.Decision.FinalScore,
					)
				}
			}
		}()
	}

	// Send work
	for _, a := range applicants {
		work <- a
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func assessApplicant(client *http.Client, baseURL, tenantID string, a ApplicantRecord) (*AssessResponse, error) {
	req := AssessRequest{
		UserID:                a.UserID,
		Age:                   a.Age,
		Occupation:            a.Occupation,
		MonthlyIncome:         a.MonthlyIncome,
		TransactionCount30d:   a.TransactionCount30d,
		AvgTransactionAmount:  a.AvgTransactionAmount,
		LocationRiskScore:     a.LocationRiskScore,
		DeviceChangeFrequency: a.DeviceChangeFrequency,
		PreviousFraudFlag:     a.PreviousFraudFlag,
		AccountAgeMonths:      a.AccountAgeMonths,
		ChargebackCount:       a.ChargebackCount,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/assess", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result AssessResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Defaulters: %d\n", m.TotalDefaulters)
	fmt.Printf("   Total Good:       %d\n", m.TotalGood)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                    High       Not High")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  D  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("          ND  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of High bands, how many actually defaulted)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of defaulters, how many were banded High)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f assessments/sec\n", tps)
	}

	fmt.Println()
}
