package evaluate

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"career-pulse/internal/schema"

	"github.com/rs/zerolog/log"
)

// Report file names written by GenerateReport.
const (
	SummaryFile   = "evaluation_summary.txt"
	CareersFile   = "career_metrics.csv"
	ConfusionFile = "confusion_matrix.csv"
	JSONFile      = "evaluation_results.json"
)

// topConfusions is how many misclassification pairs the summary lists.
const topConfusions = 10

// Reporter generates evaluation reports
type Reporter struct {
	results    *Results
	outputPath string
}

// NewReporter creates a new reporter
func NewReporter(results *Results, outputPath string) *Reporter {
	return &Reporter{
		results:    results,
		outputPath: outputPath,
	}
}

// GenerateReport generates all report formats
func (r *Reporter) GenerateReport() error {
	if r.results == nil {
		return ErrNoData
	}

	// Create output directory
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}
	if err := r.generateCareerMetrics(); err != nil {
		return err
	}
	if err := r.generateConfusionMatrix(); err != nil {
		return err
	}
	return r.generateJSONReport()
}

// generateSummary generates a human-readable summary
func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, SummaryFile)
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	fmt.Fprintf(file, "CAREER MODEL EVALUATION\n")
	fmt.Fprintf(file, "=======================\n\n")
	fmt.Fprintf(file, "Source: %s\n", r.results.Source)
	fmt.Fprintf(file, "Evaluated: %s\n\n", r.results.EndTime.Format("2006-01-02 15:04:05"))

	fmt.Fprintf(file, "OVERALL\n")
	fmt.Fprintf(file, "-------\n")
	fmt.Fprintf(file, "Rows: %d\n", r.results.Rows)
	fmt.Fprintf(file, "Correct: %d\n", r.results.Correct)
	fmt.Fprintf(file, "Accuracy: %.2f%%\n", r.results.Accuracy*100)
	fmt.Fprintf(file, "Macro F1: %.4f\n\n", r.results.MacroF1)

	fmt.Fprintf(file, "PER CAREER\n")
	fmt.Fprintf(file, "----------\n")
	for _, s := range r.results.Careers {
		fmt.Fprintf(file, "%-36s support %4d  precision %.3f  recall %.3f  f1 %.3f\n",
			s.Career, s.Support, s.Precision, s.Recall, s.F1)
	}

	if confusions := r.results.TopConfusions(topConfusions); len(confusions) > 0 {
		fmt.Fprintf(file, "\nMOST FREQUENT CONFUSIONS\n")
		fmt.Fprintf(file, "------------------------\n")
		for _, c := range confusions {
			fmt.Fprintf(file, "%s -> %s: %d\n", c.Actual, c.Predicted, c.Count)
		}
	}

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

// generateCareerMetrics writes one CSV line per career
func (r *Reporter) generateCareerMetrics() error {
	csvPath := filepath.Join(r.outputPath, CareersFile)
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create career metrics: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"Career", "Support", "Predicted", "True Positives", "Precision", "Recall", "F1"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, s := range r.results.Careers {
		record := []string{
			s.Career,
			strconv.Itoa(s.Support),
			strconv.Itoa(s.Predicted),
			strconv.Itoa(s.TruePositives),
			fmt.Sprintf("%.4f", s.Precision),
			fmt.Sprintf("%.4f", s.Recall),
			fmt.Sprintf("%.4f", s.F1),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write career metrics: %w", err)
	}

	log.Info().Str("file", csvPath).Msg("Career metrics generated")
	return nil
}

// generateConfusionMatrix writes the matrix with actual careers as rows
func (r *Reporter) generateConfusionMatrix() error {
	csvPath := filepath.Join(r.outputPath, ConfusionFile)
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create confusion matrix: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write(append([]string{"actual \\ predicted"}, schema.Careers...)); err != nil {
		return err
	}
	for actual, row := range r.results.Matrix {
		record := make([]string, 0, len(row)+1)
		record = append(record, schema.Careers[actual])
		for _, count := range row {
			record = append(record, strconv.Itoa(count))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write confusion matrix: %w", err)
	}

	log.Info().Str("file", csvPath).Msg("Confusion matrix generated")
	return nil
}

// generateJSONReport generates a JSON report with all data
func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, JSONFile)

	report := struct {
		*Results
		TopConfusions []Confusion `json:"top_confusions"`
		GeneratedAt   time.Time   `json:"generated_at"`
	}{
		Results:       r.results,
		TopConfusions: r.results.TopConfusions(topConfusions),
		GeneratedAt:   time.Now(),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

// PrintSummary prints a short summary to w
func (r *Reporter) PrintSummary(w io.Writer) {
	if r.results == nil {
		return
	}
	fmt.Fprintln(w, "\n=== EVALUATION RESULTS ===")
	fmt.Fprintf(w, "Source: %s\n", r.results.Source)
	fmt.Fprintf(w, "Rows: %d\n", r.results.Rows)
	fmt.Fprintf(w, "Accuracy: %.2f%%\n", r.results.Accuracy*100)
	fmt.Fprintf(w, "Macro F1: %.4f\n", r.results.MacroF1)
	for _, c := range r.results.TopConfusions(3) {
		fmt.Fprintf(w, "Confused: %s -> %s (%d)\n", c.Actual, c.Predicted, c.Count)
	}
	fmt.Fprintln(w, "==========================")
}
