package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/idelchi/fileculator/internal/report"
	"github.com/idelchi/fileculator/internal/scan"
)

// jsonSummary is the machine-readable form of a scan.Summary.
type jsonSummary struct {
	Located    int    `json:"located"`
	Written    int    `json:"written"`
	Failed     int    `json:"failed"`
	FinishedAt string `json:"finished_at"`
}

// PrintJSON outputs the run summary in JSON format.
func PrintJSON(summary scan.Summary, writer io.Writer) error {
	data, err := json.MarshalIndent(jsonSummary{
		Located:    summary.Located,
		Written:    summary.Written,
		Failed:     summary.Failed,
		FinishedAt: summary.FinishedAt.Format(report.TimeLayout),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	if _, err := fmt.Fprintln(writer, string(data)); err != nil {
		return err
	}

	return nil
}
