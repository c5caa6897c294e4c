package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/redactyl/leaktrace/internal/github"
	"github.com/redactyl/leaktrace/internal/types"
)

// CSVHeader is the column layout of the final report.
var CSVHeader = []string{"Organization Name", "Person Name", "API Key (Secret)", "Associated File Location"}

// WriteCSV writes one row per finding with a permalink to the file at the
// commit that introduced it.
func WriteCSV(w io.Writer, findings []types.Finding, p github.Platform) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, f := range findings {
		row := []string{
			f.Organization,
			f.Person,
			f.Secret,
			p.Permalink(f.Organization, f.Repository, f.Commit, f.File),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the report to path with owner-only permissions, since
// it contains secret values. An empty findings list still produces a file.
func WriteCSVFile(path string, findings []types.Finding, p github.Platform) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := WriteCSV(f, findings, p); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	return f.Close()
}
