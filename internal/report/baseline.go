package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/redactyl/leaktrace/internal/consolidate"
	"github.com/redactyl/leaktrace/internal/types"
)

// Baseline is a set of finding fingerprints already triaged. It stores no
// secret values.
type Baseline struct {
	Items map[string]bool `json:"items"`
}

// LoadBaseline reads a baseline file.
func LoadBaseline(path string) (Baseline, error) {
	b := Baseline{Items: map[string]bool{}}
	f, err := os.ReadFile(path)
	if err != nil {
		return b, err
	}
	if err := json.Unmarshal(f, &b); err != nil {
		return Baseline{Items: map[string]bool{}}, fmt.Errorf("decoding baseline %s: %w", path, err)
	}
	if b.Items == nil {
		b.Items = map[string]bool{}
	}
	return b, nil
}

// SaveBaseline writes the fingerprints of findings to path.
func SaveBaseline(path string, findings []types.Finding) error {
	b := Baseline{Items: map[string]bool{}}
	for _, f := range findings {
		b.Items[Fingerprint(f)] = true
	}
	buf, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

// FilterNewFindings drops findings present in base.
func FilterNewFindings(findings []types.Finding, base Baseline) []types.Finding {
	var out []types.Finding
	for _, f := range findings {
		if !base.Items[Fingerprint(f)] {
			out = append(out, f)
		}
	}
	return out
}

// Fingerprint is the hex form of the consolidation key.
func Fingerprint(f types.Finding) string {
	return strconv.FormatUint(consolidate.KeyOf(f).Hash(), 16)
}
