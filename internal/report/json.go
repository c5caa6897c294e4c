package report

import (
	"encoding/json"
	"io"

	"github.com/redactyl/leaktrace/internal/types"
)

// Document is the machine-readable run output.
type Document struct {
	Entities    []EntityRow        `json:"entities"`
	Findings    []types.Finding    `json:"findings"`
	Diagnostics []types.Diagnostic `json:"diagnostics"`
}

// EntityRow flattens an entity's resolutions.
type EntityRow struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Homepage     string `json:"homepage,omitempty"`
	HomepageTier string `json:"homepage_tier"`
	Account      string `json:"account,omitempty"`
	AccountTier  string `json:"account_tier"`
}

// Rows flattens entities.
func Rows(es []types.Entity) []EntityRow {
	out := make([]EntityRow, 0, len(es))
	for _, e := range es {
		hp, _ := e.Homepage.Get()
		acct, _ := e.Account.Get()
		out = append(out, EntityRow{
			ID:           e.ID,
			Name:         e.Name,
			Homepage:     hp,
			HomepageTier: e.Homepage.Tier().String(),
			Account:      acct,
			AccountTier:  e.Account.Tier().String(),
		})
	}
	return out
}

// WriteJSON writes the run document. Nil slices are written as empty arrays.
func WriteJSON(w io.Writer, es []types.Entity, fs []types.Finding, ds []types.Diagnostic) error {
	doc := Document{Entities: Rows(es), Findings: fs, Diagnostics: ds}
	if doc.Findings == nil {
		doc.Findings = []types.Finding{}
	}
	if doc.Diagnostics == nil {
		doc.Diagnostics = []types.Diagnostic{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
