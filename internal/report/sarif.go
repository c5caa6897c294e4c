package report

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/redactyl/leaktrace/internal/github"
	"github.com/redactyl/leaktrace/internal/types"
)

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool       sarifTool      `json:"tool"`
	Results    []sarifResult  `json:"results"`
	Properties map[string]any `json:"properties,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	RuleIndex           int               `json:"ruleIndex"`
	Level               string            `json:"level"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLoc        `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints"`
	Properties          map[string]any    `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLoc struct {
	PhysicalLocation sarifPhys `json:"physicalLocation"`
}

type sarifPhys struct {
	ArtifactLocation sarifArt     `json:"artifactLocation"`
	Region           *sarifRegion `json:"region,omitempty"`
}

type sarifArt struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine,omitempty"`
}

// WriteSARIF writes findings as SARIF 2.1.0. Locations are permalinks, and
// secret values are left out.
func WriteSARIF(w io.Writer, findings []types.Finding, p github.Platform, version string, stats map[string]int) error {
	ids := map[string]bool{}
	for _, f := range findings {
		ids[f.RuleID] = true
	}
	var ruleIDs []string
	for id := range ids {
		ruleIDs = append(ruleIDs, id)
	}
	sort.Strings(ruleIDs)
	index := map[string]int{}
	driver := sarifDriver{Name: "leaktrace", Version: version, Rules: []sarifRule{}}
	for i, id := range ruleIDs {
		index[id] = i
		driver.Rules = append(driver.Rules, sarifRule{ID: id, ShortDescription: sarifMessage{Text: id + " detected"}})
	}

	run := sarifRun{Tool: sarifTool{Driver: driver}, Results: []sarifResult{}}
	if len(stats) > 0 {
		run.Properties = map[string]any{"runStats": stats}
	}
	for _, f := range findings {
		loc := sarifPhys{ArtifactLocation: sarifArt{URI: p.Permalink(f.Organization, f.Repository, f.Commit, f.File)}}
		if f.StartLine > 0 {
			loc.Region = &sarifRegion{StartLine: f.StartLine, EndLine: f.EndLine}
		}
		run.Results = append(run.Results, sarifResult{
			RuleID:              f.RuleID,
			RuleIndex:           index[f.RuleID],
			Level:               "error",
			Message:             sarifMessage{Text: f.RuleID + " in " + f.Organization + "/" + f.Repository + " attributed to " + f.Person},
			Locations:           []sarifLoc{{PhysicalLocation: loc}},
			PartialFingerprints: map[string]string{"leaktrace/v1": Fingerprint(f)},
			Properties: map[string]any{
				"organization": f.Organization,
				"person":       f.Person,
				"commit":       f.Commit,
			},
		})
	}
	doc := sarif{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs:    []sarifRun{run},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
