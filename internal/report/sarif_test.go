package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redactyl/leaktrace/internal/github"
	"github.com/redactyl/leaktrace/internal/types"
)

func TestWriteSARIF(t *testing.T) {
	fs := []types.Finding{
		{Organization: "acme", Repository: "tools", Person: "Jane", File: "a.py", StartLine: 3, Commit: "c1", RuleID: "openai-api-key", Secret: "sk-live-1"},
		{Organization: "acme", Repository: "web", Person: "Bob", File: "b.env", Commit: "c2", RuleID: "anthropic-api-key", Secret: "sk-ant-2"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteSARIF(&buf, fs, github.NewPlatform("github.com", ""), "1.2.3", map[string]int{"repositories": 2}))
	assert.NotContains(t, buf.String(), "sk-live-1")

	var doc struct {
		Version string `json:"version"`
		Runs    []struct {
			Properties map[string]any `json:"properties"`
			Tool       struct {
				Driver struct {
					Version string `json:"version"`
					Rules   []struct {
						ID string `json:"id"`
					} `json:"rules"`
				} `json:"driver"`
			} `json:"tool"`
			Results []struct {
				RuleID    string `json:"ruleId"`
				RuleIndex int    `json:"ruleIndex"`
				Locations []struct {
					PhysicalLocation struct {
						ArtifactLocation struct {
							URI string `json:"uri"`
						} `json:"artifactLocation"`
						Region *struct {
							StartLine int `json:"startLine"`
						} `json:"region"`
					} `json:"physicalLocation"`
				} `json:"locations"`
				PartialFingerprints map[string]string `json:"partialFingerprints"`
			} `json:"results"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "2.1.0", doc.Version)
	require.Len(t, doc.Runs, 1)
	run := doc.Runs[0]
	assert.Equal(t, "1.2.3", run.Tool.Driver.Version)
	require.Len(t, run.Tool.Driver.Rules, 2)
	assert.Equal(t, "anthropic-api-key", run.Tool.Driver.Rules[0].ID)
	require.Len(t, run.Results, 2)
	assert.Equal(t, 1, run.Results[0].RuleIndex)
	assert.Equal(t, "https://github.com/acme/tools/blob/c1/a.py", run.Results[0].Locations[0].PhysicalLocation.ArtifactLocation.URI)
	require.NotNil(t, run.Results[0].Locations[0].PhysicalLocation.Region)
	assert.Equal(t, 3, run.Results[0].Locations[0].PhysicalLocation.Region.StartLine)
	assert.Nil(t, run.Results[1].Locations[0].PhysicalLocation.Region)
	assert.Equal(t, Fingerprint(fs[0]), run.Results[0].PartialFingerprints["leaktrace/v1"])
	assert.NotNil(t, run.Properties["runStats"])
}
