package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/redactyl/leaktrace/internal/types"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("57"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type PrintOptions struct {
	NoColor      bool
	Duration     time.Duration
	Entities     int
	Repositories int
	Baselined    int
}

func (o PrintOptions) style(s lipgloss.Style, text string) string {
	if o.NoColor {
		return text
	}
	return s.Render(text)
}

// PrintTable writes findings as a table followed by a summary footer.
// Secrets are masked; the CSV report carries the full values.
func PrintTable(w io.Writer, findings []types.Finding, opts PrintOptions) error {
	if len(findings) == 0 {
		fmt.Fprintln(w, opts.style(okStyle, "No leaked keys found"))
	} else {
		fmt.Fprintln(w, opts.style(titleStyle, "Findings: "+strconv.Itoa(len(findings))))
		t := tablewriter.NewWriter(w)
		t.Header("Organization", "Person", "Repository", "Location", "Rule", "Secret")
		for _, f := range findings {
			loc := f.File
			if f.StartLine > 0 {
				loc += ":" + strconv.Itoa(f.StartLine)
			}
			if err := t.Append(f.Organization, f.Person, f.Repository, loc, f.RuleID, maskValue(f.Secret)); err != nil {
				return err
			}
		}
		if err := t.Render(); err != nil {
			return err
		}
	}
	if opts.Duration > 0 || opts.Entities > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "People: %d  Repositories: %d  Findings: %d", opts.Entities, opts.Repositories, len(findings))
		if opts.Baselined > 0 {
			fmt.Fprintf(w, "  Baselined: %d", opts.Baselined)
		}
		fmt.Fprintln(w)
		if opts.Duration > 0 {
			fmt.Fprintln(w, opts.style(dimStyle, fmt.Sprintf("Run duration: %.2fs", opts.Duration.Seconds())))
		}
	}
	return nil
}

// PrintDiagnostics writes a count per kind and one line per diagnostic.
func PrintDiagnostics(w io.Writer, ds []types.Diagnostic, opts PrintOptions) error {
	if len(ds) == 0 {
		return nil
	}
	counts := map[types.DiagnosticKind]int{}
	for _, d := range ds {
		counts[d.Kind]++
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	fmt.Fprintln(w, opts.style(warnStyle, fmt.Sprintf("Diagnostics: %d", len(ds))))
	t := tablewriter.NewWriter(w)
	t.Header("Kind", "Count")
	for _, k := range kinds {
		if err := t.Append(k, strconv.Itoa(counts[types.DiagnosticKind(k)])); err != nil {
			return err
		}
	}
	if err := t.Render(); err != nil {
		return err
	}
	for _, d := range ds {
		subject := d.Repository
		if subject == "" {
			subject = d.Account
		}
		if subject == "" {
			subject = d.Entity
		}
		fmt.Fprintf(w, "  %s %s: %s\n", opts.style(badStyle, string(d.Kind)), subject, d.Message)
	}
	return nil
}

// PrintResolutions writes each entity's homepage and account with its tier.
func PrintResolutions(w io.Writer, es []types.Entity, opts PrintOptions) error {
	t := tablewriter.NewWriter(w)
	t.Header("Person", "Homepage", "Confidence", "Account", "Confidence")
	for _, r := range Rows(es) {
		if err := t.Append(r.Name, dash(r.Homepage), opts.tier(r.HomepageTier), dash(r.Account), opts.tier(r.AccountTier)); err != nil {
			return err
		}
	}
	return t.Render()
}

func (o PrintOptions) tier(t string) string {
	switch t {
	case types.TierHighConfidence.String():
		return o.style(okStyle, t)
	case types.TierBestGuess.String():
		return o.style(warnStyle, t)
	case types.TierFailed.String():
		return o.style(badStyle, t)
	default:
		return o.style(dimStyle, t)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func maskValue(s string) string {
	if len(s) <= 12 {
		return "********"
	}
	return s[:6] + "…" + s[len(s)-4:]
}
