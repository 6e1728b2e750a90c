package report

import (
	"fmt"
	"strings"

	"goelda/domain/dilution"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Format names an output rendering of a bundle.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat accepts json, markdown (or md) and html.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json, markdown or html)", s)
	}
}

// Markdown renders the bundle as a markdown document with one table per
// section.
func Markdown(b *dilution.Bundle) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Limiting dilution analysis\n\n")
	fmt.Fprintf(&sb, "Run `%s`, %s. Confidence level %s, %s intervals, %s estimation.\n\n",
		b.RunID, b.CreatedAt.Time().Format("2006-01-02 15:04:05 MST"),
		num(b.Options.ConfidenceLevel), b.Options.IntervalMethod, estimationMode(b.Options.BiasReduced))

	sb.WriteString("## Frequency estimates\n\n")
	sb.WriteString("Estimates are cells per responding unit (1 in N).\n\n")
	sb.WriteString("| Group | Estimate | Lower | Upper |\n|---|---:|---:|---:|\n")
	for _, e := range b.Estimates {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", cell(e.Group), num(e.Estimate), num(e.Lower), num(e.Upper))
	}

	sb.WriteString("\n## Tests\n\n")
	sb.WriteString("| Test | Statistic | DF | P-value |\n|---|---:|---:|---:|\n")
	for _, t := range b.Tests.Results() {
		fmt.Fprintf(&sb, "| %s | %s | %d | %s |\n", t.Name.Title(), num(t.Statistic), t.DF, pvalue(t.PValue))
	}
	for _, o := range b.Tests.Omitted {
		fmt.Fprintf(&sb, "| %s | omitted | | |\n", o.Name.Title())
	}

	if len(b.Pairwise) > 0 {
		sb.WriteString("\n## Pairwise comparisons\n\n")
		sb.WriteString("| Group 1 | Group 2 | Chi-square | P-value |\n|---|---|---:|---:|\n")
		for _, p := range b.Pairwise {
			fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", cell(p.Group1), cell(p.Group2), num(p.Test.Statistic), pvalue(p.Test.PValue))
		}
	}

	if len(b.Summaries) > 0 {
		sb.WriteString("\n## Data\n\n")
		sb.WriteString("| Group | Rows | Doses | Dose range | Tested | Responded |\n|---|---:|---:|---|---:|---:|\n")
		for _, s := range b.Summaries {
			fmt.Fprintf(&sb, "| %s | %d | %d | %s to %s | %d | %d |\n",
				cell(s.Group), s.Observations, s.DistinctDoses, num(s.MinDose), num(s.MaxDose), s.Tested, s.Responded)
		}
	}
	return sb.String()
}

// HTML renders the markdown report as a complete HTML page.
func HTML(b *dilution.Bundle) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	doc := p.Parse([]byte(Markdown(b)))

	renderer := html.NewRenderer(html.RendererOptions{
		Title: "Limiting dilution analysis " + b.RunID.String(),
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.Render(doc, renderer)
}

func estimationMode(biasReduced bool) string {
	if biasReduced {
		return "bias-reduced"
	}
	return "maximum-likelihood"
}

func num(v float64) string {
	return fmt.Sprintf("%.4g", v)
}

func pvalue(p float64) string {
	if p < 1e-4 {
		return "< 0.0001"
	}
	return fmt.Sprintf("%.4f", p)
}

// cell escapes characters that would break a table row.
func cell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}
