package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/researchly/marketscout/models"
)

// Format is an export representation of a completed report.
type Format string

const (
	FormatMarkdown Format = "markdown" // structured text
	FormatJSON     Format = "json"     // machine readable
	FormatHTML     Format = "html"     // visual document
)

// ParseFormat maps a caller-supplied format name onto a supported Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markdown", "md", "":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "html":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: unsupported export format: %s", models.ErrValidation, s)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Render produces the export artifact for a completed research job. Jobs
// that are missing, not completed, or report-less are indistinguishable from
// absent export targets.
func Render(job models.Job, format Format) ([]byte, error) {
	if job.Status != models.StatusCompleted || job.Report == nil {
		return nil, models.ErrJobNotFound
	}
	switch format {
	case FormatMarkdown:
		return renderMarkdown(job), nil
	case FormatJSON:
		return renderJSON(job)
	case FormatHTML:
		return renderHTML(job)
	default:
		return nil, fmt.Errorf("%w: unsupported export format: %s", models.ErrValidation, format)
	}
}

// renderJSON is byte-deterministic for identical report content.
func renderJSON(job models.Job) ([]byte, error) {
	out := struct {
		Query  string         `json:"query"`
		Report *models.Report `json:"report"`
	}{Query: job.Query, Report: job.Report}
	return json.MarshalIndent(out, "", "  ")
}

// renderMarkdown mirrors the section order of the web view and is
// byte-deterministic for identical report content.
func renderMarkdown(job models.Job) []byte {
	r := job.Report
	var b bytes.Buffer

	fmt.Fprintf(&b, "# Market Research Report: %s\n\n---\n\n", job.Query)
	fmt.Fprintf(&b, "## Company Overview\n\n%s\n\n", r.CompanyOverview)

	b.WriteString("## SWOT Analysis\n\n")
	writeBulletSection(&b, "### Strengths", r.SWOT.Strengths)
	writeBulletSection(&b, "### Weaknesses", r.SWOT.Weaknesses)
	writeBulletSection(&b, "### Opportunities", r.SWOT.Opportunities)
	writeBulletSection(&b, "### Threats", r.SWOT.Threats)

	b.WriteString("## Market Trends\n\n")
	for _, trend := range r.Trends {
		fmt.Fprintf(&b, "### %s (%s)\n%s\n\n", trend.Title, trend.Relevance, trend.Description)
	}

	fmt.Fprintf(&b, "## Competitive Landscape\n\n%s\n\n", r.CompetitiveLandscape)

	b.WriteString("## Key Findings\n\n")
	for i, finding := range r.KeyFindings {
		fmt.Fprintf(&b, "%d. %s\n", i+1, finding)
	}

	b.WriteString("\n## Sources\n\n")
	for _, source := range r.Sources {
		fmt.Fprintf(&b, "- [%s](%s)\n", source.Title, source.URL)
	}
	return b.Bytes()
}

func writeBulletSection(b *bytes.Buffer, heading string, items []string) {
	b.WriteString(heading + "\n")
	for _, item := range items {
		b.WriteString("- " + item + "\n")
	}
	b.WriteString("\n")
}

var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Market Research Report: {{.Query}}</title>
</head>
<body>
<h1>Market Research Report: {{.Query}}</h1>
{{if .CompletedAt}}<p><em>Generated on {{.CompletedAt.Format "2006-01-02 15:04 MST"}}</em></p>{{end}}
<hr>
<h2>Company Overview</h2>
<p>{{.Report.CompanyOverview}}</p>
<h2>SWOT Analysis</h2>
<h3>Strengths</h3>
<ul>{{range .Report.SWOT.Strengths}}<li>{{.}}</li>{{end}}</ul>
<h3>Weaknesses</h3>
<ul>{{range .Report.SWOT.Weaknesses}}<li>{{.}}</li>{{end}}</ul>
<h3>Opportunities</h3>
<ul>{{range .Report.SWOT.Opportunities}}<li>{{.}}</li>{{end}}</ul>
<h3>Threats</h3>
<ul>{{range .Report.SWOT.Threats}}<li>{{.}}</li>{{end}}</ul>
<h2>Market Trends</h2>
{{range .Report.Trends}}<h3>{{.Title}} ({{.Relevance}})</h3><p>{{.Description}}</p>
{{end}}<h2>Competitive Landscape</h2>
<p>{{.Report.CompetitiveLandscape}}</p>
<h2>Key Findings</h2>
<ol>{{range .Report.KeyFindings}}<li>{{.}}</li>{{end}}</ol>
<h2>Sources</h2>
<ul>{{range .Report.Sources}}<li><a href="{{.URL}}">{{.Title}}</a></li>{{end}}</ul>
</body>
</html>
`))

// renderHTML keeps section order and content stable; the timestamp line makes
// it non-byte-identical across jobs, which is acceptable for the visual
// format.
func renderHTML(job models.Job) ([]byte, error) {
	var b bytes.Buffer
	if err := htmlTemplate.Execute(&b, job); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
