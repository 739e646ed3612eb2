package report

import (
	"bytes"
	"fmt"
	"html/template"
)

type htmlBuilder struct{}

func (htmlBuilder) Extension() string { return "html" }

func (htmlBuilder) Build(data *reportData) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"pct": func(v float64) string { return fmt.Sprintf("%.2f%%", v*100) },
	"dim": func(w, h int) string { return fmt.Sprintf("%dx%d", w, h) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Visual Regression Report {{.Report.ID}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem; color: #222; }
h1 { font-size: 1.4rem; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #ddd; padding: 0.4rem 0.8rem; text-align: left; }
th { background: #f5f5f5; }
.pass { color: #188038; font-weight: 600; }
.fail { color: #d93025; font-weight: 600; }
.error { color: #e37400; font-weight: 600; }
.artifacts img { max-width: 100%; border: 1px solid #ccc; margin: 0.5rem 0; }
.meta { color: #666; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>Visual Regression Report</h1>
<p class="meta">Run {{.Report.ID}} &middot; {{.Report.StartedAt.Format "2006-01-02 15:04:05 UTC"}} &middot; {{.Duration}}</p>

<table>
<tr><th>Total</th><th>Passed</th><th>Failed</th><th>Errored</th><th>Pass rate</th><th>Avg similarity</th></tr>
<tr>
<td>{{.Report.Summary.TotalTests}}</td>
<td class="pass">{{.Report.Summary.Passed}}</td>
<td class="fail">{{.Report.Summary.Failed}}</td>
<td class="error">{{.Report.Summary.Errored}}</td>
<td>{{pct .PassRate}}</td>
<td>{{pct .AvgSimilarity}}</td>
</tr>
</table>

<h2>Results</h2>
<table>
<tr><th>Status</th><th>Page</th><th>Viewport</th><th>Similarity</th><th>Pixels changed</th><th>Duration</th></tr>
{{range .Report.Results}}
<tr>
{{if .Errored}}<td class="error">ERROR</td>{{else if .Passed}}<td class="pass">PASS</td>{{else}}<td class="fail">FAIL</td>{{end}}
<td>{{.Name}}{{if .FromCache}} <span class="meta">(cached)</span>{{end}}</td>
<td>{{dim .Viewport.Width .Viewport.Height}}</td>
<td>{{pct .SimilarityScore}}</td>
<td>{{.PixelDiffCount}} / {{.TotalPixels}}</td>
<td>{{.Duration}}</td>
</tr>
{{if .Error}}<tr><td colspan="6" class="meta">{{.ErrorKind}}: {{.Error}}</td></tr>{{end}}
{{end}}
</table>

{{if .Failures}}
<h2>Failure artifacts</h2>
{{range .Failures}}
<div class="artifacts">
<h3>{{.Name}} {{dim .Viewport.Width .Viewport.Height}}</h3>
{{if .Artifacts.SideBySide}}<p>Side by side</p><img src="{{.Artifacts.SideBySide}}" alt="side by side">{{end}}
{{if .Artifacts.Overlay}}<p>Overlay</p><img src="{{.Artifacts.Overlay}}" alt="overlay">{{end}}
{{if .Artifacts.DiffMask}}<p>Diff mask</p><img src="{{.Artifacts.DiffMask}}" alt="diff mask">{{end}}
</div>
{{end}}
{{end}}

<p class="meta">Generated {{.GeneratedAt.Format "2006-01-02 15:04:05 UTC"}}</p>
</body>
</html>
`))
