package report

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
)

// HTMLData contains all data needed for the HTML template.
type HTMLData struct {
	*Report
	GeneratedAt   string
	SeverityClass string
	Uncovered     []ElementRow
	Covered       []ElementRow
	JSONData      template.JS // report JSON for client-side filtering
}

// WriteHTML writes a standalone HTML page for the report.
func WriteHTML(path string, r *Report) error {
	return atomicWrite(path, func(w io.Writer) error { return RenderHTML(w, r) })
}

// RenderHTML renders the report page to w.
func RenderHTML(w io.Writer, r *Report) error {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"pctClass": pctClass,
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	return tmpl.Execute(w, buildHTMLData(r))
}

func buildHTMLData(r *Report) HTMLData {
	data := HTMLData{
		Report:        r,
		GeneratedAt:   r.GeneratedAt.Format("2006-01-02 15:04:05"),
		SeverityClass: r.Summary.Severity,
	}
	for _, e := range r.Elements {
		if e.Covered {
			data.Covered = append(data.Covered, e)
		} else {
			data.Uncovered = append(data.Uncovered, e)
		}
	}

	jsonBytes, _ := json.Marshal(r)
	data.JSONData = template.JS(jsonBytes)
	return data
}

func pctClass(pct int) string {
	switch {
	case pct < 50:
		return "failed"
	case pct < 75:
		return "skipped"
	default:
		return "passed"
	}
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        :root {
            --bg-primary: #ffffff;
            --bg-secondary: #f9fafb;
            --bg-tertiary: #f3f4f6;
            --text-primary: #000000;
            --text-secondary: rgb(75, 85, 99);
            --text-muted: rgb(107, 114, 128);
            --border-color: #e5e7eb;
            --passed: #22c55e;
            --passed-bg: rgba(34, 197, 94, 0.1);
            --failed: #ef4444;
            --failed-bg: rgba(239, 68, 68, 0.08);
            --skipped: #eab308;
            --skipped-bg: rgba(234, 179, 8, 0.1);
            --accent: #06b6d4;
        }

        * {
            box-sizing: border-box;
            margin: 0;
            padding: 0;
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            line-height: 1.5;
        }

        /* Header */
        .header {
            background: var(--bg-secondary);
            border-bottom: 1px solid var(--border-color);
            padding: 16px 24px;
        }

        .header-title-main {
            font-size: 16px;
            font-weight: 500;
        }

        .header-title-sub {
            font-size: 12px;
            color: var(--text-secondary);
        }

        /* Dashboard */
        .dashboard {
            display: flex;
            gap: 24px;
            flex-wrap: wrap;
            align-items: center;
            padding: 16px 24px;
        }

        .big-pct {
            font-size: 48px;
            font-weight: 600;
        }

        .stat-card {
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 6px;
            padding: 10px 16px;
            min-width: 120px;
        }

        .stat-value {
            font-size: 20px;
            font-weight: 600;
        }

        .stat-label {
            font-size: 12px;
            color: var(--text-muted);
        }

        .passed { color: var(--passed); }
        .failed { color: var(--failed); }
        .skipped { color: var(--skipped); }
        .na { color: var(--text-muted); }

        .critical { color: var(--failed); }
        .warning { color: var(--skipped); }
        .good, .excellent { color: var(--passed); }

        section {
            padding: 8px 24px 16px;
        }

        h2 {
            font-size: 14px;
            font-weight: 600;
            margin: 8px 0;
        }

        table {
            width: 100%;
            border-collapse: collapse;
            font-size: 13px;
        }

        th, td {
            text-align: left;
            padding: 6px 8px;
            border-bottom: 1px solid var(--border-color);
        }

        th {
            background: var(--bg-tertiary);
            font-weight: 500;
            color: var(--text-secondary);
        }

        tr.uncovered { background: var(--failed-bg); }
        tr.covered { background: var(--passed-bg); }

        .bar {
            height: 6px;
            background: var(--bg-tertiary);
            border-radius: 3px;
            overflow: hidden;
            width: 120px;
        }

        .bar-fill {
            height: 100%;
            background: var(--accent);
        }

        code {
            font-family: ui-monospace, SFMono-Regular, Menlo, monospace;
            font-size: 12px;
        }

        .muted {
            color: var(--text-muted);
        }

        ul.recs {
            list-style: none;
        }

        ul.recs li {
            padding: 4px 0;
        }

        #filter {
            padding: 6px 10px;
            border: 1px solid var(--border-color);
            border-radius: 6px;
            width: 280px;
            margin-bottom: 8px;
        }
    </style>
</head>
<body>
    <div class="header">
        <div class="header-title-main">{{.Title}}</div>
        <div class="header-title-sub">Generated {{.GeneratedAt}} · source: {{.Source}}</div>
    </div>

    <div class="dashboard">
        <div class="big-pct {{.SeverityClass}}">{{.Summary.CoveragePercentage}}%</div>
        <div class="stat-card"><div class="stat-value">{{.Summary.TotalElements}}</div><div class="stat-label">Elements</div></div>
        <div class="stat-card"><div class="stat-value passed">{{.Summary.CoveredElements}}</div><div class="stat-label">Covered</div></div>
        <div class="stat-card"><div class="stat-value failed">{{len .Uncovered}}</div><div class="stat-label">Uncovered</div></div>
        {{if .Summary.TotalSelectors}}<div class="stat-card"><div class="stat-value">{{.Summary.MatchedSelectors}}/{{.Summary.TotalSelectors}}</div><div class="stat-label">Selectors matched</div></div>{{end}}
    </div>

    {{if .Recommendations}}
    <section>
        <h2>Recommendations</h2>
        <ul class="recs">
        {{range .Recommendations}}<li>▸ {{.}}</li>
        {{end}}
        </ul>
    </section>
    {{end}}

    <section>
        <h2>By type</h2>
        <table>
            <tr><th>Type</th><th>Covered</th><th>Total</th><th>Coverage</th><th></th></tr>
            {{range .Types}}
            <tr>
                <td>{{.Type}}</td><td>{{.Covered}}</td><td>{{.Total}}</td>
                {{if .Applicable}}
                <td class="{{pctClass .Percentage}}">{{.Display}}</td>
                <td><div class="bar"><div class="bar-fill" style="width: {{.Percentage}}%"></div></div></td>
                {{else}}
                <td class="na">{{.Display}}</td><td></td>
                {{end}}
            </tr>
            {{end}}
        </table>
    </section>

    {{if .Pages}}
    <section>
        <h2>By page</h2>
        <table>
            <tr><th>Page</th><th>Covered</th><th>Total</th><th>Coverage</th></tr>
            {{range .Pages}}
            <tr><td>{{.URL}}</td><td>{{.Covered}}</td><td>{{.Total}}</td><td class="{{pctClass .Percentage}}">{{.Percentage}}%</td></tr>
            {{end}}
        </table>
    </section>
    {{end}}

    <section>
        <h2>Elements</h2>
        <input id="filter" type="search" placeholder="Filter by selector, type or name">
        <table id="elements">
            <tr><th>Status</th><th>Type</th><th>Selector</th><th>Name</th><th>Page</th><th>Covered by</th></tr>
            {{range .Uncovered}}
            <tr class="uncovered"><td class="failed">✗</td><td>{{.Type}}</td><td><code>{{.Selector}}</code></td><td>{{.Name}}</td><td class="muted">{{.Page}}</td><td></td></tr>
            {{end}}
            {{range .Covered}}
            <tr class="covered"><td class="passed">✓</td><td>{{.Type}}</td><td><code>{{.Selector}}</code></td><td>{{.Name}}</td><td class="muted">{{.Page}}</td><td class="muted">{{range $i, $b := .CoveredBy}}{{if $i}}, {{end}}{{$b}}{{end}}</td></tr>
            {{end}}
        </table>
    </section>

    {{if .UnmatchedSelectors}}
    <section>
        <h2>Unmatched selectors</h2>
        <table>
            <tr><th>Selector</th><th>Kind</th><th>Location</th></tr>
            {{range .UnmatchedSelectors}}
            <tr><td><code>{{.Selector}}</code></td><td>{{.Kind}}</td><td class="muted">{{.Location}}</td></tr>
            {{end}}
        </table>
    </section>
    {{end}}

    <script>
        const reportData = {{.JSONData}};
        document.getElementById('filter').addEventListener('input', (e) => {
            const q = e.target.value.toLowerCase();
            document.querySelectorAll('#elements tr.covered, #elements tr.uncovered').forEach(row => {
                row.style.display = row.textContent.toLowerCase().includes(q) ? '' : 'none';
            });
        });
    </script>
</body>
</html>
`
