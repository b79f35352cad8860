package web

import (
	"html/template"
	"time"
)

const statusTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>prm {{.CurrentVersion}}</title></head>
<body>
<h1>Payment recorder <small>{{.CurrentVersion}}</small></h1>
{{if .BuildTime}}<p>Built {{.BuildTime}}</p>{{end}}
<h2>Recent payments</h2>
{{if .Recent}}
<table>
<tr><th>Time</th><th>Sender</th><th>Recipient</th><th>Amount</th></tr>
{{range .Recent}}<tr><td>{{millis .Payment.Timestamp}}</td><td>{{.Payment.Sender}}</td><td>{{.Payment.Recipient}}</td><td>{{.Payment.Amount}}</td></tr>
{{end}}</table>
{{else}}<p>No payments recorded yet.</p>{{end}}
{{if .DocList}}<h2>Docs</h2><ul>{{range .DocList}}<li><a href="/docs/{{.}}">{{.}}</a></li>{{end}}</ul>{{end}}
</body>
</html>`

// parseTemplates parses the built-in status page.
func parseTemplates() (*template.Template, error) {
	return template.New("status").Funcs(template.FuncMap{
		"millis": func(ms uint64) string {
			return time.UnixMilli(int64(ms)).UTC().Format(time.RFC3339)
		},
	}).Parse(statusTemplate)
}
