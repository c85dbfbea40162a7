package web

import (
	"html/template"
)

// TemplateData holds the data to be passed to the docs templates.
type TemplateData struct {
	CurrentVersion string
	BuildTime      string
	DocList        []string
	DocTitle       string
	DocContent     template.HTML
	CurrentDoc     string
}

const docsPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{if .DocTitle}}{{.DocTitle}} - {{end}}cmx docs</title>
</head>
<body>
<nav>
<ul>
{{range .DocList}}<li><a href="/docs/{{.}}"{{if eq . $.CurrentDoc}} class="active"{{end}}>{{.}}</a></li>
{{end}}</ul>
</nav>
<main>
{{if .DocContent}}{{.DocContent}}{{else}}<p>Select a document.</p>{{end}}
</main>
<footer>cmx {{.CurrentVersion}} ({{.BuildTime}})</footer>
</body>
</html>
`

// parseTemplates parses the HTML templates.
func parseTemplates() (*template.Template, error) {
	return template.New("docs-view.html").Parse(docsPage)
}
