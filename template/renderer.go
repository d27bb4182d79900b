// Package template renders annotations to markdown for preview
// display using the standard library text/template engine.
package template

import (
	"strings"
	"text/template"

	"github.com/mkrol/marginalia"
)

// Default is the annotation template installed when none is
// configured: blockquoted highlights, the note, then the URI and
// tags on one line.
const Default = `{{range .Quotes}}> {{.}}
{{end}}{{if .Text}}
{{.Text}}
{{end}}
[{{.URI}}]({{.URI}}){{if .Tags}} | {{join .Tags " | "}}{{end}}
`

// Ensure Renderer implements marginalia.Renderer at compile time.
var _ marginalia.Renderer = (*Renderer)(nil)

// Renderer renders annotations through a parsed template.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the template body. The template executes against
// a marginalia.Annotation and may use the "join" function.
func NewRenderer(body string) (*Renderer, error) {
	tmpl, err := template.New("annotation").Funcs(template.FuncMap{
		"join": strings.Join,
	}).Parse(body)
	if err != nil {
		return nil, marginalia.Errorf(marginalia.EINVALID, "invalid annotation template: %v", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render executes the template for one annotation.
func (r *Renderer) Render(a *marginalia.Annotation) (string, error) {
	var sb strings.Builder
	if err := r.tmpl.Execute(&sb, a); err != nil {
		return "", marginalia.Errorf(marginalia.EINTERNAL, "failed to render annotation %q: %v", a.ID, err)
	}
	return sb.String(), nil
}
