package analyzer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/Ashfaaq98/cortex-analyzer/internal/config"
)

// ResultsVar is the name the report is bound under in templates.
const ResultsVar = "results"

var templateFuncs = template.FuncMap{
	"tojson": func(v interface{}) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
	"tojsonIndent": func(v interface{}, indent int) (string, error) {
		b, err := json.MarshalIndent(v, "", strings.Repeat(" ", indent))
		return string(b), err
	},
}

// Renderer binds reports into operator-supplied HTML templates.
type Renderer struct{}

// NewRenderer returns a Renderer.
func NewRenderer() *Renderer { return &Renderer{} }

// Render executes tmpl with results bound as .results. An empty tmpl uses the bundled default.
// Malformed templates, execution failures and panics from template functions become KindRender errors.
func (r *Renderer) Render(tmpl string, results interface{}) (out string, err error) {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = config.DefaultReportTemplate
	}
	defer func() {
		if rec := recover(); rec != nil {
			out = ""
			err = newError(KindRender, "", "", "template panicked", fmt.Errorf("%v", rec))
		}
	}()

	t, err := template.New("report").Funcs(templateFuncs).Parse(tmpl)
	if err != nil {
		return "", newError(KindRender, "", "", "parse template", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, map[string]interface{}{ResultsVar: results}); err != nil {
		return "", newError(KindRender, "", "", "execute template", err)
	}
	return buf.String(), nil
}

// RenderFragments binds an ordered sequence of report fragments as .results.
func (r *Renderer) RenderFragments(tmpl string, fragments ...interface{}) (string, error) {
	results := make([]interface{}, 0, len(fragments))
	results = append(results, fragments...)
	return r.Render(tmpl, results)
}
