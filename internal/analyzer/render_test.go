package analyzer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderIsDeterministic(t *testing.T) {
	r := NewRenderer()
	results := map[string]interface{}{"verdict": "malicious", "score": 97.0, "tags": []interface{}{"c2", "phishing"}}

	first, err := r.Render("", results)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.Render("", results)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Contains(t, first, "malicious")
}

func TestRenderCustomTemplate(t *testing.T) {
	r := NewRenderer()
	out, err := r.Render(`<b>{{ .results.verdict }}</b> {{ tojson .results.tags }}`, map[string]interface{}{
		"verdict": "clean",
		"tags":    []string{"a"},
	})
	require.NoError(t, err)
	assert.Equal(t, `<b>clean</b> [&#34;a&#34;]`, out)
}

func TestRenderEscapesReportContent(t *testing.T) {
	out, err := NewRenderer().Render(`<p>{{ .results.note }}</p>`, map[string]interface{}{"note": "<script>alert(1)</script>"})
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}

func TestRenderIndentedJSON(t *testing.T) {
	out, err := NewRenderer().Render(`{{ tojsonIndent .results 2 }}`, map[string]interface{}{"a": 1})
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "\n  &#34;a&#34;: 1"), out)
}

func TestRenderMalformedTemplate(t *testing.T) {
	r := NewRenderer()
	_, err := r.Render("{{ if }", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRender))

	_, err = r.Render("{{ index .results.list 5 }}", map[string]interface{}{"list": []int{1}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRender))
}

func TestRenderFragments(t *testing.T) {
	out, err := NewRenderer().RenderFragments(`{{ range .results }}[{{ . }}]{{ end }}`, "one", "two")
	require.NoError(t, err)
	assert.Equal(t, "[one][two]", out)
}
