package analyzer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	cases := map[string]IndicatorKind{
		"domain":          IndicatorDomain,
		"Hostname":        IndicatorDomain,
		"ip-src":          IndicatorIP,
		" ip-dst ":        IndicatorIP,
		"md5":             IndicatorHash,
		"sha256":          IndicatorHash,
		"filename|sha256": IndicatorHash,
		"hash":            IndicatorHash,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "email", "filename|domain", "url"} {
		_, err := ParseKind(in)
		assert.True(t, errors.Is(err, ErrUnsupportedKind), in)
	}
}

func TestIndicatorString(t *testing.T) {
	assert.Equal(t, "domain:evil.example", Indicator{Value: "evil.example", Kind: IndicatorDomain}.String())
}

func TestNewRequest(t *testing.T) {
	req := NewRequest(Indicator{Value: "d41d8cd98f00b204e9800998ecf8427e", Kind: IndicatorHash})
	assert.Equal(t, "hash", req.DataType)
	assert.Equal(t, 1, req.TLP)
	assert.True(t, req.Force)
}

func TestErrorMatching(t *testing.T) {
	err := newError(KindPollTimeout, "a", "J9", "late", nil)
	assert.True(t, errors.Is(err, ErrPollTimeout))
	assert.False(t, errors.Is(err, ErrRender))
	assert.False(t, err.Fatal())
	assert.Equal(t, "poll_timeout: late (analyzer=a job=J9)", err.Error())

	wrapped := newError(KindEngine, "", "J9", "get job status", errBoom)
	assert.True(t, errors.Is(wrapped, errBoom))
	assert.True(t, wrapped.Fatal())
	assert.Equal(t, "engine_error: get job status (job=J9): boom", wrapped.Error())

	assert.False(t, errors.Is(ErrRender, newError(KindRender, "", "", "x", nil)))
}
