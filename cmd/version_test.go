package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ashfaaq98/cortex-analyzer/internal/config"
)

func TestWriteVersion(t *testing.T) {
	saved := build
	t.Cleanup(func() { build = saved })

	build.version, build.date = "", ""
	var buf bytes.Buffer
	writeVersion(&buf)
	assert.Contains(t, buf.String(), "cortex-analyzer dev")
	assert.Contains(t, buf.String(), config.ModuleName)
	assert.Contains(t, buf.String(), config.InterfaceVersion)
	assert.NotContains(t, buf.String(), "built:")

	build.version, build.date = "v1.2.0", "2026-10-01T12:00:00Z"
	buf.Reset()
	writeVersion(&buf)
	assert.Contains(t, buf.String(), "cortex-analyzer v1.2.0")
	assert.Contains(t, buf.String(), "built:     2026-10-01T12:00:00Z")
}
