package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultsParse(t *testing.T) {
	var cfg map[string]interface{}
	require.NoError(t, yaml.Unmarshal(DefaultConfigYAML, &cfg))
	assert.Contains(t, cfg, "stream")
	assert.Contains(t, cfg, "server")

	var rules map[string]interface{}
	require.NoError(t, yaml.Unmarshal(DefaultGuardrailYAML, &rules))
	assert.Contains(t, rules, "rules")
}
