// Package assets embeds the files written on first run.
package assets

import "embed"

//go:embed defaults/*.yaml
var defaults embed.FS

var (
	// DefaultConfigYAML seeds ~/.shai/config.yaml.
	DefaultConfigYAML = mustRead("defaults/config.yaml")
	// DefaultGuardrailYAML seeds the guardrail rules file.
	DefaultGuardrailYAML = mustRead("defaults/guardrail.yaml")
)

func mustRead(name string) []byte {
	data, err := defaults.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return data
}
