package script

import (
	_ "embed"
)

//go:embed template/default_script.yaml
var defaultScript []byte

// Default returns the built-in lead qualification script.
func Default(bindings map[string]string) (*Graph, error) {
	return Parse(defaultScript, bindings)
}
