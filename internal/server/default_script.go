package server

import (
	"fmt"

	"github.com/stwalsh4118/demoreel/internal/api"
	"github.com/stwalsh4118/demoreel/internal/config"
	"github.com/stwalsh4118/demoreel/internal/script"
)

// BuiltinScriptName is the stored name of the built-in demo
const BuiltinScriptName = "Clustal"

// LoadDefaultScript resolves the script played by sessions that do not name
// one: the configured script file when set, otherwise the built-in demo.
func LoadDefaultScript(cfg config.PlayerConfig) (api.DefaultScript, error) {
	if cfg.ScriptPath == "" {
		return api.DefaultScript{Name: BuiltinScriptName, Timeline: script.Clustal()}, nil
	}

	timeline, def, err := script.LoadFile(cfg.ScriptPath)
	if err != nil {
		return api.DefaultScript{}, fmt.Errorf("failed to load default script: %w", err)
	}

	name := def.Name
	if name == "" {
		name = def.ID
	}
	return api.DefaultScript{Name: name, Timeline: timeline}, nil
}
