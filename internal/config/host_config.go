package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/titanous/json5"
)

// DefaultHostConfigPath is the MCP host configuration file that register
// writes into when no --host-config is given.
const DefaultHostConfigPath = "~/.claude.json"

// MCPServerEntry is one entry under "mcpServers" in a host config.
type MCPServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// RegisterMCPServer adds or replaces mcpServers[name] in the host config at
// path, keeping every other key. It reports whether the file changed.
// A missing file is created.
func RegisterMCPServer(path, name string, entry MCPServerEntry) (bool, error) {
	path = ExpandHome(path)

	doc := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(data) > 0 {
			if err := json5.Unmarshal(data, &doc); err != nil {
				return false, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	case os.IsNotExist(err):
	default:
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	servers, _ := doc["mcpServers"].(map[string]any)
	if servers == nil {
		servers = map[string]any{}
	}

	want, err := toGeneric(entry)
	if err != nil {
		return false, err
	}
	if existing, ok := servers[name]; ok && reflect.DeepEqual(existing, want) {
		return false, nil
	}
	servers[name] = want
	doc["mcpServers"] = servers

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	mode := os.FileMode(0o600)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, out, mode); err != nil {
		return false, err
	}
	return true, nil
}

// toGeneric round-trips v through JSON so it compares equal to values
// decoded from a file.
func toGeneric(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
