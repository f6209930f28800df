// Package plugin discovers and runs external coaching-text generators.
//
// A plugin is a directory holding a plugin.json manifest and an executable.
// The executable receives one Request as JSON on stdin and must print one
// Response as JSON on stdout.
package plugin

import "encoding/json"

// Manifest describes a plugin's metadata and the error codes it can explain.
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Executable  string `json:"executable"`
	// Codes lists the error codes the plugin writes text for. Empty means all.
	Codes  []string        `json:"codes,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Request is sent to a plugin for one coaching message.
type Request struct {
	Sign      string          `json:"sign"`
	ErrorCode string          `json:"error_code"`
	UserID    string          `json:"user_id,omitempty"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// Response is the plugin's reply.
type Response struct {
	Success  bool   `json:"success"`
	Feedback string `json:"feedback,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Plugin is a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Supports reports whether the plugin handles code.
func (p *Plugin) Supports(code string) bool {
	if len(p.Manifest.Codes) == 0 {
		return true
	}
	for _, c := range p.Manifest.Codes {
		if c == code {
			return true
		}
	}
	return false
}
