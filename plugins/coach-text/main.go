// Package main provides a coaching plugin that writes one short correction
// line per error code. Build it into plugins/coach-text/coach-text.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Sign      string          `json:"sign"`
	ErrorCode string          `json:"error_code"`
	UserID    string          `json:"user_id,omitempty"`
	Config    json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success  bool   `json:"success"`
	Feedback string `json:"feedback,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Config selects the voice of the generated line.
type Config struct {
	Tone string `json:"tone"` // warm or direct
}

var corrections = map[string]string{
	"THUMB_HIGH":     "lower your thumb slightly",
	"THUMB_LOW":      "lift your thumb a bit higher",
	"FINGERS_SPREAD": "bring your fingers a little closer together",
	"FINGERS_CLOSED": "spread your fingers out a touch more",
	"WRIST_BEND":     "keep your wrist relaxed and straight",
	"HAND_ANGLE":     "turn your hand to match the angle",
	"ARM_POSITION":   "adjust your arm position",
	"HAND_MISSING":   "hold your hand up where the camera can see it",
	"POSE_MISSING":   "step back so your shoulders are in view",
}

var openers = map[string][]string{
	"warm":   {"Nice effort!", "Almost there!", "Good work!"},
	"direct": {"Correction:"},
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	cfg := Config{Tone: "warm"}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("failed to parse config: %v", err))
			return
		}
	}

	text, err := buildFeedback(req.Sign, req.ErrorCode, cfg.Tone)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}
	writeSuccessResponse(text)
}

// buildFeedback returns the coaching line for code.
func buildFeedback(sign, code, tone string) (string, error) {
	fix, ok := corrections[code]
	if !ok {
		return "", fmt.Errorf("no text for code %q", code)
	}

	opts, ok := openers[tone]
	if !ok {
		opts = openers["warm"]
	}
	// Pick an opener deterministically so repeated requests agree.
	opener := opts[len(sign+code)%len(opts)]

	line := fmt.Sprintf("%s %s", opener, strings.ToUpper(fix[:1])+fix[1:])
	if sign != "" {
		line += fmt.Sprintf(" for %q", sign)
	}
	return line + ".", nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse(text string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Feedback: text})
}
