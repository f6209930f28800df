package tray

import (
	"strings"
	"testing"

	"github.com/ayusman/mudra/internal/coach"
	"github.com/ayusman/mudra/internal/compare"
	"github.com/ayusman/mudra/internal/session"
)

func TestTray_Toggle(t *testing.T) {
	tr := New("hello")
	if !tr.IsEnabled() {
		t.Fatal("new tray should be enabled")
	}

	var got []bool
	tr.OnToggle(func(enabled bool) { got = append(got, enabled) })

	tr.handleToggle()
	tr.handleToggle()

	if len(got) != 2 || got[0] || !got[1] {
		t.Errorf("toggle callbacks = %v, want [false true]", got)
	}
	if !tr.IsEnabled() {
		t.Error("tray should be enabled after two toggles")
	}
}

func TestTray_OpenCallback(t *testing.T) {
	tr := New("hello")
	tr.handleOpen()

	called := false
	tr.OnOpen(func() { called = true })
	tr.handleOpen()
	if !called {
		t.Error("open callback not called")
	}
}

func TestTray_UpdateBeforeReady(t *testing.T) {
	tr := New("hello")
	tr.Update(session.Update{Result: compare.Result{Score: 50}})
}

func TestTitles(t *testing.T) {
	if toggleTitle(true) == toggleTitle(false) {
		t.Error("toggle titles should differ")
	}

	tests := []struct {
		name      string
		update    session.Update
		wantScore string
		wantHint  string
	}{
		{
			name:      "good match",
			update:    session.Update{Result: compare.Result{Score: 96, PartsCompared: 1, ErrorCode: compare.CodeNone}, Stats: session.Stats{Average: 90.4}},
			wantScore: "Score: 96 (avg 90)",
			wantHint:  "Looks good",
		},
		{
			name:      "no data",
			update:    session.Update{Result: compare.NoData()},
			wantScore: "Score: -",
			wantHint:  "No landmarks",
		},
		{
			name:      "missing hand",
			update:    session.Update{Result: compare.Result{ErrorCode: compare.CodeHandMissing}},
			wantScore: "Score: -",
			wantHint:  "Show your hand",
		},
		{
			name: "deviation",
			update: session.Update{Result: compare.Result{
				Score: 40, PartsCompared: 1, ErrorCode: compare.CodeThumbLow,
				WorstJoint: "thumb_ip", WorstError: 32.4,
			}},
			wantScore: "Score: 40",
			wantHint:  "THUMB_LOW (thumb_ip off by 32°)",
		},
		{
			name: "coaching text wins",
			update: session.Update{
				Result:   compare.Result{Score: 40, PartsCompared: 1, ErrorCode: compare.CodeThumbLow},
				Feedback: &coach.Feedback{Text: "Raise your thumb."},
			},
			wantScore: "Score: 40",
			wantHint:  "Raise your thumb.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoreTitle(tt.update); !strings.HasPrefix(got, tt.wantScore) {
				t.Errorf("scoreTitle() = %q, want prefix %q", got, tt.wantScore)
			}
			if got := hintTitle(tt.update); !strings.HasPrefix(got, tt.wantHint) {
				t.Errorf("hintTitle() = %q, want prefix %q", got, tt.wantHint)
			}
		})
	}
}
