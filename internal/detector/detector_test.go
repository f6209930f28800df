package detector

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	lm "github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/landmark/landmarktest"
)

func handJSON(t *testing.T, s lm.Set) string {
	t.Helper()
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestParseResponse(t *testing.T) {
	palm := handJSON(t, landmarktest.OpenPalm())
	thumbs := handJSON(t, landmarktest.ThumbsUp())
	pose := handJSON(t, landmarktest.ArmsDown())

	tests := []struct {
		name      string
		line      string
		maxHands  int
		wantHands int
		wantPose  bool
		wantErr   bool
	}{
		{"nothing detected", `{"hands":[],"pose":null}`, 2, 0, false, false},
		{"one hand", `{"hands":[{"points":` + palm + `,"handedness":"Right","score":0.97}]}`, 2, 1, false, false},
		{"two hands and pose", `{"hands":[{"points":` + palm + `},{"points":` + thumbs + `}],"pose":` + pose + `}`, 2, 2, true, false},
		{"max hands", `{"hands":[{"points":` + palm + `},{"points":` + thumbs + `}]}`, 1, 1, false, false},
		{"empty hand skipped", `{"hands":[{"points":[]},{"points":` + thumbs + `}]}`, 2, 1, false, false},
		{"service error", `{"error":"decode failed"}`, 2, 0, false, true},
		{"malformed", `{"hands":`, 2, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := parseResponse([]byte(tt.line), tt.maxHands)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(obs.Hands) != tt.wantHands {
				t.Errorf("hands = %d, want %d", len(obs.Hands), tt.wantHands)
			}
			if (obs.Pose != nil) != tt.wantPose {
				t.Errorf("pose present = %v, want %v", obs.Pose != nil, tt.wantPose)
			}
		})
	}
}

func TestParseResponse_KeepsPoints(t *testing.T) {
	pose := landmarktest.ArmsDown()
	pose[lm.LeftShoulder].Visibility = 0.75
	line := `{"hands":[{"points":` + handJSON(t, landmarktest.ThumbsUp()) + `}],"pose":` + handJSON(t, pose) + `}`

	obs, err := parseResponse([]byte(line), 2)
	if err != nil {
		t.Fatalf("parseResponse() error = %v", err)
	}
	if got, want := obs.Hands[0][lm.ThumbTip], landmarktest.ThumbsUp()[lm.ThumbTip]; got != want {
		t.Errorf("thumb tip = %+v, want %+v", got, want)
	}
	if obs.Pose[lm.LeftShoulder].Visibility != 0.75 {
		t.Errorf("visibility = %v, want 0.75", obs.Pose[lm.LeftShoulder].Visibility)
	}
}

// fakeService reads one length-prefixed frame and answers with reply.
func fakeService(t *testing.T, in io.Reader, out io.WriteCloser, reply string) <-chan []byte {
	got := make(chan []byte, 1)
	go func() {
		defer out.Close()
		var n uint32
		if err := binary.Read(in, binary.BigEndian, &n); err != nil {
			t.Errorf("read length: %v", err)
			return
		}
		frame := make([]byte, n)
		if _, err := io.ReadFull(in, frame); err != nil {
			t.Errorf("read frame: %v", err)
			return
		}
		got <- frame
		io.WriteString(out, reply+"\n")
	}()
	return got
}

func TestExchange(t *testing.T) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	line := `{"hands":[{"points":` + handJSON(t, landmarktest.OpenPalm()) + `}]}`
	got := fakeService(t, reqR, respW, line)

	frame := []byte("\xff\xd8fake jpeg\xff\xd9")
	obs, err := exchange(reqW, bufio.NewReader(respR), frame, 2)
	if err != nil {
		t.Fatalf("exchange() error = %v", err)
	}
	if sent := <-got; !bytes.Equal(sent, frame) {
		t.Errorf("service received %q, want %q", sent, frame)
	}
	if len(obs.Hands) != 1 || len(obs.Hands[0]) != lm.HandPoints {
		t.Errorf("obs = %d hands", len(obs.Hands))
	}
}

func TestExchange_ClosedPipe(t *testing.T) {
	respR, respW := io.Pipe()
	respW.Close()

	_, err := exchange(io.Discard, bufio.NewReader(respR), []byte("x"), 2)
	if err == nil || !strings.Contains(err.Error(), "read response") {
		t.Errorf("exchange() error = %v, want read failure", err)
	}
}

func TestNewMediaPipeDetector_MissingScript(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Script = filepath.Join(t.TempDir(), "nope.py")
	if _, err := NewMediaPipeDetector(cfg, nil); err == nil {
		t.Error("expected error for missing script")
	}
}

func TestMockDetector(t *testing.T) {
	m := NewMockDetector()

	obs, err := m.Detect(nil)
	if err != nil || !obs.Empty() {
		t.Errorf("default Detect() = %+v, %v", obs, err)
	}

	want := lm.Observation{Hands: []lm.Set{landmarktest.OpenPalm()}}
	m.SetObservation(want)
	obs, err = m.Detect(nil)
	if err != nil || len(obs.Hands) != 1 {
		t.Errorf("Detect() = %+v, %v", obs, err)
	}

	boom := errors.New("boom")
	m.SetError(boom)
	if _, err := m.Detect(nil); !errors.Is(err, boom) {
		t.Errorf("Detect() error = %v, want boom", err)
	}
	if m.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", m.Calls())
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
