package timeline

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	lm "github.com/ayusman/mudra/internal/landmark"
)

// recording is the on-disk JSON layout produced by the recording pipeline.
type recording struct {
	SignName            string           `json:"sign_name,omitempty"`
	ProcessingTimestamp string           `json:"processing_timestamp,omitempty"`
	FPS                 float64          `json:"fps"`
	FrameCount          int              `json:"frame_count"`
	Duration            float64          `json:"duration"`
	Frames              []recordingFrame `json:"frames"`
}

type recordingFrame struct {
	FrameIndex int      `json:"frame_index"`
	Timestamp  float64  `json:"timestamp"`
	Pose       lm.Set   `json:"pose"`
	Hands      []lm.Set `json:"hands"`
}

// Decode reads a recording and returns a validated timeline. When sign is
// empty the name stored in the recording is used.
func Decode(r io.Reader, sign string) (*Timeline, error) {
	var rec recording
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidTimeline, err)
	}

	if sign == "" {
		sign = rec.SignName
	}
	tl := &Timeline{
		Sign:      sign,
		FrameRate: rec.FPS,
		Duration:  rec.Duration,
		Frames:    make([]Frame, 0, len(rec.Frames)),
	}
	for _, f := range rec.Frames {
		fr := Frame{Index: f.FrameIndex, Timestamp: f.Timestamp, Pose: f.Pose}
		if len(f.Hands) > 0 {
			fr.Hand = f.Hands[0]
		}
		tl.Frames = append(tl.Frames, fr)
	}

	if err := tl.Validate(); err != nil {
		return nil, err
	}
	return tl, nil
}

// Encode writes tl in the recording layout.
func Encode(w io.Writer, tl *Timeline) error {
	rec := recording{
		SignName:            tl.Sign,
		ProcessingTimestamp: time.Now().UTC().Format(time.RFC3339),
		FPS:                 tl.FrameRate,
		FrameCount:          len(tl.Frames),
		Duration:            tl.Span(),
		Frames:              make([]recordingFrame, len(tl.Frames)),
	}
	for i, f := range tl.Frames {
		rf := recordingFrame{FrameIndex: f.Index, Timestamp: f.Timestamp, Pose: f.Pose, Hands: []lm.Set{}}
		if len(f.Hand) > 0 {
			rf.Hands = []lm.Set{f.Hand}
		}
		rec.Frames[i] = rf
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encode timeline: %w", err)
	}
	return nil
}
