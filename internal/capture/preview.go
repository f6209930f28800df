package capture

import (
	"context"
	"sync"

	"gocv.io/x/gocv"
)

// Preview holds the most recent camera frame as JPEG so the MJPEG stream
// can show what the session sees without reading the camera itself.
type Preview struct {
	mu      sync.Mutex
	jpeg    []byte
	seq     uint64
	changed chan struct{}
}

// NewPreview returns an empty preview.
func NewPreview() *Preview {
	return &Preview{changed: make(chan struct{})}
}

// Publish encodes frame and makes it the latest preview image.
func (p *Preview) Publish(frame *gocv.Mat) error {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return err
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	p.Set(data)
	return nil
}

// Set stores an already encoded JPEG image.
func (p *Preview) Set(jpeg []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jpeg = jpeg
	p.seq++
	close(p.changed)
	p.changed = make(chan struct{})
}

// Latest returns the current image and its sequence number. The sequence is
// zero until the first image arrives.
func (p *Preview) Latest() ([]byte, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jpeg, p.seq
}

// Next waits for an image newer than seq.
func (p *Preview) Next(ctx context.Context, seq uint64) ([]byte, uint64, error) {
	for {
		p.mu.Lock()
		if p.seq > seq {
			jpeg, cur := p.jpeg, p.seq
			p.mu.Unlock()
			return jpeg, cur, nil
		}
		changed := p.changed
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, seq, ctx.Err()
		case <-changed:
		}
	}
}
