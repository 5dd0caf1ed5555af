package mock

import (
	"context"

	"github.com/linguabridge/linguabridge/pkg/boundary"
	"github.com/linguabridge/linguabridge/pkg/frames"
)

type CaptureConfig struct {
	// Frames may mix audio, text and control frames.
	Frames []frames.Frame
	// Err ends the stream after the scripted frames; nil blocks until ctx.
	Err error
}

// Capture replays scripted frames as a capture device.
type Capture struct {
	cfg CaptureConfig
	idx int
}

func NewCapture(cfg CaptureConfig) *Capture {
	return &Capture{cfg: cfg}
}

func (c *Capture) ReadFrame(ctx context.Context) (frames.Frame, error) {
	if c.idx < len(c.cfg.Frames) {
		f := c.cfg.Frames[c.idx]
		c.idx++
		return f, nil
	}
	if c.cfg.Err != nil {
		return nil, c.cfg.Err
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

var _ boundary.CaptureSource = (*Capture)(nil)
