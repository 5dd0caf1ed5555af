package bridge

import (
	"context"
	"sync"

	"github.com/linguabridge/linguabridge/pkg/boundary"
	"github.com/linguabridge/linguabridge/pkg/frames"
)

// framePipe bridges transport-pushed audio into a segmenter. It is the
// capture source for participants whose audio arrives in discrete
// envelopes rather than from a local device.
type framePipe struct {
	ch   chan frames.Frame
	done chan struct{}
	once sync.Once
	mu   sync.Mutex
	err  error
}

func newFramePipe(buffer int) *framePipe {
	if buffer <= 0 {
		buffer = 32
	}
	return &framePipe{
		ch:   make(chan frames.Frame, buffer),
		done: make(chan struct{}),
	}
}

func (p *framePipe) Push(f frames.Frame) error {
	select {
	case <-p.done:
		return boundary.ErrCaptureUnavailable
	default:
	}
	select {
	case p.ch <- f:
		return nil
	default:
		// Drop rather than stall the transport read loop.
		frames.ReleaseAudioFrame(f)
		return nil
	}
}

// Fail ends the stream; queued frames are still drained first.
func (p *framePipe) Fail(err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	})
}

func (p *framePipe) failErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	return boundary.ErrCaptureUnavailable
}

func (p *framePipe) ReadFrame(ctx context.Context) (frames.Frame, error) {
	select {
	case f := <-p.ch:
		return f, nil
	default:
	}
	select {
	case f := <-p.ch:
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		select {
		case f := <-p.ch:
			return f, nil
		default:
		}
		return nil, p.failErr()
	}
}

var _ boundary.CaptureSource = (*framePipe)(nil)
