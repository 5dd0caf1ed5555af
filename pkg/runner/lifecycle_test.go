package runner

import (
	"context"
	"testing"
	"time"
)

type recordingDrainer struct {
	drained chan struct{}
	block   chan struct{}
}

func (d *recordingDrainer) Drain() error {
	if d.block != nil {
		<-d.block
	}
	close(d.drained)
	return nil
}

func TestLifecycleRunnerRunsHooksAndDrains(t *testing.T) {
	drainer := &recordingDrainer{drained: make(chan struct{})}
	var started, stopped bool
	r := NewLifecycleRunner(drainer, Hooks{
		OnStart: func() { started = true },
		OnStop:  func() { stopped = true },
	}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	deadline := time.After(time.Second)
	for r.State() != StateRunning {
		select {
		case <-deadline:
			t.Fatalf("runner never reached StateRunning, state=%d", r.State())
		case <-time.After(5 * time.Millisecond):
		}
	}
	if !started {
		t.Fatalf("OnStart hook not called")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	select {
	case <-drainer.drained:
	default:
		t.Fatalf("drainer not invoked")
	}
	if !stopped {
		t.Fatalf("OnStop hook not called")
	}
	if got := r.State(); got != StateStopped {
		t.Fatalf("state = %d, want StateStopped", got)
	}
}

func TestLifecycleRunnerRejectsDoubleRun(t *testing.T) {
	r := NewLifecycleRunner(nil, Hooks{}, time.Second)
	go r.Run(context.Background())
	for r.State() == StateNew {
		time.Sleep(time.Millisecond)
	}
	if err := r.Run(context.Background()); err == nil {
		t.Fatalf("second Run() = nil, want error")
	}
	_ = r.Stop()
}

func TestLifecycleRunnerDrainTimeout(t *testing.T) {
	drainer := &recordingDrainer{drained: make(chan struct{}), block: make(chan struct{})}
	r := NewLifecycleRunner(drainer, Hooks{}, 20*time.Millisecond)
	go r.Run(context.Background())
	for r.State() != StateRunning {
		time.Sleep(time.Millisecond)
	}
	if err := r.Stop(); err == nil {
		t.Fatalf("Stop() = nil, want drain timeout error")
	}
	close(drainer.block)
}
