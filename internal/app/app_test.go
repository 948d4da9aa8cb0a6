package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/emarket-next/internal/config"
)

type fakeService struct {
	name     string
	startErr error
	block    bool
	stopped  bool
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(ctx context.Context) error {
	if s.block {
		<-ctx.Done()
		return nil
	}
	return s.startErr
}

func (s *fakeService) Stop(ctx context.Context) error {
	s.stopped = true
	return nil
}

func TestRunnerStopsAllServicesOnFailure(t *testing.T) {
	failing := &fakeService{name: "http", startErr: errors.New("bind failed")}
	waiting := &fakeService{name: "worker", block: true}

	err := NewRunner(failing, waiting).Run(context.Background(), time.Second, nil)
	if err == nil || err.Error() != "bind failed" {
		t.Fatalf("expected start error, got %v", err)
	}
	if !failing.stopped || !waiting.stopped {
		t.Fatalf("all services should be stopped: http=%v worker=%v", failing.stopped, waiting.stopped)
	}
}

func TestRunnerCancelIsClean(t *testing.T) {
	waiting := &fakeService{name: "http", block: true}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewRunner(waiting).Run(ctx, time.Second, nil); err != nil {
		t.Fatalf("cancelled run should return nil, got %v", err)
	}
}

func TestBuildServicesRequiresQueueForWorkerMode(t *testing.T) {
	cfg := &config.Config{}
	if _, err := buildServices(cfg, ModeWorker, nil); err == nil {
		t.Fatalf("worker mode without queue should fail")
	}
	if _, _, err := BuildRunner(cfg, "cron"); err == nil {
		t.Fatalf("unknown mode should fail")
	}
	if _, _, err := BuildRunner(nil, ModeAll); err == nil {
		t.Fatalf("nil config should fail")
	}
}

func TestNormalizeOptionsDefaults(t *testing.T) {
	opts := normalizeOptions(Options{})
	if opts.Mode != ModeAll || opts.ShutdownTimeout != 10*time.Second || opts.Logger == nil {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
}
