package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/weatherservice/internal/config"
	"github.com/i474232898/weatherservice/internal/weather"
)

type countingCollector struct {
	calls int32
	err   error
}

func (c *countingCollector) CollectAndStore(context.Context) (weather.CollectionResult, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.err != nil {
		return weather.CollectionResult{}, c.err
	}
	return weather.CollectionResult{Total: 3, Valid: 2}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce(t *testing.T) {
	c := &countingCollector{}
	s := New(config.Scheduling{IntervalMinutes: 10, StartMinute: 5}, c, time.Second, quietLogger())

	res, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Valid != 2 || atomic.LoadInt32(&c.calls) != 1 {
		t.Fatalf("unexpected result %+v after %d calls", res, c.calls)
	}
}

func TestRunOnceReturnsCollectorError(t *testing.T) {
	c := &countingCollector{err: errors.New("feed down")}
	s := New(config.Scheduling{}, c, time.Second, quietLogger())

	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestStartAndStop(t *testing.T) {
	c := &countingCollector{}
	s := New(config.Scheduling{IntervalMinutes: 10, StartMinute: 5}, c, time.Second, quietLogger())

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.IsRunning() {
		t.Fatalf("scheduler should be running")
	}
	s.Stop()
	if s.IsRunning() {
		t.Fatalf("scheduler should be stopped")
	}
}

func TestNewNormalizesSchedule(t *testing.T) {
	s := New(config.Scheduling{IntervalMinutes: 0, StartMinute: 99}, &countingCollector{}, 0, nil)
	if s.cfg.IntervalMinutes != config.DefaultIntervalMinutes || s.cfg.StartMinute != config.DefaultStartMinute {
		t.Fatalf("schedule not normalized: %+v", s.cfg)
	}
	if s.timeout <= 0 {
		t.Fatalf("default timeout not applied")
	}
}
