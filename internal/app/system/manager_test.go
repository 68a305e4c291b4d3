package system

import (
	"context"
	"errors"
	"testing"
)

type recordingService struct {
	name   string
	failOn string
	starts *[]string
	stops  *[]string
}

func (s *recordingService) Name() string { return s.name }

func (s *recordingService) Start(context.Context) error {
	if s.failOn == "start" {
		return errors.New("start failed")
	}
	*s.starts = append(*s.starts, s.name)
	return nil
}

func (s *recordingService) Stop(context.Context) error {
	if s.failOn == "stop" {
		return errors.New("stop failed")
	}
	*s.stops = append(*s.stops, s.name)
	return nil
}

func TestManagerStartStopOrder(t *testing.T) {
	var starts, stops []string
	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(&recordingService{name: name, starts: &starts, stops: &stops}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if len(starts) != 3 || starts[0] != "a" || starts[2] != "c" {
		t.Fatalf("unexpected start order %v", starts)
	}
	if len(stops) != 3 || stops[0] != "c" || stops[2] != "a" {
		t.Fatalf("unexpected stop order %v", stops)
	}
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	var starts, stops []string
	m := NewManager()
	_ = m.Register(&recordingService{name: "ok", starts: &starts, stops: &stops})
	_ = m.Register(&recordingService{name: "bad", failOn: "start", starts: &starts, stops: &stops})

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if len(stops) != 1 || stops[0] != "ok" {
		t.Fatalf("expected started services rolled back, got %v", stops)
	}
}

func TestManagerRejectsDuplicatesAndLateRegistration(t *testing.T) {
	var starts, stops []string
	m := NewManager()
	if err := m.Register(&recordingService{name: "dup", starts: &starts, stops: &stops}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(&recordingService{name: "dup", starts: &starts, stops: &stops}); err == nil {
		t.Fatal("expected duplicate rejection")
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Register(&recordingService{name: "late", starts: &starts, stops: &stops}); err == nil {
		t.Fatal("expected late registration rejection")
	}
}
