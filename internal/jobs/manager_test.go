package jobs

import (
	"testing"

	"whisper-studio/internal/domain"
)

// TestManagerLifecycle verifies normal progression to done state.
func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	if m.IsRunning() {
		t.Fatal("new manager should be idle")
	}

	if err := m.Start("job-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.IsRunning() {
		t.Fatal("expected running after start")
	}

	for _, status := range []domain.JobStatus{
		domain.JobStatusAligning,
		domain.JobStatusDone,
	} {
		if err := m.Transition(status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	current := m.Current()
	if current.Status != domain.JobStatusDone {
		t.Fatalf("current status = %s, want done", current.Status)
	}
	if m.IsRunning() {
		t.Fatal("done job should not report running")
	}
}

// TestManagerRejectsSecondStart checks the re-entrancy guard.
func TestManagerRejectsSecondStart(t *testing.T) {
	m := NewManager()
	if err := m.Start("job-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := m.Start("job-2"); err != ErrJobAlreadyRunning {
		t.Fatalf("second start error = %v, want %v", err, ErrJobAlreadyRunning)
	}
	if m.Current().ID != "job-1" {
		t.Fatalf("current job = %s, want job-1", m.Current().ID)
	}
}

// TestManagerRejectsInvalidTransition checks state machine constraints.
func TestManagerRejectsInvalidTransition(t *testing.T) {
	m := NewManager()
	if err := m.Start("job-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Transition(domain.JobStatusDone); err != nil {
		t.Fatalf("transition to done: %v", err)
	}

	if err := m.Transition(domain.JobStatusAligning); err == nil {
		t.Fatal("expected invalid transition error")
	}
}

// TestManagerRestartAfterFailure checks a failed job can run again.
func TestManagerRestartAfterFailure(t *testing.T) {
	m := NewManager()
	if err := m.Start("job-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Transition(domain.JobStatusFailed); err != nil {
		t.Fatalf("transition to failed: %v", err)
	}

	if err := m.Start("job-2"); err != nil {
		t.Fatalf("restart after failure: %v", err)
	}
	if m.Current().ID != "job-2" {
		t.Fatalf("current job = %s, want job-2", m.Current().ID)
	}
}
