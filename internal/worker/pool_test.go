package worker

import (
	"errors"
	"testing"
	"time"
)

func waitForTerminal(t *testing.T, r *Registry, id string) Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		j, ok := r.Get(id)
		if !ok {
			t.Fatalf("job %s vanished", id)
		}
		switch j.State {
		case StateCompleted, StateFailed, StateCancelled:
			return j
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", id)
	return Job{}
}

func TestRegistrySubmitCompletes(t *testing.T) {
	r := NewRegistry(2)
	id := r.Submit(func(report ProgressFunc, cancelled func() bool) (interface{}, error) {
		report(50, "working")
		return "done", nil
	})

	j := waitForTerminal(t, r, id)
	if j.State != StateCompleted {
		t.Errorf("expected completed, got %s", j.State)
	}
	if j.Result != "done" {
		t.Errorf("expected result 'done', got %v", j.Result)
	}
}

func TestRegistrySubmitFails(t *testing.T) {
	r := NewRegistry(2)
	id := r.Submit(func(report ProgressFunc, cancelled func() bool) (interface{}, error) {
		return nil, errors.New("boom")
	})

	j := waitForTerminal(t, r, id)
	if j.State != StateFailed {
		t.Errorf("expected failed, got %s", j.State)
	}
	if j.Err != "boom" {
		t.Errorf("expected err 'boom', got %q", j.Err)
	}
}

func TestRegistryCancel(t *testing.T) {
	r := NewRegistry(2)
	started := make(chan struct{})
	id := r.Submit(func(report ProgressFunc, cancelled func() bool) (interface{}, error) {
		close(started)
		for !cancelled() {
			time.Sleep(time.Millisecond)
		}
		return nil, nil
	})

	<-started
	if !r.Cancel(id) {
		t.Fatalf("expected Cancel to find the job")
	}

	j := waitForTerminal(t, r, id)
	if j.State != StateCancelled {
		t.Errorf("expected cancelled, got %s", j.State)
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry(1)
	if _, ok := r.Get("nonexistent"); ok {
		t.Errorf("expected unknown job id to report ok=false")
	}
}
