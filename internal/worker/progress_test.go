package worker

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestProgressStartStep(t *testing.T) {
	p := NewProgress(12, false)
	p.StartStep(2, "height")

	if p.current != 2 {
		t.Errorf("expected current=2, got %d", p.current)
	}
	if p.label != "height" {
		t.Errorf("expected label=height, got %q", p.label)
	}
	if p.percent != 0 {
		t.Errorf("expected percent reset to 0, got %v", p.percent)
	}
}

func TestProgressCallbackUpdatesPercent(t *testing.T) {
	p := NewProgress(12, false)
	p.StartStep(0, "normalize")
	cb := p.Callback()
	cb(42)

	if p.percent != 42 {
		t.Errorf("expected percent=42, got %v", p.percent)
	}
}

func TestProgressPrintContainsStageLabel(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(12, true)
	p.output = &buf
	p.StartStep(3, "rivers")
	p.Callback()(50)

	output := buf.String()
	if !strings.Contains(output, "rivers") {
		t.Errorf("expected stage label in output, got: %s", output)
	}
	if !strings.Contains(output, "4/12") {
		t.Errorf("expected 1-based stage count in output, got: %s", output)
	}
}

func TestProgressDisabledProducesNoOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(12, false)
	p.output = &buf
	p.StartStep(0, "normalize")
	p.Callback()(50)

	if buf.Len() != 0 {
		t.Errorf("expected no output when disabled, got: %s", buf.String())
	}
}

func TestProgressDoneEndsWithNewline(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(1, true)
	p.output = &buf
	p.StartStep(0, "normalize")
	p.Callback()(100)
	buf.Reset()

	p.Done()

	if !strings.HasSuffix(buf.String(), "\n") {
		t.Errorf("expected output to end with newline, got: %q", buf.String())
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		expected string
		duration time.Duration
	}{
		{duration: 30 * time.Second, expected: "30s"},
		{duration: 90 * time.Second, expected: "1m30s"},
		{duration: 5 * time.Minute, expected: "5m0s"},
		{duration: 65 * time.Minute, expected: "1h5m"},
		{duration: 2*time.Hour + 30*time.Minute, expected: "2h30m"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatDuration(tt.duration)
			if result != tt.expected {
				t.Errorf("formatDuration(%v) = %s, want %s", tt.duration, result, tt.expected)
			}
		})
	}
}
