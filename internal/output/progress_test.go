package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestSpinner_NonTTYPrintsOnce(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "Starting target")

	s.Start()
	s.Start()
	s.StopWithMessage("✓ Target started")

	got := buf.String()
	if strings.Count(got, "Starting target...") != 1 {
		t.Errorf("expected message once, got %q", got)
	}
	if !strings.HasSuffix(got, "✓ Target started\n") {
		t.Errorf("expected final message, got %q", got)
	}
}

func TestSpinner_StopWithoutStart(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "idle")
	s.Stop()
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
