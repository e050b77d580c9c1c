package logging

import "testing"

func TestNew(t *testing.T) {
	for _, dev := range []bool{true, false} {
		logger, err := New(dev, "debug")
		if err != nil {
			t.Fatalf("New(%v) error = %v", dev, err)
		}
		if !logger.Core().Enabled(-1) {
			t.Fatalf("debug level should be enabled")
		}
	}
}

func TestNewDefaultLevel(t *testing.T) {
	logger, err := New(false, "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if logger.Core().Enabled(-1) {
		t.Fatalf("debug should be disabled at the default level")
	}
}

func TestNewBadLevel(t *testing.T) {
	if _, err := New(false, "chatty"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
