package logging

import "testing"

func TestNewDefaultsToInfo(t *testing.T) {
	logger := New("not-a-level")
	if logger == nil || logger.Logger == nil {
		t.Fatal("expected a usable logger for unknown levels")
	}
}

func TestWithComponentReturnsChild(t *testing.T) {
	parent := New("debug")
	child := parent.WithComponent("slots")
	if child == nil || child.Logger == nil {
		t.Fatal("expected child logger")
	}
	if child == parent {
		t.Fatal("expected a distinct child logger")
	}
}
