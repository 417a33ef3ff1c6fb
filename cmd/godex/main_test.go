package main

import "testing"

func TestRun_NoArgsIsMissingInput(t *testing.T) {
	if code := run(nil); code != exitMissingInput {
		t.Errorf("expected exit %d, got %d", exitMissingInput, code)
	}
}

func TestRun_UnknownCommandFails(t *testing.T) {
	if code := run([]string{"frobnicate"}); code != exitFailure {
		t.Errorf("expected exit %d, got %d", exitFailure, code)
	}
}

func TestRun_Help(t *testing.T) {
	if code := run([]string{"help"}); code != exitOK {
		t.Errorf("expected exit %d, got %d", exitOK, code)
	}
}
