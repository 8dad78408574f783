package gateway

import (
	"errors"
	"testing"
)

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand("SUBMIT_JOB alice, render frames ,3,2,2025-03-11")
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd.Verb != VerbSubmitJob {
		t.Fatalf("verb mismatch: %s", cmd.Verb)
	}
	want := []string{"alice", "render frames", "3", "2", "2025-03-11"}
	if len(cmd.Args) != len(want) {
		t.Fatalf("args mismatch: %v", cmd.Args)
	}
	for i := range want {
		if cmd.Args[i] != want[i] {
			t.Fatalf("arg %d = %q, want %q", i, cmd.Args[i], want[i])
		}
	}
}

func TestParseCommandVerbOnly(t *testing.T) {
	cmd, err := ParseCommand("  list_jobs  ")
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd.Verb != VerbListJobs {
		t.Fatalf("verb mismatch: %s", cmd.Verb)
	}
	if len(cmd.Args) != 0 {
		t.Fatalf("expected no args, got %v", cmd.Args)
	}
}

func TestParseCommandEmptyLine(t *testing.T) {
	if _, err := ParseCommand("   "); !errors.Is(err, ErrMalformedCommand) {
		t.Fatalf("expected ErrMalformedCommand, got %v", err)
	}
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2025-03-11")
	if err != nil {
		t.Fatalf("parseDate: %v", err)
	}
	if d.Year() != 2025 || int(d.Month()) != 3 || d.Day() != 11 {
		t.Fatalf("date mismatch: %v", d)
	}

	if _, err := parseDate("Mar 11, 2025"); err == nil {
		t.Fatalf("expected non-ISO date to be rejected")
	}
}
