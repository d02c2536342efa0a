package terminal

import (
	"testing"
	"time"
)

func TestAutoresponderMenuPrompt(t *testing.T) {
	a := NewAutoresponder()
	a.SetEnabled(true)

	a.Feed([]byte("╭──────────╮\n│ Do you want to run this command? │\n│ ❯ 1. Yes  │\n│   2. No   │\n╰──────────╯\nConfirm with number keys or Enter\n"))

	time.Sleep(autorespondQuiescence + 50*time.Millisecond)

	got := a.Check()
	if string(got) != "\r" {
		t.Fatalf("Check() = %q, want %q", got, "\r")
	}
}

func TestAutoresponderYesNoPrompt(t *testing.T) {
	a := NewAutoresponder()
	a.SetEnabled(true)

	a.Feed([]byte("Are you sure? [Y/n] "))
	time.Sleep(autorespondQuiescence + 50*time.Millisecond)

	got := a.Check()
	if string(got) != "y\r" {
		t.Fatalf("Check() = %q, want %q", got, "y\r")
	}
}

func TestAutoresponderEchoSuppression(t *testing.T) {
	a := NewAutoresponder()
	a.SetEnabled(true)

	a.Feed([]byte("Are you sure? [Y/n] "))
	time.Sleep(autorespondQuiescence + 50*time.Millisecond)
	if got := a.Check(); string(got) != "y\r" {
		t.Fatalf("first Check() = %q, want %q", got, "y\r")
	}
	a.NoteOwnSend()

	a.Feed([]byte("Are you sure? [Y/n] "))
	time.Sleep(autorespondQuiescence + 50*time.Millisecond)

	if got := a.Check(); got != nil {
		t.Fatalf("expected suppressed reply within echo window, got %q", got)
	}
}

func TestAutoresponderDisabledNeverResponds(t *testing.T) {
	a := NewAutoresponder()

	a.Feed([]byte("Are you sure? [Y/n] "))
	time.Sleep(autorespondQuiescence + 50*time.Millisecond)

	if got := a.Check(); got != nil {
		t.Fatalf("expected no response while disabled, got %q", got)
	}
}

func TestAutoresponderCheckOnlyOncePerQuietPeriod(t *testing.T) {
	a := NewAutoresponder()
	a.SetEnabled(true)

	a.Feed([]byte("Are you sure? [Y/n] "))
	time.Sleep(autorespondQuiescence + 50*time.Millisecond)

	first := a.Check()
	second := a.Check()
	if first == nil {
		t.Fatal("expected first check to match")
	}
	if second != nil {
		t.Fatalf("expected second check in same quiet period to be nil, got %q", second)
	}
}
