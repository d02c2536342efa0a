package sessions

import (
	"encoding/json"
	"testing"
)

func TestLoadReturnsNilWhenNoneSaved(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	blob, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if blob != nil {
		t.Errorf("expected nil blob, got %s", blob)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	want := json.RawMessage(`{"tabs":["a","b"],"activeId":"a"}`)
	if err := Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("Load() = %s, want %s", got, want)
	}
}

func TestSaveRejectsInvalidJSON(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := Save(json.RawMessage(`not json`)); err == nil {
		t.Error("expected error saving invalid JSON blob")
	}
}
