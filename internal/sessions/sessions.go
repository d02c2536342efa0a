// Package sessions persists the UI's tab layout as an opaque JSON blob.
// The core AM subsystem never inspects its contents; it only round-trips
// whatever the client last posted.
package sessions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forgeterm/terminal/internal/storage"
)

func sessionsPath() string {
	return filepath.Join(storage.GetForgeDir(), "sessions.json")
}

// Load returns the last saved session blob, or nil if none has been saved.
func Load() (json.RawMessage, error) {
	path := sessionsPath()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// Save stores the session blob verbatim, overwriting any previous save.
func Save(blob json.RawMessage) error {
	if !json.Valid(blob) {
		return fmt.Errorf("sessions: refusing to save invalid JSON blob")
	}

	dir := storage.GetForgeDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	return os.WriteFile(sessionsPath(), blob, 0600)
}
