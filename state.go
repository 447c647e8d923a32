package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"i4.energy/across/windsensor/outbox"
)

// SavedState is what survives a restart of the daemon.
type SavedState struct {
	Outbox      outbox.State `json:"outbox"`
	LastBatchAt time.Time    `json:"lastBatchAt,omitzero"`
}

// StateFile stores the uplink state as JSON. An empty Path disables it.
type StateFile struct {
	Path string
}

// Load reads the stored state. A missing file yields an empty state.
func (f StateFile) Load() (SavedState, error) {
	var s SavedState
	if f.Path == "" {
		return s, nil
	}

	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read state file: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("decode state file %s: %w", f.Path, err)
	}
	return s, nil
}

// Save replaces the stored state. The file is written next to its final
// name and renamed, so a power failure leaves either the old or the new
// state behind.
func (f StateFile) Save(s SavedState) error {
	if f.Path == "" {
		return nil
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), filepath.Base(f.Path)+".*")
	if err != nil {
		return fmt.Errorf("create state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
