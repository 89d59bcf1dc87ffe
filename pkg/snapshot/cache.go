package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteCache persists a result atomically: write to a temp file in the
// same directory, then rename over the target, so a concurrent reader
// never observes a half-written file. Failures are for the caller to
// log; they must never abort a scrape.
func WriteCache(path string, res *Result) error {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: encode cache: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("snapshot: create cache temp: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("snapshot: write cache temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("snapshot: close cache temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("snapshot: rename cache: %w", err)
	}
	return nil
}

// LoadCache reads a previously persisted result, typically to seed
// Scanner.Restore at startup.
func LoadCache(path string) (*Result, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var res Result
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, fmt.Errorf("snapshot: decode cache: %w", err)
	}
	return &res, nil
}
