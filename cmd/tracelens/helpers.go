package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tracelens/adapters/store"
)

// openStore opens the configured run database, creating its parent
// directory on first use.
func openStore() (*store.SqlStore, error) {
	if dir := filepath.Dir(rootFlags.dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	s, err := store.Open(rootFlags.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", rootFlags.dbPath, err)
	}
	return s, nil
}

// rangeDays expands an inclusive [from, to] date range into its
// calendar days.
func rangeDays(from, to string) ([]string, error) {
	start, err := store.ParseDate(from)
	if err != nil {
		return nil, fmt.Errorf("--from: %w", err)
	}
	end, err := store.ParseDate(to)
	if err != nil {
		return nil, fmt.Errorf("--to: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("date range inverted: %s after %s", from, to)
	}
	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(store.DateLayout))
	}
	return days, nil
}

// splitProjects parses a comma-separated --project value.
func splitProjects(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// checkTokenFile warns when the API key file is readable by other users.
func checkTokenFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("API key file not found: %s\n\n"+
			"Save your platform API key:  echo '<YOUR_KEY>' > %s && chmod 600 %s\n", path, path, path)
	}
	if err != nil {
		return fmt.Errorf("check API key file: %w", err)
	}
	if perm := info.Mode().Perm(); perm&0o044 != 0 {
		fmt.Fprintf(os.Stderr, "WARNING: %s is readable by group/others (mode %04o). Run: chmod 600 %s\n", path, perm, path)
	}
	return nil
}

// defaultDateRange returns the last n days ending today (UTC).
func defaultDateRange(n int) (from, to string) {
	now := time.Now().UTC()
	return now.AddDate(0, 0, -(n - 1)).Format(store.DateLayout), now.Format(store.DateLayout)
}
