package output

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// HistoryEntry is one line of the history file.
type HistoryEntry struct {
	RunID        string    `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	Target       string    `json:"target"`
	Concurrency  int       `json:"concurrency"`
	DurationMs   float64   `json:"duration_ms"`
	Total        int64     `json:"total"`
	Failed       int64     `json:"failed"`
	Reads        int64     `json:"reads"`
	Writes       int64     `json:"writes"`
	QPS          float64   `json:"qps"`
	AvgLatencyMs float64   `json:"avg_latency_ms"`
	P99LatencyMs float64   `json:"p99_latency_ms"`
	Passed       bool      `json:"passed"`
}

func historyEntry(r Report) HistoryEntry {
	return HistoryEntry{
		RunID:        r.RunID,
		StartedAt:    r.StartedAt,
		Target:       r.Settings.Target,
		Concurrency:  r.Settings.Concurrency,
		DurationMs:   r.Stats.DurationMs,
		Total:        r.Stats.Total,
		Failed:       r.Stats.Failures,
		Reads:        r.Stats.ReadOperations,
		Writes:       r.Stats.WriteOperations,
		QPS:          r.Stats.RequestsPerSec,
		AvgLatencyMs: r.Stats.MeanLatencyMs,
		P99LatencyMs: r.Stats.P99LatencyMs,
		Passed:       r.Passed,
	}
}

// AppendHistory appends a summary of r to the JSON-lines file at path.
// A sibling ".lock" file serialises concurrent runs sharing one history.
func AppendHistory(path string, r Report) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("history: %w", err)
		}
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("history: lock: %w", err)
	}
	defer lock.Unlock()

	line, err := json.Marshal(historyEntry(r))
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("history: %w", err)
	}
	return f.Close()
}

// ReadHistory loads every entry, oldest first. A missing file is an empty
// history.
func ReadHistory(path string) ([]HistoryEntry, error) {
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("history: lock: %w", err)
	}
	defer lock.Unlock()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer f.Close()

	var entries []HistoryEntry
	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e HistoryEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("history: line %d: %w", n, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return entries, nil
}
