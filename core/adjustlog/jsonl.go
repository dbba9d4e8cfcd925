package adjustlog

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kilianp07/shopfloor/core/model"
)

// maxLineBytes bounds a single encoded record.
const maxLineBytes = 4 << 20

// JSONLStore appends records to a size-rotated JSONL file. Queries read the
// active file and every rotated backup.
type JSONLStore struct {
	mu     sync.Mutex
	writer *lumberjack.Logger
	path   string
}

// NewJSONLStore creates a store with rotation options in megabytes and days.
func NewJSONLStore(path string, maxSizeMB, maxBackups, maxAgeDays int) (*JSONLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &JSONLStore{
		path: path,
		writer: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		},
	}, nil
}

// Append writes the records and triggers rotation if needed.
func (s *JSONLStore) Append(_ context.Context, recs ...model.AdjustmentLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(s.writer)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// Query reads all log files including rotated ones.
func (s *JSONLStore) Query(_ context.Context, q LogQuery) ([]model.AdjustmentLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, _, err := s.readAll()
	if err != nil {
		return nil, err
	}
	var res []model.AdjustmentLog
	for _, r := range all {
		if q.match(r) {
			res = append(res, r)
		}
	}
	sortByTime(res)
	return res, nil
}

// Purge rewrites the log without the plan's records. Rotated backups are
// folded back into the active file.
func (s *JSONLStore) Purge(_ context.Context, planID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, files, err := s.readAll()
	if err != nil {
		return 0, err
	}
	if err := s.writer.Close(); err != nil {
		return 0, err
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return 0, err
		}
	}
	sortByTime(all)
	enc := json.NewEncoder(s.writer)
	removed := 0
	for _, r := range all {
		if r.PlanID == planID {
			removed++
			continue
		}
		if err := enc.Encode(r); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func (s *JSONLStore) readAll() ([]model.AdjustmentLog, []string, error) {
	files, err := s.files()
	if err != nil {
		return nil, nil, err
	}
	var res []model.AdjustmentLog
	for _, f := range files {
		file, err := os.Open(f)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			var r model.AdjustmentLog
			if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
				continue
			}
			res = append(res, r)
		}
		_ = file.Close()
	}
	return res, files, nil
}

// files returns the active log and the backups lumberjack writes next to it
// as <name>-<timestamp><ext>.
func (s *JSONLStore) files() ([]string, error) {
	ext := filepath.Ext(s.path)
	backups, err := filepath.Glob(s.path[:len(s.path)-len(ext)] + "-*" + ext)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.path); err == nil {
		backups = append(backups, s.path)
	}
	return backups, nil
}

// Close closes the underlying writer.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Close()
}
