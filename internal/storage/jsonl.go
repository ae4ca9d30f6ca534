package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"ammclient/internal/model"
)

// JsonlJournal appends submission records to a JSONL file. The latest line
// for a hash wins.
type JsonlJournal struct {
	path string
	mu   sync.Mutex
}

func NewJsonlJournal(path string) *JsonlJournal {
	return &JsonlJournal{path: path}
}

// PutSubmission appends sub as one JSON line.
func (s *JsonlJournal) PutSubmission(_ context.Context, sub model.Submission) error {
	if sub.Hash == "" {
		return fmt.Errorf("submission hash is required")
	}
	line, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write submission: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	return file.Sync()
}

// Submissions returns the latest record for every hash, oldest submission first.
func (s *JsonlJournal) Submissions(_ context.Context) ([]model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *JsonlJournal) readLocked() ([]model.Submission, error) {
	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	latest := make(map[string]model.Submission)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var sub model.Submission
		if err := json.Unmarshal(scanner.Bytes(), &sub); err != nil {
			return nil, fmt.Errorf("journal line %d: %w", lineNo, err)
		}
		if prev, ok := latest[sub.Hash]; ok && sub.SubmittedAt.IsZero() {
			sub.SubmittedAt = prev.SubmittedAt
		}
		latest[sub.Hash] = sub
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	out := make([]model.Submission, 0, len(latest))
	for _, sub := range latest {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].Hash < out[j].Hash
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

// PendingSubmissions returns submissions without a terminal outcome.
func (s *JsonlJournal) PendingSubmissions(ctx context.Context) ([]model.Submission, error) {
	all, err := s.Submissions(ctx)
	if err != nil {
		return nil, err
	}
	pending := all[:0]
	for _, sub := range all {
		if !sub.Terminal() {
			pending = append(pending, sub)
		}
	}
	return pending, nil
}

// Compact rewrites the journal with only the latest record per hash. The
// new file replaces the old one by rename.
func (s *JsonlJournal) Compact(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.readLocked()
	if err != nil {
		return 0, err
	}
	if subs == nil {
		return 0, nil
	}

	tmpPath := s.path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("create journal tmp: %w", err)
	}
	writer := bufio.NewWriter(file)
	for _, sub := range subs {
		line, err := json.Marshal(sub)
		if err != nil {
			file.Close()
			return 0, fmt.Errorf("marshal submission: %w", err)
		}
		writer.Write(line)
		writer.WriteByte('\n')
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		return 0, fmt.Errorf("write journal tmp: %w", err)
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("close journal tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return 0, fmt.Errorf("rename journal: %w", err)
	}
	return len(subs), nil
}
