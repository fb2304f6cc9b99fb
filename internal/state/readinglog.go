package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tonimelisma/ttsu-sync/internal/readlog"
)

// LoadLog returns the persisted reading log. A missing log is empty; a
// corrupt one is an error, because saving over it would lose history.
func (s *Store) LoadLog(ctx context.Context) ([]readlog.Record, error) {
	raw, ok, err := s.Get(ctx, KeyReadingLog)
	if err != nil {
		return nil, err
	}

	if !ok || raw == "" {
		return []readlog.Record{}, nil
	}

	var log []readlog.Record
	if err := json.Unmarshal([]byte(raw), &log); err != nil {
		return nil, fmt.Errorf("state: decoding %s: %w", KeyReadingLog, err)
	}

	if log == nil {
		log = []readlog.Record{}
	}

	return log, nil
}

// LoadRecentBooks returns the persisted recent-books list. The list is a
// derived view, so a corrupt value is logged and treated as empty.
func (s *Store) LoadRecentBooks(ctx context.Context) []string {
	raw, ok, err := s.Get(ctx, KeyRecentBooks)
	if err != nil {
		s.logger.Warn("reading recent books failed", slog.String("error", err.Error()))
		return []string{}
	}

	if !ok || raw == "" {
		return []string{}
	}

	var books []string
	if err := json.Unmarshal([]byte(raw), &books); err != nil {
		s.logger.Warn("corrupt recent books, resetting", slog.String("error", err.Error()))
		return []string{}
	}

	if books == nil {
		books = []string{}
	}

	return books
}

// SaveLog writes the reading log and recent books in one transaction.
func (s *Store) SaveLog(ctx context.Context, log []readlog.Record, recent []string) error {
	if log == nil {
		log = []readlog.Record{}
	}

	if recent == nil {
		recent = []string{}
	}

	logJSON, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("state: encoding reading log: %w", err)
	}

	recentJSON, err := json.Marshal(recent)
	if err != nil {
		return fmt.Errorf("state: encoding recent books: %w", err)
	}

	if err := s.Apply(ctx, map[string]string{
		KeyReadingLog:  string(logJSON),
		KeyRecentBooks: string(recentJSON),
	}, nil); err != nil {
		return err
	}

	s.logger.Debug("reading log saved",
		slog.Int("records", len(log)),
		slog.Int("recent_books", len(recent)),
	)

	return nil
}
