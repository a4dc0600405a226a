// Package memory is an in-process LedgerMirror for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"finanzas/internal/core"
	ports "finanzas/internal/sheets"
)

type key struct {
	userID int64
	id     int64
}

type Store struct {
	mu   sync.Mutex
	rows map[key]core.Transaction
	seq  int
}

var _ ports.LedgerMirror = (*Store)(nil)

func New() *Store {
	return &Store{rows: make(map[key]core.Transaction)}
}

// AppendTransaction stores t once and returns a synthetic row reference.
func (s *Store) AppendTransaction(_ context.Context, t core.Transaction) (string, error) {
	if t.ID <= 0 {
		return "", fmt.Errorf("transaction has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{userID: t.UserID, id: t.ID}
	if _, ok := s.rows[k]; !ok {
		s.rows[k] = t
		s.seq++
	}
	return fmt.Sprintf("mem:%d:%d", t.UserID, t.ID), nil
}

func (s *Store) RemoveTransaction(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, key{userID: userID, id: id})
	return nil
}

// Rows returns the mirrored rows of userID ordered by id.
func (s *Store) Rows(userID int64) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.rows))
	for k, t := range s.rows {
		if k.userID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Appends counts distinct rows ever written.
func (s *Store) Appends() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}
