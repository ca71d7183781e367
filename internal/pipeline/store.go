package pipeline

import (
	"sync"

	"github.com/google/btree"

	"github.com/jhoneycutt/analyze-keyframes/internal/analysis"
)

// storeDegree is the B-tree branching factor.
const storeDegree = 32

// entry orders analyses by frame number.
type entry struct {
	analysis.FrameAnalysis
}

func (e entry) Less(than btree.Item) bool {
	return e.FrameNumber < than.(entry).FrameNumber
}

// Store collects frame analyses from concurrent workers and hands them back
// in ascending frame-number order.
type Store struct {
	mu   sync.Mutex
	tree *btree.BTree
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{tree: btree.New(storeDegree)}
}

// Insert records a. Frame numbers are keys: if a is equal to an entry
// already stored, the stored entry wins and Insert returns false.
func (s *Store) Insert(a analysis.FrameAnalysis) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{a}
	if s.tree.Has(e) {
		return false
	}
	s.tree.ReplaceOrInsert(e)
	return true
}

// Ascend calls fn for each analysis in ascending frame-number order until
// fn returns false. The store is locked for the duration of the walk.
func (s *Store) Ascend(fn func(analysis.FrameAnalysis) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tree.Ascend(func(item btree.Item) bool {
		return fn(item.(entry).FrameAnalysis)
	})
}

// Len returns the number of stored analyses.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Len()
}
