package memory

import (
	"context"
	"io"
	"sync"

	"shopdesk/backend/internal/store"
	"shopdesk/backend/internal/store/xlsx"
)

// Store keeps sheets in process memory. Used for tests and DATA_FILE=:memory:.
type Store struct {
	mu       sync.RWMutex
	sheets   map[string][]store.Record
	observer store.Observer
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		sheets:   map[string][]store.Record{},
		observer: store.NopObserver{},
	}
}

// NewSeeded returns a store preloaded with copies of the given sheets.
func NewSeeded(sheets map[string][]store.Record) *Store {
	s := New()
	for name, rows := range sheets {
		s.sheets[sheetName(name)] = store.CloneRecords(rows)
	}
	return s
}

func (s *Store) SetObserver(observer store.Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = observer
}

func (s *Store) ReadSheet(ctx context.Context, name string) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return store.CloneRecords(s.sheets[sheetName(name)]), nil
}

func (s *Store) WriteSheet(ctx context.Context, name string, records []store.Record) error {
	return s.Mutate(ctx, name, func([]store.Record) ([]store.Record, error) {
		return records, nil
	})
}

func (s *Store) NextID(ctx context.Context, name string) (int, error) {
	rows, err := s.ReadSheet(ctx, name)
	if err != nil {
		return 0, err
	}
	return store.NextID(rows), nil
}

func (s *Store) Mutate(ctx context.Context, name string, fn store.MutateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sheetName(name)
	next, err := fn(store.CloneRecords(s.sheets[key]))
	if err != nil {
		return err
	}
	s.sheets[key] = store.CloneRecords(next)
	s.observer.SheetWritten(key, nil)
	return nil
}

func (s *Store) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range store.Sheets {
		if name == store.SheetUsers {
			continue
		}
		s.sheets[name] = []store.Record{}
	}
	s.observer.SheetWritten("*", nil)
	return nil
}

// Export renders the current sheets as a workbook.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	snapshot := make(map[string][]store.Record, len(s.sheets))
	for name, rows := range s.sheets {
		snapshot[name] = store.CloneRecords(rows)
	}
	s.mu.RUnlock()
	return xlsx.Encode(w, snapshot)
}

func sheetName(name string) string {
	if canonical, ok := store.CanonicalSheet(name); ok {
		return canonical
	}
	return name
}
