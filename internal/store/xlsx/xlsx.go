package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"shopdesk/backend/internal/store"
)

// retryDelays are the waits before each retry of a locked write.
var retryDelays = []time.Duration{200 * time.Millisecond, 400 * time.Millisecond, 600 * time.Millisecond}

type Option func(*Store)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Store) { s.log = logger }
}

func WithObserver(observer store.Observer) Option {
	return func(s *Store) { s.observer = observer }
}

// Store keeps every sheet in a single workbook. Each read loads the whole
// file and each write rewrites it.
type Store struct {
	mu       sync.RWMutex
	path     string
	log      logrus.FieldLogger
	observer store.Observer

	save  func(path string, f *excelize.File) error
	sleep func(ctx context.Context, d time.Duration) error
}

var _ store.Repository = (*Store)(nil)

func New(path string, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: data file path is empty", store.ErrInvalid)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{
		path:     path,
		log:      logrus.StandardLogger(),
		observer: store.NopObserver{},
		save:     saveAtomic,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) ReadSheet(ctx context.Context, name string) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	tables, err := s.load()
	if err != nil {
		return nil, err
	}
	t, ok := findTable(tables, name)
	if !ok {
		return []store.Record{}, nil
	}
	return t.records(), nil
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

	tables, err := s.load()
	if err != nil {
		return err
	}
	current := []store.Record{}
	if t, ok := findTable(tables, name); ok {
		current = t.records()
	}
	next, err := fn(current)
	if err != nil {
		return err
	}

	tables = replaceTable(tables, tableFromRecords(name, next))
	err = s.persist(ctx, name, tables)
	s.observer.SheetWritten(name, err)
	return err
}

func (s *Store) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tables, err := s.load()
	if err != nil {
		return err
	}
	for _, name := range store.Sheets {
		if name == store.SheetUsers {
			continue
		}
		tables = replaceTable(tables, tableFromRecords(name, nil))
	}
	err = s.persist(ctx, "*", tables)
	s.observer.SheetWritten("*", err)
	return err
}

// Export streams the workbook file as stored on disk.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return store.ErrNotFound
		}
		return err
	}
	defer file.Close()
	_, err = io.Copy(w, file)
	return err
}

// legacyFiles maps the per-entity workbooks used before the unified file.
var legacyFiles = []struct {
	file  string
	sheet string
}{
	{"users.xlsx", store.SheetUsers},
	{"products.xlsx", store.SheetProducts},
	{"categories.xlsx", store.SheetCategories},
	{"repairs.xlsx", store.SheetRepairs},
	{"bills.xlsx", store.SheetBills},
	{"sales.xlsx", store.SheetSales},
	{"shop-settings.xlsx", store.SheetShopSettings},
	{"others.xlsx", store.SheetOthers},
	{"other-categories.xlsx", store.SheetOtherCategories},
}

// MigrateLegacy copies the first sheet of each per-entity workbook in dir into
// the unified workbook, for sheets the workbook does not have yet. It returns
// the names of the migrated sheets.
func (s *Store) MigrateLegacy(ctx context.Context, dir string) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tables, err := s.load()
	if err != nil {
		return nil, err
	}

	migrated := make([]string, 0)
	for _, legacy := range legacyFiles {
		if _, ok := findTable(tables, legacy.sheet); ok {
			continue
		}
		rows, err := readFirstSheet(filepath.Join(dir, legacy.file))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			s.log.WithError(err).WithField("file", legacy.file).Warn("skipping legacy workbook")
			continue
		}
		tables = append(tables, table{name: legacy.sheet, rows: rows})
		migrated = append(migrated, legacy.sheet)
	}
	if len(migrated) == 0 {
		return migrated, nil
	}

	if err := s.persist(ctx, "*", tables); err != nil {
		return nil, err
	}
	s.log.WithField("sheets", migrated).Info("migrated legacy workbooks")
	return migrated, nil
}

func readFirstSheet(path string) ([][]any, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tables, err := readTables(f)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, nil
	}
	return tables[0].rows, nil
}

func (s *Store) load() ([]table, error) {
	if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return readTables(f)
}

// persist saves the workbook, retrying while the file is locked by another
// program.
func (s *Store) persist(ctx context.Context, sheet string, tables []table) error {
	f, err := build(tables)
	if err != nil {
		return err
	}
	defer f.Close()

	for attempt := 0; ; attempt++ {
		err := s.save(s.path, f)
		if err == nil {
			return nil
		}
		if !isLockError(err) {
			return fmt.Errorf("save workbook: %w", err)
		}
		if attempt >= len(retryDelays) {
			s.log.WithError(err).WithField("sheet", sheet).Error("workbook still locked, giving up")
			return store.ErrLocked
		}
		s.observer.LockRetried(sheet)
		s.log.WithField("sheet", sheet).WithField("attempt", attempt+1).Warn("workbook locked, retrying")
		if err := s.sleep(ctx, retryDelays[attempt]); err != nil {
			return err
		}
	}
}

func saveAtomic(path string, f *excelize.File) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".shopdesk-*.xlsx")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := f.Write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isLockError(err error) bool {
	if errors.Is(err, syscall.EBUSY) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "locked") ||
		strings.Contains(msg, "busy") ||
		strings.Contains(msg, "being used by another process")
}
