package cache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const indexFile = "index.db"

// DiskStore persists one file per key under its root directory and keeps TTL
// metadata in an SQLite index next to the files.
//
// Layout:
//
//	<root>/index.db
//	<root>/img/<id>.png
//	<root>/img/eq/<id>.png
type DiskStore struct {
	root    string
	maxSize int64
	db      *sql.DB
	now     func() time.Time

	// mu serializes writers and evictions; readers share it.
	mu sync.RWMutex
}

var _ Store = (*DiskStore)(nil)

// OpenDiskStore opens (or creates) a disk store rooted at dir, bounded to maxSize bytes.
// Opening applies the index schema and nothing else: existing artifacts are not read.
func OpenDiskStore(dir string, maxSize int64, opts ...Option) (*DiskStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if maxSize <= 0 {
		return nil, fmt.Errorf("max size must be positive (got %d)", maxSize)
	}

	root := filepath.Clean(dir)
	for _, kind := range Kinds {
		if err := os.MkdirAll(filepath.Join(root, kind.Dir()), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	dsn := "file:" + filepath.Join(root, indexFile) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite index: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite index: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	o := applyOptions(opts)
	return &DiskStore{
		root:    root,
		maxSize: maxSize,
		db:      db,
		now:     o.now,
	}, nil
}

func runMigrations(db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return err
	}

	_, err = provider.Up(context.Background())
	return err
}

// Get retrieves an artifact by key.
// Returns ErrCacheMiss if the key doesn't exist, is expired or its file has vanished.
func (s *DiskStore) Get(ctx context.Context, key Key) (*Artifact, error) {
	s.mu.RLock()
	row, err := s.lookup(ctx, key)
	if err != nil {
		s.mu.RUnlock()
		if errors.Is(err, sql.ErrNoRows) {
			CacheMisses.WithLabelValues(backendDisk).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues(backendDisk, "get").Inc()
		return nil, fmt.Errorf("query index: %w", err)
	}

	artifact := &Artifact{
		WrittenAt: fromNanos(row.writtenAt),
		ExpiresAt: fromNanos(row.expiresAt),
	}

	if artifact.IsExpiredAt(s.now()) {
		s.mu.RUnlock()
		s.dropIfUnchanged(ctx, key, row, "expired")
		CacheMisses.WithLabelValues(backendDisk).Inc()
		return nil, ErrCacheMiss
	}

	data, err := os.ReadFile(filepath.Join(s.root, row.path))
	s.mu.RUnlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.dropIfUnchanged(ctx, key, row, "orphaned")
			CacheMisses.WithLabelValues(backendDisk).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues(backendDisk, "get").Inc()
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	if int64(len(data)) != row.size {
		CacheErrors.WithLabelValues(backendDisk, "get").Inc()
		return nil, fmt.Errorf("%w: %s has %d bytes, index says %d", ErrInvalidEntry, key, len(data), row.size)
	}

	artifact.Data = data
	CacheHits.WithLabelValues(backendDisk).Inc()
	return artifact, nil
}

// Set writes data to disk atomically, records it in the index and enforces the ceiling.
func (s *DiskStore) Set(ctx context.Context, key Key, data []byte, ttl time.Duration) error {
	if err := validateSet(data, ttl, s.maxSize); err != nil {
		CacheErrors.WithLabelValues(backendDisk, "set").Inc()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rel := key.FileName()
	if err := writeFileAtomic(filepath.Join(s.root, rel), data); err != nil {
		CacheErrors.WithLabelValues(backendDisk, "set").Inc()
		return fmt.Errorf("write artifact: %w", err)
	}

	artifact := newArtifact(data, s.now(), ttl)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO artifacts (cache_key, path, size, written_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		key.String(), rel, artifact.Size(), toNanos(artifact.WrittenAt), toNanos(artifact.ExpiresAt),
	)
	if err != nil {
		CacheErrors.WithLabelValues(backendDisk, "set").Inc()
		_ = os.Remove(filepath.Join(s.root, rel))
		return fmt.Errorf("update index: %w", err)
	}

	if err := s.evictLocked(ctx); err != nil {
		CacheErrors.WithLabelValues(backendDisk, "evict").Inc()
		return fmt.Errorf("evict: %w", err)
	}

	return nil
}

// Delete removes an artifact and its index row.
func (s *DiskStore) Delete(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.removeLocked(ctx, key.String(), key.FileName()); err != nil {
		CacheErrors.WithLabelValues(backendDisk, "delete").Inc()
		return err
	}
	return nil
}

// TotalSize returns the sum of all indexed artifact sizes.
func (s *DiskStore) TotalSize(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalSize(ctx)
}

// Ping checks that the index is reachable.
func (s *DiskStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the SQLite index.
func (s *DiskStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type indexRow struct {
	path      string
	size      int64
	writtenAt int64
	expiresAt int64
}

func (s *DiskStore) lookup(ctx context.Context, key Key) (indexRow, error) {
	var row indexRow
	err := s.db.QueryRowContext(ctx,
		`SELECT path, size, written_at, expires_at FROM artifacts WHERE cache_key = ?`,
		key.String(),
	).Scan(&row.path, &row.size, &row.writtenAt, &row.expiresAt)
	return row, err
}

// dropIfUnchanged removes an entry observed as stale, unless a writer replaced it meanwhile.
func (s *DiskStore) dropIfUnchanged(ctx context.Context, key Key, seen indexRow, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.lookup(ctx, key)
	if err != nil || current.writtenAt != seen.writtenAt {
		return
	}
	if err := s.removeLocked(ctx, key.String(), current.path); err != nil {
		CacheErrors.WithLabelValues(backendDisk, "evict").Inc()
		return
	}
	CacheEvictions.WithLabelValues(backendDisk, reason).Inc()
}

// evictLocked purges expired entries, then the least recently written ones until
// the footprint fits under the ceiling.
func (s *DiskStore) evictLocked(ctx context.Context) error {
	expired, err := s.collect(ctx,
		`SELECT cache_key, path, size FROM artifacts WHERE expires_at <= ?`,
		toNanos(s.now()),
	)
	if err != nil {
		return err
	}
	for _, c := range expired {
		if err := s.removeLocked(ctx, c.key, c.path); err != nil {
			return err
		}
		CacheEvictions.WithLabelValues(backendDisk, "expired").Inc()
	}

	total, err := s.totalSize(ctx)
	if err != nil {
		return err
	}

	if total > s.maxSize {
		oldest, err := s.collect(ctx,
			`SELECT cache_key, path, size FROM artifacts ORDER BY written_at ASC, rowid ASC`,
		)
		if err != nil {
			return err
		}
		for _, c := range oldest {
			if total <= s.maxSize {
				break
			}
			if err := s.removeLocked(ctx, c.key, c.path); err != nil {
				return err
			}
			total -= c.size
			CacheEvictions.WithLabelValues(backendDisk, "ceiling").Inc()
		}
	}

	CacheSize.WithLabelValues(backendDisk).Set(float64(total))
	return nil
}

type candidate struct {
	key  string
	path string
	size int64
}

func (s *DiskStore) collect(ctx context.Context, query string, args ...any) ([]candidate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	defer rows.Close()

	var out []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.key, &c.path, &c.size); err != nil {
			return nil, fmt.Errorf("scan index row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *DiskStore) totalSize(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size), 0) FROM artifacts`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum index sizes: %w", err)
	}
	return total, nil
}

func (s *DiskStore) removeLocked(ctx context.Context, cacheKey, rel string) error {
	if err := os.Remove(filepath.Join(s.root, rel)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove artifact: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE cache_key = ?`, cacheKey); err != nil {
		return fmt.Errorf("delete index row: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Index timestamps are Unix nanoseconds so a stored TTL is not truncated.
func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
