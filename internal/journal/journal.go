package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EntryVersion tags journal entries so the format can evolve.
const EntryVersion = 1

// Entry is one recorded action with the state it produced. Pure
// observation output; nothing in the application reads it back at runtime.
type Entry struct {
	Version int    `json:"version"`
	ID      string `json:"id"`
	Action  string `json:"action"`

	CreatedAt time.Time `json:"created_at"`

	State json.RawMessage `json:"state"`
}

// AppendOnlyLog defines the min operations for the action journal.
// Implementations should guarantee ordering of appended entries and be
// concurrent-safe.
type AppendOnlyLog interface {
	Append(ctx context.Context, entries ...Entry) error
	Flush(ctx context.Context) error
	Close() error
}

type FileJournal struct {
	Closed bool

	file *os.File
	wrt  *bufio.Writer

	path string
	mu   sync.Mutex
}

const DefaultBufSize = 64 * 1024
const MaxScanBufSize = 6 * 1024 * 1024

func NewFileJournal(path string) (*FileJournal, error) {
	if path == "" {
		return nil, errors.New("journal: path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open file: %w", err)
	}

	return &FileJournal{
		wrt:  bufio.NewWriterSize(f, DefaultBufSize),
		file: f,
		path: path,
	}, nil
}

func (j *FileJournal) Append(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	// Closed and wrt change under the mutex in Close; checking them
	// before locking races with a concurrent close
	if j.Closed || j.wrt == nil {
		return nil
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("journal: encode entry: %w", err)
		}
		if _, err := j.wrt.Write(data); err != nil {
			return fmt.Errorf("journal: write entry: %w", err)
		}
		if err := j.wrt.WriteByte('\n'); err != nil {
			return fmt.Errorf("journal: write entry: %w", err)
		}
	}
	return nil
}

func (j *FileJournal) Flush(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Closed || j.wrt == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := j.wrt.Flush(); err != nil {
		return fmt.Errorf("journal: flush: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("journal: fsync: %w", err)
	}
	return nil
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil || j.wrt == nil {
		return nil
	}
	combErr := errors.New("journal: close errors")
	gotErr := false

	if err := j.wrt.Flush(); err != nil && !errors.Is(err, os.ErrClosed) {
		combErr = fmt.Errorf("%w: flush: %v", combErr, err)
		gotErr = true
	}
	if err := j.file.Sync(); err != nil {
		combErr = fmt.Errorf("%w: fsync: %v", combErr, err)
		gotErr = true
	}
	if err := j.file.Close(); err != nil {
		combErr = fmt.Errorf("%w: close: %v", combErr, err)
		gotErr = true
	}
	j.wrt = nil
	j.file = nil
	j.Closed = true
	if !gotErr {
		return nil
	}
	return combErr
}

func (j *FileJournal) Path() string {
	return j.path
}

// ReadAll loads every entry from the journal file. Truncated trailing
// lines (crash mid-append) are tolerated and end the read.
func ReadAll(ctx context.Context, path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("journal: readall open: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	buf := make([]byte, 0, DefaultBufSize)
	sc.Buffer(buf, MaxScanBufSize)
	entries := make([]Entry, 0, 256)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bytes := sc.Bytes()
		if len(bytes) == 0 {
			continue
		}

		e := Entry{}
		if err := json.Unmarshal(bytes, &e); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			var se *json.SyntaxError
			if errors.As(err, &se) {
				break
			}
			return nil, fmt.Errorf("journal: decode entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("journal: scan: %w", err)
	}
	return entries, nil
}
