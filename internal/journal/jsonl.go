package journal

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"llm-fx-advisor/internal/interfaces"
	"llm-fx-advisor/internal/types"
)

const dayLayout = "2006-01-02"

// JSONL appends one JSON line per advisory to a daily file <dir>/YYYY-MM-DD.jsonl (UTC days).
type JSONL struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

var _ interfaces.Journal = (*JSONL)(nil)

func NewJSONL(dir string) *JSONL {
	if dir == "" {
		dir = "logs/advisories"
	}
	return &JSONL{dir: dir, now: time.Now}
}

func (j *JSONL) Dir() string { return j.dir }

// DayPath is the file holding entries for the UTC day containing t.
func DayPath(dir string, t time.Time) string {
	return filepath.Join(dir, t.UTC().Format(dayLayout)+".jsonl")
}

func (j *JSONL) Record(ctx context.Context, e types.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if e.Time.IsZero() {
		e.Time = j.now()
	}
	e.Time = e.Time.UTC()

	p := DayPath(j.dir, e.Time)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

func (j *JSONL) Close() error { return nil }

// ReadDay loads every entry recorded on day, from the plain or gzipped file.
// A missing file is an empty day, not an error. Malformed lines are skipped.
func ReadDay(dir string, day time.Time) ([]types.JournalEntry, error) {
	p := DayPath(dir, day)
	f, err := os.Open(p)
	var r io.Reader = f
	if errors.Is(err, fs.ErrNotExist) {
		f, err = os.Open(p + ".gz")
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		gz, gerr := gzip.NewReader(f)
		if gerr != nil {
			f.Close()
			return nil, gerr
		}
		defer gz.Close()
		r = gz
	} else if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []types.JournalEntry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e types.JournalEntry
		if json.Unmarshal([]byte(line), &e) == nil {
			out = append(out, e)
		}
	}
	return out, sc.Err()
}

// CompressOlder gzips daily files whose mtime is older than retentionDays.
func CompressOlder(dir string, retentionDays int, now time.Time) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".jsonl" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			return fmt.Errorf("compress %s: %w", p, err)
		}
		return os.Remove(p)
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
