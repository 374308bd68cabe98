package archive

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/i474232898/weather-archive/internal/weather"
)

// FileName is the archive file name for a city and year.
func FileName(city string, year int) string {
	return city + "_" + strconv.Itoa(year) + ".csv"
}

// Writer appends observations to the on-disk archive and keeps index.json
// in step. It is safe for concurrent use.
type Writer struct {
	dir string
	mu  sync.Mutex
}

// NewWriter returns a Writer rooted at dir, creating it if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Append writes one row to {city}_{year}.csv, the year taken from the
// observation's UTC timestamp.
func (w *Writer) Append(city string, o weather.Observation) error {
	if !o.HasTimestamp() {
		return errors.New("archive: observation has no timestamp")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	path := filepath.Join(w.dir, FileName(city, o.Timestamp.UTC().Year()))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open archive file: %w", err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{
		weather.FormatTimestamp(o.Timestamp),
		o.Location,
		weather.FormatTemperature(o.Temperature),
		o.Description,
	}); err != nil {
		_ = f.Close()
		return fmt.Errorf("write archive row: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush archive row: %w", err)
	}
	return f.Close()
}

// UpdateIndex records that city has data for year and stamps last_updated
// with the given day.
func (w *Writer) UpdateIndex(city string, year int, day time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	path := filepath.Join(w.dir, "index.json")
	idx := Index{Cities: map[string][]int{}}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &idx); err != nil {
			return fmt.Errorf("decode index: %w", err)
		}
		if idx.Cities == nil {
			idx.Cities = map[string][]int{}
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("read index: %w", err)
	}

	years := idx.Cities[city]
	if !slices.Contains(years, year) {
		years = append(years, year)
		slices.Sort(years)
	}
	idx.Cities[city] = years
	idx.LastUpdated = day.UTC().Format(time.DateOnly)

	out, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	tmp, err := os.CreateTemp(w.dir, "index-*.json")
	if err != nil {
		return fmt.Errorf("create index temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("chmod index: %w", err)
	}
	if _, err := tmp.Write(append(out, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close index: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
