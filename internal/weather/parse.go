package weather

import (
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
)

// ArchiveTimeLayout is the timestamp layout written by the collector.
const ArchiveTimeLayout = "2006-01-02 15:04:05"

// ParseCSV reads headerless archive rows (timestamp,city,temperature,description)
// and returns one Observation per non-empty row. A malformed row never aborts
// the rest of the file.
func ParseCSV(r io.Reader, logger *slog.Logger) []Observation {
	if logger == nil {
		logger = slog.Default()
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var out []Observation
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				logger.Warn("skipping malformed archive row", "line", perr.Line, "error", err)
				continue
			}
			logger.Warn("archive read aborted", "error", err)
			break
		}
		if isBlankRecord(record) {
			continue
		}
		out = append(out, ParseObservation(record))
	}
	return out
}

// ParseObservation maps positional fields onto an Observation. Missing fields
// become empty strings and extra fields are ignored.
func ParseObservation(fields []string) Observation {
	field := func(i int) string {
		if i < len(fields) {
			return strings.TrimSpace(fields[i])
		}
		return ""
	}

	ts, _ := ParseTimestamp(field(0))
	return Observation{
		Timestamp:   ts,
		Location:    field(1),
		Temperature: ParseTemperature(field(2)),
		Description: field(3),
	}
}

// ParseTimestamp interprets "YYYY-MM-DD HH:MM:SS" (or ISO-8601) as UTC when no
// zone is present. The second return value is false when s is unusable.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if len(s) == len(time.DateOnly) {
		ts, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return time.Time{}, false
		}
		return ts.UTC(), true
	}

	iso := strings.Replace(s, " ", "T", 1)
	if !hasZone(iso) {
		iso += "Z"
	}
	ts, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		return time.Time{}, false
	}
	return ts.UTC(), true
}

// ParseTemperature returns NaN when s is not a decimal number.
func ParseTemperature(s string) Temperature {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return Temperature(math.NaN())
	}
	return Temperature(f)
}

// FormatTimestamp renders t in the archive layout, always in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(ArchiveTimeLayout)
}

// FormatTemperature renders a temperature the way archive rows store it.
func FormatTemperature(t Temperature) string {
	if t.IsNaN() {
		return ""
	}
	return strconv.FormatFloat(float64(t), 'f', -1, 64)
}

func hasZone(iso string) bool {
	idx := strings.IndexByte(iso, 'T')
	if idx < 0 {
		return false
	}
	clock := iso[idx+1:]
	return strings.HasSuffix(clock, "Z") || strings.ContainsAny(clock, "+-")
}

// isBlankRecord matches a line with no delimiters and nothing but whitespace.
// Rows made of bare delimiters (",,,") are kept.
func isBlankRecord(record []string) bool {
	return len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "")
}
