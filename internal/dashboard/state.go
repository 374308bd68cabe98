// Package dashboard holds the interactive state of one dashboard session:
// the city/year selection, pending and committed filters, the loaded dataset
// and everything derived from them.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/weather-archive/internal/archive"
	"github.com/i474232898/weather-archive/internal/observability"
	"github.com/i474232898/weather-archive/internal/weather"
)

// DefaultDebounce is how long filter edits settle before they are committed.
const DefaultDebounce = 300 * time.Millisecond

var (
	// ErrSuperseded is returned by SetSelection when a newer selection was
	// issued before this one finished loading. Its result is discarded.
	ErrSuperseded = errors.New("selection superseded by a newer one")

	// ErrBoundsUnknown is returned when a quick range is requested before any
	// observation with a timestamp has been loaded.
	ErrBoundsUnknown = errors.New("date bounds unknown")

	// ErrClosed is returned once the state has been closed.
	ErrClosed = errors.New("dashboard state closed")
)

// DatasetLoader loads a Dataset for a Selection.
type DatasetLoader interface {
	Load(ctx context.Context, sel archive.Selection) (weather.Dataset, archive.Report, error)
}

// Options tune a State. Zero values select the defaults.
type Options struct {
	Debounce         time.Duration
	LineThreshold    int
	ScatterThreshold int
	Clock            clockwork.Clock
	Logger           *slog.Logger
	Metrics          *observability.Metrics
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.LineThreshold <= 0 {
		o.LineThreshold = weather.DefaultLineThreshold
	}
	if o.ScatterThreshold <= 0 {
		o.ScatterThreshold = weather.DefaultScatterThreshold
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// State is a concurrency-safe dashboard session.
type State struct {
	mu     sync.RWMutex
	loader DatasetLoader
	opts   Options

	selection archive.Selection
	pending   weather.FilterSpec
	committed weather.FilterSpec

	dataset weather.Dataset
	loaded  bool
	report  archive.Report
	loadErr error

	inFlight   int
	issued     uint64
	cancelLoad context.CancelFunc

	debounce  clockwork.Timer
	filterSeq uint64

	closed bool
}

// New creates an empty State.
func New(loader DatasetLoader, opts Options) *State {
	return &State{
		loader:  loader,
		opts:    opts.withDefaults(),
		dataset: weather.Dataset{},
	}
}

// SetSelection replaces the selection and loads its dataset. Any load still
// running for an older selection is cancelled; only the most recently issued
// selection is ever applied.
func (s *State) SetSelection(ctx context.Context, sel archive.Selection) error {
	sel = sel.Normalize()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.issued++
	gen := s.issued
	if s.cancelLoad != nil {
		s.cancelLoad()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	s.cancelLoad = cancel
	s.selection = sel
	s.inFlight++
	s.mu.Unlock()

	var (
		data   = weather.Dataset{}
		report archive.Report
		err    error
	)
	if len(sel.Cities) > 0 {
		data, report, err = s.loader.Load(loadCtx, sel)
	}
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--

	if gen != s.issued || s.closed {
		s.recordLoad("superseded")
		return ErrSuperseded
	}
	s.cancelLoad = nil

	if err != nil {
		s.clearDatasetLocked(sel, err)
		s.recordLoad("failed")
		s.opts.Logger.Warn("dataset load failed", "cities", sel.Cities, "error", err)
		return err
	}

	s.applyDatasetLocked(data, report)
	if report.AnyFailed() {
		s.recordLoad("partial")
	} else {
		s.recordLoad("ok")
	}
	return nil
}

// applyDatasetLocked installs a freshly loaded dataset, recomputes the
// observed bounds and prunes selected descriptions that no longer occur.
func (s *State) applyDatasetLocked(data weather.Dataset, report archive.Report) {
	s.dataset = data
	s.loaded = true
	s.report = report
	s.loadErr = nil

	bounds := weather.ComputeDateBounds(data)
	s.pending = s.pruneLocked(s.pending.WithObservedBounds(bounds))
	s.committed = s.pruneLocked(s.committed.WithObservedBounds(bounds))
}

// clearDatasetLocked replaces the dataset with an empty one keyed by the
// selected cities after a failed load, so the view never shows data of a
// previous selection. Selected descriptions are left alone.
func (s *State) clearDatasetLocked(sel archive.Selection, err error) {
	data := make(weather.Dataset, len(sel.Cities))
	for _, city := range sel.Cities {
		data[city] = []weather.Observation{}
	}
	s.dataset = data
	s.report = archive.Report{}
	s.loadErr = err
	s.pending = s.pending.WithObservedBounds(weather.DateBounds{})
	s.committed = s.committed.WithObservedBounds(weather.DateBounds{})
}

func (s *State) pruneLocked(spec weather.FilterSpec) weather.FilterSpec {
	if !s.loaded || len(spec.SelectedDescriptions) == 0 {
		return spec
	}
	counts := weather.ComputeDescriptionFrequencies(s.dataset, spec.StartTime, spec.EndTime)
	spec.SelectedDescriptions = weather.PruneDescriptions(spec.SelectedDescriptions, counts)
	return spec
}

// UpdateFilters replaces the pending filters and (re)arms the debounce timer.
// The committed filters change only when the timer fires or CommitFilters is
// called. Observed bounds in spec are ignored.
func (s *State) UpdateFilters(spec weather.FilterSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	spec = spec.Normalize()
	spec.ObservedMinTime = s.pending.ObservedMinTime
	spec.ObservedMaxTime = s.pending.ObservedMaxTime
	s.pending = spec.Clone()

	s.filterSeq++
	seq := s.filterSeq
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = s.opts.Clock.AfterFunc(s.opts.Debounce, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if seq != s.filterSeq || s.closed {
			return
		}
		s.commitLocked()
	})
}

// CommitFilters commits the pending filters immediately.
func (s *State) CommitFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.filterSeq++
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	s.commitLocked()
}

func (s *State) commitLocked() {
	s.pending = s.pruneLocked(s.pending)
	s.committed = s.pending.Clone()
}

// ApplyQuickRange sets the date range to a preset window and commits it.
func (s *State) ApplyQuickRange(r weather.QuickRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	bounds := weather.ComputeDateBounds(s.dataset)
	if bounds.IsEmpty() {
		return ErrBoundsUnknown
	}
	start, end, err := r.Window(bounds, s.opts.Clock.Now())
	if err != nil {
		return err
	}

	spec := s.pending.Clone()
	spec.StartTime, spec.EndTime = &start, &end
	s.pending = spec

	s.filterSeq++
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	s.commitLocked()
	return nil
}

// Selection returns the current selection.
func (s *State) Selection() archive.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection
}

// PendingFilters returns a copy of the filters being edited.
func (s *State) PendingFilters() weather.FilterSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending.Clone()
}

// CommittedFilters returns a copy of the filters currently applied.
func (s *State) CommittedFilters() weather.FilterSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed.Clone()
}

// Loading reports whether any selection load is in flight.
func (s *State) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight > 0
}

// View derives the dashboard view from a consistent snapshot of the state.
func (s *State) View() View {
	s.mu.RLock()
	snap := Snapshot{
		Selection:        s.selection,
		Pending:          s.pending.Clone(),
		Committed:        s.committed.Clone(),
		Dataset:          s.dataset,
		Report:           s.report,
		LoadErr:          s.loadErr,
		Loading:          s.inFlight > 0,
		Now:              s.opts.Clock.Now(),
		LineThreshold:    s.opts.LineThreshold,
		ScatterThreshold: s.opts.ScatterThreshold,
	}
	s.mu.RUnlock()
	return Derive(snap)
}

// Close stops the debounce timer and cancels any in-flight load.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
}

func (s *State) recordLoad(outcome string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.DashboardLoads.WithLabelValues(outcome).Inc()
	}
}
