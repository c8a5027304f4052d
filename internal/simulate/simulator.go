// File: internal/simulate/simulator.go
// Package simulate applies stylesheet breakpoint rules to a document at an
// arbitrary viewport width, without a browser doing the evaluation.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mqsim/internal/config"
	"github.com/xkilldash9x/mqsim/internal/css"
	"github.com/xkilldash9x/mqsim/internal/dom"
)

// ErrSuperseded reports that a newer Update started while this pass was still
// fetching; the stale pass abandoned its work without applying anything.
var ErrSuperseded = errors.New("simulation pass superseded by a newer update")

// TextFetcher retrieves the text contents of a URL.
type TextFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Measurer reports the current viewport width in pixels. Code that needs the
// viewport width takes a Measurer instead of asking the environment directly,
// so a Simulator can stand in for the real thing.
type Measurer interface {
	ViewportWidth() float64
}

// MeasureFunc adapts a function to the Measurer interface.
type MeasureFunc func() float64

func (f MeasureFunc) ViewportWidth() float64 { return f() }

// Pass summarizes one applied simulation pass, delivered to the OnApplied
// hook.
type Pass struct {
	ID             string
	Width          float64
	Active         bool
	SheetsCached   int
	StylesInjected int
	RulesMatched   int
}

// queueEntry is one pending stylesheet fetch, captured at scan time.
type queueEntry struct {
	url   string
	media string
}

// Simulator owns the per-URL parse cache, the set of detached link elements
// and the synthetic styles it injects into the document. All state lives on
// the instance; independent simulators never interfere with each other.
type Simulator struct {
	doc     *dom.Document
	fetcher TextFetcher
	logger  *zap.Logger

	mu       sync.Mutex
	cache    map[string]*css.Sheet
	ignore   []string
	reparse  []string
	detached map[string]*dom.Link
	styleIDs []string
	width    float64
	active   bool
	emBase   float64 // memoized; 0 means not yet derived from the document

	emOverride    float64
	disposalDelay time.Duration

	// generation orders overlapping Update calls; a pass whose generation is
	// no longer current must not apply.
	generation atomic.Uint64

	// schedule defers a function call; replaced in tests.
	schedule func(time.Duration, func())

	real      Measurer
	onApplied func(Pass)
}

// New creates a Simulator for the given document. A nil fetcher is allowed as
// long as every needed stylesheet is already cached via Preload.
func New(doc *dom.Document, fetcher TextFetcher, cfg config.SimulateConfig, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	delay := cfg.DisposalDelay
	if delay <= 0 {
		delay = 50 * time.Millisecond
	}
	return &Simulator{
		doc:           doc,
		fetcher:       fetcher,
		logger:        logger.Named("simulate"),
		cache:         make(map[string]*css.Sheet),
		detached:      make(map[string]*dom.Link),
		ignore:        append([]string(nil), cfg.Ignore...),
		reparse:       append([]string(nil), cfg.Reparse...),
		emOverride:    cfg.EmBasePx,
		disposalDelay: delay,
		schedule: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// Ignore adds URL substrings whose matching stylesheets are never fetched or
// simulated.
func (s *Simulator) Ignore(patterns ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignore = append(s.ignore, patterns...)
}

// Reparse adds URL substrings whose matching stylesheets are refetched and
// reparsed on every Update, for sheets expected to change between passes.
func (s *Simulator) Reparse(patterns ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reparse = append(s.reparse, patterns...)
}

// SetMeasurer installs the real viewport measurer the Simulator delegates to
// while no simulation is active.
func (s *Simulator) SetMeasurer(m Measurer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.real = m
}

// SetOnApplied installs a hook invoked after each pass is applied (including
// the restore pass).
func (s *Simulator) SetOnApplied(fn func(Pass)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onApplied = fn
}

// Preload stores an already-parsed sheet in the cache, bypassing the fetcher.
func (s *Simulator) Preload(sheet css.Sheet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[sheet.URL] = &sheet
}

// ViewportWidth implements Measurer: the simulated width while a simulation
// is active, the real measurement otherwise.
func (s *Simulator) ViewportWidth() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return s.width
	}
	if s.real != nil {
		return s.real.ViewportWidth()
	}
	return 0
}

// Active reports whether a simulated width is currently applied.
func (s *Simulator) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Update simulates the given viewport width: it restores any previously
// detached links, fetches and parses not-yet-cached stylesheets strictly one
// at a time in document order, then swaps matching rule text in as synthetic
// styles and detaches the original links. A fetch failure skips that sheet
// for this pass; it is not retried and its link stays in place.
func (s *Simulator) Update(ctx context.Context, width int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	gen := s.generation.Add(1)
	passID := uuid.NewString()
	logger := s.logger.With(zap.String("pass", passID), zap.Int("width", width))

	s.mu.Lock()
	s.restoreDetachedLocked()
	queue := s.scanLocked()
	s.mu.Unlock()

	logger.Debug("Stylesheet scan complete", zap.Int("queued", len(queue)))

	// One in-flight request at a time keeps network load bounded and parse
	// order deterministic; latency scales with sheet count.
	for _, entry := range queue {
		if s.stale(gen) {
			logger.Debug("Pass superseded during fetch queue drain")
			return ErrSuperseded
		}
		text, err := s.fetcher.FetchText(ctx, entry.url)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Degraded, not fatal: the sheet keeps its native behavior.
			logger.Warn("Stylesheet fetch failed; sheet not simulated",
				zap.String("url", entry.url), zap.Error(err))
			continue
		}
		sheet := css.Parse(text, entry.media, entry.url)
		s.mu.Lock()
		if !s.stale(gen) {
			s.cache[entry.url] = &sheet
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	if s.stale(gen) {
		s.mu.Unlock()
		return ErrSuperseded
	}
	s.width = float64(width)
	s.active = true
	pass, disposed := s.applyLocked(passID, gen)
	hook := s.onApplied
	s.mu.Unlock()

	s.scheduleDisposal(disposed)
	logger.Info("Simulation applied",
		zap.Int("sheets_cached", pass.SheetsCached),
		zap.Int("styles_injected", pass.StylesInjected),
		zap.Int("rules_matched", pass.RulesMatched),
	)
	if hook != nil {
		hook(pass)
	}
	return nil
}

// Restore ends the simulation: original links return to the head, synthetic
// styles are scheduled for disposal, and ViewportWidth reverts to the real
// measurer.
func (s *Simulator) Restore(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.generation.Add(1)
	passID := uuid.NewString()

	s.mu.Lock()
	s.restoreDetachedLocked()
	disposed := s.styleIDs
	s.styleIDs = nil
	s.active = false
	s.width = 0
	pass := Pass{ID: passID, Active: false, SheetsCached: len(s.cache)}
	hook := s.onApplied
	s.mu.Unlock()

	s.scheduleDisposal(disposed)
	s.logger.Info("Simulation restored", zap.String("pass", passID))
	if hook != nil {
		hook(pass)
	}
	return nil
}

func (s *Simulator) stale(gen uint64) bool {
	return s.generation.Load() != gen
}

// scanLocked walks the head's stylesheet links and returns the FIFO fetch
// queue: ignored URLs are skipped, reparse matches evicted, cached URLs left
// alone.
func (s *Simulator) scanLocked() []queueEntry {
	var queue []queueEntry
	seen := make(map[string]bool)
	for _, link := range s.doc.StylesheetLinks() {
		url := link.URL
		if matchAny(url, s.ignore) {
			continue
		}
		if matchAny(url, s.reparse) {
			delete(s.cache, url)
		}
		if _, cached := s.cache[url]; cached || seen[url] {
			continue
		}
		seen[url] = true
		queue = append(queue, queueEntry{url: url, media: link.Media})
	}
	return queue
}

// applyLocked composes and injects the synthetic style per sheet and detaches
// the replaced links. It returns the pass summary and the previous pass's
// style ids, which the caller disposes of after a delay.
func (s *Simulator) applyLocked(passID string, gen uint64) (Pass, []string) {
	disposed := s.styleIDs
	s.styleIDs = nil

	emBase := s.emBasisLocked()
	pass := Pass{ID: passID, Width: s.width, Active: true, SheetsCached: len(s.cache)}

	for _, link := range s.doc.StylesheetLinks() {
		sheet, cached := s.cache[link.URL]
		if !cached || len(sheet.Rules) == 0 {
			// Sheets without breakpoint rules keep their native link; the
			// browser evaluates them identically at any width.
			continue
		}

		var composed strings.Builder
		composed.WriteString(sheet.All)
		matched := 0
		for _, rule := range sheet.Rules {
			if rule.Matches(s.width, emBase) {
				composed.WriteString("\n")
				composed.WriteString(rule.Style)
				matched++
			}
		}
		out := strings.TrimSpace(composed.String())
		if out == "" {
			continue
		}

		id := styleID(gen, link.URL)
		s.doc.InjectStyle(id, out)
		s.styleIDs = append(s.styleIDs, id)
		s.doc.DetachLink(link)
		s.detached[link.URL] = link

		pass.StylesInjected++
		pass.RulesMatched += matched
	}
	return pass, disposed
}

func (s *Simulator) restoreDetachedLocked() {
	for url, link := range s.detached {
		s.doc.RestoreLink(link)
		delete(s.detached, url)
	}
}

// emBasisLocked returns the em-to-pixel factor: the configured override when
// set, otherwise the document root font size, derived once and memoized.
func (s *Simulator) emBasisLocked() float64 {
	if s.emOverride > 0 {
		return s.emOverride
	}
	if s.emBase == 0 {
		s.emBase = s.doc.RootFontSize()
	}
	return s.emBase
}

// scheduleDisposal empties and removes superseded synthetic styles after the
// disposal delay, never synchronously; identity is snapshotted here so a later
// pass's styles are untouched.
func (s *Simulator) scheduleDisposal(ids []string) {
	if len(ids) == 0 {
		return
	}
	s.schedule(s.disposalDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, id := range ids {
			s.doc.RemoveStyle(id)
		}
	})
}

func styleID(gen uint64, url string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(url))
	return fmt.Sprintf("mqsim-%d-%08x", gen, h.Sum32())
}

func matchAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}
