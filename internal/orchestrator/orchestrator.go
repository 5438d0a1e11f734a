// Package orchestrator implements C6, Chōwasha: a FIFO queue of
// candidate manifestations admitted into time-frequency niches that must
// not overlap beyond a configured logarithmic threshold, per spec.md
// §4.6.
package orchestrator

import (
	"sync"
	"time"
)

// Manifestation is the 8-field payload spec.md §6 sends as `/manifest`.
type Manifestation struct {
	SequenceIndex   int
	Collection      string
	Score           float32
	Path            string
	Description     string
	NormalizedStart float64
	NormalizedEnd   float64
	ParametersJSON  string
}

// Niche is an active time-frequency occupancy, keyed by sound id. Not
// persisted; destroyed when wall-clock now reaches End (spec.md §3).
type Niche struct {
	SoundID string
	Band    Band
	Start   time.Time
	End     time.Time
}

// QueuedManifestation is one candidate waiting for admission (spec.md
// §3). SoundID identifies the niche slot it would occupy if admitted;
// two queued items sharing a SoundID while one is already active are
// deduplicated per spec.md §4.6 ("at most one active niche per sound
// id").
type QueuedManifestation struct {
	SoundID    string
	Payload    Manifestation
	Band       Band
	Duration   time.Duration
	EnqueuedAt time.Time
}

// admits reports whether candidate's band conflicts with none of the
// currently active niche bands.
func admits(candidate Band, active []Band, threshold float64) bool {
	for _, a := range active {
		if conflicts(candidate, a, threshold) {
			return false
		}
	}
	return true
}

// Config holds the orchestrator's tunables, defaulted per spec.md §4.6.
type Config struct {
	OverlapThreshold float64
	TickInterval     time.Duration
	MaxAdmitsPerTick int
	DefaultDuration  time.Duration
	DefaultFreqLow   float64
	DefaultFreqHigh  float64

	// now is injected for deterministic tests; defaults to time.Now.
	now func() time.Time
}

// DefaultConfig returns spec.md §4.6's documented defaults.
func DefaultConfig() Config {
	return Config{
		OverlapThreshold: 0.2,
		TickInterval:     100 * time.Millisecond,
		MaxAdmitsPerTick: 5,
		DefaultDuration:  time.Second,
		DefaultFreqLow:   200,
		DefaultFreqHigh:  2000,
	}
}

// Orchestrator owns the FIFO queue and niche table. All state is guarded
// by a single mutex; critical sections are bounded by MaxAdmitsPerTick
// (spec.md §5).
type Orchestrator struct {
	mu     sync.Mutex
	cfg    Config
	queue  []QueuedManifestation
	niches map[string]Niche
}

// New constructs an orchestrator, filling in the clock if the caller left
// it unset.
func New(cfg Config) *Orchestrator {
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return &Orchestrator{cfg: cfg, niches: make(map[string]Niche)}
}

// Enqueue appends a candidate to the tail of the FIFO queue. If the
// candidate's sound id already has an active niche, it is discarded
// silently (spec.md §4.6). A niche whose end has been reached counts as
// inactive here even before the next Tick removes it.
func (o *Orchestrator) Enqueue(item QueuedManifestation) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if n, active := o.niches[item.SoundID]; active && o.cfg.now().Before(n.End) {
		return
	}
	o.queue = append(o.queue, item)
}

// Tick drops expired niches, then attempts to admit up to
// MaxAdmitsPerTick items from the head of the queue in order. If the head
// item conflicts, admission stops for this tick — it is never skipped
// past (spec.md §4.6 "Tie-break / fairness").
func (o *Orchestrator) Tick() []Manifestation {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.cfg.now()
	o.dropExpiredLocked(now)

	var admitted []Manifestation
	for len(admitted) < o.cfg.MaxAdmitsPerTick && len(o.queue) > 0 {
		head := o.queue[0]

		if _, active := o.niches[head.SoundID]; active {
			// A duplicate slipped in before its sibling was admitted;
			// drop it and keep going without counting it as a conflict.
			o.queue = o.queue[1:]
			continue
		}

		if !admits(head.Band, o.activeBandsLocked(), o.cfg.OverlapThreshold) {
			break
		}

		o.queue = o.queue[1:]
		duration := head.Duration
		if duration <= 0 {
			duration = o.cfg.DefaultDuration
		}
		o.niches[head.SoundID] = Niche{
			SoundID: head.SoundID,
			Band:    head.Band,
			Start:   now,
			End:     now.Add(duration),
		}
		admitted = append(admitted, head.Payload)
	}
	return admitted
}

func (o *Orchestrator) dropExpiredLocked(now time.Time) {
	for id, n := range o.niches {
		if !now.Before(n.End) {
			delete(o.niches, id)
		}
	}
}

func (o *Orchestrator) activeBandsLocked() []Band {
	bands := make([]Band, 0, len(o.niches))
	for _, n := range o.niches {
		bands = append(bands, n.Band)
	}
	return bands
}

// Stats reports (active_niche_count, queue_length), the last two fields
// of the /stats_result 7-tuple (spec.md §6).
func (o *Orchestrator) Stats() (activeNiches int, queued int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.niches), len(o.queue)
}
