// Package docstore implements C3: a schema-validated document store with
// referential integrity across recordings, segmentations, segments,
// effects, presets and performance logs, per spec.md §3/§4.3.
package docstore

import "time"

// Collection names double as the tag stored in the row-owner side index
// and as the "collection" field on search hits (spec.md §4.5).
const (
	CollectionSegments = "segments"
	CollectionPresets  = "presets"
)

// Recording is an immutable root document (spec.md §3).
type Recording struct {
	ID          string
	Path        string
	Description string
	CreatedAt   time.Time
}

// Segmentation is a named method/run that produced a batch of segments.
type Segmentation struct {
	ID          string
	Method      string
	Parameters  map[string]any
	Description string
}

// Segment is a slice of a recording, holding the row it owns in the
// shared vector index.
type Segment struct {
	ID             string
	SourcePath     string
	SegmentationID string
	Start          float64
	End            float64
	Description    string
	EmbeddingText  string
	Row            int
	FreqLow        *float64
	FreqHigh       *float64
	Duration       *float64
	CreatedAt      time.Time
}

// Effect is a processing tool document.
type Effect struct {
	ID          string
	Path        string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Param is one (name, value) pair of a preset's ordered parameter list.
type Param struct {
	Name  string
	Value any
}

// Preset is a named configuration of an effect.
type Preset struct {
	ID            string
	EffectPath    string
	Parameters    []Param
	Description   string
	EmbeddingText string
	Row           int
	CreatedAt     time.Time
}

// Invocation is one logged manifestation within a Performance. The
// server core only ever logs segment hits (presets are filtered out of
// the default `/invoke` path per spec.md §9), so this carries a segment
// id only.
type Invocation struct {
	RawText          string
	MatchedSegmentID string
}

// Performance is an append-only invocation log session (spec.md §3,
// "peripheral to the core; specified only as a sink").
type Performance struct {
	ID          string
	Date        time.Time
	Invocations []Invocation
}

// Stats is the 7-tuple spec.md §6 /stats_result returns (recordings,
// segments, effects, presets, embeddings, active_niches, queued); the
// last two are filled in by the server core from the orchestrator.
type Stats struct {
	Recordings int
	Segments   int
	Effects    int
	Presets    int
}
