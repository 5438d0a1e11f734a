// Package retrieval implements C5: the single write-serializing binding
// between the embedding provider (C1), vector index (C2), document store
// (C3) and text composer (C4), per spec.md §4.5.
package retrieval

import (
	"context"
	"sync"
	"time"

	hierrors "github.com/jpdrecourt/hibikido-go/internal/errors"
	"github.com/jpdrecourt/hibikido-go/internal/docstore"
	"github.com/jpdrecourt/hibikido-go/internal/embedding"
	"github.com/jpdrecourt/hibikido-go/internal/textcompose"
	"github.com/jpdrecourt/hibikido-go/internal/vectorindex"
)

// Engine binds the four C1-C4 collaborators behind the operations spec.md
// §4.5 names: ingest_recording, ingest_segmentation, ingest_segment,
// ingest_effect, ingest_preset, search, rebuild_index.
type Engine struct {
	// mu serializes every ingest and rebuild against every other ingest,
	// rebuild and search, since a search reads (embedding text, row
	// assignment) state that an in-flight ingest or rebuild mutates.
	mu       sync.Mutex
	store    *docstore.Store
	index    *vectorindex.Index
	embedder embedding.Embedder
	composer *textcompose.Composer
	minScore float32
	topK     int
}

// Hit is one ranked search result, with the resolved document attached.
type Hit struct {
	Collection string
	Score      float32
	Segment    *docstore.Segment
	Preset     *docstore.Preset
}

// New constructs a retrieval engine over already-open collaborators.
func New(store *docstore.Store, index *vectorindex.Index, embedder embedding.Embedder, composer *textcompose.Composer, topK int, minScore float32) *Engine {
	return &Engine{store: store, index: index, embedder: embedder, composer: composer, topK: topK, minScore: minScore}
}

// defaultSegmentationID names the segmentation method used for the
// full-length segment IngestRecording auto-creates (spec.md §4.5).
const defaultSegmentationID = "default-full-length"

// IngestRecording registers a recording document and auto-ingests a
// full-length segment (0.0, 1.0) against a default segmentation id, per
// spec.md §4.5.
func (e *Engine) IngestRecording(ctx context.Context, path, description string) (*docstore.Recording, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, created, err := e.store.UpsertRecording(path, description, time.Now())
	if err != nil {
		return nil, err
	}
	if !created {
		return rec, nil
	}

	if err := e.store.UpsertSegmentation(&docstore.Segmentation{
		ID:          defaultSegmentationID,
		Method:      "full-length",
		Description: "default full-recording segmentation",
	}); err != nil {
		return nil, err
	}

	seg := &docstore.Segment{
		SourcePath:     path,
		SegmentationID: defaultSegmentationID,
		Start:          0.0,
		End:            1.0,
		Description:    description,
	}
	if err := e.ingestSegmentLocked(ctx, seg); err != nil {
		return nil, err
	}
	return rec, nil
}

// IngestEffect registers an effect document and seeds a default
// empty-parameter preset for it, so every effect is immediately
// searchable without a manual add_preset.
func (e *Engine) IngestEffect(ctx context.Context, path, name, description string) (*docstore.Effect, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	eff, created, err := e.store.UpsertEffect(path, name, description, time.Now())
	if err != nil {
		return nil, err
	}
	if !created {
		return eff, nil
	}

	if _, err := e.ingestPresetLocked(ctx, path, nil, "default "+name); err != nil {
		return nil, err
	}
	return eff, nil
}

// IngestSegmentation registers a segmentation method/run document.
func (e *Engine) IngestSegmentation(seg *docstore.Segmentation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.UpsertSegmentation(seg)
}

// IngestSegment validates references, composes embedding text, embeds it,
// reserves a row in the vector index, and persists the segment, in that
// order (spec.md §4.5 ingest ordering: the row must exist before the
// document that claims it is committed).
func (e *Engine) IngestSegment(ctx context.Context, seg *docstore.Segment) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ingestSegmentLocked(ctx, seg)
}

func (e *Engine) ingestSegmentLocked(ctx context.Context, seg *docstore.Segment) error {
	recording, err := e.store.GetRecordingByPath(seg.SourcePath)
	if err != nil {
		return hierrors.ReferentialError("unknown source_path: " + seg.SourcePath)
	}
	segmentation, err := e.store.GetSegmentation(seg.SegmentationID)
	if err != nil {
		return hierrors.ReferentialError("unknown segmentation_id: " + seg.SegmentationID)
	}

	sources := textcompose.SegmentSources(seg.Description, segmentation.Description, recording.Description)
	seg.EmbeddingText = e.composer.Compose(sources)

	vec, err := e.embedder.Embed(ctx, seg.EmbeddingText)
	if err != nil {
		return hierrors.EmbeddingError("embed segment text", err)
	}
	row, err := e.index.Add(vec)
	if err != nil {
		return hierrors.IndexError("add segment vector", err)
	}
	seg.Row = row
	seg.CreatedAt = time.Now()

	if err := e.store.InsertSegment(seg); err != nil {
		return err
	}
	return nil
}

// IngestPreset validates references, composes embedding text, embeds it,
// reserves a row, and persists the preset.
func (e *Engine) IngestPreset(ctx context.Context, effectPath string, params []docstore.Param, description string) (*docstore.Preset, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ingestPresetLocked(ctx, effectPath, params, description)
}

func (e *Engine) ingestPresetLocked(ctx context.Context, effectPath string, params []docstore.Param, description string) (*docstore.Preset, error) {
	eff, err := e.store.GetEffectByPath(effectPath)
	if err != nil {
		return nil, hierrors.ReferentialError("unknown effect_path: " + effectPath)
	}

	sources := textcompose.PresetSources(description, eff.Description)
	embeddingText := e.composer.Compose(sources)

	vec, err := e.embedder.Embed(ctx, embeddingText)
	if err != nil {
		return nil, hierrors.EmbeddingError("embed preset text", err)
	}
	row, err := e.index.Add(vec)
	if err != nil {
		return nil, hierrors.IndexError("add preset vector", err)
	}

	p := &docstore.Preset{
		EffectPath:    effectPath,
		Parameters:    params,
		Description:   description,
		EmbeddingText: embeddingText,
		Row:           row,
		CreatedAt:     time.Now(),
	}
	if err := e.store.InsertPreset(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Search enhances the query text, embeds it, ranks candidates by exact
// inner product, filters by min_score and resolves each surviving row to
// its document, preserving descending-score order (spec.md §4.5/§8).
func (e *Engine) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if k <= 0 {
		k = e.topK
	}
	enhanced := e.composer.Enhance(query)
	vec, err := e.embedder.Embed(ctx, enhanced)
	if err != nil {
		return nil, hierrors.EmbeddingError("embed query text", err)
	}

	rawHits, err := e.index.Search(vec, k)
	if err != nil {
		return nil, hierrors.IndexError("search vector index", err)
	}

	hits := make([]Hit, 0, len(rawHits))
	for _, rh := range rawHits {
		if rh.Score < e.minScore {
			continue
		}
		collection, seg, preset, err := e.store.FindByRow(rh.Row)
		if err != nil {
			// A row with no owning document is an orphan left by a
			// partially-applied rebuild; skip it rather than fail the
			// whole search.
			continue
		}
		hits = append(hits, Hit{Collection: collection, Score: rh.Score, Segment: seg, Preset: preset})
	}

	// rawHits is already descending by score; filtering preserves order.
	return hits, nil
}

// Stats reports document counts, delegating straight to the store.
func (e *Engine) Stats() (docstore.Stats, error) {
	return e.store.Stats()
}
