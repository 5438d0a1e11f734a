package retrieval

import (
	"context"

	"github.com/jpdrecourt/hibikido-go/internal/docstore"
	hierrors "github.com/jpdrecourt/hibikido-go/internal/errors"
	"github.com/jpdrecourt/hibikido-go/internal/textcompose"
)

// RebuildReport summarizes a rebuild_index run: per spec.md §7's open
// question on partial failure, rebuild is atomic per document and
// best-effort overall — one bad document is skipped and recorded here,
// it does not abort the rest of the rebuild. A failed document's row is
// quarantined (see Store.QuarantineRowsForRebuild), not left at its old
// value, so its failure can never collide with a row assigned to a
// document rebuilt afterward.
type RebuildReport struct {
	Rebuilt int
	Failed  []RebuildFailure
}

// RebuildFailure names one document that could not be re-embedded or
// re-indexed during a rebuild, and why.
type RebuildFailure struct {
	ID    string
	Error string
}

// RebuildIndex drops the vector index, then iterates all segments and
// then all presets, recomputing embedding text from their source
// documents, re-embedding, and reassigning row ids in iteration order
// (spec.md §4.5).
func (e *Engine) RebuildIndex(ctx context.Context) (RebuildReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	segments, err := e.store.AllSegments()
	if err != nil {
		return RebuildReport{}, err
	}
	presets, err := e.store.AllPresets()
	if err != nil {
		return RebuildReport{}, err
	}

	e.index.Reset()
	if err := e.store.QuarantineRowsForRebuild(); err != nil {
		return RebuildReport{}, err
	}

	report := RebuildReport{}

	for _, seg := range segments {
		if err := e.rebuildSegment(ctx, seg); err != nil {
			report.Failed = append(report.Failed, RebuildFailure{ID: seg.ID, Error: err.Error()})
			continue
		}
		report.Rebuilt++
	}

	for _, p := range presets {
		if err := e.rebuildPreset(ctx, p); err != nil {
			report.Failed = append(report.Failed, RebuildFailure{ID: p.ID, Error: err.Error()})
			continue
		}
		report.Rebuilt++
	}

	return report, nil
}

func (e *Engine) rebuildSegment(ctx context.Context, seg *docstore.Segment) error {
	recording, err := e.store.GetRecordingByPath(seg.SourcePath)
	if err != nil {
		return hierrors.ReferentialError("unknown source_path: " + seg.SourcePath)
	}
	segmentation, err := e.store.GetSegmentation(seg.SegmentationID)
	if err != nil {
		return hierrors.ReferentialError("unknown segmentation_id: " + seg.SegmentationID)
	}

	embeddingText := e.composer.Compose(textcompose.SegmentSources(seg.Description, segmentation.Description, recording.Description))

	vec, err := e.embedder.Embed(ctx, embeddingText)
	if err != nil {
		return hierrors.EmbeddingError("re-embed segment text", err)
	}
	row, err := e.index.Add(vec)
	if err != nil {
		return hierrors.IndexError("re-add segment vector", err)
	}
	return e.store.UpdateSegmentAfterRebuild(seg.ID, embeddingText, row)
}

func (e *Engine) rebuildPreset(ctx context.Context, p *docstore.Preset) error {
	eff, err := e.store.GetEffectByPath(p.EffectPath)
	if err != nil {
		return hierrors.ReferentialError("unknown effect_path: " + p.EffectPath)
	}

	embeddingText := e.composer.Compose(textcompose.PresetSources(p.Description, eff.Description))

	vec, err := e.embedder.Embed(ctx, embeddingText)
	if err != nil {
		return hierrors.EmbeddingError("re-embed preset text", err)
	}
	row, err := e.index.Add(vec)
	if err != nil {
		return hierrors.IndexError("re-add preset vector", err)
	}
	return e.store.UpdatePresetAfterRebuild(p.ID, embeddingText, row)
}
