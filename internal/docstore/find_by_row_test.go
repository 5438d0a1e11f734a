package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_FindByRow_ResolvesSegment(t *testing.T) {
	// Given: a segment persisted at row 3
	s := newTestStore(t)
	_, _, err := s.UpsertRecording("/audio/forest.wav", "forest", time.Now())
	require.NoError(t, err)
	require.NoError(t, s.UpsertSegmentation(&Segmentation{ID: "m1", Method: "manual"}))
	seg := &Segment{SourcePath: "/audio/forest.wav", SegmentationID: "m1", Start: 0, End: 0.5, Row: 3, CreatedAt: time.Now()}
	require.NoError(t, s.InsertSegment(seg))

	// When: looking up row 3
	collection, gotSeg, gotPreset, err := s.FindByRow(3)

	// Then: it resolves to the segments collection
	require.NoError(t, err)
	assert.Equal(t, CollectionSegments, collection)
	assert.Equal(t, seg.ID, gotSeg.ID)
	assert.Nil(t, gotPreset)
}

func TestStore_FindByRow_ResolvesPreset(t *testing.T) {
	// Given: a preset persisted at row 7
	s := newTestStore(t)
	_, _, err := s.UpsertEffect("/fx/reverb.fx", "reverb", "desc", time.Now())
	require.NoError(t, err)
	p := &Preset{EffectPath: "/fx/reverb.fx", Row: 7, CreatedAt: time.Now()}
	require.NoError(t, s.InsertPreset(p))

	// When: looking up row 7
	collection, gotSeg, gotPreset, err := s.FindByRow(7)

	// Then: it resolves to the presets collection
	require.NoError(t, err)
	assert.Equal(t, CollectionPresets, collection)
	assert.Nil(t, gotSeg)
	assert.Equal(t, p.ID, gotPreset.ID)
}

func TestStore_FindByRow_UnknownRowErrors(t *testing.T) {
	s := newTestStore(t)
	_, _, _, err := s.FindByRow(42)
	assert.Error(t, err)
}

func TestStore_ClearRowOwnership_RemovesEntries(t *testing.T) {
	// Given: a segment occupying row 0
	s := newTestStore(t)
	_, _, err := s.UpsertRecording("/audio/forest.wav", "forest", time.Now())
	require.NoError(t, err)
	require.NoError(t, s.UpsertSegmentation(&Segmentation{ID: "m1", Method: "manual"}))
	require.NoError(t, s.InsertSegment(&Segment{
		SourcePath: "/audio/forest.wav", SegmentationID: "m1", Start: 0, End: 0.5, Row: 0, CreatedAt: time.Now(),
	}))

	// When: row ownership is cleared
	require.NoError(t, s.ClearRowOwnership())

	// Then: the row no longer resolves
	_, _, _, err = s.FindByRow(0)
	assert.Error(t, err)
}

func TestStore_UpdateSegmentRow_ReassignsOwnership(t *testing.T) {
	// Given: a segment at row 0
	s := newTestStore(t)
	_, _, err := s.UpsertRecording("/audio/forest.wav", "forest", time.Now())
	require.NoError(t, err)
	require.NoError(t, s.UpsertSegmentation(&Segmentation{ID: "m1", Method: "manual"}))
	seg := &Segment{SourcePath: "/audio/forest.wav", SegmentationID: "m1", Start: 0, End: 0.5, Row: 0, CreatedAt: time.Now()}
	require.NoError(t, s.InsertSegment(seg))
	require.NoError(t, s.ClearRowOwnership())

	// When: the segment is reassigned to row 5 during a rebuild
	require.NoError(t, s.UpdateSegmentRow(seg.ID, 5))

	// Then: row 5 resolves to the segment
	collection, gotSeg, _, err := s.FindByRow(5)
	require.NoError(t, err)
	assert.Equal(t, CollectionSegments, collection)
	assert.Equal(t, seg.ID, gotSeg.ID)
}
