package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_UpsertRecording_IsIdempotent(t *testing.T) {
	// Given: a store
	s := newTestStore(t)
	now := time.Now()

	// When: the same path is upserted twice
	first, created1, err := s.UpsertRecording("/audio/forest.wav", "forest ambience", now)
	require.NoError(t, err)
	second, created2, err := s.UpsertRecording("/audio/forest.wav", "a different description", now)
	require.NoError(t, err)

	// Then: the second call is a no-op returning the original record
	assert.True(t, created1)
	assert.False(t, created2)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "forest ambience", second.Description)
}

func TestStore_UpsertRecording_RejectsEmptyPath(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.UpsertRecording("", "desc", time.Now())
	assert.Error(t, err)
}

func TestStore_InsertSegment_RejectsDanglingRecording(t *testing.T) {
	// Given: a store with a segmentation but no recording
	s := newTestStore(t)
	require.NoError(t, s.UpsertSegmentation(&Segmentation{ID: "seg-method-1", Method: "manual"}))

	// When: inserting a segment against an unknown recording path
	err := s.InsertSegment(&Segment{
		SourcePath:     "/audio/missing.wav",
		SegmentationID: "seg-method-1",
		Start:          0,
		End:            0.5,
		Row:            0,
		CreatedAt:      time.Now(),
	})

	// Then: a referential error is returned
	require.Error(t, err)
}

func TestStore_InsertSegment_RejectsDanglingSegmentation(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.UpsertRecording("/audio/forest.wav", "forest", time.Now())
	require.NoError(t, err)

	err = s.InsertSegment(&Segment{
		SourcePath:     "/audio/forest.wav",
		SegmentationID: "does-not-exist",
		Start:          0,
		End:            0.5,
		Row:            0,
		CreatedAt:      time.Now(),
	})
	require.Error(t, err)
}

func TestStore_InsertSegment_RejectsInvalidBounds(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.UpsertRecording("/audio/forest.wav", "forest", time.Now())
	require.NoError(t, err)
	require.NoError(t, s.UpsertSegmentation(&Segmentation{ID: "m1", Method: "manual"}))

	err = s.InsertSegment(&Segment{
		SourcePath:     "/audio/forest.wav",
		SegmentationID: "m1",
		Start:          0.8,
		End:            0.2,
		Row:            0,
		CreatedAt:      time.Now(),
	})
	assert.Error(t, err)
}

func TestStore_InsertSegment_RoundTrip(t *testing.T) {
	// Given: a valid recording and segmentation
	s := newTestStore(t)
	_, _, err := s.UpsertRecording("/audio/forest.wav", "forest", time.Now())
	require.NoError(t, err)
	require.NoError(t, s.UpsertSegmentation(&Segmentation{ID: "m1", Method: "manual"}))

	// When: a segment is inserted at row 0
	seg := &Segment{
		SourcePath:     "/audio/forest.wav",
		SegmentationID: "m1",
		Start:          0.1,
		End:            0.4,
		Description:    "wind gust",
		EmbeddingText:  "wind gust forest",
		Row:            0,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, s.InsertSegment(seg))

	// Then: it can be read back by id and by row
	byID, err := s.GetSegment(seg.ID)
	require.NoError(t, err)
	assert.Equal(t, "wind gust", byID.Description)

	byRow, err := s.GetSegmentByRow(0)
	require.NoError(t, err)
	assert.Equal(t, seg.ID, byRow.ID)
}

func TestStore_InsertPreset_RejectsDanglingEffect(t *testing.T) {
	s := newTestStore(t)
	err := s.InsertPreset(&Preset{EffectPath: "/fx/missing.fx", Row: 0, CreatedAt: time.Now()})
	assert.Error(t, err)
}

func TestStore_InsertPreset_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.UpsertEffect("/fx/reverb.fx", "reverb", "spacious reverb", time.Now())
	require.NoError(t, err)

	p := &Preset{
		EffectPath:    "/fx/reverb.fx",
		Parameters:    []Param{{Name: "decay", Value: 2.5}, {Name: "mix", Value: 0.5}},
		Description:   "cathedral tail",
		EmbeddingText: "cathedral reverb tail",
		Row:           0,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, s.InsertPreset(p))

	got, err := s.GetPreset(p.ID)
	require.NoError(t, err)
	require.Len(t, got.Parameters, 2)
	assert.Equal(t, "decay", got.Parameters[0].Name)
}

func TestStore_Stats_CountsAcrossCollections(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.UpsertRecording("/audio/forest.wav", "forest", time.Now())
	require.NoError(t, err)
	require.NoError(t, s.UpsertSegmentation(&Segmentation{ID: "m1", Method: "manual"}))
	require.NoError(t, s.InsertSegment(&Segment{
		SourcePath: "/audio/forest.wav", SegmentationID: "m1",
		Start: 0, End: 0.5, Row: 0, CreatedAt: time.Now(),
	}))
	_, _, err = s.UpsertEffect("/fx/reverb.fx", "reverb", "desc", time.Now())
	require.NoError(t, err)

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Recordings)
	assert.Equal(t, 1, stats.Segments)
	assert.Equal(t, 1, stats.Effects)
	assert.Equal(t, 0, stats.Presets)
}

func TestStore_AppendInvocation_GroupsByPerformance(t *testing.T) {
	// Given: an empty store
	s := newTestStore(t)
	now := time.Now()

	// When: two invocations are appended to the same session
	require.NoError(t, s.AppendInvocation("perf-1", now, Invocation{RawText: "soft rain", MatchedSegmentID: "seg-1"}, 0))
	require.NoError(t, s.AppendInvocation("perf-1", now, Invocation{RawText: "distant thunder", MatchedSegmentID: "seg-2"}, 1))

	// Then: the performance holds both invocations in order
	perf, err := s.GetPerformance("perf-1")
	require.NoError(t, err)
	require.Len(t, perf.Invocations, 2)
	assert.Equal(t, "soft rain", perf.Invocations[0].RawText)
	assert.Equal(t, "distant thunder", perf.Invocations[1].RawText)
}

func TestStore_GetPerformance_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetPerformance("does-not-exist")
	assert.Error(t, err)
}
