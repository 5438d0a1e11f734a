package server

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpdrecourt/hibikido-go/internal/config"
	"github.com/jpdrecourt/hibikido-go/internal/control"
	"github.com/jpdrecourt/hibikido-go/internal/docstore"
	"github.com/jpdrecourt/hibikido-go/internal/embedding"
	"github.com/jpdrecourt/hibikido-go/internal/orchestrator"
	"github.com/jpdrecourt/hibikido-go/internal/retrieval"
	"github.com/jpdrecourt/hibikido-go/internal/textcompose"
	"github.com/jpdrecourt/hibikido-go/internal/vectorindex"
)

// testHarness assembles a Server the same way New does, but over an
// in-memory store and loopback sockets whose ports are wired together
// explicitly so the test can both command the server and observe its
// replies.
type testHarness struct {
	server   *Server
	received chan control.Message
	sender   *control.Transport
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	// The receiver binds first so the server transport knows where to
	// send replies.
	receiver, err := control.NewTransport("127.0.0.1", 0, "127.0.0.1", 1)
	require.NoError(t, err)
	t.Cleanup(func() { receiver.Close() })

	serverTransport, err := control.NewTransport("127.0.0.1", 0, "127.0.0.1", receiver.ListenAddr().Port)
	require.NoError(t, err)

	sender, err := control.NewTransport("127.0.0.1", 0, "127.0.0.1", serverTransport.ListenAddr().Port)
	require.NoError(t, err)
	t.Cleanup(func() { sender.Close() })

	store, err := docstore.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	idx := vectorindex.New(embedding.Dimensions)
	emb := embedding.NewStaticEmbedder()
	composer := textcompose.New(false)
	engine := retrieval.New(store, idx, emb, composer, 10, 0.0)

	cfg := config.Default()
	cfg.Embedding.IndexFile = filepath.Join(t.TempDir(), "index.gob")
	cfg.Orchestrator.TickIntervalSecs = 0.02

	orch := orchestrator.New(orchestrator.Config{
		OverlapThreshold: cfg.Orchestrator.OverlapThreshold,
		TickInterval:     secondsToDuration(cfg.Orchestrator.TickIntervalSecs),
		MaxAdmitsPerTick: cfg.Orchestrator.MaxAdmitsPerTick,
		DefaultDuration:  secondsToDuration(cfg.Orchestrator.DefaultDurationS),
		DefaultFreqLow:   cfg.Orchestrator.DefaultFreqLowHz,
		DefaultFreqHigh:  cfg.Orchestrator.DefaultFreqHighHz,
	})

	s := &Server{
		cfg:          cfg,
		store:        store,
		index:        idx,
		engine:       engine,
		orch:         orch,
		transport:    serverTransport,
		tickInterval: secondsToDuration(cfg.Orchestrator.TickIntervalSecs),
	}

	received := make(chan control.Message, 16)
	receiver.SetHandler(func(ctx context.Context, msg control.Message) {
		received <- msg
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		receiver.Serve(ctx)
	}()
	go func() {
		defer wg.Done()
		s.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	return &testHarness{server: s, received: received, sender: sender}
}

func (h *testHarness) send(t *testing.T, m control.Message) {
	t.Helper()
	require.NoError(t, h.sender.Send(m))
}

func (h *testHarness) await(t *testing.T, address string) control.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-h.received:
			if msg.Address == address {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", address)
		}
	}
}

func TestServer_IngestThenSearch_ManifestsTheAutoSegment(t *testing.T) {
	// Given: a running server
	h := newTestHarness(t)

	// When: a recording is added and then searched for
	h.send(t, control.Message{Address: "/add_recording", Args: []any{"sounds/a.wav", map[string]any{"description": "forest wind"}}})
	h.await(t, "/confirm")

	h.send(t, control.Message{Address: "/search", Args: []any{"forest wind"}})
	confirm := h.await(t, "/confirm")
	assert.Equal(t, "queued 1", confirm.Args[0])

	// Then: exactly one manifest describes the auto-created full-length segment
	manifest := h.await(t, "/manifest")
	require.Len(t, manifest.Args, 8)
	assert.Equal(t, "segments", manifest.Args[1])
	assert.Equal(t, "sounds/a.wav", manifest.Args[3])
	assert.Equal(t, "forest wind", manifest.Args[4])
	assert.Equal(t, 0.0, manifest.Args[5])
	assert.Equal(t, 1.0, manifest.Args[6])
	assert.Equal(t, "[]", manifest.Args[7])
}

func TestServer_AddSegment_RejectsUnknownRecording(t *testing.T) {
	h := newTestHarness(t)

	h.send(t, control.Message{Address: "/add_segment", Args: []any{"a gust", map[string]any{
		"source_path":     "/does/not/exist.wav",
		"start":           0.0,
		"end":             0.5,
		"segmentation_id": "m1",
	}}})

	h.await(t, "/error")
}

func TestServer_Stats_ReportsSevenTuple(t *testing.T) {
	h := newTestHarness(t)

	h.send(t, control.Message{Address: "/add_recording", Args: []any{"sounds/a.wav", map[string]any{"description": "forest wind"}}})
	h.await(t, "/confirm")

	h.send(t, control.Message{Address: "/stats", Args: []any{}})
	result := h.await(t, "/stats_result")
	require.Len(t, result.Args, 7)
	// Args round-trip through JSON, so numeric fields decode as float64.
	assert.Equal(t, float64(1), result.Args[0]) // recordings
	assert.Equal(t, float64(1), result.Args[1]) // segments
}

func TestServer_Stop_PersistsIndexAndShutsDown(t *testing.T) {
	h := newTestHarness(t)

	h.send(t, control.Message{Address: "/add_recording", Args: []any{"sounds/a.wav", map[string]any{"description": "forest wind"}}})
	h.await(t, "/confirm")

	h.send(t, control.Message{Address: "/stop", Args: []any{}})
	h.await(t, "/confirm")

	loaded := vectorindex.New(embedding.Dimensions)
	require.NoError(t, loaded.Load(h.server.cfg.Embedding.IndexFile))
	assert.Equal(t, 1, loaded.Size())
}
