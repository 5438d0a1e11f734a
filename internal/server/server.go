// Package server wires C1-C6 behind the C7 control surface: it owns the
// dependency-ordered startup (store, index, engine, orchestrator,
// transport) and the inbound-message/periodic-tick concurrency pair
// spec.md §4.7/§5 describes.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jpdrecourt/hibikido-go/internal/config"
	"github.com/jpdrecourt/hibikido-go/internal/control"
	"github.com/jpdrecourt/hibikido-go/internal/docstore"
	"github.com/jpdrecourt/hibikido-go/internal/embedding"
	"github.com/jpdrecourt/hibikido-go/internal/orchestrator"
	"github.com/jpdrecourt/hibikido-go/internal/retrieval"
	"github.com/jpdrecourt/hibikido-go/internal/textcompose"
	"github.com/jpdrecourt/hibikido-go/internal/vectorindex"
)

// Server is the assembled daemon: every collaborator named in spec.md
// §9's "Global state" note, plus the transport that exposes them.
type Server struct {
	cfg          *config.Config
	store        *docstore.Store
	index        *vectorindex.Index
	engine       *retrieval.Engine
	orch         *orchestrator.Orchestrator
	transport    *control.Transport
	tickInterval time.Duration

	mu     sync.Mutex
	stopFn context.CancelFunc
}

// New assembles the server in dependency order: store, index, engine,
// orchestrator, transport (spec.md §9).
func New(cfg *config.Config) (*Server, error) {
	store, err := docstore.Open(cfg.MongoDB.URI)
	if err != nil {
		return nil, err
	}

	embedder := embedding.New(cfg.Embedding.ModelName)

	index := vectorindex.New(embedder.Dimensions())
	if err := index.Load(cfg.Embedding.IndexFile); err != nil {
		store.Close()
		return nil, err
	}

	composer := textcompose.New(true)
	engine := retrieval.New(store, index, embedder, composer, cfg.Search.TopK, float32(cfg.Search.MinScore))

	orch := orchestrator.New(orchestrator.Config{
		OverlapThreshold: cfg.Orchestrator.OverlapThreshold,
		TickInterval:     secondsToDuration(cfg.Orchestrator.TickIntervalSecs),
		MaxAdmitsPerTick: cfg.Orchestrator.MaxAdmitsPerTick,
		DefaultDuration:  secondsToDuration(cfg.Orchestrator.DefaultDurationS),
		DefaultFreqLow:   cfg.Orchestrator.DefaultFreqLowHz,
		DefaultFreqHigh:  cfg.Orchestrator.DefaultFreqHighHz,
	})

	transport, err := control.NewTransport(cfg.OSC.ListenIP, cfg.OSC.ListenPort, cfg.OSC.SendIP, cfg.OSC.SendPort)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &Server{
		cfg:          cfg,
		store:        store,
		index:        index,
		engine:       engine,
		orch:         orch,
		transport:    transport,
		tickInterval: secondsToDuration(cfg.Orchestrator.TickIntervalSecs),
	}, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Run blocks until ctx is cancelled or a `/stop` message triggers
// shutdown. It runs the inbound message loop and the periodic
// orchestrator tick concurrently under one errgroup (spec.md §5
// "Concurrency & resource model").
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.stopFn = cancel
	s.mu.Unlock()
	defer cancel()

	s.transport.SetHandler(s.handleMessage)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return s.transport.Serve(gctx)
	})
	g.Go(func() error {
		return s.tickLoop(gctx)
	})

	err := g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

// tickLoop calls orchestrator.Tick() every tick_interval_seconds and
// emits one `/manifest` per admitted candidate (spec.md §4.7).
func (s *Server) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, m := range s.orch.Tick() {
				s.sendManifest(m)
			}
		}
	}
}

// handleMessage dispatches one decoded control message (spec.md §6).
func (s *Server) handleMessage(ctx context.Context, msg control.Message) {
	switch msg.Address {
	case "/invoke", "/search":
		s.handleInvoke(ctx, msg)
	case "/add_recording":
		s.handleAddRecording(ctx, msg)
	case "/add_effect":
		s.handleAddEffect(ctx, msg)
	case "/add_segment":
		s.handleAddSegment(ctx, msg)
	case "/add_preset":
		s.handleAddPreset(ctx, msg)
	case "/rebuild_index":
		s.handleRebuildIndex(ctx, msg)
	case "/stats":
		s.handleStats(ctx, msg)
	case "/stop":
		s.handleStop(ctx, msg)
	default:
		s.sendError(fmt.Sprintf("unknown address: %s", msg.Address))
	}
}

// handleInvoke searches and enqueues every segment hit, per spec.md
// §4.7: presets returned by search are dropped at this stage (§9's open
// question resolved in favor of the documented default).
func (s *Server) handleInvoke(ctx context.Context, msg control.Message) {
	query, ok := control.StringArg(msg.Args, 0)
	if !ok {
		s.sendError("invoke requires a text argument")
		return
	}

	hits, err := s.engine.Search(ctx, query, s.cfg.Search.TopK)
	if err != nil {
		s.sendError(err.Error())
		return
	}

	sessionID := uuid.New().String()
	now := time.Now()

	queued := 0
	for i, hit := range hits {
		if hit.Collection != docstore.CollectionSegments || hit.Segment == nil {
			continue
		}
		s.orch.Enqueue(s.toQueuedManifestation(i, hit))

		inv := docstore.Invocation{RawText: query, MatchedSegmentID: hit.Segment.ID}
		if err := s.store.AppendInvocation(sessionID, now, inv, queued); err != nil {
			slog.Warn("failed to log invocation", slog.String("error", err.Error()))
		}
		queued++
	}

	s.sendConfirm(fmt.Sprintf("queued %d", queued))
}

func (s *Server) toQueuedManifestation(sequenceIndex int, hit retrieval.Hit) orchestrator.QueuedManifestation {
	seg := hit.Segment

	band := orchestrator.Band{Low: s.cfg.Orchestrator.DefaultFreqLowHz, High: s.cfg.Orchestrator.DefaultFreqHighHz}
	if seg.FreqLow != nil {
		band.Low = *seg.FreqLow
	}
	if seg.FreqHigh != nil {
		band.High = *seg.FreqHigh
	}

	duration := secondsToDuration(s.cfg.Orchestrator.DefaultDurationS)
	if seg.Duration != nil {
		duration = secondsToDuration(*seg.Duration)
	}

	return orchestrator.QueuedManifestation{
		SoundID: seg.ID,
		Payload: orchestrator.Manifestation{
			SequenceIndex:   sequenceIndex,
			Collection:      docstore.CollectionSegments,
			Score:           hit.Score,
			Path:            seg.SourcePath,
			Description:     seg.Description,
			NormalizedStart: seg.Start,
			NormalizedEnd:   seg.End,
			ParametersJSON:  "[]",
		},
		Band:       band,
		Duration:   duration,
		EnqueuedAt: time.Now(),
	}
}

type addRecordingArgs struct {
	Description string `json:"description"`
}

func (s *Server) handleAddRecording(ctx context.Context, msg control.Message) {
	path, ok := control.StringArg(msg.Args, 0)
	if !ok {
		s.sendError("add_recording requires a path argument")
		return
	}
	var args addRecordingArgs
	if err := control.ObjectArg(msg.Args, 1, &args); err != nil {
		s.sendError(err.Error())
		return
	}

	rec, err := s.engine.IngestRecording(ctx, path, args.Description)
	if err != nil {
		s.sendError(err.Error())
		return
	}
	s.sendConfirm(fmt.Sprintf("recording %s added", rec.Path))
}

type addEffectArgs struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleAddEffect(ctx context.Context, msg control.Message) {
	path, ok := control.StringArg(msg.Args, 0)
	if !ok {
		s.sendError("add_effect requires a path argument")
		return
	}
	var args addEffectArgs
	if err := control.ObjectArg(msg.Args, 1, &args); err != nil {
		s.sendError(err.Error())
		return
	}

	eff, err := s.engine.IngestEffect(ctx, path, args.Name, args.Description)
	if err != nil {
		s.sendError(err.Error())
		return
	}
	s.sendConfirm(fmt.Sprintf("effect %s added", eff.Path))
}

type addSegmentArgs struct {
	SourcePath     string   `json:"source_path"`
	Start          float64  `json:"start"`
	End            float64  `json:"end"`
	SegmentationID string   `json:"segmentation_id"`
	FreqLow        *float64 `json:"freq_low"`
	FreqHigh       *float64 `json:"freq_high"`
	Duration       *float64 `json:"duration"`
}

func (s *Server) handleAddSegment(ctx context.Context, msg control.Message) {
	description, ok := control.StringArg(msg.Args, 0)
	if !ok {
		s.sendError("add_segment requires a description argument")
		return
	}
	var args addSegmentArgs
	if err := control.ObjectArg(msg.Args, 1, &args); err != nil {
		s.sendError(err.Error())
		return
	}

	seg := &docstore.Segment{
		SourcePath:     args.SourcePath,
		SegmentationID: args.SegmentationID,
		Start:          args.Start,
		End:            args.End,
		Description:    description,
		FreqLow:        args.FreqLow,
		FreqHigh:       args.FreqHigh,
		Duration:       args.Duration,
	}
	if err := s.engine.IngestSegment(ctx, seg); err != nil {
		s.sendError(err.Error())
		return
	}
	s.sendConfirm(fmt.Sprintf("segment %s added", seg.ID))
}

type addPresetArgs struct {
	EffectPath string         `json:"effect_path"`
	Parameters map[string]any `json:"parameters"`
}

func (s *Server) handleAddPreset(ctx context.Context, msg control.Message) {
	description, ok := control.StringArg(msg.Args, 0)
	if !ok {
		s.sendError("add_preset requires a description argument")
		return
	}
	var args addPresetArgs
	if err := control.ObjectArg(msg.Args, 1, &args); err != nil {
		s.sendError(err.Error())
		return
	}

	preset, err := s.engine.IngestPreset(ctx, args.EffectPath, paramsFromMap(args.Parameters), description)
	if err != nil {
		s.sendError(err.Error())
		return
	}
	s.sendConfirm(fmt.Sprintf("preset %s added", preset.ID))
}

// paramsFromMap converts the JSON object of parameters into the ordered
// Param list the document store expects, sorting by name since JSON
// object key order is not preserved by encoding/json.
func paramsFromMap(m map[string]any) []docstore.Param {
	if len(m) == 0 {
		return nil
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]docstore.Param, 0, len(names))
	for _, name := range names {
		params = append(params, docstore.Param{Name: name, Value: m[name]})
	}
	return params
}

func (s *Server) handleRebuildIndex(ctx context.Context, msg control.Message) {
	report, err := s.engine.RebuildIndex(ctx)
	if err != nil {
		s.sendError(err.Error())
		return
	}
	s.sendConfirm(fmt.Sprintf("rebuilt %d, failed %d", report.Rebuilt, len(report.Failed)))
}

func (s *Server) handleStats(ctx context.Context, msg control.Message) {
	stats, err := s.engine.Stats()
	if err != nil {
		s.sendError(err.Error())
		return
	}
	activeNiches, queued := s.orch.Stats()

	s.sendMessage(control.Message{
		Address: "/stats_result",
		Args: []any{
			stats.Recordings,
			stats.Segments,
			stats.Effects,
			stats.Presets,
			s.index.Size(),
			activeNiches,
			queued,
		},
	})
}

// handleStop performs the graceful-shutdown sequence spec.md §5
// describes: persist the vector index, confirm, then cancel Run's context
// so the periodic tick and the transport loop unwind (the store and
// transport are closed by Close once Run returns).
func (s *Server) handleStop(ctx context.Context, msg control.Message) {
	if err := s.index.Save(s.cfg.Embedding.IndexFile); err != nil {
		slog.Error("failed to persist index on stop", slog.String("error", err.Error()))
	}
	s.sendConfirm("stopping")

	s.mu.Lock()
	stop := s.stopFn
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (s *Server) sendManifest(m orchestrator.Manifestation) {
	s.sendMessage(control.Message{
		Address: "/manifest",
		Args: []any{
			m.SequenceIndex,
			m.Collection,
			m.Score,
			m.Path,
			m.Description,
			m.NormalizedStart,
			m.NormalizedEnd,
			m.ParametersJSON,
		},
	})
}

func (s *Server) sendConfirm(message string) {
	s.sendMessage(control.Message{Address: "/confirm", Args: []any{message}})
}

func (s *Server) sendError(message string) {
	s.sendMessage(control.Message{Address: "/error", Args: []any{message}})
}

func (s *Server) sendMessage(m control.Message) {
	if err := s.transport.Send(m); err != nil {
		slog.Error("failed to send control message", slog.String("address", m.Address), slog.String("error", err.Error()))
	}
}

// Close releases the store and transport in reverse dependency order
// (spec.md §9). The vector index is persisted separately by
// handleStop/`/stop`, not here, so a crash-without-/stop loses only the
// in-memory additions since the last save.
func (s *Server) Close() error {
	transportErr := s.transport.Close()
	storeErr := s.store.Close()
	if transportErr != nil {
		return transportErr
	}
	return storeErr
}
