package docstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO

	hierrors "github.com/jpdrecourt/hibikido-go/internal/errors"
)

// Store is the document store (C3), backed by modernc.org/sqlite in WAL
// mode for concurrent access, with a single-connection pool.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// Open creates or opens the sqlite-backed document store at path. path ==
// "" opens an in-memory store, used by tests. See DESIGN.md's "Open
// Questions resolved": the §6 `mongodb.uri` config key is threaded
// through here as a local sqlite DSN/path.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, hierrors.StoreError("create store directory", err)
			}
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, hierrors.StoreError("open document store", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS recordings (
			id TEXT PRIMARY KEY,
			path TEXT UNIQUE NOT NULL,
			description TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS segmentations (
			id TEXT PRIMARY KEY,
			method TEXT NOT NULL,
			parameters TEXT NOT NULL,
			description TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS segments (
			id TEXT PRIMARY KEY,
			source_path TEXT NOT NULL,
			segmentation_id TEXT NOT NULL,
			start_norm REAL NOT NULL,
			end_norm REAL NOT NULL,
			description TEXT NOT NULL,
			embedding_text TEXT NOT NULL,
			row INTEGER UNIQUE NOT NULL,
			freq_low REAL,
			freq_high REAL,
			duration REAL,
			created_at TIMESTAMP NOT NULL,
			FOREIGN KEY(source_path) REFERENCES recordings(path),
			FOREIGN KEY(segmentation_id) REFERENCES segmentations(id)
		)`,
		`CREATE TABLE IF NOT EXISTS effects (
			id TEXT PRIMARY KEY,
			path TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS presets (
			id TEXT PRIMARY KEY,
			effect_path TEXT NOT NULL,
			parameters TEXT NOT NULL,
			description TEXT NOT NULL,
			embedding_text TEXT NOT NULL,
			row INTEGER UNIQUE NOT NULL,
			created_at TIMESTAMP NOT NULL,
			FOREIGN KEY(effect_path) REFERENCES effects(path)
		)`,
		`CREATE TABLE IF NOT EXISTS row_owner (
			row INTEGER PRIMARY KEY,
			collection TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS performances (
			id TEXT PRIMARY KEY,
			date TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS invocations (
			performance_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			raw_text TEXT NOT NULL,
			matched_segment_id TEXT NOT NULL,
			FOREIGN KEY(performance_id) REFERENCES performances(id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return hierrors.StoreError("migrate schema", err)
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// --- Recordings ---------------------------------------------------------

// UpsertRecording inserts path if unseen, otherwise returns the existing
// record unchanged (spec.md §8 "repeating /add_recording is a no-op").
func (s *Store) UpsertRecording(path, description string, now time.Time) (*Recording, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, err := s.getRecordingByPathLocked(path); err == nil {
		return existing, false, nil
	}

	if path == "" {
		return nil, false, hierrors.ValidationError("recording path is required", nil)
	}

	rec := &Recording{ID: newID(), Path: path, Description: description, CreatedAt: now}
	_, err := s.db.Exec(`INSERT INTO recordings (id, path, description, created_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Path, rec.Description, rec.CreatedAt)
	if err != nil {
		return nil, false, hierrors.StoreError("insert recording", err)
	}
	return rec, true, nil
}

func (s *Store) GetRecordingByPath(path string) (*Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getRecordingByPathLocked(path)
}

func (s *Store) getRecordingByPathLocked(path string) (*Recording, error) {
	row := s.db.QueryRow(`SELECT id, path, description, created_at FROM recordings WHERE path = ?`, path)
	var r Recording
	if err := row.Scan(&r.ID, &r.Path, &r.Description, &r.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, hierrors.NotFoundError("recording not found: " + path)
		}
		return nil, hierrors.StoreError("query recording", err)
	}
	return &r, nil
}

// --- Effects -------------------------------------------------------------

func (s *Store) UpsertEffect(path, name, description string, now time.Time) (*Effect, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, err := s.getEffectByPathLocked(path); err == nil {
		return existing, false, nil
	}
	if path == "" {
		return nil, false, hierrors.ValidationError("effect path is required", nil)
	}

	eff := &Effect{ID: newID(), Path: path, Name: name, Description: description, CreatedAt: now}
	_, err := s.db.Exec(`INSERT INTO effects (id, path, name, description, created_at) VALUES (?, ?, ?, ?, ?)`,
		eff.ID, eff.Path, eff.Name, eff.Description, eff.CreatedAt)
	if err != nil {
		return nil, false, hierrors.StoreError("insert effect", err)
	}
	return eff, true, nil
}

func (s *Store) GetEffectByPath(path string) (*Effect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getEffectByPathLocked(path)
}

func (s *Store) getEffectByPathLocked(path string) (*Effect, error) {
	row := s.db.QueryRow(`SELECT id, path, name, description, created_at FROM effects WHERE path = ?`, path)
	var e Effect
	if err := row.Scan(&e.ID, &e.Path, &e.Name, &e.Description, &e.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, hierrors.NotFoundError("effect not found: " + path)
		}
		return nil, hierrors.StoreError("query effect", err)
	}
	return &e, nil
}

// --- Segmentations ---------------------------------------------------------

func (s *Store) UpsertSegmentation(seg *Segmentation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seg.ID == "" {
		return hierrors.ValidationError("segmentation id is required", nil)
	}
	params, err := json.Marshal(seg.Parameters)
	if err != nil {
		return hierrors.ValidationError("invalid segmentation parameters", err)
	}

	_, err = s.db.Exec(`INSERT INTO segmentations (id, method, parameters, description) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`, seg.ID, seg.Method, string(params), seg.Description)
	if err != nil {
		return hierrors.StoreError("insert segmentation", err)
	}
	return nil
}

func (s *Store) GetSegmentation(id string) (*Segmentation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getSegmentationLocked(id)
}

func (s *Store) getSegmentationLocked(id string) (*Segmentation, error) {
	row := s.db.QueryRow(`SELECT id, method, parameters, description FROM segmentations WHERE id = ?`, id)
	var seg Segmentation
	var params string
	if err := row.Scan(&seg.ID, &seg.Method, &params, &seg.Description); err != nil {
		if err == sql.ErrNoRows {
			return nil, hierrors.NotFoundError("segmentation not found: " + id)
		}
		return nil, hierrors.StoreError("query segmentation", err)
	}
	_ = json.Unmarshal([]byte(params), &seg.Parameters)
	return &seg, nil
}

// --- Segments --------------------------------------------------------------

// InsertSegment validates referential integrity (source recording and
// segmentation must already exist) and persists the segment at the given
// row, which the caller must have already reserved in the vector index
// (spec.md §4.5 ingest_segment: embed, add to index, then persist).
func (s *Store) InsertSegment(seg *Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seg.ID == "" {
		seg.ID = newID()
	}
	if !(seg.Start >= 0 && seg.Start < seg.End && seg.End <= 1) {
		return hierrors.ValidationError(fmt.Sprintf("invalid segment bounds [%v, %v)", seg.Start, seg.End), nil)
	}
	if _, err := s.getRecordingByPathLocked(seg.SourcePath); err != nil {
		return hierrors.ReferentialError("unknown source_path: " + seg.SourcePath)
	}
	if _, err := s.getSegmentationLocked(seg.SegmentationID); err != nil {
		return hierrors.ReferentialError("unknown segmentation_id: " + seg.SegmentationID)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return hierrors.StoreError("begin transaction", err)
	}
	_, err = tx.Exec(`INSERT INTO segments (id, source_path, segmentation_id, start_norm, end_norm, description,
		embedding_text, row, freq_low, freq_high, duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seg.ID, seg.SourcePath, seg.SegmentationID, seg.Start, seg.End, seg.Description,
		seg.EmbeddingText, seg.Row, seg.FreqLow, seg.FreqHigh, seg.Duration, seg.CreatedAt)
	if err != nil {
		tx.Rollback()
		return hierrors.StoreError("insert segment", err)
	}
	if _, err := tx.Exec(`INSERT INTO row_owner (row, collection) VALUES (?, ?)`, seg.Row, CollectionSegments); err != nil {
		tx.Rollback()
		return hierrors.StoreError("insert row owner", err)
	}
	return wrapStoreErr("commit segment insert", tx.Commit())
}

// UpdateSegmentRow reassigns row, used by RebuildIndex.
func (s *Store) UpdateSegmentRow(id string, row int) error {
	return s.updateSegmentRebuilt(id, row, nil)
}

// UpdateSegmentAfterRebuild reassigns row and the recomputed embedding
// text together, atomically, for a rebuild_index pass that recomposes
// embedding text from source documents (spec.md §4.5).
func (s *Store) UpdateSegmentAfterRebuild(id string, embeddingText string, row int) error {
	return s.updateSegmentRebuilt(id, row, &embeddingText)
}

func (s *Store) updateSegmentRebuilt(id string, row int, embeddingText *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return hierrors.StoreError("begin transaction", err)
	}
	if embeddingText != nil {
		_, err = tx.Exec(`UPDATE segments SET row = ?, embedding_text = ? WHERE id = ?`, row, *embeddingText, id)
	} else {
		_, err = tx.Exec(`UPDATE segments SET row = ? WHERE id = ?`, row, id)
	}
	if err != nil {
		tx.Rollback()
		return hierrors.StoreError("update segment row", err)
	}
	if _, err := tx.Exec(`INSERT INTO row_owner (row, collection) VALUES (?, ?)`, row, CollectionSegments); err != nil {
		tx.Rollback()
		return hierrors.StoreError("update row owner", err)
	}
	return wrapStoreErr("commit segment row update", tx.Commit())
}

func (s *Store) GetSegment(id string) (*Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRow(segmentSelectByID, id)
	return scanSegment(row)
}

func (s *Store) getSegmentByRowLocked(row int) (*Segment, error) {
	r := s.db.QueryRow(segmentSelectByRow, row)
	return scanSegment(r)
}

const segmentColumns = `id, source_path, segmentation_id, start_norm, end_norm, description, embedding_text, row, freq_low, freq_high, duration, created_at`
const segmentSelectByID = `SELECT ` + segmentColumns + ` FROM segments WHERE id = ?`
const segmentSelectByRow = `SELECT ` + segmentColumns + ` FROM segments WHERE row = ?`

func scanSegment(row *sql.Row) (*Segment, error) {
	var seg Segment
	if err := row.Scan(&seg.ID, &seg.SourcePath, &seg.SegmentationID, &seg.Start, &seg.End, &seg.Description,
		&seg.EmbeddingText, &seg.Row, &seg.FreqLow, &seg.FreqHigh, &seg.Duration, &seg.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, hierrors.NotFoundError("segment not found")
		}
		return nil, hierrors.StoreError("query segment", err)
	}
	return &seg, nil
}

func (s *Store) AllSegments() ([]*Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT ` + segmentColumns + ` FROM segments ORDER BY row ASC`)
	if err != nil {
		return nil, hierrors.StoreError("query segments", err)
	}
	defer rows.Close()

	var out []*Segment
	for rows.Next() {
		var seg Segment
		if err := rows.Scan(&seg.ID, &seg.SourcePath, &seg.SegmentationID, &seg.Start, &seg.End, &seg.Description,
			&seg.EmbeddingText, &seg.Row, &seg.FreqLow, &seg.FreqHigh, &seg.Duration, &seg.CreatedAt); err != nil {
			return nil, hierrors.StoreError("scan segment", err)
		}
		out = append(out, &seg)
	}
	return out, nil
}

func (s *Store) CountSegments() (int, error) {
	return s.count("segments")
}

// --- Presets -----------------------------------------------------------

func (s *Store) InsertPreset(p *Preset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = newID()
	}
	if _, err := s.getEffectByPathLocked(p.EffectPath); err != nil {
		return hierrors.ReferentialError("unknown effect_path: " + p.EffectPath)
	}

	params, err := json.Marshal(p.Parameters)
	if err != nil {
		return hierrors.ValidationError("invalid preset parameters", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return hierrors.StoreError("begin transaction", err)
	}
	_, err = tx.Exec(`INSERT INTO presets (id, effect_path, parameters, description, embedding_text, row, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.EffectPath, string(params), p.Description, p.EmbeddingText, p.Row, p.CreatedAt)
	if err != nil {
		tx.Rollback()
		return hierrors.StoreError("insert preset", err)
	}
	if _, err := tx.Exec(`INSERT INTO row_owner (row, collection) VALUES (?, ?)`, p.Row, CollectionPresets); err != nil {
		tx.Rollback()
		return hierrors.StoreError("insert row owner", err)
	}
	return wrapStoreErr("commit preset insert", tx.Commit())
}

func (s *Store) UpdatePresetRow(id string, row int) error {
	return s.updatePresetRebuilt(id, row, nil)
}

// UpdatePresetAfterRebuild reassigns row and the recomputed embedding
// text together, atomically.
func (s *Store) UpdatePresetAfterRebuild(id string, embeddingText string, row int) error {
	return s.updatePresetRebuilt(id, row, &embeddingText)
}

func (s *Store) updatePresetRebuilt(id string, row int, embeddingText *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return hierrors.StoreError("begin transaction", err)
	}
	if embeddingText != nil {
		_, err = tx.Exec(`UPDATE presets SET row = ?, embedding_text = ? WHERE id = ?`, row, *embeddingText, id)
	} else {
		_, err = tx.Exec(`UPDATE presets SET row = ? WHERE id = ?`, row, id)
	}
	if err != nil {
		tx.Rollback()
		return hierrors.StoreError("update preset row", err)
	}
	if _, err := tx.Exec(`INSERT INTO row_owner (row, collection) VALUES (?, ?)`, row, CollectionPresets); err != nil {
		tx.Rollback()
		return hierrors.StoreError("update row owner", err)
	}
	return wrapStoreErr("commit preset row update", tx.Commit())
}

const presetColumns = `id, effect_path, parameters, description, embedding_text, row, created_at`

func (s *Store) GetPreset(id string) (*Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRow(`SELECT `+presetColumns+` FROM presets WHERE id = ?`, id)
	return scanPreset(row)
}

func (s *Store) getPresetByRowLocked(row int) (*Preset, error) {
	r := s.db.QueryRow(`SELECT `+presetColumns+` FROM presets WHERE row = ?`, row)
	return scanPreset(r)
}

func scanPreset(row *sql.Row) (*Preset, error) {
	var p Preset
	var params string
	if err := row.Scan(&p.ID, &p.EffectPath, &params, &p.Description, &p.EmbeddingText, &p.Row, &p.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, hierrors.NotFoundError("preset not found")
		}
		return nil, hierrors.StoreError("query preset", err)
	}
	_ = json.Unmarshal([]byte(params), &p.Parameters)
	return &p, nil
}

func (s *Store) AllPresets() ([]*Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT ` + presetColumns + ` FROM presets ORDER BY row ASC`)
	if err != nil {
		return nil, hierrors.StoreError("query presets", err)
	}
	defer rows.Close()

	var out []*Preset
	for rows.Next() {
		var p Preset
		var params string
		if err := rows.Scan(&p.ID, &p.EffectPath, &params, &p.Description, &p.EmbeddingText, &p.Row, &p.CreatedAt); err != nil {
			return nil, hierrors.StoreError("scan preset", err)
		}
		_ = json.Unmarshal([]byte(params), &p.Parameters)
		out = append(out, &p)
	}
	return out, nil
}

func (s *Store) CountPresets() (int, error) {
	return s.count("presets")
}

// --- Row namespace -------------------------------------------------------

// FindByRow resolves row to its owning document across both collections.
// The row_owner side index names the owning collection in one lookup, so
// no segments-then-presets two-table scan is needed; the matching
// document is then read from that collection alone.
func (s *Store) FindByRow(row int) (collection string, segment *Segment, preset *Preset, err error) {
	s.mu.Lock()
	owner, ownerErr := s.rowOwnerLocked(row)
	s.mu.Unlock()
	if ownerErr != nil {
		return "", nil, nil, ownerErr
	}

	switch owner {
	case CollectionSegments:
		seg, err := s.GetSegmentByRow(row)
		return CollectionSegments, seg, nil, err
	case CollectionPresets:
		p, err := s.GetPresetByRow(row)
		return CollectionPresets, nil, p, err
	default:
		return "", nil, nil, hierrors.NotFoundError("row has no owner")
	}
}

func (s *Store) GetSegmentByRow(row int) (*Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getSegmentByRowLocked(row)
}

func (s *Store) GetPresetByRow(row int) (*Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getPresetByRowLocked(row)
}

func (s *Store) rowOwnerLocked(row int) (string, error) {
	var collection string
	err := s.db.QueryRow(`SELECT collection FROM row_owner WHERE row = ?`, row).Scan(&collection)
	if err == sql.ErrNoRows {
		return "", hierrors.NotFoundError("row has no owner")
	}
	if err != nil {
		return "", hierrors.StoreError("query row owner", err)
	}
	return collection, nil
}

// ClearRowOwnership drops all row_owner entries, used before RebuildIndex
// reassigns rows from scratch.
func (s *Store) ClearRowOwnership() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM row_owner`)
	return wrapStoreErr("clear row ownership", err)
}

// QuarantineRowsForRebuild negates every segment's and preset's row
// (row -> -row-1) and clears row_owner, in one transaction, before a
// rebuild starts reassigning rows from 0. The pre-rebuild rows are
// already unique per table (the UNIQUE constraint guarantees it), so
// their negations stay unique and strictly negative — disjoint from the
// 0..N-1 range rebuild is about to hand out. Without this, a document
// that fails its re-embed keeps its old positive row untouched, and the
// very next successfully rebuilt document can be assigned that same
// integer, tripping the row UNIQUE constraint on an otherwise-successful
// rebuild (spec.md §7's atomic-per-document requirement).
func (s *Store) QuarantineRowsForRebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return hierrors.StoreError("begin transaction", err)
	}
	if _, err := tx.Exec(`UPDATE segments SET row = -row - 1`); err != nil {
		tx.Rollback()
		return hierrors.StoreError("quarantine segment rows", err)
	}
	if _, err := tx.Exec(`UPDATE presets SET row = -row - 1`); err != nil {
		tx.Rollback()
		return hierrors.StoreError("quarantine preset rows", err)
	}
	if _, err := tx.Exec(`DELETE FROM row_owner`); err != nil {
		tx.Rollback()
		return hierrors.StoreError("clear row ownership", err)
	}
	return wrapStoreErr("commit row quarantine", tx.Commit())
}

// --- Performances ----------------------------------------------------------

// AppendInvocation records one invocation against sessionID, creating the
// performance session row on first use of that session id.
func (s *Store) AppendInvocation(sessionID string, date time.Time, inv Invocation, seq int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO performances (id, date) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		sessionID, date)
	if err != nil {
		return hierrors.StoreError("insert performance", err)
	}

	_, err = s.db.Exec(`INSERT INTO invocations (performance_id, seq, raw_text, matched_segment_id)
		VALUES (?, ?, ?, ?)`,
		sessionID, seq, inv.RawText, inv.MatchedSegmentID)
	return wrapStoreErr("insert invocation", err)
}

func (s *Store) GetPerformance(id string) (*Performance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var perf Performance
	perf.ID = id
	if err := s.db.QueryRow(`SELECT date FROM performances WHERE id = ?`, id).Scan(&perf.Date); err != nil {
		if err == sql.ErrNoRows {
			return nil, hierrors.NotFoundError("performance not found: " + id)
		}
		return nil, hierrors.StoreError("query performance", err)
	}

	rows, err := s.db.Query(`SELECT raw_text, matched_segment_id
		FROM invocations WHERE performance_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, hierrors.StoreError("query invocations", err)
	}
	defer rows.Close()

	for rows.Next() {
		var inv Invocation
		if err := rows.Scan(&inv.RawText, &inv.MatchedSegmentID); err != nil {
			return nil, hierrors.StoreError("scan invocation", err)
		}
		perf.Invocations = append(perf.Invocations, inv)
	}
	return &perf, nil
}

func (s *Store) ListPerformances() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT id FROM performances ORDER BY date ASC`)
	if err != nil {
		return nil, hierrors.StoreError("list performances", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, hierrors.StoreError("scan performance id", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// --- Stats -----------------------------------------------------------------

func (s *Store) Stats() (Stats, error) {
	recordings, err := s.count("recordings")
	if err != nil {
		return Stats{}, err
	}
	segments, err := s.CountSegments()
	if err != nil {
		return Stats{}, err
	}
	effects, err := s.count("effects")
	if err != nil {
		return Stats{}, err
	}
	presets, err := s.CountPresets()
	if err != nil {
		return Stats{}, err
	}
	return Stats{Recordings: recordings, Segments: segments, Effects: effects, Presets: presets}, nil
}

func (s *Store) count(table string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		return 0, hierrors.StoreError("count "+table, err)
	}
	return n, nil
}

// wrapStoreErr returns nil if err is nil, otherwise a StoreError wrapping
// it. Needed because hierrors.StoreError always builds a non-nil
// *HibikidoError, so it must never be returned unconditionally in place
// of a raw possibly-nil error.
func wrapStoreErr(message string, err error) error {
	if err == nil {
		return nil
	}
	return hierrors.StoreError(message, err)
}
