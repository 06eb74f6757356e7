// Package journal records every authority exchange of a session and writes
// it to disk so an encounter can be inspected after the fact.
package journal

import (
	"compress/gzip"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/emberdeck/combat-client-go/internal/combat"
	"go.uber.org/zap"
)

// Version is the on-disk format written by Save.
const Version = 1

const fileExt = ".journal"

// Entry is one recorded exchange. Request and response are kept as JSON so
// the file stays readable without the combat types' encoders.
type Entry struct {
	Seq       int
	Action    string
	StartedAt time.Time
	Duration  time.Duration
	Request   []byte
	Response  []byte
	Err       string
	Checksum  string
	TurnState string
	Log       []string
}

// DecodeRequest unmarshals the recorded request.
func (e *Entry) DecodeRequest() (combat.TurnRequest, error) {
	var req combat.TurnRequest
	err := json.Unmarshal(e.Request, &req)
	return req, err
}

// DecodeResponse unmarshals the recorded response. A failed exchange has none.
func (e *Entry) DecodeResponse() (combat.TurnResponse, error) {
	if len(e.Response) == 0 {
		return combat.TurnResponse{}, nil
	}
	return combat.DecodeTurnResponse(e.Response)
}

// Journal is an ordered list of entries with a cursor for stepping through.
type Journal struct {
	SessionID string
	Entries   []*Entry
	cursor    int
	mu        sync.RWMutex
}

type journalMetadata struct {
	SessionID  string
	Timestamp  time.Time
	Version    int
	EntryCount int
}

// New creates an empty journal for a session.
func New(sessionID string) *Journal {
	return &Journal{SessionID: sessionID, Entries: make([]*Entry, 0)}
}

// Append adds an entry.
func (j *Journal) Append(e *Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Entries = append(j.Entries, e)
}

// Size returns the number of entries.
func (j *Journal) Size() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.Entries)
}

// Start rewinds the cursor and returns the first entry.
func (j *Journal) Start() (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.Entries) == 0 {
		return nil, fmt.Errorf("journal is empty")
	}
	j.cursor = 0
	return j.Entries[0], nil
}

// Next advances the cursor.
func (j *Journal) Next() (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cursor >= len(j.Entries)-1 {
		return nil, fmt.Errorf("end of journal")
	}
	j.cursor++
	return j.Entries[j.cursor], nil
}

// Previous moves the cursor back.
func (j *Journal) Previous() (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cursor <= 0 {
		return nil, fmt.Errorf("beginning of journal")
	}
	j.cursor--
	return j.Entries[j.cursor], nil
}

// Path returns the file name Save uses under dir.
func (j *Journal) Path(dir string) string {
	return filepath.Join(dir, j.SessionID+fileExt)
}

// Save writes the journal to dir as gzip-compressed gob and returns the path.
func (j *Journal) Save(dir string) (string, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create journal directory: %w", err)
	}
	path := j.Path(dir)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create journal file: %w", err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	enc := gob.NewEncoder(gz)

	meta := journalMetadata{
		SessionID:  j.SessionID,
		Timestamp:  time.Now(),
		Version:    Version,
		EntryCount: len(j.Entries),
	}
	if err := enc.Encode(meta); err != nil {
		gz.Close()
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	for i, e := range j.Entries {
		if err := enc.Encode(e); err != nil {
			gz.Close()
			return "", fmt.Errorf("failed to encode entry %d: %w", i, err)
		}
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("failed to flush journal: %w", err)
	}
	return path, nil
}

// Load reads a journal written by Save.
func Load(path string) (*Journal, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	dec := gob.NewDecoder(gz)
	var meta journalMetadata
	if err := dec.Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if meta.Version != Version {
		return nil, fmt.Errorf("unsupported journal version %d", meta.Version)
	}

	j := New(meta.SessionID)
	j.Entries = make([]*Entry, 0, meta.EntryCount)
	for i := 0; i < meta.EntryCount; i++ {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("failed to decode entry %d: %w", i, err)
		}
		j.Entries = append(j.Entries, &e)
	}
	return j, nil
}

// Recorder collects a session's exchanges into a journal. It satisfies
// combat.TurnRecorder.
type Recorder struct {
	mu       sync.Mutex
	journal  *Journal
	dir      string
	autosave bool
	logger   *zap.Logger
}

// NewRecorder creates a recorder that saves under dir. With autosave the
// journal is rewritten after every exchange.
func NewRecorder(dir string, autosave bool, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{dir: dir, autosave: autosave, logger: logger}
}

// RecordTurn appends ex to the journal, starting one on first use.
func (r *Recorder) RecordTurn(ex combat.TurnExchange) {
	entry, err := newEntry(ex)
	if err != nil {
		r.logger.Warn("failed to record exchange",
			zap.String("session_id", ex.SessionID),
			zap.Int("seq", ex.Seq),
			zap.Error(err))
		return
	}

	r.mu.Lock()
	if r.journal == nil {
		r.journal = New(ex.SessionID)
		r.logger.Debug("started journal", zap.String("session_id", ex.SessionID))
	}
	r.journal.Append(entry)
	autosave := r.autosave
	r.mu.Unlock()

	r.logger.Debug("recorded exchange",
		zap.String("session_id", ex.SessionID),
		zap.Int("seq", ex.Seq),
		zap.String("action", string(ex.Action)),
		zap.String("checksum", entry.Checksum))

	if autosave {
		if _, err := r.Save(); err != nil {
			r.logger.Warn("failed to autosave journal", zap.Error(err))
		}
	}
}

// Journal returns the journal being recorded, or nil before the first turn.
func (r *Recorder) Journal() *Journal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.journal
}

// Save writes the journal to the recorder's directory.
func (r *Recorder) Save() (string, error) {
	j := r.Journal()
	if j == nil {
		return "", fmt.Errorf("no exchanges recorded")
	}
	path, err := j.Save(r.dir)
	if err != nil {
		return "", err
	}
	r.logger.Info("journal saved",
		zap.String("session_id", j.SessionID),
		zap.String("path", path),
		zap.Int("entries", j.Size()))
	return path, nil
}

func newEntry(ex combat.TurnExchange) (*Entry, error) {
	req, err := json.Marshal(ex.Request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	var resp []byte
	if ex.Err == "" {
		if resp, err = json.Marshal(ex.Response); err != nil {
			return nil, fmt.Errorf("failed to encode response: %w", err)
		}
	}
	return &Entry{
		Seq:       ex.Seq,
		Action:    string(ex.Action),
		StartedAt: ex.StartedAt,
		Duration:  ex.Duration,
		Request:   req,
		Response:  resp,
		Err:       ex.Err,
		Checksum:  Checksum(ex.View),
		TurnState: ex.View.TurnState,
		Log:       append([]string(nil), ex.View.Log...),
	}, nil
}
