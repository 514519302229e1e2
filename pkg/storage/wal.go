package storage

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// JournalEntry records one accepted request and its outcome.
type JournalEntry struct {
	Time      time.Time `json:"time"`
	RequestID string    `json:"requestId,omitempty"`
	Kind      string    `json:"kind"` // submit | cancel
	Symbol    string    `json:"symbol"`
	Request   any       `json:"request"`
	Result    any       `json:"result,omitempty"`
}

// Journal is an append-only audit trail of requests.
type Journal interface {
	Append(e JournalEntry) error
	Close() error
}

type NopJournal struct{}

func NewNopJournal() *NopJournal                { return &NopJournal{} }
func (*NopJournal) Append(_ JournalEntry) error { return nil }
func (*NopJournal) Close() error                { return nil }

// FileJournal writes one JSON object per line.
type FileJournal struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

func NewFileJournal(path string) (*FileJournal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open journal %s", path)
	}
	return &FileJournal{f: f, enc: json.NewEncoder(f)}, nil
}

func (j *FileJournal) Append(e JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return errors.Wrap(j.enc.Encode(e), "append journal")
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

var _ Journal = (*NopJournal)(nil)
var _ Journal = (*FileJournal)(nil)
