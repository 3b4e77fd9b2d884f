// Package audit is the append-only compliance trail. Every gate
// evaluation writes exactly one record; records are never mutated.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/orionhq/riskgate/pkg/id"
)

// Entry is one audit record, serialized as a single JSON line.
type Entry struct {
	AuditID  string            `json:"audit_id"`
	TS       string            `json:"ts"`
	Kind     string            `json:"kind"`
	Symbol   string            `json:"symbol"`
	Side     string            `json:"side"`
	Qty      float64           `json:"qty"`
	Type     string            `json:"type"`
	Price    *float64          `json:"price"`
	Notional float64           `json:"notional"`
	Reasons  map[string]string `json:"reasons"`
	Result   string            `json:"result"` // ALLOW | BLOCK
	Preset   any               `json:"preset"`
}

// Journal records audit entries. Append returns the assigned audit ID
// and must fail hard: a dropped audit record is a compliance breach,
// not a degradation.
type Journal interface {
	Append(e Entry) (string, error)
	Close() error
}

// JSONL appends one JSON object per line to a local file. The file is
// opened O_APPEND and writes are serialized, so concurrent evaluators
// never interleave records.
type JSONL struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func NewJSONL(path string) (*JSONL, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &JSONL{path: path, f: f}, nil
}

func (j *JSONL) Append(e Entry) (string, error) {
	if e.AuditID == "" {
		e.AuditID = id.New()
	}
	if e.TS == "" {
		e.TS = time.Now().UTC().Format(time.RFC3339)
	}

	line, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal audit entry: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.f.Write(append(line, '\n')); err != nil {
		return "", fmt.Errorf("append audit entry: %w", err)
	}
	return e.AuditID, nil
}

func (j *JSONL) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}
