// Package costlog provides an append-only JSONL sink for cost records.
// Each record is one JSON object per line, so the log can be tailed or
// fed to standard line-oriented tooling.
package costlog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
	"github.com/custodia-labs/copilot-core/internal/core/ports/driven"
)

// Ensure JSONLSink implements the interface.
var _ driven.CostSink = (*JSONLSink)(nil)

// JSONLSink appends cost records to a JSON-lines file.
type JSONLSink struct {
	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

// record is the wire form of a cost record. Costs are decimal strings.
type record struct {
	RequestID    string    `json:"request_id"`
	Timestamp    time.Time `json:"timestamp"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	InputCost    string    `json:"input_cost"`
	OutputCost   string    `json:"output_cost"`
	TotalCost    string    `json:"total_cost"`
	LatencyMS    int64     `json:"latency_ms"`
	Success      bool      `json:"success"`
}

// NewJSONLSink opens the log file for appending, creating it and its
// parent directory if needed.
func NewJSONLSink(path string) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening cost log: %w", err)
	}
	return &JSONLSink{f: f, w: bufio.NewWriter(f)}, nil
}

// Append writes one record as a single line and flushes, so the log
// stays complete even if the process dies.
func (s *JSONLSink) Append(_ context.Context, rec *domain.CostRecord) error {
	line, err := json.Marshal(record{
		RequestID:    rec.RequestID,
		Timestamp:    rec.Timestamp.UTC(),
		Model:        rec.Model,
		InputTokens:  rec.InputTokens,
		OutputTokens: rec.OutputTokens,
		InputCost:    rec.InputCost.String(),
		OutputCost:   rec.OutputCost.String(),
		TotalCost:    rec.TotalCost.String(),
		LatencyMS:    rec.Latency.Milliseconds(),
		Success:      rec.Success,
	})
	if err != nil {
		return fmt.Errorf("marshaling cost record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(line); err != nil {
		return fmt.Errorf("writing cost record: %w", err)
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("writing cost record: %w", err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flushing cost log: %w", err)
	}
	return nil
}

// Close flushes and closes the log file.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return fmt.Errorf("flushing cost log: %w", err)
	}
	return s.f.Close()
}

// ReadRecords parses a JSONL cost log back into records. Blank lines
// are skipped; a malformed line fails the whole read rather than
// silently dropping history.
func ReadRecords(path string) ([]domain.CostRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening cost log: %w", err)
	}
	defer f.Close()

	var records []domain.CostRecord
	scanner := bufio.NewScanner(f)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("cost log line %d: %w", lineNo, err)
		}
		inCost, err := decimal.NewFromString(rec.InputCost)
		if err != nil {
			return nil, fmt.Errorf("cost log line %d: input_cost: %w", lineNo, err)
		}
		outCost, err := decimal.NewFromString(rec.OutputCost)
		if err != nil {
			return nil, fmt.Errorf("cost log line %d: output_cost: %w", lineNo, err)
		}
		total, err := decimal.NewFromString(rec.TotalCost)
		if err != nil {
			return nil, fmt.Errorf("cost log line %d: total_cost: %w", lineNo, err)
		}
		records = append(records, domain.CostRecord{
			RequestID:    rec.RequestID,
			Timestamp:    rec.Timestamp,
			Model:        rec.Model,
			InputTokens:  rec.InputTokens,
			OutputTokens: rec.OutputTokens,
			InputCost:    inCost,
			OutputCost:   outCost,
			TotalCost:    total,
			Latency:      time.Duration(rec.LatencyMS) * time.Millisecond,
			Success:      rec.Success,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading cost log: %w", err)
	}
	return records, nil
}
