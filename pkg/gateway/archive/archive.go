// Package archive stores the transcript of every finished call.
package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Urzzard/Operador-IA/pkg/core/dialogue"
	"github.com/Urzzard/Operador-IA/pkg/core/types"
)

var (
	ErrNotFound      = errors.New("call record not found")
	ErrInvalidConfig = errors.New("invalid archive configuration")
)

// Hangup reasons recorded on a CallRecord.
const (
	ReasonFarewell = "farewell"
	ReasonStop     = "stop"
	ReasonClosed   = "connection_closed"
	ReasonCanceled = "canceled"
	ReasonTimeout  = "max_duration"
	ReasonNoMatch  = "employee_not_found"
)

// CallRecord is the archived state of one call.
type CallRecord struct {
	CallSID    string            `json:"call_sid"`
	StreamSID  string            `json:"stream_sid"`
	Employee   dialogue.Employee `json:"employee"`
	Stage      dialogue.Stage    `json:"stage"`
	Verified   bool              `json:"verified"`
	Transcript []types.Message   `json:"transcript"`
	StartedAt  time.Time         `json:"started_at"`
	EndedAt    time.Time         `json:"ended_at"`
	Reason     string            `json:"reason"`
}

// Duration is how long the media stream was open.
func (r CallRecord) Duration() time.Duration {
	if r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Store persists call records. Save overwrites an existing record with the same call SID.
type Store interface {
	Save(ctx context.Context, rec CallRecord) error
	Get(ctx context.Context, callSID string) (CallRecord, error)
	// Recent returns up to limit records, most recently ended first.
	Recent(ctx context.Context, limit int) ([]CallRecord, error)
	Close() error
}

// Kind names a Store driver.
type Kind string

const (
	KindMemory   Kind = "memory"
	KindRedis    Kind = "redis"
	KindPostgres Kind = "postgres"
)

// Options tune the drivers. Zero values pick each driver's default.
type Options struct {
	// MaxRecords bounds the memory driver.
	MaxRecords int
	// TTL expires Redis records.
	TTL time.Duration
}

// Open builds the store named by kind. dsn is the Redis URL or Postgres
// connection string; it is ignored for the memory driver.
func Open(ctx context.Context, kind Kind, dsn string, opts Options) (Store, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(string(kind)))) {
	case "", KindMemory:
		return NewMemory(opts.MaxRecords), nil
	case KindRedis:
		if strings.TrimSpace(dsn) == "" {
			return nil, fmt.Errorf("%w: redis url is required", ErrInvalidConfig)
		}
		return OpenRedis(ctx, dsn, opts.TTL)
	case KindPostgres:
		if strings.TrimSpace(dsn) == "" {
			return nil, fmt.Errorf("%w: database url is required", ErrInvalidConfig)
		}
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("%w: unknown archive %q", ErrInvalidConfig, kind)
	}
}

func validate(rec CallRecord) error {
	if strings.TrimSpace(rec.CallSID) == "" {
		return fmt.Errorf("%w: call sid is required", ErrInvalidConfig)
	}
	return nil
}
