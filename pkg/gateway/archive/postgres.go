package archive

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/Urzzard/Operador-IA/pkg/core/dialogue"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Postgres stores records in the call_records table.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, applies pending migrations and returns the store.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migrate archive: %w", err)
	}
	return nil
}

const upsertRecord = `
INSERT INTO call_records (call_sid, stream_sid, employee, stage, verified, transcript, started_at, ended_at, reason)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (call_sid) DO UPDATE SET
	stream_sid = EXCLUDED.stream_sid,
	employee   = EXCLUDED.employee,
	stage      = EXCLUDED.stage,
	verified   = EXCLUDED.verified,
	transcript = EXCLUDED.transcript,
	started_at = EXCLUDED.started_at,
	ended_at   = EXCLUDED.ended_at,
	reason     = EXCLUDED.reason`

const selectColumns = `SELECT call_sid, stream_sid, employee, stage, verified, transcript, started_at, ended_at, reason FROM call_records`

func (s *Postgres) Save(ctx context.Context, rec CallRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	employee, err := json.Marshal(rec.Employee)
	if err != nil {
		return err
	}
	transcript, err := json.Marshal(rec.Transcript)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, upsertRecord,
		rec.CallSID, rec.StreamSID, employee, string(rec.Stage), rec.Verified,
		transcript, rec.StartedAt, rec.EndedAt, rec.Reason)
	if err != nil {
		return fmt.Errorf("save call record: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, callSID string) (CallRecord, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, selectColumns+` WHERE call_sid = $1`, callSID))
	if errors.Is(err, pgx.ErrNoRows) {
		return CallRecord{}, ErrNotFound
	}
	return rec, err
}

func (s *Postgres) Recent(ctx context.Context, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, selectColumns+` ORDER BY ended_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (CallRecord, error) {
	var (
		rec                  CallRecord
		stage                string
		employee, transcript []byte
	)
	if err := row.Scan(&rec.CallSID, &rec.StreamSID, &employee, &stage, &rec.Verified,
		&transcript, &rec.StartedAt, &rec.EndedAt, &rec.Reason); err != nil {
		return CallRecord{}, err
	}
	rec.Stage = dialogue.Stage(stage)
	if err := json.Unmarshal(employee, &rec.Employee); err != nil {
		return CallRecord{}, fmt.Errorf("decode employee: %w", err)
	}
	if err := json.Unmarshal(transcript, &rec.Transcript); err != nil {
		return CallRecord{}, fmt.Errorf("decode transcript: %w", err)
	}
	return rec, nil
}
