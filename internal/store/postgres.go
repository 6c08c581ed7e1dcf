package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"gavrptw/internal/opt"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("verify postgres connection: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate applies the embedded schema files in name order. Every statement is idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := p.db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

const runColumns = `id::text, seq, instance, engine, params, status, COALESCE(error,''), cost, fitness, best, routes,
	evaluations, generations, duration_ms, created_at, started_at, finished_at`

func (p *Postgres) CreateRun(ctx context.Context, r Run) (Run, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = StatusQueued
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	params, err := json.Marshal(r.Params)
	if err != nil {
		return Run{}, err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO runs (id, instance, engine, params, status, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		r.ID, r.Instance, r.Engine, params, string(r.Status), r.CreatedAt)
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	return r, nil
}

func (p *Postgres) GetRun(ctx context.Context, id string) (Run, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id::text=$1`, id)
	r, _, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

func (p *Postgres) ListRuns(ctx context.Context, instance, cursor string, limit int) ([]Run, string, error) {
	limit = clampLimit(limit)
	var after int64
	if cursor != "" {
		n, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("list runs: bad cursor %q", cursor)
		}
		after = n
	}
	rows, err := p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs
		WHERE ($1 = '' OR instance = $1) AND seq > $2 ORDER BY seq LIMIT $3`, instance, after, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []Run{}
	var last int64
	for rows.Next() {
		r, seq, err := scanRun(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
		last = seq
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) == limit {
		next = strconv.FormatInt(last, 10)
	}
	return out, next, nil
}

func (p *Postgres) MarkRunRunning(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE runs SET status=$2, started_at=now() WHERE id::text=$1`, id, string(StatusRunning))
	return affected(res, err)
}

func (p *Postgres) FinishRun(ctx context.Context, id string, out Outcome) error {
	var r Run
	out.apply(&r, time.Now().UTC())
	best, err := nullJSON(r.Best)
	if err != nil {
		return err
	}
	routes, err := nullJSON(r.Routes)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE runs SET status=$2, error=$3, cost=$4, fitness=$5, best=$6, routes=$7,
		evaluations=$8, generations=GREATEST(generations,$9), duration_ms=$10, finished_at=$11 WHERE id::text=$1`,
		id, string(r.Status), nullIfEmpty(r.Error), r.Cost, r.Fitness, best, routes,
		r.Evaluations, r.Generations, r.DurationMs, *r.FinishedAt)
	return affected(res, err)
}

func (p *Postgres) AppendGenerationStats(ctx context.Context, runID string, s opt.GenerationStats) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	_, err = tx.ExecContext(ctx, `INSERT INTO generation_stats (run_id, generation, evaluated, min_fitness, max_fitness, avg_fitness, std_fitness, avg_cost)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (run_id, generation) DO UPDATE SET evaluated=EXCLUDED.evaluated, min_fitness=EXCLUDED.min_fitness,
			max_fitness=EXCLUDED.max_fitness, avg_fitness=EXCLUDED.avg_fitness, std_fitness=EXCLUDED.std_fitness, avg_cost=EXCLUDED.avg_cost`,
		runID, s.Generation, s.Evaluated, s.Min, s.Max, s.Mean, s.Std, s.AvgCost)
	if err != nil {
		if isPgCode(err, "23503", "22P02") {
			return ErrNotFound
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE runs SET generations=GREATEST(generations,$2) WHERE id::text=$1`, runID, s.Generation+1); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *Postgres) ListGenerationStats(ctx context.Context, runID string, from, limit int) ([]opt.GenerationStats, error) {
	if _, err := p.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 1 << 20
	}
	rows, err := p.db.QueryContext(ctx, `SELECT generation, evaluated, min_fitness, max_fitness, avg_fitness, std_fitness, avg_cost
		FROM generation_stats WHERE run_id::text=$1 AND generation >= $2 ORDER BY generation LIMIT $3`, runID, from, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []opt.GenerationStats{}
	for rows.Next() {
		var s opt.GenerationStats
		if err := rows.Scan(&s.Generation, &s.Evaluated, &s.Min, &s.Max, &s.Mean, &s.Std, &s.AvgCost); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	dk := computeDedupKey(payload)
	err := p.db.QueryRowContext(ctx, `INSERT INTO webhook_deliveries (id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
		VALUES ($1,$2,$3,$4,$5,'pending',0,now(),$6)
		ON CONFLICT (event_type, url, dedup_key) DO UPDATE SET updated_at=webhook_deliveries.updated_at
		RETURNING id::text`, id, eventType, url, nullIfEmpty(secret), payload, dk).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, event_type, url, COALESCE(secret,''), payload, status, attempts, COALESCE(last_error,''), COALESCE(response_code,0), next_attempt_at, dedup_key
		FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDeliveries(rows)
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if !success {
		if nextAttemptAt == nil {
			t := time.Now().Add(1 * time.Minute)
			nextAttemptAt = &t
		}
		res, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id::text=$1`,
			id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
		return affected(res, err)
	}
	res, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', next_attempt_at=NULL, delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id::text=$1`,
		id, responseCode, latencyMs)
	return affected(res, err)
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	res, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', next_attempt_at=NULL, last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id::text=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs)
	return affected(res, err)
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, status string, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, event_type, url, COALESCE(secret,''), payload, status, attempts, COALESCE(last_error,''), COALESCE(response_code,0), next_attempt_at, dedup_key
		FROM webhook_deliveries WHERE ($1 = '' OR status = $1) ORDER BY created_at, id LIMIT $2`, status, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDeliveries(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, int64, error) {
	var r Run
	var seq int64
	var status string
	var params, best, routes []byte
	var started, finished sql.NullTime
	if err := row.Scan(&r.ID, &seq, &r.Instance, &r.Engine, &params, &status, &r.Error, &r.Cost, &r.Fitness, &best, &routes,
		&r.Evaluations, &r.Generations, &r.DurationMs, &r.CreatedAt, &started, &finished); err != nil {
		return Run{}, 0, err
	}
	r.Status = Status(status)
	if err := json.Unmarshal(params, &r.Params); err != nil {
		return Run{}, 0, fmt.Errorf("decode params of run %s: %w", r.ID, err)
	}
	if len(best) > 0 {
		if err := json.Unmarshal(best, &r.Best); err != nil {
			return Run{}, 0, err
		}
	}
	if len(routes) > 0 {
		if err := json.Unmarshal(routes, &r.Routes); err != nil {
			return Run{}, 0, err
		}
	}
	if started.Valid {
		r.StartedAt = &started.Time
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	return r, seq, nil
}

func scanDeliveries(rows *sql.Rows) ([]WebhookDelivery, error) {
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		var next sql.NullTime
		if err := rows.Scan(&d.ID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts, &d.LastError, &d.ResponseCode, &next, &d.DedupKey); err != nil {
			return nil, err
		}
		if next.Valid {
			d.NextAttemptAt = &next.Time
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func affected(res sql.Result, err error) error {
	if err != nil {
		if isPgCode(err, "22P02") {
			return ErrNotFound
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// isPgCode reports whether err carries one of the given SQLSTATE codes.
func isPgCode(err error, codes ...string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	for _, c := range codes {
		if pgErr.Code == c {
			return true
		}
	}
	return false
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullJSON encodes v for a JSONB column, mapping empty slices to NULL.
func nullJSON[T any](v []T) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}
