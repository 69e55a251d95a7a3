package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"

	"img2tex/api/internal/extract"
)

//go:embed schema.sql
var schemaSQL string

type ExtractionRepo struct{ DB *sql.DB }

func NewExtractionRepo(db *sql.DB) *ExtractionRepo { return &ExtractionRepo{DB: db} }

// Record is one row of the extractions table. The image itself is never stored.
type Record struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	Surface     string
	Provider    string
	Model       string
	Tier        string
	Outcome     string
	Status      int
	LatencyMS   int64
	ImageSHA256 string
	ImageBytes  int
}

func (r *ExtractionRepo) Migrate(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate extractions: %w", err)
	}
	return nil
}

func (r *ExtractionRepo) Insert(ctx context.Context, rec Record) (uuid.UUID, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	const q = `
insert into extractions
  (id, created_at, surface, provider, model, tier, outcome, status, latency_ms, image_sha256, image_bytes)
values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := r.DB.ExecContext(ctx, q,
		rec.ID, rec.CreatedAt, rec.Surface, rec.Provider, rec.Model, rec.Tier,
		rec.Outcome, rec.Status, rec.LatencyMS, nullIfEmpty(rec.ImageSHA256), rec.ImageBytes,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert extraction: %w", err)
	}
	return rec.ID, nil
}

// PurgeOlderThan deletes rows older than maxAge and returns how many went.
func (r *ExtractionRepo) PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := r.DB.ExecContext(ctx, `delete from extractions where created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge extractions: %w", err)
	}
	return res.RowsAffected()
}

func (r *ExtractionRepo) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

// Record stores an extraction attempt. It satisfies extract.Recorder.
func (r *ExtractionRepo) Record(ctx context.Context, a extract.Attempt) error {
	_, err := r.Insert(ctx, Record{
		Surface:     a.Surface,
		Provider:    a.Provider,
		Model:       a.Model,
		Tier:        string(a.Tier),
		Outcome:     string(a.Outcome),
		Status:      a.Status,
		LatencyMS:   a.Latency.Milliseconds(),
		ImageSHA256: a.ImageSHA256,
		ImageBytes:  a.ImageBytes,
	})
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
