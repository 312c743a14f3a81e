package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/review-scraper/pkg/config"
	"github.com/Sriram-PR/review-scraper/pkg/models"
	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

const pingTimeout = 5 * time.Second

const schemaSQL = `
CREATE TABLE IF NOT EXISTS airlines (
	name        TEXT PRIMARY KEY,
	image       TEXT NOT NULL DEFAULT '',
	reviewcount INTEGER
);

CREATE TABLE IF NOT EXISTS reviews (
	id                    BIGSERIAL PRIMARY KEY,
	reviewid              TEXT NOT NULL DEFAULT '',
	username              TEXT NOT NULL DEFAULT '',
	airlinename           TEXT NOT NULL DEFAULT '',
	title                 TEXT NOT NULL DEFAULT '',
	score                 INTEGER,
	content               TEXT NOT NULL DEFAULT '',
	verifiedtype          TEXT NOT NULL DEFAULT '',
	country               TEXT NOT NULL DEFAULT '',
	datereview            DATE,
	aircraft              TEXT NOT NULL DEFAULT '',
	typeoftraveller       TEXT NOT NULL DEFAULT '',
	seattype              TEXT NOT NULL DEFAULT '',
	route                 TEXT NOT NULL DEFAULT '',
	dateflown             TEXT NOT NULL DEFAULT '',
	seatcomfort           INTEGER,
	cabinstaffservice     INTEGER,
	foodbeverages         INTEGER,
	inflightentertainment INTEGER,
	groundservice         INTEGER,
	wificonnectivity      INTEGER,
	valueformoney         INTEGER,
	recommended           TEXT NOT NULL DEFAULT '',
	scraped_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS reviews_reviewid_key ON reviews (reviewid) WHERE reviewid <> '';
CREATE INDEX IF NOT EXISTS reviews_airlinename_idx ON reviews (airlinename);
`

const upsertAirlineSQL = `
INSERT INTO airlines (name, image, reviewcount)
VALUES (:name, :image, :reviewcount)
ON CONFLICT (name) DO UPDATE
SET image = EXCLUDED.image,
    reviewcount = EXCLUDED.reviewcount`

const insertReviewColumns = `
INSERT INTO reviews (
	reviewid, username, airlinename,
	title, score, content, verifiedtype,
	country, datereview,
	aircraft, typeoftraveller, seattype, route, dateflown,
	seatcomfort, cabinstaffservice, foodbeverages,
	inflightentertainment, groundservice, wificonnectivity,
	valueformoney, recommended
) VALUES (
	:reviewid, :username, :airlinename,
	:title, :score, :content, :verifiedtype,
	:country, :datereview,
	:aircraft, :typeoftraveller, :seattype, :route, :dateflown,
	:seatcomfort, :cabinstaffservice, :foodbeverages,
	:inflightentertainment, :groundservice, :wificonnectivity,
	:valueformoney, :recommended
)`

// Reviews with an id are deduplicated against the partial unique index; reviews
// without one are always inserted.
const (
	insertReviewSQL      = insertReviewColumns
	insertReviewDedupSQL = insertReviewColumns + `
ON CONFLICT (reviewid) WHERE reviewid <> '' DO NOTHING`
)

// PostgresSink writes records to PostgreSQL
type PostgresSink struct {
	db  *sqlx.DB
	log *logrus.Entry
}

// NewPostgresSink connects using cfg and, if configured, creates the schema
func NewPostgresSink(ctx context.Context, cfg config.PostgresConfig, log *logrus.Entry) (*PostgresSink, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: open postgres: %w", utils.ErrDatabase, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping postgres: %w", utils.ErrDatabase, err)
	}

	sink := NewPostgresSinkFromDB(db, log)
	if cfg.CreateSchema {
		if err := sink.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return sink, nil
}

// NewPostgresSinkFromDB wraps an existing connection
func NewPostgresSinkFromDB(db *sqlx.DB, log *logrus.Entry) *PostgresSink {
	return &PostgresSink{db: db, log: log.WithField("sink", "postgres")}
}

// EnsureSchema creates the airlines and reviews tables if they do not exist
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%w: create schema: %w", utils.ErrDatabase, err)
	}
	s.log.Info("PostgreSQL schema ready")
	return nil
}

// Name implements Sink
func (s *PostgresSink) Name() string { return "postgres" }

// UpsertAirline implements Sink
func (s *PostgresSink) UpsertAirline(ctx context.Context, rec models.AirlineRecord) error {
	if _, err := s.db.NamedExecContext(ctx, upsertAirlineSQL, rec); err != nil {
		return fmt.Errorf("%w: %w: upsert airline '%s': %w", utils.ErrSink, utils.ErrDatabase, rec.Name, err)
	}
	return nil
}

// InsertReview implements Sink
func (s *PostgresSink) InsertReview(ctx context.Context, rec models.ReviewRecord) error {
	query := insertReviewSQL
	if rec.ReviewID != "" {
		query = insertReviewDedupSQL
	}
	res, err := s.db.NamedExecContext(ctx, query, rec)
	if err != nil {
		return fmt.Errorf("%w: %w: insert review '%s': %w", utils.ErrSink, utils.ErrDatabase, rec.ReviewID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.log.WithField("review_id", rec.ReviewID).Debug("Review already stored, skipped")
	}
	return nil
}

// Close implements Sink
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
