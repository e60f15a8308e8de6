package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/siherrmann/linker/helper"
	"github.com/siherrmann/linker/model"
	loadSql "github.com/siherrmann/linker/sql"
)

// ScoresDBHandlerFunctions defines the interface for Scores database operations.
type ScoresDBHandlerFunctions interface {
	InsertScore(record *model.ScoreRecord) error
	InsertScores(ctx context.Context, records []model.ScoreRecord) error
	SelectScores(ctx context.Context, kind model.EdgeKind) (*ScoresFeed, error)
	DeleteScores(kind model.EdgeKind) error
	GenerateCandidates(ctx context.Context, kind model.EdgeKind, k int) (int, error)
}

// ScoresDBHandler handles similarity score operations
type ScoresDBHandler struct {
	db *helper.Database
}

// NewScoresDBHandler creates a new scores database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewScoresDBHandler(db *helper.Database, force bool) (*ScoresDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	scoresDbHandler := &ScoresDBHandler{
		db: db,
	}

	err := loadSql.LoadScoresSql(scoresDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load scores sql", err)
	}

	err = scoresDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ScoresDBHandler")

	return scoresDbHandler, nil
}

// CreateTable creates the 'scores' table in the database.
func (h *ScoresDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_scores();`)
	if err != nil {
		log.Panicf("error initializing scores table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table scores")

	return nil
}

// InsertScore stores a score record. mention_mention pairs are stored in
// canonical order and a duplicate pair keeps the higher score. The record is
// updated with the stored values.
func (h *ScoresDBHandler) InsertScore(record *model.ScoreRecord) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_score($1, $2, $3, $4)`,
		record.Kind,
		record.A,
		record.B,
		record.Score,
	)

	err := row.Scan(
		&record.Kind,
		&record.A,
		&record.B,
		&record.Score,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// InsertScores stores all records in one transaction.
func (h *ScoresDBHandler) InsertScores(ctx context.Context, records []model.ScoreRecord) error {
	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `SELECT insert_score($1, $2, $3, $4)`)
	if err != nil {
		return helper.NewError("prepare", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx, r.Kind, r.A, r.B, r.Score)
		if err != nil {
			return helper.NewError("exec", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return helper.NewError("commit", err)
	}

	h.db.Logger.Debug("Inserted scores", "count", len(records))

	return nil
}

// SelectScores opens a feed over all stored scores of the given kind.
// The caller must close the feed.
func (h *ScoresDBHandler) SelectScores(ctx context.Context, kind model.EdgeKind) (*ScoresFeed, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_scores($1)`,
		kind,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}

	return &ScoresFeed{rows: rows}, nil
}

// DeleteScores deletes all scores of the given kind
func (h *ScoresDBHandler) DeleteScores(kind model.EdgeKind) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_scores($1)`,
		kind,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// GenerateCandidates runs the first pass candidate search in the database:
// for every mention with an embedding the k nearest mentions or entities are
// stored as scores of the given kind. It returns the number of rows written.
func (h *ScoresDBHandler) GenerateCandidates(ctx context.Context, kind model.EdgeKind, k int) (int, error) {
	var query string
	switch kind {
	case model.EdgeKindMentionMention:
		query = `SELECT generate_mention_candidates($1)`
	case model.EdgeKindMentionEntity:
		query = `SELECT generate_entity_candidates($1)`
	default:
		return 0, helper.NewError("generate candidates", fmt.Errorf("unknown edge kind %q", kind))
	}

	var written int
	err := h.db.Instance.QueryRowContext(ctx, query, k).Scan(&written)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	h.db.Logger.Info("Generated candidates", "kind", string(kind), "k", k, "written", written)

	return written, nil
}

// ScoresFeed streams score records from a query result.
type ScoresFeed struct {
	rows *sql.Rows
}

// Next returns the next record or io.EOF once all rows are consumed.
func (f *ScoresFeed) Next() (model.ScoreRecord, error) {
	if !f.rows.Next() {
		if err := f.rows.Err(); err != nil {
			return model.ScoreRecord{}, helper.NewError("rows error", err)
		}
		return model.ScoreRecord{}, io.EOF
	}

	var r model.ScoreRecord
	err := f.rows.Scan(&r.Kind, &r.A, &r.B, &r.Score)
	if err != nil {
		return model.ScoreRecord{}, helper.NewError("scan", err)
	}
	return r, nil
}

// Close releases the underlying rows.
func (f *ScoresFeed) Close() error {
	return f.rows.Close()
}
