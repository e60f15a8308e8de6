package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/linker/helper"
	"github.com/siherrmann/linker/model"
	loadSql "github.com/siherrmann/linker/sql"
)

// MentionsDBHandlerFunctions defines the interface for Mentions database operations.
type MentionsDBHandlerFunctions interface {
	InsertMention(mention *model.Mention) error
	DeleteMention(id model.MentionID) error
	SelectMention(id model.MentionID) (*model.Mention, error)
	SelectAllMentions() ([]*model.Mention, error)
	SelectNearestMentions(embedding []float32, k int) ([]*NearestMention, error)
}

// NearestMention is a mention returned by a vector search together with its
// similarity to the query in [0,1].
type NearestMention struct {
	*model.Mention
	Similarity float64 `json:"similarity"`
}

// MentionsDBHandler handles mention-related database operations
type MentionsDBHandler struct {
	db *helper.Database
}

// NewMentionsDBHandler creates a new mentions database handler.
// It loads the mention SQL functions and creates the table with the given embedding dimension.
// If force is true, it will reload the SQL functions even if they already exist.
func NewMentionsDBHandler(db *helper.Database, embeddingDim int, force bool) (*MentionsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	mentionsDbHandler := &MentionsDBHandler{
		db: db,
	}

	err := loadSql.LoadMentionsSql(mentionsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load mentions sql", err)
	}

	err = mentionsDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized MentionsDBHandler")

	return mentionsDbHandler, nil
}

// CreateTable creates the 'mentions' table and its indexes if they do not exist.
func (h *MentionsDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_mentions($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing mentions table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table mentions")

	return nil
}

// InsertMention inserts a mention or replaces the stored one with the same id.
func (h *MentionsDBHandler) InsertMention(mention *model.Mention) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_mention($1, $2, $3, $4, $5, $6, $7)`,
		mention.ID,
		mention.Page,
		mention.Listing,
		mention.Item,
		mention.Text,
		pq.Array(mention.Embedding),
		mention.Metadata,
	)

	err := scanMention(row, mention)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// DeleteMention deletes a mention by id
func (h *MentionsDBHandler) DeleteMention(id model.MentionID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_mention($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectMention retrieves a mention by id
func (h *MentionsDBHandler) SelectMention(id model.MentionID) (*model.Mention, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_mention($1)`,
		id,
	)

	mention := &model.Mention{}
	err := scanMention(row, mention)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return mention, nil
}

// SelectAllMentions retrieves all mentions in source-then-position order.
func (h *MentionsDBHandler) SelectAllMentions() ([]*model.Mention, error) {
	rows, err := h.db.Instance.Query(`SELECT * FROM select_all_mentions()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var mentions []*model.Mention
	for rows.Next() {
		mention := &model.Mention{}
		err := scanMention(rows, mention)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		mentions = append(mentions, mention)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return mentions, nil
}

// SelectNearestMentions retrieves the k mentions closest to the embedding by cosine distance.
func (h *MentionsDBHandler) SelectNearestMentions(embedding []float32, k int) ([]*NearestMention, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_nearest_mentions($1, $2)`,
		pgvector.NewVector(embedding),
		k,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var nearest []*NearestMention
	for rows.Next() {
		n := &NearestMention{Mention: &model.Mention{}}
		err := rows.Scan(
			&n.ID,
			&n.Page,
			&n.Listing,
			&n.Item,
			&n.Text,
			pq.Array(&n.Embedding),
			&n.Metadata,
			&n.CreatedAt,
			&n.Similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		nearest = append(nearest, n)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return nearest, nil
}

// ChangeIndexType rebuilds the mention embedding index, see changeIndexType.
func (h *MentionsDBHandler) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	return changeIndexType(ctx, h.db, "mentions", indexType, params)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMention(row scanner, mention *model.Mention) error {
	return row.Scan(
		&mention.ID,
		&mention.Page,
		&mention.Listing,
		&mention.Item,
		&mention.Text,
		pq.Array(&mention.Embedding),
		&mention.Metadata,
		&mention.CreatedAt,
	)
}
