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
	"github.com/siherrmann/linker/sql"
)

// EntitiesDBHandlerFunctions defines the interface for Entities database operations.
type EntitiesDBHandlerFunctions interface {
	InsertEntity(entity *model.Entity) error
	DeleteEntity(id model.EntityID) error
	SelectEntity(id model.EntityID) (*model.Entity, error)
	SelectAllEntities() ([]*model.Entity, error)
	SelectNearestEntities(embedding []float32, k int) ([]*NearestEntity, error)
}

// NearestEntity is an entity returned by a vector search together with its
// similarity to the query in [0,1].
type NearestEntity struct {
	*model.Entity
	Similarity float64 `json:"similarity"`
}

// EntitiesDBHandler handles knowledge base entity operations
type EntitiesDBHandler struct {
	db *helper.Database
}

// NewEntitiesDBHandler creates a new entities database handler.
// It loads the entity SQL functions and creates the table with the given embedding dimension.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, embeddingDim int, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db: db,
	}

	err := sql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable creates the 'entities' table in the database.
// If the table already exists, it does not create it again.
func (h *EntitiesDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing entities table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table entities")

	return nil
}

// InsertEntity inserts a new entity (or updates if exists)
func (h *EntitiesDBHandler) InsertEntity(entity *model.Entity) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_entity($1, $2, $3, $4)`,
		entity.ID,
		entity.Name,
		pq.Array(entity.Embedding),
		entity.Metadata,
	)

	err := scanEntity(row, entity)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// DeleteEntity deletes an entity by ID
func (h *EntitiesDBHandler) DeleteEntity(id model.EntityID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_entity($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectEntity retrieves an entity by ID
func (h *EntitiesDBHandler) SelectEntity(id model.EntityID) (*model.Entity, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_entity($1)`,
		id,
	)

	entity := &model.Entity{}
	err := scanEntity(row, entity)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// SelectAllEntities retrieves the whole knowledge base ordered by id.
func (h *EntitiesDBHandler) SelectAllEntities() ([]*model.Entity, error) {
	rows, err := h.db.Instance.Query(`SELECT * FROM select_all_entities()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		entity := &model.Entity{}
		err := scanEntity(rows, entity)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}

// SelectNearestEntities retrieves the k entities closest to the embedding by cosine distance.
func (h *EntitiesDBHandler) SelectNearestEntities(embedding []float32, k int) ([]*NearestEntity, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_nearest_entities($1, $2)`,
		pgvector.NewVector(embedding),
		k,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var nearest []*NearestEntity
	for rows.Next() {
		n := &NearestEntity{Entity: &model.Entity{}}
		err := rows.Scan(
			&n.ID,
			&n.Name,
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

// ChangeIndexType rebuilds the entity embedding index, see changeIndexType.
func (h *EntitiesDBHandler) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	return changeIndexType(ctx, h.db, "entities", indexType, params)
}

func scanEntity(row scanner, entity *model.Entity) error {
	return row.Scan(
		&entity.ID,
		&entity.Name,
		pq.Array(&entity.Embedding),
		&entity.Metadata,
		&entity.CreatedAt,
	)
}
