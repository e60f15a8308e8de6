package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/siherrmann/linker/helper"
	"github.com/siherrmann/linker/model"
	loadSql "github.com/siherrmann/linker/sql"
)

// AssignmentsDBHandlerFunctions defines the interface for Assignments database operations.
type AssignmentsDBHandlerFunctions interface {
	InsertAssignments(ctx context.Context, runID uuid.UUID, assignments []*model.Assignment, clusters []*model.Cluster) ([]*model.RunAssignment, error)
	SelectAssignmentsByRun(runID uuid.UUID) ([]*model.RunAssignment, error)
	SelectAssignmentsByEntity(entityID model.EntityID) ([]*model.RunAssignment, error)
	DeleteAssignmentsByRun(runID uuid.UUID) error
}

// AssignmentsDBHandler persists the results of linking runs
type AssignmentsDBHandler struct {
	db *helper.Database
}

// NewAssignmentsDBHandler creates a new assignments database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewAssignmentsDBHandler(db *helper.Database, force bool) (*AssignmentsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	assignmentsDbHandler := &AssignmentsDBHandler{
		db: db,
	}

	err := loadSql.LoadAssignmentsSql(assignmentsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load assignments sql", err)
	}

	err = assignmentsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized AssignmentsDBHandler")

	return assignmentsDbHandler, nil
}

// CreateTable creates the 'assignments' table in the database.
func (h *AssignmentsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_assignments();`)
	if err != nil {
		log.Panicf("error initializing assignments table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table assignments")

	return nil
}

// InsertAssignments stores the assignments of one run in a single
// transaction. assignments[i] must belong to clusters[i].
func (h *AssignmentsDBHandler) InsertAssignments(ctx context.Context, runID uuid.UUID, assignments []*model.Assignment, clusters []*model.Cluster) ([]*model.RunAssignment, error) {
	if len(assignments) != len(clusters) {
		return nil, helper.NewError("insert assignments", fmt.Errorf("got %d assignments for %d clusters", len(assignments), len(clusters)))
	}

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return nil, helper.NewError("begin", err)
	}
	defer tx.Rollback()

	stored := make([]*model.RunAssignment, 0, len(assignments))
	for i, a := range assignments {
		if a.ClusterID != clusters[i].ID {
			return nil, helper.NewDataIntegrityError("assignment does not match cluster order", fmt.Sprint(a.ClusterID))
		}

		row := tx.QueryRowContext(
			ctx,
			`SELECT * FROM insert_assignment($1, $2, $3, $4, $5, $6, $7, $8)`,
			runID,
			a.ClusterID,
			a.Entity,
			a.IsNil,
			a.NilID,
			a.Score,
			a.Support,
			pq.Array(mentionStrings(clusters[i].Mentions)),
		)

		r, err := scanRunAssignment(row)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		stored = append(stored, r)
	}

	err = tx.Commit()
	if err != nil {
		return nil, helper.NewError("commit", err)
	}

	h.db.Logger.Info("Stored assignments", "run", runID.String(), "count", len(stored))

	return stored, nil
}

// SelectAssignmentsByRun retrieves the assignments of a run in cluster order.
func (h *AssignmentsDBHandler) SelectAssignmentsByRun(runID uuid.UUID) ([]*model.RunAssignment, error) {
	return h.selectAssignments(`SELECT * FROM select_assignments_by_run($1)`, runID)
}

// SelectAssignmentsByEntity retrieves every stored assignment to the entity across runs.
func (h *AssignmentsDBHandler) SelectAssignmentsByEntity(entityID model.EntityID) ([]*model.RunAssignment, error) {
	return h.selectAssignments(`SELECT * FROM select_assignments_by_entity($1)`, entityID)
}

// DeleteAssignmentsByRun deletes all assignments of a run
func (h *AssignmentsDBHandler) DeleteAssignmentsByRun(runID uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_assignments_by_run($1)`,
		runID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func (h *AssignmentsDBHandler) selectAssignments(query string, arg any) ([]*model.RunAssignment, error) {
	rows, err := h.db.Instance.Query(query, arg)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var assignments []*model.RunAssignment
	for rows.Next() {
		r, err := scanRunAssignment(rows)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		assignments = append(assignments, r)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return assignments, nil
}

func scanRunAssignment(row scanner) (*model.RunAssignment, error) {
	r := &model.RunAssignment{}
	var entity sql.NullInt64
	var nilID sql.NullString
	var mentions []string

	err := row.Scan(
		&r.ID,
		&r.RunID,
		&r.ClusterID,
		&entity,
		&r.IsNil,
		&nilID,
		&r.Score,
		&r.Support,
		pq.Array(&mentions),
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Entity = model.EntityID(entity.Int64)
	r.NilID = nilID.String
	r.Mentions = make([]model.MentionID, len(mentions))
	for i, m := range mentions {
		r.Mentions[i] = model.MentionID(m)
	}
	return r, nil
}

func mentionStrings(ids []model.MentionID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
