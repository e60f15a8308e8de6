package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed mentions.sql
var mentionsSQL string

//go:embed entities.sql
var entitiesSQL string

//go:embed scores.sql
var scoresSQL string

//go:embed assignments.sql
var assignmentsSQL string

// Function lists for verification
var MentionsFunctions = []string{
	"init_mentions",
	"insert_mention",
	"select_mention",
	"select_all_mentions",
	"select_nearest_mentions",
	"delete_mention",
}

var EntitiesFunctions = []string{
	"init_entities",
	"insert_entity",
	"select_entity",
	"select_all_entities",
	"select_nearest_entities",
	"delete_entity",
}

var ScoresFunctions = []string{
	"init_scores",
	"insert_score",
	"select_scores",
	"delete_scores",
	"generate_mention_candidates",
	"generate_entity_candidates",
}

var AssignmentsFunctions = []string{
	"init_assignments",
	"insert_assignment",
	"select_assignments_by_run",
	"select_assignments_by_entity",
	"delete_assignments_by_run",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadMentionsSql loads mention-related SQL functions
func LoadMentionsSql(db *sql.DB, force bool) error {
	return loadSql(db, "mentions", mentionsSQL, MentionsFunctions, force)
}

// LoadEntitiesSql loads entity-related SQL functions
func LoadEntitiesSql(db *sql.DB, force bool) error {
	return loadSql(db, "entities", entitiesSQL, EntitiesFunctions, force)
}

// LoadScoresSql loads score-related SQL functions
func LoadScoresSql(db *sql.DB, force bool) error {
	return loadSql(db, "scores", scoresSQL, ScoresFunctions, force)
}

// LoadAssignmentsSql loads assignment-related SQL functions
func LoadAssignmentsSql(db *sql.DB, force bool) error {
	return loadSql(db, "assignments", assignmentsSQL, AssignmentsFunctions, force)
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadMentionsSql(db, force); err != nil {
		return err
	}

	if err := LoadEntitiesSql(db, force); err != nil {
		return err
	}

	if err := LoadScoresSql(db, force); err != nil {
		return err
	}

	if err := LoadAssignmentsSql(db, force); err != nil {
		return err
	}

	return nil
}

// loadSql executes the given SQL unless all of its functions already exist
// and force is false, then checks that every function was created.
func loadSql(db *sql.DB, name string, query string, functions []string, force bool) error {
	if !force {
		exist, err := checkFunctions(db, functions)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("error executing %s SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, functions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required %s SQL functions were created", name)
	}

	log.Printf("SQL %s functions loaded successfully", name)
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
