package main

import (
	"encoding/json"
	"os"

	"github.com/siherrmann/linker"
	"github.com/siherrmann/linker/core/output"
	"github.com/siherrmann/linker/helper"
	"github.com/siherrmann/linker/model"
	"github.com/spf13/cobra"
)

var dbFlags struct {
	dim         int
	mentions    string
	entities    string
	scores      string
	embed       bool
	candidatesK int
	out         string
	indexType   string
	table       string
	runID       string
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Work with mentions, entities and runs stored in postgres (DB_* environment)",
}

var dbImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Store mentions, entities and scores from JSON lines files",
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := openLinker()
		if err != nil {
			return err
		}
		defer l.Close()

		if dbFlags.embed {
			if err := l.UseDefaultEmbedder(); err != nil {
				return err
			}
		}

		if dbFlags.entities != "" {
			entities, err := readJSONLines[model.Entity](dbFlags.entities)
			if err != nil {
				return helper.NewError("read entities", err)
			}
			if err := l.InsertEntities(entities); err != nil {
				return err
			}
		}

		if dbFlags.mentions != "" {
			mentions, err := readJSONLines[model.Mention](dbFlags.mentions)
			if err != nil {
				return helper.NewError("read mentions", err)
			}
			if err := l.InsertMentions(mentions); err != nil {
				return err
			}
		}

		if dbFlags.scores != "" {
			records, err := readJSONLines[model.ScoreRecord](dbFlags.scores)
			if err != nil {
				return helper.NewError("read scores", err)
			}
			values := make([]model.ScoreRecord, len(records))
			for i, r := range records {
				values[i] = *r
			}
			if err := l.Scores.InsertScores(cmd.Context(), values); err != nil {
				return err
			}
		}

		return nil
	},
}

var dbRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Link all stored mentions and store the assignments",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := thresholdConfig()
		if err != nil {
			return err
		}
		scorer, closer, err := newScorer()
		if err != nil {
			return err
		}
		defer closer.Close()

		l, err := openLinker()
		if err != nil {
			return err
		}
		defer l.Close()

		result, err := l.RunFromDatabase(cmd.Context(), config, dbFlags.candidatesK, scorer)
		if err != nil {
			return err
		}

		out, closeOut, err := createOutput(dbFlags.out)
		if err != nil {
			return err
		}
		if err := output.WriteJSONLines(out, result.Records); err != nil {
			closeOut()
			return err
		}
		return closeOut()
	},
}

var dbAssignmentsCmd = &cobra.Command{
	Use:   "assignments",
	Short: "Print the stored assignments of a run",
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, err := parseRunID(dbFlags.runID)
		if err != nil {
			return err
		}

		l, err := openLinker()
		if err != nil {
			return err
		}
		defer l.Close()

		assignments, err := l.Assignments.SelectAssignmentsByRun(runID)
		if err != nil {
			return err
		}

		encoder := json.NewEncoder(os.Stdout)
		for _, a := range assignments {
			if err := encoder.Encode(a); err != nil {
				return helper.NewError("write assignment", err)
			}
		}
		return nil
	},
}

var dbIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Switch the vector index of a table between hnsw and ivfflat",
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := openLinker()
		if err != nil {
			return err
		}
		defer l.Close()

		return l.ChangeIndexType(cmd.Context(), dbFlags.table, dbFlags.indexType, nil)
	},
}

func openLinker() (*linker.Linker, error) {
	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		return nil, err
	}
	return linker.NewLinkerWithDatabase(dbConfig, dbFlags.dim)
}

func init() {
	dbCmd.PersistentFlags().IntVar(&dbFlags.dim, "dim", 384, "embedding dimension of the mentions and entities tables")

	dbImportCmd.Flags().StringVar(&dbFlags.mentions, "mentions", "", "mentions JSON lines file")
	dbImportCmd.Flags().StringVar(&dbFlags.entities, "entities", "", "knowledge base JSON lines file")
	dbImportCmd.Flags().StringVar(&dbFlags.scores, "scores", "", "similarity scores JSON lines file")
	dbImportCmd.Flags().BoolVar(&dbFlags.embed, "embed", false, "embed texts without a vector using the default model")

	dbRunCmd.Flags().IntVar(&dbFlags.candidatesK, "candidates", 0, "generate the k nearest candidates per mention before linking, 0 to use stored scores only")
	dbRunCmd.Flags().StringVar(&dbFlags.out, "out", "-", "output JSON lines file, - for stdout")

	dbAssignmentsCmd.Flags().StringVar(&dbFlags.runID, "run", "", "run id")
	_ = dbAssignmentsCmd.MarkFlagRequired("run")

	dbIndexCmd.Flags().StringVar(&dbFlags.table, "table", "mentions", "mentions or entities")
	dbIndexCmd.Flags().StringVar(&dbFlags.indexType, "type", "hnsw", "hnsw or ivfflat")

	dbCmd.AddCommand(dbImportCmd, dbRunCmd, dbAssignmentsCmd, dbIndexCmd)
	rootCmd.AddCommand(dbCmd)
}
