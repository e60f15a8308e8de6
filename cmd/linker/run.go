package main

import (
	"os"

	"github.com/siherrmann/linker"
	"github.com/siherrmann/linker/core/output"
	"github.com/siherrmann/linker/core/similarity"
	"github.com/siherrmann/linker/helper"
	"github.com/siherrmann/linker/model"
	"github.com/spf13/cobra"
)

var runFlags struct {
	mentions string
	entities string
	scores   string
	out      string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Link mentions read from JSON lines files",
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

		mentions, err := readJSONLines[model.Mention](runFlags.mentions)
		if err != nil {
			return helper.NewError("read mentions", err)
		}

		var entities []*model.Entity
		if runFlags.entities != "" {
			entities, err = readJSONLines[model.Entity](runFlags.entities)
			if err != nil {
				return helper.NewError("read entities", err)
			}
		}
		kb, err := model.NewKnowledgeBase(entities)
		if err != nil {
			return helper.NewError("knowledge base", err)
		}

		input := &linker.Input{
			Mentions:      mentions,
			KnowledgeBase: kb,
			Scorer:        scorer,
		}
		if runFlags.scores != "" {
			f, err := os.Open(runFlags.scores)
			if err != nil {
				return helper.NewError("open scores", err)
			}
			defer f.Close()
			input.Feed = similarity.NewJSONLinesFeed(f)
		}

		result, err := linker.NewLinker(newLogger()).Run(cmd.Context(), input, config)
		if err != nil {
			return err
		}

		out, closeOut, err := createOutput(runFlags.out)
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

func init() {
	flags := runCmd.Flags()
	flags.StringVar(&runFlags.mentions, "mentions", "", "mentions JSON lines file")
	flags.StringVar(&runFlags.entities, "entities", "", "knowledge base JSON lines file")
	flags.StringVar(&runFlags.scores, "scores", "", "similarity scores JSON lines file")
	flags.StringVar(&runFlags.out, "out", "-", "output JSON lines file, - for stdout")
	_ = runCmd.MarkFlagRequired("mentions")

	rootCmd.AddCommand(runCmd)
}
