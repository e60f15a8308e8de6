package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/siherrmann/linker"
	"github.com/siherrmann/linker/core/output"
	"github.com/siherrmann/linker/core/similarity"
	"github.com/siherrmann/linker/model"
)

func main() {
	// Mentions extracted from two listing pages
	mentions := []*model.Mention{
		{ID: "m1", Page: "berlin-nightlife", Listing: 0, Item: 0, Text: "Alexanderplatz"},
		{ID: "m2", Page: "berlin-nightlife", Listing: 0, Item: 3, Text: "Alex"},
		{ID: "m3", Page: "berlin-nightlife", Listing: 1, Item: 0, Text: "Tresor"},
		{ID: "m4", Page: "paris-museums", Listing: 0, Item: 0, Text: "Musée du Louvre"},
		{ID: "m5", Page: "paris-museums", Listing: 0, Item: 1, Text: "Le Grand Rex"},
	}

	kb, err := model.NewKnowledgeBase([]*model.Entity{
		{ID: 1, Name: "Alexanderplatz"},
		{ID: 2, Name: "Tresor"},
		{ID: 3, Name: "Louvre"},
	})
	if err != nil {
		log.Fatalf("Failed to create knowledge base: %v", err)
	}

	// Scores as produced by the upstream encoders
	store, err := similarity.NewMemoryStoreFromEdges([]model.SimilarityEdge{
		{Kind: model.EdgeKindMentionMention, SourceMention: "m1", TargetMention: "m2", Score: 0.95},
		{Kind: model.EdgeKindMentionMention, SourceMention: "m2", TargetMention: "m3", Score: 0.4},
		{Kind: model.EdgeKindMentionEntity, SourceMention: "m1", TargetEntity: 1, Score: 0.9},
		{Kind: model.EdgeKindMentionEntity, SourceMention: "m2", TargetEntity: 1, Score: 0.6},
		{Kind: model.EdgeKindMentionEntity, SourceMention: "m3", TargetEntity: 2, Score: 0.92},
		{Kind: model.EdgeKindMentionEntity, SourceMention: "m4", TargetEntity: 3, Score: 0.88},
		{Kind: model.EdgeKindMentionEntity, SourceMention: "m5", TargetEntity: 3, Score: 0.3},
	})
	if err != nil {
		log.Fatalf("Failed to create similarity store: %v", err)
	}

	config := model.DefaultThresholdConfig()
	config.Strategy = model.StrategyMajority

	l := linker.NewLinker(nil)
	result, err := l.Run(context.Background(), &linker.Input{
		Mentions:      mentions,
		KnowledgeBase: kb,
		Store:         store,
	}, config)
	if err != nil {
		log.Fatalf("Failed to link mentions: %v", err)
	}

	fmt.Printf("\nRun %s: %d clusters\n", result.RunID, len(result.Clusters))
	for i, c := range result.Clusters {
		a := result.Assignments[i]
		if a.IsNil {
			fmt.Printf("  cluster %d %v -> NIL %s\n", c.ID, c.Mentions, a.NilID)
		} else {
			fmt.Printf("  cluster %d %v -> %s (score %.2f, support %d)\n", c.ID, c.Mentions, kb.Name(a.Entity), a.Score, a.Support)
		}
	}

	fmt.Println("\nOutput records:")
	if err := output.WriteJSONLines(os.Stdout, result.Records); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}
}
