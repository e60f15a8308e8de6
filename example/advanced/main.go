package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/linker"
	"github.com/siherrmann/linker/core/graph"
	"github.com/siherrmann/linker/helper"
	"github.com/siherrmann/linker/model"
)

func main() {
	ctx := context.Background()

	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(ctx)

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	// all-MiniLM-L6-v2 produces 384 dimensional embeddings
	l, err := linker.NewLinkerWithDatabase(dbConfig, 384)
	if err != nil {
		log.Fatalf("Failed to create linker: %v", err)
	}
	defer l.Close()

	if err := l.UseDefaultEmbedder(); err != nil {
		log.Fatalf("Failed to load embedder: %v", err)
	}

	entities := []*model.Entity{
		{ID: 100, Name: "Berghain", Metadata: model.Metadata{"city": "Berlin"}},
		{ID: 101, Name: "Tresor", Metadata: model.Metadata{"city": "Berlin"}},
		{ID: 102, Name: "Watergate", Metadata: model.Metadata{"city": "Berlin"}},
		{ID: 200, Name: "Louvre Museum", Metadata: model.Metadata{"city": "Paris"}},
		{ID: 201, Name: "Musée d'Orsay", Metadata: model.Metadata{"city": "Paris"}},
	}
	if err := l.InsertEntities(entities); err != nil {
		log.Fatalf("Failed to insert entities: %v", err)
	}

	mentions := []*model.Mention{
		{ID: "b-0-0", Page: "berlin-clubs", Listing: 0, Item: 0, Text: "Berghain / Panorama Bar"},
		{ID: "b-0-1", Page: "berlin-clubs", Listing: 0, Item: 1, Text: "Club Tresor"},
		{ID: "b-1-0", Page: "berlin-clubs", Listing: 1, Item: 0, Text: "Berghain"},
		{ID: "b-1-1", Page: "berlin-clubs", Listing: 1, Item: 1, Text: "Sisyphos"},
		{ID: "p-0-0", Page: "paris-museums", Listing: 0, Item: 0, Text: "The Louvre"},
		{ID: "p-0-1", Page: "paris-museums", Listing: 0, Item: 1, Text: "Orsay museum"},
		{ID: "p-1-0", Page: "paris-museums", Listing: 1, Item: 0, Text: "Louvre"},
	}
	if err := l.InsertMentions(mentions); err != nil {
		log.Fatalf("Failed to insert mentions: %v", err)
	}

	// Use HNSW with a larger graph for the candidate search
	if err := l.ChangeIndexType(ctx, "mentions", "hnsw", map[string]interface{}{"m": 32, "ef_construction": 128}); err != nil {
		log.Fatalf("Failed to change index type: %v", err)
	}

	config := model.DefaultThresholdConfig()
	config.Strategy = model.StrategyNastyLinker
	config.RerankingMode = model.RerankingFull
	config.TopK = 3
	config.MentionThreshold = 0.85
	config.EntityThreshold = 0.7
	config.AssignmentThreshold = 0.8

	// First pass: 5 nearest neighbours from pgvector, second pass: the embedding scorer
	result, err := l.RunFromDatabase(ctx, config, 5, l.Embedder)
	if err != nil {
		log.Fatalf("Failed to link mentions: %v", err)
	}

	fmt.Printf("\n=== Run %s ===\n", result.RunID)
	for _, r := range result.Records {
		name := "NIL"
		if r.Name != nil {
			name = *r.Name
		}
		fmt.Printf("[%d] %s\n", r.Idx, name)
		for _, m := range r.Mentions {
			fmt.Printf("    %s/%d/%d %q\n", m.Page, m.Listing, m.Item, m.Text)
		}
	}

	for _, w := range result.Warnings {
		fmt.Printf("Warning: %v\n", w)
	}

	// Explain why two mentions ended up in the same cluster
	path, err := result.Explain("b-0-0", "b-1-0")
	if err != nil {
		log.Fatalf("Failed to explain: %v", err)
	}
	if path != nil {
		fmt.Printf("\nb-0-0 and b-1-0 are connected via %v\n", path)
	}

	neighbors, err := graph.BFS(result.Graph, "p-0-0", 2)
	if err != nil {
		log.Fatalf("Failed to traverse: %v", err)
	}
	fmt.Printf("Mentions within 2 hops of p-0-0: %d\n", len(neighbors))

	component, err := result.Component("b-0-0")
	if err != nil {
		log.Fatalf("Failed to collect component: %v", err)
	}
	direct, err := result.Neighbors("b-0-0")
	if err != nil {
		log.Fatalf("Failed to collect neighbors: %v", err)
	}
	fmt.Printf("b-0-0 shares its cluster with %v, %d of them directly\n", component, len(direct))

	// Nearest knowledge base entries of a free text query
	embeddings, err := l.Embedder.Embed([]string{"techno club in Berlin"})
	if err != nil {
		log.Fatalf("Failed to embed query: %v", err)
	}
	nearest, err := l.Entities.SelectNearestEntities(embeddings[0], 3)
	if err != nil {
		log.Fatalf("Failed to search entities: %v", err)
	}
	fmt.Println("\nNearest entities to \"techno club in Berlin\":")
	for _, n := range nearest {
		fmt.Printf("  %s (%.3f)\n", n.Name, n.Similarity)
	}

	stored, err := l.Assignments.SelectAssignmentsByRun(result.RunID)
	if err != nil {
		log.Fatalf("Failed to load stored assignments: %v", err)
	}
	fmt.Printf("\nStored %d assignments for run %s\n", len(stored), result.RunID)
}
