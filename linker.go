package linker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/linker/core/assign"
	"github.com/siherrmann/linker/core/cluster"
	"github.com/siherrmann/linker/core/graph"
	"github.com/siherrmann/linker/core/output"
	"github.com/siherrmann/linker/core/rerank"
	"github.com/siherrmann/linker/core/similarity"
	"github.com/siherrmann/linker/database"
	"github.com/siherrmann/linker/helper"
	"github.com/siherrmann/linker/model"
	loadSql "github.com/siherrmann/linker/sql"
)

// Linker runs the clustering and entity assignment stages over a batch of
// mentions. The database handlers are only set by NewLinkerWithDatabase.
type Linker struct {
	DB          *helper.Database
	Mentions    *database.MentionsDBHandler
	Entities    *database.EntitiesDBHandler
	Scores      *database.ScoresDBHandler
	Assignments *database.AssignmentsDBHandler
	Embedder    *rerank.EmbeddingScorer // Optional, embeds texts on insert
	clusterer   *cluster.Engine
	// Logging
	log *slog.Logger
}

// Input is one batch to link. Scores come from Store, or from Feed when
// Store is nil. Scorer is required for reranking modes other than none.
// Nil mentions are skipped.
type Input struct {
	Mentions      []*model.Mention
	KnowledgeBase *model.KnowledgeBase
	Store         similarity.Store
	Feed          similarity.Feed
	Scorer        rerank.Scorer
}

// Result holds everything a run produced. The graph is kept for audits.
type Result struct {
	RunID       uuid.UUID
	Graph       *graph.Graph
	Clusters    []*model.Cluster
	Assignments []*model.Assignment
	Records     []*model.OutputRecord
	Warnings    []*helper.AmbiguousAssignmentWarning
}

// Explain returns the chain of retained mention_mention edges connecting two
// mentions of the result, or nil if they are in different clusters.
func (r *Result) Explain(a, b model.MentionID) ([]model.MentionID, error) {
	return graph.Path(r.Graph, a, b)
}

// Component returns every mention connected to id by retained edges in
// source-then-position order, which is the mention list of id's cluster.
func (r *Result) Component(id model.MentionID) ([]model.MentionID, error) {
	reached, err := graph.DFS(r.Graph, id, r.Graph.Len())
	if err != nil {
		return nil, err
	}
	slices.SortFunc(reached, func(x, y *graph.TraversalResult) int {
		return model.CompareMentions(x.Mention, y.Mention)
	})

	ids := make([]model.MentionID, len(reached))
	for i, t := range reached {
		ids[i] = t.Mention.ID
	}
	return ids, nil
}

// Neighbors returns the mentions sharing a retained edge with id.
func (r *Result) Neighbors(id model.MentionID) ([]*model.Mention, error) {
	return graph.GetNeighbors(r.Graph, id)
}

// NewLinker creates an in-memory linker. A nil logger selects the pretty
// handler on stdout at info level.
func NewLinker(logger *slog.Logger) *Linker {
	if logger == nil {
		logger = helper.NewLogger(os.Stdout, slog.LevelInfo)
	}
	return &Linker{
		clusterer: cluster.NewEngine(logger),
		log:       logger,
	}
}

// NewLinkerWithDatabase creates a linker with all handlers initialized
func NewLinkerWithDatabase(config *helper.DatabaseConfiguration, embeddingDim int) (*Linker, error) {
	l := NewLinker(nil)

	db := helper.NewDatabase("linker", config, l.log)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// force=false to not reload if functions already exist
	mentions, err := database.NewMentionsDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create mentions handler", err)
	}

	entities, err := database.NewEntitiesDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create entities handler", err)
	}

	scores, err := database.NewScoresDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create scores handler", err)
	}

	assignments, err := database.NewAssignmentsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create assignments handler", err)
	}

	l.DB = db
	l.Mentions = mentions
	l.Entities = entities
	l.Scores = scores
	l.Assignments = assignments
	return l, nil
}

// Close closes the database connection and the embedder session
func (l *Linker) Close() error {
	if l.Embedder != nil {
		if err := l.Embedder.Close(); err != nil {
			return helper.NewError("close embedder", err)
		}
	}
	if l.DB != nil && l.DB.Instance != nil {
		return l.DB.Instance.Close()
	}
	return nil
}

// SetEmbedder sets the embedder used by InsertMentions and InsertEntities.
func (l *Linker) SetEmbedder(embedder *rerank.EmbeddingScorer) {
	l.Embedder = embedder
}

// UseDefaultEmbedder loads the all-MiniLM-L6-v2 model (384 dimensions) as embedder.
func (l *Linker) UseDefaultEmbedder() error {
	embedder, err := rerank.NewEmbeddingScorer(rerank.DefaultEmbeddingModel)
	if err != nil {
		return helper.NewError("create default embedder", err)
	}

	l.Embedder = embedder
	return nil
}

// Run links one batch: validate config, rerank, build the graph, cluster,
// assign and build output records. Any error fails the whole batch.
func (l *Linker) Run(ctx context.Context, input *Input, config model.ThresholdConfig) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if input == nil {
		return nil, helper.NewError("run", fmt.Errorf("input is nil"))
	}

	start := time.Now()
	runID := uuid.New()
	l.log.Info("Starting linking run",
		slog.String("run_id", runID.String()),
		slog.String("strategy", string(config.Strategy)),
		slog.String("reranking_mode", string(config.RerankingMode)),
		slog.Int("mentions", len(input.Mentions)),
	)

	kb := input.KnowledgeBase
	if kb == nil {
		kb, _ = model.NewKnowledgeBase(nil)
	}

	store := input.Store
	if store == nil {
		loaded := similarity.NewMemoryStore()
		if input.Feed != nil {
			if err := similarity.LoadInto(ctx, loaded, input.Feed); err != nil {
				return nil, helper.NewError("load scores", err)
			}
		}
		store = loaded
	}

	reranker := rerank.NewReranker(input.Scorer, input.Mentions, kb, l.log)
	store, err := reranker.Rerank(ctx, store, config.RerankingMode, config.TopK)
	if err != nil {
		return nil, helper.NewError("rerank", err)
	}

	g, err := graph.Build(ctx, input.Mentions, kb, store, config)
	if err != nil {
		return nil, helper.NewError("build graph", err)
	}
	l.log.Info("Built similarity graph",
		slog.Int("mentions", g.Len()),
		slog.Int("mention_edges", len(g.Edges())),
		slog.Int("entity_edges", g.EntityEdgeCount()),
	)

	clusters, err := l.clusterer.Cluster(g)
	if err != nil {
		return nil, helper.NewError("cluster", err)
	}
	if err := cluster.VerifyPartition(g.Len(), clusters); err != nil {
		return nil, helper.NewError("verify partition", err)
	}

	engine, err := assign.NewEngine(config, l.log)
	if err != nil {
		return nil, err
	}
	assignments, warnings, err := engine.Assign(ctx, runID, g, clusters)
	if err != nil {
		return nil, err
	}

	records, err := output.Build(assignments, clusters, g)
	if err != nil {
		return nil, helper.NewError("build output", err)
	}

	l.log.Info("Finished linking run",
		slog.String("run_id", runID.String()),
		slog.Int("clusters", len(clusters)),
		slog.Int("records", len(records)),
		slog.Int("warnings", len(warnings)),
		slog.Duration("took", time.Since(start)),
	)

	return &Result{
		RunID:       runID,
		Graph:       g,
		Clusters:    clusters,
		Assignments: assignments,
		Records:     records,
		Warnings:    warnings,
	}, nil
}

// InsertMentions stores mentions, embedding those without a vector first
// if an embedder is set. Nil entries are skipped as in Run.
func (l *Linker) InsertMentions(mentions []*model.Mention) error {
	if l.Mentions == nil {
		return helper.NewError("insert mentions", fmt.Errorf("database not initialized, use NewLinkerWithDatabase()"))
	}

	var missing []*model.Mention
	for _, m := range mentions {
		if m != nil && len(m.Embedding) == 0 {
			missing = append(missing, m)
		}
	}
	if l.Embedder != nil && len(missing) > 0 {
		texts := make([]string, len(missing))
		for i, m := range missing {
			texts[i] = m.Text
		}
		embeddings, err := l.Embedder.Embed(texts)
		if err != nil {
			return helper.NewError("embed mentions", err)
		}
		for i, m := range missing {
			m.Embedding = embeddings[i]
		}
	}

	for i, m := range mentions {
		if m == nil {
			continue
		}
		if err := l.Mentions.InsertMention(m); err != nil {
			return helper.NewError(fmt.Sprintf("insert mention %d", i), err)
		}
	}

	l.log.Info("Inserted mentions", slog.Int("count", len(mentions)), slog.Int("embedded", len(missing)))
	return nil
}

// InsertEntities stores knowledge base entities, embedding their names first
// if an embedder is set and they have no vector.
func (l *Linker) InsertEntities(entities []*model.Entity) error {
	if l.Entities == nil {
		return helper.NewError("insert entities", fmt.Errorf("database not initialized, use NewLinkerWithDatabase()"))
	}

	var missing []*model.Entity
	for _, e := range entities {
		if len(e.Embedding) == 0 {
			missing = append(missing, e)
		}
	}
	if l.Embedder != nil && len(missing) > 0 {
		texts := make([]string, len(missing))
		for i, e := range missing {
			texts[i] = e.Name
		}
		embeddings, err := l.Embedder.Embed(texts)
		if err != nil {
			return helper.NewError("embed entities", err)
		}
		for i, e := range missing {
			e.Embedding = embeddings[i]
		}
	}

	for i, e := range entities {
		if err := l.Entities.InsertEntity(e); err != nil {
			return helper.NewError(fmt.Sprintf("insert entity %d", i), err)
		}
	}

	l.log.Info("Inserted entities", slog.Int("count", len(entities)))
	return nil
}

// RunFromDatabase links all stored mentions against the stored knowledge
// base and persists the assignments under the run id. With candidatesK > 0
// the first-pass scores are generated from the stored embeddings first.
func (l *Linker) RunFromDatabase(ctx context.Context, config model.ThresholdConfig, candidatesK int, scorer rerank.Scorer) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if l.DB == nil {
		return nil, helper.NewError("run from database", fmt.Errorf("database not initialized, use NewLinkerWithDatabase()"))
	}

	if candidatesK > 0 {
		for _, kind := range []model.EdgeKind{model.EdgeKindMentionMention, model.EdgeKindMentionEntity} {
			if _, err := l.Scores.GenerateCandidates(ctx, kind, candidatesK); err != nil {
				return nil, helper.NewError("generate candidates", err)
			}
		}
	}

	mentions, err := l.Mentions.SelectAllMentions()
	if err != nil {
		return nil, helper.NewError("select mentions", err)
	}
	entities, err := l.Entities.SelectAllEntities()
	if err != nil {
		return nil, helper.NewError("select entities", err)
	}
	kb, err := model.NewKnowledgeBase(entities)
	if err != nil {
		return nil, helper.NewError("knowledge base", err)
	}

	store := similarity.NewMemoryStore()
	for _, kind := range []model.EdgeKind{model.EdgeKindMentionMention, model.EdgeKindMentionEntity} {
		feed, err := l.Scores.SelectScores(ctx, kind)
		if err != nil {
			return nil, helper.NewError("select scores", err)
		}
		err = similarity.LoadInto(ctx, store, feed)
		feed.Close()
		if err != nil {
			return nil, helper.NewError("load scores", err)
		}
	}

	result, err := l.Run(ctx, &Input{
		Mentions:      mentions,
		KnowledgeBase: kb,
		Store:         store,
		Scorer:        scorer,
	}, config)
	if err != nil {
		return nil, err
	}

	_, err = l.Assignments.InsertAssignments(ctx, result.RunID, result.Assignments, result.Clusters)
	if err != nil {
		return nil, helper.NewError("store assignments", err)
	}

	return result, nil
}

// ChangeIndexType changes the vector index type of the mentions or entities
// table between HNSW and IVFFlat
func (l *Linker) ChangeIndexType(ctx context.Context, table string, indexType string, params map[string]interface{}) error {
	switch table {
	case "mentions":
		return l.Mentions.ChangeIndexType(ctx, indexType, params)
	case "entities":
		return l.Entities.ChangeIndexType(ctx, indexType, params)
	}
	return helper.NewError("change index type", fmt.Errorf("unsupported table: %s (use 'mentions' or 'entities')", table))
}
