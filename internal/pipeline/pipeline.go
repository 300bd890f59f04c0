// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	cerrors "community-scout/internal/common/errors"
	"community-scout/internal/common/logger"
	"community-scout/internal/common/observability"
	"community-scout/internal/models"
	"community-scout/internal/pipeline/classify"
	"community-scout/internal/pipeline/dedupe"
	"community-scout/internal/pipeline/expand"
	"community-scout/internal/pipeline/fanout"
	"community-scout/internal/pipeline/merge"
	"community-scout/internal/store"
)

// ErrEmptyQuery is the only error Run surfaces to the caller; every other
// failure degrades into partial results plus debug diagnostics.
var ErrEmptyQuery = errors.New("query must not be empty")

// Meta reports run-level counts for observability.
type Meta struct {
	RunID             string `json:"run_id"`
	Query             string `json:"query"`
	Location          string `json:"location"`
	Intent            string `json:"intent"`
	QueriesUsed       int    `json:"queries_used"`
	CandidatesScanned int    `json:"candidates_scanned"`
	Entities          int    `json:"entities"`
	ElapsedMS         int64  `json:"elapsed_ms"`
	Degraded          bool   `json:"degraded"`
}

// Debug carries non-fatal failure strings and, on empty results, which
// required external configuration values are present, to distinguish "no
// results" from misconfiguration.
type Debug struct {
	Errors []string        `json:"errors,omitempty"`
	Config map[string]bool `json:"config,omitempty"`
}

// Result is the full outcome of one discovery run.
type Result struct {
	Meta    Meta                  `json:"meta"`
	Results []models.MergedEntity `json:"results"`
	Debug   *Debug                `json:"debug,omitempty"`
}

// Pipeline owns the stage components and enforces stage order: expansion,
// then fan-out, then dedupe, then classification, then merge. Each stage
// starts only after the previous one has fully settled.
type Pipeline struct {
	expander   *expand.Expander
	fanout     *fanout.Fanout
	strategies []fanout.Strategy
	classifier *classify.Classifier
	merger     *merge.Merger

	entities store.EntityStore // optional, nil disables the sink
	runLog   store.RunLog      // optional, nil disables the run log

	configHints map[string]bool
	obs         *observability.Observability
	logger      logger.Logger
}

func New(
	expander *expand.Expander,
	fan *fanout.Fanout,
	strategies []fanout.Strategy,
	classifier *classify.Classifier,
	merger *merge.Merger,
	entities store.EntityStore,
	runLog store.RunLog,
	configHints map[string]bool,
	obs *observability.Observability,
	log logger.Logger,
) *Pipeline {
	return &Pipeline{
		expander:    expander,
		fanout:      fan,
		strategies:  strategies,
		classifier:  classifier,
		merger:      merger,
		entities:    entities,
		runLog:      runLog,
		configHints: configHints,
		obs:         obs,
		logger: log.With(map[string]interface{}{
			"component": "pipeline",
		}),
	}
}

func (p *Pipeline) Run(ctx context.Context, rawQuery string) (*Result, error) {
	query := strings.TrimSpace(rawQuery)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	runID := uuid.NewString()
	log := p.logger.With(map[string]interface{}{"runId": runID})
	start := time.Now()
	collector := newErrCollector()

	log.Info("discovery run started", map[string]interface{}{"query": query})

	// Stage 1: expansion. Failure is absorbed inside the expander but still
	// counts as a sub-operation failure for the debug output.
	stageStart := time.Now()
	expansion := p.expander.Expand(ctx, query)
	p.recordStage(ctx, "expand", stageStart)
	if expansion.Degraded {
		collector.Add(cerrors.NewExpansionFailedError(expansion.Err))
		if p.obs != nil {
			p.obs.RecordUnitFailure(ctx, "expansion")
		}
	}

	// Stage 2: fan-out search across all strategies.
	stageStart = time.Now()
	searched := p.fanout.Search(ctx, expansion.Phrases, p.strategies)
	p.recordStage(ctx, "search", stageStart)
	for _, stdErr := range searched.Errors {
		collector.Add(stdErr)
		if p.obs != nil {
			p.obs.RecordUnitFailure(ctx, "search_page")
		}
	}

	// Stage 3: dedupe over the fully joined hit list, both channels against
	// one shared seen-set.
	stageStart = time.Now()
	deduper := dedupe.NewDeduplicator()
	candidates := deduper.Fold(searched.Hits)
	p.recordStage(ctx, "dedupe", stageStart)

	var profileCands, listingCands []models.Candidate
	for _, cand := range candidates {
		if cand.Channel == models.ChannelListing {
			listingCands = append(listingCands, cand)
		} else {
			profileCands = append(profileCands, cand)
		}
	}

	// Stage 4: batched classification per channel.
	stageStart = time.Now()
	profileRes := p.classifier.Classify(ctx, profileCands, models.ChannelProfile, expansion.Query)
	listingRes := p.classifier.Classify(ctx, listingCands, models.ChannelListing, expansion.Query)
	p.recordStage(ctx, "classify", stageStart)
	for _, stdErr := range append(profileRes.Errors, listingRes.Errors...) {
		collector.Add(stdErr)
		if p.obs != nil {
			p.obs.RecordUnitFailure(ctx, "classify_batch")
		}
	}

	// Stage 5: cross-channel merge.
	stageStart = time.Now()
	merged := p.merger.Merge(profileRes.Entities, listingRes.Entities, candidates)
	p.recordStage(ctx, "merge", stageStart)

	p.persist(ctx, merged, collector)

	elapsed := time.Since(start)
	result := &Result{
		Meta: Meta{
			RunID:             runID,
			Query:             query,
			Location:          expansion.Query.Location,
			Intent:            expansion.Query.Intent,
			QueriesUsed:       len(expansion.Phrases),
			CandidatesScanned: len(candidates),
			Entities:          len(merged),
			ElapsedMS:         elapsed.Milliseconds(),
			Degraded:          expansion.Degraded,
		},
		Results: merged,
	}

	p.logRun(ctx, result, collector)

	if errs := collector.Strings(); len(errs) > 0 || len(merged) == 0 {
		result.Debug = &Debug{Errors: errs}
		if len(merged) == 0 {
			result.Debug.Config = p.configHints
		}
	}

	status := "ok"
	if len(collector.Strings()) > 0 {
		status = "partial"
	}
	if p.obs != nil {
		p.obs.RecordRun(ctx, status)
	}

	log.Info("discovery run finished", map[string]interface{}{
		"candidates": len(candidates),
		"entities":   len(merged),
		"failures":   len(collector.Strings()),
		"elapsedMs":  elapsed.Milliseconds(),
	})

	return result, nil
}

// persist upserts every merged entity into the sink. Sink failures are
// logged and aggregated, never surfaced.
func (p *Pipeline) persist(ctx context.Context, merged []models.MergedEntity, collector *errCollector) {
	if p.entities == nil {
		return
	}
	for _, entity := range merged {
		if err := p.entities.Upsert(ctx, entity); err != nil {
			key := store.EntityKey(entity)
			p.logger.Warn("entity upsert failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
			collector.Add(cerrors.NewStoreUpsertFailedError(key, err))
		}
	}
}

func (p *Pipeline) logRun(ctx context.Context, result *Result, collector *errCollector) {
	if p.runLog == nil {
		return
	}
	record := store.RunRecord{
		RunID:      result.Meta.RunID,
		Query:      result.Meta.Query,
		Location:   result.Meta.Location,
		Intent:     result.Meta.Intent,
		Phrases:    result.Meta.QueriesUsed,
		Candidates: result.Meta.CandidatesScanned,
		Entities:   result.Meta.Entities,
		Errors:     len(collector.Strings()),
		ElapsedMS:  result.Meta.ElapsedMS,
		Degraded:   result.Meta.Degraded,
	}
	if err := p.runLog.Record(ctx, record); err != nil {
		p.logger.Warn("run log insert failed", map[string]interface{}{
			"error": err.Error(),
		})
		collector.Add(cerrors.NewRunLogFailedError(err))
	}
}

func (p *Pipeline) recordStage(ctx context.Context, stage string, start time.Time) {
	if p.obs != nil {
		p.obs.RecordStageDuration(ctx, stage, time.Since(start))
	}
}

// errCollector aggregates non-fatal failures for the debug output.
type errCollector struct {
	mu   sync.Mutex
	errs []string
}

func newErrCollector() *errCollector {
	return &errCollector{}
}

func (c *errCollector) Add(err *cerrors.StandardError) {
	if err == nil {
		return
	}
	c.mu.Lock()
	c.errs = append(c.errs, err.String())
	c.mu.Unlock()
}

func (c *errCollector) Strings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.errs))
	copy(out, c.errs)
	return out
}
