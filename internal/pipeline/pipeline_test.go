// internal/pipeline/pipeline_test.go
package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-scout/internal/common/logger"
	"community-scout/internal/models"
	"community-scout/internal/pipeline/classify"
	"community-scout/internal/pipeline/expand"
	"community-scout/internal/pipeline/fanout"
	"community-scout/internal/pipeline/merge"
	"community-scout/internal/providers/search"
	"community-scout/internal/store"
)

const expansionOutput = `{
	"location": "Vizag",
	"intent": "find run clubs in Vizag",
	"phrases": [{"text": "vizag run club", "layer": "activity"}]
}`

const classifyOutput = `[
	{"name": "Vizag Runners", "handle": "@vizagrunners", "category": "running",
	 "source_url": "https://instagram.com/vizagrunners"},
	{"name": "Beach Yoga", "category": "yoga"}
]`

// stubGenerator answers expansion and classification prompts from fixed
// outputs, telling them apart by the prompt's opening line.
type stubGenerator struct {
	mu           sync.Mutex
	expansion    string
	expansionErr error
	classified   string
}

func (s *stubGenerator) Generate(_ context.Context, _ string, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.HasPrefix(prompt, "You expand") {
		return s.expansion, s.expansionErr
	}
	return s.classified, nil
}

type stubProvider struct {
	mu      sync.Mutex
	respond func(query string, start int) ([]search.Item, error)
}

func (s *stubProvider) Search(_ context.Context, query string, num, start int) ([]search.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.respond(query, start)
}

type fakeSink struct {
	mu      sync.Mutex
	upserts []models.MergedEntity
	err     error
}

func (f *fakeSink) Upsert(_ context.Context, entity models.MergedEntity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, entity)
	return nil
}

func (f *fakeSink) Close() error { return nil }

type fakeRunLog struct {
	mu      sync.Mutex
	records []store.RunRecord
	err     error
}

func (f *fakeRunLog) Record(_ context.Context, record store.RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeRunLog) Close() error { return nil }

func newTestPipeline(t *testing.T, provider search.Provider, gen *stubGenerator, sink store.EntityStore, runLog store.RunLog) *Pipeline {
	t.Helper()
	log := logger.NewNoOpLogger()

	expander := expand.NewExpander(expand.Config{
		PrimaryModel:  "primary",
		FallbackModel: "fallback",
		MaxPhrases:    12,
	}, gen, log)

	fan := fanout.NewFanout(fanout.Config{PageSize: 10, MaxConcurrency: 4}, provider, log)

	strategies := []fanout.Strategy{{
		Name:      "open-web",
		Channel:   models.ChannelProfile,
		Pages:     1,
		Transform: func(p string) string { return p },
	}}

	classifier, err := classify.NewClassifier(classify.Config{
		PrimaryModel:     "primary",
		FallbackModel:    "fallback",
		BatchSizeProfile: 10,
		BatchSizeListing: 4,
		MaxConcurrency:   4,
	}, gen, log)
	require.NoError(t, err)

	hints := map[string]bool{"search_api_key": true, "genai_api_key": false}

	return New(expander, fan, strategies, classifier, merge.NewMerger(log),
		sink, runLog, hints, nil, log)
}

func TestPipeline_Run_HappyPath(t *testing.T) {
	provider := &stubProvider{respond: func(string, int) ([]search.Item, error) {
		return []search.Item{
			{Title: "Vizag Runners", Link: "https://instagram.com/vizagrunners", Image: "https://img.example.com/vr.jpg"},
			{Title: "Beach Yoga", Link: "https://instagram.com/beachyoga"},
			{Title: "Vizag Runners again", Link: "https://instagram.com/vizagrunners"},
		}, nil
	}}
	gen := &stubGenerator{expansion: expansionOutput, classified: classifyOutput}
	sink := &fakeSink{}
	runLog := &fakeRunLog{}

	result, err := newTestPipeline(t, provider, gen, sink, runLog).
		Run(context.Background(), "run clubs in Vizag")

	require.NoError(t, err)
	assert.NotEmpty(t, result.Meta.RunID)
	assert.Equal(t, "Vizag", result.Meta.Location)
	assert.Equal(t, 1, result.Meta.QueriesUsed)
	// 3 raw hits fold to 2 distinct URLs.
	assert.Equal(t, 2, result.Meta.CandidatesScanned)
	assert.Equal(t, 2, result.Meta.Entities)
	assert.False(t, result.Meta.Degraded)
	assert.Nil(t, result.Debug)

	require.Len(t, result.Results, 2)
	assert.Equal(t, "Vizag Runners", result.Results[0].Name)
	// Preview image recovered from the matching source candidate.
	assert.Equal(t, "https://img.example.com/vr.jpg", result.Results[0].Logo)

	assert.Len(t, sink.upserts, 2)
	require.Len(t, runLog.records, 1)
	assert.Equal(t, result.Meta.RunID, runLog.records[0].RunID)
	assert.Equal(t, 2, runLog.records[0].Entities)
	assert.Equal(t, 0, runLog.records[0].Errors)
}

func TestPipeline_Run_ExpansionDegradationSurfacesInDebug(t *testing.T) {
	provider := &stubProvider{respond: func(string, int) ([]search.Item, error) {
		return []search.Item{{Title: "Vizag Runners", Link: "https://instagram.com/vizagrunners"}}, nil
	}}
	gen := &stubGenerator{expansionErr: errors.New("both models down"), classified: classifyOutput}

	result, err := newTestPipeline(t, provider, gen, nil, nil).
		Run(context.Background(), "run clubs in Vizag")

	require.NoError(t, err)
	assert.True(t, result.Meta.Degraded)
	// The fixed suffix variants still drive the search.
	assert.Equal(t, 5, result.Meta.QueriesUsed)
	assert.NotEmpty(t, result.Results)

	// Degraded expansion is a sub-operation failure even when every later
	// stage succeeds.
	require.NotNil(t, result.Debug)
	require.NotEmpty(t, result.Debug.Errors)
	assert.Contains(t, result.Debug.Errors[0], "EXPANSION_FAILED")
}

func TestPipeline_Run_RunLogFailureSurfacesInDebug(t *testing.T) {
	provider := &stubProvider{respond: func(string, int) ([]search.Item, error) {
		return []search.Item{{Title: "Vizag Runners", Link: "https://instagram.com/vizagrunners"}}, nil
	}}
	gen := &stubGenerator{expansion: expansionOutput, classified: classifyOutput}
	runLog := &fakeRunLog{err: errors.New("postgres down")}

	result, err := newTestPipeline(t, provider, gen, nil, runLog).
		Run(context.Background(), "run clubs in Vizag")

	require.NoError(t, err)
	assert.NotEmpty(t, result.Results)
	require.NotNil(t, result.Debug)
	require.NotEmpty(t, result.Debug.Errors)
	assert.Contains(t, result.Debug.Errors[0], "RUN_LOG_FAILED")
}

func TestPipeline_Run_SearchFailuresAreNonFatal(t *testing.T) {
	provider := &stubProvider{respond: func(string, int) ([]search.Item, error) {
		return nil, errors.New("provider exploded")
	}}
	gen := &stubGenerator{expansion: expansionOutput, classified: classifyOutput}

	result, err := newTestPipeline(t, provider, gen, nil, nil).
		Run(context.Background(), "run clubs in Vizag")

	require.NoError(t, err)
	assert.Empty(t, result.Results)
	assert.Equal(t, 0, result.Meta.CandidatesScanned)

	require.NotNil(t, result.Debug)
	assert.NotEmpty(t, result.Debug.Errors)
	assert.Contains(t, result.Debug.Errors[0], "SEARCH_PAGE_FAILED")
	// Empty results also surface the config presence hints.
	assert.Equal(t, map[string]bool{"search_api_key": true, "genai_api_key": false}, result.Debug.Config)
}

func TestPipeline_Run_EmptyQueryRejected(t *testing.T) {
	gen := &stubGenerator{expansion: expansionOutput, classified: classifyOutput}
	provider := &stubProvider{respond: func(string, int) ([]search.Item, error) {
		return nil, nil
	}}
	p := newTestPipeline(t, provider, gen, nil, nil)

	for _, query := range []string{"", "   ", "\t\n"} {
		_, err := p.Run(context.Background(), query)
		assert.ErrorIs(t, err, ErrEmptyQuery)
	}
}

func TestPipeline_Run_NoResultsStillReportsConfig(t *testing.T) {
	provider := &stubProvider{respond: func(string, int) ([]search.Item, error) {
		return nil, nil // no hits, no errors
	}}
	gen := &stubGenerator{expansion: expansionOutput, classified: "[]"}

	result, err := newTestPipeline(t, provider, gen, nil, nil).
		Run(context.Background(), "run clubs in Vizag")

	require.NoError(t, err)
	assert.Empty(t, result.Results)
	require.NotNil(t, result.Debug)
	assert.Empty(t, result.Debug.Errors)
	assert.NotNil(t, result.Debug.Config)
}

func TestPipeline_Run_SinkFailureIsNonFatal(t *testing.T) {
	provider := &stubProvider{respond: func(string, int) ([]search.Item, error) {
		return []search.Item{{Title: "Vizag Runners", Link: "https://instagram.com/vizagrunners"}}, nil
	}}
	gen := &stubGenerator{expansion: expansionOutput, classified: classifyOutput}
	sink := &fakeSink{err: errors.New("redis down")}

	result, err := newTestPipeline(t, provider, gen, sink, nil).
		Run(context.Background(), "run clubs in Vizag")

	require.NoError(t, err)
	assert.NotEmpty(t, result.Results)
	require.NotNil(t, result.Debug)
	assert.Contains(t, result.Debug.Errors[0], "STORE_UPSERT_FAILED")
}
