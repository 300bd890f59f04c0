// internal/pipeline/classify/classifier_test.go
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-scout/internal/common/logger"
	"community-scout/internal/models"
)

type fakeGenerator struct {
	mu       sync.Mutex
	calls    []string // models attempted, in order of arrival
	generate func(model, prompt string) (string, error)
}

func (f *fakeGenerator) Generate(_ context.Context, model, prompt string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, model)
	f.mu.Unlock()
	return f.generate(model, prompt)
}

func (f *fakeGenerator) callCount(model string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.calls {
		if m == model {
			n++
		}
	}
	return n
}

func newTestClassifier(t *testing.T, gen *fakeGenerator, batchSize int) *Classifier {
	t.Helper()
	classifier, err := NewClassifier(Config{
		PrimaryModel:     "primary",
		FallbackModel:    "fallback",
		BatchSizeProfile: batchSize,
		BatchSizeListing: batchSize,
		MaxConcurrency:   4,
	}, gen, logger.NewNoOpLogger())
	require.NoError(t, err)
	return classifier
}

func makeCandidates(n int) []models.Candidate {
	out := make([]models.Candidate, n)
	for i := range out {
		out[i] = models.Candidate{
			Title: fmt.Sprintf("Community %d", i),
			URL:   fmt.Sprintf("https://instagram.com/community%d", i),
		}
	}
	return out
}

func entityJSON(name string) string {
	e := map[string]interface{}{
		"name":     name,
		"category": "running",
	}
	data, _ := json.Marshal([]interface{}{e})
	return string(data)
}

var testQuery = models.Query{Raw: "run clubs in Vizag", Location: "Vizag", Intent: "find run clubs"}

func TestClassifier_BatchCountIsCeilOfSize(t *testing.T) {
	tests := []struct {
		name          string
		candidates    int
		batchSize     int
		expectedCalls int
	}{
		{name: "exact multiple", candidates: 20, batchSize: 10, expectedCalls: 2},
		{name: "remainder batch", candidates: 21, batchSize: 10, expectedCalls: 3},
		{name: "single partial batch", candidates: 3, batchSize: 10, expectedCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{generate: func(model, prompt string) (string, error) {
				return "[]", nil
			}}

			result := newTestClassifier(t, gen, tt.batchSize).
				Classify(context.Background(), makeCandidates(tt.candidates), models.ChannelProfile, testQuery)

			assert.Equal(t, tt.expectedCalls, gen.callCount("primary"))
			assert.Zero(t, gen.callCount("fallback"))
			assert.Empty(t, result.Errors)
		})
	}
}

func TestClassifier_OneFallbackAttemptPerBatch(t *testing.T) {
	gen := &fakeGenerator{generate: func(model, prompt string) (string, error) {
		if model == "primary" {
			return "", errors.New("primary down")
		}
		return entityJSON("Recovered Club"), nil
	}}

	// 21 candidates at batch size 10 -> 3 batches.
	result := newTestClassifier(t, gen, 10).
		Classify(context.Background(), makeCandidates(21), models.ChannelProfile, testQuery)

	// Exactly one fallback attempt per batch, not per candidate.
	assert.Equal(t, 3, gen.callCount("primary"))
	assert.Equal(t, 3, gen.callCount("fallback"))
	assert.Len(t, result.Entities, 3)
	assert.Empty(t, result.Errors)
}

func TestClassifier_BothTiersFailAbandonsBatchOnly(t *testing.T) {
	gen := &fakeGenerator{generate: func(model, prompt string) (string, error) {
		return "", errors.New("everything down")
	}}

	result := newTestClassifier(t, gen, 10).
		Classify(context.Background(), makeCandidates(15), models.ChannelProfile, testQuery)

	assert.Empty(t, result.Entities)
	assert.Len(t, result.Errors, 2)
	for _, stdErr := range result.Errors {
		assert.Contains(t, stdErr.String(), "CLASSIFY_BATCH_FAILED")
	}
}

func TestClassifier_UnparsableOutputAbandonsBatch(t *testing.T) {
	gen := &fakeGenerator{generate: func(model, prompt string) (string, error) {
		return "I could not produce JSON today", nil
	}}

	result := newTestClassifier(t, gen, 10).
		Classify(context.Background(), makeCandidates(5), models.ChannelProfile, testQuery)

	assert.Empty(t, result.Entities)
	require.Len(t, result.Errors, 1)
	// A response that arrived but does not decode is an unparsable-output
	// failure, not a failed model call.
	assert.Contains(t, result.Errors[0].String(), "MODEL_UNPARSABLE")
}

func TestClassifier_StripsCodeFences(t *testing.T) {
	gen := &fakeGenerator{generate: func(model, prompt string) (string, error) {
		return "```json\n" + entityJSON("Fenced Club") + "\n```", nil
	}}

	result := newTestClassifier(t, gen, 10).
		Classify(context.Background(), makeCandidates(2), models.ChannelProfile, testQuery)

	require.Len(t, result.Entities, 1)
	assert.Equal(t, "Fenced Club", result.Entities[0].Name)
	assert.Empty(t, result.Errors)
}

func TestClassifier_InvalidEntitiesDroppedIndividually(t *testing.T) {
	gen := &fakeGenerator{generate: func(model, prompt string) (string, error) {
		return `[
			{"name": "Good Club", "category": "running"},
			{"name": "Bad Category", "category": "underwater-basket-weaving"},
			{"category": "yoga"},
			{"name": "Nullable Fields", "category": "yoga", "handle": null, "followers": null}
		]`, nil
	}}

	result := newTestClassifier(t, gen, 10).
		Classify(context.Background(), makeCandidates(4), models.ChannelProfile, testQuery)

	require.Len(t, result.Entities, 2)
	assert.Equal(t, "Good Club", result.Entities[0].Name)
	assert.Equal(t, "Nullable Fields", result.Entities[1].Name)
	assert.Empty(t, result.Errors)
}

func TestClassifier_ChannelInstructionsDiffer(t *testing.T) {
	var prompts []string
	var mu sync.Mutex
	gen := &fakeGenerator{generate: func(model, prompt string) (string, error) {
		mu.Lock()
		prompts = append(prompts, prompt)
		mu.Unlock()
		return "[]", nil
	}}

	classifier := newTestClassifier(t, gen, 10)
	classifier.Classify(context.Background(), makeCandidates(1), models.ChannelProfile, testQuery)
	classifier.Classify(context.Background(), makeCandidates(1), models.ChannelListing, testQuery)

	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], "one community's profile page")
	assert.Contains(t, prompts[1], "Extract EVERY community")
	for _, p := range prompts {
		assert.Contains(t, p, "Vizag")
		assert.Contains(t, p, "running, cycling")
	}
}

func TestClassifier_EmptyInputMakesNoCalls(t *testing.T) {
	gen := &fakeGenerator{generate: func(model, prompt string) (string, error) {
		t.Fatal("no model call expected")
		return "", nil
	}}

	result := newTestClassifier(t, gen, 10).
		Classify(context.Background(), nil, models.ChannelProfile, testQuery)

	assert.Empty(t, result.Entities)
	assert.Empty(t, result.Errors)
}
