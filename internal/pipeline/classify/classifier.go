// internal/pipeline/classify/classifier.go
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	cerrors "community-scout/internal/common/errors"
	"community-scout/internal/common/logger"
	"community-scout/internal/models"
	"community-scout/internal/providers/genai"
)

// errUnparsable marks a model response that came back fine but does not
// decode as a JSON entity array. Distinct from a failed model call.
var errUnparsable = errors.New("model output is not a JSON array")

type Config struct {
	PrimaryModel     string
	FallbackModel    string
	BatchSizeProfile int
	BatchSizeListing int
	MaxConcurrency   int
}

// Result carries the entities from every successful batch plus the
// non-fatal per-batch failures. Partial classification is preferable to
// total failure: an abandoned batch contributes nothing, never an error
// past this boundary.
type Result struct {
	Entities []models.ClassifiedEntity
	Errors   []*cerrors.StandardError
}

// Classifier partitions candidates into fixed-size contiguous batches and
// classifies each batch independently with a generative-model call.
type Classifier struct {
	config    Config
	gen       genai.Generator
	validator *entityValidator
	logger    logger.Logger
}

func NewClassifier(config Config, gen genai.Generator, log logger.Logger) (*Classifier, error) {
	validator, err := newEntityValidator()
	if err != nil {
		return nil, fmt.Errorf("compile entity schema: %w", err)
	}
	return &Classifier{
		config:    config,
		gen:       gen,
		validator: validator,
		logger: log.With(map[string]interface{}{
			"component": "classifier",
		}),
	}, nil
}

func (c *Classifier) batchSize(channel models.Channel) int {
	if channel == models.ChannelListing {
		return c.config.BatchSizeListing
	}
	return c.config.BatchSizeProfile
}

// Classify runs every batch concurrently. Batches never share state; batch
// results are gathered in batch order.
func (c *Classifier) Classify(ctx context.Context, candidates []models.Candidate, channel models.Channel, query models.Query) *Result {
	if len(candidates) == 0 {
		return &Result{}
	}

	size := c.batchSize(channel)
	if size <= 0 {
		size = 10
	}

	var batches [][]models.Candidate
	for start := 0; start < len(candidates); start += size {
		end := start + size
		if end > len(candidates) {
			end = len(candidates)
		}
		batches = append(batches, candidates[start:end])
	}

	results := make([][]models.ClassifiedEntity, len(batches))

	var mu sync.Mutex
	var batchErrors []*cerrors.StandardError

	g, gctx := errgroup.WithContext(ctx)
	if c.config.MaxConcurrency > 0 {
		g.SetLimit(c.config.MaxConcurrency)
	}

	for i, batch := range batches {
		g.Go(func() error {
			entities, err := c.classifyBatch(gctx, batch, channel, query)
			if err != nil {
				c.logger.Warn("classification batch abandoned", map[string]interface{}{
					"channel": string(channel),
					"batch":   i,
					"error":   err.Error(),
				})
				stdErr := cerrors.NewClassifyBatchFailedError(i, err)
				if errors.Is(err, errUnparsable) {
					stdErr = cerrors.NewModelUnparsableError(i, err)
				}
				mu.Lock()
				batchErrors = append(batchErrors, stdErr)
				mu.Unlock()
				return nil
			}
			results[i] = entities
			return nil
		})
	}

	_ = g.Wait()

	var all []models.ClassifiedEntity
	for _, entities := range results {
		all = append(all, entities...)
	}

	c.logger.Info("classification complete", map[string]interface{}{
		"channel":  string(channel),
		"batches":  len(batches),
		"entities": len(all),
		"failures": len(batchErrors),
	})

	return &Result{Entities: all, Errors: batchErrors}
}

// classifyBatch issues one model call for the batch, with exactly one
// fallback-model attempt when the primary call fails.
func (c *Classifier) classifyBatch(ctx context.Context, batch []models.Candidate, channel models.Channel, query models.Query) ([]models.ClassifiedEntity, error) {
	prompt := buildClassifyPrompt(batch, channel, query)

	text, err := c.gen.Generate(ctx, c.config.PrimaryModel, prompt)
	if err != nil {
		c.logger.Warn("primary model failed, trying fallback model", map[string]interface{}{
			"channel": string(channel),
			"error":   err.Error(),
		})
		text, err = c.gen.Generate(ctx, c.config.FallbackModel, prompt)
	}
	if err != nil {
		return nil, err
	}

	return c.parseEntities(text)
}

// parseEntities decodes the model output as a JSON array and validates
// every element against the entity schema. Invalid elements are dropped
// individually; only an unparsable array fails the batch.
func (c *Classifier) parseEntities(text string) ([]models.ClassifiedEntity, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(genai.StripCodeFences(text)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", errUnparsable, err)
	}

	entities := make([]models.ClassifiedEntity, 0, len(raw))
	for _, item := range raw {
		if err := c.validator.Validate(item); err != nil {
			c.logger.Debug("dropping invalid entity", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		var entity models.ClassifiedEntity
		if err := json.Unmarshal(item, &entity); err != nil {
			continue
		}
		entities = append(entities, entity)
	}

	return entities, nil
}
