// internal/pipeline/expand/expander.go
package expand

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"community-scout/internal/common/logger"
	"community-scout/internal/models"
	"community-scout/internal/providers/genai"
)

// fallbackSuffixes are appended to the raw query when model-driven
// expansion cannot be completed.
var fallbackSuffixes = []string{"club", "community", "fitness", "event"}

// Expansion is the immutable result of expanding one inbound query. Err
// carries the absorbed cause when Degraded is set, so callers can surface
// the degradation without the expander ever failing a run.
type Expansion struct {
	Query    models.Query
	Phrases  []models.SearchPhrase
	Degraded bool
	Err      error
}

type Config struct {
	PrimaryModel  string
	FallbackModel string
	MaxPhrases    int
}

// Expander turns one natural-language query into structured search phrases
// plus extracted location and intent. Expansion failure is absorbed, never
// propagated: the pipeline can proceed on the deterministic fallback set.
type Expander struct {
	config Config
	gen    genai.Generator
	logger logger.Logger
}

func NewExpander(config Config, gen genai.Generator, log logger.Logger) *Expander {
	return &Expander{
		config: config,
		gen:    gen,
		logger: log.With(map[string]interface{}{
			"component": "expander",
		}),
	}
}

// Expand never returns an error and always yields at least one phrase.
func (e *Expander) Expand(ctx context.Context, query string) *Expansion {
	text, err := e.gen.Generate(ctx, e.config.PrimaryModel, buildExpansionPrompt(query))
	if err != nil {
		e.logger.Warn("primary model expansion failed, trying fallback model", map[string]interface{}{
			"error": err.Error(),
		})
		text, err = e.gen.Generate(ctx, e.config.FallbackModel, buildExpansionPrompt(query))
	}
	if err != nil {
		e.logger.Warn("query expansion degraded", map[string]interface{}{
			"query": query,
			"error": err.Error(),
		})
		return e.fallback(query, err)
	}

	expansion, err := e.parse(query, text)
	if err != nil {
		e.logger.Warn("query expansion unparsable, using fallback phrases", map[string]interface{}{
			"query": query,
			"error": err.Error(),
		})
		return e.fallback(query, err)
	}

	e.logger.Info("query expanded", map[string]interface{}{
		"query":    query,
		"location": expansion.Query.Location,
		"phrases":  len(expansion.Phrases),
	})

	return expansion
}

func (e *Expander) parse(query, text string) (*Expansion, error) {
	var parsed struct {
		Location string `json:"location"`
		Intent   string `json:"intent"`
		Phrases  []struct {
			Text  string `json:"text"`
			Layer string `json:"layer"`
		} `json:"phrases"`
	}

	if err := json.Unmarshal([]byte(genai.StripCodeFences(text)), &parsed); err != nil {
		return nil, fmt.Errorf("decode expansion: %w", err)
	}

	phrases := make([]models.SearchPhrase, 0, len(parsed.Phrases))
	for _, p := range parsed.Phrases {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		phrases = append(phrases, models.SearchPhrase{
			Text:  strings.TrimSpace(p.Text),
			Layer: p.Layer,
		})
		if e.config.MaxPhrases > 0 && len(phrases) >= e.config.MaxPhrases {
			break
		}
	}

	if len(phrases) == 0 {
		return nil, fmt.Errorf("expansion produced no phrases")
	}

	location := strings.TrimSpace(parsed.Location)
	if location == "" {
		location = models.LocationUnknown
	}
	intent := strings.TrimSpace(parsed.Intent)
	if intent == "" {
		intent = query
	}

	return &Expansion{
		Query: models.Query{
			Raw:      query,
			Location: location,
			Intent:   intent,
		},
		Phrases: phrases,
	}, nil
}

// fallback is the deterministic degraded expansion: the raw query plus a
// fixed set of suffix variants.
func (e *Expander) fallback(query string, cause error) *Expansion {
	phrases := []models.SearchPhrase{{Text: query, Layer: "original"}}
	for _, suffix := range fallbackSuffixes {
		phrases = append(phrases, models.SearchPhrase{
			Text:  query + " " + suffix,
			Layer: "fallback",
		})
	}

	return &Expansion{
		Query: models.Query{
			Raw:      query,
			Location: models.LocationUnknown,
			Intent:   query,
		},
		Phrases:  phrases,
		Degraded: true,
		Err:      cause,
	}
}
