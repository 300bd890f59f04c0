// internal/app/wire.go
package app

import (
	"time"

	"community-scout/internal/common/config"
	"community-scout/internal/common/logger"
	"community-scout/internal/common/observability"
	"community-scout/internal/pipeline"
	"community-scout/internal/pipeline/classify"
	"community-scout/internal/pipeline/expand"
	"community-scout/internal/pipeline/fanout"
	"community-scout/internal/pipeline/merge"
	"community-scout/internal/providers/genai"
	"community-scout/internal/providers/search"
	"community-scout/internal/store"
)

// BuildPipeline wires provider clients and stage components from config.
// Both the server and the bulk tool use this.
func BuildPipeline(cfg *config.Config, entityStore store.EntityStore, runLog store.RunLog, obs *observability.Observability, log logger.Logger) (*pipeline.Pipeline, error) {
	searchClient, err := search.NewClient(search.Config{
		BaseURL:  cfg.APIs.Search.BaseURL,
		APIKey:   cfg.APIs.Search.APIKey,
		EngineID: cfg.APIs.Search.EngineID,
		Timeout:  time.Duration(cfg.APIs.Search.Timeout) * time.Millisecond,
		QPS:      cfg.APIs.Search.QPS,
	}, log)
	if err != nil {
		return nil, err
	}

	genaiClient := genai.NewClient(genai.Config{
		BaseURL:     cfg.APIs.GenAI.BaseURL,
		APIKey:      cfg.APIs.GenAI.APIKey,
		Timeout:     time.Duration(cfg.APIs.GenAI.Timeout) * time.Millisecond,
		MaxTokens:   cfg.APIs.GenAI.MaxTokens,
		Temperature: cfg.APIs.GenAI.Temperature,
	}, log)

	expander := expand.NewExpander(expand.Config{
		PrimaryModel:  cfg.APIs.GenAI.PrimaryModel,
		FallbackModel: cfg.APIs.GenAI.FallbackModel,
		MaxPhrases:    cfg.Pipeline.MaxPhrases,
	}, genaiClient, log)

	fan := fanout.NewFanout(fanout.Config{
		PageSize:       cfg.Pipeline.PageSize,
		MaxConcurrency: cfg.Pipeline.MaxConcurrency,
	}, searchClient, log)

	strategies := fanout.DefaultStrategies(fanout.StrategyConfig{
		PlatformSite:      cfg.Pipeline.PlatformSite,
		PagesPlatform:     cfg.Pipeline.PagesPlatform,
		PagesOpenWeb:      cfg.Pipeline.PagesOpenWeb,
		PagesListing:      cfg.Pipeline.PagesListing,
		ListingSearchTerm: cfg.Pipeline.ListingSearchTerm,
	})

	classifier, err := classify.NewClassifier(classify.Config{
		PrimaryModel:     cfg.APIs.GenAI.PrimaryModel,
		FallbackModel:    cfg.APIs.GenAI.FallbackModel,
		BatchSizeProfile: cfg.Pipeline.BatchSizeProfile,
		BatchSizeListing: cfg.Pipeline.BatchSizeListing,
		MaxConcurrency:   cfg.Pipeline.MaxConcurrency,
	}, genaiClient, log)
	if err != nil {
		return nil, err
	}

	merger := merge.NewMerger(log)

	configHints := map[string]bool{
		"search_api_key":   cfg.APIs.Search.APIKey != "",
		"search_engine_id": cfg.APIs.Search.EngineID != "",
		"genai_api_key":    cfg.APIs.GenAI.APIKey != "",
	}

	return pipeline.New(expander, fan, strategies, classifier, merger,
		entityStore, runLog, configHints, obs, log), nil
}
