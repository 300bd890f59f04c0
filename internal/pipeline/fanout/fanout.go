// internal/pipeline/fanout/fanout.go
package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	cerrors "community-scout/internal/common/errors"
	"community-scout/internal/common/logger"
	"community-scout/internal/models"
	"community-scout/internal/providers/search"
)

// Strategy transforms a phrase into a provider query string and carries its
// own page budget. Different strategies paginate to different depths.
type Strategy struct {
	Name      string
	Channel   models.Channel
	Pages     int
	Transform func(phrase string) string
}

// StrategyConfig feeds DefaultStrategies.
type StrategyConfig struct {
	PlatformSite      string
	PagesPlatform     int
	PagesOpenWeb      int
	PagesListing      int
	ListingSearchTerm string
}

// DefaultStrategies returns the three production strategies: a
// site-restricted primary that paginates deepest, an open-web secondary,
// and a shallow listing-discovery strategy feeding the listing channel.
func DefaultStrategies(cfg StrategyConfig) []Strategy {
	site := cfg.PlatformSite
	listingTerm := cfg.ListingSearchTerm
	return []Strategy{
		{
			Name:    "platform-direct",
			Channel: models.ChannelProfile,
			Pages:   cfg.PagesPlatform,
			Transform: func(phrase string) string {
				return fmt.Sprintf("site:%s %s", site, phrase)
			},
		},
		{
			Name:    "open-web",
			Channel: models.ChannelProfile,
			Pages:   cfg.PagesOpenWeb,
			Transform: func(phrase string) string {
				return phrase
			},
		},
		{
			Name:    "listing-discovery",
			Channel: models.ChannelListing,
			Pages:   cfg.PagesListing,
			Transform: func(phrase string) string {
				return phrase + " " + listingTerm
			},
		},
	}
}

// Result carries every hit gathered by the fan-out plus the non-fatal
// per-page failures for debug aggregation.
type Result struct {
	Hits   []models.RawHit
	Errors []*cerrors.StandardError
}

type Config struct {
	PageSize       int
	MaxConcurrency int
}

// Fanout issues one search request per (phrase, strategy, page), all
// concurrent. A page failure never aborts sibling requests.
type Fanout struct {
	config   Config
	provider search.Provider
	logger   logger.Logger
}

func NewFanout(config Config, provider search.Provider, log logger.Logger) *Fanout {
	return &Fanout{
		config:   config,
		provider: provider,
		logger: log.With(map[string]interface{}{
			"component": "fanout",
		}),
	}
}

type pageTask struct {
	query  string
	page   int
	phrase models.SearchPhrase
	chann  models.Channel
}

func (f *Fanout) Search(ctx context.Context, phrases []models.SearchPhrase, strategies []Strategy) *Result {
	var tasks []pageTask
	for _, strategy := range strategies {
		for _, phrase := range phrases {
			tagged := phrase
			tagged.Strategy = strategy.Name
			for page := 0; page < strategy.Pages; page++ {
				tasks = append(tasks, pageTask{
					query:  strategy.Transform(phrase.Text),
					page:   page,
					phrase: tagged,
					chann:  strategy.Channel,
				})
			}
		}
	}

	// Per-task result slots keep gather order independent of completion
	// order, so the downstream dedupe fold is stable across runs.
	pages := make([][]models.RawHit, len(tasks))

	var mu sync.Mutex
	var pageErrors []*cerrors.StandardError

	g, gctx := errgroup.WithContext(ctx)
	if f.config.MaxConcurrency > 0 {
		g.SetLimit(f.config.MaxConcurrency)
	}

	for i, task := range tasks {
		g.Go(func() error {
			items, err := f.provider.Search(gctx, task.query, f.config.PageSize, task.page*f.config.PageSize+1)
			if err != nil {
				stdErr := cerrors.NewSearchPageFailedError(task.query, task.page, err)
				if errors.Is(err, search.ErrRateLimited) {
					stdErr = cerrors.NewSearchRateLimitedError(task.query)
				}
				f.logger.Warn("search page failed", map[string]interface{}{
					"query": task.query,
					"page":  task.page,
					"error": err.Error(),
				})
				mu.Lock()
				pageErrors = append(pageErrors, stdErr)
				mu.Unlock()
				return nil
			}

			hits := make([]models.RawHit, 0, len(items))
			for _, item := range items {
				hits = append(hits, models.RawHit{
					Title:       item.Title,
					URL:         item.Link,
					Snippet:     item.Snippet,
					Image:       item.Image,
					OGImage:     item.OGImage,
					Description: item.MetaDescription,
					Channel:     task.chann,
					Phrase:      task.phrase,
				})
			}
			pages[i] = hits
			return nil
		})
	}

	_ = g.Wait()

	var all []models.RawHit
	for _, hits := range pages {
		all = append(all, hits...)
	}

	f.logger.Info("fan-out complete", map[string]interface{}{
		"tasks":    len(tasks),
		"hits":     len(all),
		"failures": len(pageErrors),
	})

	return &Result{Hits: all, Errors: pageErrors}
}
