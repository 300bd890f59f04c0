// internal/pipeline/dedupe/dedupe.go
package dedupe

import (
	"community-scout/internal/models"
)

// Deduplicator folds raw hits into unique candidates keyed by canonical
// URL. The seen-set is shared across every Fold call on the same instance,
// so independent collection channels deduplicate against each other: a URL
// returned by two channels is attributed to whichever hit was folded first.
type Deduplicator struct {
	seen map[string]bool
}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]bool)}
}

// Fold runs a single pass over hits in arrival order. First occurrence of a
// URL is kept with normalized metadata; every later occurrence is dropped
// silently, regardless of differing snippet or provenance.
func (d *Deduplicator) Fold(hits []models.RawHit) []models.Candidate {
	candidates := make([]models.Candidate, 0, len(hits))
	for _, hit := range hits {
		if hit.URL == "" || d.seen[hit.URL] {
			continue
		}
		d.seen[hit.URL] = true
		candidates = append(candidates, normalize(hit))
	}
	return candidates
}

// Seen reports how many unique URLs the instance has retained so far.
func (d *Deduplicator) Seen() int {
	return len(d.seen)
}

func normalize(hit models.RawHit) models.Candidate {
	image := hit.Image
	if image == "" {
		image = hit.OGImage
	}
	return models.Candidate{
		Title:       hit.Title,
		URL:         hit.URL,
		Snippet:     hit.Snippet,
		Image:       image,
		Description: hit.Description, // empty string when absent, never null
		Channel:     hit.Channel,
		Phrase:      hit.Phrase,
	}
}
