// internal/pipeline/merge/merge.go
package merge

import (
	"strings"

	"community-scout/internal/common/logger"
	"community-scout/internal/models"
)

// Merger reconciles the two independently classified entity streams into
// one deduplicated list. The profile stream is trusted verbatim; listing
// extractions are appended only when they introduce a new identifier, or a
// new display name when no identifier was confirmed.
type Merger struct {
	logger logger.Logger
}

func NewMerger(log logger.Logger) *Merger {
	return &Merger{
		logger: log.With(map[string]interface{}{
			"component": "merger",
		}),
	}
}

func (m *Merger) Merge(primary, secondary []models.ClassifiedEntity, sourceCandidates []models.Candidate) []models.MergedEntity {
	seenIDs := make(map[string]bool)
	seenNames := make(map[string]bool)

	merged := make([]models.MergedEntity, 0, len(primary)+len(secondary))

	for _, entity := range primary {
		merged = append(merged, models.MergedEntity{
			ClassifiedEntity: entity,
			Channel:          models.ChannelProfile,
		})
		if id := normalizeID(entity.Handle); id != "" {
			seenIDs[id] = true
		}
		seenNames[strings.ToLower(entity.Name)] = true
	}

	dropped := 0
	for _, entity := range secondary {
		id := normalizeID(entity.Handle)
		if id != "" {
			if seenIDs[id] {
				dropped++
				continue
			}
			seenIDs[id] = true
		} else if seenNames[strings.ToLower(entity.Name)] {
			dropped++
			continue
		}
		seenNames[strings.ToLower(entity.Name)] = true
		merged = append(merged, models.MergedEntity{
			ClassifiedEntity: entity,
			Channel:          models.ChannelListing,
		})
	}

	// The model is not required to echo input metadata verbatim, so the
	// preview image and provenance are recovered from the source candidates
	// by a best-effort lookup rather than trusted from its output.
	for i := range merged {
		candidate := findSourceCandidate(merged[i].ClassifiedEntity, sourceCandidates)
		if candidate == nil {
			continue
		}
		if merged[i].Logo == "" {
			merged[i].Logo = candidate.Image
		}
		merged[i].Phrase = candidate.Phrase.Text
		merged[i].Strategy = candidate.Phrase.Strategy
	}

	m.logger.Info("streams merged", map[string]interface{}{
		"primary":   len(primary),
		"secondary": len(secondary),
		"dropped":   dropped,
		"merged":    len(merged),
	})

	return merged
}

// findSourceCandidate matches by exact source URL first, then by the
// identifier (leading "@" stripped) appearing inside a candidate URL.
func findSourceCandidate(entity models.ClassifiedEntity, candidates []models.Candidate) *models.Candidate {
	if entity.SourceURL != "" {
		for i := range candidates {
			if candidates[i].URL == entity.SourceURL {
				return &candidates[i]
			}
		}
	}

	id := normalizeID(entity.Handle)
	if id == "" {
		return nil
	}
	for i := range candidates {
		if strings.Contains(strings.ToLower(candidates[i].URL), id) {
			return &candidates[i]
		}
	}
	return nil
}

func normalizeID(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}
