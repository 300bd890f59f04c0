// internal/pipeline/classify/prompt.go
package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"community-scout/internal/models"
)

func buildClassifyPrompt(batch []models.Candidate, channel models.Channel, query models.Query) string {
	var parts []string

	parts = append(parts, "You classify search results about local fitness and sports communities into structured entities.")
	parts = append(parts, fmt.Sprintf("\nUser Intent: %s", query.Intent))
	parts = append(parts, fmt.Sprintf("Target Location: %s", query.Location))

	switch channel {
	case models.ChannelListing:
		parts = append(parts, "\nEach candidate below is a listing or roundup page. Extract EVERY community mentioned in it; one candidate may yield many entities. Leave handle and source_url null when the page does not confirm them.")
	default:
		parts = append(parts, "\nEach candidate below is expected to be one community's profile page. Produce at most one entity per candidate and set source_url to the candidate's url.")
	}

	parts = append(parts, "\nCandidates:")
	batchJSON, _ := json.MarshalIndent(toPromptCandidates(batch), "", "  ")
	parts = append(parts, string(batchJSON))

	parts = append(parts, "\nRules:")
	parts = append(parts, fmt.Sprintf("- category must be one of: %s", strings.Join(models.Categories, ", ")))
	parts = append(parts, "- Prefer inclusion when evidence is ambiguous")
	parts = append(parts, "- Reject only for clear topic mismatch or clear geographic mismatch")
	parts = append(parts, "- Never reject on name alone; the bio/description governs relevance")
	parts = append(parts, "- followers is a human-abbreviated string like \"12k\" when visible, else null")
	parts = append(parts, "- Include a one-line reasoning per entity")

	parts = append(parts, "\nRespond with a JSON array only, no prose:")
	parts = append(parts, `[{"name": "...", "handle": "@... or null", "category": "...", "subcategory": "... or null", "followers": "... or null", "logo": "image url or null", "reasoning": "...", "source_url": "... or null"}]`)

	return strings.Join(parts, "\n")
}

// toPromptCandidates strips provenance before embedding candidates in the
// prompt; the model only needs the page-visible fields.
func toPromptCandidates(batch []models.Candidate) []map[string]string {
	out := make([]map[string]string, 0, len(batch))
	for _, cand := range batch {
		out = append(out, map[string]string{
			"title":       cand.Title,
			"url":         cand.URL,
			"snippet":     cand.Snippet,
			"description": cand.Description,
			"image":       cand.Image,
		})
	}
	return out
}
