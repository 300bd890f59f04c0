// internal/pipeline/expand/prompt.go
package expand

import (
	"fmt"
	"strings"
)

func buildExpansionPrompt(query string) string {
	var parts []string

	parts = append(parts, "You expand a user query about local fitness and sports communities into search phrases.")
	parts = append(parts, fmt.Sprintf("\nUser Query: %s", query))

	parts = append(parts, "\nInstructions:")
	parts = append(parts, "- Extract the location named or implied by the query; use \"unknown\" if none")
	parts = append(parts, "- Summarize the user's intent in one short sentence")
	parts = append(parts, "- Generate 8-12 short search phrases (2-6 words each) covering activity types, the location, and community keywords")
	parts = append(parts, "- Group phrases into layers: \"activity\", \"location\", \"community\"")
	parts = append(parts, "- Respond with JSON only, no prose:")
	parts = append(parts, `{"location": "...", "intent": "...", "phrases": [{"text": "...", "layer": "..."}]}`)

	return strings.Join(parts, "\n")
}
