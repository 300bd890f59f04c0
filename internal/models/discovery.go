// internal/models/discovery.go
package models

// Query is the parsed form of one inbound discovery request. Produced once
// by the expander and immutable afterwards.
type Query struct {
	Raw      string `json:"raw"`
	Location string `json:"location"`
	Intent   string `json:"intent"`
}

// LocationUnknown is the location sentinel used when expansion is degraded.
const LocationUnknown = "unknown"

// SearchPhrase is one generated search phrase. Layer names the category the
// expander generated it under; Strategy is filled in by the fan-out when the
// (phrase, strategy) pair is formed.
type SearchPhrase struct {
	Text     string `json:"text"`
	Layer    string `json:"layer"`
	Strategy string `json:"strategy,omitempty"`
}

// Channel separates the two candidate streams that get classified with
// different instructions.
type Channel string

const (
	// ChannelProfile carries hits expected to be direct profile pages.
	ChannelProfile Channel = "profile"
	// ChannelListing carries hits expected to be listing/roundup pages that
	// mention many communities.
	ChannelListing Channel = "listing"
)

// RawHit is one search-result record before deduplication. Image is the
// provider's structured pagemap image; OGImage is the secondary og:image
// metatag the dedupe step falls back to.
type RawHit struct {
	Title       string       `json:"title"`
	URL         string       `json:"url"`
	Snippet     string       `json:"snippet"`
	Image       string       `json:"image,omitempty"`
	OGImage     string       `json:"og_image,omitempty"`
	Description string       `json:"description"`
	Channel     Channel      `json:"channel"`
	Phrase      SearchPhrase `json:"phrase"`
}

// Candidate is a RawHit that survived deduplication, one per unique URL
// across the whole run.
type Candidate struct {
	Title       string       `json:"title"`
	URL         string       `json:"url"`
	Snippet     string       `json:"snippet"`
	Image       string       `json:"image,omitempty"`
	Description string       `json:"description"`
	Channel     Channel      `json:"channel"`
	Phrase      SearchPhrase `json:"phrase"`
}

// Categories is the fixed classification taxonomy. The prompt builder and
// the response validator both consume this list.
var Categories = []string{
	"running",
	"cycling",
	"gym",
	"yoga",
	"swimming",
	"team_sport",
	"martial_arts",
	"fitness_event",
	"wellness",
	"other",
}

// ClassifiedEntity is the model's output for one candidate (or one entity
// extracted from a listing page). Handle, Followers, Logo and SourceURL may
// be empty: listing extractions often lack a confirmed handle or URL.
type ClassifiedEntity struct {
	Name        string `json:"name"`
	Handle      string `json:"handle,omitempty"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
	Followers   string `json:"followers,omitempty"`
	Logo        string `json:"logo,omitempty"`
	Reasoning   string `json:"reasoning,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
}

// MergedEntity is the final output record: a classified entity with
// provenance and a preview image re-resolved from the source candidates.
type MergedEntity struct {
	ClassifiedEntity
	Phrase   string  `json:"phrase,omitempty"`
	Strategy string  `json:"strategy,omitempty"`
	Channel  Channel `json:"channel"`
}
