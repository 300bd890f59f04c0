// internal/pipeline/merge/merge_test.go
package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"community-scout/internal/common/logger"
	"community-scout/internal/models"
)

func entity(name, handle string) models.ClassifiedEntity {
	return models.ClassifiedEntity{Name: name, Handle: handle, Category: "running"}
}

func newMerger() *Merger {
	return NewMerger(logger.NewNoOpLogger())
}

func TestMerger_UnionByHandle(t *testing.T) {
	primary := []models.ClassifiedEntity{
		entity("Vizag Runners", "@vizagrunners"),
		entity("Beach Cyclists", "@beachcyclists"),
	}
	secondary := []models.ClassifiedEntity{
		entity("Vizag Runners Club", "@vizagrunners"), // same handle, different name
		entity("Sunrise Yoga", "@sunriseyoga"),
	}

	merged := newMerger().Merge(primary, secondary, nil)

	require.Len(t, merged, 3)
	assert.Equal(t, "Vizag Runners", merged[0].Name)
	assert.Equal(t, "Beach Cyclists", merged[1].Name)
	assert.Equal(t, "Sunrise Yoga", merged[2].Name)
}

func TestMerger_HandleMatchIsCaseInsensitive(t *testing.T) {
	primary := []models.ClassifiedEntity{entity("Vizag Runners", "@VizagRunners")}
	secondary := []models.ClassifiedEntity{entity("vizag runners listing", "@vizagrunners")}

	merged := newMerger().Merge(primary, secondary, nil)
	assert.Len(t, merged, 1)
}

func TestMerger_NullHandleFallsBackToName(t *testing.T) {
	primary := []models.ClassifiedEntity{entity("Vizag Runners", "")}
	secondary := []models.ClassifiedEntity{
		entity("vizag runners", ""), // name collision, case-insensitive
		entity("Coastal Swimmers", ""),
	}

	merged := newMerger().Merge(primary, secondary, nil)

	require.Len(t, merged, 2)
	assert.Equal(t, "Vizag Runners", merged[0].Name)
	assert.Equal(t, "Coastal Swimmers", merged[1].Name)
}

func TestMerger_ChannelsTagged(t *testing.T) {
	primary := []models.ClassifiedEntity{entity("A", "@a")}
	secondary := []models.ClassifiedEntity{entity("B", "@b")}

	merged := newMerger().Merge(primary, secondary, nil)

	require.Len(t, merged, 2)
	assert.Equal(t, models.ChannelProfile, merged[0].Channel)
	assert.Equal(t, models.ChannelListing, merged[1].Channel)
}

func TestMerger_LogoRecoveredBySourceURL(t *testing.T) {
	e := entity("Vizag Runners", "@vizagrunners")
	e.SourceURL = "https://instagram.com/vizagrunners"

	candidates := []models.Candidate{{
		URL:    "https://instagram.com/vizagrunners",
		Image:  "https://img.example.com/vr.jpg",
		Phrase: models.SearchPhrase{Text: "vizag run club", Strategy: "platform-direct"},
	}}

	merged := newMerger().Merge([]models.ClassifiedEntity{e}, nil, candidates)

	require.Len(t, merged, 1)
	assert.Equal(t, "https://img.example.com/vr.jpg", merged[0].Logo)
	assert.Equal(t, "vizag run club", merged[0].Phrase)
	assert.Equal(t, "platform-direct", merged[0].Strategy)
}

func TestMerger_LogoRecoveredByHandleSubstring(t *testing.T) {
	e := entity("Vizag Runners", "@VizagRunners") // no source_url confirmed

	candidates := []models.Candidate{
		{URL: "https://other.example.com/unrelated", Image: "nope.jpg"},
		{URL: "https://instagram.com/vizagrunners", Image: "https://img.example.com/vr.jpg"},
	}

	merged := newMerger().Merge([]models.ClassifiedEntity{e}, nil, candidates)

	require.Len(t, merged, 1)
	assert.Equal(t, "https://img.example.com/vr.jpg", merged[0].Logo)
}

func TestMerger_ModelLogoNotOverwritten(t *testing.T) {
	e := entity("Vizag Runners", "@vizagrunners")
	e.Logo = "https://model.example.com/confirmed.jpg"
	e.SourceURL = "https://instagram.com/vizagrunners"

	candidates := []models.Candidate{{
		URL:   "https://instagram.com/vizagrunners",
		Image: "https://img.example.com/vr.jpg",
	}}

	merged := newMerger().Merge([]models.ClassifiedEntity{e}, nil, candidates)

	require.Len(t, merged, 1)
	assert.Equal(t, "https://model.example.com/confirmed.jpg", merged[0].Logo)
}

func TestMerger_NoCandidateMatchLeavesEntityUntouched(t *testing.T) {
	e := entity("Mystery Club", "")

	merged := newMerger().Merge([]models.ClassifiedEntity{e}, nil, []models.Candidate{
		{URL: "https://unrelated.example.com", Image: "x.jpg"},
	})

	require.Len(t, merged, 1)
	assert.Empty(t, merged[0].Logo)
	assert.Empty(t, merged[0].Phrase)
}

func TestMerger_EmptyStreams(t *testing.T) {
	merged := newMerger().Merge(nil, nil, nil)
	assert.Empty(t, merged)
}
