package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/birddigital/voicebridge/pkg/bridge"
)

func TestFilterBySimilarityDropsBelowThreshold(t *testing.T) {
	results := []bridge.RetrievalResult{
		{Text: "a", Similarity: 0.81},
		{Text: "b", Similarity: 0.42},
		{Text: "c", Similarity: 0.77},
	}

	filtered := filterBySimilarity(results, 0.5)
	assert.Len(t, filtered, 2)
	assert.Equal(t, "a", filtered[0].Text)
	assert.Equal(t, "c", filtered[1].Text)
}

func TestFilterBySimilarityEmptyWhenNoneQualify(t *testing.T) {
	results := []bridge.RetrievalResult{{Text: "a", Similarity: 0.1}}
	filtered := filterBySimilarity(results, 0.5)
	assert.Empty(t, filtered)
}
