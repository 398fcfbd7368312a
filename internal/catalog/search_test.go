// internal/catalog/search_test.go
package catalog

import (
	"encoding/json"
	"testing"

	"github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
)

func TestHitIDs(t *testing.T) {
	hits := []meilisearch.Hit{
		{
			"id":    json.RawMessage(`9788522112258`),
			"title": json.RawMessage(`"Calculus I"`),
		},
		{
			"id": json.RawMessage(`9788522112259`),
		},
		// No id: skipped rather than reported as barcode zero.
		{
			"title": json.RawMessage(`"Untitled"`),
		},
		// Malformed id: skipped.
		{
			"id": json.RawMessage(`"not-a-number"`),
		},
	}

	assert.Equal(t, []int64{9788522112258, 9788522112259}, hitIDs(hits))
}

func TestHitIDsEmpty(t *testing.T) {
	assert.Empty(t, hitIDs(nil))
}
