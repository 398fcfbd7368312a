// internal/catalog/search.go
package catalog

import (
	"context"
	"strconv"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"github.com/sony/gobreaker"
)

// Searcher wraps the Meilisearch index behind a circuit breaker so a dead
// search node degrades to database search instead of slowing every request.
type Searcher struct {
	index   meilisearch.IndexManager
	breaker *gobreaker.CircuitBreaker
}

type bookDocument struct {
	ID      int64  `json:"id"`
	Code    string `json:"code"`
	Title   string `json:"title"`
	Authors string `json:"authors"`
	Area    string `json:"area"`
}

// NewSearcher connects to Meilisearch. Returns nil when no host is
// configured.
func NewSearcher(host, apiKey, indexName string) *Searcher {
	if host == "" {
		return nil
	}
	client := meilisearch.New(host, meilisearch.WithAPIKey(apiKey))
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "meilisearch",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &Searcher{index: client.Index(indexName), breaker: breaker}
}

// IndexBook upserts one copy into the search index.
func (s *Searcher) IndexBook(ctx context.Context, book *Book) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		doc := bookDocument{
			ID:      book.ID,
			Code:    book.Code,
			Title:   book.Title,
			Authors: book.Authors,
			Area:    book.Area,
		}
		pk := "id"
		return s.index.AddDocumentsWithContext(ctx, []bookDocument{doc}, &pk)
	})
	return err
}

// RemoveBook deletes one copy from the search index.
func (s *Searcher) RemoveBook(ctx context.Context, id int64) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return s.index.DeleteDocumentWithContext(ctx, strconv.FormatInt(id, 10))
	})
	return err
}

// Search returns matching book ids, best first.
func (s *Searcher) Search(ctx context.Context, query string) ([]int64, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.index.SearchWithContext(ctx, query, &meilisearch.SearchRequest{Limit: 20})
	})
	if err != nil {
		return nil, err
	}

	resp := result.(*meilisearch.SearchResponse)
	return hitIDs(resp.Hits), nil
}

// hitIDs decodes the ids out of a result page, skipping malformed hits.
func hitIDs(hits []meilisearch.Hit) []int64 {
	ids := make([]int64, 0, len(hits))
	for _, hit := range hits {
		var doc bookDocument
		if err := hit.Decode(&doc); err != nil || doc.ID == 0 {
			continue
		}
		ids = append(ids, doc.ID)
	}
	return ids
}
