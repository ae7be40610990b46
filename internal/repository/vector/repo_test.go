package vector

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/toolvec/internal/db"
	"github.com/kailas-cloud/toolvec/internal/domain"
)

func TestSearchVectors_Success(t *testing.T) {
	ms := &mockStore{
		searchKNNFn: func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
			if q.IndexName != "toolvec:semantic:idx" {
				t.Errorf("index = %s", q.IndexName)
			}
			if q.K != 20 {
				t.Errorf("k = %d, want 20", q.K)
			}
			return &db.SearchResult{
				Total: 2,
				Entries: []db.SearchEntry{
					{
						Key:   "toolvec:semantic:kubectl",
						Score: 0.92,
						Fields: map[string]string{
							"name":     "kubectl",
							"category": "devops",
						},
					},
					{
						Key:   "toolvec:semantic:helm",
						Score: 0.81,
						Fields: map[string]string{
							"name":     "helm",
							"category": "devops",
						},
					},
				},
			}, nil
		},
	}
	repo := New(ms)

	items, err := repo.SearchVectors(
		context.Background(), domain.TypeSemantic, []float32{0.1, 0.2}, 20, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].ID != "kubectl" {
		t.Errorf("id = %s, want key prefix stripped", items[0].ID)
	}
	if items[0].Score != 0.92 {
		t.Errorf("score = %f", items[0].Score)
	}
	if name, _ := items[0].Payload.Name(); name != "kubectl" {
		t.Errorf("payload name = %q", name)
	}
	if cat, _ := items[1].Payload.Category(); cat != "devops" {
		t.Errorf("payload category = %q", cat)
	}
}

func TestSearchVectors_PassesFilter(t *testing.T) {
	var gotFilter map[string]string
	ms := &mockStore{
		searchKNNFn: func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
			gotFilter = q.Filter
			return &db.SearchResult{}, nil
		},
	}
	repo := New(ms)

	_, err := repo.SearchVectors(context.Background(), domain.TypeCategories,
		[]float32{0.1}, 5, map[string]string{"category": "devops"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotFilter["category"] != "devops" {
		t.Errorf("filter = %v", gotFilter)
	}
}

func TestSearchVectors_Empty(t *testing.T) {
	repo := New(&mockStore{})

	items, err := repo.SearchVectors(
		context.Background(), domain.TypeSemantic, []float32{0.1}, 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %d, want 0", len(items))
	}
}

func TestSearchVectors_StoreError(t *testing.T) {
	ms := &mockStore{
		searchKNNFn: func(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
			return nil, errors.New("connection refused")
		},
	}
	repo := New(ms)

	_, err := repo.SearchVectors(
		context.Background(), domain.TypeSemantic, []float32{0.1}, 10, nil)
	if !errors.Is(err, domain.ErrVectorStore) {
		t.Fatalf("err = %v, want ErrVectorStore", err)
	}
}

func TestIndexName(t *testing.T) {
	if got := IndexName("semantic"); got != "toolvec:semantic:idx" {
		t.Errorf("IndexName = %q", got)
	}
}

func TestEnsureIndexes_CreatesMissing(t *testing.T) {
	ms := &mockStore{
		indexExistsFn: func(_ context.Context, name string) (bool, error) {
			return name == "toolvec:semantic:idx", nil
		},
	}

	err := EnsureIndexes(context.Background(), ms,
		[]string{domain.TypeSemantic, domain.TypeCategories}, 1536)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ms.created) != 1 || ms.created[0] != "toolvec:categories:idx" {
		t.Errorf("created = %v, want only the missing index", ms.created)
	}
}

func TestEnsureIndexes_IgnoresConcurrentCreate(t *testing.T) {
	ms := &mockStore{
		createIndexFn: func(context.Context, *db.IndexDefinition) error {
			return db.ErrIndexExists
		},
	}

	err := EnsureIndexes(context.Background(), ms, []string{domain.TypeSemantic}, 8)
	if err != nil {
		t.Fatalf("race with another creator must not fail startup: %v", err)
	}
}

func TestEnsureIndexes_ProbeError(t *testing.T) {
	ms := &mockStore{
		indexExistsFn: func(context.Context, string) (bool, error) {
			return false, errors.New("down")
		},
	}

	err := EnsureIndexes(context.Background(), ms, []string{domain.TypeSemantic}, 8)
	if !errors.Is(err, domain.ErrVectorStore) {
		t.Fatalf("err = %v, want ErrVectorStore", err)
	}
}
