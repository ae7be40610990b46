package db

// KNNQuery is the input for vector similarity search. Filter keys map to
// TAG fields and are combined with AND into the pre-filter expression.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	Filter       map[string]string
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
