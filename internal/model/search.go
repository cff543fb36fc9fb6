package model

// SearchResult is a single file-search hit. Results are ephemeral, computed
// per search request and never persisted.
type SearchResult struct {
	Path    string
	Line    int
	Snippet string
	Score   float64
}

// FileStats is an aggregate over the files under a search root.
type FileStats struct {
	Count       int
	TotalBytes  int64
	ByExtension map[string]int
}
