package search

// Result is a single search hit over published portfolios.
type Result struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	OwnerName string `json:"ownerName"`
	Snippet   string `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text   string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over published portfolios.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push portfolios into a search index.
type Indexer interface {
	IndexPortfolio(rec PortfolioRecord) error
	DeletePortfolio(id string) error
}

// PortfolioRecord is the data we index for a published portfolio.
type PortfolioRecord struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	OwnerName string `json:"ownerName"`
	Body      string `json:"body"`
}
