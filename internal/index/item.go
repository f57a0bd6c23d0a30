package index

// Item is a unit of searchable application content contributed by a module.
type Item struct {
	ID             string         `json:"id"`
	ModuleType     string         `json:"module_type"`
	Title          string         `json:"title"`
	SearchableText string         `json:"searchable_text"`
	Timestamp      int64          `json:"timestamp"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// SearchOptions narrows and truncates a search.
type SearchOptions struct {
	MaxResults  int
	ModuleTypes []string
}

// Result is a scored search hit.
type Result struct {
	Item  Item    `json:"item"`
	Score float64 `json:"score"`
}

// Stats describes the current shape of the index.
type Stats struct {
	TotalItems         int            `json:"total_items"`
	DistinctWords      int            `json:"distinct_words"`
	EstimatedSizeBytes int64          `json:"estimated_size_bytes"`
	ByModuleType       map[string]int `json:"by_module_type"`
}
