package nav

// Index is the persisted navigation index of one document.
type Index struct {
	Version           string              `json:"version"`
	Source            string              `json:"source"`
	IdentifierPattern string              `json:"identifier_pattern"`
	Nodes             []IndexNode         `json:"nodes"`
	ByType            map[string][]string `json:"by_type"`
	ByContext         map[string][]string `json:"by_context"`
	Tokens            map[string][]string `json:"tokens"`
}

type IndexNode struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Title     string   `json:"title"`
	File      string   `json:"file"`
	LineCount int      `json:"line_count"`
	Parent    string   `json:"parent,omitempty"`
	Children  []string `json:"children,omitempty"`
	Related   []string `json:"related,omitempty"`
	Context   []string `json:"context,omitempty"`
}

type Lookup struct {
	ByID    map[string]*IndexNode
	ByTitle map[string][]string
	Index   *Index
}

type ShardRecord struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	File      string `json:"file"`
	LineCount int    `json:"line_count"`
}

type TraceHop struct {
	Depth int         `json:"depth"`
	From  ShardRecord `json:"from"`
	To    ShardRecord `json:"to"`
}
