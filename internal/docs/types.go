package docs

// Root is a top-level entry point into the document tree, corresponding to
// one real storage location. The root set is fixed at provider start.
type Root struct {
	ID             string     `json:"root_id"`
	Title          string     `json:"title"`
	Summary        string     `json:"summary"`
	Icon           string     `json:"icon"`
	Flags          RootFlags  `json:"flags"`
	MIMETypes      string     `json:"mime_types"`
	DocumentID     DocumentID `json:"document_id"`
	AvailableBytes uint64     `json:"available_bytes"`
}

// Document is a point-in-time record of one node, recomputed from the live
// filesystem entry on every query. There is no snapshot isolation across a
// multi-call sequence.
type Document struct {
	ID           DocumentID `json:"document_id"`
	DisplayName  string     `json:"display_name"`
	MIMEType     string     `json:"mime_type"`
	LastModified int64      `json:"last_modified"` // unix milliseconds
	Flags        Flags      `json:"flags"`
	Size         int64      `json:"size"`
}

// Usage summarizes the space consumed under one root.
type Usage struct {
	RootID string `json:"root_id"`
	Bytes  int64  `json:"bytes"`
	Files  int    `json:"files"`
}
