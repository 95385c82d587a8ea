package domain

// IndexedChunk is a chunk text paired with the identifier the vector index assigned at insert time.
type IndexedChunk struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// StoredChunk is the canonical relational row for an indexed chunk.
type StoredChunk struct {
	RowID    int64  `json:"row_id"`
	SourceID string `json:"source_id"`
	ChunkID  string `json:"chunk_id"`
	Text     string `json:"text"`
}

// IngestionReport summarizes one ingestion call.
type IngestionReport struct {
	Result
	Source    string `json:"source"`
	Requested int    `json:"requested"`
	Stored    int    `json:"stored"`
	Dropped   int    `json:"dropped"`
}

// IngestionJob is the queued unit of work for an uploaded document.
type IngestionJob struct {
	ID         string          `json:"id"`
	Source     string          `json:"source"`
	StorageKey string          `json:"storage_key"`
	MimeType   string          `json:"mime_type"`
	Chunking   ChunkingOptions `json:"chunking"`
}

// ChunkingOptions selects the chunking strategy for one ingestion request.
type ChunkingOptions struct {
	Strategy  string `json:"strategy"`
	ChunkSize int    `json:"chunk_size"`
	Overlap   int    `json:"overlap"`
}
