package model

// Chunk is a paragraph-aligned segment of a document. ChunkIndex always
// equals the chunk's position in its document's chunk list.
type Chunk struct {
	Content    string `json:"content"`
	ChunkIndex int    `json:"chunk_index"`
	PageNumber int    `json:"page_number"`
}

// ScoredChunk is produced by a single retrieval call and never persisted.
type ScoredChunk struct {
	Chunk
	Score           float64 `json:"score"`
	RawScore        float64 `json:"raw_score"`
	MatchedKeywords int     `json:"matched_keywords"`
}
