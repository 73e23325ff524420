package model

const (
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusFailed     = "failed"
)

type Document struct {
	ID           string  `json:"id"`
	UserID       string  `json:"user_id"`
	Title        string  `json:"title"`
	FileName     string  `json:"file_name"`
	FileKey      string  `json:"file_key"`
	FileURL      string  `json:"file_url"`
	ContentType  string  `json:"content_type"`
	FileSize     int64   `json:"file_size"`
	RawText      string  `json:"raw_text,omitempty"`
	PageCount    int     `json:"page_count"`
	Status       string  `json:"status"`
	FailReason   string  `json:"fail_reason,omitempty"`
	Chunks       []Chunk `json:"chunks,omitempty"`
	ChunkCount   int     `json:"chunk_count"`
	LastAccessed int64   `json:"last_accessed"`
	Ctime        int64   `json:"ctime"`
	Mtime        int64   `json:"mtime"`
}

// IsTerminal reports whether ingestion of the document has finished.
func (d *Document) IsTerminal() bool {
	return d.Status == DocumentStatusReady || d.Status == DocumentStatusFailed
}
