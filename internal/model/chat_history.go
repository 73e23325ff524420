package model

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

type ChatMessage struct {
	Role           string `json:"role"`
	Content        string `json:"content"`
	RelevantChunks []int  `json:"relevant_chunks"`
	Timestamp      int64  `json:"timestamp"`
}

type ChatHistory struct {
	ID         string        `json:"id"`
	UserID     string        `json:"user_id"`
	DocumentID string        `json:"document_id"`
	Messages   []ChatMessage `json:"messages"`
	Ctime      int64         `json:"ctime"`
	Mtime      int64         `json:"mtime"`
}
