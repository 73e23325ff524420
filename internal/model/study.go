package model

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// NormalizeDifficulty maps unknown values onto medium.
func NormalizeDifficulty(d string) string {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d
	}
	return DifficultyMedium
}

// Flashcard is one card of a generated set. Cards created by the same
// generation share a SetID.
type Flashcard struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	DocumentID   string `json:"document_id"`
	SetID        string `json:"set_id"`
	Question     string `json:"question"`
	Answer       string `json:"answer"`
	Difficulty   string `json:"difficulty"`
	Position     int    `json:"position"`
	ReviewCount  int    `json:"review_count"`
	IsStarred    bool   `json:"is_starred"`
	LastReviewed int64  `json:"last_reviewed"`
	Ctime        int64  `json:"ctime"`
	Mtime        int64  `json:"mtime"`
}

type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	Difficulty    string   `json:"difficulty"`
}

type QuizAnswer struct {
	QuestionIndex  int    `json:"question_index"`
	SelectedAnswer string `json:"selected_answer"`
	IsCorrect      bool   `json:"is_correct"`
}

type Quiz struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	DocumentID     string         `json:"document_id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Questions      []QuizQuestion `json:"questions"`
	Answers        []QuizAnswer   `json:"answers"`
	Score          int            `json:"score"`
	TotalQuestions int            `json:"total_questions"`
	CompletedAt    int64          `json:"completed_at"`
	Ctime          int64          `json:"ctime"`
	Mtime          int64          `json:"mtime"`
}

func (q *Quiz) IsCompleted() bool {
	return q.CompletedAt > 0
}
