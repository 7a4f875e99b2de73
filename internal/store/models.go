package store

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is read on every gated request. SubscriptionValidUntil is kept as stored so a
// malformed value can be told apart from a missing one.
type Profile struct {
	UserID                 string `json:"user_id"`
	FullName               string `json:"full_name"`
	SubscriptionValidUntil string `json:"subscription_valid_until,omitempty"`
}

type Note struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AnalysisResult is the fixed triple produced for one extracted text.
type AnalysisResult struct {
	SimplifiedSummary   string `json:"simplified_summary"`
	StructuredBreakdown string `json:"structured_breakdown"`
	CriticalQuestions   string `json:"critical_questions"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AnalysisRecord struct {
	ID         string         `json:"id"`
	Owner      string         `json:"owner"`
	SourceName string         `json:"source_name"`
	SourceKind string         `json:"source_kind"`
	Result     AnalysisResult `json:"result"`
	CreatedAt  time.Time      `json:"created_at"`
}
