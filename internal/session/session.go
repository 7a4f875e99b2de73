// Package session keeps the per-user interaction state between requests. A Session is
// created at login, mutated by every action and destroyed on logout.
package session

import (
	"time"

	"github.com/google/uuid"
	"resumeai.app/resume-ai/internal/store"
)

// Screen is the page marker the navigation controller reads and writes.
type Screen string

const (
	ScreenLoggedOut    Screen = "logged_out"
	ScreenProfileError Screen = "profile_error"
	ScreenExpired      Screen = "expired"
	ScreenHome         Screen = "home"
	ScreenSourceSelect Screen = "source_select"
	ScreenMultiDocChat Screen = "multi_doc_chat"
	ScreenNotes        Screen = "notes"
	ScreenHistory      Screen = "history"
	ScreenResults      Screen = "results"
)

// Dialogue is a conversation anchored to one text. A nil *Dialogue is uninitialized.
type Dialogue struct {
	SystemInstruction string           `json:"system_instruction"`
	Turns             []store.ChatTurn `json:"turns"`
}

type Session struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Page   Screen `json:"page"`

	ExtractedText string                `json:"extracted_text,omitempty"`
	SourceName    string                `json:"source_name,omitempty"`
	SourceKind    string                `json:"source_kind,omitempty"`
	VideoURL      string                `json:"video_url,omitempty"`
	AnalysisKey   string                `json:"analysis_key"`
	Analysis      *store.AnalysisResult `json:"analysis,omitempty"`
	Chat          *Dialogue             `json:"chat,omitempty"`

	MultiDocText string    `json:"multi_doc_text,omitempty"`
	MultiDocChat *Dialogue `json:"multi_doc_chat,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func New(userID string) *Session {
	return &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		Page:        ScreenHome,
		AnalysisKey: uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
	}
}

func (s *Session) HasExtractedText() bool {
	return s.ExtractedText != ""
}

// SetExtracted stores freshly extracted text and drops any analysis or dialogue that
// belonged to a previous text.
func (s *Session) SetExtracted(text, sourceName, sourceKind, videoURL string) {
	s.ExtractedText = text
	s.SourceName = sourceName
	s.SourceKind = sourceKind
	s.VideoURL = videoURL
	s.Analysis = nil
	s.Chat = nil
}

// ResetAnalysis implements "analyze another": the single-source text and everything derived
// from it is cleared and a new analysis key is issued so cached results are not reused.
func (s *Session) ResetAnalysis() {
	s.ExtractedText = ""
	s.SourceName = ""
	s.SourceKind = ""
	s.VideoURL = ""
	s.Analysis = nil
	s.Chat = nil
	s.AnalysisKey = uuid.NewString()
}

// SetMultiDoc replaces the combined multi-document text and restarts its dialogue.
func (s *Session) SetMultiDoc(text string) {
	s.MultiDocText = text
	s.MultiDocChat = nil
}
