package core

import (
	"context"
	"errors"
	"strings"

	"resumeai.app/resume-ai/internal/session"
	"resumeai.app/resume-ai/internal/store"
)

var (
	ErrDialogueNotStarted = errors.New("dialogue has not been started")
	ErrEmptyMessage       = errors.New("message content cannot be empty")
)

// SingleDocInstruction anchors a dialogue to one extracted text.
func SingleDocInstruction(text string) string {
	return "Você é um especialista no seguinte texto:\n---\n" + text + "\n---\n" +
		"Responda perguntas baseadas exclusivamente neste conteúdo."
}

// MultiDocInstruction anchors a dialogue to the combined text of several documents.
func MultiDocInstruction(combined string) string {
	return "Você é um especialista que analisou múltiplos documentos. " +
		"Responda às perguntas do usuário com base no conteúdo combinado a seguir:\n\n" + combined + "\n---"
}

// ChatService runs follow-up conversations about a text. The whole transcript is replayed
// to the backend on every message.
type ChatService struct {
	gen Generator
}

func NewChatService(gen Generator) *ChatService {
	return &ChatService{gen: gen}
}

// Start returns a fresh dialogue for the given system instruction.
func (s *ChatService) Start(systemInstruction string) *session.Dialogue {
	return &session.Dialogue{
		SystemInstruction: systemInstruction,
		Turns:             []store.ChatTurn{},
	}
}

// Send asks the backend for a reply. On success the user turn and the assistant turn are
// appended in that order; on failure the dialogue is left untouched.
func (s *ChatService) Send(ctx context.Context, d *session.Dialogue, message string) (string, error) {
	if d == nil {
		return "", ErrDialogueNotStarted
	}
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}

	history := make([]store.ChatTurn, len(d.Turns))
	copy(history, d.Turns)

	reply, err := s.gen.Converse(ctx, d.SystemInstruction, history, message)
	if err != nil {
		return "", err
	}

	d.Turns = append(d.Turns,
		store.ChatTurn{Role: store.RoleUser, Content: message},
		store.ChatTurn{Role: store.RoleAssistant, Content: reply},
	)
	return reply, nil
}
