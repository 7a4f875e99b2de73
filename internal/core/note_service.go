package core

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"resumeai.app/resume-ai/internal/store"
)

var ErrInvalidNote = errors.New("note title and content are required")

type noteStore interface {
	CreateNote(ctx context.Context, note *store.Note) error
	ListNotes(ctx context.Context, owner string) ([]store.Note, error)
	DeleteNote(ctx context.Context, id, owner string) error
}

type NoteService struct {
	store noteStore
}

func NewNoteService(s noteStore) *NoteService {
	return &NoteService{store: s}
}

func (s *NoteService) Create(ctx context.Context, owner, title, content string) (*store.Note, error) {
	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(content) == "" {
		return nil, ErrInvalidNote
	}
	note := &store.Note{Owner: owner, Title: title, Content: content}
	if err := s.store.CreateNote(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// List returns the owner's notes, newest first.
func (s *NoteService) List(ctx context.Context, owner string) ([]store.Note, error) {
	return s.store.ListNotes(ctx, owner)
}

// Delete removes a note owned by owner. Notes of other users are reported as not found.
func (s *NoteService) Delete(ctx context.Context, id, owner string) error {
	return s.store.DeleteNote(ctx, id, owner)
}

type historyStore interface {
	CreateAnalysisRecord(ctx context.Context, rec *store.AnalysisRecord) error
	ListAnalysisRecords(ctx context.Context, owner string, limit int) ([]store.AnalysisRecord, error)
}

const historyLimit = 50

// HistoryService keeps the list of past analyses.
type HistoryService struct {
	store  historyStore
	logger *zap.Logger
}

func NewHistoryService(s historyStore, logger *zap.Logger) *HistoryService {
	return &HistoryService{store: s, logger: logger}
}

// Record appends an analysis to the owner's history. Failures are only logged.
func (s *HistoryService) Record(ctx context.Context, owner, sourceName, sourceKind string, res store.AnalysisResult) {
	rec := &store.AnalysisRecord{
		Owner:      owner,
		SourceName: sourceName,
		SourceKind: sourceKind,
		Result:     res,
	}
	if err := s.store.CreateAnalysisRecord(ctx, rec); err != nil {
		s.logger.Warn("failed to record analysis history", zap.String("owner", owner), zap.Error(err))
	}
}

func (s *HistoryService) List(ctx context.Context, owner string) ([]store.AnalysisRecord, error) {
	return s.store.ListAnalysisRecords(ctx, owner, historyLimit)
}
