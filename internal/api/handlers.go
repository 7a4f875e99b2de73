package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"resumeai.app/resume-ai/internal/apperr"
	"resumeai.app/resume-ai/internal/auth"
	"resumeai.app/resume-ai/internal/core"
	"resumeai.app/resume-ai/internal/extract"
	"resumeai.app/resume-ai/internal/session"
	"resumeai.app/resume-ai/internal/store"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Identity       auth.Identity
	Tokens         *auth.Tokens
	Gate           *auth.Gate
	Sessions       *session.Store
	Locks          *session.Locks
	Extractor      *extract.Extractor
	Analysis       *core.AnalysisService
	Chat           *core.ChatService
	Notes          *core.NoteService
	History        *core.HistoryService
	MaxUploadBytes int64
	HealthChecks   map[string]HealthCheck
	Logger         *zap.Logger
}

type APIHandler struct {
	identity       auth.Identity
	tokens         *auth.Tokens
	gate           *auth.Gate
	sessions       *session.Store
	locks          *session.Locks
	extractor      *extract.Extractor
	analysis       *core.AnalysisService
	chat           *core.ChatService
	notes          *core.NoteService
	history        *core.HistoryService
	maxUploadBytes int64
	healthChecks   map[string]HealthCheck
	logger         *zap.Logger
}

func NewAPIHandler(d Deps) *APIHandler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Locks == nil {
		d.Locks = session.NewLocks()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 20 << 20
	}
	return &APIHandler{
		identity:       d.Identity,
		tokens:         d.Tokens,
		gate:           d.Gate,
		sessions:       d.Sessions,
		locks:          d.Locks,
		extractor:      d.Extractor,
		analysis:       d.Analysis,
		chat:           d.Chat,
		notes:          d.Notes,
		history:        d.History,
		maxUploadBytes: d.MaxUploadBytes,
		healthChecks:   d.HealthChecks,
		logger:         d.Logger,
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error  errorBody      `json:"error"`
	Screen session.Screen `json:"screen,omitempty"`
}

type screenResponse struct {
	Screen session.Screen `json:"screen"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed_to_encode_response", zap.Error(err), zap.Int("status_code", status))
	}
}

func (h *APIHandler) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	writeJSON(w, status, v, h.logger)
}

func (h *APIHandler) respondError(w http.ResponseWriter, r *http.Request, err error, screen session.Screen) {
	ae := apperr.From(err)
	fields := []zap.Field{
		zap.String("code", ae.Code),
		zap.Int("status_code", ae.Status),
		zap.String("path", r.URL.Path),
	}
	if ae.Err != nil {
		fields = append(fields, zap.Error(ae.Err))
	}
	if ae.Status >= http.StatusInternalServerError {
		h.logger.Error("request_failed", fields...)
	} else {
		h.logger.Warn("request_rejected", fields...)
	}
	h.respondJSON(w, ae.Status, errorResponse{
		Error:  errorBody{Code: ae.Code, Message: ae.Message},
		Screen: screen,
	})
}

// screen is the screen a request ends on, recomputed from gate outcome and session.
func (h *APIHandler) screen(r *http.Request) session.Screen {
	return core.ResolveScreen(decisionFrom(r), sessionFrom(r))
}

func (h *APIHandler) save(ctx context.Context, sess *session.Session) error {
	if err := h.sessions.Save(ctx, sess); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.healthChecks))
	status := http.StatusOK
	for name, check := range h.healthChecks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	h.respondJSON(w, status, map[string]interface{}{"status": overall, "checks": checks})
}

// Account handlers

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if ae := decodeJSON(w, r, &req); ae != nil {
		h.respondError(w, r, ae, session.ScreenLoggedOut)
		return
	}

	userID, err := h.identity.CreateUser(r.Context(), req.Email, req.Password, req.FullName)
	switch {
	case errors.Is(err, auth.ErrSignupDisabled):
		h.respondError(w, r, apperr.SignupDisabled(), session.ScreenLoggedOut)
		return
	case errors.Is(err, auth.ErrEmailTaken):
		h.respondError(w, r, apperr.Conflict("An account with this e-mail already exists.", err), session.ScreenLoggedOut)
		return
	case err != nil:
		h.respondError(w, r, apperr.Internal(err), session.ScreenLoggedOut)
		return
	}

	h.logger.Info("account created", zap.String("user_id", userID))
	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"user_id": userID,
		"message": "Account created. You can now log in.",
		"screen":  session.ScreenLoggedOut,
	})
}

type loginResponse struct {
	Token  string         `json:"token"`
	Screen session.Screen `json:"screen"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if ae := decodeJSON(w, r, &req); ae != nil {
		h.respondError(w, r, ae, session.ScreenLoggedOut)
		return
	}

	userID, err := h.identity.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			h.logger.Error("identity backend sign-in failed", zap.Error(err))
		}
		h.respondError(w, r, apperr.AuthFailure(err), session.ScreenLoggedOut)
		return
	}

	sess := session.New(userID)
	if err := h.save(r.Context(), sess); err != nil {
		h.respondError(w, r, err, session.ScreenLoggedOut)
		return
	}

	token, err := h.tokens.GenerateJWT(userID, sess.ID)
	if err != nil {
		h.respondError(w, r, apperr.Internal(err), session.ScreenLoggedOut)
		return
	}

	decision := h.gate.Check(r.Context(), userID)
	h.respondJSON(w, http.StatusOK, loginResponse{
		Token:  token,
		Screen: core.ResolveScreen(decision, sess),
	})
}

func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := h.sessions.Delete(r.Context(), sess.ID); err != nil {
		h.respondError(w, r, apperr.Internal(err), h.screen(r))
		return
	}
	h.respondJSON(w, http.StatusOK, screenResponse{Screen: session.ScreenLoggedOut})
}

type screenStateResponse struct {
	Screen                 session.Screen `json:"screen"`
	FullName               string         `json:"full_name,omitempty"`
	SubscriptionValidUntil string         `json:"subscription_valid_until,omitempty"`
	SourceName             string         `json:"source_name,omitempty"`
	SourceKind             string         `json:"source_kind,omitempty"`
	HasMultiDoc            bool           `json:"has_multi_doc"`
}

func (h *APIHandler) ScreenHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	decision := decisionFrom(r)

	resp := screenStateResponse{
		Screen:      h.screen(r),
		SourceName:  sess.SourceName,
		SourceKind:  sess.SourceKind,
		HasMultiDoc: sess.MultiDocText != "",
	}
	if decision.Profile != nil {
		resp.FullName = decision.Profile.FullName
		resp.SubscriptionValidUntil = decision.Profile.SubscriptionValidUntil
	}
	h.respondJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) NavigateHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	var req NavigateRequest
	if ae := decodeJSON(w, r, &req); ae != nil {
		h.respondError(w, r, ae, h.screen(r))
		return
	}
	if err := core.Navigate(sess, session.Screen(req.Target)); err != nil {
		h.respondError(w, r, apperr.BadRequest("Unknown navigation target", err), h.screen(r))
		return
	}
	if err := h.save(r.Context(), sess); err != nil {
		h.respondError(w, r, err, h.screen(r))
		return
	}
	h.respondJSON(w, http.StatusOK, screenResponse{Screen: h.screen(r)})
}

// Source handlers

type extractedResponse struct {
	Screen     session.Screen `json:"screen"`
	SourceName string         `json:"source_name"`
	SourceKind string         `json:"source_kind"`
	Characters int            `json:"characters"`
}

func (h *APIHandler) DocumentSourceHandler(w http.ResponseWriter, r *http.Request) {
	if ae := parseUpload(w, r, h.maxUploadBytes); ae != nil {
		h.respondError(w, r, ae, h.screen(r))
		return
	}
	_, fh, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, r, apperr.BadRequest("A file is required in field 'file'", err), h.screen(r))
		return
	}
	file, err := readUpload(fh)
	if err != nil {
		h.respondError(w, r, apperr.BadRequest("The upload could not be read", err), h.screen(r))
		return
	}

	text, err := h.extractor.Document(file)
	if err != nil {
		h.respondError(w, r, apperr.Extraction(extract.UserMessage(err), err), h.screen(r))
		return
	}
	h.finishExtraction(w, r, text, file.Name, extract.KindDocument, "")
}

func (h *APIHandler) ArticleSourceHandler(w http.ResponseWriter, r *http.Request) {
	var req SourceURLRequest
	if ae := decodeJSON(w, r, &req); ae != nil {
		h.respondError(w, r, ae, h.screen(r))
		return
	}

	text, err := h.extractor.Article(r.Context(), req.URL)
	if err != nil {
		h.respondError(w, r, apperr.Extraction(extract.UserMessage(err), err), h.screen(r))
		return
	}
	h.finishExtraction(w, r, text, req.URL, extract.KindArticle, "")
}

func (h *APIHandler) VideoSourceHandler(w http.ResponseWriter, r *http.Request) {
	var req SourceURLRequest
	if ae := decodeJSON(w, r, &req); ae != nil {
		h.respondError(w, r, ae, h.screen(r))
		return
	}

	text, err := h.extractor.Video(r.Context(), req.URL)
	if err != nil {
		h.respondError(w, r, apperr.Extraction(extract.UserMessage(err), err), h.screen(r))
		return
	}
	h.finishExtraction(w, r, text, req.URL, extract.KindVideo, req.URL)
}

func (h *APIHandler) finishExtraction(w http.ResponseWriter, r *http.Request, text, name string, kind extract.Kind, videoURL string) {
	sess := sessionFrom(r)
	core.ContentExtracted(sess, text, name, string(kind), videoURL)
	if err := h.save(r.Context(), sess); err != nil {
		h.respondError(w, r, err, h.screen(r))
		return
	}

	characters := utf8.RuneCountInString(text)
	h.logger.Info("content extracted",
		zap.String("session_id", sess.ID),
		zap.String("source_kind", string(kind)),
		zap.Int("characters", characters))
	h.respondJSON(w, http.StatusOK, extractedResponse{
		Screen:     h.screen(r),
		SourceName: name,
		SourceKind: string(kind),
		Characters: characters,
	})
}

// Results handlers

type analysisResponse struct {
	SimplifiedSummary   Markdown `json:"simplified_summary"`
	StructuredBreakdown Markdown `json:"structured_breakdown"`
	CriticalQuestions   Markdown `json:"critical_questions"`
}

type transcriptTurn struct {
	Role    string   `json:"role"`
	Content Markdown `json:"content"`
}

type resultsResponse struct {
	Screen     session.Screen   `json:"screen"`
	SourceName string           `json:"source_name"`
	SourceKind string           `json:"source_kind"`
	VideoURL   string           `json:"video_url,omitempty"`
	Analysis   analysisResponse `json:"analysis"`
	Transcript []transcriptTurn `json:"transcript"`
}

// ResultsHandler runs the analysis on first entry and seeds the follow-up dialogue.
func (h *APIHandler) ResultsHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if !sess.HasExtractedText() {
		h.respondError(w, r, apperr.InvalidState("No content has been extracted yet."), h.screen(r))
		return
	}

	if sess.Chat == nil {
		sess.Chat = h.chat.Start(core.SingleDocInstruction(sess.ExtractedText))
	}

	if sess.Analysis == nil {
		res, err := h.analysis.Analyze(r.Context(), sess.ExtractedText, sess.AnalysisKey)
		if err != nil {
			// The seeded dialogue is kept even when the analysis fails.
			if saveErr := h.save(r.Context(), sess); saveErr != nil {
				h.logger.Error("failed to save session", zap.Error(saveErr))
			}
			if errors.Is(err, core.ErrTextTooShort) {
				h.respondError(w, r, apperr.TextTooShort(), h.screen(r))
			} else {
				h.respondError(w, r, core.GenerationAppError(err), h.screen(r))
			}
			return
		}
		sess.Analysis = res
		h.history.Record(r.Context(), sess.UserID, sess.SourceName, sess.SourceKind, *res)
	}

	if err := h.save(r.Context(), sess); err != nil {
		h.respondError(w, r, err, h.screen(r))
		return
	}

	h.respondJSON(w, http.StatusOK, resultsResponse{
		Screen:     h.screen(r),
		SourceName: sess.SourceName,
		SourceKind: sess.SourceKind,
		VideoURL:   sess.VideoURL,
		Analysis: analysisResponse{
			SimplifiedSummary:   renderMarkdown(sess.Analysis.SimplifiedSummary),
			StructuredBreakdown: renderMarkdown(sess.Analysis.StructuredBreakdown),
			CriticalQuestions:   renderMarkdown(sess.Analysis.CriticalQuestions),
		},
		Transcript: renderTranscript(sess.Chat),
	})
}

type messageResponse struct {
	Screen     session.Screen   `json:"screen"`
	Reply      Markdown         `json:"reply"`
	Transcript []transcriptTurn `json:"transcript"`
}

func (h *APIHandler) ResultsMessageHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if !sess.HasExtractedText() {
		h.respondError(w, r, apperr.InvalidState("No content has been extracted yet."), h.screen(r))
		return
	}

	var req MessageRequest
	if ae := decodeJSON(w, r, &req); ae != nil {
		h.respondError(w, r, ae, h.screen(r))
		return
	}

	if sess.Chat == nil {
		sess.Chat = h.chat.Start(core.SingleDocInstruction(sess.ExtractedText))
	}
	h.converse(w, r, sess, sess.Chat, req.Content)
}

func (h *APIHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	core.AnalyzeAnother(sess)
	if err := h.save(r.Context(), sess); err != nil {
		h.respondError(w, r, err, h.screen(r))
		return
	}
	h.respondJSON(w, http.StatusOK, screenResponse{Screen: h.screen(r)})
}

// Multi-document handlers

type fileFailure struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

type multiDocResponse struct {
	Screen     session.Screen   `json:"screen"`
	Processed  []string         `json:"processed,omitempty"`
	Failures   []fileFailure    `json:"failures,omitempty"`
	Ready      bool             `json:"ready"`
	Transcript []transcriptTurn `json:"transcript"`
}

func (h *APIHandler) MultiDocUploadHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if ae := parseUpload(w, r, h.maxUploadBytes); ae != nil {
		h.respondError(w, r, ae, h.screen(r))
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		h.respondError(w, r, apperr.BadRequest("At least one file is required in field 'files'", nil), h.screen(r))
		return
	}

	files := make([]extract.File, 0, len(headers))
	for _, fh := range headers {
		f, err := readUpload(fh)
		if err != nil {
			h.respondError(w, r, apperr.BadRequest("The upload could not be read", err), h.screen(r))
			return
		}
		files = append(files, f)
	}

	res := h.extractor.Documents(files)
	failures := make([]fileFailure, 0, len(res.Failures))
	for _, f := range res.Failures {
		h.logger.Warn("multi-document file skipped", zap.String("file", f.Name), zap.Error(f.Err))
		failures = append(failures, fileFailure{Name: f.Name, Message: extract.UserMessage(f.Err)})
	}
	if len(res.Processed) == 0 {
		h.respondError(w, r, apperr.Extraction("None of the files could be processed.", nil), h.screen(r))
		return
	}

	sess.SetMultiDoc(res.Text)
	sess.MultiDocChat = h.chat.Start(core.MultiDocInstruction(res.Text))
	sess.Page = session.ScreenMultiDocChat
	if err := h.save(r.Context(), sess); err != nil {
		h.respondError(w, r, err, h.screen(r))
		return
	}

	h.respondJSON(w, http.StatusOK, multiDocResponse{
		Screen:     h.screen(r),
		Processed:  res.Processed,
		Failures:   failures,
		Ready:      true,
		Transcript: renderTranscript(sess.MultiDocChat),
	})
}

func (h *APIHandler) MultiDocStateHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	h.respondJSON(w, http.StatusOK, multiDocResponse{
		Screen:     h.screen(r),
		Ready:      sess.MultiDocText != "",
		Transcript: renderTranscript(sess.MultiDocChat),
	})
}

func (h *APIHandler) MultiDocMessageHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if sess.MultiDocText == "" {
		h.respondError(w, r, apperr.InvalidState("Upload and process files before asking questions."), h.screen(r))
		return
	}

	var req MessageRequest
	if ae := decodeJSON(w, r, &req); ae != nil {
		h.respondError(w, r, ae, h.screen(r))
		return
	}

	if sess.MultiDocChat == nil {
		sess.MultiDocChat = h.chat.Start(core.MultiDocInstruction(sess.MultiDocText))
	}
	h.converse(w, r, sess, sess.MultiDocChat, req.Content)
}

func (h *APIHandler) converse(w http.ResponseWriter, r *http.Request, sess *session.Session, d *session.Dialogue, content string) {
	reply, err := h.chat.Send(r.Context(), d, content)
	if err != nil {
		if saveErr := h.save(r.Context(), sess); saveErr != nil {
			h.logger.Error("failed to save session", zap.Error(saveErr))
		}
		if errors.Is(err, core.ErrEmptyMessage) {
			h.respondError(w, r, apperr.BadRequest("Message content cannot be empty", err), h.screen(r))
		} else {
			h.respondError(w, r, core.GenerationAppError(err), h.screen(r))
		}
		return
	}

	if err := h.save(r.Context(), sess); err != nil {
		h.respondError(w, r, err, h.screen(r))
		return
	}
	h.respondJSON(w, http.StatusOK, messageResponse{
		Screen:     h.screen(r),
		Reply:      renderMarkdown(reply),
		Transcript: renderTranscript(d),
	})
}

func renderTranscript(d *session.Dialogue) []transcriptTurn {
	out := []transcriptTurn{}
	if d == nil {
		return out
	}
	for _, t := range d.Turns {
		out = append(out, transcriptTurn{Role: t.Role, Content: renderMarkdown(t.Content)})
	}
	return out
}

// Notes and history handlers

type notesResponse struct {
	Screen session.Screen `json:"screen"`
	Notes  []store.Note   `json:"notes"`
}

func (h *APIHandler) ListNotesHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	notes, err := h.notes.List(r.Context(), sess.UserID)
	if err != nil {
		h.respondError(w, r, apperr.NoteStore(err), h.screen(r))
		return
	}
	h.respondJSON(w, http.StatusOK, notesResponse{Screen: h.screen(r), Notes: notes})
}

func (h *APIHandler) CreateNoteHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	var req NoteRequest
	if ae := decodeJSON(w, r, &req); ae != nil {
		h.respondError(w, r, ae, h.screen(r))
		return
	}

	note, err := h.notes.Create(r.Context(), sess.UserID, req.Title, req.Content)
	if err != nil {
		if errors.Is(err, core.ErrInvalidNote) {
			h.respondError(w, r, apperr.BadRequest("Title and content are required", err), h.screen(r))
		} else {
			h.respondError(w, r, apperr.NoteStore(err), h.screen(r))
		}
		return
	}
	h.respondJSON(w, http.StatusCreated, note)
}

func (h *APIHandler) DeleteNoteHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	noteID := chi.URLParam(r, "noteID")

	if err := h.notes.Delete(r.Context(), noteID, sess.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.respondError(w, r, apperr.NotFound("note"), h.screen(r))
		} else {
			h.respondError(w, r, apperr.NoteStore(err), h.screen(r))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type historyEntry struct {
	ID         string           `json:"id"`
	SourceName string           `json:"source_name"`
	SourceKind string           `json:"source_kind"`
	Analysis   analysisResponse `json:"analysis"`
	CreatedAt  time.Time        `json:"created_at"`
}

func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	records, err := h.history.List(r.Context(), sess.UserID)
	if err != nil {
		h.respondError(w, r, apperr.Internal(err), h.screen(r))
		return
	}

	entries := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, historyEntry{
			ID:         rec.ID,
			SourceName: rec.SourceName,
			SourceKind: rec.SourceKind,
			Analysis: analysisResponse{
				SimplifiedSummary:   renderMarkdown(rec.Result.SimplifiedSummary),
				StructuredBreakdown: renderMarkdown(rec.Result.StructuredBreakdown),
				CriticalQuestions:   renderMarkdown(rec.Result.CriticalQuestions),
			},
			CreatedAt: rec.CreatedAt,
		})
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"screen":  h.screen(r),
		"history": entries,
	})
}
