package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"resumeai.app/resume-ai/internal/apperr"
	"resumeai.app/resume-ai/internal/auth"
	"resumeai.app/resume-ai/internal/cache"
	"resumeai.app/resume-ai/internal/session"
	"resumeai.app/resume-ai/internal/store"
)

type conversedCall struct {
	system  string
	history []store.ChatTurn
	message string
}

type fakeGenerator struct {
	mu        sync.Mutex
	prompts   []string
	calls     []conversedCall
	generated atomic.Int32
	failOn    int // 1-based Generate call that fails; 0 never
	err       error
	delay     time.Duration
	reply     func(message string) string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	n := int(f.generated.Add(1))
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.failOn != 0 && n == f.failOn {
		return "", f.err
	}
	return fmt.Sprintf("answer %d", n), nil
}

func (f *fakeGenerator) Converse(ctx context.Context, system string, history []store.ChatTurn, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, conversedCall{system: system, history: history, message: message})
	if f.err != nil {
		return "", f.err
	}
	if f.reply != nil {
		return f.reply(message), nil
	}
	return "reply to " + message, nil
}

const longText = "Go is an open source programming language that makes it simple to build secure, scalable systems."

func newAnalysisService(gen Generator) *AnalysisService {
	return NewAnalysisService(gen, cache.NewMemory(), time.Minute, DefaultMinTextLength, zap.NewNop())
}

func TestAnalyze_FixedOrderAndCaching(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{}
	svc := newAnalysisService(gen)

	res, err := svc.Analyze(ctx, longText, "key-1")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.SimplifiedSummary != "answer 1" || res.StructuredBreakdown != "answer 2" || res.CriticalQuestions != "answer 3" {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(gen.prompts[0], "ELI5") || !strings.Contains(gen.prompts[1], "A Ideia Principal") || !strings.Contains(gen.prompts[2], "3 perguntas") {
		t.Errorf("prompts out of order: %q", gen.prompts)
	}
	for _, p := range gen.prompts {
		if !strings.HasSuffix(p, longText) {
			t.Errorf("prompt does not embed the text: %q", p)
		}
	}

	again, err := svc.Analyze(ctx, longText, "key-1")
	if err != nil || *again != *res {
		t.Fatalf("second Analyze = %+v, %v", again, err)
	}
	if got := gen.generated.Load(); got != 3 {
		t.Errorf("backend called %d times, want 3", got)
	}

	if _, err := svc.Analyze(ctx, longText, "key-2"); err != nil {
		t.Fatal(err)
	}
	if got := gen.generated.Load(); got != 6 {
		t.Errorf("new analysis key must recompute, backend called %d times", got)
	}
}

func TestAnalyze_TooShortNeverCallsBackend(t *testing.T) {
	gen := &fakeGenerator{}
	svc := newAnalysisService(gen)

	for _, text := range []string{"", "short", strings.Repeat("é", DefaultMinTextLength-1), "   " + strings.Repeat("a", 10) + "   "} {
		if _, err := svc.Analyze(context.Background(), text, "k"); !errors.Is(err, ErrTextTooShort) {
			t.Errorf("Analyze(%q) error = %v, want ErrTextTooShort", text, err)
		}
	}
	if gen.generated.Load() != 0 {
		t.Errorf("backend called %d times for short text", gen.generated.Load())
	}
	if svc.TooShort(strings.Repeat("é", DefaultMinTextLength)) {
		t.Error("text at the threshold counted as too short")
	}
	// Surrounding whitespace counts toward the threshold.
	if svc.TooShort("\n\n" + strings.Repeat("a", DefaultMinTextLength-4) + "\n\n") {
		t.Error("padded text at the threshold counted as too short")
	}
}

func TestAnalyze_FailureIsNotCached(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("boom")
	gen := &fakeGenerator{failOn: 2, err: cause}
	svc := newAnalysisService(gen)

	res, err := svc.Analyze(ctx, longText, "k")
	if !errors.Is(err, cause) || res != nil {
		t.Fatalf("Analyze = %+v, %v; want consolidated failure", res, err)
	}
	if gen.generated.Load() != 2 {
		t.Errorf("generation continued after a failure: %d calls", gen.generated.Load())
	}

	gen.failOn = 0
	res, err = svc.Analyze(ctx, longText, "k")
	if err != nil || res == nil {
		t.Fatalf("retry after failure = %+v, %v", res, err)
	}
	if gen.generated.Load() != 5 {
		t.Errorf("failed result was cached: %d calls", gen.generated.Load())
	}
}

func TestAnalyze_ConcurrentRequestsShareWork(t *testing.T) {
	gen := &fakeGenerator{delay: 20 * time.Millisecond}
	svc := newAnalysisService(gen)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Analyze(context.Background(), longText, "same"); err != nil {
				t.Errorf("Analyze: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := gen.generated.Load(); got != 3 {
		t.Errorf("backend called %d times, want 3", got)
	}
}

func TestAnalyze_CancelledCallerDoesNotFailSharedWork(t *testing.T) {
	gen := &fakeGenerator{delay: 20 * time.Millisecond}
	svc := newAnalysisService(gen)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.Analyze(leaderCtx, longText, "same")
		leaderErr <- err
	}()
	time.Sleep(5 * time.Millisecond)

	followerErr := make(chan error, 1)
	go func() {
		_, err := svc.Analyze(context.Background(), longText, "same")
		followerErr <- err
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller error = %v, want context.Canceled", err)
	}
	if err := <-followerErr; err != nil {
		t.Fatalf("waiting caller failed with the other caller's cancellation: %v", err)
	}
	if got := gen.generated.Load(); got != 3 {
		t.Errorf("backend called %d times, want 3", got)
	}

	// The detached result was cached for later requests.
	if _, err := svc.Analyze(context.Background(), longText, "same"); err != nil {
		t.Fatal(err)
	}
	if got := gen.generated.Load(); got != 3 {
		t.Errorf("result not cached after cancellation: %d calls", got)
	}
}

func TestAnalyze_CacheExpires(t *testing.T) {
	gen := &fakeGenerator{}
	svc := NewAnalysisService(gen, cache.NewMemory(), 30*time.Millisecond, DefaultMinTextLength, zap.NewNop())

	if _, err := svc.Analyze(context.Background(), longText, "k"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := svc.Analyze(context.Background(), longText, "k"); err != nil {
		t.Fatal(err)
	}
	if got := gen.generated.Load(); got != 6 {
		t.Errorf("expired entry reused: %d calls", got)
	}
}

func TestChatService_TranscriptReplay(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{}
	chat := NewChatService(gen)

	d := chat.Start(SingleDocInstruction("the text"))
	if !strings.Contains(d.SystemInstruction, "the text") || len(d.Turns) != 0 {
		t.Fatalf("Start = %+v", d)
	}

	for _, msg := range []string{"q1", "q2", "q3"} {
		if _, err := chat.Send(ctx, d, msg); err != nil {
			t.Fatalf("Send(%s): %v", msg, err)
		}
	}

	if len(d.Turns) != 6 {
		t.Fatalf("len(Turns) = %d, want 6", len(d.Turns))
	}
	for i, turn := range d.Turns {
		wantRole := store.RoleUser
		if i%2 == 1 {
			wantRole = store.RoleAssistant
		}
		if turn.Role != wantRole {
			t.Errorf("turn %d role = %s, want %s", i, turn.Role, wantRole)
		}
	}

	// The Nth message sees exactly the system instruction and the 2(N-1) earlier turns.
	for n, call := range gen.calls {
		if call.system != d.SystemInstruction {
			t.Errorf("call %d system instruction changed", n)
		}
		if len(call.history) != 2*n {
			t.Errorf("call %d saw %d turns, want %d", n, len(call.history), 2*n)
		}
		for i := range call.history {
			if call.history[i] != d.Turns[i] {
				t.Errorf("call %d history[%d] = %+v, want %+v", n, i, call.history[i], d.Turns[i])
			}
		}
	}
}

func TestChatService_FailureAppendsNothing(t *testing.T) {
	gen := &fakeGenerator{}
	chat := NewChatService(gen)
	d := chat.Start(MultiDocInstruction("combined"))

	if _, err := chat.Send(context.Background(), d, "first"); err != nil {
		t.Fatal(err)
	}
	gen.err = errors.New("unreachable")
	if _, err := chat.Send(context.Background(), d, "second"); err == nil {
		t.Fatal("expected error")
	}
	if len(d.Turns) != 2 || d.Turns[1].Role != store.RoleAssistant {
		t.Errorf("turns after failure = %+v", d.Turns)
	}

	if _, err := chat.Send(context.Background(), nil, "x"); !errors.Is(err, ErrDialogueNotStarted) {
		t.Errorf("nil dialogue error = %v", err)
	}
	if _, err := chat.Send(context.Background(), d, "  "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("empty message error = %v", err)
	}
}

func TestResolveScreen(t *testing.T) {
	active := auth.Decision{Status: auth.StatusActive}
	withText := &session.Session{Page: session.ScreenResults, ExtractedText: "text"}

	tests := []struct {
		name     string
		decision auth.Decision
		sess     *session.Session
		want     session.Screen
	}{
		{"unauthenticated", auth.Decision{Status: auth.StatusUnauthenticated}, withText, session.ScreenLoggedOut},
		{"no profile", auth.Decision{Status: auth.StatusNoProfile}, withText, session.ScreenProfileError},
		{"expired", auth.Decision{Status: auth.StatusExpired}, withText, session.ScreenExpired},
		{"active without session", active, nil, session.ScreenLoggedOut},
		{"results with text", active, withText, session.ScreenResults},
		{"results without text", active, &session.Session{Page: session.ScreenResults}, session.ScreenSourceSelect},
		{"notes", active, &session.Session{Page: session.ScreenNotes}, session.ScreenNotes},
		{"unknown page", active, &session.Session{Page: "bogus"}, session.ScreenHome},
		{"gate page stored", active, &session.Session{Page: session.ScreenExpired}, session.ScreenHome},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveScreen(tt.decision, tt.sess); got != tt.want {
				t.Errorf("ResolveScreen = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNavigationTransitions(t *testing.T) {
	sess := session.New("u1")

	if err := Navigate(sess, session.ScreenResults); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("navigating to results directly = %v", err)
	}
	if err := Navigate(sess, session.ScreenNotes); err != nil || sess.Page != session.ScreenNotes {
		t.Errorf("Navigate(notes) = %v, page %s", err, sess.Page)
	}

	ContentExtracted(sess, longText, "a.pdf", "document", "")
	if sess.Page != session.ScreenResults || sess.ExtractedText != longText {
		t.Fatalf("after extraction: %+v", sess)
	}
	sess.Analysis = &store.AnalysisResult{SimplifiedSummary: "s"}
	sess.Chat = &session.Dialogue{}
	oldKey := sess.AnalysisKey

	AnalyzeAnother(sess)
	if sess.Page != session.ScreenSourceSelect || sess.HasExtractedText() || sess.Analysis != nil || sess.Chat != nil {
		t.Errorf("AnalyzeAnother left state behind: %+v", sess)
	}
	if sess.AnalysisKey == oldKey {
		t.Error("analysis key not rotated")
	}
}

type memNotes struct {
	notes   []store.Note
	records []store.AnalysisRecord
	err     error
}

func (m *memNotes) CreateNote(_ context.Context, n *store.Note) error {
	if m.err != nil {
		return m.err
	}
	n.ID = fmt.Sprintf("n%d", len(m.notes)+1)
	m.notes = append([]store.Note{*n}, m.notes...)
	return nil
}

func (m *memNotes) ListNotes(_ context.Context, owner string) ([]store.Note, error) {
	out := []store.Note{}
	for _, n := range m.notes {
		if n.Owner == owner {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNotes) DeleteNote(_ context.Context, id, owner string) error {
	for i, n := range m.notes {
		if n.ID == id && n.Owner == owner {
			m.notes = append(m.notes[:i], m.notes[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memNotes) CreateAnalysisRecord(_ context.Context, rec *store.AnalysisRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, *rec)
	return nil
}

func (m *memNotes) ListAnalysisRecords(_ context.Context, owner string, limit int) ([]store.AnalysisRecord, error) {
	return m.records, nil
}

func TestNoteService(t *testing.T) {
	ctx := context.Background()
	svc := NewNoteService(&memNotes{})

	if _, err := svc.Create(ctx, "u1", " ", "body"); !errors.Is(err, ErrInvalidNote) {
		t.Errorf("blank title error = %v", err)
	}
	if _, err := svc.Create(ctx, "u1", "title", ""); !errors.Is(err, ErrInvalidNote) {
		t.Errorf("blank content error = %v", err)
	}

	note, err := svc.Create(ctx, "u1", "  Ideas ", "body")
	if err != nil || note.ID == "" || note.Title != "Ideas" {
		t.Fatalf("Create = %+v, %v", note, err)
	}
	if err := svc.Delete(ctx, note.ID, "u2"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("foreign delete = %v", err)
	}
	if err := svc.Delete(ctx, note.ID, "u1"); err != nil {
		t.Errorf("Delete = %v", err)
	}
	notes, _ := svc.List(ctx, "u1")
	if len(notes) != 0 {
		t.Errorf("notes after delete = %+v", notes)
	}
}

func TestHistoryService_RecordFailureIsSwallowed(t *testing.T) {
	backing := &memNotes{err: errors.New("disk full")}
	svc := NewHistoryService(backing, zap.NewNop())
	svc.Record(context.Background(), "u1", "a.pdf", "document", store.AnalysisResult{})
	if len(backing.records) != 0 {
		t.Error("record stored despite error")
	}

	backing.err = nil
	svc.Record(context.Background(), "u1", "a.pdf", "document", store.AnalysisResult{SimplifiedSummary: "s"})
	records, _ := svc.List(context.Background(), "u1")
	if len(records) != 1 || records[0].SourceName != "a.pdf" {
		t.Errorf("records = %+v", records)
	}
}

func TestClassifyGenerationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want GenerationErrorKind
	}{
		{"googleapi 429", fmt.Errorf("wrapped: %w", &googleapi.Error{Code: 429}), GenerationQuotaExceeded},
		{"googleapi 503", &googleapi.Error{Code: 503}, GenerationTransport},
		{"googleapi 400", &googleapi.Error{Code: 400}, GenerationOther},
		{"grpc exhausted", status.Error(codes.ResourceExhausted, "quota"), GenerationQuotaExceeded},
		{"grpc unavailable", status.Error(codes.Unavailable, "down"), GenerationTransport},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), GenerationTransport},
		{"quota text", errors.New("429 You exceeded your current quota"), GenerationQuotaExceeded},
		{"other", errors.New("safety block"), GenerationOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyGenerationError(tt.err); got != tt.want {
				t.Errorf("ClassifyGenerationError = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerationAppError(t *testing.T) {
	if got := GenerationAppError(&googleapi.Error{Code: 429}); got.Code != apperr.CodeGenerationQuota {
		t.Errorf("quota code = %s", got.Code)
	}
	if got := GenerationAppError(status.Error(codes.Unavailable, "x")); got.Code != apperr.CodeGenerationTransport {
		t.Errorf("transport code = %s", got.Code)
	}
	if got := GenerationAppError(ErrEmptyResponse); got.Code != apperr.CodeGenerationFailed {
		t.Errorf("other code = %s", got.Code)
	}
}
