package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"resumeai.app/resume-ai/internal/cache"
	"resumeai.app/resume-ai/internal/store"
)

const (
	DefaultMinTextLength    = 50
	DefaultAnalysisCacheTTL = 30 * time.Second

	analysisKeyPrefix = "analysis:"

	// Upper bound for the three generation calls of one analysis.
	analysisTimeout = 5 * time.Minute
)

// ErrTextTooShort is returned before any backend call when the text cannot support a
// meaningful analysis.
var ErrTextTooShort = errors.New("text too short for analysis")

func summaryPrompt(text string) string {
	return "Explique o conteúdo principal do seguinte texto como se eu tivesse 10 anos de idade (ELI5):\n\n" + text
}

func breakdownPrompt(text string) string {
	return "Analise o seguinte texto e extraia em tópicos:\n" +
		"- A Ideia Principal\n" +
		"- Os Argumentos ou Passos Apresentados\n" +
		"- A Conclusão Principal\n\n" +
		"Texto:\n" + text
}

func questionsPrompt(text string) string {
	return "Baseado no texto a seguir, gere 3 perguntas inteligentes e críticas:\n\nTexto:\n" + text
}

// AnalysisService produces the three fixed analyses of a text. Results are cached per
// (analysis key, text) and concurrent identical requests share one computation.
type AnalysisService struct {
	gen       Generator
	cache     cache.Store
	ttl       time.Duration
	minLength int
	group     singleflight.Group
	logger    *zap.Logger
}

func NewAnalysisService(gen Generator, c cache.Store, ttl time.Duration, minLength int, logger *zap.Logger) *AnalysisService {
	if ttl <= 0 {
		ttl = DefaultAnalysisCacheTTL
	}
	return &AnalysisService{
		gen:       gen,
		cache:     c,
		ttl:       ttl,
		minLength: minLength,
		logger:    logger,
	}
}

// TooShort reports whether text is below the analysis threshold, counted in runes.
func (s *AnalysisService) TooShort(text string) bool {
	return utf8.RuneCountInString(text) < s.minLength
}

// Analyze returns the triple for text. Either all three parts succeed or an error is
// returned and nothing is cached.
func (s *AnalysisService) Analyze(ctx context.Context, text, analysisKey string) (*store.AnalysisResult, error) {
	if s.TooShort(text) {
		return nil, ErrTextTooShort
	}

	key := analysisCacheKey(analysisKey, text)
	if res, ok := s.cached(ctx, key); ok {
		return res, nil
	}

	// The shared generation is detached from any single caller, so one client going away
	// does not fail the others waiting on it; each caller still stops waiting on its own ctx.
	ch := s.group.DoChan(key, func() (interface{}, error) {
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), analysisTimeout)
		defer cancel()
		if res, ok := s.cached(genCtx, key); ok {
			return res, nil
		}
		res, err := s.generate(genCtx, text)
		if err != nil {
			return nil, err
		}
		s.store(genCtx, key, res)
		return res, nil
	})

	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Shared {
		s.logger.Debug("analysis shared with concurrent request", zap.String("analysis_key", analysisKey))
	}

	res := *r.Val.(*store.AnalysisResult)
	return &res, nil
}

func (s *AnalysisService) generate(ctx context.Context, text string) (*store.AnalysisResult, error) {
	start := time.Now()

	summary, err := s.gen.Generate(ctx, summaryPrompt(text))
	if err != nil {
		return nil, fmt.Errorf("simplified summary: %w", err)
	}
	breakdown, err := s.gen.Generate(ctx, breakdownPrompt(text))
	if err != nil {
		return nil, fmt.Errorf("structured breakdown: %w", err)
	}
	questions, err := s.gen.Generate(ctx, questionsPrompt(text))
	if err != nil {
		return nil, fmt.Errorf("critical questions: %w", err)
	}

	s.logger.Info("analysis generated",
		zap.Int("text_runes", utf8.RuneCountInString(text)),
		zap.Duration("duration", time.Since(start)))

	return &store.AnalysisResult{
		SimplifiedSummary:   summary,
		StructuredBreakdown: breakdown,
		CriticalQuestions:   questions,
	}, nil
}

func (s *AnalysisService) cached(ctx context.Context, key string) (*store.AnalysisResult, bool) {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("analysis cache read failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var res store.AnalysisResult
	if err := json.Unmarshal(raw, &res); err != nil {
		s.logger.Warn("discarding undecodable cached analysis", zap.Error(err))
		return nil, false
	}
	return &res, true
}

func (s *AnalysisService) store(ctx context.Context, key string, res *store.AnalysisResult) {
	raw, err := json.Marshal(res)
	if err != nil {
		s.logger.Warn("failed to encode analysis for cache", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.Warn("analysis cache write failed", zap.Error(err))
	}
}

func analysisCacheKey(analysisKey, text string) string {
	h := sha256.New()
	h.Write([]byte(analysisKey))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return analysisKeyPrefix + hex.EncodeToString(h.Sum(nil))
}
