package core

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"resumeai.app/resume-ai/internal/apperr"
)

// GenerationErrorKind classifies backend failures for the user-facing message.
type GenerationErrorKind int

const (
	GenerationOther GenerationErrorKind = iota
	GenerationQuotaExceeded
	GenerationTransport
)

func ClassifyGenerationError(err error) GenerationErrorKind {
	if err == nil {
		return GenerationOther
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusTooManyRequests:
			return GenerationQuotaExceeded
		case gerr.Code >= 500:
			return GenerationTransport
		}
		return GenerationOther
	}

	// The API client's errors expose a gRPC status even over REST.
	var grpcErr interface{ GRPCStatus() *status.Status }
	if errors.As(err, &grpcErr) {
		switch grpcErr.GRPCStatus().Code() {
		case codes.ResourceExhausted:
			return GenerationQuotaExceeded
		case codes.Unavailable, codes.DeadlineExceeded:
			return GenerationTransport
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return GenerationTransport
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return GenerationTransport
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota"), strings.Contains(msg, "resource_exhausted"), strings.Contains(msg, "resource has been exhausted"):
		return GenerationQuotaExceeded
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"), strings.Contains(msg, "unavailable"):
		return GenerationTransport
	}
	return GenerationOther
}

// GenerationAppError converts a backend failure into the error shown to the user.
func GenerationAppError(err error) *apperr.Error {
	switch ClassifyGenerationError(err) {
	case GenerationQuotaExceeded:
		return apperr.GenerationQuota(err)
	case GenerationTransport:
		return apperr.GenerationTransport(err)
	default:
		return apperr.GenerationFailed(err)
	}
}
