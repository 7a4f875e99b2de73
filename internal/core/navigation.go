package core

import (
	"errors"

	"resumeai.app/resume-ai/internal/auth"
	"resumeai.app/resume-ai/internal/session"
)

var ErrInvalidTarget = errors.New("invalid navigation target")

// navigable are the screens a user can open directly.
var navigable = map[session.Screen]bool{
	session.ScreenHome:         true,
	session.ScreenSourceSelect: true,
	session.ScreenMultiDocChat: true,
	session.ScreenNotes:        true,
	session.ScreenHistory:      true,
}

// ResolveScreen picks the screen to show from the gate outcome and the session alone.
func ResolveScreen(d auth.Decision, sess *session.Session) session.Screen {
	switch d.Status {
	case auth.StatusNoProfile:
		return session.ScreenProfileError
	case auth.StatusExpired:
		return session.ScreenExpired
	case auth.StatusActive:
	default:
		return session.ScreenLoggedOut
	}
	if sess == nil {
		return session.ScreenLoggedOut
	}

	switch sess.Page {
	case session.ScreenResults:
		if !sess.HasExtractedText() {
			return session.ScreenSourceSelect
		}
		return session.ScreenResults
	case session.ScreenSourceSelect, session.ScreenMultiDocChat, session.ScreenNotes, session.ScreenHistory, session.ScreenHome:
		return sess.Page
	default:
		return session.ScreenHome
	}
}

// Navigate moves the session to one of the directly reachable screens.
func Navigate(sess *session.Session, target session.Screen) error {
	if !navigable[target] {
		return ErrInvalidTarget
	}
	sess.Page = target
	return nil
}

// ContentExtracted stores a new single-source text and opens the results screen.
func ContentExtracted(sess *session.Session, text, sourceName, sourceKind, videoURL string) {
	sess.SetExtracted(text, sourceName, sourceKind, videoURL)
	sess.Page = session.ScreenResults
}

// AnalyzeAnother clears the current source and everything derived from it.
func AnalyzeAnother(sess *session.Session) {
	sess.ResetAnalysis()
	sess.Page = session.ScreenSourceSelect
}
