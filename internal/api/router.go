package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(apiHandler *APIHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(Recoverer(logger))
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/signup", apiHandler.SignupHandler)
		r.Post("/login", apiHandler.LoginHandler)
		r.Get("/health", apiHandler.HealthHandler)

		// Live session required; reachable from the profile_error and expired screens too.
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.Authenticate)

			r.Post("/logout", apiHandler.LogoutHandler)
			r.Get("/screen", apiHandler.ScreenHandler)

			// Active subscription required
			r.Group(func(r chi.Router) {
				r.Use(apiHandler.RequireActive)

				r.Post("/navigate", apiHandler.NavigateHandler)

				r.Post("/sources/document", apiHandler.DocumentSourceHandler)
				r.Post("/sources/article", apiHandler.ArticleSourceHandler)
				r.Post("/sources/video", apiHandler.VideoSourceHandler)

				r.Get("/results", apiHandler.ResultsHandler)
				r.Post("/results/messages", apiHandler.ResultsMessageHandler)
				r.Post("/results/reset", apiHandler.ResetHandler)

				r.Get("/multidoc", apiHandler.MultiDocStateHandler)
				r.Post("/multidoc", apiHandler.MultiDocUploadHandler)
				r.Post("/multidoc/messages", apiHandler.MultiDocMessageHandler)

				r.Get("/notes", apiHandler.ListNotesHandler)
				r.Post("/notes", apiHandler.CreateNoteHandler)
				r.Delete("/notes/{noteID}", apiHandler.DeleteNoteHandler)

				r.Get("/history", apiHandler.HistoryHandler)
			})
		})
	})

	return r
}
