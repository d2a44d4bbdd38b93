package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notely/internal/identity"
	"github.com/starford/notely/internal/noteservice"
	"github.com/starford/notely/internal/tagservice"
)

// NewRouter creates a chi router with all API routes mounted.
// Every route except the sign-in endpoint runs behind AuthMiddleware(verifier).
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(notes *noteservice.Service, tags *tagservice.Service, sender identity.MagicLinkSender, verifier identity.Verifier, sseHandler http.Handler) chi.Router {
	h := NewHandler(notes)
	th := NewTagHandler(tags)
	ah := NewAuthHandler(sender)

	r := chi.NewRouter()

	r.Post("/auth/send-token", ah.SendToken)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(verifier))

		// Notes CRUD.
		r.Get("/notes", h.ListNotes)
		r.Post("/notes", h.CreateNote)
		r.Get("/notes/{id}", h.GetNote)
		r.Patch("/notes/{id}", h.UpdateNote)
		r.Delete("/notes/{id}", h.DeleteNote)

		// Tags.
		r.Get("/tags", th.ListTags)
		r.Post("/tags/generate", th.GenerateTags)

		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}
