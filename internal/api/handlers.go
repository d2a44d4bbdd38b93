package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notely/internal/identity"
	"github.com/starford/notely/internal/models"
	"github.com/starford/notely/internal/noteservice"
)

// Handler holds the note route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// parseFilter reads page, limit, search and tags from the query string.
// Present page and limit values must be positive integers.
func parseFilter(r *http.Request) (models.NoteFilter, string) {
	q := r.URL.Query()
	var f models.NoteFilter
	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &f.Page}, {"limit", &f.Limit}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return f, p.name + " must be a positive integer"
		}
		*p.dst = n
	}
	f.Search = q.Get("search")
	f.Tags = parseTags(q["tags"])
	return f, ""
}

// parseTags accepts repeated tags parameters, a JSON array or a comma
// separated list, in any combination.
func parseTags(values []string) []string {
	var tags []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		var parts []string
		if strings.HasPrefix(v, "[") {
			if err := json.Unmarshal([]byte(v), &parts); err != nil {
				parts = strings.Split(strings.Trim(v, "[]"), ",")
			}
		} else {
			parts = strings.Split(v, ",")
		}
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				tags = append(tags, p)
			}
		}
	}
	return tags
}

func etag(n *models.Note) string {
	return `"` + noteservice.ETag(n) + `"`
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes with pagination, search and tag filtering
//	@Tags			notes
//	@Produce		json
//	@Param			page	query		int		false	"Page number (default 1)"
//	@Param			limit	query		int		false	"Page size (default 10)"
//	@Param			search	query		string	false	"Case-insensitive title or content match"
//	@Param			tags	query		[]string	false	"Notes carrying any of these tags"
//	@Success		200		{object}	NoteListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	f, msg := parseFilter(r)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, errorBody(msg))
		return
	}
	list, err := h.svc.List(r.Context(), identity.OwnerFrom(r.Context()), f)
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note by id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.Get(r.Context(), identity.OwnerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	w.Header().Set("ETag", etag(note))
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	note, err := h.svc.Create(r.Context(), identity.OwnerFrom(r.Context()), req)
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	w.Header().Set("ETag", etag(note))
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PATCH /api/notes/{id}.
//
//	@Summary		Partially update a note with optional optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Note id"
//	@Param			If-Match	header		string				false	"ETag of the version being edited"
//	@Param			body		body		UpdateNoteRequest	true	"Fields to change"
//	@Success		200			{object}	models.Note
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		412			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [patch]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req UpdateNoteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)
	if ifMatch == "*" {
		ifMatch = ""
	}

	note, err := h.svc.Update(r.Context(), identity.OwnerFrom(r.Context()), chi.URLParam(r, "id"), req, ifMatch)
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	w.Header().Set("ETag", etag(note))
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.Note	"The deleted note"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.Delete(r.Context(), identity.OwnerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "delete note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}
