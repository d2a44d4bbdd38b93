package api

import (
	"net/http"
	"strings"

	"github.com/starford/notely/internal/identity"
	"github.com/starford/notely/internal/tagservice"
)

// TagHandler serves the tag routes.
type TagHandler struct {
	svc *tagservice.Service
}

// NewTagHandler creates a new TagHandler.
func NewTagHandler(svc *tagservice.Service) *TagHandler {
	return &TagHandler{svc: svc}
}

// ListTags handles GET /api/tags.
//
//	@Summary		List the distinct tags of the caller's notes
//	@Tags			tags
//	@Produce		json
//	@Success		200	{array}	string
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *TagHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.All(r.Context(), identity.OwnerFrom(r.Context()))
	if err != nil {
		writeError(w, "list tags", err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// GenerateTags handles POST /api/tags/generate.
//
//	@Summary		Suggest up to two tags for a piece of content
//	@Tags			tags
//	@Accept			json
//	@Produce		json
//	@Param			body	body	GenerateTagsRequest	true	"Content to tag"
//	@Success		200		{array}	string
//	@Failure		400		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags/generate [post]
func (h *TagHandler) GenerateTags(w http.ResponseWriter, r *http.Request) {
	var req GenerateTagsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	tags, err := h.svc.Generate(r.Context(), req.Content)
	if err != nil {
		writeError(w, "generate tags", err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}
