package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/moodring/backend/internal/models"
)

// TagStore is the tag persistence used by [TagHandler].
type TagStore interface {
	List(ctx context.Context, userID int64) ([]models.Tag, error)
	Create(ctx context.Context, userID int64, name string, color *string) (*models.Tag, error)
	Delete(ctx context.Context, userID, tagID int64) error
}

// SongTagStore is the association persistence used by [TagHandler] and [TrackHandler].
type SongTagStore interface {
	ListForTrack(ctx context.Context, userID int64, trackID string) ([]models.Tag, error)
	Create(ctx context.Context, userID int64, trackID string, tagID int64) (*models.SongTag, error)
	Delete(ctx context.Context, userID int64, trackID string, tagID int64) error
	ListTracksForTag(ctx context.Context, userID, tagID int64) ([]string, error)
}

// CreateTagRequest is the body of POST /tags.
type CreateTagRequest struct {
	Name  string  `json:"name" validate:"required,max=256"`
	Color *string `json:"color"`
}

// TagTracksResponse lists the tracks carrying a tag.
type TagTracksResponse struct {
	TagID    int64    `json:"tag_id"`
	TrackIDs []string `json:"song_ids"`
}

// TagHandler serves the caller's tags.
type TagHandler struct {
	tags     TagStore
	songTags SongTagStore
}

// NewTagHandler creates a [TagHandler].
func NewTagHandler(tags TagStore, songTags SongTagStore) *TagHandler {
	return &TagHandler{tags: tags, songTags: songTags}
}

// Mount implements [Handler].
func (h *TagHandler) Mount(_, private chi.Router) {
	private.Route("/tags", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Delete("/{tagID}", h.delete)
		r.Get("/{tagID}/tracks", h.tracks)
	})
}

func (h *TagHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	tags, err := h.tags.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *TagHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req CreateTagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	tag, err := h.tags.Create(r.Context(), userID, req.Name, req.Color)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (h *TagHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	tagID, err := idParam(r, "tagID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.tags.Delete(r.Context(), userID, tagID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TagHandler) tracks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	tagID, err := idParam(r, "tagID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	ids, err := h.songTags.ListTracksForTag(r.Context(), userID, tagID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, TagTracksResponse{TagID: tagID, TrackIDs: ids})
}
