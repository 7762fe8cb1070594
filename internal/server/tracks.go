package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/moodring/backend/internal/models"
)

// AddTagRequest is the body of POST /tracks/{trackID}/tags.
type AddTagRequest struct {
	TagID int64 `json:"tag_id" validate:"required,gt=0"`
}

// TrackHandler serves the tags attached to a track.
type TrackHandler struct {
	songTags SongTagStore
}

// NewTrackHandler creates a [TrackHandler].
func NewTrackHandler(songTags SongTagStore) *TrackHandler {
	return &TrackHandler{songTags: songTags}
}

// Mount implements [Handler].
func (h *TrackHandler) Mount(_, private chi.Router) {
	private.Route("/tracks/{trackID}/tags", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.add)
		r.Delete("/{tagID}", h.remove)
	})
}

func (h *TrackHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	trackID, err := trackParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	tags, err := h.songTags.ListForTrack(r.Context(), userID, trackID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *TrackHandler) add(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	trackID, err := trackParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req AddTagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	st, err := h.songTags.Create(r.Context(), userID, trackID, req.TagID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (h *TrackHandler) remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	trackID, err := trackParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tagID, err := idParam(r, "tagID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.songTags.Delete(r.Context(), userID, trackID, tagID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
