package controller

import (
	"net/http"

	"github.com/unclebandit/postplanner-backend/internal/model"
	"github.com/unclebandit/postplanner-backend/internal/service"
)

type ContentController struct {
	ContentService *service.ContentService
}

func (c *ContentController) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AccountID  int            `json:"account_id"`
		Caption    string         `json:"caption"`
		HashTags   []string       `json:"hash_tags"`
		Type       model.PostType `json:"type"`
		UsedTopics []string       `json:"used_topics"`
		Tone       string         `json:"tone"`
		MediaRefs  []string       `json:"media_refs"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	content, err := c.ContentService.Create(r.Context(), &model.Content{
		AccountID:  body.AccountID,
		Caption:    body.Caption,
		HashTags:   body.HashTags,
		Type:       body.Type,
		UsedTopics: body.UsedTopics,
		Tone:       body.Tone,
		MediaRefs:  body.MediaRefs,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, content)
}

func (c *ContentController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	content, err := c.ContentService.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

func (c *ContentController) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	content, cancelled, err := c.ContentService.Reject(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"content": content, "cancelled_assignments": cancelled})
}

func (c *ContentController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	cancelled, err := c.ContentService.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id, "cancelled_assignments": cancelled})
}
