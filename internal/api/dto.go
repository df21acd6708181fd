package api

import (
	"github.com/LogicUI/zustand-in-depth/internal/core"
)

type IncrementByRequest struct {
	// pointer so an explicit zero passes the required check
	N *int64 `json:"n" binding:"required"`
}

type CommentResponse struct {
	PostID int    `json:"postId"`
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Body   string `json:"body"`
}

// StateResponse is the full snapshot, served once the gate is open.
type StateResponse struct {
	Ready    bool               `json:"ready"`
	Hydrated bool               `json:"hydrated"`
	Count    int64              `json:"count"`
	Comments []*CommentResponse `json:"comments"`
	Loading  bool               `json:"loading"`
	Error    string             `json:"error,omitempty"`
}

// FallbackStateResponse is what renders before the gate opens: no
// persisted fields, so the first paint cannot disagree with a later one.
type FallbackStateResponse struct {
	Ready    bool `json:"ready"`
	Hydrated bool `json:"hydrated"`
}

type HealthResponse struct {
	Status               string `json:"status"`
	PersistWriteFailures int64  `json:"persist_write_failures"`
}

func NewStateResponse(s core.State) *StateResponse {
	resp := &StateResponse{
		Ready:    true,
		Hydrated: s.IsHydrated,
		Count:    s.Count,
		Loading:  s.Loading,
		Error:    s.Error,
		Comments: make([]*CommentResponse, 0, len(s.Comments)),
	}
	for _, cm := range s.Comments {
		resp.Comments = append(resp.Comments, &CommentResponse{
			PostID: cm.PostID,
			ID:     cm.ID,
			Name:   cm.Name,
			Email:  cm.Email,
			Body:   cm.Body,
		})
	}
	return resp
}

func NewFallbackStateResponse(hydrated bool) *FallbackStateResponse {
	return &FallbackStateResponse{Ready: false, Hydrated: hydrated}
}
