package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
	"github.com/MrSnakeDoc/tabkeeper/internal/engine"
	"github.com/MrSnakeDoc/tabkeeper/internal/httpserver/deps"
)

type createGroupRequest struct {
	Name   string `json:"name"`
	Color  string `json:"color"`
	Parent string `json:"parent"`
}

type groupResponse struct {
	ID   domain.GroupID `json:"id"`
	Path string         `json:"path"`
}

type togglePathRequest struct {
	Path string `json:"path"`
}

type keepActiveRequest struct {
	Path       string `json:"path"`
	KeepActive bool   `json:"keep_active"`
}

type layoutResponse struct {
	Layout []domain.TabID `json:"layout"`
	Focus  domain.TabID   `json:"focus"`
}

func CreateGroup(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createGroupRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		var id domain.GroupID
		err := d.Loop.Do(r.Context(), func(_ context.Context, e *engine.Engine) error {
			var err error
			id, err = e.CreateGroup(req.Name, req.Color, req.Parent)
			return err
		})
		if err != nil {
			writeError(w, err)
			return
		}

		path := strings.TrimSpace(req.Name)
		if parent := strings.Trim(req.Parent, "/ "); parent != "" {
			path = parent + "/" + path
		}
		writeJSON(w, http.StatusCreated, groupResponse{ID: id, Path: path})
	}
}

// DeleteGroup removes the group at ?path= and its subgroups. Members stay open.
func DeleteGroup(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		if path == "" {
			writeError(w, errors.Join(domain.ErrInvalidArgument, errors.New("missing path")))
			return
		}
		err := d.Loop.Do(r.Context(), func(_ context.Context, e *engine.Engine) error {
			return e.DeleteGroup(path)
		})
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ToggleGroup expands or collapses a group and answers with the new layout.
func ToggleGroup(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req togglePathRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		var resp layoutResponse
		err := d.Loop.Do(r.Context(), func(ctx context.Context, e *engine.Engine) error {
			if err := e.ToggleGroup(ctx, req.Path); err != nil {
				return err
			}
			resp = layoutResponse{Layout: e.VisibleLayout(), Focus: e.Focus()}
			return nil
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func SetKeepActive(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req keepActiveRequest
		if err := decode(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		err := d.Loop.Do(r.Context(), func(_ context.Context, e *engine.Engine) error {
			return e.SetKeepActive(req.Path, req.KeepActive)
		})
		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
