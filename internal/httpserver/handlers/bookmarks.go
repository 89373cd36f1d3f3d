package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marks/internal/auth"
	"github.com/MrSnakeDoc/marks/internal/dashboard"
	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/mutation"
	"github.com/MrSnakeDoc/marks/internal/pagination"
	"github.com/MrSnakeDoc/marks/internal/sources/homepage"
)

const maxImportBody = 1 << 20

// ListBookmarks serves one page of the signed-in user's bookmarks.
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFrom(r.Context())
		q := domain.Query{
			OwnerID:  user.ID,
			Search:   r.URL.Query().Get("search"),
			Page:     queryInt(r, "page", 1),
			PageSize: queryInt(r, "limit", d.DefaultPageSize),
		}.Normalize()

		w.Header().Set("X-Cache", cacheState(d, q))

		res, err := d.Cache.Read(r.Context(), q)
		if err != nil {
			d.Logger.Warn("bookmark read failed", logger.String("owner", user.ID), logger.Error(err))
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "Error fetching bookmarks", Retryable: true})
			return
		}

		pager := pagination.New(q.PageSize)
		pager.SetTotalCount(res.TotalCount)
		writeJSON(w, http.StatusOK, dashboard.Snapshot{
			Rows:       res.Rows,
			TotalCount: res.TotalCount,
			Page:       q.Page,
			PageSize:   q.PageSize,
			TotalPages: pager.TotalPages(),
			HasNext:    q.Page < pager.TotalPages(),
			HasPrev:    q.Page > 1,
			Search:     q.Search,
		})
	}
}

// cacheState tells whether the read about to happen is served from the cache.
func cacheState(d deps.Deps, q domain.Query) string {
	_, cached, fresh := d.Cache.Peek(q)
	switch {
	case fresh:
		return "hit"
	case cached:
		return "stale"
	default:
		return "miss"
	}
}

func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFrom(r.Context())

		var in domain.Input
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		b, err := d.Mutations.Create(r.Context(), user.ID, in)
		if err != nil {
			writeMutationError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, b)
	}
}

func UpdateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFrom(r.Context())

		var in domain.Input
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := d.Mutations.Update(r.Context(), user.ID, chi.URLParam(r, "id"), in); err != nil {
			writeMutationError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFrom(r.Context())

		if err := d.Mutations.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
			writeMutationError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type importResponse struct {
	Imported int    `json:"imported"`
	Error    string `json:"error,omitempty"`
}

// ImportBookmarks reads a Homepage bookmarks.yaml body and creates every entry.
func ImportBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFrom(r.Context())

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBody))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "bookmarks file too large")
			return
		}

		config, err := homepage.Parse(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		inputs, err := homepage.Inputs(config)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		created, err := d.Mutations.CreateMany(r.Context(), user.ID, inputs)
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Field: verr.Field})
				return
			}
			writeJSON(w, http.StatusBadGateway, importResponse{Imported: len(created), Error: mutation.FailureMessage(mutation.OpImport)})
			return
		}
		writeJSON(w, http.StatusCreated, importResponse{Imported: len(created)})
	}
}

// writeMutationError maps the coordinator's error taxonomy to a status code.
func writeMutationError(w http.ResponseWriter, err error) {
	var (
		verr  *domain.ValidationError
		serr  *domain.StoreError
		nferr *domain.NotFoundError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: verr.Message, Field: verr.Field})
	case errors.As(err, &nferr):
		writeError(w, http.StatusNotFound, "Bookmark not found")
	case errors.Is(err, domain.ErrNoOwner):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.As(err, &serr):
		writeError(w, http.StatusBadGateway, mutation.FailureMessage(serr.Op))
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
