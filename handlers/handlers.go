// Package handlers is the HTTP surface of the engine. Handlers are
// thin: decode the request, call the discovery engine or the store,
// encode the result. All responses are JSON except the poster bytes.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/movierec/movierec/lib/discover"
	"github.com/movierec/movierec/lib/poster"
	"github.com/movierec/movierec/lib/store"
	"github.com/movierec/movierec/lib/validation"
	"github.com/movierec/movierec/models"
)

func writeJSON(w http.ResponseWriter, v interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", slog.Any("error", err))
	}
}

// viewerID reads the optional viewer_id query parameter. Absent or
// malformed means an anonymous request.
func viewerID(r *http.Request) uint {
	id, err := strconv.ParseUint(r.URL.Query().Get("viewer_id"), 10, 32)
	if err != nil {
		return 0
	}
	return uint(id)
}

// HandleSearch serves GET /api/movies/search: the cache-first lookup.
func HandleSearch(e *discover.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")

		movies, err := e.Discover(r.Context(), query, viewerID(r))
		if err != nil {
			if validation.ValidateQuery(query) != nil {
				validation.WriteError(w, err, http.StatusBadRequest)
				return
			}
			slog.Error("Discovery failed", slog.String("query", query), slog.Any("error", err))
			validation.WriteError(w, errors.New("search failed"), http.StatusInternalServerError)
			return
		}

		writeJSON(w, movies, http.StatusOK)
	}
}

// HandleCatalogSearch serves GET /api/movies/catalog-search: candidate
// slugs come from the catalog's own search page.
func HandleCatalogSearch(e *discover.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")

		movies, err := e.SearchCatalog(r.Context(), query, viewerID(r))
		if err != nil {
			if validation.ValidateQuery(query) != nil {
				validation.WriteError(w, err, http.StatusBadRequest)
				return
			}
			slog.Error("Catalog search failed", slog.String("query", query), slog.Any("error", err))
			validation.WriteError(w, errors.New("search failed"), http.StatusInternalServerError)
			return
		}

		writeJSON(w, movies, http.StatusOK)
	}
}

// HandleMovie serves GET /api/movies/{slug}.
func HandleMovie(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		movieSlug := chi.URLParam(r, "slug")

		movie, err := s.BySlug(r.Context(), movieSlug)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				validation.WriteError(w, errors.New("movie not found"), http.StatusNotFound)
				return
			}
			slog.Error("Failed to load movie", slog.String("slug", movieSlug), slog.Any("error", err))
			validation.WriteError(w, errors.New("lookup failed"), http.StatusInternalServerError)
			return
		}

		movies := []models.Movie{*movie}
		if err := s.AttachViewerFlags(r.Context(), movies, viewerID(r)); err != nil {
			slog.Error("Failed to attach viewer flags", slog.Any("error", err))
		}
		writeJSON(w, movies[0], http.StatusOK)
	}
}

// HandlePoster serves GET /api/movies/{slug}/poster as raw image bytes
// decoded from the stored data-URI artifact.
func HandlePoster(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		movieSlug := chi.URLParam(r, "slug")

		movie, err := s.BySlug(r.Context(), movieSlug)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				validation.WriteError(w, errors.New("movie not found"), http.StatusNotFound)
				return
			}
			slog.Error("Failed to load movie", slog.String("slug", movieSlug), slog.Any("error", err))
			validation.WriteError(w, errors.New("lookup failed"), http.StatusInternalServerError)
			return
		}
		if movie.Poster == "" {
			validation.WriteError(w, errors.New("no poster stored"), http.StatusNotFound)
			return
		}

		data, mime, err := poster.Decode(movie.Poster)
		if err != nil {
			slog.Error("Failed to decode poster", slog.String("slug", movieSlug), slog.Any("error", err))
			validation.WriteError(w, errors.New("poster unreadable"), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", mime)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		if _, err := w.Write(data); err != nil {
			slog.Error("Failed to write poster", slog.Any("error", err))
		}
	}
}

type ratingRequest struct {
	UserID uint `json:"user_id"`
	Rating int  `json:"rating"`
}

// HandleRate serves POST /api/movies/{slug}/rating: records the
// personal rating and folds it into the community aggregate.
func HandleRate(e *discover.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		movieSlug := chi.URLParam(r, "slug")

		var req ratingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			validation.WriteError(w, errors.New("invalid request body"), http.StatusBadRequest)
			return
		}
		if err := validation.ValidateRating(req.Rating); err != nil {
			validation.WriteError(w, err, http.StatusBadRequest)
			return
		}
		if req.UserID == 0 {
			validation.WriteError(w, errors.New("user_id is required"), http.StatusBadRequest)
			return
		}

		if err := e.SubmitRating(r.Context(), req.UserID, movieSlug, req.Rating); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				validation.WriteError(w, errors.New("movie not found"), http.StatusNotFound)
				return
			}
			slog.Error("Failed to submit rating", slog.String("slug", movieSlug), slog.Any("error", err))
			validation.WriteError(w, errors.New("rating failed"), http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

type markRequest struct {
	UserID uint `json:"user_id"`
	Value  bool `json:"value"`
}

func decodeMark(w http.ResponseWriter, r *http.Request) (*markRequest, bool) {
	var req markRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		validation.WriteError(w, errors.New("invalid request body"), http.StatusBadRequest)
		return nil, false
	}
	if req.UserID == 0 {
		validation.WriteError(w, errors.New("user_id is required"), http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

// HandleWatched serves PUT /api/movies/{slug}/watched.
func HandleWatched(e *discover.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeMark(w, r)
		if !ok {
			return
		}

		movieSlug := chi.URLParam(r, "slug")
		if err := e.SetWatched(r.Context(), req.UserID, movieSlug, req.Value); err != nil {
			slog.Error("Failed to set watched mark", slog.String("slug", movieSlug), slog.Any("error", err))
			validation.WriteError(w, errors.New("update failed"), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleWatchList serves PUT /api/movies/{slug}/watchlist.
func HandleWatchList(e *discover.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeMark(w, r)
		if !ok {
			return
		}

		movieSlug := chi.URLParam(r, "slug")
		if err := e.SetWatchListed(r.Context(), req.UserID, movieSlug, req.Value); err != nil {
			slog.Error("Failed to set watch list entry", slog.String("slug", movieSlug), slog.Any("error", err))
			validation.WriteError(w, errors.New("update failed"), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
