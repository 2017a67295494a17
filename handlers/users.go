package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/movierec/movierec/lib/store"
	"github.com/movierec/movierec/lib/validation"
)

type registerRequest struct {
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	AvatarURL   string `json:"avatar_url"`
}

// HandleRegister serves POST /api/users. Duplicate login or email is a
// conflict, not a server error.
func HandleRegister(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			validation.WriteError(w, errors.New("invalid request body"), http.StatusBadRequest)
			return
		}
		if err := validation.ValidateRegistration(req.Login, req.Email, req.Password); err != nil {
			validation.WriteError(w, err, http.StatusBadRequest)
			return
		}

		user, err := s.CreateUser(r.Context(), req.Login, req.DisplayName, req.Email, req.Password, req.AvatarURL)
		if err != nil {
			if errors.Is(err, store.ErrLoginTaken) || errors.Is(err, store.ErrEmailTaken) {
				validation.WriteError(w, err, http.StatusConflict)
				return
			}
			slog.Error("Failed to create user", slog.String("login", req.Login), slog.Any("error", err))
			validation.WriteError(w, errors.New("registration failed"), http.StatusInternalServerError)
			return
		}

		writeJSON(w, user, http.StatusCreated)
	}
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// HandleLogin serves POST /api/sessions. Unknown logins and wrong
// passwords get the same answer.
func HandleLogin(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			validation.WriteError(w, errors.New("invalid request body"), http.StatusBadRequest)
			return
		}

		user, err := s.Authenticate(r.Context(), req.Login, req.Password)
		if err != nil {
			if errors.Is(err, store.ErrBadCredentials) {
				validation.WriteError(w, err, http.StatusUnauthorized)
				return
			}
			slog.Error("Failed to authenticate", slog.String("login", req.Login), slog.Any("error", err))
			validation.WriteError(w, errors.New("login failed"), http.StatusInternalServerError)
			return
		}

		writeJSON(w, user, http.StatusOK)
	}
}

func userIDParam(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil || id == 0 {
		validation.WriteError(w, errors.New("invalid user id"), http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}

type profileRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatar_url"`
}

// HandleUpdateProfile serves PUT /api/users/{id}.
func HandleUpdateProfile(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := userIDParam(w, r)
		if !ok {
			return
		}

		var req profileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			validation.WriteError(w, errors.New("invalid request body"), http.StatusBadRequest)
			return
		}

		if err := s.UpdateProfile(r.Context(), id, req.DisplayName, req.Email, req.AvatarURL); err != nil {
			if errors.Is(err, store.ErrEmailTaken) {
				validation.WriteError(w, err, http.StatusConflict)
				return
			}
			slog.Error("Failed to update profile", slog.Any("error", err))
			validation.WriteError(w, errors.New("update failed"), http.StatusInternalServerError)
			return
		}

		user, err := s.UserByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				validation.WriteError(w, errors.New("user not found"), http.StatusNotFound)
				return
			}
			slog.Error("Failed to load user", slog.Any("error", err))
			validation.WriteError(w, errors.New("lookup failed"), http.StatusInternalServerError)
			return
		}
		writeJSON(w, user, http.StatusOK)
	}
}

// HandleWatchedMovies serves GET /api/users/{id}/watched.
func HandleWatchedMovies(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := userIDParam(w, r)
		if !ok {
			return
		}

		movies, err := s.WatchedMovies(r.Context(), id)
		if err != nil {
			slog.Error("Failed to load watched movies", slog.Any("error", err))
			validation.WriteError(w, errors.New("lookup failed"), http.StatusInternalServerError)
			return
		}
		writeJSON(w, movies, http.StatusOK)
	}
}

// HandleWatchListMovies serves GET /api/users/{id}/watchlist.
func HandleWatchListMovies(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := userIDParam(w, r)
		if !ok {
			return
		}

		movies, err := s.WatchListMovies(r.Context(), id)
		if err != nil {
			slog.Error("Failed to load watch list", slog.Any("error", err))
			validation.WriteError(w, errors.New("lookup failed"), http.StatusInternalServerError)
			return
		}
		writeJSON(w, movies, http.StatusOK)
	}
}

type statsResponse struct {
	WatchedCount   int64 `json:"watched_count"`
	WatchListCount int64 `json:"watch_list_count"`
	RatingsCount   int64 `json:"ratings_count"`
}

// HandleStats serves GET /api/users/{id}/stats: the viewer's counters.
func HandleStats(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := userIDParam(w, r)
		if !ok {
			return
		}
		ctx := r.Context()

		var stats statsResponse
		var err error
		if stats.WatchedCount, err = s.WatchedCount(ctx, id); err == nil {
			if stats.WatchListCount, err = s.WatchListCount(ctx, id); err == nil {
				stats.RatingsCount, err = s.RatingsCount(ctx, id)
			}
		}
		if err != nil {
			slog.Error("Failed to load user stats", slog.Any("error", err))
			validation.WriteError(w, errors.New("lookup failed"), http.StatusInternalServerError)
			return
		}

		writeJSON(w, stats, http.StatusOK)
	}
}
