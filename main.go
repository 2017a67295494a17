package main

import (
	"net/http"
	"os"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/movierec/movierec/handlers"
	"github.com/movierec/movierec/lib/config"
	"github.com/movierec/movierec/lib/db"
	"github.com/movierec/movierec/lib/discover"
	"github.com/movierec/movierec/lib/health"
	"github.com/movierec/movierec/lib/letterboxd"
	"github.com/movierec/movierec/lib/poster"
	"github.com/movierec/movierec/lib/store"
	"github.com/movierec/movierec/lib/tmdb"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	gdb, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{
		Logger: db.NewGormLogger(logger),
	})
	if err != nil {
		logger.Error("Failed to open database", slog.String("path", cfg.DBPath), slog.Any("error", err))
		os.Exit(1)
	}
	if err := db.RunMigrations(gdb, logger); err != nil {
		logger.Error("Failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	st := store.New(gdb, logger)
	catalog := letterboxd.NewClient(cfg.CatalogBaseURL, logger)
	meta := tmdb.NewClient(cfg.TMDBAPIKey, cfg.TMDBBaseURL, cfg.TMDBImageBaseURL, logger)
	posters := poster.NewService(logger)
	engine := discover.New(st, catalog, meta, posters, logger)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", health.Check(gdb))

	r.Route("/api", func(r chi.Router) {
		r.Route("/movies", func(r chi.Router) {
			r.Get("/search", handlers.HandleSearch(engine))
			r.Get("/catalog-search", handlers.HandleCatalogSearch(engine))
			r.Get("/{slug}", handlers.HandleMovie(st))
			r.Get("/{slug}/poster", handlers.HandlePoster(st))
			r.Post("/{slug}/rating", handlers.HandleRate(engine))
			r.Put("/{slug}/watched", handlers.HandleWatched(engine))
			r.Put("/{slug}/watchlist", handlers.HandleWatchList(engine))
		})

		r.Post("/users", handlers.HandleRegister(st))
		r.Post("/sessions", handlers.HandleLogin(st))
		r.Route("/users/{id}", func(r chi.Router) {
			r.Put("/", handlers.HandleUpdateProfile(st))
			r.Get("/watched", handlers.HandleWatchedMovies(st))
			r.Get("/watchlist", handlers.HandleWatchListMovies(st))
			r.Get("/stats", handlers.HandleStats(st))
		})
	})

	logger.Info("Starting server", slog.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Error("Server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
