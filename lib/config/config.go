// Package config loads engine configuration from the environment, with
// an optional .env file for local runs.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds everything main needs to wire the engine together.
type Config struct {
	Port             string
	DBPath           string
	CatalogBaseURL   string
	TMDBAPIKey       string
	TMDBBaseURL      string
	TMDBImageBaseURL string
}

// Load reads configuration from environment variables. A .env file is
// loaded first if one exists; a missing file is not an error.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:             getEnv("PORT", "8080"),
		DBPath:           getEnv("DB_PATH", "movierec.db"),
		CatalogBaseURL:   getEnv("CATALOG_BASE_URL", "https://letterboxd.com"),
		TMDBAPIKey:       getEnv("TMDB_API_KEY", ""),
		TMDBBaseURL:      getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBImageBaseURL: getEnv("TMDB_IMAGE_BASE_URL", "https://image.tmdb.org/t/p"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
