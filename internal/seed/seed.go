// internal/seed/seed.go
// Package seed populates the movie catalog at service start. The catalog is
// read-only from the client's perspective, so seeding is the only write path
// for movies: either a validated JSON seed file or the built-in catalog.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/reviewflix/reviewflix-go/internal/model"
	"github.com/reviewflix/reviewflix-go/internal/schema"
	"github.com/reviewflix/reviewflix-go/internal/storage"
)

// LoadFile reads a catalog seed file, validates it against the catalog
// schema, and decodes it into movies. The whole file is rejected when any
// entry violates the schema.
func LoadFile(path string) ([]model.Movie, error) {
	document, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	validator, err := schema.NewValidator()
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateCatalog(document); err != nil {
		return nil, err
	}

	var movies []model.Movie
	if err := json.Unmarshal(document, &movies); err != nil {
		return nil, fmt.Errorf("failed to decode seed file: %w", err)
	}
	return movies, nil
}

// Ensure seeds the store when the catalog is empty. A non-empty catalog is
// left untouched so restarts against persistent storage do not re-import.
func Ensure(ctx context.Context, store storage.Store, movies []model.Movie) error {
	count, err := store.CountMovies(ctx)
	if err != nil {
		return fmt.Errorf("failed to count movies: %w", err)
	}
	if count > 0 {
		slog.Debug("catalog already seeded", "movies", count)
		return nil
	}

	if err := store.SeedMovies(ctx, movies); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}
	slog.Info("catalog seeded", "movies", len(movies))
	return nil
}

// DefaultMovies returns the built-in catalog used when no seed file is
// configured.
func DefaultMovies() []model.Movie {
	return []model.Movie{
		{
			ID:          "m1",
			Title:       "Neon Harbor",
			Year:        2022,
			Poster:      "https://images.reviewflix.example/posters/neon-harbor.jpg",
			Backdrop:    "https://images.reviewflix.example/backdrops/neon-harbor.jpg",
			Genre:       []string{"Sci-Fi", "Thriller"},
			Rating:      8.6,
			Description: "A dock worker discovers the cargo ships she loads at night never appear on any manifest.",
			Director:    "Mara Voss",
			Cast:        []string{"Elena Cruz", "Daniel Oyelaran", "Petra Lindqvist"},
			Runtime:     131,
			ReleaseDate: "2022-09-16",
		},
		{
			ID:          "m2",
			Title:       "The Last Reel",
			Year:        2019,
			Poster:      "https://images.reviewflix.example/posters/the-last-reel.jpg",
			Backdrop:    "https://images.reviewflix.example/backdrops/the-last-reel.jpg",
			Genre:       []string{"Drama"},
			Rating:      9.1,
			Description: "A projectionist fights to keep a century-old cinema alive for one final premiere.",
			Director:    "Theo Marchetti",
			Cast:        []string{"August Webb", "Ines Ferreira"},
			Runtime:     118,
			ReleaseDate: "2019-11-01",
		},
		{
			ID:          "m3",
			Title:       "Ironline",
			Year:        2021,
			Poster:      "https://images.reviewflix.example/posters/ironline.jpg",
			Backdrop:    "https://images.reviewflix.example/backdrops/ironline.jpg",
			Genre:       []string{"Action", "Crime"},
			Rating:      7.4,
			Description: "Two rail inspectors stumble into a smuggling ring running the length of a continental freight line.",
			Director:    "Sana Qureshi",
			Cast:        []string{"Marcus Dale", "Yuki Tanaka", "Omar Haddad"},
			Runtime:     104,
			ReleaseDate: "2021-05-28",
		},
		{
			ID:          "m4",
			Title:       "Glass Orchard",
			Year:        2023,
			Poster:      "https://images.reviewflix.example/posters/glass-orchard.jpg",
			Backdrop:    "https://images.reviewflix.example/backdrops/glass-orchard.jpg",
			Genre:       []string{"Drama", "Romance"},
			Rating:      8.2,
			Description: "Estranged siblings inherit a greenhouse estate and the secrets pressed between its panes.",
			Director:    "Mara Voss",
			Cast:        []string{"Ines Ferreira", "Petra Lindqvist"},
			Runtime:     126,
			ReleaseDate: "2023-02-10",
		},
		{
			ID:          "m5",
			Title:       "Static",
			Year:        2020,
			Poster:      "https://images.reviewflix.example/posters/static.jpg",
			Backdrop:    "https://images.reviewflix.example/backdrops/static.jpg",
			Genre:       []string{"Thriller", "Crime"},
			Rating:      7.9,
			Description: "A late-night radio host realizes her anonymous callers are describing crimes before they happen.",
			Director:    "Jonah Eklund",
			Cast:        []string{"Elena Cruz", "Marcus Dale"},
			Runtime:     97,
			ReleaseDate: "2020-10-23",
		},
		{
			ID:          "m6",
			Title:       "Southern Crossing",
			Year:        2018,
			Poster:      "https://images.reviewflix.example/posters/southern-crossing.jpg",
			Backdrop:    "https://images.reviewflix.example/backdrops/southern-crossing.jpg",
			Genre:       []string{"Adventure", "Drama"},
			Rating:      8.8,
			Description: "A cargo pilot grounded by a storm leads her passengers across a mountain range on foot.",
			Director:    "Theo Marchetti",
			Cast:        []string{"Yuki Tanaka", "August Webb", "Omar Haddad"},
			Runtime:     142,
			ReleaseDate: "2018-07-06",
		},
		{
			ID:          "m7",
			Title:       "Paper Satellites",
			Year:        2024,
			Poster:      "https://images.reviewflix.example/posters/paper-satellites.jpg",
			Backdrop:    "https://images.reviewflix.example/backdrops/paper-satellites.jpg",
			Genre:       []string{"Sci-Fi", "Romance"},
			Rating:      7.1,
			Description: "Two engineers on rival space programs fall in love through intercepted telemetry.",
			Director:    "Sana Qureshi",
			Cast:        []string{"Daniel Oyelaran", "Ines Ferreira"},
			Runtime:     109,
			ReleaseDate: "2024-03-15",
		},
		{
			ID:          "m8",
			Title:       "The Quarry King",
			Year:        2017,
			Poster:      "https://images.reviewflix.example/posters/the-quarry-king.jpg",
			Backdrop:    "https://images.reviewflix.example/backdrops/the-quarry-king.jpg",
			Genre:       []string{"Crime", "Drama"},
			Rating:      8.4,
			Description: "A small-town accountant inherits his father's quarry and the ledger that ran the county.",
			Director:    "Jonah Eklund",
			Cast:        []string{"Marcus Dale", "Petra Lindqvist", "August Webb"},
			Runtime:     135,
			ReleaseDate: "2017-04-21",
		},
	}
}
