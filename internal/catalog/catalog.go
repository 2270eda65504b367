// internal/catalog/catalog.go
// Package catalog implements pure derivations over already-fetched movie and
// review sets: filtering, sorting, similarity, top-rated selection, search,
// and aggregate rating. All functions are synchronous, re-entrant, and never
// mutate their inputs; callers get fresh slices back.
package catalog

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/reviewflix/reviewflix-go/internal/model"
)

const (
	// MaxSimilar caps the "similar movies" result size.
	MaxSimilar = 4
	// TopRatedCount caps the top-rated selection size.
	TopRatedCount = 5
)

// SortKey selects the ordering applied by Sort.
type SortKey string

const (
	SortByRating SortKey = "rating" // Rating descending
	SortByYear   SortKey = "year"   // Year descending
	SortByTitle  SortKey = "title"  // Title ascending, locale-aware
)

// Filter holds the conjunctive catalog filter predicates. A zero Filter
// matches everything.
type Filter struct {
	Query string // Case-insensitive substring over title, director, and cast
	Genre string // Exact genre tag, empty means no genre restriction
}

// Match reports whether the movie satisfies both filter predicates.
func (f Filter) Match(movie model.Movie) bool {
	if f.Query != "" {
		query := strings.ToLower(f.Query)
		matched := strings.Contains(strings.ToLower(movie.Title), query) ||
			strings.Contains(strings.ToLower(movie.Director), query)
		if !matched {
			for _, member := range movie.Cast {
				if strings.Contains(strings.ToLower(member), query) {
					matched = true
					break
				}
			}
		}
		if !matched {
			return false
		}
	}
	if f.Genre != "" && !movie.HasGenre(f.Genre) {
		return false
	}
	return true
}

// Apply returns the subset of movies matching the filter, in input order.
func Apply(movies []model.Movie, filter Filter) []model.Movie {
	result := make([]model.Movie, 0, len(movies))
	for _, movie := range movies {
		if filter.Match(movie) {
			result = append(result, movie)
		}
	}
	return result
}

// Sort returns a copy of movies ordered by the given key. The sort is stable:
// ties keep the input (catalog) order, so re-sorting an already sorted slice
// yields the same sequence.
func Sort(movies []model.Movie, key SortKey) []model.Movie {
	result := append([]model.Movie(nil), movies...)

	switch key {
	case SortByYear:
		sort.SliceStable(result, func(i, j int) bool { return result[i].Year > result[j].Year })
	case SortByTitle:
		coll := collate.New(language.English, collate.IgnoreCase)
		sort.SliceStable(result, func(i, j int) bool {
			return coll.CompareString(result[i].Title, result[j].Title) < 0
		})
	default: // SortByRating
		sort.SliceStable(result, func(i, j int) bool { return result[i].Rating > result[j].Rating })
	}
	return result
}

// Similar returns up to MaxSimilar movies sharing at least one genre tag with
// the movie identified by id, excluding the movie itself, in catalog order.
// An unknown id yields an empty result.
func Similar(movies []model.Movie, id string) []model.Movie {
	var target *model.Movie
	for i := range movies {
		if movies[i].ID == id {
			target = &movies[i]
			break
		}
	}
	if target == nil {
		return []model.Movie{}
	}

	result := make([]model.Movie, 0, MaxSimilar)
	for _, movie := range movies {
		if movie.ID == id {
			continue
		}
		for _, genre := range movie.Genre {
			if target.HasGenre(genre) {
				result = append(result, movie)
				break
			}
		}
		if len(result) == MaxSimilar {
			break
		}
	}
	return result
}

// TopRated returns up to TopRatedCount movies in non-increasing rating order.
func TopRated(movies []model.Movie) []model.Movie {
	sorted := Sort(movies, SortByRating)
	if len(sorted) > TopRatedCount {
		sorted = sorted[:TopRatedCount]
	}
	return sorted
}

// Search returns movies whose title or any genre tag contains the query,
// case-insensitively, in catalog order. An empty query matches everything.
func Search(movies []model.Movie, query string) []model.Movie {
	lower := strings.ToLower(query)
	result := make([]model.Movie, 0, len(movies))
	for _, movie := range movies {
		if strings.Contains(strings.ToLower(movie.Title), lower) {
			result = append(result, movie)
			continue
		}
		for _, genre := range movie.Genre {
			if strings.Contains(strings.ToLower(genre), lower) {
				result = append(result, movie)
				break
			}
		}
	}
	return result
}

// AggregateRating returns the arithmetic mean of the review ratings. When the
// review set is empty it falls back to the movie's curated catalog rating —
// the displayed value switches meaning from community average to curated
// score, so callers that need to distinguish the two must also consult the
// review count.
func AggregateRating(movie model.Movie, reviews []model.Review) float64 {
	if len(reviews) == 0 {
		return movie.Rating
	}
	sum := 0
	for _, review := range reviews {
		sum += review.Rating
	}
	return float64(sum) / float64(len(reviews))
}
