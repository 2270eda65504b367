// internal/storage/memory.go
// Package storage provides implementations of the Store interface
// for both in-memory and PostgreSQL storage backends.
package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/reviewflix/reviewflix-go/internal/model"
)

// Standard errors returned by the storage layer
var (
	ErrNotFound          = errors.New("not found")          // Returned when an entity is not found
	ErrConflict          = errors.New("conflict")           // Returned when an entity already exists
	ErrDuplicateEmail    = errors.New("duplicate email")    // Returned when a registration email is taken
	ErrDuplicateUsername = errors.New("duplicate username") // Returned when a registration username is taken
)

// Store interface defines the storage operations required by the ReviewFlix service.
// This interface is implemented by both in-memory and PostgreSQL storage backends.
type Store interface {
	// Movie operations. The catalog is created by seed/import and read-only
	// afterwards; queries always return movies in catalog (import) order.
	SeedMovies(ctx context.Context, movies []model.Movie) error // Insert movies, skipping ids already present
	ListMovies(ctx context.Context) ([]model.Movie, error)      // Full catalog in import order
	GetMovie(ctx context.Context, id string) (*model.Movie, error)
	CountMovies(ctx context.Context) (int, error)

	// Review operations. Listings return newest first.
	CreateReview(ctx context.Context, review model.Review) error
	GetReview(ctx context.Context, id string) (*model.Review, error)
	DeleteReview(ctx context.Context, id string) error
	ListReviewsByMovie(ctx context.Context, movieID string) ([]model.Review, error)
	ListReviewsByUser(ctx context.Context, userID string) ([]model.Review, error)

	// User operations
	CreateUser(ctx context.Context, user model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateWatchlist(ctx context.Context, userID, movieID string, action model.WatchlistAction) ([]string, error)

	// Session operations backing issued credentials
	CreateSession(ctx context.Context, session model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// memory implements the Store interface using in-memory storage.
// It's intended for development and testing purposes.
type memory struct {
	mu            sync.RWMutex                // Protects concurrent access to maps
	movies        map[string]*model.Movie     // Map of movie id to movie
	movieOrder    []string                    // Movie ids in import order
	reviews       map[string]*model.Review    // Map of review id to review
	users         map[string]*model.User      // Map of user id to user
	usersByEmail  map[string]string           // Map of lowercased email to user id
	sessions      map[string]*model.Session   // Map of session id to session
}

// NewMemory creates a new in-memory storage implementation.
// Returns a Store interface that can be used for testing or development.
func NewMemory() Store {
	return &memory{
		movies:       make(map[string]*model.Movie),
		reviews:      make(map[string]*model.Review),
		users:        make(map[string]*model.User),
		usersByEmail: make(map[string]string),
		sessions:     make(map[string]*model.Session),
	}
}

func (m *memory) SeedMovies(ctx context.Context, movies []model.Movie) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, movie := range movies {
		if _, exists := m.movies[movie.ID]; exists {
			continue
		}
		movieCopy := movie
		if movieCopy.CreatedAt.IsZero() {
			movieCopy.CreatedAt = time.Now().UTC()
		}
		m.movies[movie.ID] = &movieCopy
		m.movieOrder = append(m.movieOrder, movie.ID)
	}
	return nil
}

func (m *memory) ListMovies(ctx context.Context) ([]model.Movie, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]model.Movie, 0, len(m.movieOrder))
	for _, id := range m.movieOrder {
		result = append(result, *m.movies[id])
	}
	return result, nil
}

func (m *memory) GetMovie(ctx context.Context, id string) (*model.Movie, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	movie, exists := m.movies[id]
	if !exists {
		return nil, ErrNotFound
	}
	movieCopy := *movie
	return &movieCopy, nil
}

func (m *memory) CountMovies(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.movies), nil
}

func (m *memory) CreateReview(ctx context.Context, review model.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.reviews[review.ID]; exists {
		return ErrConflict
	}
	if _, exists := m.movies[review.MovieID]; !exists {
		return ErrNotFound
	}
	user, exists := m.users[review.UserID]
	if !exists {
		return ErrNotFound
	}

	reviewCopy := review
	m.reviews[review.ID] = &reviewCopy
	user.ReviewCount++
	return nil
}

func (m *memory) GetReview(ctx context.Context, id string) (*model.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	review, exists := m.reviews[id]
	if !exists {
		return nil, ErrNotFound
	}
	reviewCopy := *review
	return &reviewCopy, nil
}

func (m *memory) DeleteReview(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	review, exists := m.reviews[id]
	if !exists {
		return ErrNotFound
	}
	delete(m.reviews, id)
	if user, ok := m.users[review.UserID]; ok && user.ReviewCount > 0 {
		user.ReviewCount--
	}
	return nil
}

// sortNewestFirst orders reviews by creation time descending. Review ids are
// ULIDs, so the id is a stable tiebreaker consistent with creation order.
func sortNewestFirst(reviews []model.Review) {
	sort.SliceStable(reviews, func(i, j int) bool {
		if reviews[i].CreatedAt.Equal(reviews[j].CreatedAt) {
			return reviews[i].ID > reviews[j].ID
		}
		return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
	})
}

func (m *memory) ListReviewsByMovie(ctx context.Context, movieID string) ([]model.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]model.Review, 0)
	for _, review := range m.reviews {
		if review.MovieID == movieID {
			result = append(result, *review)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func (m *memory) ListReviewsByUser(ctx context.Context, userID string) ([]model.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]model.Review, 0)
	for _, review := range m.reviews {
		if review.UserID == userID {
			result = append(result, *review)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func (m *memory) CreateUser(ctx context.Context, user model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[user.ID]; exists {
		return ErrConflict
	}
	if _, exists := m.usersByEmail[strings.ToLower(user.Email)]; exists {
		return ErrDuplicateEmail
	}
	for _, existing := range m.users {
		if strings.EqualFold(existing.Username, user.Username) {
			return ErrDuplicateUsername
		}
	}

	userCopy := user
	userCopy.Watchlist = append([]string(nil), user.Watchlist...)
	m.users[user.ID] = &userCopy
	m.usersByEmail[strings.ToLower(user.Email)] = user.ID
	return nil
}

func (m *memory) GetUser(ctx context.Context, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.users[id]
	if !exists {
		return nil, ErrNotFound
	}
	return copyUser(user), nil
}

func (m *memory) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.usersByEmail[strings.ToLower(email)]
	if !exists {
		return nil, ErrNotFound
	}
	return copyUser(m.users[id]), nil
}

func (m *memory) UpdateWatchlist(ctx context.Context, userID, movieID string, action model.WatchlistAction) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.users[userID]
	if !exists {
		return nil, ErrNotFound
	}

	switch action {
	case model.WatchlistAdd:
		// Adding twice leaves exactly one occurrence
		found := false
		for _, id := range user.Watchlist {
			if id == movieID {
				found = true
				break
			}
		}
		if !found {
			user.Watchlist = append(user.Watchlist, movieID)
		}
	case model.WatchlistRemove:
		filtered := user.Watchlist[:0]
		for _, id := range user.Watchlist {
			if id != movieID {
				filtered = append(filtered, id)
			}
		}
		user.Watchlist = filtered
	default:
		return nil, ErrConflict
	}

	return append([]string(nil), user.Watchlist...), nil
}

func (m *memory) CreateSession(ctx context.Context, session model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.ID]; exists {
		return ErrConflict
	}
	sessionCopy := session
	m.sessions[session.ID] = &sessionCopy
	return nil
}

func (m *memory) GetSession(ctx context.Context, id string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[id]
	if !exists {
		return nil, ErrNotFound
	}
	// An expired session is indistinguishable from a missing one
	if time.Now().UTC().After(session.ExpiresAt) {
		return nil, ErrNotFound
	}
	sessionCopy := *session
	return &sessionCopy, nil
}

func (m *memory) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; !exists {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// copyUser returns a detached copy so callers cannot mutate stored state.
func copyUser(user *model.User) *model.User {
	userCopy := *user
	userCopy.Watchlist = append([]string(nil), user.Watchlist...)
	return &userCopy
}
