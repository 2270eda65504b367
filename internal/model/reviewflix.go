// internal/model/reviewflix.go
// Package model defines the data structures used throughout the ReviewFlix service.
// These structures represent the core domain objects for movies, reviews, users,
// and sessions, plus the request/response shapes of the wire contract.
package model

import (
	"time"
)

// Review content and rating bounds enforced before any write.
const (
	MinReviewRating  = 1    // Lowest allowed star rating
	MaxReviewRating  = 10   // Highest allowed star rating
	MaxReviewContent = 1000 // Maximum review content length in characters

	MinUsernameLen = 3  // Minimum username length
	MaxUsernameLen = 20 // Maximum username length
	MinPasswordLen = 6  // Minimum password length
)

// Movie represents a catalog entry.
// Movies are created by the catalog seed/import and are read-only from the
// client's perspective; they are never mutated during a session.
// This corresponds to the movies table in storage.
type Movie struct {
	ID          string    `json:"id" db:"id"`                    // Unique movie identifier
	Title       string    `json:"title" db:"title"`              // Movie title
	Year        int       `json:"year" db:"year"`                // Release year
	Poster      string    `json:"poster" db:"poster"`            // Poster image URI
	Backdrop    string    `json:"backdrop" db:"backdrop"`        // Backdrop image URI
	Genre       []string  `json:"genre" db:"genre"`              // Genre tags
	Rating      float64   `json:"rating" db:"rating"`            // Curated catalog rating in [0,10]
	Description string    `json:"description" db:"description"`  // Plot synopsis
	Director    string    `json:"director" db:"director"`        // Director name
	Cast        []string  `json:"cast" db:"cast_members"`        // Ordered cast list
	Runtime     int       `json:"runtime" db:"runtime"`          // Runtime in minutes
	ReleaseDate string    `json:"releaseDate" db:"release_date"` // Full release date (ISO 8601 date)
	CreatedAt   time.Time `json:"-" db:"created_at"`             // When the movie was imported
}

// HasGenre reports whether the movie carries the given genre tag.
func (m Movie) HasGenre(genre string) bool {
	for _, g := range m.Genre {
		if g == genre {
			return true
		}
	}
	return false
}

// Review represents a user's star rating and text review of a movie.
// Reviews are immutable once created; the only lifecycle transition is
// deletion by the owning user. This corresponds to the reviews table.
type Review struct {
	ID        string    `json:"id" db:"id"`                // Unique review identifier (ULID, time-ordered)
	MovieID   string    `json:"movieId" db:"movie_id"`     // Reviewed movie
	UserID    string    `json:"userId" db:"user_id"`       // Owning user
	Username  string    `json:"username" db:"username"`    // Owner's display name, denormalized for display
	Rating    int       `json:"rating" db:"rating"`        // Integer star rating in [1,10]
	Content   string    `json:"content" db:"content"`      // Review text, non-empty, at most 1000 chars
	CreatedAt time.Time `json:"createdAt" db:"created_at"` // Server-assigned creation time
	Likes     int       `json:"likes" db:"likes"`          // Non-negative like counter
}

// User represents a registered account.
// Email and username are unique across the user set; the watchlist is a
// deduplicated, order-preserving list of movie ids.
// This corresponds to the users table in storage.
type User struct {
	ID           string    `json:"id" db:"id"`                // Unique user identifier
	Username     string    `json:"username" db:"username"`    // Unique display name, 3-20 chars
	Email        string    `json:"email" db:"email"`          // Unique email address
	Avatar       string    `json:"avatar,omitempty" db:"avatar"` // Avatar image URI
	JoinedAt     time.Time `json:"joinedAt" db:"joined_at"`   // When the account was created
	ReviewCount  int       `json:"reviewCount" db:"review_count"` // Number of reviews authored
	Watchlist    []string  `json:"watchlist" db:"watchlist"`  // Movie ids marked "to watch", no duplicates
	PasswordHash []byte    `json:"-" db:"password_hash"`      // bcrypt hash, never serialized
}

// Session represents a server-side session backing an issued credential.
// Deleting the session invalidates the token even before it expires.
// This corresponds to the sessions table in storage.
type Session struct {
	ID        string    `json:"id" db:"id"`                // Unique session identifier
	UserID    string    `json:"userId" db:"user_id"`       // Authenticated user
	CreatedAt time.Time `json:"createdAt" db:"created_at"` // When the session was opened
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"` // When the session expires
}

// LoginRequest is the request body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`    // Account email
	Password string `json:"password"` // Plaintext password, verified against the stored hash
}

// RegisterRequest is the request body for POST /v1/auth/register.
type RegisterRequest struct {
	Username string `json:"username"` // Desired display name
	Email    string `json:"email"`    // Account email, must be unused
	Password string `json:"password"` // Plaintext password
}

// AuthData is the response payload for successful login and register calls.
// The token is the opaque session credential the client persists.
type AuthData struct {
	User  User   `json:"user"`  // The authenticated user
	Token string `json:"token"` // Session credential
}

// CreateReviewRequest is the request body for POST /v1/reviews.
// The server assigns id, createdAt, and likes; the userId and username are
// taken from the authenticated session, not from the body.
type CreateReviewRequest struct {
	MovieID string `json:"movieId"` // Movie being reviewed
	Rating  int    `json:"rating"`  // Star rating in [1,10]
	Content string `json:"content"` // Review text
}

// WatchlistAction enumerates the allowed watchlist mutations.
type WatchlistAction string

const (
	WatchlistAdd    WatchlistAction = "add"    // Add a movie id (idempotent)
	WatchlistRemove WatchlistAction = "remove" // Remove a movie id (no-op when absent)
)

// UpdateWatchlistRequest is the request body for PUT /v1/users/{id}/watchlist.
type UpdateWatchlistRequest struct {
	MovieID string          `json:"movieId"` // Movie to add or remove
	Action  WatchlistAction `json:"action"`  // "add" or "remove"
}

// MovieDetail is the response payload for GET /v1/movies/{id}.
// AggregateRating is the mean of submitted review ratings, falling back to
// the curated catalog rating when no reviews exist. ReviewCount lets callers
// tell the two sources apart: zero means the aggregate is the catalog score.
type MovieDetail struct {
	Movie           Movie   `json:"movie"`           // The catalog entry
	AggregateRating float64 `json:"aggregateRating"` // Community average, or catalog rating when ReviewCount is 0
	ReviewCount     int     `json:"reviewCount"`     // Number of reviews behind the aggregate
}

// WatchlistData is the response payload for watchlist mutations.
type WatchlistData struct {
	Watchlist []string `json:"watchlist"` // The user's watchlist after the mutation
}
