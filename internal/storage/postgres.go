// internal/storage/postgres.go
// Package storage provides the PostgreSQL implementation of the Store interface.
// This implementation is intended for production use with persistent data storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/reviewflix/reviewflix-go/internal/model"
)

// postgres provides persistent storage for movies, reviews, users, and sessions.
type postgres struct {
	db *pgxpool.Pool // Connection pool to PostgreSQL database
}

// NewPostgres creates a new PostgreSQL storage implementation.
// It establishes a connection pool to the database and initializes the schema.
func NewPostgres(dsn string) (Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database DSN: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 20
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30
	config.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &postgres{db: pool}, nil
}

// initSchema initializes the database schema.
// It creates all required tables and indexes if they don't already exist.
func initSchema(ctx context.Context, db *pgxpool.Pool) error {
	schema := `
		-- Movies table: the catalog, populated by seed/import and read-only afterwards
		CREATE TABLE IF NOT EXISTS movies (
		    id TEXT PRIMARY KEY,                     -- Unique movie identifier
		    title TEXT NOT NULL,                     -- Movie title
		    year INTEGER NOT NULL,                   -- Release year
		    poster TEXT NOT NULL DEFAULT '',         -- Poster image URI
		    backdrop TEXT NOT NULL DEFAULT '',       -- Backdrop image URI
		    genre TEXT[] NOT NULL DEFAULT '{}',      -- Genre tags
		    rating DOUBLE PRECISION NOT NULL CHECK (rating >= 0 AND rating <= 10),
		    description TEXT NOT NULL DEFAULT '',    -- Plot synopsis
		    director TEXT NOT NULL DEFAULT '',       -- Director name
		    cast_members TEXT[] NOT NULL DEFAULT '{}', -- Ordered cast list
		    runtime INTEGER NOT NULL DEFAULT 0,      -- Runtime in minutes
		    release_date TEXT NOT NULL DEFAULT '',   -- Full release date
		    seq BIGSERIAL,                           -- Import order for catalog-order queries
		    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_movies_seq ON movies(seq);
		CREATE INDEX IF NOT EXISTS idx_movies_rating ON movies(rating DESC);

		-- Users table for registered accounts
		CREATE TABLE IF NOT EXISTS users (
		    id TEXT PRIMARY KEY,                     -- Unique user identifier
		    username TEXT NOT NULL,                  -- Unique display name
		    email TEXT NOT NULL,                     -- Unique email address
		    avatar TEXT NOT NULL DEFAULT '',         -- Avatar image URI
		    joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		    review_count INTEGER NOT NULL DEFAULT 0, -- Number of reviews authored
		    watchlist TEXT[] NOT NULL DEFAULT '{}',  -- Movie ids, order-preserving, no duplicates
		    password_hash BYTEA NOT NULL             -- bcrypt hash
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users(LOWER(username));

		-- Reviews table: immutable once created, deleted only by owner
		CREATE TABLE IF NOT EXISTS reviews (
		    id TEXT PRIMARY KEY,                     -- Unique review identifier (ULID)
		    movie_id TEXT NOT NULL REFERENCES movies(id),
		    user_id TEXT NOT NULL REFERENCES users(id),
		    username TEXT NOT NULL,                  -- Denormalized owner display name
		    rating INTEGER NOT NULL CHECK (rating >= 1 AND rating <= 10),
		    content TEXT NOT NULL CHECK (char_length(content) BETWEEN 1 AND 1000),
		    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		    likes INTEGER NOT NULL DEFAULT 0 CHECK (likes >= 0)
		);

		CREATE INDEX IF NOT EXISTS idx_reviews_movie_created ON reviews(movie_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_reviews_user_created ON reviews(user_id, created_at DESC);

		-- Sessions table backing issued credentials
		CREATE TABLE IF NOT EXISTS sessions (
		    id TEXT PRIMARY KEY,                     -- Unique session identifier
		    user_id TEXT NOT NULL REFERENCES users(id),
		    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		    expires_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
	`

	_, err := db.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool
func (p *postgres) Close() {
	p.db.Close()
}

func (p *postgres) SeedMovies(ctx context.Context, movies []model.Movie) error {
	query := `INSERT INTO movies (id, title, year, poster, backdrop, genre, rating, description, director, cast_members, runtime, release_date, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	          ON CONFLICT (id) DO NOTHING`

	for _, movie := range movies {
		createdAt := movie.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := p.db.Exec(ctx, query,
			movie.ID,
			movie.Title,
			movie.Year,
			movie.Poster,
			movie.Backdrop,
			movie.Genre,
			movie.Rating,
			movie.Description,
			movie.Director,
			movie.Cast,
			movie.Runtime,
			movie.ReleaseDate,
			createdAt)
		if err != nil {
			return fmt.Errorf("failed to seed movie %s: %w", movie.ID, err)
		}
	}
	return nil
}

const movieColumns = `id, title, year, poster, backdrop, genre, rating, description, director, cast_members, runtime, release_date, created_at`

// scanMovie scans a single movie row.
func scanMovie(row pgx.Row) (*model.Movie, error) {
	var movie model.Movie
	err := row.Scan(
		&movie.ID,
		&movie.Title,
		&movie.Year,
		&movie.Poster,
		&movie.Backdrop,
		&movie.Genre,
		&movie.Rating,
		&movie.Description,
		&movie.Director,
		&movie.Cast,
		&movie.Runtime,
		&movie.ReleaseDate,
		&movie.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

func (p *postgres) ListMovies(ctx context.Context) ([]model.Movie, error) {
	query := `SELECT ` + movieColumns + ` FROM movies ORDER BY seq ASC`

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}
	defer rows.Close()

	movies := make([]model.Movie, 0)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movie: %w", err)
		}
		movies = append(movies, *movie)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating movies: %w", err)
	}
	return movies, nil
}

func (p *postgres) GetMovie(ctx context.Context, id string) (*model.Movie, error) {
	query := `SELECT ` + movieColumns + ` FROM movies WHERE id = $1`

	movie, err := scanMovie(p.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get movie: %w", err)
	}
	return movie, nil
}

func (p *postgres) CountMovies(ctx context.Context) (int, error) {
	var count int
	if err := p.db.QueryRow(ctx, `SELECT COUNT(*) FROM movies`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count movies: %w", err)
	}
	return count, nil
}

func (p *postgres) CreateReview(ctx context.Context, review model.Review) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO reviews (id, movie_id, user_id, username, rating, content, created_at, likes)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = tx.Exec(ctx, query,
		review.ID,
		review.MovieID,
		review.UserID,
		review.Username,
		review.Rating,
		review.Content,
		review.CreatedAt,
		review.Likes)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	// Keep the denormalized author review count in step
	if _, err := tx.Exec(ctx, `UPDATE users SET review_count = review_count + 1 WHERE id = $1`, review.UserID); err != nil {
		return fmt.Errorf("failed to update review count: %w", err)
	}

	return tx.Commit(ctx)
}

const reviewColumns = `id, movie_id, user_id, username, rating, content, created_at, likes`

// scanReview scans a single review row.
func scanReview(row pgx.Row) (*model.Review, error) {
	var review model.Review
	err := row.Scan(
		&review.ID,
		&review.MovieID,
		&review.UserID,
		&review.Username,
		&review.Rating,
		&review.Content,
		&review.CreatedAt,
		&review.Likes,
	)
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (p *postgres) GetReview(ctx context.Context, id string) (*model.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`

	review, err := scanReview(p.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return review, nil
}

func (p *postgres) DeleteReview(ctx context.Context, id string) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var userID string
	err = tx.QueryRow(ctx, `DELETE FROM reviews WHERE id = $1 RETURNING user_id`, id).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete review: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET review_count = GREATEST(review_count - 1, 0) WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("failed to update review count: %w", err)
	}

	return tx.Commit(ctx)
}

func (p *postgres) listReviews(ctx context.Context, query string, arg string) ([]model.Review, error) {
	rows, err := p.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]model.Review, 0)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, *review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}
	return reviews, nil
}

func (p *postgres) ListReviewsByMovie(ctx context.Context, movieID string) ([]model.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE movie_id = $1 ORDER BY created_at DESC, id DESC`
	return p.listReviews(ctx, query, movieID)
}

func (p *postgres) ListReviewsByUser(ctx context.Context, userID string) ([]model.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	return p.listReviews(ctx, query, userID)
}

func (p *postgres) CreateUser(ctx context.Context, user model.User) error {
	query := `INSERT INTO users (id, username, email, avatar, joined_at, review_count, watchlist, password_hash)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := p.db.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.Avatar,
		user.JoinedAt,
		user.ReviewCount,
		user.Watchlist,
		user.PasswordHash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Unique index name tells email and username conflicts apart
			switch pgErr.ConstraintName {
			case "idx_users_email":
				return ErrDuplicateEmail
			case "idx_users_username":
				return ErrDuplicateUsername
			}
			return ErrConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

const userColumns = `id, username, email, avatar, joined_at, review_count, watchlist, password_hash`

// scanUser scans a single user row.
func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Avatar,
		&user.JoinedAt,
		&user.ReviewCount,
		&user.Watchlist,
		&user.PasswordHash,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (p *postgres) GetUser(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(p.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (p *postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	user, err := scanUser(p.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

func (p *postgres) UpdateWatchlist(ctx context.Context, userID, movieID string, action model.WatchlistAction) ([]string, error) {
	var query string
	switch action {
	case model.WatchlistAdd:
		// array_append only when absent keeps the list deduplicated
		query = `UPDATE users
		         SET watchlist = CASE WHEN $2 = ANY(watchlist) THEN watchlist ELSE array_append(watchlist, $2) END
		         WHERE id = $1
		         RETURNING watchlist`
	case model.WatchlistRemove:
		query = `UPDATE users SET watchlist = array_remove(watchlist, $2) WHERE id = $1 RETURNING watchlist`
	default:
		return nil, ErrConflict
	}

	var watchlist []string
	err := p.db.QueryRow(ctx, query, userID, movieID).Scan(&watchlist)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update watchlist: %w", err)
	}
	return watchlist, nil
}

func (p *postgres) CreateSession(ctx context.Context, session model.Session) error {
	query := `INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`

	_, err := p.db.Exec(ctx, query, session.ID, session.UserID, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (p *postgres) GetSession(ctx context.Context, id string) (*model.Session, error) {
	query := `SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = $1 AND expires_at > NOW()`

	var session model.Session
	err := p.db.QueryRow(ctx, query, id).Scan(&session.ID, &session.UserID, &session.CreatedAt, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (p *postgres) DeleteSession(ctx context.Context, id string) error {
	result, err := p.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
