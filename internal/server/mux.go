// internal/server/mux.go
// Package server implements the HTTP handlers and routing for the ReviewFlix
// service. It provides RESTful endpoints for catalog, review, watchlist, and
// session operations with bearer-token authentication and event publishing.
package server

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/reviewflix/reviewflix-go/internal/auth"
	"github.com/reviewflix/reviewflix-go/internal/catalog"
	errordefs "github.com/reviewflix/reviewflix-go/internal/errors"
	"github.com/reviewflix/reviewflix-go/internal/event"
	"github.com/reviewflix/reviewflix-go/internal/media"
	"github.com/reviewflix/reviewflix-go/internal/metrics"
	"github.com/reviewflix/reviewflix-go/internal/model"
	"github.com/reviewflix/reviewflix-go/internal/storage"
)

// ContextKey is used for context values to avoid collisions
// when storing values in request context
type ContextKey string

const (
	// Context keys for storing request-scoped values
	ContextKeyUserID        ContextKey = "userId"        // Authenticated user ID from the session token
	ContextKeySessionID     ContextKey = "sessionId"     // Session ID from the session token
	ContextKeyCorrelationID ContextKey = "correlationId" // Unique ID for request tracking

	// artworkURLTTL bounds how long presigned poster/backdrop links stay valid
	artworkURLTTL = 1 * time.Hour
)

// Mux handles HTTP requests for the ReviewFlix service.
// It implements all the required endpoints and manages dependencies
// such as storage, event publishing, and session token validation.
type Mux struct {
	mux         *http.ServeMux     // HTTP request multiplexer
	s           storage.Store      // Storage interface for movies, reviews, users, sessions
	p           event.Publisher    // Event publisher for activity streaming
	tokens      *auth.TokenManager // Session token issuer and verifier
	mediaClient *media.Client      // S3 client for poster artwork (can be nil)
	metrics     *metrics.Metrics   // Metrics for monitoring

	// Session configuration
	sessionTTL time.Duration // Lifetime of newly created sessions

	// CORS configuration
	corsAllowedOrigins []string // Allowed origins for CORS (empty means deny all)
}

// NewMux creates a new HTTP mux with all ReviewFlix endpoints.
// It registers the HTTP handlers and wires the shared dependencies.
// Parameters:
//   - s: Storage interface for data persistence
//   - p: Event publisher for activity streaming
//   - tokens: Session token manager for issuing and verifying bearer tokens
//   - mediaClient: S3 client for artwork URL resolution (can be nil)
//   - sessionTTL: Lifetime of sessions created by login and register
//   - corsAllowedOrigins: Origins allowed by the CORS middleware
func NewMux(s storage.Store, p event.Publisher, tokens *auth.TokenManager, mediaClient *media.Client, sessionTTL time.Duration, corsAllowedOrigins []string) *http.ServeMux {
	m := &Mux{
		mux:                http.NewServeMux(),
		s:                  s,
		p:                  p,
		tokens:             tokens,
		mediaClient:        mediaClient,
		metrics:            metrics.NewMetrics(),
		sessionTTL:         sessionTTL,
		corsAllowedOrigins: corsAllowedOrigins,
	}

	// Register health endpoints
	m.mux.HandleFunc("/healthz", m.handleHealthz)
	m.mux.HandleFunc("/readyz", m.handleReadyz)
	m.mux.Handle("/metrics", promhttp.Handler())

	// Catalog endpoints (public)
	m.mux.HandleFunc("/v1/movies", m.method("GET", m.withMiddleware(m.handleListMovies)))
	m.mux.HandleFunc("/v1/movies/", m.method("GET", m.withMiddleware(m.handleMovieSubtree)))

	// Review endpoints
	m.mux.HandleFunc("/v1/reviews", m.method("POST", m.withMiddleware(m.withAuth(m.handleCreateReview))))
	m.mux.HandleFunc("/v1/reviews/", m.withMiddleware(m.handleReviewSubtree))

	// Auth endpoints
	m.mux.HandleFunc("/v1/auth/login", m.method("POST", m.withMiddleware(m.handleLogin)))
	m.mux.HandleFunc("/v1/auth/register", m.method("POST", m.withMiddleware(m.handleRegister)))
	m.mux.HandleFunc("/v1/auth/me", m.method("GET", m.withMiddleware(m.withAuth(m.handleMe))))
	m.mux.HandleFunc("/v1/auth/logout", m.method("POST", m.withMiddleware(m.withAuth(m.handleLogout))))

	// User endpoints
	m.mux.HandleFunc("/v1/users/", m.withMiddleware(m.handleUserSubtree))

	return m.mux
}

// method ensures the HTTP method matches the expected method
func (m *Mux) method(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method && r.Method != http.MethodOptions {
			err := errordefs.New(errordefs.RVW_BAD_REQUEST, "method not allowed", "")
			m.writeErrorDef(w, err)
			return
		}
		h(w, r)
	}
}

// withMiddleware applies common middleware to handlers
func (m *Mux) withMiddleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Handle CORS preflight requests
		if r.Method == http.MethodOptions {
			m.setCORSHeaders(w, r, true)
			w.WriteHeader(http.StatusOK)
			return
		}

		// Set CORS headers for regular requests
		m.setCORSHeaders(w, r, false)

		// Add correlation ID if not present
		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		r = r.WithContext(context.WithValue(r.Context(), ContextKeyCorrelationID, correlationID))
		w.Header().Set("X-Correlation-Id", correlationID)

		// Record request metrics on completion
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)

		status := strconv.Itoa(sw.status)
		m.metrics.HTTPRequestTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		m.metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
		m.logRequest(r, sw.status, time.Since(start), correlationID, nil)
	}
}

// statusWriter records the status code written by a handler
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// setCORSHeaders applies the configured CORS policy to the response
func (m *Mux) setCORSHeaders(w http.ResponseWriter, r *http.Request, preflight bool) {
	if len(m.corsAllowedOrigins) == 0 {
		return
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	for _, allowedOrigin := range m.corsAllowedOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	if preflight {
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Correlation-Id")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours
	}
}

// withAuth validates the bearer token and checks the backing session before
// calling the handler. The authenticated user and session IDs are placed in
// the request context.
func (m *Mux) withAuth(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correlationID, _ := r.Context().Value(ContextKeyCorrelationID).(string)

		userID, sessionID, err := m.validateToken(r)
		if err != nil {
			var errorDef *errordefs.Error
			if e, ok := err.(*errordefs.Error); ok {
				errorDef = e
				errorDef.CorrelationID = correlationID
			} else {
				errorDef = errordefs.New(errordefs.RVW_INVALID_SESSION, err.Error(), correlationID)
			}
			m.writeErrorDef(w, errorDef)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyUserID, userID)
		ctx = context.WithValue(ctx, ContextKeySessionID, sessionID)
		h(w, r.WithContext(ctx))
	}
}

// validateToken verifies the bearer token and confirms the session it names
// still exists. A verified token whose session was deleted (logout) or
// expired is rejected.
func (m *Mux) validateToken(r *http.Request) (string, string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", "", errordefs.New(errordefs.RVW_INVALID_SESSION, "missing Authorization header", "")
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "", errordefs.New(errordefs.RVW_INVALID_SESSION, "invalid Authorization header format", "")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	userID, sessionID, err := m.tokens.Verify(tokenString)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return "", "", errordefs.New(errordefs.RVW_INVALID_SESSION, "session token expired", "")
		}
		return "", "", errordefs.New(errordefs.RVW_INVALID_SESSION, "invalid session token", "")
	}

	session, err := m.s.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", "", errordefs.New(errordefs.RVW_INVALID_SESSION, "session not found or expired", "")
		}
		return "", "", errordefs.New(errordefs.RVW_INTERNAL, "failed to look up session", "")
	}
	if session.UserID != userID {
		return "", "", errordefs.New(errordefs.RVW_INVALID_SESSION, "session does not belong to token subject", "")
	}

	return userID, sessionID, nil
}

// correlationID extracts the request correlation ID from the context
func (m *Mux) correlationID(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyCorrelationID).(string)
	return id
}

// writeSuccess writes a successful response
func (m *Mux) writeSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]interface{}{
		"data": data,
	}
	_ = json.NewEncoder(w).Encode(response)
}

// writeError writes an error response following the ReviewFlix error taxonomy
func (m *Mux) writeError(w http.ResponseWriter, statusCode int, code, message, correlationID string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]interface{}{
		"error": map[string]interface{}{
			"code":          code,
			"message":       message,
			"correlationId": correlationID,
		},
	}

	if details != nil {
		response["error"].(map[string]interface{})["details"] = details
	}

	_ = json.NewEncoder(w).Encode(response)
}

// writeErrorDef writes an error response using the error definitions package
func (m *Mux) writeErrorDef(w http.ResponseWriter, err *errordefs.Error) {
	m.writeError(w, err.HTTPStatus, string(err.Code), err.Message, err.CorrelationID, err.Details)
}

// logRequest logs request details
func (m *Mux) logRequest(r *http.Request, status int, duration time.Duration, correlationID string, err error) {
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
		slog.String("user_agent", r.UserAgent()),
		slog.String("remote_addr", r.RemoteAddr),
	}

	if correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	if userID, ok := r.Context().Value(ContextKeyUserID).(string); ok && userID != "" {
		attrs = append(attrs, slog.String("user_id", userID))
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		slog.LogAttrs(r.Context(), slog.LevelError, "request completed with error", attrs...)
	} else {
		slog.LogAttrs(r.Context(), slog.LevelInfo, "request completed", attrs...)
	}
}

// handleHealthz handles liveness health check requests
func (m *Mux) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz handles readiness health check requests
func (m *Mux) handleReadyz(w http.ResponseWriter, r *http.Request) {
	// Probe the store with a bounded count query. Any storage error means
	// the backing database is unreachable.
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := m.s.CountMovies(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// resolveArtwork rewrites s3:// poster and backdrop URIs to presigned GET
// URLs when an S3 client is configured. Resolution failures fall back to the
// stored URI so a media outage never breaks catalog reads.
func (m *Mux) resolveArtwork(ctx context.Context, movie *model.Movie) {
	if m.mediaClient == nil {
		return
	}
	if url, err := m.mediaClient.ResolveURI(ctx, movie.Poster, artworkURLTTL); err == nil {
		movie.Poster = url
	} else {
		slog.Warn("failed to resolve poster URI", "movie_id", movie.ID, "error", err)
	}
	if url, err := m.mediaClient.ResolveURI(ctx, movie.Backdrop, artworkURLTTL); err == nil {
		movie.Backdrop = url
	} else {
		slog.Warn("failed to resolve backdrop URI", "movie_id", movie.ID, "error", err)
	}
}

func (m *Mux) resolveArtworkAll(ctx context.Context, movies []model.Movie) {
	for i := range movies {
		m.resolveArtwork(ctx, &movies[i])
	}
}

// handleListMovies handles GET /v1/movies with optional q, genre, and sort
// query parameters. Filtering is conjunctive; sorting defaults to catalog
// order when no sort key is given.
func (m *Mux) handleListMovies(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("reviewflix-service").Start(r.Context(), "handleListMovies")
	defer span.End()

	movies, err := m.s.ListMovies(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "failed to list movies")
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_INTERNAL, "failed to list movies", m.correlationID(ctx)))
		return
	}

	query := r.URL.Query()
	filter := catalog.Filter{
		Query: query.Get("q"),
		Genre: query.Get("genre"),
	}
	movies = catalog.Apply(movies, filter)

	if sortKey := query.Get("sort"); sortKey != "" {
		switch catalog.SortKey(sortKey) {
		case catalog.SortByRating, catalog.SortByYear, catalog.SortByTitle:
			movies = catalog.Sort(movies, catalog.SortKey(sortKey))
		default:
			m.writeErrorDef(w, errordefs.New(errordefs.RVW_VALIDATION, fmt.Sprintf("unknown sort key %q", sortKey), m.correlationID(ctx)))
			return
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(movies)))
	m.resolveArtworkAll(ctx, movies)
	m.writeSuccess(w, http.StatusOK, movies)
}

// handleMovieSubtree dispatches GET /v1/movies/* requests:
// /v1/movies/top-rated, /v1/movies/search, /v1/movies/{id}, and
// /v1/movies/{id}/similar.
func (m *Mux) handleMovieSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/movies/")
	switch {
	case rest == "top-rated":
		m.handleTopRated(w, r)
	case rest == "search":
		m.handleSearch(w, r)
	case strings.HasSuffix(rest, "/similar"):
		m.handleSimilar(w, r, strings.TrimSuffix(rest, "/similar"))
	case rest != "" && !strings.Contains(rest, "/"):
		m.handleGetMovie(w, r, rest)
	default:
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_NOT_FOUND, "no such route", m.correlationID(r.Context())))
	}
}

// handleTopRated handles GET /v1/movies/top-rated
func (m *Mux) handleTopRated(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("reviewflix-service").Start(r.Context(), "handleTopRated")
	defer span.End()

	movies, err := m.s.ListMovies(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "failed to list movies")
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_INTERNAL, "failed to list movies", m.correlationID(ctx)))
		return
	}

	top := catalog.TopRated(movies)
	m.resolveArtworkAll(ctx, top)
	m.writeSuccess(w, http.StatusOK, top)
}

// handleSearch handles GET /v1/movies/search?q=
func (m *Mux) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("reviewflix-service").Start(r.Context(), "handleSearch")
	defer span.End()

	q := r.URL.Query().Get("q")
	span.SetAttributes(attribute.String("query", q))

	movies, err := m.s.ListMovies(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "failed to list movies")
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_INTERNAL, "failed to list movies", m.correlationID(ctx)))
		return
	}

	results := catalog.Search(movies, q)
	m.resolveArtworkAll(ctx, results)
	m.writeSuccess(w, http.StatusOK, results)
}

// handleGetMovie handles GET /v1/movies/{id}. The response carries the
// aggregate rating derived from the movie's reviews alongside the review
// count so callers can tell a derived aggregate from the catalog rating.
func (m *Mux) handleGetMovie(w http.ResponseWriter, r *http.Request, movieID string) {
	ctx, span := otel.Tracer("reviewflix-service").Start(r.Context(), "handleGetMovie")
	defer span.End()

	span.SetAttributes(attribute.String("movie_id", movieID))

	movie, err := m.s.GetMovie(ctx, movieID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.writeErrorDef(w, errordefs.New(errordefs.RVW_NOT_FOUND, "movie not found", m.correlationID(ctx)))
			return
		}
		span.SetStatus(codes.Error, "failed to get movie")
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_INTERNAL, "failed to get movie", m.correlationID(ctx)))
		return
	}

	reviews, err := m.s.ListReviewsByMovie(ctx, movieID)
	if err != nil {
		span.SetStatus(codes.Error, "failed to list reviews")
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_INTERNAL, "failed to list reviews", m.correlationID(ctx)))
		return
	}

	m.resolveArtwork(ctx, movie)
	detail := model.MovieDetail{
		Movie:           *movie,
		AggregateRating: catalog.AggregateRating(*movie, reviews),
		ReviewCount:     len(reviews),
	}
	m.writeSuccess(w, http.StatusOK, detail)
}

// handleSimilar handles GET /v1/movies/{id}/similar. An unknown movie id
// yields an empty list rather than an error, matching the catalog query
// contract.
func (m *Mux) handleSimilar(w http.ResponseWriter, r *http.Request, movieID string) {
	ctx, span := otel.Tracer("reviewflix-service").Start(r.Context(), "handleSimilar")
	defer span.End()

	span.SetAttributes(attribute.String("movie_id", movieID))

	movies, err := m.s.ListMovies(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "failed to list movies")
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_INTERNAL, "failed to list movies", m.correlationID(ctx)))
		return
	}

	similar := catalog.Similar(movies, movieID)
	m.resolveArtworkAll(ctx, similar)
	m.writeSuccess(w, http.StatusOK, similar)
}

// handleReviewSubtree dispatches /v1/reviews/* requests:
// GET /v1/reviews/movie/{movieId}, GET /v1/reviews/user/{userId},
// DELETE /v1/reviews/{id}.
func (m *Mux) handleReviewSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/reviews/")
	switch {
	case strings.HasPrefix(rest, "movie/"):
		if r.Method != http.MethodGet {
			m.writeErrorDef(w, errordefs.New(errordefs.RVW_BAD_REQUEST, "method not allowed", m.correlationID(r.Context())))
			return
		}
		m.handleReviewsByMovie(w, r, strings.TrimPrefix(rest, "movie/"))
	case strings.HasPrefix(rest, "user/"):
		if r.Method != http.MethodGet {
			m.writeErrorDef(w, errordefs.New(errordefs.RVW_BAD_REQUEST, "method not allowed", m.correlationID(r.Context())))
			return
		}
		m.handleReviewsByUser(w, r, strings.TrimPrefix(rest, "user/"))
	case rest != "" && !strings.Contains(rest, "/"):
		if r.Method != http.MethodDelete {
			m.writeErrorDef(w, errordefs.New(errordefs.RVW_BAD_REQUEST, "method not allowed", m.correlationID(r.Context())))
			return
		}
		m.withAuth(func(w http.ResponseWriter, r *http.Request) {
			m.handleDeleteReview(w, r, rest)
		})(w, r)
	default:
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_NOT_FOUND, "no such route", m.correlationID(r.Context())))
	}
}

// handleReviewsByMovie handles GET /v1/reviews/movie/{movieId}
func (m *Mux) handleReviewsByMovie(w http.ResponseWriter, r *http.Request, movieID string) {
	ctx, span := otel.Tracer("reviewflix-service").Start(r.Context(), "handleReviewsByMovie")
	defer span.End()

	span.SetAttributes(attribute.String("movie_id", movieID))

	reviews, err := m.s.ListReviewsByMovie(ctx, movieID)
	if err != nil {
		span.SetStatus(codes.Error, "failed to list reviews")
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_INTERNAL, "failed to list reviews", m.correlationID(ctx)))
		return
	}

	m.writeSuccess(w, http.StatusOK, reviews)
}

// handleReviewsByUser handles GET /v1/reviews/user/{userId}
func (m *Mux) handleReviewsByUser(w http.ResponseWriter, r *http.Request, userID string) {
	ctx, span := otel.Tracer("reviewflix-service").Start(r.Context(), "handleReviewsByUser")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	reviews, err := m.s.ListReviewsByUser(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, "failed to list reviews")
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_INTERNAL, "failed to list reviews", m.correlationID(ctx)))
		return
	}

	m.writeSuccess(w, http.StatusOK, reviews)
}

// handleCreateReview handles POST /v1/reviews
func (m *Mux) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("reviewflix-service").Start(r.Context(), "handleCreateReview")
	defer span.End()
	defer r.Body.Close()

	correlationID := m.correlationID(ctx)

	var req model.CreateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.SetStatus(codes.Error, "invalid JSON")
		m.metrics.ReviewTotal.WithLabelValues("create", "rejected").Inc()
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_VALIDATION, "invalid JSON", correlationID))
		return
	}

	span.SetAttributes(
		attribute.String("movie_id", req.MovieID),
		attribute.Int("rating", req.Rating),
	)

	if req.MovieID == "" {
		m.metrics.ReviewTotal.WithLabelValues("create", "rejected").Inc()
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_VALIDATION, "movieId is required", correlationID))
		return
	}
	if req.Rating < model.MinReviewRating || req.Rating > model.MaxReviewRating {
		m.metrics.ReviewTotal.WithLabelValues("create", "rejected").Inc()
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_VALIDATION,
			fmt.Sprintf("rating must be between %d and %d", model.MinReviewRating, model.MaxReviewRating), correlationID))
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		m.metrics.ReviewTotal.WithLabelValues("create", "rejected").Inc()
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_VALIDATION, "content is required", correlationID))
		return
	}
	if len(content) > model.MaxReviewContent {
		m.metrics.ReviewTotal.WithLabelValues("create", "rejected").Inc()
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_VALIDATION,
			fmt.Sprintf("content must be at most %d characters", model.MaxReviewContent), correlationID))
		return
	}

	if _, err := m.s.GetMovie(ctx, req.MovieID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.metrics.ReviewTotal.WithLabelValues("create", "rejected").Inc()
			m.writeErrorDef(w, errordefs.New(errordefs.RVW_NOT_FOUND, "movie not found", correlationID))
			return
		}
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_INTERNAL, "failed to get movie", correlationID))
		return
	}

	userID := ctx.Value(ContextKeyUserID).(string)
	user, err := m.s.GetUser(ctx, userID)
	if err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_INTERNAL, "failed to load user", correlationID))
		return
	}

	// ULID review IDs sort by creation time
	entropy := ulid.Monotonic(rand.Reader, 0)
	review := model.Review{
		ID:        ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String(),
		MovieID:   req.MovieID,
		UserID:    userID,
		Username:  user.Username,
		Rating:    req.Rating,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		Likes:     0,
	}

	if err := m.s.CreateReview(ctx, review); err != nil {
		span.SetStatus(codes.Error, "failed to create review")
		m.metrics.ReviewTotal.WithLabelValues("create", "error").Inc()
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_INTERNAL, "failed to create review", correlationID))
		return
	}
	m.metrics.ReviewTotal.WithLabelValues("create", "ok").Inc()

	if err := m.p.PublishReviewCreated(ctx, review); err != nil {
		slog.Warn("failed to publish review created event", "error", err)
		m.metrics.EventPublishTotal.WithLabelValues("review.created", "error").Inc()
	} else {
		m.metrics.EventPublishTotal.WithLabelValues("review.created", "ok").Inc()
	}

	m.writeSuccess(w, http.StatusCreated, review)
}

// handleDeleteReview handles DELETE /v1/reviews/{id}. Only the review's
// author may delete it.
func (m *Mux) handleDeleteReview(w http.ResponseWriter, r *http.Request, reviewID string) {
	ctx, span := otel.Tracer("reviewflix-service").Start(r.Context(), "handleDeleteReview")
	defer span.End()

	correlationID := m.correlationID(ctx)
	span.SetAttributes(attribute.String("review_id", reviewID))

	review, err := m.s.GetReview(ctx, reviewID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.metrics.ReviewTotal.WithLabelValues("delete", "rejected").Inc()
			m.writeErrorDef(w, errordefs.New(errordefs.RVW_NOT_FOUND, "review not found", correlationID))
			return
		}
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_INTERNAL, "failed to get review", correlationID))
		return
	}

	userID := ctx.Value(ContextKeyUserID).(string)
	if review.UserID != userID {
		m.metrics.ReviewTotal.WithLabelValues("delete", "rejected").Inc()
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_FORBIDDEN, "only the review author may delete it", correlationID))
		return
	}

	if err := m.s.DeleteReview(ctx, reviewID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.writeErrorDef(w, errordefs.New(errordefs.RVW_NOT_FOUND, "review not found", correlationID))
			return
		}
		span.SetStatus(codes.Error, "failed to delete review")
		m.metrics.ReviewTotal.WithLabelValues("delete", "error").Inc()
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_INTERNAL, "failed to delete review", correlationID))
		return
	}
	m.metrics.ReviewTotal.WithLabelValues("delete", "ok").Inc()

	if err := m.p.PublishReviewDeleted(ctx, *review); err != nil {
		slog.Warn("failed to publish review deleted event", "error", err)
		m.metrics.EventPublishTotal.WithLabelValues("review.deleted", "error").Inc()
	} else {
		m.metrics.EventPublishTotal.WithLabelValues("review.deleted", "ok").Inc()
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleLogin handles POST /v1/auth/login. Credential failures are
// indistinguishable to the caller: unknown email, short password, and wrong
// password all produce the same error.
func (m *Mux) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("reviewflix-service").Start(r.Context(), "handleLogin")
	defer span.End()
	defer r.Body.Close()

	correlationID := m.correlationID(ctx)

	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.SetStatus(codes.Error, "invalid JSON")
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_VALIDATION, "invalid JSON", correlationID))
		return
	}

	if req.Email == "" || req.Password == "" {
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_VALIDATION, "email and password are required", correlationID))
		return
	}

	if len(req.Password) < model.MinPasswordLen {
		m.metrics.AuthAttemptTotal.WithLabelValues("login", "failed").Inc()
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_INVALID_CREDENTIALS, "invalid email or password", correlationID))
		return
	}

	user, err := m.s.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.metrics.AuthAttemptTotal.WithLabelValues("login", "failed").Inc()
			m.writeErrorDef(w, errordefs.New(errordefs.RVW_INVALID_CREDENTIALS, "invalid email or password", correlationID))
			return
		}
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_INTERNAL, "failed to look up user", correlationID))
		return
	}

	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		m.metrics.AuthAttemptTotal.WithLabelValues("login", "failed").Inc()
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_INVALID_CREDENTIALS, "invalid email or password", correlationID))
		return
	}

	authData, errDef := m.openSession(ctx, user, correlationID)
	if errDef != nil {
		m.writeErrorDef(w, errDef)
		return
	}

	m.metrics.AuthAttemptTotal.WithLabelValues("login", "ok").Inc()
	m.writeSuccess(w, http.StatusOK, authData)
}

// handleRegister handles POST /v1/auth/register. A duplicate email is
// rejected without creating or mutating any user record.
func (m *Mux) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("reviewflix-service").Start(r.Context(), "handleRegister")
	defer span.End()
	defer r.Body.Close()

	correlationID := m.correlationID(ctx)

	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.SetStatus(codes.Error, "invalid JSON")
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_VALIDATION, "invalid JSON", correlationID))
		return
	}

	if errDef := validateRegistration(req, correlationID); errDef != nil {
		m.metrics.AuthAttemptTotal.WithLabelValues("register", "rejected").Inc()
		m.writeErrorDef(w, errDef)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_INTERNAL, "failed to hash password", correlationID))
		return
	}

	user := model.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		Avatar:       fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/svg?seed=%s", req.Username),
		JoinedAt:     time.Now().UTC(),
		ReviewCount:  0,
		Watchlist:    []string{},
		PasswordHash: hash,
	}

	if err := m.s.CreateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicateEmail):
			m.metrics.AuthAttemptTotal.WithLabelValues("register", "rejected").Inc()
			m.writeErrorDef(w, errordefs.New(errordefs.RVW_DUPLICATE_EMAIL, "email already registered", correlationID))
		case errors.Is(err, storage.ErrDuplicateUsername):
			m.metrics.AuthAttemptTotal.WithLabelValues("register", "rejected").Inc()
			m.writeErrorDef(w, errordefs.New(errordefs.RVW_CONFLICT, "username already taken", correlationID))
		default:
			span.SetStatus(codes.Error, "failed to create user")
			m.writeErrorDef(w, errordefs.New(errordefs.RVW_INTERNAL, "failed to create user", correlationID))
		}
		return
	}

	if err := m.p.PublishUserRegistered(ctx, user); err != nil {
		slog.Warn("failed to publish user registered event", "error", err)
		m.metrics.EventPublishTotal.WithLabelValues("user.registered", "error").Inc()
	} else {
		m.metrics.EventPublishTotal.WithLabelValues("user.registered", "ok").Inc()
	}

	authData, errDef := m.openSession(ctx, &user, correlationID)
	if errDef != nil {
		m.writeErrorDef(w, errDef)
		return
	}

	m.metrics.AuthAttemptTotal.WithLabelValues("register", "ok").Inc()
	m.writeSuccess(w, http.StatusCreated, authData)
}

// validateRegistration checks registration request fields
func validateRegistration(req model.RegisterRequest, correlationID string) *errordefs.Error {
	if len(req.Username) < model.MinUsernameLen || len(req.Username) > model.MaxUsernameLen {
		return errordefs.New(errordefs.RVW_VALIDATION,
			fmt.Sprintf("username must be between %d and %d characters", model.MinUsernameLen, model.MaxUsernameLen), correlationID)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return errordefs.New(errordefs.RVW_VALIDATION, "invalid email address", correlationID)
	}
	if len(req.Password) < model.MinPasswordLen {
		return errordefs.New(errordefs.RVW_VALIDATION,
			fmt.Sprintf("password must be at least %d characters", model.MinPasswordLen), correlationID)
	}
	return nil
}

// openSession creates a session for the user and issues a bearer token
func (m *Mux) openSession(ctx context.Context, user *model.User, correlationID string) (*model.AuthData, *errordefs.Error) {
	session := model.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(m.sessionTTL),
	}
	if err := m.s.CreateSession(ctx, session); err != nil {
		return nil, errordefs.New(errordefs.RVW_INTERNAL, "failed to create session", correlationID)
	}

	token, err := m.tokens.Issue(user.ID, session.ID, session.ExpiresAt)
	if err != nil {
		return nil, errordefs.New(errordefs.RVW_INTERNAL, "failed to issue session token", correlationID)
	}

	return &model.AuthData{User: *user, Token: token}, nil
}

// handleMe handles GET /v1/auth/me
func (m *Mux) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("reviewflix-service").Start(r.Context(), "handleMe")
	defer span.End()

	correlationID := m.correlationID(ctx)
	userID := ctx.Value(ContextKeyUserID).(string)

	user, err := m.s.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// The session outlived the user record
			m.writeErrorDef(w, errordefs.New(errordefs.RVW_INVALID_SESSION, "user no longer exists", correlationID))
			return
		}
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_INTERNAL, "failed to load user", correlationID))
		return
	}

	m.writeSuccess(w, http.StatusOK, user)
}

// handleLogout handles POST /v1/auth/logout
func (m *Mux) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("reviewflix-service").Start(r.Context(), "handleLogout")
	defer span.End()

	sessionID := ctx.Value(ContextKeySessionID).(string)
	if err := m.s.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_INTERNAL, "failed to delete session", m.correlationID(ctx)))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleUserSubtree dispatches /v1/users/* requests:
// GET /v1/users/{id}, PUT /v1/users/{id}/watchlist.
func (m *Mux) handleUserSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	switch {
	case strings.HasSuffix(rest, "/watchlist"):
		if r.Method != http.MethodPut {
			m.writeErrorDef(w, errordefs.New(errordefs.RVW_BAD_REQUEST, "method not allowed", m.correlationID(r.Context())))
			return
		}
		userID := strings.TrimSuffix(rest, "/watchlist")
		m.withAuth(func(w http.ResponseWriter, r *http.Request) {
			m.handleUpdateWatchlist(w, r, userID)
		})(w, r)
	case rest != "" && !strings.Contains(rest, "/"):
		if r.Method != http.MethodGet {
			m.writeErrorDef(w, errordefs.New(errordefs.RVW_BAD_REQUEST, "method not allowed", m.correlationID(r.Context())))
			return
		}
		m.handleGetUser(w, r, rest)
	default:
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_NOT_FOUND, "no such route", m.correlationID(r.Context())))
	}
}

// handleGetUser handles GET /v1/users/{id}
func (m *Mux) handleGetUser(w http.ResponseWriter, r *http.Request, userID string) {
	ctx, span := otel.Tracer("reviewflix-service").Start(r.Context(), "handleGetUser")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	user, err := m.s.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.writeErrorDef(w, errordefs.New(errordefs.RVW_USER_NOT_FOUND, "user not found", m.correlationID(ctx)))
			return
		}
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_INTERNAL, "failed to load user", m.correlationID(ctx)))
		return
	}

	m.writeSuccess(w, http.StatusOK, user)
}

// handleUpdateWatchlist handles PUT /v1/users/{id}/watchlist. Users may only
// mutate their own watchlist. Both actions are idempotent.
func (m *Mux) handleUpdateWatchlist(w http.ResponseWriter, r *http.Request, userID string) {
	ctx, span := otel.Tracer("reviewflix-service").Start(r.Context(), "handleUpdateWatchlist")
	defer span.End()
	defer r.Body.Close()

	correlationID := m.correlationID(ctx)
	span.SetAttributes(attribute.String("user_id", userID))

	authUserID := ctx.Value(ContextKeyUserID).(string)
	if userID != authUserID {
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_FORBIDDEN, "watchlist belongs to another user", correlationID))
		return
	}

	var req model.UpdateWatchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.SetStatus(codes.Error, "invalid JSON")
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_VALIDATION, "invalid JSON", correlationID))
		return
	}

	if req.MovieID == "" {
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_VALIDATION, "movieId is required", correlationID))
		return
	}
	if req.Action != model.WatchlistAdd && req.Action != model.WatchlistRemove {
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_VALIDATION, "action must be add or remove", correlationID))
		return
	}

	span.SetAttributes(
		attribute.String("movie_id", req.MovieID),
		attribute.String("action", string(req.Action)),
	)

	if req.Action == model.WatchlistAdd {
		if _, err := m.s.GetMovie(ctx, req.MovieID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				m.writeErrorDef(w, errordefs.New(errordefs.RVW_NOT_FOUND, "movie not found", correlationID))
				return
			}
			m.writeErrorDef(w, errordefs.New(errordefs.RVW_INTERNAL, "failed to get movie", correlationID))
			return
		}
	}

	watchlist, err := m.s.UpdateWatchlist(ctx, userID, req.MovieID, req.Action)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.writeErrorDef(w, errordefs.New(errordefs.RVW_USER_NOT_FOUND, "user not found", correlationID))
			return
		}
		span.SetStatus(codes.Error, "failed to update watchlist")
		m.writeErrorDef(w, errordefs.New(errordefs.RVW_INTERNAL, "failed to update watchlist", correlationID))
		return
	}

	if err := m.p.PublishWatchlistUpdated(ctx, userID, req.MovieID, req.Action); err != nil {
		slog.Warn("failed to publish watchlist updated event", "error", err)
		m.metrics.EventPublishTotal.WithLabelValues("watchlist.updated", "error").Inc()
	} else {
		m.metrics.EventPublishTotal.WithLabelValues("watchlist.updated", "ok").Inc()
	}

	m.writeSuccess(w, http.StatusOK, model.WatchlistData{Watchlist: watchlist})
}
