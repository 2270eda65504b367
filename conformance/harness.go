// Package conformance provides a test harness for verifying ReviewFlix
// implementation compliance. It spins an in-process server over any Store
// and exercises the wire contract through the SDK.
package conformance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/reviewflix/reviewflix-go/client"
	"github.com/reviewflix/reviewflix-go/internal/auth"
	"github.com/reviewflix/reviewflix-go/internal/event"
	"github.com/reviewflix/reviewflix-go/internal/model"
	"github.com/reviewflix/reviewflix-go/internal/server"
	"github.com/reviewflix/reviewflix-go/internal/storage"
)

// Harness provides a test harness for ReviewFlix conformance testing.
type Harness struct {
	server *httptest.Server
	store  storage.Store
	pub    event.Publisher
}

// Config holds configuration for the conformance test harness.
type Config struct {
	// Store is the storage backend under test; defaults to in-memory
	Store storage.Store

	// JWTIssuer is the expected session token issuer
	JWTIssuer string

	// JWTAudience is the expected session token audience
	JWTAudience string

	// SessionTTL is the lifetime of sessions created during the run
	SessionTTL time.Duration
}

// conformanceCatalog is the fixed catalog the checks are written against.
func conformanceCatalog() []model.Movie {
	return []model.Movie{
		{ID: "m1", Title: "Neon Harbor", Year: 2020, Genre: []string{"Action"}, Rating: 7.0},
		{ID: "m2", Title: "The Last Reel", Year: 2021, Genre: []string{"Action", "Drama"}, Rating: 9.0},
		{ID: "m3", Title: "Ironline", Year: 2019, Genre: []string{"Action"}, Rating: 8.1},
		{ID: "m4", Title: "Glass Orchard", Year: 2022, Genre: []string{"Action"}, Rating: 6.5},
		{ID: "m5", Title: "Static", Year: 2018, Genre: []string{"Action"}, Rating: 5.2},
		{ID: "m6", Title: "Southern Crossing", Year: 2023, Genre: []string{"Action"}, Rating: 7.8},
	}
}

// NewHarness creates a new conformance test harness.
func NewHarness(cfg Config) (*Harness, error) {
	store := cfg.Store
	if store == nil {
		store = storage.NewMemory()
	}
	if err := store.SeedMovies(context.Background(), conformanceCatalog()); err != nil {
		return nil, fmt.Errorf("failed to seed catalog: %w", err)
	}

	pub := &noopPublisher{}
	tokens := auth.NewTokenManager("conformance-secret", cfg.JWTIssuer, cfg.JWTAudience)

	ttl := cfg.SessionTTL
	if ttl == 0 {
		ttl = time.Hour
	}

	mux := server.NewMux(store, pub, tokens, nil, ttl, nil)
	srv := httptest.NewServer(mux)

	return &Harness{
		server: srv,
		store:  store,
		pub:    pub,
	}, nil
}

// URL returns the base URL of the test server.
func (h *Harness) URL() string {
	return h.server.URL
}

// Client returns a fresh SDK client pointed at the test server.
func (h *Harness) Client() *client.Client {
	return client.New(h.server.URL)
}

// Close shuts down the test server and cleans up resources.
func (h *Harness) Close() {
	h.server.Close()
	h.pub.Close()
}

// RunConformanceTests runs all conformance tests against the implementation.
func (h *Harness) RunConformanceTests(t *testing.T) {
	t.Run("HealthEndpoints", h.testHealthEndpoints)
	t.Run("SimilarConstraints", h.testSimilarConstraints)
	t.Run("TopRatedOrdering", h.testTopRatedOrdering)
	t.Run("DuplicateEmailNoMutation", h.testDuplicateEmailNoMutation)
	t.Run("WatchlistIdempotency", h.testWatchlistIdempotency)
	t.Run("OwnerOnlyDelete", h.testOwnerOnlyDelete)
}

// noopPublisher is a no-op implementation of event.Publisher for testing.
type noopPublisher struct{}

func (n *noopPublisher) PublishReviewCreated(ctx context.Context, review model.Review) error {
	return nil
}

func (n *noopPublisher) PublishReviewDeleted(ctx context.Context, review model.Review) error {
	return nil
}

func (n *noopPublisher) PublishUserRegistered(ctx context.Context, user model.User) error {
	return nil
}

func (n *noopPublisher) PublishWatchlistUpdated(ctx context.Context, userID, movieID string, action model.WatchlistAction) error {
	return nil
}

func (n *noopPublisher) Close() error {
	return nil
}

// register creates a throwaway account on a fresh client.
func (h *Harness) register(t *testing.T, username, email string) (*client.Client, *model.AuthData) {
	t.Helper()
	c := h.Client()
	data, err := c.Auth.Register(context.Background(), model.RegisterRequest{
		Username: username,
		Email:    email,
		Password: "conformance1",
	})
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	return c, data
}

// testHealthEndpoints tests the health check endpoints.
func (h *Harness) testHealthEndpoints(t *testing.T) {
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(h.URL() + path)
		if err != nil {
			t.Fatalf("failed to GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200 for %s, got %d", path, resp.StatusCode)
		}
	}
}

// testSimilarConstraints verifies the similar-movies contract: never the
// queried movie itself, never more than four results, catalog order.
func (h *Harness) testSimilarConstraints(t *testing.T) {
	c := h.Client()
	similar, err := c.Movies.Similar(context.Background(), "m1")
	if err != nil {
		t.Fatalf("similar query failed: %v", err)
	}
	if len(similar) > 4 {
		t.Errorf("similar returned %d results, cap is 4", len(similar))
	}
	prev := ""
	for _, movie := range similar {
		if movie.ID == "m1" {
			t.Error("similar result includes the queried movie")
		}
		if prev != "" && movie.ID < prev {
			t.Errorf("similar results out of catalog order: %s after %s", movie.ID, prev)
		}
		prev = movie.ID
	}
}

// testTopRatedOrdering verifies top-rated returns five movies by rating
// descending.
func (h *Harness) testTopRatedOrdering(t *testing.T) {
	c := h.Client()
	top, err := c.Movies.TopRated(context.Background())
	if err != nil {
		t.Fatalf("top-rated query failed: %v", err)
	}
	if len(top) != 5 {
		t.Fatalf("expected 5 top-rated movies, got %d", len(top))
	}
	for i := 1; i < len(top); i++ {
		if top[i].Rating > top[i-1].Rating {
			t.Errorf("top-rated not descending at index %d: %.1f > %.1f", i, top[i].Rating, top[i-1].Rating)
		}
	}
}

// testDuplicateEmailNoMutation verifies a rejected duplicate registration
// leaves the original account untouched.
func (h *Harness) testDuplicateEmailNoMutation(t *testing.T) {
	_, _ = h.register(t, "origuser", "dup@example.com")

	c := h.Client()
	_, err := c.Auth.Register(context.Background(), model.RegisterRequest{
		Username: "otheruser",
		Email:    "dup@example.com",
		Password: "different1",
	})
	if !client.IsCode(err, "RVW_DUPLICATE_EMAIL") {
		t.Fatalf("expected RVW_DUPLICATE_EMAIL, got %v", err)
	}

	// The original credentials still authenticate
	if _, err := c.Auth.Login(context.Background(), "dup@example.com", "conformance1"); err != nil {
		t.Errorf("original account no longer authenticates: %v", err)
	}
}

// testWatchlistIdempotency verifies add and remove are idempotent.
func (h *Harness) testWatchlistIdempotency(t *testing.T) {
	c, data := h.register(t, "wluser", "wl@example.com")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		wl, err := c.Users.UpdateWatchlist(ctx, data.User.ID, "m2", model.WatchlistAdd)
		if err != nil {
			t.Fatalf("watchlist add failed: %v", err)
		}
		if len(wl) != 1 {
			t.Errorf("after add %d watchlist has %d entries, want 1", i+1, len(wl))
		}
	}
	for i := 0; i < 2; i++ {
		wl, err := c.Users.UpdateWatchlist(ctx, data.User.ID, "m2", model.WatchlistRemove)
		if err != nil {
			t.Fatalf("watchlist remove failed: %v", err)
		}
		if len(wl) != 0 {
			t.Errorf("after remove %d watchlist has %d entries, want 0", i+1, len(wl))
		}
	}
}

// testOwnerOnlyDelete verifies only a review's author can delete it.
func (h *Harness) testOwnerOnlyDelete(t *testing.T) {
	author, _ := h.register(t, "delauthor", "delauthor@example.com")
	intruder, _ := h.register(t, "delintruder", "delintruder@example.com")
	ctx := context.Background()

	review, err := author.Reviews.Create(ctx, model.CreateReviewRequest{
		MovieID: "m3",
		Rating:  8,
		Content: "solid",
	})
	if err != nil {
		t.Fatalf("failed to create review: %v", err)
	}

	if err := intruder.Reviews.Delete(ctx, review.ID); !client.IsCode(err, "RVW_FORBIDDEN") {
		t.Errorf("expected RVW_FORBIDDEN for foreign delete, got %v", err)
	}
	if err := author.Reviews.Delete(ctx, review.ID); err != nil {
		t.Errorf("owner delete failed: %v", err)
	}
	if err := author.Reviews.Delete(ctx, review.ID); !client.IsCode(err, "RVW_NOT_FOUND") {
		t.Errorf("expected RVW_NOT_FOUND on repeat delete, got %v", err)
	}
}
