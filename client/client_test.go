// client/client_test.go
// Package client provides unit tests for the SDK against an in-process
// server backed by the in-memory store.
package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/reviewflix/reviewflix-go/internal/auth"
	"github.com/reviewflix/reviewflix-go/internal/event"
	"github.com/reviewflix/reviewflix-go/internal/model"
	"github.com/reviewflix/reviewflix-go/internal/server"
	"github.com/reviewflix/reviewflix-go/internal/storage"
)

// noopPublisher implements event.Publisher for testing.
type noopPublisher struct{}

func (noopPublisher) PublishReviewCreated(ctx context.Context, review model.Review) error { return nil }
func (noopPublisher) PublishReviewDeleted(ctx context.Context, review model.Review) error { return nil }
func (noopPublisher) PublishUserRegistered(ctx context.Context, user model.User) error    { return nil }
func (noopPublisher) PublishWatchlistUpdated(ctx context.Context, userID, movieID string, action model.WatchlistAction) error {
	return nil
}
func (noopPublisher) Close() error { return nil }

var _ event.Publisher = noopPublisher{}

// newTestServer starts an in-process ReviewFlix server with a seeded
// catalog and returns a client pointed at it.
func newTestServer(t *testing.T) *Client {
	t.Helper()
	store := storage.NewMemory()
	movies := []model.Movie{
		{ID: "m1", Title: "Neon Harbor", Year: 2020, Genre: []string{"Action"}, Rating: 7.0},
		{ID: "m2", Title: "The Last Reel", Year: 2021, Genre: []string{"Action", "Drama"}, Rating: 9.0},
		{ID: "m3", Title: "Ironline", Year: 2019, Genre: []string{"Drama"}, Rating: 8.1},
	}
	if err := store.SeedMovies(context.Background(), movies); err != nil {
		t.Fatalf("failed to seed movies: %v", err)
	}
	tokens := auth.NewTokenManager("test-secret", "test-issuer", "test-audience")
	mux := server.NewMux(store, noopPublisher{}, tokens, nil, time.Hour, nil)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestMoviesQueries(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()

	movies, err := c.Movies.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(movies) != 3 {
		t.Errorf("expected 3 movies, got %d", len(movies))
	}

	top, err := c.Movies.TopRated(ctx)
	if err != nil {
		t.Fatalf("TopRated failed: %v", err)
	}
	if len(top) == 0 || top[0].ID != "m2" {
		t.Errorf("expected m2 first in top-rated, got %v", top)
	}

	similar, err := c.Movies.Similar(ctx, "m1")
	if err != nil {
		t.Fatalf("Similar failed: %v", err)
	}
	if len(similar) != 1 || similar[0].ID != "m2" {
		t.Errorf("expected similar [m2], got %v", similar)
	}

	results, err := c.Movies.Search(ctx, "drama")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 search results, got %d", len(results))
	}
}

func TestMoviesGetAbsent(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()

	detail, err := c.Movies.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if detail == nil || detail.Movie.ID != "m1" {
		t.Fatalf("expected movie m1, got %v", detail)
	}

	// An unknown id is an absent result, not an error
	detail, err = c.Movies.Get(ctx, "nope")
	if err != nil {
		t.Fatalf("Get of unknown id should not error, got %v", err)
	}
	if detail != nil {
		t.Errorf("expected nil detail for unknown id, got %v", detail)
	}
}

func TestTypedErrors(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()

	// Unauthenticated mutation carries the session error code
	_, err := c.Reviews.Create(ctx, model.CreateReviewRequest{MovieID: "m1", Rating: 7, Content: "x"})
	if !IsCode(err, "RVW_INVALID_CREDENTIALS") && !IsCode(err, "RVW_INVALID_SESSION") {
		t.Errorf("expected session error code, got %v", err)
	}

	// Bad credentials carry the credential error code
	_, err = c.Auth.Login(ctx, "nobody@example.com", "whatever123")
	if !IsCode(err, "RVW_INVALID_CREDENTIALS") {
		t.Errorf("expected RVW_INVALID_CREDENTIALS, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.HTTPStatus != 401 {
		t.Errorf("expected HTTP 401 on the typed error, got %v", err)
	}
}

func TestAuthAndReviewFlow(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()

	data, err := c.Auth.Register(ctx, model.RegisterRequest{
		Username: "sdkuser",
		Email:    "sdk@example.com",
		Password: "password1",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if c.Token() != data.Token {
		t.Error("register did not install the token on the client")
	}

	me, err := c.Auth.Me(ctx)
	if err != nil {
		t.Fatalf("Me failed: %v", err)
	}
	if me.ID != data.User.ID {
		t.Errorf("Me returned wrong user: %s", me.ID)
	}

	review, err := c.Reviews.Create(ctx, model.CreateReviewRequest{MovieID: "m1", Rating: 8, Content: "good"})
	if err != nil {
		t.Fatalf("Create review failed: %v", err)
	}
	byMovie, err := c.Reviews.ByMovie(ctx, "m1")
	if err != nil {
		t.Fatalf("ByMovie failed: %v", err)
	}
	if len(byMovie) != 1 || byMovie[0].ID != review.ID {
		t.Errorf("review missing from movie listing: %v", byMovie)
	}

	wl, err := c.Users.UpdateWatchlist(ctx, data.User.ID, "m2", model.WatchlistAdd)
	if err != nil {
		t.Fatalf("UpdateWatchlist failed: %v", err)
	}
	if len(wl) != 1 || wl[0] != "m2" {
		t.Errorf("watchlist = %v, want [m2]", wl)
	}

	if err := c.Reviews.Delete(ctx, review.ID); err != nil {
		t.Fatalf("Delete review failed: %v", err)
	}
	if err := c.Reviews.Delete(ctx, review.ID); !IsCode(err, "RVW_NOT_FOUND") {
		t.Errorf("expected RVW_NOT_FOUND on repeat delete, got %v", err)
	}

	if err := c.Auth.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if c.Token() != "" {
		t.Error("logout did not clear the installed token")
	}
	if _, err := c.Auth.Me(ctx); !IsCode(err, "RVW_INVALID_SESSION") {
		t.Errorf("expected RVW_INVALID_SESSION after logout, got %v", err)
	}
}
