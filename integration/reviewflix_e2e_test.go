// integration/reviewflix_e2e_test.go
// Package integration provides end-to-end tests wiring the SDK and session
// manager against an in-process ReviewFlix server.
package integration

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/reviewflix/reviewflix-go/client"
	"github.com/reviewflix/reviewflix-go/internal/auth"
	"github.com/reviewflix/reviewflix-go/internal/model"
	"github.com/reviewflix/reviewflix-go/internal/seed"
	"github.com/reviewflix/reviewflix-go/internal/server"
	"github.com/reviewflix/reviewflix-go/internal/storage"
)

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	reviewCreated    []model.Review
	reviewDeleted    []model.Review
	usersRegistered  []model.User
	watchlistUpdates []string
}

func (p *capturingPublisher) PublishReviewCreated(ctx context.Context, review model.Review) error {
	p.reviewCreated = append(p.reviewCreated, review)
	return nil
}

func (p *capturingPublisher) PublishReviewDeleted(ctx context.Context, review model.Review) error {
	p.reviewDeleted = append(p.reviewDeleted, review)
	return nil
}

func (p *capturingPublisher) PublishUserRegistered(ctx context.Context, user model.User) error {
	p.usersRegistered = append(p.usersRegistered, user)
	return nil
}

func (p *capturingPublisher) PublishWatchlistUpdated(ctx context.Context, userID, movieID string, action model.WatchlistAction) error {
	p.watchlistUpdates = append(p.watchlistUpdates, movieID+":"+string(action))
	return nil
}

func (p *capturingPublisher) Close() error {
	return nil
}

// TestEndToEndFlow exercises the full journey: register, restore a second
// session, review a movie, manage the watchlist, log out, and verify the
// old credential is rejected afterwards.
func TestEndToEndFlow(t *testing.T) {
	ctx := context.Background()

	// Boot an in-process server over the built-in catalog
	store := storage.NewMemory()
	if err := seed.Ensure(ctx, store, seed.DefaultMovies()); err != nil {
		t.Fatalf("failed to seed catalog: %v", err)
	}
	pub := &capturingPublisher{}
	tokens := auth.NewTokenManager("e2e-secret", "e2e-issuer", "e2e-audience")
	srv := httptest.NewServer(server.NewMux(store, pub, tokens, nil, time.Hour, nil))
	defer srv.Close()

	catalogMovies, err := client.New(srv.URL).Movies.List(ctx)
	if err != nil {
		t.Fatalf("failed to list catalog: %v", err)
	}
	if len(catalogMovies) == 0 {
		t.Fatal("seeded catalog is empty")
	}
	movieID := catalogMovies[0].ID

	// Register through the session manager
	c := client.New(srv.URL)
	tokenStore := client.NewMemoryStore()
	sess := client.NewSession(c, tokenStore)
	if err := sess.Register(ctx, model.RegisterRequest{
		Username: "e2euser",
		Email:    "e2e@example.com",
		Password: "password1",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if sess.State() != client.StateAuthenticated {
		t.Fatalf("state = %s, want %s", sess.State(), client.StateAuthenticated)
	}
	if len(pub.usersRegistered) != 1 {
		t.Errorf("expected 1 registration event, got %d", len(pub.usersRegistered))
	}

	// A second process restores the persisted credential
	restored := client.NewSession(client.New(srv.URL), tokenStore)
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if restored.State() != client.StateAuthenticated {
		t.Fatalf("restored state = %s, want %s", restored.State(), client.StateAuthenticated)
	}

	// Review lifecycle
	review, err := c.Reviews.Create(ctx, model.CreateReviewRequest{
		MovieID: movieID,
		Rating:  9,
		Content: "worth the runtime",
	})
	if err != nil {
		t.Fatalf("create review failed: %v", err)
	}
	detail, err := c.Movies.Get(ctx, movieID)
	if err != nil {
		t.Fatalf("movie detail failed: %v", err)
	}
	if detail.ReviewCount != 1 || detail.AggregateRating != 9.0 {
		t.Errorf("detail aggregate = %.1f with %d reviews, want 9.0 with 1", detail.AggregateRating, detail.ReviewCount)
	}
	if len(pub.reviewCreated) != 1 {
		t.Errorf("expected 1 review created event, got %d", len(pub.reviewCreated))
	}

	// Watchlist add and remove
	user := sess.User()
	wl, err := c.Users.UpdateWatchlist(ctx, user.ID, movieID, model.WatchlistAdd)
	if err != nil {
		t.Fatalf("watchlist add failed: %v", err)
	}
	if len(wl) != 1 || wl[0] != movieID {
		t.Errorf("watchlist = %v, want [%s]", wl, movieID)
	}
	if _, err := c.Users.UpdateWatchlist(ctx, user.ID, movieID, model.WatchlistRemove); err != nil {
		t.Fatalf("watchlist remove failed: %v", err)
	}

	if err := c.Reviews.Delete(ctx, review.ID); err != nil {
		t.Fatalf("delete review failed: %v", err)
	}
	if len(pub.reviewDeleted) != 1 {
		t.Errorf("expected 1 review deleted event, got %d", len(pub.reviewDeleted))
	}

	// Logout ends the session everywhere that shares it
	staleToken := c.Token()
	if err := sess.Logout(ctx); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if sess.State() != client.StateUnauthenticated {
		t.Errorf("state after logout = %s, want %s", sess.State(), client.StateUnauthenticated)
	}
	if token, _ := tokenStore.Load(); token != "" {
		t.Error("logout did not clear the persisted credential")
	}

	// The old credential is rejected by the server
	staleClient := client.New(srv.URL)
	staleClient.SetToken(staleToken)
	if _, err := staleClient.Auth.Me(ctx); !client.IsCode(err, "RVW_INVALID_SESSION") {
		t.Errorf("expected RVW_INVALID_SESSION for stale token, got %v", err)
	}

	// With the credential cleared, a fresh restore lands in the signed-out state
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("restore after logout failed: %v", err)
	}
	if restored.State() != client.StateUnauthenticated {
		t.Errorf("state after cleared-credential restore = %s, want %s", restored.State(), client.StateUnauthenticated)
	}
}
