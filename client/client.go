// client/client.go
// Package client provides the Go SDK for the ReviewFlix API. It wraps the
// REST wire contract in typed capability groups (Movies, Reviews, Auth,
// Users) and surfaces server errors as typed APIError values.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/reviewflix/reviewflix-go/internal/model"
)

// APIError is a typed error decoded from the wire error envelope.
type APIError struct {
	Code          string `json:"code"`          // Error code from the taxonomy (e.g. RVW_NOT_FOUND)
	Message       string `json:"message"`       // Human-readable message
	CorrelationID string `json:"correlationId"` // Correlation ID for tracing
	HTTPStatus    int    `json:"-"`             // HTTP status the server responded with
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.HTTPStatus)
}

// IsCode reports whether err is an APIError carrying the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Client is the ReviewFlix API client. Access the API through the capability
// groups; all methods take a context and honor its cancellation.
type Client struct {
	base string       // Base URL of the ReviewFlix service
	hc   *http.Client // HTTP client with custom configuration

	mu    sync.RWMutex // Protects token
	token string       // Bearer token attached to requests when set

	Movies  *MoviesClient
	Reviews *ReviewsClient
	Auth    *AuthClient
	Users   *UsersClient
}

// New creates a new ReviewFlix client with the specified base URL.
// It configures connection and request timeouts.
func New(baseURL string) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: 2 * time.Second}).DialContext,
	}
	c := &Client{
		base: baseURL,
		hc:   &http.Client{Transport: transport, Timeout: 10 * time.Second},
	}
	c.Movies = &MoviesClient{c: c}
	c.Reviews = &ReviewsClient{c: c}
	c.Auth = &AuthClient{c: c}
	c.Users = &UsersClient{c: c}
	return c
}

// SetToken sets the bearer token attached to subsequent requests.
// An empty string clears it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the currently configured bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// do executes a request against the API and decodes the {"data": ...}
// envelope into target. Error responses are decoded into *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, target interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var envelope struct {
			Error APIError `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || envelope.Error.Code == "" {
			return &APIError{
				Code:       "RVW_INTERNAL",
				Message:    fmt.Sprintf("unexpected response with status %d", resp.StatusCode),
				HTTPStatus: resp.StatusCode,
			}
		}
		envelope.Error.HTTPStatus = resp.StatusCode
		return &envelope.Error
	}

	if target == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, target); err != nil {
		return fmt.Errorf("failed to decode data payload: %w", err)
	}
	return nil
}

// MoviesClient groups the catalog query operations.
type MoviesClient struct {
	c *Client
}

// List fetches the full movie catalog in catalog order.
func (m *MoviesClient) List(ctx context.Context) ([]model.Movie, error) {
	var movies []model.Movie
	if err := m.c.do(ctx, http.MethodGet, "/v1/movies", nil, &movies); err != nil {
		return nil, err
	}
	return movies, nil
}

// Get fetches a movie with its aggregate rating. An unknown id is an absent
// result, not an error: the method returns (nil, nil).
func (m *MoviesClient) Get(ctx context.Context, id string) (*model.MovieDetail, error) {
	var detail model.MovieDetail
	err := m.c.do(ctx, http.MethodGet, "/v1/movies/"+url.PathEscape(id), nil, &detail)
	if err != nil {
		if IsCode(err, "RVW_NOT_FOUND") {
			return nil, nil
		}
		return nil, err
	}
	return &detail, nil
}

// Similar fetches up to four same-genre movies, excluding the movie itself.
func (m *MoviesClient) Similar(ctx context.Context, id string) ([]model.Movie, error) {
	var movies []model.Movie
	if err := m.c.do(ctx, http.MethodGet, "/v1/movies/"+url.PathEscape(id)+"/similar", nil, &movies); err != nil {
		return nil, err
	}
	return movies, nil
}

// TopRated fetches the five highest-rated movies.
func (m *MoviesClient) TopRated(ctx context.Context) ([]model.Movie, error) {
	var movies []model.Movie
	if err := m.c.do(ctx, http.MethodGet, "/v1/movies/top-rated", nil, &movies); err != nil {
		return nil, err
	}
	return movies, nil
}

// Search performs a case-insensitive substring search over titles and genres.
func (m *MoviesClient) Search(ctx context.Context, query string) ([]model.Movie, error) {
	var movies []model.Movie
	if err := m.c.do(ctx, http.MethodGet, "/v1/movies/search?q="+url.QueryEscape(query), nil, &movies); err != nil {
		return nil, err
	}
	return movies, nil
}

// ReviewsClient groups the review operations.
type ReviewsClient struct {
	c *Client
}

// ByMovie fetches a movie's reviews, newest first.
func (r *ReviewsClient) ByMovie(ctx context.Context, movieID string) ([]model.Review, error) {
	var reviews []model.Review
	if err := r.c.do(ctx, http.MethodGet, "/v1/reviews/movie/"+url.PathEscape(movieID), nil, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// ByUser fetches a user's reviews, newest first.
func (r *ReviewsClient) ByUser(ctx context.Context, userID string) ([]model.Review, error) {
	var reviews []model.Review
	if err := r.c.do(ctx, http.MethodGet, "/v1/reviews/user/"+url.PathEscape(userID), nil, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// Create submits a new review. Requires an authenticated session.
func (r *ReviewsClient) Create(ctx context.Context, req model.CreateReviewRequest) (*model.Review, error) {
	var review model.Review
	if err := r.c.do(ctx, http.MethodPost, "/v1/reviews", req, &review); err != nil {
		return nil, err
	}
	return &review, nil
}

// Delete removes a review. Only the review's author may delete it.
func (r *ReviewsClient) Delete(ctx context.Context, id string) error {
	return r.c.do(ctx, http.MethodDelete, "/v1/reviews/"+url.PathEscape(id), nil, nil)
}

// AuthClient groups the session operations.
type AuthClient struct {
	c *Client
}

// Login authenticates with email and password. On success the returned token
// is installed on the client for subsequent requests.
func (a *AuthClient) Login(ctx context.Context, email, password string) (*model.AuthData, error) {
	var data model.AuthData
	err := a.c.do(ctx, http.MethodPost, "/v1/auth/login", model.LoginRequest{Email: email, Password: password}, &data)
	if err != nil {
		return nil, err
	}
	a.c.SetToken(data.Token)
	return &data, nil
}

// Register creates a new account and opens a session for it.
func (a *AuthClient) Register(ctx context.Context, req model.RegisterRequest) (*model.AuthData, error) {
	var data model.AuthData
	if err := a.c.do(ctx, http.MethodPost, "/v1/auth/register", req, &data); err != nil {
		return nil, err
	}
	a.c.SetToken(data.Token)
	return &data, nil
}

// Me resolves the user behind the installed token.
func (a *AuthClient) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := a.c.do(ctx, http.MethodGet, "/v1/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout terminates the session and clears the installed token. The token is
// cleared even when the server call fails.
func (a *AuthClient) Logout(ctx context.Context) error {
	err := a.c.do(ctx, http.MethodPost, "/v1/auth/logout", nil, nil)
	a.c.SetToken("")
	return err
}

// UsersClient groups the user profile and watchlist operations.
type UsersClient struct {
	c *Client
}

// Get fetches a public user profile.
func (u *UsersClient) Get(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := u.c.do(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateWatchlist adds or removes a movie id on the user's watchlist and
// returns the resulting list. Both actions are idempotent.
func (u *UsersClient) UpdateWatchlist(ctx context.Context, userID, movieID string, action model.WatchlistAction) ([]string, error) {
	var data model.WatchlistData
	req := model.UpdateWatchlistRequest{MovieID: movieID, Action: action}
	if err := u.c.do(ctx, http.MethodPut, "/v1/users/"+url.PathEscape(userID)+"/watchlist", req, &data); err != nil {
		return nil, err
	}
	return data.Watchlist, nil
}
