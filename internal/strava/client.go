package strava

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"example.com/stravasync/internal/config"
	"example.com/stravasync/internal/logger"
	"example.com/stravasync/internal/remote"
)

// Refresher exchanges the configured refresh token for a fresh access token. Tokens are not
// cached; every call performs one exchange.
type Refresher struct {
	remote       *remote.Client
	tokenURL     string
	clientID     string
	clientSecret string
	refreshToken string
	logger       *slog.Logger
}

// NewRefresher constructs a Refresher.
func NewRefresher(client *remote.Client, cfg config.StravaConfig, log *slog.Logger) *Refresher {
	if log == nil {
		log = slog.Default()
	}
	return &Refresher{
		remote:       client,
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		refreshToken: cfg.RefreshToken,
		logger:       log,
	}
}

// Refresh returns a new access token. Any failure is logged and reported as ok=false.
func (r *Refresher) Refresh(ctx context.Context) (string, bool) {
	sc := logger.StartSpan(ctx, "strava.refresh_token")
	defer sc.End()
	ctx = sc.Context()

	form := url.Values{}
	form.Set("client_id", r.clientID)
	form.Set("client_secret", r.clientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", r.refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		sc.RecordError(err)
		r.logger.ErrorContext(ctx, "build token request", "error", err)
		return "", false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	token, err := remote.Call[TokenResponse](r.remote, TokenResponseContract, req)
	if err != nil {
		sc.RecordError(err)
		r.logger.ErrorContext(ctx, "refresh strava access token", "error", err)
		return "", false
	}
	return token.AccessToken, true
}

// TokenSource yields access tokens.
type TokenSource interface {
	Refresh(ctx context.Context) (string, bool)
}

// Client retrieves activities from the Strava API.
type Client struct {
	remote  *remote.Client
	baseURL string
	tokens  TokenSource
	logger  *slog.Logger
}

// NewClient constructs a Client rooted at baseURL (e.g. https://www.strava.com/api/v3).
func NewClient(client *remote.Client, baseURL string, tokens TokenSource, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		remote:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		tokens:  tokens,
		logger:  log,
	}
}

// FetchActivity returns the detailed activity including all best efforts. Token, transport,
// status or contract failures are logged and reported as ok=false.
func (c *Client) FetchActivity(ctx context.Context, id int64) (*Activity, bool) {
	sc := logger.StartSpan(ctx, "strava.fetch_activity")
	defer sc.End()
	sc.Span().SetAttributes(attribute.Int64("strava.activity_id", id))
	ctx = sc.Context()

	token, ok := c.tokens.Refresh(ctx)
	if !ok {
		c.logger.WarnContext(ctx, "no access token, skipping activity fetch", "strava_id", id)
		return nil, false
	}

	endpoint := fmt.Sprintf("%s/activities/%d?include_all_efforts=true", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		sc.RecordError(err)
		c.logger.ErrorContext(ctx, "build activity request", "strava_id", id, "error", err)
		return nil, false
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	activity, err := remote.Call[Activity](c.remote, ActivityContract, req)
	if err != nil {
		sc.RecordError(err)
		c.logger.ErrorContext(ctx, "fetch strava activity", "strava_id", id, "error", err)
		return nil, false
	}
	return &activity, true
}
