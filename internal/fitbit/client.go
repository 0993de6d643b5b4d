package fitbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	apperrors "github.com/fitforge/wearable-sync-go/internal/errors"
)

const (
	authURL  = "https://www.fitbit.com/oauth2/authorize"
	tokenURL = "https://api.fitbit.com/oauth2/token"
	apiBase  = "https://api.fitbit.com"
)

// scopes cover the five daily endpoints the sync job reads.
var scopes = []string{"activity", "heartrate", "sleep", "oxygen_saturation"}

// TokenSet is the outcome of a code exchange or refresh. Fitbit rotates the
// refresh token on every refresh; callers must persist the new one.
type TokenSet struct {
	AccessToken    string
	RefreshToken   string
	ExpiresAt      time.Time
	ProviderUserID string
}

// Client wraps the Fitbit OAuth 2.0 + PKCE flow and the daily data
// endpoints.
type Client struct {
	conf       *oauth2.Config
	httpClient *http.Client
}

func NewClient(clientID, clientSecret, redirectURL string, timeout time.Duration) *Client {
	return &Client{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
				// Fitbit requires client credentials via HTTP Basic auth.
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Configured() bool {
	return c.conf.ClientID != "" && c.conf.ClientSecret != ""
}

// GenerateVerifier returns a fresh high-entropy PKCE verifier.
func (c *Client) GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}

// AuthorizationURL builds the browser redirect embedding the S256 challenge
// derived from verifier and the CSRF state.
func (c *Client) AuthorizationURL(state, verifier string) string {
	return c.conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// ExchangeCode trades the authorization code + PKCE verifier for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*TokenSet, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, mapOAuthError(err)
	}
	return tokenSetFrom(token), nil
}

// Refresh exchanges a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	src := c.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, mapOAuthError(err)
	}
	set := tokenSetFrom(token)
	if set.RefreshToken == "" {
		// Defensive default; Fitbit always rotates in practice.
		set.RefreshToken = refreshToken
	}
	return set, nil
}

func tokenSetFrom(token *oauth2.Token) *TokenSet {
	set := &TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	if userID, ok := token.Extra("user_id").(string); ok {
		set.ProviderUserID = userID
	}
	return set
}

// mapOAuthError surfaces the provider's error body and distinguishes the
// conditions callers branch on.
func mapOAuthError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		switch status {
		case http.StatusUnauthorized:
			return apperrors.TokenExpired("fitbit").WithCause(err)
		case http.StatusTooManyRequests:
			return apperrors.RateLimited("fitbit").WithCause(err)
		}
		return apperrors.Provider("fitbit", status, strings.TrimSpace(string(retrieveErr.Body))).WithCause(err)
	}
	return apperrors.Wrap(apperrors.ErrCodeProvider, "fitbit token request failed", err)
}

const dateFormat = "2006-01-02"

// get performs an authenticated GET and decodes the JSON response into out.
// 401 and 429 map to the named TOKEN_EXPIRED / RATE_LIMITED conditions so
// the sync job can refresh or back off instead of treating every failure
// the same.
func (c *Client) get(ctx context.Context, accessToken, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeProvider, "fitbit request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read fitbit response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return apperrors.TokenExpired("fitbit")
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.RateLimited("fitbit")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return apperrors.Provider("fitbit", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode fitbit response: %w", err)
	}
	return nil
}

func (c *Client) FetchDailyActivity(ctx context.Context, accessToken string, day time.Time) (*ActivitySummary, error) {
	var resp activityResponse
	path := fmt.Sprintf("/1/user/-/activities/date/%s.json", day.Format(dateFormat))
	if err := c.get(ctx, accessToken, path, &resp); err != nil {
		return nil, err
	}
	return &resp.Summary, nil
}

func (c *Client) FetchSleep(ctx context.Context, accessToken string, day time.Time) (*SleepLog, error) {
	var resp SleepLog
	path := fmt.Sprintf("/1.2/user/-/sleep/date/%s.json", day.Format(dateFormat))
	if err := c.get(ctx, accessToken, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) FetchHeartRate(ctx context.Context, accessToken string, day time.Time) (*HeartSummary, error) {
	var resp heartResponse
	path := fmt.Sprintf("/1/user/-/activities/heart/date/%s/1d.json", day.Format(dateFormat))
	if err := c.get(ctx, accessToken, path, &resp); err != nil {
		return nil, err
	}
	if len(resp.ActivitiesHeart) == 0 {
		return nil, nil
	}
	return &resp.ActivitiesHeart[0].Value, nil
}

func (c *Client) FetchHRV(ctx context.Context, accessToken string, day time.Time) (*HRVSummary, error) {
	var resp hrvResponse
	path := fmt.Sprintf("/1/user/-/hrv/date/%s.json", day.Format(dateFormat))
	if err := c.get(ctx, accessToken, path, &resp); err != nil {
		return nil, err
	}
	if len(resp.HRV) == 0 {
		return nil, nil
	}
	return &resp.HRV[0].Value, nil
}

func (c *Client) FetchSpO2(ctx context.Context, accessToken string, day time.Time) (*SpO2Summary, error) {
	var resp spo2Response
	path := fmt.Sprintf("/1/user/-/spo2/date/%s.json", day.Format(dateFormat))
	if err := c.get(ctx, accessToken, path, &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}
