package service

import (
	"context"
	"net/url"
	"time"

	apperrors "github.com/fitforge/wearable-sync-go/internal/errors"
	"github.com/fitforge/wearable-sync-go/internal/fitbit"
	"github.com/fitforge/wearable-sync-go/internal/garmin"
	"github.com/fitforge/wearable-sync-go/internal/model"
	"github.com/fitforge/wearable-sync-go/internal/util"
)

// Credentials is what a completed authorization flow hands back, plaintext.
// SecondaryToken is the Fitbit refresh token or the Garmin access token
// secret.
type Credentials struct {
	AccessToken    string
	SecondaryToken *string
	ExpiresAt      *time.Time
	ProviderUserID *string
}

// Flow is the per-provider authorization protocol. Adding a provider means
// implementing this interface and registering it, not editing string
// switches in handlers.
type Flow interface {
	Provider() model.Provider
	Configured() bool
	// BeginAuth generates challenge material and returns the provider
	// redirect URL plus the claims to sign into the state cookie. UserID,
	// Provider and Timestamp on the claims are filled by the caller.
	BeginAuth(ctx context.Context) (redirectURL string, claims model.StateClaims, err error)
	// CompleteAuth validates the provider-returned artifacts against the
	// verified claims and exchanges them for credentials.
	CompleteAuth(ctx context.Context, claims *model.StateClaims, query url.Values) (*Credentials, error)
}

// Garmin: OAuth 1.0a. The request token is bound into OAuthState and the
// request token secret into Secret.

type garminFlow struct {
	client      *garmin.Client
	callbackURL string
}

func NewGarminFlow(client *garmin.Client, callbackURL string) Flow {
	return &garminFlow{client: client, callbackURL: callbackURL}
}

func (f *garminFlow) Provider() model.Provider { return model.ProviderGarmin }

func (f *garminFlow) Configured() bool { return f.client.Configured() && f.callbackURL != "" }

func (f *garminFlow) BeginAuth(ctx context.Context) (string, model.StateClaims, error) {
	token, secret, err := f.client.RequestToken(ctx, f.callbackURL)
	if err != nil {
		return "", model.StateClaims{}, err
	}
	claims := model.StateClaims{Secret: secret, OAuthState: token}
	return f.client.AuthorizationURL(token), claims, nil
}

func (f *garminFlow) CompleteAuth(ctx context.Context, claims *model.StateClaims, query url.Values) (*Credentials, error) {
	token := query.Get("oauth_token")
	verifier := query.Get("oauth_verifier")
	if token == "" || verifier == "" {
		return nil, apperrors.MissingRequired("oauth_token and oauth_verifier")
	}
	if !util.ConstantTimeEqual(token, claims.OAuthState) {
		return nil, apperrors.StateMismatch("request token does not match session")
	}

	accessToken, accessSecret, err := f.client.ExchangeAccessToken(ctx, token, claims.Secret, verifier)
	if err != nil {
		return nil, err
	}

	// OAuth1 tokens do not expire and carry no provider user id.
	return &Credentials{
		AccessToken:    accessToken,
		SecondaryToken: &accessSecret,
	}, nil
}

// Fitbit: OAuth 2.0 + PKCE. The verifier goes into Secret and the CSRF
// state into OAuthState.

type fitbitFlow struct {
	client *fitbit.Client
}

func NewFitbitFlow(client *fitbit.Client) Flow {
	return &fitbitFlow{client: client}
}

func (f *fitbitFlow) Provider() model.Provider { return model.ProviderFitbit }

func (f *fitbitFlow) Configured() bool { return f.client.Configured() }

func (f *fitbitFlow) BeginAuth(_ context.Context) (string, model.StateClaims, error) {
	verifier := f.client.GenerateVerifier()
	state, err := util.GenerateToken()
	if err != nil {
		return "", model.StateClaims{}, err
	}
	claims := model.StateClaims{Secret: verifier, OAuthState: state}
	return f.client.AuthorizationURL(state, verifier), claims, nil
}

func (f *fitbitFlow) CompleteAuth(ctx context.Context, claims *model.StateClaims, query url.Values) (*Credentials, error) {
	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		return nil, apperrors.MissingRequired("code and state")
	}
	if !util.ConstantTimeEqual(state, claims.OAuthState) {
		return nil, apperrors.StateMismatch("oauth state does not match session")
	}

	tokens, err := f.client.ExchangeCode(ctx, code, claims.Secret)
	if err != nil {
		return nil, err
	}

	creds := &Credentials{
		AccessToken:    tokens.AccessToken,
		SecondaryToken: &tokens.RefreshToken,
		ExpiresAt:      &tokens.ExpiresAt,
	}
	if tokens.ProviderUserID != "" {
		creds.ProviderUserID = &tokens.ProviderUserID
	}
	return creds, nil
}
