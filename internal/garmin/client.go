package garmin

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/fitforge/wearable-sync-go/internal/errors"
	"github.com/fitforge/wearable-sync-go/internal/util"
)

const (
	requestTokenURL = "https://connectapi.garmin.com/oauth-service/oauth/request_token"
	authorizeURL    = "https://connect.garmin.com/oauthConfirm"
	accessTokenURL  = "https://connectapi.garmin.com/oauth-service/oauth/access_token"
)

// Client implements the OAuth 1.0a handshake against the Garmin Connect API.
// Garmin tokens are long-lived and never refresh; data arrives by webhook
// push, so the client only covers authorization, not data fetch.
type Client struct {
	consumerKey    string
	consumerSecret string
	httpClient     *http.Client
}

func NewClient(consumerKey, consumerSecret string, timeout time.Duration) *Client {
	return &Client{
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		httpClient:     &http.Client{Timeout: timeout},
	}
}

func (c *Client) Configured() bool {
	return c.consumerKey != "" && c.consumerSecret != ""
}

// RequestToken obtains a temporary request token bound to the callback URL.
func (c *Client) RequestToken(ctx context.Context, callbackURL string) (token, tokenSecret string, err error) {
	params := map[string]string{"oauth_callback": callbackURL}
	body, err := c.signedPost(ctx, requestTokenURL, "", params)
	if err != nil {
		return "", "", err
	}

	values, err := url.ParseQuery(body)
	if err != nil {
		return "", "", fmt.Errorf("parse request token response: %w", err)
	}
	token = values.Get("oauth_token")
	tokenSecret = values.Get("oauth_token_secret")
	if token == "" || tokenSecret == "" {
		return "", "", apperrors.Provider("garmin", http.StatusOK, "request token response missing oauth_token")
	}
	return token, tokenSecret, nil
}

// AuthorizationURL builds the browser redirect for a request token. No
// network call.
func (c *Client) AuthorizationURL(requestToken string) string {
	return authorizeURL + "?oauth_token=" + url.QueryEscape(requestToken)
}

// ExchangeAccessToken trades an authorized request token + verifier for the
// long-lived access token pair.
func (c *Client) ExchangeAccessToken(ctx context.Context, requestToken, requestTokenSecret, verifier string) (accessToken, accessTokenSecret string, err error) {
	params := map[string]string{
		"oauth_token":    requestToken,
		"oauth_verifier": verifier,
	}
	body, err := c.signedPost(ctx, accessTokenURL, requestTokenSecret, params)
	if err != nil {
		return "", "", err
	}

	values, err := url.ParseQuery(body)
	if err != nil {
		return "", "", fmt.Errorf("parse access token response: %w", err)
	}
	accessToken = values.Get("oauth_token")
	accessTokenSecret = values.Get("oauth_token_secret")
	if accessToken == "" || accessTokenSecret == "" {
		return "", "", apperrors.Provider("garmin", http.StatusOK, "access token response missing oauth_token")
	}
	return accessToken, accessTokenSecret, nil
}

func (c *Client) signedPost(ctx context.Context, endpoint, tokenSecret string, extra map[string]string) (string, error) {
	nonce, err := util.GenerateToken()
	if err != nil {
		return "", err
	}

	oauthParams := map[string]string{
		"oauth_consumer_key":     c.consumerKey,
		"oauth_nonce":            nonce[:32],
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(time.Now().Unix(), 10),
		"oauth_version":          "1.0",
	}
	for k, v := range extra {
		oauthParams[k] = v
	}

	oauthParams["oauth_signature"] = c.sign("POST", endpoint, oauthParams, tokenSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", authorizationHeader(oauthParams))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodeProvider, "garmin request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read garmin response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperrors.Provider("garmin", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}

// sign computes the HMAC-SHA1 OAuth 1.0a signature: base string from
// method, URL and sorted percent-encoded params; key from consumer secret
// and (possibly empty) token secret.
func (c *Client) sign(method, endpoint string, params map[string]string, tokenSecret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, percentEncode(k)+"="+percentEncode(params[k]))
	}
	paramString := strings.Join(pairs, "&")

	baseString := strings.Join([]string{
		method,
		percentEncode(endpoint),
		percentEncode(paramString),
	}, "&")

	signingKey := percentEncode(c.consumerSecret) + "&" + percentEncode(tokenSecret)

	mac := hmac.New(sha1.New, []byte(signingKey))
	mac.Write([]byte(baseString))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func authorizationHeader(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf(`%s="%s"`, percentEncode(k), percentEncode(params[k])))
	}
	return "OAuth " + strings.Join(pairs, ", ")
}

// percentEncode implements RFC 3986 encoding as OAuth 1.0a requires;
// url.QueryEscape is close but encodes spaces as "+".
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') ||
			(ch >= '0' && ch <= '9') || ch == '-' || ch == '.' || ch == '_' || ch == '~' {
			b.WriteByte(ch)
		} else {
			fmt.Fprintf(&b, "%%%02X", ch)
		}
	}
	return b.String()
}
