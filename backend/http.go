package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sugawarayuuta/sonnet"

	"github.com/pithecene-io/gantry/iox"
	"github.com/pithecene-io/gantry/log"
	"github.com/pithecene-io/gantry/types"
)

// refreshMargin is how close to expiry a cached token may get before a
// call-time refresh kicks in. Refresh is strictly lazy; nothing refreshes
// tokens in the background.
const refreshMargin = time.Minute

// defaultTimeout bounds every backend request when no timeout is
// configured.
const defaultTimeout = 30 * time.Second

// Config holds the backend endpoints and the gateway's own credentials.
type Config struct {
	// AuthURL is the token service base URL.
	AuthURL string
	// EmbedURL is the user-data service base URL.
	EmbedURL string
	// GameplayURL is the stats/achievements/leaderboards service base URL.
	GameplayURL string

	// AccessToken authenticates user-data requests.
	AccessToken string
	// RefreshToken is the master refresh token exchanged for per-client
	// credentials.
	RefreshToken string
	// UserID is the numeric id of the authenticated user.
	UserID string

	// Timeout bounds each backend request. Zero means defaultTimeout.
	// Ignored when HTTPClient is set.
	Timeout time.Duration

	// HTTPClient overrides the default transport. Optional.
	HTTPClient *http.Client
}

// HTTP is the Client implementation backed by the remote HTTPS services.
// One instance is shared by all sessions; the token cache is keyed by
// backend client id.
type HTTP struct {
	cfg Config
	hc  *http.Client
	log *log.SugaredLogger

	mu           sync.Mutex
	tokens       map[string]types.TokenRecord
	clientID     string
	clientSecret string
}

var _ Client = (*HTTP)(nil)

// NewHTTP creates a backend client.
func NewHTTP(cfg Config, logger *log.Logger) *HTTP {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &HTTP{
		cfg:    cfg,
		hc:     hc,
		log:    logger.Sugar().With("component", "backend"),
		tokens: make(map[string]types.TokenRecord),
	}
}

type tokenJSON struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// ObtainToken exchanges the master refresh token for credentials scoped to
// clientID and records the client identity for subsequent operations.
func (h *HTTP) ObtainToken(ctx context.Context, clientID, clientSecret string) (types.TokenRecord, error) {
	rec, err := h.fetchToken(ctx, clientID, clientSecret, h.cfg.RefreshToken)
	if err != nil {
		return types.TokenRecord{}, err
	}

	h.mu.Lock()
	h.tokens[clientID] = rec
	h.clientID = clientID
	h.clientSecret = clientSecret
	h.mu.Unlock()

	h.log.Infof("obtained token for client %s", clientID)
	return rec, nil
}

// RefreshToken re-obtains credentials for clientID if the cached record is
// stale. Returns false with the cached record when no refresh was needed.
func (h *HTTP) RefreshToken(ctx context.Context, clientID, clientSecret string) (bool, *types.TokenRecord, error) {
	h.mu.Lock()
	rec, ok := h.tokens[clientID]
	h.mu.Unlock()
	if !ok {
		return false, nil, ErrNoToken
	}
	if !tokenStale(rec, time.Now()) {
		return false, &rec, nil
	}

	fresh, err := h.fetchToken(ctx, clientID, clientSecret, rec.RefreshToken)
	if err != nil {
		return false, nil, err
	}
	h.mu.Lock()
	h.tokens[clientID] = fresh
	h.mu.Unlock()
	h.log.Debugf("refreshed token for client %s", clientID)
	return true, &fresh, nil
}

// fetchToken performs the refresh-token grant.
func (h *HTTP) fetchToken(ctx context.Context, clientID, clientSecret, refreshToken string) (types.TokenRecord, error) {
	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("client_secret", clientSecret)
	q.Set("grant_type", "refresh_token")
	q.Set("refresh_token", refreshToken)
	q.Set("without_new_session", "1")

	var body tokenJSON
	err := h.getJSON(ctx, "obtain_token", h.cfg.AuthURL+"/token?"+q.Encode(), h.cfg.AccessToken, &body)
	if err != nil {
		return types.TokenRecord{}, err
	}

	return types.TokenRecord{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		ObtainedAt:   time.Now(),
		ExpiresIn:    body.ExpiresIn,
	}, nil
}

// GetUserInfo resolves the authenticated user identity.
func (h *HTTP) GetUserInfo(ctx context.Context) (types.UserInfo, error) {
	var body struct {
		UserID   string `json:"userId"`
		Username string `json:"username"`
	}
	err := h.getJSON(ctx, "get_user_info", h.cfg.EmbedURL+"/userData.json", h.cfg.AccessToken, &body)
	if err != nil {
		return types.UserInfo{}, err
	}

	id, err := strconv.ParseUint(body.UserID, 10, 64)
	if err != nil {
		return types.UserInfo{}, fmt.Errorf("get_user_info: unparseable user id %q: %w", body.UserID, err)
	}
	return types.UserInfo{UserID: id, Username: body.Username}, nil
}

// currentToken returns a valid access token for the identified client,
// refreshing lazily when the cached record is near expiry.
func (h *HTTP) currentToken(ctx context.Context) (string, string, error) {
	h.mu.Lock()
	clientID := h.clientID
	clientSecret := h.clientSecret
	rec, ok := h.tokens[clientID]
	h.mu.Unlock()

	if clientID == "" || !ok {
		return "", "", ErrNoToken
	}
	if tokenStale(rec, time.Now()) {
		if _, fresh, err := h.RefreshToken(ctx, clientID, clientSecret); err == nil {
			return clientID, fresh.AccessToken, nil
		} else {
			h.log.Warnf("token refresh for %s failed, using stale token: %v", clientID, err)
		}
	}
	return clientID, rec.AccessToken, nil
}

// tokenStale reports whether rec needs a refresh. The JWT exp claim is
// authoritative when the access token parses as a JWT; otherwise the
// obtain-time anchor applies.
func tokenStale(rec types.TokenRecord, now time.Time) bool {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(rec.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return !now.Add(refreshMargin).Before(exp.Time)
		}
	}
	return rec.Expired(now, refreshMargin)
}

// getJSON performs an authenticated GET and decodes the JSON response.
func (h *HTTP) getJSON(ctx context.Context, op, rawurl, bearer string, out any) error {
	return h.doJSON(ctx, op, http.MethodGet, rawurl, bearer, nil, out)
}

// doJSON performs an authenticated request with an optional JSON body and
// decodes the JSON response into out (ignored when out is nil).
func (h *HTTP) doJSON(ctx context.Context, op, method, rawurl, bearer string, reqBody, out any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		raw, err := sonnet.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		bodyReader = strings.NewReader(string(raw))
	}

	req, err := http.NewRequestWithContext(ctx, method, rawurl, bodyReader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, Code: resp.StatusCode}
	}
	if out == nil {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}
	if err := sonnet.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// status performs a request and returns the bare HTTP status code.
// Transport failures surface as errors; any status is returned as-is.
func (h *HTTP) status(ctx context.Context, op, method, rawurl, bearer string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawurl, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := h.hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
	}
	defer iox.DiscardClose(resp.Body)
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
