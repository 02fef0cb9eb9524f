package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"github.com/pithecene-io/gantry/log"
	"github.com/pithecene-io/gantry/types"
)

// newTestBackend builds an HTTP client pointed at one test server for
// every endpoint family.
func newTestBackend(srv *httptest.Server) *HTTP {
	return NewHTTP(Config{
		AuthURL:      srv.URL,
		EmbedURL:     srv.URL,
		GameplayURL:  srv.URL,
		AccessToken:  "master-at",
		RefreshToken: "master-rt",
		UserID:       "42",
		HTTPClient:   srv.Client(),
	}, log.Nop())
}

// identify primes the client with a token for clientID, as the auth
// handshake would.
func identify(t *testing.T, h *HTTP, clientID string) {
	t.Helper()
	if _, err := h.ObtainToken(context.Background(), clientID, "secret"); err != nil {
		t.Fatalf("ObtainToken: %v", err)
	}
}

func tokenResponse(w http.ResponseWriter, access string, expiresIn int) {
	raw, _ := sonnet.Marshal(map[string]any{
		"access_token":  access,
		"refresh_token": "rotated-rt",
		"expires_in":    expiresIn,
	})
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

func TestObtainToken(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		gotQuery = map[string]string{
			"client_id":           q.Get("client_id"),
			"client_secret":       q.Get("client_secret"),
			"grant_type":          q.Get("grant_type"),
			"refresh_token":       q.Get("refresh_token"),
			"without_new_session": q.Get("without_new_session"),
		}
		tokenResponse(w, "fresh-at", 3600)
	}))
	defer srv.Close()

	h := newTestBackend(srv)
	rec, err := h.ObtainToken(context.Background(), "1", "secret")
	if err != nil {
		t.Fatalf("ObtainToken: %v", err)
	}

	if rec.AccessToken != "fresh-at" || rec.RefreshToken != "rotated-rt" || rec.ExpiresIn != 3600 {
		t.Errorf("record = %+v", rec)
	}
	want := map[string]string{
		"client_id":           "1",
		"client_secret":       "secret",
		"grant_type":          "refresh_token",
		"refresh_token":       "master-rt",
		"without_new_session": "1",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}
}

func TestObtainTokenAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	h := newTestBackend(srv)
	_, err := h.ObtainToken(context.Background(), "1", "secret")
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
}

func TestGetUserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/userData.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer master-at" {
			t.Errorf("auth header = %q", got)
		}
		raw, _ := sonnet.Marshal(map[string]string{"userId": "42", "username": "bob"})
		w.Write(raw)
	}))
	defer srv.Close()

	h := newTestBackend(srv)
	info, err := h.GetUserInfo(context.Background())
	if err != nil {
		t.Fatalf("GetUserInfo: %v", err)
	}
	if info.UserID != 42 || info.Username != "bob" {
		t.Errorf("info = %+v", info)
	}
}

func TestGetUserStatsMapsTypesAndDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			tokenResponse(w, "at", 3600)
			return
		}
		if r.URL.Path != "/clients/1/users/42/stats" {
			t.Errorf("path = %s", r.URL.Path)
		}
		minVal, maxVal := 1.0, 50.0
		raw, _ := sonnet.Marshal(map[string]any{"items": []statJSON{
			{StatID: "10", Key: "kills", Type: "int", Value: 7, MinValue: &minVal, MaxValue: &maxVal},
			{StatID: "11", Key: "accuracy", Type: "avgrate", Value: 0.5},
			{StatID: "12", Key: "broken", Type: "mystery", Value: 1},
		}})
		w.Write(raw)
	}))
	defer srv.Close()

	h := newTestBackend(srv)
	identify(t, h, "1")

	stats, err := h.GetUserStats(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetUserStats: %v", err)
	}
	// The unknown-typed stat is skipped, not fatal.
	if len(stats) != 2 {
		t.Fatalf("got %d stats, want 2", len(stats))
	}

	kills := stats[0]
	if kills.ValueType != types.StatValueInt || kills.IntValue != 7 ||
		kills.IntMinValue != 1 || kills.IntMaxValue != 50 {
		t.Errorf("int stat = %+v", kills)
	}
	if kills.IntMaxChange != defaultStatMaxChange {
		t.Errorf("max change = %d, want default", kills.IntMaxChange)
	}

	accuracy := stats[1]
	if accuracy.ValueType != types.StatValueFloat || accuracy.FloatValue != 0.5 {
		t.Errorf("avgrate stat = %+v", accuracy)
	}
	if accuracy.FloatMaxValue != defaultStatMax {
		t.Errorf("max value = %v, want default", accuracy.FloatMaxValue)
	}
}

func TestGetUserStatsNotFound(t *testing.T) {
	cases := []struct {
		name  string
		serve func(w http.ResponseWriter)
	}{
		{"backend 404", func(w http.ResponseWriter) { w.WriteHeader(http.StatusNotFound) }},
		{"empty list", func(w http.ResponseWriter) {
			raw, _ := sonnet.Marshal(map[string]any{"items": []statJSON{}})
			w.Write(raw)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/token" {
					tokenResponse(w, "at", 3600)
					return
				}
				tc.serve(w)
			}))
			defer srv.Close()

			h := newTestBackend(srv)
			identify(t, h, "1")
			_, err := h.GetUserStats(context.Background(), 42)
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestOperationsRequireIdentification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should reach the backend")
	}))
	defer srv.Close()

	h := newTestBackend(srv)
	if _, err := h.GetUserStats(context.Background(), 42); !errors.Is(err, ErrNoToken) {
		t.Fatalf("err = %v, want ErrNoToken", err)
	}
}

func TestSetUserAchievementConflictMeansAlreadyUnlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			tokenResponse(w, "at", 3600)
			return
		}
		if r.URL.Path != "/clients/1/users/42/achievements/77" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	h := newTestBackend(srv)
	identify(t, h, "1")

	already, err := h.SetUserAchievement(context.Background(), 77, 1700000000)
	if err != nil {
		t.Fatalf("SetUserAchievement: %v", err)
	}
	if !already {
		t.Error("409 must report already unlocked")
	}
}

func TestSetUserAchievementClearSendsNullDate(t *testing.T) {
	var gotBody struct {
		DateUnlocked *string `json:"date_unlocked"`
	}
	bodySeen := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			tokenResponse(w, "at", 3600)
			return
		}
		if err := sonnet.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		bodySeen = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	h := newTestBackend(srv)
	identify(t, h, "1")

	if _, err := h.SetUserAchievement(context.Background(), 77, 0); err != nil {
		t.Fatalf("SetUserAchievement: %v", err)
	}
	if !bodySeen {
		t.Fatal("backend never saw the request")
	}
	if gotBody.DateUnlocked != nil {
		t.Errorf("date_unlocked = %v, want null", *gotBody.DateUnlocked)
	}
}

func TestGetUserAchievementsParsesUnlockDates(t *testing.T) {
	unlocked := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC).Format(time.RFC3339)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			tokenResponse(w, "at", 3600)
			return
		}
		raw, _ := sonnet.Marshal(map[string]any{
			"items": []achievementJSON{
				{AchievementID: "77", Key: "first_blood", DateUnlocked: &unlocked},
				{AchievementID: "78", Key: "untouched"},
			},
			"achievements_mode": "all_visible",
		})
		w.Write(raw)
	}))
	defer srv.Close()

	h := newTestBackend(srv)
	identify(t, h, "1")

	list, err := h.GetUserAchievements(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetUserAchievements: %v", err)
	}
	if list.Mode != "all_visible" || list.Language != "en-US" {
		t.Errorf("list meta = %+v", list)
	}
	if len(list.Items) != 2 {
		t.Fatalf("got %d achievements", len(list.Items))
	}
	if !list.Items[0].Unlocked() || list.Items[0].UnlockTime == 0 {
		t.Errorf("first achievement = %+v", list.Items[0])
	}
	if list.Items[1].Unlocked() {
		t.Errorf("second achievement should be locked: %+v", list.Items[1])
	}
}

func TestGetLeaderboardEntriesSelectors(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			tokenResponse(w, "at", 3600)
			return
		}
		gotQuery = r.URL.RawQuery
		raw, _ := sonnet.Marshal(map[string]any{
			"items": []leaderboardEntryJSON{
				{UserID: "42", Score: 100, Rank: 1},
			},
			"leaderboard_entry_total_count": 9,
		})
		w.Write(raw)
	}))
	defer srv.Close()

	h := newTestBackend(srv)
	identify(t, h, "1")

	entries, total, err := h.GetLeaderboardEntries(context.Background(), 3, types.EntryRange{Start: 0, End: 10})
	if err != nil {
		t.Fatalf("GetLeaderboardEntries: %v", err)
	}
	if total != 9 || len(entries) != 1 || entries[0].UserID != 42 {
		t.Errorf("entries = %+v total = %d", entries, total)
	}
	if gotQuery != "range_end=10&range_start=0" {
		t.Errorf("range query = %q", gotQuery)
	}

	if _, _, err := h.GetLeaderboardEntries(context.Background(), 3, types.EntryAroundUser{
		UserID: 42, CountBefore: 2, CountAfter: 3,
	}); err != nil {
		t.Fatalf("around-user: %v", err)
	}
	if gotQuery != "count_after=3&count_before=2&users=42" {
		t.Errorf("around-user query = %q", gotQuery)
	}
}

func TestGetLeaderboardEntriesNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			tokenResponse(w, "at", 3600)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	h := newTestBackend(srv)
	identify(t, h, "1")

	_, _, err := h.GetLeaderboardEntries(context.Background(), 3, types.EntryRange{Start: 0, End: 10})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if StatusCode(err) != http.StatusNotFound {
		t.Errorf("status = %d", StatusCode(err))
	}
}

func TestLazyTokenRefresh(t *testing.T) {
	var tokenCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			n := tokenCalls.Add(1)
			if n == 1 {
				// First grant: a lifetime shorter than the refresh
				// margin, stale from the moment it is issued.
				tokenResponse(w, "stale-at", 30)
			} else {
				tokenResponse(w, "fresh-at", 3600)
			}
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer fresh-at" {
			t.Errorf("stats request used %q, want the refreshed token", got)
		}
		raw, _ := sonnet.Marshal(map[string]any{"items": []statJSON{
			{StatID: "1", Key: "k", Type: "int", Value: 1},
		}})
		w.Write(raw)
	}))
	defer srv.Close()

	h := newTestBackend(srv)
	identify(t, h, "1")

	if _, err := h.GetUserStats(context.Background(), 42); err != nil {
		t.Fatalf("GetUserStats: %v", err)
	}
	if got := tokenCalls.Load(); got != 2 {
		t.Errorf("token grants = %d, want 2 (initial + lazy refresh)", got)
	}

	// A second call within the fresh token's lifetime must not refresh.
	if _, err := h.GetUserStats(context.Background(), 42); err != nil {
		t.Fatalf("GetUserStats: %v", err)
	}
	if got := tokenCalls.Load(); got != 2 {
		t.Errorf("token grants = %d after warm call, want 2", got)
	}
}

func TestRefreshTokenWithoutIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	h := newTestBackend(srv)
	if _, _, err := h.RefreshToken(context.Background(), "1", "secret"); !errors.Is(err, ErrNoToken) {
		t.Fatalf("err = %v, want ErrNoToken", err)
	}
}

func TestTokenStale(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		rec  types.TokenRecord
		want bool
	}{
		{
			"fresh opaque token",
			types.TokenRecord{AccessToken: "opaque", ObtainedAt: now, ExpiresIn: 3600},
			false,
		},
		{
			"expired opaque token",
			types.TokenRecord{AccessToken: "opaque", ObtainedAt: now.Add(-2 * time.Hour), ExpiresIn: 3600},
			true,
		},
		{
			"inside refresh margin",
			types.TokenRecord{AccessToken: "opaque", ObtainedAt: now.Add(-3570 * time.Second), ExpiresIn: 3600},
			true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tokenStale(tc.rec, now); got != tc.want {
				t.Errorf("tokenStale = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRequestTimeoutConfigurable(t *testing.T) {
	h := NewHTTP(Config{Timeout: 5 * time.Second}, log.Nop())
	if h.hc.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", h.hc.Timeout)
	}

	h = NewHTTP(Config{}, log.Nop())
	if h.hc.Timeout != defaultTimeout {
		t.Errorf("timeout = %v, want default", h.hc.Timeout)
	}
}
