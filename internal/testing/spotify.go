package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/moodring/backend/internal/shared"
)

const (
	StubClientID     = "stub-client-id"
	StubClientSecret = "stub-client-secret"
	StubRedirectURI  = "moodring://auth"
)

// StubProfile is the profile served for one access token.
type StubProfile struct {
	ID          string
	Email       string
	DisplayName string
	ImageURL    string
}

// SpotifyStub is an in-process fake of the Spotify token and profile endpoints.
//
// Codes map to access tokens, access tokens map to profiles. Refreshing
// returns a fresh access token for the same profile, rotating the refresh
// token only after SetRotateRefresh(true).
type SpotifyStub struct {
	Server *httptest.Server

	mu            sync.Mutex
	codes         map[string]string
	access        map[string]string
	profiles      map[string]StubProfile
	refreshOwners map[string]string
	calls         map[string]int
	lastForm      url.Values
	lastAuth      string
	issued        int
	rotate        bool
	tokenStatus   int
	profileStatus int
	profileBody   string
}

// NewSpotifyStub starts a stub server that is closed when the test ends.
func NewSpotifyStub(t *testing.T) *SpotifyStub {
	t.Helper()

	s := &SpotifyStub{
		codes:         make(map[string]string),
		access:        make(map[string]string),
		profiles:      make(map[string]StubProfile),
		refreshOwners: make(map[string]string),
		calls:         make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", s.handleToken)
	mux.HandleFunc("GET /v1/me", s.handleProfile)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Server.Close)
	return s
}

// Config returns Spotify settings pointing at the stub.
func (s *SpotifyStub) Config() shared.SpotifyConfig {
	return shared.SpotifyConfig{
		ClientID:     StubClientID,
		ClientSecret: StubClientSecret,
		RedirectURI:  StubRedirectURI,
		AuthURL:      s.Server.URL + "/authorize",
		TokenURL:     s.Server.URL + "/api/token",
		APIBaseURL:   s.Server.URL + "/v1",
	}
}

// AddCode registers an authorization code that logs in as profile.
func (s *SpotifyStub) AddCode(code string, profile StubProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code] = profile.ID
	s.profiles[profile.ID] = profile
}

// SetRotateRefresh makes refresh responses carry a new refresh token.
func (s *SpotifyStub) SetRotateRefresh(rotate bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotate = rotate
}

// FailToken makes the token endpoint answer every request with status.
func (s *SpotifyStub) FailToken(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenStatus = status
}

// FailProfile makes the profile endpoint answer every request with status.
func (s *SpotifyStub) FailProfile(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileStatus = status
}

// SetProfileBody makes the profile endpoint write body verbatim.
func (s *SpotifyStub) SetProfileBody(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileBody = body
}

// Calls returns how many times the named endpoint ("token", "profile") was hit.
func (s *SpotifyStub) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

// LastForm returns the form of the most recent token request and its Authorization header.
func (s *SpotifyStub) LastForm() (url.Values, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastForm, s.lastAuth
}

func (s *SpotifyStub) handleToken(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls["token"]++
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.lastForm = r.PostForm
	s.lastAuth = r.Header.Get("Authorization")

	if s.tokenStatus != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.tokenStatus)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"stub failure"}`)
		return
	}

	var profileID, refresh string
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		id, ok := s.codes[r.PostForm.Get("code")]
		if !ok || r.PostForm.Get("code_verifier") == "" {
			s.writeTokenError(w)
			return
		}
		profileID = id
		s.issued++
		refresh = fmt.Sprintf("refresh-%d", s.issued)
		s.refreshOwners[refresh] = id
	case "refresh_token":
		id, ok := s.refreshOwners[r.PostForm.Get("refresh_token")]
		if !ok {
			s.writeTokenError(w)
			return
		}
		profileID = id
		if s.rotate {
			s.issued++
			refresh = fmt.Sprintf("refresh-%d", s.issued)
			s.refreshOwners[refresh] = id
		}
	default:
		s.writeTokenError(w)
		return
	}

	s.issued++
	access := fmt.Sprintf("access-%d", s.issued)
	s.access[access] = profileID

	body := map[string]any{
		"access_token": access,
		"token_type":   "Bearer",
		"scope":        "user-read-private user-read-email",
		"expires_in":   3600,
	}
	if refresh != "" {
		body["refresh_token"] = refresh
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func (s *SpotifyStub) writeTokenError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprint(w, `{"error":"invalid_grant"}`)
}

func (s *SpotifyStub) handleProfile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls["profile"]++
	if s.profileStatus != 0 {
		w.WriteHeader(s.profileStatus)
		fmt.Fprint(w, `{"error":{"status":401,"message":"The access token expired"}}`)
		return
	}
	if s.profileBody != "" {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, s.profileBody)
		return
	}

	var access string
	if _, err := fmt.Sscanf(r.Header.Get("Authorization"), "Bearer %s", &access); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	id, ok := s.access[access]
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	p := s.profiles[id]

	body := map[string]any{"id": p.ID, "display_name": nil, "images": []any{}}
	if p.Email != "" {
		body["email"] = p.Email
	}
	if p.DisplayName != "" {
		body["display_name"] = p.DisplayName
	}
	if p.ImageURL != "" {
		body["images"] = []map[string]any{{"url": p.ImageURL, "height": 300, "width": 300}}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
