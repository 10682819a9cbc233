package mlol

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"mlol-client/lib/telemetry"

	"github.com/stretchr/testify/require"
)

const (
	testDomain   = "test.medialibrary.it"
	testUsername = "user"
	testPassword = "pass"
)

const indexPage = `<html><body>
<form>
<select id="lente" name="lente">
  <option value="100">Biblioteca A</option>
  <option value="200">Biblioteca B</option>
  <option value="300">Biblioteca C</option>
</select>
</form>
</body></html>`

// fakePortal is a minimal stand-in for the web portal: an index page
// with library id options and a login endpoint that accepts exactly one
// (id, username, password) combination. Tests register further handlers
// on mux.
type fakePortal struct {
	mux    *http.ServeMux
	server *httptest.Server

	acceptID string

	mu            sync.Mutex
	loginAttempts []string
}

func newFakePortal(t *testing.T, acceptID string) *fakePortal {
	p := &fakePortal{
		mux:      http.NewServeMux(),
		acceptID: acceptID,
	}

	p.mux.HandleFunc("/home/index.aspx", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, indexPage)
	})
	p.mux.HandleFunc("/user/login.aspx", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		id := r.FormValue("lente")

		p.mu.Lock()
		p.loginAttempts = append(p.loginAttempts, id)
		p.mu.Unlock()

		ok := id == p.acceptID &&
			r.FormValue("lusername") == testUsername &&
			r.FormValue("lpassword") == testPassword
		if ok {
			http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "session", Path: "/"})
			w.Header().Set("Location", loginSuccessLocation)
		} else {
			w.Header().Set("Location", "/user/logform.aspx?error=1")
		}
		w.WriteHeader(http.StatusFound)
	})

	p.server = httptest.NewServer(p.mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakePortal) attempts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.loginAttempts...)
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, body)
}

func newFakeAPI(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/app/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"token": "tok123"}`)
	})
	mux.HandleFunc("/app/loans", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"loans": []}`)
	})
	mux.HandleFunc("/app/loanhistory", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"loans": []}`)
	})
	mux.HandleFunc("/app/profile", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"userid": 42, "firstname": "UMBERTO", "lastname": "eco", "username": "ueco", "ebook_loans_remaining": 2, "ebook_reservations_remaining": 1, "expires": "2025-01-31"}`)
	})
	mux.HandleFunc("/app/portals", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"portals": [{"id": 300, "name": "Biblioteca C", "url": "https://test.medialibrary.it"}]}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, portal *fakePortal, opts ClientOptions) *Client {
	if opts.Domain == "" {
		opts.Domain = testDomain
	}
	if opts.Username == "" {
		opts.Username = testUsername
	}
	if opts.Password == "" {
		opts.Password = testPassword
	}
	if opts.MappingPath == "" {
		opts.MappingPath = filepath.Join(t.TempDir(), "library_mapping.json")
	}
	if opts.APIBaseURL == "" {
		opts.APIBaseURL = newFakeAPI(t).URL
	}
	opts.BaseURL = portal.server.URL

	client, err := NewClient(context.Background(), opts)
	require.NoError(t, err)
	return client
}

func TestLibraryIDDiscovery(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:mlol")
	defer cleanup()

	portal := newFakePortal(t, "300")
	mappingPath := filepath.Join(t.TempDir(), "library_mapping.json")

	client := newTestClient(t, portal, ClientOptions{MappingPath: mappingPath})

	require.Equal(t, "300", client.LibraryID())
	require.True(t, client.IsLoggedIn())
	// every option tried in document order until one is accepted
	require.Equal(t, []string{"100", "200", "300"}, portal.attempts())
	// the discovered id is persisted for the next client
	require.Equal(t, "300", savedLibraryID(mappingPath, testUsername, testDomain))
}

func TestCachedLibraryIDSkipsDiscovery(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:mlol")
	defer cleanup()

	portal := newFakePortal(t, "200")
	mappingPath := filepath.Join(t.TempDir(), "library_mapping.json")
	require.NoError(t, updateLibraryMapping(mappingPath, testUsername, testDomain, "200"))

	client := newTestClient(t, portal, ClientOptions{MappingPath: mappingPath})

	require.Equal(t, "200", client.LibraryID())
	require.Equal(t, []string{"200"}, portal.attempts())
}

func TestExplicitLibraryIDFailureIsTerminal(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:mlol")
	defer cleanup()

	portal := newFakePortal(t, "300")

	_, err := NewClient(context.Background(), ClientOptions{
		Domain:      testDomain,
		Username:    testUsername,
		Password:    testPassword,
		LibraryID:   "100",
		MappingPath: filepath.Join(t.TempDir(), "library_mapping.json"),
		BaseURL:     portal.server.URL,
		APIBaseURL:  newFakeAPI(t).URL,
	})
	require.ErrorIs(t, err, ErrLoginFailed)
	// an explicit id is never second-guessed with discovery
	require.Equal(t, []string{"100"}, portal.attempts())
}

func TestAnonymousClient(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:mlol")
	defer cleanup()

	portal := newFakePortal(t, "300")

	client, err := NewClient(context.Background(), ClientOptions{
		BaseURL: portal.server.URL,
	})
	require.NoError(t, err)
	require.False(t, client.IsLoggedIn())
	require.Empty(t, portal.attempts())

	_, err = client.GetUser(context.Background())
	require.ErrorIs(t, err, ErrAPIUnavailable)

	_, err = client.DownloadBookByID(context.Background(), "150218191")
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestAPITokenFailureDegradesGracefully(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:mlol")
	defer cleanup()

	portal := newFakePortal(t, "300")

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/app/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	api := httptest.NewServer(apiMux)
	t.Cleanup(api.Close)

	// the web session is live, so construction still succeeds
	client := newTestClient(t, portal, ClientOptions{APIBaseURL: api.URL})
	require.Equal(t, "300", client.LibraryID())
	require.False(t, client.IsLoggedIn())

	_, err := client.GetUser(context.Background())
	require.ErrorIs(t, err, ErrAPIUnavailable)
}

func TestTransientStatusRetriedOnGet(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:mlol")
	defer cleanup()

	portal := newFakePortal(t, "300")

	var hits int
	var mu sync.Mutex
	portal.mux.HandleFunc("/media/scheda.aspx", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		n := hits
		mu.Unlock()

		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `<html><body><h1 class="book-title">Il nome della rosa</h1></body></html>`)
	})

	client := newTestClient(t, portal, ClientOptions{})
	book, err := client.GetBookByID(context.Background(), "150218191")
	require.NoError(t, err)
	require.NotNil(t, book)
	require.Equal(t, "Il nome della rosa", book.Title)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 2, hits)
}

func TestFailedLoginPostIsNotRetried(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:mlol")
	defer cleanup()

	var hits int
	var mu sync.Mutex
	failing := http.NewServeMux()
	failing.HandleFunc("/user/login.aspx", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(failing)
	t.Cleanup(server.Close)

	_, err := NewClient(context.Background(), ClientOptions{
		Domain:      testDomain,
		Username:    testUsername,
		Password:    testPassword,
		LibraryID:   "300",
		MappingPath: filepath.Join(t.TempDir(), "library_mapping.json"),
		BaseURL:     server.URL,
		APIBaseURL:  newFakeAPI(t).URL,
	})
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	require.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, hits)
}
