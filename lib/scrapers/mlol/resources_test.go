package mlol

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"mlol-client/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func serveTestdata(t *testing.T, name string) http.HandlerFunc {
	contents, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write(contents)
	}
}

func newLoansAPI(t *testing.T) *httptest.Server {
	loanID := base64.StdEncoding.EncodeToString([]byte("555666"))
	loans := fmt.Sprintf(
		`{"loans": [{"id": 150218191, "dc_title": "Il nome della rosa", "dc_creator": "Eco, Umberto", "url_download": "https://test.medialibrary.it/loan/%s", "acquired": "2024-03-01", "expired": "2024-03-15"}]}`,
		loanID,
	)
	history := `{"loans": [{"id": 150218192, "dc_title": "Lessico famigliare", "url_download": "aGlzdG9yeQ==", "acquired": "2023-01-01", "expired": "2023-01-15"}, {"id": 150218193, "dc_title": "Non un prestito"}]}`

	mux := http.NewServeMux()
	mux.HandleFunc("/app/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"token": "tok123"}`)
	})
	mux.HandleFunc("/app/loans", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "tok123", r.URL.Query().Get("token"))
		writeJSON(w, loans)
	})
	mux.HandleFunc("/app/loanhistory", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, history)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestGetResources(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:mlol")
	defer cleanup()

	portal := newFakePortal(t, "300")
	portal.mux.HandleFunc("/user/risorse.aspx", serveTestdata(t, "reservations_page.html"))
	portal.mux.HandleFunc("/commons/QueuePos.aspx", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "88421", r.URL.Query().Get("id"))
		fmt.Fprint(w, "Sei il 3° utente in coda")
	})

	client := newTestClient(t, portal, ClientOptions{
		LibraryID:  "300",
		APIBaseURL: newLoansAPI(t).URL,
	})

	resources, err := client.GetResources(context.Background(), ResourceOptions{})
	require.NoError(t, err)

	require.Len(t, resources.Reservations, 1)
	reservation := resources.Reservations[0]
	require.Equal(t, "88421", reservation.ID)
	require.Equal(t, "150218191", reservation.Book.ID)
	require.Equal(t, ReservationStatusActive, reservation.Status)
	require.NotNil(t, reservation.QueuePosition)
	require.Equal(t, 3, *reservation.QueuePosition)

	require.Len(t, resources.ActiveLoans, 1)
	require.Equal(t, "555666", resources.ActiveLoans[0].ID)
	require.Equal(t, "150218191", resources.ActiveLoans[0].Book.ID)

	// the entry without a download URL is not a loan
	require.Len(t, resources.LoanHistory, 1)
	require.Equal(t, "150218192", resources.LoanHistory[0].Book.ID)
}

func TestGetResourcesQueueLookupFailure(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:mlol")
	defer cleanup()

	portal := newFakePortal(t, "300")
	portal.mux.HandleFunc("/user/risorse.aspx", serveTestdata(t, "reservations_page.html"))
	portal.mux.HandleFunc("/commons/QueuePos.aspx", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>errore</html>")
	})

	client := newTestClient(t, portal, ClientOptions{
		LibraryID:  "300",
		APIBaseURL: newLoansAPI(t).URL,
	})

	// a failed queue lookup degrades to an absent position
	resources, err := client.GetResources(context.Background(), ResourceOptions{})
	require.NoError(t, err)
	require.Len(t, resources.Reservations, 1)
	require.Nil(t, resources.Reservations[0].QueuePosition)
}

func TestGetResourcesDeep(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:mlol")
	defer cleanup()

	portal := newFakePortal(t, "300")
	portal.mux.HandleFunc("/user/risorse.aspx", serveTestdata(t, "reservations_page.html"))
	portal.mux.HandleFunc("/commons/QueuePos.aspx", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Sei il 3° utente in coda")
	})
	portal.mux.HandleFunc("/media/scheda.aspx", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w,
			`<html><body><h1 class="book-title">Book %s</h1><div class="publisher_title"><span><a href="#">Bompiani</a></span></div><div class="panel-mlol">PRENOTATO</div></body></html>`,
			r.URL.Query().Get("id"),
		)
	})

	client := newTestClient(t, portal, ClientOptions{
		LibraryID:  "300",
		APIBaseURL: newLoansAPI(t).URL,
	})

	resources, err := client.GetResources(context.Background(), ResourceOptions{Deep: true})
	require.NoError(t, err)

	require.Len(t, resources.Reservations, 1)
	book := resources.Reservations[0].Book
	require.Equal(t, "150218191", book.ID)
	require.Equal(t, "Book 150218191", book.Title)
	require.Equal(t, "Bompiani", book.Publisher)
	require.Equal(t, StatusReserved, book.Status)

	require.Len(t, resources.ActiveLoans, 1)
	require.Equal(t, "Book 150218191", resources.ActiveLoans[0].Book.Title)
}
