package mlol

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func loadDocument(t *testing.T, name string) *goquery.Document {
	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)
	return doc
}

func TestParseSearchPage(t *testing.T) {
	doc := loadDocument(t, "search_page.html")
	books := parseSearchPage(doc)

	// the fourth entry has no title attribute and must be skipped
	expected := []Book{
		{
			ID:      "150218191",
			Title:   "Il nome della rosa",
			Authors: []string{"Umberto Eco"},
		},
		{
			ID:      "150218192",
			Title:   "Lessico famigliare",
			Authors: []string{"Ginzburg, Natalia"},
		},
		{
			ID:      "150218193",
			Title:   "Il Gattopardo",
			Authors: []string{"Giuseppe Tomasi di Lampedusa", "Gioacchino Lanza Tomasi"},
		},
		{
			ID:    "150218195",
			Title: "La coscienza di Zeno",
		},
	}
	require.Empty(t, cmp.Diff(expected, books))
}

func TestParsePageCount(t *testing.T) {
	doc := loadDocument(t, "search_page.html")
	require.Equal(t, 3, parsePageCount(doc))

	empty, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body></body></html>"))
	require.NoError(t, err)
	require.Equal(t, 1, parsePageCount(empty))
}

func TestParseBookStatus(t *testing.T) {
	cases := []struct {
		text     string
		expected BookStatus
	}{
		{"SCARICA EBOOK", StatusAvailable},
		{"  Ripeti il download  ", StatusOwned},
		{"PRENOTATO", StatusReserved},
		{"OCCUPATO", StatusTaken},
		{"NON DISPONIBILE", StatusUnavailable},
		{"qualcosa di inatteso", StatusUnknown},
		{"", StatusUnknown},
	}
	for _, test := range cases {
		require.Equal(t, test.expected, parseBookStatus(test.text), "text: %q", test.text)
	}
}

func TestParseFormats(t *testing.T) {
	cases := []struct {
		text    string
		formats []string
		drm     bool
	}{
		{"EPUB/PDF con DRM Adobe", []string{"epub", "pdf"}, true},
		{"EPUB social DRM", []string{"epub"}, true},
		{"PDF aperto", []string{"pdf"}, false},
		{"", nil, false},
	}
	for _, test := range cases {
		formats, drm := parseFormats(test.text)
		require.Equal(t, test.formats, formats, "text: %q", test.text)
		require.Equal(t, test.drm, drm, "text: %q", test.text)
	}
}

func TestParseCategories(t *testing.T) {
	text := "# in Narrativa / Gialli e Thriller\n\n# in Narrativa / Romanzi storici"
	expected := [][]string{
		{"Narrativa", "Gialli e Thriller"},
		{"Narrativa", "Romanzi storici"},
	}
	require.Empty(t, cmp.Diff(expected, parseCategories(text)))
}

func TestParseBookPage(t *testing.T) {
	doc := loadDocument(t, "book_page.html")
	book := parseBookPage(doc)

	drm := true
	expected := Book{
		Title:       "Il nome della rosa",
		Authors:     []string{"Umberto Eco"},
		Status:      StatusAvailable,
		Publisher:   "Bompiani",
		ISBNs:       []string{"9788858771457", "9788845292613"},
		Language:    "ITALIANO",
		Description: "Nel novembre del 1327 frate Guglielmo da Baskerville giunge in una badia benedettina dell'Italia settentrionale.",
		Year:        2018,
		Formats:     []string{"epub", "pdf"},
		DRM:         &drm,
		Categories: [][]string{
			{"Narrativa", "Gialli e Thriller"},
			{"Narrativa", "Romanzi storici"},
		},
	}
	require.Empty(t, cmp.Diff(expected, book))
}

func TestParseBookPageMissingFields(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><body><h1 class="book-title">Solo il titolo</h1></body></html>`,
	))
	require.NoError(t, err)

	// every other field stays absent without affecting the rest
	book := parseBookPage(doc)
	require.Empty(t, cmp.Diff(Book{Title: "Solo il titolo"}, book))
}

func TestParseReservationList(t *testing.T) {
	doc := loadDocument(t, "reservations_page.html")
	reservations := parseReservationList(doc)

	// the second entry has no cancel link and must be skipped
	expected := []Reservation{
		{
			ID: "88421",
			Book: Book{
				ID:      "150218191",
				Title:   "Il nome della rosa",
				Authors: []string{"Umberto Eco"},
			},
			Date:   time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC),
			Status: ReservationStatusActive,
		},
	}
	require.Empty(t, cmp.Diff(expected, reservations))
}

func TestParseReservationAbsoluteLinks(t *testing.T) {
	// some portal skins render the action links as absolute URLs
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><body><div id="mlolreservation"><div class="bottom-buffer">
		<a href="https://test.medialibrary.it/media/scheda.aspx?id=150218191">Vai alla scheda</a>
		<a>senza href</a>
		<a href="https://test.medialibrary.it/media/annullaPr.aspx?id=88421">Annulla</a>
		</div></div></body></html>`,
	))
	require.NoError(t, err)

	reservations := parseReservationList(doc)
	require.Len(t, reservations, 1)
	require.Equal(t, "88421", reservations[0].ID)
	require.Equal(t, "150218191", reservations[0].Book.ID)
}

func TestParseQueuePosition(t *testing.T) {
	cases := []struct {
		body     string
		expected *int
	}{
		{"Sei il 3° utente in coda", intPtr(3)},
		{"Sei il 12° utente in coda per questo titolo", intPtr(12)},
		{"Nessuna prenotazione", nil},
		{"in coda", nil},
		{"", nil},
	}
	for _, test := range cases {
		got := parseQueuePosition(test.body)
		if test.expected == nil {
			require.Nil(t, got, "body: %q", test.body)
			continue
		}
		require.NotNil(t, got, "body: %q", test.body)
		require.Equal(t, *test.expected, *got, "body: %q", test.body)
	}
}

func intPtr(n int) *int {
	return &n
}
