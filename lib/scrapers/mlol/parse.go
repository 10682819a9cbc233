package mlol

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mlol-client/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Stateless extraction from portal markup. Every field is pulled
// defensively: missing or malformed markup produces an absent field and
// at most a log line, never a failed parse. The upstream HTML is known
// to vary by book and by library.

var bookIDRegex = regexp.MustCompile(`id=(\d+)$`)

// authorStrategy is one selector in the ordered fallback chain used on
// search result entries. Strategies are tried in order; the first one
// yielding non-empty text wins.
type authorStrategy struct {
	name    string
	extract func(entry *goquery.Selection) string
}

var authorStrategies = []authorStrategy{
	{
		name: "p > a.authorref",
		extract: func(entry *goquery.Selection) string {
			return entry.Find("p > a.authorref").First().Text()
		},
	},
	{
		name: "p[itemprop=author]",
		extract: func(entry *goquery.Selection) string {
			return entry.Find("p[itemprop=author]").First().Text()
		},
	},
	{
		name: ".product-author",
		extract: func(entry *goquery.Selection) string {
			return entry.Find(".product-author").First().Text()
		},
	},
}

func extractAuthors(entry *goquery.Selection) []string {
	for _, strategy := range authorStrategies {
		text := strings.TrimSpace(strategy.extract(entry))
		if text != "" {
			return splitAuthors(text)
		}
	}
	return nil
}

func splitAuthors(text string) []string {
	var authors []string
	for _, author := range strings.Split(text, ";") {
		authors = append(authors, strings.TrimSpace(author))
	}
	return authors
}

// parseSearchPage extracts book stubs from a result listing in document
// order. Entries whose id or title cannot be recovered are skipped, not
// fatal.
func parseSearchPage(doc *goquery.Document) []Book {
	var books []Book
	doc.Find(".result-item").Each(func(i int, entry *goquery.Selection) {
		title, hasTitle := entry.Find("h4").First().Attr("title")
		href, hasHref := entry.Find("a").First().Attr("href")
		idMatch := bookIDRegex.FindStringSubmatch(href)
		if !hasTitle || !hasHref || idMatch == nil {
			slog.Error("could not parse id or title, skipping book", "index", i+1)
			return
		}

		authors := extractAuthors(entry)
		if authors == nil {
			slog.Warn("failed to parse author for book", "title", title)
		}

		books = append(books, Book{
			ID:      idMatch[1],
			Title:   title,
			Authors: authors,
		})
	})
	return books
}

// parseBookStatus maps the action panel's wording to a status by
// substring containment against a fixed ordered vocabulary. Unmatched
// text maps to unknown.
func parseBookStatus(text string) BookStatus {
	text = strings.ToLower(strings.TrimSpace(text))
	for _, entry := range statusVocabulary {
		if strings.Contains(text, entry.substr) {
			return entry.status
		}
	}
	return StatusUnknown
}

// parseFormats splits a string like "EPUB/PDF con DRM Adobe" into
// lowercase format tokens; drm is true iff "drm" appears anywhere in
// the original string.
func parseFormats(text string) ([]string, bool) {
	var formats []string
	if fields := strings.Fields(text); len(fields) > 0 {
		for _, f := range strings.Split(fields[0], "/") {
			formats = append(formats, strings.ToLower(strings.TrimSpace(f)))
		}
	}
	return formats, strings.Contains(strings.ToLower(text), "drm")
}

// parseCategories splits category text into hierarchical paths: one
// path per blank-line-separated block, components split on "/" with the
// leading "# in " marker stripped.
func parseCategories(text string) [][]string {
	text = strings.ReplaceAll(text, "# in ", "")

	var categories [][]string
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		var path []string
		for _, component := range strings.Split(block, "/") {
			component = strings.TrimSpace(component)
			if component != "" {
				path = append(path, component)
			}
		}
		categories = append(categories, path)
	}
	return categories
}

// parseBookPage extracts every detail-page field independently; the
// returned Book carries no ID, the caller knows it.
func parseBookPage(doc *goquery.Document) Book {
	var book Book

	if title := doc.Find(".book-title").First(); title.Length() > 0 {
		book.Title = htmlutil.CleanText(title.Text())
	}

	if authors := doc.Find(".authors_title").First(); authors.Length() > 0 {
		book.Authors = splitAuthors(strings.TrimSpace(authors.Text()))
	}

	if publisher := doc.Find(".publisher_title > span > a").First(); publisher.Length() > 0 {
		book.Publisher = strings.TrimSpace(publisher.Text())
	}

	doc.Find("[itemprop=isbn]").Each(func(_ int, isbn *goquery.Selection) {
		book.ISBNs = append(book.ISBNs, strings.TrimSpace(isbn.Text()))
	})

	if status := doc.Find(".panel-mlol").First(); status.Length() > 0 {
		book.Status = parseBookStatus(status.Text())
	}

	if description := doc.Find("div[itemprop=description]").First(); description.Length() > 0 {
		text := htmlutil.CleanText(description.Children().First().Text())
		if text == "" {
			text = htmlutil.CleanText(description.Text())
		}
		book.Description = text
	}

	if categories := doc.Find("span[itemprop=keywords]").First(); categories.Length() > 0 {
		book.Categories = parseCategories(categories.Text())
	}

	if language := doc.Find("span[itemprop=inLanguage]").First(); language.Length() > 0 {
		book.Language = strings.TrimSpace(language.Text())
	}

	if year := doc.Find("span[itemprop=datePublished]").First(); year.Length() > 0 {
		if parsed, err := strconv.Atoi(strings.TrimSpace(year.Text())); err == nil {
			book.Year = parsed
		}
	}

	// e.g. "EPUB/PDF con DRM Adobe" in a span next to a FORMATO label
	formatLabel := doc.Find("b").FilterFunction(func(_ int, b *goquery.Selection) bool {
		return strings.Contains(b.Text(), "FORMATO")
	}).First()
	formatText := strings.TrimSpace(formatLabel.Parent().Parent().Find("span").First().Text())
	if formatText != "" {
		formats, drm := parseFormats(formatText)
		book.Formats = formats
		book.DRM = &drm
	} else {
		slog.Warn("failed to parse formats for book", "title", book.Title)
	}

	return book
}

var (
	cancelLinkRegex = regexp.MustCompile(`annullaPr\.aspx\?id=(\d+)$`)
	detailLinkRegex = regexp.MustCompile(`scheda\.aspx\?id=(\d+)$`)
)

const reservationDateLayout = "02/01/2006 15:04"

func findLinkID(entry *goquery.Selection, pattern *regexp.Regexp) string {
	for _, anchor := range htmlutil.GetAnchors(nil, entry.Find("a")) {
		if match := pattern.FindStringSubmatch(anchor.Href); match != nil {
			return match[1]
		}
	}
	return ""
}

// parseReservationEntry turns one listing entry into a Reservation. The
// cancel link supplies the reservation id and the detail link the book
// id; an entry missing either is unusable and yields nil.
func parseReservationEntry(entry *goquery.Selection, index int) *Reservation {
	reservationID := findLinkID(entry, cancelLinkRegex)
	if reservationID == "" {
		slog.Error("could not find reservation id for reservation", "index", index+1)
		return nil
	}

	bookID := findLinkID(entry, detailLinkRegex)
	if bookID == "" {
		slog.Error("could not find book id for reservation", "index", index+1)
		return nil
	}

	reservation := &Reservation{
		ID:   reservationID,
		Book: Book{ID: bookID},
	}

	if title := entry.Find("div > div > h3").First(); title.Length() > 0 {
		reservation.Book.Title = htmlutil.CleanText(title.Text())
	}
	if authors := entry.Find("span[itemprop=author]").First(); authors.Length() > 0 {
		reservation.Book.Authors = splitAuthors(strings.TrimSpace(authors.Text()))
	}

	rows := entry.Find("tr")

	// fixed table positions: first row holds date and time, second the
	// status; short rows leave the field absent
	if cells := rows.Eq(0).Children(); cells.Length() >= 3 {
		date := strings.TrimSpace(cells.Eq(1).Text())
		clock := strings.TrimSpace(cells.Eq(2).Text())
		parsed, err := time.Parse(reservationDateLayout, date+" "+clock)
		if err == nil {
			reservation.Date = parsed
		}
	}

	if cells := rows.Eq(1).Children(); cells.Length() >= 2 {
		// TODO discover statuses other than "attiva"
		if strings.TrimSpace(cells.Eq(1).Find("b").Text()) == "attiva" {
			reservation.Status = ReservationStatusActive
		}
	}

	return reservation
}

func parseReservationList(doc *goquery.Document) []Reservation {
	var reservations []Reservation
	doc.Find("#mlolreservation div.bottom-buffer").Each(func(i int, entry *goquery.Selection) {
		reservation := parseReservationEntry(entry, i)
		if reservation != nil {
			reservations = append(reservations, *reservation)
		}
	})
	return reservations
}

var queuePositionRegex = regexp.MustCompile(`(\d+)°`)

// parseQueuePosition reads the rank out of the queue-position fragment;
// nil when the fragment doesn't carry one.
func parseQueuePosition(body string) *int {
	if !strings.Contains(body, "in coda") {
		return nil
	}
	match := queuePositionRegex.FindStringSubmatch(body)
	if match == nil {
		return nil
	}
	position, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}
	return &position
}

// parsePageCount reads the pager's page count; a missing attribute
// means a single page.
func parsePageCount(doc *goquery.Document) int {
	pages, err := strconv.Atoi(doc.Find("#pager").AttrOr("data-pages", ""))
	if err != nil || pages < 1 {
		return 1
	}
	return pages
}
