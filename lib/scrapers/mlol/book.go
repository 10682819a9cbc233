package mlol

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// GetBookByID fetches and parses a book's detail page. It returns
// (nil, nil) when the book exists nowhere the library can see it: the
// portal redirects those to an alert page instead of failing.
func (c *Client) GetBookByID(ctx context.Context, bookID string) (*Book, error) {
	ctx, span := tracer.Start(ctx, "GetBookByID")
	defer span.End()

	slog.Debug("fetching book", "id", bookID)

	res, err := c.web.R().
		SetContext(ctx).
		SetQueryParam("id", bookID).
		Get(epBook)
	if err != nil {
		return nil, fmt.Errorf("fetch book %s: %w", bookID, err)
	}

	finalURL := res.Request.URL
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		finalURL = res.RawResponse.Request.URL.String()
	}
	if strings.Contains(finalURL, "alert.aspx") {
		slog.Warn(
			"failed to fetch book, it might not be available to your library",
			"id", bookID,
		)
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse book page %s: %w", bookID, err)
	}

	book := parseBookPage(doc)
	if book.Title == "" {
		slog.Warn("failed to get book title, skipping", "id", bookID)
		return nil, nil
	}

	book.ID = bookID
	return &book, nil
}

// GetBook re-fetches a (possibly stub) book through its detail page.
func (c *Client) GetBook(ctx context.Context, book Book) (*Book, error) {
	return c.GetBookByID(ctx, book.ID)
}
