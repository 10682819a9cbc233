package mlol

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

// DownloadBookByID fetches the ebook fulfillment document (an ACSM
// token) for a book. Available books start a new loan; owned books are
// redownloaded through their active loan. Any other status is rejected
// with a StatusError before touching the portal.
func (c *Client) DownloadBookByID(ctx context.Context, bookID string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "DownloadBookByID")
	defer span.End()

	if !c.hasSessionCookie() {
		slog.Error("you need to be authenticated to download books")
		return nil, ErrNotAuthenticated
	}

	book, err := c.GetBookByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, fmt.Errorf("book %s: %w", bookID, ErrNotFound)
	}

	var res *resty.Response
	switch book.Status {
	case StatusOwned:
		slog.Info("book already owned, redownloading it", "id", bookID)
		res, err = c.redownloadOwnedBook(ctx, bookID)
	case StatusAvailable:
		res, err = c.webBare.R().
			SetContext(ctx).
			SetHeader("Host", c.domain).
			SetHeader("Referer", fmt.Sprintf(
				"%s/media/downloadebad2.aspx?unid=%s&form=epub", c.baseURL, bookID,
			)).
			SetQueryParams(map[string]string{
				"unid": bookID,
				"form": "epub",
			}).
			Get(epDownload)
	default:
		slog.Error(
			"book is not available for download",
			"id", bookID,
			"status", book.Status,
		)
		return nil, &StatusError{Op: "download", Want: StatusAvailable, Got: book.Status}
	}
	if err != nil {
		return nil, err
	}

	// the portal hands off fulfillment to an external host through a
	// single redirect, followed manually so the cross-site fetch headers
	// can be set
	if res.StatusCode() == http.StatusFound {
		location := res.Header().Get("Location")
		res, err = c.web.R().
			SetContext(ctx).
			SetHeader("Sec-Fetch-Site", "cross-site").
			Get(location)
		if err != nil {
			return nil, fmt.Errorf("follow fulfillment redirect: %w", err)
		}
	}

	if !strings.HasPrefix(res.String(), fulfillmentTokenMarker) {
		slog.Error("failed to download book", "id", bookID)
		return nil, fmt.Errorf("download book %s: %w", bookID, ErrUnknownOutcome)
	}

	slog.Info("book downloaded", "id", bookID)
	return res.Body(), nil
}

// DownloadBook downloads through a previously obtained Book.
func (c *Client) DownloadBook(ctx context.Context, book Book) ([]byte, error) {
	return c.DownloadBookByID(ctx, book.ID)
}

// redownloadOwnedBook resolves the active loan for the book and replays
// its fulfillment. The loan id comes from the API channel, so an owned
// book cannot be redownloaded while the API is down.
func (c *Client) redownloadOwnedBook(ctx context.Context, bookID string) (*resty.Response, error) {
	loans, err := c.activeLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("active loans: %w", err)
	}

	loanID := ""
	for _, loan := range loans {
		if loan.Book.ID == bookID {
			loanID = loan.ID
			break
		}
	}
	if loanID == "" {
		slog.Error("failed to find the book among your active loans", "id", bookID)
		return nil, fmt.Errorf("loan for book %s: %w", bookID, ErrNotFound)
	}

	return c.webBare.R().
		SetContext(ctx).
		SetHeader("Host", c.domain).
		SetHeader("Referer", fmt.Sprintf(
			"%s/help/helpdeskdl.aspx?idp=%s", c.baseURL, loanID,
		)).
		SetQueryParam("idp", loanID).
		Get(epRedownload)
}
