package mlol

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ReserveBookByID places a reservation on a taken book. The boolean
// reports whether a reservation is in place afterwards: true for both a
// fresh reservation and an already-active one. A recognized rejection
// returns (false, nil); an unrecognizable outcome page returns
// ErrUnknownOutcome.
func (c *Client) ReserveBookByID(ctx context.Context, bookID string, email string) (bool, error) {
	ctx, span := tracer.Start(ctx, "ReserveBookByID")
	defer span.End()

	if !c.hasSessionCookie() {
		slog.Error("you need to be authenticated to reserve books")
		return false, ErrNotAuthenticated
	}

	book, err := c.GetBookByID(ctx, bookID)
	if err != nil {
		return false, err
	}
	if book == nil {
		return false, fmt.Errorf("book %s: %w", bookID, ErrNotFound)
	}
	if book.Status != StatusTaken {
		slog.Error(
			"only taken books can be reserved",
			"id", bookID,
			"status", book.Status,
		)
		return false, &StatusError{Op: "reserve", Want: StatusTaken, Got: book.Status}
	}

	// the query string is assembled by hand: the portal rejects a
	// percent-encoded email address
	res, err := c.web.R().
		SetContext(ctx).
		SetHeader("Host", c.domain).
		SetHeader("Referer", fmt.Sprintf("%s%s?id=%s", c.baseURL, epPreReserve, bookID)).
		SetHeader("Accept", "text/html, */*; q=0.01").
		Get(fmt.Sprintf("%s?id=%s&email=%s", epReserve, bookID, email))
	if err != nil {
		return false, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return false, fmt.Errorf("parse reservation outcome: %w", err)
	}
	banner := doc.Find("#lblInfo").First()
	if banner.Length() == 0 {
		slog.Error("failed to reserve book, no outcome banner", "id", bookID)
		return false, fmt.Errorf("reserve book %s: %w", bookID, ErrUnknownOutcome)
	}

	message := strings.ToLower(strings.TrimSpace(banner.Text()))
	switch {
	case strings.Contains(message, reserveSuccessPhrase):
		slog.Info("book reserved", "id", bookID)
		return true, nil
	case strings.Contains(message, reserveActivePhrase):
		slog.Warn("you already have an active reservation for this book", "id", bookID)
		return true, nil
	default:
		slog.Error("failed to reserve book", "id", bookID, "message", message)
		return false, nil
	}
}

// ReserveBook reserves through a previously obtained Book.
func (c *Client) ReserveBook(ctx context.Context, book Book, email string) (bool, error) {
	return c.ReserveBookByID(ctx, book.ID, email)
}

// CancelReservationByID cancels a reservation by its own id. The portal
// answers with a redirect whose msg code carries the outcome: a
// recognized failure code returns (false, nil), anything else
// ErrUnknownOutcome.
func (c *Client) CancelReservationByID(ctx context.Context, reservationID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "CancelReservationByID")
	defer span.End()

	if !c.hasSessionCookie() {
		slog.Error("you need to be authenticated to cancel reservations")
		return false, ErrNotAuthenticated
	}

	res, err := c.webBare.R().
		SetContext(ctx).
		SetHeader("Host", c.domain).
		SetHeader("Referer", c.baseURL.String()+epResources).
		SetQueryParam("id", reservationID).
		Get(epCancelReservation)
	if err != nil {
		return false, err
	}

	location := res.Header().Get("Location")
	switch {
	case strings.HasSuffix(location, cancelSuccessSuffix):
		slog.Info("reservation canceled", "id", reservationID)
		return true, nil
	case strings.HasSuffix(location, cancelFailureSuffix):
		slog.Error("failed to cancel reservation", "id", reservationID)
		return false, nil
	default:
		slog.Error(
			"unexpected outcome while canceling reservation",
			"id", reservationID,
			"location", location,
		)
		return false, fmt.Errorf("cancel reservation %s: %w", reservationID, ErrUnknownOutcome)
	}
}

// CancelBookReservation cancels the reservation held on a book. When
// the book's status is unknown it is re-fetched first; a book that is
// not reserved is rejected with a StatusError. The reservation id is
// resolved through the account's reservation listing.
func (c *Client) CancelBookReservation(ctx context.Context, book Book) (bool, error) {
	ctx, span := tracer.Start(ctx, "CancelBookReservation")
	defer span.End()

	if !c.hasSessionCookie() {
		slog.Error("you need to be authenticated to cancel reservations")
		return false, ErrNotAuthenticated
	}

	if book.Status == StatusUnknown {
		fetched, err := c.GetBookByID(ctx, book.ID)
		if err != nil {
			return false, err
		}
		if fetched == nil {
			return false, fmt.Errorf("book %s: %w", book.ID, ErrNotFound)
		}
		book = *fetched
	}
	if book.Status != StatusReserved {
		slog.Error(
			"book has no reservation to cancel",
			"id", book.ID,
			"status", book.Status,
		)
		return false, &StatusError{Op: "cancel reservation", Want: StatusReserved, Got: book.Status}
	}

	reservations, err := c.listReservations(ctx)
	if err != nil {
		return false, err
	}
	for _, reservation := range reservations {
		if reservation.Book.ID == book.ID {
			return c.CancelReservationByID(ctx, reservation.ID)
		}
	}

	slog.Error("could not find a reservation for the book", "id", book.ID)
	return false, fmt.Errorf("reservation for book %s: %w", book.ID, ErrNotFound)
}
