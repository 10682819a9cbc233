package mlol

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
)

type ResourceOptions struct {
	// Deep replaces every book stub in the listing with its detail-page
	// book.
	Deep bool
}

// GetResources collects everything tied to the account: reservations
// from the web channel, active loans and loan history from the API
// channel.
func (c *Client) GetResources(ctx context.Context, opts ResourceOptions) (*Resources, error) {
	ctx, span := tracer.Start(ctx, "GetResources")
	defer span.End()

	if !c.hasSessionCookie() {
		slog.Error("you need to be authenticated to list your resources")
		return nil, ErrNotAuthenticated
	}

	reservations, err := c.getReservations(ctx)
	if err != nil {
		return nil, err
	}
	active, err := c.activeLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("active loans: %w", err)
	}
	history, err := c.loanHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("loan history: %w", err)
	}

	resources := &Resources{
		Reservations: reservations,
		ActiveLoans:  active,
		LoanHistory:  history,
	}
	if opts.Deep {
		c.enrichResources(ctx, resources)
	}
	return resources, nil
}

func (c *Client) enrichResources(ctx context.Context, resources *Resources) {
	resolve := func(stub Book) Book {
		book, err := c.GetBookByID(ctx, stub.ID)
		if err != nil {
			slog.Warn("failed to enrich book", "id", stub.ID, "err", err)
			return stub
		}
		if book == nil {
			return stub
		}
		return *book
	}

	for i := range resources.Reservations {
		resources.Reservations[i].Book = resolve(resources.Reservations[i].Book)
	}
	for i := range resources.ActiveLoans {
		resources.ActiveLoans[i].Book = resolve(resources.ActiveLoans[i].Book)
	}
	for i := range resources.LoanHistory {
		resources.LoanHistory[i].Book = resolve(resources.LoanHistory[i].Book)
	}
}

// listReservations parses the reservation listing without the
// per-reservation queue lookups.
func (c *Client) listReservations(ctx context.Context) ([]Reservation, error) {
	res, err := c.web.R().
		SetContext(ctx).
		Get(epResources)
	if err != nil {
		return nil, fmt.Errorf("fetch resources page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse resources page: %w", err)
	}
	return parseReservationList(doc), nil
}

func (c *Client) getReservations(ctx context.Context) ([]Reservation, error) {
	reservations, err := c.listReservations(ctx)
	if err != nil {
		return nil, err
	}
	for i := range reservations {
		reservations[i].QueuePosition = c.getQueuePosition(ctx, reservations[i].ID)
	}
	return reservations, nil
}

// getQueuePosition looks up one reservation's queue rank. Failure is
// reported as an absent position, not an error: the listing is still
// useful without it.
func (c *Client) getQueuePosition(ctx context.Context, reservationID string) *int {
	res, err := c.web.R().
		SetContext(ctx).
		SetQueryParam("id", reservationID).
		Get(epQueuePosition)
	if err != nil {
		slog.Error(
			"failed to fetch queue position",
			"reservation_id", reservationID,
			"err", err,
		)
		return nil
	}

	position := parseQueuePosition(res.String())
	if position == nil {
		slog.Error("failed to parse queue position", "reservation_id", reservationID)
	}
	return position
}
