package mlol

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// The mobile API speaks JSON and authenticates with a bearer token
// passed as a query parameter, exchanged once at construction time for
// (username, password, library id).

type apiLoginResponse struct {
	Token string `json:"token"`
}

type apiBook struct {
	ID          json.Number `json:"id"`
	Title       string      `json:"dc_title"`
	Creator     string      `json:"dc_creator"`
	Source      string      `json:"dc_source"`
	ISBN        string      `json:"isbn"`
	PubDate     string      `json:"pubdate"`
	Format      string      `json:"dc_format"`
	URLDownload string      `json:"url_download"`
	Acquired    string      `json:"acquired"`
	Expired     string      `json:"expired"`
}

type apiLoansResponse struct {
	Loans []apiBook `json:"loans"`
}

type apiProfileResponse struct {
	UserID                json.Number `json:"userid"`
	FirstName             string      `json:"firstname"`
	LastName              string      `json:"lastname"`
	Username              string      `json:"username"`
	LoansRemaining        json.Number `json:"ebook_loans_remaining"`
	ReservationsRemaining json.Number `json:"ebook_reservations_remaining"`
	Expires               string      `json:"expires"`
}

type apiPortal struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
	URL  string      `json:"url"`
}

type apiPortalsResponse struct {
	Portals []apiPortal `json:"portals"`
}

func (c *Client) fetchAPIToken(ctx context.Context) (string, error) {
	res, err := c.api.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username": c.username,
			"password": c.password,
			"portal":   c.libraryID,
			"app_code": "",
		}).
		Post(apiEpLogin)
	if err != nil {
		return "", err
	}

	var login apiLoginResponse
	err = decodeAPIResponse(res.Header().Get("Content-Type"), res.Body(), &login)
	if err != nil {
		return "", err
	}
	if login.Token == "" {
		return "", fmt.Errorf("login response carried no token: %w", ErrAPIUnavailable)
	}
	return login.Token, nil
}

// apiGet performs an authenticated GET against the API host, failing
// fast with ErrAPIUnavailable when no token was obtained.
func (c *Client) apiGet(ctx context.Context, path string, out any) error {
	if c.apiToken == "" {
		return ErrAPIUnavailable
	}

	res, err := c.api.R().
		SetContext(ctx).
		SetQueryParam("token", c.apiToken).
		Get(path)
	if err != nil {
		return err
	}
	return decodeAPIResponse(res.Header().Get("Content-Type"), res.Body(), out)
}

func decodeAPIResponse(contentType string, body []byte, out any) error {
	if !strings.Contains(contentType, "application/json") {
		return fmt.Errorf("unexpected api response content type %q: %w", contentType, ErrUnknownOutcome)
	}
	err := json.Unmarshal(body, out)
	if err != nil {
		return fmt.Errorf("decode api response: %w", err)
	}
	return nil
}

// GetUser fetches the account profile over the API channel.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	ctx, span := tracer.Start(ctx, "GetUser")
	defer span.End()

	var profile apiProfileResponse
	err := c.apiGet(ctx, apiEpProfile, &profile)
	if err != nil {
		return nil, err
	}
	return userFromAPI(profile), nil
}

// Portals lists every participating library branch known to the API.
func (c *Client) Portals(ctx context.Context) ([]Portal, error) {
	ctx, span := tracer.Start(ctx, "Portals")
	defer span.End()

	var listing apiPortalsResponse
	err := c.apiGet(ctx, apiEpPortals, &listing)
	if err != nil {
		return nil, err
	}

	portals := make([]Portal, 0, len(listing.Portals))
	for _, p := range listing.Portals {
		portals = append(portals, Portal{
			ID:   p.ID.String(),
			Name: p.Name,
			URL:  p.URL,
		})
	}
	return portals, nil
}

func (c *Client) activeLoans(ctx context.Context) ([]Loan, error) {
	var res apiLoansResponse
	err := c.apiGet(ctx, apiEpLoans, &res)
	if err != nil {
		return nil, err
	}
	return loansFromAPI(res.Loans), nil
}

func (c *Client) loanHistory(ctx context.Context) ([]Loan, error) {
	var res apiLoansResponse
	err := c.apiGet(ctx, apiEpLoanHistory, &res)
	if err != nil {
		return nil, err
	}
	return loansFromAPI(res.Loans), nil
}
