package mlol

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"mlol-client/lib/restyutil"
	"mlol-client/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// Client drives both channels of the portal: the cookie-based web
// session used for HTML pages and the token-based mobile API. A client
// is safe for concurrent reads once constructed.
type Client struct {
	domain      string
	username    string
	password    string
	libraryID   string
	mappingPath string

	baseURL *url.URL
	jar     *cookiejar.Jar

	// web follows redirects; webBare stops at the first redirect so
	// flows that inspect the Location header can do so. Both share the
	// same cookie jar.
	web     *resty.Client
	webBare *resty.Client
	api     *resty.Client

	apiToken string
}

type ClientOptions struct {
	// Domain, Username and Password must be provided together. When any
	// of them is missing the client degrades to anonymous browsing with
	// a logged warning.
	Domain   string
	Username string
	Password string
	// LibraryID skips discovery when set. Login failure with an
	// explicit id is terminal, no other ids are attempted.
	LibraryID string
	// MappingPath overrides the location of the persisted
	// username@domain -> library id mapping file.
	MappingPath string
	// BaseURL overrides the web portal base URL. Tests point this at a
	// local double.
	BaseURL string
	// APIBaseURL overrides the mobile-API host.
	APIBaseURL string
}

var transientStatuses = map[int]bool{
	404: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// Transient statuses are retried for safe methods only. POST carries
// side effects (login, reservations) and is never replayed.
func retryTransient(res *resty.Response, err error) bool {
	if res == nil {
		return false
	}
	switch res.Request.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
	default:
		return false
	}
	return transientStatuses[res.StatusCode()]
}

// Responses that still fail after the retry budget surface as errors,
// there is no silent partial-failure mode.
func raiseForStatus(_ *resty.Client, res *resty.Response) error {
	if res.StatusCode() < 400 {
		return nil
	}
	return &HTTPError{
		Method:     res.Request.Method,
		URL:        res.Request.URL,
		StatusCode: res.StatusCode(),
	}
}

var schemeRegex = regexp.MustCompile(`^https?://`)

func normalizeDomain(domain string) string {
	domain = schemeRegex.ReplaceAllString(domain, "")
	return strings.TrimRight(domain, "/")
}

func newPortalClient(baseURL string, jar *cookiejar.Jar, limiter *rate.Limiter, followRedirects bool) *resty.Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetCookieJar(jar)
	client.SetHeaders(defaultWebHeaders)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetTimeout(time.Second * 30)

	if !followRedirects {
		client.SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}))
	}

	client.SetRetryCount(2)
	client.SetRetryWaitTime(time.Second)
	client.SetRetryMaxWaitTime(time.Second * 4)
	client.AddRetryCondition(retryTransient)

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})
	client.OnAfterResponse(raiseForStatus)

	return client
}

// NewClient builds a client and, when full credentials are given,
// authenticates both channels. A failed cookie login returns
// ErrLoginFailed. A successful cookie login with a failed token exchange
// returns a usable client whose API-channel operations fail with
// ErrAPIUnavailable.
func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	ctx, span := tracer.Start(ctx, "NewClient")
	defer span.End()

	authenticated := opts.Domain != "" && opts.Username != "" && opts.Password != ""

	base := opts.BaseURL
	if base == "" {
		base = defaultBaseURL
		if authenticated {
			base = "https://" + normalizeDomain(opts.Domain)
		}
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	// 2 requests max per second against the portal, shared by both web
	// clients.
	limiter := rate.NewLimiter(2, 2)

	apiBase := opts.APIBaseURL
	if apiBase == "" {
		apiBase = defaultAPIBaseURL
	}
	api := resty.New()
	api.SetBaseURL(apiBase)
	api.SetHeaders(defaultAPIHeaders)
	api.SetTimeout(time.Second * 30)
	api.SetRetryCount(2)
	api.SetRetryWaitTime(time.Second)
	api.SetRetryMaxWaitTime(time.Second * 4)
	api.AddRetryCondition(retryTransient)
	api.OnAfterResponse(raiseForStatus)

	c := &Client{
		username:    opts.Username,
		password:    opts.Password,
		mappingPath: opts.MappingPath,
		baseURL:     baseURL,
		jar:         jar,
		web:         newPortalClient(base, jar, limiter, true),
		webBare:     newPortalClient(base, jar, limiter, false),
		api:         api,
	}
	if c.mappingPath == "" {
		c.mappingPath = defaultMappingPath()
	}

	telemetry.InstrumentResty(c.web, "scrapers/mlol/web")
	telemetry.InstrumentResty(c.webBare, "scrapers/mlol/web")
	telemetry.InstrumentResty(c.api, "scrapers/mlol/api")
	if restyInstrumentOutput != nil {
		restyutil.InstrumentClient(c.web, restyInstrumentOutput)
		restyutil.InstrumentClient(c.webBare, restyInstrumentOutput)
	}

	if !authenticated {
		slog.Warn(
			"no credentials and subdomain provided, operations requiring " +
				"authentication will not be available",
		)
		return c, nil
	}

	c.domain = normalizeDomain(opts.Domain)

	err = c.authenticate(ctx, opts.LibraryID)
	if err != nil {
		span.SetStatus(codes.Error, "authentication failed")
		span.RecordError(err)
		return nil, err
	}

	token, err := c.fetchAPIToken(ctx)
	if err != nil {
		// web channel still works; API operations report
		// ErrAPIUnavailable
		slog.Error("failed to retrieve api token", "err", err)
		span.RecordError(err)
		return c, nil
	}
	c.apiToken = token

	return c, nil
}

// authenticate resolves the library id (explicit, cached or discovered)
// and performs the cookie login.
func (c *Client) authenticate(ctx context.Context, explicitID string) error {
	ctx, span := tracer.Start(ctx, "authenticate")
	defer span.End()

	libraryID := explicitID
	if libraryID == "" {
		libraryID = savedLibraryID(c.mappingPath, c.username, c.domain)
	}

	if libraryID != "" {
		ok, err := c.loginWeb(ctx, libraryID)
		if err != nil {
			return fmt.Errorf("login with library id %s: %w", libraryID, err)
		}
		if !ok {
			slog.Error(
				"login failed, please make sure your credentials are valid",
				"library_id", libraryID,
			)
			return ErrLoginFailed
		}
		c.libraryID = libraryID
		return nil
	}

	discovered, err := c.discoverLibraryID(ctx)
	if err != nil {
		return fmt.Errorf("library id discovery: %w", err)
	}
	if discovered == "" {
		slog.Error(
			"login failed, please make sure your credentials are valid " +
				"or try to specify a manual library id",
		)
		return ErrLoginFailed
	}

	c.libraryID = discovered
	err = updateLibraryMapping(c.mappingPath, c.username, c.domain, discovered)
	if err != nil {
		slog.Warn("failed to persist library mapping", "err", err)
	}
	return nil
}

// discoverLibraryID enumerates every library id option on the login page
// and attempts a cookie login with each, in document order. The first id
// the portal accepts wins.
func (c *Client) discoverLibraryID(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "discoverLibraryID")
	defer span.End()

	res, err := c.web.R().
		SetContext(ctx).
		Get(epIndex)
	if err != nil {
		return "", fmt.Errorf("fetch index page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return "", fmt.Errorf("parse index page: %w", err)
	}

	var candidates []string
	doc.Find("#lente > option").Each(func(_ int, option *goquery.Selection) {
		value, exists := option.Attr("value")
		if exists {
			candidates = append(candidates, value)
		}
	})

	for _, id := range candidates {
		ok, err := c.loginWeb(ctx, id)
		if err != nil {
			return "", err
		}
		if ok {
			slog.Debug(
				"found library id",
				"username", c.username,
				"domain", c.domain,
				"library_id", id,
			)
			return id, nil
		}
	}
	return "", nil
}

// loginWeb performs a single cookie login attempt. The portal answers
// with a redirect either way; only the target distinguishes success from
// failure.
func (c *Client) loginWeb(ctx context.Context, libraryID string) (bool, error) {
	res, err := c.webBare.R().
		SetContext(ctx).
		SetHeader("Host", c.domain).
		SetHeader("Origin", "https://"+c.domain).
		SetHeader("Referer", c.baseURL.String()+"/user/logform.aspx").
		SetFormData(map[string]string{
			"lusername": c.username,
			"lpassword": c.password,
			"lente":     libraryID,
		}).
		Post(epLogin)
	if err != nil {
		return false, err
	}

	return res.Header().Get("Location") == loginSuccessLocation, nil
}

// IsLoggedIn reports whether both channels are live: the web session
// cookie and the API token. Partial authentication is not logged in.
func (c *Client) IsLoggedIn() bool {
	return c.hasSessionCookie() && c.apiToken != ""
}

func (c *Client) hasSessionCookie() bool {
	for _, cookie := range c.jar.Cookies(c.baseURL) {
		if cookie.Name == sessionCookieName && cookie.Value != "" {
			return true
		}
	}
	return false
}

// LibraryID returns the resolved library id, empty for anonymous
// clients.
func (c *Client) LibraryID() string {
	return c.libraryID
}

// BookURL returns the public detail-page URL for a book id.
func (c *Client) BookURL(bookID string) string {
	return fmt.Sprintf("%s%s?id=%s", c.baseURL, epBook, bookID)
}
