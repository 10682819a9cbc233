package mlol

// Relative endpoints on the web portal. The portal is a server-rendered
// ASP.NET site; some endpoints reject requests without the tailored
// Host/Origin/Referer headers set by the callers below.
const (
	epIndex             = "/home/index.aspx"
	epSearch            = "/media/ricerca.aspx"
	epLogin             = "/user/login.aspx"
	epResources         = "/user/risorse.aspx"
	epBook              = "/media/scheda.aspx"
	epRedownload        = "/help/dlrepeat.aspx"
	epDownload          = "/media/downloadebadok.aspx"
	epPreReserve        = "/media/prenota.aspx"
	epReserve           = "/media/prenota2.aspx"
	epCancelReservation = "/media/annullaPr.aspx"
	epQueuePosition     = "/commons/QueuePos.aspx"
)

// Endpoints on the separate mobile-API host. All calls after login carry
// the bearer token as a `token` query parameter.
const (
	defaultAPIBaseURL = "https://api.medialibrary.it"

	apiEpLogin       = "/app/login"
	apiEpPortals     = "/app/portals"
	apiEpLoans       = "/app/loans"
	apiEpLoanHistory = "/app/loanhistory"
	apiEpProfile     = "/app/profile"
)

const defaultBaseURL = "https://medialibrary.it"

// Redirect target of a successful cookie login.
const loginSuccessLocation = "/media/esplora.aspx"

// Session cookie issued by the portal on a successful login.
const sessionCookieName = ".ASPXAUTH"

// A successful ebook fulfillment response starts with this marker
// regardless of status code.
const fulfillmentTokenMarker = "<fulfillmentToken"

const (
	// Books per search result page, fixed by the portal.
	searchPageSize = 48
	// Upper bound on concurrent detail-page fetches during deep
	// enrichment.
	maxEnrichWorkers = 5
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/87.0.4280.67 Safari/537.36"

var defaultWebHeaders = map[string]string{
	"User-Agent":                defaultUserAgent,
	"Upgrade-Insecure-Requests": "1",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.9",
	"Sec-Fetch-Site":            "same-origin",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-User":            "?1",
	"Sec-Fetch-Dest":            "document",
}

// Headers the official mobile app sends to the API host.
var defaultAPIHeaders = map[string]string{
	"Connection":      "Keep-Alive",
	"Accept-Encoding": "gzip",
	"User-Agent":      "okhttp/3.9.0",
}

// statusVocabulary maps the portal's action-panel wording (Italian) to a
// lending status by substring containment, tried in order.
var statusVocabulary = []struct {
	substr string
	status BookStatus
}{
	{"scarica", StatusAvailable},
	{"ripeti", StatusOwned},
	{"prenotato", StatusReserved},
	{"occupato", StatusTaken},
	{"non disponibile", StatusUnavailable},
}

// Reservation outcome banner phrases, matched by substring.
const (
	reserveSuccessPhrase = "con successo"
	reserveActivePhrase  = "prenotazione attiva"
)

// Cancellation outcome is encoded in the redirect target's msg code.
const (
	cancelSuccessSuffix = "msg=970"
	cancelFailureSuffix = "msg=960"
)
