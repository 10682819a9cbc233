package mlol

import "time"

// BookStatus is the lending state of a book on the portal, derived from
// the detail page's action panel. The zero value means the status could
// not be determined.
type BookStatus string

const (
	StatusUnknown     BookStatus = ""
	StatusAvailable   BookStatus = "available"
	StatusOwned       BookStatus = "owned"
	StatusReserved    BookStatus = "reserved"
	StatusTaken       BookStatus = "taken"
	StatusUnavailable BookStatus = "unavailable"
)

// Book is a value object built fresh from a single response parse.
// Any field except ID may be absent: empty string, nil slice, nil
// pointer and zero Year all mean "unknown", which is distinct from a
// present-but-empty value.
//
// A Book coming from a search listing or a reservation entry is a stub:
// only ID and Title (and sometimes Authors) are populated. Deep
// operations replace stubs with detail-page books, they never mutate
// one in place.
type Book struct {
	// ID is the canonical identifier, shared between the web portal and
	// the mobile API. It is always present.
	ID      string
	Title   string
	Authors []string
	Status  BookStatus

	Publisher   string
	ISBNs       []string
	Language    string
	Description string
	Year        int
	// Formats are lowercase tokens such as "epub", "pdf".
	Formats []string
	DRM     *bool
	// Categories are hierarchical paths, each ordered root to leaf.
	Categories [][]string
}

// Loan joins a book to a lending period. ID may be absent when it could
// not be recovered from the download URL of the API payload.
type Loan struct {
	ID        string
	Book      Book
	StartDate time.Time
	EndDate   time.Time
}

type ReservationStatus string

const (
	ReservationStatusUnknown ReservationStatus = ""
	ReservationStatusActive  ReservationStatus = "active"
)

type Reservation struct {
	ID     string
	Book   Book
	Date   time.Time
	Status ReservationStatus
	// QueuePosition comes from a separate per-reservation lookup; nil
	// when that lookup failed.
	QueuePosition *int
}

type User struct {
	ID                    int
	Name                  string
	Surname               string
	Username              string
	RemainingLoans        int
	RemainingReservations int
	ExpirationDate        time.Time
}

// Portal is one participating library branch as listed by the API.
type Portal struct {
	ID   string
	Name string
	URL  string
}

// Resources is everything tied to the user's account: reservations from
// the web channel, loans from the API channel.
type Resources struct {
	Reservations []Reservation
	ActiveLoans  []Loan
	LoanHistory  []Loan
}
