package mlol

import (
	"encoding/base64"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// API dates are calendar days without time-of-day precision.
const apiDateLayout = "2006-01-02"

func apiDate(s string) (time.Time, error) {
	return time.Parse(apiDateLayout, s)
}

// apiYear takes the component before the first dash, so it works even
// when the rest of the date is malformed.
func apiYear(date string) int {
	head, _, _ := strings.Cut(date, "-")
	year, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return year
}

// apiAuthors turns "Bianchi, Luca|Rossi, Mario" into
// ["Luca Bianchi", "Mario Rossi"], order preserved.
func apiAuthors(creator string) []string {
	if creator == "" {
		return nil
	}
	var authors []string
	for _, segment := range strings.Split(creator, "|") {
		parts := strings.Split(segment, ", ")
		for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
			parts[i], parts[j] = parts[j], parts[i]
		}
		authors = append(authors, strings.Join(parts, " "))
	}
	return authors
}

// apiLoanID recovers the loan id from the base64-encoded final path
// segment of the download URL. An undecodable segment yields an absent
// id, not an error.
func apiLoanID(downloadURL string) string {
	segments := strings.Split(downloadURL, "/")
	decoded, err := base64.StdEncoding.DecodeString(segments[len(segments)-1])
	if err != nil {
		slog.Error("failed to retrieve loan id", "url", downloadURL, "err", err)
		return ""
	}
	return string(decoded)
}

func bookFromAPI(payload apiBook) Book {
	// the API never returns description, language or status
	drm := strings.Contains(strings.ToLower(payload.Format), "drm")

	var formats []string
	if fields := strings.Fields(payload.Format); len(fields) > 0 {
		for _, f := range strings.Split(fields[0], "/") {
			formats = append(formats, strings.ToLower(strings.TrimSpace(f)))
		}
	}

	var isbns []string
	if payload.ISBN != "" {
		// the website would also return the paper ISBN; the API only
		// carries the digital edition's
		isbns = []string{payload.ISBN}
	}

	return Book{
		ID:        payload.ID.String(),
		Title:     strings.TrimSpace(payload.Title),
		Authors:   apiAuthors(payload.Creator),
		Publisher: payload.Source,
		ISBNs:     isbns,
		Year:      apiYear(payload.PubDate),
		Formats:   formats,
		DRM:       &drm,
	}
}

// loanFromAPI returns nil for payloads without a download URL, which is
// how the API marks entries that are not actual loans.
func loanFromAPI(payload apiBook) *Loan {
	if payload.URLDownload == "" {
		return nil
	}

	loan := &Loan{
		ID:   apiLoanID(payload.URLDownload),
		Book: bookFromAPI(payload),
	}
	if start, err := apiDate(payload.Acquired); err == nil {
		loan.StartDate = start
	}
	if end, err := apiDate(payload.Expired); err == nil {
		loan.EndDate = end
	}
	return loan
}

func loansFromAPI(payloads []apiBook) []Loan {
	loans := make([]Loan, 0, len(payloads))
	for _, payload := range payloads {
		loan := loanFromAPI(payload)
		if loan != nil {
			loans = append(loans, *loan)
		}
	}
	return loans
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + strings.ToLower(s[size:])
}

func userFromAPI(payload apiProfileResponse) *User {
	id, _ := strconv.Atoi(payload.UserID.String())
	loans, _ := strconv.Atoi(payload.LoansRemaining.String())
	reservations, _ := strconv.Atoi(payload.ReservationsRemaining.String())

	user := &User{
		ID:                    id,
		Name:                  capitalize(payload.FirstName),
		Surname:               capitalize(payload.LastName),
		Username:              payload.Username,
		RemainingLoans:        loans,
		RemainingReservations: reservations,
	}
	if expires, err := apiDate(payload.Expires); err == nil {
		user.ExpirationDate = expires
	}
	return user
}
