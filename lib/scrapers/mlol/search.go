package mlol

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

type SearchOptions struct {
	// Deep replaces every stub in the results with its detail-page book.
	// Costs one extra request per result.
	Deep bool
}

// SearchResults pages through a result listing lazily. The first page is
// fetched eagerly so the page count is known up front; further pages are
// fetched on demand by Next. A SearchResults is single-use and not safe
// for concurrent use.
type SearchResults struct {
	client *Client
	params url.Values
	deep   bool

	pages int
	next  int
	first []Book
}

// SearchBooks runs an ebook search on the web portal.
func (c *Client) SearchBooks(ctx context.Context, query string, opts SearchOptions) (*SearchResults, error) {
	ctx, span := tracer.Start(ctx, "SearchBooks")
	defer span.End()

	slog.Debug("searching for books", "query", query)
	return c.newSearch(ctx, url.Values{
		"seltip":   {"310"},
		"keywords": {strings.TrimSpace(query)},
		"nris":     {strconv.Itoa(searchPageSize)},
	}, opts.Deep)
}

// LatestBooks lists the ebooks added to the catalog in the last 15 days.
func (c *Client) LatestBooks(ctx context.Context, opts SearchOptions) (*SearchResults, error) {
	ctx, span := tracer.Start(ctx, "LatestBooks")
	defer span.End()

	return c.newSearch(ctx, url.Values{
		"seltip": {"310"},
		"news":   {"15day"},
		"nris":   {strconv.Itoa(searchPageSize)},
	}, opts.Deep)
}

func (c *Client) newSearch(ctx context.Context, params url.Values, deep bool) (*SearchResults, error) {
	books, pages, err := c.fetchSearchPage(ctx, params, 1)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		// an empty first page means the portal's pager is decorative
		pages = 0
	}

	return &SearchResults{
		client: c,
		params: params,
		deep:   deep,
		pages:  pages,
		first:  books,
	}, nil
}

func (c *Client) fetchSearchPage(ctx context.Context, params url.Values, page int) ([]Book, int, error) {
	req := c.web.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params)
	if page > 1 {
		req.SetQueryParam("page", strconv.Itoa(page))
	}
	res, err := req.Get(epSearch)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch search page %d: %w", page, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, 0, fmt.Errorf("parse search page %d: %w", page, err)
	}
	return parseSearchPage(doc), parsePageCount(doc), nil
}

// Pages returns the total number of result pages, zero when the search
// matched nothing.
func (r *SearchResults) Pages() int {
	return r.pages
}

// Next returns the next page of books in result order, or (nil, nil)
// once every page has been consumed.
func (r *SearchResults) Next(ctx context.Context) ([]Book, error) {
	if r.next >= r.pages {
		return nil, nil
	}
	r.next++

	var books []Book
	if r.next == 1 {
		books = r.first
		r.first = nil
	} else {
		var err error
		books, _, err = r.client.fetchSearchPage(ctx, r.params, r.next)
		if err != nil {
			r.next--
			return nil, err
		}
	}

	if r.deep {
		books = r.client.enrichBooks(ctx, books)
	}
	return books, nil
}

// All drains the remaining pages into a single slice.
func (r *SearchResults) All(ctx context.Context) ([]Book, error) {
	var all []Book
	for {
		page, err := r.Next(ctx)
		if err != nil {
			return nil, err
		}
		if page == nil {
			return all, nil
		}
		all = append(all, page...)
	}
}

// enrichBooks swaps each stub for its detail-page book, preserving input
// order. Fetches run on a bounded worker pool; a stub whose detail fetch
// fails stays in the output unchanged.
func (c *Client) enrichBooks(ctx context.Context, stubs []Book) []Book {
	enriched := make([]Book, len(stubs))
	copy(enriched, stubs)
	if len(stubs) == 0 {
		return enriched
	}

	sem := make(chan struct{}, min(len(stubs), maxEnrichWorkers))
	var wg sync.WaitGroup
	for i := range stubs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			book, err := c.GetBookByID(ctx, stubs[i].ID)
			if err != nil {
				slog.Warn("failed to enrich book", "id", stubs[i].ID, "err", err)
				return
			}
			if book != nil {
				enriched[i] = *book
			}
		}(i)
	}
	wg.Wait()

	return enriched
}
