package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"rentdata/collector/internal/models"
)

// pageSize is the number of result rows the source renders per search page.
const pageSize = 120

// ResultSet iterates over the raw records of one search query, paginating
// lazily. The sequence is finite (bounded by Filters.ResultLimit and the
// source's own total) and not restartable.
//
// Usage mirrors bufio.Scanner:
//
//	rs, err := client.Search(ctx, site, category, filters)
//	for rs.Next(ctx) {
//	    rec := rs.Record()
//	    ...
//	}
//	if rs.Err() != nil { ... }
type ResultSet struct {
	client    *Client
	searchURL *url.URL
	filters   Filters

	pending []models.RawListing
	cur     models.RawListing
	offset  int // records consumed from the source, across pages
	total   int // source-reported total, -1 until the first page is parsed
	yielded int
	err     error
	done    bool
}

// Next advances to the next record, fetching further pages as needed.
// It returns false when the sequence is exhausted or a fetch failed;
// distinguish the two with Err.
func (r *ResultSet) Next(ctx context.Context) bool {
	if r.done || r.err != nil {
		return false
	}
	if r.filters.ResultLimit > 0 && r.yielded >= r.filters.ResultLimit {
		r.done = true
		return false
	}

	if len(r.pending) == 0 {
		if r.total >= 0 && r.offset >= r.total {
			r.done = true
			return false
		}
		if err := r.fetchPage(ctx); err != nil {
			r.err = err
			return false
		}
		if len(r.pending) == 0 {
			r.done = true
			return false
		}
	}

	rec := r.pending[0]
	r.pending = r.pending[1:]
	r.offset++

	if r.filters.IncludeDetails || r.filters.RequireGeotag {
		if err := r.client.fetchDetails(ctx, &rec); err != nil {
			// A failed detail fetch degrades the record, it does not
			// poison the sequence
			r.client.logger.WithError(err).WithField("id", rec.ID).
				Warn("Failed to fetch listing details")
		}
	}

	r.cur = rec
	r.yielded++
	return true
}

// Record returns the record produced by the last successful Next call.
func (r *ResultSet) Record() models.RawListing {
	return r.cur
}

// Err reports the first fetch or parse failure encountered, if any.
func (r *ResultSet) Err() error {
	return r.err
}

func (r *ResultSet) fetchPage(ctx context.Context) error {
	pageURL := *r.searchURL
	pageURL.RawQuery = r.filters.queryValues(r.offset).Encode()

	doc, err := r.client.fetchDocument(ctx, pageURL.String())
	if err != nil {
		return fmt.Errorf("search page at offset %d: %w", r.offset, err)
	}

	records, total := parseSearchPage(doc)
	r.pending = records
	r.total = total
	return nil
}

// fetchDocument performs a rate-limited GET and parses the response body.
func (c *Client) fetchDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "rentdata-collector/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return doc, nil
}
