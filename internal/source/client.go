// Package source implements the listing source adapter: an HTTP client for
// the classifieds search endpoint that yields raw listing records as a
// finite pull iterator.
package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Category selects which listing section a query targets.
type Category string

const (
	CategoryProperty Category = "property"
	CategoryRoom     Category = "room"
)

// searchPath maps a category to the source's search section code.
func (c Category) searchPath() string {
	if c == CategoryRoom {
		return "roo"
	}
	return "apa"
}

// Filters holds the query parameters for one search call. Optional fields
// are pointers; nil means the parameter is omitted from the request.
type Filters struct {
	MinPrice    int
	MaxPrice    int
	MinBedrooms *int  // property only
	MaxBedrooms *int  // property only
	PrivateRoom *bool // room only

	// ResultLimit bounds the number of records the iterator yields.
	ResultLimit int

	// RequireGeotag fetches each record's detail page so the geotag is
	// resolved; records still lacking one are passed through for the
	// normalizer to reject.
	RequireGeotag bool

	// IncludeDetails fetches body text and attribute groups per record.
	IncludeDetails bool
}

// Client queries one classifieds site per call. It is safe for concurrent
// use; the shared limiter paces all outgoing requests.
type Client struct {
	baseURL string // template, %s is the site code
	client  *http.Client
	limiter *rate.Limiter
	logger  *logrus.Logger
}

func NewClient(baseURL string, timeout, requestDelay time.Duration, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if requestDelay <= 0 {
		requestDelay = 500 * time.Millisecond
	}

	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(requestDelay), 1),
		logger:  logger,
	}
}

// Search issues the first page request for a query and returns an iterator
// over its results. A transport failure is returned immediately; later page
// or detail failures surface through ResultSet.Err.
func (c *Client) Search(ctx context.Context, site string, category Category, f Filters) (*ResultSet, error) {
	base, err := url.Parse(fmt.Sprintf(c.baseURL, site) + "/search/" + category.searchPath())
	if err != nil {
		return nil, fmt.Errorf("invalid search URL for site %q: %w", site, err)
	}

	rs := &ResultSet{
		client:    c,
		searchURL: base,
		filters:   f,
		total:     -1,
	}
	if err := rs.fetchPage(ctx); err != nil {
		return nil, err
	}
	return rs, nil
}

func (f Filters) queryValues(offset int) url.Values {
	v := url.Values{}
	v.Set("min_price", strconv.Itoa(f.MinPrice))
	v.Set("max_price", strconv.Itoa(f.MaxPrice))
	if f.MinBedrooms != nil {
		v.Set("min_bedrooms", strconv.Itoa(*f.MinBedrooms))
	}
	if f.MaxBedrooms != nil {
		v.Set("max_bedrooms", strconv.Itoa(*f.MaxBedrooms))
	}
	if f.PrivateRoom != nil && *f.PrivateRoom {
		v.Set("private_room", "1")
	}
	if offset > 0 {
		v.Set("s", strconv.Itoa(offset))
	}
	return v
}
