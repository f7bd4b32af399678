// Package catalog enumerates the crawlable markets by parsing the listing
// source's sites directory page.
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"rentdata/collector/internal/models"
)

type Catalog struct {
	sitesURL string
	client   *http.Client
	logger   *logrus.Logger
}

func NewCatalog(sitesURL string, timeout time.Duration, logger *logrus.Logger) *Catalog {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Catalog{
		sitesURL: sitesURL,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// ListMarkets fetches the sites page and returns every (city, state,
// site-code) tuple in its first region block. The result is reference
// data, fetched fresh each run and never persisted.
func (c *Catalog) ListMarkets(ctx context.Context) ([]models.Market, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sitesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "rentdata-collector/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sites page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sites page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sites page: %w", err)
	}

	markets := parseSitesPage(doc)
	if len(markets) == 0 {
		return nil, fmt.Errorf("sites page yielded no markets")
	}

	c.logger.WithField("count", len(markets)).Info("Fetched market catalog")
	return markets, nil
}

// parseSitesPage walks the first column block: each state heading is
// followed by a list of city links whose hostnames carry the site code.
func parseSitesPage(doc *goquery.Document) []models.Market {
	var markets []models.Market

	region := doc.Find("div.colmask").First()
	states := region.Find("h4")
	cityLists := region.Find("ul")

	states.Each(func(i int, state *goquery.Selection) {
		if i >= cityLists.Length() {
			return
		}
		stateName := strings.TrimSpace(state.Text())

		cityLists.Eq(i).Find("li a").Each(func(_ int, link *goquery.Selection) {
			href, ok := link.Attr("href")
			if !ok {
				return
			}
			code := siteCodeFromHref(href)
			if code == "" {
				return
			}
			markets = append(markets, models.Market{
				City:     strings.TrimSpace(link.Text()),
				State:    stateName,
				SiteCode: code,
			})
		})
	})

	return markets
}

// siteCodeFromHref extracts the site code from a city link, e.g.
// "//sandiego.craigslist.org/" yields "sandiego".
func siteCodeFromHref(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host == "" {
		// Scheme-less hrefs like "//sandiego.craigslist.org"
		host = strings.TrimPrefix(href, "//")
		host = strings.TrimSuffix(host, "/")
	}
	parts := strings.Split(host, ".")
	if len(parts) < 3 {
		return ""
	}
	return parts[0]
}
