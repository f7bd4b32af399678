package source

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/paulmach/orb"

	"rentdata/collector/internal/models"
)

var (
	housingMetaRe = regexp.MustCompile(`(?i)(\d+)\s*br`)
	areaMetaRe    = regexp.MustCompile(`(\d+)\s*ft2`)
	bedBathRe     = regexp.MustCompile(`(?i)^(\d+)BR\s*/\s*(\d+(?:\.\d+)?)Ba$`)
	depositRe     = regexp.MustCompile(`(?i)\$?([\d,]+)\s+deposit`)
	zipRe         = regexp.MustCompile(`\b(\d{5})\b`)
	geoPositionRe = regexp.MustCompile(`^(-?[\d.]+);(-?[\d.]+)$`)
)

var housingTypes = []string{
	"apartment", "condo", "cottage/cabin", "duplex", "flat", "house",
	"in-law", "loft", "townhouse", "manufactured", "assisted living", "land",
}

var parkingTypes = []string{
	"carport", "attached garage", "detached garage", "off-street parking",
	"street parking", "valet parking", "no parking",
}

// parseSearchPage extracts the result rows and the source-reported total
// from one search page.
func parseSearchPage(doc *goquery.Document) ([]models.RawListing, int) {
	var records []models.RawListing

	doc.Find("li.result-row").Each(func(_ int, row *goquery.Selection) {
		pid, err := strconv.ParseInt(row.AttrOr("data-pid", ""), 10, 64)
		if err != nil {
			return
		}

		raw := models.RawListing{ID: pid}

		if repost, err := strconv.ParseInt(row.AttrOr("data-repost-of", ""), 10, 64); err == nil {
			raw.RepostOf = &repost
		}

		title := row.Find("a.result-title")
		raw.Name = strings.TrimSpace(title.Text())
		raw.URL = title.AttrOr("href", "")
		raw.LastUpdated = title.Parent().Find("time.result-date").AttrOr("datetime", "")
		if raw.LastUpdated == "" {
			raw.LastUpdated = row.Find("time.result-date").AttrOr("datetime", "")
		}
		raw.Price = strings.TrimSpace(row.Find("span.result-price").First().Text())

		if hood := strings.TrimSpace(row.Find("span.result-hood").Text()); hood != "" {
			raw.Where = strings.Trim(hood, "() ")
		}

		// The housing span carries "2br - 800ft2 -" style metadata
		if meta := row.Find("span.housing").Text(); meta != "" {
			if m := housingMetaRe.FindStringSubmatch(meta); m != nil {
				if beds, err := strconv.Atoi(m[1]); err == nil {
					raw.Bedrooms = &beds
				}
			}
			if m := areaMetaRe.FindStringSubmatch(meta); m != nil {
				area := m[1] + "ft2"
				raw.Area = &area
			}
		}

		records = append(records, raw)
	})

	total := -1
	if text := strings.TrimSpace(doc.Find("span.totalcount").First().Text()); text != "" {
		if n, err := strconv.Atoi(text); err == nil {
			total = n
		}
	}
	if total < 0 {
		// No total on the page: assume this page is the whole result
		total = len(records)
	}

	return records, total
}

// fetchDetails loads a record's posting page and fills in geotag, body,
// attribute groups, and the source's own region label.
func (c *Client) fetchDetails(ctx context.Context, raw *models.RawListing) error {
	if raw.URL == "" {
		return nil
	}

	doc, err := c.fetchDocument(ctx, raw.URL)
	if err != nil {
		return err
	}

	parseDetailPage(doc, raw)
	return nil
}

func parseDetailPage(doc *goquery.Document, raw *models.RawListing) {
	if geotag := parseGeotag(doc); geotag != nil {
		raw.Geotag = geotag
	}

	if place, ok := doc.Find(`meta[name="geo.placename"]`).Attr("content"); ok {
		raw.SiteMetro = strings.TrimSpace(place)
	}

	if body := doc.Find("#postingbody").First(); body.Length() > 0 {
		text := strings.TrimSpace(body.Text())
		text = strings.TrimSpace(strings.TrimPrefix(text, "QR Code Link to This Post"))
		raw.Body = text
	}

	if title := strings.TrimSpace(doc.Find("#titletextonly").Text()); title != "" {
		raw.Name = title
	}

	if addr := strings.TrimSpace(doc.Find(".mapaddress").First().Text()); addr != "" {
		raw.Address = &addr
		if m := zipRe.FindStringSubmatch(addr); m != nil {
			raw.ZipCode = &m[1]
		}
	}

	doc.Find("p.attrgroup span").Each(func(_ int, s *goquery.Selection) {
		parseAttribute(strings.TrimSpace(s.Text()), raw)
	})
}

// parseGeotag reads the coordinates off the posting's map div, falling back
// to the geo.position meta tag.
func parseGeotag(doc *goquery.Document) *orb.Point {
	mapDiv := doc.Find("#map").First()
	latStr, latOK := mapDiv.Attr("data-latitude")
	lonStr, lonOK := mapDiv.Attr("data-longitude")

	if !latOK || !lonOK {
		pos, ok := doc.Find(`meta[name="geo.position"]`).Attr("content")
		if !ok {
			return nil
		}
		m := geoPositionRe.FindStringSubmatch(strings.TrimSpace(pos))
		if m == nil {
			return nil
		}
		latStr, lonStr = m[1], m[2]
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return nil
	}

	p := orb.Point{lon, lat}
	return &p
}

// parseAttribute classifies one attribute-group entry. Unrecognized entries
// are ignored.
func parseAttribute(text string, raw *models.RawListing) {
	if text == "" {
		return
	}
	lower := strings.ToLower(text)

	if m := bedBathRe.FindStringSubmatch(text); m != nil {
		if beds, err := strconv.Atoi(m[1]); err == nil {
			raw.Bedrooms = &beds
		}
		if baths, err := strconv.ParseFloat(m[2], 64); err == nil {
			raw.Bathrooms = &baths
		}
		return
	}

	if m := areaMetaRe.FindStringSubmatch(lower); m != nil {
		area := m[1] + "ft2"
		raw.Area = &area
		return
	}

	if m := depositRe.FindStringSubmatch(lower); m != nil {
		deposit := "$" + m[1]
		raw.SecurityDeposit = &deposit
		return
	}

	switch {
	case lower == "furnished":
		t := true
		raw.Furnished = &t
	case strings.HasPrefix(lower, "cats are ok"):
		t := true
		raw.CatsAllowed = &t
	case strings.HasPrefix(lower, "dogs are ok"):
		t := true
		raw.DogsAllowed = &t
	case strings.Contains(lower, "air conditioning"):
		raw.ACType = text
	case strings.Contains(lower, "w/d") || strings.Contains(lower, "laundry"):
		raw.LaundryType = text
	case matchesAny(lower, parkingTypes):
		raw.ParkingType = text
	case matchesAny(lower, housingTypes):
		raw.HousingType = text
	}
}

func matchesAny(s string, options []string) bool {
	for _, opt := range options {
		if s == opt {
			return true
		}
	}
	return false
}
