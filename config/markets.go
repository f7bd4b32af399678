package config

import "rentdata/collector/internal/models"

// DefaultMarkets is the fallback crawl list used when the market catalog
// cannot be fetched.
var DefaultMarkets = []models.Market{
	{
		City:     "san diego",
		State:    "California",
		SiteCode: "sandiego",
	},
	// Add more markets here as needed
}

// MarketSiteCodes returns the site codes of the fallback markets.
func MarketSiteCodes() []string {
	codes := make([]string, len(DefaultMarkets))
	for i, m := range DefaultMarkets {
		codes[i] = m.SiteCode
	}
	return codes
}
