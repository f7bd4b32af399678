package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentdata/collector/internal/models"
)

const sitesPageHTML = `<html><body>
<div class="colmask">
  <h4>California</h4>
  <ul>
    <li><a href="//sandiego.craigslist.org/">san diego</a></li>
    <li><a href="https://losangeles.craigslist.org/">los angeles</a></li>
  </ul>
  <h4>Arizona</h4>
  <ul>
    <li><a href="//phoenix.craigslist.org/">phoenix</a></li>
  </ul>
</div>
<div class="colmask">
  <h4>Alberta</h4>
  <ul><li><a href="//calgary.craigslist.org/">calgary</a></li></ul>
</div>
</body></html>`

func newTestCatalog(t *testing.T, handler http.HandlerFunc) *Catalog {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	return NewCatalog(srv.URL, 5*time.Second, logger)
}

func TestListMarkets(t *testing.T) {
	cat := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sitesPageHTML)
	})

	markets, err := cat.ListMarkets(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []models.Market{
		{City: "san diego", State: "California", SiteCode: "sandiego"},
		{City: "los angeles", State: "California", SiteCode: "losangeles"},
		{City: "phoenix", State: "Arizona", SiteCode: "phoenix"},
	}, markets, "only the first region block is enumerated")
}

func TestListMarketsFetchFailure(t *testing.T) {
	cat := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	markets, err := cat.ListMarkets(context.Background())
	assert.Error(t, err)
	assert.Nil(t, markets)
}

func TestListMarketsEmptyPage(t *testing.T) {
	cat := newTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body></body></html>")
	})

	_, err := cat.ListMarkets(context.Background())
	assert.Error(t, err)
}

func TestSiteCodeFromHref(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{href: "//sandiego.craigslist.org/", want: "sandiego"},
		{href: "https://losangeles.craigslist.org/", want: "losangeles"},
		{href: "/about", want: ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, siteCodeFromHref(tc.href), tc.href)
	}
}
