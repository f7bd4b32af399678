package normalize

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentdata/collector/internal/models"
)

var testMarket = models.Market{
	City:     "san diego",
	State:    "California",
	SiteCode: "sandiego",
}

func geotag(lat, lon float64) *orb.Point {
	p := orb.Point{lon, lat}
	return &p
}

func validRaw() models.RawListing {
	area := "800ft2"
	beds := 2
	baths := 1.5
	return models.RawListing{
		ID:          7001,
		URL:         "https://sandiego.craigslist.org/csd/apa/7001.html",
		LastUpdated: "2026-08-30 14:05",
		Price:       "$1,250",
		Area:        &area,
		Where:       "North Park",
		Geotag:      geotag(32.7, -117.1),
		Bedrooms:    &beds,
		Bathrooms:   &baths,
		HousingType: "apartment",
		Name:        "Sunny 2BR near the park",
		Body:        "Freshly painted, close to transit.",
	}
}

func TestPropertyNormalizesAllFields(t *testing.T) {
	raw := validRaw()
	p, err := Property(raw, testMarket)
	require.NoError(t, err)

	assert.Equal(t, int64(7001), p.ExternalID)
	assert.Equal(t, 1250, p.Price)
	assert.Equal(t, "California", p.State)
	assert.Equal(t, "san diego", p.Metro)
	assert.Equal(t, 2, p.Bedrooms)
	assert.Equal(t, 1.5, p.Bathrooms)
	require.NotNil(t, p.SqFt)
	assert.Equal(t, 800, *p.SqFt)
	require.NotNil(t, p.Latitude)
	require.NotNil(t, p.Longitude)
	assert.Equal(t, 32.7, *p.Latitude)
	assert.Equal(t, -117.1, *p.Longitude)
	assert.Equal(t, "2026-08-30 14:05", p.LastUpdated.Format(SourceTimeLayout))
	assert.Nil(t, p.Furnished, "absent amenity flags stay unset, not false")
	assert.Nil(t, p.CatsAllowed)
}

func TestPropertyRejectsMissingGeotag(t *testing.T) {
	raw := validRaw()
	raw.Geotag = nil

	p, err := Property(raw, testMarket)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrMissingLocation)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{input: "$1,250", want: 1250},
		{input: "$950", want: 950},
		{input: "2300", want: 2300},
		{input: "$abc", wantErr: true},
		{input: "", wantErr: true},
		{input: "$0", wantErr: true},
		{input: "-50", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := parsePrice(tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrMalformedPrice)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPropertyRejectsMalformedPrice(t *testing.T) {
	raw := validRaw()
	raw.Price = "$abc"

	_, err := Property(raw, testMarket)
	assert.ErrorIs(t, err, ErrMalformedPrice)
}

func TestPropertyRejectsMalformedTimestamp(t *testing.T) {
	raw := validRaw()
	raw.LastUpdated = "yesterday"

	_, err := Property(raw, testMarket)
	assert.ErrorIs(t, err, ErrMalformedTimestamp)
}

func TestParseArea(t *testing.T) {
	str := func(s string) *string { return &s }

	tests := []struct {
		name  string
		input *string
		want  *int
	}{
		{name: "with suffix", input: str("800ft2"), want: intPtr(800)},
		{name: "bare number", input: str("640"), want: intPtr(640)},
		{name: "absent", input: nil, want: nil},
		{name: "garbage left unset", input: str("big"), want: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := parseArea(tc.input)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tc.want, *got)
		})
	}
}

func TestRoomNormalizes(t *testing.T) {
	deposit := "$500"
	raw := validRaw()
	raw.ID = 1001
	raw.Price = "$500"
	raw.SecurityDeposit = &deposit

	r, err := Room(raw, testMarket)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), r.ExternalID)
	assert.Equal(t, 500, r.Price)
	require.NotNil(t, r.SecurityDeposit)
	assert.Equal(t, 500, *r.SecurityDeposit)
	assert.Equal(t, "California", r.State)
}

func TestRoomRejectsMissingGeotag(t *testing.T) {
	raw := validRaw()
	raw.Geotag = nil

	r, err := Room(raw, testMarket)
	assert.Nil(t, r)
	assert.ErrorIs(t, err, ErrMissingLocation)
}

func intPtr(n int) *int { return &n }
