package sweep

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rentdata/collector/config"
	"rentdata/collector/internal/models"
	"rentdata/collector/internal/source"
)

var sanDiego = models.Market{City: "san diego", State: "California", SiteCode: "sandiego"}

func testConfig() *config.Config {
	cfg := &config.Config{
		PropertyMinPrice: 100,
		PropertyMaxPrice: 20000,
		RoomMinPrice:     25,
		RoomMaxPrice:     3500,
		MinBedrooms:      1,
		MaxBedrooms:      8,
		ResultLimit:      100,
		ProgressEvery:    100,
		MarketWorkers:    1,
		StoreMaxRetries:  1,
		StoreRetryDelay:  0,
	}
	return cfg
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func geotag(lat, lon float64) *orb.Point {
	p := orb.Point{lon, lat}
	return &p
}

func rawRecord(id int64, price string, tag *orb.Point) models.RawListing {
	return models.RawListing{
		ID:          id,
		URL:         "https://sandiego.craigslist.org/x.html",
		LastUpdated: "2026-08-30 14:05",
		Price:       price,
		Where:       "North Park",
		Geotag:      tag,
		Name:        "listing",
		Body:        "body",
	}
}

// fakeIterator replays a fixed record slice.
type fakeIterator struct {
	records []models.RawListing
	pos     int
	err     error
}

func (f *fakeIterator) Next(ctx context.Context) bool {
	if f.pos >= len(f.records) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeIterator) Record() models.RawListing { return f.records[f.pos-1] }
func (f *fakeIterator) Err() error                { return f.err }

type issuedQuery struct {
	category source.Category
	filters  source.Filters
}

// fakeSource returns canned results per category/bedroom count and records
// every query issued.
type fakeSource struct {
	mu       sync.Mutex
	queries  []issuedQuery
	rooms    []models.RawListing
	byBeds   map[int][]models.RawListing
	queryErr error
}

func (f *fakeSource) Search(ctx context.Context, site string, category source.Category, filters source.Filters) (Iterator, error) {
	f.mu.Lock()
	f.queries = append(f.queries, issuedQuery{category: category, filters: filters})
	f.mu.Unlock()

	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if category == source.CategoryRoom {
		return &fakeIterator{records: f.rooms}, nil
	}
	if filters.MinBedrooms == nil {
		return &fakeIterator{}, nil
	}
	return &fakeIterator{records: f.byBeds[*filters.MinBedrooms]}, nil
}

// memSink is an in-memory Sink with per-table external-id uniqueness.
type memSink struct {
	mu         sync.Mutex
	properties map[int64]*models.PropertyListing
	rooms      map[int64]*models.RoomListing
}

func newMemSink() *memSink {
	return &memSink{
		properties: make(map[int64]*models.PropertyListing),
		rooms:      make(map[int64]*models.RoomListing),
	}
}

func (m *memSink) InsertProperty(ctx context.Context, p *models.PropertyListing) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.properties[p.ExternalID]; ok {
		return false, nil
	}
	m.properties[p.ExternalID] = p
	return true, nil
}

func (m *memSink) InsertRoom(ctx context.Context, r *models.RoomListing) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[r.ExternalID]; ok {
		return false, nil
	}
	m.rooms[r.ExternalID] = r
	return true, nil
}

func TestSweepIssuesBedroomQueriesOneThroughEight(t *testing.T) {
	src := &fakeSource{byBeds: map[int][]models.RawListing{}}
	sink := newMemSink()
	sw := NewSweeper(src, sink, testConfig(), quietLogger())

	sw.SweepMarket(context.Background(), sanDiego)

	var bedroomsQueried []int
	var roomQueries int
	for _, q := range src.queries {
		switch q.category {
		case source.CategoryProperty:
			require.NotNil(t, q.filters.MinBedrooms)
			require.NotNil(t, q.filters.MaxBedrooms)
			assert.Equal(t, *q.filters.MinBedrooms, *q.filters.MaxBedrooms)
			assert.Equal(t, 100, q.filters.MinPrice)
			assert.Equal(t, 20000, q.filters.MaxPrice)
			bedroomsQueried = append(bedroomsQueried, *q.filters.MinBedrooms)
		case source.CategoryRoom:
			roomQueries++
			require.NotNil(t, q.filters.PrivateRoom)
			assert.True(t, *q.filters.PrivateRoom)
			assert.Equal(t, 25, q.filters.MinPrice)
			assert.Equal(t, 3500, q.filters.MaxPrice)
		}
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, bedroomsQueried)
	assert.Equal(t, 1, roomQueries)
}

func TestSweepDedupsAcrossOverlappingQueries(t *testing.T) {
	// The same record shows up in both the 2- and 3-bedroom queries
	crossListed := rawRecord(555, "$2,000", geotag(32.7, -117.1))
	src := &fakeSource{byBeds: map[int][]models.RawListing{
		2: {crossListed},
		3: {crossListed},
	}}
	sink := newMemSink()
	sw := NewSweeper(src, sink, testConfig(), quietLogger())

	stats := sw.SweepMarket(context.Background(), sanDiego)

	assert.Len(t, sink.properties, 1)
	assert.Equal(t, 1, stats.Inserted)
	assert.Equal(t, 1, stats.Duplicates)
}

func TestSweepIsIdempotent(t *testing.T) {
	src := &fakeSource{
		byBeds: map[int][]models.RawListing{
			1: {rawRecord(100, "$900", geotag(32.7, -117.1))},
			2: {rawRecord(200, "$1,400", geotag(32.8, -117.2))},
		},
		rooms: []models.RawListing{rawRecord(300, "$600", geotag(32.9, -117.3))},
	}
	sink := newMemSink()
	sw := NewSweeper(src, sink, testConfig(), quietLogger())

	first := sw.SweepMarket(context.Background(), sanDiego)
	assert.Equal(t, 3, first.Inserted)

	second := sw.SweepMarket(context.Background(), sanDiego)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 3, second.Duplicates)

	assert.Len(t, sink.properties, 2)
	assert.Len(t, sink.rooms, 1)
}

func TestSweepEndToEndScenario(t *testing.T) {
	// One geotagged room and one without; only the former is stored
	src := &fakeSource{
		byBeds: map[int][]models.RawListing{},
		rooms: []models.RawListing{
			rawRecord(1001, "$500", geotag(32.7, -117.1)),
			rawRecord(1002, "$700", nil),
		},
	}
	sink := newMemSink()
	sw := NewSweeper(src, sink, testConfig(), quietLogger())

	stats := sw.SweepMarket(context.Background(), sanDiego)

	require.Len(t, sink.rooms, 1)
	stored := sink.rooms[1001]
	require.NotNil(t, stored)
	assert.Equal(t, 500, stored.Price)
	assert.Equal(t, "California", stored.State)
	assert.Equal(t, "san diego", stored.Metro)
	require.NotNil(t, stored.Latitude)
	assert.Equal(t, 32.7, *stored.Latitude)

	assert.Nil(t, sink.rooms[1002])
	assert.Equal(t, 1, stats.MissingLocation)
}

func TestSweepSkipsMalformedRecords(t *testing.T) {
	bad := rawRecord(400, "$abc", geotag(32.7, -117.1))
	badTime := rawRecord(401, "$800", geotag(32.7, -117.1))
	badTime.LastUpdated = "yesterday"
	good := rawRecord(402, "$900", geotag(32.7, -117.1))

	src := &fakeSource{byBeds: map[int][]models.RawListing{
		1: {bad, badTime, good},
	}}
	sink := newMemSink()
	sw := NewSweeper(src, sink, testConfig(), quietLogger())

	stats := sw.SweepMarket(context.Background(), sanDiego)

	assert.Equal(t, 1, stats.MalformedPrice)
	assert.Equal(t, 1, stats.MalformedTimestamp)
	assert.Equal(t, 1, stats.Inserted)
	assert.Len(t, sink.properties, 1)
	assert.NotNil(t, sink.properties[402])
}

func TestSweepContinuesAfterQueryFailure(t *testing.T) {
	src := &fakeSource{queryErr: errors.New("connection refused")}
	sink := newMemSink()
	sw := NewSweeper(src, sink, testConfig(), quietLogger())

	stats := sw.SweepMarket(context.Background(), sanDiego)

	// Every query in the plan failed, but all of them were attempted
	assert.Equal(t, 9, stats.FailedQueries)
	assert.Len(t, src.queries, 9)
}

// mockSink lets tests script store failures.
type mockSink struct {
	mock.Mock
}

func (m *mockSink) InsertProperty(ctx context.Context, p *models.PropertyListing) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

func (m *mockSink) InsertRoom(ctx context.Context, r *models.RoomListing) (bool, error) {
	args := m.Called(ctx, r)
	return args.Bool(0), args.Error(1)
}

func TestSweepRetriesStoreFailureThenCountsFailed(t *testing.T) {
	src := &fakeSource{byBeds: map[int][]models.RawListing{
		1: {rawRecord(500, "$1,000", geotag(32.7, -117.1))},
	}}

	sink := &mockSink{}
	sink.On("InsertProperty", mock.Anything, mock.Anything).
		Return(false, errors.New("database is locked")).Times(2)

	cfg := testConfig()
	cfg.MaxBedrooms = 1 // single property query keeps the expectations tight

	sw := NewSweeper(src, sink, cfg, quietLogger())
	stats := sw.SweepMarket(context.Background(), sanDiego)

	// One initial attempt plus one retry, then the record is counted failed
	sink.AssertExpectations(t)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Inserted)
}

func TestRunAggregatesAcrossMarkets(t *testing.T) {
	src := &fakeSource{
		byBeds: map[int][]models.RawListing{
			1: {rawRecord(600, "$1,100", geotag(32.7, -117.1))},
		},
	}
	sink := newMemSink()
	cfg := testConfig()
	cfg.MaxBedrooms = 1
	cfg.MarketWorkers = 2

	sw := NewSweeper(src, sink, cfg, quietLogger())

	markets := []models.Market{
		sanDiego,
		{City: "phoenix", State: "Arizona", SiteCode: "phoenix"},
	}
	stats, err := sw.Run(context.Background(), markets)
	require.NoError(t, err)

	// Same external id from both markets stores once
	assert.Equal(t, 1, stats.Inserted)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Len(t, sink.properties, 1)
}
