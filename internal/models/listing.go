package models

import (
	"time"

	"github.com/paulmach/orb"
)

// Market is one crawl target: a city on the classifieds source, identified
// by the site code used in the source's hostnames.
type Market struct {
	City     string `json:"city"`
	State    string `json:"state"`
	SiteCode string `json:"site_code"`
}

// RawListing is a single untyped-source record as returned by the listing
// source, with explicit optionality for every field the source may omit.
type RawListing struct {
	ID              int64
	RepostOf        *int64
	URL             string
	LastUpdated     string // source format "2006-01-02 15:04"
	Price           string // e.g. "$1,250"
	Area            *string
	Where           string
	Geotag          *orb.Point // (lon, lat)
	SiteMetro       string
	ZipCode         *string
	Address         *string
	Bedrooms        *int
	Bathrooms       *float64
	HousingType     string
	ACType          string
	LaundryType     string
	ParkingType     string
	Furnished       *bool
	CatsAllowed     *bool
	DogsAllowed     *bool
	SecurityDeposit *string
	Name            string
	Body            string
}

// PropertyListing is a whole-unit rental, ready for persistence.
type PropertyListing struct {
	ID              int64      `json:"id" gorm:"primaryKey"`
	ExternalID      int64      `json:"external_id" gorm:"uniqueIndex;not null"`
	RepostOfID      *int64     `json:"repost_of_id"`
	URL             string     `json:"url"`
	LastUpdated     time.Time  `json:"last_updated"`
	Price           int        `json:"price"`
	State           string     `json:"state"`
	Metro           string     `json:"metro"`
	SiteMetro       string     `json:"site_metro"`
	ZipCode         *string    `json:"zip_code"`
	Bedrooms        int        `json:"bedrooms"`
	Bathrooms       float64    `json:"bathrooms"`
	SqFt            *int       `json:"sqft" gorm:"column:sqft"`
	LocationLabel   string     `json:"location_label"`
	Latitude        *float64   `json:"latitude"`
	Longitude       *float64   `json:"longitude"`
	Address         *string    `json:"address"`
	HousingType     string     `json:"housing_type"`
	ACType          string     `json:"ac_type"`
	LaundryType     string     `json:"laundry_type"`
	ParkingType     string     `json:"parking_type"`
	Furnished       *bool      `json:"furnished"`
	CatsAllowed     *bool      `json:"cats_allowed"`
	DogsAllowed     *bool      `json:"dogs_allowed"`
	SecurityDeposit *int       `json:"security_deposit"`
	Title           string     `json:"title"`
	Details         string     `json:"details"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (PropertyListing) TableName() string { return "rental_properties" }

// RoomListing is a private room within a shared unit. Same shape as
// PropertyListing minus the bedroom/bathroom counts; dedup rules are
// identical but scoped to its own table.
type RoomListing struct {
	ID              int64      `json:"id" gorm:"primaryKey"`
	ExternalID      int64      `json:"external_id" gorm:"uniqueIndex;not null"`
	RepostOfID      *int64     `json:"repost_of_id"`
	URL             string     `json:"url"`
	LastUpdated     time.Time  `json:"last_updated"`
	Price           int        `json:"price"`
	State           string     `json:"state"`
	Metro           string     `json:"metro"`
	SiteMetro       string     `json:"site_metro"`
	ZipCode         *string    `json:"zip_code"`
	SqFt            *int       `json:"sqft" gorm:"column:sqft"`
	LocationLabel   string     `json:"location_label"`
	Latitude        *float64   `json:"latitude"`
	Longitude       *float64   `json:"longitude"`
	Address         *string    `json:"address"`
	HousingType     string     `json:"housing_type"`
	ACType          string     `json:"ac_type"`
	LaundryType     string     `json:"laundry_type"`
	ParkingType     string     `json:"parking_type"`
	Furnished       *bool      `json:"furnished"`
	CatsAllowed     *bool      `json:"cats_allowed"`
	DogsAllowed     *bool      `json:"dogs_allowed"`
	SecurityDeposit *int       `json:"security_deposit"`
	Title           string     `json:"title"`
	Details         string     `json:"details"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (RoomListing) TableName() string { return "rental_rooms" }
