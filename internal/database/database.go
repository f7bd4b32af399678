package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"rentdata/collector/internal/models"
)

type Database struct {
	db *sql.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys and wait for locks instead of failing fast, so
	// concurrent workers don't trip over sqlite's single-writer model
	_, err = db.Exec("PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000")
	if err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// InsertProperty persists a property listing unless one with the same
// external id already exists. The unique constraint makes the
// check-then-insert atomic; a duplicate reports inserted == false and is
// not an error.
func (d *Database) InsertProperty(ctx context.Context, p *models.PropertyListing) (bool, error) {
	res, err := d.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO rental_properties
        (external_id, repost_of_id, url, last_updated, price, state, metro, site_metro,
         zip_code, bedrooms, bathrooms, sqft, location_label, latitude, longitude, address,
         housing_type, ac_type, laundry_type, parking_type, furnished, cats_allowed,
         dogs_allowed, security_deposit, title, details)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		p.ExternalID, p.RepostOfID, p.URL, p.LastUpdated, p.Price, p.State, p.Metro,
		p.SiteMetro, p.ZipCode, p.Bedrooms, p.Bathrooms, p.SqFt, p.LocationLabel,
		p.Latitude, p.Longitude, p.Address, p.HousingType, p.ACType, p.LaundryType,
		p.ParkingType, p.Furnished, p.CatsAllowed, p.DogsAllowed, p.SecurityDeposit,
		p.Title, p.Details,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert property %d: %w", p.ExternalID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// InsertRoom persists a room listing unless one with the same external id
// already exists. Uniqueness is scoped to the rooms table; a room and a
// property may share an external id.
func (d *Database) InsertRoom(ctx context.Context, r *models.RoomListing) (bool, error) {
	res, err := d.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO rental_rooms
        (external_id, repost_of_id, url, last_updated, price, state, metro, site_metro,
         zip_code, sqft, location_label, latitude, longitude, address, housing_type,
         ac_type, laundry_type, parking_type, furnished, cats_allowed, dogs_allowed,
         security_deposit, title, details)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		r.ExternalID, r.RepostOfID, r.URL, r.LastUpdated, r.Price, r.State, r.Metro,
		r.SiteMetro, r.ZipCode, r.SqFt, r.LocationLabel, r.Latitude, r.Longitude,
		r.Address, r.HousingType, r.ACType, r.LaundryType, r.ParkingType, r.Furnished,
		r.CatsAllowed, r.DogsAllowed, r.SecurityDeposit, r.Title, r.Details,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert room %d: %w", r.ExternalID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (d *Database) PropertyExists(ctx context.Context, externalID int64) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM rental_properties WHERE external_id = ?", externalID,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *Database) RoomExists(ctx context.Context, externalID int64) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM rental_rooms WHERE external_id = ?", externalID,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *Database) CountProperties(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM rental_properties").Scan(&n)
	return n, err
}

func (d *Database) CountRooms(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM rental_rooms").Scan(&n)
	return n, err
}

// GetPropertyByExternalID loads a stored property listing, or nil when no
// listing with that external id exists.
func (d *Database) GetPropertyByExternalID(ctx context.Context, externalID int64) (*models.PropertyListing, error) {
	row := d.db.QueryRowContext(ctx, `
        SELECT id, external_id, repost_of_id, url, last_updated, price, state, metro,
               site_metro, zip_code, bedrooms, bathrooms, sqft, location_label,
               latitude, longitude, address, housing_type, ac_type, laundry_type,
               parking_type, furnished, cats_allowed, dogs_allowed, security_deposit,
               title, details
        FROM rental_properties WHERE external_id = ?
    `, externalID)

	var p models.PropertyListing
	var repostOf, sqft, deposit sql.NullInt64
	var zipCode, address sql.NullString
	var lat, lon sql.NullFloat64
	var furnished, cats, dogs sql.NullBool

	err := row.Scan(
		&p.ID, &p.ExternalID, &repostOf, &p.URL, &p.LastUpdated, &p.Price, &p.State,
		&p.Metro, &p.SiteMetro, &zipCode, &p.Bedrooms, &p.Bathrooms, &sqft,
		&p.LocationLabel, &lat, &lon, &address, &p.HousingType, &p.ACType,
		&p.LaundryType, &p.ParkingType, &furnished, &cats, &dogs, &deposit,
		&p.Title, &p.Details,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if repostOf.Valid {
		p.RepostOfID = &repostOf.Int64
	}
	if sqft.Valid {
		v := int(sqft.Int64)
		p.SqFt = &v
	}
	if deposit.Valid {
		v := int(deposit.Int64)
		p.SecurityDeposit = &v
	}
	if zipCode.Valid {
		p.ZipCode = &zipCode.String
	}
	if address.Valid {
		p.Address = &address.String
	}
	if lat.Valid {
		p.Latitude = &lat.Float64
	}
	if lon.Valid {
		p.Longitude = &lon.Float64
	}
	if furnished.Valid {
		p.Furnished = &furnished.Bool
	}
	if cats.Valid {
		p.CatsAllowed = &cats.Bool
	}
	if dogs.Valid {
		p.DogsAllowed = &dogs.Bool
	}

	return &p, nil
}

// GetRoomByExternalID loads a stored room listing, or nil when absent.
func (d *Database) GetRoomByExternalID(ctx context.Context, externalID int64) (*models.RoomListing, error) {
	row := d.db.QueryRowContext(ctx, `
        SELECT id, external_id, repost_of_id, url, last_updated, price, state, metro,
               site_metro, zip_code, sqft, location_label, latitude, longitude, address,
               housing_type, ac_type, laundry_type, parking_type, furnished,
               cats_allowed, dogs_allowed, security_deposit, title, details
        FROM rental_rooms WHERE external_id = ?
    `, externalID)

	var r models.RoomListing
	var repostOf, sqft, deposit sql.NullInt64
	var zipCode, address sql.NullString
	var lat, lon sql.NullFloat64
	var furnished, cats, dogs sql.NullBool

	err := row.Scan(
		&r.ID, &r.ExternalID, &repostOf, &r.URL, &r.LastUpdated, &r.Price, &r.State,
		&r.Metro, &r.SiteMetro, &zipCode, &sqft, &r.LocationLabel, &lat, &lon,
		&address, &r.HousingType, &r.ACType, &r.LaundryType, &r.ParkingType,
		&furnished, &cats, &dogs, &deposit, &r.Title, &r.Details,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if repostOf.Valid {
		r.RepostOfID = &repostOf.Int64
	}
	if sqft.Valid {
		v := int(sqft.Int64)
		r.SqFt = &v
	}
	if deposit.Valid {
		v := int(deposit.Int64)
		r.SecurityDeposit = &v
	}
	if zipCode.Valid {
		r.ZipCode = &zipCode.String
	}
	if address.Valid {
		r.Address = &address.String
	}
	if lat.Valid {
		r.Latitude = &lat.Float64
	}
	if lon.Valid {
		r.Longitude = &lon.Float64
	}
	if furnished.Valid {
		r.Furnished = &furnished.Bool
	}
	if cats.Valid {
		r.CatsAllowed = &cats.Bool
	}
	if dogs.Valid {
		r.DogsAllowed = &dogs.Bool
	}

	return &r, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}
