package database

import "fmt"

// RunMigrations creates the listing tables. external_id carries a UNIQUE
// constraint so the insert-if-absent contract is enforced by the storage
// layer itself, per table.
func (d *Database) RunMigrations() error {
	_, err := d.db.Exec(`
		CREATE TABLE IF NOT EXISTS rental_properties (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id INTEGER NOT NULL UNIQUE,
			repost_of_id INTEGER,
			url TEXT,
			last_updated TIMESTAMP,
			price INTEGER,
			state TEXT,
			metro TEXT,
			site_metro TEXT,
			zip_code TEXT,
			bedrooms INTEGER,
			bathrooms REAL,
			sqft INTEGER,
			location_label TEXT,
			latitude REAL,
			longitude REAL,
			address TEXT,
			housing_type TEXT,
			ac_type TEXT,
			laundry_type TEXT,
			parking_type TEXT,
			furnished BOOLEAN,
			cats_allowed BOOLEAN,
			dogs_allowed BOOLEAN,
			security_deposit INTEGER,
			title TEXT,
			details TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create rental_properties table: %w", err)
	}

	_, err = d.db.Exec(`
		CREATE TABLE IF NOT EXISTS rental_rooms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id INTEGER NOT NULL UNIQUE,
			repost_of_id INTEGER,
			url TEXT,
			last_updated TIMESTAMP,
			price INTEGER,
			state TEXT,
			metro TEXT,
			site_metro TEXT,
			zip_code TEXT,
			sqft INTEGER,
			location_label TEXT,
			latitude REAL,
			longitude REAL,
			address TEXT,
			housing_type TEXT,
			ac_type TEXT,
			laundry_type TEXT,
			parking_type TEXT,
			furnished BOOLEAN,
			cats_allowed BOOLEAN,
			dogs_allowed BOOLEAN,
			security_deposit INTEGER,
			title TEXT,
			details TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create rental_rooms table: %w", err)
	}

	// Coordinate index for downstream geo queries
	_, err = d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_rental_properties_coordinates
		ON rental_properties(latitude, longitude);
	`)
	if err != nil {
		return err
	}

	_, err = d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_rental_rooms_coordinates
		ON rental_rooms(latitude, longitude);
	`)
	return err
}
