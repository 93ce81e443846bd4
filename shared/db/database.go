package db

import (
	"database/sql"
)

// Database is a connection to the post catalog.
type Database interface {
	Connect() error
	Close() error
	DB() *sql.DB
}
