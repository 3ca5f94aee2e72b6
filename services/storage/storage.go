package storage

import (
	"github.com/AlexandroFSD/price-tracker/internal/domain"
)

// Store persists price readings.
type Store interface {
	// Init creates the schema if it does not exist yet
	Init() error

	// Save appends one reading to the history
	Save(reading domain.PriceReading) error

	// History returns the most recent readings for a product URL,
	// newest first, up to limit
	History(url string, limit int) ([]domain.PriceReading, error)
}
