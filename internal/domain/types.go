package domain

import "time"

// ItemSpec describes one tracked product. It is built once from the
// configuration file and stays immutable for the duration of a check pass.
type ItemSpec struct {
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Selectors   []string `json:"selectors"`
	TargetPrice float64  `json:"target_price"`
}

// FetchStatus is the tagged result kind of one fetch-and-extract attempt.
type FetchStatus string

const (
	StatusSuccess     FetchStatus = "success"
	StatusFetchFailed FetchStatus = "failed"
	StatusSkipped     FetchStatus = "skipped"
)

// FetchOutcome pairs an item with the result of fetching and extracting its
// price. Price is non-nil only for Success outcomes, and even then it may be
// nil when the page was fetched but no selector yielded a parsable price.
type FetchOutcome struct {
	Item        ItemSpec
	Status      FetchStatus
	Price       *float64
	ErrorDetail string
}

// PriceReading is one persisted historical data point.
type PriceReading struct {
	Timestamp time.Time
	ItemName  string
	URL       string
	Price     float64
}

// Alert is a triggered notification unit. CurrentPrice <= TargetPrice holds
// whenever an Alert is constructed.
type Alert struct {
	ItemName     string
	URL          string
	CurrentPrice float64
	TargetPrice  float64
}
