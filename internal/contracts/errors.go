package contracts

import "errors"

var (
	// ErrUnavailable is returned by collaborators that have no data for a ticker
	ErrUnavailable = errors.New("component unavailable")

	// ErrInvalidTransaction marks raw filings dropped at the normalizer boundary
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrInvalidPolicy marks weight policies that fail validation
	ErrInvalidPolicy = errors.New("invalid weight policy")

	// ErrNotFound is returned by stores when no record matches
	ErrNotFound = errors.New("not found")
)
