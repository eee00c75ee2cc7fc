package storage

import "errors"

var (
	// ErrMerchantNotFound is returned when a merchant document does not exist.
	ErrMerchantNotFound = errors.New("merchant not found")
	// ErrRunNotFound is returned when a run history document does not exist.
	ErrRunNotFound = errors.New("run not found")
)
