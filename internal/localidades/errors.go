package localidades

import "errors"

var (
	ErrNotFound      = errors.New("locality not found")
	ErrBasinNotFound = errors.New("basin not found")
	ErrDuplicate     = errors.New("locality natural key already stored")
)
