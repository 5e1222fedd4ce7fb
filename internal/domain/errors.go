package domain

import "errors"

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrEntryNotFound   = errors.New("entry not in store")
)
