package repository

import "errors"

// ErrNotFound is returned when a query for a single entity finds no rows.
// The service layer translates it into app_errors.ErrNotFound.
var ErrNotFound = errors.New("repository: not found")
