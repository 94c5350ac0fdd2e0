package models

import "errors"

// ErrNoRows is returned when a stage receives, or would produce, an empty
// dataset.
var ErrNoRows = errors.New("no rows")
