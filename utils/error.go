package utils

import "errors"

// ErrorRecordNotFound is the lookup-miss sentinel; the HTTP layer maps
// it to 404 and everything else to 500.
var ErrorRecordNotFound = errors.New("record not found")
