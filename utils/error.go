package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrorNoImportOwner is the fatal configuration error for import runs:
// neither the dedicated import agency nor a caller identity could be resolved.
var ErrorNoImportOwner = errors.New("no owning agency for import")
