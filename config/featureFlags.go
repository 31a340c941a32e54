package config

import (
	"os"
	"strings"
)

// ScrapeFallbackEnabled controls whether the HTML-scraping import path is
// available. The structured feed is the primary source; scraping is the
// best-effort fallback and can be switched off without redeploying.
//
// Set via env:
// - SPACEST_SCRAPE_ENABLED=true
func ScrapeFallbackEnabled() bool {
	return envBool(os.Getenv("SPACEST_SCRAPE_ENABLED"), true)
}

// ImportKeepUnclassified controls what happens to listings the classifier
// cannot place in the taxonomy. Default is to skip them: a listing must not
// be persisted under a guessed type.
//
// Set via env:
// - IMPORT_KEEP_UNCLASSIFIED=true  (store with the neutral type instead)
func ImportKeepUnclassified() bool {
	return envBool(os.Getenv("IMPORT_KEEP_UNCLASSIFIED"), false)
}

// AutoCreateImportAgency controls whether the first import run may lazily
// create the system agency that owns Spacest listings. When disabled, the
// run falls back to the caller's agency and fails if there is none.
//
// Set via env:
// - SPACEST_AUTO_CREATE_AGENCY=false
func AutoCreateImportAgency() bool {
	return envBool(os.Getenv("SPACEST_AUTO_CREATE_AGENCY"), true)
}

func envBool(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
