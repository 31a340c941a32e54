package spacestsync

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/config"
	"github.com/sirupsen/logrus"
)

const (
	defaultScrapeIndexURL    = "https://www.spacest.com/affitto/milano"
	defaultScrapeMaxListings = 100
	defaultScrapeDelayMillis = 1500
)

// Patterns for tearing listing data out of Spacest's public pages. The pages
// are server-rendered with stable markup and og: metadata, which keeps plain
// regex extraction reliable enough for the fallback path.
var (
	listingLinkRe = regexp.MustCompile(`<a[^>]+href="(/(?:affitto|rent|property|listing)/[^"#?]+)"`)
	metaTagRe     = regexp.MustCompile(`<meta[^>]+(?:property|name)="([^"]+)"[^>]+content="([^"]*)"`)
	titleTagRe    = regexp.MustCompile(`<title>([^<]+)</title>`)
	priceRe       = regexp.MustCompile(`(?i)€\s*([0-9][0-9.,]*)\s*(?:/\s*m|al mese|a month|per month|month)`)
	bedroomsRe    = regexp.MustCompile(`(?i)(\d+)\s*(?:camere? da letto|camere|bedrooms?|locali)`)
	latitudeRe    = regexp.MustCompile(`"latitude"\s*:\s*(-?[0-9.]+)`)
	longitudeRe   = regexp.MustCompile(`"longitude"\s*:\s*(-?[0-9.]+)`)
	codeRe        = regexp.MustCompile(`(?i)(?:codice|code|ref\.?)\s*:?\s*([A-Z0-9][A-Z0-9-]{3,})`)
)

// scraper reconstructs ExternalListing payloads from Spacest's public HTML
// when no feed access is available. It walks the index page, then fetches
// each discovered detail page with a fixed delay between requests.
type scraper struct {
	indexURL    string
	http        *http.Client
	delay       time.Duration
	maxListings int
	logger      *logrus.Logger
}

func newScraper() *scraper {
	indexURL := os.Getenv("SPACEST_SCRAPE_INDEX_URL")
	if indexURL == "" {
		indexURL = defaultScrapeIndexURL
	}

	maxListings := defaultScrapeMaxListings
	if raw := os.Getenv("SPACEST_SCRAPE_MAX_LISTINGS"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			maxListings = parsed
		}
	}

	delay := time.Duration(defaultScrapeDelayMillis) * time.Millisecond
	if raw := os.Getenv("SPACEST_SCRAPE_DELAY_MS"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			delay = time.Duration(parsed) * time.Millisecond
		}
	}

	return &scraper{
		indexURL:    indexURL,
		http:        &http.Client{Timeout: defaultHTTPTimeoutSeconds * time.Second},
		delay:       delay,
		maxListings: maxListings,
		logger:      config.GetLogger(),
	}
}

// ScrapeListings fetches the index page, discovers detail links and scrapes
// each one. A page that fails to parse is logged and dropped; only an
// unreachable index is fatal.
func (s *scraper) ScrapeListings(ctx context.Context) ([]ExternalListing, error) {
	indexHTML, err := s.fetchPage(ctx, s.indexURL)
	if err != nil {
		return nil, fmt.Errorf("scrape index unavailable: %w", err)
	}

	links := discoverListingLinks(indexHTML, s.indexURL, s.maxListings)
	if len(links) == 0 {
		return nil, nil
	}

	listings := make([]ExternalListing, 0, len(links))
	for i, link := range links {
		if i > 0 {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		pageHTML, err := s.fetchPage(ctx, link)
		if err != nil {
			config.LogError(s.logger, "spacestsync", "ScrapeListings", "listing page fetch failed", link, err)
			continue
		}
		listing, ok := extractListing(link, pageHTML)
		if !ok {
			s.logger.WithField("url", link).Warn("listing page yielded no usable data, skipping")
			continue
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

func (s *scraper) fetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", "Flat2study-ImportBot/1.0")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// discoverListingLinks pulls detail-page links out of the index HTML,
// resolves them against the index URL and dedupes, preserving page order.
func discoverListingLinks(indexHTML, indexURL string, limit int) []string {
	base, err := url.Parse(indexURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	for _, match := range listingLinkRe.FindAllStringSubmatch(indexHTML, -1) {
		ref, err := url.Parse(html.UnescapeString(match[1]))
		if err != nil {
			continue
		}
		resolved := base.ResolveReference(ref).String()
		if resolved == indexURL {
			continue
		}
		if _, dup := seen[resolved]; dup {
			continue
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
		if len(links) >= limit {
			break
		}
	}
	return links
}

// extractListing assembles an ExternalListing from one detail page. It
// reports false when neither a listing code nor a price could be found,
// which usually means the link was not actually a detail page.
func extractListing(pageURL, pageHTML string) (ExternalListing, bool) {
	listing := ExternalListing{
		Code:        extractListingCode(pageURL, pageHTML),
		Title:       extractTitle(pageHTML),
		Description: extractMeta(pageHTML, "og:description"),
		City:        "Milano",
	}

	if price, ok := extractPrice(pageHTML); ok {
		listing.Price = json.Number(price)
	}
	if bedrooms, ok := extractBedrooms(pageHTML); ok {
		listing.Bedrooms = &bedrooms
	}
	listing.Latitude = extractFloat(pageHTML, latitudeRe)
	listing.Longitude = extractFloat(pageHTML, longitudeRe)
	listing.Category = extractMeta(pageHTML, "og:type")
	if img := extractMeta(pageHTML, "og:image"); img != "" {
		listing.Images = []string{img}
	}

	if listing.Code == "" || listing.Price == "" {
		return ExternalListing{}, false
	}
	return listing, true
}

// extractListingCode prefers an explicit code printed on the page, falling
// back to the last URL path segment, which Spacest keeps stable per listing.
func extractListingCode(pageURL, pageHTML string) string {
	if m := codeRe.FindStringSubmatch(pageHTML); m != nil {
		return strings.TrimSpace(m[1])
	}
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

func extractTitle(pageHTML string) string {
	if title := extractMeta(pageHTML, "og:title"); title != "" {
		return title
	}
	if m := titleTagRe.FindStringSubmatch(pageHTML); m != nil {
		return strings.TrimSpace(html.UnescapeString(m[1]))
	}
	return ""
}

func extractMeta(pageHTML, property string) string {
	for _, m := range metaTagRe.FindAllStringSubmatch(pageHTML, -1) {
		if m[1] == property {
			return strings.TrimSpace(html.UnescapeString(m[2]))
		}
	}
	return ""
}

// extractPrice normalizes the page's localized price ("1.050,00") into a
// plain decimal string.
func extractPrice(pageHTML string) (string, bool) {
	m := priceRe.FindStringSubmatch(pageHTML)
	if m == nil {
		return "", false
	}
	raw := m[1]
	// Italian formatting uses "." for thousands and "," for decimals.
	if strings.Contains(raw, ",") {
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.ReplaceAll(raw, ",", ".")
	} else if parts := strings.Split(raw, "."); len(parts) > 1 && len(parts[len(parts)-1]) == 3 {
		raw = strings.ReplaceAll(raw, ".", "")
	}
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return "", false
	}
	return raw, true
}

func extractBedrooms(pageHTML string) (int, bool) {
	m := bedroomsRe.FindStringSubmatch(pageHTML)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func extractFloat(pageHTML string, re *regexp.Regexp) float64 {
	m := re.FindStringSubmatch(pageHTML)
	if m == nil {
		return 0
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return f
}
