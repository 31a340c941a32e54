package spacestsync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/config"
	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/models"
	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("spacestsync")

// maxSummaryErrorSamples bounds the error strings echoed back in the HTTP
// response; the full (itself capped) detail lives in import_run_errors.
const maxSummaryErrorSamples = 10

// Importer drives one import run end to end: resolve the owning agency,
// classify/filter/normalize/upsert every listing, rebuild availability
// calendars, then reconcile against the full set the source currently
// publishes. Per-item failures are recorded and skipped; only losing the
// owner or the database is fatal.
type Importer struct {
	db     *gorm.DB
	logger *logrus.Logger
	rules  MarketRules
}

func NewImporter(db *gorm.DB, logger *logrus.Logger, rules MarketRules) *Importer {
	return &Importer{db: db, logger: logger, rules: rules}
}

// RunOptions carries per-run inputs that are not listing data.
type RunOptions struct {
	Source string
	// FallbackAgencyId is the caller's agency, used to own imported listings
	// when the dedicated import agency cannot be resolved. Zero means the
	// caller is anonymous.
	FallbackAgencyId int
	Run              *models.ImportRun
}

// runState accumulates one run's counters and bounded error records.
type runState struct {
	imported      int
	updated       int
	removed       int
	skipped       int
	errorCount    int
	errorSamples  []string
	persistedErrs int
	seen          map[string]struct{}
}

// Run executes the pipeline over the given listings and finalizes the run
// record. The returned summary mirrors what gets stored on the run.
func (imp *Importer) Run(ctx context.Context, listings []ExternalListing, opts RunOptions) (*ImportSummary, error) {
	ctx, span := tracer.Start(ctx, "spacestsync.Run")
	span.SetAttributes(
		attribute.String("import.source", opts.Source),
		attribute.Int("import.total", len(listings)),
	)
	defer span.End()

	agencyId, err := imp.resolveOwner(ctx, opts.FallbackAgencyId)
	if err != nil {
		imp.finalizeRun(ctx, opts.Run, nil, models.ImportRunStatusFailed)
		return nil, err
	}

	state := &runState{seen: make(map[string]struct{})}
	cache := newClassificationCache()

	for i := range listings {
		imp.processListing(ctx, &listings[i], agencyId, cache, state, opts.Run)
	}

	imp.reconcileRun(ctx, opts.Source, len(listings), state, opts.Run)

	summary := &ImportSummary{
		Success:  true,
		Imported: state.imported,
		Updated:  state.updated,
		Removed:  state.removed,
		Skipped:  state.skipped,
		Total:    len(listings),
		Errors:   state.errorSamples,
	}
	if opts.Run != nil {
		opts.Run.ErrorCount = state.errorCount
	}
	imp.finalizeRun(ctx, opts.Run, summary, runStatusFor(state))

	config.LogInfo(imp.logger, "spacestsync", "Run", "import run finished", map[string]any{
		"run_id":   runID(opts.Run),
		"source":   opts.Source,
		"imported": state.imported,
		"updated":  state.updated,
		"removed":  state.removed,
		"skipped":  state.skipped,
		"errors":   state.errorCount,
		"total":    len(listings),
	})
	return summary, nil
}

// resolveOwner picks the agency that owns imported listings: the dedicated
// import agency first, the caller's own agency as fallback. No owner at all
// aborts the run before any write happens.
func (imp *Importer) resolveOwner(ctx context.Context, fallbackAgencyId int) (int, error) {
	var (
		agency *models.Agency
		err    error
	)
	if config.AutoCreateImportAgency() {
		agency, err = models.GetOrCreateSpacestAgency(ctx)
	} else {
		agency, err = models.FindSpacestAgency(ctx)
	}
	if err != nil {
		config.LogError(imp.logger, "spacestsync", "resolveOwner", "import agency lookup failed", nil, err)
	}
	if agency != nil {
		return agency.ID, nil
	}
	if fallbackAgencyId > 0 {
		return fallbackAgencyId, nil
	}
	if err != nil {
		return 0, err
	}
	return 0, utils.ErrorNoImportOwner
}

func (imp *Importer) processListing(ctx context.Context, ext *ExternalListing, agencyId int,
	cache classificationCache, state *runState, run *models.ImportRun) {

	externalID := ext.ExternalID()
	if externalID == "" {
		imp.recordSkip(ctx, state, run, "", "missing_id", "listing has no external identifier", ext)
		return
	}
	if _, dup := state.seen[externalID]; dup {
		imp.recordSkip(ctx, state, run, externalID, "duplicate_in_feed", "external identifier repeated within feed", nil)
		return
	}

	bedrooms, _ := ext.BedroomCount()
	rent := ext.MonthlyRent()
	verdict := cache.classify(ext.CategoryLabel(), bedrooms, rent)

	if verdict.Type == models.PropertyTypeUnknown && !config.ImportKeepUnclassified() {
		imp.recordSkip(ctx, state, run, externalID, "unclassified", verdict.Reasoning, ext)
		return
	}
	if admitted, reason := imp.rules.Admit(ext); !admitted {
		imp.recordSkip(ctx, state, run, externalID, "out_of_market", reason, ext)
		return
	}

	normalized := Normalize(ext, agencyId, verdict)

	existing, err := models.FindListingByExternalKey(ctx, imp.db, models.ExternalSourceSpacest, externalID)
	if err != nil {
		imp.recordError(ctx, state, run, externalID, "lookup_failed", err.Error(), ext, true)
		return
	}

	var listingID int
	if existing != nil {
		if err := imp.db.WithContext(ctx).Model(existing).Updates(refreshColumns(normalized)).Error; err != nil {
			imp.recordError(ctx, state, run, externalID, "update_failed", err.Error(), ext, true)
			return
		}
		listingID = existing.ID
		state.updated++
	} else {
		if err := imp.db.WithContext(ctx).Create(normalized).Error; err != nil {
			imp.recordError(ctx, state, run, externalID, "insert_failed", err.Error(), ext, true)
			return
		}
		listingID = normalized.ID
		state.imported++
	}

	// The listing row is persisted, so it counts as seen even if the calendar
	// rebuild below fails; reconciliation must not delete it.
	state.seen[externalID] = struct{}{}

	if err := models.ReplaceListingCalendar(ctx, imp.db, listingID, ext.OccupiedRanges()); err != nil {
		imp.recordError(ctx, state, run, externalID, "calendar_failed", err.Error(), nil, true)
	}
}

// reconcileRun applies feed-as-source-of-truth removal. When every incoming
// listing failed validation the run skips reconciliation entirely: deleting
// the whole catalogue because one feed payload was broken is never right.
func (imp *Importer) reconcileRun(ctx context.Context, source string,
	inputCount int, state *runState, run *models.ImportRun) {

	if len(state.seen) == 0 && inputCount > 0 {
		imp.logger.WithFields(logrus.Fields{
			"run_id": runID(run),
			"source": source,
			"total":  inputCount,
		}).Warn("no listing survived validation, skipping reconciliation")
		return
	}

	removed, err := reconcile(ctx, imp.db, source, state.seen)
	if err != nil {
		imp.recordError(ctx, state, run, "", "reconcile_failed", err.Error(), nil, true)
		return
	}
	state.removed = removed
}

func (imp *Importer) recordSkip(ctx context.Context, state *runState, run *models.ImportRun,
	externalID, code, reason string, payload *ExternalListing) {

	state.skipped++
	imp.logger.WithFields(logrus.Fields{
		"run_id":      runID(run),
		"external_id": externalID,
		"code":        code,
		"reason":      reason,
	}).Info("listing skipped")
	imp.persistRunError(ctx, state, run, externalID, code, reason, payload, false)
}

func (imp *Importer) recordError(ctx context.Context, state *runState, run *models.ImportRun,
	externalID, code, message string, payload *ExternalListing, retryable bool) {

	state.errorCount++
	if len(state.errorSamples) < maxSummaryErrorSamples {
		sample := message
		if externalID != "" {
			sample = fmt.Sprintf("%s: %s", externalID, message)
		}
		state.errorSamples = append(state.errorSamples, sample)
	}
	config.LogError(imp.logger, "spacestsync", "processListing",
		fmt.Sprintf("listing %s failed (%s)", externalID, code), externalID, fmt.Errorf("%s", message))
	imp.persistRunError(ctx, state, run, externalID, code, message, payload, retryable)
}

func (imp *Importer) persistRunError(ctx context.Context, state *runState, run *models.ImportRun,
	externalID, code, message string, payload *ExternalListing, retryable bool) {

	if run == nil || state.persistedErrs >= models.MaxPersistedRunErrors {
		return
	}
	state.persistedErrs++

	var payloadJSON []byte
	if payload != nil {
		payloadJSON, _ = json.Marshal(payload)
	}
	record := models.ImportRunError{
		ImportRunId: run.ID,
		ExternalId:  externalID,
		ErrorCode:   code,
		Message:     message,
		PayloadJSON: payloadJSON,
		Retryable:   retryable,
	}
	if err := imp.db.WithContext(ctx).Create(&record).Error; err != nil {
		config.LogError(imp.logger, "spacestsync", "persistRunError", "could not store run error", externalID, err)
	}
}

func (imp *Importer) finalizeRun(ctx context.Context, run *models.ImportRun, summary *ImportSummary, status string) {
	if run == nil {
		return
	}
	now := time.Now()
	run.Status = status
	run.FinishedAt = &now
	if run.StartedAt != nil {
		run.DurationMs = now.Sub(*run.StartedAt).Milliseconds()
	}
	if summary != nil {
		run.Imported = summary.Imported
		run.Updated = summary.Updated
		run.Removed = summary.Removed
		run.Skipped = summary.Skipped
		run.Total = summary.Total
		if stats, err := json.Marshal(summary); err == nil {
			run.StatsJSON = stats
		}
	}
	if err := imp.db.WithContext(ctx).Save(run).Error; err != nil {
		config.LogError(imp.logger, "spacestsync", "finalizeRun", "could not persist run result", run.ID, err)
	}
}

func runStatusFor(state *runState) string {
	switch {
	case state.errorCount == 0:
		return models.ImportRunStatusSuccess
	case state.imported+state.updated+state.removed == 0:
		return models.ImportRunStatusFailed
	default:
		return models.ImportRunStatusPartial
	}
}

func runID(run *models.ImportRun) uint {
	if run == nil {
		return 0
	}
	return run.ID
}

// refreshColumns is the column map applied when re-importing a known listing.
// It deliberately excludes status: an operator's approve/reject decision
// survives re-imports.
func refreshColumns(l *models.Listing) map[string]any {
	return map[string]any{
		"title":           l.Title,
		"description":     l.Description,
		"property_type":   l.PropertyType,
		"mapped_category": l.MappedCategory,
		"monthly_rent":    l.MonthlyRent,
		"deposit":         l.Deposit,
		"bills_included":  l.BillsIncluded,
		"furnished":       l.Furnished,
		"bedrooms":        l.Bedrooms,
		"bathrooms":       l.Bathrooms,
		"address":         l.Address,
		"city":            l.City,
		"country":         l.Country,
		"latitude":        l.Latitude,
		"longitude":       l.Longitude,
		"amenities_json":  l.AmenitiesJSON,
		"images_json":     l.ImagesJSON,
		"available_from":  l.AvailableFrom,
		"last_synced_at":  l.LastSyncedAt,
	}
}
