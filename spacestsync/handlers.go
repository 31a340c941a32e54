package spacestsync

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/config"
	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/models"
	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/utils"
	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
)

const importLockTTL = 10 * time.Minute

var errImportInProgress = errors.New("an import for this source is already running")

// RegisterRoutes mounts the import API under the given (authenticated) group.
func RegisterRoutes(api *gin.RouterGroup) {
	grp := api.Group("/import/spacest")
	grp.POST("/direct", ImportDirectHandler)
	grp.POST("/feed", ImportFeedHandler)
	grp.POST("/scrape", ImportScrapeHandler)
	grp.POST("/async", TriggerAsyncHandler)
	grp.GET("/runs", ListRunsHandler)
	grp.GET("/runs/:id", GetRunHandler)
	grp.POST("/runs/:id/retry", RetryRunHandler)
}

// ImportDirectHandler runs the pipeline over listings supplied in the request
// body. This is the integration used by partners that push instead of being
// pulled.
func ImportDirectHandler(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": utils.FormatValidationError(err)})
		return
	}

	summary, run, err := executeImport(c.Request.Context(), models.ImportTriggeredManual,
		callerAgencyId(c), nil, func(context.Context) ([]ExternalListing, error) {
			return req.Listings, nil
		})
	respondRun(c, summary, run, err)
}

// ImportFeedHandler pulls the structured feed and imports it, falling back to
// the public-site scraper when the feed is unreachable and the fallback is
// enabled.
func ImportFeedHandler(c *gin.Context) {
	summary, run, err := executeImport(c.Request.Context(), models.ImportTriggeredManual,
		callerAgencyId(c), nil, fetchFeedWithFallback)
	respondRun(c, summary, run, err)
}

// ImportScrapeHandler imports directly from the public site, bypassing the
// feed. Mostly an operator tool for when feed credentials are broken.
func ImportScrapeHandler(c *gin.Context) {
	summary, run, err := executeImport(c.Request.Context(), models.ImportTriggeredManual,
		callerAgencyId(c), nil, func(ctx context.Context) ([]ExternalListing, error) {
			return newScraper().ScrapeListings(ctx)
		})
	respondRun(c, summary, run, err)
}

// TriggerAsyncHandler queues a run and publishes it to Pub/Sub; the push
// endpoint executes it. Returns 202 with the queued run.
func TriggerAsyncHandler(c *gin.Context) {
	var req TriggerAsyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": utils.FormatValidationError(err)})
		return
	}

	ctx := c.Request.Context()
	run := &models.ImportRun{
		Source:      models.ExternalSourceSpacest,
		AgencyId:    callerAgencyId(c),
		Status:      models.ImportRunStatusQueued,
		TriggeredBy: models.ImportTriggeredManual,
	}
	if err := config.GetDB().WithContext(ctx).Create(run).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not queue import run"})
		return
	}

	if err := PublishImportRun(ctx, run.ID, req.Mode); err != nil {
		config.LogError(config.GetLogger(), "spacestsync", "TriggerAsyncHandler", "publish failed", run.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not publish import run"})
		return
	}
	c.JSON(http.StatusAccepted, buildRunResponse(run))
}

// ListRunsHandler returns the most recent import runs, newest first.
func ListRunsHandler(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	var runs []models.ImportRun
	err := config.GetDB().WithContext(c.Request.Context()).
		Where("source = ?", models.ExternalSourceSpacest).
		Order("id DESC").Limit(limit).Find(&runs).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not list runs"})
		return
	}

	resp := RunHistoryResponse{Items: make([]RunResponse, 0, len(runs))}
	for i := range runs {
		resp.Items = append(resp.Items, buildRunResponse(&runs[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// GetRunHandler returns one run with its persisted per-item errors.
func GetRunHandler(c *gin.Context) {
	run, ok := loadRunFromPath(c)
	if !ok {
		return
	}

	var errRecords []models.ImportRunError
	err := config.GetDB().WithContext(c.Request.Context()).
		Where("import_run_id = ?", run.ID).Order("id ASC").Find(&errRecords).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not load run errors"})
		return
	}

	detail := RunDetailResponse{RunResponse: buildRunResponse(run)}
	detail.Errors = make([]RunErrorResponse, 0, len(errRecords))
	for _, rec := range errRecords {
		detail.Errors = append(detail.Errors, RunErrorResponse{
			ID:         rec.ID,
			ExternalId: rec.ExternalId,
			Code:       rec.ErrorCode,
			Message:    rec.Message,
			Retryable:  rec.Retryable,
		})
	}
	c.JSON(http.StatusOK, detail)
}

// RetryRunHandler starts a fresh feed import linked to a finished run.
// Retrying re-pulls the source rather than replaying the old payload: the
// feed is the source of truth and may have moved on since the failure.
func RetryRunHandler(c *gin.Context) {
	parent, ok := loadRunFromPath(c)
	if !ok {
		return
	}
	if parent.Status == models.ImportRunStatusQueued || parent.Status == models.ImportRunStatusRunning {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "run has not finished yet"})
		return
	}

	parentID := parent.ID
	summary, run, err := executeImport(c.Request.Context(), models.ImportTriggeredRetry,
		callerAgencyId(c), &parentID, fetchFeedWithFallback)
	respondRun(c, summary, run, err)
}

// executeImport is the shared run driver: create the run record, serialize
// on the per-source lock, fetch, import, respond. The lock is best effort;
// when Redis is down imports still work, they just lose the serialization.
func executeImport(ctx context.Context, triggeredBy string, fallbackAgencyId int,
	parentRunId *uint, fetch func(context.Context) ([]ExternalListing, error)) (*ImportSummary, *models.ImportRun, error) {

	db := config.GetDB()
	logger := config.GetLogger()

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "lock:import:"+models.ExternalSourceSpacest, importLockTTL, nil)
		if err == nil {
			defer lock.Release(context.Background())
		} else if errors.Is(err, redislock.ErrNotObtained) {
			return nil, nil, errImportInProgress
		}
	}

	now := time.Now()
	run := &models.ImportRun{
		Source:      models.ExternalSourceSpacest,
		AgencyId:    fallbackAgencyId,
		Status:      models.ImportRunStatusRunning,
		TriggeredBy: triggeredBy,
		ParentRunId: parentRunId,
		StartedAt:   &now,
	}
	if err := db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, nil, err
	}

	importer := NewImporter(db, logger, DefaultMarketRules())

	listings, err := fetch(ctx)
	if err != nil {
		importer.finalizeRun(ctx, run, nil, models.ImportRunStatusFailed)
		return nil, run, err
	}

	summary, err := importer.Run(ctx, listings, RunOptions{
		Source:           models.ExternalSourceSpacest,
		FallbackAgencyId: fallbackAgencyId,
		Run:              run,
	})
	return summary, run, err
}

func fetchFeedWithFallback(ctx context.Context) ([]ExternalListing, error) {
	listings, err := newFeedClient().FetchListings(ctx)
	if err == nil {
		return listings, nil
	}
	if !config.ScrapeFallbackEnabled() {
		return nil, err
	}
	config.LogError(config.GetLogger(), "spacestsync", "fetchFeedWithFallback",
		"feed unavailable, falling back to scraper", nil, err)
	return newScraper().ScrapeListings(ctx)
}

func respondRun(c *gin.Context, summary *ImportSummary, run *models.ImportRun, err error) {
	if err != nil {
		if errors.Is(err, errImportInProgress) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// callerAgencyId resolves the authenticated caller's agency, zero when the
// request is anonymous or the user has no agency.
func callerAgencyId(c *gin.Context) int {
	username, ok := utils.GetUsernameFromContext(c.Request.Context())
	if !ok {
		return 0
	}
	user, err := models.GetUserByUsername(c.Request.Context(), username)
	if err != nil || user == nil {
		return 0
	}
	return user.AgencyId
}

func loadRunFromPath(c *gin.Context) (*models.ImportRun, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid run id"})
		return nil, false
	}

	var run models.ImportRun
	err = config.GetDB().WithContext(c.Request.Context()).Where("id = ?", id).Take(&run).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "run not found"})
		return nil, false
	}
	return &run, true
}

func buildRunResponse(run *models.ImportRun) RunResponse {
	resp := RunResponse{
		ID:          run.ID,
		Status:      run.Status,
		TriggeredBy: run.TriggeredBy,
		DurationMs:  run.DurationMs,
		Imported:    run.Imported,
		Updated:     run.Updated,
		Removed:     run.Removed,
		Skipped:     run.Skipped,
		Total:       run.Total,
		ErrorCount:  run.ErrorCount,
	}
	if run.StartedAt != nil {
		started := run.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &started
	}
	if run.FinishedAt != nil {
		finished := run.FinishedAt.Format(time.RFC3339)
		resp.FinishedAt = &finished
	}
	return resp
}
