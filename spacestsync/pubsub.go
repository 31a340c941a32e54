package spacestsync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/config"
	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/models"
	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const defaultImportTopic = "spacest-import"

func importTopicName() string {
	if topic := os.Getenv("SPACEST_IMPORT_TOPIC"); topic != "" {
		return topic
	}
	return defaultImportTopic
}

// PublishImportRun announces a queued run on the import topic. The push
// subscription delivers it back to PubSubPushHandler on whichever instance
// Cloud Run picks.
func PublishImportRun(ctx context.Context, runID uint, mode string) error {
	client, err := config.GetPubSubClient(ctx)
	if err != nil {
		return err
	}

	topic, err := config.CreateTopicIfNotExists(ctx, client, importTopicName())
	if err != nil {
		return err
	}

	payload, err := json.Marshal(ImportRunMessage{
		RunId:  runID,
		Source: models.ExternalSourceSpacest,
		Mode:   mode,
	})
	if err != nil {
		return err
	}

	result := topic.Publish(ctx, &pubsub.Message{Data: payload})
	_, err = result.Get(ctx)
	return err
}

// PubSubPushHandler receives push deliveries for queued import runs and
// executes them. It returns 204 for anything that must not be redelivered:
// malformed envelopes, unknown runs and runs already picked up elsewhere.
// Only transient failures return 5xx so Pub/Sub retries them.
func PubSubPushHandler(c *gin.Context) {
	logger := config.GetLogger()

	var envelope PubSubPushEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		config.LogError(logger, "spacestsync", "PubSubPushHandler", "malformed push envelope", nil, err)
		c.Status(http.StatusNoContent)
		return
	}

	var msg ImportRunMessage
	if err := json.Unmarshal(envelope.Message.Data, &msg); err != nil || msg.RunId == 0 {
		config.LogError(logger, "spacestsync", "PubSubPushHandler", "malformed run message", string(envelope.Message.Data), err)
		c.Status(http.StatusNoContent)
		return
	}

	ctx := c.Request.Context()
	db := config.GetDB()

	var run models.ImportRun
	if err := db.WithContext(ctx).Where("id = ?", msg.RunId).Take(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable"})
		return
	}
	if run.Status != models.ImportRunStatusQueued {
		// Redelivery of a run another instance already claimed.
		c.Status(http.StatusNoContent)
		return
	}

	if err := processQueuedRun(ctx, &run, msg.Mode); err != nil {
		if errors.Is(err, errImportInProgress) {
			// Let Pub/Sub redeliver once the current run releases the lock.
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		config.LogError(logger, "spacestsync", "PubSubPushHandler", "queued run failed", run.ID, err)
	}
	c.Status(http.StatusNoContent)
}

// processQueuedRun claims a queued run and executes it through the standard
// pipeline. The status transition doubles as the claim: a conditional update
// that matched zero rows means another instance got there first.
func processQueuedRun(ctx context.Context, run *models.ImportRun, mode string) error {
	db := config.GetDB()

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "lock:import:"+run.Source, importLockTTL, nil)
		if err == nil {
			defer lock.Release(context.Background())
		} else if errors.Is(err, redislock.ErrNotObtained) {
			return errImportInProgress
		}
	}

	now := time.Now()
	claim := db.WithContext(ctx).Model(&models.ImportRun{}).
		Where("id = ? AND status = ?", run.ID, models.ImportRunStatusQueued).
		Updates(map[string]any{"status": models.ImportRunStatusRunning, "started_at": now})
	if claim.Error != nil {
		return claim.Error
	}
	if claim.RowsAffected == 0 {
		return nil
	}
	run.Status = models.ImportRunStatusRunning
	run.StartedAt = &now

	importer := NewImporter(db, config.GetLogger(), DefaultMarketRules())

	var fetch func(context.Context) ([]ExternalListing, error)
	if mode == "scrape" {
		fetch = func(ctx context.Context) ([]ExternalListing, error) {
			return newScraper().ScrapeListings(ctx)
		}
	} else {
		fetch = fetchFeedWithFallback
	}

	listings, err := fetch(ctx)
	if err != nil {
		importer.finalizeRun(ctx, run, nil, models.ImportRunStatusFailed)
		return err
	}

	_, err = importer.Run(ctx, listings, RunOptions{
		Source:           run.Source,
		FallbackAgencyId: run.AgencyId,
		Run:              run,
	})
	return err
}
