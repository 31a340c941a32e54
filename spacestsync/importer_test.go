package spacestsync_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/config"
	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/models"
	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/spacestsync"
	"github.com/shopspring/decimal"
)

func ptrInt(v int) *int { return &v }

func feedListing(code, category string, bedrooms *int, price string, lat, lng float64) spacestsync.ExternalListing {
	return spacestsync.ExternalListing{
		Code:      code,
		Category:  category,
		Title:     "Listing " + code,
		Price:     json.Number(price),
		Bedrooms:  bedrooms,
		Address:   "Via Test 1",
		City:      "Milano",
		Latitude:  lat,
		Longitude: lng,
	}
}

func setupIntegration(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "flat2study_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	return context.Background()
}

func newTestImporter() *spacestsync.Importer {
	return spacestsync.NewImporter(config.GetDB(), config.GetLogger(), spacestsync.MarketRules{
		MinPrice: decimal.NewFromInt(300),
		MaxPrice: decimal.NewFromInt(1200),
		Area:     spacestsync.BoundingBox{MinLat: 45.35, MaxLat: 45.62, MinLng: 9.00, MaxLng: 9.35},
	})
}

func runImport(t *testing.T, ctx context.Context, listings []spacestsync.ExternalListing) (*spacestsync.ImportSummary, *models.ImportRun) {
	t.Helper()
	db := config.GetDB()

	now := time.Now()
	run := &models.ImportRun{
		Source:      models.ExternalSourceSpacest,
		Status:      models.ImportRunStatusRunning,
		TriggeredBy: models.ImportTriggeredManual,
		StartedAt:   &now,
	}
	if err := db.WithContext(ctx).Create(run).Error; err != nil {
		t.Fatalf("create run: %v", err)
	}

	summary, err := newTestImporter().Run(ctx, listings, spacestsync.RunOptions{
		Source: models.ExternalSourceSpacest,
		Run:    run,
	})
	if err != nil {
		t.Fatalf("importer.Run: %v", err)
	}

	var reloaded models.ImportRun
	if err := db.WithContext(ctx).Where("id = ?", run.ID).Take(&reloaded).Error; err != nil {
		t.Fatalf("reload run: %v", err)
	}
	return summary, &reloaded
}

func TestImportEndToEnd(t *testing.T) {
	ctx := setupIntegration(t)
	db := config.GetDB()

	feed := []spacestsync.ExternalListing{
		feedListing("SP-1", "camera singola", nil, "450", 45.46, 9.19),
		feedListing("SP-2", "monolocale", ptrInt(0), "800", 45.48, 9.17),
		feedListing("SP-3", "appartamento", ptrInt(3), "1150", 45.45, 9.21),
	}
	feed[0].OccupiedPeriods = []spacestsync.OccupiedPeriod{
		{From: time.Now().UTC().Format("2006-01-02"), To: time.Now().UTC().AddDate(0, 0, 9).Format("2006-01-02")},
	}

	summary, run := runImport(t, ctx, feed)

	if summary.Imported != 3 || summary.Updated != 0 || summary.Skipped != 0 {
		t.Fatalf("first run summary = %+v", summary)
	}
	if run.Status != models.ImportRunStatusSuccess {
		t.Fatalf("run status = %s, want success", run.Status)
	}

	// The system agency was auto-provisioned and owns everything imported.
	agency, err := models.FindSpacestAgency(ctx)
	if err != nil || agency == nil {
		t.Fatalf("system agency missing: %v", err)
	}

	room, err := models.FindListingByExternalKey(ctx, db, models.ExternalSourceSpacest, "SP-1")
	if err != nil || room == nil {
		t.Fatalf("SP-1 not stored: %v", err)
	}
	if room.AgencyId != agency.ID {
		t.Fatalf("SP-1 owned by agency %d, want %d", room.AgencyId, agency.ID)
	}
	if room.PropertyType != models.PropertyTypeSingleRoom || room.MappedCategory != models.CategoryStanza {
		t.Fatalf("SP-1 classified as %s/%s", room.PropertyType, room.MappedCategory)
	}
	if room.Status != models.ListingStatusPending {
		t.Fatalf("SP-1 status = %s, imported listings must stay pending", room.Status)
	}

	apt, err := models.FindListingByExternalKey(ctx, db, models.ExternalSourceSpacest, "SP-3")
	if err != nil || apt == nil {
		t.Fatalf("SP-3 not stored: %v", err)
	}
	if apt.MappedCategory != models.CategoryTrilocale {
		t.Fatalf("SP-3 category = %s, want trilocale", apt.MappedCategory)
	}

	// Full availability window written, with the occupied prefix blocked.
	var days []models.ListingAvailabilityDay
	if err := db.WithContext(ctx).Where("listing_id = ?", room.ID).Order("date ASC").Find(&days).Error; err != nil {
		t.Fatalf("load calendar: %v", err)
	}
	if len(days) != models.CalendarWindowDays {
		t.Fatalf("calendar has %d days, want %d", len(days), models.CalendarWindowDays)
	}
	blocked := 0
	for _, d := range days {
		if d.Available != nil && !*d.Available {
			blocked++
		}
	}
	if blocked != 10 {
		t.Fatalf("blocked days = %d, want 10", blocked)
	}
}

func TestImportIsIdempotentAndAppliesUpdates(t *testing.T) {
	ctx := setupIntegration(t)
	db := config.GetDB()

	feed := []spacestsync.ExternalListing{
		feedListing("SP-10", "camera singola", nil, "500", 45.46, 9.19),
		feedListing("SP-11", "monolocale", ptrInt(0), "750", 45.47, 9.20),
	}

	first, _ := runImport(t, ctx, feed)
	if first.Imported != 2 {
		t.Fatalf("first run imported = %d", first.Imported)
	}

	// Same feed again: nothing new, everything refreshed in place.
	second, _ := runImport(t, ctx, feed)
	if second.Imported != 0 || second.Updated != 2 || second.Removed != 0 {
		t.Fatalf("second run summary = %+v", second)
	}

	var count int64
	if err := db.WithContext(ctx).Model(&models.Listing{}).
		Where("external_source = ?", models.ExternalSourceSpacest).Count(&count).Error; err != nil {
		t.Fatalf("count listings: %v", err)
	}
	if count != 2 {
		t.Fatalf("listing count = %d after re-import, want 2", count)
	}

	// Price change flows through on the next run.
	feed[0].Price = json.Number("620")
	third, _ := runImport(t, ctx, feed)
	if third.Updated != 2 {
		t.Fatalf("third run summary = %+v", third)
	}
	updated, err := models.FindListingByExternalKey(ctx, db, models.ExternalSourceSpacest, "SP-10")
	if err != nil || updated == nil {
		t.Fatalf("SP-10 missing: %v", err)
	}
	if !updated.MonthlyRent.Equal(decimal.NewFromInt(620)) {
		t.Fatalf("SP-10 rent = %s, want 620", updated.MonthlyRent)
	}
}

func TestImportReconciliationRemovesStaleListings(t *testing.T) {
	ctx := setupIntegration(t)
	db := config.GetDB()

	full := []spacestsync.ExternalListing{
		feedListing("SP-A", "camera singola", nil, "400", 45.46, 9.19),
		feedListing("SP-B", "camera doppia", nil, "350", 45.47, 9.18),
		feedListing("SP-C", "monolocale", ptrInt(0), "900", 45.48, 9.20),
	}
	first, _ := runImport(t, ctx, full)
	if first.Imported != 3 {
		t.Fatalf("seed run summary = %+v", first)
	}

	// A listing's owner can change between runs (fallback agency, manual
	// reassignment). Reconciliation scopes by source, not owner, so a stale
	// row under another agency is still swept.
	err := db.WithContext(ctx).Model(&models.Listing{}).
		Where("external_listing_id = ? AND external_source = ?", "SP-B", models.ExternalSourceSpacest).
		Update("agency_id", 9999).Error
	if err != nil {
		t.Fatalf("reassign SP-B owner: %v", err)
	}

	// B disappears from the source: it must disappear from the platform.
	second, _ := runImport(t, ctx, []spacestsync.ExternalListing{full[0], full[2]})
	if second.Removed != 1 || second.Updated != 2 {
		t.Fatalf("shrunken feed summary = %+v", second)
	}

	gone, err := models.FindListingByExternalKey(ctx, db, models.ExternalSourceSpacest, "SP-B")
	if err != nil {
		t.Fatalf("lookup SP-B: %v", err)
	}
	if gone != nil {
		t.Fatal("SP-B still present after reconciliation")
	}

	// Its calendar went with it.
	var orphanDays int64
	err = db.WithContext(ctx).Model(&models.ListingAvailabilityDay{}).
		Joins("LEFT JOIN listings ON listings.id = listing_availability_days.listing_id").
		Where("listings.id IS NULL").Count(&orphanDays).Error
	if err != nil {
		t.Fatalf("count orphan days: %v", err)
	}
	if orphanDays != 0 {
		t.Fatalf("found %d orphaned calendar days", orphanDays)
	}
}

func TestImportSkipsAndWipeGuard(t *testing.T) {
	ctx := setupIntegration(t)

	good := feedListing("SP-OK", "camera singola", nil, "600", 45.46, 9.19)
	tooCheap := feedListing("SP-CHEAP", "camera singola", nil, "250", 45.46, 9.19)
	offMap := feedListing("SP-ROME", "camera singola", nil, "600", 41.90, 12.49)
	noCoords := feedListing("SP-NOGPS", "camera singola", nil, "600", 0, 0)
	unclassified := feedListing("SP-ODD", "", ptrInt(0), "50000", 45.46, 9.19)
	noID := feedListing("", "camera singola", nil, "600", 45.46, 9.19)

	summary, run := runImport(t, ctx, []spacestsync.ExternalListing{good, tooCheap, offMap, noCoords, unclassified, noID})
	if summary.Imported != 1 {
		t.Fatalf("summary = %+v, want exactly the one good listing imported", summary)
	}
	if summary.Skipped != 5 {
		t.Fatalf("skipped = %d, want 5", summary.Skipped)
	}
	if run.Status != models.ImportRunStatusSuccess {
		t.Fatalf("run status = %s; skips are not errors", run.Status)
	}

	// A feed where nothing validates must not wipe the catalogue.
	wipeAttempt, _ := runImport(t, ctx, []spacestsync.ExternalListing{tooCheap, offMap})
	if wipeAttempt.Removed != 0 {
		t.Fatalf("wipe guard failed: removed = %d", wipeAttempt.Removed)
	}
	db := config.GetDB()
	survivor, err := models.FindListingByExternalKey(ctx, db, models.ExternalSourceSpacest, "SP-OK")
	if err != nil || survivor == nil {
		t.Fatalf("SP-OK removed by an all-invalid feed: %v", err)
	}

	// An explicitly empty feed is a real signal and clears the catalogue.
	emptyFeed, _ := runImport(t, ctx, nil)
	if emptyFeed.Removed != 1 {
		t.Fatalf("empty feed should remove the survivor, removed = %d", emptyFeed.Removed)
	}
}

func TestImportDuplicateIDsWithinFeed(t *testing.T) {
	ctx := setupIntegration(t)

	feed := []spacestsync.ExternalListing{
		feedListing("SP-DUP", "camera singola", nil, "500", 45.46, 9.19),
		feedListing("SP-DUP", "camera singola", nil, "510", 45.46, 9.19),
	}
	summary, _ := runImport(t, ctx, feed)
	if summary.Imported != 1 || summary.Skipped != 1 {
		t.Fatalf("summary = %+v, want first occurrence imported and the repeat skipped", summary)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("flat2study-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("flat2study-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=flat2study_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
