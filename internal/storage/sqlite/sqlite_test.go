package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/yegors/superplane/internal/adsb"
	"github.com/yegors/superplane/internal/position"
	"github.com/yegors/superplane/internal/search"
	"github.com/yegors/superplane/pkg/logger"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("Expected error for empty path")
	}
}

func TestFavorites(t *testing.T) {
	ctx := context.Background()
	store, err := NewFavoritesStorage(openTestDB(t), logger.NewNop())
	if err != nil {
		t.Fatalf("NewFavoritesStorage: %v", err)
	}

	plane := adsb.Candidate{
		ID:                 "4840205",
		ICAO:               "49db0d",
		Callsign:           "TVS1234",
		Registration:       "OK-TVP",
		Latitude:           50.1,
		Longitude:          14.26,
		Stops:              []string{"LOWW Vienna"},
		ReportedDistanceKm: 4.2,
	}

	if ok, err := store.FavoriteExists(ctx, plane); err != nil || ok {
		t.Fatalf("Expected no favorite yet, got %v / %v", ok, err)
	}

	record, err := store.AddFavorite(ctx, plane)
	if err != nil {
		t.Fatalf("AddFavorite: %v", err)
	}
	if record.Key != "49DB0D" {
		t.Errorf("Expected ICAO key, got %s", record.Key)
	}
	if record.Aircraft.Callsign != "TVS1234" || len(record.Aircraft.Stops) != 1 || record.Aircraft.ReportedDistanceKm != 4.2 {
		t.Errorf("Snapshot not preserved: %+v", record.Aircraft)
	}

	// Saving again updates the snapshot but does not duplicate it
	plane.Callsign = "TVS1235"
	if _, err := store.AddFavorite(ctx, plane); err != nil {
		t.Fatalf("AddFavorite again: %v", err)
	}

	favs, err := store.GetFavorites(ctx)
	if err != nil {
		t.Fatalf("GetFavorites: %v", err)
	}
	if len(favs) != 1 || favs[0].Aircraft.Callsign != "TVS1235" {
		t.Fatalf("Expected one updated favorite, got %+v", favs)
	}
	if !favs[0].CreatedAt.Equal(record.CreatedAt) {
		t.Errorf("Expected creation time to be kept, got %v want %v", favs[0].CreatedAt, record.CreatedAt)
	}

	if ok, _ := store.FavoriteExists(ctx, plane); !ok {
		t.Error("Expected favorite to exist")
	}

	if err := store.RemoveFavorite(ctx, "49DB0D"); err != nil {
		t.Fatalf("RemoveFavorite: %v", err)
	}
	if err := store.RemoveFavorite(ctx, "49DB0D"); !errors.Is(err, ErrFavoriteNotFound) {
		t.Errorf("Expected ErrFavoriteNotFound, got %v", err)
	}
	if _, err := store.GetFavorite(ctx, "49DB0D"); !errors.Is(err, ErrFavoriteNotFound) {
		t.Errorf("Expected ErrFavoriteNotFound, got %v", err)
	}
}

func TestFavoriteWithoutIdentity(t *testing.T) {
	store, err := NewFavoritesStorage(openTestDB(t), logger.NewNop())
	if err != nil {
		t.Fatalf("NewFavoritesStorage: %v", err)
	}
	if _, err := store.AddFavorite(context.Background(), adsb.Candidate{}); err == nil {
		t.Error("Expected error for aircraft without a key")
	}
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store, err := NewSettingsStorage(db, 5, logger.NewNop())
	if err != nil {
		t.Fatalf("NewSettingsStorage: %v", err)
	}

	km, err := store.SearchRadiusKm(ctx)
	if err != nil || km != 5 {
		t.Fatalf("Expected default radius 5, got %v / %v", km, err)
	}

	// The default is persisted on first read
	var stored string
	if err := db.QueryRow(`SELECT value FROM settings WHERE key = ?`, searchRadiusKey).Scan(&stored); err != nil || stored != "5" {
		t.Errorf("Expected persisted default, got %q / %v", stored, err)
	}

	if err := store.SetSearchRadiusKm(ctx, 12.5); err != nil {
		t.Fatalf("SetSearchRadiusKm: %v", err)
	}
	if km, _ := store.SearchRadiusKm(ctx); km != 12.5 {
		t.Errorf("Expected 12.5, got %v", km)
	}
	if err := store.SetSearchRadiusKm(ctx, 0); err == nil {
		t.Error("Expected error for zero radius")
	}

	enabled, err := store.DownloadImages(ctx)
	if err != nil || enabled {
		t.Fatalf("Expected images disabled by default, got %v / %v", enabled, err)
	}
	if err := store.SetDownloadImages(ctx, true); err != nil {
		t.Fatalf("SetDownloadImages: %v", err)
	}
	if enabled, _ := store.DownloadImages(ctx); !enabled {
		t.Error("Expected images enabled")
	}

	// A second storage over the same database sees the stored values
	again, err := NewSettingsStorage(db, 99, logger.NewNop())
	if err != nil {
		t.Fatalf("NewSettingsStorage: %v", err)
	}
	if km, _ := again.SearchRadiusKm(ctx); km != 12.5 {
		t.Errorf("Expected stored radius to win over a new default, got %v", km)
	}
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	store, err := NewHistoryStorage(openTestDB(t), logger.NewNop())
	if err != nil {
		t.Fatalf("NewHistoryStorage: %v", err)
	}

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fix := position.Fix{Latitude: 32.0, Longitude: 34.8, Accuracy: 12.5, Time: base, Source: "gps"}

	found := search.Found(adsb.Candidate{ID: "1", ICAO: "738065", Callsign: "ELY001"}, 3.1, fix)
	found.TaskID = "task-1"
	found.StartedAt, found.FinishedAt = base, base.Add(2*time.Second)

	failed := search.NetworkFailure(fix, errors.New("connection refused"))
	failed.TaskID = "task-2"
	failed.StartedAt, failed.FinishedAt = base.Add(time.Minute), base.Add(time.Minute+time.Second)

	cancelled := search.Cancelled()
	cancelled.TaskID = "task-3"
	cancelled.StartedAt, cancelled.FinishedAt = base.Add(2*time.Minute), base.Add(2*time.Minute+500*time.Millisecond)

	for _, o := range []search.Outcome{found, failed, cancelled} {
		if err := store.RecordOutcome(ctx, o); err != nil {
			t.Fatalf("RecordOutcome %s: %v", o.TaskID, err)
		}
	}

	got, err := store.GetRecentOutcomes(ctx, 10)
	if err != nil {
		t.Fatalf("GetRecentOutcomes: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 outcomes, got %d", len(got))
	}
	if got[0].TaskID != "task-3" || got[2].TaskID != "task-1" {
		t.Errorf("Expected newest first, got %s .. %s", got[0].TaskID, got[2].TaskID)
	}

	if got[0].Kind != search.OutcomeCancelled || got[0].Fix != nil || got[0].Aircraft != nil {
		t.Errorf("Unexpected cancelled outcome %+v", got[0])
	}
	if got[1].Kind != search.OutcomeNetworkFailure || got[1].Error != "connection refused" {
		t.Errorf("Unexpected failure outcome %+v", got[1])
	}

	f := got[2]
	if f.Kind != search.OutcomeFound || f.Aircraft == nil || f.Aircraft.Callsign != "ELY001" || f.DistanceKm != 3.1 {
		t.Errorf("Unexpected found outcome %+v", f)
	}
	if f.Fix == nil || f.Fix.Accuracy != 12.5 || f.Fix.Source != "gps" || !f.Fix.Time.Equal(base) {
		t.Errorf("Reference fix not preserved: %+v", f.Fix)
	}
	if !f.FinishedAt.Equal(found.FinishedAt) {
		t.Errorf("Expected finish time %v, got %v", found.FinishedAt, f.FinishedAt)
	}

	limited, err := store.GetRecentOutcomes(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("Expected limit to apply, got %d / %v", len(limited), err)
	}

	if err := store.RecordOutcome(ctx, found); err == nil {
		t.Error("Expected duplicate task id to be rejected")
	}
}
