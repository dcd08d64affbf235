package sqlite

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yegors/co-gci/pkg/logger"
)

func testCallStorage(t *testing.T) *CallStorage {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return NewCallStorage(db, log)
}

func sampleCall(pilot string, ts time.Time) *CallRecord {
	return &CallRecord{
		Pilot:       pilot,
		Frequency:   "251000000",
		RequestKind: "bogey_dope",
		Transcript:  "Magic, " + pilot + ", bogey dope",
		ReplyScript: pilot + ", Magic, bandit, braa 0 9 0, 60 miles, 15 thousand, cold east, type fulcrum.",
		Outcome:     "bogey_dope",
		Timestamp:   ts,
		CreatedAt:   ts,
	}
}

func TestStoreAndGetRecentCalls(t *testing.T) {
	storage := testCallStorage(t)
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		record := sampleCall("Uzi 1-1", base.Add(time.Duration(i)*time.Minute))
		id, err := storage.StoreCall(record)
		if err != nil {
			t.Fatalf("StoreCall: %v", err)
		}
		if id <= 0 {
			t.Fatalf("StoreCall returned id %d", id)
		}
	}

	records, err := storage.GetRecentCalls(2)
	if err != nil {
		t.Fatalf("GetRecentCalls: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	// Newest first.
	if !records[0].Timestamp.After(records[1].Timestamp) {
		t.Errorf("records out of order: %s then %s", records[0].Timestamp, records[1].Timestamp)
	}
	if records[0].Pilot != "Uzi 1-1" || records[0].Outcome != "bogey_dope" {
		t.Errorf("record = %+v", records[0])
	}
}

func TestGetCallsByPilot(t *testing.T) {
	storage := testCallStorage(t)
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	if _, err := storage.StoreCall(sampleCall("Uzi 1-1", base)); err != nil {
		t.Fatalf("StoreCall: %v", err)
	}
	if _, err := storage.StoreCall(sampleCall("Dodge 2-1", base.Add(time.Minute))); err != nil {
		t.Fatalf("StoreCall: %v", err)
	}

	records, err := storage.GetCallsByPilot("Uzi 1-1", 10)
	if err != nil {
		t.Fatalf("GetCallsByPilot: %v", err)
	}
	if len(records) != 1 || records[0].Pilot != "Uzi 1-1" {
		t.Fatalf("records = %+v", records)
	}
}

func TestGetCallsByTimeRange(t *testing.T) {
	storage := testCallStorage(t)
	base := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if _, err := storage.StoreCall(sampleCall("Uzi 1-1", base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("StoreCall: %v", err)
		}
	}

	records, err := storage.GetCallsByTimeRange(base.Add(time.Hour), base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("GetCallsByTimeRange: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records in range, want 3", len(records))
	}
}
