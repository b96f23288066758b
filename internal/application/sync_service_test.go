package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jobrunner/byoc/internal/domain"
)

func TestSyncService_RateLimiting(t *testing.T) {
	ingestion := &mockIngestion{run: domain.IngestRun{ID: "run-1", Submitted: 3}}
	service := NewSyncService(ingestion, time.Hour, testLogger())

	ctx := context.Background()

	result, err := service.TriggerSync(ctx)
	if err != nil {
		t.Errorf("first sync should succeed, got error: %v", err)
	}
	if result.Submitted != 3 || result.RunID != "run-1" {
		t.Errorf("result = %+v", result)
	}

	// Immediate second call should be rate limited
	_, err = service.TriggerSync(ctx)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
	if ingestion.callCount() != 1 {
		t.Errorf("ingestion ran %d times, want 1", ingestion.callCount())
	}
}

func TestSyncService_SyncNowIgnoresRateLimit(t *testing.T) {
	ingestion := &mockIngestion{}
	service := NewSyncService(ingestion, time.Hour, testLogger())
	ctx := context.Background()

	if _, err := service.TriggerSync(ctx); err != nil {
		t.Fatalf("TriggerSync() error = %v", err)
	}
	if _, err := service.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow() error = %v", err)
	}
	if ingestion.callCount() != 2 {
		t.Errorf("ingestion ran %d times, want 2", ingestion.callCount())
	}
}

func TestSyncService_SerializesSyncs(t *testing.T) {
	ingestion := &mockIngestion{delay: 10 * time.Millisecond}
	service := NewSyncService(ingestion, time.Hour, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = service.SyncNow(context.Background())
		}()
	}
	wg.Wait()

	if ingestion.callCount() != 5 {
		t.Errorf("ingestion ran %d times, want 5", ingestion.callCount())
	}
}

func TestSyncService_Status(t *testing.T) {
	ingestion := &mockIngestion{}
	service := NewSyncService(ingestion, time.Hour, testLogger())

	if !service.Status().LastSync.IsZero() {
		t.Error("LastSync should be zero before the first sync")
	}

	ingestion.err = errors.New("catalog down")
	if _, err := service.SyncNow(context.Background()); err == nil {
		t.Fatal("SyncNow() should fail")
	}
	status := service.Status()
	if status.LastError == nil || status.LastSync.IsZero() {
		t.Errorf("Status() = %+v, want failure recorded", status)
	}

	ingestion.err = nil
	if _, err := service.SyncNow(context.Background()); err != nil {
		t.Fatalf("SyncNow() error = %v", err)
	}
	if service.Status().LastError != nil {
		t.Error("LastError should clear after a successful sync")
	}
}

func TestSyncService_StartStop(t *testing.T) {
	ingestion := &mockIngestion{}
	service := NewSyncService(ingestion, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for ingestion.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	service.Stop()
	service.Stop()

	if ingestion.callCount() == 0 {
		t.Error("scheduled sync never ran")
	}
}

func TestSyncService_DisabledSchedule(t *testing.T) {
	ingestion := &mockIngestion{}
	service := NewSyncService(ingestion, 0, testLogger())

	service.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	service.Stop()

	if ingestion.callCount() != 0 {
		t.Errorf("ingestion ran %d times with schedule disabled", ingestion.callCount())
	}
}

func TestSyncService_Interval(t *testing.T) {
	interval := 2 * time.Hour
	service := NewSyncService(&mockIngestion{}, interval, testLogger())

	if service.Interval() != interval {
		t.Errorf("expected interval %v, got %v", interval, service.Interval())
	}
}
