package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pcb-inspector/internal/domain/entity"
)

func TestGormScanHistory_RecordAndRecent(t *testing.T) {
	db, err := OpenSQLite("file::memory:")
	require.NoError(t, err)
	history, err := NewGormScanHistory(db)
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, history.Record(ctx, entity.ScanEvent{
		Source:    entity.SourceTrigger,
		ProductID: "P1",
		Reason:    entity.ReasonBarcodeNotFound,
		CreatedAt: base,
	}))
	require.NoError(t, history.Record(ctx, entity.ScanEvent{
		Source:        entity.SourceReview,
		Barcode:       "1000000000001",
		Success:       true,
		QualityStatus: entity.StatusDefective,
		Defects:       []entity.Defect{{Type: "short", Confidence: 0.75}},
		Elapsed:       1500 * time.Millisecond,
		CreatedAt:     base.Add(time.Minute),
	}))

	events, err := history.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	latest := events[0]
	require.Equal(t, entity.SourceReview, latest.Source)
	require.True(t, latest.Success)
	require.Equal(t, 1500*time.Millisecond, latest.Elapsed)
	require.Equal(t, []entity.Defect{{Type: "short", Confidence: 0.75}}, latest.Defects)

	require.False(t, events[1].Success)
	require.Equal(t, entity.ReasonBarcodeNotFound, events[1].Reason)
	require.Empty(t, events[1].Defects)
}
