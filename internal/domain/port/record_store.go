package port

import (
	"context"
	"time"

	"pcb-inspector/internal/domain/entity"
)

// RecordStore интерфейс хранилища записей о платах
type RecordStore interface {
	// UpdateVerdict обновляет вердикт существующей записи. Новую запись не создаёт.
	// last_updated меняется только вместе с вердиктом.
	UpdateVerdict(ctx context.Context, barcode string, verdict entity.Verdict, at time.Time) (entity.UpdateOutcome, error)

	// FindByBarcode возвращает запись или entity.ErrRecordNotFound
	FindByBarcode(ctx context.Context, barcode string) (*entity.ScanRecord, error)

	// TouchScan отмечает время сканирования и возвращает обновлённую запись
	TouchScan(ctx context.Context, barcode string, at time.Time) (*entity.ScanRecord, error)

	// List возвращает записи по фильтру, свежие первыми
	List(ctx context.Context, filter entity.RecordFilter) ([]entity.ScanRecord, error)

	// Stats считает записи по статусам качества
	Stats(ctx context.Context) (entity.QualityStats, error)

	// ReplaceAll заменяет всю коллекцию (используется сидером)
	ReplaceAll(ctx context.Context, records []entity.ScanRecord) (int, error)
}
