package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/domain/port"
)

// ErrTriggerFailed — проверка снимка не смогла отработать из-за внутреннего сбоя.
var ErrTriggerFailed = errors.New("ml trigger failed")

// LookupResult — ответ на сканирование штрихкода на линии.
type LookupResult struct {
	Status            string                 `json:"status"`
	Barcode           string                 `json:"barcode"`
	ProductID         string                 `json:"product_id"`
	ManufacturingDate string                 `json:"manufacturing_date"`
	MLResult          *entity.PipelineResult `json:"ml_result"`
}

// LookupService находит плату по отсканированному штрихкоду и запускает проверку её снимка.
type LookupService struct {
	records port.RecordStore
	trigger *TriggerService
	now     func() time.Time
}

// NewLookupService создаёт сервис поиска по штрихкоду.
func NewLookupService(records port.RecordStore, trigger *TriggerService) *LookupService {
	return &LookupService{records: records, trigger: trigger, now: time.Now}
}

// Lookup очищает ввод, отмечает время сканирования и запускает триггер по product_id записи.
func (s *LookupService) Lookup(ctx context.Context, raw string) (*LookupResult, error) {
	barcode := entity.SanitizeBarcode(raw)
	if !entity.ValidBarcode(barcode) {
		return nil, entity.ErrInvalidBarcode
	}

	record, err := s.records.TouchScan(ctx, barcode, s.now())
	if err != nil {
		return nil, fmt.Errorf("touch %s: %w", barcode, err)
	}
	log.Printf("Lookup %s: product_id=%s", barcode, record.ProductID)

	result, err := s.trigger.trigger(ctx, record.ProductID, entity.SourceLookup)
	if err != nil {
		return nil, fmt.Errorf("%w: product %s: %w", ErrTriggerFailed, record.ProductID, err)
	}

	return &LookupResult{
		Status:            "found",
		Barcode:           record.Barcode,
		ProductID:         record.ProductID,
		ManufacturingDate: record.ManufacturingDate,
		MLResult:          result,
	}, nil
}
