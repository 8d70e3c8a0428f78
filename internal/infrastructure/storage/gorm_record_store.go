package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/domain/port"
)

// recordModel — строка таблицы scan_records
type recordModel struct {
	Barcode           string `gorm:"primaryKey;size:13"`
	ProductID         string `gorm:"index"`
	ShiftID           string `gorm:"size:16;index"`
	BatchID           string
	PlaceID           string
	ManufacturingDate string
	OperatorID        string
	OperatorName      string
	Timestamp         string
	QualityStatus     string `gorm:"size:20;index"`
	DefectType        string
	LastUpdated       string `gorm:"index"`
	LastScannedAt     *string
}

func (recordModel) TableName() string {
	return "scan_records"
}

func toRecordModel(r entity.ScanRecord) recordModel {
	return recordModel{
		Barcode:           r.Barcode,
		ProductID:         r.ProductID,
		ShiftID:           r.ShiftID,
		BatchID:           r.BatchID,
		PlaceID:           r.PlaceID,
		ManufacturingDate: r.ManufacturingDate,
		OperatorID:        r.OperatorID,
		OperatorName:      r.OperatorName,
		Timestamp:         r.Timestamp,
		QualityStatus:     r.QualityStatus,
		DefectType:        r.DefectType,
		LastUpdated:       r.LastUpdated,
		LastScannedAt:     r.LastScannedAt,
	}
}

func (m recordModel) toEntity() entity.ScanRecord {
	return entity.ScanRecord{
		Barcode:           m.Barcode,
		ProductID:         m.ProductID,
		ShiftID:           m.ShiftID,
		BatchID:           m.BatchID,
		PlaceID:           m.PlaceID,
		ManufacturingDate: m.ManufacturingDate,
		OperatorID:        m.OperatorID,
		OperatorName:      m.OperatorName,
		Timestamp:         m.Timestamp,
		QualityStatus:     m.QualityStatus,
		DefectType:        m.DefectType,
		LastUpdated:       m.LastUpdated,
		LastScannedAt:     m.LastScannedAt,
	}
}

// GormRecordStore хранит записи о платах в SQL-базе через gorm
type GormRecordStore struct {
	db *gorm.DB
}

// NewGormRecordStore создаёт хранилище и мигрирует схему
func NewGormRecordStore(db *gorm.DB) (*GormRecordStore, error) {
	if err := db.AutoMigrate(&recordModel{}); err != nil {
		return nil, fmt.Errorf("migrate scan_records: %w", err)
	}
	return &GormRecordStore{db: db}, nil
}

// UpdateVerdict обновляет строку, только если вердикт отличается; иначе проверяет наличие строки
func (s *GormRecordStore) UpdateVerdict(ctx context.Context, barcode string, verdict entity.Verdict, at time.Time) (entity.UpdateOutcome, error) {
	var outcome entity.UpdateOutcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&recordModel{}).
			Where("barcode = ?", barcode).
			Where("(quality_status IS NULL OR defect_type IS NULL OR quality_status <> ? OR defect_type <> ?)",
				verdict.QualityStatus, verdict.DefectType).
			Updates(map[string]any{
				"quality_status": verdict.QualityStatus,
				"defect_type":    verdict.DefectType,
				"last_updated":   entity.FormatTimestamp(at),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			outcome = entity.UpdateOutcome{Matched: true, Modified: true}
			return nil
		}

		var n int64
		if err := tx.Model(&recordModel{}).Where("barcode = ?", barcode).Count(&n).Error; err != nil {
			return err
		}
		outcome = entity.UpdateOutcome{Matched: n > 0}
		return nil
	})
	if err != nil {
		return entity.UpdateOutcome{}, fmt.Errorf("update verdict: %w", err)
	}
	return outcome, nil
}

// FindByBarcode читает запись по штрихкоду
func (s *GormRecordStore) FindByBarcode(ctx context.Context, barcode string) (*entity.ScanRecord, error) {
	var m recordModel
	err := s.db.WithContext(ctx).Where("barcode = ?", barcode).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, entity.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find record: %w", err)
	}
	r := m.toEntity()
	return &r, nil
}

// TouchScan ставит last_scanned_at и возвращает запись
func (s *GormRecordStore) TouchScan(ctx context.Context, barcode string, at time.Time) (*entity.ScanRecord, error) {
	var m recordModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&recordModel{}).Where("barcode = ?", barcode).Update("last_scanned_at", entity.FormatTimestamp(at))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return entity.ErrRecordNotFound
		}
		return tx.Where("barcode = ?", barcode).Take(&m).Error
	})
	if errors.Is(err, entity.ErrRecordNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("touch record: %w", err)
	}
	r := m.toEntity()
	return &r, nil
}

// List выбирает записи для мониторинга
func (s *GormRecordStore) List(ctx context.Context, filter entity.RecordFilter) ([]entity.ScanRecord, error) {
	filter = filter.Normalize()
	q := s.db.WithContext(ctx).Model(&recordModel{})
	if filter.ShiftID != "" {
		q = q.Where("shift_id = ?", filter.ShiftID)
	}
	if filter.QualityStatus != "" {
		q = q.Where("quality_status = ?", filter.QualityStatus)
	}
	if filter.DefectType != "" {
		q = q.Where(`LOWER(defect_type) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(filter.DefectType))+"%")
	}

	var models []recordModel
	err := q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: "last_updated"}, Desc: true},
		{Column: clause.Column{Name: "barcode"}},
	}}).Limit(filter.Limit).Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	records := make([]entity.ScanRecord, 0, len(models))
	for _, m := range models {
		records = append(records, m.toEntity())
	}
	return records, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Stats считает строки по статусам
func (s *GormRecordStore) Stats(ctx context.Context) (entity.QualityStats, error) {
	var rows []struct {
		QualityStatus string
		N             int64
	}
	err := s.db.WithContext(ctx).Model(&recordModel{}).
		Select("quality_status, COUNT(*) AS n").
		Group("quality_status").
		Scan(&rows).Error
	if err != nil {
		return entity.QualityStats{}, fmt.Errorf("count records: %w", err)
	}

	var stats entity.QualityStats
	for _, row := range rows {
		stats.Total += row.N
		switch row.QualityStatus {
		case entity.StatusDefective:
			stats.Defective = row.N
		case entity.StatusNoDefect:
			stats.NoDefect = row.N
		}
	}
	return stats, nil
}

// ReplaceAll очищает таблицу и вставляет записи пачками
func (s *GormRecordStore) ReplaceAll(ctx context.Context, records []entity.ScanRecord) (int, error) {
	models := make([]recordModel, 0, len(records))
	for _, r := range records {
		models = append(models, toRecordModel(r))
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&recordModel{}).Error; err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}
		return tx.CreateInBatches(models, 500).Error
	})
	if err != nil {
		return 0, fmt.Errorf("replace records: %w", err)
	}
	return len(models), nil
}

// Проверка реализации интерфейса
var _ port.RecordStore = (*GormRecordStore)(nil)
