package entity

import "time"

// ScanRecord — запись о физической плате в хранилище, ключ — штрихкод.
// Поля кроме вердикта и отметок времени заводит внешний процесс (сидер).
type ScanRecord struct {
	Barcode           string  `json:"barcode" bson:"barcode"`
	ProductID         string  `json:"product_id" bson:"product_id"`
	ShiftID           string  `json:"shift_id" bson:"shift_id"`
	BatchID           string  `json:"batch_id,omitempty" bson:"batch_id,omitempty"`
	PlaceID           string  `json:"place_id,omitempty" bson:"place_id,omitempty"`
	ManufacturingDate string  `json:"manufacturing_date,omitempty" bson:"manufacturing_date,omitempty"`
	OperatorID        string  `json:"operator_id,omitempty" bson:"operator_id,omitempty"`
	OperatorName      string  `json:"operator_name,omitempty" bson:"operator_name,omitempty"`
	Timestamp         string  `json:"timestamp,omitempty" bson:"timestamp,omitempty"`
	QualityStatus     string  `json:"quality_status" bson:"quality_status"`
	DefectType        string  `json:"defect_type" bson:"defect_type"`
	LastUpdated       string  `json:"last_updated,omitempty" bson:"last_updated,omitempty"`
	LastScannedAt     *string `json:"last_scanned_at" bson:"last_scanned_at"`
}

// UpdateStatus различает три исхода записи вердикта.
type UpdateStatus string

const (
	UpdateNotFound  UpdateStatus = "barcode_not_found" // записи с таким штрихкодом нет
	UpdateModified  UpdateStatus = "updated"           // поля изменились
	UpdateUnchanged UpdateStatus = "unchanged"         // повторное сканирование с тем же вердиктом
)

// UpdateOutcome — результат условного обновления записи.
type UpdateOutcome struct {
	Matched  bool
	Modified bool
}

// Status переводит пару счётчиков в один из трёх исходов.
func (o UpdateOutcome) Status() UpdateStatus {
	switch {
	case !o.Matched:
		return UpdateNotFound
	case o.Modified:
		return UpdateModified
	default:
		return UpdateUnchanged
	}
}

// FormatTimestamp — единый формат отметок времени в хранилище (UTC, ISO-8601).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z07:00")
}

// Лимиты выборки для мониторинга.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// RecordFilter — фильтр выборки для мониторинга. Пустые поля не фильтруют.
type RecordFilter struct {
	ShiftID       string
	QualityStatus string
	DefectType    string // подстрока без учёта регистра
	Limit         int
}

// Normalize подставляет лимит по умолчанию и ограничивает максимальный.
func (f RecordFilter) Normalize() RecordFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return f
}

// QualityStats — сводные счётчики по хранилищу.
type QualityStats struct {
	Total     int64 `json:"total"`
	Defective int64 `json:"defective"`
	NoDefect  int64 `json:"no_defect"`
}
