package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"pcb-inspector/internal/domain/entity"
)

var requiredColumns = []string{"barcode", "product_id"}

// ReadRecordsCSV читает выгрузку трассировки плат.
// Строки с некорректным штрихкодом пропускаются и возвращаются счётчиком skipped.
func ReadRecordsCSV(r io.Reader) (records []entity.ScanRecord, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, 0, fmt.Errorf("missing column %q", col)
		}
	}

	get := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", line, err)
		}

		barcode := get(row, "barcode")
		if !entity.ValidBarcode(barcode) {
			skipped++
			continue
		}
		records = append(records, entity.ScanRecord{
			Barcode:           barcode,
			BatchID:           get(row, "batch_id"),
			ShiftID:           get(row, "shift_id"),
			PlaceID:           get(row, "place_id"),
			ManufacturingDate: get(row, "manufacturing_date"),
			QualityStatus:     get(row, "quality_status"),
			DefectType:        get(row, "defect_type"),
			OperatorID:        get(row, "operator_id"),
			OperatorName:      get(row, "operator_name"),
			Timestamp:         get(row, "timestamp"),
			ProductID:         get(row, "product_id"),
		})
	}
	return records, skipped, nil
}
