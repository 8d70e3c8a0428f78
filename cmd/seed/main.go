// Command seed заливает выгрузку трассировки плат в хранилище, полностью заменяя его содержимое.
//
// Usage: seed -csv pcb_traceability_labeled_dataset.csv
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"pcb-inspector/config"
	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/domain/port"
	"pcb-inspector/internal/infrastructure/storage"
)

func main() {
	csvPath := flag.String("csv", "pcb_traceability_labeled_dataset.csv", "path to the traceability CSV")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("CSV read error: %v", err)
	}
	records, skipped, err := storage.ReadRecordsCSV(f)
	f.Close()
	if err != nil {
		log.Fatalf("CSV read error: %v", err)
	}
	records, duplicates := dedupe(records)
	if skipped > 0 || duplicates > 0 {
		log.Printf("Skipped %d rows with invalid barcode, %d duplicate barcodes", skipped, duplicates)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var store port.RecordStore
	switch cfg.StoreBackend {
	case config.StoreMongo:
		client, mongoStore, err := storage.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoCollection)
		if err != nil {
			log.Fatalf("MongoDB connection error: %v", err)
		}
		defer client.Disconnect(context.Background())
		defer func() {
			if err := mongoStore.EnsureIndexes(ctx); err != nil {
				log.Printf("Warning: %v", err)
			}
		}()
		store = mongoStore

	case config.StoreSQL:
		db, err := storage.OpenSQLite(cfg.SQLDSN)
		if err != nil {
			log.Fatalf("SQLite open error: %v", err)
		}
		store, err = storage.NewGormRecordStore(db)
		if err != nil {
			log.Fatalf("SQLite migrate error: %v", err)
		}

	default:
		log.Fatalf("Store backend %q cannot be seeded", cfg.StoreBackend)
	}

	n, err := store.ReplaceAll(ctx, records)
	if err != nil {
		log.Fatalf("Error inserting data: %v", err)
	}
	log.Printf("Inserted %d records into %s", n, cfg.StoreBackend)
}

// dedupe оставляет первую запись для каждого штрихкода.
func dedupe(records []entity.ScanRecord) ([]entity.ScanRecord, int) {
	seen := make(map[string]struct{}, len(records))
	out := records[:0]
	for _, r := range records {
		if _, ok := seen[r.Barcode]; ok {
			continue
		}
		seen[r.Barcode] = struct{}{}
		out = append(out, r)
	}
	return out, len(records) - len(out)
}
