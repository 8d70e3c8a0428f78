package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pcb-inspector/config"
	telegram "pcb-inspector/internal/api"
	httpHandler "pcb-inspector/internal/api/http"
	app "pcb-inspector/internal/application"
	"pcb-inspector/internal/container"
	"pcb-inspector/internal/domain/port"
	"pcb-inspector/internal/infrastructure/barcode"
	"pcb-inspector/internal/infrastructure/files"
	"pcb-inspector/internal/infrastructure/inference"
	"pcb-inspector/internal/infrastructure/storage"
	"pcb-inspector/internal/infrastructure/vision"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Хранилище записей о платах
	records, closeRecords, err := openRecordStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open record store: %v", err)
	}
	defer closeRecords()
	log.Printf("Record store: %s", cfg.StoreBackend)

	deps := container.Deps{
		Users:   storage.NewMemoryUserRepository(),
		Images:  vision.NewImageProcessor(),
		Records: records,
		Locator: files.NewDirLocator(cfg.ImageDir, cfg.ImageExtensions),
	}

	// Журнал запусков конвейера
	if cfg.HistoryDSN != "" {
		db, err := storage.OpenSQLite(cfg.HistoryDSN)
		if err != nil {
			log.Fatalf("Failed to open history db: %v", err)
		}
		history, err := storage.NewGormScanHistory(db)
		if err != nil {
			log.Fatalf("Failed to init history: %v", err)
		}
		deps.History = history
		log.Printf("Scan history: %s", cfg.HistoryDSN)
	}

	// Декодер штрихкодов
	deps.Decoder = barcode.NewZXingDecoder()
	if cfg.OCRFallback {
		ocr, err := barcode.NewOCRDecoder()
		if err != nil {
			log.Printf("Warning: OCR fallback disabled: %v", err)
		} else {
			defer ocr.Close()
			deps.Decoder = barcode.NewChainDecoder(deps.Decoder, ocr)
			log.Println("Barcode decoder: zxing + tesseract fallback")
		}
	}

	// Детектор дефектов
	detector, closeDetector, err := openDetector(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to init detector: %v", err)
	}
	defer closeDetector()
	deps.Detector = detector

	appContainer := container.New(deps, app.InspectionConfig{
		Threshold:     cfg.ConfidenceThreshold,
		MaxSide:       cfg.MaxImageSide,
		MaskFill:      cfg.MaskFill,
		DecodeTimeout: cfg.DecodeTimeout,
		DetectTimeout: cfg.DetectTimeout,
	})

	handler := httpHandler.NewHandler(
		appContainer.TriggerService,
		appContainer.LookupService,
		appContainer.ReviewService,
		appContainer.MonitorService,
		appContainer.Images,
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server starting on http://localhost%s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Создаём бота
	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(
			cfg.TelegramToken,
			appContainer.UserService,
			appContainer.ReviewService,
			appContainer.MonitorService,
			appContainer.Images,
		)
		if err != nil {
			log.Fatalf("Failed to create bot: %v", err)
		}

		go func() {
			log.Println("Bot is running...")
			if err := bot.Run(ctx); err != nil {
				log.Printf("Bot error: %v", err)
			}
		}()
	} else {
		log.Println("TELEGRAM_TOKEN is empty, bot disabled")
	}

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
}

func openRecordStore(ctx context.Context, cfg *config.Config) (port.RecordStore, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, store, err := storage.ConnectMongo(connectCtx, cfg.MongoURI, cfg.MongoDB, cfg.MongoCollection)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Printf("Error disconnecting from MongoDB: %v", err)
			}
		}
		return store, closeFn, nil

	case config.StoreSQL:
		db, err := storage.OpenSQLite(cfg.SQLDSN)
		if err != nil {
			return nil, nil, err
		}
		store, err := storage.NewGormRecordStore(db)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	case config.StoreMemory:
		log.Println("Warning: memory store is empty and not persisted")
		return storage.NewMemoryRecordStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func openDetector(ctx context.Context, cfg *config.Config) (port.DefectDetector, func(), error) {
	switch cfg.DetectorBackend {
	case config.DetectorONNX:
		labels, err := vision.LoadLabels(cfg.LabelsPath)
		if err != nil {
			return nil, nil, err
		}
		detector, err := vision.NewONNXDetector(cfg.ModelPath, labels)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Detector: onnx %s (%d classes)", cfg.ModelPath, len(labels))
		return detector, func() { detector.Close() }, nil

	case config.DetectorHTTP:
		detector := inference.NewHTTPDetector(cfg.InferenceURL, nil)

		// Проверяем доступность ML-сервиса
		healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := detector.CheckHealth(healthCtx); err != nil {
			log.Printf("Warning: ML service not available: %v", err)
		}
		log.Printf("Detector: http %s", cfg.InferenceURL)
		return detector, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown detector backend %q", cfg.DetectorBackend)
}
