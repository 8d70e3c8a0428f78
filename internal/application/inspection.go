package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log"
	"time"

	"github.com/google/uuid"

	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/domain/port"
)

// InspectionConfig — параметры конвейера проверки.
type InspectionConfig struct {
	Threshold     float64       // порог уверенности детектора
	MaxSide       int           // большая сторона после масштабирования
	MaskFill      color.Color   // цвет заливки штрихкода
	DecodeTimeout time.Duration // 0 — без ограничения
	DetectTimeout time.Duration
}

// DefaultInspectionConfig возвращает параметры по умолчанию.
func DefaultInspectionConfig() InspectionConfig {
	return InspectionConfig{
		Threshold:     0.25,
		MaxSide:       400,
		MaskFill:      color.White,
		DecodeTimeout: 10 * time.Second,
		DetectTimeout: 30 * time.Second,
	}
}

// InspectOption меняет параметры одного запуска.
type InspectOption func(*inspectOptions)

type inspectOptions struct {
	threshold float64
}

// WithThreshold задаёт порог уверенности для одного запуска.
func WithThreshold(threshold float64) InspectOption {
	return func(o *inspectOptions) {
		o.threshold = threshold
	}
}

// ProcessMeta описывает, кто и зачем запустил конвейер.
type ProcessMeta struct {
	Source    string
	ProductID string
}

// InspectionService собирает конвейер: масштаб, штрихкод, маска, детектор, вердикт, запись.
type InspectionService struct {
	images   port.ImageProcessor
	decoder  port.BarcodeDecoder
	detector port.DefectDetector
	records  port.RecordStore
	history  port.ScanHistory
	cfg      InspectionConfig
	now      func() time.Time
}

// NewInspectionService создаёт сервис проверки. history может быть nil.
func NewInspectionService(
	images port.ImageProcessor,
	decoder port.BarcodeDecoder,
	detector port.DefectDetector,
	records port.RecordStore,
	history port.ScanHistory,
	cfg InspectionConfig,
) *InspectionService {
	if cfg.MaskFill == nil {
		cfg.MaskFill = color.White
	}
	return &InspectionService{
		images:   images,
		decoder:  decoder,
		detector: detector,
		records:  records,
		history:  history,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Images возвращает обработчик изображений, с которым собран сервис.
func (s *InspectionService) Images() port.ImageProcessor {
	return s.images
}

// Inspect выполняет шаги от масштабирования до вердикта. В хранилище ничего не пишет.
func (s *InspectionService) Inspect(ctx context.Context, img image.Image, opts ...InspectOption) (*entity.Inspection, error) {
	if s.decoder == nil {
		return nil, errors.New("barcode decoder is not configured")
	}
	if s.detector == nil {
		return nil, errors.New("detector is not configured")
	}
	if img == nil {
		return nil, entity.ErrImageRead
	}

	o := inspectOptions{threshold: s.cfg.Threshold}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	resized := s.images.Resize(img, s.cfg.MaxSide)

	// Декодируем один раз, результат нужен и для ключа, и для маски.
	symbols, err := callWithTimeout(ctx, s.cfg.DecodeTimeout, func(ctx context.Context) ([]entity.DecodedSymbol, error) {
		return s.decoder.Decode(ctx, resized)
	})
	if err != nil {
		return nil, fmt.Errorf("decode barcode: %w", err)
	}

	barcode, ok := entity.ExtractBarcode(symbols)
	if !ok {
		return nil, entity.ErrBarcodeNotFound
	}

	masked := s.images.Mask(resized, symbols, s.cfg.MaskFill)

	defects, err := callWithTimeout(ctx, s.cfg.DetectTimeout, func(ctx context.Context) ([]entity.Defect, error) {
		return s.detector.Detect(ctx, masked, o.threshold)
	})
	if err != nil {
		return nil, fmt.Errorf("detect defects: %w", err)
	}
	defects = entity.FilterByConfidence(defects, o.threshold)

	bounds := resized.Bounds()
	return &entity.Inspection{
		Barcode:   barcode,
		Symbols:   symbols,
		Defects:   defects,
		Verdict:   entity.Aggregate(defects),
		Annotated: s.images.Annotate(masked, defects),
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Elapsed:   time.Since(start),
	}, nil
}

// Commit записывает вердикт проверки в хранилище.
func (s *InspectionService) Commit(ctx context.Context, insp *entity.Inspection) (entity.UpdateOutcome, error) {
	if s.records == nil {
		return entity.UpdateOutcome{}, errors.New("record store is not configured")
	}
	outcome, err := s.records.UpdateVerdict(ctx, insp.Barcode, insp.Verdict, s.now())
	if err != nil {
		return entity.UpdateOutcome{}, fmt.Errorf("update record %s: %w", insp.Barcode, err)
	}
	if !outcome.Matched {
		log.Printf("Barcode %s is not provisioned in store", insp.Barcode)
	}
	return outcome, nil
}

// ProcessFile читает снимок с диска и прогоняет полный конвейер с записью в хранилище.
// Ошибка возвращается только для внутренних сбоев, ожидаемые отказы описаны в Reason.
func (s *InspectionService) ProcessFile(ctx context.Context, path string, meta ProcessMeta, opts ...InspectOption) (*entity.PipelineResult, error) {
	img, err := s.images.Load(path)
	if err != nil {
		err = fmt.Errorf("%w: %s: %v", entity.ErrImageRead, path, err)
		return s.fail(ctx, meta, err, 0), nil
	}
	return s.ProcessImage(ctx, img, meta, opts...)
}

// ProcessImage прогоняет полный конвейер для уже загруженного изображения.
func (s *InspectionService) ProcessImage(ctx context.Context, img image.Image, meta ProcessMeta, opts ...InspectOption) (*entity.PipelineResult, error) {
	insp, err := s.Inspect(ctx, img, opts...)
	if err != nil {
		res := s.fail(ctx, meta, err, 0)
		if res.Reason == entity.ReasonInternal {
			return res, err
		}
		return res, nil
	}

	outcome, err := s.Commit(ctx, insp)
	if err != nil {
		return s.fail(ctx, meta, err, insp.Elapsed), err
	}

	log.Printf("Inspection %s: barcode=%s status=%s defects=%d update=%s took=%s",
		meta.Source, insp.Barcode, insp.Verdict.QualityStatus, len(insp.Defects), outcome.Status(), insp.Elapsed)

	s.Record(ctx, entity.ScanEvent{
		Source:        meta.Source,
		ProductID:     meta.ProductID,
		Barcode:       insp.Barcode,
		Success:       true,
		QualityStatus: insp.Verdict.QualityStatus,
		Defects:       insp.Defects,
		Elapsed:       insp.Elapsed,
	})
	return entity.NewPipelineResult(insp, outcome), nil
}

// Record пишет событие в журнал. Сбой журнала не влияет на проверку.
func (s *InspectionService) Record(ctx context.Context, event entity.ScanEvent) {
	if s.history == nil {
		return
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now().UTC()
	}
	if err := s.history.Record(ctx, event); err != nil {
		log.Printf("Error recording scan history: %v", err)
	}
}

func (s *InspectionService) fail(ctx context.Context, meta ProcessMeta, err error, elapsed time.Duration) *entity.PipelineResult {
	reason := entity.ReasonFor(err)
	log.Printf("Inspection %s failed (product_id=%q): %s: %v", meta.Source, meta.ProductID, reason, err)
	s.Record(ctx, entity.ScanEvent{
		Source:    meta.Source,
		ProductID: meta.ProductID,
		Reason:    reason,
		Elapsed:   elapsed,
	})
	return entity.Failure(reason)
}
