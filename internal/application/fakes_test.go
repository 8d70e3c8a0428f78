package app

import (
	"context"
	"image"
	"sync"
	"time"

	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/domain/port"
	"pcb-inspector/internal/infrastructure/storage"
	"pcb-inspector/internal/infrastructure/vision"
)

const testBarcode = "4006381333931"

// barcodeSymbol — штрихкод в левом верхнем углу изображения.
func barcodeSymbol(payload string) entity.DecodedSymbol {
	return entity.DecodedSymbol{
		Format:  "EAN_13",
		Payload: payload,
		Polygon: []image.Point{{10, 10}, {60, 10}, {60, 30}, {10, 30}},
	}
}

// darkBoard — однотонная тёмная плата заданного размера.
func darkBoard(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 10, 80, 20, 255
	}
	return img
}

type fakeDecoder struct {
	symbols []entity.DecodedSymbol
	err     error
	panics  bool

	mu   sync.Mutex
	seen []image.Rectangle
}

func (f *fakeDecoder) Decode(ctx context.Context, img image.Image) ([]entity.DecodedSymbol, error) {
	f.mu.Lock()
	f.seen = append(f.seen, img.Bounds())
	f.mu.Unlock()
	if f.panics {
		panic("decoder crashed")
	}
	return f.symbols, f.err
}

type fakeDetector struct {
	defects []entity.Defect
	err     error
	delay   time.Duration

	mu        sync.Mutex
	calls     int
	lastImg   image.Image
	threshold float64
}

func (f *fakeDetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]entity.Defect, error) {
	f.mu.Lock()
	f.calls++
	f.lastImg = img
	f.threshold = threshold
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.defects, f.err
}

func (f *fakeDetector) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// countingStore считает обращения к хранилищу.
type countingStore struct {
	*storage.MemoryRecordStore

	mu      sync.Mutex
	updates int
}

func (s *countingStore) UpdateVerdict(ctx context.Context, barcode string, verdict entity.Verdict, at time.Time) (entity.UpdateOutcome, error) {
	s.mu.Lock()
	s.updates++
	s.mu.Unlock()
	return s.MemoryRecordStore.UpdateVerdict(ctx, barcode, verdict, at)
}

func (s *countingStore) Updates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

type fakeHistory struct {
	mu     sync.Mutex
	events []entity.ScanEvent
	err    error
}

func (h *fakeHistory) Record(ctx context.Context, event entity.ScanEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.events = append(h.events, event)
	return nil
}

func (h *fakeHistory) Recent(ctx context.Context, limit int) ([]entity.ScanEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]entity.ScanEvent, 0, limit)
	for i := len(h.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h.events[i])
	}
	return out, nil
}

func (h *fakeHistory) Events() []entity.ScanEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]entity.ScanEvent(nil), h.events...)
}

type fakeLocator struct {
	paths map[string]string
	err   error
}

func (l *fakeLocator) Locate(ctx context.Context, productID string) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	path, ok := l.paths[productID]
	if !ok {
		return "", entity.ErrImageNotFound
	}
	return path, nil
}

type fixture struct {
	decoder  *fakeDecoder
	detector *fakeDetector
	store    *countingStore
	history  *fakeHistory
	svc      *InspectionService
}

func newFixture(cfg InspectionConfig, records ...entity.ScanRecord) *fixture {
	f := &fixture{
		decoder:  &fakeDecoder{symbols: []entity.DecodedSymbol{barcodeSymbol(testBarcode)}},
		detector: &fakeDetector{},
		store:    &countingStore{MemoryRecordStore: storage.NewMemoryRecordStore(records...)},
		history:  &fakeHistory{},
	}
	f.svc = NewInspectionService(vision.NewProcessor(), f.decoder, f.detector, f.store, f.history, cfg)
	f.svc.now = func() time.Time { return time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC) }
	return f
}

func provisioned(barcode, productID string) entity.ScanRecord {
	return entity.ScanRecord{
		Barcode:           barcode,
		ProductID:         productID,
		ShiftID:           "A",
		ManufacturingDate: "2026-02-27",
		QualityStatus:     "pending",
		DefectType:        "",
	}
}

var (
	_ port.BarcodeDecoder = (*fakeDecoder)(nil)
	_ port.DefectDetector = (*fakeDetector)(nil)
	_ port.RecordStore    = (*countingStore)(nil)
	_ port.ScanHistory    = (*fakeHistory)(nil)
	_ port.ImageLocator   = (*fakeLocator)(nil)
)
