package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/domain/port"
)

// DefaultReviewTTL — сколько проверка ждёт подтверждения оператора.
const DefaultReviewTTL = 15 * time.Minute

// Review — проверка, показанная оператору и ещё не записанная в хранилище.
type Review struct {
	ID         uuid.UUID
	OperatorID int64
	Inspection *entity.Inspection
	CreatedAt  time.Time
}

// ReviewOutcome — итог подтверждённой записи.
type ReviewOutcome struct {
	Barcode string
	Verdict entity.Verdict
	Outcome entity.UpdateOutcome
	Record  *entity.ScanRecord // запись после обновления, nil если штрихкода нет в базе
}

// ReviewService реализует ручной сценарий: показать результат и записать только по подтверждению.
type ReviewService struct {
	inspections *InspectionService
	records     port.RecordStore
	ttl         time.Duration
	now         func() time.Time

	mu      sync.Mutex
	pending map[uuid.UUID]*Review
}

// NewReviewService создаёт сервис ручной проверки.
func NewReviewService(inspections *InspectionService, records port.RecordStore, ttl time.Duration) *ReviewService {
	if ttl <= 0 {
		ttl = DefaultReviewTTL
	}
	return &ReviewService{
		inspections: inspections,
		records:     records,
		ttl:         ttl,
		now:         time.Now,
		pending:     make(map[uuid.UUID]*Review),
	}
}

// StartPhoto декодирует присланное фото и запускает проверку без записи.
func (s *ReviewService) StartPhoto(ctx context.Context, operatorID int64, photo []byte) (*Review, error) {
	img, err := s.inspections.Images().Decode(photo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrImageRead, err)
	}
	return s.Start(ctx, operatorID, img)
}

// Start запускает проверку и откладывает её до решения оператора.
func (s *ReviewService) Start(ctx context.Context, operatorID int64, img image.Image, opts ...InspectOption) (*Review, error) {
	insp, err := s.inspections.Inspect(ctx, img, opts...)
	if err != nil {
		s.inspections.Record(ctx, entity.ScanEvent{Source: entity.SourceReview, Reason: entity.ReasonFor(err)})
		return nil, err
	}

	review := &Review{
		ID:         uuid.New(),
		OperatorID: operatorID,
		Inspection: insp,
		CreatedAt:  s.now(),
	}

	s.mu.Lock()
	s.evictExpiredLocked()
	s.pending[review.ID] = review
	s.mu.Unlock()

	return review, nil
}

// Confirm записывает отложенную проверку в хранилище.
func (s *ReviewService) Confirm(ctx context.Context, operatorID int64, reviewID uuid.UUID) (*ReviewOutcome, error) {
	review, err := s.take(operatorID, reviewID)
	if err != nil {
		return nil, err
	}

	insp := review.Inspection
	outcome, err := s.inspections.Commit(ctx, insp)
	if err != nil {
		return nil, err
	}

	result := &ReviewOutcome{Barcode: insp.Barcode, Verdict: insp.Verdict, Outcome: outcome}
	if outcome.Matched {
		record, err := s.records.FindByBarcode(ctx, insp.Barcode)
		switch {
		case err == nil:
			result.Record = record
		case !errors.Is(err, entity.ErrRecordNotFound):
			log.Printf("Error reading back record %s: %v", insp.Barcode, err)
		}
	}

	s.inspections.Record(ctx, entity.ScanEvent{
		Source:        entity.SourceReview,
		Barcode:       insp.Barcode,
		Success:       true,
		QualityStatus: insp.Verdict.QualityStatus,
		Defects:       insp.Defects,
		Elapsed:       insp.Elapsed,
	})
	return result, nil
}

// Discard отменяет отложенную проверку.
func (s *ReviewService) Discard(ctx context.Context, operatorID int64, reviewID uuid.UUID) error {
	_ = ctx
	_, err := s.take(operatorID, reviewID)
	return err
}

// Pending возвращает число проверок, ожидающих решения.
func (s *ReviewService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked()
	return len(s.pending)
}

func (s *ReviewService) take(operatorID int64, reviewID uuid.UUID) (*Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked()

	review, ok := s.pending[reviewID]
	if !ok || review.OperatorID != operatorID {
		return nil, entity.ErrReviewNotFound
	}
	delete(s.pending, reviewID)
	return review, nil
}

func (s *ReviewService) evictExpiredLocked() {
	now := s.now()
	for id, r := range s.pending {
		if now.Sub(r.CreatedAt) > s.ttl {
			delete(s.pending, id)
		}
	}
}
