package entity

import "errors"

var (
	ErrImageNotFound   = errors.New("image not found")
	ErrImageRead       = errors.New("image read failed")
	ErrBarcodeNotFound = errors.New("barcode not found")
	ErrInvalidBarcode  = errors.New("barcode must be a 13-digit string")
	ErrRecordNotFound  = errors.New("record not found")
	ErrReviewNotFound  = errors.New("review not found")
)

// Причины отказа, которые видит вызывающая сторона.
const (
	ReasonImageNotFound   = "Image not found for product_id"
	ReasonImageRead       = "Image read failed"
	ReasonBarcodeNotFound = "OCR failed (barcode not found)"
	ReasonRecordNotFound  = "Barcode not found in store"
	ReasonInternal        = "Internal error"
)

// ReasonFor сопоставляет ошибку конвейера с причиной для ответа.
func ReasonFor(err error) string {
	switch {
	case errors.Is(err, ErrImageNotFound):
		return ReasonImageNotFound
	case errors.Is(err, ErrImageRead):
		return ReasonImageRead
	case errors.Is(err, ErrBarcodeNotFound):
		return ReasonBarcodeNotFound
	case errors.Is(err, ErrRecordNotFound):
		return ReasonRecordNotFound
	default:
		return ReasonInternal
	}
}
