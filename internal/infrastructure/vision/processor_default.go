//go:build !gocv
// +build !gocv

package vision

import "pcb-inspector/internal/domain/port"

// NewImageProcessor возвращает обработчик на чистом Go (сборка без тега gocv).
func NewImageProcessor() port.ImageProcessor {
	return NewProcessor()
}
