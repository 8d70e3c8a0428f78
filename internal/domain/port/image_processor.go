package port

import (
	"image"
	"image/color"
	"io"

	"pcb-inspector/internal/domain/entity"
)

// ImageProcessor интерфейс операций над изображениями
type ImageProcessor interface {
	// Load читает изображение с диска
	Load(path string) (image.Image, error)

	// Decode читает изображение из байтов (фото от оператора)
	Decode(data []byte) (image.Image, error)

	// Resize уменьшает изображение так, чтобы большая сторона не превышала maxSide
	Resize(img image.Image, maxSide int) image.Image

	// Mask закрашивает контуры символов и возвращает новое изображение
	Mask(img image.Image, symbols []entity.DecodedSymbol, fill color.Color) image.Image

	// Annotate рисует рамки и подписи дефектов
	Annotate(img image.Image, defects []entity.Defect) image.Image

	// EncodeJPEG пишет изображение в JPEG
	EncodeJPEG(w io.Writer, img image.Image) error
}
