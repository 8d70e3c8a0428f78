package port

import "context"

// ImageLocator интерфейс поиска снимка по идентификатору изделия
type ImageLocator interface {
	// Locate возвращает путь к снимку или entity.ErrImageNotFound
	Locate(ctx context.Context, productID string) (string, error)
}
