package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/domain/port"
)

// DirLocator ищет снимки изделий по шаблону имени <что угодно>_<product_id>.<ext>.
type DirLocator struct {
	Dir        string
	Extensions []string // без точки: png, jpg
}

// NewDirLocator создаёт поиск по каталогу.
func NewDirLocator(dir string, extensions []string) *DirLocator {
	exts := make([]string, 0, len(extensions))
	for _, e := range extensions {
		e = strings.TrimPrefix(strings.TrimSpace(e), ".")
		if e != "" {
			exts = append(exts, e)
		}
	}
	return &DirLocator{Dir: dir, Extensions: exts}
}

// Locate возвращает первый по алфавиту подходящий файл.
func (l *DirLocator) Locate(ctx context.Context, productID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !safeID(productID) {
		return "", fmt.Errorf("%w: %q", entity.ErrImageNotFound, productID)
	}

	var matches []string
	for _, ext := range l.Extensions {
		found, err := filepath.Glob(filepath.Join(l.Dir, "*_"+productID+"."+ext))
		if err != nil {
			return "", fmt.Errorf("glob %s: %w", ext, err)
		}
		matches = append(matches, found...)
	}
	sort.Strings(matches)

	for _, m := range matches {
		info, err := os.Stat(m)
		if err == nil && info.Mode().IsRegular() {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", entity.ErrImageNotFound, productID)
}

// safeID отсекает пустые идентификаторы, разделители путей и метасимволы шаблонов.
func safeID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\*?[]`) && !strings.ContainsRune(id, os.PathSeparator)
}

// Проверка реализации интерфейса
var _ port.ImageLocator = (*DirLocator)(nil)
