package vision

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// DefaultLabels — словарь классов модели дефектов печатных плат.
var DefaultLabels = []string{
	"missing_hole",
	"mouse_bite",
	"open_circuit",
	"short",
	"spur",
	"spurious_copper",
}

// LoadLabels читает метки классов по одной на строку. Пустой путь — словарь по умолчанию.
func LoadLabels(path string) ([]string, error) {
	if path == "" {
		return DefaultLabels, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			labels = append(labels, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}
	return labels, nil
}

// ClassLabel возвращает метку класса или class_N для неизвестного индекса.
func ClassLabel(labels []string, id int) string {
	if id >= 0 && id < len(labels) {
		return labels[id]
	}
	return fmt.Sprintf("class_%d", id)
}
