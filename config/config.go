package config

import (
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Бэкенды хранилища и детектора.
const (
	StoreMongo  = "mongo"
	StoreSQL    = "sql"
	StoreMemory = "memory"

	DetectorHTTP = "http"
	DetectorONNX = "onnx"
)

type Config struct {
	HTTPAddr      string
	TelegramToken string // пустой — бот не запускается

	ImageDir        string
	ImageExtensions []string

	StoreBackend    string
	MongoURI        string
	MongoDB         string
	MongoCollection string
	SQLDSN          string
	HistoryDSN      string // пустой — журнал запусков отключён

	DetectorBackend     string
	InferenceURL        string
	ModelPath           string
	LabelsPath          string
	ConfidenceThreshold float64
	MaxImageSide        int
	DetectTimeout       time.Duration
	DecodeTimeout       time.Duration
	OCRFallback         bool
	MaskFill            color.RGBA
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8000"),
		TelegramToken:   os.Getenv("TELEGRAM_TOKEN"),
		ImageDir:        getEnv("IMAGE_DIR", "pcb_with_barcodes"),
		ImageExtensions: splitList(getEnv("IMAGE_EXTENSIONS", "png,jpg,jpeg")),
		StoreBackend:    strings.ToLower(getEnv("STORE_BACKEND", StoreMongo)),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:         getEnv("MONGO_DB", "BarcodeDB"),
		MongoCollection: getEnv("MONGO_COLLECTION", "barcode"),
		SQLDSN:          getEnv("SQL_DSN", "pcb.db"),
		HistoryDSN:      os.Getenv("HISTORY_DSN"),
		DetectorBackend: strings.ToLower(getEnv("DETECTOR_BACKEND", DetectorHTTP)),
		InferenceURL:    getEnv("INFERENCE_URL", "http://localhost:5000/predict"),
		ModelPath:       getEnv("MODEL_PATH", "best.onnx"),
		LabelsPath:      os.Getenv("LABELS_PATH"),
	}

	var err error
	if cfg.ConfidenceThreshold, err = getFloat("CONFIDENCE_THRESHOLD", 0.25); err != nil {
		return nil, err
	}
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return nil, fmt.Errorf("CONFIDENCE_THRESHOLD must be in [0, 1], got %v", cfg.ConfidenceThreshold)
	}
	if cfg.MaxImageSide, err = getInt("MAX_IMAGE_SIDE", 400); err != nil {
		return nil, err
	}
	if cfg.MaxImageSide <= 0 {
		return nil, fmt.Errorf("MAX_IMAGE_SIDE must be positive, got %d", cfg.MaxImageSide)
	}
	if cfg.DetectTimeout, err = getDuration("DETECT_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.DecodeTimeout, err = getDuration("DECODE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.OCRFallback, err = getBool("OCR_FALLBACK", false); err != nil {
		return nil, err
	}
	if cfg.MaskFill, err = ParseHexColor(getEnv("MASK_FILL", "#ffffff")); err != nil {
		return nil, fmt.Errorf("MASK_FILL: %w", err)
	}

	switch cfg.StoreBackend {
	case StoreMongo, StoreSQL, StoreMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	switch cfg.DetectorBackend {
	case DetectorHTTP, DetectorONNX:
	default:
		return nil, fmt.Errorf("unknown DETECTOR_BACKEND %q", cfg.DetectorBackend)
	}
	if len(cfg.ImageExtensions) == 0 {
		return nil, fmt.Errorf("IMAGE_EXTENSIONS is empty")
	}

	return cfg, nil
}

// ParseHexColor разбирает цвет вида #rrggbb или #rgb.
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, val)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, val)
	}
	return f, nil
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, val)
	}
	return d, nil
}

func getBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, val)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
