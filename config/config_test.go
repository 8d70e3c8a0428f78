package config

import (
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // без .env

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8000", cfg.HTTPAddr)
	require.Equal(t, "pcb_with_barcodes", cfg.ImageDir)
	require.Equal(t, []string{"png", "jpg", "jpeg"}, cfg.ImageExtensions)
	require.Equal(t, StoreMongo, cfg.StoreBackend)
	require.Equal(t, "BarcodeDB", cfg.MongoDB)
	require.Equal(t, "barcode", cfg.MongoCollection)
	require.Equal(t, DetectorHTTP, cfg.DetectorBackend)
	require.InDelta(t, 0.25, cfg.ConfidenceThreshold, 1e-9)
	require.Equal(t, 400, cfg.MaxImageSide)
	require.Equal(t, 30*time.Second, cfg.DetectTimeout)
	require.Equal(t, 10*time.Second, cfg.DecodeTimeout)
	require.False(t, cfg.OCRFallback)
	require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, cfg.MaskFill)
	require.Empty(t, cfg.HistoryDSN)
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_BACKEND", "SQL")
	t.Setenv("IMAGE_EXTENSIONS", " PNG, webp ,")
	t.Setenv("CONFIDENCE_THRESHOLD", "0.4")
	t.Setenv("MAX_IMAGE_SIDE", "640")
	t.Setenv("DETECT_TIMEOUT", "5s")
	t.Setenv("OCR_FALLBACK", "true")
	t.Setenv("MASK_FILL", "#000")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, StoreSQL, cfg.StoreBackend)
	require.Equal(t, []string{"png", "webp"}, cfg.ImageExtensions)
	require.InDelta(t, 0.4, cfg.ConfidenceThreshold, 1e-9)
	require.Equal(t, 640, cfg.MaxImageSide)
	require.Equal(t, 5*time.Second, cfg.DetectTimeout)
	require.True(t, cfg.OCRFallback)
	require.Equal(t, color.RGBA{A: 255}, cfg.MaskFill)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"CONFIDENCE_THRESHOLD": "1.5",
		"MAX_IMAGE_SIDE":       "-1",
		"DECODE_TIMEOUT":       "soon",
		"OCR_FALLBACK":         "maybe",
		"MASK_FILL":            "white",
		"STORE_BACKEND":        "redis",
		"DETECTOR_BACKEND":     "magic",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(key, val)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#1a2B3c")
	require.NoError(t, err)
	require.Equal(t, color.RGBA{R: 0x1a, G: 0x2b, B: 0x3c, A: 255}, c)

	_, err = ParseHexColor("#12345")
	require.Error(t, err)
	_, err = ParseHexColor("zzzzzz")
	require.Error(t, err)
}
