package http

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	app "pcb-inspector/internal/application"
	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/infrastructure/files"
	"pcb-inspector/internal/infrastructure/storage"
	"pcb-inspector/internal/infrastructure/vision"
)

const testBarcode = "4006381333931"

type stubDecoder struct {
	symbols []entity.DecodedSymbol
}

func (d *stubDecoder) Decode(ctx context.Context, img image.Image) ([]entity.DecodedSymbol, error) {
	return d.symbols, nil
}

type stubDetector struct {
	defects []entity.Defect
}

func (d *stubDetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]entity.Defect, error) {
	return d.defects, nil
}

type testServer struct {
	handler http.Handler
	store   *storage.MemoryRecordStore
	decoder *stubDecoder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, imaging.Save(imaging.New(120, 80, image.Black.C), filepath.Join(dir, "board_P1.png")))

	store := storage.NewMemoryRecordStore(entity.ScanRecord{
		Barcode:           testBarcode,
		ProductID:         "P1",
		ShiftID:           "A",
		ManufacturingDate: "2026-02-27",
		QualityStatus:     "pending",
	})
	decoder := &stubDecoder{symbols: []entity.DecodedSymbol{{
		Format:  "EAN_13",
		Payload: testBarcode,
		Polygon: []image.Point{{0, 0}, {30, 0}, {30, 10}, {0, 10}},
	}}}
	detector := &stubDetector{defects: []entity.Defect{{Type: "short", Confidence: 0.8, Box: image.Rect(40, 40, 60, 50)}}}

	processor := vision.NewProcessor()
	inspections := app.NewInspectionService(processor, decoder, detector, store, nil, app.DefaultInspectionConfig())
	trigger := app.NewTriggerService(files.NewDirLocator(dir, []string{"png"}), inspections)
	h := NewHandler(
		trigger,
		app.NewLookupService(store, trigger),
		app.NewReviewService(inspections, store, 0),
		app.NewMonitorService(store, nil),
		processor,
	)
	return &testServer{handler: h.Routes(), store: store, decoder: decoder}
}

func (s *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var payload map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	}
	return rec, payload
}

func (s *testServer) upload(t *testing.T) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "board.jpg")
	require.NoError(t, err)
	require.NoError(t, imaging.Encode(part, imaging.New(200, 100, image.Black.C), imaging.JPEG))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/inspect", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	return rec, payload
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec, body := s.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestTrigger(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodPost, "/trigger", `{"product_id":"P1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["success"])
	require.Equal(t, testBarcode, body["barcode"])
	require.Equal(t, entity.StatusDefective, body["quality_status"])
	require.Equal(t, []any{"short"}, body["defect_type"])
	require.Equal(t, true, body["updated"])

	rec, body = s.do(t, http.MethodPost, "/trigger", `{"product_id":"P1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, body["updated"])

	rec, body = s.do(t, http.MethodPost, "/trigger", `{"product_id":"P2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, body["success"])
	require.Equal(t, entity.ReasonImageNotFound, body["reason"])
	require.NotContains(t, body, "barcode")

	rec, _ = s.do(t, http.MethodPost, "/trigger", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/trigger", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLookup(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodPost, "/lookup", `{"barcode":"12345"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "error", body["status"])

	rec, body = s.do(t, http.MethodPost, "/lookup", `{"barcode":"1111111111111"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", body["status"])

	rec, body = s.do(t, http.MethodPost, "/lookup", `{"barcode":4006381333931}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "found", body["status"])
	require.Equal(t, "P1", body["product_id"])
	require.Equal(t, "2026-02-27", body["manufacturing_date"])
	ml := body["ml_result"].(map[string]any)
	require.Equal(t, true, ml["success"])

	record, err := s.store.FindByBarcode(context.Background(), testBarcode)
	require.NoError(t, err)
	require.NotNil(t, record.LastScannedAt)
}

func TestInspectCommitFlow(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.upload(t)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, testBarcode, body["barcode"])
	require.Equal(t, entity.StatusDefective, body["quality_status"])
	require.NotEmpty(t, body["annotated_jpeg"])
	defects := body["defects"].([]any)
	require.Len(t, defects, 1)
	require.InDelta(t, 0.8, defects[0].(map[string]any)["confidence"], 1e-9)

	record, err := s.store.FindByBarcode(context.Background(), testBarcode)
	require.NoError(t, err)
	require.Equal(t, "pending", record.QualityStatus)

	id := body["review_id"].(string)
	rec, body = s.do(t, http.MethodPost, "/reviews/"+id+"/commit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["matched"])
	require.Equal(t, true, body["modified"])
	require.Equal(t, string(entity.UpdateModified), body["update_status"])
	require.Equal(t, "short", body["record"].(map[string]any)["defect_type"])

	rec, _ = s.do(t, http.MethodPost, "/reviews/"+id+"/commit", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/reviews/not-a-uuid/commit", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInspectDiscard(t *testing.T) {
	s := newTestServer(t)

	_, body := s.upload(t)
	id := body["review_id"].(string)

	rec, body := s.do(t, http.MethodPost, "/reviews/"+id+"/discard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "discarded", body["status"])

	rec, _ = s.do(t, http.MethodPost, "/reviews/"+id+"/commit", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInspect_NoBarcode(t *testing.T) {
	s := newTestServer(t)
	s.decoder.symbols = nil

	rec, body := s.upload(t)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, false, body["success"])
	require.Equal(t, entity.ReasonBarcodeNotFound, body["reason"])
}

func TestRecordsAndStats(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/trigger", `{"product_id":"P1"}`)

	rec, body := s.do(t, http.MethodGet, "/records?quality_status=defective&defect_type=SHO", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, body["count"])

	rec, _ = s.do(t, http.MethodGet, "/records?limit=abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = s.do(t, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, body["total"])
	require.EqualValues(t, 1, body["defective"])
	require.EqualValues(t, 0, body["no_defect"])

	rec, body = s.do(t, http.MethodGet, "/scans", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, body["scans"])
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/trigger", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}
