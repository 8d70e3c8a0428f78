package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	app "pcb-inspector/internal/application"
	"pcb-inspector/internal/domain/entity"
	"pcb-inspector/internal/domain/port"
)

const (
	maxUploadSize = 50 << 20 // 50MB
	maxJSONSize   = 1 << 20

	// HTTP-проверки не привязаны к оператору, идентификатор проверки сам служит доступом.
	httpOperatorID int64 = 0
)

type Handler struct {
	trigger *app.TriggerService
	lookup  *app.LookupService
	reviews *app.ReviewService
	monitor *app.MonitorService
	images  port.ImageProcessor
}

func NewHandler(
	trigger *app.TriggerService,
	lookup *app.LookupService,
	reviews *app.ReviewService,
	monitor *app.MonitorService,
	images port.ImageProcessor,
) *Handler {
	return &Handler{
		trigger: trigger,
		lookup:  lookup,
		reviews: reviews,
		monitor: monitor,
		images:  images,
	}
}

// Routes собирает маршруты сервиса.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /trigger", h.TriggerHandler)
	mux.HandleFunc("POST /lookup", h.LookupHandler)
	mux.HandleFunc("POST /inspect", h.InspectHandler)
	mux.HandleFunc("POST /reviews/{id}/commit", h.CommitHandler)
	mux.HandleFunc("POST /reviews/{id}/discard", h.DiscardHandler)
	mux.HandleFunc("GET /records", h.RecordsHandler)
	mux.HandleFunc("GET /stats", h.StatsHandler)
	mux.HandleFunc("GET /scans", h.ScansHandler)
	mux.HandleFunc("GET /health", h.HealthHandler)
	return corsMiddleware(mux)
}

// TriggerHandler обрабатывает POST /trigger
func (h *Handler) TriggerHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"product_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.ProductID == "" {
		respondError(w, "product_id is required", http.StatusBadRequest)
		return
	}

	result, err := h.trigger.Trigger(r.Context(), req.ProductID)
	if err != nil {
		log.Printf("Trigger %s failed: %v", req.ProductID, err)
		respondJSON(w, result, http.StatusInternalServerError)
		return
	}
	respondJSON(w, result, http.StatusOK)
}

// LookupHandler обрабатывает POST /lookup
func (h *Handler) LookupHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Barcode json.RawMessage `json:"barcode"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondStatus(w, "error", "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.lookup.Lookup(r.Context(), rawBarcode(req.Barcode))
	switch {
	case err == nil:
		respondJSON(w, result, http.StatusOK)
	case errors.Is(err, entity.ErrInvalidBarcode):
		respondStatus(w, "error", "Barcode must be a 13-digit string", http.StatusBadRequest)
	case errors.Is(err, entity.ErrRecordNotFound):
		respondStatus(w, "not_found", "Barcode not found", http.StatusNotFound)
	case errors.Is(err, app.ErrTriggerFailed):
		log.Printf("Lookup trigger failed: %v", err)
		respondStatus(w, "ml_error", "ML API trigger failed", http.StatusInternalServerError)
	default:
		log.Printf("Lookup failed: %v", err)
		respondStatus(w, "error", "Internal server error", http.StatusInternalServerError)
	}
}

// rawBarcode принимает штрихкод и строкой, и числом.
func rawBarcode(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

type defectView struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Box        [4]int  `json:"box"` // x1, y1, x2, y2
}

type inspectResponse struct {
	ReviewID      string       `json:"review_id"`
	Barcode       string       `json:"barcode"`
	QualityStatus string       `json:"quality_status"`
	DefectType    string       `json:"defect_type"`
	Defects       []defectView `json:"defects"`
	Width         int          `json:"width"`
	Height        int          `json:"height"`
	ElapsedMS     int64        `json:"elapsed_ms"`
	AnnotatedJPEG string       `json:"annotated_jpeg,omitempty"` // base64
}

// InspectHandler обрабатывает POST /inspect: проверка без записи, ждёт подтверждения.
func (h *Handler) InspectHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, "Failed to read file", http.StatusInternalServerError)
		return
	}

	review, err := h.reviews.StartPhoto(r.Context(), httpOperatorID, data)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, entity.ErrImageRead):
			status = http.StatusBadRequest
		case errors.Is(err, entity.ErrBarcodeNotFound):
			status = http.StatusUnprocessableEntity
		default:
			log.Printf("Inspect failed: %v", err)
		}
		respondJSON(w, entity.Failure(entity.ReasonFor(err)), status)
		return
	}

	insp := review.Inspection
	resp := inspectResponse{
		ReviewID:      review.ID.String(),
		Barcode:       insp.Barcode,
		QualityStatus: insp.Verdict.QualityStatus,
		DefectType:    insp.Verdict.DefectType,
		Defects:       make([]defectView, 0, len(insp.Defects)),
		Width:         insp.Width,
		Height:        insp.Height,
		ElapsedMS:     insp.Elapsed.Milliseconds(),
	}
	for _, d := range insp.Defects {
		resp.Defects = append(resp.Defects, defectView{
			Type:       d.Type,
			Confidence: d.Confidence,
			Box:        [4]int{d.Box.Min.X, d.Box.Min.Y, d.Box.Max.X, d.Box.Max.Y},
		})
	}
	if insp.Annotated != nil {
		var buf bytes.Buffer
		if err := h.images.EncodeJPEG(&buf, insp.Annotated); err != nil {
			log.Printf("Error encoding annotated image: %v", err)
		} else {
			resp.AnnotatedJPEG = base64.StdEncoding.EncodeToString(buf.Bytes())
		}
	}
	respondJSON(w, resp, http.StatusOK)
}

type commitResponse struct {
	Barcode       string              `json:"barcode"`
	QualityStatus string              `json:"quality_status"`
	DefectType    string              `json:"defect_type"`
	Matched       bool                `json:"matched"`
	Modified      bool                `json:"modified"`
	UpdateStatus  entity.UpdateStatus `json:"update_status"`
	Record        *entity.ScanRecord  `json:"record,omitempty"`
}

// CommitHandler обрабатывает POST /reviews/{id}/commit
func (h *Handler) CommitHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := reviewID(w, r)
	if !ok {
		return
	}

	out, err := h.reviews.Confirm(r.Context(), httpOperatorID, id)
	switch {
	case errors.Is(err, entity.ErrReviewNotFound):
		respondError(w, "Review not found or expired", http.StatusNotFound)
		return
	case err != nil:
		log.Printf("Commit %s failed: %v", id, err)
		respondError(w, entity.ReasonInternal, http.StatusInternalServerError)
		return
	}

	respondJSON(w, commitResponse{
		Barcode:       out.Barcode,
		QualityStatus: out.Verdict.QualityStatus,
		DefectType:    out.Verdict.DefectType,
		Matched:       out.Outcome.Matched,
		Modified:      out.Outcome.Modified,
		UpdateStatus:  out.Outcome.Status(),
		Record:        out.Record,
	}, http.StatusOK)
}

// DiscardHandler обрабатывает POST /reviews/{id}/discard
func (h *Handler) DiscardHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := reviewID(w, r)
	if !ok {
		return
	}
	if err := h.reviews.Discard(r.Context(), httpOperatorID, id); err != nil {
		respondError(w, "Review not found or expired", http.StatusNotFound)
		return
	}
	respondJSON(w, map[string]string{"status": "discarded"}, http.StatusOK)
}

func reviewID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, "Invalid review id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// RecordsHandler обрабатывает GET /records
func (h *Handler) RecordsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := entity.RecordFilter{
		ShiftID:       q.Get("shift_id"),
		QualityStatus: q.Get("quality_status"),
		DefectType:    q.Get("defect_type"),
	}
	limit, ok := parseLimit(w, q.Get("limit"))
	if !ok {
		return
	}
	filter.Limit = limit

	records, err := h.monitor.List(r.Context(), filter)
	if err != nil {
		log.Printf("List records failed: %v", err)
		respondError(w, "Failed to list records", http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]any{"records": records, "count": len(records)}, http.StatusOK)
}

// StatsHandler обрабатывает GET /stats
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.monitor.Stats(r.Context())
	if err != nil {
		log.Printf("Stats failed: %v", err)
		respondError(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}
	respondJSON(w, stats, http.StatusOK)
}

type scanView struct {
	ID            string          `json:"id"`
	Source        string          `json:"source"`
	ProductID     string          `json:"product_id,omitempty"`
	Barcode       string          `json:"barcode,omitempty"`
	Success       bool            `json:"success"`
	Reason        string          `json:"reason,omitempty"`
	QualityStatus string          `json:"quality_status,omitempty"`
	Defects       []entity.Defect `json:"defects,omitempty"`
	ElapsedMS     int64           `json:"elapsed_ms"`
	CreatedAt     string          `json:"created_at"`
}

// ScansHandler обрабатывает GET /scans
func (h *Handler) ScansHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r.URL.Query().Get("limit"))
	if !ok {
		return
	}

	events, err := h.monitor.RecentScans(r.Context(), limit)
	if err != nil {
		log.Printf("Recent scans failed: %v", err)
		respondError(w, "Failed to load scan history", http.StatusInternalServerError)
		return
	}

	scans := make([]scanView, 0, len(events))
	for _, e := range events {
		scans = append(scans, scanView{
			ID:            e.ID.String(),
			Source:        e.Source,
			ProductID:     e.ProductID,
			Barcode:       e.Barcode,
			Success:       e.Success,
			Reason:        e.Reason,
			QualityStatus: e.QualityStatus,
			Defects:       e.Defects,
			ElapsedMS:     e.Elapsed.Milliseconds(),
			CreatedAt:     entity.FormatTimestamp(e.CreatedAt),
		})
	}
	respondJSON(w, map[string]any{"scans": scans}, http.StatusOK)
}

// HealthHandler проверка здоровья сервиса
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func parseLimit(w http.ResponseWriter, raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		respondError(w, "limit must be a non-negative integer", http.StatusBadRequest)
		return 0, false
	}
	return min(limit, entity.MaxListLimit), true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONSize)
	return json.NewDecoder(r.Body).Decode(dst)
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}

func respondStatus(w http.ResponseWriter, status, message string, code int) {
	respondJSON(w, map[string]string{"status": status, "message": message}, code)
}

// corsMiddleware добавляет CORS заголовки
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
