//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	detectionapp "github.com/astroguard/backend/internal/application/detection"
	inventoryapp "github.com/astroguard/backend/internal/application/inventory"
	"github.com/astroguard/backend/internal/infrastructure/cache"
	"github.com/astroguard/backend/internal/infrastructure/config"
	"github.com/astroguard/backend/internal/infrastructure/detector"
	"github.com/astroguard/backend/internal/infrastructure/imaging"
	"github.com/astroguard/backend/internal/infrastructure/persistence"
	"github.com/astroguard/backend/internal/infrastructure/realtime"
	"github.com/astroguard/backend/internal/interfaces/http/handler"
	"github.com/astroguard/backend/internal/interfaces/http/middleware"
	"github.com/astroguard/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type apiFixture struct {
	t      *testing.T
	engine *gin.Engine
}

// newAPIFixture wires the HTTP stack over the test database and a fake
// detection service served by detectorHandler
func newAPIFixture(t *testing.T, detectorHandler http.HandlerFunc) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()

	tdb := NewTestDB(t)
	provider := httptest.NewServer(detectorHandler)
	t.Cleanup(provider.Close)

	detectionCfg := &config.DetectionConfig{BaseURL: provider.URL, Timeout: 5 * time.Second, MaxImageDimension: 640}
	client, err := detector.NewClient(detectionCfg)
	require.NoError(t, err)

	videos := cache.NewInMemoryVideoResultStore()
	t.Cleanup(func() { _ = videos.Close() })

	itemRepo := persistence.NewGormItemRepository(tdb.DB)
	reconciler := inventoryapp.NewReconciler(itemRepo)
	detectionService := detectionapp.NewDetectionService(client, imaging.NewNormalizer(detectionCfg), videos, reconciler)

	hub := realtime.NewHub()
	t.Cleanup(hub.Close)

	engine := gin.New()
	engine.Use(middleware.RequestID())
	r := router.NewRouter(engine)
	db := &persistence.Database{DB: tdb.DB}
	r.RegisterAPI(router.Handlers{
		System:    handler.NewSystemHandler("integration", db, hub.Count),
		Item:      handler.NewItemHandler(inventoryapp.NewItemService(itemRepo)),
		Detection: handler.NewDetectionHandler(detectionService),
		Stream:    handler.NewStreamHandler(hub),
	})
	return &apiFixture{t: t, engine: engine}
}

func (f *apiFixture) do(req *http.Request) (*httptest.ResponseRecorder, envelope) {
	f.t.Helper()
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	var env envelope
	require.NoError(f.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func (f *apiFixture) postJSON(path string, body any) (*httptest.ResponseRecorder, envelope) {
	raw, err := json.Marshal(body)
	require.NoError(f.t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return f.do(req)
}

func (f *apiFixture) upload(path, fileName, contentType string, data []byte) (*httptest.ResponseRecorder, envelope) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(f.t, err)
	_, err = part.Write(data)
	require.NoError(f.t, err)
	require.NoError(f.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return f.do(req)
}

func (f *apiFixture) summary() *inventoryapp.SummaryResponse {
	f.t.Helper()
	w, env := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/items/summary", nil))
	require.Equal(f.t, http.StatusOK, w.Code)
	var s inventoryapp.SummaryResponse
	require.NoError(f.t, json.Unmarshal(env.Data, &s))
	return &s
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for x := 0; x < 32; x++ {
		img.Set(x, x%24, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func fakeDetector(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/detect":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"detections": []map[string]any{
					{"class_id": 0, "class_name": "FireExtinguisher", "confidence": 0.9, "bbox": []float64{1, 1, 5, 5}},
					{"class_id": 0, "class_name": "FireExtinguisher", "confidence": 0.8, "bbox": []float64{6, 6, 9, 9}},
					{"class_id": 1, "class_name": "ToolBox", "confidence": 0.7, "bbox": []float64{2, 2, 4, 4}},
				},
				"image": "YW5ub3RhdGVk",
				"count": 3,
			})
		case "/detect-video":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"class_counts": map[string]int{"OxygenTank": 2},
				"processed_frames": []map[string]any{
					{"frame_number": 0, "image": "ZjA="},
					{"frame_number": 10, "image": "ZjE="},
				},
				"total_frames": 20,
			})
		default:
			t.Errorf("unexpected detector path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestAPI_ImageDetectionToInventory(t *testing.T) {
	f := newAPIFixture(t, fakeDetector(t))

	w, env := f.upload("/api/v1/detections/image", "shelf.png", "image/png", pngImage(t))
	require.Equal(t, http.StatusOK, w.Code, string(env.Data))
	var analysis detectionapp.ImageAnalysis
	require.NoError(t, json.Unmarshal(env.Data, &analysis))
	require.Len(t, analysis.Detections, 3)

	w, env = f.postJSON("/api/v1/detections/image/inventory", map[string]any{"detections": analysis.Detections})
	require.Equal(t, http.StatusOK, w.Code)
	var report inventoryapp.ReconcileReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 2, report.Succeeded)
	assert.Zero(t, report.Failed)

	s := f.summary()
	assert.Equal(t, int64(2), s.Quantity("Fire Extinguisher"))
	assert.Equal(t, int64(1), s.Quantity("Toolbox"))
	assert.Equal(t, int64(0), s.Quantity("Oxygen Tank"))
}

func TestAPI_VideoDetectionToInventory(t *testing.T) {
	f := newAPIFixture(t, fakeDetector(t))

	w, env := f.upload("/api/v1/detections/video", "walk.mp4", "video/mp4", []byte("fake-mp4"))
	require.Equal(t, http.StatusOK, w.Code)
	var analysis detectionapp.VideoAnalysis
	require.NoError(t, json.Unmarshal(env.Data, &analysis))
	assert.Equal(t, 2, analysis.FrameCount)

	w, env = f.do(httptest.NewRequest(http.MethodGet,
		"/api/v1/detections/video/"+analysis.ID.String()+"/frames/0?step=next", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var frame detectionapp.FrameView
	require.NoError(t, json.Unmarshal(env.Data, &frame))
	assert.Equal(t, 10, frame.FrameNumber)
	assert.False(t, frame.HasNext)

	w, _ = f.postJSON("/api/v1/detections/video/"+analysis.ID.String()+"/inventory", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), f.summary().Quantity("Oxygen Tank"))
}

func TestAPI_ConcurrentReconcile(t *testing.T) {
	f := newAPIFixture(t, fakeDetector(t))

	w, _ := f.postJSON("/api/v1/items/add", map[string]any{"name": "Toolbox", "quantity": 10})
	require.Equal(t, http.StatusOK, w.Code)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, _ := f.postJSON("/api/v1/inventory/reconcile", map[string]any{
				"class_counts": map[string]int{"ToolBox": 1},
			})
			assert.Equal(t, http.StatusOK, w.Code)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(20), f.summary().Quantity("Toolbox"))
}

func TestAPI_ProviderErrorPassesThrough(t *testing.T) {
	f := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"Unsupported image"}`))
	})

	w, env := f.upload("/api/v1/detections/image", "shelf.png", "image/png", pngImage(t))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "Unsupported image", env.Error.Message)
}

func TestAPI_Health(t *testing.T) {
	f := newAPIFixture(t, fakeDetector(t))

	w, env := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}
