package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/config"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/model"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/service"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/vision"
)

type stubDetector struct{ err error }

func (d *stubDetector) Detect(context.Context, *model.ImageRef) ([]model.Region, error) {
	if d.err != nil {
		return nil, d.err
	}
	return []model.Region{model.NewRegion("", model.Rect{X: 1, Y: 2, Width: 30, Height: 10})}, nil
}

type stubProcessor struct{ n int }

func (p *stubProcessor) next() *model.ImageRef {
	p.n++
	return &model.ImageRef{ID: "out", URL: "/files/out.png", Width: 64, Height: 32}
}

func (p *stubProcessor) RemoveText(context.Context, *model.ImageRef, []model.Region) (*model.ImageRef, error) {
	return p.next(), nil
}

func (p *stubProcessor) RenderText(context.Context, *model.ImageRef, []model.Region) (*model.ImageRef, error) {
	return p.next(), nil
}

func (p *stubProcessor) Discard(*model.ImageRef) error { return nil }

type testServer struct {
	router   *gin.Engine
	detector *stubDetector
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Upload: config.UploadConfig{
			MaxSize:      1024 * 1024,
			AllowedTypes: []string{"image/png", "image/jpeg"},
		},
		Processing: config.ProcessingConfig{MaxConcurrent: 1, QueueTimeout: 1},
	}

	store, err := service.NewSQLStore(config.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	det := &stubDetector{}
	sessions := service.NewSessionService(store, det, &stubProcessor{}, &cfg.Processing)
	files := vision.NewFileStore(t.TempDir(), "/files")

	r := gin.New()
	NewSessionHandler(cfg, sessions, files).Register(r.Group("/api/v1"))
	return &testServer{router: r, detector: det}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, model.SessionResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp model.SessionResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func uploadRequest(t *testing.T, contentType string) *http.Request {
	t.Helper()
	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 64, 32))))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="image"; filename="page.PNG"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (s *testServer) create(t *testing.T) *model.Session {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, uploadRequest(t, "image/png"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp model.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Data)
	return resp.Data
}

func TestCreateSession(t *testing.T) {
	s := newTestServer(t)
	session := s.create(t)

	assert.Equal(t, model.StatusUploaded, session.Status)
	require.NotNil(t, session.Image)
	assert.Equal(t, 64, session.Image.Width)
	assert.Equal(t, 32, session.Image.Height)
	assert.Contains(t, session.Image.URL, "/files/upload_")
	assert.Contains(t, session.Image.URL, ".png")
}

func TestCreateSessionRejectsType(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, uploadRequest(t, "image/gif"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t)
	session := s.create(t)
	base := "/api/v1/sessions/" + session.ID

	w, resp := s.do(t, http.MethodPost, base+"/detect", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.StatusDetected, resp.Data.Status)
	require.Len(t, resp.Data.TextRegions, 1)
	assert.Equal(t, "region_1", resp.Data.TextRegions[0].ID)

	regions := resp.Data.TextRegions
	regions[0].SetBox(model.Rect{X: 5, Y: 2, Width: 30, Height: 10})
	w, resp = s.do(t, http.MethodPut, base+"/regions", model.UpdateRegionsRequest{Regions: regions, Mode: model.ModeOCR, Export: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.StatusEditing, resp.Data.Status)
	assert.NotNil(t, resp.Data.ExportedAt)

	w, resp = s.do(t, http.MethodPost, base+"/remove-text", model.RemoveRequest{Mode: model.ModeOCR})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.StatusRemoved, resp.Data.Status)
	snapshotImage := resp.Data.ProcessedImage
	snapshotRegions := resp.Data.ProcessedTextRegions

	generate := model.CloneRegions(snapshotRegions)
	generate[0].UserInputText = "new"
	w, resp = s.do(t, http.MethodPost, base+"/generate-text", model.GenerateRequest{Regions: generate})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.StatusGenerated, resp.Data.Status)

	w, resp = s.do(t, http.MethodPost, base+"/restore", model.RestoreRequest{
		ProcessedImage:       snapshotImage,
		ProcessedTextRegions: snapshotRegions,
		Status:               model.StatusRemoved,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, snapshotImage, resp.Data.ProcessedImage)
	assert.Equal(t, snapshotRegions, resp.Data.ProcessedTextRegions)
	assert.Equal(t, model.StatusRemoved, resp.Data.Status)

	w, _ = s.do(t, http.MethodPost, base+"/restore", model.RestoreRequest{Status: "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	session := s.create(t)
	base := "/api/v1/sessions/" + session.ID

	w, _ := s.do(t, http.MethodGet, "/api/v1/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	var errResp model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.False(t, errResp.Success)
	assert.Equal(t, string(service.ErrorSessionNotFound), errResp.Code)

	w, _ = s.do(t, http.MethodPut, base+"/regions", model.UpdateRegionsRequest{Mode: "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPut, base+"/regions", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.detector.err = errors.New("no tessdata")
	w, _ = s.do(t, http.MethodPost, base+"/detect", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusOf(service.NewNotFoundError("x")))
	assert.Equal(t, http.StatusBadRequest, statusOf(service.NewInvalidRequestError("x", nil)))
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(service.NewBusyError("x")))
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(service.NewUnavailableError("x", "detector")))
	assert.Equal(t, http.StatusInternalServerError, statusOf(errors.New("plain")))
}
