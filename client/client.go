package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/editor"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/model"
	"go.uber.org/zap"
)

const apiPrefix = "/api/v1"

// APIError 服务端返回的非 2xx 响应
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client 会话服务的 HTTP 客户端，实现 editor.Remote
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ editor.Remote = (*Client)(nil)

func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Health 检查服务是否可用
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return nil
}

// CreateSession 上传本地图片并创建会话
func (c *Client) CreateSession(ctx context.Context, imagePath string) (*model.Session, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="image"; filename=%q`, filepath.Base(imagePath)))
	header.Set("Content-Type", http.DetectContentType(data))

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write file data to form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	c.logger.Debug("uploading image",
		zap.String("path", imagePath),
		zap.Int("size", len(data)))

	return c.send(ctx, http.MethodPost, "/sessions", writer.FormDataContentType(), &body)
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	return c.do(ctx, http.MethodGet, "/sessions/"+sessionID, nil)
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/sessions/"+sessionID, nil)
	return err
}

func (c *Client) Detect(ctx context.Context, sessionID string) (*model.Session, error) {
	return c.do(ctx, http.MethodPost, "/sessions/"+sessionID+"/detect", nil)
}

func (c *Client) UpdateRegions(ctx context.Context, sessionID string, regions []model.Region, mode model.EditMode, export bool) (*model.Session, error) {
	return c.do(ctx, http.MethodPut, "/sessions/"+sessionID+"/regions", model.UpdateRegionsRequest{
		Regions: nonNil(regions),
		Mode:    mode,
		Export:  export,
	})
}

// RestoreSessionState 撤销生成时把快照写回服务端
func (c *Client) RestoreSessionState(ctx context.Context, sessionID string, img *model.ImageRef, regions []model.Region, status model.Status) (*model.Session, error) {
	return c.do(ctx, http.MethodPost, "/sessions/"+sessionID+"/restore", model.RestoreRequest{
		ProcessedImage:       img,
		ProcessedTextRegions: nonNil(regions),
		Status:               status,
	})
}

func (c *Client) RemoveText(ctx context.Context, sessionID string, mode model.EditMode) (*model.Session, error) {
	return c.do(ctx, http.MethodPost, "/sessions/"+sessionID+"/remove-text", model.RemoveRequest{Mode: mode})
}

func (c *Client) GenerateText(ctx context.Context, sessionID string, regions []model.Region) (*model.Session, error) {
	return c.do(ctx, http.MethodPost, "/sessions/"+sessionID+"/generate-text", model.GenerateRequest{
		Regions: nonNil(regions),
	})
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*model.Session, error) {
	if payload == nil {
		return c.send(ctx, method, path, "", nil)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.send(ctx, method, path, "application/json", bytes.NewReader(data))
}

func (c *Client) send(ctx context.Context, method, path, contentType string, body io.Reader) (*model.Session, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp.StatusCode, respBody)
	}

	var result model.SessionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !result.Success {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: result.Message}
	}
	return result.Data, nil
}

func decodeError(status int, body []byte) *APIError {
	var errResp model.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Message == "" {
		return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}

	msg := errResp.Message
	if errResp.Error != "" {
		msg = msg + ": " + errResp.Error
	}
	return &APIError{StatusCode: status, Code: errResp.Code, Message: msg}
}

// nonNil 空集合序列化为 [] 而不是 null
func nonNil(regions []model.Region) []model.Region {
	if regions == nil {
		return []model.Region{}
	}
	return regions
}
