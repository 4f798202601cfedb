package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/config"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/model"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/service"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/utils"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/vision"
	"go.uber.org/zap"
)

type SessionHandler struct {
	cfg      *config.Config
	sessions *service.SessionService
	files    *vision.FileStore
}

func NewSessionHandler(cfg *config.Config, sessions *service.SessionService, files *vision.FileStore) *SessionHandler {
	return &SessionHandler{
		cfg:      cfg,
		sessions: sessions,
		files:    files,
	}
}

// Register 注册会话路由
func (h *SessionHandler) Register(r gin.IRouter) {
	sessions := r.Group("/sessions")
	{
		sessions.POST("", h.Create)
		sessions.GET("/:id", h.Get)
		sessions.DELETE("/:id", h.Delete)
		sessions.POST("/:id/detect", h.Detect)
		sessions.PUT("/:id/regions", h.UpdateRegions)
		sessions.POST("/:id/restore", h.Restore)
		sessions.POST("/:id/remove-text", h.RemoveText)
		sessions.POST("/:id/generate-text", h.GenerateText)
	}
}

// Create 上传图片并创建会话
func (h *SessionHandler) Create(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		utils.Logger.Error("failed to get uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "请上传图片文件",
			Error:   err.Error(),
		})
		return
	}

	// 验证文件大小
	if file.Size > h.cfg.Upload.MaxSize {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("文件大小超过限制 (%d MB)", h.cfg.Upload.MaxSize/(1024*1024)),
		})
		return
	}

	// 验证文件类型
	contentType := file.Header.Get("Content-Type")
	if !h.isAllowedType(contentType) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "不支持的文件类型，仅支持 JPEG/PNG",
		})
		return
	}

	savePath := h.files.NewPath("upload_", strings.ToLower(filepath.Ext(file.Filename)))
	if err := c.SaveUploadedFile(file, savePath); err != nil {
		utils.Logger.Error("failed to save file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "保存文件失败",
			Error:   err.Error(),
		})
		return
	}

	img, err := h.files.Describe(savePath)
	if err != nil {
		utils.Logger.Error("failed to decode upload", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "无法解析图片",
			Error:   err.Error(),
		})
		return
	}

	utils.Logger.Info("file uploaded",
		zap.String("filename", file.Filename),
		zap.String("md5", img.MD5),
		zap.Int64("size", file.Size))

	session, err := h.sessions.Create(c.Request.Context(), img)
	if err != nil {
		h.fail(c, "创建会话失败", err)
		return
	}
	h.ok(c, http.StatusCreated, "创建成功", session)
}

func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "查询失败", err)
		return
	}
	h.ok(c, http.StatusOK, "查询成功", session)
}

func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "删除失败", err)
		return
	}
	h.ok(c, http.StatusOK, "删除成功", nil)
}

func (h *SessionHandler) Detect(c *gin.Context) {
	session, err := h.sessions.Detect(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "文字检测失败", err)
		return
	}
	h.ok(c, http.StatusOK, "检测完成", session)
}

func (h *SessionHandler) UpdateRegions(c *gin.Context) {
	var req model.UpdateRegionsRequest
	if !h.bind(c, &req) {
		return
	}

	session, err := h.sessions.UpdateRegions(c.Request.Context(), c.Param("id"), req.Regions, req.Mode, req.Export)
	if err != nil {
		h.fail(c, "更新区域失败", err)
		return
	}
	h.ok(c, http.StatusOK, "更新成功", session)
}

// Restore 恢复 processed 上下文快照，供撤销生成使用
func (h *SessionHandler) Restore(c *gin.Context) {
	var req model.RestoreRequest
	if !h.bind(c, &req) {
		return
	}

	session, err := h.sessions.RestoreSessionState(c.Request.Context(), c.Param("id"), req.ProcessedImage, req.ProcessedTextRegions, req.Status)
	if err != nil {
		h.fail(c, "恢复失败", err)
		return
	}
	h.ok(c, http.StatusOK, "恢复成功", session)
}

func (h *SessionHandler) RemoveText(c *gin.Context) {
	var req model.RemoveRequest
	if c.Request.ContentLength > 0 && !h.bind(c, &req) {
		return
	}

	session, err := h.sessions.RemoveText(c.Request.Context(), c.Param("id"), req.Mode)
	if err != nil {
		h.fail(c, "去除文字失败", err)
		return
	}
	h.ok(c, http.StatusOK, "处理成功", session)
}

func (h *SessionHandler) GenerateText(c *gin.Context) {
	var req model.GenerateRequest
	if !h.bind(c, &req) {
		return
	}

	session, err := h.sessions.GenerateText(c.Request.Context(), c.Param("id"), req.Regions)
	if err != nil {
		h.fail(c, "生成文字失败", err)
		return
	}
	h.ok(c, http.StatusOK, "生成成功", session)
}

func (h *SessionHandler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "请求参数错误",
			Error:   err.Error(),
			Code:    string(service.ErrorInvalidRequest),
		})
		return false
	}
	return true
}

func (h *SessionHandler) ok(c *gin.Context, status int, message string, session *model.Session) {
	c.JSON(status, model.SessionResponse{
		Success: true,
		Message: message,
		Data:    session,
	})
}

func (h *SessionHandler) fail(c *gin.Context, message string, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		utils.Logger.Error(message,
			zap.String("session_id", c.Param("id")),
			zap.Error(err))
	}
	c.JSON(status, model.ErrorResponse{
		Success: false,
		Message: message,
		Error:   err.Error(),
		Code:    string(service.CodeOf(err)),
	})
}

// statusOf 错误码到 HTTP 状态码
func statusOf(err error) int {
	switch service.CodeOf(err) {
	case service.ErrorSessionNotFound:
		return http.StatusNotFound
	case service.ErrorInvalidRequest:
		return http.StatusBadRequest
	case service.ErrorProcessingBusy, service.ErrorUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *SessionHandler) isAllowedType(contentType string) bool {
	for _, allowed := range h.cfg.Upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}
