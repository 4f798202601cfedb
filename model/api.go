package model

// SessionResponse 会话接口响应
type SessionResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    *Session `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// UpdateRegionsRequest 同步区域集合
type UpdateRegionsRequest struct {
	Regions []Region `json:"regions"`
	Mode    EditMode `json:"mode"`
	Export  bool     `json:"export"`
}

// RestoreRequest 恢复生成前的快照，Status 为空时由服务端推断
type RestoreRequest struct {
	ProcessedImage       *ImageRef `json:"processed_image"`
	ProcessedTextRegions []Region  `json:"processed_text_regions"`
	Status               Status    `json:"status,omitempty"`
}

// GenerateRequest 在 processed 区域内生成文本
type GenerateRequest struct {
	Regions []Region `json:"regions"`
}

// RemoveRequest 去除文本，Mode 指定使用哪个区域集合
type RemoveRequest struct {
	Mode EditMode `json:"mode"`
}
