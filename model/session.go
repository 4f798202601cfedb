package model

import (
	"fmt"
	"time"
)

// Status 会话处理状态
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusDetecting  Status = "detecting"
	StatusDetected   Status = "detected"
	StatusEditing    Status = "editing"
	StatusProcessing Status = "processing"
	StatusRemoved    Status = "removed"
	StatusGenerated  Status = "generated"
	StatusError      Status = "error"
)

// AfterStructuralEdit 结构性编辑（增删改几何）后的状态：已完成的处理状态回到 editing
func (s Status) AfterStructuralEdit() Status {
	switch s {
	case StatusDetected, StatusRemoved, StatusGenerated:
		return StatusEditing
	default:
		return s
	}
}

// Valid 是否为已知状态
func (s Status) Valid() bool {
	switch s {
	case StatusUploaded, StatusDetecting, StatusDetected, StatusEditing,
		StatusProcessing, StatusRemoved, StatusGenerated, StatusError:
		return true
	}
	return false
}

// EditMode 编辑上下文
type EditMode string

const (
	// ModeOCR 检测结果校对，读写 text_regions / edited_text
	ModeOCR EditMode = "ocr"
	// ModeProcessed 生成预览，读写 processed_text_regions / user_input_text
	ModeProcessed EditMode = "processed"
)

// ParseEditMode 解析编辑上下文，空字符串视为 ocr
func ParseEditMode(s string) (EditMode, error) {
	switch EditMode(s) {
	case "", ModeOCR:
		return ModeOCR, nil
	case ModeProcessed:
		return ModeProcessed, nil
	}
	return "", fmt.Errorf("unknown edit mode %q", s)
}

// ImageRef 图像产物引用
type ImageRef struct {
	ID     string `json:"id"`
	Path   string `json:"path,omitempty"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	MD5    string `json:"md5,omitempty"`
}

// Clone 拷贝引用，nil 安全
func (i *ImageRef) Clone() *ImageRef {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// Session 会话聚合根
//
// TextRegions 属于 ocr 上下文；ProcessedTextRegions 属于 processed 上下文，
// 在首次进入 processed 上下文时从 TextRegions 深拷贝一次（GenerationStarted 置为 true），
// 之后两份集合各自独立演化，不共享任何引用。
type Session struct {
	ID                   string     `json:"id"`
	Image                *ImageRef  `json:"image"`
	TextRegions          []Region   `json:"text_regions"`
	ProcessedTextRegions []Region   `json:"processed_text_regions"`
	GenerationStarted    bool       `json:"generation_started"`
	ProcessedImage       *ImageRef  `json:"processed_image,omitempty"`
	Status               Status     `json:"status"`
	LastRegionSeq        int        `json:"last_region_seq"`
	Error                string     `json:"error,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	ExportedAt           *time.Time `json:"exported_at,omitempty"`
}

// Clone 深拷贝整个会话
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Image = s.Image.Clone()
	c.ProcessedImage = s.ProcessedImage.Clone()
	c.TextRegions = CloneRegions(s.TextRegions)
	c.ProcessedTextRegions = CloneRegions(s.ProcessedTextRegions)
	if s.ExportedAt != nil {
		t := *s.ExportedAt
		c.ExportedAt = &t
	}
	return &c
}

// EnsureGeneration 首次进入 processed 上下文时克隆 text_regions，返回是否发生了克隆
func (s *Session) EnsureGeneration() bool {
	if s.GenerationStarted {
		return false
	}
	s.ProcessedTextRegions = CloneRegions(s.TextRegions)
	if s.ProcessedTextRegions == nil {
		s.ProcessedTextRegions = []Region{}
	}
	s.GenerationStarted = true
	return true
}

// Regions 返回指定上下文的区域集合
func (s *Session) Regions(mode EditMode) []Region {
	if mode == ModeProcessed {
		return s.ProcessedTextRegions
	}
	return s.TextRegions
}

// SetRegions 替换指定上下文的区域集合
func (s *Session) SetRegions(mode EditMode, regions []Region) {
	if mode == ModeProcessed {
		s.ProcessedTextRegions = regions
		return
	}
	s.TextRegions = regions
}

// NextRegionID 分配下一个区域ID：取现有最大序号与历史最高序号中的较大者加一，ID 永不复用
func (s *Session) NextRegionID() string {
	n := MaxRegionSeq(s.TextRegions, s.ProcessedTextRegions)
	if s.LastRegionSeq > n {
		n = s.LastRegionSeq
	}
	n++
	s.LastRegionSeq = n
	return FormatRegionID(n)
}

// TextField 上下文对应的可编辑文本字段名
func TextField(mode EditMode) string {
	if mode == ModeProcessed {
		return "user_input_text"
	}
	return "edited_text"
}

// Text 读取上下文对应的文本字段
func (r Region) Text(mode EditMode) string {
	if mode == ModeProcessed {
		return r.UserInputText
	}
	return r.EditedText
}

// SetText 写入上下文对应的文本字段
func (r *Region) SetText(mode EditMode, text string) {
	if mode == ModeProcessed {
		r.UserInputText = text
		return
	}
	r.EditedText = text
}
