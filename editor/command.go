package editor

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/model"
)

// Kind 命令类型
type Kind string

const (
	KindMove         Kind = "move"
	KindResize       Kind = "resize"
	KindAdd          Kind = "add"
	KindDelete       Kind = "delete"
	KindEditText     Kind = "edit_text"
	KindGenerateText Kind = "generate_text"
)

// Structural 增删与几何变更属于结构性编辑
func (k Kind) Structural() bool {
	switch k {
	case KindMove, KindResize, KindAdd, KindDelete:
		return true
	}
	return false
}

// GenerationSnapshot processed 上下文的服务端产物快照
type GenerationSnapshot struct {
	ProcessedImage       *model.ImageRef `json:"processed_image"`
	ProcessedTextRegions []model.Region  `json:"processed_text_regions"`
	Status               model.Status    `json:"status"`
}

func (g *GenerationSnapshot) clone() *GenerationSnapshot {
	if g == nil {
		return nil
	}
	return &GenerationSnapshot{
		ProcessedImage:       g.ProcessedImage.Clone(),
		ProcessedTextRegions: model.CloneRegions(g.ProcessedTextRegions),
		Status:               g.Status,
	}
}

// Command 可逆变更记录
//
// 只携带纯数据：各字段按 Kind 解释，由 Editor 的分发器执行或撤销。
type Command struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	Mode      model.EditMode `json:"mode"`
	Timestamp time.Time      `json:"timestamp"`

	RegionID string `json:"region_id,omitempty"`

	// move / resize
	OldBox model.Rect `json:"old_box"`
	NewBox model.Rect `json:"new_box"`

	// add / delete：完整区域及其在集合中的位置
	Region *model.Region `json:"region,omitempty"`
	Index  int           `json:"index"`

	// edit_text
	Field   string `json:"field,omitempty"`
	OldText string `json:"old_text,omitempty"`
	NewText string `json:"new_text,omitempty"`

	// generate_text
	Before            *GenerationSnapshot `json:"before,omitempty"`
	After             *GenerationSnapshot `json:"after,omitempty"`
	KeepProcessedMode bool                `json:"keep_processed_mode,omitempty"`
	ShowOverlays      bool                `json:"show_overlays,omitempty"`
}

// Factory 构造命令，负责ID与时间戳
type Factory struct {
	mu      sync.Mutex
	now     func() time.Time
	entropy io.Reader
	last    time.Time
}

// NewFactory 使用系统时钟与单调 ULID 熵源
func NewFactory() *Factory {
	return NewFactoryWithClock(time.Now)
}

// NewFactoryWithClock 注入时钟，便于测试
func NewFactoryWithClock(now func() time.Time) *Factory {
	return &Factory{
		now:     now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (f *Factory) base(kind Kind, mode model.EditMode) Command {
	f.mu.Lock()
	defer f.mu.Unlock()

	ts := f.now()
	if ts.Before(f.last) {
		ts = f.last
	}
	f.last = ts

	return Command{
		ID:        ulid.MustNew(ulid.Timestamp(ts), f.entropy).String(),
		Kind:      kind,
		Mode:      mode,
		Timestamp: ts,
	}
}

// Move 移动命令
func (f *Factory) Move(mode model.EditMode, regionID string, oldBox, newBox model.Rect) Command {
	c := f.base(KindMove, mode)
	c.RegionID = regionID
	c.OldBox = oldBox
	c.NewBox = newBox
	return c
}

// Resize 缩放命令
func (f *Factory) Resize(mode model.EditMode, regionID string, oldBox, newBox model.Rect) Command {
	c := f.base(KindResize, mode)
	c.RegionID = regionID
	c.OldBox = oldBox
	c.NewBox = newBox
	return c
}

// Add 新增命令，region 在 index 处插入
func (f *Factory) Add(mode model.EditMode, region model.Region, index int) Command {
	c := f.base(KindAdd, mode)
	r := region.Clone()
	c.RegionID = region.ID
	c.Region = &r
	c.Index = index
	return c
}

// Delete 删除命令，保存完整区域以便原位恢复
func (f *Factory) Delete(mode model.EditMode, region model.Region, index int) Command {
	c := f.base(KindDelete, mode)
	r := region.Clone()
	c.RegionID = region.ID
	c.Region = &r
	c.Index = index
	return c
}

// EditText 文本修改命令，字段由上下文决定
func (f *Factory) EditText(mode model.EditMode, regionID, oldText, newText string) Command {
	c := f.base(KindEditText, mode)
	c.RegionID = regionID
	c.Field = model.TextField(mode)
	c.OldText = oldText
	c.NewText = newText
	return c
}

// GenerateText 生成命令，保存生成前后的快照
func (f *Factory) GenerateText(before, after *GenerationSnapshot) Command {
	c := f.base(KindGenerateText, model.ModeProcessed)
	c.Before = before.clone()
	c.After = after.clone()
	c.KeepProcessedMode = true
	c.ShowOverlays = true
	return c
}
