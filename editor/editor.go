package editor

import (
	"fmt"
	"sync"

	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/model"
	"go.uber.org/zap"
)

// DefaultRegionFraction 新增区域默认占图像宽高的比例
const DefaultRegionFraction = 0.1

// 无图像尺寸时的兜底区域
var fallbackRegionBox = model.Rect{Width: 100, Height: 30}

type inflightOp int

const (
	opNone inflightOp = iota
	opUndo
	opRemote
)

// Config Editor 依赖
type Config struct {
	Session        *model.Session
	MaxHistorySize int
	History        *History
	Factory        *Factory
	Remote         Remote
	// Synchronizer 为空时使用 Remote
	Synchronizer Synchronizer
	Logger       *zap.Logger
}

// Editor 会话编辑服务：所有区域写入都经过这里的入口，并在当前上下文的历史中记录可逆命令
type Editor struct {
	mu sync.Mutex

	session      *model.Session
	mode         model.EditMode
	selected     string
	showOverlays bool
	inflight     inflightOp

	history *History
	factory *Factory
	remote  Remote
	sync    Synchronizer
	logger  *zap.Logger
}

// New 创建 Editor，Editor 独占传入的 Session
func New(cfg *Config) (*Editor, error) {
	if cfg == nil || cfg.Session == nil {
		return nil, ErrNoSession
	}

	e := &Editor{
		session:      cfg.Session,
		mode:         model.ModeOCR,
		showOverlays: true,
		history:      cfg.History,
		factory:      cfg.Factory,
		remote:       cfg.Remote,
		sync:         cfg.Synchronizer,
		logger:       cfg.Logger,
	}
	if e.history == nil {
		e.history = NewHistory(cfg.MaxHistorySize)
	}
	if e.factory == nil {
		e.factory = NewFactory()
	}
	if e.sync == nil && cfg.Remote != nil {
		e.sync = cfg.Remote
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e, nil
}

// Session 返回会话快照
func (e *Editor) Session() *model.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone()
}

// Regions 当前上下文的区域快照
func (e *Editor) Regions() []model.Region {
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.CloneRegions(e.session.Regions(e.mode))
}

// Region 当前上下文中的单个区域
func (e *Editor) Region(id string) (model.Region, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	regions := e.session.Regions(e.mode)
	idx := model.FindRegion(regions, id)
	if idx < 0 {
		return model.Region{}, false
	}
	return regions[idx].Clone(), true
}

func (e *Editor) Mode() model.EditMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

func (e *Editor) Selected() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

func (e *Editor) ShowOverlays() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.showOverlays
}

// History 返回指定上下文历史的副本
func (e *Editor) History(mode model.EditMode) *Ledger {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Ledger(mode).Clone()
}

// SetMode 切换编辑上下文；首次进入 processed 时克隆 text_regions。两份历史互不影响。
func (e *Editor) SetMode(mode model.EditMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.busy(); err != nil {
		return err
	}

	if mode == model.ModeProcessed && e.session.EnsureGeneration() {
		e.logger.Debug("generation context initialised",
			zap.String("session_id", e.session.ID),
			zap.Int("regions", len(e.session.ProcessedTextRegions)))
	}
	e.mode = mode
	if model.FindRegion(e.session.Regions(mode), e.selected) < 0 {
		e.selected = ""
	}
	return nil
}

// Select 选中当前上下文中的区域，空字符串表示取消选中
func (e *Editor) Select(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id != "" && model.FindRegion(e.session.Regions(e.mode), id) < 0 {
		return fmt.Errorf("%w: %s", ErrRegionNotFound, id)
	}
	e.selected = id
	return nil
}

// SetShowOverlays 控制区域覆盖层显示
func (e *Editor) SetShowOverlays(show bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.showOverlays = show
}

// AddRegion 在当前上下文新增区域。ID 总是重新分配；未给出几何时使用图像中心 10% 大小的矩形。
// 新区域成为选中区域。
func (e *Editor) AddRegion(partial *model.Region) (model.Region, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.busy(); err != nil {
		return model.Region{}, err
	}

	var region model.Region
	if partial != nil {
		region = partial.Clone()
	}
	box := region.BoundingBox
	if box.Width <= 0 || box.Height <= 0 {
		box = e.defaultBox()
	}

	region.ID = e.session.NextRegionID()
	region.SetBox(box)
	if region.OriginalBoxSize.Width <= 0 || region.OriginalBoxSize.Height <= 0 {
		region.OriginalBoxSize = box
	}
	region.IsUserModified = true

	cmd := e.factory.Add(e.mode, region, len(e.session.Regions(e.mode)))
	e.record(cmd)
	e.selected = region.ID

	return region.Clone(), nil
}

// RemoveRegion 从当前上下文删除区域
func (e *Editor) RemoveRegion(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.busy(); err != nil {
		return err
	}

	regions := e.session.Regions(e.mode)
	idx := model.FindRegion(regions, id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrRegionNotFound, id)
	}

	e.record(e.factory.Delete(e.mode, regions[idx], idx))
	return nil
}

// MoveRegion 记录一次拖动；新旧几何相同时不产生历史，返回 false
func (e *Editor) MoveRegion(id string, oldBox, newBox model.Rect) (bool, error) {
	return e.changeGeometry(KindMove, id, oldBox, newBox)
}

// ResizeRegion 记录一次缩放；新旧几何相同时不产生历史，返回 false
func (e *Editor) ResizeRegion(id string, oldBox, newBox model.Rect) (bool, error) {
	return e.changeGeometry(KindResize, id, oldBox, newBox)
}

func (e *Editor) changeGeometry(kind Kind, id string, oldBox, newBox model.Rect) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.busy(); err != nil {
		return false, err
	}

	if oldBox.Equal(newBox) {
		return false, nil
	}
	if model.FindRegion(e.session.Regions(e.mode), id) < 0 {
		return false, fmt.Errorf("%w: %s", ErrRegionNotFound, id)
	}

	var cmd Command
	if kind == KindResize {
		cmd = e.factory.Resize(e.mode, id, oldBox, newBox)
	} else {
		cmd = e.factory.Move(e.mode, id, oldBox, newBox)
	}
	e.record(cmd)
	return true, nil
}

// EditText 修改当前上下文的文本字段（ocr: edited_text，processed: user_input_text）；
// 值未变化时不产生历史，返回 false
func (e *Editor) EditText(id, text string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.busy(); err != nil {
		return false, err
	}

	regions := e.session.Regions(e.mode)
	idx := model.FindRegion(regions, id)
	if idx < 0 {
		return false, fmt.Errorf("%w: %s", ErrRegionNotFound, id)
	}
	old := regions[idx].Text(e.mode)
	if old == text {
		return false, nil
	}

	e.record(e.factory.EditText(e.mode, id, old, text))
	return true, nil
}

// SetCategory 修改文本类别，不进入历史
func (e *Editor) SetCategory(id, category string, cfg *model.CategoryConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.busy(); err != nil {
		return err
	}

	regions := e.session.Regions(e.mode)
	idx := model.FindRegion(regions, id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrRegionNotFound, id)
	}
	regions[idx].TextCategory = category
	if cfg != nil {
		c := *cfg
		regions[idx].CategoryConfig = &c
	} else {
		regions[idx].CategoryConfig = nil
	}
	regions[idx].IsUserModified = true
	return nil
}

// record 执行命令并压入命令所属上下文的历史
func (e *Editor) record(cmd Command) {
	e.execute(cmd)
	e.history.Ledger(cmd.Mode).Push(cmd)

	e.logger.Debug("command recorded",
		zap.String("session_id", e.session.ID),
		zap.String("kind", string(cmd.Kind)),
		zap.String("mode", string(cmd.Mode)),
		zap.String("region_id", cmd.RegionID),
		zap.Int("history_len", e.history.Ledger(cmd.Mode).Len()))
}

func (e *Editor) busy() error {
	switch e.inflight {
	case opUndo:
		return ErrUndoInProgress
	case opRemote:
		return ErrRemoteInProgress
	}
	return nil
}

func (e *Editor) defaultBox() model.Rect {
	img := e.session.Image
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return fallbackRegionBox
	}
	return model.CenteredRect(float64(img.Width), float64(img.Height), DefaultRegionFraction)
}
