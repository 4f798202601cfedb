package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/config"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/model"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/utils"
	"go.uber.org/zap"
)

// SessionService 会话的权威状态，所有写操作读-改-写整份快照
type SessionService struct {
	store     SessionStore
	detector  TextDetector
	processor TextProcessor

	semaphore        chan struct{}
	queueTimeout     time.Duration
	cleanupTempFiles bool
	now              func() time.Time

	// 同一会话的读-改-写串行化
	locks sync.Map
}

func NewSessionService(store SessionStore, detector TextDetector, processor TextProcessor, cfg *config.ProcessingConfig) *SessionService {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &SessionService{
		store:            store,
		detector:         detector,
		processor:        processor,
		semaphore:        make(chan struct{}, maxConcurrent),
		queueTimeout:     time.Duration(cfg.QueueTimeout) * time.Second,
		cleanupTempFiles: cfg.CleanupTempFiles,
		now:              time.Now,
	}
}

func (s *SessionService) lock(id string) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// open 加锁并读取会话；会话不存在时释放锁并移除对应的锁条目
func (s *SessionService) open(ctx context.Context, id string) (*model.Session, func(), error) {
	unlock := s.lock(id)
	session, err := s.load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			s.locks.Delete(id)
		}
		unlock()
		return nil, nil, err
	}
	return session, unlock, nil
}

// acquire 并发控制，排队超时返回 busy
func (s *SessionService) acquire(ctx context.Context, sessionID string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, s.queueTimeout)
	defer cancel()

	select {
	case s.semaphore <- struct{}{}:
		return func() { <-s.semaphore }, nil
	case <-ctx.Done():
		return nil, NewBusyError(sessionID)
	}
}

func (s *SessionService) load(ctx context.Context, id string) (*model.Session, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, NewNotFoundError(id)
		}
		return nil, NewStorageFailedError(id, err)
	}
	return session, nil
}

func (s *SessionService) save(ctx context.Context, session *model.Session) error {
	session.UpdatedAt = s.now()
	if err := s.store.Save(ctx, session); err != nil {
		return NewStorageFailedError(session.ID, err)
	}
	return nil
}

// Create 为上传的图像创建会话
func (s *SessionService) Create(ctx context.Context, img *model.ImageRef) (*model.Session, error) {
	if img == nil {
		return nil, NewInvalidRequestError("", ErrNoImage)
	}

	now := s.now()
	session := &model.Session{
		ID:          utils.NewSessionID(),
		Image:       img.Clone(),
		TextRegions: []model.Region{},
		Status:      model.StatusUploaded,
		CreatedAt:   now,
	}
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}

	utils.Logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("md5", img.MD5),
		zap.Int("width", img.Width),
		zap.Int("height", img.Height))
	return session, nil
}

func (s *SessionService) Get(ctx context.Context, id string) (*model.Session, error) {
	return s.load(ctx, id)
}

func (s *SessionService) Delete(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()

	err := s.store.Delete(ctx, id)
	if err == nil || errors.Is(err, ErrSessionNotFound) {
		s.locks.Delete(id)
	}
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return NewNotFoundError(id)
		}
		return NewStorageFailedError(id, err)
	}
	return nil
}

// Detect 运行文字检测，结果写入 text_regions
func (s *SessionService) Detect(ctx context.Context, id string) (*model.Session, error) {
	if s.detector == nil {
		return nil, NewUnavailableError(id, "text detector")
	}

	session, unlock, err := s.open(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if session.Image == nil {
		return nil, NewInvalidRequestError(id, ErrNoImage)
	}

	release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	session.Status = model.StatusDetecting
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}

	start := s.now()
	regions, err := s.detector.Detect(ctx, session.Image)
	if err != nil {
		return nil, s.fail(ctx, session, NewDetectionFailedError(id, err))
	}

	// 重新检测时序号从历史最高值继续
	base := session.LastRegionSeq
	if n := model.MaxRegionSeq(session.TextRegions, session.ProcessedTextRegions); n > base {
		base = n
	}
	for i := range regions {
		regions[i].ID = model.FormatRegionID(base + i + 1)
		regions[i].SetBox(regions[i].BoundingBox)
	}
	session.LastRegionSeq = base + len(regions)

	if regions == nil {
		regions = []model.Region{}
	}
	session.TextRegions = regions
	session.Status = model.StatusDetected
	session.Error = ""
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}

	utils.Logger.Info("text detected",
		zap.String("session_id", id),
		zap.Int("regions", len(regions)),
		zap.Duration("duration", time.Since(start)))
	return session, nil
}

// UpdateRegions 覆盖指定上下文的区域集合。几何或成员变化时状态回到 editing，export 记录导出时间。
func (s *SessionService) UpdateRegions(ctx context.Context, id string, regions []model.Region, mode model.EditMode, export bool) (*model.Session, error) {
	mode, err := model.ParseEditMode(string(mode))
	if err != nil {
		return nil, NewInvalidRequestError(id, fmt.Errorf("%w: %v", ErrInvalidMode, err))
	}

	session, unlock, err := s.open(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if mode == model.ModeProcessed {
		session.EnsureGeneration()
	}

	incoming := normalizeRegions(regions)
	if structuralChange(session.Regions(mode), incoming) {
		session.Status = session.Status.AfterStructuralEdit()
	}
	session.SetRegions(mode, incoming)
	bumpRegionSeq(session)

	if export {
		t := s.now()
		session.ExportedAt = &t
	}
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}

	utils.Logger.Debug("regions updated",
		zap.String("session_id", id),
		zap.String("mode", string(mode)),
		zap.Int("regions", len(incoming)),
		zap.Bool("export", export))
	return session, nil
}

// RestoreSessionState 将 processed 上下文的图像、区域与状态精确覆盖为给定快照。
// status 为空时按快照内容推断。幂等，不产生任何处理任务。
func (s *SessionService) RestoreSessionState(ctx context.Context, id string, img *model.ImageRef, regions []model.Region, status model.Status) (*model.Session, error) {
	if status != "" && !status.Valid() {
		return nil, NewInvalidRequestError(id, fmt.Errorf("%w: %q", ErrInvalidStatus, status))
	}

	session, unlock, err := s.open(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session.ProcessedImage = img.Clone()
	session.ProcessedTextRegions = model.CloneRegions(regions)
	if session.ProcessedTextRegions == nil {
		session.ProcessedTextRegions = []model.Region{}
	}
	session.GenerationStarted = true
	session.Status = status
	if session.Status == "" {
		session.Status = restoredStatus(session)
	}
	session.Error = ""
	bumpRegionSeq(session)

	if err := s.save(ctx, session); err != nil {
		return nil, err
	}

	utils.Logger.Info("session state restored",
		zap.String("session_id", id),
		zap.Bool("has_processed_image", img != nil),
		zap.String("status", string(session.Status)),
		zap.Int("regions", len(session.ProcessedTextRegions)))
	return session, nil
}

// RemoveText 擦除指定上下文区域内的文字，结果写入 processed_image
func (s *SessionService) RemoveText(ctx context.Context, id string, mode model.EditMode) (*model.Session, error) {
	if s.processor == nil {
		return nil, NewUnavailableError(id, "text processor")
	}
	mode, err := model.ParseEditMode(string(mode))
	if err != nil {
		return nil, NewInvalidRequestError(id, fmt.Errorf("%w: %v", ErrInvalidMode, err))
	}

	session, unlock, err := s.open(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if session.Image == nil {
		return nil, NewInvalidRequestError(id, ErrNoImage)
	}

	release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	regions := model.CloneRegions(session.Regions(mode))
	src := session.Image
	if mode == model.ModeProcessed && session.ProcessedImage != nil {
		src = session.ProcessedImage
	}

	session.Status = model.StatusProcessing
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}

	out, err := s.processor.RemoveText(ctx, src, regions)
	if err != nil {
		return nil, s.fail(ctx, session, NewProcessingFailedError(id, "remove text", err))
	}

	session.ProcessedImage = out
	session.EnsureGeneration()
	session.Status = model.StatusRemoved
	session.Error = ""
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}

	utils.Logger.Info("text removed",
		zap.String("session_id", id),
		zap.String("mode", string(mode)),
		zap.Int("regions", len(regions)),
		zap.String("processed_image", out.ID))
	return session, nil
}

// GenerateText 在给定区域内擦除后渲染 user_input_text，区域集合同时成为 processed_text_regions
func (s *SessionService) GenerateText(ctx context.Context, id string, regions []model.Region) (*model.Session, error) {
	if s.processor == nil {
		return nil, NewUnavailableError(id, "text processor")
	}

	session, unlock, err := s.open(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if session.Image == nil {
		return nil, NewInvalidRequestError(id, ErrNoImage)
	}

	release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	src := session.Image
	if session.ProcessedImage != nil {
		src = session.ProcessedImage
	}
	incoming := normalizeRegions(regions)

	session.Status = model.StatusProcessing
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}

	cleaned, err := s.processor.RemoveText(ctx, src, incoming)
	if err != nil {
		return nil, s.fail(ctx, session, NewProcessingFailedError(id, "generate text", err))
	}
	out, err := s.processor.RenderText(ctx, cleaned, incoming)
	s.discard(cleaned)
	if err != nil {
		return nil, s.fail(ctx, session, NewProcessingFailedError(id, "generate text", err))
	}

	session.ProcessedImage = out
	session.ProcessedTextRegions = incoming
	session.GenerationStarted = true
	session.Status = model.StatusGenerated
	session.Error = ""
	bumpRegionSeq(session)
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}

	utils.Logger.Info("text generated",
		zap.String("session_id", id),
		zap.Int("regions", len(incoming)),
		zap.String("processed_image", out.ID))
	return session, nil
}

func (s *SessionService) discard(ref *model.ImageRef) {
	if !s.cleanupTempFiles || ref == nil {
		return
	}
	if err := s.processor.Discard(ref); err != nil {
		utils.Logger.Warn("failed to delete temp file",
			zap.String("image_id", ref.ID),
			zap.Error(err))
	}
}

// fail 记录错误状态后返回原错误
func (s *SessionService) fail(ctx context.Context, session *model.Session, cause *SessionError) error {
	session.Status = model.StatusError
	session.Error = cause.Error()
	if err := s.save(ctx, session); err != nil {
		utils.Logger.Error("failed to persist error status",
			zap.String("session_id", session.ID), zap.Error(err))
	}
	utils.Logger.Error("session processing failed",
		zap.String("session_id", session.ID),
		zap.String("code", string(cause.Code)),
		zap.Error(cause.Cause))
	return cause
}

// restoredStatus 调用方未给出状态时的推断：无图像回到 editing；有图像时按区域是否含生成文本区分 generated 与 removed
func restoredStatus(session *model.Session) model.Status {
	if session.ProcessedImage == nil {
		return model.StatusEditing
	}
	for _, r := range session.ProcessedTextRegions {
		if r.UserInputText != "" {
			return model.StatusGenerated
		}
	}
	return model.StatusRemoved
}

func normalizeRegions(regions []model.Region) []model.Region {
	out := model.CloneRegions(regions)
	if out == nil {
		return []model.Region{}
	}
	for i := range out {
		if out[i].OriginalBoxSize == (model.Rect{}) {
			out[i].OriginalBoxSize = out[i].BoundingBox
		}
		out[i].SetBox(out[i].BoundingBox)
		out[i].IsSizeModified = out[i].IsSizeModified || out[i].SizeModified()
	}
	return out
}

// structuralChange 成员、顺序或几何发生变化
func structuralChange(old, updated []model.Region) bool {
	if len(old) != len(updated) {
		return true
	}
	for i := range old {
		if old[i].ID != updated[i].ID || !old[i].BoundingBox.Equal(updated[i].BoundingBox) {
			return true
		}
	}
	return false
}

func bumpRegionSeq(session *model.Session) {
	if n := model.MaxRegionSeq(session.TextRegions, session.ProcessedTextRegions); n > session.LastRegionSeq {
		session.LastRegionSeq = n
	}
}
