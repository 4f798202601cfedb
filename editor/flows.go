package editor

import (
	"context"
	"fmt"

	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/model"
	"go.uber.org/zap"
)

// beginRemote 标记远程调用开始，返回调用所需的会话ID。
// need 非空时要求当前处于该上下文，检查与标记在同一临界区内完成。
func (e *Editor) beginRemote(need model.EditMode) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.remote == nil {
		return "", ErrNoRemote
	}
	if err := e.busy(); err != nil {
		return "", err
	}
	if need != "" && e.mode != need {
		return "", ErrNotInGeneration
	}
	e.inflight = opRemote
	return e.session.ID, nil
}

func (e *Editor) endRemote() {
	e.inflight = opNone
}

// SyncRegions 把当前上下文的区域集合推送到服务端
func (e *Editor) SyncRegions(ctx context.Context, export bool) (*model.Session, error) {
	sessionID, err := e.beginRemote("")
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	mode := e.mode
	regions := model.CloneRegions(e.session.Regions(mode))
	e.mu.Unlock()

	updated, err := e.remote.UpdateRegions(ctx, sessionID, regions, mode, export)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.endRemote()
	if err != nil {
		return nil, fmt.Errorf("update regions: %w", err)
	}

	e.adoptMeta(updated)
	return e.session.Clone(), nil
}

// RemoveText 同步当前区域后请求去除文字，完成后进入 processed 上下文。该操作不进入历史。
func (e *Editor) RemoveText(ctx context.Context) (*model.Session, error) {
	sessionID, err := e.beginRemote("")
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	mode := e.mode
	regions := model.CloneRegions(e.session.Regions(mode))
	e.mu.Unlock()

	result, err := e.removeText(ctx, sessionID, mode, regions)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.endRemote()
	if err != nil {
		return nil, err
	}

	e.session.ProcessedImage = result.ProcessedImage.Clone()
	e.session.Status = result.Status
	if !e.session.GenerationStarted && result.GenerationStarted {
		e.session.ProcessedTextRegions = model.CloneRegions(result.ProcessedTextRegions)
		e.session.GenerationStarted = true
	}
	e.session.EnsureGeneration()
	e.mode = model.ModeProcessed
	e.showOverlays = true

	e.logger.Info("text removed",
		zap.String("session_id", sessionID),
		zap.String("mode", string(mode)))
	return e.session.Clone(), nil
}

func (e *Editor) removeText(ctx context.Context, sessionID string, mode model.EditMode, regions []model.Region) (*model.Session, error) {
	if _, err := e.remote.UpdateRegions(ctx, sessionID, regions, mode, false); err != nil {
		return nil, fmt.Errorf("update regions: %w", err)
	}
	result, err := e.remote.RemoveText(ctx, sessionID, mode)
	if err != nil {
		return nil, fmt.Errorf("remove text: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("remove text: %w", ErrNoSession)
	}
	return result, nil
}

// GenerateText 在 processed 区域内生成文字，并记录可通过 Synchronizer 撤销的 generate_text 命令
func (e *Editor) GenerateText(ctx context.Context) (*model.Session, error) {
	sessionID, err := e.beginRemote(model.ModeProcessed)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	before := &GenerationSnapshot{
		ProcessedImage:       e.session.ProcessedImage.Clone(),
		ProcessedTextRegions: model.CloneRegions(e.session.ProcessedTextRegions),
		Status:               e.session.Status,
	}
	e.mu.Unlock()

	result, err := e.remote.GenerateText(ctx, sessionID, model.CloneRegions(before.ProcessedTextRegions))

	e.mu.Lock()
	defer e.mu.Unlock()
	e.endRemote()
	if err != nil {
		return nil, fmt.Errorf("generate text: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("generate text: %w", ErrNoSession)
	}

	after := &GenerationSnapshot{
		ProcessedImage:       result.ProcessedImage,
		ProcessedTextRegions: result.ProcessedTextRegions,
		Status:               result.Status,
	}
	e.record(e.factory.GenerateText(before, after))

	return e.session.Clone(), nil
}

// adoptMeta 采用服务端返回的会话元数据，区域集合保持本地版本
func (e *Editor) adoptMeta(s *model.Session) {
	if s == nil {
		return
	}
	if s.Status != "" {
		e.session.Status = s.Status
	}
	e.session.UpdatedAt = s.UpdatedAt
	e.session.ExportedAt = s.ExportedAt
}
