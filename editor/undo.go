package editor

import (
	"context"

	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/model"
	"go.uber.org/zap"
)

// UndoResult 一次撤销的结果
type UndoResult struct {
	Command Command
	// Degraded 为 true 表示同步失败，快照只应用到了本地，服务端可能仍是旧状态
	Degraded bool
	SyncErr  error
}

// CanUndo 当前上下文是否有可撤销的命令
func (e *Editor) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Ledger(e.mode).CanUndo()
}

// Undo 撤销当前上下文最近的命令。
//
// generate_text 需要等待 Synchronizer 恢复服务端快照；等待期间其它撤销和编辑入口返回
// ErrUndoInProgress。同步失败时回退为直接应用本地快照，并在结果中标记 Degraded。
func (e *Editor) Undo(ctx context.Context) (*UndoResult, error) {
	e.mu.Lock()
	if err := e.busy(); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	ledger := e.history.Ledger(e.mode)
	cmd, ok := ledger.Current()
	if !ok {
		e.mu.Unlock()
		return nil, ErrNothingToUndo
	}

	if cmd.Kind != KindGenerateText {
		e.revert(cmd)
		ledger.Back()
		e.mu.Unlock()
		return &UndoResult{Command: cmd}, nil
	}

	e.inflight = opUndo
	sessionID := e.session.ID
	before := cmd.Before.clone()
	if before == nil {
		before = &GenerationSnapshot{}
	}
	e.mu.Unlock()

	restored, err := e.restore(ctx, sessionID, before)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.inflight = opNone

	result := &UndoResult{Command: cmd}
	if err != nil {
		e.logger.Warn("restore session state failed, applying snapshot locally",
			zap.String("session_id", sessionID),
			zap.String("command_id", cmd.ID),
			zap.Error(err))
		result.Degraded = true
		result.SyncErr = err
		e.applyGeneration(before)
	} else {
		e.applyGeneration(&GenerationSnapshot{
			ProcessedImage:       restored.ProcessedImage,
			ProcessedTextRegions: restored.ProcessedTextRegions,
			Status:               restored.Status,
		})
	}

	if cmd.KeepProcessedMode {
		e.mode = model.ModeProcessed
	}
	e.showOverlays = cmd.ShowOverlays
	e.history.Ledger(cmd.Mode).Back()

	return result, nil
}

func (e *Editor) restore(ctx context.Context, sessionID string, snap *GenerationSnapshot) (*model.Session, error) {
	if e.sync == nil {
		return nil, ErrNoSynchronizer
	}
	restored, err := e.sync.RestoreSessionState(ctx, sessionID, snap.ProcessedImage, snap.ProcessedTextRegions, snap.Status)
	if err != nil {
		return nil, err
	}
	if restored == nil {
		return nil, ErrNoSession
	}
	return restored, nil
}
