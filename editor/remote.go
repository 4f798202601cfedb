package editor

import (
	"context"

	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/model"
)

// Synchronizer 撤销生成命令时把快照推回权威存储
//
// 返回的 Session 中 processed_image、processed_text_regions 与 status 必须与快照完全一致；
// 调用幂等，且不产生新的撤销状态。
type Synchronizer interface {
	RestoreSessionState(ctx context.Context, sessionID string, processedImage *model.ImageRef, processedTextRegions []model.Region, status model.Status) (*model.Session, error)
}

// Remote 会话服务的完整远程接口
type Remote interface {
	Synchronizer
	UpdateRegions(ctx context.Context, sessionID string, regions []model.Region, mode model.EditMode, export bool) (*model.Session, error)
	RemoveText(ctx context.Context, sessionID string, mode model.EditMode) (*model.Session, error)
	GenerateText(ctx context.Context, sessionID string, regions []model.Region) (*model.Session, error)
}
