package service

import (
	"context"

	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/model"
)

// TextDetector 在图像中检测文字区域
type TextDetector interface {
	Detect(ctx context.Context, img *model.ImageRef) ([]model.Region, error)
}

// TextProcessor 去除区域内文字并渲染新文字，输出新的图像产物
type TextProcessor interface {
	RemoveText(ctx context.Context, src *model.ImageRef, regions []model.Region) (*model.ImageRef, error)
	RenderText(ctx context.Context, src *model.ImageRef, regions []model.Region) (*model.ImageRef, error)
	// Discard 删除不再被引用的中间产物
	Discard(ref *model.ImageRef) error
}
