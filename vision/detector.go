package vision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/config"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/model"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/utils"
	"go.uber.org/zap"
)

// TesseractDetector 以文本行为单位检测文字区域
type TesseractDetector struct {
	files         *FileStore
	language      string
	minConfidence float64
	pageSegMode   gosseract.PageSegMode
}

func NewTesseractDetector(files *FileStore, cfg *config.DetectionConfig) *TesseractDetector {
	language := cfg.Language
	if language == "" {
		language = "eng"
	}
	return &TesseractDetector{
		files:         files,
		language:      language,
		minConfidence: cfg.MinConfidence,
		pageSegMode:   gosseract.PageSegMode(cfg.PageSegMode),
	}
}

// Detect 返回的区域没有ID，由调用方分配
func (d *TesseractDetector) Detect(ctx context.Context, img *model.ImageRef) ([]model.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := d.files.Resolve(img)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(strings.Split(d.language, "+")...); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(d.pageSegMode); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImage(path); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("failed to get bounding boxes: %w", err)
	}

	regions := regionsFromBoxes(boxes, d.minConfidence)

	utils.Logger.Info("tesseract detection finished",
		zap.String("image", img.ID),
		zap.Int("boxes", len(boxes)),
		zap.Int("regions", len(regions)),
		zap.Duration("duration", time.Since(startTime)))
	return regions, nil
}

// regionsFromBoxes 过滤低置信度与空文本，置信度归一化到 [0,1]
func regionsFromBoxes(boxes []gosseract.BoundingBox, minConfidence float64) []model.Region {
	regions := make([]model.Region, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		confidence := box.Confidence / 100.0
		if text == "" || confidence < minConfidence || box.Box.Empty() {
			continue
		}

		r := model.NewRegion("", model.Rect{
			X:      float64(box.Box.Min.X),
			Y:      float64(box.Box.Min.Y),
			Width:  float64(box.Box.Dx()),
			Height: float64(box.Box.Dy()),
		})
		r.OriginalText = text
		r.Confidence = confidence
		regions = append(regions, r)
	}
	return regions
}
