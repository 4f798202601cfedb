package vision

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/config"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/model"
	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// referenceTextHeight 字号 1.0 对应的区域高度（像素）
const referenceTextHeight = 30.0

// Processor 使用 OpenCV 去除与渲染文字
type Processor struct {
	files         *FileStore
	masks         *MaskBuilder
	background    *BackgroundAnalyzer
	inpaintRadius float64
	fontFace      gocv.HersheyFont
	baseFontScale float64
	textColor     color.RGBA
}

func NewProcessor(files *FileStore, cfg *config.ProcessingConfig) (*Processor, error) {
	textColor, err := parseColor(cfg.TextColor)
	if err != nil {
		return nil, fmt.Errorf("processing.text_color: %w", err)
	}

	radius := cfg.InpaintRadius
	if radius <= 0 {
		radius = 3
	}
	base := cfg.BaseFontScale
	if base <= 0 {
		base = 1
	}

	return &Processor{
		files:         files,
		masks:         NewMaskBuilder(cfg.MaskPadding),
		background:    NewBackgroundAnalyzer(cfg.MaskPadding * 2),
		inpaintRadius: radius,
		fontFace:      gocv.HersheyFont(cfg.FontFace),
		baseFontScale: base,
		textColor:     textColor,
	}, nil
}

// RemoveText 按背景复杂度选择修复算法与半径，对区域掩码做修复，输出新图像
func (p *Processor) RemoveText(ctx context.Context, src *model.ImageRef, regions []model.Region) (*model.ImageRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := p.read(src)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	startTime := time.Now()

	mask := p.masks.Build(img.Cols(), img.Rows(), regions)
	defer mask.Close()

	coverage := Coverage(&mask)
	dst := gocv.NewMat()
	defer dst.Close()
	bg := Background{Level: LevelSimple}
	if coverage == 0 {
		img.CopyTo(&dst)
	} else {
		bg = p.background.Analyze(&img, &mask)
		radius, method := p.inpaintParams(bg)
		gocv.Inpaint(img, mask, &dst, float32(radius), method)
	}

	out, err := p.write("removed_", dst)
	if err != nil {
		return nil, err
	}

	utils.Logger.Info("text regions inpainted",
		zap.String("source", src.ID),
		zap.String("output", out.ID),
		zap.Int("regions", len(regions)),
		zap.Float64("mask_coverage", coverage),
		zap.String("background", bg.Level),
		zap.Float64("edge_density", bg.EdgeDensity),
		zap.Duration("duration", time.Since(startTime)))
	return out, nil
}

// RenderText 在区域内居中绘制 user_input_text，空文本跳过
func (p *Processor) RenderText(ctx context.Context, src *model.ImageRef, regions []model.Region) (*model.ImageRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := p.read(src)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	rendered := 0
	for _, r := range regions {
		if r.UserInputText == "" {
			continue
		}
		rect, ok := pixelRect(r.BoundingBox, img.Cols(), img.Rows())
		if !ok {
			continue
		}

		thickness := 1
		if r.CategoryConfig != nil && r.CategoryConfig.Thickness > 0 {
			thickness = r.CategoryConfig.Thickness
		}
		scale, origin := fitText(r.UserInputText, p.fontFace, fontScale(r, p.baseFontScale), thickness, rect)
		gocv.PutText(&img, r.UserInputText, origin, p.fontFace, scale, p.regionColor(r), thickness)
		rendered++
	}

	out, err := p.write("generated_", img)
	if err != nil {
		return nil, err
	}

	utils.Logger.Info("text rendered",
		zap.String("source", src.ID),
		zap.String("output", out.ID),
		zap.Int("rendered", rendered))
	return out, nil
}

// inpaintParams 简单背景用 Telea，复杂背景加大半径并改用 Navier-Stokes
func (p *Processor) inpaintParams(bg Background) (float64, gocv.InpaintMethods) {
	switch bg.Level {
	case LevelComplex:
		return p.inpaintRadius * 2, gocv.NS
	case LevelMedium:
		return p.inpaintRadius * 1.5, gocv.Telea
	default:
		return p.inpaintRadius, gocv.Telea
	}
}

func (p *Processor) Discard(ref *model.ImageRef) error {
	return p.files.Remove(ref)
}

func (p *Processor) read(ref *model.ImageRef) (gocv.Mat, error) {
	path, err := p.files.Resolve(ref)
	if err != nil {
		return gocv.Mat{}, err
	}
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("failed to read image %s", ref.ID)
	}
	return img, nil
}

func (p *Processor) write(prefix string, img gocv.Mat) (*model.ImageRef, error) {
	path := p.files.NewPath(prefix, ".png")
	if ok := gocv.IMWrite(path, img); !ok {
		return nil, fmt.Errorf("failed to write image %s", path)
	}
	return p.files.Describe(path)
}

func (p *Processor) regionColor(r model.Region) color.RGBA {
	if r.CategoryConfig != nil && r.CategoryConfig.Color != "" {
		if c, err := parseColor(r.CategoryConfig.Color); err == nil {
			return c
		}
	}
	return p.textColor
}

// fontScale 类别配置优先，否则按区域原始高度与当前缩放比例估算
func fontScale(r model.Region, base float64) float64 {
	if r.CategoryConfig != nil && r.CategoryConfig.FontScale > 0 {
		return r.CategoryConfig.FontScale
	}
	h := r.OriginalBoxSize.Height
	if h <= 0 {
		h = r.BoundingBox.Height
	}
	return base * h / referenceTextHeight * r.RelativeScale()
}

// fitText 缩小字号使文字落在矩形内，返回字号与基线起点
func fitText(text string, face gocv.HersheyFont, scale float64, thickness int, rect image.Rectangle) (float64, image.Point) {
	size := gocv.GetTextSize(text, face, scale, thickness)
	factor := 1.0
	if size.X > rect.Dx() && size.X > 0 {
		factor = float64(rect.Dx()) / float64(size.X)
	}
	if size.Y > rect.Dy() && size.Y > 0 {
		factor = min(factor, float64(rect.Dy())/float64(size.Y))
	}
	scale *= factor
	size = gocv.GetTextSize(text, face, scale, thickness)

	x := rect.Min.X + (rect.Dx()-size.X)/2
	y := rect.Min.Y + (rect.Dy()+size.Y)/2
	return scale, image.Point{X: x, Y: y}
}

// parseColor 解析 #rrggbb
func parseColor(hex string) (color.RGBA, error) {
	if hex == "" {
		return color.RGBA{A: 255}, nil
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}
