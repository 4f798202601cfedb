package vision

import (
	"image"
	"image/color"
	"math"

	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/model"
	"gocv.io/x/gocv"
)

var maskWhite = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// MaskBuilder 根据文本区域生成修复掩码
type MaskBuilder struct {
	padding    int
	kernelSize int
}

func NewMaskBuilder(padding int) *MaskBuilder {
	if padding < 0 {
		padding = 0
	}
	return &MaskBuilder{
		padding:    padding,
		kernelSize: 3,
	}
}

// Build 生成单通道掩码，区域内为 255
func (mb *MaskBuilder) Build(width, height int, regions []model.Region) gocv.Mat {
	mask := gocv.Zeros(height, width, gocv.MatTypeCV8U)

	drawn := 0
	for _, r := range regions {
		rect, ok := pixelRect(r.BoundingBox.Expand(float64(mb.padding)), width, height)
		if !ok {
			continue
		}
		gocv.Rectangle(&mask, rect, maskWhite, -1)
		drawn++
	}
	if drawn == 0 {
		return mask
	}

	dilated := mb.dilate(&mask)
	mask.Close()
	return dilated
}

// dilate 膨胀掩码以覆盖抗锯齿的文字边缘
func (mb *MaskBuilder) dilate(mask *gocv.Mat) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: mb.kernelSize, Y: mb.kernelSize})
	defer kernel.Close()

	dilated := gocv.NewMat()
	gocv.Dilate(*mask, &dilated, kernel)
	return dilated
}

// Coverage 掩码覆盖的像素比例
func Coverage(mask *gocv.Mat) float64 {
	total := mask.Rows() * mask.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(*mask)) / float64(total)
}

// pixelRect 裁剪到图像范围并取整为像素矩形，面积为零时返回 false
func pixelRect(r model.Rect, width, height int) (image.Rectangle, bool) {
	c := r.Clamp(float64(width), float64(height))
	rect := image.Rect(
		int(math.Floor(c.X)),
		int(math.Floor(c.Y)),
		int(math.Ceil(c.X+c.Width)),
		int(math.Ceil(c.Y+c.Height)),
	)
	if rect.Empty() {
		return image.Rectangle{}, false
	}
	return rect, true
}
