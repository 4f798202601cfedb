package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SizeTolerance 几何尺寸比较的容差（像素）
const SizeTolerance = 1.0

// RegionIDPrefix 区域ID前缀，格式为 region_<n>
const RegionIDPrefix = "region_"

// Point 二维坐标点
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect 轴对齐矩形
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Equal 判断两个矩形是否完全一致
func (r Rect) Equal(o Rect) bool {
	return r.X == o.X && r.Y == o.Y && r.Width == o.Width && r.Height == o.Height
}

// Diverges 位置或尺寸任一分量的差异超过 tol 时返回 true
func (r Rect) Diverges(o Rect, tol float64) bool {
	return math.Abs(r.X-o.X) > tol || math.Abs(r.Y-o.Y) > tol ||
		math.Abs(r.Width-o.Width) > tol || math.Abs(r.Height-o.Height) > tol
}

// Corners 按左上、右上、右下、左下顺序返回四个角点
func (r Rect) Corners() [4]Point {
	return [4]Point{
		{X: r.X, Y: r.Y},
		{X: r.X + r.Width, Y: r.Y},
		{X: r.X + r.Width, Y: r.Y + r.Height},
		{X: r.X, Y: r.Y + r.Height},
	}
}

// Expand 向四周扩展 pad 像素
func (r Rect) Expand(pad float64) Rect {
	return Rect{X: r.X - pad, Y: r.Y - pad, Width: r.Width + 2*pad, Height: r.Height + 2*pad}
}

// Clamp 将矩形裁剪到 [0,w]x[0,h] 范围内
func (r Rect) Clamp(w, h float64) Rect {
	x0 := math.Max(0, r.X)
	y0 := math.Max(0, r.Y)
	x1 := math.Min(w, r.X+r.Width)
	y1 := math.Min(h, r.Y+r.Height)
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// CenteredRect 返回图像中心处 frac 比例大小的矩形
func CenteredRect(imgW, imgH, frac float64) Rect {
	w := imgW * frac
	h := imgH * frac
	return Rect{X: (imgW - w) / 2, Y: (imgH - h) / 2, Width: w, Height: h}
}

// CategoryConfig 文本类别的渲染参数
type CategoryConfig struct {
	FontScale float64 `json:"font_scale,omitempty"`
	Color     string  `json:"color,omitempty"` // #rrggbb
	Thickness int     `json:"thickness,omitempty"`
}

// Region 一个矩形文本区域
type Region struct {
	ID              string          `json:"id"`
	BoundingBox     Rect            `json:"bounding_box"`
	Corners         [4]Point        `json:"corners"`
	OriginalBoxSize Rect            `json:"original_box_size"`
	IsSizeModified  bool            `json:"is_size_modified"`
	OriginalText    string          `json:"original_text"`
	EditedText      string          `json:"edited_text,omitempty"`
	UserInputText   string          `json:"user_input_text,omitempty"`
	IsUserModified  bool            `json:"is_user_modified"`
	Confidence      float64         `json:"confidence"`
	TextCategory    string          `json:"text_category,omitempty"`
	CategoryConfig  *CategoryConfig `json:"category_config,omitempty"`
}

// NewRegion 使用初始几何创建区域，原始尺寸即初始几何
func NewRegion(id string, box Rect) Region {
	return Region{
		ID:              id,
		BoundingBox:     box,
		Corners:         box.Corners(),
		OriginalBoxSize: box,
	}
}

// Clone 深拷贝
func (r Region) Clone() Region {
	c := r
	if r.CategoryConfig != nil {
		cfg := *r.CategoryConfig
		c.CategoryConfig = &cfg
	}
	return c
}

// SetBox 更新几何并同步角点
func (r *Region) SetBox(box Rect) {
	r.BoundingBox = box
	r.Corners = box.Corners()
}

// SizeModified 当前几何是否偏离原始几何
func (r Region) SizeModified() bool {
	return r.BoundingBox.Diverges(r.OriginalBoxSize, SizeTolerance)
}

// RelativeScale 当前高度相对于原始高度的比例，用于字号估算
func (r Region) RelativeScale() float64 {
	if r.OriginalBoxSize.Height <= 0 || r.BoundingBox.Height <= 0 {
		return 1
	}
	return r.BoundingBox.Height / r.OriginalBoxSize.Height
}

// CloneRegions 深拷贝区域切片，nil 保持为 nil
func CloneRegions(src []Region) []Region {
	if src == nil {
		return nil
	}
	out := make([]Region, len(src))
	for i, r := range src {
		out[i] = r.Clone()
	}
	return out
}

// FindRegion 返回指定ID的下标，不存在时为 -1
func FindRegion(regions []Region, id string) int {
	for i := range regions {
		if regions[i].ID == id {
			return i
		}
	}
	return -1
}

// FormatRegionID 生成 region_<n>
func FormatRegionID(n int) string {
	return fmt.Sprintf("%s%d", RegionIDPrefix, n)
}

// ParseRegionID 解析 region_<n>，n 必须为正整数
func ParseRegionID(id string) (int, bool) {
	if !strings.HasPrefix(id, RegionIDPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, RegionIDPrefix))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// MaxRegionSeq 扫描所有集合中 region_<n> 的最大 n
func MaxRegionSeq(collections ...[]Region) int {
	maxN := 0
	for _, regions := range collections {
		for _, r := range regions {
			if n, ok := ParseRegionID(r.ID); ok && n > maxN {
				maxN = n
			}
		}
	}
	return maxN
}
