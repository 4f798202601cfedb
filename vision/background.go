package vision

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// 背景复杂度等级
const (
	LevelSimple  = "simple"
	LevelMedium  = "medium"
	LevelComplex = "complex"
)

// Background 文字周围背景的统计信息
type Background struct {
	Level         string
	EdgeDensity   float64
	ColorVariance float64
}

// BackgroundAnalyzer 分析掩码外一圈背景的复杂度，用于选择修复参数
type BackgroundAnalyzer struct {
	margin int
}

func NewBackgroundAnalyzer(margin int) *BackgroundAnalyzer {
	if margin <= 0 {
		margin = 8
	}
	return &BackgroundAnalyzer{margin: margin}
}

// Analyze 统计 mask 外 margin 像素宽环带内的边缘密度与 Lab 颜色标准差
func (ba *BackgroundAnalyzer) Analyze(img *gocv.Mat, mask *gocv.Mat) Background {
	ring := ba.ring(mask)
	defer ring.Close()

	ringBytes := ring.ToBytes()
	ringPixels := 0
	for _, v := range ringBytes {
		if v != 0 {
			ringPixels++
		}
	}
	if ringPixels == 0 {
		return Background{Level: LevelSimple}
	}

	edgeDensity := ba.edgeDensity(img, ringBytes, ringPixels)
	colorVariance := ba.colorVariance(img, ringBytes, ringPixels)

	var level string
	if edgeDensity < 0.05 && colorVariance < 30 {
		level = LevelSimple
	} else if edgeDensity > 0.15 || colorVariance > 60 {
		level = LevelComplex
	} else {
		level = LevelMedium
	}

	return Background{
		Level:         level,
		EdgeDensity:   edgeDensity,
		ColorVariance: colorVariance,
	}
}

// ring 膨胀后的掩码减去原掩码
func (ba *BackgroundAnalyzer) ring(mask *gocv.Mat) gocv.Mat {
	size := 2*ba.margin + 1
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: size, Y: size})
	defer kernel.Close()

	outer := gocv.NewMat()
	defer outer.Close()
	gocv.Dilate(*mask, &outer, kernel)

	ring := gocv.NewMat()
	gocv.Subtract(outer, *mask, &ring)
	return ring
}

func (ba *BackgroundAnalyzer) edgeDensity(img *gocv.Mat, ring []byte, ringPixels int) float64 {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	edgePixels := 0
	for i, v := range edges.ToBytes() {
		if v != 0 && ring[i] != 0 {
			edgePixels++
		}
	}
	return float64(edgePixels) / float64(ringPixels)
}

// colorVariance Lab 三通道标准差的均值
func (ba *BackgroundAnalyzer) colorVariance(img *gocv.Mat, ring []byte, ringPixels int) float64 {
	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(*img, &lab, gocv.ColorBGRToLab)

	data := lab.ToBytes()
	var sum, sumSq [3]float64
	for i, v := range ring {
		if v == 0 {
			continue
		}
		for c := 0; c < 3; c++ {
			x := float64(data[i*3+c])
			sum[c] += x
			sumSq[c] += x * x
		}
	}

	n := float64(ringPixels)
	variance := 0.0
	for c := 0; c < 3; c++ {
		mean := sum[c] / n
		variance += math.Sqrt(math.Max(0, sumSq[c]/n-mean*mean))
	}
	return variance / 3
}
