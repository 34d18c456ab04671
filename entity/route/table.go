package route

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
)

// Normalized 归一化坐标（0..1）下的路点序列，允许略微超出画面以便从画外驶入
type Normalized []r2.Vec

// Shift 平移整条路线
func (n Normalized) Shift(dx, dy float64) Normalized {
	out := make(Normalized, len(n))
	for i, p := range n {
		out[i] = r2.Vec{X: p.X + dx, Y: p.Y + dy}
	}
	return out
}

// ScaleToViewport 缩放到像素坐标
// 说明：与绘制层保持一致，像素坐标向零取整
func ScaleToViewport(n Normalized, width, height float64) []r2.Vec {
	out := make([]r2.Vec, len(n))
	for i, p := range n {
		out[i] = r2.Vec{X: math.Trunc(p.X * width), Y: math.Trunc(p.Y * height)}
	}
	return out
}

// Table 路线名到归一化路线的映射
type Table map[string]Normalized

// Names 按字典序返回所有路线名
func (t Table) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build 按画面尺寸构造指定路线
func (t Table) Build(name string, width, height float64) (*Path, error) {
	n, ok := t[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoute, name)
	}
	return New(name, ScaleToViewport(n, width, height))
}

// BuildAll 构造表中所有路线
func (t Table) BuildAll(width, height float64) (map[string]*Path, error) {
	paths := make(map[string]*Path, len(t))
	for _, name := range t.Names() {
		p, err := t.Build(name, width, height)
		if err != nil {
			return nil, err
		}
		paths[name] = p
	}
	return paths, nil
}

func v(x, y float64) r2.Vec {
	return r2.Vec{X: x, Y: y}
}

// DefaultTable 内置路线表
// 说明：南北向向上行驶、东西向向右行驶，每条机动车路线的第2个路点为停止线；
// 货车使用东西向机动车路线整体左移0.1的版本
func DefaultTable() Table {
	t := Table{
		// 南北向（向上）
		"cars_ns_up":    {v(0.55, 1.10), v(0.55, 0.80), v(0.55, -0.10)},
		"cars_ns_right": {v(0.55, 1.10), v(0.55, 0.80), v(0.55, 0.55), v(1.10, 0.55)},
		"cars_ns_left":  {v(0.55, 1.10), v(0.55, 0.80), v(0.55, 0.45), v(-0.10, 0.45)},
		// 东西向
		"cars_ew_right":      {v(-0.10, 0.55), v(0.20, 0.55), v(1.10, 0.55)},
		"cars_ew_left":       {v(-0.10, 0.55), v(0.20, 0.55), v(0.55, 0.55), v(0.55, 1.10)},
		"cars_ew_turn_right": {v(-0.10, 0.55), v(0.20, 0.55), v(0.45, 0.55), v(0.55, -0.10)},
		// 自行车靠近机动车道右侧，行人在人行道北侧
		"bikes_ns_up":   {v(0.60, 1.10), v(0.60, 0.80), v(0.60, -0.10)},
		"peds_ew_right": {v(-0.10, 0.30), v(0.20, 0.30), v(1.10, 0.30)},
	}
	t["trucks_ew_right"] = t["cars_ew_right"].Shift(-0.1, 0)
	t["trucks_ew_left"] = t["cars_ew_left"].Shift(-0.1, 0)
	t["trucks_ew_turn_right"] = t["cars_ew_turn_right"].Shift(-0.1, 0)
	return t
}
