package collision

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Rect 有朝向的矩形
type Rect struct {
	Center     r2.Vec
	Axis       r2.Vec  // 沿长度方向的单位向量
	Normal     r2.Vec  // 沿宽度方向的单位向量
	HalfLength float64 // 长度的一半
	HalfWidth  float64 // 宽度的一半
}

// NewRect 创建有朝向的矩形
// 参数：center-中心，heading-朝向（无需归一化），width-宽度，length-长度
// 返回：矩形，朝向为零向量或尺寸非正时返回false
func NewRect(center, heading r2.Vec, width, length float64) (Rect, bool) {
	n := r2.Norm(heading)
	if n == 0 || math.IsNaN(n) || width <= 0 || length <= 0 {
		return Rect{}, false
	}
	u := r2.Scale(1/n, heading)
	return Rect{
		Center:     center,
		Axis:       u,
		Normal:     r2.Vec{X: -u.Y, Y: u.X},
		HalfLength: length / 2,
		HalfWidth:  width / 2,
	}, true
}

// Corners 四个角点，按环绕顺序
func (r Rect) Corners() [4]r2.Vec {
	l := r2.Scale(r.HalfLength, r.Axis)
	w := r2.Scale(r.HalfWidth, r.Normal)
	return [4]r2.Vec{
		r2.Add(r2.Add(r.Center, l), w),
		r2.Sub(r2.Add(r.Center, l), w),
		r2.Sub(r2.Sub(r.Center, l), w),
		r2.Add(r2.Sub(r.Center, l), w),
	}
}

func project(corners [4]r2.Vec, axis r2.Vec) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, c := range corners {
		p := r2.Dot(c, axis)
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}
	return
}

func edgeNormals(corners [4]r2.Vec) [4]r2.Vec {
	var normals [4]r2.Vec
	for i := range corners {
		e := r2.Sub(corners[(i+1)%4], corners[i])
		normals[i] = r2.Vec{X: -e.Y, Y: e.X}
	}
	return normals
}

// Overlap 分离轴判定两个矩形是否重叠
// 算法说明：
// 1. 取两个矩形共8条边的法向量作为候选分离轴
// 2. 将两个矩形的角点投影到每条轴上
// 3. 任意一条轴上投影区间不相交（或仅端点相接）即判定为不重叠
// 说明：仅接触不算重叠
func Overlap(a, b Rect) bool {
	ca, cb := a.Corners(), b.Corners()
	na, nb := edgeNormals(ca), edgeNormals(cb)
	for _, axes := range [2][4]r2.Vec{na, nb} {
		for _, axis := range axes {
			aLo, aHi := project(ca, axis)
			bLo, bHi := project(cb, axis)
			if aHi <= bLo || bHi <= aLo {
				return false
			}
		}
	}
	return true
}
