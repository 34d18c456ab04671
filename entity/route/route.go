// 路线几何：按顺序经过的二维路点序列
// 路线表以归一化坐标（0..1）给出，使用前按画面尺寸缩放为像素坐标
package route

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

var (
	ErrCoincidentWaypoints = errors.New("route: consecutive waypoints coincide")
	ErrUnknownRoute        = errors.New("route: unknown route")
	ErrInvalidCoordinate   = errors.New("route: waypoint is NaN or Inf")
)

// 停止线所在路点的约定下标
const conventionalCrossIndex = 1

// Path 像素坐标下的路线
// 功能：保存路点序列与预计算的停止线、方向等几何量
// 说明：构造后只读，由多个交通参与者共享
type Path struct {
	name   string
	points []r2.Vec

	crossIndex int    // 停止线路点下标，-1表示没有停止线
	stopAxis   r2.Vec // 起点到停止线的主方向轴（带符号的单位轴向量）
	stopAxisOk bool

	startDir   r2.Vec // 第一段非零线段的方向
	startDirOk bool
	exitDir    r2.Vec // 最后一段的方向
	exitDirOk  bool

	length float64
}

// New 创建路线
// 功能：校验路点并预计算停止线下标、主方向轴、起始与驶离方向
// 参数：name-路线名，points-像素坐标路点
// 返回：路线，路点中存在连续重合（起点处除外）或非法坐标时返回错误
// 说明：空路线是合法输入，由交通参与者按退化情况处理
func New(name string, points []r2.Vec) (*Path, error) {
	for i, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return nil, fmt.Errorf("%w: %s[%d]", ErrInvalidCoordinate, name, i)
		}
		if i >= 2 && p == points[i-1] {
			return nil, fmt.Errorf("%w: %s[%d]=%v", ErrCoincidentWaypoints, name, i, p)
		}
	}
	path := &Path{
		name:       name,
		points:     append([]r2.Vec(nil), points...),
		crossIndex: -1,
	}
	for i := 1; i < len(points); i++ {
		seg := r2.Sub(points[i], points[i-1])
		n := r2.Norm(seg)
		path.length += n
		if !path.startDirOk && n > 0 {
			path.startDir = r2.Scale(1/n, seg)
			path.startDirOk = true
		}
	}
	if l := len(points); l >= 2 {
		seg := r2.Sub(points[l-1], points[l-2])
		if n := r2.Norm(seg); n > 0 {
			path.exitDir = r2.Scale(1/n, seg)
			path.exitDirOk = true
		}
	}
	if len(points) >= 3 {
		path.crossIndex = conventionalCrossIndex
		path.stopAxis, path.stopAxisOk = dominantAxis(points[0], points[path.crossIndex])
		if !path.stopAxisOk {
			path.stopAxis, path.stopAxisOk = dominantAxis(points[path.crossIndex], points[path.crossIndex+1])
		}
	}
	return path, nil
}

// dominantAxis |dx|与|dy|中较大者对应的带符号单位轴
func dominantAxis(from, to r2.Vec) (r2.Vec, bool) {
	d := r2.Sub(to, from)
	switch {
	case d.X == 0 && d.Y == 0:
		return r2.Vec{}, false
	case math.Abs(d.X) >= math.Abs(d.Y):
		return r2.Vec{X: math.Copysign(1, d.X)}, true
	default:
		return r2.Vec{Y: math.Copysign(1, d.Y)}, true
	}
}

func (p *Path) Name() string {
	return p.name
}

func (p *Path) Len() int {
	return len(p.points)
}

// Point 获取第i个路点，越界时截断到合法范围
func (p *Path) Point(i int) r2.Vec {
	if len(p.points) == 0 {
		return r2.Vec{}
	}
	if i < 0 {
		i = 0
	} else if i >= len(p.points) {
		i = len(p.points) - 1
	}
	return p.points[i]
}

// Points 路点副本
func (p *Path) Points() []r2.Vec {
	return append([]r2.Vec(nil), p.points...)
}

// Start 路线起点
func (p *Path) Start() (r2.Vec, bool) {
	if len(p.points) == 0 {
		return r2.Vec{}, false
	}
	return p.points[0], true
}

// CrossIndex 停止线路点下标
func (p *Path) CrossIndex() (int, bool) {
	return p.crossIndex, p.crossIndex >= 0
}

// StartDirection 第一段非零线段的单位方向
func (p *Path) StartDirection() (r2.Vec, bool) {
	return p.startDir, p.startDirOk
}

// ExitDirection 最后一段的单位方向，路线过短或最后两点重合时返回false
func (p *Path) ExitDirection() (r2.Vec, bool) {
	return p.exitDir, p.exitDirOk
}

// Length 路线总长度
func (p *Path) Length() float64 {
	return p.length
}

// DistancePastStopLine 沿主方向轴越过停止线的有符号距离
// 功能：计算位置在停止线之后多远，负数表示尚未到达停止线
// 说明：主方向轴取起点到停止线的|dx|、|dy|中的较大者；两者重合时取停止线之后一段的方向；
// 仍无法确定时返回到停止线的欧氏距离
func (p *Path) DistancePastStopLine(pos r2.Vec) float64 {
	if p.crossIndex < 0 {
		return math.Inf(1)
	}
	d := r2.Sub(pos, p.points[p.crossIndex])
	if !p.stopAxisOk {
		return r2.Norm(d)
	}
	return r2.Dot(d, p.stopAxis)
}

func (p *Path) String() string {
	return fmt.Sprintf("Path{%s, n=%d, cross=%d}", p.name, len(p.points), p.crossIndex)
}
