package roaduser

import (
	"flag"
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity/route"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils/config"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils/container"
	"gonum.org/v1/gonum/spatial/r2"
)

var (
	debugAssert = flag.Bool("debug.assert", false, "不变量被破坏时panic（默认截断到合法范围）")
)

// 小于该距离的位移不计为移动
const minMoveDistance = 1e-6

// RoadUser 交通参与者（小汽车、货车、自行车、行人）
// 功能：沿预设路线的路点行驶，在停止线前服从信号灯，并通过碰撞引擎避让其他对象
// 说明：Update只修改runtime，Prepare时写入snapshot；其他对象只读取snapshot
type RoadUser struct {
	container.IncrementalItemBase
	ctx entity.ITaskContext

	// 静态属性
	id        int32
	className string
	class     entity.VehicleClass
	params    config.ClassParams
	path      *route.Path
	speed     float64
	canCross  entity.CrossingPredicate

	runtime  runtime // 运行时数据
	snapshot runtime // 快照
}

// New 创建交通参与者
// 功能：按类别参数表初始化尺寸与速度，放置在路线起点
// 参数：ctx-任务上下文，id-唯一ID，className-类别名，path-路线，speed-速度（<=0时使用类别默认速度），
// canCross-信号灯放行判断（nil表示不受信号灯约束）
// 返回：交通参与者
// 说明：空路线是退化输入，对象放置在原点并在第一次更新时结束
func New(
	ctx entity.ITaskContext,
	id int32,
	className string,
	path *route.Path,
	speed float64,
	canCross entity.CrossingPredicate,
) *RoadUser {
	params, ok := ctx.RuntimeConfig().Class(className)
	if !ok {
		log.Warnf("road user %d: unknown class %q, use default parameters", id, className)
	}
	if speed <= 0 {
		speed = params.Speed
	}
	if canCross == nil {
		canCross = entity.AlwaysCross
	}
	if path == nil {
		path, _ = route.New("", nil)
	}
	u := &RoadUser{
		ctx:       ctx,
		id:        id,
		className: className,
		class: entity.VehicleClass{
			Kind:   entity.ParseClassKind(className),
			Width:  params.Width,
			Length: params.Length,
		},
		params:   params,
		path:     path,
		speed:    speed,
		canCross: canCross,
	}
	if start, ok := path.Start(); ok {
		u.runtime.Pos = start
	} else {
		log.Warnf("road user %d: empty path %q, placed at origin", id, path.Name())
	}
	if dir, ok := path.StartDirection(); ok {
		u.runtime.Heading = headingOf(dir)
	}
	u.snapshot = u.runtime
	return u
}

// Prepare 准备阶段，将本步更新结果写入快照
func (u *RoadUser) Prepare() {
	u.snapshot = u.runtime
}

func (u *RoadUser) ID() int32 {
	return u.id
}

func (u *RoadUser) Class() entity.VehicleClass {
	return u.class
}

func (u *RoadUser) ClassName() string {
	return u.className
}

// Params 类别参数
func (u *RoadUser) Params() config.ClassParams {
	return u.params
}

func (u *RoadUser) Path() *route.Path {
	return u.path
}

func (u *RoadUser) Speed() float64 {
	return u.speed
}

func (u *RoadUser) PathStart() (r2.Vec, bool) {
	return u.path.Start()
}

func (u *RoadUser) StartDirection() (r2.Vec, bool) {
	return u.path.StartDirection()
}

// Position 快照位置
func (u *RoadUser) Position() r2.Vec {
	return u.snapshot.Pos
}

// Direction 快照中的行驶方向
func (u *RoadUser) Direction() (r2.Vec, bool) {
	return u.direction(&u.snapshot)
}

func (u *RoadUser) Done() bool {
	return u.snapshot.Status == StatusDone
}

func (u *RoadUser) Status() Status {
	return u.snapshot.Status
}

func (u *RoadUser) DoneReason() entity.DoneReason {
	return u.snapshot.DoneReason
}

// WaypointIndex 当前所在路点下标
func (u *RoadUser) WaypointIndex() int {
	return u.snapshot.Index
}

// Committed 是否已越过停止线承诺距离
func (u *RoadUser) Committed() bool {
	return u.snapshot.Committed
}

// Heading 朝向角度（屏幕坐标系，atan2(-dy,dx)-90）
// 说明：方向无法确定时返回最近一次的有效朝向
func (u *RoadUser) Heading() float64 {
	if dir, ok := u.Direction(); ok {
		return headingOf(dir)
	}
	return u.snapshot.Heading
}

func (u *RoadUser) TotalTime() float64 {
	return u.snapshot.TotalTime
}

func (u *RoadUser) WaitingTime() float64 {
	return u.snapshot.WaitingTime
}

func (u *RoadUser) StoppedTime() float64 {
	return u.snapshot.StoppedTime
}

func (u *RoadUser) String() string {
	return fmt.Sprintf("RoadUser{%d %s %s (%.1f,%.1f) %v}",
		u.id, u.className, u.path.Name(), u.snapshot.Pos.X, u.snapshot.Pos.Y, u.snapshot.Status)
}

func headingOf(dir r2.Vec) float64 {
	return math.Atan2(-dir.Y, dir.X)*180/math.Pi - 90
}

// direction 计算运行时数据对应的行驶方向
// 算法说明：
// 1. 驶离阶段使用驶离方向
// 2. 否则为指向下一个路点的方向；恰好位于下一路点上时取当前线段方向
func (u *RoadUser) direction(rt *runtime) (r2.Vec, bool) {
	if rt.Status == StatusDone {
		return r2.Vec{}, false
	}
	if rt.Status == StatusExiting || rt.Index >= u.path.Len()-1 {
		return rt.ExitDir, rt.ExitDirOk
	}
	target := u.path.Point(rt.Index + 1)
	if d := r2.Sub(target, rt.Pos); r2.Norm(d) > minMoveDistance {
		return r2.Unit(d), true
	}
	if d := r2.Sub(target, u.path.Point(rt.Index)); r2.Norm(d) > 0 {
		return r2.Unit(d), true
	}
	return r2.Vec{}, false
}

// liveView 本对象运行时数据的只读视图，供碰撞引擎在本步更新中使用
type liveView struct {
	*RoadUser
}

func (v liveView) Position() r2.Vec {
	return v.runtime.Pos
}

func (v liveView) Direction() (r2.Vec, bool) {
	return v.direction(&v.runtime)
}

func (v liveView) Done() bool {
	return v.runtime.Status == StatusDone
}
