// 碰撞引擎：有朝向矩形的分离轴碰撞判定、跟车速度与紧急停车检查
package collision

import (
	"math"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils/config"
	"gonum.org/v1/gonum/spatial/r2"
)

var log = logrus.WithField("module", "collision")

const (
	// 起始方向的点积大于该值才视为同向（约45度以内）
	parallelDot = 0.7
	// 速度超过该值时放大紧急停车距离
	fastSpeed       = 100
	fastSpeedFactor = 1.5
)

// Engine 碰撞引擎
// 功能：按类别参数表为交通参与者构造碰撞外形，提供重叠、跟车与紧急停车判定
// 说明：只读取其他对象的快照，不修改任何对象
type Engine struct {
	rc *config.RuntimeConfig
}

// NewEngine 创建碰撞引擎
func NewEngine(rc *config.RuntimeConfig) *Engine {
	return &Engine{rc: rc}
}

// shape 碰撞外形：能构造矩形时使用矩形，否则回退为圆
type shape struct {
	rect   Rect
	isRect bool
	center r2.Vec
	radius float64
}

func (e *Engine) shapeOf(u entity.IRoadUser, at, heading r2.Vec, headingOk bool) shape {
	p, _ := e.rc.Class(u.ClassName())
	s := shape{center: at, radius: p.CollisionRadius}
	if headingOk {
		c := u.Class()
		s.rect, s.isRect = NewRect(at, heading, c.Width*p.RectScale, c.Length*p.RectScale)
	}
	return s
}

func (e *Engine) currentShape(u entity.IRoadUser) shape {
	dir, ok := u.Direction()
	return e.shapeOf(u, u.Position(), dir, ok)
}

func overlap(a, b shape) bool {
	if a.isRect && b.isRect {
		return Overlap(a.rect, b.rect)
	}
	return r2.Norm(r2.Sub(a.center, b.center)) < a.radius+b.radius
}

// Collides 两个对象当前的碰撞外形是否重叠
func (e *Engine) Collides(a, b entity.IRoadUser) bool {
	return overlap(e.currentShape(a), e.currentShape(b))
}

// Corners 对象当前碰撞矩形的角点，无法构造矩形时返回false
func (e *Engine) Corners(u entity.IRoadUser) ([4]r2.Vec, bool) {
	s := e.currentShape(u)
	if !s.isRect {
		return [4]r2.Vec{}, false
	}
	return s.rect.Corners(), true
}

// Overlapping 找出所有当前重叠的对象对（按ID排序，小ID在前）
func (e *Engine) Overlapping(users []entity.IRoadUser) [][2]int32 {
	live := lo.Filter(users, func(u entity.IRoadUser, _ int) bool { return !u.Done() })
	shapes := lo.Map(live, func(u entity.IRoadUser, _ int) shape { return e.currentShape(u) })
	var pairs [][2]int32
	for i := range live {
		for j := i + 1; j < len(live); j++ {
			if overlap(shapes[i], shapes[j]) {
				a, b := live[i].ID(), live[j].ID()
				if a > b {
					a, b = b, a
				}
				pairs = append(pairs, [2]int32{a, b})
			}
		}
	}
	return pairs
}

func others(self entity.IRoadUser, all []entity.IRoadUser) []entity.IRoadUser {
	return lo.Filter(all, func(o entity.IRoadUser, _ int) bool {
		return o != nil && !o.Done() && o.ID() != self.ID()
	})
}

// SameLane 同车道判定
// 功能：判断other是否与self行驶在同一车道上
// 算法说明：
// 1. 两条路线的起始方向需大致平行
// 2. other路线起点到self起始直线的横向距离不超过类别对的容差
// 3. 起始方向缺失时退化为比较起点距离
func (e *Engine) SameLane(self, other entity.IRoadUser) bool {
	tol := e.rc.LaneTolerance(self.ClassName(), other.ClassName())
	s0, ok1 := self.PathStart()
	o0, ok2 := other.PathStart()
	if !ok1 || !ok2 {
		return false
	}
	sd, ok1 := self.StartDirection()
	od, ok2 := other.StartDirection()
	if !ok1 || !ok2 {
		return r2.Norm(r2.Sub(o0, s0)) <= tol
	}
	if r2.Dot(sd, od) <= parallelDot {
		return false
	}
	d := r2.Sub(o0, s0)
	lateral := math.Abs(d.X*sd.Y - d.Y*sd.X)
	return lateral <= tol
}

// FindAhead 查找同车道前方最近的对象
// 参数：self-本对象，all-所有对象快照
// 返回：前方对象、距离、是否找到
func (e *Engine) FindAhead(self entity.IRoadUser, all []entity.IRoadUser) (entity.IRoadUser, float64, bool) {
	dir, ok := self.Direction()
	if !ok {
		return nil, 0, false
	}
	p, _ := e.rc.Class(self.ClassName())
	pos := self.Position()
	var (
		best     entity.IRoadUser
		bestDist = math.Inf(1)
	)
	for _, o := range others(self, all) {
		to := r2.Sub(o.Position(), pos)
		d := r2.Norm(to)
		if d > p.SearchDistance || d >= bestDist {
			continue
		}
		if r2.Dot(to, dir) <= 0 || !e.SameLane(self, o) {
			continue
		}
		best, bestDist = o, d
	}
	return best, bestDist, best != nil
}

// FollowingSpeedFactor 跟车速度系数
// 返回：前车距离不超过最小跟车距离时为0，否则为1
func (e *Engine) FollowingSpeedFactor(self entity.IRoadUser, all []entity.IRoadUser) float64 {
	_, d, ok := e.FindAhead(self, all)
	if !ok {
		return 1
	}
	p, _ := e.rc.Class(self.ClassName())
	if d <= p.MinFollowingDistance {
		return 0
	}
	return 1
}

// OverlapBlocked 严格重叠检查
// 功能：判断self移动到candidate后是否与任意对象的碰撞外形重叠
// 说明：若当前已与某对象重叠，且本次移动使两者中心距离增大，则允许移动以便脱离
func (e *Engine) OverlapBlocked(self entity.IRoadUser, candidate, heading r2.Vec, all []entity.IRoadUser) bool {
	headingOk := r2.Norm(heading) > 0
	next := e.shapeOf(self, candidate, heading, headingOk)
	cur := e.shapeOf(self, self.Position(), heading, headingOk)
	for _, o := range others(self, all) {
		os := e.currentShape(o)
		if !overlap(next, os) {
			continue
		}
		if overlap(cur, os) {
			op := o.Position()
			if r2.Norm(r2.Sub(candidate, op)) > r2.Norm(r2.Sub(self.Position(), op)) {
				continue
			}
		}
		log.Tracef("%d blocked by overlap with %d", self.ID(), o.ID())
		return true
	}
	return false
}

// EmergencyBlocked 紧急停车距离检查
// 功能：移动方向前方的对象与当前位置或目标位置的距离小于安全距离时禁止移动
// 参数：speed-本步实际速度，超过100时安全距离放大1.5倍
// 说明：同车道对象使用类别紧急停车距离，其他车道对象使用较小的平行车道距离
func (e *Engine) EmergencyBlocked(self entity.IRoadUser, candidate r2.Vec, speed float64, all []entity.IRoadUser) bool {
	cur := self.Position()
	move := r2.Sub(candidate, cur)
	if r2.Norm(move) == 0 {
		return false
	}
	dir := r2.Unit(move)
	p, _ := e.rc.Class(self.ClassName())
	for _, o := range others(self, all) {
		op := o.Position()
		to := r2.Sub(op, cur)
		if r2.Dot(to, dir) <= 0 {
			continue
		}
		safe := e.rc.W.ParallelLaneDistance
		if e.SameLane(self, o) {
			safe = p.EmergencyStopDistance
		}
		if speed > fastSpeed {
			safe *= fastSpeedFactor
		}
		if r2.Norm(to) < safe || r2.Norm(r2.Sub(op, candidate)) < safe {
			log.Tracef("%d emergency stop for %d", self.ID(), o.ID())
			return true
		}
	}
	return false
}
