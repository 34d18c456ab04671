package collision

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils/config"
	"gonum.org/v1/gonum/spatial/r2"
)

type fakeUser struct {
	id       int32
	class    string
	pos      r2.Vec
	dir      r2.Vec
	start    r2.Vec
	startDir r2.Vec
	done     bool
}

func (u *fakeUser) ID() int32 { return u.id }
func (u *fakeUser) Class() entity.VehicleClass {
	p := config.DefaultClasses()[u.class]
	return entity.VehicleClass{Kind: entity.ParseClassKind(u.class), Width: p.Width, Length: p.Length}
}
func (u *fakeUser) ClassName() string              { return u.class }
func (u *fakeUser) Position() r2.Vec               { return u.pos }
func (u *fakeUser) Direction() (r2.Vec, bool)      { return u.dir, r2.Norm(u.dir) > 0 }
func (u *fakeUser) PathStart() (r2.Vec, bool)      { return u.start, true }
func (u *fakeUser) StartDirection() (r2.Vec, bool) { return u.startDir, r2.Norm(u.startDir) > 0 }
func (u *fakeUser) Speed() float64                 { return 100 }
func (u *fakeUser) Done() bool                     { return u.done }

var up = r2.Vec{X: 0, Y: -1}

// northbound 从原点出发向上行驶的对象
func northbound(id int32, class string, x, y float64) *fakeUser {
	return &fakeUser{id: id, class: class, pos: r2.Vec{X: x, Y: y}, dir: up, start: r2.Vec{X: x}, startDir: up}
}

func newEngine(t *testing.T) *Engine {
	rc, err := config.NewRuntimeConfig(config.Default())
	require.NoError(t, err)
	return NewEngine(rc)
}

func TestRectOverlapSymmetric(t *testing.T) {
	cases := []struct {
		a, b Rect
	}{}
	mk := func(cx, cy, angle, w, l float64) Rect {
		r, ok := NewRect(r2.Vec{X: cx, Y: cy}, r2.Vec{X: math.Cos(angle), Y: math.Sin(angle)}, w, l)
		require.True(t, ok)
		return r
	}
	for i := 0; i < 20; i++ {
		a := mk(0, 0, float64(i)*0.3, 20, 40)
		b := mk(float64(i)*3, float64(i)*1.5, float64(i)*0.7, 10, 30)
		cases = append(cases, struct{ a, b Rect }{a, b})
	}
	for _, c := range cases {
		assert.Equal(t, Overlap(c.a, c.b), Overlap(c.b, c.a))
	}
}

func TestRectOverlapExact(t *testing.T) {
	a, _ := NewRect(r2.Vec{}, up, 10, 20)
	assert.True(t, Overlap(a, a))

	far, _ := NewRect(r2.Vec{X: 1000, Y: 1000}, up, 10, 20)
	assert.False(t, Overlap(a, far))

	// 宽10，中心相距10即边缘相接
	touching, _ := NewRect(r2.Vec{X: 10}, up, 10, 20)
	assert.False(t, Overlap(a, touching))
	overlapping, _ := NewRect(r2.Vec{X: 9.9}, up, 10, 20)
	assert.True(t, Overlap(a, overlapping))

	// 旋转45度的正方形与轴对齐正方形：包围盒相交但实际分离
	diamond, _ := NewRect(r2.Vec{X: 11, Y: 11}, r2.Vec{X: 1, Y: 1}, 10, 10)
	square, _ := NewRect(r2.Vec{}, up, 10, 10)
	assert.False(t, Overlap(square, diamond))

	_, ok := NewRect(r2.Vec{}, r2.Vec{}, 10, 10)
	assert.False(t, ok)
}

func TestCorners(t *testing.T) {
	e := newEngine(t)
	c := northbound(1, config.ClassCar, 0, 0)
	corners, ok := e.Corners(c)
	require.True(t, ok)
	for _, p := range corners {
		// 小汽车碰撞矩形为 25 x 40
		assert.InDelta(t, 12.5, math.Abs(p.X), 1e-9)
		assert.InDelta(t, 20, math.Abs(p.Y), 1e-9)
	}
}

func TestCircleFallback(t *testing.T) {
	e := newEngine(t)
	a := &fakeUser{id: 1, class: config.ClassCar}
	b := &fakeUser{id: 2, class: config.ClassCar, pos: r2.Vec{X: 40}}
	assert.True(t, e.Collides(a, b))
	b.pos = r2.Vec{X: 50}
	assert.False(t, e.Collides(a, b))
}

func TestFollowingSpeedBinary(t *testing.T) {
	e := newEngine(t)
	self := northbound(1, config.ClassCar, 0, 0)

	ahead := northbound(2, config.ClassCar, 0, -40)
	ahead.start = r2.Vec{}
	assert.Equal(t, 0.0, e.FollowingSpeedFactor(self, []entity.IRoadUser{self, ahead}))

	ahead.pos = r2.Vec{Y: -44}
	assert.Equal(t, 0.0, e.FollowingSpeedFactor(self, []entity.IRoadUser{self, ahead}))

	ahead.pos = r2.Vec{Y: -60}
	assert.Equal(t, 1.0, e.FollowingSpeedFactor(self, []entity.IRoadUser{self, ahead}))

	// 超出搜索距离
	ahead.pos = r2.Vec{Y: -100}
	assert.Equal(t, 1.0, e.FollowingSpeedFactor(self, []entity.IRoadUser{self, ahead}))

	// 在后方
	ahead.pos = r2.Vec{Y: 20}
	assert.Equal(t, 1.0, e.FollowingSpeedFactor(self, []entity.IRoadUser{self, ahead}))

	// 已结束的对象不参与
	ahead.pos = r2.Vec{Y: -20}
	ahead.done = true
	assert.Equal(t, 1.0, e.FollowingSpeedFactor(self, []entity.IRoadUser{self, ahead}))

	assert.Equal(t, 1.0, e.FollowingSpeedFactor(self, nil))
}

func TestFindAheadNearest(t *testing.T) {
	e := newEngine(t)
	self := northbound(1, config.ClassTruck, 0, 0)
	a := northbound(2, config.ClassCar, 0, -150)
	b := northbound(3, config.ClassCar, 0, -90)
	for _, u := range []*fakeUser{a, b} {
		u.start = r2.Vec{}
	}
	found, d, ok := e.FindAhead(self, []entity.IRoadUser{a, self, b})
	require.True(t, ok)
	assert.Equal(t, int32(3), found.ID())
	assert.InDelta(t, 90, d, 1e-9)
}

func TestSameLane(t *testing.T) {
	e := newEngine(t)
	car := northbound(1, config.ClassCar, 563, 700)
	car.start = r2.Vec{X: 563, Y: 844}

	other := northbound(2, config.ClassCar, 563, 600)
	other.start = r2.Vec{X: 563, Y: 844}
	assert.True(t, e.SameLane(car, other))

	// 自行车道横向偏移51，超过容差
	bike := northbound(3, config.ClassCyclist, 614, 600)
	bike.start = r2.Vec{X: 614, Y: 844}
	assert.False(t, e.SameLane(car, bike))

	// 快车对慢车使用更严格的容差
	bike.start = r2.Vec{X: 593, Y: 844}
	assert.False(t, e.SameLane(car, bike))
	assert.True(t, e.SameLane(bike, car))

	// 起始方向垂直
	cross := &fakeUser{id: 4, class: config.ClassCar, start: r2.Vec{X: 563, Y: 844}, startDir: r2.Vec{X: 1}}
	assert.False(t, e.SameLane(car, cross))
}

func TestSameLaneAlongLaneOffset(t *testing.T) {
	e := newEngine(t)
	// 卡车路线起点沿车道方向后移102，横向偏移为0
	car := &fakeUser{id: 1, class: config.ClassCar, start: r2.Vec{X: -102, Y: 422}, startDir: r2.Vec{X: 1}}
	truck := &fakeUser{id: 2, class: config.ClassTruck, start: r2.Vec{X: -204, Y: 422}, startDir: r2.Vec{X: 1}}
	assert.True(t, e.SameLane(car, truck))
	assert.True(t, e.SameLane(truck, car))

	// 沿车道偏移再大也不影响，横向偏移超过容差则不是同车道
	truck.start = r2.Vec{X: -900, Y: 422}
	assert.True(t, e.SameLane(car, truck))
	truck.start = r2.Vec{X: -204, Y: 480}
	assert.False(t, e.SameLane(car, truck))
}

func TestEmergencyBlocked(t *testing.T) {
	e := newEngine(t)
	self := northbound(1, config.ClassCar, 0, 0)
	step := r2.Vec{Y: -100.0 / 60}

	front := northbound(2, config.ClassCar, 0, -30)
	front.start = r2.Vec{}
	assert.True(t, e.EmergencyBlocked(self, step, 100, []entity.IRoadUser{self, front}))

	front.pos = r2.Vec{Y: -45}
	assert.False(t, e.EmergencyBlocked(self, step, 100, []entity.IRoadUser{front}))
	// 高速时安全距离放大1.5倍
	assert.True(t, e.EmergencyBlocked(self, step, 130, []entity.IRoadUser{front}))

	// 后方对象不阻挡
	front.pos = r2.Vec{Y: 10}
	assert.False(t, e.EmergencyBlocked(self, step, 100, []entity.IRoadUser{front}))

	// 其他车道使用平行车道距离25
	side := northbound(3, config.ClassCar, 10, -20)
	side.start = r2.Vec{X: 100}
	assert.True(t, e.EmergencyBlocked(self, step, 100, []entity.IRoadUser{side}))
	side.pos = r2.Vec{X: 30, Y: -20}
	assert.False(t, e.EmergencyBlocked(self, step, 100, []entity.IRoadUser{side}))

	// 原地不动不检查
	assert.False(t, e.EmergencyBlocked(self, r2.Vec{}, 100, []entity.IRoadUser{front}))
}

func TestOverlapBlockedEscape(t *testing.T) {
	e := newEngine(t)
	self := northbound(1, config.ClassCar, 0, 0)
	other := northbound(2, config.ClassCar, 0, -20)
	all := []entity.IRoadUser{self, other}
	require.True(t, e.Collides(self, other))

	assert.False(t, e.OverlapBlocked(self, r2.Vec{Y: 2}, up, all))
	assert.True(t, e.OverlapBlocked(self, r2.Vec{Y: -2}, up, all))

	other.pos = r2.Vec{Y: -42}
	assert.True(t, e.OverlapBlocked(self, r2.Vec{Y: -3}, up, all))
	assert.False(t, e.OverlapBlocked(self, r2.Vec{Y: -1}, up, all))
}

func TestOverlapping(t *testing.T) {
	e := newEngine(t)
	a := northbound(5, config.ClassCar, 0, 0)
	b := northbound(2, config.ClassCar, 0, -30)
	c := northbound(3, config.ClassCar, 300, 0)
	d := northbound(4, config.ClassCar, 0, -10)
	d.done = true
	pairs := e.Overlapping([]entity.IRoadUser{a, b, c, d})
	assert.Equal(t, [][2]int32{{2, 5}}, pairs)
}
