// 单个信号灯头：保存当前灯色与计时
// 受路口控制器驱动时不自行切换；独立使用时可开启自动循环（红->绿->黄->红）
package trafficlight

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "trafficlight")

// LightState 灯色
type LightState int

const (
	Red LightState = iota
	Amber
	Green
)

func (s LightState) String() string {
	switch s {
	case Red:
		return "red"
	case Amber:
		return "amber"
	case Green:
		return "green"
	default:
		return fmt.Sprintf("LightState(%d)", int(s))
	}
}

// Timing 各灯色持续时间（秒）
type Timing struct {
	Green float64
	Amber float64
	Red   float64
}

// TrafficLight 信号灯
// 功能：记录灯色与该灯色已持续时间，供控制器判断相位切换
type TrafficLight struct {
	name      string
	timing    Timing
	state     LightState
	elapsed   float64 // 自上一次重置以来经过的时间
	autoCycle bool    // 是否按自身配时自动循环
}

// New 创建信号灯，初始为红灯
// 参数：name-名称（仅用于日志），timing-配时，autoCycle-是否自动循环
func New(name string, timing Timing, autoCycle bool) *TrafficLight {
	return &TrafficLight{
		name:      name,
		timing:    timing,
		state:     Red,
		autoCycle: autoCycle,
	}
}

// SetState 设置灯色
// 参数：state-目标灯色，reset-是否清零计时
// 说明：绿转黄时控制器不清零计时，黄灯结束时刻按green+amber判断
func (l *TrafficLight) SetState(state LightState, reset bool) {
	if l.state != state {
		log.Debugf("%s: %v -> %v at %.2fs", l.name, l.state, state, l.elapsed)
	}
	l.state = state
	if reset {
		l.elapsed = 0
	}
}

// Update 推进计时
// 功能：累加计时；开启自动循环时按配时切换灯色
func (l *TrafficLight) Update(dt float64) {
	l.elapsed += dt
	if !l.autoCycle {
		return
	}
	switch {
	case l.state == Red && l.elapsed >= l.timing.Red:
		l.SetState(Green, true)
	case l.state == Green && l.elapsed >= l.timing.Green:
		l.SetState(Amber, true)
	case l.state == Amber && l.elapsed >= l.timing.Amber:
		l.SetState(Red, true)
	}
}

func (l *TrafficLight) Name() string {
	return l.name
}

func (l *TrafficLight) State() LightState {
	return l.state
}

func (l *TrafficLight) Elapsed() float64 {
	return l.elapsed
}

func (l *TrafficLight) Timing() Timing {
	return l.timing
}

func (l *TrafficLight) IsGreen() bool {
	return l.state == Green
}

func (l *TrafficLight) String() string {
	return fmt.Sprintf("%s[%v %.2fs]", l.name, l.state, l.elapsed)
}
