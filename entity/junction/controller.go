// 单路口四相位信号控制
// 相位顺序：南北机动车 -> 东西机动车 -> 南北行人/自行车 -> 东西行人/自行车 -> ...
package junction

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils/config"
)

var log = logrus.WithField("module", "junction")

var (
	ErrUnknownGate = errors.New("junction: unknown gate")
)

// Controller 路口信号控制器
// 功能：持有四组信号灯并按固定相位循环驱动，向交通参与者提供放行查询
// 说明：任意时刻最多只有一组信号灯不是红灯；相位切换只通过enterPhase完成
type Controller struct {
	carsNS *trafficlight.TrafficLight
	carsEW *trafficlight.TrafficLight
	pedNS  *trafficlight.TrafficLight
	pedEW  *trafficlight.TrafficLight

	phase       Phase
	phaseCount  int // 已进入过的相位数（含初始相位）
	onPhaseFunc func(Phase)
}

// NewController 创建信号控制器
// 功能：按配时创建四组信号灯，并进入南北机动车放行相位
// 参数：lights-机动车与行人/自行车两类配时
func NewController(lights config.Lights) *Controller {
	cars := trafficlight.Timing(lights.Cars)
	ped := trafficlight.Timing(lights.PedBike)
	c := &Controller{
		carsNS: trafficlight.New(GateCarsNS, cars, false),
		carsEW: trafficlight.New(GateCarsEW, cars, false),
		pedNS:  trafficlight.New(GatePedNS, ped, false),
		pedEW:  trafficlight.New(GatePedEW, ped, false),
	}
	c.enterPhase(NsCarsGreen)
	return c
}

// OnPhase 注册相位切换回调（用于统计）
func (c *Controller) OnPhase(f func(Phase)) {
	c.onPhaseFunc = f
}

func (c *Controller) all() []*trafficlight.TrafficLight {
	return []*trafficlight.TrafficLight{c.carsNS, c.carsEW, c.pedNS, c.pedEW}
}

// enterPhase 进入相位
// 功能：所有信号灯置红并清零计时，再将该相位对应的信号灯置绿
func (c *Controller) enterPhase(phase Phase) {
	c.phase = phase
	c.phaseCount++
	for _, l := range c.all() {
		l.SetState(trafficlight.Red, true)
	}
	c.active().SetState(trafficlight.Green, true)
	log.Debugf("enter phase %v", phase)
	if c.onPhaseFunc != nil {
		c.onPhaseFunc(phase)
	}
}

// active 当前相位放行的信号灯
func (c *Controller) active() *trafficlight.TrafficLight {
	switch c.phase {
	case NsCarsGreen:
		return c.carsNS
	case EwCarsGreen:
		return c.carsEW
	case NsPedBike:
		return c.pedNS
	default:
		return c.pedEW
	}
}

// Update 更新阶段
// 功能：推进所有信号灯计时，再根据当前相位的放行灯判断是否切换
// 参数：dt-时间步长
// 算法说明：
// 1. 机动车相位：绿灯满green后转黄（不清零计时），计时满green+amber后进入下一相位
// 2. 行人/自行车相位：没有黄灯，绿灯满green后直接进入下一相位
func (c *Controller) Update(dt float64) {
	for _, l := range c.all() {
		l.Update(dt)
	}
	l := c.active()
	t := l.Timing()
	switch c.phase {
	case NsCarsGreen, EwCarsGreen:
		if l.State() == trafficlight.Green && l.Elapsed() >= t.Green {
			l.SetState(trafficlight.Amber, false)
		} else if l.State() == trafficlight.Amber && l.Elapsed() >= t.Green+t.Amber {
			c.enterPhase(c.phase.next())
		}
	case NsPedBike, EwPedBike:
		if l.Elapsed() >= t.Green {
			c.enterPhase(c.phase.next())
		}
	}
}

func (c *Controller) Phase() Phase {
	return c.phase
}

// PhaseCount 已进入过的相位数
func (c *Controller) PhaseCount() int {
	return c.phaseCount
}

func (c *Controller) CanCarsCrossNS() bool {
	return c.carsNS.IsGreen()
}

func (c *Controller) CanCarsCrossEW() bool {
	return c.carsEW.IsGreen()
}

func (c *Controller) CanPedCrossNS() bool {
	return c.pedNS.IsGreen()
}

func (c *Controller) CanPedCrossEW() bool {
	return c.pedEW.IsGreen()
}

// Predicate 按闸门名返回绑定的放行判断函数
// 参数：gate-闸门名（cars_ns|cars_ew|ped_ns|ped_ew|always）
// 返回：放行判断函数，闸门名未知时返回错误
func (c *Controller) Predicate(gate string) (entity.CrossingPredicate, error) {
	switch gate {
	case GateCarsNS:
		return c.CanCarsCrossNS, nil
	case GateCarsEW:
		return c.CanCarsCrossEW, nil
	case GatePedNS:
		return c.CanPedCrossNS, nil
	case GatePedEW:
		return c.CanPedCrossEW, nil
	case GateAlways, "":
		return entity.AlwaysCross, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGate, gate)
	}
}

// Lights 按固定顺序（cars_ns, cars_ew, ped_ns, ped_ew）返回信号灯只读视图
func (c *Controller) Lights() []ITrafficLightGetter {
	return []ITrafficLightGetter{c.carsNS, c.carsEW, c.pedNS, c.pedEW}
}
