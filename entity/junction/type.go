package junction

import (
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity/junction/trafficlight"
)

// 依赖倒置，表达外部（绘制、统计）对信号灯的只读需求

// 给绘制与统计提供的信号灯读取接口
type ITrafficLightGetter interface {
	Name() string                   // 信号灯名
	State() trafficlight.LightState // 当前灯色
	Elapsed() float64               // 当前灯色已持续时间
}

// Phase 路口相位
type Phase int

const (
	NsCarsGreen Phase = iota // 南北向机动车放行
	EwCarsGreen              // 东西向机动车放行
	NsPedBike                // 南北向行人与自行车放行
	EwPedBike                // 东西向行人与自行车放行
	numPhases
)

func (p Phase) String() string {
	switch p {
	case NsCarsGreen:
		return "ns_cars_green"
	case EwCarsGreen:
		return "ew_cars_green"
	case NsPedBike:
		return "ns_ped_bike"
	case EwPedBike:
		return "ew_ped_bike"
	default:
		return "unknown"
	}
}

// next 相位循环中的下一相位
func (p Phase) next() Phase {
	return (p + 1) % numPhases
}

// 生成器配置中使用的信号灯闸门名
const (
	GateCarsNS = "cars_ns"
	GateCarsEW = "cars_ew"
	GatePedNS  = "ped_ns"
	GatePedEW  = "ped_ew"
	GateAlways = "always"
)
