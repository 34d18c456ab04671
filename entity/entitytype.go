package entity

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// ClassKind 交通参与者类别
type ClassKind int32

const (
	ClassUnknown ClassKind = iota
	ClassCar
	ClassTruck
	ClassCyclist
	ClassPedestrian
)

var classNames = map[ClassKind]string{
	ClassUnknown:    "default",
	ClassCar:        "car",
	ClassTruck:      "truck",
	ClassCyclist:    "cyclist",
	ClassPedestrian: "pedestrian",
}

func (k ClassKind) String() string {
	if s, ok := classNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ClassKind(%d)", int32(k))
}

// ParseClassKind 根据类别名解析类别，未知类别返回ClassUnknown
func ParseClassKind(name string) ClassKind {
	switch name {
	case "car":
		return ClassCar
	case "truck":
		return ClassTruck
	case "cyclist", "bike", "bicycle":
		return ClassCyclist
	case "pedestrian", "ped":
		return ClassPedestrian
	default:
		return ClassUnknown
	}
}

// VehicleClass 交通参与者类别与外形尺寸
// 说明：尺寸在构造时确定，之后不再变化
type VehicleClass struct {
	Kind   ClassKind
	Width  float64 // 垂直于行驶方向
	Length float64 // 沿行驶方向
}

// Footprint 外形尺寸（宽、长）
func (c VehicleClass) Footprint() (width, length float64) {
	return c.Width, c.Length
}

// Size 外形的最大边长，用于出画缓冲与生成安全距离
func (c VehicleClass) Size() float64 {
	if c.Width > c.Length {
		return c.Width
	}
	return c.Length
}

func (c VehicleClass) String() string {
	return fmt.Sprintf("%v(%.0fx%.0f)", c.Kind, c.Width, c.Length)
}

// CrossingPredicate 信号灯通行判定回调，由调用方绑定到控制器的某一个查询上
type CrossingPredicate func() bool

// AlwaysCross 无信号灯约束
func AlwaysCross() bool { return true }

// DoneReason 交通参与者结束原因
type DoneReason int32

const (
	DoneReasonNone DoneReason = iota
	DoneReasonFrameExit
	DoneReasonPathCompleted
	DoneReasonCollision
)

func (r DoneReason) String() string {
	switch r {
	case DoneReasonNone:
		return "none"
	case DoneReasonFrameExit:
		return "frame_exit"
	case DoneReasonPathCompleted:
		return "path_completed"
	case DoneReasonCollision:
		return "collision"
	default:
		return fmt.Sprintf("DoneReason(%d)", int32(r))
	}
}

// entity/roaduser/roaduser.go的依赖倒置
// 碰撞引擎只通过该接口读取其他交通参与者的状态
type IRoadUser interface {
	ID() int32                      // 唯一ID
	Class() VehicleClass            // 类别与尺寸
	ClassName() string              // 类别参数表中的行名
	Position() r2.Vec               // 当前位置
	Direction() (r2.Vec, bool)      // 当前行驶方向（单位向量），无法确定时返回false
	PathStart() (r2.Vec, bool)      // 路线起点
	StartDirection() (r2.Vec, bool) // 路线第一段的方向（单位向量）
	Speed() float64                 // 期望速度
	Done() bool                     // 是否已结束
}
