package config

// 默认类别名
const (
	ClassCar        = "car"
	ClassTruck      = "truck"
	ClassCyclist    = "cyclist"
	ClassPedestrian = "pedestrian"
	ClassDefault    = "default"
)

// 默认几何常量
const (
	defaultWidth                = 1024
	defaultHeight               = 768
	defaultDespawnBuffer        = 50
	defaultCommitmentDistance   = 30
	defaultWaypointTolerance    = 5
	defaultExitDistance         = 100
	defaultStuckTimeout         = 60
	defaultParallelLaneDistance = 25
	defaultLaneTolerance        = 50
	defaultFastLaneTolerance    = 20
	defaultMaxTotalAgents       = 30
	defaultAdmissionRadius      = 180
	defaultAdmissionMaxNearby   = 3
	defaultMinSpawnDistance     = 60
)

// DefaultClasses 默认类别参数表
// 说明：default行用于未知类别
func DefaultClasses() map[string]ClassParams {
	return map[string]ClassParams{
		ClassCar: {
			Width: 50, Length: 80, Speed: 100,
			FollowingDistanceMultiplier: 4.4,
			MinFollowingDistance:        44,
			SearchDistance:              88,
			EmergencyStopDistance:       33,
			CollisionRadius:             22,
			RectScale:                   0.5,
		},
		ClassTruck: {
			Width: 36, Length: 84, Speed: 80,
			FollowingDistanceMultiplier: 5.5,
			MinFollowingDistance:        88,
			SearchDistance:              220,
			EmergencyStopDistance:       72,
			CollisionRadius:             35,
			RectScale:                   0.9,
		},
		ClassCyclist: {
			Width: 24, Length: 40, Speed: 60,
			FollowingDistanceMultiplier: 1.7,
			MinFollowingDistance:        55,
			SearchDistance:              110,
			EmergencyStopDistance:       39,
			CollisionRadius:             12,
			RectScale:                   0.8,
		},
		ClassPedestrian: {
			Width: 18, Length: 22, Speed: 40,
			FollowingDistanceMultiplier: 0.9,
			MinFollowingDistance:        28,
			SearchDistance:              88,
			EmergencyStopDistance:       22,
			CollisionRadius:             11,
			RectScale:                   0.8,
		},
		ClassDefault: {
			Width: 40, Length: 60, Speed: 60,
			FollowingDistanceMultiplier: 1.7,
			MinFollowingDistance:        66,
			SearchDistance:              165,
			EmergencyStopDistance:       28,
			CollisionRadius:             25,
			RectScale:                   0.9,
		},
	}
}

// DefaultLanePairs 快车对慢车的严格同车道容差
func DefaultLanePairs() []LaneTolerancePair {
	return []LaneTolerancePair{
		{From: ClassCar, To: ClassCyclist, Tolerance: defaultFastLaneTolerance},
		{From: ClassTruck, To: ClassCyclist, Tolerance: defaultFastLaneTolerance},
		{From: ClassCar, To: ClassPedestrian, Tolerance: defaultFastLaneTolerance},
		{From: ClassTruck, To: ClassPedestrian, Tolerance: defaultFastLaneTolerance},
	}
}

// DefaultLights 默认信号灯时长
func DefaultLights() Lights {
	return Lights{
		Cars:    LightTiming{Green: 8, Amber: 2, Red: 10},
		PedBike: LightTiming{Green: 6, Amber: 0.5, Red: 13.5},
	}
}

// DefaultSpawners 默认生成器，路线名对应route.DefaultTable
func DefaultSpawners() []Spawner {
	return []Spawner{
		{
			Name: "car_ns", Class: ClassCar, Gate: "cars_ns",
			Routes:   []RouteWeight{{Name: "cars_ns_up"}, {Name: "cars_ns_left"}, {Name: "cars_ns_right"}},
			Interval: 3, Jitter: 1, MaxCount: 50,
		},
		{
			Name: "car_ew", Class: ClassCar, Gate: "cars_ew", Speed: 130,
			Routes:   []RouteWeight{{Name: "cars_ew_right"}, {Name: "cars_ew_left"}, {Name: "cars_ew_turn_right"}},
			Interval: 4, Jitter: 1.5, MaxCount: 50,
		},
		{
			Name: "truck_ew", Class: ClassTruck, Gate: "cars_ew", Speed: 100,
			Routes:   []RouteWeight{{Name: "trucks_ew_right"}, {Name: "trucks_ew_left"}, {Name: "trucks_ew_turn_right"}},
			Interval: 8, Jitter: 2, MaxCount: 20,
		},
		{
			Name: "bike_ns", Class: ClassCyclist, Gate: "ped_ns", Speed: 90,
			Routes:   []RouteWeight{{Name: "bikes_ns_up"}},
			Interval: 5, Jitter: 1, MaxCount: 30,
		},
		{
			Name: "ped_ew", Class: ClassPedestrian, Gate: "ped_ew", Speed: 70,
			Routes:   []RouteWeight{{Name: "peds_ew_right"}},
			Interval: 4, Jitter: 1, MaxCount: 40,
		},
	}
}

// Default 返回一份完整的默认配置
// 说明：主要用于测试与未提供配置文件时的演示运行
func Default() Config {
	lights := DefaultLights()
	return Config{
		Control: Control{
			Step: ControlStep{Start: 0, Total: 60 * 120, Interval: 1.0 / 60},
			Seed: 1,
		},
		World: World{
			Width:  defaultWidth,
			Height: defaultHeight,
		},
		Lights:   &lights,
		Spawners: DefaultSpawners(),
	}
}
