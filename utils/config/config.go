package config

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidStep    = errors.New("config: step interval must be positive")
	ErrInvalidWorld   = errors.New("config: world width and height must be positive")
	ErrInvalidClass   = errors.New("config: invalid class parameters")
	ErrInvalidLight   = errors.New("config: invalid light timing")
	ErrInvalidSpawner = errors.New("config: invalid spawner")
)

// RuntimeConfig 运行时配置
// 功能：存储仿真运行时的配置信息，所有缺省项已填充默认值
// 说明：构造后不再修改，以只读句柄的方式传给信号灯控制器、生成器与碰撞引擎
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置
	W   World   // 画面配置

	Lights    Lights
	Admission Admission
	Spawners  []Spawner

	classes        map[string]ClassParams
	laneTolerance  map[[2]string]float64
	defaultLaneTol float64
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：创建运行时配置对象，填充默认值并进行配置验证
// 参数：config-原始配置对象
// 返回：初始化的运行时配置指针，配置非法时返回错误
// 算法说明：
// 1. 复制原始配置
// 2. 对画面、类别表、信号灯、生成器等缺省项填充默认值
// 3. 构建类别对的同车道容差表
// 4. 校验所有数值的合法性
func NewRuntimeConfig(config Config) (*RuntimeConfig, error) {
	rc := &RuntimeConfig{
		All:            config,
		C:              config.Control,
		W:              config.World,
		Admission:      config.Admission,
		classes:        DefaultClasses(),
		laneTolerance:  make(map[[2]string]float64),
		defaultLaneTol: config.Lanes.DefaultTolerance,
	}

	// 画面
	if rc.W.DespawnBuffer == 0 {
		rc.W.DespawnBuffer = defaultDespawnBuffer
	}
	if rc.W.FrameDespawnEnabled == nil {
		enabled := true
		rc.W.FrameDespawnEnabled = &enabled
	}
	if rc.W.CommitmentDistance == 0 {
		rc.W.CommitmentDistance = defaultCommitmentDistance
	}
	if rc.W.WaypointTolerance == 0 {
		rc.W.WaypointTolerance = defaultWaypointTolerance
	}
	if rc.W.ExitDistance == 0 {
		rc.W.ExitDistance = defaultExitDistance
	}
	if rc.W.StuckTimeout == 0 {
		rc.W.StuckTimeout = defaultStuckTimeout
	}
	if rc.W.ParallelLaneDistance == 0 {
		rc.W.ParallelLaneDistance = defaultParallelLaneDistance
	}
	if rc.C.MaxTotalAgents == 0 {
		rc.C.MaxTotalAgents = defaultMaxTotalAgents
	}

	// 类别表：配置文件中的行整体覆盖默认行
	for name, p := range config.Classes {
		rc.classes[name] = p
	}

	// 同车道容差
	if rc.defaultLaneTol == 0 {
		rc.defaultLaneTol = defaultLaneTolerance
	}
	pairs := config.Lanes.Pairs
	if pairs == nil {
		pairs = DefaultLanePairs()
	}
	for _, p := range pairs {
		rc.laneTolerance[[2]string{p.From, p.To}] = p.Tolerance
	}

	// 信号灯
	if config.Lights != nil {
		rc.Lights = *config.Lights
	} else {
		rc.Lights = DefaultLights()
	}

	// 生成准入
	if rc.Admission.Radius == 0 {
		rc.Admission.Radius = defaultAdmissionRadius
	}
	if rc.Admission.MaxNearby == 0 {
		rc.Admission.MaxNearby = defaultAdmissionMaxNearby
	}
	if rc.Admission.MinSpawnDistance == 0 {
		rc.Admission.MinSpawnDistance = defaultMinSpawnDistance
	}

	// 生成器
	if config.Spawners != nil {
		rc.Spawners = config.Spawners
	} else {
		rc.Spawners = DefaultSpawners()
	}

	if err := rc.validate(); err != nil {
		return nil, err
	}
	return rc, nil
}

// validate 校验运行时配置
func (rc *RuntimeConfig) validate() error {
	if rc.C.Step.Interval <= 0 {
		return ErrInvalidStep
	}
	if rc.W.Width <= 0 || rc.W.Height <= 0 {
		return ErrInvalidWorld
	}
	for name, p := range rc.classes {
		if p.Width <= 0 || p.Length <= 0 || p.Speed < 0 || p.RectScale <= 0 {
			return fmt.Errorf("%w: class %q (%+v)", ErrInvalidClass, name, p)
		}
		if p.MinFollowingDistance < 0 || p.SearchDistance < 0 || p.EmergencyStopDistance < 0 {
			return fmt.Errorf("%w: class %q has negative distance", ErrInvalidClass, name)
		}
	}
	for name, t := range map[string]LightTiming{"cars": rc.Lights.Cars, "ped_bike": rc.Lights.PedBike} {
		if t.Green <= 0 || t.Amber < 0 || t.Red < 0 {
			return fmt.Errorf("%w: %s %+v", ErrInvalidLight, name, t)
		}
	}
	for _, s := range rc.Spawners {
		if s.Interval <= 0 {
			return fmt.Errorf("%w: %q interval must be positive", ErrInvalidSpawner, s.Name)
		}
		if s.Jitter < 0 || s.Jitter >= s.Interval {
			return fmt.Errorf("%w: %q jitter must be in [0, interval)", ErrInvalidSpawner, s.Name)
		}
		if len(s.Routes) == 0 {
			return fmt.Errorf("%w: %q has no route", ErrInvalidSpawner, s.Name)
		}
	}
	return nil
}

// Class 查询类别参数
// 功能：按类别名返回参数行，未知类别回退到default行
// 返回：类别参数与是否命中
func (rc *RuntimeConfig) Class(name string) (ClassParams, bool) {
	if p, ok := rc.classes[name]; ok {
		return p, true
	}
	return rc.classes[ClassDefault], false
}

// LaneTolerance 查询类别对的同车道容差
// 参数：from-本车类别，to-前车类别
func (rc *RuntimeConfig) LaneTolerance(from, to string) float64 {
	if t, ok := rc.laneTolerance[[2]string{from, to}]; ok {
		return t
	}
	return rc.defaultLaneTol
}

// FrameDespawnEnabled 是否启用出画删除
func (rc *RuntimeConfig) FrameDespawnEnabled() bool {
	return rc.W.FrameDespawnEnabled != nil && *rc.W.FrameDespawnEnabled
}
