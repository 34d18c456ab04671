package config

// InputPath 指定输入数据来源的配置（MongoDB、文件系统）
// 功能：定义路线表输入路径的配置结构，支持多种数据源
// 说明：File优先级高于MongoDB，均为空时使用内置路线表
type InputPath struct {
	DB   string `yaml:"db,omitempty"`   // 数据库名
	Col  string `yaml:"col,omitempty"`  // 集合名
	File string `yaml:"file,omitempty"` // 文件路径（优先级高于MongoDB）
}

// GetDb 获取数据库名
func (p InputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p InputPath) GetColl() string {
	return p.Col
}

// Input 指定模拟器所有输入数据的配置项
type Input struct {
	URI    string     `yaml:"uri,omitempty"`    // MongoDB连接字符串
	Routes *InputPath `yaml:"routes,omitempty"` // 归一化路线表
}

// MQTT 事件发布配置
// 说明：Broker为空时不发布
type MQTT struct {
	Broker   string `yaml:"broker,omitempty"`    // 例如 tcp://127.0.0.1:1883
	ClientID string `yaml:"client_id,omitempty"` // 为空时使用crossing-sim-<运行ID>
	Topic    string `yaml:"topic,omitempty"`     // 主题前缀，默认crossing
	QoS      byte   `yaml:"qos,omitempty"`
}

// Output 统计结果输出配置（可选）
// 说明：URI为空时只在日志中输出统计摘要
type Output struct {
	URI  string `yaml:"uri,omitempty"`  // MongoDB连接字符串
	DB   string `yaml:"db,omitempty"`   // 数据库名
	Col  string `yaml:"col,omitempty"`  // 集合名
	MQTT MQTT   `yaml:"mqtt,omitempty"` // 相位切换与统计摘要的MQTT发布
}

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
// 功能：定义仿真时间控制参数
// 说明：控制仿真的时间范围、步长和精度
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔（秒）
}

// Control 模拟器控制配置
type Control struct {
	Step           ControlStep `yaml:"step"`
	Seed           uint64      `yaml:"seed,omitempty"`             // 随机数种子
	MaxTotalAgents int         `yaml:"max_total_agents,omitempty"` // 同时存在的交通参与者上限
}

// World 画面与运动相关的全局配置
// 功能：定义画面尺寸、出画删除规则以及停止线判定等几何常量
// 说明：所有长度单位均为像素，时间单位为秒
type World struct {
	Width                float64 `yaml:"width"`                            // 画面宽度
	Height               float64 `yaml:"height"`                           // 画面高度
	DespawnBuffer        float64 `yaml:"despawn_buffer,omitempty"`         // 出画删除的额外缓冲
	FrameDespawnEnabled  *bool   `yaml:"frame_despawn_enabled,omitempty"`  // 是否启用出画删除
	CommitmentDistance   float64 `yaml:"commitment_distance,omitempty"`    // 越过停止线多远后不再检查信号灯
	WaypointTolerance    float64 `yaml:"waypoint_tolerance,omitempty"`     // 到达路点的判定距离
	ExitDistance         float64 `yaml:"exit_distance,omitempty"`          // 不启用出画删除时，驶离最后路点多远后删除
	StuckTimeout         float64 `yaml:"stuck_timeout,omitempty"`          // 因避撞连续停止多久后删除（负数表示不删除）
	ParallelLaneDistance float64 `yaml:"parallel_lane_distance,omitempty"` // 非同车道对象的紧急停车距离
}

// ClassParams 交通参与者类别参数
// 功能：每一类交通参与者的尺寸、速度与避撞参数
// 说明：对应配置文件中classes下的一行，未知类别回退到default行
type ClassParams struct {
	Width                       float64 `yaml:"width"`                         // 宽度（垂直于行驶方向）
	Length                      float64 `yaml:"length"`                        // 长度（沿行驶方向）
	Speed                       float64 `yaml:"speed"`                         // 默认速度（像素/秒）
	FollowingDistanceMultiplier float64 `yaml:"following_distance_multiplier"` // 生成安全距离倍率
	MinFollowingDistance        float64 `yaml:"min_following_distance"`        // 跟车最小距离，小于等于该距离时停车
	SearchDistance              float64 `yaml:"search_distance"`               // 前车搜索距离
	EmergencyStopDistance       float64 `yaml:"emergency_stop_distance"`       // 紧急停车距离
	CollisionRadius             float64 `yaml:"collision_radius"`              // 碰撞圆半径（矩形无法构造时的回退）
	RectScale                   float64 `yaml:"rect_scale"`                    // 碰撞矩形缩放
}

// LaneTolerancePair 类别对的同车道判定容差
type LaneTolerancePair struct {
	From      string  `yaml:"from"`      // 后车类别
	To        string  `yaml:"to"`        // 前车类别
	Tolerance float64 `yaml:"tolerance"` // 起点横向偏移容差
}

// Lanes 同车道判定配置
type Lanes struct {
	DefaultTolerance float64             `yaml:"default_tolerance,omitempty"`
	Pairs            []LaneTolerancePair `yaml:"pairs,omitempty"`
}

// LightTiming 单个信号灯的时长配置（秒）
type LightTiming struct {
	Green float64 `yaml:"green"`
	Amber float64 `yaml:"amber"`
	Red   float64 `yaml:"red"`
}

// Lights 信号灯时长配置，机动车灯与行人/自行车灯各一组
type Lights struct {
	Cars    LightTiming `yaml:"cars"`
	PedBike LightTiming `yaml:"ped_bike"`
}

// RouteWeight 生成器可选路线及其权重
type RouteWeight struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight,omitempty"` // 为0时视为1
}

// Spawner 单个生成器配置
// 功能：描述一个按时间间隔生成交通参与者的生成器
// 说明：Gate为信号灯闸门名（cars_ns|cars_ew|ped_ns|ped_ew|always）
type Spawner struct {
	Name         string        `yaml:"name"`
	Class        string        `yaml:"class"`
	Routes       []RouteWeight `yaml:"routes"`
	Gate         string        `yaml:"gate"`
	Interval     float64       `yaml:"interval"`
	Jitter       float64       `yaml:"jitter,omitempty"`
	MaxCount     int32         `yaml:"max_count,omitempty"` // <=0表示不限
	Speed        float64       `yaml:"speed,omitempty"`     // 为0时使用类别默认速度
	RerollJitter bool          `yaml:"reroll_jitter,omitempty"`
}

// Admission 生成准入与生成位置安全检查配置
type Admission struct {
	Radius           float64 `yaml:"radius,omitempty"`             // 起点附近统计半径
	MaxNearby        int     `yaml:"max_nearby,omitempty"`         // 起点附近同路线对象上限
	MinSpawnDistance float64 `yaml:"min_spawn_distance,omitempty"` // 生成点与已有对象的最小距离
}

// Config YAML配置文件的根结构
// 功能：定义整个仿真系统的配置结构
// 说明：包含输入、控制、画面、类别、信号灯、生成器等所有配置项
type Config struct {
	Input     Input                  `yaml:"input,omitempty"`     // 输入
	Output    Output                 `yaml:"output,omitempty"`    // 输出
	Control   Control                `yaml:"control"`             // 模拟过程控制
	World     World                  `yaml:"world"`               // 画面
	Classes   map[string]ClassParams `yaml:"classes,omitempty"`   // 类别参数，覆盖默认值
	Lanes     Lanes                  `yaml:"lanes,omitempty"`     // 同车道判定
	Lights    *Lights                `yaml:"lights,omitempty"`    // 信号灯时长，为空则使用默认值
	Admission Admission              `yaml:"admission,omitempty"` // 生成准入
	Spawners  []Spawner              `yaml:"spawners,omitempty"`  // 生成器，为空则使用默认值
}
