package input

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity/route"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"gopkg.in/yaml.v2"
)

var log = logrus.WithField("module", "input")

var (
	ErrEmptyRoute     = errors.New("input: route has no points")
	ErrDuplicateRoute = errors.New("input: duplicated route name")
	ErrBadPoint       = errors.New("input: route point must be [x, y] with finite values")
)

// RouteDoc 路线表中的一条路线（文件与MongoDB文档共用）
type RouteDoc struct {
	Name   string      `yaml:"name" bson:"name"`
	Points [][]float64 `yaml:"points" bson:"points"` // 归一化坐标 [x, y]
}

// routeFile 路线文件的根结构
type routeFile struct {
	Routes []RouteDoc `yaml:"routes"`
}

// Input 输入数据
// 功能：存储仿真所需的归一化路线表
type Input struct {
	Routes route.Table
	Source string // 数据来源，仅用于日志
}

// Init 加载输入数据
// 功能：按配置加载路线表
// 参数：c-配置对象
// 返回：输入数据，加载失败时返回错误
// 算法说明：
// 1. 配置了routes.file时从YAML文件加载
// 2. 否则配置了input.uri与routes.db/col时从MongoDB加载
// 3. 否则使用内置路线表
func Init(c config.Config) (*Input, error) {
	p := c.Input.Routes
	switch {
	case p != nil && p.File != "":
		table, err := LoadRouteFile(p.File)
		if err != nil {
			return nil, err
		}
		return &Input{Routes: table, Source: p.File}, nil
	case p != nil && c.Input.URI != "" && p.GetDb() != "" && p.GetColl() != "":
		client, err := utils.NewMongoClient(c.Input.URI)
		if err != nil {
			return nil, err
		}
		defer client.Disconnect(context.Background())
		ctx, cancel := context.WithTimeout(context.Background(), utils.MongoTimeout())
		defer cancel()
		table, err := LoadRouteColl(ctx, utils.GetMongoColl(client, p.GetDb(), p.GetColl()))
		if err != nil {
			return nil, err
		}
		return &Input{Routes: table, Source: fmt.Sprintf("mongo %s.%s", p.GetDb(), p.GetColl())}, nil
	default:
		return &Input{Routes: route.DefaultTable(), Source: "builtin"}, nil
	}
}

// LoadRouteFile 从YAML文件加载路线表
func LoadRouteFile(path string) (route.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("input: read route file: %w", err)
	}
	return ParseRouteFile(data)
}

// ParseRouteFile 解析YAML格式的路线表
func ParseRouteFile(data []byte) (route.Table, error) {
	var f routeFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("input: parse route file: %w", err)
	}
	return toTable(f.Routes)
}

// LoadRouteColl 从MongoDB集合加载路线表，每个文档为{name, points}
func LoadRouteColl(ctx context.Context, coll *mongo.Collection) (route.Table, error) {
	cur, err := coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("input: find routes: %w", err)
	}
	var docs []RouteDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("input: decode routes: %w", err)
	}
	return toTable(docs)
}

// toTable 校验并转换为路线表
func toTable(docs []RouteDoc) (route.Table, error) {
	table := make(route.Table, len(docs))
	for _, d := range docs {
		if len(d.Points) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrEmptyRoute, d.Name)
		}
		if _, ok := table[d.Name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRoute, d.Name)
		}
		n := make(route.Normalized, len(d.Points))
		for i, p := range d.Points {
			if len(p) != 2 || !finite(p[0]) || !finite(p[1]) {
				return nil, fmt.Errorf("%w: %q[%d]", ErrBadPoint, d.Name, i)
			}
			n[i].X, n[i].Y = p[0], p[1]
		}
		table[d.Name] = n
	}
	log.Infof("loaded %d routes", len(table))
	return table, nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
