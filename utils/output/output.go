// 统计结果输出：MongoDB文档与MQTT事件
package output

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity/stats"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils/config"
	"go.mongodb.org/mongo-driver/mongo"
)

var log = logrus.WithField("module", "output")

// document 写入MongoDB的统计文档
type document struct {
	stats.Summary `bson:",inline"`
	CreatedAt     time.Time `bson:"created_at"`
}

// Sink 统计结果输出
// 说明：未配置output.uri时为空实现，只在日志中输出
type Sink struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewSink 创建统计结果输出
// 参数：c-输出配置
// 返回：输出对象，连接失败时返回错误
func NewSink(c config.Output) (*Sink, error) {
	if c.URI == "" {
		return &Sink{}, nil
	}
	if c.DB == "" || c.Col == "" {
		return nil, fmt.Errorf("output: db and col are required when uri is set")
	}
	client, err := utils.NewMongoClient(c.URI)
	if err != nil {
		return nil, err
	}
	return &Sink{client: client, coll: utils.GetMongoColl(client, c.DB, c.Col)}, nil
}

// Enabled 是否写入MongoDB
func (s *Sink) Enabled() bool {
	return s.coll != nil
}

// Write 写入一条统计摘要
func (s *Sink) Write(ctx context.Context, summary stats.Summary) error {
	log.Infof("%v", summary)
	if !s.Enabled() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, utils.MongoTimeout())
	defer cancel()
	if _, err := s.coll.InsertOne(ctx, document{Summary: summary, CreatedAt: time.Now()}); err != nil {
		return fmt.Errorf("output: insert summary: %w", err)
	}
	log.Infof("summary of run %s written to %s.%s", summary.RunID, s.coll.Database().Name(), s.coll.Name())
	return nil
}

// Close 关闭连接
func (s *Sink) Close() {
	if s.client == nil {
		return
	}
	if err := s.client.Disconnect(context.Background()); err != nil {
		log.Warnf("mongo disconnect: %v", err)
	}
}
