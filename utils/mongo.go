package utils

import (
	"context"
	"flag"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var (
	mongoTimeout = flag.Duration("mongo.timeout", 10*time.Second, "MongoDB连接与单次读写的超时时间")
)

// MongoTimeout MongoDB单次操作的超时时间
func MongoTimeout() time.Duration {
	return *mongoTimeout
}

// NewMongoClient 创建MongoDB客户端
// 功能：连接MongoDB并通过Ping确认可用
// 参数：uri-连接字符串
// 返回：客户端，连接失败时返回错误
func NewMongoClient(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), *mongoTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return client, nil
}

// GetMongoColl 获取集合
func GetMongoColl(client *mongo.Client, db, col string) *mongo.Collection {
	return client.Database(db).Collection(col)
}
