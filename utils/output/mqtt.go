package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/entity/stats"
	"github.com/tsinghua-fib-lab/crossing-sim-oss/utils/config"
)

const (
	defaultTopic = "crossing"
	mqttTimeout  = 5 * time.Second
)

var ErrMQTTTimeout = errors.New("output: mqtt operation timed out")

// publisher mqtt.Client中Notifier用到的部分
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// PhaseEvent 相位切换事件
type PhaseEvent struct {
	RunID string  `json:"run_id"`
	Step  int32   `json:"step"`
	T     float64 `json:"t"`
	Phase string  `json:"phase"`
}

// Notifier MQTT事件发布
// 功能：发布相位切换事件（<topic>/<run>/phase）与统计摘要（<topic>/<run>/summary）
// 说明：未配置broker时为空实现
type Notifier struct {
	client mqtt.Client
	pub    publisher
	prefix string
	qos    byte
	closed bool
}

// NewNotifier 连接MQTT broker
// 参数：c-MQTT配置，runID-运行ID
// 返回：发布对象，连接失败或超时返回错误
func NewNotifier(c config.MQTT, runID string) (*Notifier, error) {
	if c.Broker == "" {
		return &Notifier{}, nil
	}
	clientID := c.ClientID
	if clientID == "" {
		clientID = "crossing-sim-" + runID
	}
	opts := mqtt.NewClientOptions().AddBroker(c.Broker)
	opts.SetClientID(clientID)
	opts.SetConnectTimeout(mqttTimeout)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		return nil, fmt.Errorf("%w: connect %s", ErrMQTTTimeout, c.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("output: mqtt connect %s: %w", c.Broker, err)
	}
	log.Infof("mqtt connected to %s as %s", c.Broker, clientID)
	n := newNotifier(client, c.Topic, runID, c.QoS)
	n.client = client
	return n, nil
}

func newNotifier(pub publisher, topic, runID string, qos byte) *Notifier {
	if topic == "" {
		topic = defaultTopic
	}
	return &Notifier{pub: pub, prefix: topic + "/" + runID, qos: qos}
}

// Enabled 是否发布，关闭后不再发布
func (n *Notifier) Enabled() bool {
	return n.pub != nil && !n.closed
}

// publish 序列化并发布，返回发布令牌
func (n *Notifier) publish(suffix string, v any) (mqtt.Token, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return n.pub.Publish(n.prefix+"/"+suffix, n.qos, false, data), nil
}

// PhaseChanged 发布相位切换事件，不等待发布完成
func (n *Notifier) PhaseChanged(ev PhaseEvent) {
	if !n.Enabled() {
		return
	}
	token, err := n.publish("phase", ev)
	if err != nil {
		log.Errorf("marshal phase event: %v", err)
		return
	}
	go func() {
		if token.WaitTimeout(mqttTimeout) && token.Error() != nil {
			log.Warnf("publish phase event: %v", token.Error())
		}
	}()
}

// Summary 发布统计摘要并等待完成
func (n *Notifier) Summary(summary stats.Summary) error {
	if !n.Enabled() {
		return nil
	}
	token, err := n.publish("summary", summary)
	if err != nil {
		return err
	}
	if !token.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("%w: publish summary", ErrMQTTTimeout)
	}
	return token.Error()
}

// Close 断开连接，重复调用无副作用
func (n *Notifier) Close() {
	if n.closed {
		return
	}
	n.closed = true
	if n.client != nil {
		n.client.Disconnect(250)
	}
}

func (n *Notifier) Closed() bool {
	return n.closed
}
