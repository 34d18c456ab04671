package feed

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "feed")

const (
	writeWait  = time.Second
	sendBuffer = 16
)

// subscriber 一个WebSocket订阅者，写操作只在writeLoop中进行
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub 画面数据广播中心
// 功能：把仿真循环产生的帧推送给所有WebSocket订阅者
// 说明：Broadcast不阻塞仿真循环，订阅者跟不上时丢弃该订阅者的帧
type Hub struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	last        []byte // 最近一帧，新订阅者连接后立即收到
	closed      bool
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[*subscriber]struct{})}
}

// Broadcast 广播一帧
// 返回：序列化失败时返回错误
func (h *Hub) Broadcast(frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = data
	for sub := range h.subscribers {
		select {
		case sub.send <- data:
		default:
			log.Debugf("subscriber %v is slow, frame %d dropped", sub.conn.RemoteAddr(), frame.Step)
		}
	}
	return nil
}

// Last 最近一帧的JSON数据，尚未广播时为nil
func (h *Hub) Last() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Len 订阅者数量
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Subscribe 注册WebSocket连接
// 说明：启动该连接的读写goroutine，连接断开或Hub关闭时自动注销
func (h *Hub) Subscribe(conn *websocket.Conn) {
	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "simulation finished"))
		conn.Close()
		return
	}
	h.subscribers[sub] = struct{}{}
	if h.last != nil {
		sub.send <- h.last
	}
	h.mu.Unlock()
	log.Infof("subscriber %v connected", conn.RemoteAddr())

	go h.writeLoop(sub)
	go h.readLoop(sub)
}

// remove 注销订阅者并关闭其发送队列
func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub.send)
	}
}

func (h *Hub) writeLoop(sub *subscriber) {
	defer sub.conn.Close()
	for data := range sub.send {
		sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debugf("write to %v failed: %v", sub.conn.RemoteAddr(), err)
			h.remove(sub)
			return
		}
	}
	sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
	sub.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readLoop 只用于发现对端关闭
func (h *Hub) readLoop(sub *subscriber) {
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			h.remove(sub)
			log.Infof("subscriber %v disconnected", sub.conn.RemoteAddr())
			return
		}
	}
}

// Close 关闭所有订阅者，之后的连接会被立即关闭
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subscribers {
		delete(h.subscribers, sub)
		close(sub.send)
	}
}
