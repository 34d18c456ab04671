package feed

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewRouter 创建画面数据服务的路由
// 功能：
//   - GET /ws      WebSocket订阅帧数据
//   - GET /frame   最近一帧（JSON）
//   - GET /health  存活检查
func NewRouter(h *Hub) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), cors.Default())
	router.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warnf("upgrade failed for %s: %v", c.Request.RemoteAddr, err)
			return
		}
		h.Subscribe(conn)
	})
	router.GET("/frame", func(c *gin.Context) {
		data := h.Last()
		if data == nil {
			c.Status(http.StatusNoContent)
			return
		}
		c.Data(http.StatusOK, "application/json", data)
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subscribers": h.Len()})
	})
	return router
}

// Serve 在后台启动画面数据服务
// 参数：addr-监听地址，h-广播中心
// 返回：HTTP服务，调用方负责Close
func Serve(addr string, h *Hub) *http.Server {
	srv := &http.Server{Addr: addr, Handler: NewRouter(h)}
	go func() {
		log.Infof("feed listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("feed server: %v", err)
		}
	}()
	return srv
}
