package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/qianlnk/wolfchallenge/services"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有跨域请求，生产环境中应该更严格
		},
	}

	config       services.GameConfig
	roomStore    services.RoomStore
	coordinator  *services.GameCoordinator
	sessionMgr   *services.SessionManager
	webSocketMgr *services.WebSocketManager
)

func init() {
	// 设置日志格式，包含文件名和行号
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	config = services.LoadConfig()
	roomStore = services.NewMemoryRoomStore()
	coordinator = services.NewGameCoordinator(roomStore, config)
	sessionMgr = services.NewSessionManager()
	webSocketMgr = services.NewWebSocketManager(roomStore, coordinator, config)

	log.Printf("初始化完成: 存储、协调器和连接管理器已配置")
}

func main() {
	r := gin.Default()

	// 设置跨域中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Session-Token")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// WebSocket连接处理
	r.GET("/ws", func(c *gin.Context) {
		roomID := c.Query("room")
		token := c.Query("token")
		connectionID := c.Query("connection_id")

		playerID, ok := sessionMgr.Resolve(token)
		if !ok || roomID == "" || connectionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "缺少必要的连接参数"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("升级WebSocket连接失败: %v", err)
			return
		}

		webSocketMgr.RegisterConnection(roomID, playerID, connectionID, ws)
	})

	// API路由组
	api := r.Group("/api")
	{
		// 匿名会话
		api.POST("/sessions", createSession)

		// 游戏房间相关
		api.POST("/rooms", createRoom)
		api.GET("/rooms", listRooms)
		api.GET("/rooms/:id", getRoomInfo)
		api.POST("/rooms/:id/join", joinRoom)
		api.POST("/rooms/:id/leave", leaveRoom)
	}

	// 启动服务器
	addr := fmt.Sprintf(":%d", config.Port)
	log.Printf("服务器启动在 %s 端口", addr)
	if err := r.Run(addr); err != nil {
		log.Fatal("服务器启动失败:", err)
	}
}

// API处理函数
func createSession(c *gin.Context) {
	session := sessionMgr.NewSession()
	c.JSON(http.StatusOK, session)
}

func createRoom(c *gin.Context) {
	var req struct {
		Name    string               `json:"name" binding:"required"`
		Options services.RoomOptions `json:"options"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	playerID, ok := resolveCaller(c)
	if !ok {
		return
	}

	room, err := coordinator.CreateRoom(playerID, req.Name, req.Options)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, services.ProjectView(room, playerID))
}

func listRooms(c *gin.Context) {
	rooms := roomStore.ListRooms()
	views := make([]gin.H, 0, len(rooms))
	for _, room := range rooms {
		views = append(views, gin.H{
			"id":      room.ID,
			"name":    room.Config.Name,
			"phase":   room.GameState.Phase,
			"players": len(room.Players),
		})
	}
	c.JSON(http.StatusOK, gin.H{"rooms": views})
}

func getRoomInfo(c *gin.Context) {
	playerID, ok := resolveCaller(c)
	if !ok {
		return
	}

	room, err := roomStore.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, services.ProjectView(room, playerID))
}

func joinRoom(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	playerID, ok := resolveCaller(c)
	if !ok {
		return
	}

	room, err := coordinator.JoinRoom(c.Param("id"), playerID, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, services.ProjectView(room, playerID))
}

func leaveRoom(c *gin.Context) {
	playerID, ok := resolveCaller(c)
	if !ok {
		return
	}

	if _, err := coordinator.LeaveRoom(c.Param("id"), playerID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已离开房间"})
}

// resolveCaller 从请求头解析会话身份
func resolveCaller(c *gin.Context) (string, bool) {
	playerID, ok := sessionMgr.Resolve(c.GetHeader("X-Session-Token"))
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的会话令牌"})
		return "", false
	}
	return playerID, true
}

// respondError 按错误类别映射HTTP状态码
func respondError(c *gin.Context, err error) {
	statusCode := http.StatusInternalServerError
	switch {
	case services.IsAuthorizationError(err):
		statusCode = http.StatusForbidden
	case services.IsPreconditionError(err):
		statusCode = http.StatusConflict
	case services.IsValidationError(err):
		statusCode = http.StatusBadRequest
	case err == services.ErrRoomNotFound:
		statusCode = http.StatusNotFound
	case err == services.ErrRoomFull:
		statusCode = http.StatusConflict
	}
	c.JSON(statusCode, gin.H{"error": err.Error()})
}
