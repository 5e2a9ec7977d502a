package services

import (
	"sync"

	"github.com/google/uuid"
)

// Session 匿名会话：稳定的不透明身份串，协调器所有权限判定的主体
type Session struct {
	PlayerID string `json:"player_id"`
	Token    string `json:"token"`
}

// SessionManager 会话管理器，不做密码和资料语义，匿名身份即可
type SessionManager struct {
	sessions map[string]string // token -> playerID
	mutex    sync.RWMutex
}

// NewSessionManager 创建会话管理器实例
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]string),
	}
}

// NewSession 颁发新的匿名会话
func (sm *SessionManager) NewSession() Session {
	session := Session{
		PlayerID: "p_" + uuid.NewString(),
		Token:    uuid.NewString(),
	}

	sm.mutex.Lock()
	sm.sessions[session.Token] = session.PlayerID
	sm.mutex.Unlock()

	return session
}

// Resolve 按令牌解析玩家身份
func (sm *SessionManager) Resolve(token string) (string, bool) {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	playerID, exists := sm.sessions[token]
	return playerID, exists
}
