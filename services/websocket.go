package services

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/qianlnk/wolfchallenge/models"
)

// 单次写入的超时时间
const writeTimeout = 5 * time.Second

// Message WebSocket消息结构
type Message struct {
	Type    string                 `json:"type"`
	RoomID  string                 `json:"room_id,omitempty"`
	Content map[string]interface{} `json:"content,omitempty"`
}

// playerSession 一个已连接玩家在某房间内的运行时：
// 存储订阅 → 调和引擎 → 效果调度器 → WebSocket呈现，一条管线
type playerSession struct {
	roomID       string
	playerID     string
	connectionID string
	conn         *websocket.Conn
	writeMutex   sync.Mutex
	scheduler    *EffectScheduler
	engine       *ReconciliationEngine
	unsubscribe  func()

	timerMutex  sync.Mutex
	expireTimer *time.Timer // 讨论/最终阶段倒计时的本地到期触发
}

// WebSocketManager WebSocket连接管理器
type WebSocketManager struct {
	store       RoomStore
	coordinator *GameCoordinator
	config      GameConfig
	sessions    map[string]*playerSession // playerID -> session
	mutex       sync.RWMutex
}

// NewWebSocketManager 创建WebSocket管理器实例
func NewWebSocketManager(store RoomStore, coordinator *GameCoordinator, config GameConfig) *WebSocketManager {
	return &WebSocketManager{
		store:       store,
		coordinator: coordinator,
		config:      config,
		sessions:    make(map[string]*playerSession),
	}
}

// RegisterConnection 注册新连接并建立快照管线。同一玩家重连时
// 旧连接被直接替换
func (wm *WebSocketManager) RegisterConnection(roomID, playerID, connectionID string, conn *websocket.Conn) {
	wm.mutex.Lock()
	if old, exists := wm.sessions[playerID]; exists {
		wm.teardownLocked(old)
	}

	session := &playerSession{
		roomID:       roomID,
		playerID:     playerID,
		connectionID: connectionID,
		conn:         conn,
	}
	session.scheduler = NewEffectScheduler(
		&wsPresenter{session: session},
		time.Duration(wm.config.EffectSeconds)*time.Second,
	)
	session.engine = NewReconciliationEngine(
		roomID, playerID, session.scheduler,
		func(view RoomView) { session.send("room_view", view) },
		func(action string) { wm.runFollowUp(session, action) },
	)
	wm.sessions[playerID] = session
	wm.mutex.Unlock()

	session.unsubscribe = wm.store.Subscribe(roomID, func(room *models.Room) {
		session.engine.HandleSnapshot(room)
		wm.scheduleExpiry(session, room)
	})

	go wm.readLoop(session)
	log.Printf("[连接] 玩家 %s 已连接到房间 %s (连接 %s)", playerID, roomID, connectionID)
}

// RemoveConnection 移除玩家连接并清理管线
func (wm *WebSocketManager) RemoveConnection(playerID string) {
	wm.mutex.Lock()
	session, exists := wm.sessions[playerID]
	if exists {
		wm.teardownLocked(session)
	}
	wm.mutex.Unlock()

	if exists {
		log.Printf("[连接] 玩家 %s 的连接已清理", playerID)
	}
}

// teardownLocked 拆除会话，调用方必须持有wm.mutex
func (wm *WebSocketManager) teardownLocked(session *playerSession) {
	delete(wm.sessions, session.playerID)
	if session.unsubscribe != nil {
		session.unsubscribe()
	}
	session.timerMutex.Lock()
	if session.expireTimer != nil {
		session.expireTimer.Stop()
		session.expireTimer = nil
	}
	session.timerMutex.Unlock()
	session.conn.Close()
}

// readLoop 接收客户端消息：游戏动作和效果确认
func (wm *WebSocketManager) readLoop(session *playerSession) {
	session.conn.SetReadLimit(64 * 1024)

	for {
		var msg Message
		if err := session.conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[连接] 玩家 %s 正常断开", session.playerID)
			} else {
				log.Printf("[连接] 读取玩家 %s 的消息失败: %v", session.playerID, err)
			}
			wm.RemoveConnection(session.playerID)
			return
		}

		switch msg.Type {
		case "game_action":
			wm.handleGameAction(session, msg.Content)
		case "effect_ack":
			session.scheduler.Acknowledge()
		default:
			log.Printf("[连接] 未知的消息类型: %s", msg.Type)
		}
	}
}

// handleGameAction 把客户端动作分发到协调器。权限、前置条件和输入
// 错误原样反馈给玩家；事务冲突只记日志，竞争者多半已经达成了同样的
// 最终状态，不当作硬失败
func (wm *WebSocketManager) handleGameAction(session *playerSession, content map[string]interface{}) {
	action, _ := content["action"].(string)
	if action == "" {
		session.send("error", map[string]string{"message": "无效的动作类型"})
		return
	}

	err := wm.dispatch(session, action, content)
	if err == nil {
		return
	}
	if err == ErrTxConflict {
		log.Printf("[动作] 房间 %s 动作 %s 事务冲突: %v", session.roomID, action, err)
		return
	}
	session.send("error", map[string]string{"action": action, "message": err.Error()})
}

// dispatch 按动作名调用协调器
func (wm *WebSocketManager) dispatch(session *playerSession, action string, content map[string]interface{}) error {
	gc := wm.coordinator
	roomID, playerID := session.roomID, session.playerID

	var err error
	switch action {
	case "start_game":
		_, err = gc.StartGame(roomID, playerID)
	case "acknowledge_reveal":
		_, err = gc.AcknowledgeReveal(roomID, playerID)
	case "advance_after_reveal":
		_, err = gc.AdvanceAfterAllAcked(roomID, playerID)
	case "select_stage":
		stage, _ := content["stage"].(string)
		_, err = gc.SelectStage(roomID, playerID, stage)
	case "begin_challenge":
		_, err = gc.BeginChallengeAttempt(roomID, playerID)
	case "challenge_success":
		_, err = gc.RecordChallengeSuccess(roomID, playerID)
	case "challenge_failure":
		_, err = gc.RecordChallengeFailure(roomID, playerID)
	case "doctor_punch":
		_, err = gc.ResolveDoctorIntervention(roomID, playerID)
	case "doctor_skip":
		_, err = gc.SkipDoctorIntervention(roomID, playerID)
	case "confirm_doctor_punch_result":
		_, err = gc.ConfirmDoctorPunchResult(roomID, playerID)
	case "wolf_activate":
		_, err = gc.ActivateWolfSabotage(roomID, playerID)
	case "wolf_cancel":
		_, err = gc.CancelWolfSabotage(roomID, playerID)
	case "wolf_resolve":
		_, err = gc.ResolveWolfSabotage(roomID, playerID, SabotageDrawRestriction)
	case "wolf_complete":
		_, err = gc.CompleteWolfSabotage(roomID, playerID)
	case "start_discussion":
		_, err = gc.StartDiscussion(roomID, playerID)
	case "expire_discussion":
		_, err = gc.ExpireDiscussion(roomID, playerID)
	case "submit_final_vote":
		accused, _ := content["target"].(string)
		_, err = gc.SubmitFinalVote(roomID, playerID, accused)
	case "tally_final_votes":
		_, err = gc.TallyFinalVotes(roomID, playerID)
	case "reset_to_lobby":
		_, err = gc.ResetToLobby(roomID, playerID)
	default:
		return validationErr("未知的游戏动作：" + action)
	}
	return err
}

// runFollowUp 横幅消失后的后续动作。竞争失败的调用落空即可，
// 另一个客户端已经完成了同样的推进
func (wm *WebSocketManager) runFollowUp(session *playerSession, action string) {
	var err error
	switch action {
	case FollowUpCompleteWolfSabotage:
		_, err = wm.coordinator.CompleteWolfSabotage(session.roomID, session.playerID)
	case FollowUpConfirmDoctorPunchResult:
		_, err = wm.coordinator.ConfirmDoctorPunchResult(session.roomID, session.playerID)
	default:
		return
	}
	if err != nil {
		log.Printf("[后续] 玩家 %s 的后续动作 %s 落空: %v", session.playerID, action, err)
	}
}

// scheduleExpiry 根据记录里的截止时间挂本地到期触发。第一个提交
// 成功的客户端生效，其余客户端的尝试是无害的空操作
func (wm *WebSocketManager) scheduleExpiry(session *playerSession, room *models.Room) {
	gs := &room.GameState

	var deadline int64
	var expire func(roomID, playerID string) (*models.Room, error)
	switch {
	case gs.DiscussionPhase && gs.DiscussionEndTime > 0:
		deadline = gs.DiscussionEndTime
		expire = wm.coordinator.ExpireDiscussion
	case gs.Phase == models.PhaseFinal && gs.FinalPhaseDiscussionEndTime > 0:
		deadline = gs.FinalPhaseDiscussionEndTime
		expire = wm.coordinator.ExpireFinalDiscussion
	}

	session.timerMutex.Lock()
	defer session.timerMutex.Unlock()

	if session.expireTimer != nil {
		session.expireTimer.Stop()
		session.expireTimer = nil
	}
	if expire == nil {
		return
	}

	delay := time.Until(time.Unix(deadline, 0))
	if delay < 0 {
		delay = 0
	}
	session.expireTimer = time.AfterFunc(delay, func() {
		if _, err := expire(session.roomID, session.playerID); err != nil {
			log.Printf("[倒计时] 玩家 %s 的到期触发落空: %v", session.playerID, err)
		}
	})
}

// send 向会话的客户端写一帧消息
func (s *playerSession) send(msgType string, payload interface{}) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := s.conn.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"payload": payload,
	})
	s.conn.SetWriteDeadline(time.Time{})
	if err != nil {
		log.Printf("[连接] 向玩家 %s 发送消息失败: %v", s.playerID, err)
	}
}

// wsPresenter 把效果调度器的展示指令转成发给客户端的消息帧
type wsPresenter struct {
	session *playerSession
}

func (p *wsPresenter) ShowEffect(e *Effect) {
	p.session.send("effect_show", map[string]interface{}{
		"key":         e.Key,
		"kind":        e.Kind,
		"message":     e.Message,
		"require_ack": e.RequireAck,
	})
}

func (p *wsPresenter) HideEffect(e *Effect) {
	p.session.send("effect_hide", map[string]interface{}{"key": e.Key})
}

func (p *wsPresenter) ShowIndicator(message string) {
	p.session.send("indicator_show", map[string]interface{}{"message": message})
}

func (p *wsPresenter) HideIndicator() {
	p.session.send("indicator_hide", nil)
}
