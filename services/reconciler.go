package services

import (
	"fmt"
	"log"
	"sort"
	"sync/atomic"

	"github.com/qianlnk/wolfchallenge/models"
)

// 横幅消失后串联的后续动作，由会话层映射到具体的协调器调用
const (
	FollowUpCompleteWolfSabotage     = "complete_wolf_sabotage"
	FollowUpConfirmDoctorPunchResult = "confirm_doctor_punch_result"
)

// PlayerView 渲染用的玩家视图，他人的身份在游戏结束前被遮蔽
type PlayerView struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Role      models.Role            `json:"role,omitempty"`
	IsHost    bool                   `json:"is_host"`
	IsCurrent bool                   `json:"is_current"`
	Resources models.PlayerResources `json:"resources"`
}

// RoomView 远端记录投影出的本地视图模型
type RoomView struct {
	RoomID            string            `json:"room_id"`
	Phase             models.GamePhase  `json:"phase"`
	SubPhase          models.SubPhase   `json:"sub_phase"`
	Turn              int               `json:"turn"`
	MaxTurns          int               `json:"max_turns"`
	WhiteStars        int               `json:"white_stars"`
	BlackStars        int               `json:"black_stars"`
	Stage             string            `json:"stage,omitempty"`
	CurrentPlayerID   string            `json:"current_player_id,omitempty"`
	IsMyTurn          bool              `json:"is_my_turn"`
	MyRole            models.Role       `json:"my_role,omitempty"`
	Players           []PlayerView      `json:"players"`
	DiscussionActive  bool              `json:"discussion_active"`
	DiscussionEndTime int64             `json:"discussion_end_time,omitempty"`
	FinalVoteEndTime  int64             `json:"final_vote_end_time,omitempty"`
	VoteCounts        map[string]int    `json:"vote_counts,omitempty"`
	GameResult        models.GameResult `json:"game_result,omitempty"`
}

// observedTuple 上一次观察到的逻辑位置，用于识别状态边沿
type observedTuple struct {
	Phase              models.GamePhase
	SubPhase           models.SubPhase
	CurrentPlayerIndex int
	Turn               int
}

// ReconciliationEngine 单客户端的快照调和引擎。快照流只有全量状态、
// 没有事件语义，引擎通过对比上一次观察到的逻辑位置识别边沿，
// 在边沿上清空"已触发"集合，用组合键保证每条一次性效果只触发一次，
// 重复或连发的快照不会产生额外效果
type ReconciliationEngine struct {
	roomID  string
	selfID  string
	effects *EffectScheduler
	onView  func(RoomView)
	// 横幅消失后的后续动作回调，由会话层接到协调器
	followUp func(action string)

	reconciling int32 // 重入保护：上一次调和还在进行时直接丢弃本次快照

	last       *observedTuple
	firedTurn  map[string]bool // 回合/出场位边沿清空
	firedPhase map[string]bool // 阶段/子阶段边沿清空
}

// NewReconciliationEngine 创建调和引擎实例
func NewReconciliationEngine(roomID, selfID string, effects *EffectScheduler, onView func(RoomView), followUp func(string)) *ReconciliationEngine {
	if followUp == nil {
		followUp = func(string) {}
	}
	return &ReconciliationEngine{
		roomID:     roomID,
		selfID:     selfID,
		effects:    effects,
		onView:     onView,
		followUp:   followUp,
		firedTurn:  make(map[string]bool),
		firedPhase: make(map[string]bool),
	}
}

// HandleSnapshot 处理一次快照投递。允许丢弃重入的快照：
// 下一次投递一定携带最新的完整状态，不会丢失真相
func (re *ReconciliationEngine) HandleSnapshot(room *models.Room) {
	if room == nil || room.ID != re.roomID {
		return
	}
	if !atomic.CompareAndSwapInt32(&re.reconciling, 0, 1) {
		log.Printf("[调和] 房间 %s 上一次调和未完成，丢弃本次快照", re.roomID)
		return
	}
	defer atomic.StoreInt32(&re.reconciling, 0)

	gs := &room.GameState
	tuple := observedTuple{
		Phase:              gs.Phase,
		SubPhase:           gs.SubPhase,
		CurrentPlayerIndex: gs.CurrentPlayerIndex,
		Turn:               gs.Turn,
	}
	if re.last == nil || tuple.Turn != re.last.Turn || tuple.CurrentPlayerIndex != re.last.CurrentPlayerIndex {
		re.firedTurn = make(map[string]bool)
	}
	if re.last == nil || tuple.Phase != re.last.Phase || tuple.SubPhase != re.last.SubPhase {
		re.firedPhase = make(map[string]bool)
	}
	re.last = &tuple

	re.deriveEffects(room)

	if re.onView != nil {
		re.onView(ProjectView(room, re.selfID))
	}
}

// deriveEffects 从快照推导一次性效果。单个效果触发失败只影响自己，
// 下一次快照会从头重新调和
func (re *ReconciliationEngine) deriveEffects(room *models.Room) {
	gs := &room.GameState
	self := room.Players[re.selfID]

	switch gs.Phase {
	case models.PhaseRevealing:
		re.effects.ClearIndicator()
		if self.Role != models.RoleNone {
			re.firePhaseOnce(room, "role_reveal", &Effect{
				Kind:       "role_reveal",
				Message:    "你的身份是：" + roleLabel(self.Role),
				RequireAck: true,
			})
		}

	case models.PhasePlaying:
		re.derivePlayingEffects(room)

	case models.PhaseFinal:
		re.effects.ClearIndicator()
		re.firePhaseOnce(room, "final_phase_intro", &Effect{
			Kind:       "final_phase_intro",
			Message:    "星数已打满，请指认你心中的狼人",
			RequireAck: true,
		})

	case models.PhaseFinished:
		re.effects.ClearIndicator()
		re.firePhaseOnce(room, "game_result", &Effect{
			Kind:       "game_result",
			Message:    resultLabel(gs.GameResult),
			RequireAck: true,
		})
	}
}

func (re *ReconciliationEngine) derivePlayingEffects(room *models.Room) {
	gs := &room.GameState
	currentID := room.CurrentPlayerID()
	currentName := room.Players[currentID].Name

	re.fireTurnOnce(room, "turn_banner", &Effect{
		Kind:    "turn_banner",
		Message: fmt.Sprintf("第%d回合", gs.Turn),
	})

	indicator := ""
	switch gs.SubPhase {
	case models.SubPhaseChallengeStart:
		re.fireTurnOnce(room, "challenge_announce", &Effect{
			Kind:    "challenge_announce",
			Message: currentName + " 的挑战即将开始",
		})

	case models.SubPhaseWolfDecision:
		if gs.WolfDecisionPlayerID != re.selfID {
			indicator = "有玩家正在操作…"
		}

	case models.SubPhaseWolfResolving:
		if gs.WolfActionRequest != nil {
			e := &Effect{
				Kind:    "sabotage_announce",
				Message: "狼人发动了破坏：" + gs.WolfActionRequest.Restriction,
			}
			if gs.WolfActionRequest.PlayerID == re.selfID {
				// 发动者确认后把流程拉回挑战
				e.RequireAck = true
				e.OnDismiss = func() { re.followUp(FollowUpCompleteWolfSabotage) }
			}
			re.fireTurnOnce(room, "sabotage_announce", e)
		}

	case models.SubPhaseAwaitDoctor:
		if room.Players[re.selfID].Role == models.RoleDoctor {
			re.fireTurnOnce(room, "doctor_prompt", &Effect{
				Kind:       "doctor_prompt",
				Message:    "是否使用铁拳抵消这次失败？",
				RequireAck: true,
			})
		} else {
			indicator = "医生决定中…"
		}

	case models.SubPhaseAwaitDoctorPunchResult:
		e := &Effect{
			Kind:    "doctor_punch_result",
			Message: "医生出拳，失败被抵消！",
		}
		if re.selfID == room.Config.CreatedBy {
			// 由房主的横幅回调推进到下一位玩家，其余客户端只围观
			e.OnDismiss = func() { re.followUp(FollowUpConfirmDoctorPunchResult) }
		}
		re.fireTurnOnce(room, "doctor_punch_result", e)
	}

	if gs.DiscussionPhase {
		re.fireTurnOnce(room, "discussion_start", &Effect{
			Kind:    "discussion_start",
			Message: "讨论阶段开始",
		})
	}

	if indicator != "" {
		re.effects.SetIndicator(indicator)
	} else {
		re.effects.ClearIndicator()
	}
}

// fireTurnOnce 触发一条回合作用域的一次性效果，
// 组合键为 (房间, 回合, 出场位, 语义标签)
func (re *ReconciliationEngine) fireTurnOnce(room *models.Room, tag string, e *Effect) {
	gs := &room.GameState
	key := fmt.Sprintf("%s|%d|%d|%s", room.ID, gs.Turn, gs.CurrentPlayerIndex, tag)
	if re.firedTurn[key] {
		return
	}
	re.firedTurn[key] = true
	e.Key = key
	re.effects.Enqueue(e)
}

// firePhaseOnce 触发一条阶段作用域的一次性效果，
// 组合键为 (房间, 阶段, 子阶段, 语义标签)
func (re *ReconciliationEngine) firePhaseOnce(room *models.Room, tag string, e *Effect) {
	gs := &room.GameState
	key := fmt.Sprintf("%s|%s|%s|%s", room.ID, gs.Phase, gs.SubPhase, tag)
	if re.firedPhase[key] {
		return
	}
	re.firedPhase[key] = true
	e.Key = key
	re.effects.Enqueue(e)
}

// ProjectView 把远端记录投影成指定玩家的本地视图。
// 其他玩家的身份在游戏结束前被遮蔽
func ProjectView(room *models.Room, selfID string) RoomView {
	gs := &room.GameState
	currentID := room.CurrentPlayerID()

	view := RoomView{
		RoomID:            room.ID,
		Phase:             gs.Phase,
		SubPhase:          gs.SubPhase,
		Turn:              gs.Turn,
		MaxTurns:          room.Config.MaxTurns,
		WhiteStars:        gs.WhiteStars,
		BlackStars:        gs.BlackStars,
		Stage:             gs.Stage,
		CurrentPlayerID:   currentID,
		IsMyTurn:          currentID != "" && currentID == selfID,
		MyRole:            room.Players[selfID].Role,
		DiscussionActive:  gs.DiscussionPhase,
		DiscussionEndTime: gs.DiscussionEndTime,
		FinalVoteEndTime:  gs.FinalPhaseDiscussionEndTime,
		VoteCounts:        gs.FinalPhaseVoteCounts,
		GameResult:        gs.GameResult,
	}

	for _, p := range orderedPlayers(room) {
		role := p.Role
		if p.ID != selfID && gs.Phase != models.PhaseFinished {
			role = models.RoleNone
		}
		resources := p.Resources
		if p.ID != selfID && gs.Phase != models.PhaseFinished {
			// 资源数量会暴露身份，一并遮蔽
			resources = models.PlayerResources{}
		}
		view.Players = append(view.Players, PlayerView{
			ID:        p.ID,
			Name:      p.Name,
			Role:      role,
			IsHost:    p.ID == room.Config.CreatedBy,
			IsCurrent: p.ID == currentID,
			Resources: resources,
		})
	}
	return view
}

// orderedPlayers 按出场顺序排列玩家，顺序未定时按加入时间
func orderedPlayers(room *models.Room) []models.Player {
	players := make([]models.Player, 0, len(room.Players))
	if len(room.GameState.PlayerOrder) > 0 {
		for _, id := range room.GameState.PlayerOrder {
			if p, exists := room.Players[id]; exists {
				players = append(players, p)
			}
		}
		return players
	}
	for _, p := range room.Players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].JoinedAt != players[j].JoinedAt {
			return players[i].JoinedAt < players[j].JoinedAt
		}
		return players[i].ID < players[j].ID
	})
	return players
}

// roleLabel 角色的展示文案
func roleLabel(role models.Role) string {
	switch role {
	case models.RoleWolf:
		return "狼人"
	case models.RoleDoctor:
		return "医生"
	case models.RoleCitizen:
		return "平民"
	default:
		return "未知"
	}
}

// resultLabel 结果的展示文案
func resultLabel(result models.GameResult) string {
	switch result {
	case models.ResultWolfWin:
		return "狼人阵营胜利！"
	case models.ResultCitizenWin:
		return "好人阵营胜利！"
	default:
		return "游戏结束"
	}
}
