package services

import (
	"log"
	"strings"
	"time"

	"github.com/qianlnk/wolfchallenge/models"
)

// 狼人破坏动作类型
const SabotageDrawRestriction = "draw_restriction"

// RoomOptions 创建房间时的可选配置，零值字段取服务端默认值
type RoomOptions struct {
	MaxTurns          int `json:"max_turns"`
	WolfActions       int `json:"wolf_actions"`
	DoctorPunches     int `json:"doctor_punches"`
	DiscussionSeconds int `json:"discussion_seconds"`
	FinalVoteSeconds  int `json:"final_vote_seconds"`
}

// GameCoordinator 游戏协调器：状态机的全部合法迁移都以原子事务的形式
// 在这里实现。协调器从不假设自己独占房间记录，每个前置条件都在
// 事务内部对最新状态重新校验，竞争失败的调用以错误的形式安全落空
type GameCoordinator struct {
	store    RoomStore
	defaults GameConfig
	now      func() int64 // 便于测试注入时钟
}

// NewGameCoordinator 创建游戏协调器实例
func NewGameCoordinator(store RoomStore, defaults GameConfig) *GameCoordinator {
	return &GameCoordinator{
		store:    store,
		defaults: defaults,
		now:      func() int64 { return time.Now().Unix() },
	}
}

// CreateRoom 创建新房间，调用者成为房主
func (gc *GameCoordinator) CreateRoom(callerID, callerName string, opts RoomOptions) (*models.Room, error) {
	if callerID == "" {
		return nil, validationErr("缺少玩家身份")
	}
	if err := validateOptions(&opts, gc.defaults); err != nil {
		return nil, err
	}

	now := gc.now()
	room := &models.Room{
		ID: GenerateRoomCode(),
		Config: models.RoomConfig{
			Name:              callerName + "的房间",
			CreatedBy:         callerID,
			MaxTurns:          opts.MaxTurns,
			WolfActions:       opts.WolfActions,
			DoctorPunches:     opts.DoctorPunches,
			DiscussionSeconds: opts.DiscussionSeconds,
			FinalVoteSeconds:  opts.FinalVoteSeconds,
			CreatedAt:         now,
		},
		GameState: models.GameState{Phase: models.PhaseWaiting},
		Players: map[string]models.Player{
			callerID: {
				ID:       callerID,
				Name:     callerName,
				IsHost:   true,
				JoinedAt: now,
			},
		},
	}
	appendLog(room, callerID, now, "创建了房间")

	created := gc.store.Create(room)
	log.Printf("[协调器] 玩家 %s 创建房间 %s", callerID, created.ID)
	return created, nil
}

// JoinRoom 加入房间，只在等待阶段有效；重复加入只更新昵称
func (gc *GameCoordinator) JoinRoom(roomID, callerID, name string) (*models.Room, error) {
	if callerID == "" {
		return nil, validationErr("缺少玩家身份")
	}
	return gc.store.Transact(roomID, func(room *models.Room) error {
		if room.GameState.Phase != models.PhaseWaiting {
			return precondErr("游戏已经开始，无法加入")
		}
		if p, exists := room.Players[callerID]; exists {
			p.Name = name
			room.Players[callerID] = p
			return nil
		}
		if len(room.Players) >= MaxPlayers {
			return ErrRoomFull
		}
		room.Players[callerID] = models.Player{
			ID:       callerID,
			Name:     name,
			JoinedAt: gc.now(),
		}
		appendLog(room, callerID, gc.now(), name+" 加入了房间")
		return nil
	})
}

// LeaveRoom 离开房间，只在等待阶段有效。房主离开不转移房间，
// 房主权限基于Config.CreatedBy的身份匹配而不是在场与否
func (gc *GameCoordinator) LeaveRoom(roomID, callerID string) (*models.Room, error) {
	return gc.store.Transact(roomID, func(room *models.Room) error {
		if room.GameState.Phase != models.PhaseWaiting {
			return precondErr("游戏进行中无法离开")
		}
		if _, exists := room.Players[callerID]; !exists {
			return precondErr("玩家不在房间中")
		}
		delete(room.Players, callerID)
		appendLog(room, callerID, gc.now(), "离开了房间")
		return nil
	})
}

// StartGame 开始游戏：分配1个狼人、1个医生，其余平民，进入身份确认阶段
func (gc *GameCoordinator) StartGame(roomID, callerID string) (*models.Room, error) {
	return gc.store.Transact(roomID, func(room *models.Room) error {
		if err := requireHost(room, callerID); err != nil {
			return err
		}
		if room.GameState.Phase != models.PhaseWaiting {
			return precondErr("当前阶段无法开始游戏")
		}
		count := len(room.Players)
		if count < MinPlayers || count > MaxPlayers {
			return precondErr("玩家人数必须在3到8人之间")
		}

		roles := shuffledRoles(count)
		i := 0
		for id, p := range room.Players {
			p.Role = roles[i]
			p.Resources = initialResources(roles[i], room.Config)
			room.Players[id] = p
			i++
		}

		gs := &room.GameState
		gs.Phase = models.PhaseRevealing
		gs.SubPhase = models.SubPhaseNone
		gs.Turn = 1
		gs.WhiteStars = 0
		gs.BlackStars = 0
		gs.PlayerOrder = nil
		gs.CurrentPlayerIndex = 0
		gs.RevealAcks = make(map[string]bool)
		gs.PendingFailure = nil
		gs.GameResult = models.ResultNone
		gs.FinalPhaseVotes = nil
		gs.FinalPhaseVoteCounts = nil
		gs.ResultReturnLobbyAcks = nil

		appendLog(room, callerID, gc.now(), "游戏开始，身份已分配")
		return nil
	})
}

// AcknowledgeReveal 玩家确认已查看自己的身份，重复调用是无害的空操作
func (gc *GameCoordinator) AcknowledgeReveal(roomID, callerID string) (*models.Room, error) {
	return gc.store.Transact(roomID, func(room *models.Room) error {
		if err := requirePlayer(room, callerID); err != nil {
			return err
		}
		if room.GameState.Phase != models.PhaseRevealing {
			return precondErr("当前不在身份确认阶段")
		}
		room.GameState.RevealAcks[callerID] = true
		return nil
	})
}

// AdvanceAfterAllAcked 全员确认身份后由房主推进到闯关阶段，
// 同时抽取随机出场顺序
func (gc *GameCoordinator) AdvanceAfterAllAcked(roomID, callerID string) (*models.Room, error) {
	return gc.store.Transact(roomID, func(room *models.Room) error {
		if err := requireHost(room, callerID); err != nil {
			return err
		}
		if room.GameState.Phase != models.PhaseRevealing {
			return precondErr("当前不在身份确认阶段")
		}
		for id := range room.Players {
			if !room.GameState.RevealAcks[id] {
				return precondErr("还有玩家未确认身份")
			}
		}

		ids := make([]string, 0, len(room.Players))
		for id := range room.Players {
			ids = append(ids, id)
		}

		gs := &room.GameState
		gs.PlayerOrder = shuffledPlayerOrder(ids)
		gs.Phase = models.PhasePlaying
		gs.SubPhase = models.SubPhaseGMStage
		gs.CurrentPlayerIndex = 0
		gs.Turn = 1
		gs.RevealAcks = nil

		if room.RandomResults == nil {
			room.RandomResults = make(map[string]string)
		}
		room.RandomResults["player_order"] = strings.Join(gs.PlayerOrder, ",")

		appendLog(room, callerID, gc.now(), "出场顺序已确定，闯关开始")
		return nil
	})
}

// SelectStage 房主选择本回合关卡
func (gc *GameCoordinator) SelectStage(roomID, callerID, stage string) (*models.Room, error) {
	if stage == "" {
		return nil, validationErr("关卡名称不能为空")
	}
	return gc.store.Transact(roomID, func(room *models.Room) error {
		if err := requireHost(room, callerID); err != nil {
			return err
		}
		if err := requireSubPhase(room, models.SubPhaseGMStage); err != nil {
			return err
		}
		if room.GameState.DiscussionPhase {
			return precondErr("讨论阶段尚未结束")
		}
		room.GameState.Stage = stage
		room.GameState.SubPhase = models.SubPhaseChallengeStart
		appendLog(room, callerID, gc.now(), "选择了关卡："+stage)
		return nil
	})
}

// BeginChallengeAttempt 当前玩家开始挑战
func (gc *GameCoordinator) BeginChallengeAttempt(roomID, callerID string) (*models.Room, error) {
	return gc.store.Transact(roomID, func(room *models.Room) error {
		if err := requireCurrentPlayer(room, callerID); err != nil {
			return err
		}
		if err := requireSubPhase(room, models.SubPhaseChallengeStart); err != nil {
			return err
		}
		room.GameState.SubPhase = models.SubPhaseAwaitResult
		return nil
	})
}

// RecordChallengeSuccess 当前玩家提交挑战成功：加白星并推进
func (gc *GameCoordinator) RecordChallengeSuccess(roomID, callerID string) (*models.Room, error) {
	return gc.store.Transact(roomID, func(room *models.Room) error {
		if err := requireCurrentPlayer(room, callerID); err != nil {
			return err
		}
		if room.GameState.PendingFailure != nil {
			return precondErr("已有失败记录等待医生决定")
		}
		room.GameState.WhiteStars++
		appendLog(room, callerID, gc.now(), "挑战成功，获得白星")
		gc.commitStarAdvance(room)
		return nil
	})
}

// RecordChallengeFailure 当前玩家提交挑战失败。医生有可用铁拳时失败被挂起
// 等待医生决定，否则立即记黑星并推进
func (gc *GameCoordinator) RecordChallengeFailure(roomID, callerID string) (*models.Room, error) {
	return gc.store.Transact(roomID, func(room *models.Room) error {
		if err := requireCurrentPlayer(room, callerID); err != nil {
			return err
		}
		gs := &room.GameState
		if gs.PendingFailure != nil {
			return precondErr("失败已提交，等待医生决定")
		}

		doctor, hasDoctor := room.FindByRole(models.RoleDoctor)
		if hasDoctor && doctor.Resources.DoctorPunchRemaining > 0 && doctor.Resources.DoctorPunchAvailableThisTurn {
			gs.PendingFailure = &models.PendingFailure{PlayerID: callerID, Turn: gs.Turn}
			gs.SubPhase = models.SubPhaseAwaitDoctor
			appendLog(room, callerID, gc.now(), "挑战失败，等待医生决定")
			return nil
		}

		gs.BlackStars++
		appendLog(room, callerID, gc.now(), "挑战失败，记黑星")
		gc.commitStarAdvance(room)
		return nil
	})
}

// ResolveDoctorIntervention 医生出拳，消耗一次铁拳并抵消挂起的失败。
// 被抵消的失败不计星也不推进回合计数，动画确认后出场顺序才前移
func (gc *GameCoordinator) ResolveDoctorIntervention(roomID, callerID string) (*models.Room, error) {
	return gc.store.Transact(roomID, func(room *models.Room) error {
		if err := requireRole(room, callerID, models.RoleDoctor); err != nil {
			return err
		}
		gs := &room.GameState
		if gs.PendingFailure == nil {
			return precondErr("没有等待处理的失败记录")
		}
		doctor := room.Players[callerID]
		if doctor.Resources.DoctorPunchRemaining <= 0 {
			return precondErr("铁拳次数已用完")
		}
		if !doctor.Resources.DoctorPunchAvailableThisTurn {
			return precondErr("本回合铁拳已使用")
		}

		doctor.Resources.DoctorPunchRemaining--
		doctor.Resources.DoctorPunchAvailableThisTurn = false
		room.Players[callerID] = doctor

		gs.PendingFailure = nil
		gs.SubPhase = models.SubPhaseAwaitDoctorPunchResult
		appendLog(room, callerID, gc.now(), "医生出拳，失败被抵消")
		return nil
	})
}

// SkipDoctorIntervention 医生放弃出拳，挂起的失败按确认失败落账
func (gc *GameCoordinator) SkipDoctorIntervention(roomID, callerID string) (*models.Room, error) {
	return gc.store.Transact(roomID, func(room *models.Room) error {
		if err := requireRole(room, callerID, models.RoleDoctor); err != nil {
			return err
		}
		gs := &room.GameState
		if gs.PendingFailure == nil {
			return precondErr("没有等待处理的失败记录")
		}
		gs.PendingFailure = nil
		gs.BlackStars++
		appendLog(room, callerID, gc.now(), "医生放弃出拳，失败记黑星")
		gc.commitStarAdvance(room)
		return nil
	})
}

// ConfirmDoctorPunchResult 铁拳结算动画确认后推进到下一位玩家，
// 通常由结算横幅消失后的后续回调发起
func (gc *GameCoordinator) ConfirmDoctorPunchResult(roomID, callerID string) (*models.Room, error) {
	return gc.store.Transact(roomID, func(room *models.Room) error {
		if err := requirePlayer(room, callerID); err != nil {
			return err
		}
		if err := requireSubPhase(room, models.SubPhaseAwaitDoctorPunchResult); err != nil {
			return err
		}
		gc.advanceWithoutStar(room)
		return nil
	})
}

// ActivateWolfSabotage 狼人进入破坏决策。次数在真正执行时才扣除，
// 这里只检查剩余次数并占住子阶段
func (gc *GameCoordinator) ActivateWolfSabotage(roomID, callerID string) (*models.Room, error) {
	return gc.store.Transact(roomID, func(room *models.Room) error {
		if err := requireRole(room, callerID, models.RoleWolf); err != nil {
			return err
		}
		if err := requireSubPhase(room, models.SubPhaseChallengeStart); err != nil {
			return err
		}
		wolf := room.Players[callerID]
		if wolf.Resources.WolfActionsRemaining <= 0 {
			return precondErr("破坏次数已用完")
		}
		gs := &room.GameState
		gs.SubPhase = models.SubPhaseWolfDecision
		gs.WolfDecisionPlayerID = callerID
		return nil
	})
}

// CancelWolfSabotage 狼人放弃破坏，不消耗次数
func (gc *GameCoordinator) CancelWolfSabotage(roomID, callerID string) (*models.Room, error) {
	return gc.store.Transact(roomID, func(room *models.Room) error {
		gs := &room.GameState
		if gs.SubPhase != models.SubPhaseWolfDecision || gs.WolfDecisionPlayerID != callerID {
			return precondErr("当前没有你的破坏决策")
		}
		gs.SubPhase = models.SubPhaseChallengeStart
		gs.WolfDecisionPlayerID = ""
		return nil
	})
}

// ResolveWolfSabotage 狼人执行破坏：在同一个事务里重新核对剩余次数后扣减，
// 防止两次并发激活抢占同一次剩余机会，然后抽取限制条件并写入审计记录
func (gc *GameCoordinator) ResolveWolfSabotage(roomID, callerID, action string) (*models.Room, error) {
	if action != SabotageDrawRestriction {
		return nil, validationErr("无效的破坏动作类型")
	}
	return gc.store.Transact(roomID, func(room *models.Room) error {
		if err := requireRole(room, callerID, models.RoleWolf); err != nil {
			return err
		}
		gs := &room.GameState
		if gs.SubPhase != models.SubPhaseWolfDecision || gs.WolfDecisionPlayerID != callerID {
			return precondErr("当前没有你的破坏决策")
		}
		wolf := room.Players[callerID]
		if wolf.Resources.WolfActionsRemaining <= 0 {
			return precondErr("破坏次数已用完")
		}
		wolf.Resources.WolfActionsRemaining--
		room.Players[callerID] = wolf

		restriction := drawSabotageRestriction(room)
		gs.WolfActionRequest = &models.WolfActionRequest{
			PlayerID:    callerID,
			Action:      action,
			Restriction: restriction,
			RequestedAt: gc.now(),
		}
		gs.SubPhase = models.SubPhaseWolfResolving
		appendLog(room, callerID, gc.now(), "狼人发动破坏："+restriction)
		return nil
	})
}

// CompleteWolfSabotage 破坏结算公布完毕，回到挑战流程
func (gc *GameCoordinator) CompleteWolfSabotage(roomID, callerID string) (*models.Room, error) {
	return gc.store.Transact(roomID, func(room *models.Room) error {
		gs := &room.GameState
		if gs.SubPhase != models.SubPhaseWolfResolving {
			return precondErr("当前没有进行中的破坏结算")
		}
		if gs.WolfActionRequest == nil || gs.WolfActionRequest.PlayerID != callerID {
			return authErr("只有发动破坏的玩家可以结束结算")
		}
		gs.WolfActionRequest = nil
		gs.WolfDecisionPlayerID = ""
		gs.SubPhase = models.SubPhaseChallengeStart
		return nil
	})
}

// StartDiscussion 房主发起回合间讨论，截止时间写入记录由各客户端对时
func (gc *GameCoordinator) StartDiscussion(roomID, callerID string) (*models.Room, error) {
	return gc.store.Transact(roomID, func(room *models.Room) error {
		if err := requireHost(room, callerID); err != nil {
			return err
		}
		if err := requireSubPhase(room, models.SubPhaseGMStage); err != nil {
			return err
		}
		gs := &room.GameState
		if gs.DiscussionPhase {
			return precondErr("讨论已经在进行中")
		}
		gs.DiscussionPhase = true
		gs.DiscussionEndTime = gc.now() + int64(room.Config.DiscussionSeconds)
		appendLog(room, callerID, gc.now(), "讨论阶段开始")
		return nil
	})
}

// ExpireDiscussion 任何本地时钟越过截止时间的客户端都可以发起结束，
// 第一个提交成功的生效，之后的调用是无害的空操作
func (gc *GameCoordinator) ExpireDiscussion(roomID, callerID string) (*models.Room, error) {
	return gc.store.Transact(roomID, func(room *models.Room) error {
		if err := requirePlayer(room, callerID); err != nil {
			return err
		}
		gs := &room.GameState
		if !gs.DiscussionPhase {
			return nil // 已被其他客户端结束
		}
		if gc.now() < gs.DiscussionEndTime {
			return precondErr("讨论时间尚未结束")
		}
		gs.DiscussionPhase = false
		gs.DiscussionEndTime = 0
		return nil
	})
}

// SubmitFinalVote 最终指认投票，同一玩家再次提交覆盖之前的票
func (gc *GameCoordinator) SubmitFinalVote(roomID, callerID, accusedID string) (*models.Room, error) {
	return gc.store.Transact(roomID, func(room *models.Room) error {
		if err := requirePlayer(room, callerID); err != nil {
			return err
		}
		if room.GameState.Phase != models.PhaseFinal {
			return precondErr("当前不在最终指认阶段")
		}
		if _, exists := room.Players[accusedID]; !exists {
			return validationErr("被指认的玩家不存在")
		}
		gs := &room.GameState
		if gs.FinalPhaseVotes == nil {
			gs.FinalPhaseVotes = make(map[string]string)
		}
		gs.FinalPhaseVotes[callerID] = accusedID
		return nil
	})
}

// ExpireFinalDiscussion 结束最终阶段的讨论倒计时，先到先得
func (gc *GameCoordinator) ExpireFinalDiscussion(roomID, callerID string) (*models.Room, error) {
	return gc.store.Transact(roomID, func(room *models.Room) error {
		if err := requirePlayer(room, callerID); err != nil {
			return err
		}
		gs := &room.GameState
		if gs.Phase != models.PhaseFinal || gs.FinalPhaseDiscussionEndTime == 0 {
			return nil
		}
		if gc.now() < gs.FinalPhaseDiscussionEndTime {
			return precondErr("讨论时间尚未结束")
		}
		gs.FinalPhaseDiscussionEndTime = 0
		return nil
	})
}

// TallyFinalVotes 房主在全员投票后结算：唯一最高票是狼人则好人胜，
// 否则狼人胜；平票一律判狼人胜
func (gc *GameCoordinator) TallyFinalVotes(roomID, callerID string) (*models.Room, error) {
	return gc.store.Transact(roomID, func(room *models.Room) error {
		if err := requireHost(room, callerID); err != nil {
			return err
		}
		gs := &room.GameState
		if gs.Phase != models.PhaseFinal {
			return precondErr("当前不在最终指认阶段")
		}
		for id := range room.Players {
			if _, voted := gs.FinalPhaseVotes[id]; !voted {
				return precondErr("还有玩家未投票")
			}
		}

		counts := make(map[string]int)
		for _, accused := range gs.FinalPhaseVotes {
			counts[accused]++
		}

		leaderID, unique := uniquePluralityLeader(counts)
		result := models.ResultWolfWin
		if unique && room.Players[leaderID].Role == models.RoleWolf {
			result = models.ResultCitizenWin
		}

		gs.FinalPhaseVoteCounts = counts
		gs.GameResult = result
		gs.Phase = models.PhaseFinished
		gs.SubPhase = models.SubPhaseNone
		gs.FinalPhaseDiscussionEndTime = 0
		appendLog(room, callerID, gc.now(), "投票结算完成，结果："+string(result))
		return nil
	})
}

// ResetToLobby 回到大厅。第一个确认的玩家负责把游戏状态清零并恢复资源，
// 之后的玩家只记录自己的确认
func (gc *GameCoordinator) ResetToLobby(roomID, callerID string) (*models.Room, error) {
	return gc.store.Transact(roomID, func(room *models.Room) error {
		if err := requirePlayer(room, callerID); err != nil {
			return err
		}
		gs := &room.GameState
		switch {
		case gs.Phase == models.PhaseFinished:
			// 第一个确认者执行重置，房间码保留以便连续开局
			for id, p := range room.Players {
				p.Role = models.RoleNone
				p.Resources = models.PlayerResources{}
				room.Players[id] = p
			}
			room.GameState = models.GameState{
				Phase:                 models.PhaseWaiting,
				ResultReturnLobbyAcks: map[string]bool{callerID: true},
			}
			appendLog(room, callerID, gc.now(), "房间已重置回大厅")
		case gs.Phase == models.PhaseWaiting && gs.ResultReturnLobbyAcks != nil:
			gs.ResultReturnLobbyAcks[callerID] = true
		default:
			return precondErr("当前阶段无法返回大厅")
		}
		return nil
	})
}

// commitStarAdvance 一颗星落账后的统一推进：更新回合计数、恢复医生的
// 回合内可用性，星数打满后进入最终指认阶段，否则轮到下一位玩家
func (gc *GameCoordinator) commitStarAdvance(room *models.Room) {
	gs := &room.GameState
	resolved := gs.WhiteStars + gs.BlackStars

	gs.Turn = resolved + 1
	if gs.Turn > room.Config.MaxTurns {
		gs.Turn = room.Config.MaxTurns
	}

	// 新回合医生铁拳重新可用
	for id, p := range room.Players {
		if p.Role == models.RoleDoctor && p.Resources.DoctorPunchRemaining > 0 {
			p.Resources.DoctorPunchAvailableThisTurn = true
			room.Players[id] = p
		}
	}

	if resolved >= room.Config.MaxTurns {
		gs.Phase = models.PhaseFinal
		gs.SubPhase = models.SubPhaseNone
		gs.Stage = ""
		gs.PendingFailure = nil
		gs.WolfDecisionPlayerID = ""
		gs.WolfActionRequest = nil
		gs.DiscussionPhase = false
		gs.DiscussionEndTime = 0
		gs.FinalPhaseVotes = make(map[string]string)
		gs.FinalPhaseDiscussionEndTime = gc.now() + int64(room.Config.FinalVoteSeconds)
		appendLog(room, "", gc.now(), "星数已打满，进入最终指认阶段")
		return
	}

	gs.CurrentPlayerIndex = (gs.CurrentPlayerIndex + 1) % len(gs.PlayerOrder)
	gs.SubPhase = models.SubPhaseGMStage
	gs.Stage = ""
}

// advanceWithoutStar 医生抵消失败后的推进：不计星、回合数不变，
// 只把出场顺序前移一位
func (gc *GameCoordinator) advanceWithoutStar(room *models.Room) {
	gs := &room.GameState
	gs.CurrentPlayerIndex = (gs.CurrentPlayerIndex + 1) % len(gs.PlayerOrder)
	gs.SubPhase = models.SubPhaseGMStage
	gs.Stage = ""
}

// initialResources 按角色初始化资源
func initialResources(role models.Role, cfg models.RoomConfig) models.PlayerResources {
	switch role {
	case models.RoleWolf:
		return models.PlayerResources{WolfActionsRemaining: cfg.WolfActions}
	case models.RoleDoctor:
		return models.PlayerResources{
			DoctorPunchRemaining:         cfg.DoctorPunches,
			DoctorPunchAvailableThisTurn: cfg.DoctorPunches > 0,
		}
	default:
		return models.PlayerResources{}
	}
}

// uniquePluralityLeader 返回得票最高者，存在平票时第二个返回值为false
func uniquePluralityLeader(counts map[string]int) (string, bool) {
	maxVotes := 0
	leaderID := ""
	unique := false
	for id, count := range counts {
		switch {
		case count > maxVotes:
			maxVotes = count
			leaderID = id
			unique = true
		case count == maxVotes:
			unique = false
		}
	}
	return leaderID, unique
}

// validateOptions 校验创建参数并填充默认值
func validateOptions(opts *RoomOptions, defaults GameConfig) error {
	if opts.MaxTurns == 0 {
		opts.MaxTurns = defaults.MaxTurns
	}
	if opts.WolfActions == 0 {
		opts.WolfActions = defaults.WolfActions
	}
	if opts.DoctorPunches == 0 {
		opts.DoctorPunches = defaults.DoctorPunches
	}
	if opts.DiscussionSeconds == 0 {
		opts.DiscussionSeconds = defaults.DiscussionSeconds
	}
	if opts.FinalVoteSeconds == 0 {
		opts.FinalVoteSeconds = defaults.FinalVoteSeconds
	}

	switch {
	case opts.MaxTurns < 1 || opts.MaxTurns > 20:
		return validationErr("回合数必须在1到20之间")
	case opts.WolfActions < 0 || opts.WolfActions > 5:
		return validationErr("狼人破坏次数必须在0到5之间")
	case opts.DoctorPunches < 0 || opts.DoctorPunches > 5:
		return validationErr("医生铁拳次数必须在0到5之间")
	case opts.DiscussionSeconds < 10 || opts.DiscussionSeconds > 600:
		return validationErr("讨论时长必须在10到600秒之间")
	case opts.FinalVoteSeconds < 10 || opts.FinalVoteSeconds > 600:
		return validationErr("最终投票时长必须在10到600秒之间")
	}
	return nil
}

// requireHost 校验调用者是房主
func requireHost(room *models.Room, callerID string) error {
	if callerID != room.Config.CreatedBy {
		return authErr("只有房主可以执行该操作")
	}
	return nil
}

// requirePlayer 校验调用者在房间中
func requirePlayer(room *models.Room, callerID string) error {
	if _, exists := room.Players[callerID]; !exists {
		return authErr("玩家不在房间中")
	}
	return nil
}

// requireRole 校验调用者持有指定角色
func requireRole(room *models.Room, callerID string, role models.Role) error {
	p, exists := room.Players[callerID]
	if !exists || p.Role != role {
		return authErr("角色不符，无法执行该操作")
	}
	return nil
}

// requireCurrentPlayer 校验调用者是当前出场玩家
func requireCurrentPlayer(room *models.Room, callerID string) error {
	if room.GameState.Phase != models.PhasePlaying {
		return precondErr("当前不在闯关阶段")
	}
	if room.CurrentPlayerID() != callerID {
		return authErr("还没轮到你")
	}
	return nil
}

// requireSubPhase 校验当前子阶段
func requireSubPhase(room *models.Room, sub models.SubPhase) error {
	if room.GameState.Phase != models.PhasePlaying {
		return precondErr("当前不在闯关阶段")
	}
	if room.GameState.SubPhase != sub {
		return precondErr("当前子阶段无法执行该操作")
	}
	return nil
}

func appendLog(room *models.Room, playerID string, now int64, message string) {
	room.Logs = append(room.Logs, models.LogEntry{
		Time:     now,
		PlayerID: playerID,
		Message:  message,
	})
}
