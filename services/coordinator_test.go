package services

import (
	"fmt"
	"testing"

	"github.com/qianlnk/wolfchallenge/models"
	"github.com/stretchr/testify/assert"
)

func testConfig() GameConfig {
	return GameConfig{
		MaxTurns:          3,
		WolfActions:       2,
		DoctorPunches:     1,
		DiscussionSeconds: 60,
		FinalVoteSeconds:  60,
		EffectSeconds:     1,
	}
}

func newTestCoordinator() (*GameCoordinator, *MemoryRoomStore) {
	store := NewMemoryRoomStore()
	return NewGameCoordinator(store, testConfig()), store
}

// setupWaitingRoom 创建房间并拉满n名玩家，p1是房主
func setupWaitingRoom(t *testing.T, gc *GameCoordinator, n int) (string, []string) {
	t.Helper()
	room, err := gc.CreateRoom("p1", "玩家1", RoomOptions{})
	assert.NoError(t, err)

	ids := []string{"p1"}
	for i := 2; i <= n; i++ {
		id := fmt.Sprintf("p%d", i)
		_, err := gc.JoinRoom(room.ID, id, fmt.Sprintf("玩家%d", i))
		assert.NoError(t, err)
		ids = append(ids, id)
	}
	return room.ID, ids
}

// setupPlayingRoom 把n人局一路推进到闯关阶段的关卡选择
func setupPlayingRoom(t *testing.T, gc *GameCoordinator, n int) (string, []string) {
	t.Helper()
	roomID, ids := setupWaitingRoom(t, gc, n)

	_, err := gc.StartGame(roomID, "p1")
	assert.NoError(t, err)
	for _, id := range ids {
		_, err := gc.AcknowledgeReveal(roomID, id)
		assert.NoError(t, err)
	}
	_, err = gc.AdvanceAfterAllAcked(roomID, "p1")
	assert.NoError(t, err)
	return roomID, ids
}

// findRole 按角色找玩家ID
func findRole(room *models.Room, role models.Role) string {
	p, _ := room.FindByRole(role)
	return p.ID
}

func mustGet(t *testing.T, store *MemoryRoomStore, roomID string) *models.Room {
	t.Helper()
	room, err := store.Get(roomID)
	assert.NoError(t, err)
	return room
}

// resolveSuccess 走完一整次成功挑战：选关卡、开始挑战、提交成功
func resolveSuccess(t *testing.T, gc *GameCoordinator, store *MemoryRoomStore, roomID string) *models.Room {
	t.Helper()
	room := mustGet(t, store, roomID)
	current := room.CurrentPlayerID()

	_, err := gc.SelectStage(roomID, room.Config.CreatedBy, "撕名牌")
	assert.NoError(t, err)
	_, err = gc.BeginChallengeAttempt(roomID, current)
	assert.NoError(t, err)
	room, err = gc.RecordChallengeSuccess(roomID, current)
	assert.NoError(t, err)
	return room
}

func TestCreateRoom_FillsDefaultsAndGeneratesCode(t *testing.T) {
	gc, _ := newTestCoordinator()

	room, err := gc.CreateRoom("p1", "玩家1", RoomOptions{})
	assert.NoError(t, err)
	assert.Len(t, room.ID, roomCodeLength)
	assert.Equal(t, models.PhaseWaiting, room.GameState.Phase)
	assert.Equal(t, 3, room.Config.MaxTurns)
	assert.Equal(t, 2, room.Config.WolfActions)
	assert.Equal(t, 1, room.Config.DoctorPunches)
	assert.Equal(t, "p1", room.Config.CreatedBy)
	assert.True(t, room.Players["p1"].IsHost)
}

func TestCreateRoom_RejectsInvalidOptions(t *testing.T) {
	gc, _ := newTestCoordinator()

	_, err := gc.CreateRoom("p1", "玩家1", RoomOptions{MaxTurns: 21})
	assert.True(t, IsValidationError(err))

	_, err = gc.CreateRoom("p1", "玩家1", RoomOptions{DiscussionSeconds: 5})
	assert.True(t, IsValidationError(err))

	_, err = gc.CreateRoom("", "玩家1", RoomOptions{})
	assert.True(t, IsValidationError(err))
}

func TestJoinRoom_RejoinUpdatesNameAndFullRoomRejected(t *testing.T) {
	gc, _ := newTestCoordinator()
	roomID, _ := setupWaitingRoom(t, gc, MaxPlayers)

	// 重复加入只更新昵称，不占新位置
	room, err := gc.JoinRoom(roomID, "p2", "新昵称")
	assert.NoError(t, err)
	assert.Equal(t, "新昵称", room.Players["p2"].Name)
	assert.Len(t, room.Players, MaxPlayers)

	_, err = gc.JoinRoom(roomID, "p9", "玩家9")
	assert.Equal(t, ErrRoomFull, err)
}

func TestJoinRoom_OnlyWhileWaiting(t *testing.T) {
	gc, _ := newTestCoordinator()
	roomID, _ := setupPlayingRoom(t, gc, 4)

	_, err := gc.JoinRoom(roomID, "late", "迟到者")
	assert.True(t, IsPreconditionError(err))
}

func TestLeaveRoom(t *testing.T) {
	gc, _ := newTestCoordinator()
	roomID, _ := setupWaitingRoom(t, gc, 3)

	room, err := gc.LeaveRoom(roomID, "p3")
	assert.NoError(t, err)
	assert.NotContains(t, room.Players, "p3")

	_, err = gc.LeaveRoom(roomID, "ghost")
	assert.True(t, IsPreconditionError(err))
}

// 3到8人每种规模都必须恰好1狼1医，其余平民
func TestStartGame_RoleCountsForEveryPlayerCount(t *testing.T) {
	for n := MinPlayers; n <= MaxPlayers; n++ {
		gc, _ := newTestCoordinator()
		roomID, _ := setupWaitingRoom(t, gc, n)

		room, err := gc.StartGame(roomID, "p1")
		assert.NoError(t, err)
		assert.Equal(t, models.PhaseRevealing, room.GameState.Phase)

		counts := map[models.Role]int{}
		for _, p := range room.Players {
			counts[p.Role]++
		}
		assert.Equal(t, 1, counts[models.RoleWolf], "人数=%d", n)
		assert.Equal(t, 1, counts[models.RoleDoctor], "人数=%d", n)
		assert.Equal(t, n-2, counts[models.RoleCitizen], "人数=%d", n)

		wolf := room.Players[findRole(room, models.RoleWolf)]
		doctor := room.Players[findRole(room, models.RoleDoctor)]
		assert.Equal(t, 2, wolf.Resources.WolfActionsRemaining)
		assert.Equal(t, 1, doctor.Resources.DoctorPunchRemaining)
		assert.True(t, doctor.Resources.DoctorPunchAvailableThisTurn)
	}
}

func TestStartGame_RejectsOutOfRangePlayerCount(t *testing.T) {
	gc, store := newTestCoordinator()
	roomID, _ := setupWaitingRoom(t, gc, 2)

	_, err := gc.StartGame(roomID, "p1")
	assert.True(t, IsPreconditionError(err))

	// 拒绝后记录保持原样
	room := mustGet(t, store, roomID)
	assert.Equal(t, models.PhaseWaiting, room.GameState.Phase)
	assert.Equal(t, models.RoleNone, room.Players["p1"].Role)
}

func TestStartGame_HostOnly(t *testing.T) {
	gc, _ := newTestCoordinator()
	roomID, _ := setupWaitingRoom(t, gc, 4)

	_, err := gc.StartGame(roomID, "p2")
	assert.True(t, IsAuthorizationError(err))
}

func TestRevealFlow_AdvanceRequiresAllAcks(t *testing.T) {
	gc, _ := newTestCoordinator()
	roomID, ids := setupWaitingRoom(t, gc, 4)
	_, err := gc.StartGame(roomID, "p1")
	assert.NoError(t, err)

	_, err = gc.AcknowledgeReveal(roomID, "p1")
	assert.NoError(t, err)
	_, err = gc.AcknowledgeReveal(roomID, "p1") // 重复确认无害
	assert.NoError(t, err)

	_, err = gc.AdvanceAfterAllAcked(roomID, "p1")
	assert.True(t, IsPreconditionError(err))

	for _, id := range ids[1:] {
		_, err := gc.AcknowledgeReveal(roomID, id)
		assert.NoError(t, err)
	}
	room, err := gc.AdvanceAfterAllAcked(roomID, "p1")
	assert.NoError(t, err)

	gs := room.GameState
	assert.Equal(t, models.PhasePlaying, gs.Phase)
	assert.Equal(t, models.SubPhaseGMStage, gs.SubPhase)
	assert.Equal(t, 1, gs.Turn)
	assert.Equal(t, 0, gs.CurrentPlayerIndex)
	assert.ElementsMatch(t, ids, gs.PlayerOrder)
	assert.NotEmpty(t, room.RandomResults["player_order"])
	assert.Nil(t, gs.RevealAcks)
}

func TestChallenge_OnlyCurrentPlayerMayAct(t *testing.T) {
	gc, store := newTestCoordinator()
	roomID, ids := setupPlayingRoom(t, gc, 4)

	room := mustGet(t, store, roomID)
	current := room.CurrentPlayerID()
	var other string
	for _, id := range ids {
		if id != current {
			other = id
			break
		}
	}

	_, err := gc.SelectStage(roomID, "p1", "撕名牌")
	assert.NoError(t, err)

	_, err = gc.BeginChallengeAttempt(roomID, other)
	assert.True(t, IsAuthorizationError(err))
	_, err = gc.RecordChallengeSuccess(roomID, other)
	assert.True(t, IsAuthorizationError(err))
	_, err = gc.RecordChallengeFailure(roomID, other)
	assert.True(t, IsAuthorizationError(err))
}

func TestChallengeSuccess_CommitsStarAndAdvances(t *testing.T) {
	gc, store := newTestCoordinator()
	roomID, _ := setupPlayingRoom(t, gc, 4)

	room := resolveSuccess(t, gc, store, roomID)
	gs := room.GameState
	assert.Equal(t, 1, gs.WhiteStars)
	assert.Equal(t, 2, gs.Turn)
	assert.Equal(t, 1, gs.CurrentPlayerIndex)
	assert.Equal(t, models.SubPhaseGMStage, gs.SubPhase)
	assert.Empty(t, gs.Stage)
}

// 回合计数始终等于 min(总回合数, 已结算星数+1)
func TestTurnCounterTracksResolvedStars(t *testing.T) {
	gc, store := newTestCoordinator()
	roomID, _ := setupPlayingRoom(t, gc, 4)

	room := resolveSuccess(t, gc, store, roomID)
	assert.Equal(t, 2, room.GameState.Turn)

	room = resolveSuccess(t, gc, store, roomID)
	assert.Equal(t, 3, room.GameState.Turn)

	// 第三颗星落账：回合数封顶在3，进入最终指认
	room = resolveSuccess(t, gc, store, roomID)
	gs := room.GameState
	assert.Equal(t, 3, gs.Turn)
	assert.Equal(t, models.PhaseFinal, gs.Phase)
	assert.NotZero(t, gs.FinalPhaseDiscussionEndTime)
	assert.Nil(t, gs.PendingFailure)
}

func TestChallengeFailure_DefersToDoctorWhenPunchAvailable(t *testing.T) {
	gc, store := newTestCoordinator()
	roomID, _ := setupPlayingRoom(t, gc, 4)

	room := mustGet(t, store, roomID)
	current := room.CurrentPlayerID()
	_, err := gc.SelectStage(roomID, "p1", "撕名牌")
	assert.NoError(t, err)
	_, err = gc.BeginChallengeAttempt(roomID, current)
	assert.NoError(t, err)

	room, err = gc.RecordChallengeFailure(roomID, current)
	assert.NoError(t, err)
	gs := room.GameState
	assert.Equal(t, models.SubPhaseAwaitDoctor, gs.SubPhase)
	assert.NotNil(t, gs.PendingFailure)
	assert.Equal(t, current, gs.PendingFailure.PlayerID)
	assert.Equal(t, 0, gs.BlackStars)

	// 已有失败挂起时不允许再次提交结果
	_, err = gc.RecordChallengeFailure(roomID, current)
	assert.True(t, IsPreconditionError(err))
	_, err = gc.RecordChallengeSuccess(roomID, current)
	assert.True(t, IsPreconditionError(err))
}

func TestDoctorIntervention_NegatesFailureWithoutAdvancingTurn(t *testing.T) {
	gc, store := newTestCoordinator()
	roomID, _ := setupPlayingRoom(t, gc, 4)

	room := mustGet(t, store, roomID)
	current := room.CurrentPlayerID()
	doctorID := findRole(room, models.RoleDoctor)

	_, err := gc.SelectStage(roomID, "p1", "撕名牌")
	assert.NoError(t, err)
	_, err = gc.BeginChallengeAttempt(roomID, current)
	assert.NoError(t, err)
	_, err = gc.RecordChallengeFailure(roomID, current)
	assert.NoError(t, err)

	// 只有医生能出拳
	if doctorID != current {
		_, err = gc.ResolveDoctorIntervention(roomID, current)
		assert.True(t, IsAuthorizationError(err))
	}

	room, err = gc.ResolveDoctorIntervention(roomID, doctorID)
	assert.NoError(t, err)
	gs := room.GameState
	assert.Nil(t, gs.PendingFailure)
	assert.Equal(t, models.SubPhaseAwaitDoctorPunchResult, gs.SubPhase)
	assert.Equal(t, 0, gs.BlackStars)
	assert.Equal(t, 0, gs.WhiteStars)
	assert.Equal(t, 1, gs.Turn)
	assert.Equal(t, 0, gs.CurrentPlayerIndex)

	doctor := room.Players[doctorID]
	assert.Equal(t, 0, doctor.Resources.DoctorPunchRemaining)
	assert.False(t, doctor.Resources.DoctorPunchAvailableThisTurn)

	// 结算动画确认后才轮到下一位，回合数仍然不变
	room, err = gc.ConfirmDoctorPunchResult(roomID, "p1")
	assert.NoError(t, err)
	gs = room.GameState
	assert.Equal(t, 1, gs.Turn)
	assert.Equal(t, 1, gs.CurrentPlayerIndex)
	assert.Equal(t, models.SubPhaseGMStage, gs.SubPhase)
}

func TestSkipDoctorIntervention_CommitsBlackStar(t *testing.T) {
	gc, store := newTestCoordinator()
	roomID, _ := setupPlayingRoom(t, gc, 4)

	room := mustGet(t, store, roomID)
	current := room.CurrentPlayerID()
	doctorID := findRole(room, models.RoleDoctor)

	_, err := gc.SelectStage(roomID, "p1", "撕名牌")
	assert.NoError(t, err)
	_, err = gc.BeginChallengeAttempt(roomID, current)
	assert.NoError(t, err)
	_, err = gc.RecordChallengeFailure(roomID, current)
	assert.NoError(t, err)

	room, err = gc.SkipDoctorIntervention(roomID, doctorID)
	assert.NoError(t, err)
	gs := room.GameState
	assert.Nil(t, gs.PendingFailure)
	assert.Equal(t, 1, gs.BlackStars)
	assert.Equal(t, 2, gs.Turn)
	assert.Equal(t, 1, gs.CurrentPlayerIndex)
	assert.Equal(t, models.SubPhaseGMStage, gs.SubPhase)

	// 铁拳没有消耗，新回合依然可用
	doctor := room.Players[doctorID]
	assert.Equal(t, 1, doctor.Resources.DoctorPunchRemaining)
	assert.True(t, doctor.Resources.DoctorPunchAvailableThisTurn)
}

func TestFailureAfterPunchExhaustedCommitsImmediately(t *testing.T) {
	gc, store := newTestCoordinator()
	roomID, _ := setupPlayingRoom(t, gc, 4)

	room := mustGet(t, store, roomID)
	doctorID := findRole(room, models.RoleDoctor)
	current := room.CurrentPlayerID()

	_, err := gc.SelectStage(roomID, "p1", "撕名牌")
	assert.NoError(t, err)
	_, err = gc.BeginChallengeAttempt(roomID, current)
	assert.NoError(t, err)
	_, err = gc.RecordChallengeFailure(roomID, current)
	assert.NoError(t, err)
	_, err = gc.ResolveDoctorIntervention(roomID, doctorID)
	assert.NoError(t, err)
	_, err = gc.ConfirmDoctorPunchResult(roomID, "p1")
	assert.NoError(t, err)

	// 铁拳已耗尽，下一次失败直接落黑星
	room = mustGet(t, store, roomID)
	current = room.CurrentPlayerID()
	_, err = gc.SelectStage(roomID, "p1", "钉子户")
	assert.NoError(t, err)
	_, err = gc.BeginChallengeAttempt(roomID, current)
	assert.NoError(t, err)
	room, err = gc.RecordChallengeFailure(roomID, current)
	assert.NoError(t, err)
	gs := room.GameState
	assert.Nil(t, gs.PendingFailure)
	assert.Equal(t, 1, gs.BlackStars)
	assert.Equal(t, 2, gs.Turn)
}

func TestWolfSabotage_FullCycleAndChargeAccounting(t *testing.T) {
	gc, store := newTestCoordinator()
	roomID, _ := setupPlayingRoom(t, gc, 4)

	room := mustGet(t, store, roomID)
	wolfID := findRole(room, models.RoleWolf)
	citizenID := findRole(room, models.RoleCitizen)

	_, err := gc.SelectStage(roomID, "p1", "撕名牌")
	assert.NoError(t, err)

	_, err = gc.ActivateWolfSabotage(roomID, citizenID)
	assert.True(t, IsAuthorizationError(err))

	// 激活只占住子阶段，不扣次数
	room, err = gc.ActivateWolfSabotage(roomID, wolfID)
	assert.NoError(t, err)
	assert.Equal(t, models.SubPhaseWolfDecision, room.GameState.SubPhase)
	assert.Equal(t, wolfID, room.GameState.WolfDecisionPlayerID)
	assert.Equal(t, 2, room.Players[wolfID].Resources.WolfActionsRemaining)

	// 取消也不扣次数
	room, err = gc.CancelWolfSabotage(roomID, wolfID)
	assert.NoError(t, err)
	assert.Equal(t, models.SubPhaseChallengeStart, room.GameState.SubPhase)
	assert.Equal(t, 2, room.Players[wolfID].Resources.WolfActionsRemaining)

	_, err = gc.ActivateWolfSabotage(roomID, wolfID)
	assert.NoError(t, err)
	_, err = gc.ResolveWolfSabotage(roomID, wolfID, "自爆")
	assert.True(t, IsValidationError(err))

	room, err = gc.ResolveWolfSabotage(roomID, wolfID, SabotageDrawRestriction)
	assert.NoError(t, err)
	gs := room.GameState
	assert.Equal(t, models.SubPhaseWolfResolving, gs.SubPhase)
	assert.NotNil(t, gs.WolfActionRequest)
	assert.NotEmpty(t, gs.WolfActionRequest.Restriction)
	assert.Equal(t, 1, room.Players[wolfID].Resources.WolfActionsRemaining)
	assert.NotEmpty(t, room.RandomResults["sabotage_turn_1"])

	// 只有发动者能结束结算
	_, err = gc.CompleteWolfSabotage(roomID, citizenID)
	assert.True(t, IsAuthorizationError(err))
	room, err = gc.CompleteWolfSabotage(roomID, wolfID)
	assert.NoError(t, err)
	assert.Equal(t, models.SubPhaseChallengeStart, room.GameState.SubPhase)
	assert.Nil(t, room.GameState.WolfActionRequest)

	// 耗尽剩余次数后再激活被拒绝
	_, err = gc.ActivateWolfSabotage(roomID, wolfID)
	assert.NoError(t, err)
	_, err = gc.ResolveWolfSabotage(roomID, wolfID, SabotageDrawRestriction)
	assert.NoError(t, err)
	_, err = gc.CompleteWolfSabotage(roomID, wolfID)
	assert.NoError(t, err)

	_, err = gc.ActivateWolfSabotage(roomID, wolfID)
	assert.True(t, IsPreconditionError(err))
}

func TestDiscussion_DeadlineAndIdempotentExpiry(t *testing.T) {
	gc, _ := newTestCoordinator()
	clock := int64(1000)
	gc.now = func() int64 { return clock }

	roomID, _ := setupPlayingRoom(t, gc, 4)

	room, err := gc.StartDiscussion(roomID, "p1")
	assert.NoError(t, err)
	assert.True(t, room.GameState.DiscussionPhase)
	assert.Equal(t, int64(1060), room.GameState.DiscussionEndTime)

	// 讨论期间不能选关卡，也不能重复发起
	_, err = gc.SelectStage(roomID, "p1", "撕名牌")
	assert.True(t, IsPreconditionError(err))
	_, err = gc.StartDiscussion(roomID, "p1")
	assert.True(t, IsPreconditionError(err))

	// 截止前的结束请求被拒绝
	_, err = gc.ExpireDiscussion(roomID, "p2")
	assert.True(t, IsPreconditionError(err))

	clock = 1061
	room, err = gc.ExpireDiscussion(roomID, "p2")
	assert.NoError(t, err)
	assert.False(t, room.GameState.DiscussionPhase)

	// 其余客户端的重复结束请求是无害空操作
	_, err = gc.ExpireDiscussion(roomID, "p3")
	assert.NoError(t, err)

	_, err = gc.SelectStage(roomID, "p1", "撕名牌")
	assert.NoError(t, err)
}

// driveToFinal 连续三次成功把局面推进到最终指认阶段
func driveToFinal(t *testing.T, gc *GameCoordinator, store *MemoryRoomStore) (string, []string) {
	t.Helper()
	roomID, ids := setupPlayingRoom(t, gc, 4)
	for i := 0; i < 3; i++ {
		resolveSuccess(t, gc, store, roomID)
	}
	return roomID, ids
}

func TestFinalVotes_UniqueWolfLeaderMeansCitizenWin(t *testing.T) {
	gc, store := newTestCoordinator()
	roomID, ids := driveToFinal(t, gc, store)
	room := mustGet(t, store, roomID)
	wolfID := findRole(room, models.RoleWolf)

	// 未全员投票时不能结算
	_, err := gc.SubmitFinalVote(roomID, ids[0], wolfID)
	assert.NoError(t, err)
	_, err = gc.TallyFinalVotes(roomID, "p1")
	assert.True(t, IsPreconditionError(err))

	for _, id := range ids[1:] {
		_, err := gc.SubmitFinalVote(roomID, id, wolfID)
		assert.NoError(t, err)
	}
	room, err = gc.TallyFinalVotes(roomID, "p1")
	assert.NoError(t, err)
	gs := room.GameState
	assert.Equal(t, models.ResultCitizenWin, gs.GameResult)
	assert.Equal(t, models.PhaseFinished, gs.Phase)
	assert.Equal(t, 4, gs.FinalPhaseVoteCounts[wolfID])
}

func TestFinalVotes_UniqueNonWolfLeaderMeansWolfWin(t *testing.T) {
	gc, store := newTestCoordinator()
	roomID, ids := driveToFinal(t, gc, store)
	room := mustGet(t, store, roomID)
	wolfID := findRole(room, models.RoleWolf)
	citizenID := findRole(room, models.RoleCitizen)

	// 3票指错人，1票指中：唯一最高票不是狼，狼人胜
	votes := 0
	for _, id := range ids {
		accused := citizenID
		if votes == 3 {
			accused = wolfID
		}
		_, err := gc.SubmitFinalVote(roomID, id, accused)
		assert.NoError(t, err)
		votes++
	}
	room, err := gc.TallyFinalVotes(roomID, "p1")
	assert.NoError(t, err)
	assert.Equal(t, models.ResultWolfWin, room.GameState.GameResult)
}

func TestFinalVotes_TieMeansWolfWin(t *testing.T) {
	gc, store := newTestCoordinator()
	roomID, ids := driveToFinal(t, gc, store)
	room := mustGet(t, store, roomID)
	wolfID := findRole(room, models.RoleWolf)
	citizenID := findRole(room, models.RoleCitizen)

	for i, id := range ids {
		accused := wolfID
		if i%2 == 1 {
			accused = citizenID
		}
		_, err := gc.SubmitFinalVote(roomID, id, accused)
		assert.NoError(t, err)
	}
	room, err := gc.TallyFinalVotes(roomID, "p1")
	assert.NoError(t, err)
	assert.Equal(t, models.ResultWolfWin, room.GameState.GameResult)
}

func TestFinalVotes_ResubmitOverwrites(t *testing.T) {
	gc, store := newTestCoordinator()
	roomID, ids := driveToFinal(t, gc, store)
	room := mustGet(t, store, roomID)
	wolfID := findRole(room, models.RoleWolf)
	citizenID := findRole(room, models.RoleCitizen)

	// 先投错再改投，生效的是最后一票
	for _, id := range ids {
		_, err := gc.SubmitFinalVote(roomID, id, citizenID)
		assert.NoError(t, err)
	}
	for _, id := range ids {
		_, err := gc.SubmitFinalVote(roomID, id, wolfID)
		assert.NoError(t, err)
	}
	room, err := gc.TallyFinalVotes(roomID, "p1")
	assert.NoError(t, err)
	assert.Equal(t, models.ResultCitizenWin, room.GameState.GameResult)
	assert.Equal(t, 4, room.GameState.FinalPhaseVoteCounts[wolfID])
	assert.Zero(t, room.GameState.FinalPhaseVoteCounts[citizenID])
}

func TestSubmitFinalVote_Validation(t *testing.T) {
	gc, store := newTestCoordinator()
	roomID, _ := driveToFinal(t, gc, store)

	_, err := gc.SubmitFinalVote(roomID, "p1", "ghost")
	assert.True(t, IsValidationError(err))
	_, err = gc.SubmitFinalVote(roomID, "ghost", "p1")
	assert.True(t, IsAuthorizationError(err))
	_, err = gc.TallyFinalVotes(roomID, "p2")
	assert.True(t, IsAuthorizationError(err))
}

func TestExpireFinalDiscussion(t *testing.T) {
	gc, store := newTestCoordinator()
	clock := int64(1000)
	gc.now = func() int64 { return clock }

	roomID, _ := driveToFinal(t, gc, store)

	_, err := gc.ExpireFinalDiscussion(roomID, "p2")
	assert.True(t, IsPreconditionError(err))

	clock += 100
	room, err := gc.ExpireFinalDiscussion(roomID, "p2")
	assert.NoError(t, err)
	assert.Zero(t, room.GameState.FinalPhaseDiscussionEndTime)

	// 倒计时已清零后的重复调用是无害空操作
	_, err = gc.ExpireFinalDiscussion(roomID, "p3")
	assert.NoError(t, err)
}

func TestResetToLobby_FirstAckResetsLaterAcksRecord(t *testing.T) {
	gc, store := newTestCoordinator()
	roomID, ids := driveToFinal(t, gc, store)
	room := mustGet(t, store, roomID)
	wolfID := findRole(room, models.RoleWolf)
	for _, id := range ids {
		_, err := gc.SubmitFinalVote(roomID, id, wolfID)
		assert.NoError(t, err)
	}
	_, err := gc.TallyFinalVotes(roomID, "p1")
	assert.NoError(t, err)

	room, err = gc.ResetToLobby(roomID, "p2")
	assert.NoError(t, err)
	gs := room.GameState
	assert.Equal(t, models.PhaseWaiting, gs.Phase)
	assert.True(t, gs.ResultReturnLobbyAcks["p2"])
	assert.Equal(t, models.ResultNone, gs.GameResult)
	for _, p := range room.Players {
		assert.Equal(t, models.RoleNone, p.Role)
		assert.Equal(t, models.PlayerResources{}, p.Resources)
	}

	room, err = gc.ResetToLobby(roomID, "p3")
	assert.NoError(t, err)
	assert.True(t, room.GameState.ResultReturnLobbyAcks["p3"])

	// 房间码保留，可以直接连续开局
	room, err = gc.StartGame(roomID, "p1")
	assert.NoError(t, err)
	assert.Equal(t, models.PhaseRevealing, room.GameState.Phase)
	assert.Nil(t, room.GameState.ResultReturnLobbyAcks)
}

func TestResetToLobby_RejectedMidGame(t *testing.T) {
	gc, _ := newTestCoordinator()
	roomID, _ := setupPlayingRoom(t, gc, 4)

	_, err := gc.ResetToLobby(roomID, "p1")
	assert.True(t, IsPreconditionError(err))
}

func TestUniquePluralityLeader(t *testing.T) {
	leader, unique := uniquePluralityLeader(map[string]int{"a": 3, "b": 1})
	assert.Equal(t, "a", leader)
	assert.True(t, unique)

	_, unique = uniquePluralityLeader(map[string]int{"a": 2, "b": 2})
	assert.False(t, unique)

	_, unique = uniquePluralityLeader(map[string]int{})
	assert.False(t, unique)
}
