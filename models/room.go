package models

// GamePhase 游戏主阶段
type GamePhase string

const (
	PhaseWaiting   GamePhase = "waiting"     // 等待玩家加入
	PhaseRevealing GamePhase = "revealing"   // 身份确认阶段
	PhasePlaying   GamePhase = "playing"     // 闯关阶段
	PhaseFinal     GamePhase = "final_phase" // 最终指认阶段
	PhaseFinished  GamePhase = "finished"    // 游戏结束
)

// SubPhase playing阶段内的子阶段
type SubPhase string

const (
	SubPhaseNone                   SubPhase = ""
	SubPhaseGMStage                SubPhase = "gm_stage"                  // 主持人选择关卡
	SubPhaseChallengeStart         SubPhase = "challenge_start"           // 当前玩家准备挑战
	SubPhaseWolfDecision           SubPhase = "wolf_decision"             // 狼人考虑是否破坏
	SubPhaseWolfResolving          SubPhase = "wolf_resolving"            // 狼人破坏结算中
	SubPhaseAwaitResult            SubPhase = "await_result"              // 等待挑战结果
	SubPhaseAwaitDoctor            SubPhase = "await_doctor"              // 等待医生决定
	SubPhaseAwaitDoctorPunchResult SubPhase = "await_doctor_punch_result" // 医生铁拳结算中
)

// Role 游戏角色
type Role string

const (
	RoleNone    Role = ""        // 未分配
	RoleWolf    Role = "wolf"    // 狼人
	RoleDoctor  Role = "doctor"  // 医生
	RoleCitizen Role = "citizen" // 平民
)

// GameResult 游戏结果
type GameResult string

const (
	ResultNone       GameResult = ""            // 游戏未结束
	ResultWolfWin    GameResult = "wolf_win"    // 狼人阵营胜利
	ResultCitizenWin GameResult = "citizen_win" // 好人阵营胜利
)

// PlayerResources 玩家资源
type PlayerResources struct {
	WolfActionsRemaining         int  `json:"wolf_actions_remaining"`           // 狼人剩余破坏次数
	DoctorPunchRemaining         int  `json:"doctor_punch_remaining"`           // 医生剩余铁拳次数
	DoctorPunchAvailableThisTurn bool `json:"doctor_punch_available_this_turn"` // 本回合铁拳是否可用
}

// Player 玩家信息
type Player struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Avatar    string          `json:"avatar,omitempty"`
	Role      Role            `json:"role"`
	Resources PlayerResources `json:"resources"`
	IsHost    bool            `json:"is_host"` // 仅用于展示，权限判定以Config.CreatedBy为准
	JoinedAt  int64           `json:"joined_at"`
}

// RoomConfig 房间配置，创建后不可变
type RoomConfig struct {
	Name              string `json:"name"`
	CreatedBy         string `json:"created_by"`
	MaxTurns          int    `json:"max_turns"`
	WolfActions       int    `json:"wolf_actions"`
	DoctorPunches     int    `json:"doctor_punches"`
	DiscussionSeconds int    `json:"discussion_seconds"`
	FinalVoteSeconds  int    `json:"final_vote_seconds"`
	CreatedAt         int64  `json:"created_at"`
}

// PendingFailure 待医生决定的失败记录
type PendingFailure struct {
	PlayerID string `json:"player_id"`
	Turn     int    `json:"turn"`
}

// WolfActionRequest 狼人破坏的临时结算状态
type WolfActionRequest struct {
	PlayerID    string `json:"player_id"`
	Action      string `json:"action"`
	Restriction string `json:"restriction,omitempty"` // 抽取到的限制条件
	RequestedAt int64  `json:"requested_at"`
}

// GameState 游戏状态机的可变核心
type GameState struct {
	Phase                       GamePhase          `json:"phase"`
	SubPhase                    SubPhase           `json:"sub_phase"`
	Turn                        int                `json:"turn"`
	WhiteStars                  int                `json:"white_stars"`
	BlackStars                  int                `json:"black_stars"`
	Stage                       string             `json:"stage,omitempty"` // 本回合关卡
	PlayerOrder                 []string           `json:"player_order"`
	CurrentPlayerIndex          int                `json:"current_player_index"`
	PendingFailure              *PendingFailure    `json:"pending_failure,omitempty"`
	RevealAcks                  map[string]bool    `json:"reveal_acks,omitempty"`
	WolfDecisionPlayerID        string             `json:"wolf_decision_player_id,omitempty"`
	WolfActionRequest           *WolfActionRequest `json:"wolf_action_request,omitempty"`
	DiscussionPhase             bool               `json:"discussion_phase"`
	DiscussionEndTime           int64              `json:"discussion_end_time,omitempty"`
	FinalPhaseVotes             map[string]string  `json:"final_phase_votes,omitempty"`
	FinalPhaseVoteCounts        map[string]int     `json:"final_phase_vote_counts,omitempty"`
	FinalPhaseDiscussionEndTime int64              `json:"final_phase_discussion_end_time,omitempty"`
	GameResult                  GameResult         `json:"game_result"`
	ResultReturnLobbyAcks       map[string]bool    `json:"result_return_lobby_acks,omitempty"`
}

// LogEntry 房间日志，只追加
type LogEntry struct {
	Time     int64  `json:"time"`
	PlayerID string `json:"player_id,omitempty"`
	Message  string `json:"message"`
}

// Room 房间记录，共享状态的根聚合
type Room struct {
	ID            string            `json:"id"` // 6位大写字母数字房间码
	Config        RoomConfig        `json:"config"`
	GameState     GameState         `json:"game_state"`
	Players       map[string]Player `json:"players"`
	Logs          []LogEntry        `json:"logs,omitempty"`
	RandomResults map[string]string `json:"random_results,omitempty"` // 随机结果审计记录
	Version       int64             `json:"version"`                  // 乐观并发版本号
}

// CurrentPlayerID 返回当前挑战玩家的ID，顺序未确定时返回空串
func (r *Room) CurrentPlayerID() string {
	gs := &r.GameState
	if len(gs.PlayerOrder) == 0 {
		return ""
	}
	if gs.CurrentPlayerIndex < 0 || gs.CurrentPlayerIndex >= len(gs.PlayerOrder) {
		return ""
	}
	return gs.PlayerOrder[gs.CurrentPlayerIndex]
}

// FindByRole 返回第一个持有指定角色的玩家
func (r *Room) FindByRole(role Role) (Player, bool) {
	for _, p := range r.Players {
		if p.Role == role {
			return p, true
		}
	}
	return Player{}, false
}

// Clone 深拷贝房间记录，事务和快照推送都依赖副本隔离
func (r *Room) Clone() *Room {
	cp := *r

	cp.Players = make(map[string]Player, len(r.Players))
	for id, p := range r.Players {
		cp.Players[id] = p
	}

	if r.Logs != nil {
		cp.Logs = make([]LogEntry, len(r.Logs))
		copy(cp.Logs, r.Logs)
	}

	if r.RandomResults != nil {
		cp.RandomResults = make(map[string]string, len(r.RandomResults))
		for k, v := range r.RandomResults {
			cp.RandomResults[k] = v
		}
	}

	gs := &cp.GameState
	if r.GameState.PlayerOrder != nil {
		gs.PlayerOrder = make([]string, len(r.GameState.PlayerOrder))
		copy(gs.PlayerOrder, r.GameState.PlayerOrder)
	}
	if r.GameState.PendingFailure != nil {
		pf := *r.GameState.PendingFailure
		gs.PendingFailure = &pf
	}
	if r.GameState.WolfActionRequest != nil {
		req := *r.GameState.WolfActionRequest
		gs.WolfActionRequest = &req
	}
	gs.RevealAcks = cloneBoolMap(r.GameState.RevealAcks)
	gs.ResultReturnLobbyAcks = cloneBoolMap(r.GameState.ResultReturnLobbyAcks)
	if r.GameState.FinalPhaseVotes != nil {
		gs.FinalPhaseVotes = make(map[string]string, len(r.GameState.FinalPhaseVotes))
		for k, v := range r.GameState.FinalPhaseVotes {
			gs.FinalPhaseVotes[k] = v
		}
	}
	if r.GameState.FinalPhaseVoteCounts != nil {
		gs.FinalPhaseVoteCounts = make(map[string]int, len(r.GameState.FinalPhaseVoteCounts))
		for k, v := range r.GameState.FinalPhaseVoteCounts {
			gs.FinalPhaseVoteCounts[k] = v
		}
	}

	return &cp
}

func cloneBoolMap(src map[string]bool) map[string]bool {
	if src == nil {
		return nil
	}
	dst := make(map[string]bool, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
