package services

import (
	"fmt"
	"math/rand"

	"github.com/qianlnk/wolfchallenge/models"
)

// 房间码字符集：6位大写字母数字
const roomCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const roomCodeLength = 6

// 角色分配的人数边界
const (
	MinPlayers = 3
	MaxPlayers = 8
)

// 狼人破坏可抽取的限制条件池
var sabotageRestrictions = []string{
	"单手完成挑战",
	"闭眼完成挑战",
	"全程不许说话",
	"只能用非惯用手",
	"时间减半",
}

// GenerateRoomCode 生成6位房间码。客户端侧生成，不做全局唯一性保证，
// 碰撞时创建操作后写覆盖先写
func GenerateRoomCode() string {
	code := make([]byte, roomCodeLength)
	for i := range code {
		code[i] = roomCodeChars[rand.Intn(len(roomCodeChars))]
	}
	return string(code)
}

// generateRolePool 按玩家数量生成角色池：1个狼人，1个医生，其余平民
func generateRolePool(playerCount int) []models.Role {
	roles := make([]models.Role, 0, playerCount)
	roles = append(roles, models.RoleWolf)
	if playerCount >= MinPlayers {
		roles = append(roles, models.RoleDoctor)
	}
	for len(roles) < playerCount {
		roles = append(roles, models.RoleCitizen)
	}
	return roles
}

// shuffledRoles 返回随机打乱后的角色池
func shuffledRoles(playerCount int) []models.Role {
	roles := generateRolePool(playerCount)
	rand.Shuffle(len(roles), func(i, j int) {
		roles[i], roles[j] = roles[j], roles[i]
	})
	return roles
}

// shuffledPlayerOrder 返回随机打乱后的出场顺序
func shuffledPlayerOrder(playerIDs []string) []string {
	order := make([]string, len(playerIDs))
	copy(order, playerIDs)
	rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return order
}

// drawSabotageRestriction 抽取一条限制条件，并把结果写入审计记录以便复盘
func drawSabotageRestriction(room *models.Room) string {
	restriction := sabotageRestrictions[rand.Intn(len(sabotageRestrictions))]
	if room.RandomResults == nil {
		room.RandomResults = make(map[string]string)
	}
	key := fmt.Sprintf("sabotage_turn_%d", room.GameState.Turn)
	room.RandomResults[key] = restriction
	return restriction
}
