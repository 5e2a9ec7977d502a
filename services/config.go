package services

import (
	"log"

	"github.com/spf13/viper"
)

// GameConfig 服务端运行配置
type GameConfig struct {
	Port              int `mapstructure:"port"`
	MaxTurns          int `mapstructure:"max_turns"`
	WolfActions       int `mapstructure:"wolf_actions"`
	DoctorPunches     int `mapstructure:"doctor_punches"`
	DiscussionSeconds int `mapstructure:"discussion_seconds"`
	FinalVoteSeconds  int `mapstructure:"final_vote_seconds"`
	EffectSeconds     int `mapstructure:"effect_seconds"`
}

// LoadConfig 加载配置：config.yaml可选，环境变量WOLFCHALLENGE_*覆盖，
// 缺省值保证裸启动可用
func LoadConfig() GameConfig {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("wolfchallenge")
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("game.max_turns", 5)
	v.SetDefault("game.wolf_actions", 2)
	v.SetDefault("game.doctor_punches", 1)
	v.SetDefault("game.discussion_seconds", 120)
	v.SetDefault("game.final_vote_seconds", 180)
	v.SetDefault("game.effect_seconds", 3)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); notFound {
			log.Printf("[配置] 未找到config.yaml，使用默认配置")
		} else {
			log.Printf("[配置] 读取配置文件失败: %v，使用默认配置", err)
		}
	}

	return GameConfig{
		Port:              v.GetInt("server.port"),
		MaxTurns:          v.GetInt("game.max_turns"),
		WolfActions:       v.GetInt("game.wolf_actions"),
		DoctorPunches:     v.GetInt("game.doctor_punches"),
		DiscussionSeconds: v.GetInt("game.discussion_seconds"),
		FinalVoteSeconds:  v.GetInt("game.final_vote_seconds"),
		EffectSeconds:     v.GetInt("game.effect_seconds"),
	}
}
