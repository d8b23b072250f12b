package services

import (
	"log"
	"time"

	"webtv-display-service/config"
	"webtv-display-service/models"
	"webtv-display-service/utils"
)

// InterfaceSettingsService 定义显示配置与播报触发文档的服务接口
type InterfaceSettingsService interface {
	Defaults() models.DisplaySettings
	GetSettings() models.DisplaySettings
	UpdateSettings(s models.DisplaySettings) (models.DisplaySettings, error)
	GetTrigger() (models.TriggerEvent, bool)
	FireAnnounce(name, room string, idle bool) (models.TriggerEvent, error)
}

// SettingsService 提供显示配置文档的读写
type SettingsService struct {
	Config *config.Config
	Redis  InterfaceRedisService
	Bus    InterfaceEventBus
}

// NewSettingsService 创建一个新的显示配置服务
func NewSettingsService(cfg *config.Config, redis InterfaceRedisService, bus InterfaceEventBus) InterfaceSettingsService {
	return &SettingsService{
		Config: cfg,
		Redis:  redis,
		Bus:    bus,
	}
}

// Defaults 返回环境配置给出的默认显示设置
func (s *SettingsService) Defaults() models.DisplaySettings {
	return models.DisplaySettings{
		IdleSeconds:         s.Config.IdleSeconds,
		DuckVolume:          s.Config.DuckVolume,
		RestoreVolume:       s.Config.RestoreVolume,
		LeadMs:              s.Config.LeadMs,
		SettleMs:            s.Config.SettleMs,
		AnnounceTemplate:    s.Config.AnnounceTemplate,
		AnnounceMode:        s.Config.AnnounceMode,
		RecallCountsForIdle: true,
	}
}

// GetSettings 读取显示配置文档。文档缺失或字段损坏时回退默认值，
// 显示端绝不因配置问题出错
func (s *SettingsService) GetSettings() models.DisplaySettings {
	def := s.Defaults()

	var stored models.DisplaySettings
	if err := s.Redis.GetDocument(DocSettings, &stored); err != nil {
		return def
	}
	return stored.Normalized(def)
}

// UpdateSettings 写入显示配置文档并广播变更
func (s *SettingsService) UpdateSettings(settings models.DisplaySettings) (models.DisplaySettings, error) {
	normalized := settings.Normalized(s.Defaults())

	if err := s.Redis.SetDocument(DocSettings, normalized); err != nil {
		return models.DisplaySettings{}, err
	}

	s.Bus.Publish(EventSettingsChanged, normalized)
	log.Printf("[设置] 显示配置已更新: idle=%ds duck=%d restore=%d mode=%s",
		normalized.IdleSeconds, normalized.DuckVolume, normalized.RestoreVolume, normalized.AnnounceMode)
	return normalized, nil
}

// GetTrigger 读取当前播报触发文档
func (s *SettingsService) GetTrigger() (models.TriggerEvent, bool) {
	var ev models.TriggerEvent
	if err := s.Redis.GetDocument(DocAnnounce, &ev); err != nil {
		return models.TriggerEvent{}, false
	}
	return ev, true
}

// FireAnnounce 写入播报触发文档。nonce每次生成都不同，
// 显示端以nonce变化区分真实触发与快照重放
func (s *SettingsService) FireAnnounce(name, room string, idle bool) (models.TriggerEvent, error) {
	ev := models.TriggerEvent{
		Name:        name,
		Room:        room,
		Idle:        idle,
		Nonce:       utils.NewNonce(),
		TriggeredAt: time.Now(),
	}

	if err := s.Redis.SetDocument(DocAnnounce, ev); err != nil {
		return models.TriggerEvent{}, err
	}

	s.Bus.Publish(EventAnnounceTrigger, ev)
	return ev, nil
}
