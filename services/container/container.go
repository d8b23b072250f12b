package container

import (
	"context"
	"log"
	"sync"

	"webtv-display-service/config"
	"webtv-display-service/services"

	"gorm.io/gorm"
)

// ServiceContainer 管理所有服务的依赖注入
type ServiceContainer struct {
	db     *gorm.DB
	config *config.Config

	// 基础设施
	eventBus     services.InterfaceEventBus
	redisService services.InterfaceRedisService
	mediaSurface services.InterfaceMediaSurface

	// 业务服务
	settingsService     services.InterfaceSettingsService
	callRecordService   services.InterfaceCallRecordService
	callFeedService     services.InterfaceCallFeedService
	speechService       services.InterfaceSpeechService
	announceService     services.InterfaceAnnounceService
	playlistService     services.InterfacePlaylistService
	carouselService     services.InterfaceCarouselService
	videoControlService services.InterfaceVideoControlService

	mu sync.RWMutex
}

// NewServiceContainer 创建新的服务容器
func NewServiceContainer(db *gorm.DB, cfg *config.Config) *ServiceContainer {
	if db == nil {
		panic("数据库连接为空")
	}

	if cfg == nil {
		panic("配置为空")
	}

	container := &ServiceContainer{
		db:     db,
		config: cfg,
	}
	container.initializeServices()
	return container
}

// initializeServices 初始化所有服务
func (c *ServiceContainer) initializeServices() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 初始化基础设施
	c.eventBus = services.NewEventBus()
	c.redisService = services.NewRedisService(c.config)
	c.mediaSurface = services.NewMQTTMediaSurface(c.config, c.eventBus)

	// 连接kiosk播放器通道
	if err := c.mediaSurface.Connect(); err != nil {
		log.Printf("MQTT播放器通道连接失败: %v", err)
	}

	// 初始化业务服务
	c.settingsService = services.NewSettingsService(c.config, c.redisService, c.eventBus)
	c.callRecordService = services.NewCallRecordService(c.db, c.config, c.settingsService, c.eventBus)
	c.callFeedService = services.NewCallFeedService(c.config, c.callRecordService, c.settingsService, c.eventBus)
	c.speechService = services.NewSpeechService(c.mediaSurface, c.eventBus)
	c.announceService = services.NewAnnounceService(c.config, c.settingsService, c.callFeedService, c.speechService, c.mediaSurface, c.redisService, c.eventBus)
	c.playlistService = services.NewPlaylistService(c.db, c.eventBus)
	c.carouselService = services.NewCarouselEngine(c.config, c.playlistService, c.redisService, c.eventBus)
	c.videoControlService = services.NewVideoControlService(c.config, c.playlistService, c.mediaSurface, c.redisService, c.eventBus)
}

// StartEngines 启动所有后台循环（叫号流、播报编排、轮播、背景视频）
func (c *ServiceContainer) StartEngines(ctx context.Context) {
	c.callFeedService.Start(ctx)
	c.announceService.Start(ctx)
	c.carouselService.Start(ctx)
	c.videoControlService.Start(ctx)
	log.Printf("后台引擎已全部启动")
}

// GetService 获取指定名称的服务
func (c *ServiceContainer) GetService(name string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch name {
	case "config":
		return c.config
	case "db":
		return c.db
	case "event_bus":
		return c.eventBus
	case "redis":
		return c.redisService
	case "media_surface":
		return c.mediaSurface
	case "settings":
		return c.settingsService
	case "call_record":
		return c.callRecordService
	case "call_feed":
		return c.callFeedService
	case "speech":
		return c.speechService
	case "announce":
		return c.announceService
	case "playlist":
		return c.playlistService
	case "carousel":
		return c.carouselService
	case "video_control":
		return c.videoControlService
	default:
		return nil
	}
}

// GetDB 获取数据库连接
func (c *ServiceContainer) GetDB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// GetConfig 获取配置
func (c *ServiceContainer) GetConfig() *config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

// GetEventBus 获取事件总线
func (c *ServiceContainer) GetEventBus() services.InterfaceEventBus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.eventBus
}

// GetRedisService 获取Redis服务
func (c *ServiceContainer) GetRedisService() services.InterfaceRedisService {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.redisService
}

// GetMediaSurface 获取kiosk播放器通道
func (c *ServiceContainer) GetMediaSurface() services.InterfaceMediaSurface {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mediaSurface
}

// GetSettingsService 获取显示配置服务
func (c *ServiceContainer) GetSettingsService() services.InterfaceSettingsService {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settingsService
}

// GetCallRecordService 获取叫号记录服务
func (c *ServiceContainer) GetCallRecordService() services.InterfaceCallRecordService {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.callRecordService
}

// GetCallFeedService 获取叫号流服务
func (c *ServiceContainer) GetCallFeedService() services.InterfaceCallFeedService {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.callFeedService
}

// GetAnnounceService 获取播报编排服务
func (c *ServiceContainer) GetAnnounceService() services.InterfaceAnnounceService {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.announceService
}

// GetPlaylistService 获取播放列表服务
func (c *ServiceContainer) GetPlaylistService() services.InterfacePlaylistService {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playlistService
}

// GetCarouselService 获取轮播引擎
func (c *ServiceContainer) GetCarouselService() services.InterfaceCarouselService {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.carouselService
}

// GetVideoControlService 获取背景视频控制服务
func (c *ServiceContainer) GetVideoControlService() services.InterfaceVideoControlService {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.videoControlService
}
