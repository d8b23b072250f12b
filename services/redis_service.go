package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"webtv-display-service/config"
	"webtv-display-service/models"

	"github.com/go-redis/redis/v8"
)

// Redis中的单一可变文档键（管理端写、显示端订阅）
const (
	DocSettings     = "webtv:config:main"         // 显示配置文档
	DocAnnounce     = "webtv:config:announce"     // 播报触发文档
	DocVideoControl = "webtv:config:videocontrol" // 背景视频控制文档

	docChangedChannel = "webtv:doc-changed" // 文档变更通知频道
	preloadKeyPrefix  = "webtv:preload:"    // 预加载探测结果缓存
)

// InterfaceRedisService 定义Redis文档存取与变更通知接口
type InterfaceRedisService interface {
	Set(key string, value interface{}, expiration time.Duration) error
	Get(key string, dest interface{}) error
	Delete(key string) error
	SetDocument(key string, doc interface{}) error
	GetDocument(key string, dest interface{}) error
	WatchDocuments(ctx context.Context, handler func(key string))
	CachePreloadResult(url string, res models.PreloadResult)
	GetPreloadResult(url string) (models.PreloadResult, bool)
}

// RedisService handles Redis operations
type RedisService struct {
	Client *redis.Client
	Ctx    context.Context
}

// NewRedisService creates a new Redis service
func NewRedisService(cfg *config.Config) InterfaceRedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: "", // No password set
		DB:       cfg.RedisDB,
	})

	ctx := context.Background()

	return &RedisService{
		Client: client,
		Ctx:    ctx,
	}
}

// Set sets a key-value pair in Redis with expiration
func (s *RedisService) Set(key string, value interface{}, expiration time.Duration) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return s.Client.Set(s.Ctx, key, jsonValue, expiration).Err()
}

// Get gets a value from Redis by key
func (s *RedisService) Get(key string, dest interface{}) error {
	val, err := s.Client.Get(s.Ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// Delete deletes a key from Redis
func (s *RedisService) Delete(key string) error {
	return s.Client.Del(s.Ctx, key).Err()
}

// SetDocument 写入单一可变文档并广播变更通知
func (s *RedisService) SetDocument(key string, doc interface{}) error {
	if err := s.Set(key, doc, 0); err != nil {
		return err
	}
	// 通知失败不影响写入结果，订阅端还有轮询兜底
	if err := s.Client.Publish(s.Ctx, docChangedChannel, key).Err(); err != nil {
		log.Printf("[REDIS] 广播文档变更失败: key=%s err=%v", key, err)
	}
	return nil
}

// GetDocument 读取单一可变文档
func (s *RedisService) GetDocument(key string, dest interface{}) error {
	return s.Get(key, dest)
}

// WatchDocuments 订阅文档变更频道，每收到一条变更调用handler。
// 连接中断时redis客户端自动重连，循环在ctx取消后退出
func (s *RedisService) WatchDocuments(ctx context.Context, handler func(key string)) {
	sub := s.Client.Subscribe(ctx, docChangedChannel)

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler(msg.Payload)
			}
		}
	}()
}

// CachePreloadResult 缓存素材预加载探测结果。
// URL视为会话期内容不变的地址，不做失效
func (s *RedisService) CachePreloadResult(url string, res models.PreloadResult) {
	if err := s.Set(preloadKeyPrefix+url, res, 0); err != nil {
		log.Printf("[REDIS] 缓存预加载结果失败: url=%s err=%v", url, err)
	}
}

// GetPreloadResult 读取预加载探测缓存
func (s *RedisService) GetPreloadResult(url string) (models.PreloadResult, bool) {
	var res models.PreloadResult
	if err := s.Get(preloadKeyPrefix+url, &res); err != nil {
		return models.PreloadResult{}, false
	}
	return res, true
}
