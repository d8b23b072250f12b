package services

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"webtv-display-service/config"
	"webtv-display-service/models"
)

// 触发文档轮询兜底间隔，订阅通道异常时保证最终仍能收到触发
const triggerPollInterval = 10 * time.Second

// InterfaceAnnounceService 定义播报编排服务接口
type InterfaceAnnounceService interface {
	Start(ctx context.Context)
	Announce(name, room string)
	HandleTrigger(ev models.TriggerEvent)
	QueueLen() int
}

// AnnounceService 播报编排：接收触发、去重、排队串行播放。
// 每次播报执行固定的压低音量→播报→恢复音量序列，
// 任何一步失败都保证音量最终恢复
type AnnounceService struct {
	Config   *config.Config
	Settings InterfaceSettingsService
	Feed     InterfaceCallFeedService
	Speech   InterfaceSpeechService
	Surface  InterfaceMediaSurface
	Redis    InterfaceRedisService
	Bus      InterfaceEventBus

	queue        *models.AnnounceQueue
	lastNonce    string
	seenBaseline bool
	mu           sync.Mutex

	// 测试中注入假时钟
	sleep func(time.Duration)
}

// NewAnnounceService 创建播报编排服务
func NewAnnounceService(cfg *config.Config, settings InterfaceSettingsService, feed InterfaceCallFeedService, speech InterfaceSpeechService, surface InterfaceMediaSurface, redis InterfaceRedisService, bus InterfaceEventBus) InterfaceAnnounceService {
	return &AnnounceService{
		Config:   cfg,
		Settings: settings,
		Feed:     feed,
		Speech:   speech,
		Surface:  surface,
		Redis:    redis,
		Bus:      bus,
		queue:    models.NewAnnounceQueue(cfg.AnnounceQueueCap),
		sleep:    time.Sleep,
	}
}

// Start 启动触发监听：启动时读一次文档作基线，
// 之后靠变更订阅 + 内部总线 + 周期轮询三路到达
func (s *AnnounceService) Start(ctx context.Context) {
	if ev, ok := s.Settings.GetTrigger(); ok {
		s.HandleTrigger(ev)
	} else {
		// 文档尚不存在也算完成基线，之后第一条写入就是真实触发
		s.mu.Lock()
		s.seenBaseline = true
		s.mu.Unlock()
	}

	s.Redis.WatchDocuments(ctx, func(key string) {
		if key != DocAnnounce {
			return
		}
		if ev, ok := s.Settings.GetTrigger(); ok {
			s.HandleTrigger(ev)
		}
	})

	busCh := s.Bus.Subscribe(EventAnnounceTrigger)

	go func() {
		ticker := time.NewTicker(triggerPollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.Bus.Unsubscribe(EventAnnounceTrigger, busCh)
				return
			case ev, ok := <-busCh:
				if !ok {
					return
				}
				if trigger, match := ev.Payload.(models.TriggerEvent); match {
					s.HandleTrigger(trigger)
				}
			case <-ticker.C:
				if ev, ok := s.Settings.GetTrigger(); ok {
					s.HandleTrigger(ev)
				}
			}
		}
	}()
}

// HandleTrigger 处理一条触发文档快照。
// 首个快照只记录nonce作基线不播报（服务重启时文档里
// 残留的是旧触发），之后nonce变化才视为真实触发
func (s *AnnounceService) HandleTrigger(ev models.TriggerEvent) {
	// 待机标志对每个快照都生效，与nonce去重无关
	s.Feed.SetForcedIdle(ev.Idle)

	s.mu.Lock()
	if !s.seenBaseline {
		s.seenBaseline = true
		s.lastNonce = ev.Nonce
		s.mu.Unlock()
		return
	}
	if ev.Nonce == s.lastNonce {
		s.mu.Unlock()
		return
	}
	s.lastNonce = ev.Nonce
	s.mu.Unlock()

	if strings.TrimSpace(ev.Name) == "" {
		return
	}
	s.Announce(ev.Name, ev.Room)
}

// Announce 将一条播报任务入列并启动排空
func (s *AnnounceService) Announce(name, room string) {
	s.queue.Push(models.AnnounceJob{Name: name, Room: room})
	s.drain()
}

// QueueLen 当前排队任务数
func (s *AnnounceService) QueueLen() int {
	return s.queue.Len()
}

// drain 启动排空协程。draining标志保证同一时刻只有一个排空协程，
// 播报因此天然串行
func (s *AnnounceService) drain() {
	if !s.queue.TryBeginDrain() {
		return
	}

	go func() {
		for {
			job, ok := s.queue.Pop()
			if !ok {
				break
			}
			s.playJob(job)
		}
		s.queue.EndDrain()

		// 释放与最后一次Pop之间可能有新任务入列，补一次排空
		if s.queue.Len() > 0 {
			s.drain()
		}
	}()
}

// playJob 执行一次完整播报：压低背景音量、等待前导静默、
// 逐个尝试播报后端、收尾静默后恢复音量
func (s *AnnounceService) playJob(job models.AnnounceJob) {
	settings := s.Settings.GetSettings()

	s.setVolume(settings.DuckVolume)

	// 无论播报成败，收尾静默后必须恢复音量
	defer func() {
		s.sleep(time.Duration(settings.SettleMs) * time.Millisecond)
		s.setVolume(settings.RestoreVolume)
	}()

	s.sleep(time.Duration(settings.LeadMs) * time.Millisecond)

	text := RenderTemplate(settings.AnnounceTemplate, job.Name, job.Room)

	for _, backend := range s.Speech.Chain(settings.AnnounceMode) {
		if !backend.Available() {
			continue
		}

		done, estimated, err := backend.Speak(text)
		if err != nil {
			log.Printf("[播报] 后端 %s 播报失败: %v", backend.Name(), err)
			continue
		}

		s.waitSpeech(done, estimated)
		return
	}

	log.Printf("[播报] 所有后端均不可用: name=%s room=%s", job.Name, job.Room)
}

// setVolume 写入播放面音量并广播到总线，视频控制服务据此跟踪当前音量
func (s *AnnounceService) setVolume(v int) {
	if err := s.Surface.SetVolume(v); err != nil {
		log.Printf("[播报] 设置音量失败: %v", err)
	}
	if s.Bus != nil {
		s.Bus.Publish(EventVolumeRequest, v)
	}
}

// waitSpeech 等待播报完成：完成信号与估算时长先到者为准
func (s *AnnounceService) waitSpeech(done <-chan struct{}, estimated time.Duration) {
	if done == nil {
		s.sleep(estimated)
		return
	}

	timer := time.NewTimer(estimated)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
	}
}

// RenderTemplate 渲染播报文案模板。
// {{nome}}为患者姓名，{{sala}}为诊室号，
// {{salaTxt}}为带量词的诊室说法（诊室为空时整体省略）
func RenderTemplate(tpl, name, room string) string {
	salaTxt := ""
	if strings.TrimSpace(room) != "" {
		salaTxt = "número " + room
	}

	out := strings.ReplaceAll(tpl, "{{nome}}", name)
	out = strings.ReplaceAll(out, "{{sala}}", room)
	out = strings.ReplaceAll(out, "{{salaTxt}}", salaTxt)
	return out
}
