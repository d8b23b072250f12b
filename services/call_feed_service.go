package services

import (
	"context"
	"log"
	"sync"
	"time"

	"webtv-display-service/config"
	"webtv-display-service/models"
)

// InterfaceCallFeedService 定义叫号流状态机接口
type InterfaceCallFeedService interface {
	Start(ctx context.Context)
	Snapshot() models.FeedState
	SetForcedIdle(v bool)
	ForcedIdle() bool
	Refresh()
}

// CallFeedService 把持续更新的叫号历史折算成稳定的"当前呼叫"状态：
// 待机判定、双人分组、底部滚动历史。派生计算是纯函数，
// 任意次重算结果一致，定时tick与变更通知都只是触发重算
type CallFeedService struct {
	Config   *config.Config
	Records  InterfaceCallRecordService
	Settings InterfaceSettingsService
	Bus      InterfaceEventBus

	state      models.FeedState
	forcedIdle bool
	mu         sync.RWMutex
}

// NewCallFeedService 创建叫号流服务
func NewCallFeedService(cfg *config.Config, records InterfaceCallRecordService, settings InterfaceSettingsService, bus InterfaceEventBus) InterfaceCallFeedService {
	return &CallFeedService{
		Config:   cfg,
		Records:  records,
		Settings: settings,
		Bus:      bus,
	}
}

// Start 启动重算循环：粗粒度时钟tick + 历史/配置变更通知
func (s *CallFeedService) Start(ctx context.Context) {
	s.Refresh()

	callsCh := s.Bus.Subscribe(EventCallsChanged)
	settingsCh := s.Bus.Subscribe(EventSettingsChanged)

	go func() {
		tick := time.Duration(s.Config.FeedTickSeconds) * time.Second
		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.Bus.Unsubscribe(EventCallsChanged, callsCh)
				s.Bus.Unsubscribe(EventSettingsChanged, settingsCh)
				return
			case <-ticker.C:
				s.Refresh()
			case _, ok := <-callsCh:
				if !ok {
					return
				}
				s.Refresh()
			case _, ok := <-settingsCh:
				if !ok {
					return
				}
				s.Refresh()
			}
		}
	}()
}

// Refresh 拉取最近历史并重算显示状态
func (s *CallFeedService) Refresh() {
	records, err := s.Records.GetRecentCalls(s.Config.HistoryLimit)
	if err != nil {
		// 拉取失败保留上一次状态，显示端继续展示旧数据
		log.Printf("[FEED] 拉取叫号历史失败: %v", err)
		return
	}

	settings := s.Settings.GetSettings()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = DeriveFeedState(records, time.Now(), settings, s.forcedIdle, s.feedParams())
}

// Snapshot 返回当前显示状态的副本
func (s *CallFeedService) Snapshot() models.FeedState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetForcedIdle 设置强制待机标志并立即重算
func (s *CallFeedService) SetForcedIdle(v bool) {
	s.mu.Lock()
	changed := s.forcedIdle != v
	s.forcedIdle = v
	s.mu.Unlock()

	if changed {
		log.Printf("[FEED] 强制待机: %v", v)
		s.Refresh()
	}
}

// ForcedIdle 返回强制待机标志
func (s *CallFeedService) ForcedIdle() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forcedIdle
}

func (s *CallFeedService) feedParams() FeedParams {
	return FeedParams{
		GroupWindow: time.Duration(s.Config.GroupWindowMs) * time.Millisecond,
		DualKeep:    time.Duration(s.Config.DualKeepMs) * time.Millisecond,
		RecentLimit: s.Config.RecentLimit,
	}
}

// FeedParams 分组派生的时间窗口参数
type FeedParams struct {
	GroupWindow time.Duration // 两条记录视为同组的最大间隔
	DualKeep    time.Duration // 双人显示自第二条记录起的保持时间
	RecentLimit int
}

// DeriveFeedState 纯派生函数：由历史记录和当前时刻折算显示状态。
// 不产生副作用，可被任意次重复调用
func DeriveFeedState(records []models.CallRecord, now time.Time, settings models.DisplaySettings, forcedIdle bool, params FeedParams) models.FeedState {
	state := models.FeedState{
		Group:      []models.CallRecord{},
		Recent:     []models.CallRecord{},
		ForcedIdle: forcedIdle,
		ComputedAt: now,
	}

	// 过滤测试记录
	filtered := make([]models.CallRecord, 0, len(records))
	for _, r := range records {
		if !r.IsTest {
			filtered = append(filtered, r)
		}
	}

	// 最近一次叫号时间；按策略决定重呼记录是否参与
	var lastMs int64
	lastKnown := false
	for _, r := range filtered {
		if !settings.RecallCountsForIdle && r.IsRecall {
			continue
		}
		if ms, ok := r.TimestampMs(); ok {
			lastMs = ms
			lastKnown = true
			t := time.UnixMilli(ms)
			state.LastCallAt = &t
		}
		// 只看最新的一条符合策略的记录，时间非法视为"未知"
		break
	}

	nowMs := now.UnixMilli()
	withinIdle := lastKnown && nowMs-lastMs < int64(settings.IdleSeconds)*1000
	state.Idle = forcedIdle || len(filtered) == 0 || !withinIdle

	if !state.Idle {
		first := filtered[0]
		firstMs, firstOK := first.TimestampMs()

		state.Group = []models.CallRecord{first}
		if firstOK && len(filtered) > 1 {
			second := filtered[1]
			secondMs, secondOK := second.TimestampMs()
			// 时间未知的记录不参与配对，降级为单人显示
			isPair := secondOK && firstMs-secondMs <= params.GroupWindow.Milliseconds()
			keepDual := isPair && nowMs-secondMs < params.DualKeep.Milliseconds()
			if isPair && keepDual {
				state.Group = []models.CallRecord{first, second}
			}
		}
	}

	// 底部滚动历史 = 过滤后的历史去掉分组内记录
	inGroup := make(map[uint]bool, len(state.Group))
	for _, r := range state.Group {
		inGroup[r.ID] = true
	}
	for _, r := range filtered {
		if inGroup[r.ID] {
			continue
		}
		state.Recent = append(state.Recent, r)
		if len(state.Recent) >= params.RecentLimit {
			break
		}
	}

	return state
}
