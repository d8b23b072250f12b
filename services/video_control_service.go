package services

import (
	"context"
	"log"
	"sync"
	"time"

	"webtv-display-service/config"
	"webtv-display-service/models"
	"webtv-display-service/utils"
)

// 卡顿巡检间隔
const stallCheckInterval = 3 * time.Second

// InterfaceVideoControlService 定义背景视频控制服务接口
type InterfaceVideoControlService interface {
	Start(ctx context.Context)
	Dispatch(ctrl models.VideoControl) (models.VideoControl, error)
	CurrentVideo() (models.VideoItem, bool)
	Playing() bool
	Volume() int
}

// VideoControlService 驱动kiosk背景视频：维护播放列表游标、
// 应用管理端控制指令、处理播完衔接与出错重试，
// 并以位置心跳做卡顿看门狗
type VideoControlService struct {
	Config   *config.Config
	Playlist InterfacePlaylistService
	Surface  InterfaceMediaSurface
	Redis    InterfaceRedisService
	Bus      InterfaceEventBus

	videos  []models.VideoItem
	index   int
	playing bool
	volume  int

	lastNonce    string
	seenBaseline bool

	// 看门狗：上次位置心跳的值与时刻
	lastPos   float64
	lastPosAt time.Time

	mu sync.Mutex
}

// NewVideoControlService 创建背景视频控制服务
func NewVideoControlService(cfg *config.Config, playlist InterfacePlaylistService, surface InterfaceMediaSurface, redis InterfaceRedisService, bus InterfaceEventBus) InterfaceVideoControlService {
	return &VideoControlService{
		Config:   cfg,
		Playlist: playlist,
		Surface:  surface,
		Redis:    redis,
		Bus:      bus,
		playing:  true,
		volume:   cfg.RestoreVolume,
	}
}

// Start 加载播放列表、恢复控制文档基线并启动事件循环
func (s *VideoControlService) Start(ctx context.Context) {
	s.reloadVideos(true)

	var ctrl models.VideoControl
	if err := s.Redis.GetDocument(DocVideoControl, &ctrl); err == nil {
		// 启动时残留的是旧指令，只记录nonce不执行
		s.mu.Lock()
		s.seenBaseline = true
		s.lastNonce = ctrl.Nonce
		s.mu.Unlock()
	} else {
		s.mu.Lock()
		s.seenBaseline = true
		s.mu.Unlock()
	}

	s.Redis.WatchDocuments(ctx, func(key string) {
		if key != DocVideoControl {
			return
		}
		var ctrl models.VideoControl
		if err := s.Redis.GetDocument(DocVideoControl, &ctrl); err == nil {
			s.handleControl(ctrl)
		}
	})

	endedCh := s.Bus.Subscribe(EventPlayerEnded)
	errorCh := s.Bus.Subscribe(EventPlayerError)
	posCh := s.Bus.Subscribe(EventPlayerPosition)
	interCh := s.Bus.Subscribe(EventInteraction)
	volCh := s.Bus.Subscribe(EventVolumeRequest)
	videoCh := s.Bus.Subscribe(EventVideoChanged)
	ctrlCh := s.Bus.Subscribe(EventControlChanged)

	go func() {
		ticker := time.NewTicker(stallCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.Bus.Unsubscribe(EventPlayerEnded, endedCh)
				s.Bus.Unsubscribe(EventPlayerError, errorCh)
				s.Bus.Unsubscribe(EventPlayerPosition, posCh)
				s.Bus.Unsubscribe(EventInteraction, interCh)
				s.Bus.Unsubscribe(EventVolumeRequest, volCh)
				s.Bus.Unsubscribe(EventVideoChanged, videoCh)
				s.Bus.Unsubscribe(EventControlChanged, ctrlCh)
				return
			case _, ok := <-endedCh:
				if !ok {
					return
				}
				s.onEnded()
			case _, ok := <-errorCh:
				if !ok {
					return
				}
				s.onError()
			case ev, ok := <-posCh:
				if !ok {
					return
				}
				// 播放面上报的是状态消息，位置在Data里（JSON数值解出来是float64）
				if status, match := ev.Payload.(PlayerStatusMessage); match {
					if pos, isNum := status.Data["position"].(float64); isNum {
						s.onPosition(pos)
					}
				}
			case _, ok := <-interCh:
				if !ok {
					return
				}
				s.onInteraction()
			case ev, ok := <-volCh:
				if !ok {
					return
				}
				if v, match := ev.Payload.(int); match {
					s.onVolume(v)
				}
			case _, ok := <-videoCh:
				if !ok {
					return
				}
				s.reloadVideos(false)
			case ev, ok := <-ctrlCh:
				if !ok {
					return
				}
				if ctrl, match := ev.Payload.(models.VideoControl); match {
					s.handleControl(ctrl)
				}
			case <-ticker.C:
				s.checkStall()
			}
		}
	}()
}

// Dispatch 持久化一条控制指令并立即执行。
// nonce由服务端生成，显示端多实例时以nonce去重
func (s *VideoControlService) Dispatch(ctrl models.VideoControl) (models.VideoControl, error) {
	ctrl.Nonce = utils.NewNonce()
	ctrl.IssuedAt = time.Now()

	if err := s.Redis.SetDocument(DocVideoControl, ctrl); err != nil {
		return models.VideoControl{}, err
	}

	s.Bus.Publish(EventControlChanged, ctrl)
	return ctrl, nil
}

// CurrentVideo 返回当前游标指向的视频
func (s *VideoControlService) CurrentVideo() (models.VideoItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.videos) == 0 || s.index < 0 || s.index >= len(s.videos) {
		return models.VideoItem{}, false
	}
	return s.videos[s.index], true
}

// Playing 返回当前播放状态
func (s *VideoControlService) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Volume 返回最后一次下发的音量（含播报期间的压低/恢复）
func (s *VideoControlService) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// handleControl 应用一条控制文档快照，nonce相同的快照只执行一次
func (s *VideoControlService) handleControl(ctrl models.VideoControl) {
	s.mu.Lock()
	if !s.seenBaseline {
		s.seenBaseline = true
		s.lastNonce = ctrl.Nonce
		s.mu.Unlock()
		return
	}
	if ctrl.Nonce == s.lastNonce {
		s.mu.Unlock()
		return
	}
	s.lastNonce = ctrl.Nonce
	s.mu.Unlock()

	if ctrl.Volume != nil {
		v := config.ClampInt(*ctrl.Volume, 0, 100)
		s.mu.Lock()
		s.volume = v
		s.mu.Unlock()
		if err := s.Surface.SetVolume(v); err != nil {
			log.Printf("[视频] 设置音量失败: %v", err)
		}
	}

	if ctrl.Playing != nil {
		s.mu.Lock()
		s.playing = *ctrl.Playing
		s.mu.Unlock()
		var err error
		if *ctrl.Playing {
			err = s.Surface.Play()
		} else {
			err = s.Surface.Pause()
		}
		if err != nil {
			log.Printf("[视频] 播放状态切换失败: %v", err)
		}
	}

	if ctrl.SkipTo != nil {
		s.jumpTo(*ctrl.SkipTo)
	}

	switch ctrl.Command {
	case models.VideoCmdNext:
		s.step(1)
	case models.VideoCmdPrev:
		s.step(-1)
	}
}

// onEnded 一条视频播完：单视频循环播放，多视频前进到下一条
func (s *VideoControlService) onEnded() {
	s.mu.Lock()
	single := len(s.videos) == 1
	s.mu.Unlock()

	if single {
		if err := s.Surface.Seek(0); err != nil {
			log.Printf("[视频] 单视频循环失败: %v", err)
		}
		return
	}
	s.step(1)
}

// onError 播放出错：延迟后切到下一条，避免坏源导致快速循环
func (s *VideoControlService) onError() {
	retry := time.Duration(s.Config.VideoRetryMs) * time.Millisecond
	log.Printf("[视频] 播放出错，%v 后切换下一条", retry)
	time.AfterFunc(retry, func() {
		s.step(1)
	})
}

// onInteraction 用户在kiosk上有交互：自动播放解锁后补一次播放，
// 否则浏览器拦截的首次play要等到下一条指令才生效
func (s *VideoControlService) onInteraction() {
	if !s.Playing() {
		return
	}
	if err := s.Surface.Play(); err != nil {
		log.Printf("[视频] 交互后恢复播放失败: %v", err)
	}
}

// onVolume 跟踪播报编排器广播的音量变更，保持对外可见的音量一致
func (s *VideoControlService) onVolume(v int) {
	s.mu.Lock()
	s.volume = config.ClampInt(v, 0, 100)
	s.mu.Unlock()
}

// onPosition 记录位置心跳，喂看门狗
func (s *VideoControlService) onPosition(pos float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pos != s.lastPos {
		s.lastPos = pos
		s.lastPosAt = time.Now()
	}
}

// checkStall 卡顿看门狗：播放中但位置长时间不前进时强制重载
func (s *VideoControlService) checkStall() {
	s.mu.Lock()
	stalled := s.playing && len(s.videos) > 0 &&
		!s.lastPosAt.IsZero() &&
		time.Since(s.lastPosAt) > time.Duration(s.Config.StallSeconds)*time.Second
	if stalled {
		// 重载后重新计时，避免连环触发
		s.lastPosAt = time.Now()
	}
	s.mu.Unlock()

	if stalled {
		log.Printf("[视频] 播放卡住超过 %ds，强制重载", s.Config.StallSeconds)
		if err := s.Surface.Reload(); err != nil {
			log.Printf("[视频] 重载失败: %v", err)
		}
	}
}

// reloadVideos 重新拉取启用的背景视频列表
func (s *VideoControlService) reloadVideos(initial bool) {
	videos, err := s.Playlist.GetVideoItems()
	if err != nil {
		log.Printf("[视频] 拉取背景视频列表失败: %v", err)
		return
	}

	s.mu.Lock()
	var prevURL string
	if len(s.videos) > 0 && s.index < len(s.videos) {
		prevURL = s.videos[s.index].URL
	}
	s.videos = videos
	if s.index >= len(videos) {
		s.index = 0
	}
	var cur *models.VideoItem
	if len(videos) > 0 {
		cur = &videos[s.index]
	}
	s.mu.Unlock()

	// 列表编辑不打断正在播的视频，只有当前位置的源变了才换源
	if cur != nil && (initial || cur.URL != prevURL) {
		if err := s.Surface.LoadSource(cur.URL); err != nil {
			log.Printf("[视频] 加载视频失败: %v", err)
		}
	}
}

// step 游标前后移动（循环）并加载新视频
func (s *VideoControlService) step(delta int) {
	s.mu.Lock()
	if len(s.videos) == 0 {
		s.mu.Unlock()
		return
	}
	s.index = (s.index + delta + len(s.videos)) % len(s.videos)
	url := s.videos[s.index].URL
	s.mu.Unlock()

	if err := s.Surface.LoadSource(url); err != nil {
		log.Printf("[视频] 加载视频失败: %v", err)
	}
}

// jumpTo 跳到指定下标（夹取到合法区间）
func (s *VideoControlService) jumpTo(i int) {
	s.mu.Lock()
	if len(s.videos) == 0 {
		s.mu.Unlock()
		return
	}
	s.index = config.ClampInt(i, 0, len(s.videos)-1)
	url := s.videos[s.index].URL
	s.mu.Unlock()

	if err := s.Surface.LoadSource(url); err != nil {
		log.Printf("[视频] 加载视频失败: %v", err)
	}
}
