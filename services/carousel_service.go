package services

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"webtv-display-service/config"
	"webtv-display-service/models"
)

// InterfaceCarouselService 定义轮播引擎接口
type InterfaceCarouselService interface {
	Start(ctx context.Context)
	Snapshot() models.CarouselState
	Reload()
}

// CarouselEngine 双缓冲轮播引擎：当前素材显示期间预加载下一个，
// 预加载成功后交叉淡入切换。引擎只维护状态机，
// 实际渲染由显示端按状态快照执行
type CarouselEngine struct {
	Config   *config.Config
	Playlist InterfacePlaylistService
	Redis    InterfaceRedisService
	Bus      InterfaceEventBus

	state     models.CarouselState
	signature string
	reloadCh  chan struct{}
	mu        sync.RWMutex

	// 预加载探测的成功结果按URL做进程级记忆；
	// 失败不入缓存，下次轮到该素材时重新探测
	probeCache map[string]models.PreloadResult
	probeMu    sync.Mutex
	httpClient *http.Client

	// 测试中注入假时钟
	sleep func(time.Duration)
}

// NewCarouselEngine 创建轮播引擎
func NewCarouselEngine(cfg *config.Config, playlist InterfacePlaylistService, redis InterfaceRedisService, bus InterfaceEventBus) InterfaceCarouselService {
	return &CarouselEngine{
		Config:     cfg,
		Playlist:   playlist,
		Redis:      redis,
		Bus:        bus,
		reloadCh:   make(chan struct{}, 1),
		probeCache: make(map[string]models.PreloadResult),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.PreloadTimeoutMs) * time.Millisecond,
		},
		sleep: time.Sleep,
		state: models.CarouselState{
			Items:    []models.CarouselItem{},
			FrontIsA: true,
			Phase:    models.CarouselPhaseEmpty,
		},
	}
}

// Start 启动轮播循环
func (e *CarouselEngine) Start(ctx context.Context) {
	e.Reload()

	plCh := e.Bus.Subscribe(EventPlaylistChanged)

	go func() {
		defer e.Bus.Unsubscribe(EventPlaylistChanged, plCh)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-plCh:
				if !ok {
					return
				}
				e.Reload()
			}
		}
	}()

	go e.run(ctx)
}

// Snapshot 返回引擎状态的副本
func (e *CarouselEngine) Snapshot() models.CarouselState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := e.state
	st.Items = append([]models.CarouselItem{}, e.state.Items...)
	return st
}

// Reload 重新拉取轮播列表。签名变化意味着素材发生增删、
// 重排或换源，此时取消进行中的切换并从头开始
func (e *CarouselEngine) Reload() {
	items, err := e.Playlist.GetCarouselItems()
	if err != nil {
		log.Printf("[轮播] 拉取轮播列表失败: %v", err)
		return
	}

	sig := models.PlaylistSignature(items)

	e.mu.Lock()
	if sig == e.signature {
		e.mu.Unlock()
		return
	}
	e.signature = sig
	e.state.Items = items
	e.state.Index = 0
	e.state.Fading = false
	if len(items) == 0 {
		e.state.Phase = models.CarouselPhaseEmpty
	} else {
		e.state.Phase = models.CarouselPhaseDisplaying
	}
	e.mu.Unlock()

	log.Printf("[轮播] 列表已更新: %d 条素材", len(items))

	// 唤醒主循环放弃当前切换
	select {
	case e.reloadCh <- struct{}{}:
	default:
	}
}

// run 轮播主循环：显示 → 预加载下一个 → 交叉淡入 → 前进
func (e *CarouselEngine) run(ctx context.Context) {
	for {
		st := e.Snapshot()

		if len(st.Items) == 0 {
			// 空列表时显示端展示占位背景，等待列表变化
			select {
			case <-ctx.Done():
				return
			case <-e.reloadCh:
			}
			continue
		}

		cur := st.CurrentItem()
		// 单素材不切换，长等待期间仍响应列表变化
		if len(st.Items) == 1 {
			select {
			case <-ctx.Done():
				return
			case <-e.reloadCh:
			}
			continue
		}

		timer := time.NewTimer(e.displayDuration(cur))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-e.reloadCh:
			timer.Stop()
			continue
		case <-timer.C:
		}

		if !e.advance(ctx) {
			return
		}
	}
}

// advance 执行一次切换：预加载下一个素材后交叉淡入。
// 预加载失败或超时也照常淡入前进，单个坏素材不能卡住整个轮播。
// 返回false表示循环应当退出
func (e *CarouselEngine) advance(ctx context.Context) bool {
	e.mu.Lock()
	sigAtStart := e.signature
	next := e.state.NextIndex()
	if next >= len(e.state.Items) {
		e.mu.Unlock()
		return true
	}
	nextItem := e.state.Items[next]
	e.state.Phase = models.CarouselPhasePreloading
	e.mu.Unlock()

	res := e.Preload(nextItem)

	// 预加载期间列表可能已变化，本次切换作废
	e.mu.Lock()
	if e.signature != sigAtStart {
		e.mu.Unlock()
		return true
	}

	if !res.OK {
		log.Printf("[轮播] 素材预加载失败，照常切换: id=%d url=%s", nextItem.ID, nextItem.URL)
	}

	e.state.Fading = true
	e.state.Phase = models.CarouselPhaseFading
	e.mu.Unlock()

	e.sleep(time.Duration(e.Config.FadeMs) * time.Millisecond)

	e.mu.Lock()
	if e.signature == sigAtStart {
		e.state.Index = next
		e.state.FrontIsA = !e.state.FrontIsA
	}
	e.state.Fading = false
	e.state.Phase = models.CarouselPhaseDisplaying
	e.mu.Unlock()

	return ctx.Err() == nil
}

// displayDuration 解析一条素材的显示时长：
// 显式时长优先，视频按探测时长（封顶）或默认值，图片用固定时长
func (e *CarouselEngine) displayDuration(item *models.CarouselItem) time.Duration {
	if item == nil {
		return time.Duration(e.Config.ImageSec) * time.Second
	}

	maxVideo := e.Config.MaxVideoSec
	if item.DurationSec != nil && *item.DurationSec > 0 {
		sec := *item.DurationSec
		if item.Kind == models.KindVideo && sec > maxVideo {
			sec = maxVideo
		}
		return time.Duration(sec) * time.Second
	}

	if item.Kind == models.KindVideo {
		sec := e.Config.VideoSec
		if res, ok := e.cachedProbe(item.URL); ok && res.DurationSec > 0 {
			sec = int(res.DurationSec + 0.5)
			if sec > maxVideo {
				sec = maxVideo
			}
		}
		return time.Duration(sec) * time.Second
	}

	return time.Duration(e.Config.ImageSec) * time.Second
}

// Preload 探测素材可达性。成功结果按URL缓存在进程内与Redis两级，
// 失败不缓存，瞬时网络错误不应永久拉黑一个素材。
// 图片探测失败先重试一次（网络抖动常见）
func (e *CarouselEngine) Preload(item models.CarouselItem) models.PreloadResult {
	if res, ok := e.cachedProbe(item.URL); ok {
		return res
	}

	res := e.probe(item.URL)
	if !res.OK && item.Kind == models.KindImage {
		res = e.probe(item.URL)
	}

	if res.OK {
		e.probeMu.Lock()
		e.probeCache[item.URL] = res
		e.probeMu.Unlock()
		e.Redis.CachePreloadResult(item.URL, res)
	}
	return res
}

func (e *CarouselEngine) cachedProbe(url string) (models.PreloadResult, bool) {
	e.probeMu.Lock()
	res, ok := e.probeCache[url]
	e.probeMu.Unlock()
	if ok {
		return res, true
	}

	if res, ok := e.Redis.GetPreloadResult(url); ok {
		e.probeMu.Lock()
		e.probeCache[url] = res
		e.probeMu.Unlock()
		return res, true
	}
	return models.PreloadResult{}, false
}

// probe 发一次HEAD请求确认素材可达，并从Content-Type推断类型
func (e *CarouselEngine) probe(url string) models.PreloadResult {
	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return models.PreloadResult{}
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return models.PreloadResult{}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return models.PreloadResult{}
	}

	mediaType := models.KindImage
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "video/") {
		mediaType = models.KindVideo
	}
	return models.PreloadResult{OK: true, MediaType: mediaType}
}
