package services

import (
	"context"
	"testing"
	"time"

	"webtv-display-service/config"
	"webtv-display-service/models"
)

// fakePlaylist 返回固定列表的播放列表服务假实现
type fakePlaylist struct {
	carousel []models.CarouselItem
	videos   []models.VideoItem
}

func (f *fakePlaylist) GetCarouselItems() ([]models.CarouselItem, error) {
	return append([]models.CarouselItem{}, f.carousel...), nil
}

func (f *fakePlaylist) AddCarouselItem(url, kind string, durationSec *int) (*models.CarouselItem, error) {
	return nil, nil
}

func (f *fakePlaylist) UpdateCarouselItem(id uint, url, kind string, durationSec *int) (*models.CarouselItem, error) {
	return nil, nil
}

func (f *fakePlaylist) DeleteCarouselItem(id uint) error { return nil }
func (f *fakePlaylist) ReorderCarousel(ids []uint) error { return nil }

func (f *fakePlaylist) GetVideoItems() ([]models.VideoItem, error) {
	return append([]models.VideoItem{}, f.videos...), nil
}

func (f *fakePlaylist) GetAllVideoItems() ([]models.VideoItem, error) {
	return f.GetVideoItems()
}

func (f *fakePlaylist) AddVideoItem(url string) (*models.VideoItem, error) { return nil, nil }
func (f *fakePlaylist) SetVideoEnabled(id uint, enabled bool) error        { return nil }
func (f *fakePlaylist) DeleteVideoItem(id uint) error                      { return nil }
func (f *fakePlaylist) ReorderVideos(ids []uint) error                     { return nil }

// fakeRedis 内存实现，只覆盖测试用到的路径
type fakeRedis struct {
	docs     map[string][]byte
	preloads map[string]models.PreloadResult
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		docs:     make(map[string][]byte),
		preloads: make(map[string]models.PreloadResult),
	}
}

func (f *fakeRedis) Set(key string, value interface{}, expiration time.Duration) error { return nil }
func (f *fakeRedis) Get(key string, dest interface{}) error                            { return nil }
func (f *fakeRedis) Delete(key string) error                                           { return nil }
func (f *fakeRedis) SetDocument(key string, doc interface{}) error                     { return nil }

func (f *fakeRedis) GetDocument(key string, dest interface{}) error {
	return errNoDocument
}

func (f *fakeRedis) WatchDocuments(ctx context.Context, handler func(key string)) {}

func (f *fakeRedis) CachePreloadResult(url string, res models.PreloadResult) {
	f.preloads[url] = res
}

func (f *fakeRedis) GetPreloadResult(url string) (models.PreloadResult, bool) {
	res, ok := f.preloads[url]
	return res, ok
}

var errNoDocument = errNoDoc{}

type errNoDoc struct{}

func (errNoDoc) Error() string { return "document not found" }

func carouselTestConfig() *config.Config {
	return &config.Config{
		FadeMs:           450,
		ImageSec:         7,
		VideoSec:         12,
		MaxVideoSec:      30,
		PreloadTimeoutMs: 1200,
	}
}

func newTestCarousel(items []models.CarouselItem) *CarouselEngine {
	engine := NewCarouselEngine(
		carouselTestConfig(),
		&fakePlaylist{carousel: items},
		newFakeRedis(),
		NewEventBus(),
	).(*CarouselEngine)
	engine.sleep = func(time.Duration) {}
	return engine
}

func intPtr(v int) *int { return &v }

func TestCarouselDisplayDuration(t *testing.T) {
	engine := newTestCarousel(nil)

	tests := []struct {
		name string
		item *models.CarouselItem
		want time.Duration
	}{
		{"图片默认时长", &models.CarouselItem{Kind: models.KindImage}, 7 * time.Second},
		{"视频默认时长", &models.CarouselItem{Kind: models.KindVideo}, 12 * time.Second},
		{"显式时长优先", &models.CarouselItem{Kind: models.KindImage, DurationSec: intPtr(10)}, 10 * time.Second},
		{"视频显式时长封顶", &models.CarouselItem{Kind: models.KindVideo, DurationSec: intPtr(45)}, 30 * time.Second},
		{"非法显式时长回退默认", &models.CarouselItem{Kind: models.KindImage, DurationSec: intPtr(0)}, 7 * time.Second},
		{"空素材按图片默认", nil, 7 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.displayDuration(tt.item)
			if got != tt.want {
				t.Errorf("displayDuration() = %v, 期望 %v", got, tt.want)
			}
		})
	}
}

func TestCarouselDisplayDurationUsesProbedVideoLength(t *testing.T) {
	engine := newTestCarousel(nil)

	// 探测到的时长生效，超长封顶
	engine.probeCache["http://v/short.mp4"] = models.PreloadResult{OK: true, DurationSec: 8}
	engine.probeCache["http://v/long.mp4"] = models.PreloadResult{OK: true, DurationSec: 50}

	short := &models.CarouselItem{Kind: models.KindVideo, URL: "http://v/short.mp4"}
	if got := engine.displayDuration(short); got != 8*time.Second {
		t.Errorf("探测时长8s的视频 = %v, 期望 8s", got)
	}

	long := &models.CarouselItem{Kind: models.KindVideo, URL: "http://v/long.mp4"}
	if got := engine.displayDuration(long); got != 30*time.Second {
		t.Errorf("探测时长50s的视频应封顶30s，实际 %v", got)
	}
}

func TestCarouselReloadResetsOnSignatureChange(t *testing.T) {
	items := []models.CarouselItem{
		{ID: 1, SortOrder: 1, URL: "http://a/1.jpg", Kind: models.KindImage},
		{ID: 2, SortOrder: 2, URL: "http://a/2.jpg", Kind: models.KindImage},
	}
	playlist := &fakePlaylist{carousel: items}
	engine := NewCarouselEngine(carouselTestConfig(), playlist, newFakeRedis(), NewEventBus()).(*CarouselEngine)
	engine.sleep = func(time.Duration) {}

	engine.Reload()
	state := engine.Snapshot()
	if len(state.Items) != 2 || state.Phase != models.CarouselPhaseDisplaying {
		t.Fatalf("加载后状态异常: %+v", state)
	}

	// 推进游标后，列表未变化的重载不应打断
	engine.mu.Lock()
	engine.state.Index = 1
	engine.mu.Unlock()

	engine.Reload()
	if engine.Snapshot().Index != 1 {
		t.Error("签名未变化的重载不应重置游标")
	}

	// 换源后重载应从头开始
	playlist.carousel = []models.CarouselItem{
		{ID: 1, SortOrder: 1, URL: "http://a/novo.jpg", Kind: models.KindImage},
		{ID: 2, SortOrder: 2, URL: "http://a/2.jpg", Kind: models.KindImage},
	}
	engine.Reload()
	if engine.Snapshot().Index != 0 {
		t.Error("签名变化的重载应重置游标")
	}
}

func TestCarouselAdvanceFadesAndSwaps(t *testing.T) {
	items := []models.CarouselItem{
		{ID: 1, SortOrder: 1, URL: "http://a/1.jpg", Kind: models.KindImage},
		{ID: 2, SortOrder: 2, URL: "http://a/2.jpg", Kind: models.KindImage},
	}
	engine := newTestCarousel(items)
	var slept []time.Duration
	engine.sleep = func(d time.Duration) { slept = append(slept, d) }
	engine.Reload()
	engine.probeCache["http://a/2.jpg"] = models.PreloadResult{OK: true, MediaType: models.KindImage}

	if !engine.advance(context.Background()) {
		t.Fatal("正常切换不应要求循环退出")
	}

	st := engine.Snapshot()
	if st.Index != 1 {
		t.Errorf("切换后游标 = %d, 期望 1", st.Index)
	}
	if st.FrontIsA {
		t.Error("切换后前景层应翻转")
	}
	if st.Fading || st.Phase != models.CarouselPhaseDisplaying {
		t.Errorf("切换收尾后应回到显示态: fading=%v phase=%s", st.Fading, st.Phase)
	}
	if len(slept) != 1 || slept[0] != 450*time.Millisecond {
		t.Errorf("应经历一次450ms淡入，实际 %v", slept)
	}
}

func TestCarouselAdvanceFailedPreloadStillFades(t *testing.T) {
	// 端口1无服务，探测快速失败
	items := []models.CarouselItem{
		{ID: 1, SortOrder: 1, URL: "http://a/1.jpg", Kind: models.KindImage},
		{ID: 2, SortOrder: 2, URL: "http://127.0.0.1:1/bad.mp4", Kind: models.KindVideo},
	}
	engine := newTestCarousel(items)
	var slept []time.Duration
	engine.sleep = func(d time.Duration) { slept = append(slept, d) }
	engine.Reload()

	if !engine.advance(context.Background()) {
		t.Fatal("预加载失败不应要求循环退出")
	}

	st := engine.Snapshot()
	if st.Index != 1 {
		t.Errorf("预加载失败也应照常前进，游标 = %d", st.Index)
	}
	if len(slept) != 1 || slept[0] != 450*time.Millisecond {
		t.Errorf("预加载失败也应照常淡入，实际 %v", slept)
	}

	// 失败结果不入缓存，下次轮到时重新探测
	engine.probeMu.Lock()
	_, cached := engine.probeCache["http://127.0.0.1:1/bad.mp4"]
	engine.probeMu.Unlock()
	if cached {
		t.Error("探测失败不应被进程级缓存永久记住")
	}
}

func TestCarouselAdvanceVoidedBySignatureChange(t *testing.T) {
	items := []models.CarouselItem{
		{ID: 1, SortOrder: 1, URL: "http://a/1.jpg", Kind: models.KindImage},
		{ID: 2, SortOrder: 2, URL: "http://a/2.jpg", Kind: models.KindImage},
	}
	playlist := &fakePlaylist{carousel: items}
	engine := NewCarouselEngine(carouselTestConfig(), playlist, newFakeRedis(), NewEventBus()).(*CarouselEngine)
	engine.Reload()
	engine.probeCache["http://a/2.jpg"] = models.PreloadResult{OK: true, MediaType: models.KindImage}

	// 淡入期间列表换源，本次切换作废
	engine.sleep = func(time.Duration) {
		playlist.carousel = []models.CarouselItem{
			{ID: 1, SortOrder: 1, URL: "http://a/novo.jpg", Kind: models.KindImage},
			{ID: 2, SortOrder: 2, URL: "http://a/2.jpg", Kind: models.KindImage},
		}
		engine.Reload()
	}

	if !engine.advance(context.Background()) {
		t.Fatal("作废的切换不应要求循环退出")
	}

	st := engine.Snapshot()
	if st.Index != 0 {
		t.Errorf("列表变化后切换作废，游标应回到0，实际 %d", st.Index)
	}
	if !st.FrontIsA {
		t.Error("作废的切换不应翻转前景层")
	}
	if st.Fading {
		t.Error("切换收尾后不应停留在淡入态")
	}
}

func TestCarouselAdvanceStopsOnCancelledContext(t *testing.T) {
	items := []models.CarouselItem{
		{ID: 1, SortOrder: 1, URL: "http://a/1.jpg", Kind: models.KindImage},
		{ID: 2, SortOrder: 2, URL: "http://a/2.jpg", Kind: models.KindImage},
	}
	engine := newTestCarousel(items)
	engine.Reload()
	engine.probeCache["http://a/2.jpg"] = models.PreloadResult{OK: true, MediaType: models.KindImage}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if engine.advance(ctx) {
		t.Error("上下文取消后切换应通知循环退出")
	}
}

func TestCarouselEmptyPlaylist(t *testing.T) {
	engine := newTestCarousel(nil)
	engine.Reload()

	state := engine.Snapshot()
	if state.Phase != models.CarouselPhaseEmpty {
		t.Errorf("空列表阶段 = %s, 期望 %s", state.Phase, models.CarouselPhaseEmpty)
	}
	if state.CurrentItem() != nil {
		t.Error("空列表不应有当前素材")
	}
}

func TestCarouselStateNextIndexWraps(t *testing.T) {
	state := models.CarouselState{
		Items: []models.CarouselItem{{ID: 1}, {ID: 2}, {ID: 3}},
		Index: 2,
	}
	if state.NextIndex() != 0 {
		t.Errorf("末尾素材的下一个应回绕到0，实际 %d", state.NextIndex())
	}

	empty := models.CarouselState{}
	if empty.NextIndex() != 0 {
		t.Error("空列表的下一个下标应为0")
	}
}
