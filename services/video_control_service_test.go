package services

import (
	"context"
	"testing"
	"time"

	"webtv-display-service/config"
	"webtv-display-service/models"
)

func videoTestConfig() *config.Config {
	return &config.Config{
		StallSeconds: 12,
		VideoRetryMs: 10,
	}
}

func newTestVideoControl(urls ...string) (*VideoControlService, *fakeSurface) {
	videos := make([]models.VideoItem, 0, len(urls))
	for i, u := range urls {
		videos = append(videos, models.VideoItem{ID: uint(i + 1), URL: u, SortOrder: i + 1, Enabled: true})
	}

	surface := &fakeSurface{}
	svc := &VideoControlService{
		Config:       videoTestConfig(),
		Playlist:     &fakePlaylist{videos: videos},
		Surface:      surface,
		Redis:        newFakeRedis(),
		Bus:          NewEventBus(),
		playing:      true,
		seenBaseline: true,
	}
	svc.reloadVideos(true)
	return svc, surface
}

func (f *fakeSurface) loadedSources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.loaded...)
}

func TestVideoControlStepWraps(t *testing.T) {
	svc, surface := newTestVideoControl("http://v/1.mp4", "http://v/2.mp4", "http://v/3.mp4")

	svc.handleControl(models.VideoControl{Command: models.VideoCmdNext, Nonce: "n1"})
	svc.handleControl(models.VideoControl{Command: models.VideoCmdNext, Nonce: "n2"})
	svc.handleControl(models.VideoControl{Command: models.VideoCmdNext, Nonce: "n3"})

	loaded := surface.loadedSources()
	// 初始加载 + 三次前进（最后一次回绕到第一条）
	want := []string{"http://v/1.mp4", "http://v/2.mp4", "http://v/3.mp4", "http://v/1.mp4"}
	if len(loaded) != len(want) {
		t.Fatalf("加载序列 = %v, 期望 %v", loaded, want)
	}
	for i := range want {
		if loaded[i] != want[i] {
			t.Errorf("加载序列位置 %d = %s, 期望 %s", i, loaded[i], want[i])
		}
	}

	svc.handleControl(models.VideoControl{Command: models.VideoCmdPrev, Nonce: "n4"})
	loaded = surface.loadedSources()
	if loaded[len(loaded)-1] != "http://v/3.mp4" {
		t.Errorf("后退应回绕到末尾，实际加载 %s", loaded[len(loaded)-1])
	}
}

func TestVideoControlNonceDedup(t *testing.T) {
	svc, surface := newTestVideoControl("http://v/1.mp4", "http://v/2.mp4")

	svc.handleControl(models.VideoControl{Command: models.VideoCmdNext, Nonce: "n1"})
	svc.handleControl(models.VideoControl{Command: models.VideoCmdNext, Nonce: "n1"})

	// 初始加载 + 仅一次前进
	if got := len(surface.loadedSources()); got != 2 {
		t.Errorf("相同nonce的指令只应执行一次，加载次数 = %d", got)
	}
}

func TestVideoControlVolumeClamp(t *testing.T) {
	svc, surface := newTestVideoControl("http://v/1.mp4")

	over := 150
	svc.handleControl(models.VideoControl{Volume: &over, Nonce: "n1"})

	volumes := surface.volumeCalls()
	if len(volumes) != 1 || volumes[0] != 100 {
		t.Errorf("越界音量应夹取到100，实际 %v", volumes)
	}
}

func TestVideoControlSkipToClamp(t *testing.T) {
	svc, surface := newTestVideoControl("http://v/1.mp4", "http://v/2.mp4")

	target := 10
	svc.handleControl(models.VideoControl{SkipTo: &target, Nonce: "n1"})

	loaded := surface.loadedSources()
	if loaded[len(loaded)-1] != "http://v/2.mp4" {
		t.Errorf("越界下标应夹取到末尾，实际加载 %s", loaded[len(loaded)-1])
	}
}

func TestVideoControlPlayPause(t *testing.T) {
	svc, _ := newTestVideoControl("http://v/1.mp4")

	paused := false
	svc.handleControl(models.VideoControl{Playing: &paused, Nonce: "n1"})
	if svc.Playing() {
		t.Error("暂停指令后播放状态应为false")
	}

	playing := true
	svc.handleControl(models.VideoControl{Playing: &playing, Nonce: "n2"})
	if !svc.Playing() {
		t.Error("播放指令后播放状态应为true")
	}
}

func TestVideoControlSingleVideoLoops(t *testing.T) {
	svc, surface := newTestVideoControl("http://v/1.mp4")

	svc.onEnded()

	surface.mu.Lock()
	seeks := append([]float64{}, surface.seeks...)
	loaded := len(surface.loaded)
	surface.mu.Unlock()

	if len(seeks) != 1 || seeks[0] != 0 {
		t.Errorf("单视频播完应回到片头循环，seek调用 = %v", seeks)
	}
	if loaded != 1 {
		t.Error("单视频循环不应重新加载")
	}
}

func TestVideoControlMultiVideoAdvancesOnEnded(t *testing.T) {
	svc, surface := newTestVideoControl("http://v/1.mp4", "http://v/2.mp4")

	svc.onEnded()

	loaded := surface.loadedSources()
	if loaded[len(loaded)-1] != "http://v/2.mp4" {
		t.Errorf("多视频播完应前进到下一条，实际加载 %s", loaded[len(loaded)-1])
	}
}

func TestVideoControlStallWatchdog(t *testing.T) {
	svc, surface := newTestVideoControl("http://v/1.mp4")

	// 喂一次心跳后让它"卡住"
	svc.onPosition(3.5)
	svc.mu.Lock()
	svc.lastPosAt = time.Now().Add(-20 * time.Second)
	svc.mu.Unlock()

	svc.checkStall()

	surface.mu.Lock()
	reloads := surface.reloads
	surface.mu.Unlock()
	if reloads != 1 {
		t.Errorf("卡顿超时应强制重载一次，实际 %d", reloads)
	}

	// 重载后计时重置，紧接着的巡检不应再次触发
	svc.checkStall()
	surface.mu.Lock()
	reloads = surface.reloads
	surface.mu.Unlock()
	if reloads != 1 {
		t.Error("重载后看门狗应重新计时")
	}
}

func TestVideoControlPositionFromPlayerStatus(t *testing.T) {
	svc, surface := newTestVideoControl("http://v/1.mp4")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	// 播放面上报的位置心跳是完整状态消息，位置埋在Data里
	svc.Bus.Publish(EventPlayerPosition, PlayerStatusMessage{
		Type:      "position",
		MsgID:     "m1",
		Timestamp: time.Now().UnixMilli(),
		Data:      map[string]any{"position": 3.5},
	})

	waitFor(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return svc.lastPos == 3.5 && !svc.lastPosAt.IsZero()
	})

	// 心跳喂过之后看门狗才有判断依据，卡住要能触发重载
	svc.mu.Lock()
	svc.lastPosAt = time.Now().Add(-20 * time.Second)
	svc.mu.Unlock()
	svc.checkStall()

	surface.mu.Lock()
	reloads := surface.reloads
	surface.mu.Unlock()
	if reloads != 1 {
		t.Errorf("总线心跳喂入后卡顿应触发重载，实际 %d 次", reloads)
	}
}

func TestVideoControlInteractionResumesPlayback(t *testing.T) {
	svc, surface := newTestVideoControl("http://v/1.mp4")

	svc.onInteraction()
	surface.mu.Lock()
	plays := surface.plays
	surface.mu.Unlock()
	if plays != 1 {
		t.Errorf("播放中收到交互心跳应补发一次播放，实际 %d 次", plays)
	}

	// 暂停状态下交互不应擅自恢复播放
	svc.mu.Lock()
	svc.playing = false
	svc.mu.Unlock()
	svc.onInteraction()
	surface.mu.Lock()
	plays = surface.plays
	surface.mu.Unlock()
	if plays != 1 {
		t.Error("暂停时交互心跳不应触发播放")
	}
}

func TestVideoControlTracksVolumeBroadcast(t *testing.T) {
	svc, _ := newTestVideoControl("http://v/1.mp4")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	svc.Bus.Publish(EventVolumeRequest, 20)
	waitFor(t, func() bool { return svc.Volume() == 20 })

	svc.Bus.Publish(EventVolumeRequest, 60)
	waitFor(t, func() bool { return svc.Volume() == 60 })

	// 越界广播同样夹取
	svc.onVolume(180)
	if svc.Volume() != 100 {
		t.Errorf("越界音量广播应夹取到100，实际 %d", svc.Volume())
	}
}

func TestVideoControlPlaylistEditKeepsCurrentPlayback(t *testing.T) {
	svc, surface := newTestVideoControl("http://v/1.mp4", "http://v/2.mp4")
	pl := svc.Playlist.(*fakePlaylist)

	// 追加一条视频，当前位置的源没变，不应打断正在播的视频
	pl.videos = append(pl.videos, models.VideoItem{ID: 3, URL: "http://v/3.mp4", SortOrder: 3, Enabled: true})
	svc.reloadVideos(false)
	if got := len(surface.loadedSources()); got != 1 {
		t.Errorf("列表追加不应重载当前视频，加载次数 = %d", got)
	}

	// 当前位置的源被替换时才换源
	pl.videos = []models.VideoItem{{ID: 9, URL: "http://v/novo.mp4", SortOrder: 1, Enabled: true}}
	svc.reloadVideos(false)
	loaded := surface.loadedSources()
	if loaded[len(loaded)-1] != "http://v/novo.mp4" {
		t.Errorf("当前源变化应加载新视频，实际 %s", loaded[len(loaded)-1])
	}
}

func TestVideoControlPositionHeartbeat(t *testing.T) {
	svc, _ := newTestVideoControl("http://v/1.mp4")

	svc.onPosition(1.0)
	svc.mu.Lock()
	first := svc.lastPosAt
	svc.mu.Unlock()

	// 相同位置不刷新计时
	svc.onPosition(1.0)
	svc.mu.Lock()
	same := svc.lastPosAt
	svc.mu.Unlock()
	if !same.Equal(first) {
		t.Error("位置未前进时不应刷新看门狗计时")
	}

	// 位置前进刷新计时
	svc.onPosition(2.0)
	svc.mu.Lock()
	advanced := svc.lastPosAt
	svc.mu.Unlock()
	if !advanced.After(first) && !advanced.Equal(first) {
		t.Error("位置前进应刷新看门狗计时")
	}
	if svc.lastPos != 2.0 {
		t.Errorf("应记录最新位置，实际 %v", svc.lastPos)
	}
}
