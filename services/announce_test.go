package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"webtv-display-service/models"
)

// fakeSurface 记录音量调用序列的播放器通道假实现
type fakeSurface struct {
	mu      sync.Mutex
	volumes []int
	loaded  []string
	seeks   []float64
	reloads int
	plays   int
	playErr error
}

func (f *fakeSurface) Connect() error    { return nil }
func (f *fakeSurface) Disconnect()       {}
func (f *fakeSurface) IsConnected() bool { return true }

func (f *fakeSurface) SetVolume(v int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes = append(f.volumes, v)
	return nil
}

func (f *fakeSurface) Mute() error   { return nil }
func (f *fakeSurface) Unmute() error { return nil }

func (f *fakeSurface) Play() error {
	f.mu.Lock()
	f.plays++
	f.mu.Unlock()
	return f.playErr
}

func (f *fakeSurface) Pause() error         { return nil }
func (f *fakeSurface) CurrentTime() float64 { return 0 }

func (f *fakeSurface) Seek(seconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, seconds)
	return nil
}

func (f *fakeSurface) LoadSource(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = append(f.loaded, url)
	return nil
}

func (f *fakeSurface) Reload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return nil
}

func (f *fakeSurface) SpeakNative(text, lang string) error            { return nil }
func (f *fakeSurface) SpeakWeb(text, lang string, rate float64) error { return nil }
func (f *fakeSurface) Beep(tones []BeepTone) error                    { return nil }

func (f *fakeSurface) volumeCalls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int{}, f.volumes...)
}

// fakeBackend 记录播报文本的后端假实现
type fakeBackend struct {
	mu        sync.Mutex
	name      string
	available bool
	err       error
	spoken    []string
}

func (b *fakeBackend) Name() string    { return b.name }
func (b *fakeBackend) Available() bool { return b.available }

func (b *fakeBackend) Speak(text string) (<-chan struct{}, time.Duration, error) {
	if b.err != nil {
		return nil, 0, b.err
	}
	b.mu.Lock()
	b.spoken = append(b.spoken, text)
	b.mu.Unlock()
	return nil, 0, nil
}

func (b *fakeBackend) spokenTexts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string{}, b.spoken...)
}

// fakeChain 固定后端序列的播报服务假实现
type fakeChain struct {
	backends []InterfaceSpeechBackend
}

func (c *fakeChain) Chain(mode string) []InterfaceSpeechBackend { return c.backends }

// fakeSettingsProvider 返回固定配置
type fakeSettingsProvider struct {
	settings models.DisplaySettings
}

func (f *fakeSettingsProvider) Defaults() models.DisplaySettings    { return f.settings }
func (f *fakeSettingsProvider) GetSettings() models.DisplaySettings { return f.settings }

func (f *fakeSettingsProvider) UpdateSettings(s models.DisplaySettings) (models.DisplaySettings, error) {
	return s, nil
}

func (f *fakeSettingsProvider) GetTrigger() (models.TriggerEvent, bool) {
	return models.TriggerEvent{}, false
}

func (f *fakeSettingsProvider) FireAnnounce(name, room string, idle bool) (models.TriggerEvent, error) {
	return models.TriggerEvent{Name: name, Room: room, Idle: idle}, nil
}

func testDisplaySettings() models.DisplaySettings {
	return models.DisplaySettings{
		IdleSeconds:      120,
		DuckVolume:       20,
		RestoreVolume:    60,
		AnnounceTemplate: "Atenção: paciente {{nome}}. Dirija-se à sala {{salaTxt}}.",
		AnnounceMode:     "auto",
	}
}

func newTestAnnounceService(backends ...InterfaceSpeechBackend) (*AnnounceService, *fakeSurface) {
	surface := &fakeSurface{}
	svc := &AnnounceService{
		Settings: &fakeSettingsProvider{settings: testDisplaySettings()},
		Feed:     &feedStub{},
		Speech:   &fakeChain{backends: backends},
		Surface:  surface,
		Bus:      NewEventBus(),
		queue:    models.NewAnnounceQueue(20),
		sleep:    func(time.Duration) {},
	}
	return svc, surface
}

// feedStub 不关心强制待机的空实现
type feedStub struct{}

func (feedStub) Start(context.Context)      {}
func (feedStub) Snapshot() models.FeedState { return models.FeedState{} }
func (feedStub) SetForcedIdle(bool)         {}
func (feedStub) ForcedIdle() bool           { return false }
func (feedStub) Refresh()                   {}

// 等待条件成立，超时报错
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("等待条件超时")
}

func TestRenderTemplate(t *testing.T) {
	tpl := "Atenção: paciente {{nome}}. Dirija-se à sala {{salaTxt}}."

	tests := []struct {
		name string
		tpl  string
		who  string
		room string
		want string
	}{
		{
			name: "姓名与诊室",
			tpl:  tpl,
			who:  "Maria Souza",
			room: "3",
			want: "Atenção: paciente Maria Souza. Dirija-se à sala número 3.",
		},
		{
			name: "诊室为空时省略量词说法",
			tpl:  tpl,
			who:  "Maria Souza",
			room: "",
			want: "Atenção: paciente Maria Souza. Dirija-se à sala .",
		},
		{
			name: "裸诊室占位符",
			tpl:  "Sala {{sala}}: {{nome}}",
			who:  "João",
			room: "5",
			want: "Sala 5: João",
		},
		{
			name: "无占位符原样输出",
			tpl:  "chamada geral",
			who:  "Maria",
			room: "1",
			want: "chamada geral",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderTemplate(tt.tpl, tt.who, tt.room)
			if got != tt.want {
				t.Errorf("RenderTemplate() = %q, 期望 %q", got, tt.want)
			}
		})
	}
}

func TestAnnounceDuckThenRestore(t *testing.T) {
	backend := &fakeBackend{name: "native", available: true}
	svc, surface := newTestAnnounceService(backend)

	svc.Announce("Maria", "3")

	waitFor(t, func() bool { return len(surface.volumeCalls()) >= 2 })

	volumes := surface.volumeCalls()
	if volumes[0] != 20 {
		t.Errorf("播报前应压低音量到20，实际 %d", volumes[0])
	}
	if volumes[len(volumes)-1] != 60 {
		t.Errorf("播报后应恢复音量到60，实际 %d", volumes[len(volumes)-1])
	}

	spoken := backend.spokenTexts()
	if len(spoken) != 1 {
		t.Fatalf("期望播报1次，实际 %d", len(spoken))
	}
	want := "Atenção: paciente Maria. Dirija-se à sala número 3."
	if spoken[0] != want {
		t.Errorf("播报文本 = %q, 期望 %q", spoken[0], want)
	}
}

func TestAnnounceRestoresVolumeWhenAllBackendsFail(t *testing.T) {
	failing := &fakeBackend{name: "native", available: true, err: errors.New("tts engine offline")}
	unavailable := &fakeBackend{name: "web", available: false}
	svc, surface := newTestAnnounceService(failing, unavailable)

	svc.Announce("Maria", "3")

	waitFor(t, func() bool { return len(surface.volumeCalls()) >= 2 })

	volumes := surface.volumeCalls()
	if volumes[len(volumes)-1] != 60 {
		t.Error("所有后端失败时也必须恢复音量")
	}
	if len(unavailable.spokenTexts()) != 0 {
		t.Error("不可用的后端不应被调用")
	}
}

func TestAnnounceBroadcastsVolumeChanges(t *testing.T) {
	backend := &fakeBackend{name: "native", available: true}
	svc, _ := newTestAnnounceService(backend)
	defer svc.Bus.Close()

	ch := svc.Bus.Subscribe(EventVolumeRequest)
	var mu sync.Mutex
	var got []int
	go func() {
		for ev := range ch {
			if v, ok := ev.Payload.(int); ok {
				mu.Lock()
				got = append(got, v)
				mu.Unlock()
			}
		}
	}()

	svc.Announce("Maria Souza", "3")

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 2
	})

	mu.Lock()
	defer mu.Unlock()
	if got[0] != 20 || got[1] != 60 {
		t.Errorf("总线上应先广播压低再广播恢复，实际 %v", got)
	}
}

func TestAnnounceFallsThroughToNextBackend(t *testing.T) {
	failing := &fakeBackend{name: "native", available: true, err: errors.New("boom")}
	fallback := &fakeBackend{name: "beep", available: true}
	svc, _ := newTestAnnounceService(failing, fallback)

	svc.Announce("Maria", "3")

	waitFor(t, func() bool { return len(fallback.spokenTexts()) == 1 })
}

func TestAnnounceSerializesJobsInOrder(t *testing.T) {
	backend := &fakeBackend{name: "native", available: true}
	svc, _ := newTestAnnounceService(backend)

	svc.Announce("A", "1")
	svc.Announce("B", "2")
	svc.Announce("C", "3")

	waitFor(t, func() bool { return len(backend.spokenTexts()) == 3 })

	spoken := backend.spokenTexts()
	for i, who := range []string{"A", "B", "C"} {
		want := RenderTemplate(testDisplaySettings().AnnounceTemplate, who, []string{"1", "2", "3"}[i])
		if spoken[i] != want {
			t.Errorf("第 %d 次播报 = %q, 期望 %q", i, spoken[i], want)
		}
	}
}

func TestHandleTriggerNonceDedup(t *testing.T) {
	backend := &fakeBackend{name: "native", available: true}
	svc, _ := newTestAnnounceService(backend)

	// 首个快照只作基线，不播报
	svc.HandleTrigger(models.TriggerEvent{Name: "Maria", Room: "1", Nonce: "n1"})
	time.Sleep(50 * time.Millisecond)
	if len(backend.spokenTexts()) != 0 {
		t.Fatal("基线快照不应触发播报")
	}

	// nonce变化才是真实触发
	svc.HandleTrigger(models.TriggerEvent{Name: "Maria", Room: "1", Nonce: "n2"})
	waitFor(t, func() bool { return len(backend.spokenTexts()) == 1 })

	// 相同nonce的快照重放不再触发
	svc.HandleTrigger(models.TriggerEvent{Name: "Maria", Room: "1", Nonce: "n2"})
	time.Sleep(50 * time.Millisecond)
	if len(backend.spokenTexts()) != 1 {
		t.Error("相同nonce的快照不应重复播报")
	}

	// 姓名为空的触发（强制待机）不播报
	svc.HandleTrigger(models.TriggerEvent{Name: "", Idle: true, Nonce: "n3"})
	time.Sleep(50 * time.Millisecond)
	if len(backend.spokenTexts()) != 1 {
		t.Error("空姓名触发不应播报")
	}
}

func TestHandleTriggerAppliesForcedIdle(t *testing.T) {
	backend := &fakeBackend{name: "native", available: true}
	svc, _ := newTestAnnounceService(backend)

	feed := &recordingFeed{}
	svc.Feed = feed

	svc.HandleTrigger(models.TriggerEvent{Idle: true, Nonce: "n1"})
	svc.HandleTrigger(models.TriggerEvent{Idle: false, Nonce: "n1"})

	got := feed.calls()
	if len(got) != 2 || got[0] != true || got[1] != false {
		t.Errorf("每个快照都应应用待机标志，实际 %v", got)
	}
}

// recordingFeed 记录SetForcedIdle调用
type recordingFeed struct {
	feedStub
	mu     sync.Mutex
	values []bool
}

func (f *recordingFeed) SetForcedIdle(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = append(f.values, v)
}

func (f *recordingFeed) calls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool{}, f.values...)
}
