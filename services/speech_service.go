package services

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// 播报模式
const (
	ModeAuto   = "auto"   // 按优先级逐个尝试
	ModeNative = "native" // 仅kiosk本机TTS
	ModeWeb    = "web"    // 仅浏览器语音合成
	ModeBeep   = "beep"   // 仅提示音
)

const (
	speechLangNative = "pt_BR"
	speechLangWeb    = "pt-BR"
	speechRateWeb    = 1.06

	// 无完成回调的后端按文本长度估算播报时长
	minSpeechMs    = 2000
	perCharMs      = 60
	beepDurationMs = 800
)

// InterfaceSpeechBackend 定义一种播报后端。
// Speak返回完成信号channel；无可靠回调的后端返回nil，
// 调用方以estimated作为播报时长
type InterfaceSpeechBackend interface {
	Name() string
	Available() bool
	Speak(text string) (done <-chan struct{}, estimated time.Duration, err error)
}

// InterfaceSpeechService 按播报模式给出后端尝试序列
type InterfaceSpeechService interface {
	Chain(mode string) []InterfaceSpeechBackend
}

// SpeechService 组合全部播报后端
type SpeechService struct {
	native InterfaceSpeechBackend
	web    InterfaceSpeechBackend
	beep   InterfaceSpeechBackend
}

// NewSpeechService 创建播报后端服务
func NewSpeechService(surface InterfaceMediaSurface, bus InterfaceEventBus) InterfaceSpeechService {
	return &SpeechService{
		native: &NativeTTSBackend{Surface: surface},
		web:    &WebSpeechBackend{Surface: surface, Bus: bus},
		beep:   &BeepBackend{Surface: surface},
	}
}

// Chain 返回指定模式下的后端尝试序列。
// auto模式按 本机TTS → 浏览器合成 → 提示音 的固定优先级级联
func (s *SpeechService) Chain(mode string) []InterfaceSpeechBackend {
	switch mode {
	case ModeNative:
		return []InterfaceSpeechBackend{s.native}
	case ModeWeb:
		return []InterfaceSpeechBackend{s.web}
	case ModeBeep:
		return []InterfaceSpeechBackend{s.beep}
	default:
		return []InterfaceSpeechBackend{s.native, s.web, s.beep}
	}
}

// EstimateSpeechDuration 估算一段文本的播报时长：每字符60ms，至少2秒
func EstimateSpeechDuration(text string) time.Duration {
	ms := utf8.RuneCountInString(text) * perCharMs
	if ms < minSpeechMs {
		ms = minSpeechMs
	}
	return time.Duration(ms) * time.Millisecond
}

// NativeTTSBackend kiosk本机TTS引擎。没有完成回调，按时长估算
type NativeTTSBackend struct {
	Surface InterfaceMediaSurface
}

func (b *NativeTTSBackend) Name() string { return "native" }

func (b *NativeTTSBackend) Available() bool {
	return b.Surface != nil && b.Surface.IsConnected()
}

func (b *NativeTTSBackend) Speak(text string) (<-chan struct{}, time.Duration, error) {
	if err := b.Surface.SpeakNative(text, speechLangNative); err != nil {
		return nil, 0, err
	}
	return nil, EstimateSpeechDuration(text), nil
}

// WebSpeechBackend kiosk浏览器语音合成。完成后上报ttsdone事件，
// 估算时长作为事件丢失时的兜底
type WebSpeechBackend struct {
	Surface InterfaceMediaSurface
	Bus     InterfaceEventBus
}

func (b *WebSpeechBackend) Name() string { return "web" }

func (b *WebSpeechBackend) Available() bool {
	return b.Surface != nil && b.Surface.IsConnected()
}

func (b *WebSpeechBackend) Speak(text string) (<-chan struct{}, time.Duration, error) {
	// 先订阅完成事件再发指令，避免完成信号先于订阅到达
	ch := b.Bus.Subscribe(EventSpeechDone)

	if err := b.Surface.SpeakWeb(text, speechLangWeb, speechRateWeb); err != nil {
		b.Bus.Unsubscribe(EventSpeechDone, ch)
		return nil, 0, err
	}

	done := make(chan struct{})
	go func() {
		defer b.Bus.Unsubscribe(EventSpeechDone, ch)
		if _, ok := <-ch; ok {
			close(done)
		}
	}()

	// 事件可能丢失，兜底时长 = 估算 + 2s
	return done, EstimateSpeechDuration(text) + 2*time.Second, nil
}

// BeepBackend 两声提示音（880Hz、660Hz各180ms，间隔250ms），
// 任何环境下都可用的最终兜底
type BeepBackend struct {
	Surface InterfaceMediaSurface
}

func (b *BeepBackend) Name() string { return "beep" }

func (b *BeepBackend) Available() bool {
	return b.Surface != nil && b.Surface.IsConnected()
}

func (b *BeepBackend) Speak(_ string) (<-chan struct{}, time.Duration, error) {
	tones := []BeepTone{
		{FreqHz: 880, DurationMs: 180, AtMs: 0},
		{FreqHz: 660, DurationMs: 180, AtMs: 250},
	}
	if err := b.Surface.Beep(tones); err != nil {
		return nil, 0, fmt.Errorf("播放提示音失败: %v", err)
	}
	return nil, beepDurationMs * time.Millisecond, nil
}
