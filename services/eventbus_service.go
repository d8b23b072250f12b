package services

import (
	"log"
	"sync"
	"time"
)

// 事件主题常量
const (
	// kiosk播放器上行事件
	EventPlayerReady    = "player/ready"    // 当前源可以流畅播放
	EventPlayerEnded    = "player/ended"    // 当前源播放结束
	EventPlayerError    = "player/error"    // 播放出错
	EventPlayerPosition = "player/position" // 播放位置心跳
	EventSpeechDone     = "player/ttsdone"  // 语音合成播报完成
	EventInteraction    = "player/ping"     // 用户交互（解锁自动播放）

	// 服务内部信号
	EventAnnounceTrigger = "announce/trigger" // 新的播报触发
	EventVolumeRequest   = "volume/request"   // 音量调整广播（播报压低/恢复）
	EventCallsChanged    = "calls/changed"    // 叫号历史变化
	EventSettingsChanged = "settings/changed" // 显示配置变化
	EventPlaylistChanged = "playlist/changed" // 轮播列表变化
	EventVideoChanged    = "video/changed"    // 背景视频列表变化
	EventControlChanged  = "control/changed"  // 背景视频控制指令
)

// Event 总线上流转的一条事件
type Event struct {
	Topic   string
	Payload interface{}
	At      time.Time
}

// InterfaceEventBus 定义进程内发布/订阅总线接口
type InterfaceEventBus interface {
	Publish(topic string, payload interface{})
	Subscribe(topic string) <-chan Event
	Unsubscribe(topic string, ch <-chan Event)
	Close()
}

// EventBus 基于带缓冲channel的事件总线实现。
// Publish从不阻塞：订阅者缓冲满时直接丢弃（音量请求、心跳等
// 信号都是幂等的，丢一条不影响状态收敛）
type EventBus struct {
	subscribers map[string][]chan Event
	closed      bool
	mu          sync.RWMutex
}

const eventBufferSize = 16

// NewEventBus 创建事件总线
func NewEventBus() InterfaceEventBus {
	return &EventBus{
		subscribers: make(map[string][]chan Event),
	}
}

// Publish 向主题的所有订阅者投递事件，缓冲满则丢弃
func (b *EventBus) Publish(topic string, payload interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	ev := Event{Topic: topic, Payload: payload, At: time.Now()}
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- ev:
		default:
			log.Printf("[总线] 订阅者缓冲已满，丢弃事件: topic=%s", topic)
		}
	}
}

// Subscribe 订阅主题，返回只读事件channel
func (b *EventBus) Subscribe(topic string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, eventBufferSize)
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	return ch
}

// Unsubscribe 取消订阅并关闭对应channel
func (b *EventBus) Unsubscribe(topic string, ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[topic]
	for i, sub := range subs {
		if sub == ch {
			b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close 关闭总线，所有订阅channel随之关闭
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, topic)
	}
}
