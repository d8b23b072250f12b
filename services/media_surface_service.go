package services

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"webtv-display-service/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// 主题常量
const (
	// 下行：服务端发给kiosk播放器的指令
	TopicPlayerCommand = "webtv/player/command"

	// 上行：kiosk播放器的状态事件
	TopicPlayerStatus = "webtv/player/status"

	// 上行：用户交互心跳（解锁自动播放等）
	TopicPlayerPing = "webtv/player/ping"
)

// 播放器指令类型
const (
	CmdSetVolume = "set_volume"
	CmdMute      = "mute"
	CmdUnmute    = "unmute"
	CmdPlay      = "play"
	CmdPause     = "pause"
	CmdSeek      = "seek"
	CmdLoad      = "load"
	CmdReload    = "reload"
	CmdSpeak     = "speak" // 语音合成播报
	CmdBeep      = "beep"  // 提示音序列
)

// 消息结构体定义
type (
	// PlayerCommand 下行指令消息
	PlayerCommand struct {
		Type      string         `json:"type"`
		Timestamp int64          `json:"timestamp"`
		Payload   map[string]any `json:"payload,omitempty"`
	}

	// PlayerStatusMessage 上行状态消息
	PlayerStatusMessage struct {
		Type      string         `json:"type"` // ready/ended/error/position/ttsdone
		MsgID     string         `json:"msg_id"`
		Timestamp int64          `json:"timestamp"`
		Data      map[string]any `json:"data,omitempty"`
	}

	// BeepTone 一声提示音
	BeepTone struct {
		FreqHz     int `json:"freq_hz"`
		DurationMs int `json:"duration_ms"`
		AtMs       int `json:"at_ms"` // 相对序列起点的开始时刻
	}
)

// InterfaceMediaSurface 定义对kiosk媒体播放面的能力接口。
// 播报期间音量只允许编排器写入，并保证最终恢复
type InterfaceMediaSurface interface {
	Connect() error
	Disconnect()
	IsConnected() bool
	SetVolume(v int) error
	Mute() error
	Unmute() error
	Play() error
	Pause() error
	Seek(seconds float64) error
	CurrentTime() float64
	LoadSource(url string) error
	Reload() error
	SpeakNative(text, lang string) error
	SpeakWeb(text, lang string, rate float64) error
	Beep(tones []BeepTone) error
}

// MQTTMediaSurface 通过MQTT驱动kiosk播放器的MediaSurface实现
type MQTTMediaSurface struct {
	Config         *config.Config
	Bus            InterfaceEventBus
	Client         mqtt.Client
	IsConnectedFlg bool
	connectedMutex sync.RWMutex // 保护IsConnectedFlg字段的读写
	TopicHandlers  map[string]mqtt.MessageHandler
	PublishMutex   sync.Mutex // 用于保护MQTT消息发布
	ProcessedMsgs  *sync.Map  // 用于记录已处理的消息，防止重复处理

	// 最近一次位置心跳上报的播放进度（秒）
	lastPosition  float64
	positionMutex sync.RWMutex
}

// NewMQTTMediaSurface 创建一个新的MQTT播放面服务
func NewMQTTMediaSurface(cfg *config.Config, bus InterfaceEventBus) InterfaceMediaSurface {
	service := &MQTTMediaSurface{
		Config:        cfg,
		Bus:           bus,
		ProcessedMsgs: &sync.Map{},
	}

	// 设置MQTT客户端
	service.setupMQTTClient()

	// 设置主题处理程序
	service.setupTopicHandlers()

	// 启动消息去重清理任务
	go service.startMsgCleanupTask()

	return service
}

// setupMQTTClient 设置MQTT客户端
func (s *MQTTMediaSurface) setupMQTTClient() {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.Config.MQTTBrokerURL)
	// 使用唯一的客户端ID，避免同一服务多实例冲突
	opts.SetClientID(fmt.Sprintf("%s-%s-%d", s.Config.MQTTClientID, uuid.New().String()[:8], time.Now().UnixNano()))
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Second * 30)
	opts.SetKeepAlive(time.Second * 60)
	opts.SetPingTimeout(time.Second * 10)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)

	opts.SetDefaultPublishHandler(func(client mqtt.Client, msg mqtt.Message) {
		log.Printf("[MQTT] 收到未处理的消息: topic=%s", msg.Topic())
	})

	// 添加用户名和密码
	if s.Config.MQTTUsername != "" {
		opts.SetUsername(s.Config.MQTTUsername)
		opts.SetPassword(s.Config.MQTTPassword)
	}

	// 添加TLS配置，支持SSL连接
	if strings.HasPrefix(s.Config.MQTTBrokerURL, "ssl://") || strings.HasPrefix(s.Config.MQTTBrokerURL, "tls://") || s.Config.MQTTSSLEnabled {
		log.Println("[MQTT] 使用TLS连接")
		tlsConfig := &tls.Config{
			InsecureSkipVerify: true, // 默认跳过验证，如有CA证书则使用
		}

		if s.Config.MQTTCACertPath != "" {
			log.Printf("[MQTT] 使用CA证书: %s", s.Config.MQTTCACertPath)
		}

		opts.SetTLSConfig(tlsConfig)
	}

	// 设置连接丢失回调
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("[MQTT] 连接丢失: %v", err)
		s.connectedMutex.Lock()
		s.IsConnectedFlg = false
		s.connectedMutex.Unlock()
	})

	// 设置连接建立回调
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Println("[MQTT] 成功连接到", s.Config.MQTTBrokerURL)
		s.connectedMutex.Lock()
		s.IsConnectedFlg = true
		s.connectedMutex.Unlock()

		// 订阅主题
		if err := s.subscribeToTopics(); err != nil {
			log.Printf("[MQTT] 订阅主题失败: %v", err)
		}
	})

	// 设置重连回调
	opts.SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
		log.Println("[MQTT] 正在尝试重连...")
	})

	// 创建客户端
	s.Client = mqtt.NewClient(opts)
}

// setupTopicHandlers 设置主题处理程序
func (s *MQTTMediaSurface) setupTopicHandlers() {
	s.TopicHandlers = map[string]mqtt.MessageHandler{
		TopicPlayerStatus: s.handlePlayerStatus,
		TopicPlayerPing:   s.handlePlayerPing,
	}
}

// Connect 连接到MQTT服务器，带有重试机制
func (s *MQTTMediaSurface) Connect() error {
	log.Printf("[MQTT] 正在连接到 %s...", s.Config.MQTTBrokerURL)

	// 加锁，确保同一时间只有一个连接尝试
	s.PublishMutex.Lock()
	defer s.PublishMutex.Unlock()

	// 如果已连接，直接返回
	if s.IsConnected() {
		return nil
	}

	// 添加最大重试次数和指数退避策略
	maxRetries := 5
	var err error

	for i := 0; i < maxRetries; i++ {
		token := s.Client.Connect()
		if token.WaitTimeout(5*time.Second) && token.Error() == nil {
			s.connectedMutex.Lock()
			s.IsConnectedFlg = true
			s.connectedMutex.Unlock()
			log.Printf("[MQTT] 成功连接到 %s", s.Config.MQTTBrokerURL)
			return nil
		}

		err = token.Error()
		backoffTime := time.Duration(1<<uint(i)) * time.Second // 指数退避: 1s, 2s, 4s, 8s, 16s
		log.Printf("[MQTT] 连接尝试 %d/%d 失败: %v, 将在 %v 后重试", i+1, maxRetries, err, backoffTime)
		time.Sleep(backoffTime)
	}

	return fmt.Errorf("[MQTT] 连接失败，已尝试 %d 次: %v", maxRetries, err)
}

// Disconnect 断开与MQTT服务器的连接
func (s *MQTTMediaSurface) Disconnect() {
	if s.Client != nil && s.Client.IsConnected() {
		s.Client.Disconnect(250)
	}
}

// IsConnected 返回当前连接状态
func (s *MQTTMediaSurface) IsConnected() bool {
	s.connectedMutex.RLock()
	defer s.connectedMutex.RUnlock()
	return s.IsConnectedFlg && s.Client.IsConnected()
}

// subscribeToTopics 订阅相关主题
func (s *MQTTMediaSurface) subscribeToTopics() error {
	// 使用QoS 1确保消息至少被传递一次
	qos := byte(1)

	for topic, handler := range s.TopicHandlers {
		if token := s.Client.Subscribe(topic, qos, handler); token.Wait() && token.Error() != nil {
			return fmt.Errorf("订阅主题失败 [%s]: %v", topic, token.Error())
		}
		log.Printf("[MQTT] 已订阅主题: %s", topic)
	}
	return nil
}

// SetVolume 设置播放器音量 (0-100)
func (s *MQTTMediaSurface) SetVolume(v int) error {
	v = config.ClampInt(v, 0, 100)
	return s.publishCommand(CmdSetVolume, map[string]any{"volume": v})
}

// Mute 静音
func (s *MQTTMediaSurface) Mute() error {
	return s.publishCommand(CmdMute, nil)
}

// Unmute 取消静音
func (s *MQTTMediaSurface) Unmute() error {
	return s.publishCommand(CmdUnmute, nil)
}

// Play 继续播放
func (s *MQTTMediaSurface) Play() error {
	return s.publishCommand(CmdPlay, nil)
}

// Pause 暂停播放
func (s *MQTTMediaSurface) Pause() error {
	return s.publishCommand(CmdPause, nil)
}

// Seek 跳转到指定播放位置
func (s *MQTTMediaSurface) Seek(seconds float64) error {
	return s.publishCommand(CmdSeek, map[string]any{"position": seconds})
}

// CurrentTime 返回最近一次位置心跳上报的播放进度（秒）。
// kiosk按心跳间隔上报，读到的值最多滞后一个心跳周期
func (s *MQTTMediaSurface) CurrentTime() float64 {
	s.positionMutex.RLock()
	defer s.positionMutex.RUnlock()
	return s.lastPosition
}

// LoadSource 载入新的播放源
func (s *MQTTMediaSurface) LoadSource(url string) error {
	return s.publishCommand(CmdLoad, map[string]any{"url": url})
}

// Reload 强制重载当前播放源（卡顿恢复）
func (s *MQTTMediaSurface) Reload() error {
	return s.publishCommand(CmdReload, nil)
}

// SpeakNative 使用kiosk本机TTS引擎播报（无完成回调，调用方按时长估算）
func (s *MQTTMediaSurface) SpeakNative(text, lang string) error {
	return s.publishCommand(CmdSpeak, map[string]any{
		"engine": "native",
		"text":   text,
		"lang":   lang,
	})
}

// SpeakWeb 使用kiosk浏览器语音合成播报（完成后上报ttsdone事件）
func (s *MQTTMediaSurface) SpeakWeb(text, lang string, rate float64) error {
	return s.publishCommand(CmdSpeak, map[string]any{
		"engine": "web",
		"text":   text,
		"lang":   lang,
		"rate":   rate,
	})
}

// Beep 播放提示音序列
func (s *MQTTMediaSurface) Beep(tones []BeepTone) error {
	return s.publishCommand(CmdBeep, map[string]any{"tones": tones})
}

// publishCommand 发布指令到播放器指令主题
func (s *MQTTMediaSurface) publishCommand(cmdType string, payload map[string]any) error {
	cmd := PlayerCommand{
		Type:      cmdType,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}
	return s.publishMessage(TopicPlayerCommand, cmd)
}

// publishMessage 发布消息到指定主题
func (s *MQTTMediaSurface) publishMessage(topic string, payload interface{}) error {
	// 加锁保护发布过程，避免并发发布冲突
	s.PublishMutex.Lock()
	defer s.PublishMutex.Unlock()

	// 检查连接状态
	s.connectedMutex.RLock()
	isConnected := s.IsConnectedFlg && s.Client.IsConnected()
	s.connectedMutex.RUnlock()

	if !isConnected {
		return fmt.Errorf("MQTT客户端未连接")
	}

	// 序列化消息
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %v", err)
	}

	// 发布消息，使用QoS 1确保消息至少被传递一次
	qos := byte(1)
	retained := false // 非持久消息

	// 创建发布令牌并等待完成
	token := s.Client.Publish(topic, qos, retained, jsonData)

	// 设置超时时间，避免无限等待
	if !token.WaitTimeout(3 * time.Second) {
		return fmt.Errorf("发布消息超时")
	}

	if token.Error() != nil {
		return fmt.Errorf("发布消息失败: %v", token.Error())
	}

	// 打印简化的日志，不输出完整消息内容
	payloadType := fmt.Sprintf("%T", payload)
	log.Printf("[MQTT] 已发布%s类型消息到主题: %s", payloadType, topic)
	return nil
}

// handlePlayerStatus 处理播放器状态消息，转发到事件总线
func (s *MQTTMediaSurface) handlePlayerStatus(_ mqtt.Client, msg mqtt.Message) {
	var status PlayerStatusMessage
	if err := json.Unmarshal(msg.Payload(), &status); err != nil {
		log.Printf("[MQTT] 解析播放器状态消息失败: %v", err)
		return
	}

	// 消息去重：QoS 1可能重复投递
	if s.isMessageProcessed(status.MsgID, status.Type, status.Timestamp) {
		return
	}
	s.markMessageProcessed(status.MsgID, status.Type, status.Timestamp)

	switch status.Type {
	case "ready":
		s.Bus.Publish(EventPlayerReady, status)
	case "ended":
		s.Bus.Publish(EventPlayerEnded, status)
	case "error":
		s.Bus.Publish(EventPlayerError, status)
	case "position":
		if pos, isNum := status.Data["position"].(float64); isNum {
			s.positionMutex.Lock()
			s.lastPosition = pos
			s.positionMutex.Unlock()
		}
		s.Bus.Publish(EventPlayerPosition, status)
	case "ttsdone":
		s.Bus.Publish(EventSpeechDone, status)
	default:
		log.Printf("[MQTT] 未知的播放器状态类型: %s", status.Type)
	}
}

// handlePlayerPing 处理用户交互心跳
func (s *MQTTMediaSurface) handlePlayerPing(_ mqtt.Client, msg mqtt.Message) {
	s.Bus.Publish(EventInteraction, string(msg.Payload()))
}

// startMsgCleanupTask 启动消息去重清理定时任务
func (s *MQTTMediaSurface) startMsgCleanupTask() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		// 清理超过5分钟的消息记录
		now := time.Now().Unix()
		count := 0

		s.ProcessedMsgs.Range(func(key, value interface{}) bool {
			if timestamp, ok := value.(int64); ok {
				if now-timestamp > 300 {
					s.ProcessedMsgs.Delete(key)
					count++
				}
			}
			return true
		})

		if count > 0 {
			log.Printf("[MQTT] 清理了 %d 条历史消息记录", count)
		}
	}
}

// 生成消息唯一标识
func generateMsgKey(msgID, msgType string, timestamp int64) string {
	return fmt.Sprintf("%s:%s:%d", msgID, msgType, timestamp)
}

// 判断消息是否已处理
func (s *MQTTMediaSurface) isMessageProcessed(msgID, msgType string, timestamp int64) bool {
	key := generateMsgKey(msgID, msgType, timestamp)
	_, exists := s.ProcessedMsgs.Load(key)
	return exists
}

// 标记消息为已处理
func (s *MQTTMediaSurface) markMessageProcessed(msgID, msgType string, timestamp int64) {
	key := generateMsgKey(msgID, msgType, timestamp)
	s.ProcessedMsgs.Store(key, time.Now().Unix())
}
