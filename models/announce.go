package models

import (
	"log"
	"sync"
	"time"
)

// TriggerEvent 播报触发文档（管理端写入，显示端订阅的单一可变文档）
type TriggerEvent struct {
	Name        string    `json:"name"`
	Room        string    `json:"room"`
	Idle        bool      `json:"idle"`  // true表示管理端强制待机（清空历史）
	Nonce       string    `json:"nonce"` // 每次真实触发都会变化的去重标识
	TriggeredAt time.Time `json:"triggered_at"`
}

// AnnounceJob 一次待播报任务，触发时创建，播报完即丢弃
type AnnounceJob struct {
	Name string
	Room string
}

// DisplaySettings 显示端实时配置文档
type DisplaySettings struct {
	IdleSeconds         int    `json:"idle_seconds"`
	DuckVolume          int    `json:"duck_volume"`
	RestoreVolume       int    `json:"restore_volume"`
	LeadMs              int    `json:"lead_ms"`
	SettleMs            int    `json:"settle_ms"`
	AnnounceTemplate    string `json:"announce_template"`
	AnnounceMode        string `json:"announce_mode"` // auto | native | web | beep
	RecallCountsForIdle bool   `json:"recall_counts_for_idle"`
}

// Normalized 返回经过约束的配置副本：非法字段回退到给定默认值，
// 区间字段做夹取。配置文档字段缺失或损坏时显示端绝不因此出错
func (s DisplaySettings) Normalized(def DisplaySettings) DisplaySettings {
	out := s
	if out.IdleSeconds <= 0 {
		out.IdleSeconds = def.IdleSeconds
	}
	out.IdleSeconds = clamp(out.IdleSeconds, 60, 300)
	if out.DuckVolume < 0 || out.DuckVolume > 100 {
		out.DuckVolume = def.DuckVolume
	}
	if out.RestoreVolume <= 0 || out.RestoreVolume > 100 {
		out.RestoreVolume = def.RestoreVolume
	}
	if out.LeadMs < 0 {
		out.LeadMs = def.LeadMs
	}
	if out.SettleMs < 0 {
		out.SettleMs = def.SettleMs
	}
	if out.AnnounceTemplate == "" {
		out.AnnounceTemplate = def.AnnounceTemplate
	}
	switch out.AnnounceMode {
	case "auto", "native", "web", "beep":
	default:
		out.AnnounceMode = def.AnnounceMode
	}
	return out
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// AnnounceQueue 管理待播报任务的先进先出队列。
// 同一时刻只允许一个任务在播（draining标志），排队入列可重入
type AnnounceQueue struct {
	jobs     []AnnounceJob
	capacity int
	draining bool
	dropped  uint64
	mu       sync.Mutex
}

// NewAnnounceQueue 创建播报队列，capacity<=0时不限长
func NewAnnounceQueue(capacity int) *AnnounceQueue {
	return &AnnounceQueue{capacity: capacity}
}

// Push 追加任务；超出容量时丢弃最旧的任务，避免故障恢复后积压轰炸
func (q *AnnounceQueue) Push(job AnnounceJob) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.jobs = append(q.jobs, job)
	for q.capacity > 0 && len(q.jobs) > q.capacity {
		q.jobs = q.jobs[1:]
		q.dropped++
		log.Printf("[播报] 队列超限，丢弃最旧任务 (已丢弃=%d)", q.dropped)
	}
}

// Pop 取出队首任务
func (q *AnnounceQueue) Pop() (AnnounceJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return AnnounceJob{}, false
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, true
}

// TryBeginDrain 尝试占用播报通道；已有任务在播时返回false
func (q *AnnounceQueue) TryBeginDrain() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.draining {
		return false
	}
	q.draining = true
	return true
}

// EndDrain 释放播报通道
func (q *AnnounceQueue) EndDrain() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.draining = false
}

// Len 当前排队任务数
func (q *AnnounceQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Dropped 累计丢弃任务数
func (q *AnnounceQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
