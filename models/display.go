package models

import (
	"time"
)

// FeedState 叫号流派生出的显示状态。
// 待机与空分组是两个概念：非待机状态下分组必有1-2条记录
type FeedState struct {
	Group      []CallRecord `json:"group"`                  // 当前叫号分组 (0-2条)
	Recent     []CallRecord `json:"recent"`                 // 底部滚动历史（不含分组内记录）
	Idle       bool         `json:"idle"`                   // 待机状态
	ForcedIdle bool         `json:"forced_idle"`            // 管理端强制待机
	LastCallAt *time.Time   `json:"last_call_at,omitempty"` // 最近一次叫号时间
	ComputedAt time.Time    `json:"computed_at"`
}

// 轮播引擎状态机阶段
const (
	CarouselPhaseEmpty      = "empty"
	CarouselPhaseDisplaying = "displaying"
	CarouselPhasePreloading = "preloading"
	CarouselPhaseFading     = "fading"
)

// PreloadResult 预加载探测结果，按URL做进程级记忆
type PreloadResult struct {
	OK          bool    `json:"ok"`
	MediaType   string  `json:"media_type"`
	DurationSec float64 `json:"duration_sec,omitempty"` // 视频探测到的时长
}

// CarouselState 轮播引擎的运行时快照，只读暴露给渲染端
type CarouselState struct {
	Items    []CarouselItem `json:"items"`
	Index    int            `json:"index"`
	FrontIsA bool           `json:"front_is_a"` // 当前哪个缓冲层在前
	Fading   bool           `json:"fading"`
	Phase    string         `json:"phase"`
}

// CurrentItem 返回当前显示的素材
func (s *CarouselState) CurrentItem() *CarouselItem {
	if len(s.Items) == 0 || s.Index < 0 || s.Index >= len(s.Items) {
		return nil
	}
	return &s.Items[s.Index]
}

// NextIndex 下一个素材下标（循环）
func (s *CarouselState) NextIndex() int {
	if len(s.Items) == 0 {
		return 0
	}
	return (s.Index + 1) % len(s.Items)
}
