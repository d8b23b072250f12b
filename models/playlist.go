package models

import (
	"fmt"
	"sort"
	"strings"
)

// 轮播素材类型
const (
	KindImage = "image"
	KindVideo = "video"
)

// 缺失排序值的素材沉底
const orderUnset = 999999

// CarouselItem 表示轮播区的一条素材（图片或短视频）
type CarouselItem struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	URL         string `gorm:"type:varchar(500)" json:"url"`
	Kind        string `gorm:"type:varchar(10)" json:"kind"`      // image | video
	SortOrder   int    `gorm:"column:sort_order" json:"order"`    // 升序排列，<=0 视为未设置
	DurationSec *int   `json:"duration_sec,omitempty"`            // 显示时长覆盖值，nil或<=0时按类型默认
}

// VideoItem 表示背景视频播放列表的一条视频
type VideoItem struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	URL       string `gorm:"type:varchar(500)" json:"url"`
	SortOrder int    `gorm:"column:sort_order" json:"order"`
	Enabled   bool   `gorm:"default:true" json:"enabled"`
}

// SortCarouselItems 按 order 升序排列，缺失 order 的素材沉底，相同 order 按ID排序。
// 与管理端的排序语义保持一致，轮播端只读不写。
func SortCarouselItems(items []CarouselItem) {
	sort.SliceStable(items, func(i, j int) bool {
		ai, aj := items[i].SortOrder, items[j].SortOrder
		if ai <= 0 {
			ai = orderUnset
		}
		if aj <= 0 {
			aj = orderUnset
		}
		if ai != aj {
			return ai < aj
		}
		return items[i].ID < items[j].ID
	})
}

// PlaylistSignature 生成列表的身份签名，轮播引擎用它判断
// 素材是否发生增删、重排或换源，从而取消并重启切换计时器
func PlaylistSignature(items []CarouselItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%d:%d:%s", it.ID, it.SortOrder, it.URL))
	}
	return strings.Join(parts, "|")
}
