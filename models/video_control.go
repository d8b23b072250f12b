package models

import "time"

// 背景视频跳转指令
const (
	VideoCmdNext = "next"
	VideoCmdPrev = "prev"
)

// VideoControl 背景视频控制文档（管理端写入的单一可变文档）。
// 指针字段表示"本次未携带该指令"
type VideoControl struct {
	Volume   *int      `json:"volume,omitempty"`  // 0-100
	Playing  *bool     `json:"playing,omitempty"` // true播放 false暂停
	SkipTo   *int      `json:"skip_to,omitempty"` // 跳到播放列表指定下标
	Command  string    `json:"command,omitempty"` // next | prev
	Nonce    string    `json:"nonce"`
	IssuedAt time.Time `json:"issued_at"`
}
