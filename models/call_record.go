package models

import (
	"time"
)

// CallRecord 表示一次叫号记录（只追加，不修改；仅支持整体清空）
type CallRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CallID      string    `gorm:"type:varchar(100);index" json:"call_id"` // 叫号唯一标识
	PatientName string    `gorm:"type:varchar(120)" json:"patient_name"`  // 患者姓名
	Room        string    `gorm:"type:varchar(20)" json:"room"`           // 诊室编号
	Timestamp   time.Time `gorm:"index" json:"timestamp"`                 // 叫号时间
	IsTest      bool      `json:"is_test"`                                // 测试记录，显示端过滤
	IsRecall    bool      `json:"is_recall"`                              // 重呼记录（重新播报）
}

// TimestampMs 返回毫秒时间戳；时间缺失或非法时返回 (0, false)，
// 调用方按"未知时间"处理（不参与配对，降级为单人显示）
func (r *CallRecord) TimestampMs() (int64, bool) {
	if r.Timestamp.IsZero() {
		return 0, false
	}
	return r.Timestamp.UnixMilli(), true
}
