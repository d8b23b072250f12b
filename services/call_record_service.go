package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"webtv-display-service/config"
	"webtv-display-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InterfaceCallRecordService defines the call record service interface
type InterfaceCallRecordService interface {
	CreateCall(name, room string, isTest bool) (*models.CallRecord, error)
	Recall(id uint) (*models.CallRecord, error)
	GetRecentCalls(limit int) ([]models.CallRecord, error)
	GetAllCallRecords(page, pageSize int) ([]models.CallRecord, int64, error)
	ClearHistory() (int64, error)
}

// CallRecordService 提供叫号记录相关的服务
type CallRecordService struct {
	DB       *gorm.DB
	Config   *config.Config
	Settings InterfaceSettingsService
	Bus      InterfaceEventBus
}

// NewCallRecordService 创建一个新的叫号记录服务
func NewCallRecordService(db *gorm.DB, cfg *config.Config, settings InterfaceSettingsService, bus InterfaceEventBus) InterfaceCallRecordService {
	return &CallRecordService{
		DB:       db,
		Config:   cfg,
		Settings: settings,
		Bus:      bus,
	}
}

// 1 CreateCall 新建叫号记录并触发播报
func (s *CallRecordService) CreateCall(name, room string, isTest bool) (*models.CallRecord, error) {
	name = strings.TrimSpace(name)
	room = strings.TrimSpace(room)
	if name == "" {
		return nil, errors.New("患者姓名不能为空")
	}

	record := &models.CallRecord{
		CallID:      uuid.New().String(),
		PatientName: name,
		Room:        room,
		Timestamp:   time.Now(),
		IsTest:      isTest,
	}

	if err := s.DB.Create(record).Error; err != nil {
		return nil, err
	}

	s.Bus.Publish(EventCallsChanged, record.ID)

	// 测试记录只入库不播报
	if !isTest {
		if _, err := s.Settings.FireAnnounce(name, room, false); err != nil {
			log.Printf("[叫号] 触发播报失败: %v", err)
		}
	}

	return record, nil
}

// 2 Recall 重呼：追加一条新的历史记录（显示端因此刷新）并重新播报
func (s *CallRecordService) Recall(id uint) (*models.CallRecord, error) {
	var origin models.CallRecord
	if err := s.DB.First(&origin, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("叫号记录不存在")
		}
		return nil, err
	}

	record := &models.CallRecord{
		CallID:      uuid.New().String(),
		PatientName: origin.PatientName,
		Room:        origin.Room,
		Timestamp:   time.Now(),
		IsRecall:    true,
	}

	if err := s.DB.Create(record).Error; err != nil {
		return nil, err
	}

	s.Bus.Publish(EventCallsChanged, record.ID)

	if _, err := s.Settings.FireAnnounce(record.PatientName, record.Room, false); err != nil {
		log.Printf("[叫号] 重呼触发播报失败: %v", err)
	}

	return record, nil
}

// 3 GetRecentCalls 获取最近的叫号记录，按时间倒序
func (s *CallRecordService) GetRecentCalls(limit int) ([]models.CallRecord, error) {
	if limit <= 0 {
		limit = s.Config.HistoryLimit
	}

	var calls []models.CallRecord
	if err := s.DB.Order("timestamp DESC").Limit(limit).Find(&calls).Error; err != nil {
		return nil, err
	}
	return calls, nil
}

// 4 GetAllCallRecords 获取所有叫号记录，支持分页
func (s *CallRecordService) GetAllCallRecords(page, pageSize int) ([]models.CallRecord, int64, error) {
	var calls []models.CallRecord
	var total int64

	// 获取总数
	if err := s.DB.Model(&models.CallRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 分页查询
	offset := (page - 1) * pageSize
	if err := s.DB.Order("timestamp DESC").
		Limit(pageSize).Offset(offset).
		Find(&calls).Error; err != nil {
		return nil, 0, err
	}

	return calls, total, nil
}

// 5 ClearHistory 清空历史（整体删除）并强制显示端进入待机
func (s *CallRecordService) ClearHistory() (int64, error) {
	result := s.DB.Where("1 = 1").Delete(&models.CallRecord{})
	if result.Error != nil {
		return 0, result.Error
	}

	s.Bus.Publish(EventCallsChanged, nil)

	// idle=true的触发让显示端立即切到待机画面
	if _, err := s.Settings.FireAnnounce("", "", true); err != nil {
		log.Printf("[叫号] 触发强制待机失败: %v", err)
	}

	log.Printf("[叫号] 历史已清空: %d 条", result.RowsAffected)
	return result.RowsAffected, nil
}
