package services

import (
	"errors"
	"log"
	"strings"

	"webtv-display-service/models"

	"gorm.io/gorm"
)

// InterfacePlaylistService 定义轮播素材与背景视频列表的管理接口
type InterfacePlaylistService interface {
	GetCarouselItems() ([]models.CarouselItem, error)
	AddCarouselItem(url, kind string, durationSec *int) (*models.CarouselItem, error)
	UpdateCarouselItem(id uint, url, kind string, durationSec *int) (*models.CarouselItem, error)
	DeleteCarouselItem(id uint) error
	ReorderCarousel(ids []uint) error

	GetVideoItems() ([]models.VideoItem, error)
	GetAllVideoItems() ([]models.VideoItem, error)
	AddVideoItem(url string) (*models.VideoItem, error)
	SetVideoEnabled(id uint, enabled bool) error
	DeleteVideoItem(id uint) error
	ReorderVideos(ids []uint) error
}

// PlaylistService 提供轮播素材与背景视频列表的增删改与排序
type PlaylistService struct {
	DB  *gorm.DB
	Bus InterfaceEventBus
}

// NewPlaylistService 创建一个新的播放列表服务
func NewPlaylistService(db *gorm.DB, bus InterfaceEventBus) InterfacePlaylistService {
	return &PlaylistService{DB: db, Bus: bus}
}

// 1 GetCarouselItems 获取全部轮播素材，按排序语义排列
func (s *PlaylistService) GetCarouselItems() ([]models.CarouselItem, error) {
	var items []models.CarouselItem
	if err := s.DB.Find(&items).Error; err != nil {
		return nil, err
	}
	models.SortCarouselItems(items)
	return items, nil
}

// 2 AddCarouselItem 新增轮播素材，排到列表末尾
func (s *PlaylistService) AddCarouselItem(url, kind string, durationSec *int) (*models.CarouselItem, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("素材地址不能为空")
	}
	if kind != models.KindImage && kind != models.KindVideo {
		return nil, errors.New("素材类型必须是 image 或 video")
	}

	var maxOrder int
	s.DB.Model(&models.CarouselItem{}).Select("COALESCE(MAX(sort_order), 0)").Scan(&maxOrder)

	item := &models.CarouselItem{
		URL:         url,
		Kind:        kind,
		SortOrder:   maxOrder + 1,
		DurationSec: durationSec,
	}
	if err := s.DB.Create(item).Error; err != nil {
		return nil, err
	}

	s.Bus.Publish(EventPlaylistChanged, item.ID)
	return item, nil
}

// 3 UpdateCarouselItem 更新轮播素材
func (s *PlaylistService) UpdateCarouselItem(id uint, url, kind string, durationSec *int) (*models.CarouselItem, error) {
	var item models.CarouselItem
	if err := s.DB.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("轮播素材不存在")
		}
		return nil, err
	}

	if url = strings.TrimSpace(url); url != "" {
		item.URL = url
	}
	if kind == models.KindImage || kind == models.KindVideo {
		item.Kind = kind
	}
	item.DurationSec = durationSec

	if err := s.DB.Save(&item).Error; err != nil {
		return nil, err
	}

	s.Bus.Publish(EventPlaylistChanged, item.ID)
	return &item, nil
}

// 4 DeleteCarouselItem 删除轮播素材
func (s *PlaylistService) DeleteCarouselItem(id uint) error {
	result := s.DB.Delete(&models.CarouselItem{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("轮播素材不存在")
	}

	s.Bus.Publish(EventPlaylistChanged, id)
	return nil
}

// 5 ReorderCarousel 按给定ID顺序重排轮播素材
func (s *PlaylistService) ReorderCarousel(ids []uint) error {
	if err := s.reorder(&models.CarouselItem{}, ids); err != nil {
		return err
	}
	s.Bus.Publish(EventPlaylistChanged, nil)
	log.Printf("[播单] 轮播素材已重排: %d 条", len(ids))
	return nil
}

// 6 GetVideoItems 获取启用的背景视频，按排序排列
func (s *PlaylistService) GetVideoItems() ([]models.VideoItem, error) {
	var items []models.VideoItem
	if err := s.DB.Where("enabled = ?", true).
		Order("sort_order ASC, id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// 7 GetAllVideoItems 获取全部背景视频（含停用），管理端使用
func (s *PlaylistService) GetAllVideoItems() ([]models.VideoItem, error) {
	var items []models.VideoItem
	if err := s.DB.Order("sort_order ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// 8 AddVideoItem 新增背景视频，默认启用并排到末尾
func (s *PlaylistService) AddVideoItem(url string) (*models.VideoItem, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("视频地址不能为空")
	}

	var maxOrder int
	s.DB.Model(&models.VideoItem{}).Select("COALESCE(MAX(sort_order), 0)").Scan(&maxOrder)

	item := &models.VideoItem{URL: url, SortOrder: maxOrder + 1, Enabled: true}
	if err := s.DB.Create(item).Error; err != nil {
		return nil, err
	}

	s.Bus.Publish(EventVideoChanged, item.ID)
	return item, nil
}

// 9 SetVideoEnabled 启用或停用背景视频
func (s *PlaylistService) SetVideoEnabled(id uint, enabled bool) error {
	result := s.DB.Model(&models.VideoItem{}).Where("id = ?", id).Update("enabled", enabled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("背景视频不存在")
	}

	s.Bus.Publish(EventVideoChanged, id)
	return nil
}

// 10 DeleteVideoItem 删除背景视频
func (s *PlaylistService) DeleteVideoItem(id uint) error {
	result := s.DB.Delete(&models.VideoItem{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("背景视频不存在")
	}

	s.Bus.Publish(EventVideoChanged, id)
	return nil
}

// 11 ReorderVideos 按给定ID顺序重排背景视频
func (s *PlaylistService) ReorderVideos(ids []uint) error {
	if err := s.reorder(&models.VideoItem{}, ids); err != nil {
		return err
	}
	s.Bus.Publish(EventVideoChanged, nil)
	return nil
}

// reorder 事务内按ID顺序写入 sort_order，从1起连续编号
func (s *PlaylistService) reorder(model interface{}, ids []uint) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			if err := tx.Model(model).Where("id = ?", id).
				Update("sort_order", i+1).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
