package controllers

import (
	"net/http"
	"strconv"

	"webtv-display-service/services/container"

	"github.com/gin-gonic/gin"
)

// PlaylistController 处理轮播素材与背景视频列表的管理请求
type PlaylistController struct {
	BaseControllerImpl
}

// NewPlaylistController 创建一个新的播放列表控制器
func (f *ControllerFactory) NewPlaylistController(ctx *gin.Context) *PlaylistController {
	return &PlaylistController{
		BaseControllerImpl: BaseControllerImpl{
			Container: f.Container,
			Context:   ctx,
		},
	}
}

// CarouselItemRequest 表示轮播素材请求
type CarouselItemRequest struct {
	URL         string `json:"url" binding:"required" example:"https://cdn.example.com/banner.jpg"` // 素材地址
	Kind        string `json:"kind" binding:"required" example:"image"`                             // image | video
	DurationSec *int   `json:"duration_sec" example:"10"`                                           // 可选显示时长覆盖
}

// VideoItemRequest 表示背景视频请求
type VideoItemRequest struct {
	URL string `json:"url" binding:"required" example:"https://cdn.example.com/loop.mp4"` // 视频地址
}

// ReorderRequest 表示重排请求，按期望顺序给出全部ID
type ReorderRequest struct {
	IDs []uint `json:"ids" binding:"required" example:"3,1,2"`
}

// VideoEnabledRequest 表示启用/停用背景视频请求
type VideoEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required" example:"true"`
}

// GetCarouselItems 获取轮播素材列表
// @Summary      Get Carousel Items
// @Description  Get all carousel items ordered by their display order
// @Tags         Playlist
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  ErrorResponse
// @Router       /playlist/carousel [get]
func (c *PlaylistController) GetCarouselItems() {
	items, err := c.Container.GetPlaylistService().GetCarouselItems()
	if err != nil {
		c.Context.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "获取轮播素材失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    items,
	})
}

// AddCarouselItem 新增轮播素材
// @Summary      Add Carousel Item
// @Description  Add a new image or short video to the carousel
// @Tags         Playlist
// @Accept       json
// @Produce      json
// @Param        request body CarouselItemRequest true "Carousel item information"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /playlist/carousel [post]
func (c *PlaylistController) AddCarouselItem() {
	var req CarouselItemRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	item, err := c.Container.GetPlaylistService().AddCarouselItem(req.URL, req.Kind, req.DurationSec)
	if err != nil {
		c.Context.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "新增轮播素材失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    item,
	})
}

// UpdateCarouselItem 更新轮播素材
// @Summary      Update Carousel Item
// @Description  Update URL, kind or duration of an existing carousel item
// @Tags         Playlist
// @Accept       json
// @Produce      json
// @Param        id path int true "Carousel Item ID" example:"1"
// @Param        request body CarouselItemRequest true "Carousel item information"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /playlist/carousel/{id} [put]
func (c *PlaylistController) UpdateCarouselItem() {
	id, err := strconv.Atoi(c.Context.Param("id"))
	if err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的素材ID",
			"data":    nil,
		})
		return
	}

	var req CarouselItemRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	item, err := c.Container.GetPlaylistService().UpdateCarouselItem(uint(id), req.URL, req.Kind, req.DurationSec)
	if err != nil {
		c.Context.JSON(http.StatusNotFound, gin.H{
			"code":    404,
			"message": err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    item,
	})
}

// DeleteCarouselItem 删除轮播素材
// @Summary      Delete Carousel Item
// @Description  Remove an item from the carousel
// @Tags         Playlist
// @Accept       json
// @Produce      json
// @Param        id path int true "Carousel Item ID" example:"1"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /playlist/carousel/{id} [delete]
func (c *PlaylistController) DeleteCarouselItem() {
	id, err := strconv.Atoi(c.Context.Param("id"))
	if err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的素材ID",
			"data":    nil,
		})
		return
	}

	if err := c.Container.GetPlaylistService().DeleteCarouselItem(uint(id)); err != nil {
		c.Context.JSON(http.StatusNotFound, gin.H{
			"code":    404,
			"message": err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    nil,
	})
}

// ReorderCarousel 重排轮播素材
// @Summary      Reorder Carousel
// @Description  Reorder carousel items by a full list of IDs in the desired order
// @Tags         Playlist
// @Accept       json
// @Produce      json
// @Param        request body ReorderRequest true "Item IDs in the desired order"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /playlist/carousel/reorder [post]
func (c *PlaylistController) ReorderCarousel() {
	var req ReorderRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	if err := c.Container.GetPlaylistService().ReorderCarousel(req.IDs); err != nil {
		c.Context.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "重排轮播素材失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    nil,
	})
}

// GetVideoItems 获取背景视频列表（含停用）
// @Summary      Get Background Videos
// @Description  Get the full background video playlist including disabled entries
// @Tags         Playlist
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  ErrorResponse
// @Router       /playlist/videos [get]
func (c *PlaylistController) GetVideoItems() {
	items, err := c.Container.GetPlaylistService().GetAllVideoItems()
	if err != nil {
		c.Context.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "获取背景视频失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    items,
	})
}

// AddVideoItem 新增背景视频
// @Summary      Add Background Video
// @Description  Add a new video to the background playlist
// @Tags         Playlist
// @Accept       json
// @Produce      json
// @Param        request body VideoItemRequest true "Video information"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /playlist/videos [post]
func (c *PlaylistController) AddVideoItem() {
	var req VideoItemRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	item, err := c.Container.GetPlaylistService().AddVideoItem(req.URL)
	if err != nil {
		c.Context.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "新增背景视频失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    item,
	})
}

// SetVideoEnabled 启用或停用背景视频
// @Summary      Enable/Disable Background Video
// @Description  Toggle whether a background video participates in playback
// @Tags         Playlist
// @Accept       json
// @Produce      json
// @Param        id path int true "Video ID" example:"1"
// @Param        request body VideoEnabledRequest true "Enabled flag"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /playlist/videos/{id}/enabled [put]
func (c *PlaylistController) SetVideoEnabled() {
	id, err := strconv.Atoi(c.Context.Param("id"))
	if err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的视频ID",
			"data":    nil,
		})
		return
	}

	var req VideoEnabledRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数",
			"data":    nil,
		})
		return
	}

	if err := c.Container.GetPlaylistService().SetVideoEnabled(uint(id), *req.Enabled); err != nil {
		c.Context.JSON(http.StatusNotFound, gin.H{
			"code":    404,
			"message": err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    nil,
	})
}

// DeleteVideoItem 删除背景视频
// @Summary      Delete Background Video
// @Description  Remove a video from the background playlist
// @Tags         Playlist
// @Accept       json
// @Produce      json
// @Param        id path int true "Video ID" example:"1"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /playlist/videos/{id} [delete]
func (c *PlaylistController) DeleteVideoItem() {
	id, err := strconv.Atoi(c.Context.Param("id"))
	if err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的视频ID",
			"data":    nil,
		})
		return
	}

	if err := c.Container.GetPlaylistService().DeleteVideoItem(uint(id)); err != nil {
		c.Context.JSON(http.StatusNotFound, gin.H{
			"code":    404,
			"message": err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    nil,
	})
}

// ReorderVideos 重排背景视频
// @Summary      Reorder Background Videos
// @Description  Reorder background videos by a full list of IDs in the desired order
// @Tags         Playlist
// @Accept       json
// @Produce      json
// @Param        request body ReorderRequest true "Video IDs in the desired order"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /playlist/videos/reorder [post]
func (c *PlaylistController) ReorderVideos() {
	var req ReorderRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	if err := c.Container.GetPlaylistService().ReorderVideos(req.IDs); err != nil {
		c.Context.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "重排背景视频失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    nil,
	})
}

// HandlePlaylistFunc 返回一个处理播放列表请求的Gin处理函数
func HandlePlaylistFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	factory := NewControllerFactory(container)

	return func(ctx *gin.Context) {
		controller := factory.NewPlaylistController(ctx)

		switch method {
		case "getCarouselItems":
			controller.GetCarouselItems()
		case "addCarouselItem":
			controller.AddCarouselItem()
		case "updateCarouselItem":
			controller.UpdateCarouselItem()
		case "deleteCarouselItem":
			controller.DeleteCarouselItem()
		case "reorderCarousel":
			controller.ReorderCarousel()
		case "getVideoItems":
			controller.GetVideoItems()
		case "addVideoItem":
			controller.AddVideoItem()
		case "setVideoEnabled":
			controller.SetVideoEnabled()
		case "deleteVideoItem":
			controller.DeleteVideoItem()
		case "reorderVideos":
			controller.ReorderVideos()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}
