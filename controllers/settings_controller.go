package controllers

import (
	"net/http"

	"webtv-display-service/models"
	"webtv-display-service/services/container"

	"github.com/gin-gonic/gin"
)

// SettingsController 处理显示配置与背景视频控制请求
type SettingsController struct {
	BaseControllerImpl
}

// NewSettingsController 创建一个新的配置控制器
func (f *ControllerFactory) NewSettingsController(ctx *gin.Context) *SettingsController {
	return &SettingsController{
		BaseControllerImpl: BaseControllerImpl{
			Container: f.Container,
			Context:   ctx,
		},
	}
}

// VideoControlRequest 表示背景视频控制请求，所有字段可选
type VideoControlRequest struct {
	Volume  *int   `json:"volume" example:"60"`    // 0-100
	Playing *bool  `json:"playing" example:"true"` // true播放 false暂停
	SkipTo  *int   `json:"skip_to" example:"2"`    // 跳到播放列表指定下标
	Command string `json:"command" example:"next"` // next | prev
}

// GetSettings 获取显示配置
// @Summary      Get Display Settings
// @Description  Get the current display settings (idle timeout, volumes, announcement template and mode)
// @Tags         Settings
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /settings [get]
func (c *SettingsController) GetSettings() {
	settings := c.Container.GetSettingsService().GetSettings()

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    settings,
	})
}

// UpdateSettings 更新显示配置
// @Summary      Update Display Settings
// @Description  Update display settings; out-of-range values are clamped or reset to defaults
// @Tags         Settings
// @Accept       json
// @Produce      json
// @Param        request body models.DisplaySettings true "Display settings"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /settings [put]
func (c *SettingsController) UpdateSettings() {
	var req models.DisplaySettings
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	settings, err := c.Container.GetSettingsService().UpdateSettings(req)
	if err != nil {
		c.Context.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "更新显示配置失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    settings,
	})
}

// ControlVideo 下发背景视频控制指令
// @Summary      Control Background Video
// @Description  Send a control command to the background video player: volume, play/pause, skip, next/prev
// @Tags         Settings
// @Accept       json
// @Produce      json
// @Param        request body VideoControlRequest true "Control command"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /settings/video-control [post]
func (c *SettingsController) ControlVideo() {
	var req VideoControlRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	switch req.Command {
	case "", models.VideoCmdNext, models.VideoCmdPrev:
	default:
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的控制指令: " + req.Command,
			"data":    nil,
		})
		return
	}

	ctrl, err := c.Container.GetVideoControlService().Dispatch(models.VideoControl{
		Volume:  req.Volume,
		Playing: req.Playing,
		SkipTo:  req.SkipTo,
		Command: req.Command,
	})
	if err != nil {
		c.Context.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "下发控制指令失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    ctrl,
	})
}

// HandleSettingsFunc 返回一个处理配置请求的Gin处理函数
func HandleSettingsFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	factory := NewControllerFactory(container)

	return func(ctx *gin.Context) {
		controller := factory.NewSettingsController(ctx)

		switch method {
		case "getSettings":
			controller.GetSettings()
		case "updateSettings":
			controller.UpdateSettings()
		case "controlVideo":
			controller.ControlVideo()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}
