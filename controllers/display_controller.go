package controllers

import (
	"net/http"

	"webtv-display-service/services/container"

	"github.com/gin-gonic/gin"
)

// DisplayController 处理显示端状态与播报入口
type DisplayController struct {
	BaseControllerImpl
}

// NewDisplayController 创建一个新的显示控制器
func (f *ControllerFactory) NewDisplayController(ctx *gin.Context) *DisplayController {
	return &DisplayController{
		BaseControllerImpl: BaseControllerImpl{
			Container: f.Container,
			Context:   ctx,
		},
	}
}

// AnnounceRequest 表示手动播报请求
type AnnounceRequest struct {
	Name string `json:"name" binding:"required" example:"Maria Souza"` // 播报姓名
	Room string `json:"room" example:"3"`                              // 诊室号，可为空
}

// GetDisplayState 获取显示端完整渲染状态
// @Summary      Get Display State
// @Description  Get the full derived display state: current call group, recent history, idle flag, carousel snapshot and background video
// @Tags         Display
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /display/state [get]
func (c *DisplayController) GetDisplayState() {
	feed := c.Container.GetCallFeedService().Snapshot()
	carousel := c.Container.GetCarouselService().Snapshot()
	settings := c.Container.GetSettingsService().GetSettings()

	videoControl := c.Container.GetVideoControlService()
	video := gin.H{
		"playing": videoControl.Playing(),
		"volume":  videoControl.Volume(),
	}
	if cur, ok := videoControl.CurrentVideo(); ok {
		video["current"] = cur
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data": gin.H{
			"feed":     feed,
			"carousel": carousel,
			"settings": settings,
			"video":    video,
		},
	})
}

// TriggerAnnounce 手动触发一次播报
// @Summary      Trigger Announcement
// @Description  Manually trigger a voice announcement without creating a call record
// @Tags         Display
// @Accept       json
// @Produce      json
// @Param        request body AnnounceRequest true "Announcement information"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /display/announce [post]
func (c *DisplayController) TriggerAnnounce() {
	var req AnnounceRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	ev, err := c.Container.GetSettingsService().FireAnnounce(req.Name, req.Room, false)
	if err != nil {
		c.Context.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "触发播报失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    ev,
	})
}

// HandleDisplayFunc 返回一个处理显示端请求的Gin处理函数
func HandleDisplayFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	factory := NewControllerFactory(container)

	return func(ctx *gin.Context) {
		controller := factory.NewDisplayController(ctx)

		switch method {
		case "getDisplayState":
			controller.GetDisplayState()
		case "triggerAnnounce":
			controller.TriggerAnnounce()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}
