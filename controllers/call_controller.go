package controllers

import (
	"net/http"
	"strconv"

	"webtv-display-service/services/container"

	"github.com/gin-gonic/gin"
)

// CallController 处理叫号相关的请求
type CallController struct {
	BaseControllerImpl
}

// NewCallController 创建一个新的叫号控制器
func (f *ControllerFactory) NewCallController(ctx *gin.Context) *CallController {
	return &CallController{
		BaseControllerImpl: BaseControllerImpl{
			Container: f.Container,
			Context:   ctx,
		},
	}
}

// CreateCallRequest 表示新建叫号请求
type CreateCallRequest struct {
	Name   string `json:"name" binding:"required" example:"Maria Souza"` // 患者姓名
	Room   string `json:"room" example:"3"`                              // 诊室号，可为空
	IsTest bool   `json:"is_test" example:"false"`                       // 测试记录只入库不播报
}

// CreateCall 新建叫号
// @Summary      Create Call
// @Description  Create a new patient call, which updates the display and triggers an announcement
// @Tags         Call
// @Accept       json
// @Produce      json
// @Param        request body CreateCallRequest true "Call information"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /calls [post]
func (c *CallController) CreateCall() {
	var req CreateCallRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	callRecordService := c.Container.GetCallRecordService()

	record, err := callRecordService.CreateCall(req.Name, req.Room, req.IsTest)
	if err != nil {
		c.Context.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "新建叫号失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    record,
	})
}

// GetCallRecords 获取叫号记录列表
// @Summary      Get Call Records
// @Description  Get a list of all call records in the system, with pagination
// @Tags         Call
// @Accept       json
// @Produce      json
// @Param        page query int false "Page number, default is 1" example:"1"
// @Param        page_size query int false "Items per page, default is 10" example:"10"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  ErrorResponse
// @Router       /calls [get]
func (c *CallController) GetCallRecords() {
	// 获取分页参数
	page, _ := strconv.Atoi(c.Context.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.Context.DefaultQuery("page_size", "10"))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	callRecordService := c.Container.GetCallRecordService()

	calls, total, err := callRecordService.GetAllCallRecords(page, pageSize)
	if err != nil {
		c.Context.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "获取叫号记录失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data": gin.H{
			"total":       total,
			"page":        page,
			"page_size":   pageSize,
			"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
			"records":     calls,
		},
	})
}

// RecallCall 重呼指定叫号
// @Summary      Recall
// @Description  Re-announce a previous call; a new history entry is created so the display refreshes
// @Tags         Call
// @Accept       json
// @Produce      json
// @Param        id path int true "Call Record ID" example:"1"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /calls/{id}/recall [post]
func (c *CallController) RecallCall() {
	id := c.Context.Param("id")
	recordID, err := strconv.Atoi(id)
	if err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的叫号记录ID",
			"data":    nil,
		})
		return
	}

	callRecordService := c.Container.GetCallRecordService()

	record, err := callRecordService.Recall(uint(recordID))
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
		"data":    record,
	})
}

// ClearHistory 清空叫号历史
// @Summary      Clear Call History
// @Description  Delete all call records and force the display into idle mode
// @Tags         Call
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  ErrorResponse
// @Router       /calls [delete]
func (c *CallController) ClearHistory() {
	callRecordService := c.Container.GetCallRecordService()

	deleted, err := callRecordService.ClearHistory()
	if err != nil {
		c.Context.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "清空历史失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data": gin.H{
			"deleted": deleted,
		},
	})
}

// HandleCallFunc 返回一个处理叫号请求的Gin处理函数
func HandleCallFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	factory := NewControllerFactory(container)

	return func(ctx *gin.Context) {
		controller := factory.NewCallController(ctx)

		switch method {
		case "createCall":
			controller.CreateCall()
		case "getCallRecords":
			controller.GetCallRecords()
		case "recallCall":
			controller.RecallCall()
		case "clearHistory":
			controller.ClearHistory()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}
