package admin

import (
	"strconv"
	"strings"

	"github.com/paygate-next/internal/http/response"
	"github.com/paygate-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// GetNotifications 获取异步通知投递记录列表
func (h *Handler) GetNotifications(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	records, total, err := h.NotifyService.ListNotifications(repository.NotificationListFilter{
		Page:     page,
		PageSize: pageSize,
		TradeNo:  strings.TrimSpace(c.Query("trade_no")),
		Status:   parseBoolNullable(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}

	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, records, pagination)
}
