package admin

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/paygate-next/internal/constants"
	"github.com/paygate-next/internal/http/response"
	"github.com/paygate-next/internal/repository"
	"github.com/paygate-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetBlacklists 获取黑名单列表
func (h *Handler) GetBlacklists(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	entries, total, err := h.RiskService.ListBlacklists(repository.BlacklistListFilter{
		Page:       page,
		PageSize:   pageSize,
		EntityType: strings.ToUpper(strings.TrimSpace(c.Query("entity_type"))),
		Keyword:    strings.TrimSpace(c.Query("keyword")),
		Origin:     strings.ToUpper(strings.TrimSpace(c.Query("origin"))),
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
	response.SuccessWithPage(c, entries, pagination)
}

// CreateBlacklistRequest 新增黑名单请求
type CreateBlacklistRequest struct {
	EntityType  string `json:"entity_type" binding:"required"`
	EntityValue string `json:"entity_value" binding:"required"`
	Reason      string `json:"reason"`
	Origin      string `json:"origin"`
	ExpiredAt   string `json:"expired_at"`
}

// CreateBlacklist 新增黑名单条目
func (h *Handler) CreateBlacklist(c *gin.Context) {
	var req CreateBlacklistRequest
	if err := h.bindAdminPayload(c, &req); err != nil {
		respondAdminPayloadError(c, err)
		return
	}

	expiredAt, err := parseTimeNullable(req.ExpiredAt)
	if err != nil {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", err)
		return
	}

	origin := req.Origin
	if strings.TrimSpace(origin) == "" {
		origin = constants.BlacklistOriginManualReview
	}
	entry, err := h.RiskService.AddBlacklist(service.BlacklistCreateInput{
		EntityType:  req.EntityType,
		EntityValue: req.EntityValue,
		Reason:      req.Reason,
		Origin:      origin,
		ExpiredAt:   expiredAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBlacklistEntityInvalid):
			respondError(c, response.CodeInvalidRequest, "error.blacklist_entity_invalid", nil)
		case errors.Is(err, service.ErrBlacklistExists):
			respondError(c, response.CodeConflict, "error.blacklist_exists", nil)
		default:
			respondError(c, response.CodeInternal, "error.save_failed", err)
		}
		return
	}

	response.Success(c, entry)
}

// UpdateBlacklistRequest 更新黑名单请求
type UpdateBlacklistRequest struct {
	Reason    string `json:"reason"`
	ExpiredAt string `json:"expired_at"`
}

// UpdateBlacklist 更新黑名单备注与有效期
func (h *Handler) UpdateBlacklist(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	var req UpdateBlacklistRequest
	if err := h.bindAdminPayload(c, &req); err != nil {
		respondAdminPayloadError(c, err)
		return
	}

	var expiredAt *time.Time
	if expiredAt, err = parseTimeNullable(req.ExpiredAt); err != nil {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", err)
		return
	}

	entry, err := h.RiskService.UpdateBlacklist(uint(id), req.Reason, expiredAt)
	if err != nil {
		if errors.Is(err, service.ErrBlacklistNotFound) {
			respondError(c, response.CodeNotFound, "error.blacklist_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.save_failed", err)
		return
	}

	response.Success(c, entry)
}

// DeleteBlacklist 删除黑名单条目
func (h *Handler) DeleteBlacklist(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	if err := h.RiskService.DeleteBlacklist(uint(id)); err != nil {
		if errors.Is(err, service.ErrBlacklistNotFound) {
			respondError(c, response.CodeNotFound, "error.blacklist_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.save_failed", err)
		return
	}

	response.Success(c, gin.H{"deleted": true})
}

// GetRiskLogs 获取风控拦截日志列表
func (h *Handler) GetRiskLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	merchantID, _ := strconv.ParseUint(c.Query("merchant_id"), 10, 64)
	filter := repository.RiskLogListFilter{
		Page:       page,
		PageSize:   pageSize,
		MerchantID: uint(merchantID),
	}
	if raw := strings.TrimSpace(c.Query("type")); raw != "" {
		logType, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, response.CodeInvalidRequest, "error.invalid_request", err)
			return
		}
		filter.Type = &logType
	}
	var err error
	if filter.CreatedFrom, err = parseTimeNullable(c.Query("created_from")); err != nil {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", err)
		return
	}
	if filter.CreatedTo, err = parseTimeNullable(c.Query("created_to")); err != nil {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", err)
		return
	}

	logs, total, err := h.RiskService.ListRiskLogs(filter)
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
	response.SuccessWithPage(c, logs, pagination)
}

// GetBuyerSummary 按买家标识统计历史订单与黑名单命中情况
func (h *Handler) GetBuyerSummary(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	buyerOpenID := strings.TrimSpace(c.Query("buyer_open_id"))

	summary, err := h.RiskService.GetBuyerSummary(userID, buyerOpenID)
	if err != nil {
		if errors.Is(err, service.ErrRiskBuyerIdentifierMissing) {
			respondError(c, response.CodeInvalidRequest, "error.buyer_identifier_missing", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}

	response.Success(c, summary)
}
