package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/paygate-next/internal/http/response"
	"github.com/paygate-next/internal/repository"
	"github.com/paygate-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ChannelRequest 创建/更新支付渠道请求
type ChannelRequest struct {
	Code            string           `json:"code" binding:"required"`
	Name            string           `json:"name" binding:"required"`
	PaymentType     string           `json:"payment_type" binding:"required"`
	Gateway         string           `json:"gateway" binding:"required"`
	Rate            decimal.Decimal  `json:"rate"`
	Costs           decimal.Decimal  `json:"costs"`
	FixedFee        decimal.Decimal  `json:"fixed_fee"`
	FixedCosts      decimal.Decimal  `json:"fixed_costs"`
	MinFee          decimal.Decimal  `json:"min_fee"`
	MaxFee          *decimal.Decimal `json:"max_fee"`
	MinAmount       *decimal.Decimal `json:"min_amount"`
	MaxAmount       *decimal.Decimal `json:"max_amount"`
	DailyLimit      *decimal.Decimal `json:"daily_limit"`
	EarliestTime    string           `json:"earliest_time"`
	LatestTime      string           `json:"latest_time"`
	RollMode        int              `json:"roll_mode"`
	SettleCycle     int              `json:"settle_cycle"`
	Status          bool             `json:"status"`
	DiyOrderSubject string           `json:"diy_order_subject"`
}

func (r ChannelRequest) toInput() service.ChannelInput {
	return service.ChannelInput{
		Code:            r.Code,
		Name:            r.Name,
		PaymentType:     r.PaymentType,
		Gateway:         r.Gateway,
		Rate:            r.Rate,
		Costs:           r.Costs,
		FixedFee:        r.FixedFee,
		FixedCosts:      r.FixedCosts,
		MinFee:          r.MinFee,
		MaxFee:          r.MaxFee,
		MinAmount:       r.MinAmount,
		MaxAmount:       r.MaxAmount,
		DailyLimit:      r.DailyLimit,
		EarliestTime:    r.EarliestTime,
		LatestTime:      r.LatestTime,
		RollMode:        r.RollMode,
		SettleCycle:     r.SettleCycle,
		Status:          r.Status,
		DiyOrderSubject: r.DiyOrderSubject,
	}
}

// GetChannels 获取支付渠道列表
func (h *Handler) GetChannels(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	channels, total, err := h.ChannelService.ListChannels(repository.ChannelListFilter{
		Page:        page,
		PageSize:    pageSize,
		Keyword:     strings.TrimSpace(c.Query("keyword")),
		PaymentType: strings.TrimSpace(c.Query("payment_type")),
		Gateway:     strings.TrimSpace(c.Query("gateway")),
		Status:      parseBoolNullable(c.Query("status")),
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
	response.SuccessWithPage(c, channels, pagination)
}

// GetChannel 获取支付渠道详情（含子账户）
func (h *Handler) GetChannel(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	channel, err := h.ChannelService.GetChannelByID(uint(id))
	if err != nil {
		if errors.Is(err, service.ErrChannelNotFound) {
			respondError(c, response.CodeNotFound, "error.channel_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}

	accounts, err := h.ChannelService.ListAccountsByChannel(channel.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.fetch_failed", err)
		return
	}

	response.Success(c, gin.H{
		"channel":  channel,
		"accounts": accounts,
	})
}

// CreateChannel 创建支付渠道
func (h *Handler) CreateChannel(c *gin.Context) {
	var req ChannelRequest
	if err := h.bindAdminPayload(c, &req); err != nil {
		respondAdminPayloadError(c, err)
		return
	}

	channel, err := h.ChannelService.CreateChannel(req.toInput())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrChannelCodeExists):
			respondError(c, response.CodeConflict, "error.channel_code_exists", nil)
		case errors.Is(err, service.ErrPayloadInvalid):
			respondErrorWithMsg(c, response.CodeInvalidRequest, err.Error(), nil)
		default:
			respondError(c, response.CodeInternal, "error.save_failed", err)
		}
		return
	}

	response.Success(c, channel)
}

// UpdateChannel 更新支付渠道
func (h *Handler) UpdateChannel(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	var req ChannelRequest
	if err := h.bindAdminPayload(c, &req); err != nil {
		respondAdminPayloadError(c, err)
		return
	}

	channel, err := h.ChannelService.UpdateChannel(uint(id), req.toInput())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrChannelNotFound):
			respondError(c, response.CodeNotFound, "error.channel_not_found", nil)
		case errors.Is(err, service.ErrChannelCodeExists):
			respondError(c, response.CodeConflict, "error.channel_code_exists", nil)
		case errors.Is(err, service.ErrPayloadInvalid):
			respondErrorWithMsg(c, response.CodeInvalidRequest, err.Error(), nil)
		default:
			respondError(c, response.CodeInternal, "error.save_failed", err)
		}
		return
	}

	response.Success(c, channel)
}

// DeleteChannel 删除支付渠道（软删除，子账户一并停用）
func (h *Handler) DeleteChannel(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	if err := h.ChannelService.DeleteChannel(uint(id)); err != nil {
		if errors.Is(err, service.ErrChannelNotFound) {
			respondError(c, response.CodeNotFound, "error.channel_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.save_failed", err)
		return
	}

	response.Success(c, gin.H{"deleted": true})
}

// ChannelAccountRequest 创建/更新渠道子账户请求
type ChannelAccountRequest struct {
	ChannelID       uint                   `json:"channel_id" binding:"required"`
	Name            string                 `json:"name" binding:"required"`
	InheritConfig   bool                   `json:"inherit_config"`
	RollWeight      int                    `json:"roll_weight"`
	Rate            decimal.Decimal        `json:"rate"`
	MinAmount       *decimal.Decimal       `json:"min_amount"`
	MaxAmount       *decimal.Decimal       `json:"max_amount"`
	DailyLimit      *decimal.Decimal       `json:"daily_limit"`
	EarliestTime    string                 `json:"earliest_time"`
	LatestTime      string                 `json:"latest_time"`
	Config          map[string]interface{} `json:"config"`
	Status          bool                   `json:"status"`
	Maintenance     bool                   `json:"maintenance"`
	DiyOrderSubject string                 `json:"diy_order_subject"`
}

func (r ChannelAccountRequest) toInput() service.ChannelAccountInput {
	return service.ChannelAccountInput{
		ChannelID:       r.ChannelID,
		Name:            r.Name,
		InheritConfig:   r.InheritConfig,
		RollWeight:      r.RollWeight,
		Rate:            r.Rate,
		MinAmount:       r.MinAmount,
		MaxAmount:       r.MaxAmount,
		DailyLimit:      r.DailyLimit,
		EarliestTime:    r.EarliestTime,
		LatestTime:      r.LatestTime,
		Config:          r.Config,
		Status:          r.Status,
		Maintenance:     r.Maintenance,
		DiyOrderSubject: r.DiyOrderSubject,
	}
}

// CreateChannelAccount 创建渠道子账户
func (h *Handler) CreateChannelAccount(c *gin.Context) {
	var req ChannelAccountRequest
	if err := h.bindAdminPayload(c, &req); err != nil {
		respondAdminPayloadError(c, err)
		return
	}

	account, err := h.ChannelService.CreateAccount(req.toInput())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrChannelNotFound):
			respondError(c, response.CodeNotFound, "error.channel_not_found", nil)
		case errors.Is(err, service.ErrPayloadInvalid):
			respondErrorWithMsg(c, response.CodeInvalidRequest, err.Error(), nil)
		default:
			respondError(c, response.CodeInternal, "error.save_failed", err)
		}
		return
	}

	response.Success(c, account)
}

// UpdateChannelAccount 更新渠道子账户
func (h *Handler) UpdateChannelAccount(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	var req ChannelAccountRequest
	if err := h.bindAdminPayload(c, &req); err != nil {
		respondAdminPayloadError(c, err)
		return
	}

	account, err := h.ChannelService.UpdateAccount(uint(id), req.toInput())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAccountNotFound):
			respondError(c, response.CodeNotFound, "error.account_not_found", nil)
		case errors.Is(err, service.ErrChannelNotFound):
			respondError(c, response.CodeNotFound, "error.channel_not_found", nil)
		case errors.Is(err, service.ErrPayloadInvalid):
			respondErrorWithMsg(c, response.CodeInvalidRequest, err.Error(), nil)
		default:
			respondError(c, response.CodeInternal, "error.save_failed", err)
		}
		return
	}

	response.Success(c, account)
}

// DeleteChannelAccount 删除渠道子账户
func (h *Handler) DeleteChannelAccount(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeInvalidRequest, "error.invalid_request", nil)
		return
	}

	if err := h.ChannelService.DeleteAccount(uint(id)); err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			respondError(c, response.CodeNotFound, "error.account_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.save_failed", err)
		return
	}

	response.Success(c, gin.H{"deleted": true})
}
