// 包 http 资金池核心的 HTTP 接口层
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/logisticfund/internal/fund/application"
	"github.com/wyfcoding/logisticfund/internal/fund/domain"
	"github.com/wyfcoding/logisticfund/pkg/response"
)

// Handler 资金池 HTTP 处理器
type Handler struct {
	contributions *application.ContributionService
	payments      *application.PaymentService
	bonuses       *application.BonusService
	governance    *application.GovernanceService
	settings      *application.SettingsService
	queries       *application.QueryService
}

// NewHandler 创建处理器
func NewHandler(
	contributions *application.ContributionService,
	payments *application.PaymentService,
	bonuses *application.BonusService,
	governance *application.GovernanceService,
	settings *application.SettingsService,
	queries *application.QueryService,
) *Handler {
	return &Handler{
		contributions: contributions,
		payments:      payments,
		bonuses:       bonuses,
		governance:    governance,
		settings:      settings,
		queries:       queries,
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	{
		fund := v1.Group("/fund")
		{
			fund.POST("/contributions", h.ProcessContribution)
			fund.POST("/payments", h.ProcessPayment)
			fund.GET("/status", h.GetFundStatus)
			fund.GET("/metrics", h.GetFundMetrics)
			fund.GET("/transactions", h.ListTransactions)
			fund.GET("/transactions/:id", h.GetTransaction)
			fund.GET("/audit", h.GetAuditLog)
		}

		bonuses := v1.Group("/bonuses")
		{
			bonuses.POST("/weekly/run", h.RunWeeklyBonuses)
			bonuses.POST("/special/run", h.RunSpecialBonuses)
			bonuses.POST("/preview", h.PreviewWeeklyBonus)
			bonuses.GET("", h.ListBonuses)
			bonuses.GET("/statistics", h.GetBonusStatistics)
		}

		governance := v1.Group("/governance")
		{
			governance.POST("/analyze", h.AnalyzeFund)
			governance.POST("/run", h.RunGovernanceCycle)
		}

		settings := v1.Group("/settings")
		{
			settings.GET("", h.GetSettings)
			settings.PUT("", h.UpdateSettings)
		}
	}
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok", "time": time.Now().Format(time.RFC3339)})
}

// ProcessContribution 处理订单缴款
func (h *Handler) ProcessContribution(c *gin.Context) {
	var cmd application.ProcessContributionCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.contributions.ProcessOrderContribution(c.Request.Context(), cmd)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, result)
}

// ProcessPayment 处理配送支付
func (h *Handler) ProcessPayment(c *gin.Context) {
	var cmd application.ProcessPaymentCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.payments.ProcessDeliveryPayment(c.Request.Context(), cmd)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, result)
}

// GetFundStatus 资金池状态
func (h *Handler) GetFundStatus(c *gin.Context) {
	view, err := h.queries.GetFundStatus(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, view)
}

// GetFundMetrics 周期性资金指标
func (h *Handler) GetFundMetrics(c *gin.Context) {
	view, err := h.queries.GetFundMetrics(c.Request.Context(), c.Query("period"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, view)
}

// ListTransactions 分页查询流水
func (h *Handler) ListTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	filter := domain.TransactionFilter{
		Type:       domain.TransactionType(c.Query("type")),
		Status:     domain.TransactionStatus(c.Query("status")),
		OrderID:    c.Query("order_id"),
		DeliveryID: c.Query("delivery_id"),
	}

	pageResult, err := h.queries.GetTransactions(c.Request.Context(), filter, page, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, pageResult)
}

// GetTransaction 按流水 ID 查询
func (h *Handler) GetTransaction(c *gin.Context) {
	txn, err := h.queries.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, txn)
}

// GetAuditLog 审计日志
func (h *Handler) GetAuditLog(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.queries.GetAuditLog(c.Request.Context(), domain.AuditCategory(c.Query("category")), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, entries)
}

type bonusRunRequest struct {
	WeekNumber int `json:"week_number"`
	Year       int `json:"year"`
}

// 缺省取上一个 ISO 周（周一跑上周的账）
func (r *bonusRunRequest) normalize() {
	if r.WeekNumber == 0 || r.Year == 0 {
		year, week := time.Now().AddDate(0, 0, -7).ISOWeek()
		r.WeekNumber = week
		r.Year = year
	}
}

// RunWeeklyBonuses 手动触发周奖金批处理
func (h *Handler) RunWeeklyBonuses(c *gin.Context) {
	var req bonusRunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}
	req.normalize()

	result, err := h.bonuses.ProcessWeeklyBonuses(c.Request.Context(), req.WeekNumber, req.Year)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, result)
}

// RunSpecialBonuses 手动触发特别奖金批处理
func (h *Handler) RunSpecialBonuses(c *gin.Context) {
	var req bonusRunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}
	req.normalize()

	result, err := h.bonuses.ProcessSpecialBonuses(c.Request.Context(), req.WeekNumber, req.Year)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, result)
}

// PreviewWeeklyBonus 按统计数据预览周奖金（不落库不动账）
func (h *Handler) PreviewWeeklyBonus(c *gin.Context) {
	var stats domain.CourierWeekStats
	if err := c.ShouldBindJSON(&stats); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	calc, err := h.bonuses.CalculateWeeklyBonus(c.Request.Context(), stats)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, calc)
}

// ListBonuses 按周期列出奖金记录
func (h *Handler) ListBonuses(c *gin.Context) {
	week, _ := strconv.Atoi(c.Query("week"))
	year, _ := strconv.Atoi(c.Query("year"))
	if week == 0 || year == 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "week and year are required", "")
		return
	}

	bonuses, err := h.bonuses.ListBonusesByPeriod(c.Request.Context(), week, year)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, bonuses)
}

// GetBonusStatistics 奖金聚合统计
func (h *Handler) GetBonusStatistics(c *gin.Context) {
	stats, err := h.bonuses.GetBonusStatistics(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, stats)
}

// AnalyzeFund 治理分析（不落地）
func (h *Handler) AnalyzeFund(c *gin.Context) {
	decision, err := h.governance.AnalyzeFund(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, decision)
}

// RunGovernanceCycle 治理分析并落地
func (h *Handler) RunGovernanceCycle(c *gin.Context) {
	decision, err := h.governance.RunGovernanceCycle(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, decision)
}

// GetSettings 读取配置
func (h *Handler) GetSettings(c *gin.Context) {
	cfg, err := h.settings.GetSettings(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, cfg)
}

// UpdateSettings 部分更新配置
func (h *Handler) UpdateSettings(c *gin.Context) {
	var cmd application.UpdateSettingsCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	cfg, err := h.settings.UpdateSettings(c.Request.Context(), cmd)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, cfg)
}

// writeError 领域错误到 HTTP 状态码的映射
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		response.ErrorWithStatus(c, http.StatusBadRequest, "validation failed", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, "resource not found", err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		response.ErrorWithStatus(c, http.StatusConflict, "insufficient funds", err.Error())
	case errors.Is(err, domain.ErrFundNotActive):
		response.ErrorWithStatus(c, http.StatusConflict, "fund is not active", err.Error())
	case errors.Is(err, domain.ErrDuplicateBonus):
		response.ErrorWithStatus(c, http.StatusConflict, "bonus already granted for period", err.Error())
	case errors.Is(err, domain.ErrConcurrentUpdate):
		response.ErrorWithStatus(c, http.StatusConflict, "concurrent update, retry later", err.Error())
	case errors.Is(err, domain.ErrAdjustmentTooFrequent):
		response.ErrorWithStatus(c, http.StatusTooManyRequests, "adjustment interval not elapsed", err.Error())
	default:
		response.ErrorWithStatus(c, http.StatusInternalServerError, "internal error", err.Error())
	}
}
