package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tinylink/internal/apperrors"
	"tinylink/internal/model"
	"tinylink/internal/store"
	"tinylink/internal/validation"
)

const maxListLimit = 1000

// LinkStore 处理器依赖的存储接口
type LinkStore interface {
	Create(ctx context.Context, targetURL, code string) (*model.Link, error)
	FindByCode(ctx context.Context, code string) (*model.Link, error)
	List(ctx context.Context, opts store.ListOptions) ([]model.Link, error)
	RecordClick(ctx context.Context, code string) (*model.Link, error)
	DeleteByCode(ctx context.Context, code string) (*model.Link, error)
	Exists(ctx context.Context, code string) (bool, error)
	Stats(ctx context.Context) (store.Stats, error)
	Ping(ctx context.Context) error
}

// LinkHandler 处理器
type LinkHandler struct {
	store     LinkStore
	version   string
	startedAt time.Time
	logger    *zap.Logger
}

// NewLinkHandler 创建处理器实例
func NewLinkHandler(s LinkStore, version string, logger *zap.Logger) *LinkHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkHandler{
		store:     s,
		version:   version,
		startedAt: time.Now(),
		logger:    logger,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	OK        bool      `json:"ok" example:"true"`
	Version   string    `json:"version" example:"1.0"`
	Uptime    float64   `json:"uptime" example:"12.5"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthCheck godoc
// @Summary 健康检查
// @Description 返回服务版本与运行时长；数据库不可用时返回 503
// @Tags System
// @Produce  json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /healthz [get]
func (h *LinkHandler) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		OK:        true,
		Version:   h.version,
		Uptime:    time.Since(h.startedAt).Seconds(),
		Timestamp: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("数据库健康检查失败", zap.Error(err))
		resp.OK = false
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CreateLinkRequest 创建短链接请求
type CreateLinkRequest struct {
	TargetURL string `json:"target_url" example:"https://github.com/gin-gonic/gin"`
	Code      string `json:"code,omitempty" example:"gin2024"`
}

// CreateLink godoc
// @Summary 创建短链接
// @Description 为一个长 URL 创建短链接，可指定 6-8 位字母数字的自定义短码
// @Tags Links
// @Accept  json
// @Produce  json
// @Param   link  body   CreateLinkRequest  true  "目标 URL 与可选短码"
// @Success 201 {object} model.Link
// @Failure 400 {object} ErrorResponse "请求无效"
// @Failure 409 {object} ErrorResponse "短码已存在"
// @Failure 500 {object} ErrorResponse "服务器内部错误"
// @Router /api/links [post]
func (h *LinkHandler) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.Validation("Invalid request body"))
		return
	}

	targetURL, err := validation.ValidateURL(req.TargetURL)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if req.Code != "" {
		if err := validation.ValidateCode(req.Code); err != nil {
			_ = c.Error(err)
			return
		}
		exists, err := h.store.Exists(c.Request.Context(), req.Code)
		if err != nil {
			_ = c.Error(err)
			return
		}
		if exists {
			_ = c.Error(apperrors.DuplicateCode(nil))
			return
		}
	}

	link, err := h.store.Create(c.Request.Context(), targetURL, req.Code)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.logger.Info("短链接已创建", zap.String("code", link.Code), zap.String("target_url", link.TargetURL))
	c.JSON(http.StatusCreated, link)
}

// ListLinks godoc
// @Summary 链接列表
// @Description 按创建时间倒序返回链接，可按短码或目标 URL 过滤
// @Tags Links
// @Produce  json
// @Param   q       query  string  false  "短码或 URL 包含的文本，不区分大小写"
// @Param   limit   query  int     false  "返回条数，0 表示全部"
// @Param   offset  query  int     false  "跳过条数，仅在 limit 大于 0 时生效"
// @Success 200 {array} model.Link
// @Failure 400 {object} ErrorResponse "参数无效"
// @Failure 500 {object} ErrorResponse "服务器内部错误"
// @Router /api/links [get]
func (h *LinkHandler) ListLinks(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		_ = c.Error(err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		_ = c.Error(err)
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	links, err := h.store.List(c.Request.Context(), store.ListOptions{
		Query:  c.Query("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, links)
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.Validation("Invalid " + key)
	}
	return n, nil
}

// GetLink godoc
// @Summary 链接详情
// @Description 按短码查询链接及其点击统计
// @Tags Links
// @Produce  json
// @Param   code  path  string  true  "短码"
// @Success 200 {object} model.Link
// @Failure 404 {object} ErrorResponse "链接不存在"
// @Router /api/links/{code} [get]
func (h *LinkHandler) GetLink(c *gin.Context) {
	link, err := h.store.FindByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if link == nil {
		_ = c.Error(apperrors.NotFound("Link not found"))
		return
	}
	c.JSON(http.StatusOK, link)
}

// DeleteLink godoc
// @Summary 删除链接
// @Tags Links
// @Produce  json
// @Param   code  path  string  true  "短码"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse "链接不存在"
// @Router /api/links/{code} [delete]
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	code := c.Param("code")
	link, err := h.store.DeleteByCode(c.Request.Context(), code)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if link == nil {
		_ = c.Error(apperrors.NotFound("Link not found"))
		return
	}

	h.logger.Info("短链接已删除", zap.String("code", code))
	c.JSON(http.StatusOK, MessageResponse{Message: "Link deleted successfully"})
}

// GetStats godoc
// @Summary 汇总统计
// @Tags Links
// @Produce  json
// @Success 200 {object} store.Stats
// @Failure 500 {object} ErrorResponse "服务器内部错误"
// @Router /api/stats [get]
func (h *LinkHandler) GetStats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// RedirectToTarget godoc
// @Summary 短链接跳转
// @Description 记录一次点击并 302 跳转到目标 URL
// @Tags Redirect
// @Param   code  path  string  true  "短码"
// @Success 302
// @Failure 404 {object} ErrorResponse "链接不存在"
// @Router /{code} [get]
func (h *LinkHandler) RedirectToTarget(c *gin.Context) {
	code := c.Param("code")
	if isReserved(code) || !validation.IsCodeShape(code) {
		_ = c.Error(apperrors.NotFound("Not found"))
		return
	}

	link, err := h.store.RecordClick(c.Request.Context(), code)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if link == nil {
		_ = c.Error(apperrors.NotFound("Link not found"))
		return
	}

	// 禁止浏览器缓存跳转，保证每次访问都被计数
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Redirect(http.StatusFound, link.TargetURL)
}

// NoRoute 未匹配路由
func (h *LinkHandler) NoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found"})
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error string `json:"error" example:"Link not found"`
}

// MessageResponse 操作结果
type MessageResponse struct {
	Message string `json:"message" example:"Link deleted successfully"`
}
