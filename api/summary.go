package api

import (
	"budget/middleware"

	"github.com/gin-gonic/gin"
)

// Summary 预算汇总
// @Summary 预算汇总
// @Description 重算剩余金额后返回总额、已支出、剩余金额与按日期分组的支出合计
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Success 200 {object} Response{data=service.Summary} "获取成功"
// @Failure 403 {object} Response "无权操作"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/budgets/{id}/summary [get]
func (h *BudgetHandler) Summary(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	summary, err := h.svc.Summarize(c.Request.Context(), middleware.GetCurrentUserID(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, summary)
}
