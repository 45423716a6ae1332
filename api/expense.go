package api

import (
	"budget/middleware"
	"budget/models"
	"budget/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ExpenseHandler 支出处理器，路由挂在 /budgets/:id/expenses 下
type ExpenseHandler struct {
	svc *service.BudgetService
}

// NewExpenseHandler 创建支出处理器
func NewExpenseHandler(svc *service.BudgetService) *ExpenseHandler {
	return &ExpenseHandler{svc: svc}
}

// ExpenseRequest 创建/更新支出请求
type ExpenseRequest struct {
	Description *string          `json:"description" example:"午餐"`
	Amount      *decimal.Decimal `json:"amount" swaggertype:"string" example:"35.50"`
	Date        *string          `json:"date" example:"2024-01-05"` // 为空时默认今天
}

func (r *ExpenseRequest) toPatch(requireAll bool) (service.ExpensePatch, error) {
	if requireAll {
		switch {
		case r.Description == nil:
			return service.ExpensePatch{}, service.NewValidationError("description", "描述不能为空")
		case r.Amount == nil:
			return service.ExpensePatch{}, service.NewValidationError("amount", "金额不能为空")
		case r.Date == nil:
			return service.ExpensePatch{}, service.NewValidationError("date", "日期不能为空")
		}
	}
	date, err := parseDateField("date", r.Date)
	if err != nil {
		return service.ExpensePatch{}, err
	}
	return service.ExpensePatch{Description: r.Description, Amount: r.Amount, Date: date}, nil
}

// expenseIDs 读取预算 ID 与支出 ID
func expenseIDs(c *gin.Context) (budgetID, expenseID uint, ok bool) {
	if budgetID, ok = parseID(c, "id"); !ok {
		return
	}
	expenseID, ok = parseID(c, "eid")
	return
}

// List 支出列表
// @Summary 支出列表
// @Tags 支出
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Success 200 {object} Response{data=[]models.Expense} "获取成功"
// @Failure 403 {object} Response "无权操作"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/budgets/{id}/expenses [get]
func (h *ExpenseHandler) List(c *gin.Context) {
	budgetID, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.ListExpenses(c.Request.Context(), middleware.GetCurrentUserID(c), budgetID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if list == nil {
		list = []models.Expense{}
	}
	Success(c, list)
}

// Create 登记支出
// @Summary 登记支出
// @Description 金额必须大于 0 且不超过预算当前剩余金额
// @Tags 支出
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Param request body ExpenseRequest true "支出信息"
// @Success 201 {object} Response{data=service.ExpenseResult} "创建成功"
// @Failure 400 {object} Response{data=service.ValidationError} "参数校验失败"
// @Failure 403 {object} Response "无权操作"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/budgets/{id}/expenses [post]
func (h *ExpenseHandler) Create(c *gin.Context) {
	budgetID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req ExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	userID := middleware.GetCurrentUserID(c)
	if _, err := h.svc.GetBudget(c.Request.Context(), userID, budgetID); err != nil {
		handleServiceError(c, err)
		return
	}

	patch, err := req.toPatch(false)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	in := service.ExpenseInput{}
	if patch.Description != nil {
		in.Description = *patch.Description
	}
	if patch.Amount != nil {
		in.Amount = *patch.Amount
	}
	if patch.Date != nil {
		in.Date = *patch.Date
	}

	result, err := h.svc.CreateExpense(c.Request.Context(), userID, budgetID, in)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Created(c, "创建成功", result)
}

// Get 支出详情
// @Summary 支出详情
// @Tags 支出
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Param eid path int true "支出ID"
// @Success 200 {object} Response{data=models.Expense} "获取成功"
// @Failure 403 {object} Response "无权操作"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/budgets/{id}/expenses/{eid} [get]
func (h *ExpenseHandler) Get(c *gin.Context) {
	budgetID, expenseID, ok := expenseIDs(c)
	if !ok {
		return
	}
	expense, err := h.svc.GetExpense(c.Request.Context(), middleware.GetCurrentUserID(c), budgetID, expenseID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, expense)
}

// Update 全量更新支出
// @Summary 更新支出
// @Description 金额变化量不得超过预算剩余金额
// @Tags 支出
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Param eid path int true "支出ID"
// @Param request body ExpenseRequest true "支出信息"
// @Success 200 {object} Response{data=service.ExpenseResult} "更新成功"
// @Failure 400 {object} Response{data=service.ValidationError} "参数校验失败"
// @Failure 403 {object} Response "无权操作"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/budgets/{id}/expenses/{eid} [put]
func (h *ExpenseHandler) Update(c *gin.Context) {
	h.update(c, true)
}

// Patch 部分更新支出
// @Summary 部分更新支出
// @Tags 支出
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Param eid path int true "支出ID"
// @Param request body ExpenseRequest true "需要修改的字段"
// @Success 200 {object} Response{data=service.ExpenseResult} "更新成功"
// @Failure 400 {object} Response{data=service.ValidationError} "参数校验失败"
// @Failure 403 {object} Response "无权操作"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/budgets/{id}/expenses/{eid} [patch]
func (h *ExpenseHandler) Patch(c *gin.Context) {
	h.update(c, false)
}

func (h *ExpenseHandler) update(c *gin.Context, requireAll bool) {
	budgetID, expenseID, ok := expenseIDs(c)
	if !ok {
		return
	}

	var req ExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	userID := middleware.GetCurrentUserID(c)
	if _, err := h.svc.GetExpense(c.Request.Context(), userID, budgetID, expenseID); err != nil {
		handleServiceError(c, err)
		return
	}

	patch, err := req.toPatch(requireAll)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	result, err := h.svc.UpdateExpense(c.Request.Context(), userID, budgetID, expenseID, patch)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	SuccessWithMessage(c, "更新成功", result)
}

// Delete 删除支出
// @Summary 删除支出
// @Description 删除后返回重算过的预算
// @Tags 支出
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Param eid path int true "支出ID"
// @Success 200 {object} Response{data=models.Budget} "删除成功"
// @Failure 403 {object} Response "无权操作"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/budgets/{id}/expenses/{eid} [delete]
func (h *ExpenseHandler) Delete(c *gin.Context) {
	budgetID, expenseID, ok := expenseIDs(c)
	if !ok {
		return
	}
	budget, err := h.svc.DeleteExpense(c.Request.Context(), middleware.GetCurrentUserID(c), budgetID, expenseID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	SuccessWithMessage(c, "删除成功", budget)
}
