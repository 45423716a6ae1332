package api

import (
	"budget/middleware"
	"budget/models"
	"budget/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// BudgetHandler 预算处理器
type BudgetHandler struct {
	svc *service.BudgetService
}

// NewBudgetHandler 创建预算处理器
func NewBudgetHandler(svc *service.BudgetService) *BudgetHandler {
	return &BudgetHandler{svc: svc}
}

// BudgetRequest 创建/更新预算请求，remaining 由服务端计算，提交了也会被忽略
type BudgetRequest struct {
	Name      *string          `json:"name" example:"一月生活费"`
	StartDate *string          `json:"start_date" example:"2024-01-01"` // 为空时默认今天
	EndDate   *string          `json:"end_date" example:"2024-01-31"`
	Total     *decimal.Decimal `json:"total" swaggertype:"string" example:"500.00"`
}

// parseDateField 解析可选日期字段
func parseDateField(field string, s *string) (*models.Date, error) {
	if s == nil {
		return nil, nil
	}
	d, err := models.ParseDate(*s)
	if err != nil {
		return nil, service.NewValidationError(field, err.Error())
	}
	return &d, nil
}

// toPatch 转为部分更新，requireAll 为 true 时所有字段必填（PUT）
func (r *BudgetRequest) toPatch(requireAll bool) (service.BudgetPatch, error) {
	if requireAll {
		switch {
		case r.Name == nil:
			return service.BudgetPatch{}, service.NewValidationError("name", "预算名称不能为空")
		case r.StartDate == nil:
			return service.BudgetPatch{}, service.NewValidationError("start_date", "开始日期不能为空")
		case r.EndDate == nil:
			return service.BudgetPatch{}, service.NewValidationError("end_date", "结束日期不能为空")
		case r.Total == nil:
			return service.BudgetPatch{}, service.NewValidationError("total", "预算总额不能为空")
		}
	}

	start, err := parseDateField("start_date", r.StartDate)
	if err != nil {
		return service.BudgetPatch{}, err
	}
	end, err := parseDateField("end_date", r.EndDate)
	if err != nil {
		return service.BudgetPatch{}, err
	}
	return service.BudgetPatch{Name: r.Name, StartDate: start, EndDate: end, Total: r.Total}, nil
}

// Create 创建预算
// @Summary 创建预算
// @Description 创建预算，剩余金额等于总额。总额不得低于 100.00，结束日期不得早于开始日期
// @Tags 预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BudgetRequest true "预算信息"
// @Success 201 {object} Response{data=models.Budget} "创建成功"
// @Failure 400 {object} Response{data=service.ValidationError} "参数校验失败"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/budgets [post]
func (h *BudgetHandler) Create(c *gin.Context) {
	var req BudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	patch, err := req.toPatch(false)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	in := service.BudgetInput{}
	if patch.Name != nil {
		in.Name = *patch.Name
	}
	if patch.StartDate != nil {
		in.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		in.EndDate = *patch.EndDate
	}
	if patch.Total == nil {
		handleServiceError(c, service.NewValidationError("total", "预算总额不能为空"))
		return
	}
	in.Total = *patch.Total

	budget, err := h.svc.CreateBudget(c.Request.Context(), middleware.GetCurrentUserID(c), in)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Created(c, "创建成功", budget)
}

// List 预算列表
// @Summary 预算列表
// @Description 当前用户的全部预算
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]models.Budget} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/budgets [get]
func (h *BudgetHandler) List(c *gin.Context) {
	list, err := h.svc.ListBudgets(c.Request.Context(), middleware.GetCurrentUserID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if list == nil {
		list = []models.Budget{}
	}
	Success(c, list)
}

// Get 预算详情
// @Summary 预算详情
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Success 200 {object} Response{data=models.Budget} "获取成功"
// @Failure 403 {object} Response "无权操作"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/budgets/{id} [get]
func (h *BudgetHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	budget, err := h.svc.GetBudget(c.Request.Context(), middleware.GetCurrentUserID(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	Success(c, budget)
}

// Update 全量更新预算
// @Summary 更新预算
// @Description PUT 需提交全部字段；新总额不得低于已支出金额
// @Tags 预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Param request body BudgetRequest true "预算信息"
// @Success 200 {object} Response{data=models.Budget} "更新成功"
// @Failure 400 {object} Response{data=service.ValidationError} "参数校验失败"
// @Failure 403 {object} Response "无权操作"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/budgets/{id} [put]
func (h *BudgetHandler) Update(c *gin.Context) {
	h.update(c, true)
}

// Patch 部分更新预算
// @Summary 部分更新预算
// @Tags 预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Param request body BudgetRequest true "需要修改的字段"
// @Success 200 {object} Response{data=models.Budget} "更新成功"
// @Failure 400 {object} Response{data=service.ValidationError} "参数校验失败"
// @Failure 403 {object} Response "无权操作"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/budgets/{id} [patch]
func (h *BudgetHandler) Patch(c *gin.Context) {
	h.update(c, false)
}

func (h *BudgetHandler) update(c *gin.Context, requireAll bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req BudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	// 先确认归属，再校验请求体
	userID := middleware.GetCurrentUserID(c)
	if _, err := h.svc.GetBudget(c.Request.Context(), userID, id); err != nil {
		handleServiceError(c, err)
		return
	}

	patch, err := req.toPatch(requireAll)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	budget, err := h.svc.UpdateBudget(c.Request.Context(), userID, id, patch)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	SuccessWithMessage(c, "更新成功", budget)
}

// Delete 删除预算
// @Summary 删除预算
// @Description 删除预算及其全部支出
// @Tags 预算
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Success 204 "删除成功"
// @Failure 403 {object} Response "无权操作"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/budgets/{id} [delete]
func (h *BudgetHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteBudget(c.Request.Context(), middleware.GetCurrentUserID(c), id); err != nil {
		handleServiceError(c, err)
		return
	}
	NoContent(c)
}
