package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"budget/middleware"
	"budget/models"
	"budget/service"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ExportHandler 导出处理器
type ExportHandler struct {
	svc *service.BudgetService
}

// NewExportHandler 创建导出处理器
func NewExportHandler(svc *service.BudgetService) *ExportHandler {
	return &ExportHandler{svc: svc}
}

var exportHeaders = []string{"ID", "日期", "描述", "金额"}

// writeExpensesCSV 写出 CSV，带 BOM 以便 Excel 正确识别中文
func writeExpensesCSV(w io.Writer, expenses []models.Expense) error {
	if _, err := io.WriteString(w, "\xEF\xBB\xBF"); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeaders); err != nil {
		return err
	}
	for _, e := range expenses {
		row := []string{
			strconv.FormatUint(uint64(e.ID), 10),
			e.Date.String(),
			e.Description,
			e.Amount.StringFixed(2),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// buildExpensesExcel 生成支出明细工作簿，末行为合计
func buildExpensesExcel(budget *models.Budget, expenses []models.Expense) (*excelize.File, error) {
	f := excelize.NewFile()

	sheetName := "支出明细"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		f.Close()
		return nil, err
	}

	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	dataStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	summaryStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"FFC000"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})

	f.SetColWidth(sheetName, "A", "A", 10)
	f.SetColWidth(sheetName, "B", "B", 14)
	f.SetColWidth(sheetName, "C", "C", 30)
	f.SetColWidth(sheetName, "D", "D", 14)

	// 第一行为预算信息
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s（%s）", budget.Name, budget.DateRange()))
	f.MergeCell(sheetName, "A1", "D1")

	for i, header := range exportHeaders {
		cell := fmt.Sprintf("%c2", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, e := range expenses {
		row := i + 3
		amount, _ := e.Amount.Float64()
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), e.ID)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), e.Date.String())
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), e.Description)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), amount)
		f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("D%d", row), dataStyle)
	}

	summaryRow := len(expenses) + 3
	total, _ := models.SumAmounts(expenses).Float64()
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", summaryRow), "合计")
	f.SetCellValue(sheetName, fmt.Sprintf("B%d", summaryRow), fmt.Sprintf("共 %d 条记录", len(expenses)))
	f.MergeCell(sheetName, fmt.Sprintf("B%d", summaryRow), fmt.Sprintf("C%d", summaryRow))
	f.SetCellValue(sheetName, fmt.Sprintf("D%d", summaryRow), total)
	f.SetCellStyle(sheetName, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("D%d", summaryRow), summaryStyle)

	return f, nil
}

// ExportCSV 导出预算支出为 CSV
// @Summary 导出 CSV
// @Description 导出预算下全部支出为 CSV 文件
// @Tags 导出
// @Produce text/csv
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Success 200 {file} file "CSV 文件"
// @Failure 403 {object} Response "无权操作"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/budgets/{id}/export/csv [get]
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	budget, expenses, err := h.svc.BudgetWithExpenses(c.Request.Context(), middleware.GetCurrentUserID(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	buf := new(bytes.Buffer)
	if err := writeExpensesCSV(buf, expenses); err != nil {
		InternalError(c, "生成 CSV 失败")
		return
	}

	filename := fmt.Sprintf("budget_%d_expenses.csv", budget.ID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ExportExcel 导出预算支出为 Excel
// @Summary 导出 Excel
// @Description 导出预算下全部支出为 Excel 文件，末行为合计
// @Tags 导出
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Success 200 {file} file "Excel 文件"
// @Failure 403 {object} Response "无权操作"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/budgets/{id}/export/excel [get]
func (h *ExportHandler) ExportExcel(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	budget, expenses, err := h.svc.BudgetWithExpenses(c.Request.Context(), middleware.GetCurrentUserID(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	f, err := buildExpensesExcel(budget, expenses)
	if err != nil {
		InternalError(c, "生成 Excel 失败")
		return
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		InternalError(c, "生成 Excel 失败")
		return
	}

	filename := url.PathEscape(fmt.Sprintf("%s_支出明细.xlsx", budget.Name))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
