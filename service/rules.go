package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"budget/models"

	"github.com/shopspring/decimal"
)

// maxAmount DECIMAL(10,2) 可容纳的上限（不含）
var maxAmount = decimal.NewFromInt(100000000)

const (
	maxNameLength        = 100
	maxDescriptionLength = 100
)

// Rule 单条校验规则，通过时返回 nil
type Rule[T any] func(T) *ValidationError

// Validate 按顺序执行规则，返回第一条失败
func Validate[T any](v T, rules ...Rule[T]) error {
	for _, rule := range rules {
		if verr := rule(v); verr != nil {
			return verr
		}
	}
	return nil
}

// BudgetInput 创建或更新预算时的完整字段
type BudgetInput struct {
	Name      string
	StartDate models.Date
	EndDate   models.Date
	Total     decimal.Decimal
}

// ExpenseInput 创建或更新支出时的完整字段
type ExpenseInput struct {
	Description string
	Amount      decimal.Decimal
	Date        models.Date
}

// BudgetRules 预算校验规则
var BudgetRules = []Rule[BudgetInput]{
	BudgetNameNotBlank,
	BudgetNameLength,
	BudgetDatesPresent,
	BudgetEndNotBeforeStart,
	BudgetTotalMinimum,
	BudgetTotalPrecision,
}

// ExpenseRules 支出校验规则（与预算余额无关的部分）
var ExpenseRules = []Rule[ExpenseInput]{
	ExpenseAmountPositive,
	ExpenseAmountPrecision,
	ExpenseDescriptionNotBlank,
	ExpenseDescriptionLength,
}

func BudgetNameNotBlank(in BudgetInput) *ValidationError {
	if strings.TrimSpace(in.Name) == "" {
		return NewValidationError("name", "预算名称不能为空")
	}
	return nil
}

func BudgetNameLength(in BudgetInput) *ValidationError {
	if utf8.RuneCountInString(in.Name) > maxNameLength {
		return NewValidationError("name", fmt.Sprintf("预算名称不能超过 %d 个字符", maxNameLength))
	}
	return nil
}

func BudgetDatesPresent(in BudgetInput) *ValidationError {
	if in.StartDate.IsZero() {
		return NewValidationError("start_date", "开始日期不能为空")
	}
	if in.EndDate.IsZero() {
		return NewValidationError("end_date", "结束日期不能为空")
	}
	return nil
}

func BudgetEndNotBeforeStart(in BudgetInput) *ValidationError {
	if in.EndDate.Before(in.StartDate) {
		return NewValidationError("end_date", "结束日期不能早于开始日期")
	}
	return nil
}

func BudgetTotalMinimum(in BudgetInput) *ValidationError {
	if in.Total.LessThan(models.MinBudgetTotal) {
		return NewValidationError("total", fmt.Sprintf("预算总额不能低于 %s", models.MinBudgetTotal.StringFixed(2)))
	}
	return nil
}

func BudgetTotalPrecision(in BudgetInput) *ValidationError {
	return checkPrecision("total", in.Total)
}

func ExpenseAmountPositive(in ExpenseInput) *ValidationError {
	if !in.Amount.IsPositive() {
		return NewValidationError("amount", "金额必须大于 0")
	}
	return nil
}

func ExpenseAmountPrecision(in ExpenseInput) *ValidationError {
	return checkPrecision("amount", in.Amount)
}

func ExpenseDescriptionNotBlank(in ExpenseInput) *ValidationError {
	if strings.TrimSpace(in.Description) == "" {
		return NewValidationError("description", "描述不能为空")
	}
	return nil
}

func ExpenseDescriptionLength(in ExpenseInput) *ValidationError {
	if utf8.RuneCountInString(in.Description) > maxDescriptionLength {
		return NewValidationError("description", fmt.Sprintf("描述不能超过 %d 个字符", maxDescriptionLength))
	}
	return nil
}

// checkPrecision 最多两位小数且不超过 DECIMAL(10,2)
func checkPrecision(field string, d decimal.Decimal) *ValidationError {
	if !d.Equal(d.Round(2)) {
		return NewValidationError(field, "金额最多保留两位小数")
	}
	if d.Abs().GreaterThanOrEqual(maxAmount) {
		return NewValidationError(field, "金额超出允许范围")
	}
	return nil
}
