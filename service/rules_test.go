package service

import (
	"strings"
	"testing"

	"budget/models"

	"github.com/stretchr/testify/assert"
)

func validBudgetInput() BudgetInput {
	return BudgetInput{
		Name:      "一月",
		StartDate: models.MustParseDate("2024-01-01"),
		EndDate:   models.MustParseDate("2024-01-31"),
		Total:     dec("100"),
	}
}

func TestBudgetRules(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*BudgetInput)
		field  string
	}{
		{"valid", func(*BudgetInput) {}, ""},
		{"blank name", func(in *BudgetInput) { in.Name = "" }, "name"},
		{"name too long", func(in *BudgetInput) { in.Name = strings.Repeat("预", 101) }, "name"},
		{"name at limit", func(in *BudgetInput) { in.Name = strings.Repeat("预", 100) }, ""},
		{"missing start", func(in *BudgetInput) { in.StartDate = models.Date{} }, "start_date"},
		{"end before start", func(in *BudgetInput) { in.EndDate = models.MustParseDate("2023-12-31") }, "end_date"},
		{"same day", func(in *BudgetInput) { in.EndDate = in.StartDate }, ""},
		{"total below minimum", func(in *BudgetInput) { in.Total = dec("99.99") }, "total"},
		{"total too precise", func(in *BudgetInput) { in.Total = dec("150.123") }, "total"},
		{"total too large", func(in *BudgetInput) { in.Total = dec("100000000") }, "total"},
		{"total at max", func(in *BudgetInput) { in.Total = dec("99999999.99") }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validBudgetInput()
			tt.modify(&in)
			err := Validate(in, BudgetRules...)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			assertValidation(t, err, tt.field)
		})
	}
}

func TestExpenseRules(t *testing.T) {
	tests := []struct {
		name  string
		in    ExpenseInput
		field string
	}{
		{"valid", ExpenseInput{Description: "午餐", Amount: dec("0.01")}, ""},
		{"zero", ExpenseInput{Description: "午餐", Amount: dec("0")}, "amount"},
		{"too precise", ExpenseInput{Description: "午餐", Amount: dec("0.001")}, "amount"},
		{"blank", ExpenseInput{Description: "", Amount: dec("1")}, "description"},
		{"too long", ExpenseInput{Description: strings.Repeat("a", 101), Amount: dec("1")}, "description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.in, ExpenseRules...)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			assertValidation(t, err, tt.field)
		})
	}
}

func TestValidate_FirstFailureWins(t *testing.T) {
	err := Validate(ExpenseInput{}, ExpenseRules...)
	// 金额规则排在描述规则之前
	assertValidation(t, err, "amount")
}

func TestValidationError_Error(t *testing.T) {
	assert.Equal(t, "amount: 金额必须大于 0", NewValidationError("amount", "金额必须大于 0").Error())
	assert.Equal(t, "失败", NewValidationError("", "失败").Error())
	assert.True(t, IsValidationError(NewValidationError("x", "y")))
	assert.False(t, IsValidationError(ErrPermission))
}
