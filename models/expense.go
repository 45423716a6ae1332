package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense 支出记录模型
type Expense struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	BudgetID    uint            `json:"budget_id" gorm:"index;not null"`
	Description string          `json:"description" gorm:"size:100;not null"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(10,2);not null"`
	Date        Date            `json:"date" gorm:"not null"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName 设置表名
func (Expense) TableName() string {
	return "expenses"
}

// SumAmounts 求和
func SumAmounts(expenses []Expense) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range expenses {
		sum = sum.Add(e.Amount)
	}
	return sum
}
