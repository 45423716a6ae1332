package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MinBudgetTotal 预算总额下限
var MinBudgetTotal = decimal.NewFromInt(100)

// Budget 预算模型
type Budget struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	UserID    uint            `json:"-" gorm:"index;not null"`
	Name      string          `json:"name" gorm:"size:100;not null"`
	StartDate Date            `json:"start_date" gorm:"not null"`
	EndDate   Date            `json:"end_date" gorm:"not null"`
	Total     decimal.Decimal `json:"total" gorm:"type:decimal(10,2);not null"`
	Remaining decimal.Decimal `json:"remaining" gorm:"type:decimal(10,2);not null"` // 派生字段，只由 Recompute 写入
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Expenses  []Expense       `json:"-" gorm:"foreignKey:BudgetID;constraint:OnDelete:CASCADE"`
}

// TableName 设置表名
func (Budget) TableName() string {
	return "budgets"
}

// OwnedBy 是否属于指定用户
func (b *Budget) OwnedBy(userID uint) bool {
	return b.UserID == userID
}

// DateRange 形如 "2024-01-01 a 2024-01-31"
func (b *Budget) DateRange() string {
	return fmt.Sprintf("%s a %s", b.StartDate, b.EndDate)
}

// ApplySpent 以已支出总额重算剩余金额
func (b *Budget) ApplySpent(spent decimal.Decimal) {
	b.Remaining = b.Total.Sub(spent)
}
