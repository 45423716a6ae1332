package service

import (
	"bytes"
	"context"
	"encoding/json"

	"budget/models"

	"github.com/shopspring/decimal"
)

// Number 以 JSON 数字（两位小数）输出的金额
type Number struct {
	decimal.Decimal
}

// MarshalJSON 实现 json.Marshaler
func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(n.StringFixed(2)), nil
}

// DateTotal 某一天的支出合计
type DateTotal struct {
	Date  string
	Total decimal.Decimal
}

// DateTotals 按日期汇总，顺序为各日期首次出现的顺序（未排序）
type DateTotals []DateTotal

// Get 查询某一天的合计
func (d DateTotals) Get(date string) (decimal.Decimal, bool) {
	for _, item := range d {
		if item.Date == date {
			return item.Total, true
		}
	}
	return decimal.Zero, false
}

// MarshalJSON 输出为保持顺序的 JSON 对象 {"2024-01-05": 500.00, ...}
func (d DateTotals) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, item := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(item.Date)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(item.Total.StringFixed(2))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// GroupByDate 按日期累加支出金额
func GroupByDate(expenses []models.Expense) DateTotals {
	totals := DateTotals{}
	index := make(map[string]int)
	for _, e := range expenses {
		key := e.Date.String()
		if i, ok := index[key]; ok {
			totals[i].Total = totals[i].Total.Add(e.Amount)
			continue
		}
		index[key] = len(totals)
		totals = append(totals, DateTotal{Date: key, Total: e.Amount})
	}
	return totals
}

// Summary 预算汇总报告
type Summary struct {
	BudgetID  uint       `json:"budget_id"`
	Total     Number     `json:"total"`
	Spent     Number     `json:"spent"`
	Remaining Number     `json:"remaining"`
	DateRange string     `json:"date_range"`
	ByDate    DateTotals `json:"by_date"`
}

// BuildSummary 由预算与其支出生成汇总
func BuildSummary(b *models.Budget, expenses []models.Expense) *Summary {
	return &Summary{
		BudgetID:  b.ID,
		Total:     Number{b.Total},
		Spent:     Number{models.SumAmounts(expenses)},
		Remaining: Number{b.Remaining},
		DateRange: b.DateRange(),
		ByDate:    GroupByDate(expenses),
	}
}

// Summarize 生成预算汇总，生成前总是在行锁下重算一次剩余金额
func (s *BudgetService) Summarize(ctx context.Context, userID, budgetID uint) (*Summary, error) {
	var summary *Summary
	err := s.store.Transaction(ctx, func(tx Store) error {
		// 重算会写入剩余金额，与支出写入一样需要锁定预算行
		b, err := loadOwned(ctx, tx, userID, budgetID, true)
		if err != nil {
			return err
		}
		if _, err := Recompute(ctx, tx, b); err != nil {
			return err
		}
		expenses, err := tx.ListExpenses(ctx, b.ID)
		if err != nil {
			return err
		}
		summary = BuildSummary(b, expenses)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}
