package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"budget/models"

	"github.com/shopspring/decimal"
)

// BudgetService 预算与支出的业务操作
// 所有方法都显式接收当前用户 ID，先查找、再校验归属、最后读写
type BudgetService struct {
	store    Store
	notifier Notifier
}

// NewBudgetService 创建预算服务，notifier 可为 nil
func NewBudgetService(store Store, notifier Notifier) *BudgetService {
	return &BudgetService{store: store, notifier: notifier}
}

// BudgetPatch 预算的部分更新，nil 表示不修改
type BudgetPatch struct {
	Name      *string
	StartDate *models.Date
	EndDate   *models.Date
	Total     *decimal.Decimal
}

// ExpensePatch 支出的部分更新，nil 表示不修改
type ExpensePatch struct {
	Description *string
	Amount      *decimal.Decimal
	Date        *models.Date
}

// ExpenseResult 支出变更后的支出与所属预算
type ExpenseResult struct {
	Expense *models.Expense `json:"expense"`
	Budget  *models.Budget  `json:"budget"`
}

// Authorize 校验预算归属
func Authorize(userID uint, b *models.Budget) error {
	if !b.OwnedBy(userID) {
		return ErrPermission
	}
	return nil
}

// Recompute 以存储中的支出重新计算剩余金额并保存，返回已支出总额
func Recompute(ctx context.Context, st Store, b *models.Budget) (decimal.Decimal, error) {
	spent, err := st.SumExpenses(ctx, b.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("统计支出失败: %w", err)
	}
	b.ApplySpent(spent)
	if err := st.SetRemaining(ctx, b.ID, b.Remaining); err != nil {
		return decimal.Zero, fmt.Errorf("更新剩余金额失败: %w", err)
	}
	return spent, nil
}

// freshRemaining 按存储中的支出计算当前剩余金额，不使用预算行上的缓存值
func freshRemaining(ctx context.Context, st Store, b *models.Budget) (decimal.Decimal, error) {
	spent, err := st.SumExpenses(ctx, b.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("统计支出失败: %w", err)
	}
	return b.Total.Sub(spent), nil
}

// loadOwned 查找预算并校验归属
// 不存在返回 ErrBudgetNotFound，属于他人返回 ErrPermission
func loadOwned(ctx context.Context, st Store, userID, budgetID uint, lock bool) (*models.Budget, error) {
	var (
		b   *models.Budget
		err error
	)
	if lock {
		b, err = st.LockBudget(ctx, budgetID)
	} else {
		b, err = st.GetBudget(ctx, budgetID)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrBudgetNotFound
		}
		return nil, fmt.Errorf("查询预算失败: %w", err)
	}
	if err := Authorize(userID, b); err != nil {
		return nil, err
	}
	return b, nil
}

func loadExpense(ctx context.Context, st Store, budgetID, expenseID uint) (*models.Expense, error) {
	e, err := st.GetExpense(ctx, budgetID, expenseID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrExpenseNotFound
		}
		return nil, fmt.Errorf("查询支出失败: %w", err)
	}
	return e, nil
}

// CreateBudget 创建预算，剩余金额等于总额
func (s *BudgetService) CreateBudget(ctx context.Context, userID uint, in BudgetInput) (*models.Budget, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.StartDate.IsZero() {
		in.StartDate = models.Today()
	}
	if err := Validate(in, BudgetRules...); err != nil {
		return nil, err
	}

	b := &models.Budget{
		UserID:    userID,
		Name:      in.Name,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Total:     in.Total,
		Remaining: in.Total,
	}
	if err := s.store.CreateBudget(ctx, b); err != nil {
		return nil, fmt.Errorf("保存预算失败: %w", err)
	}
	return b, nil
}

// ListBudgets 当前用户的全部预算
func (s *BudgetService) ListBudgets(ctx context.Context, userID uint) ([]models.Budget, error) {
	list, err := s.store.ListBudgets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询预算失败: %w", err)
	}
	return list, nil
}

// GetBudget 获取单个预算
func (s *BudgetService) GetBudget(ctx context.Context, userID, budgetID uint) (*models.Budget, error) {
	return loadOwned(ctx, s.store, userID, budgetID, false)
}

// UpdateBudget 更新预算字段并重算剩余金额
// 合并后的记录须满足创建规则，且新总额不得低于已支出金额
func (s *BudgetService) UpdateBudget(ctx context.Context, userID, budgetID uint, patch BudgetPatch) (*models.Budget, error) {
	var updated *models.Budget
	err := s.store.Transaction(ctx, func(tx Store) error {
		b, err := loadOwned(ctx, tx, userID, budgetID, true)
		if err != nil {
			return err
		}

		in := BudgetInput{Name: b.Name, StartDate: b.StartDate, EndDate: b.EndDate, Total: b.Total}
		if patch.Name != nil {
			in.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.StartDate != nil {
			in.StartDate = *patch.StartDate
		}
		if patch.EndDate != nil {
			in.EndDate = *patch.EndDate
		}
		if patch.Total != nil {
			in.Total = *patch.Total
		}
		if err := Validate(in, BudgetRules...); err != nil {
			return err
		}

		spent, err := tx.SumExpenses(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("统计支出失败: %w", err)
		}
		if in.Total.LessThan(spent) {
			return NewValidationError("total", fmt.Sprintf("预算总额不能低于已支出金额（%s）", spent.StringFixed(2)))
		}

		b.Name = in.Name
		b.StartDate = in.StartDate
		b.EndDate = in.EndDate
		b.Total = in.Total
		b.ApplySpent(spent)
		if err := tx.SaveBudget(ctx, b); err != nil {
			return fmt.Errorf("保存预算失败: %w", err)
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteBudget 删除预算及其全部支出
func (s *BudgetService) DeleteBudget(ctx context.Context, userID, budgetID uint) error {
	return s.store.Transaction(ctx, func(tx Store) error {
		b, err := loadOwned(ctx, tx, userID, budgetID, true)
		if err != nil {
			return err
		}
		if err := tx.DeleteBudget(ctx, b.ID); err != nil {
			return fmt.Errorf("删除预算失败: %w", err)
		}
		return nil
	})
}

// ListExpenses 预算下的全部支出，按创建顺序
func (s *BudgetService) ListExpenses(ctx context.Context, userID, budgetID uint) ([]models.Expense, error) {
	b, err := loadOwned(ctx, s.store, userID, budgetID, false)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListExpenses(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("查询支出失败: %w", err)
	}
	return list, nil
}

// BudgetWithExpenses 预算及其全部支出，用于导出
func (s *BudgetService) BudgetWithExpenses(ctx context.Context, userID, budgetID uint) (*models.Budget, []models.Expense, error) {
	b, err := loadOwned(ctx, s.store, userID, budgetID, false)
	if err != nil {
		return nil, nil, err
	}
	list, err := s.store.ListExpenses(ctx, b.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("查询支出失败: %w", err)
	}
	return b, list, nil
}

// GetExpense 获取单条支出
func (s *BudgetService) GetExpense(ctx context.Context, userID, budgetID, expenseID uint) (*models.Expense, error) {
	b, err := loadOwned(ctx, s.store, userID, budgetID, false)
	if err != nil {
		return nil, err
	}
	return loadExpense(ctx, s.store, b.ID, expenseID)
}

// CreateExpense 登记支出
// 先以最新剩余金额校验，再写入支出，最后重算剩余金额
func (s *BudgetService) CreateExpense(ctx context.Context, userID, budgetID uint, in ExpenseInput) (*ExpenseResult, error) {
	in.Description = strings.TrimSpace(in.Description)
	if in.Date.IsZero() {
		in.Date = models.Today()
	}

	var result ExpenseResult
	err := s.store.Transaction(ctx, func(tx Store) error {
		b, err := loadOwned(ctx, tx, userID, budgetID, true)
		if err != nil {
			return err
		}
		if err := Validate(in, ExpenseRules...); err != nil {
			return err
		}

		remaining, err := freshRemaining(ctx, tx, b)
		if err != nil {
			return err
		}
		if in.Amount.GreaterThan(remaining) {
			return NewValidationError("amount", fmt.Sprintf("支出金额不能超过预算剩余金额（%s）", remaining.StringFixed(2)))
		}

		e := &models.Expense{
			BudgetID:    b.ID,
			Description: in.Description,
			Amount:      in.Amount,
			Date:        in.Date,
		}
		if err := tx.CreateExpense(ctx, e); err != nil {
			return fmt.Errorf("保存支出失败: %w", err)
		}
		if _, err := Recompute(ctx, tx, b); err != nil {
			return err
		}
		result = ExpenseResult{Expense: e, Budget: b}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyIfExhausted(ctx, result.Budget)
	return &result, nil
}

// UpdateExpense 修改支出
// 金额变化量 delta = 新金额 - 原金额，剩余金额 - delta 不得为负
func (s *BudgetService) UpdateExpense(ctx context.Context, userID, budgetID, expenseID uint, patch ExpensePatch) (*ExpenseResult, error) {
	var (
		result ExpenseResult
		delta  decimal.Decimal
	)
	err := s.store.Transaction(ctx, func(tx Store) error {
		b, err := loadOwned(ctx, tx, userID, budgetID, true)
		if err != nil {
			return err
		}
		e, err := loadExpense(ctx, tx, b.ID, expenseID)
		if err != nil {
			return err
		}

		in := ExpenseInput{Description: e.Description, Amount: e.Amount, Date: e.Date}
		if patch.Description != nil {
			in.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Amount != nil {
			in.Amount = *patch.Amount
		}
		if patch.Date != nil {
			in.Date = *patch.Date
		}
		if err := Validate(in, ExpenseRules...); err != nil {
			return err
		}

		remaining, err := freshRemaining(ctx, tx, b)
		if err != nil {
			return err
		}
		delta = in.Amount.Sub(e.Amount)
		if remaining.Sub(delta).IsNegative() {
			return NewValidationError("amount", fmt.Sprintf("修改后的金额超出预算剩余金额（%s）", remaining.StringFixed(2)))
		}

		e.Description = in.Description
		e.Amount = in.Amount
		e.Date = in.Date
		if err := tx.SaveExpense(ctx, e); err != nil {
			return fmt.Errorf("保存支出失败: %w", err)
		}
		if _, err := Recompute(ctx, tx, b); err != nil {
			return err
		}
		result = ExpenseResult{Expense: e, Budget: b}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if delta.IsPositive() {
		s.notifyIfExhausted(ctx, result.Budget)
	}
	return &result, nil
}

// DeleteExpense 删除支出并重算所属预算，返回更新后的预算
func (s *BudgetService) DeleteExpense(ctx context.Context, userID, budgetID, expenseID uint) (*models.Budget, error) {
	var updated *models.Budget
	err := s.store.Transaction(ctx, func(tx Store) error {
		b, err := loadOwned(ctx, tx, userID, budgetID, true)
		if err != nil {
			return err
		}
		e, err := loadExpense(ctx, tx, b.ID, expenseID)
		if err != nil {
			return err
		}
		if err := tx.DeleteExpense(ctx, e); err != nil {
			return fmt.Errorf("删除支出失败: %w", err)
		}
		if _, err := Recompute(ctx, tx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// notifyIfExhausted 预算用尽时通知预算所有者，失败只记录日志
func (s *BudgetService) notifyIfExhausted(ctx context.Context, b *models.Budget) {
	if s.notifier == nil || b == nil || !b.Remaining.IsZero() {
		return
	}
	owner, err := s.store.GetUser(ctx, b.UserID)
	if err != nil {
		log.Printf("预算 %d 用尽提醒: 查询用户失败: %v", b.ID, err)
		return
	}
	if err := s.notifier.NotifyBudgetExhausted(ctx, owner, b); err != nil {
		log.Printf("预算 %d 用尽提醒发送失败: %v", b.ID, err)
	}
}
