package service

import (
	"context"

	"budget/models"

	"github.com/shopspring/decimal"
)

// Store 预算与支出的持久化接口
// 找不到记录时返回 ErrNotFound
type Store interface {
	// Transaction 在同一事务中执行 fn，fn 返回错误则回滚
	Transaction(ctx context.Context, fn func(tx Store) error) error

	GetUser(ctx context.Context, id uint) (*models.User, error)

	ListBudgets(ctx context.Context, userID uint) ([]models.Budget, error)
	GetBudget(ctx context.Context, id uint) (*models.Budget, error)
	// LockBudget 读取预算，并在开启串行写入时锁定该行直到事务结束
	LockBudget(ctx context.Context, id uint) (*models.Budget, error)
	CreateBudget(ctx context.Context, b *models.Budget) error
	SaveBudget(ctx context.Context, b *models.Budget) error
	// DeleteBudget 删除预算及其全部支出
	DeleteBudget(ctx context.Context, id uint) error
	SetRemaining(ctx context.Context, budgetID uint, remaining decimal.Decimal) error

	SumExpenses(ctx context.Context, budgetID uint) (decimal.Decimal, error)
	ListExpenses(ctx context.Context, budgetID uint) ([]models.Expense, error)
	GetExpense(ctx context.Context, budgetID, id uint) (*models.Expense, error)
	CreateExpense(ctx context.Context, e *models.Expense) error
	SaveExpense(ctx context.Context, e *models.Expense) error
	DeleteExpense(ctx context.Context, e *models.Expense) error
}

// Notifier 预算事件通知
type Notifier interface {
	NotifyBudgetExhausted(ctx context.Context, owner *models.User, budget *models.Budget) error
}
