package database

import (
	"context"
	"errors"

	"budget/models"
	"budget/service"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BudgetStore 基于 GORM 的 service.Store 实现
type BudgetStore struct {
	db       *gorm.DB
	lockRows bool
}

// NewBudgetStore 创建存储，lockRows 为 true 时 LockBudget 使用 SELECT ... FOR UPDATE
func NewBudgetStore(db *gorm.DB, lockRows bool) *BudgetStore {
	return &BudgetStore{db: db, lockRows: lockRows}
}

var _ service.Store = (*BudgetStore)(nil)

func (s *BudgetStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// notFound 将 gorm.ErrRecordNotFound 转为 service.ErrNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return service.ErrNotFound
	}
	return err
}

// Transaction 在事务中执行 fn
func (s *BudgetStore) Transaction(ctx context.Context, fn func(tx service.Store) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&BudgetStore{db: tx, lockRows: s.lockRows})
	})
}

func (s *BudgetStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *BudgetStore) ListBudgets(ctx context.Context, userID uint) ([]models.Budget, error) {
	var list []models.Budget
	if err := s.conn(ctx).Where("user_id = ?", userID).Order("id").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (s *BudgetStore) GetBudget(ctx context.Context, id uint) (*models.Budget, error) {
	var b models.Budget
	if err := s.conn(ctx).First(&b, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// LockBudget 读取预算并锁定该行，需在事务中调用
func (s *BudgetStore) LockBudget(ctx context.Context, id uint) (*models.Budget, error) {
	q := s.conn(ctx)
	if s.lockRows {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var b models.Budget
	if err := q.First(&b, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (s *BudgetStore) CreateBudget(ctx context.Context, b *models.Budget) error {
	return s.conn(ctx).Create(b).Error
}

func (s *BudgetStore) SaveBudget(ctx context.Context, b *models.Budget) error {
	return s.conn(ctx).Model(b).Select("name", "start_date", "end_date", "total", "remaining").Updates(b).Error
}

// DeleteBudget 先删支出再删预算，不依赖数据库的级联约束
func (s *BudgetStore) DeleteBudget(ctx context.Context, id uint) error {
	db := s.conn(ctx)
	if err := db.Where("budget_id = ?", id).Delete(&models.Expense{}).Error; err != nil {
		return err
	}
	return db.Delete(&models.Budget{}, id).Error
}

func (s *BudgetStore) SetRemaining(ctx context.Context, budgetID uint, remaining decimal.Decimal) error {
	return s.conn(ctx).Model(&models.Budget{}).Where("id = ?", budgetID).Update("remaining", remaining).Error
}

// SumExpenses 预算下全部支出金额之和，无支出时为 0
func (s *BudgetStore) SumExpenses(ctx context.Context, budgetID uint) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := s.conn(ctx).Model(&models.Expense{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("budget_id = ?", budgetID).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

func (s *BudgetStore) ListExpenses(ctx context.Context, budgetID uint) ([]models.Expense, error) {
	var list []models.Expense
	if err := s.conn(ctx).Where("budget_id = ?", budgetID).Order("id").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// GetExpense 按预算范围查找支出，其他预算下的支出视为不存在
func (s *BudgetStore) GetExpense(ctx context.Context, budgetID, id uint) (*models.Expense, error) {
	var e models.Expense
	if err := s.conn(ctx).Where("budget_id = ?", budgetID).First(&e, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (s *BudgetStore) CreateExpense(ctx context.Context, e *models.Expense) error {
	return s.conn(ctx).Create(e).Error
}

func (s *BudgetStore) SaveExpense(ctx context.Context, e *models.Expense) error {
	return s.conn(ctx).Model(e).Select("description", "amount", "date").Updates(e).Error
}

func (s *BudgetStore) DeleteExpense(ctx context.Context, e *models.Expense) error {
	return s.conn(ctx).Delete(e).Error
}
