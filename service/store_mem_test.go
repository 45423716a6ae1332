package service

import (
	"context"
	"sort"

	"budget/models"

	"github.com/shopspring/decimal"
)

// memStore 内存版 Store，事务失败时整体回滚
type memStore struct {
	users         map[uint]models.User
	budgets       map[uint]models.Budget
	expenses      map[uint]models.Expense
	nextBudgetID  uint
	nextExpenseID uint
	locked        []uint
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[uint]models.User{},
		budgets:  map[uint]models.Budget{},
		expenses: map[uint]models.Expense{},
	}
}

func (m *memStore) snapshot() *memStore {
	cp := newMemStore()
	for k, v := range m.users {
		cp.users[k] = v
	}
	for k, v := range m.budgets {
		cp.budgets[k] = v
	}
	for k, v := range m.expenses {
		cp.expenses[k] = v
	}
	cp.nextBudgetID = m.nextBudgetID
	cp.nextExpenseID = m.nextExpenseID
	return cp
}

func (m *memStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	backup := m.snapshot()
	if err := fn(m); err != nil {
		m.users, m.budgets, m.expenses = backup.users, backup.budgets, backup.expenses
		m.nextBudgetID, m.nextExpenseID = backup.nextBudgetID, backup.nextExpenseID
		return err
	}
	return nil
}

func (m *memStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *memStore) ListBudgets(ctx context.Context, userID uint) ([]models.Budget, error) {
	var list []models.Budget
	for _, b := range m.budgets {
		if b.UserID == userID {
			list = append(list, b)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (m *memStore) GetBudget(ctx context.Context, id uint) (*models.Budget, error) {
	b, ok := m.budgets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (m *memStore) LockBudget(ctx context.Context, id uint) (*models.Budget, error) {
	m.locked = append(m.locked, id)
	return m.GetBudget(ctx, id)
}

func (m *memStore) CreateBudget(ctx context.Context, b *models.Budget) error {
	m.nextBudgetID++
	b.ID = m.nextBudgetID
	m.budgets[b.ID] = *b
	return nil
}

func (m *memStore) SaveBudget(ctx context.Context, b *models.Budget) error {
	m.budgets[b.ID] = *b
	return nil
}

func (m *memStore) DeleteBudget(ctx context.Context, id uint) error {
	for eid, e := range m.expenses {
		if e.BudgetID == id {
			delete(m.expenses, eid)
		}
	}
	delete(m.budgets, id)
	return nil
}

func (m *memStore) SetRemaining(ctx context.Context, budgetID uint, remaining decimal.Decimal) error {
	b, ok := m.budgets[budgetID]
	if !ok {
		return ErrNotFound
	}
	b.Remaining = remaining
	m.budgets[budgetID] = b
	return nil
}

func (m *memStore) SumExpenses(ctx context.Context, budgetID uint) (decimal.Decimal, error) {
	list, _ := m.ListExpenses(ctx, budgetID)
	return models.SumAmounts(list), nil
}

func (m *memStore) ListExpenses(ctx context.Context, budgetID uint) ([]models.Expense, error) {
	var list []models.Expense
	for _, e := range m.expenses {
		if e.BudgetID == budgetID {
			list = append(list, e)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (m *memStore) GetExpense(ctx context.Context, budgetID, id uint) (*models.Expense, error) {
	e, ok := m.expenses[id]
	if !ok || e.BudgetID != budgetID {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (m *memStore) CreateExpense(ctx context.Context, e *models.Expense) error {
	m.nextExpenseID++
	e.ID = m.nextExpenseID
	m.expenses[e.ID] = *e
	return nil
}

func (m *memStore) SaveExpense(ctx context.Context, e *models.Expense) error {
	m.expenses[e.ID] = *e
	return nil
}

func (m *memStore) DeleteExpense(ctx context.Context, e *models.Expense) error {
	delete(m.expenses, e.ID)
	return nil
}

// stubNotifier 记录收到的通知
type stubNotifier struct {
	calls []uint
	err   error
}

func (n *stubNotifier) NotifyBudgetExhausted(ctx context.Context, owner *models.User, budget *models.Budget) error {
	n.calls = append(n.calls, budget.ID)
	return n.err
}
