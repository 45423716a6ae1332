package api

import (
	"bytes"
	"net/http/httptest"
	"testing"
	"time"

	"budget/database"
	"budget/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setUserIDMiddleware(userID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	}
}

// newBudgetRouter 以 sqlmock 数据库组装预算相关路由
func newBudgetRouter(userID uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewBudgetService(database.NewBudgetStore(database.DB, true), nil)
	budgets := NewBudgetHandler(svc)
	expenses := NewExpenseHandler(svc)
	exports := NewExportHandler(svc)

	r := gin.New()
	r.Use(setUserIDMiddleware(userID))
	r.POST("/budgets", budgets.Create)
	r.GET("/budgets", budgets.List)
	r.GET("/budgets/:id", budgets.Get)
	r.PUT("/budgets/:id", budgets.Update)
	r.PATCH("/budgets/:id", budgets.Patch)
	r.DELETE("/budgets/:id", budgets.Delete)
	r.GET("/budgets/:id/summary", budgets.Summary)
	r.GET("/budgets/:id/expenses", expenses.List)
	r.POST("/budgets/:id/expenses", expenses.Create)
	r.GET("/budgets/:id/expenses/:eid", expenses.Get)
	r.PUT("/budgets/:id/expenses/:eid", expenses.Update)
	r.PATCH("/budgets/:id/expenses/:eid", expenses.Patch)
	r.DELETE("/budgets/:id/expenses/:eid", expenses.Delete)
	r.GET("/budgets/:id/export/csv", exports.ExportCSV)
	r.GET("/budgets/:id/export/excel", exports.ExportExcel)
	return r
}

var (
	budgetColumns  = []string{"id", "user_id", "name", "start_date", "end_date", "total", "remaining", "created_at", "updated_at"}
	expenseColumns = []string{"id", "budget_id", "description", "amount", "date", "created_at", "updated_at"}
)

func budgetRows(id, userID uint, total, remaining string) *sqlmock.Rows {
	return sqlmock.NewRows(budgetColumns).
		AddRow(id, userID, "一月", "2024-01-01", "2024-01-31", total, remaining, time.Now(), time.Now())
}

func sumRows(total string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"total"}).AddRow(total)
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestBudgetHandler_Create(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `budgets`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// 客户端提交的 remaining 被忽略
	body := `{"name":"一月","start_date":"2024-01-01","end_date":"2024-01-31","total":"500.00","remaining":"1"}`
	w := doRequest(newBudgetRouter(1), "POST", "/budgets", body)

	assert.Equal(t, 201, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, "创建成功", resp["message"])
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["id"])
	assert.Equal(t, "500", data["remaining"])
	assert.Equal(t, "2024-01-31", data["end_date"])
	assert.NotContains(t, data, "user_id")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetHandler_Create_Invalid(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	tests := []struct {
		body  string
		field string
	}{
		{`{"name":"一月","start_date":"2024-01-01","end_date":"2024-01-31","total":"99.99"}`, "total"},
		{`{"name":"一月","start_date":"2024-01-10","end_date":"2024-01-09","total":"100"}`, "end_date"},
		{`{"name":"  ","start_date":"2024-01-01","end_date":"2024-01-31","total":"100"}`, "name"},
		{`{"name":"一月","start_date":"2024/01/01","end_date":"2024-01-31","total":"100"}`, "start_date"},
		{`{"name":"一月","end_date":"2024-01-31"}`, "total"},
	}
	router := newBudgetRouter(1)
	for _, tt := range tests {
		w := doRequest(router, "POST", "/budgets", tt.body)
		require.Equal(t, 400, w.Code, tt.body)
		data := decodeResponse(t, w)["data"].(map[string]interface{})
		assert.Equal(t, tt.field, data["field"], tt.body)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetHandler_List(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT \\* FROM `budgets` WHERE user_id = \\?").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(budgetColumns))

	w := doRequest(newBudgetRouter(1), "GET", "/budgets", "")

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, []interface{}{}, decodeResponse(t, w)["data"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetHandler_Get_ForbiddenAndNotFound(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT \\* FROM `budgets`").
		WillReturnRows(budgetRows(1, 2, "500.00", "500.00"))
	mock.ExpectQuery("SELECT \\* FROM `budgets`").
		WillReturnRows(sqlmock.NewRows(budgetColumns))

	router := newBudgetRouter(1)
	assert.Equal(t, 403, doRequest(router, "GET", "/budgets/1", "").Code)
	assert.Equal(t, 404, doRequest(router, "GET", "/budgets/9", "").Code)
	assert.Equal(t, 400, doRequest(router, "GET", "/budgets/abc", "").Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetHandler_Update_PutRequiresAllFields(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT \\* FROM `budgets`").
		WillReturnRows(budgetRows(1, 1, "500.00", "500.00"))

	w := doRequest(newBudgetRouter(1), "PUT", "/budgets/1", `{"name":"二月"}`)

	assert.Equal(t, 400, w.Code)
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "start_date", data["field"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetHandler_Patch_TotalBelowSpent(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT \\* FROM `budgets`").
		WillReturnRows(budgetRows(1, 1, "500.00", "200.00"))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `budgets` .* FOR UPDATE").
		WillReturnRows(budgetRows(1, 1, "500.00", "200.00"))
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\)").
		WillReturnRows(sumRows("300.00"))
	mock.ExpectRollback()

	w := doRequest(newBudgetRouter(1), "PATCH", "/budgets/1", `{"total":"250"}`)

	assert.Equal(t, 400, w.Code)
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "total", data["field"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetHandler_Delete(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `budgets` .* FOR UPDATE").
		WillReturnRows(budgetRows(1, 1, "500.00", "500.00"))
	mock.ExpectExec("DELETE FROM `expenses`").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM `budgets`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := doRequest(newBudgetRouter(1), "DELETE", "/budgets/1", "")

	assert.Equal(t, 204, w.Code)
	assert.Empty(t, w.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetHandler_Summary(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `budgets` .* FOR UPDATE").
		WillReturnRows(budgetRows(1, 1, "500.00", "500.00"))
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\)").
		WillReturnRows(sumRows("500.00"))
	mock.ExpectExec("UPDATE `budgets` SET `remaining`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT \\* FROM `expenses`").
		WillReturnRows(sqlmock.NewRows(expenseColumns).
			AddRow(1, 1, "房租", "200.00", "2024-01-05", time.Now(), time.Now()).
			AddRow(2, 1, "家电", "300.00", "2024-01-05", time.Now(), time.Now()))
	mock.ExpectCommit()

	w := doRequest(newBudgetRouter(1), "GET", "/budgets/1/summary", "")

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `"by_date":{"2024-01-05":500.00}`)
	data := decodeResponse(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(500), data["spent"])
	assert.Equal(t, float64(0), data["remaining"])
	assert.Equal(t, "2024-01-01 a 2024-01-31", data["date_range"])
	require.NoError(t, mock.ExpectationsWereMet())
}
