package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DachengChen/sqlchat/db"
	"github.com/DachengChen/sqlchat/nl2sql"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockGenerator struct{ mock.Mock }

func (m *MockGenerator) GenerateSQL(ctx context.Context, schemaContext, question string) (string, error) {
	args := m.Called(ctx, schemaContext, question)
	return args.String(0), args.Error(1)
}

func (m *MockGenerator) Name() string { return "mock" }

type MockDatabase struct{ mock.Mock }

func (m *MockDatabase) Execute(ctx context.Context, sql string, maxRows int) (*db.Result, error) {
	args := m.Called(ctx, sql, maxRows)
	res, _ := args.Get(0).(*db.Result)
	return res, args.Error(1)
}

func (m *MockDatabase) SchemaContext(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/nl2sql/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestNL2SQLSuccess(t *testing.T) {
	gen := new(MockGenerator)
	database := new(MockDatabase)
	database.On("SchemaContext", mock.Anything).Return("Table users\n- id integer NOT NULL PK\n", nil)
	gen.On("GenerateSQL", mock.Anything, mock.Anything, "how many users?").
		Return("```sql\nSELECT count(*) AS n FROM users;\n```", nil)
	database.On("Execute", mock.Anything, "SELECT count(*) AS n FROM users", 50).
		Return(&db.Result{Columns: []string{"n"}, Rows: []map[string]any{{"n": 3}}}, nil)

	s := New(gen, database, Options{})
	rec, out := post(t, s.Handler(), `{"question":"how many users?"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SELECT count(*) AS n FROM users", out["sql"])
	assert.Equal(t, []any{"n"}, out["columns"])
	assert.Equal(t, []any{map[string]any{"n": float64(3)}}, out["rows"])
	assert.NotContains(t, out, "error")

	resp, err := nl2sql.Decode(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "success", nl2sql.Kind(resp))
	gen.AssertExpectations(t)
	database.AssertExpectations(t)
}

func TestNL2SQLQuestionRequired(t *testing.T) {
	s := New(new(MockGenerator), new(MockDatabase), Options{})

	for _, body := range []string{`{}`, `{"question":"   "}`} {
		rec, out := post(t, s.Handler(), body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "question required", out["error"])
	}
}

func TestNL2SQLInvalidBody(t *testing.T) {
	s := New(new(MockGenerator), new(MockDatabase), Options{})
	rec, out := post(t, s.Handler(), `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", out["error"])
}

func TestNL2SQLUnsafeSQL(t *testing.T) {
	gen := new(MockGenerator)
	database := new(MockDatabase)
	database.On("SchemaContext", mock.Anything).Return("", nil)
	gen.On("GenerateSQL", mock.Anything, mock.Anything, mock.Anything).Return("DELETE FROM users", nil)

	s := New(gen, database, Options{CacheTTL: time.Minute})
	rec, out := post(t, s.Handler(), `{"question":"remove everyone"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Generated query is not safe. Only SELECT statements are allowed.", out["error"])
	assert.Equal(t, "DELETE FROM users", out["sql"])
	database.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)

	// Rejected SQL is never cached.
	post(t, s.Handler(), `{"question":"remove everyone"}`)
	gen.AssertNumberOfCalls(t, "GenerateSQL", 2)
}

func TestNL2SQLProviderError(t *testing.T) {
	gen := new(MockGenerator)
	database := new(MockDatabase)
	database.On("SchemaContext", mock.Anything).Return("", nil)
	gen.On("GenerateSQL", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))

	s := New(gen, database, Options{})
	rec, out := post(t, s.Handler(), `{"question":"q"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "LLM provider error", out["error"])
	assert.Equal(t, "quota exceeded", out["detail"])
}

func TestNL2SQLDatabaseError(t *testing.T) {
	gen := new(MockGenerator)
	database := new(MockDatabase)
	database.On("SchemaContext", mock.Anything).Return("", nil)
	gen.On("GenerateSQL", mock.Anything, mock.Anything, mock.Anything).Return("SELECT nope FROM t", nil)
	database.On("Execute", mock.Anything, "SELECT nope FROM t", 5).Return(nil, errors.New(`column "nope" does not exist`))

	s := New(gen, database, Options{MaxRows: 5})
	rec, out := post(t, s.Handler(), `{"question":"q"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Database error", out["error"])
	assert.Equal(t, `column "nope" does not exist`, out["detail"])
	assert.Equal(t, "SELECT nope FROM t", out["sql"])

	resp, err := nl2sql.Decode(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "error", nl2sql.Kind(resp))
}

func TestNL2SQLSchemaError(t *testing.T) {
	database := new(MockDatabase)
	database.On("SchemaContext", mock.Anything).Return("", errors.New("connection refused"))

	s := New(new(MockGenerator), database, Options{})
	rec, out := post(t, s.Handler(), `{"question":"q"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Schema lookup failed", out["error"])
}

func TestNL2SQLCachesSQLAndSchema(t *testing.T) {
	gen := new(MockGenerator)
	database := new(MockDatabase)
	database.On("SchemaContext", mock.Anything).Return("Table t\n", nil).Once()
	gen.On("GenerateSQL", mock.Anything, "Table t\n", mock.Anything).Return("SELECT 1 AS one", nil).Once()
	database.On("Execute", mock.Anything, "SELECT 1 AS one", 50).
		Return(&db.Result{Columns: []string{"one"}, Rows: []map[string]any{{"one": 1}}}, nil)

	s := New(gen, database, Options{CacheTTL: time.Minute})
	rec1, _ := post(t, s.Handler(), `{"question":"Give me one"}`)
	rec2, _ := post(t, s.Handler(), `{"question":"  give   ME one "}`)

	assert.Equal(t, http.StatusOK, rec1.Code)
	assert.Equal(t, http.StatusOK, rec2.Code)
	gen.AssertNumberOfCalls(t, "GenerateSQL", 1)
	database.AssertNumberOfCalls(t, "SchemaContext", 1)
	database.AssertNumberOfCalls(t, "Execute", 2)
}

func TestNL2SQLDoesNotKeepFailedSQL(t *testing.T) {
	gen := new(MockGenerator)
	database := new(MockDatabase)
	database.On("SchemaContext", mock.Anything).Return("Table t\n", nil)
	gen.On("GenerateSQL", mock.Anything, mock.Anything, "list t").Return("SELECT missing FROM t", nil).Once()
	gen.On("GenerateSQL", mock.Anything, mock.Anything, "list t").Return("SELECT id FROM t", nil).Once()
	database.On("Execute", mock.Anything, "SELECT missing FROM t", 50).
		Return(nil, errors.New(`column "missing" does not exist`))
	database.On("Execute", mock.Anything, "SELECT id FROM t", 50).
		Return(&db.Result{Columns: []string{"id"}, Rows: []map[string]any{{"id": 1}}}, nil)

	s := New(gen, database, Options{CacheTTL: time.Minute})

	rec, out := post(t, s.Handler(), `{"question":"list t"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Database error", out["error"])

	rec, out = post(t, s.Handler(), `{"question":"list t"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SELECT id FROM t", out["sql"])

	// The working SQL is now cached.
	post(t, s.Handler(), `{"question":"list t"}`)
	gen.AssertNumberOfCalls(t, "GenerateSQL", 2)
	database.AssertNumberOfCalls(t, "Execute", 3)
}

func TestNL2SQLEvictsCachedSQLThatStopsWorking(t *testing.T) {
	gen := new(MockGenerator)
	database := new(MockDatabase)
	database.On("SchemaContext", mock.Anything).Return("", nil)
	gen.On("GenerateSQL", mock.Anything, mock.Anything, mock.Anything).Return("SELECT a FROM t", nil)
	database.On("Execute", mock.Anything, "SELECT a FROM t", 50).
		Return(&db.Result{Columns: []string{"a"}}, nil).Once()
	database.On("Execute", mock.Anything, "SELECT a FROM t", 50).
		Return(nil, errors.New(`column "a" does not exist`)).Once()
	database.On("Execute", mock.Anything, "SELECT a FROM t", 50).
		Return(&db.Result{Columns: []string{"a"}}, nil)

	s := New(gen, database, Options{CacheTTL: time.Minute})

	rec, _ := post(t, s.Handler(), `{"question":"q"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = post(t, s.Handler(), `{"question":"q"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	gen.AssertNumberOfCalls(t, "GenerateSQL", 1)

	post(t, s.Handler(), `{"question":"q"}`)
	gen.AssertNumberOfCalls(t, "GenerateSQL", 2)
}

func TestNL2SQLReportsRowCap(t *testing.T) {
	gen := new(MockGenerator)
	database := new(MockDatabase)
	database.On("SchemaContext", mock.Anything).Return("", nil)
	gen.On("GenerateSQL", mock.Anything, mock.Anything, mock.Anything).Return("SELECT n FROM big", nil)
	database.On("Execute", mock.Anything, "SELECT n FROM big", 2).
		Return(&db.Result{Columns: []string{"n"}, Rows: []map[string]any{{"n": 1}, {"n": 2}}, Truncated: true}, nil).Once()
	database.On("Execute", mock.Anything, "SELECT n FROM big", 2).
		Return(&db.Result{Columns: []string{"n"}, Rows: []map[string]any{{"n": 1}}}, nil).Once()

	s := New(gen, database, Options{MaxRows: 2})

	rec, _ := post(t, s.Handler(), `{"question":"all of big"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get(HeaderRowLimit))

	rec, _ = post(t, s.Handler(), `{"question":"all of big"}`)
	assert.Empty(t, rec.Header().Get(HeaderRowLimit))
}

func TestHealthAndCORS(t *testing.T) {
	s := New(new(MockGenerator), new(MockDatabase), Options{AllowedOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","provider":"mock"}`, rec.Body.String())
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSQLCacheKey(t *testing.T) {
	assert.Equal(t, sqlCacheKey("How  many\tusers"), sqlCacheKey("how many users"))
	assert.NotEqual(t, sqlCacheKey("users"), sqlCacheKey("orders"))
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := New(new(MockGenerator), new(MockDatabase), Options{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
