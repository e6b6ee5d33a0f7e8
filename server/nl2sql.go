package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/DachengChen/sqlchat/applog"
	"github.com/DachengChen/sqlchat/nl2sql"
	"github.com/DachengChen/sqlchat/sqlguard"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

const (
	msgQuestionRequired = "question required"
	msgInvalidBody      = "invalid request body"
	msgSchemaFailed     = "Schema lookup failed"
	msgProviderFailed   = "LLM provider error"
	msgUnsafeSQL        = "Generated query is not safe. Only SELECT statements are allowed."
	msgDatabaseFailed   = "Database error"

	schemaCacheKey = "schema"
)

// HeaderRowLimit is set on a success response whose rows were cut at the
// server's max_rows; its value is the cap.
const HeaderRowLimit = "X-Row-Limit"

type nl2sqlRequest struct {
	Question string `json:"question"`
}

func (s *Server) nl2sql(c *gin.Context) {
	var req nl2sqlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		reply(c, http.StatusBadRequest, &nl2sql.BackendError{Error: msgInvalidBody, Detail: err.Error()})
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		reply(c, http.StatusBadRequest, &nl2sql.BackendError{Error: msgQuestionRequired})
		return
	}

	ctx := c.Request.Context()

	schemaContext, err := s.schemaContext(c)
	if err != nil {
		applog.Error("server: schema lookup: %v", err)
		reply(c, http.StatusInternalServerError, &nl2sql.BackendError{Error: msgSchemaFailed, Detail: err.Error()})
		return
	}

	sql, cached := s.cachedSQL(question)
	if !cached {
		raw, err := s.gen.GenerateSQL(ctx, schemaContext, question)
		if err != nil {
			reply(c, http.StatusInternalServerError, &nl2sql.BackendError{Error: msgProviderFailed, Detail: err.Error()})
			return
		}
		sql = sqlguard.Clean(raw)
	}

	if err := sqlguard.Check(sql); err != nil {
		reply(c, http.StatusBadRequest, &nl2sql.BackendError{Error: msgUnsafeSQL, Detail: unwrapDetail(err), SQL: sql})
		return
	}

	result, err := s.db.Execute(ctx, sql, s.maxRows)
	if err != nil {
		if cached {
			s.cache.Delete(sqlCacheKey(question))
		}
		reply(c, http.StatusBadRequest, &nl2sql.BackendError{Error: msgDatabaseFailed, Detail: err.Error(), SQL: sql})
		return
	}
	// Cache only SQL that executed.
	if !cached && s.cache != nil {
		s.cache.Set(sqlCacheKey(question), sql, cache.DefaultExpiration)
	}
	if result.Truncated {
		c.Header(HeaderRowLimit, strconv.Itoa(s.maxRows))
		applog.Event("server", "result for %q capped at %d rows", question, s.maxRows)
	}

	rows := make([]nl2sql.Row, len(result.Rows))
	for i, r := range result.Rows {
		rows[i] = nl2sql.Row(r)
	}
	reply(c, http.StatusOK, &nl2sql.Success{SQL: sql, Columns: result.Columns, Rows: rows})
}

func (s *Server) schemaContext(c *gin.Context) (string, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(schemaCacheKey); ok {
			return v.(string), nil
		}
	}
	sc, err := s.db.SchemaContext(c.Request.Context())
	if err != nil {
		return "", err
	}
	if s.cache != nil {
		s.cache.Set(schemaCacheKey, sc, cache.DefaultExpiration)
	}
	return sc, nil
}

func (s *Server) cachedSQL(question string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	v, ok := s.cache.Get(sqlCacheKey(question))
	if !ok {
		return "", false
	}
	return v.(string), true
}

// sqlCacheKey folds case and whitespace so trivially different phrasings
// of the same question share an entry.
func sqlCacheKey(question string) string {
	return "sql:" + strings.Join(strings.Fields(strings.ToLower(question)), " ")
}

func unwrapDetail(err error) string {
	if errors.Is(err, sqlguard.ErrUnsafeSQL) {
		return strings.TrimPrefix(err.Error(), sqlguard.ErrUnsafeSQL.Error()+": ")
	}
	return err.Error()
}

func reply(c *gin.Context, status int, resp nl2sql.Response) {
	c.JSON(status, resp)
}
