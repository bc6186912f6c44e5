package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/registrar-api/internal/models"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
	"github.com/noah-isme/registrar-api/pkg/middleware/requestid"
)

func serve(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.GET("/", h)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var body map[string]json.RawMessage
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestJSONWithPagination(t *testing.T) {
	rec, body := serve(t, func(c *gin.Context) {
		JSON(c, http.StatusOK, []string{"a"}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1, PageCount: 1},
			map[string]interface{}{"revision": 3})
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.JSONEq(t, `["a"]`, string(body["data"]))
	assert.JSONEq(t, `{"page":1,"page_size":20,"total_count":1,"page_count":1}`, string(body["pagination"]))
	assert.JSONEq(t, `{"revision":3}`, string(body["meta"]))
}

func TestErrorEchoesRequestID(t *testing.T) {
	rec, body := serve(t, func(c *gin.Context) {
		Error(c, appErrors.Constraint("DUPLICATE_EMAIL", "a student with this email already exists"))
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"code":"DUPLICATE_EMAIL","message":"a student with this email already exists","status":409}`, string(body["error"]))
	assert.JSONEq(t, `{"request_id":"req-1"}`, string(body["meta"]))
}

func TestErrorRecordsServerFailures(t *testing.T) {
	var recorded int
	rec, body := serve(t, func(c *gin.Context) {
		Error(c, errors.New("disk on fire"))
		recorded = len(c.Errors)
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, recorded)
	assert.Contains(t, string(body["error"]), "INTERNAL_ERROR")
}

func TestNoContent(t *testing.T) {
	rec, _ := serve(t, NoContent)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
