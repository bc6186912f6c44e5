package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/service"
	"github.com/noah-isme/registrar-api/pkg/response"
)

// RevisionHeader carries the store revision a list response was computed at.
const RevisionHeader = "X-Registry-Revision"

// listQuery reads the shared list parameters: search, sort, order, toggle,
// page (1-based) and limit.
func listQuery(c *gin.Context) models.ListQuery {
	q := models.ListQuery{
		Search:  strings.TrimSpace(c.Query("search")),
		SortKey: c.Query("sort"),
		SortDir: c.Query("order"),
		Toggle:  c.Query("toggle"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		q.Page = page
	}
	if size, err := strconv.Atoi(c.Query("limit")); err == nil {
		q.PageSize = size
	}
	return q
}

func respondList[T any](c *gin.Context, result *service.ListResult[T]) {
	c.Header(RevisionHeader, strconv.FormatUint(result.Revision, 10))
	response.JSON(c, http.StatusOK, result.Items, result.Pagination, map[string]interface{}{
		"sort":     result.Sort,
		"revision": result.Revision,
	})
}

// confirmed reports whether the caller acknowledged a cascade warning through
// the X-Confirm header or the confirm query parameter.
func confirmed(c *gin.Context) bool {
	for _, raw := range []string{c.GetHeader("X-Confirm"), c.Query("confirm")} {
		if ok, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil && ok {
			return true
		}
	}
	return false
}
