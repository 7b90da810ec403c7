package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/StoryBB/StoryBB-sub002/internal/model"
	"github.com/StoryBB/StoryBB-sub002/internal/service"
	"github.com/StoryBB/StoryBB-sub002/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) (*gin.Engine, *testutil.Fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fx := testutil.NewFixture(t)
	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), service.New(service.Deps{DB: fx.DB}))
	return r, fx
}

func get(t *testing.T, r *gin.Engine, path string, data interface{}) int {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	if data != nil && w.Code == http.StatusOK {
		var res struct {
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.NoError(t, json.Unmarshal(res.Data, data))
	}
	return w.Code
}

func TestBoardIndex(t *testing.T) {
	r, fx := newRouter(t)
	fx.Category(1, 1)
	top := fx.Board(testutil.BoardSpec{Category: 1, Order: 1, Name: "Top"})
	child := fx.Board(testutil.BoardSpec{Category: 1, Parent: top, Level: 1, Order: 2, Name: "Child"})
	fx.Board(testutil.BoardSpec{Category: 1, Order: 3, Name: "Other"})

	var list []model.BoardOrderEntry
	require.Equal(t, http.StatusOK, get(t, r, "/api/v1/boards", &list))
	assert.Len(t, list, 3)

	var one struct {
		Board    model.BoardOrderEntry   `json:"board"`
		Children []model.BoardOrderEntry `json:"children"`
	}
	require.Equal(t, http.StatusOK, get(t, r, "/api/v1/board/"+strconv.Itoa(top), &one))
	assert.Equal(t, "Top", one.Board.Name)
	require.Len(t, one.Children, 1)
	assert.Equal(t, child, one.Children[0].ID)

	assert.Equal(t, http.StatusNotFound, get(t, r, "/api/v1/board/999", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, r, "/api/v1/board/x", nil))
}

func TestStats(t *testing.T) {
	r, fx := newRouter(t)
	fx.Exec("INSERT INTO settings (variable, value) VALUES ('totalTopics', '4')")

	var totals map[string]int
	require.Equal(t, http.StatusOK, get(t, r, "/api/v1/stats", &totals))
	assert.Equal(t, 4, totals["totalTopics"])
	assert.Equal(t, 0, totals["totalMessages"])
}
