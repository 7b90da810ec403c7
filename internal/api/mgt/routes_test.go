package mgt

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/StoryBB/StoryBB-sub002/internal/core/config"
	"github.com/StoryBB/StoryBB-sub002/internal/middleware"
	"github.com/StoryBB/StoryBB-sub002/internal/model"
	"github.com/StoryBB/StoryBB-sub002/internal/service"
	"github.com/StoryBB/StoryBB-sub002/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jwtCfg = &config.JWTConfig{Secret: "mgt-test", Expiry: 300}

type apiResult struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
	Msg  string          `json:"msg"`
}

type apiEnv struct {
	fx     *testutil.Fixture
	router *gin.Engine
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fx := testutil.NewFixture(t)

	maint := config.DefaultMaintenance()
	maint.MinIncrement, maint.MaxIncrement = 1, 1
	svc := service.New(service.Deps{DB: fx.DB, Maintenance: maint, JobSecret: "jobs"})

	r := gin.New()
	g := r.Group("/api/mgt")
	g.Use(middleware.JWTMW(jwtCfg))
	RegisterRoutes(g, svc)
	return &apiEnv{fx: fx, router: r}
}

func (e *apiEnv) do(t *testing.T, a *model.Actor, method, path string, body interface{}) (int, apiResult) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if a != nil {
		token, err := middleware.GenerateToken(*a, jwtCfg)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var res apiResult
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	}
	return w.Code, res
}

var adminActor = &model.Actor{MemberID: 1, Name: "admin", IsAdmin: true}

func TestRoutes_RequireToken(t *testing.T) {
	e := newAPIEnv(t)
	code, _ := e.do(t, nil, http.MethodGet, "/api/mgt/boards/tree", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRoutes_BoardLifecycle(t *testing.T) {
	e := newAPIEnv(t)
	e.fx.Category(1, 1)
	parent := e.fx.Board(testutil.BoardSpec{Category: 1, Order: 1, Name: "Parent"})

	code, res := e.do(t, adminActor, http.MethodPost, "/api/mgt/boards", gin.H{
		"board_name":      "Child",
		"board_slug":      "child",
		"move_to":         "child",
		"target_category": 1,
		"target_board":    parent,
	})
	require.Equal(t, http.StatusOK, code, res.Msg)
	require.Equal(t, 0, res.Code, res.Msg)
	var created struct {
		ID int `json:"id_board"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &created))
	assert.Equal(t, parent, e.fx.Int("SELECT id_parent FROM boards WHERE id_board = ?", created.ID))

	code, res = e.do(t, adminActor, http.MethodGet, "/api/mgt/boards/tree", nil)
	require.Equal(t, http.StatusOK, code)
	var order []model.BoardOrderEntry
	require.NoError(t, json.Unmarshal(res.Data, &order))
	require.Len(t, order, 2)
	assert.Equal(t, parent, order[0].ID)
	assert.Equal(t, created.ID, order[1].ID)

	code, res = e.do(t, adminActor, http.MethodDelete, "/api/mgt/boards", gin.H{"boards": []int{parent}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 0, res.Code, res.Msg)
	assert.Equal(t, 0, e.fx.Int("SELECT COUNT(*) FROM boards"))
}

func TestRoutes_BadInput(t *testing.T) {
	e := newAPIEnv(t)
	code, _ := e.do(t, adminActor, http.MethodPut, "/api/mgt/boards/abc", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, adminActor, http.MethodDelete, "/api/mgt/boards", gin.H{"boards": []int{}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, adminActor, http.MethodPost, "/api/mgt/membergroups/5/members",
		gin.H{"members": []int{1}, "add_type": "sideways"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRoutes_Forbidden(t *testing.T) {
	e := newAPIEnv(t)
	mod := &model.Actor{MemberID: 9, Name: "mod", Permissions: map[string]bool{model.PermRemoveAny: true}}

	code, _ := e.do(t, mod, http.MethodPost, "/api/mgt/boards/reorder", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = e.do(t, mod, http.MethodPost, "/api/mgt/maintenance/recount", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = e.do(t, mod, http.MethodDelete, "/api/mgt/membergroups", gin.H{"groups": []int{5}})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRoutes_ProtectedGroup(t *testing.T) {
	e := newAPIEnv(t)
	code, res := e.do(t, adminActor, http.MethodDelete, "/api/mgt/membergroups", gin.H{"groups": []int{model.GroupAdministrator}})
	assert.Equal(t, http.StatusOK, code)
	assert.NotEqual(t, 0, res.Code)
	assert.Equal(t, 1, e.fx.Int("SELECT COUNT(*) FROM membergroups WHERE id_group = ?", model.GroupAdministrator))
}

func TestRoutes_RemoveFromProtectedGroup(t *testing.T) {
	e := newAPIEnv(t)
	e.fx.Group(8, "Staff", false, model.GroupTypeProtected)
	e.fx.Member(10, "M", 0, "8")
	mod := &model.Actor{MemberID: 9, Name: "mod", Permissions: map[string]bool{model.PermManageMembergroups: true}}

	code, res := e.do(t, mod, http.MethodDelete, "/api/mgt/membergroups/members", gin.H{"members": []int{10}, "groups": []int{8}})
	assert.Equal(t, http.StatusOK, code)
	assert.NotEqual(t, 0, res.Code)
	assert.Equal(t, "8", e.fx.String("SELECT additional_groups FROM members WHERE id_member = 10"))
}

func TestRoutes_RecountUntilDone(t *testing.T) {
	e := newAPIEnv(t)
	e.fx.Category(1, 1)
	b := e.fx.Board(testutil.BoardSpec{Category: 1, Order: 1})
	e.fx.Topic(b, 1, testutil.Approved(3)...)
	e.fx.Topic(b, 1, testutil.Approved(1)...)
	e.fx.Exec("UPDATE boards SET num_posts = 0, num_topics = 0")

	token := ""
	for i := 0; i < 100; i++ {
		code, res := e.do(t, adminActor, http.MethodPost, "/api/mgt/maintenance/recount", gin.H{"token": token})
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, 0, res.Code, res.Msg)
		var cont service.Continuation
		require.NoError(t, json.Unmarshal(res.Data, &cont))
		if cont.Done {
			assert.Equal(t, 100, cont.Percent)
			break
		}
		require.NotEmpty(t, cont.Token)
		token = cont.Token
	}

	assert.Equal(t, 4, e.fx.Int("SELECT num_posts FROM boards WHERE id_board = ?", b))
	assert.Equal(t, 2, e.fx.Int("SELECT num_topics FROM boards WHERE id_board = ?", b))

	code, res := e.do(t, adminActor, http.MethodPost, "/api/mgt/maintenance/recount", gin.H{"token": "garbage"})
	assert.Equal(t, http.StatusOK, code)
	assert.NotEqual(t, 0, res.Code)
}

func TestRoutes_RemoveAndRestoreTopic(t *testing.T) {
	e := newAPIEnv(t)
	e.fx.Category(1, 1)
	b := e.fx.Board(testutil.BoardSpec{Category: 1, Order: 1})
	tp := e.fx.Topic(b, 1, testutil.Approved(2)...)

	code, res := e.do(t, adminActor, http.MethodDelete, "/api/mgt/topics", gin.H{"topics": []int{tp.ID}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 0, res.Code, res.Msg)
	assert.NotEqual(t, model.NotDeleted, e.fx.Int("SELECT deleted FROM topics WHERE id_topic = ?", tp.ID))

	code, res = e.do(t, adminActor, http.MethodPost, "/api/mgt/topics/restore", gin.H{"topics": []int{tp.ID}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 0, res.Code, res.Msg)
	assert.Equal(t, 0, e.fx.Int("SELECT deleted FROM topics WHERE id_topic = ?", tp.ID))
}

func TestRoutes_AddCharactersRejectsGroups(t *testing.T) {
	e := newAPIEnv(t)
	e.fx.Group(30, "Knights", true, 0)
	e.fx.Member(5, "Poster", 0, "")
	e.fx.Character(50, 5, "Alter", 0, "")

	code, _ := e.do(t, adminActor, http.MethodPost, "/api/mgt/membergroups/30/characters",
		gin.H{"characters": []int{50}, "groups": []int{31}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "", e.fx.String("SELECT char_groups FROM characters WHERE id_character = 50"))

	code, _ = e.do(t, adminActor, http.MethodPost, "/api/mgt/membergroups/30/characters", gin.H{"characters": []int{}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, res := e.do(t, adminActor, http.MethodPost, "/api/mgt/membergroups/30/characters", gin.H{"characters": []int{50}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 0, res.Code, res.Msg)
	assert.Equal(t, "30", e.fx.String("SELECT char_groups FROM characters WHERE id_character = 50"))
}
