package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/franciscosanchezn/foodgram-api/internal/config"
	"github.com/franciscosanchezn/foodgram-api/internal/database"
	"github.com/franciscosanchezn/foodgram-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testAPI struct {
	t      *testing.T
	engine *gin.Engine
	db     *gorm.DB
}

func testConfig() *config.Config {
	return &config.Config{
		Environment:           "test",
		JWTSecret:             "test-jwt-secret-key-32-characters",
		TokenTTLHours:         1,
		OAuthClientID:         "foodgram-web",
		OAuthClientSecret:     "web-secret",
		LoginRatePerMinute:    1000,
		CORSAllowedOrigins:    []string{"*"},
		PageSize:              2,
		MaxPageSize:           10,
		RecipesPreviewLimit:   3,
		AllowSelfSubscription: true,
	}
}

func setupAPI(t *testing.T, cfg *config.Config) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.InitDatabase(database.DatabaseConfig{Driver: "sqlite", Path: ":memory:", MaxRetries: 1})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.SeedReferenceData(db))
	require.NoError(t, database.EnsureOAuthClient(db, cfg.OAuthClientID, cfg.OAuthClientSecret, ""))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	srv, err := New(cfg, db, prometheus.NewRegistry())
	require.NoError(t, err)
	return &testAPI{t: t, engine: srv.Engine, db: db}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// signUp registers a user and returns the id and an auth token
func (a *testAPI) signUp(username string) (uint, string) {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/users", "", map[string]string{
		"email":      username + "@example.com",
		"username":   username,
		"first_name": "Test",
		"last_name":  "User",
		"password":   "password123",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[map[string]any](a.t, w)

	return uint(created["id"].(float64)), a.login(username+"@example.com", "password123")
}

func (a *testAPI) login(email, password string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/auth/token/login", "", map[string]string{"email": email, "password": password})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	return decode[map[string]string](a.t, w)["auth_token"]
}

func (a *testAPI) ingredient(name string) uint {
	a.t.Helper()
	var ingredient models.Ingredient
	require.NoError(a.t, a.db.Where("name = ?", name).First(&ingredient).Error)
	return ingredient.ID
}

func (a *testAPI) tag(slug string) uint {
	a.t.Helper()
	var tag models.Tag
	require.NoError(a.t, a.db.Where("slug = ?", slug).First(&tag).Error)
	return tag.ID
}

type line struct {
	ID     uint `json:"id"`
	Amount int  `json:"amount"`
}

func (a *testAPI) recipeBody(name string, lines ...line) map[string]any {
	return map[string]any{
		"name":         name,
		"text":         "Mix and bake.",
		"cooking_time": 20,
		"ingredients":  lines,
		"tags":         []uint{a.tag("breakfast")},
	}
}

func (a *testAPI) createRecipe(token, name string, lines ...line) uint {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/recipes", token, a.recipeBody(name, lines...))
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return uint(decode[map[string]any](a.t, w)["id"].(float64))
}

func TestHealthAndMetrics(t *testing.T) {
	api := setupAPI(t, testConfig())

	w := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = api.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "foodgram_http_requests_total")
}

func TestAccountFlow(t *testing.T) {
	api := setupAPI(t, testConfig())
	id, token := api.signUp("alice")

	w := api.do(http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[map[string]any](t, w)
	assert.Equal(t, float64(id), me["id"])
	assert.Equal(t, "alice", me["username"])
	assert.Equal(t, false, me["is_subscribed"])
	assert.NotContains(t, me, "password")

	t.Run("duplicate email and reserved username", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/users", "", map[string]string{
			"email": "alice@example.com", "username": "alice2", "first_name": "A", "last_name": "B", "password": "password123",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode[models.APIError](t, w).Details, "email")

		w = api.do(http.MethodPost, "/api/users", "", map[string]string{
			"email": "me@example.com", "username": "me", "first_name": "A", "last_name": "B", "password": "password123",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode[models.APIError](t, w).Details, "username")
	})

	t.Run("wrong password", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/auth/token/login", "", map[string]string{"email": "alice@example.com", "password": "nope"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, models.ErrInvalidCredentials, decode[models.APIError](t, w).Code)
	})

	t.Run("set password", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/users/set_password", token, map[string]string{"current_password": "wrong", "new_password": "newpassword1"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode[models.APIError](t, w).Details, "current_password")

		w = api.do(http.MethodPost, "/api/users/set_password", token, map[string]string{"current_password": "password123", "new_password": "newpassword1"})
		assert.Equal(t, http.StatusNoContent, w.Code)
		api.login("alice@example.com", "newpassword1")
	})

	t.Run("logout revokes the token", func(t *testing.T) {
		w := api.do(http.MethodPost, "/api/auth/token/logout", token, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = api.do(http.MethodGet, "/api/users/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("anonymous access to protected routes", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/users/me", "", nil).Code)
		assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/api/recipes", "", api.recipeBody("x")).Code)
		assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/recipes/download_shopping_cart", "", nil).Code)
	})
}

func TestRecipeValidation(t *testing.T) {
	api := setupAPI(t, testConfig())
	_, token := api.signUp("cook")
	flour := api.ingredient("flour")
	sugar := api.ingredient("sugar")

	testCases := []struct {
		name  string
		lines []line
		field string
	}{
		{"empty ingredient list", []line{}, "ingredients"},
		{"repeated ingredient", []line{{flour, 100}, {flour, 200}}, "ingredients"},
		{"zero amount", []line{{flour, 0}}, "amount"},
		{"negative amount", []line{{flour, 10}, {sugar, -5}}, "amount"},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(http.MethodPost, "/api/recipes", token, api.recipeBody("Cake", tt.lines...))
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			apiErr := decode[models.APIError](t, w)
			assert.Equal(t, models.ErrValidationFailed, apiErr.Code)
			assert.Contains(t, apiErr.Details, tt.field)
		})
	}

	t.Run("all violations are reported together", func(t *testing.T) {
		body := api.recipeBody("", line{flour, 0})
		body["cooking_time"] = -1
		w := api.do(http.MethodPost, "/api/recipes", token, body)
		require.Equal(t, http.StatusBadRequest, w.Code)
		details := decode[models.APIError](t, w).Details
		assert.Contains(t, details, "name")
		assert.Contains(t, details, "amount")
		assert.Contains(t, details, "cooking_time")
	})

	t.Run("same name twice by the same author", func(t *testing.T) {
		api.createRecipe(token, "Pancakes", line{flour, 100})
		w := api.do(http.MethodPost, "/api/recipes", token, api.recipeBody("Pancakes", line{flour, 100}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode[models.APIError](t, w).Details, "name")
	})
}

func TestRecipeLifecycle(t *testing.T) {
	api := setupAPI(t, testConfig())
	_, owner := api.signUp("owner")
	_, other := api.signUp("other")
	flour := api.ingredient("flour")
	milk := api.ingredient("milk")

	id := api.createRecipe(owner, "Crepes", line{flour, 100})
	path := fmt.Sprintf("/api/recipes/%d", id)
	api.createRecipe(other, "Crepes", line{flour, 50})

	w := api.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	recipe := decode[map[string]any](t, w)
	assert.Equal(t, "Crepes", recipe["name"])
	assert.Equal(t, false, recipe["is_favorited"])
	assert.Equal(t, false, recipe["is_in_shopping_cart"])
	assert.Equal(t, "owner", recipe["author"].(map[string]any)["username"])

	t.Run("patch replaces ingredients and keeps absent fields", func(t *testing.T) {
		w := api.do(http.MethodPatch, path, owner, map[string]any{"ingredients": []line{{milk, 250}}})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		updated := decode[map[string]any](t, w)
		assert.Equal(t, "Crepes", updated["name"])
		ingredients := updated["ingredients"].([]any)
		require.Len(t, ingredients, 1)
		assert.Equal(t, "milk", ingredients[0].(map[string]any)["name"])
		assert.Equal(t, float64(250), ingredients[0].(map[string]any)["amount"])
	})

	t.Run("only the author may modify", func(t *testing.T) {
		w := api.do(http.MethodPatch, path, other, map[string]any{"name": "Stolen"})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, http.StatusForbidden, api.do(http.MethodDelete, path, other, nil).Code)
	})

	t.Run("missing and malformed ids", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/recipes/9999", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, models.ErrRecipeNotFound, decode[models.APIError](t, w).Code)
		assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/recipes/abc", "", nil).Code)
	})

	t.Run("author and tag filters", func(t *testing.T) {
		w := api.do(http.MethodGet, "/api/recipes?tags=breakfast&tags=dinner", "", nil)
		assert.Equal(t, float64(2), decode[map[string]any](t, w)["count"])
		w = api.do(http.MethodGet, "/api/recipes?tags=lunch", "", nil)
		assert.Equal(t, float64(0), decode[map[string]any](t, w)["count"])
	})

	w = api.do(http.MethodDelete, path, owner, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, path, "", nil).Code)
}

func TestPagination(t *testing.T) {
	api := setupAPI(t, testConfig())
	_, token := api.signUp("baker")
	flour := api.ingredient("flour")
	for i := 1; i <= 3; i++ {
		api.createRecipe(token, fmt.Sprintf("Bread %d", i), line{flour, 100 * i})
	}

	w := api.do(http.MethodGet, "/api/recipes", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decode[map[string]any](t, w)
	assert.Equal(t, float64(3), first["count"])
	assert.Len(t, first["results"], 2)
	assert.Nil(t, first["previous"])
	assert.Equal(t, "Bread 3", first["results"].([]any)[0].(map[string]any)["name"])

	next, err := url.Parse(first["next"].(string))
	require.NoError(t, err)
	assert.Equal(t, "2", next.Query().Get("page"))

	w = api.do(http.MethodGet, "/api/recipes?page=2", "", nil)
	second := decode[map[string]any](t, w)
	assert.Len(t, second["results"], 1)
	assert.Nil(t, second["next"])
	assert.NotNil(t, second["previous"])

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/recipes?page=abc", "", nil).Code)

	w = api.do(http.MethodGet, "/api/recipes?limit=50", "", nil)
	assert.Len(t, decode[map[string]any](t, w)["results"], 3)
}

func TestFavoritesAndCart(t *testing.T) {
	api := setupAPI(t, testConfig())
	_, author := api.signUp("chef")
	_, eater := api.signUp("eater")
	flour := api.ingredient("flour")
	sugar := api.ingredient("sugar")

	a := api.createRecipe(author, "Cake", line{flour, 200}, line{sugar, 50})
	b := api.createRecipe(author, "Bread", line{flour, 100})
	favorite := fmt.Sprintf("/api/recipes/%d/favorite", a)

	w := api.do(http.MethodPost, favorite, eater, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, fmt.Sprintf(`{"id":%d,"name":"Cake","image":"","cooking_time":20}`, a), w.Body.String())

	w = api.do(http.MethodPost, favorite, eater, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[models.APIError](t, w).Details, "recipe")

	w = api.do(http.MethodGet, fmt.Sprintf("/api/recipes/%d", a), eater, nil)
	assert.Equal(t, true, decode[map[string]any](t, w)["is_favorited"])
	w = api.do(http.MethodGet, fmt.Sprintf("/api/recipes/%d", a), "", nil)
	assert.Equal(t, false, decode[map[string]any](t, w)["is_favorited"])

	w = api.do(http.MethodGet, "/api/recipes?is_favorited=1", eater, nil)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["count"])
	w = api.do(http.MethodGet, "/api/recipes?is_favorited=1", "", nil)
	assert.Equal(t, float64(2), decode[map[string]any](t, w)["count"])

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, favorite, eater, nil).Code)
	w = api.do(http.MethodDelete, favorite, eater, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, models.ErrRelationNotFound, decode[models.APIError](t, w).Code)

	w = api.do(http.MethodPost, "/api/recipes/9999/favorite", eater, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, models.ErrRecipeNotFound, decode[models.APIError](t, w).Code)

	t.Run("shopping list sums amounts per ingredient", func(t *testing.T) {
		for _, id := range []uint{a, b} {
			w := api.do(http.MethodPost, fmt.Sprintf("/api/recipes/%d/shopping_cart", id), eater, nil)
			require.Equal(t, http.StatusCreated, w.Code)
		}

		w := api.do(http.MethodGet, "/api/recipes/download_shopping_cart", eater, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
		assert.Equal(t, "flour (g) - 300\nsugar (g) - 50\n", w.Body.String())

		w = api.do(http.MethodGet, "/api/recipes?is_in_shopping_cart=1", eater, nil)
		assert.Equal(t, float64(2), decode[map[string]any](t, w)["count"])

		w = api.do(http.MethodGet, "/api/recipes/download_shopping_cart", author, nil)
		assert.Equal(t, "", w.Body.String())
	})
}

func TestSubscriptions(t *testing.T) {
	api := setupAPI(t, testConfig())
	authorID, author := api.signUp("writer")
	_, reader := api.signUp("reader")
	flour := api.ingredient("flour")
	for i := 1; i <= 3; i++ {
		api.createRecipe(author, fmt.Sprintf("Pie %d", i), line{flour, 10})
	}
	subscribe := fmt.Sprintf("/api/users/%d/subscribe", authorID)

	w := api.do(http.MethodPost, subscribe+"?recipes_limit=1", reader, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	card := decode[map[string]any](t, w)
	assert.Equal(t, "writer", card["username"])
	assert.Equal(t, true, card["is_subscribed"])
	assert.Equal(t, float64(3), card["recipes_count"])
	require.Len(t, card["recipes"], 1)
	assert.Equal(t, "Pie 3", card["recipes"].([]any)[0].(map[string]any)["name"])

	w = api.do(http.MethodPost, subscribe, reader, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[models.APIError](t, w).Details, "author")

	w = api.do(http.MethodGet, "/api/users/subscriptions", reader, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[map[string]any](t, w)
	assert.Equal(t, float64(1), page["count"])
	listed := page["results"].([]any)[0].(map[string]any)
	assert.Len(t, listed["recipes"], 3)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/users/%d", authorID), reader, nil)
	assert.Equal(t, true, decode[map[string]any](t, w)["is_subscribed"])
	w = api.do(http.MethodGet, fmt.Sprintf("/api/users/%d", authorID), "", nil)
	assert.Equal(t, false, decode[map[string]any](t, w)["is_subscribed"])

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, subscribe, reader, nil).Code)
	w = api.do(http.MethodDelete, subscribe, reader, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, models.ErrRelationNotFound, decode[models.APIError](t, w).Code)

	w = api.do(http.MethodPost, "/api/users/9999/subscribe", reader, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, models.ErrUserNotFound, decode[models.APIError](t, w).Code)
}

func TestSelfSubscriptionCanBeBlocked(t *testing.T) {
	cfg := testConfig()
	cfg.AllowSelfSubscription = false
	api := setupAPI(t, cfg)
	id, token := api.signUp("narcissus")

	w := api.do(http.MethodPost, fmt.Sprintf("/api/users/%d/subscribe", id), token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[models.APIError](t, w).Details, "author")
}

func TestCatalog(t *testing.T) {
	api := setupAPI(t, testConfig())

	w := api.do(http.MethodGet, "/api/tags", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Tag](t, w), len(database.DefaultTags))

	w = api.do(http.MethodGet, "/api/ingredients?search=FL", "", nil)
	found := decode[[]models.Ingredient](t, w)
	require.Len(t, found, 1)
	assert.Equal(t, "flour", found[0].Name)

	w = api.do(http.MethodGet, "/api/ingredients?name=s", "", nil)
	names := []string{}
	for _, i := range decode[[]models.Ingredient](t, w) {
		names = append(names, i.Name)
	}
	assert.Equal(t, []string{"salt", "sugar"}, names)

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/tags/9999", "", nil).Code)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, fmt.Sprintf("/api/ingredients/%d", found[0].ID), "", nil).Code)
}

func TestAdminClients(t *testing.T) {
	api := setupAPI(t, testConfig())
	_, userToken := api.signUp("plain")

	w := api.do(http.MethodPost, "/api/admin/clients", userToken, map[string]string{"name": "mobile"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	require.NoError(t, api.db.Model(&models.User{}).Where("username = ?", "plain").Update("role", models.RoleAdmin).Error)
	adminToken := api.login("plain@example.com", "password123")

	w = api.do(http.MethodPost, "/api/admin/clients", adminToken, map[string]string{"name": "mobile"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	client := decode[map[string]any](t, w)
	clientID := client["client_id"].(string)
	secret := client["client_secret"].(string)
	assert.NotEmpty(t, secret)

	form := url.Values{
		"grant_type":    {"password"},
		"client_id":     {clientID},
		"client_secret": {secret},
		"username":      {"plain@example.com"},
		"password":      {"password123"},
	}
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	api.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	accessToken := decode[map[string]any](t, rec)["access_token"].(string)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/users/me", accessToken, nil).Code)

	w = api.do(http.MethodGet, "/api/admin/clients", adminToken, nil)
	listed := decode[[]map[string]any](t, w)
	require.Len(t, listed, 1)
	assert.NotContains(t, listed[0], "client_secret")

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/api/admin/clients/"+clientID, adminToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, "/api/admin/clients/"+clientID, adminToken, nil).Code)
}
