package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"componentlab/api/handlers"
	"componentlab/api/internal/testsupport"
	"componentlab/api/logger"
	"componentlab/api/middleware"
	"componentlab/api/models"
	"componentlab/api/tracking"
	"componentlab/api/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := middleware.RegisterValidators(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fixture struct {
	router *gin.Engine
	events *testsupport.EventStore
	users  *testsupport.UserStore
}

func newFixture() *fixture {
	events := testsupport.NewEventStore()
	users := testsupport.NewUserStore()
	log := logger.NewNop()

	components := handlers.NewComponentHandlers(tracking.NewService(events, users), nil, log)
	auth := handlers.NewAuthHandlers(users, utils.NewJWTManager("test-secret", time.Hour, "componentlab"), log)

	r := gin.New()
	r.POST("/auth/register", auth.Register)
	r.POST("/auth/login", auth.Login)
	r.POST("/track", components.TrackEvent)
	r.GET("/stats", components.GetStats)
	r.GET("/export", components.Export)
	r.GET("/export/view", components.ViewExport)
	return &fixture{router: r, events: events, users: users}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	n, err := f.events.CountAll(context.Background())
	require.NoError(t, err)
	return int(n)
}

type envelope struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Data    json.RawMessage       `json:"data"`
	Errors  []tracking.FieldError `json:"errors"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestTrackEvent(t *testing.T) {
	f := newFixture()

	w := f.do(http.MethodPost, "/track", `{"nombre":"Button","accion":"click-primary"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	env := decode(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, "Interacción registrada", env.Message)

	var event models.InteractionEvent
	require.NoError(t, json.Unmarshal(env.Data, &event))
	assert.Equal(t, "Button", event.ComponentName)
	assert.Equal(t, models.UserTypeAnonymous, event.UserType)
	assert.Equal(t, 1, f.count(t))
}

func TestTrackEventValidation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{"blank fields", `{"nombre":"   ","accion":""}`, []string{"nombre", "accion"}},
		{"missing fields", `{}`, []string{"nombre", "accion"}},
		{"unknown user type", `{"nombre":"Button","accion":"click","tipo_usuario":"admin"}`, []string{"tipo_usuario"}},
		{"registered without user", `{"nombre":"Button","accion":"click","tipo_usuario":"registered"}`, []string{"usuario"}},
		{"malformed user", `{"nombre":"Button","accion":"click","usuario":"nope"}`, []string{"usuario"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			w := f.do(http.MethodPost, "/track", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			env := decode(t, w)
			assert.False(t, env.Success)
			assert.Equal(t, "Errores de validación", env.Message)
			var got []string
			for _, fe := range env.Errors {
				got = append(got, fe.Field)
				assert.NotEmpty(t, fe.Message)
			}
			assert.ElementsMatch(t, tt.fields, got)
			assert.Zero(t, f.count(t))
		})
	}
}

func TestTrackEventMalformedBody(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodPost, "/track", `{"nombre":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Cuerpo de la solicitud inválido", decode(t, w).Message)
}

func TestTrackEventStoreFailure(t *testing.T) {
	f := newFixture()
	f.events.AppendErr = errors.New("clickhouse down")

	w := f.do(http.MethodPost, "/track", `{"nombre":"Button","accion":"click"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	env := decode(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "Error al registrar interacción", env.Message)
}

func TestGetStats(t *testing.T) {
	f := newFixture()
	f.events.Seed(time.Now().UTC(),
		models.InteractionEvent{ComponentName: "Button", Action: "click"},
		models.InteractionEvent{ComponentName: "Button", Action: "click"},
		models.InteractionEvent{ComponentName: "Input", Action: "focus"},
	)

	w := f.do(http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var stats models.StatsSnapshot
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &stats))
	assert.EqualValues(t, 3, stats.Total)
	require.NotEmpty(t, stats.ByComponent)
	assert.Equal(t, models.ComponentCount{Component: "Button", Count: 2}, stats.ByComponent[0])
}

func TestGetStatsUnavailable(t *testing.T) {
	f := newFixture()
	f.events.Err = errors.New("timeout")

	w := f.do(http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Error al obtener estadísticas", decode(t, w).Message)
}

func TestViewExportQueryDefaults(t *testing.T) {
	f := newFixture()
	var events []models.InteractionEvent
	for i := 0; i < 30; i++ {
		events = append(events, models.InteractionEvent{ComponentName: "Card", Action: "hover"})
	}
	f.events.Seed(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), events...)

	tests := []struct {
		query      string
		page       int
		limit      int
		totalPages int
		rows       int
	}{
		{"", 1, 10, 3, 10},
		{"?page=abc&limit=xyz", 1, 10, 3, 10},
		{"?page=0&limit=0", 1, 1, 30, 1},
		{"?page=2&limit=100", 2, 25, 2, 5},
		{"?page=9", 9, 10, 3, 0},
		{"?page=2abc&limit=3abc", 2, 3, 10, 3},
		{"?page=4611686018427387905&limit=4", 4611686018427387905, 4, 8, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := f.do(http.MethodGet, "/export/view"+tt.query, "")
			require.Equal(t, http.StatusOK, w.Code)

			var body struct {
				Success    bool                `json:"success"`
				Data       []models.PagedEvent `json:"data"`
				Pagination models.Pagination   `json:"pagination"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.True(t, body.Success)
			assert.Len(t, body.Data, tt.rows)
			assert.Equal(t, tt.page, body.Pagination.Page)
			assert.Equal(t, tt.limit, body.Pagination.Limit)
			assert.Equal(t, tt.totalPages, body.Pagination.TotalPages)
			assert.EqualValues(t, 30, body.Pagination.Total)
		})
	}
}

func TestExportJSON(t *testing.T) {
	f := newFixture()
	user, err := f.users.CreateUser(context.Background(), "Ana", "ana@example.com", []byte("x"))
	require.NoError(t, err)
	f.events.Seed(time.Now().UTC(),
		models.InteractionEvent{ComponentName: "Button", Action: "click", UserType: models.UserTypeRegistered, UserRef: &user.ID},
		models.InteractionEvent{ComponentName: "Input", Action: "focus"},
	)

	w := f.do(http.MethodGet, "/export", "")
	require.Equal(t, http.StatusOK, w.Code)

	var records []models.ExportRecord
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &records))
	require.Len(t, records, 2)
	assert.Equal(t, "Input", records[0].ComponentName)
	assert.Nil(t, records[0].User)
	require.NotNil(t, records[1].User)
	assert.Equal(t, "ana@example.com", records[1].User.Email)
}

func TestExportEmptyJSON(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodGet, "/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())
}

func TestExportCSV(t *testing.T) {
	f := newFixture()
	f.events.Seed(time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
		models.InteractionEvent{ComponentName: "Button", Action: "click"},
	)

	w := f.do(http.MethodGet, "/export?format=csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "estadisticas-componentes-")
	assert.Equal(t,
		"Componente,Acción,Fecha,Tipo Usuario,Nombre Usuario,Email Usuario\n"+
			`"Button","click","2025-03-01 09:30:00","Anónimo","",""`,
		w.Body.String())
}

func TestExportCSVNoData(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodGet, "/export?format=csv", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, decode(t, w).Success)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture()

	w := f.do(http.MethodPost, "/auth/register", `{"nombre":"Ana","email":"Ana@Example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decode(t, w)
	assert.Equal(t, "Usuario registrado exitosamente", env.Message)

	var auth models.AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &auth))
	assert.Equal(t, "ana@example.com", auth.User.Email)
	assert.NotEmpty(t, auth.Token)

	w = f.do(http.MethodPost, "/auth/register", `{"nombre":"Ana","email":"ana@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "El email ya está registrado", decode(t, w).Message)

	w = f.do(http.MethodPost, "/auth/login", `{"email":"ana@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Login exitoso", decode(t, w).Message)

	w = f.do(http.MethodPost, "/auth/login", `{"email":"ana@example.com","password":"wrong-password"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Credenciales inválidas", decode(t, w).Message)

	w = f.do(http.MethodPost, "/auth/login", `{"email":"nobody@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodPost, "/auth/register", `{"nombre":"A","email":"not-an-email","password":"123"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	env := decode(t, w)
	assert.Equal(t, "Errores de validación", env.Message)
	byField := map[string]string{}
	for _, fe := range env.Errors {
		byField[fe.Field] = fe.Message
	}
	assert.Equal(t, "El nombre debe tener al menos 2 caracteres", byField["nombre"])
	assert.Equal(t, "Email inválido", byField["email"])
	assert.Equal(t, "La contraseña debe tener al menos 6 caracteres", byField["password"])
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		clickhouse handlers.Pinger
		code       int
		status     string
	}{
		{"healthy", stubPinger{}, http.StatusOK, "healthy"},
		{"degraded", stubPinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewHealthHandler(stubPinger{}, tt.clickhouse, logger.NewNop())
			r := gin.New()
			r.GET("/health", h.Health)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, tt.code, w.Code)

			var body struct {
				Success  bool   `json:"success"`
				Status   string `json:"status"`
				Services map[string]struct {
					Connected bool `json:"connected"`
				} `json:"services"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.True(t, body.Success)
			assert.Equal(t, tt.status, body.Status)
			assert.True(t, body.Services["database"].Connected)
			assert.Equal(t, tt.code == http.StatusOK, body.Services["clickhouse"].Connected)
		})
	}
}
