package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"signalhub/configs"
	"signalhub/internal/domain"
	"signalhub/internal/middleware"
	"signalhub/internal/usecase"
	"signalhub/pkg/logger"
)

type fakeSignals struct {
	SignalUsecase
	lastActor domain.Actor
	lastSpot  usecase.SpotSignalInput
	statusErr error
}

func (f *fakeSignals) CreateSpot(_ context.Context, actor domain.Actor, in usecase.SpotSignalInput) (*domain.Signal, error) {
	f.lastActor = actor
	f.lastSpot = in
	return &domain.Signal{
		ID:       uuid.New(),
		Kind:     domain.SignalKindSpot,
		Symbol:   in.Symbol,
		Side:     in.Side,
		Targets:  in.Targets,
		StopLoss: in.StopLoss,
		Status:   domain.SignalStatusActive,
	}, nil
}

func (f *fakeSignals) ChangeStatus(_ context.Context, _ domain.Actor, kind domain.SignalKind, id uuid.UUID, status string) (*domain.Signal, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &domain.Signal{ID: id, Kind: kind, Status: status}, nil
}

type fakeBroadcasts struct {
	BroadcastUsecase
}

func (f *fakeBroadcasts) Confirm(_ context.Context, _ domain.Actor, id uuid.UUID, token string) (*domain.Broadcast, error) {
	if token != "ABC123" {
		return nil, domain.NewError(domain.KindConfirmationRequired, "a valid confirmation token from prepare is required")
	}
	return &domain.Broadcast{ID: id, Status: domain.BroadcastSent}, nil
}

type fakeSettings struct {
	SettingsUsecase
	changes map[string]string
}

func (f *fakeSettings) Update(_ context.Context, _ domain.Actor, changes map[string]string) (*domain.FuturesSettings, error) {
	f.changes = changes
	return &domain.FuturesSettings{}, nil
}

type fakeAuth struct {
	user *domain.User
	hash []byte
}

func (f *fakeAuth) Login(_ context.Context, _ domain.Actor, username, password string) (*domain.User, error) {
	if username != f.user.Username || bcrypt.CompareHashAndPassword(f.hash, []byte(password)) != nil {
		return nil, usecase.ErrInvalidCredentials
	}
	return f.user, nil
}

func (f *fakeAuth) Me(_ context.Context, id uuid.UUID) (*domain.User, error) {
	if id != f.user.ID {
		return nil, domain.NotFound("user", id)
	}
	return f.user, nil
}

type fakeUsers struct {
	UserUsecase
	created usecase.UserInput
	changes usecase.UserChanges
}

func (f *fakeUsers) Create(_ context.Context, _ domain.Actor, in usecase.UserInput) (*domain.User, error) {
	f.created = in
	if in.Username == "taken" {
		return nil, domain.NewError(domain.KindConflict, "username %q is taken", in.Username).WithField("username")
	}
	return &domain.User{ID: uuid.New(), Username: in.Username, PasswordHash: "hash", Role: in.Role, IsActive: true}, nil
}

func (f *fakeUsers) Update(_ context.Context, _ domain.Actor, id uuid.UUID, changes usecase.UserChanges) (*domain.User, error) {
	f.changes = changes
	return &domain.User{ID: id, Username: "ops", Role: domain.RoleViewer}, nil
}

type testServer struct {
	e        *echo.Echo
	jwt      *middleware.JWTManager
	signals  *fakeSignals
	settings *fakeSettings
	auth     *fakeAuth
	users    *fakeUsers
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.Nop()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	ts := &testServer{
		e:        echo.New(),
		jwt:      middleware.NewJWTManager(configs.AuthConfig{JWTSecret: "test-secret-0123456789", TokenTTL: time.Hour}),
		signals:  &fakeSignals{},
		settings: &fakeSettings{},
		users:    &fakeUsers{},
		auth: &fakeAuth{
			user: &domain.User{ID: uuid.New(), Username: "ops", Role: domain.RoleOperator, IsActive: true},
			hash: hash,
		},
	}

	SetupRoutes(ts.e, &RouterConfig{
		JWT:              ts.jwt,
		Logger:           log,
		AuthHandler:      NewAuthHandler(ts.auth, ts.jwt, false, log),
		SignalHandler:    NewSignalHandler(ts.signals, log),
		FuturesHandler:   NewFuturesHandler(ts.settings, nil, log),
		BroadcastHandler: NewBroadcastHandler(&fakeBroadcasts{}, log),
		TemplateHandler:  NewTemplateHandler(nil, log),
		MarketHandler:    NewMarketHandler(nil, log),
		AdminHandler:     NewAdminHandler(nil, nil, nil, nil, nil, log),
		UserHandler:      NewUserHandler(ts.users, log),
	})
	return ts
}

func (ts *testServer) token(t *testing.T, role string) string {
	t.Helper()
	token, _, err := ts.jwt.Generate(ts.auth.user.ID, role)
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, body, token string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind domain.ErrorKind
		want int
	}{
		{domain.KindValidation, http.StatusBadRequest},
		{domain.KindInvalidConfiguration, http.StatusBadRequest},
		{domain.KindNotFound, http.StatusNotFound},
		{domain.KindConflict, http.StatusConflict},
		{domain.KindInvalidTransition, http.StatusConflict},
		{domain.KindConfirmationRequired, http.StatusConflict},
		{domain.KindMissingTemplateVariable, http.StatusUnprocessableEntity},
		{domain.KindRiskLimitExceeded, http.StatusUnprocessableEntity},
		{domain.KindDailyCapReached, http.StatusTooManyRequests},
		{domain.KindExternalProvider, http.StatusBadGateway},
		{domain.KindDeliveryFailure, http.StatusBadGateway},
		{"", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusForKind(tt.kind))
		})
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	rec, resp := ts.do(t, http.MethodGet, "/api/signals/spot", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "error", resp.Status)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "UNAUTHORIZED", resp.Errors[0].Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/signals/spot", "", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestViewerCannotWrite(t *testing.T) {
	ts := newTestServer(t)
	body := `{"symbol":"ETHUSDT","side":"long","targets":["2300"],"stop_loss":"2100"}`

	rec, resp := ts.do(t, http.MethodPost, "/api/signals/spot", body, ts.token(t, domain.RoleViewer))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "FORBIDDEN", resp.Errors[0].Code)
}

func TestCreateSpotSignal(t *testing.T) {
	ts := newTestServer(t)
	body := `{"symbol":"ETHUSDT","side":"LONG","targets":["2300","2400"],"stop_loss":"2100"}`

	rec, resp := ts.do(t, http.MethodPost, "/api/signals/spot", body, ts.token(t, domain.RoleOperator))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "success", resp.Status)

	in := ts.signals.lastSpot
	assert.Equal(t, "ETHUSDT", in.Symbol)
	assert.Equal(t, domain.SideLong, in.Side)
	require.Len(t, in.Targets, 2)
	assert.True(t, in.Targets[1].Equal(decimal.RequireFromString("2400")))
	assert.True(t, in.StopLoss.Equal(decimal.RequireFromString("2100")))

	require.NotNil(t, ts.signals.lastActor.UserID)
	assert.Equal(t, ts.auth.user.ID, *ts.signals.lastActor.UserID)
}

func TestCreateSpotSignalValidation(t *testing.T) {
	ts := newTestServer(t)

	rec, resp := ts.do(t, http.MethodPost, "/api/signals/spot", `{"side":"sideways"}`, ts.token(t, domain.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	fields := map[string]string{}
	for _, e := range resp.Errors {
		fields[e.Field] = e.Code
	}
	assert.Equal(t, "ERR_REQUIRED", fields["symbol"])
	assert.Equal(t, "ERR_ONEOF", fields["side"])
	assert.Equal(t, "ERR_REQUIRED", fields["targets"])
}

func TestDomainErrorsUseKindAsCode(t *testing.T) {
	ts := newTestServer(t)
	ts.signals.statusErr = domain.NewError(domain.KindInvalidTransition, "signal is not active")
	id := uuid.New()

	rec, resp := ts.do(t, http.MethodPatch, "/api/signals/futures/"+id.String()+"/status",
		`{"status":"cancelled"}`, ts.token(t, domain.RoleOperator))
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, string(domain.KindInvalidTransition), resp.Errors[0].Code)
	assert.Equal(t, "signal is not active", resp.Message)
}

func TestInvalidIDParam(t *testing.T) {
	ts := newTestServer(t)

	rec, resp := ts.do(t, http.MethodPatch, "/api/signals/spot/nope/status", `{"status":"completed"}`, ts.token(t, domain.RoleOperator))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "id", resp.Errors[0].Field)
}

func TestBroadcastConfirmNeedsToken(t *testing.T) {
	ts := newTestServer(t)
	path := "/api/broadcasts/" + uuid.NewString() + "/confirm"
	token := ts.token(t, domain.RoleOperator)

	rec, resp := ts.do(t, http.MethodPost, path, `{}`, token)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, string(domain.KindConfirmationRequired), resp.Errors[0].Code)

	rec, _ = ts.do(t, http.MethodPost, path, `{"confirmation_token":"ABC123"}`, token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateSettingsFlattensValues(t *testing.T) {
	ts := newTestServer(t)
	body := `{"top_n":5,"auto_follow":false,"stop_loss_percent":"1.5","symbol_blacklist":["DOGEUSDT","PEPEUSDT"]}`

	rec, _ := ts.do(t, http.MethodPut, "/api/futures/settings", body, ts.token(t, domain.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]string{
		"top_n":             "5",
		"auto_follow":       "false",
		"stop_loss_percent": "1.5",
		"symbol_blacklist":  "DOGEUSDT,PEPEUSDT",
	}, ts.settings.changes)
}

func TestLoginIssuesUsableToken(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodPost, "/api/auth/login", `{"username":"ops","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, resp := ts.do(t, http.MethodPost, "/api/auth/login", `{"username":"ops","password":"s3cret-pass"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.TokenCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)

	rec, resp = ts.do(t, http.MethodGet, "/api/auth/me", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	me, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ops", me["username"])
	assert.NotContains(t, me, "password_hash")
}

func TestUserManagementIsAdminOnly(t *testing.T) {
	ts := newTestServer(t)
	body := `{"username":"analyst","password":"long-enough","role":"VIEWER"}`

	for _, role := range []string{domain.RoleOperator, domain.RoleViewer} {
		rec, _ := ts.do(t, http.MethodPost, "/api/users", body, ts.token(t, role))
		assert.Equal(t, http.StatusForbidden, rec.Code, role)
	}

	rec, resp := ts.do(t, http.MethodPost, "/api/users", body, ts.token(t, domain.RoleAdmin))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, usecase.UserInput{Username: "analyst", Password: "long-enough", Role: domain.RoleViewer}, ts.users.created)
	assert.NotContains(t, rec.Body.String(), "hash")
}

func TestCreateUserValidation(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.token(t, domain.RoleAdmin)

	tests := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{"short password", `{"username":"analyst","password":"short","role":"VIEWER"}`, http.StatusBadRequest, "password"},
		{"unknown role", `{"username":"analyst","password":"long-enough","role":"ROOT"}`, http.StatusBadRequest, "role"},
		{"missing username", `{"password":"long-enough"}`, http.StatusBadRequest, "username"},
		{"taken username", `{"username":"taken","password":"long-enough"}`, http.StatusConflict, "username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := ts.do(t, http.MethodPost, "/api/users", tt.body, admin)
			assert.Equal(t, tt.status, rec.Code)
			require.NotEmpty(t, resp.Errors)
			assert.Equal(t, tt.field, resp.Errors[0].Field)
		})
	}
}

func TestUpdateUser(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.token(t, domain.RoleAdmin)
	path := "/api/users/" + uuid.NewString()

	rec, _ := ts.do(t, http.MethodPut, path, `{}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(t, http.MethodPut, path, `{"role":"VIEWER","is_active":false}`, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, ts.users.changes.Role)
	assert.Equal(t, domain.RoleViewer, *ts.users.changes.Role)
	require.NotNil(t, ts.users.changes.IsActive)
	assert.False(t, *ts.users.changes.IsActive)
	assert.Nil(t, ts.users.changes.Password)
}
