package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lexdesk/internal/auth"
	"lexdesk/internal/config"
	"lexdesk/internal/guard"
	"lexdesk/internal/http/middleware"
	"lexdesk/internal/model"
	"lexdesk/internal/repository"
	"lexdesk/internal/repository/file"
	"lexdesk/internal/resilience"
	"lexdesk/internal/session"
	authMocks "lexdesk/internal/session/mocks"
	"lexdesk/internal/upload"
)

var validLogin = model.LoginRequest{Email: "a@b.com", Password: "x"}

type testEnv struct {
	app     *fiber.App
	store   *session.Store
	storage *file.ClientStorageFile
	authn   *authMocks.MockAuthenticator
	queue   *upload.Queue
}

type envOption func(*Deps)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	storage, err := file.NewClientStorageFile(filepath.Join(t.TempDir(), "client-storage.json"))
	require.NoError(t, err)
	authn := new(authMocks.MockAuthenticator)
	store := session.NewStore(storage, authn)
	require.NoError(t, store.Initialize(testContext(t)))

	// the simulator never ticks within a test, so entries stay uploading
	queue := upload.NewQueue(upload.NewValidator(config.UploadConfig{}), upload.Simulator{Interval: time.Hour})
	t.Cleanup(queue.Close)

	deps := Deps{
		Store:        store,
		Guard:        guard.New(store),
		LoginForm:    session.NewForm(store),
		RegisterForm: session.NewForm(store),
		Queue:        queue,
		APIClient:    &http.Client{Transport: &session.Transport{Store: store}},
		APIBaseURL:   "http://127.0.0.1:0",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(middleware.RequestID())
	RegisterRoutes(app, deps)

	return &testEnv{app: app, store: store, storage: storage, authn: authn, queue: queue}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	e.authn.On("Login", mock.Anything, validLogin).Return(&model.TokenResponse{Token: "T1"}, nil).Once()
	resp := e.do(t, http.MethodPost, "/login", validLogin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "healthy", decode[map[string]string](t, resp)["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decode[errorPayload](t, resp).Error.Code)
	})

	t.Run("file storage", func(t *testing.T) {
		app := fiber.New()
		app.Get("/health", HealthCheck(nil))

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogin(t *testing.T) {
	t.Run("success admits dashboard", func(t *testing.T) {
		env := newTestEnv(t)
		env.authn.On("Login", mock.Anything, validLogin).Return(&model.TokenResponse{Token: "T1"}, nil)

		resp := env.do(t, http.MethodPost, "/login", validLogin)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "/dashboard", decode[redirectResponse](t, resp).Redirect)
		assert.Equal(t, "T1", env.store.Token())
		persisted, err := env.storage.Get(testContext(t), repository.TokenKey)
		require.NoError(t, err)
		assert.Equal(t, "T1", persisted)

		resp = env.do(t, http.MethodGet, "/dashboard", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("rejected credentials", func(t *testing.T) {
		env := newTestEnv(t)
		env.authn.On("Login", mock.Anything, validLogin).
			Return(nil, &auth.Error{Kind: auth.KindRejected, Message: "Invalid credentials", StatusCode: http.StatusUnauthorized})

		resp := env.do(t, http.MethodPost, "/login", validLogin)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body := decode[errorPayload](t, resp)
		assert.Equal(t, "AUTH_REJECTED", body.Error.Code)
		assert.Equal(t, "Invalid credentials", body.Error.Message)
		assert.NotEmpty(t, body.RequestID)

		resp = env.do(t, http.MethodGet, "/login", nil)
		assert.Equal(t, session.FormState{Error: "Invalid credentials"}, decode[session.FormState](t, resp))

		resp = env.do(t, http.MethodGet, "/dashboard", nil)
		assert.Equal(t, http.StatusFound, resp.StatusCode)
	})

	t.Run("backend unreachable", func(t *testing.T) {
		env := newTestEnv(t)
		env.authn.On("Login", mock.Anything, validLogin).
			Return(nil, &auth.Error{Kind: auth.KindNetwork, Message: auth.NetworkMessage})

		resp := env.do(t, http.MethodPost, "/login", validLogin)

		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Equal(t, auth.NetworkMessage, decode[errorPayload](t, resp).Error.Message)
	})

	t.Run("missing fields", func(t *testing.T) {
		env := newTestEnv(t)

		resp := env.do(t, http.MethodPost, "/login", model.LoginRequest{Email: "  "})

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "VALIDATION_ERROR", decode[errorPayload](t, resp).Error.Code)
		env.authn.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
	})

	t.Run("throttled", func(t *testing.T) {
		env := newTestEnv(t, func(d *Deps) { d.LoginThrottle = middleware.Throttle(0.01, 1) })
		env.authn.On("Login", mock.Anything, validLogin).
			Return(nil, &auth.Error{Kind: auth.KindRejected, Message: "Invalid credentials"})

		resp := env.do(t, http.MethodPost, "/login", validLogin)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp = env.do(t, http.MethodPost, "/login", validLogin)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))
		assert.Equal(t, "TOO_MANY_REQUESTS", decode[errorPayload](t, resp).Error.Code)
		env.authn.AssertNumberOfCalls(t, "Login", 1)
	})
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	req := model.RegisterRequest{Name: "Ann", Email: "ann@b.com", Password: "secret"}
	env.authn.On("Register", mock.Anything, req).Return(&model.TokenResponse{Token: "R1"}, nil)

	resp := env.do(t, http.MethodPost, "/register", req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "R1", env.store.Token())

	resp = env.do(t, http.MethodPost, "/register", model.RegisterRequest{Email: "ann@b.com", Password: "secret"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	resp := env.do(t, http.MethodPost, "/logout", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/login", decode[redirectResponse](t, resp).Redirect)

	resp = env.do(t, http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get(fiber.HeaderLocation))

	resp = env.do(t, http.MethodPost, "/logout", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtectedRoutesRedirect(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/dashboard", "/upload", "/analyze", "/api/cases"} {
		resp := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusFound, resp.StatusCode, path)
		assert.Equal(t, "/login", resp.Header.Get(fiber.HeaderLocation), path)
	}

	for _, path := range []string{"/", "/login", "/register"} {
		resp := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestProtectedRoutesRedirect_MixedCase(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		method, path string
	}{
		{http.MethodGet, "/DASHBOARD"},
		{http.MethodGet, "/Upload"},
		{http.MethodGet, "/Analyze/"},
		{http.MethodGet, "/API/cases"},
		{http.MethodPost, "/Upload"},
		{http.MethodDelete, "/UPLOAD/" + uuid.NewString()},
	}
	for _, tt := range tests {
		resp := env.do(t, tt.method, tt.path, nil)
		assert.Equal(t, http.StatusFound, resp.StatusCode, tt.method+" "+tt.path)
		assert.Equal(t, "/login", resp.Header.Get(fiber.HeaderLocation), tt.method+" "+tt.path)
	}
	assert.Empty(t, env.queue.Files())
}

func TestHome(t *testing.T) {
	env := newTestEnv(t)

	body := decode[homeResponse](t, env.do(t, http.MethodGet, "/", nil))
	assert.False(t, body.Session.Authenticated)
	assert.Equal(t, []string{"/login", "/register"}, body.Links)

	env.login(t)
	body = decode[homeResponse](t, env.do(t, http.MethodGet, "/", nil))
	assert.True(t, body.Session.Authenticated)
	assert.Contains(t, body.Links, "/upload")
}

type part struct {
	name, contentType string
	content           []byte
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, p := range parts {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, p.name))
		h.Set("Content-Type", p.contentType)
		w, err := writer.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(p.content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadFlow(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	body, ct := multipartBody(t,
		part{"brief.pdf", config.MIMEPDF, bytes.Repeat([]byte("a"), 2048)},
		part{"notes.txt", "text/plain", []byte("hello")},
	)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set(fiber.HeaderContentType, ct)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	admitted := decode[admitResponse](t, resp)
	require.Len(t, admitted.Admissions, 2)
	assert.True(t, admitted.Admissions[0].Outcome.Accepted)
	require.NotNil(t, admitted.Admissions[0].File)
	assert.Equal(t, model.Reject(model.ReasonUnsupportedType), admitted.Admissions[1].Outcome)
	assert.Equal(t, "notes.txt", admitted.Admissions[1].Descriptor.Name)

	list := decode[uploadListResponse](t, env.do(t, http.MethodGet, "/upload", nil))
	require.Len(t, list.Files, 1)
	assert.Equal(t, "brief.pdf", list.Files[0].Name)
	assert.Equal(t, "2 KB", list.Files[0].Size)
	assert.Equal(t, model.StatusUploading, list.Files[0].Status)
	assert.Equal(t, config.DefaultMaxUploadBytes, list.MaxSizeBytes)

	dash := decode[dashboardResponse](t, env.do(t, http.MethodGet, "/dashboard", nil))
	assert.Equal(t, upload.Stats{Total: 1, Uploading: 1}, dash.Uploads)

	id := list.Files[0].ID
	resp = env.do(t, http.MethodDelete, "/upload/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, env.queue.Files())

	resp = env.do(t, http.MethodDelete, "/upload/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decode[errorPayload](t, resp).Error.Code)
}

func TestUploadFiles_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	t.Run("no file", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/upload", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "FILE_REQUIRED", decode[errorPayload](t, resp).Error.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		resp := env.do(t, http.MethodDelete, "/upload/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_ID", decode[errorPayload](t, resp).Error.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		resp := env.do(t, http.MethodDelete, "/upload/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestAnalyze(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	resp := env.do(t, http.MethodGet, "/analyze", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[map[string][]analysisItem](t, resp)["analyses"])
}

func TestAPIProxy(t *testing.T) {
	status := http.StatusOK
	var gotAuth, gotPath string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.RequestURI()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"cases":[]}`))
	}))
	defer backend.Close()

	env := newTestEnv(t, func(d *Deps) { d.APIBaseURL = backend.URL + "/api" })
	env.login(t)

	resp := env.do(t, http.MethodGet, "/api/cases?page=2", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bearer T1", gotAuth)
	assert.Equal(t, "/api/cases?page=2", gotPath)
	b, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"cases":[]}`, string(b))

	// a 401 from the backend ends the session
	status = http.StatusUnauthorized
	resp = env.do(t, http.MethodGet, "/api/cases", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, env.store.IsAuthenticated())

	resp = env.do(t, http.MethodGet, "/dashboard", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestAPIProxy_BackendDown(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	url := backend.URL
	backend.Close()

	env := newTestEnv(t, func(d *Deps) { d.APIBaseURL = url })
	env.login(t)

	resp := env.do(t, http.MethodGet, "/api/cases", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "BACKEND_UNAVAILABLE", decode[errorPayload](t, resp).Error.Code)
	assert.True(t, env.store.IsAuthenticated())
}

func TestRouting(t *testing.T) {
	env := newTestEnv(t)

	t.Run("not found route", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/non-existent", nil)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decode[errorPayload](t, resp).Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/health", nil)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "METHOD_NOT_ALLOWED", decode[errorPayload](t, resp).Error.Code)
	})
}

func TestAPIProxy_CircuitOpen(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer backend.Close()

	env := newTestEnv(t, func(d *Deps) {
		d.APIBaseURL = backend.URL
		d.APIClient = &http.Client{Transport: &session.Transport{
			Store: d.Store,
			Base:  resilience.NewBreakerTransport("api", nil, resilience.Config{ConsecutiveFailures: 1, OpenTimeout: time.Hour}, nil),
		}}
	})
	env.login(t)

	resp := env.do(t, http.MethodGet, "/api/cases", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/cases", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "BACKEND_CIRCUIT_OPEN", decode[errorPayload](t, resp).Error.Code)
}
