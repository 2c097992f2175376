package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/crack2116/fleettrack/internal/auth"
	"github.com/crack2116/fleettrack/internal/config"
	"github.com/crack2116/fleettrack/pkg/model"
)

type TestApp struct {
	*App
	srv *HttpServer
}

func User(t *testing.T, login, pass string) *auth.User {
	t.Helper()

	u := &auth.User{Login: login}
	require.NoError(t, u.SetPassword(pass))

	return u
}

func NewTestApp(t *testing.T) *TestApp {
	t.Helper()

	usersFile := filepath.Join(t.TempDir(), "users.yml")

	dat, err := yaml.Marshal([]*auth.User{User(t, "anna", "111"), User(t, "bob", "222")})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(usersFile, dat, 0o600))

	cfg := config.NewAppConfig()
	cfg.Set("users_file", usersFile)
	cfg.Set("retry.attempts", 1)

	app, err := NewApp(cfg)
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))

	t.Cleanup(app.Stop)

	return &TestApp{App: app, srv: NewHttpServer(app, "localhost:0")}
}

func (app *TestApp) Req(t *testing.T, method, url, login string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var r io.Reader

	if body != nil {
		d, err := json.Marshal(body)
		require.NoError(t, err)

		r = bytes.NewReader(d)
	}

	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)

	if body != nil {
		req.Header.Add(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}

	if login != "" {
		pass := map[string]string{"anna": "111", "bob": "222"}[login]
		req.Header.Add(fiber.HeaderAuthorization, "Basic "+base64.StdEncoding.EncodeToString([]byte(login+":"+pass)))
	}

	resp, err := app.srv.f.Test(req, 5000)
	require.NoError(t, err)

	defer resp.Body.Close()

	res := make(map[string]any)
	if b, _ := io.ReadAll(resp.Body); len(b) > 0 && b[0] == '{' {
		require.NoError(t, json.Unmarshal(b, &res))
	}

	return resp, res
}

func (app *TestApp) addVehicle(t *testing.T, fields map[string]any) string {
	t.Helper()

	resp, res := app.Req(t, "POST", "/vehicle", "anna", fields)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	return res["id"].(string)
}

func (app *TestApp) unread(t *testing.T, login string) int {
	t.Helper()

	resp, res := app.Req(t, "GET", "/notification", login, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	return int(res["unread"].(float64))
}

func TestAuth(t *testing.T) {
	app := NewTestApp(t)

	resp, _ := app.Req(t, "GET", "/vehicle", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = app.Req(t, "GET", "/vehicle", "anna", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = app.Req(t, "GET", "/metrics", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = app.Req(t, "GET", "/ws", "anna", nil)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestVehicles(t *testing.T) {
	app := NewTestApp(t)

	resp, res := app.Req(t, "POST", "/vehicle", "anna", map[string]any{"lat": 1})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid-argument", res["code"])

	id := app.addVehicle(t, map[string]any{"plate": "AAA-111"})
	app.addVehicle(t, map[string]any{"plate": "BBB-222", "lat": -12.1, "lon": -77.1})

	_, res = app.Req(t, "GET", "/vehicle", "anna", nil)
	assert.Equal(t, false, res["loading"])

	vs := res["vehicles"].([]any)
	require.Len(t, vs, 2)

	first := vs[0].(map[string]any)
	assert.Equal(t, "AAA-111", first["id"])
	assert.Equal(t, id, first["internal_id"])
	assert.Equal(t, "available", first["status"])
	assert.InDelta(t, -12.0264, first["lat"].(float64), 1e-9)

	resp, _ = app.Req(t, "PUT", "/vehicle/"+id, "anna", map[string]any{"lat": -12.3, "lon": -77.3})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	v := app.tracker.Get(id)
	require.NotNil(t, v)
	assert.Equal(t, model.NewPos(-12.3, -77.3), v.Pos)

	resp, res = app.Req(t, "PUT", "/vehicle/missing", "anna", map[string]any{"lat": 1.0})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not-found", res["code"])
}

func TestRoute(t *testing.T) {
	app := NewTestApp(t)

	id1 := app.addVehicle(t, map[string]any{"plate": "AAA-111", "lat": -12.1, "lon": -77.1})
	id2 := app.addVehicle(t, map[string]any{"plate": "BBB-222", "lat": -12.2, "lon": -77.2})

	dest := map[string]any{"dest": map[string]any{"lat": -12.3, "lon": -77.3}}

	resp, res := app.Req(t, "POST", "/vehicle/"+id1+"/route", "anna", dest)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "in_transit", res["status"])

	resp, res = app.Req(t, "POST", "/vehicle/"+id2+"/route", "anna", dest)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "resource-exhausted", res["code"])

	resp, _ = app.Req(t, "POST", "/vehicle/nope/route", "anna", dest)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = app.Req(t, "POST", "/vehicle/"+id1+"/route", "anna", map[string]any{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, 1, app.unread(t, "anna"))
	assert.Equal(t, 0, app.unread(t, "bob"))

	// upstream update keeps the vehicle in transit
	resp, _ = app.Req(t, "PUT", "/vehicle/"+id1, "anna", map[string]any{"status": "available"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, model.StatusInTransit, app.tracker.Get(id1).Status)

	resp, res = app.Req(t, "POST", "/vehicle/"+id1+"/arrived", "anna", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, res["changed"])
	assert.Equal(t, model.StatusAvailable, app.tracker.Get(id1).Status)

	require.Eventually(t, func() bool {
		return app.unread(t, "bob") == 1
	}, time.Second*5, time.Millisecond*50)

	assert.Equal(t, 2, app.unread(t, "anna"))

	resp, res = app.Req(t, "POST", "/vehicle/"+id1+"/arrived", "anna", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, false, res["changed"])
}

func TestNotifications(t *testing.T) {
	app := NewTestApp(t)

	ctx := context.Background()

	var ids []string

	for i := 0; i < 3; i++ {
		id, err := app.notify.Create(ctx, &model.Notification{UserID: "anna", Title: "hello"})
		require.NoError(t, err)

		ids = append(ids, id)
	}

	other, err := app.notify.Create(ctx, &model.Notification{UserID: "bob", Title: "hello"})
	require.NoError(t, err)

	assert.Equal(t, 3, app.unread(t, "anna"))

	resp, _ := app.Req(t, "POST", "/notification/"+ids[0]+"/read", "anna", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = app.Req(t, "POST", "/notification/"+ids[0]+"/read", "anna", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, 2, app.unread(t, "anna"))

	resp, res := app.Req(t, "POST", "/notification/"+other+"/read", "anna", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "permission-denied", res["code"])

	resp, res = app.Req(t, "POST", "/notification/missing/read", "anna", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not-found", res["code"])

	resp, res = app.Req(t, "POST", "/notification/read_all", "anna", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), res["total"])
	assert.Equal(t, float64(2), res["updated"])

	assert.Equal(t, 0, app.unread(t, "anna"))
	assert.Equal(t, 1, app.unread(t, "bob"))
}

func (app *TestApp) counter(t *testing.T, series string) float64 {
	t.Helper()

	resp, err := app.srv.f.Test(newRequest(t, "GET", "/metrics"), 5000)
	require.NoError(t, err)

	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	for _, line := range strings.Split(string(b), "\n") {
		if v, ok := strings.CutPrefix(line, series+" "); ok {
			n, err := strconv.ParseFloat(v, 64)
			require.NoError(t, err)

			return n
		}
	}

	return 0
}

func newRequest(t *testing.T, method, url string) *http.Request {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)

	return req
}

func TestErrorStatusMetrics(t *testing.T) {
	app := NewTestApp(t)

	series := `fleettrack_http_requests_total{api="api",code="404",method="POST",route="/vehicle/:id/arrived"}`
	before := app.counter(t, series)

	resp, res := app.Req(t, "POST", "/vehicle/nope/arrived", "anna", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not-found", res["code"])

	assert.InDelta(t, before+1, app.counter(t, series), 0)
}
