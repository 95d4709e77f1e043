package server

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnyUserName/tgimg-render/internal/config"
	"github.com/AnyUserName/tgimg-render/internal/thumbhash"
)

func newTestServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := config.Default()
	cfg.Domain = "cdn.myapp.com"
	cfg.Logger = log
	cfg.Server.Mode = gin.TestMode
	return New(cfg), cfg
}

func do(t *testing.T, s *Server, method, target, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func testHash(t *testing.T, enc *base64.Encoding) string {
	t.Helper()
	rgba := make([]byte, 32*16*4)
	for i := 0; i < len(rgba); i += 4 {
		rgba[i], rgba[i+1], rgba[i+2], rgba[i+3] = 30, 140, 220, 255
	}
	raw, err := thumbhash.EncodeRGBA(32, 16, rgba)
	require.NoError(t, err)
	return enc.EncodeToString(raw)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	code, body := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestURL(t *testing.T) {
	s, _ := newTestServer(t)
	code, body := do(t, s, http.MethodGet, "/v1/url?src=file-id&width=128&height=128&fit=cover", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "https://cdn.myapp.com/file-id/resize_128x128min,fit_128x128,bg_transparent,auto", body["primary"])
	assert.Len(t, body["variants"], 3)
	assert.Contains(t, body["srcset"], "resize_384x384min")
}

func TestURL_CustomFactors(t *testing.T) {
	s, _ := newTestServer(t)
	code, body := do(t, s, http.MethodGet, "/v1/url?src=file-id&width=100&fit=contain&dpr=1.5", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "https://cdn.myapp.com/file-id/resize_100shrink,auto", body["primary"])
	assert.Equal(t, "https://cdn.myapp.com/file-id/resize_150shrink,auto 1.5x", body["srcset"])
}

func TestURL_BadInput(t *testing.T) {
	s, _ := newTestServer(t)
	for _, target := range []string{
		"/v1/url",
		"/v1/url?src=a&fit=stretch",
		"/v1/url?src=a&dpr=0",
		"/v1/url?src=./a.jpg&width=64",
		"/v1/url?src=/img/a.jpg&width=64",
	} {
		code, body := do(t, s, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, code, target)
		assert.NotEmpty(t, body["error"], target)
	}
}

func TestPlaceholder(t *testing.T) {
	s, cfg := newTestServer(t)

	std := testHash(t, base64.StdEncoding)
	code, body := do(t, s, http.MethodGet, "/v1/placeholder?hash="+url.QueryEscape(std), "")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, strings.HasPrefix(body["image"].(string), "data:image/png;base64,"))
	assert.True(t, strings.HasPrefix(body["hex"].(string), "#"))
	assert.Greater(t, body["aspect_ratio"].(float64), 1.0)

	code, _ = do(t, s, http.MethodGet, "/v1/placeholder?hash="+url.QueryEscape(std), "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, cfg.Placeholders().Decodes(), "second request served from cache")
}

func TestPlaceholder_PathForm(t *testing.T) {
	s, _ := newTestServer(t)
	code, body := do(t, s, http.MethodGet, "/v1/placeholder/"+testHash(t, base64.RawURLEncoding), "")
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["id"])
}

func TestPlaceholder_Invalid(t *testing.T) {
	s, _ := newTestServer(t)
	code, _ := do(t, s, http.MethodGet, "/v1/placeholder?hash=AAAA", "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, s, http.MethodGet, "/v1/placeholder", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRender(t *testing.T) {
	s, _ := newTestServer(t)
	hash := testHash(t, base64.StdEncoding)
	body := `{"src":"https://myapp.com/a.jpg","width":"50%","thumbhash":"` + hash + `","priority":"high","alt":"a","container":{"width":400,"height":300}}`

	code, out := do(t, s, http.MethodPost, "/v1/render", body)
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, "loading", out["state"])

	view := out["view"].(map[string]any)
	primary := view["primary"].(map[string]any)
	assert.Contains(t, primary["src"], "https://cdn.myapp.com/@ext_")
	assert.EqualValues(t, 200, primary["width"])

	ph := view["placeholder"].(map[string]any)
	assert.True(t, strings.HasPrefix(ph["image"].(string), "data:image/png;base64,"))
}

func TestRender_BadProps(t *testing.T) {
	s, _ := newTestServer(t)
	code, _ := do(t, s, http.MethodPost, "/v1/render", `{"src":"a","width":"wide"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}
