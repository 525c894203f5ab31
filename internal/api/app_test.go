package api

import (
	"net/http"
	"net/url"
	"testing"

	"convochat/internal/config"
	"convochat/internal/database"
	"convochat/internal/server"
	"convochat/internal/testutil"

	"github.com/stretchr/testify/assert"
)

func TestNewConvoApp(t *testing.T) {
	mux := http.NewServeMux()
	logger := testutil.TestLogger(t)
	cs := &server.ChatServer{}
	db := &database.MockConvoRepository{}
	cfg := &config.Config{
		ServerAddr:     "localhost:8000",
		DatabaseDSN:    "dsn",
		SigningKey:     []byte("secret"),
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	app := NewConvoApp(mux, logger, cs, db, nil, cfg)

	assert.NotNil(t, app, "expected app to be initialized")
	assert.NotNil(t, app.mux, "expected mux to be initialized")
	assert.Equal(t, app.log, logger, "expected logger to be set")
	assert.Equal(t, app.db, db, "expected db to be set")
	assert.Equal(t, app.cs, cs, "expected chat server to be set")
	assert.Equal(t, app.signingKey, cfg.SigningKey, "expected signing key to be set")
	assert.Equal(t, app.allowedOrigins, cfg.AllowedOrigins, "expected allowed origins to be set")
	assert.Equal(t, app.mux.Addr, cfg.ServerAddr, "expected server address to match config")

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/auth/register"},
		{http.MethodPost, "/api/auth/login"},
		{http.MethodGet, "/api/auth/session"},
		{http.MethodGet, "/api/auth/logout"},
		{http.MethodPost, "/api/conversations"},
		{http.MethodGet, "/api/conversations"},
		{http.MethodGet, "/ws"},
	}
	for _, route := range routes {
		_, pattern := mux.Handler(&http.Request{URL: &url.URL{Path: route.path}, Method: route.method})
		assert.Equal(t, route.method+" "+route.path, pattern, "expected route %s %s to be registered", route.method, route.path)
	}
}
