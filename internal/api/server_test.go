package api

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantmon/pkg/config"
	"github.com/wonny/quantmon/pkg/logger"
)

func TestServerServeAndShutdown(t *testing.T) {
	cfg := &config.Config{
		Port: "0",
		Env:  "development",
		Server: config.ServerConfig{
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			ShutdownTimeout: time.Second,
		},
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	router, _ := newTestRouter(t, panicStore{}, fixedRange{})
	srv := New(cfg, logger.NewNop(), router)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestServerRunListenError(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer ln.Close()

	_, port, _ := net.SplitHostPort(ln.Addr().String())
	srv := New(&config.Config{Port: port, Server: config.ServerConfig{ShutdownTimeout: time.Second}}, logger.NewNop(), http.NotFoundHandler())
	assert.ErrorContains(t, srv.Run(context.Background()), "listen")
}
