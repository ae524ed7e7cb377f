//go:build !integration

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricer/internal/scenario"
)

func TestResolvePort_FlagSet(t *testing.T) {
	assert.Equal(t, 9090, resolvePort(9090, 5000))
}

func TestResolvePort_FlagZero(t *testing.T) {
	assert.Equal(t, 5000, resolvePort(0, 5000))
}

func TestResolvePort_BothZero(t *testing.T) {
	assert.Equal(t, 0, resolvePort(0, 0))
}

// getFreePort returns a free TCP port on localhost.
func getFreePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestStartServer_GracefulShutdown(t *testing.T) {
	withTestConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	handler := buildRouter(scenario.Unavailable(errors.New("no dataset"), nil, nil), nil)
	port := getFreePort(t)

	errCh := make(chan error, 1)
	go func() {
		errCh <- startServer(ctx, handler, port)
	}()

	var ready bool
	for range 50 {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
		if err == nil {
			resp.Body.Close()
			ready = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, ready, "server did not become ready in time")

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status  string `json:"status"`
		Trained bool   `json:"trained"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.False(t, body.Trained)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestEngineOrUnavailable_Trains(t *testing.T) {
	withTestConfig(t)

	engine := engineOrUnavailable(context.Background(), nil, nil)
	require.NotNil(t, engine)
	assert.True(t, engine.Ready())

	bands, err := engine.Bands()
	require.NoError(t, err)
	assert.Len(t, bands, 3)
}

func TestEngineOrUnavailable_MissingDataset(t *testing.T) {
	c := withTestConfig(t)
	c.Dataset.Path = c.Dataset.Path + ".missing"

	engine := engineOrUnavailable(context.Background(), nil, nil)
	require.NotNil(t, engine)
	assert.False(t, engine.Ready())
	assert.Error(t, engine.Cause())

	// The menu still comes from the configured catalog.
	menu := engine.Catalog()
	assert.ElementsMatch(t, []string{"Kitchen", "Tools"}, menu.Categories)
	assert.ElementsMatch(t, []string{"Widget", "Sprocket"}, menu.ProductsByCategory["Tools"])
}

func TestTrainEngine_BadPolicy(t *testing.T) {
	c := withTestConfig(t)
	c.Optimizer.NegativeDemand = "ignore"

	_, _, err := trainEngine(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestRetryPolicy_FromConfig(t *testing.T) {
	c := withTestConfig(t)
	c.Store.ConnectAttempts = 5
	c.Store.ConnectBackoffMs = 20

	p := retryPolicy("open store")
	assert.Equal(t, 5, p.Attempts)
	assert.Equal(t, 20*time.Millisecond, p.InitialBackoff)
	assert.NotNil(t, p.OnRetry)
}
