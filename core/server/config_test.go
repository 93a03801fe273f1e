package server_test

import (
	"context"
	"net"
	"testing"
	"time"

	"lsadf-backend/core/server"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfig_Address(t *testing.T) {
	tests := []struct {
		name string
		cfg  server.Config
		want string
	}{
		{"AllInterfaces", server.Config{Port: "8080"}, ":8080"},
		{"Loopback", server.Config{Host: "127.0.0.1", Port: "9000"}, "127.0.0.1:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Address())
		})
	}
}

func freePort(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	_, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	return port
}

func TestService_ServeStopsOnCancel(t *testing.T) {
	cfg := server.Config{Host: "127.0.0.1", Port: freePort(t), ShutdownTimeout: time.Second}
	app := server.NewApp(cfg)
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	svc := server.NewService(app, cfg, zap.NewNop())
	assert.Equal(t, "http", svc.String())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", cfg.Address())
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
