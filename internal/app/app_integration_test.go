//go:build integration

package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/tienda/pkg/client"
)

func startPostgres(t *testing.T) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "tienda",
				"POSTGRES_PASSWORD": "tienda",
				"POSTGRES_DB":       "tienda",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://tienda:tienda@%s:%s/tienda?sslmode=disable", host, port.Port())
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestRun(t *testing.T) {
	cfg := &Config{
		Addr:        freeAddr(t),
		DatabaseURL: startPostgres(t),
		Seed:        true,
		RateLimit:   RateLimitConfig{Max: 1000, Window: time.Minute},
		Graceful:    GracefulConfig{ShutdownTimeout: 5 * time.Second},
	}
	baseURL := "http://" + cfg.Addr

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, zaptest.NewLogger(t), Telemetry{
			TracerProvider: tracenoop.NewTracerProvider(),
			MeterProvider:  metricnoop.NewMeterProvider(),
		}, cfg)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/readyz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Minute, 200*time.Millisecond)

	c := client.New(baseURL, nil)

	t.Run("Seeded", func(t *testing.T) {
		page, err := c.ListProducts(ctx, client.ProductFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(25), page.Total)
		assert.Equal(t, 3, page.Pages)
	})

	t.Run("Livez", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/livez")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("RequestID", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	})

	t.Run("OrderLifecycle", func(t *testing.T) {
		p, err := c.CreateProduct(ctx, client.ProductInput{
			Name:     "Producto de prueba",
			Price:    decimal.RequireFromString("12.50"),
			Stock:    3,
			Category: "Pruebas",
		})
		require.NoError(t, err)

		o, err := c.PlaceOrder(ctx, client.OrderInput{
			Customer: "Integración",
			Items:    []client.Item{{ProductID: p.ID, Quantity: 3}},
		})
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("37.50").Equal(o.Total))

		got, err := c.GetProduct(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.Stock)

		_, err = c.PlaceOrder(ctx, client.OrderInput{
			Customer: "Integración",
			Items:    []client.Item{{ProductID: p.ID, Quantity: 1}},
		})
		assert.True(t, client.IsStatus(err, http.StatusConflict))

		stored, err := c.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, "Integración", stored.Customer)
	})

	t.Run("NonNumericID", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/ordenes/abc")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("Run did not stop")
	}

	_, err := http.Get(baseURL + "/livez")
	assert.Error(t, err, "server is closed after shutdown")
}
