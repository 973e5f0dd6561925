package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestMiddlewareRecordsRouteTemplate(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/post/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/post/abc", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	want := `nano_social_http_requests_total{method="GET",path="/api/v1/post/:id",status="404"} 1`
	if !strings.Contains(body, want) {
		t.Fatalf("missing %q in\n%s", want, body)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.StoriesPurged(3)
	m.NotificationCreated("like")
}

func TestNotificationCounter(t *testing.T) {
	m := New()
	m.NotificationCreated("follow")
	m.NotificationCreated("follow")
	m.StoriesPurged(0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `nano_social_notifications_created_total{type="follow"} 2`) {
		t.Fatal("notification counter not exported")
	}
}
