package main

import (
	"bytes"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/sensorhub/internal/telemetry"
)

func TestShutdownHTTP_LogsDeadline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	})}
	go srv.Serve(ln)

	go http.Get("http://" + ln.Addr().String() + "/")
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("request did not reach handler")
	}

	// Запрос не завершается до дедлайна остановки
	var buf bytes.Buffer
	shutdownHTTP(srv, 20*time.Millisecond, telemetry.NewLogger(&buf, "text", slog.LevelInfo))

	if !strings.Contains(buf.String(), "http server shutdown") {
		t.Errorf("shutdown error not logged: %q", buf.String())
	}
}

func TestShutdownHTTP_Idle(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := &http.Server{Handler: http.NotFoundHandler()}
	go srv.Serve(ln)

	var buf bytes.Buffer
	shutdownHTTP(srv, time.Second, telemetry.NewLogger(&buf, "text", slog.LevelInfo))

	if buf.Len() != 0 {
		t.Errorf("unexpected log output: %q", buf.String())
	}
}
