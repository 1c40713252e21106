package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	note := Notification{
		Bucket:         time.Now(),
		ZoneID:         "global_primary",
		Deviation:      decimal.NewFromFloat(0.19),
		Threshold:      decimal.NewFromFloat(0.15),
		ReferencePrice: decimal.NewFromFloat(99.96),
		TargetPrice:    decimal.NewFromInt(84),
		Direction:      "up",
	}

	if err := notifier.Notify(context.Background(), note); err != nil {
		t.Fatalf("Telegram Notify 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	if !strings.Contains(received["text"], "global_primary") {
		t.Fatalf("text 应包含 zone id: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	note := Notification{Bucket: time.Now(), ZoneID: "global_primary"}

	if err := notifier.Notify(context.Background(), note); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
