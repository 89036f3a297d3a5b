package messaging_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/felixgeelhaar/agentflow/internal/infrastructure/messaging"
)

func TestWebhookAdapter_Send(t *testing.T) {
	var received messaging.Notification
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("got content type %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Error(err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	adapter := messaging.NewWebhookAdapter(messaging.AdapterConfig{
		Name: "test", Type: "webhook", URL: server.URL, Enabled: true,
	})

	n := messaging.Notification{
		Kind:      messaging.KindPlanReady,
		ProjectID: "p1",
		Title:     "Plan ready",
		Body:      "5 tasks",
	}
	if err := adapter.Send(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	if received.Kind != messaging.KindPlanReady || received.ProjectID != "p1" {
		t.Errorf("server received %+v", received)
	}
}

func TestWebhookAdapter_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	adapter := messaging.NewWebhookAdapter(messaging.AdapterConfig{Name: "test", URL: server.URL})
	err := adapter.Send(context.Background(), messaging.Notification{Kind: messaging.KindHumanTask})
	if err == nil {
		t.Error("5xx response must surface as an error")
	}
}

func TestSlackAdapter_Send(t *testing.T) {
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Error(err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	adapter := messaging.NewSlackAdapter(messaging.AdapterConfig{Name: "slack", URL: server.URL})
	n := messaging.Notification{
		Kind:  messaging.KindProjectCompleted,
		Title: "Project completed: Beta",
		Body:  "All tasks finished.",
	}
	if err := adapter.Send(context.Background(), n); err != nil {
		t.Fatal(err)
	}

	text, _ := payload["text"].(string)
	if text == "" {
		t.Fatal("slack payload needs a text field")
	}
	if payload["blocks"] == nil {
		t.Error("slack payload should carry blocks")
	}
}
