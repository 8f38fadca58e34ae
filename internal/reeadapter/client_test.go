package reeadapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const samplePayload = `{
	"data": {
		"type": "Balance de energía eléctrica",
		"id": "bal1",
		"attributes": {
			"title": "Balance de energía eléctrica",
			"last-update": "2024-01-02T10:00:00.000+01:00"
		}
	},
	"included": [
		{
			"type": "Renovable",
			"id": "ren",
			"attributes": {
				"title": "Renovable",
				"content": [
					{
						"type": "Eólica",
						"id": "eol",
						"attributes": {
							"title": "Eólica",
							"color": "#6fb114",
							"values": [
								{"value": 1234.5, "percentage": 0.4, "datetime": "2024-01-01T00:00:00.000+01:00"}
							]
						}
					}
				]
			}
		}
	]
}`

func TestFetchBalance(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"start_date": r.URL.Query().Get("start_date"),
			"end_date":   r.URL.Query().Get("end_date"),
			"time_trunc": r.URL.Query().Get("time_trunc"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	payload, err := client.FetchBalance(context.Background(), start, end, "day")
	if err != nil {
		t.Fatalf("fetch balance: %v", err)
	}

	if gotQuery["start_date"] != "2024-01-01T00:00" || gotQuery["end_date"] != "2024-01-02T00:00" {
		t.Fatalf("unexpected date params: %v", gotQuery)
	}
	if gotQuery["time_trunc"] != "day" {
		t.Fatalf("expected time_trunc=day, got %q", gotQuery["time_trunc"])
	}
	if payload.Data == nil || payload.Data.Attributes.Title == "" {
		t.Fatalf("expected primary data object, got %+v", payload.Data)
	}
	if len(payload.Included) != 1 {
		t.Fatalf("expected 1 section, got %d", len(payload.Included))
	}
	entry := payload.Included[0].Attributes.Content[0]
	if entry.Attributes.Title != "Eólica" || len(entry.Attributes.Values) != 1 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Attributes.Values[0].Value != 1234.5 {
		t.Fatalf("unexpected value: %v", entry.Attributes.Values[0].Value)
	}
}

func TestFetchBalanceStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.FetchBalance(context.Background(), time.Now().Add(-time.Hour), time.Now(), "hour")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", statusErr.StatusCode)
	}
}

func TestFetchBalanceAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors":[{"code":"invalid","detail":"bad time_trunc"}]}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.FetchBalance(context.Background(), time.Now().Add(-time.Hour), time.Now(), "hour"); err == nil {
		t.Fatalf("expected api error")
	}
}

func TestFetchBalanceRejectsInvertedRange(t *testing.T) {
	client, err := NewClient("")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.FetchBalance(context.Background(), time.Now(), time.Now().Add(-time.Hour), "hour"); err == nil {
		t.Fatalf("expected error on inverted range")
	}
}
