package dashboard_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"microstatus/internal/config"
	"microstatus/internal/services"
	"microstatus/internal/services/dashboard"
)

const workersHTML = `<html><body><table>
<tr><th>Worker</th><th>Tasks</th></tr>
<tr><td><a href="../worker/w1.html">tcp://10.0.0.1:4000</a></td><td>x</td></tr>
<tr><td><a href="../worker/w2.html">tcp://10.0.0.2:4000</a></td><td>x</td></tr>
</table></body></html>`

func workerHTML(tasks int) string {
	var rows strings.Builder
	for i := 0; i < tasks; i++ {
		fmt.Fprintf(&rows, "<tr><td>task-%d</td></tr>", i)
	}
	return `<html><body>
<table><tr><th>a</th></tr></table>
<table><tr><th>b</th></tr></table>
<table><tr><th>Key</th></tr>` + rows.String() + `</table>
</body></html>`
}

func newServer(t *testing.T, w1, w2 int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/info/main/workers.html", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(workersHTML))
	})
	mux.HandleFunc("/info/worker/w1.html", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(workerHTML(w1)))
	})
	mux.HandleFunc("/info/worker/w2.html", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(workerHTML(w2)))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRosterCountsTasksPerWorker(t *testing.T) {
	srv := newServer(t, 3, 0)
	client, err := dashboard.New(config.Dashboard{URL: srv.URL + "/", RequestTimeout: 2})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	roster, err := client.Roster(context.Background())
	if err != nil {
		t.Fatalf("Roster returned error: %v", err)
	}
	if len(roster) != 2 || roster["tcp://10.0.0.1:4000"] != 3 || roster["tcp://10.0.0.2:4000"] != 0 {
		t.Fatalf("unexpected roster %v", roster)
	}
}

func TestRosterFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	client, err := dashboard.New(config.Dashboard{URL: srv.URL + "/", RequestTimeout: 2})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, err = client.Roster(context.Background())
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestRosterMalformedWorkerPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/info/main/workers.html", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(workersHTML))
	})
	mux.HandleFunc("/info/worker/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>restarting</p></body></html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := dashboard.New(config.Dashboard{URL: srv.URL + "/"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Roster(context.Background()); !services.IsTransient(err) {
		t.Fatalf("expected transient error for malformed page, got %v", err)
	}
}

func TestNewWithoutURL(t *testing.T) {
	client, err := dashboard.New(config.Dashboard{})
	if err != nil || client != nil {
		t.Fatalf("expected nil client, got %v %v", client, err)
	}
}
