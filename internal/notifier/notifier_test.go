package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ps "github.com/mitchellh/go-ps"

	"github.com/julianstephens/petminder/internal/constants"
)

type mockProcess struct {
	pid        int
	executable string
}

func (m *mockProcess) Pid() int           { return m.pid }
func (m *mockProcess) PPid() int          { return 0 }
func (m *mockProcess) Executable() string { return m.executable }

func stubConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old := userConfigDirFunc
	t.Cleanup(func() { userConfigDirFunc = old })
	userConfigDirFunc = func() (string, error) { return dir, nil }
	return dir
}

func stubProcess(t *testing.T, executable string) {
	t.Helper()
	old := findProcessFunc
	t.Cleanup(func() { findProcessFunc = old })
	findProcessFunc = func(pid int) (ps.Process, error) {
		if executable == "" {
			return nil, nil
		}
		return &mockProcess{pid: pid, executable: executable}, nil
	}
}

func TestGetTrayAppConfigDir(t *testing.T) {
	base := stubConfigDir(t)

	expectedDefault := filepath.Join(base, constants.TrayAppIdentifier)
	dir, err := GetTrayAppConfigDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != expectedDefault {
		t.Errorf("expected %s, got %s", expectedDefault, dir)
	}

	if err := os.MkdirAll(expectedDefault, 0755); err != nil {
		t.Fatal(err)
	}
	settingsPath := filepath.Join(expectedDefault, "settings.json")

	t.Run("custom lockfile dir", func(t *testing.T) {
		customDir := "/custom/petminder/dir"
		settings := fmt.Sprintf(`{"settings": {"lockfile_dir": "%s"}}`, customDir)
		if err := os.WriteFile(settingsPath, []byte(settings), 0644); err != nil {
			t.Fatal(err)
		}
		dir, err := GetTrayAppConfigDir()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir != customDir {
			t.Errorf("expected %s, got %s", customDir, dir)
		}
	})

	t.Run("empty lockfile dir falls back", func(t *testing.T) {
		if err := os.WriteFile(settingsPath, []byte(`{"settings": {"lockfile_dir": ""}}`), 0644); err != nil {
			t.Fatal(err)
		}
		dir, err := GetTrayAppConfigDir()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir != expectedDefault {
			t.Errorf("expected %s, got %s", expectedDefault, dir)
		}
	})

	t.Run("corrupt settings fall back", func(t *testing.T) {
		if err := os.WriteFile(settingsPath, []byte(`{not json`), 0644); err != nil {
			t.Fatal(err)
		}
		dir, err := GetTrayAppConfigDir()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir != expectedDefault {
			t.Errorf("expected %s, got %s", expectedDefault, dir)
		}
	})
}

func TestFindAndValidateTrayProcess(t *testing.T) {
	lockfilePath := filepath.Join(t.TempDir(), constants.NotifierLockfileName)

	if _, _, err := findAndValidateTrayProcess(lockfilePath); !errors.Is(err, ErrTrayNotRunning) {
		t.Errorf("missing lockfile: expected ErrTrayNotRunning, got %v", err)
	}

	tests := []struct {
		name       string
		content    string
		executable string
		wantErr    string
	}{
		{name: "two part format", content: "8080|12345", executable: trayExecutable, wantErr: "malformed"},
		{name: "garbage", content: "invalid", executable: trayExecutable, wantErr: "malformed"},
		{name: "empty secret", content: "8080|12345|", executable: trayExecutable, wantErr: "secret"},
		{name: "empty port", content: "|12345|s3cret", executable: trayExecutable, wantErr: "port"},
		{name: "port out of range", content: "99999|12345|s3cret", executable: trayExecutable, wantErr: "range"},
		{name: "bad pid", content: "8080|abc|s3cret", executable: trayExecutable, wantErr: "process ID"},
		{name: "process gone", content: "8080|12345|s3cret", executable: "", wantErr: "not running"},
		{name: "wrong executable", content: "8080|12345|s3cret", executable: "other-app", wantErr: "is not"},
		{name: "valid", content: "8080|12345|s3cret\n", executable: trayExecutable + ".exe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := os.WriteFile(lockfilePath, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			stubProcess(t, tt.executable)

			port, secret, err := findAndValidateTrayProcess(lockfilePath)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if port != "8080" || secret != "s3cret" {
				t.Errorf("got port=%q secret=%q", port, secret)
			}
		})
	}
}

type trayServer struct {
	*httptest.Server
	hits     atomic.Int32
	failures int32
	last     atomic.Value
}

func newTrayServer(t *testing.T, secret string, failures int32) *trayServer {
	t.Helper()
	ts := &trayServer{failures: failures}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ts.hits.Add(1)
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get(secretHeader) != secret {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("Unauthorized"))
			return
		}
		var payload WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if n <= ts.failures {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		ts.last.Store(payload)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *trayServer) port(t *testing.T) string {
	t.Helper()
	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	return u.Port()
}

func testNotifier() *Notifier {
	n := New()
	n.retryDelay = time.Millisecond
	return n
}

func TestSend(t *testing.T) {
	ts := newTrayServer(t, "test-secret", 0)
	n := testNotifier()
	ctx := context.Background()

	if err := n.send(ctx, ts.port(t), "test-secret", WebhookPayload{Text: "hello"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := n.send(ctx, ts.port(t), "", WebhookPayload{Text: "hello"}); err == nil {
		t.Error("expected error for missing secret")
	}
	err := n.send(ctx, ts.port(t), "wrong-secret", WebhookPayload{Text: "hello"})
	var rejected *rejectedError
	if !errors.As(err, &rejected) || rejected.status != http.StatusUnauthorized {
		t.Errorf("expected 401 rejection, got %v", err)
	}
}

func writeLockfile(t *testing.T, base, content string) {
	t.Helper()
	dir := filepath.Join(base, constants.TrayAppIdentifier)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, constants.NotifierLockfileName), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestNotify(t *testing.T) {
	t.Run("delivers payload", func(t *testing.T) {
		base := stubConfigDir(t)
		stubProcess(t, trayExecutable)
		ts := newTrayServer(t, "abc", 0)
		writeLockfile(t, base, ts.port(t)+"|4242|abc")

		if err := testNotifier().Notify(context.Background(), "Biscuit: Walk", "Time for a walk"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, _ := ts.last.Load().(WebhookPayload)
		if got.Title != "Biscuit: Walk" || got.Text != "Time for a walk" {
			t.Errorf("unexpected payload %+v", got)
		}
		if got.DurationMs != constants.NotificationDurationMs {
			t.Errorf("expected duration %d, got %d", constants.NotificationDurationMs, got.DurationMs)
		}
	})

	t.Run("retries server errors", func(t *testing.T) {
		base := stubConfigDir(t)
		stubProcess(t, trayExecutable)
		ts := newTrayServer(t, "abc", 2)
		writeLockfile(t, base, ts.port(t)+"|4242|abc")

		if err := testNotifier().Notify(context.Background(), "t", "x"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if hits := ts.hits.Load(); hits != 3 {
			t.Errorf("expected 3 attempts, got %d", hits)
		}
	})

	t.Run("gives up after retries", func(t *testing.T) {
		base := stubConfigDir(t)
		stubProcess(t, trayExecutable)
		ts := newTrayServer(t, "abc", 100)
		writeLockfile(t, base, ts.port(t)+"|4242|abc")

		if err := testNotifier().Notify(context.Background(), "t", "x"); err == nil {
			t.Fatal("expected error")
		}
		if hits := ts.hits.Load(); hits != constants.NotifyMaxRetries+1 {
			t.Errorf("expected %d attempts, got %d", constants.NotifyMaxRetries+1, hits)
		}
	})

	t.Run("does not retry rejections", func(t *testing.T) {
		base := stubConfigDir(t)
		stubProcess(t, trayExecutable)
		ts := newTrayServer(t, "abc", 0)
		writeLockfile(t, base, ts.port(t)+"|4242|wrong")

		if err := testNotifier().Notify(context.Background(), "t", "x"); err == nil {
			t.Fatal("expected error")
		}
		if hits := ts.hits.Load(); hits != 1 {
			t.Errorf("expected 1 attempt, got %d", hits)
		}
	})

	t.Run("tray not running", func(t *testing.T) {
		stubConfigDir(t)
		if err := testNotifier().Notify(context.Background(), "t", "x"); !errors.Is(err, ErrTrayNotRunning) {
			t.Errorf("expected ErrTrayNotRunning, got %v", err)
		}
	})
}
