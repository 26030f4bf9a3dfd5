package e2e

import (
	"bytes"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	expect "github.com/Netflix/go-expect"
	"github.com/creack/pty"

	"github.com/abelbrown/minifeed/internal/api"
	"github.com/abelbrown/minifeed/internal/mockapi"
	"github.com/abelbrown/minifeed/internal/store"
)

// buildMinifeed builds the minifeed binary for testing.
func buildMinifeed(t *testing.T) string {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), "minifeed")

	rootDir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	// We run in test/e2e; the module root is two levels up.
	rootDir = filepath.Join(rootDir, "..", "..")

	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/minifeed")
	cmd.Dir = rootDir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build failed: %v\n%s", err, out)
	}
	return binPath
}

func TestE2E_PageLikeQuit(t *testing.T) {
	if testing.Short() {
		t.Skip("builds and runs the binary")
	}
	binPath := buildMinifeed(t)

	backend := mockapi.New()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	homeDir := t.TempDir()
	dataDir, err := writeConfig(homeDir, srv.URL+mockapi.Prefix)
	if err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := exec.Command(binPath)
	cmd.Dir = homeDir
	cmd.Env = append(os.Environ(), "HOME="+homeDir)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		t.Fatalf("failed to start pty: %v", err)
	}
	defer func() {
		_ = ptmx.Close()
		_ = cmd.Process.Kill()
	}()
	if err := pty.Setsize(ptmx, &pty.Winsize{Cols: 120, Rows: 40}); err != nil {
		t.Fatalf("failed to set pty size: %v", err)
	}

	var outputBuf bytes.Buffer
	console, err := expect.NewConsole(
		expect.WithStdin(ptmx),
		expect.WithStdout(&outputBuf),
		expect.WithDefaultTimeout(5*time.Second),
	)
	if err != nil {
		t.Fatalf("failed to create console: %v", err)
	}
	defer console.Close()

	t.Log("Waiting for the first card...")
	if _, err := console.ExpectString("1 / 5"); err != nil {
		t.Fatalf("first page not shown: %v\nScreen:\n%s", err, outputBuf.String())
	}

	time.Sleep(200 * time.Millisecond)
	if _, err := console.Send("l"); err != nil {
		t.Fatalf("failed to send l: %v", err)
	}
	if _, err := console.ExpectString("2 / 5"); err != nil {
		t.Fatalf("next card not shown: %v\nScreen:\n%s", err, outputBuf.String())
	}

	if _, err := console.Send(" "); err != nil {
		t.Fatalf("failed to send space: %v", err)
	}
	if _, err := console.ExpectString("♥ liked"); err != nil {
		t.Fatalf("like not shown: %v\nScreen:\n%s", err, outputBuf.String())
	}

	// Let the upsert settle before quitting.
	time.Sleep(500 * time.Millisecond)
	if _, err := console.Send("q"); err != nil {
		t.Fatalf("failed to send q: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after 'q'")
	}

	if got := backend.Relation("item", 1002, api.RelationLike); got != api.StatusActive {
		t.Errorf("like on server = %q, want active", got)
	}

	seen := map[api.EventType]map[int64]bool{}
	for _, ev := range backend.Events() {
		if seen[ev.EventType] == nil {
			seen[ev.EventType] = map[int64]bool{}
		}
		seen[ev.EventType][ev.ItemID] = true
	}
	if !seen[api.EventImpression][1001] || !seen[api.EventImpression][1002] {
		t.Errorf("impressions = %v", seen[api.EventImpression])
	}
	if !seen[api.EventStay][1001] {
		t.Errorf("stays = %v", seen[api.EventStay])
	}

	st, err := store.Open(filepath.Join(dataDir, store.FileName))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer st.Close()
	items, err := st.RecentItems(50)
	if err != nil || len(items) != 5 {
		t.Errorf("history items = %d, %v", len(items), err)
	}
	rel, err := st.Relation("item", 1002, api.RelationLike)
	if err != nil || !rel.Active {
		t.Errorf("history relation = %+v, %v", rel, err)
	}
}
