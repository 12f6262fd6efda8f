package sync

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// gitFixture is a bare remote plus a clone of it holding one commit on main.
type gitFixture struct {
	t      *testing.T
	remote string
	clone  string
}

func newGitFixture(t *testing.T) *gitFixture {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	f := &gitFixture{t: t, remote: t.TempDir()}
	f.in(f.remote, "init", "--bare", "--initial-branch=main")

	parent := t.TempDir()
	f.in(parent, "clone", "--quiet", f.remote, "clone")
	f.clone = filepath.Join(parent, "clone")
	f.in(f.clone, "config", "user.name", "confengine tests")
	f.in(f.clone, "config", "user.email", "tests@confengine.invalid")
	f.in(f.clone, "symbolic-ref", "HEAD", "refs/heads/main")
	f.in(f.clone, "commit", "--quiet", "--allow-empty", "-m", "root")
	f.in(f.clone, "push", "--quiet", "origin", "main")
	return f
}

// in runs git in dir and returns its trimmed stdout.
func (f *gitFixture) in(dir string, args ...string) string {
	f.t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		f.t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, stderr.String())
	}
	return strings.TrimSpace(string(out))
}

func (f *gitFixture) remoteCommits() string {
	return f.in(f.remote, "rev-list", "--count", "main")
}

func TestGitDestination_CommitsOnlyChanges(t *testing.T) {
	f := newGitFixture(t)
	dest := NewGitDestination(f.clone, "configurations.jsonl", "main", testLogger())
	ctx := context.Background()

	for i, step := range []struct {
		data    string
		commits string
	}{
		{`{"type":"header","configuration_count":0}` + "\n", "2"},
		{`{"type":"header","configuration_count":0}` + "\n", "2"},
		{`{"type":"header","configuration_count":1}` + "\n", "3"},
	} {
		if err := dest.Write(ctx, []byte(step.data)); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if got := f.remoteCommits(); got != step.commits {
			t.Fatalf("after write %d the remote has %s commits, want %s", i, got, step.commits)
		}
	}

	if got := f.in(f.remote, "show", "main:configurations.jsonl"); got != `{"type":"header","configuration_count":1}` {
		t.Fatalf("remote file = %q", got)
	}
	if msg := f.in(f.remote, "log", "-1", "--format=%s", "main"); msg != gitCommitMessage {
		t.Fatalf("commit message = %q", msg)
	}
}

func TestGitDestination_CreatesDirectories(t *testing.T) {
	f := newGitFixture(t)
	dest := NewGitDestination(f.clone, "exports/prod/configurations.jsonl", "main", nil)

	if err := dest.Write(context.Background(), []byte("{}\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(f.clone, "exports", "prod", "configurations.jsonl"))
	if err != nil || string(data) != "{}\n" {
		t.Fatalf("file = %q, %v", data, err)
	}
}

func TestGitDestination_MissingBranch(t *testing.T) {
	f := newGitFixture(t)
	dest := NewGitDestination(f.clone, "configurations.jsonl", "release", nil)

	err := dest.Write(context.Background(), []byte("{}\n"))
	if err == nil || !strings.Contains(err.Error(), "git checkout") {
		t.Fatalf("expected a checkout error, got %v", err)
	}
}
