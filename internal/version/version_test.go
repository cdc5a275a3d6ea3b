package version

import (
	"strings"
	"testing"
)

func TestFullIncludesVersionAndCommit(t *testing.T) {
	prevVersion, prevCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = prevVersion, prevCommit })

	Version, Commit = "1.2.3", "abc123"
	got := Full()
	if !strings.HasPrefix(got, "ttl-file-cache ") {
		t.Fatalf("expected binary name prefix, got %q", got)
	}
	if got != "ttl-file-cache 1.2.3 (abc123)" {
		t.Fatalf("unexpected version string %q", got)
	}
}
