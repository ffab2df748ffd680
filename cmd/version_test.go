package cmd

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
)

func TestVersionText(t *testing.T) {
	lines := strings.Split(strings.TrimSpace(versionText("1.4.2", "3f9c2ab", "2024-06-01")), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "reconciler 1.4.2 (commit 3f9c2ab, built 2024-06-01)", lines[0])
	assert.Equal(t, runtime.Version()+" "+runtime.GOOS+"/"+runtime.GOARCH, lines[1])
	assert.Equal(t, "stripe api "+stripe.APIVersion, lines[2])
}

func TestVersionTextUnknownCommit(t *testing.T) {
	assert.Contains(t, versionText("dev", "", "unknown"), "(commit unknown, built unknown)")
}

func TestBuildCommitPrefersStampedValue(t *testing.T) {
	saved := Commit
	t.Cleanup(func() { Commit = saved })

	Commit = "abc1234"
	assert.Equal(t, "abc1234", buildCommit())
}
