package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestWriteTextfile writes every series in the text exposition format.
func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "textfile", "kasse_update.prom")

	err := WriteTextfile(path, &UpdateReport{
		Outcome:  OutcomeUpdated,
		Revision: "ffee0011",
		Started:  time.Unix(1700000000, 0),
		Duration: 1500 * time.Millisecond,
	})
	require.NoError(t, err)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(contents)
	require.Contains(t, text, "kasse_update_last_run_timestamp_seconds 1.7e+09")
	require.Contains(t, text, "kasse_update_duration_seconds 1.5")
	require.Contains(t, text, `kasse_update_outcome{outcome="updated"} 1`)
	require.Contains(t, text, `kasse_update_outcome{outcome="offline"} 0`)
	require.Contains(t, text, `kasse_deployed_revision_info{revision="ffee0011"} 1`)
}

// TestWriteTextfile_NoRevision omits the revision series when unknown.
func TestWriteTextfile_NoRevision(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kasse_update.prom")

	require.NoError(t, WriteTextfile(path, &UpdateReport{Outcome: OutcomeLocked, Started: time.Now()}))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), `kasse_update_outcome{outcome="locked"} 1`)
	require.NotContains(t, string(contents), "kasse_deployed_revision_info{")
}
