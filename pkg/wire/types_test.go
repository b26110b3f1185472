package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntryKindString(t *testing.T) {
	require.Equal(t, "Regular_File", RegularFile.String())
	require.Equal(t, "Directory", Directory.String())
}

func TestNotifyKindString(t *testing.T) {
	require.Equal(t, "UPDATE", NotifyUpdate.String())
	require.Equal(t, "DELETE", NotifyDelete.String())
	require.Equal(t, "RENAME", NotifyRename.String())
	require.Equal(t, "UNKNOWN", NotifyKind(99).String())
}
