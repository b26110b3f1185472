package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenHandlePairIndependentCursors(t *testing.T) {
	cp := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(cp, []byte("0123456789"), 0644))

	of, err := openHandlePair("/a", cp)
	require.NoError(t, err)
	defer of.closeDiscard()

	buf := make([]byte, 4)
	n, err := of.ReadAt(buf, 2)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "2345", string(buf))

	wn, err := of.WriteAt([]byte("XX"), 0)
	require.NoError(t, err)
	require.Equal(t, 2, wn)

	// the read handle's independent cursor is unaffected by the write.
	buf2 := make([]byte, 4)
	n2, err := of.ReadAt(buf2, 2)
	require.NoError(t, err)
	require.Equal(t, 4, n2)
	require.Equal(t, "2345", string(buf2))
}

func TestOpenHandlePairMissingFile(t *testing.T) {
	_, err := openHandlePair("/a", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestCloseForFlushSyncsAndReopensReadOnly(t *testing.T) {
	cp := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(cp, []byte("hello"), 0644))

	of, err := openHandlePair("/a", cp)
	require.NoError(t, err)

	_, err = of.WriteAt([]byte("HELLO"), 0)
	require.NoError(t, err)

	streamF, err := of.closeForFlush()
	require.NoError(t, err)
	defer streamF.Close()

	buf := make([]byte, 5)
	n, err := streamF.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "HELLO", string(buf[:n]))
}

func TestCloseDiscardClosesBothHandles(t *testing.T) {
	cp := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(cp, []byte("x"), 0644))

	of, err := openHandlePair("/a", cp)
	require.NoError(t, err)
	of.closeDiscard()

	_, err = of.rf.Read(make([]byte, 1))
	require.Error(t, err, "read handle should be closed")
	_, err = of.wf.Write([]byte("y"))
	require.Error(t, err, "write handle should be closed")
}
