package paissa

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPaissa_Dedup_KeyProperties(t *testing.T) {
	t.Parallel()

	t.Run("stable across calls", func(t *testing.T) {
		t.Parallel()
		a := WardInfoDedupKey(31415, 339, 0, 0, "Alice Smith")
		b := WardInfoDedupKey(31415, 339, 0, 0, "Alice Smith")
		require.Equal(t, a, b)
	})

	t.Run("namespaced by event type", func(t *testing.T) {
		t.Parallel()
		ward := WardInfoDedupKey(31415, 339, 0, 0, "")
		lotto := LotteryInfoDedupKey(31415, 339, 0, 0)
		require.True(t, strings.HasPrefix(ward, "event.wardinfo.plot:"))
		require.True(t, strings.HasPrefix(lotto, "event.lotteryinfo.plot:"))
		// Same identity, same owner bytes: only the namespace differs.
		require.Equal(t,
			strings.TrimPrefix(ward, "event.wardinfo.plot:"),
			strings.TrimPrefix(lotto, "event.lotteryinfo.plot:"))
	})

	t.Run("hash is 64 hex chars", func(t *testing.T) {
		t.Parallel()
		key := WardInfoDedupKey(74, 340, 17, 42, "Namingway")
		hash := strings.TrimPrefix(key, "event.wardinfo.plot:")
		require.Len(t, hash, 64)
		require.Equal(t, strings.ToLower(hash), hash)
		require.NotContains(t, hash, ":")
	})

	t.Run("every identity component changes the key", func(t *testing.T) {
		t.Parallel()
		base := WardInfoDedupKey(74, 340, 17, 42, "Namingway")
		require.NotEqual(t, base, WardInfoDedupKey(75, 340, 17, 42, "Namingway"))
		require.NotEqual(t, base, WardInfoDedupKey(74, 341, 17, 42, "Namingway"))
		require.NotEqual(t, base, WardInfoDedupKey(74, 340, 18, 42, "Namingway"))
		require.NotEqual(t, base, WardInfoDedupKey(74, 340, 17, 43, "Namingway"))
		require.NotEqual(t, base, WardInfoDedupKey(74, 340, 17, 42, "Somebody Else"))
	})

	t.Run("owner name participates up to 32 bytes", func(t *testing.T) {
		t.Parallel()
		owner32 := strings.Repeat("a", 32)
		owner33 := owner32 + "b"
		require.Equal(t,
			WardInfoDedupKey(74, 340, 17, 42, owner32),
			WardInfoDedupKey(74, 340, 17, 42, owner33))
		require.NotEqual(t,
			WardInfoDedupKey(74, 340, 17, 42, strings.Repeat("a", 31)),
			WardInfoDedupKey(74, 340, 17, 42, owner32))
	})
}
