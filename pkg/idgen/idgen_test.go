package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInviteCodeFormat(t *testing.T) {
	for i := 0; i < 200; i++ {
		code := InviteCode("mall")
		require.Len(t, code, 9)
		require.True(t, strings.HasPrefix(code, "MALL-"))
		normalized, ok := NormalizeInviteCode("MALL", code)
		require.True(t, ok, code)
		require.Equal(t, code, normalized)
	}
}

func TestNormalizeInviteCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"MALL-7K2X", "MALL-7K2X", true},
		{"  mall-7k2x ", "MALL-7K2X", true},
		{"mall7k2x", "MALL-7K2X", true},
		{"7k2x", "MALL-7K2X", true},
		{"MALL-7K2", "", false},
		{"MALL-7K2XX", "", false},
		{"MALL-0K2X", "", false}, // 0 不在字符集中
		{"MALL-IK2X", "", false}, // I 不在字符集中
		{"SHOP-7K2X", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeInviteCode("MALL", tc.in)
		require.Equal(t, tc.ok, ok, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

func TestGenerateEntryNoUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		no := GenerateEntryNo()
		require.True(t, strings.HasPrefix(no, "LED"))
		_, dup := seen[no]
		require.False(t, dup, no)
		seen[no] = struct{}{}
	}
}

func TestInitRejectsInvalidWorker(t *testing.T) {
	require.Error(t, Init(-1))
	require.Error(t, Init(maxWorkerID+1))
}
