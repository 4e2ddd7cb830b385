package alias

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTags(t *testing.T) {
	require.Equal(t, Tag("0.1-0.2"), MakeTag(0, 1, 0, 2))
	require.Equal(t, Tag("1.10-2.0"), MakeTag(1, 10, 2, 0))
	require.Equal(t, Tag("?-0.2"), UnknownTag(0, 2))
}

func TestDefault(t *testing.T) {
	table := Default()
	require.Equal(t, []Tag{"0.1-0.2", "0.2-0.2", "?-0.2"}, table.Tags())

	testCases := []struct {
		name     string
		tag      Tag
		ok       bool
		settings bool
		devices  bool
	}{
		{"0.1 to 0.2", MakeTag(0, 1, 0, 2), true, true, false},
		{"0.2 to 0.2", MakeTag(0, 2, 0, 2), true, true, true},
		{"unknown to 0.2", UnknownTag(0, 2), true, false, true},
		{"0.0 to 0.2", MakeTag(0, 0, 0, 2), false, false, false},
		{"0.2 to 0.3", MakeTag(0, 2, 0, 3), false, false, false},
		{"unknown to 0.1", UnknownTag(0, 1), false, false, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr, ok := table.Lookup(tc.tag)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.settings, tr.RestoresSettings())
			require.Equal(t, tc.devices, tr.Devices)
		})
	}
}

func TestAliases(t *testing.T) {
	table := Default()
	tr, _ := table.Lookup(MakeTag(0, 1, 0, 2))
	require.Equal(t, Entry{"beerSet", "beerSetting", "tempSet"}, tr.Aliases("beerSet"))
	require.Nil(t, tr.Aliases("noSuchKey"))

	tr, _ = table.Lookup(MakeTag(0, 2, 0, 2))
	for _, key := range append(append([]string{}, constantKeys02...), settingKeys02...) {
		require.Equal(t, Entry{key}, tr.Aliases(key))
	}
}

func TestDefaultIsolated(t *testing.T) {
	a, b := Default(), Default()
	tr, _ := a.Lookup(MakeTag(0, 1, 0, 2))
	tr.Settings["beerSet"][0] = "changed"
	tr, _ = b.Lookup(MakeTag(0, 1, 0, 2))
	require.Equal(t, "beerSet", tr.Settings["beerSet"][0])
}
