package domain

import "testing"

func TestMedalForRank(t *testing.T) {
	cases := []struct {
		rank int
		want Medal
	}{
		{1, MedalGold},
		{2, MedalSilver},
		{3, MedalBronze},
		{4, ""},
		{10, ""},
		{0, ""},
	}
	for _, tc := range cases {
		if got := MedalForRank(tc.rank); got != tc.want {
			t.Fatalf("rank %d: expected %q, got %q", tc.rank, tc.want, got)
		}
	}
}
