package main

import (
	"errors"
	"testing"
)

func queueFixture() ([]Submission, Roster) {
	roster := Roster{
		Graders: []string{"alice@school.edu", "bob@school.edu", "carol@school.edu"},
	}
	subs := []Submission{
		{ID: 1},
		{ID: 2, Grader: "alice@school.edu"},
		{ID: 3},
		{ID: 4, Grader: "bob@school.edu", Finalized: true},
		{ID: 5},
		{ID: 6, Grader: "alice@school.edu", Finalized: true},
		{ID: 7},
	}
	return subs, roster
}

func TestComputeClaimsFirstNInOrder(t *testing.T) {
	subs, roster := queueFixture()
	got, err := ComputeClaims(subs, roster, ClaimRequest{
		Target: "alice@school.edu", Pool: PoolUnclaimed, Num: 2,
	})
	if err != nil {
		t.Fatalf("ComputeClaims failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 reassignments, got %d", len(got))
	}
	if got[0].Submission.ID != 1 || got[1].Submission.ID != 3 {
		t.Fatalf("expected first two unclaimed submissions in order, got %d and %d",
			got[0].Submission.ID, got[1].Submission.ID)
	}
	for _, r := range got {
		if r.Grader != "alice@school.edu" {
			t.Fatalf("expected grader alice@school.edu, got %q", r.Grader)
		}
	}
}

func TestComputeClaimsClampsCountToPool(t *testing.T) {
	subs, roster := queueFixture()
	got, err := ComputeClaims(subs, roster, ClaimRequest{
		Target: "bob@school.edu", Pool: PoolUnclaimed, Num: 50,
	})
	if err != nil {
		t.Fatalf("ComputeClaims failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected clamp to pool size 4, got %d", len(got))
	}
}

func TestComputeClaimsPercentFloors(t *testing.T) {
	subs, roster := queueFixture()
	cases := []struct {
		percent float64
		want    int
	}{
		{0, 0},
		{50, 2},
		{60, 2}, // floor(0.6 * 4) = 2
		{100, 4},
	}
	for _, tc := range cases {
		got, err := ComputeClaims(subs, roster, ClaimRequest{
			Target: "alice@school.edu", Pool: PoolUnclaimed, Num: -1, Percent: tc.percent,
		})
		if err != nil {
			t.Fatalf("percent %g: ComputeClaims failed: %v", tc.percent, err)
		}
		if len(got) != tc.want {
			t.Fatalf("percent %g: expected %d selected, got %d", tc.percent, tc.want, len(got))
		}
	}
}

func TestComputeClaimsRejectsNegativeCount(t *testing.T) {
	subs, roster := queueFixture()
	_, err := ComputeClaims(subs, roster, ClaimRequest{
		Target: "alice@school.edu", Pool: PoolUnclaimed, Num: -3,
	})
	var invalid *InvalidRequestError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidRequestError, got %v", err)
	}
}

func TestComputeClaimsRejectsBadPercent(t *testing.T) {
	subs, roster := queueFixture()
	for _, percent := range []float64{-1, 120} {
		_, err := ComputeClaims(subs, roster, ClaimRequest{
			Target: "alice@school.edu", Pool: PoolUnclaimed, Num: -1, Percent: percent,
		})
		var invalid *InvalidRequestError
		if !errors.As(err, &invalid) {
			t.Fatalf("percent %g: expected InvalidRequestError, got %v", percent, err)
		}
	}
}

func TestComputeClaimsUnknownGrader(t *testing.T) {
	subs, roster := queueFixture()
	_, err := ComputeClaims(subs, roster, ClaimRequest{
		Target: "mallory@school.edu", Pool: PoolUnclaimed, Num: 1,
	})
	var unknown *UnknownGraderError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownGraderError, got %v", err)
	}
	if unknown.Grader != "mallory@school.edu" {
		t.Fatalf("unexpected grader in error: %q", unknown.Grader)
	}
}

func TestComputeClaimsRandomSeededAndWithoutReplacement(t *testing.T) {
	subs, roster := queueFixture()
	req := ClaimRequest{
		Target: "carol@school.edu", Pool: PoolUnclaimed, Num: 3, Random: true, Seed: 42,
	}
	first, err := ComputeClaims(subs, roster, req)
	if err != nil {
		t.Fatalf("ComputeClaims failed: %v", err)
	}
	second, err := ComputeClaims(subs, roster, req)
	if err != nil {
		t.Fatalf("ComputeClaims failed: %v", err)
	}
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected 3 selections, got %d and %d", len(first), len(second))
	}

	eligible := map[int64]bool{1: true, 3: true, 5: true, 7: true}
	seen := make(map[int64]bool)
	for i := range first {
		id := first[i].Submission.ID
		if !eligible[id] {
			t.Fatalf("selected submission %d outside the unclaimed pool", id)
		}
		if seen[id] {
			t.Fatalf("submission %d selected twice", id)
		}
		seen[id] = true
		if second[i].Submission.ID != id {
			t.Fatalf("same seed produced different order at %d: %d vs %d",
				i, id, second[i].Submission.ID)
		}
	}
}

func TestComputeClaimsFromGraderIncludesFinalized(t *testing.T) {
	subs, roster := queueFixture()
	got, err := ComputeClaims(subs, roster, ClaimRequest{
		Target: "bob@school.edu", Source: "alice@school.edu", Pool: PoolGrader, Num: -1, Percent: 100,
	})
	if err != nil {
		t.Fatalf("ComputeClaims failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected alice's 2 submissions, got %d", len(got))
	}
	if got[0].Submission.ID != 2 || got[1].Submission.ID != 6 {
		t.Fatalf("unexpected pool: %d, %d", got[0].Submission.ID, got[1].Submission.ID)
	}
}

func TestUnclaimSkipsFinalizedByDefault(t *testing.T) {
	subs, roster := queueFixture()
	got, err := ComputeClaims(subs, roster, ClaimRequest{
		Source: "alice@school.edu", Pool: PoolGrader, Num: -1, Percent: 100,
	})
	if err != nil {
		t.Fatalf("ComputeClaims failed: %v", err)
	}
	if len(got) != 1 || got[0].Submission.ID != 2 {
		t.Fatalf("expected only the draft submission 2, got %+v", got)
	}
	if got[0].Grader != "" || got[0].Unfinalize {
		t.Fatalf("unclaim instruction should clear grader only, got %+v", got[0])
	}
}

func TestUnclaimIncludeFinalizedUnfinalizes(t *testing.T) {
	subs, roster := queueFixture()
	got, err := ComputeClaims(subs, roster, ClaimRequest{
		Source: "alice@school.edu", Pool: PoolGrader, Num: -1, Percent: 100, IncludeFinalized: true,
	})
	if err != nil {
		t.Fatalf("ComputeClaims failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both of alice's submissions, got %d", len(got))
	}
	var sawFinalized bool
	for _, r := range got {
		if r.Submission.ID == 6 {
			sawFinalized = true
			if !r.Unfinalize {
				t.Fatalf("finalized submission should carry Unfinalize, got %+v", r)
			}
		}
	}
	if !sawFinalized {
		t.Fatal("finalized submission 6 missing from include-finalized unclaim")
	}
}

func TestUnclaimAllDrawsFromEveryGrader(t *testing.T) {
	subs, roster := queueFixture()
	got, err := ComputeClaims(subs, roster, ClaimRequest{
		Pool: PoolAll, Num: -1, Percent: 100, IncludeFinalized: true,
	})
	if err != nil {
		t.Fatalf("ComputeClaims failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected all 3 claimed submissions, got %d", len(got))
	}
}
