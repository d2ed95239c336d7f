package main

import (
	"math/rand"
	"time"
)

// Pool names the set of submissions a claim or unclaim request draws from.
type Pool int

const (
	PoolUnclaimed Pool = iota // no grader, not finalized
	PoolGrader                // held by the request's source grader
	PoolAll                   // any claimed submission
)

// ClaimRequest describes one allocation request against the grading queue.
// Target empty means unclaim. Num takes precedence over Percent when both are
// given; Percent defaults to 100 so a bare request moves the whole pool.
type ClaimRequest struct {
	Target           string // grader receiving the submissions; empty = unclaim
	Source           string // grader whose pool is drawn from (PoolGrader)
	Pool             Pool
	Num              int     // -1 = not set
	Percent          float64 // used when Num is not set
	Random           bool
	Seed             int64 // 0 = seed from the clock
	IncludeFinalized bool  // unclaim only: release finalized submissions too
}

// Reassignment is one instruction produced by ComputeClaims. Grader empty
// means clear the assignment; Unfinalize additionally clears the finalized
// flag. Instructions are never applied here; the caller pushes them to the
// grading platform after inspecting them.
type Reassignment struct {
	Submission Submission
	Grader     string
	Unfinalize bool
}

// ComputeClaims selects submissions from the eligible pool and pairs each
// with its new grader. A fixed count larger than the pool clamps to the pool
// size; a percentage selects floor(percent/100 * pool size). Selection keeps
// the pool's order unless Random is set, in which case a seeded shuffle picks
// uniformly without replacement.
func ComputeClaims(subs []Submission, roster Roster, req ClaimRequest) ([]Reassignment, error) {
	if req.Num != -1 && req.Num < 0 {
		return nil, invalidRequestf("count must not be negative, got %d", req.Num)
	}
	if req.Num == -1 && (req.Percent < 0 || req.Percent > 100) {
		return nil, invalidRequestf("percentage must be between 0 and 100, got %g", req.Percent)
	}
	if req.Target != "" && !roster.HasGrader(req.Target) {
		return nil, &UnknownGraderError{Grader: req.Target}
	}
	if req.Pool == PoolGrader {
		if req.Source == "" {
			return nil, invalidRequestf("a source grader is required for this pool")
		}
		if !roster.HasGrader(req.Source) {
			return nil, &UnknownGraderError{Grader: req.Source}
		}
	}

	pool := eligiblePool(subs, req)

	count := req.Num
	if count == -1 {
		count = int(req.Percent / 100 * float64(len(pool)))
	}
	if count > len(pool) {
		count = len(pool)
	}

	if req.Random {
		seed := req.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(pool), func(i, j int) {
			pool[i], pool[j] = pool[j], pool[i]
		})
	}

	out := make([]Reassignment, 0, count)
	for _, s := range pool[:count] {
		r := Reassignment{Submission: s, Grader: req.Target}
		if req.Target == "" && s.Finalized {
			r.Unfinalize = true
		}
		out = append(out, r)
	}
	return out, nil
}

// eligiblePool filters the submission list down to the request's pool,
// preserving input order. Finalized submissions are only released by an
// unclaim that explicitly includes them.
func eligiblePool(subs []Submission, req ClaimRequest) []Submission {
	unclaiming := req.Target == ""
	var pool []Submission
	for _, s := range subs {
		switch req.Pool {
		case PoolUnclaimed:
			if s.Claimed() || s.Finalized {
				continue
			}
		case PoolGrader:
			if !s.HeldBy(req.Source) {
				continue
			}
		case PoolAll:
			if !s.Claimed() {
				continue
			}
		}
		if unclaiming && s.Finalized && !req.IncludeFinalized {
			continue
		}
		pool = append(pool, s)
	}
	return pool
}
