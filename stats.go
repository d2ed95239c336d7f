package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// QueueStats are one assignment's claim-state counts. Every submission lands
// in exactly one of DummyHeld, Finalized, Drafts or Unclaimed.
type QueueStats struct {
	Assignment string
	Total      int
	Finalized  int
	Drafts     int
	DummyHeld  int
	Unclaimed  int
}

// ComputeQueueStats buckets submissions by claim state. Dummy holds count as
// parked regardless of their finalized flag.
func ComputeQueueStats(assignment string, subs []Submission, dummyGrader string) QueueStats {
	st := QueueStats{Assignment: assignment, Total: len(subs)}
	for _, s := range subs {
		switch {
		case dummyGrader != "" && s.HeldBy(dummyGrader):
			st.DummyHeld++
		case s.Finalized:
			st.Finalized++
		case s.Claimed():
			st.Drafts++
		default:
			st.Unclaimed++
		}
	}
	return st
}

func (s QueueStats) Claimed() int {
	return s.Total - s.Unclaimed
}

func (s QueueStats) DonePercent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Finalized) / float64(s.Total) * 100
}

func formatStatsRow(st QueueStats) string {
	return fmt.Sprintf("%-28s  total %4d  claimed %4d  drafts %4d  finalized %4d  dummy %4d  unclaimed %4d  %5.1f%% done",
		st.Assignment, st.Total, st.Claimed(), st.Drafts, st.Finalized,
		st.DummyHeld, st.Unclaimed, st.DonePercent())
}

// FormatQueueStats renders one line per assignment plus a course total line
// when more than one assignment is shown.
func FormatQueueStats(stats []QueueStats) string {
	var b strings.Builder
	total := QueueStats{Assignment: "TOTAL"}
	for _, st := range stats {
		b.WriteString(formatStatsRow(st))
		b.WriteByte('\n')
		total.Total += st.Total
		total.Finalized += st.Finalized
		total.Drafts += st.Drafts
		total.DummyHeld += st.DummyHeld
		total.Unclaimed += st.Unclaimed
	}
	if len(stats) > 1 {
		b.WriteString(formatStatsRow(total))
		b.WriteByte('\n')
	}
	return b.String()
}

func runStats(cfg Config, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	assignment := fs.String("assignment", "", "limit to one assignment")
	watch := fs.Bool("watch", false, "recompute on the stats_cron schedule until interrupted")
	notify := fs.Bool("notify", false, "post each refresh to Slack")
	fs.Parse(args)

	started := time.Now().UTC()
	course, err := FetchCourse(cfg)
	if err != nil {
		return err
	}
	assignments := append([]Assignment(nil), course.Assignments...)
	sort.Slice(assignments, func(i, j int) bool {
		return assignments[i].SortKey < assignments[j].SortKey
	})
	if *assignment != "" {
		asg, ok := course.AssignmentByName(*assignment)
		if !ok {
			return &UnknownAssignmentError{Assignment: *assignment, Course: course.Name}
		}
		assignments = []Assignment{asg}
	}

	collect := func() (string, error) {
		stats := make([]QueueStats, 0, len(assignments))
		for _, a := range assignments {
			subs, err := FetchSubmissions(cfg, a.ID)
			if err != nil {
				return "", err
			}
			stats = append(stats, ComputeQueueStats(a.Name, subs, cfg.DummyGrader))
		}
		return FormatQueueStats(stats), nil
	}

	out, err := collect()
	if err != nil {
		return err
	}
	fmt.Print(out)
	if *notify {
		notifySlack(cfg, fmt.Sprintf("Queue stats for %s %s:\n```%s```", course.Name, course.Period, out))
	}

	recordRun(cfg, Run{
		Command:    "stats",
		Assignment: *assignment,
		Selected:   len(assignments),
		StartedAt:  started,
	}, nil)

	if !*watch {
		return nil
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(cfg.StatsCron)
	if err != nil {
		return fmt.Errorf("invalid stats_cron %q: %w", cfg.StatsCron, err)
	}
	log.Printf("Stats watch scheduled (cron: %s)", cfg.StatsCron)

	for {
		now := time.Now()
		next := sched.Next(now)
		wait := next.Sub(now)
		log.Printf("Next stats refresh at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

		time.Sleep(wait)

		out, err := collect()
		if err != nil {
			log.Printf("Stats refresh error: %v", err)
			continue
		}
		fmt.Printf("--- %s\n", time.Now().Format("2006-01-02 15:04"))
		fmt.Print(out)
		if *notify {
			notifySlack(cfg, fmt.Sprintf("Queue stats for %s %s:\n```%s```", course.Name, course.Period, out))
		}
	}
}
