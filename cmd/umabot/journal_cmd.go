package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/daftuyda/umamusume-auto-train/internal/journal"
)

// JournalCmd browses the run journal.
type JournalCmd struct {
	List JournalListCmd `cmd:"" help:"List recorded runs, newest first"`
	Show JournalShowCmd `cmd:"" help:"Show the steps of one run"`
}

func openJournal(g *Globals) (*journal.Journal, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}
	logger, _, err := setupLogging(cfg, false)
	if err != nil {
		return nil, err
	}
	return journal.Open(context.Background(), cfg.Journal.Path, logger)
}

type JournalListCmd struct {
	Limit int `default:"20" help:"Maximum runs to show (0 = all)"`
}

func (c JournalListCmd) Run(g *Globals) error {
	j, err := openJournal(g)
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.ListRuns(context.Background(), c.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("ID", "Source", "Started", "Cause", "Fans", "Goal", "Races", "Steps")
	for _, r := range runs {
		cause := r.Cause
		if !r.Finished() {
			cause = "(running)"
		}
		t.Row(r.ID[:13], r.Source, r.StartedAt.Local().Format(time.DateTime), cause,
			strconv.Itoa(r.Fans), strconv.Itoa(r.FanGoal), strconv.Itoa(r.RacesRun), strconv.Itoa(r.Steps))
	}
	fmt.Println(t.String())
	return nil
}

type JournalShowCmd struct {
	ID string `arg:"" help:"Run ID or unique prefix"`
}

func (c JournalShowCmd) Run(g *Globals) error {
	j, err := openJournal(g)
	if err != nil {
		return err
	}
	defer j.Close()

	ctx := context.Background()
	run, err := j.GetRun(ctx, c.ID)
	if err != nil {
		return err
	}
	steps, err := j.Steps(ctx, run.ID)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s (%s)\n", run.ID, run.Source)
	if run.Seed != nil {
		fmt.Printf("Seed:    %d\n", *run.Seed)
	}
	fmt.Printf("Started: %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.Finished() {
		fmt.Printf("Result:  %s, %d fans, %d races, %d failures\n", run.Cause, run.Fans, run.RacesRun, run.Failures)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("#", "Turn", "Action", "Rule", "Mood", "Energy", "Fans")
	for _, s := range steps {
		t.Row(strconv.Itoa(s.Seq), fmt.Sprintf("%d %s", s.Turn.Index, s.Turn.Label), s.Action, s.Rule,
			s.Mood, strconv.Itoa(s.Energy), strconv.Itoa(s.Fans))
	}
	fmt.Println(t.String())
	return nil
}
