package simulator

import (
	rand "math/rand/v2"

	"github.com/daftuyda/umamusume-auto-train/internal/career"
)

var months = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

var years = []string{"Junior Year", "Classic Year", "Senior Year"}

// debutTurn is the first race day; every turn before it is pre-debut.
const debutTurn = 12

// turnOf maps a one-based turn to the calendar marker shown in the lobby.
// Each year has two turns per month.
func turnOf(turn int) career.Turn {
	t := career.Turn{Index: turn}
	year := (turn - 1) / 24
	if year >= len(years) {
		t.Year = "Finale"
		t.Label = "Finale"
		return t
	}
	t.Year = years[year]
	if turn < debutTurn {
		t.Year += " Pre-Debut"
	}
	half := (turn - 1) % 24
	if half%2 == 0 {
		t.Label = "Early " + months[half/2]
	} else {
		t.Label = "Late " + months[half/2]
	}
	return t
}

// isRaceDay reports whether turn is a scheduled race. The last turn of every
// twelve is one, and so is the final turn.
func isRaceDay(turn, turns int) bool {
	return turn <= turns && (turn%12 == 0 || turn == turns)
}

var scheduled = []career.Race{
	{Name: "Make Debut", Grade: career.GradeOther, AptitudeMatch: true},
	{Name: "Asahi Hai Futurity Stakes", Grade: career.GradeG1, AptitudeMatch: true},
	{Name: "Satsuki Sho", Grade: career.GradeG1, AptitudeMatch: true},
	{Name: "Japanese Derby", Grade: career.GradeG1, AptitudeMatch: true},
	{Name: "Takarazuka Kinen", Grade: career.GradeG1},
	{Name: "Tenno Sho (Autumn)", Grade: career.GradeG1, AptitudeMatch: true},
	{Name: "Arima Kinen", Grade: career.GradeG1, AptitudeMatch: true},
}

func scheduledRace(turn, turns int) career.Race {
	if turn == turns {
		return scheduled[len(scheduled)-1]
	}
	i := turn/12 - 1
	if i < 0 {
		i = 0
	}
	return scheduled[i%(len(scheduled)-1)]
}

var raceNames = []string{
	"Niigata Junior Stakes",
	"Kyoto Shimbun Hai",
	"Sapporo Kinen",
	"Mainichi Okan",
	"Copa Republica Argentina",
	"Chukyo Kinen",
	"Hanshin Cup",
}

type eventTemplate struct {
	name    string
	options [][]career.Reward
}

var eventTable = []eventTemplate{
	{name: "Extra Training", options: [][]career.Reward{
		{{Kind: career.RewardEnergy, Name: "energy", Value: -5}, {Kind: career.RewardStat, Name: "pwr", Value: 10}},
		{{Kind: career.RewardEnergy, Name: "energy", Value: 5}},
	}},
	{name: "Dance Lesson", options: [][]career.Reward{
		{{Kind: career.RewardStat, Name: "spd", Value: 10}},
		{{Kind: career.RewardStat, Name: "wit", Value: 10}},
	}},
	{name: "Shrine Visit", options: [][]career.Reward{
		{{Kind: career.RewardEnergy, Name: "energy", Value: 20}},
		{{Kind: career.RewardStat, Name: "guts", Value: 5}, {Kind: career.RewardStat, Name: "sta", Value: 5}},
		{{Kind: career.RewardSkillPoints, Name: "skill_points", Value: 20}},
	}},
	{name: "Late Night Snack", options: [][]career.Reward{
		{{Kind: career.RewardEnergy, Name: "energy", Value: 10}, {Kind: career.RewardStatus, Text: "Gained Night Owl"}},
		{{Kind: career.RewardStat, Name: "sta", Value: 5}},
	}},
	{name: "Acupuncture", options: [][]career.Reward{
		{{Kind: career.RewardStat, Name: "spd", Value: 20}, {Kind: career.RewardStat, Name: "sta", Value: 20}},
		{{Kind: career.RewardEnergy, Name: "energy", Value: 10}},
	}},
}

func randomEvent(r *rand.Rand) career.EventPrompt {
	tmpl := eventTable[r.IntN(len(eventTable))]
	prompt := career.EventPrompt{Name: tmpl.name}
	labels := []string{"Top option", "Middle option", "Bottom option"}
	for i, rewards := range tmpl.options {
		prompt.Options = append(prompt.Options, career.EventOption{
			Label:   labels[i],
			Rewards: append([]career.Reward(nil), rewards...),
		})
	}
	return prompt
}
