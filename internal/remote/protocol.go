// Package remote talks to a capture agent over a websocket. The agent owns
// screen capture and input simulation; the bot sends it capture and execute
// requests and matches the replies by request ID.
package remote

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/daftuyda/umamusume-auto-train/internal/career"
	"github.com/daftuyda/umamusume-auto-train/internal/events"
	"github.com/tidwall/gjson"
)

// MessageType represents the type of message
type MessageType string

const (
	MessageTypeCapture          MessageType = "capture"
	MessageTypeExecute          MessageType = "execute"
	MessageTypeSnapshot         MessageType = "snapshot"
	MessageTypeReadFailure      MessageType = "read_failure"
	MessageTypeAck              MessageType = "ack"
	MessageTypeExecutionFailure MessageType = "execution_failure"
	MessageTypeError            MessageType = "error"
)

// Message is the envelope of every frame in both directions
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a message with the given type, request ID and data
func NewMessage(msgType MessageType, id string, data any) (*Message, error) {
	msg := &Message{Type: msgType, ID: id, Timestamp: time.Now().UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return msg, nil
}

// FailureData carries the reason of a read or execution failure
type FailureData struct {
	Error string `json:"error"`
}

// ActionData is an action on the wire
type ActionData struct {
	Kind   string    `json:"kind"`
	Stat   string    `json:"stat,omitempty"`
	Race   *RaceData `json:"race,omitempty"`
	Option int       `json:"option,omitempty"`
}

// RaceData is a race list entry
type RaceData struct {
	Name     string `json:"name"`
	Grade    string `json:"grade,omitempty"`
	Aptitude bool   `json:"aptitude_match"`
}

// TrainingData is a training facility preview. A null failure means the
// agent could not read it.
type TrainingData struct {
	Stat     string         `json:"stat"`
	Gains    map[string]int `json:"gains,omitempty"`
	Failure  *int           `json:"failure"`
	Supports int            `json:"supports"`
	Rainbow  int            `json:"rainbow"`
}

// EventOptionData is one event choice. Rewards are in the event catalog's
// shape and may be omitted.
type EventOptionData struct {
	Label   string          `json:"label"`
	Rewards json.RawMessage `json:"rewards,omitempty"`
}

// EventData is an open event dialog
type EventData struct {
	Name    string            `json:"name"`
	Options []EventOptionData `json:"options"`
}

// ObjectiveData is the career goal panel. A zero turns_left means the
// counter was not read.
type ObjectiveData struct {
	Met       bool `json:"met"`
	TurnsLeft int  `json:"turns_left"`
}

// SnapshotData is a screen reading on the wire. A null energy means the bar
// was unreadable.
type SnapshotData struct {
	Screen            string         `json:"screen"`
	Mood              string         `json:"mood"`
	Energy            *int           `json:"energy"`
	Turn              int            `json:"turn"`
	Year              string         `json:"year,omitempty"`
	TurnLabel         string         `json:"turn_label,omitempty"`
	Debuffs           []string       `json:"debuffs,omitempty"`
	Races             []RaceData     `json:"races,omitempty"`
	Training          []TrainingData `json:"training,omitempty"`
	Fans              int            `json:"fans"`
	FanGoal           int            `json:"fan_goal"`
	RecoveryAvailable bool           `json:"recovery_available"`
	RaceMandated      bool           `json:"race_mandated"`
	Objective         *ObjectiveData `json:"objective,omitempty"`
	Stats             map[string]int `json:"stats,omitempty"`
	Event             *EventData     `json:"event,omitempty"`
	Issues            []string       `json:"issues,omitempty"`
}

// ToSnapshot converts a wire reading into a snapshot. Values the bot does not
// understand become issues, which makes the snapshot ambiguous.
func (d SnapshotData) ToSnapshot(capturedAt time.Time) career.Snapshot {
	snap := career.Snapshot{
		Screen:            career.ParseScreen(d.Screen),
		Mood:              career.ParseMood(d.Mood),
		Energy:            career.EnergyUnknown,
		Turn:              career.Turn{Index: d.Turn, Year: d.Year, Label: d.TurnLabel},
		Debuffs:           append([]string(nil), d.Debuffs...),
		Fans:              career.Fans{Current: d.Fans, Goal: d.FanGoal},
		RecoveryAvailable: d.RecoveryAvailable,
		RaceMandated:      d.RaceMandated,
		Issues:            append([]string(nil), d.Issues...),
		CapturedAt:        capturedAt,
	}
	if d.Energy != nil {
		snap.Energy = *d.Energy
	}
	if d.Objective != nil {
		snap.Objective = career.Objective{Met: d.Objective.Met, TurnsLeft: d.Objective.TurnsLeft}
	}

	for _, r := range d.Races {
		snap.Races = append(snap.Races, career.Race{Name: r.Name, Grade: career.ParseGrade(r.Grade), AptitudeMatch: r.Aptitude})
	}

	for _, t := range d.Training {
		stat, ok := career.ParseStat(t.Stat)
		if !ok {
			snap.Issues = append(snap.Issues, fmt.Sprintf("unknown training stat %q", t.Stat))
			continue
		}
		opt := career.TrainingOption{
			Stat:        stat,
			Gains:       map[career.Stat]int{},
			FailureRisk: career.RiskUnknown,
			Supports:    t.Supports,
			Rainbow:     t.Rainbow,
		}
		if t.Failure != nil {
			opt.FailureRisk = *t.Failure
		}
		for name, gain := range t.Gains {
			if s, ok := career.ParseStat(name); ok {
				opt.Gains[s] += gain
			}
		}
		snap.Training = append(snap.Training, opt)
	}

	if len(d.Stats) > 0 {
		snap.Stats = map[career.Stat]int{}
		for name, v := range d.Stats {
			if s, ok := career.ParseStat(name); ok {
				snap.Stats[s] = v
			}
		}
	}

	if d.Event != nil {
		prompt := &career.EventPrompt{Name: d.Event.Name}
		for _, o := range d.Event.Options {
			opt := career.EventOption{Label: o.Label}
			if len(o.Rewards) > 0 {
				opt.Rewards = events.NormalizeRewards(gjson.ParseBytes(o.Rewards))
			}
			prompt.Options = append(prompt.Options, opt)
		}
		snap.Event = prompt
	}
	return snap
}

// FromSnapshot converts a snapshot to its wire form. Event rewards are not
// sent; the bot looks them up itself.
func FromSnapshot(s career.Snapshot) SnapshotData {
	d := SnapshotData{
		Screen:            s.Screen.String(),
		Mood:              s.Mood.String(),
		Turn:              s.Turn.Index,
		Year:              s.Turn.Year,
		TurnLabel:         s.Turn.Label,
		Debuffs:           append([]string(nil), s.Debuffs...),
		Fans:              s.Fans.Current,
		FanGoal:           s.Fans.Goal,
		RecoveryAvailable: s.RecoveryAvailable,
		RaceMandated:      s.RaceMandated,
		Issues:            append([]string(nil), s.Issues...),
	}
	if s.EnergyKnown() {
		energy := s.Energy
		d.Energy = &energy
	}
	if s.Objective != (career.Objective{}) {
		d.Objective = &ObjectiveData{Met: s.Objective.Met, TurnsLeft: s.Objective.TurnsLeft}
	}
	for _, r := range s.Races {
		d.Races = append(d.Races, RaceData{Name: r.Name, Grade: r.Grade.String(), Aptitude: r.AptitudeMatch})
	}
	for _, t := range s.Training {
		td := TrainingData{Stat: t.Stat.Key(), Supports: t.Supports, Rainbow: t.Rainbow, Gains: map[string]int{}}
		if t.FailureRisk != career.RiskUnknown {
			risk := t.FailureRisk
			td.Failure = &risk
		}
		for stat, gain := range t.Gains {
			td.Gains[stat.Key()] = gain
		}
		d.Training = append(d.Training, td)
	}
	if len(s.Stats) > 0 {
		d.Stats = map[string]int{}
		for stat, v := range s.Stats {
			d.Stats[stat.Key()] = v
		}
	}
	if s.Event != nil {
		ev := &EventData{Name: s.Event.Name}
		for _, o := range s.Event.Options {
			ev.Options = append(ev.Options, EventOptionData{Label: o.Label})
		}
		d.Event = ev
	}
	sort.Strings(d.Debuffs)
	return d
}

// FromAction converts an action to its wire form
func FromAction(a career.Action) ActionData {
	d := ActionData{Kind: a.Kind.String()}
	switch a.Kind {
	case career.ActionTrain:
		d.Stat = a.Stat.Key()
	case career.ActionRace:
		d.Race = &RaceData{Name: a.Race.Name, Grade: a.Race.Grade.String(), Aptitude: a.Race.AptitudeMatch}
	case career.ActionChooseEvent:
		d.Option = a.EventChoice
	}
	return d
}

// ToAction converts a wire action back into an action
func (d ActionData) ToAction() (career.Action, error) {
	kind, ok := career.ParseActionKind(d.Kind)
	if !ok {
		return career.Action{}, fmt.Errorf("unknown action kind %q", d.Kind)
	}
	switch kind {
	case career.ActionTrain:
		stat, ok := career.ParseStat(d.Stat)
		if !ok {
			return career.Action{}, fmt.Errorf("unknown stat %q", d.Stat)
		}
		return career.Train(stat), nil
	case career.ActionRace:
		if d.Race == nil {
			return career.Action{}, fmt.Errorf("race action without race")
		}
		return career.RaceIn(career.Race{Name: d.Race.Name, Grade: career.ParseGrade(d.Race.Grade), AptitudeMatch: d.Race.Aptitude}), nil
	case career.ActionChooseEvent:
		if d.Option < 0 {
			return career.Action{}, fmt.Errorf("negative event option %d", d.Option)
		}
		return career.ChooseEvent(d.Option), nil
	default:
		return career.Action{Kind: kind}, nil
	}
}
