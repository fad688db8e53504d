package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/daftuyda/umamusume-auto-train/internal/career"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGame struct {
	mu       sync.Mutex
	snap     career.Snapshot
	readErr  error
	execErr  error
	executed []career.Action
}

func (g *stubGame) Capture(context.Context) (career.Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snap.Clone(), g.readErr
}

func (g *stubGame) Execute(_ context.Context, a career.Action) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.execErr != nil {
		return g.execErr
	}
	g.executed = append(g.executed, a)
	return nil
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func connect(t *testing.T, h http.Handler, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts.Logger = quietLogger()
	client, err := Dial(context.Background(), wsURL(srv), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func sampleSnapshot() career.Snapshot {
	return career.Snapshot{
		Screen:            career.ScreenLobby,
		Mood:              career.MoodGood,
		Energy:            64,
		Turn:              career.Turn{Index: 30, Year: "Classic Year", Label: "Early Jun"},
		Debuffs:           []string{"Night Owl"},
		Races:             []career.Race{{Name: "Japanese Derby", Grade: career.GradeG1, AptitudeMatch: true}},
		Fans:              career.Fans{Current: 18000, Goal: 30000},
		RecoveryAvailable: true,
		Objective:         career.Objective{TurnsLeft: 6},
		Stats:             map[career.Stat]int{career.Speed: 540, career.Wit: 300},
		Training: []career.TrainingOption{
			{Stat: career.Speed, Gains: map[career.Stat]int{career.Speed: 12, career.Power: 5}, FailureRisk: 8, Supports: 3, Rainbow: 1},
			{Stat: career.Wit, Gains: map[career.Stat]int{career.Wit: 9}, FailureRisk: career.RiskUnknown, Supports: 1},
		},
	}
}

func TestCaptureRoundTrip(t *testing.T) {
	game := &stubGame{snap: sampleSnapshot()}
	client := connect(t, NewHandler(game, quietLogger()), Options{RequestTimeout: time.Second})

	snap, err := client.Capture(context.Background())
	require.NoError(t, err)

	want := sampleSnapshot()
	assert.Equal(t, want.Screen, snap.Screen)
	assert.Equal(t, want.Mood, snap.Mood)
	assert.Equal(t, want.Energy, snap.Energy)
	assert.Equal(t, want.Turn, snap.Turn)
	assert.Equal(t, want.Debuffs, snap.Debuffs)
	assert.Equal(t, want.Races, snap.Races)
	assert.Equal(t, want.Fans, snap.Fans)
	assert.Equal(t, want.Stats, snap.Stats)
	assert.Equal(t, want.Training, snap.Training)
	assert.Equal(t, want.Objective, snap.Objective)
	assert.True(t, snap.RecoveryAvailable)
	assert.False(t, snap.CapturedAt.IsZero())
	assert.Equal(t, want.Fingerprint(), snap.Fingerprint())
}

func TestExecuteRoundTrip(t *testing.T) {
	game := &stubGame{}
	client := connect(t, NewHandler(game, quietLogger()), Options{})

	actions := []career.Action{
		career.Train(career.Guts),
		career.RaceIn(career.Race{Name: "Arima Kinen", Grade: career.GradeG1, AptitudeMatch: true}),
		career.ChooseEvent(2),
		career.Rest(),
		career.Recreation(),
		career.HandleDebuff(),
	}
	for _, a := range actions {
		require.NoError(t, client.Execute(context.Background(), a))
	}

	game.mu.Lock()
	defer game.mu.Unlock()
	assert.Equal(t, actions, game.executed)
}

func TestFailuresAreReported(t *testing.T) {
	game := &stubGame{readErr: errors.New("window minimised"), execErr: errors.New("button not found")}
	client := connect(t, NewHandler(game, quietLogger()), Options{})

	_, err := client.Capture(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window minimised")

	err = client.Execute(context.Background(), career.Rest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "button not found")
}

func TestRequestTimeout(t *testing.T) {
	upgrader := websocket.Upgrader{}
	silent := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	client := connect(t, silent, Options{RequestTimeout: 50 * time.Millisecond})

	_, err := client.Capture(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDroppedConnectionFailsRequests(t *testing.T) {
	upgrader := websocket.Upgrader{}
	hangup := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_, _, _ = conn.ReadMessage()
		conn.Close()
	})
	client := connect(t, hangup, Options{RequestTimeout: 2 * time.Second})

	_, err := client.Capture(context.Background())
	require.Error(t, err)

	_, err = client.Capture(context.Background())
	require.Error(t, err)
}

func TestToSnapshotNormalisesWireValues(t *testing.T) {
	data := SnapshotData{
		Screen: "event",
		Mood:   "awful",
		Training: []TrainingData{
			{Stat: "charm", Supports: 1},
		},
		Event: &EventData{Name: "Dance Lesson", Options: []EventOptionData{
			{Label: "Top", Rewards: []byte(`[{"speed":[10]}]`)},
			{Label: "Bottom"},
		}},
	}
	snap := data.ToSnapshot(time.Now())

	assert.Equal(t, career.ScreenEvent, snap.Screen)
	assert.Equal(t, career.MoodWorse, snap.Mood)
	assert.Equal(t, career.EnergyUnknown, snap.Energy)
	assert.Empty(t, snap.Training)
	require.Len(t, snap.Issues, 1)
	assert.Contains(t, snap.Issues[0], "charm")

	require.NotNil(t, snap.Event)
	require.Len(t, snap.Event.Options, 2)
	require.Len(t, snap.Event.Options[0].Rewards, 1)
	assert.Equal(t, career.RewardStat, snap.Event.Options[0].Rewards[0].Kind)
	assert.Equal(t, 10, snap.Event.Options[0].Rewards[0].Value)
	assert.Empty(t, snap.Event.Options[1].Rewards)

	unknownScreen := SnapshotData{Screen: "gacha", Mood: "GOOD"}.ToSnapshot(time.Now())
	_, ambiguous := unknownScreen.Ambiguity()
	assert.True(t, ambiguous)
}

func TestActionDataRejectsGarbage(t *testing.T) {
	_, err := ActionData{Kind: "dance"}.ToAction()
	assert.Error(t, err)

	_, err = ActionData{Kind: "train", Stat: "charm"}.ToAction()
	assert.Error(t, err)

	_, err = ActionData{Kind: "race"}.ToAction()
	assert.Error(t, err)

	a, err := FromAction(career.Train(career.Stamina)).ToAction()
	require.NoError(t, err)
	assert.Equal(t, career.Train(career.Stamina), a)
}
