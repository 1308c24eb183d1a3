package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/drama-high/internal/metrics"
	"github.com/jwebster45206/drama-high/internal/services"
	"github.com/jwebster45206/drama-high/internal/storage"
	"github.com/jwebster45206/drama-high/pkg/chat"
	"github.com/jwebster45206/drama-high/pkg/save"
	"github.com/jwebster45206/drama-high/pkg/state"
)

// fakeAudio records the calls the session makes.
type fakeAudio struct {
	mu      sync.Mutex
	inits   int
	resumes int
	cues    []string
	muted   bool
}

func (f *fakeAudio) Init() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	return nil
}

func (f *fakeAudio) Resume() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
	return nil
}

func (f *fakeAudio) PlayCue(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.muted {
		return false
	}
	f.cues = append(f.cues, name)
	return true
}

func (f *fakeAudio) ToggleMute() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = !f.muted
	return f.muted
}

func (f *fakeAudio) Muted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

func (f *fakeAudio) Cues() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cues...)
}

type fixture struct {
	session *Session
	gen     *services.MockGenerator
	store   *storage.MemoryStore
	audio   *fakeAudio
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		gen:   services.NewMockGenerator(),
		store: storage.NewMemoryStore(),
		audio: &fakeAudio{},
	}
	f.session = New(f.gen, f.store, f.audio, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(f.session.Wait)
	return f
}

func turn(text, artPrompt, cue string, choices ...string) *state.TurnUnit {
	unit := &state.TurnUnit{
		NarrativeText: text,
		ArtPrompt:     artPrompt,
		SoundCue:      cue,
	}
	for _, c := range choices {
		unit.Choices = append(unit.Choices, state.Choice{ID: c, Text: "Choose " + c})
	}
	return unit
}

// started returns a fixture whose session has played the default opening.
func started(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	require.NoError(t, f.session.Start(context.Background()))
	f.session.Wait()
	return f
}

func snapshot(t *testing.T, s *Session) []byte {
	t.Helper()
	data, err := json.Marshal(s.State())
	require.NoError(t, err)
	return data
}

func TestStart_Opening(t *testing.T) {
	f := started(t)

	turns, _, arts := f.gen.GetCalls()
	require.Len(t, turns, 1)
	assert.Empty(t, turns[0].History)
	assert.Empty(t, turns[0].Choice)

	view := f.session.View()
	assert.Equal(t, PhaseAwaitingChoice.String(), view.Phase)
	assert.Equal(t, services.MockTurn().NarrativeText, view.Text)
	assert.Len(t, view.Choices, 2)
	assert.Equal(t, "Pass the History Test", view.Quest)
	assert.Equal(t, "Bedroom", view.Location)
	assert.Equal(t, "data:image/png;base64,bW9jaw==", view.Image)
	assert.False(t, view.ImageLoading)
	assert.Equal(t, 0, view.Chapters)

	gs := f.session.State()
	assert.Equal(t, []chat.ChatMessage{{Role: chat.ChatRoleNarrator, Content: services.MockTurn().NarrativeText}}, gs.TurnLog)
	require.Len(t, gs.StoryLog, 1)
	assert.Equal(t, view.Image, gs.StoryLog[0].Image)

	assert.Equal(t, []string{services.MockTurn().ArtPrompt}, arts)
	assert.Equal(t, []string{"phone_ping"}, f.audio.Cues())
	assert.Equal(t, 1, f.audio.inits)
}

func TestChoose_AppliesTurn(t *testing.T) {
	f := started(t)

	next := turn("Jess waves at you.", "", "heartbeat", "wave", "hide")
	next.Inventory = state.InventoryDelta{Add: []string{"Notes"}}
	next.Relationships = []state.RelationshipDelta{{ID: "jess", DisplayName: "Jess", ScoreChange: state.IntPtr(10), NewKind: state.KindCrush}}
	f.gen.SetTurn(next)

	require.NoError(t, f.session.Choose(context.Background(), "study"))

	turns, _, _ := f.gen.GetCalls()
	require.Len(t, turns, 2)
	assert.Equal(t, "Cram on the bus", turns[1].Choice)
	assert.Len(t, turns[1].History, 1)
	assert.Equal(t, "Pass the History Test", turns[1].Quest)

	view := f.session.View()
	assert.Equal(t, "Jess waves at you.", view.Text)
	assert.Equal(t, []string{"Notes"}, view.Inventory)
	require.Len(t, view.Relationships, 1)
	assert.Equal(t, state.Character{ID: "jess", Name: "Jess", Kind: state.KindCrush, Score: 60}, view.Relationships[0])
	assert.Equal(t, "Pass the History Test", view.Quest, "quest kept when the unit omits it")
	assert.Empty(t, view.Image, "no art prompt means no art")
	assert.Equal(t, 1, view.Chapters)

	gs := f.session.State()
	assert.Equal(t, []chat.ChatMessage{
		{Role: chat.ChatRoleNarrator, Content: services.MockTurn().NarrativeText},
		{Role: chat.ChatRolePlayer, Content: "Cram on the bus"},
		{Role: chat.ChatRoleNarrator, Content: "Jess waves at you."},
	}, gs.TurnLog)
	assert.Equal(t, "Cram on the bus", gs.StoryLog[1].ChoiceMade)
	assert.Equal(t, []string{"phone_ping", "heartbeat"}, f.audio.Cues())
}

func TestChoose_Rejections(t *testing.T) {
	f := newFixture(t)
	err := f.session.Choose(context.Background(), "study")
	assert.ErrorIs(t, err, ErrNotAwaitingChoice)

	require.NoError(t, f.session.Start(context.Background()))
	err = f.session.Choose(context.Background(), "fly")
	assert.ErrorIs(t, err, ErrUnknownChoice)

	turns, _, _ := f.gen.GetCalls()
	assert.Len(t, turns, 1, "rejected choices never reach the generator")
}

func TestChoose_RejectsWhileTurnInFlight(t *testing.T) {
	f := started(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.gen.RequestTurnFunc = func(ctx context.Context, req services.TurnRequest) (*state.TurnUnit, error) {
		close(entered)
		<-release
		return turn("Later.", "", "neutral", "a"), nil
	}

	done := make(chan error, 1)
	go func() { done <- f.session.Choose(context.Background(), "study") }()
	<-entered

	view := f.session.View()
	assert.True(t, view.TurnInFlight)
	assert.Equal(t, PhaseAwaitingTurn.String(), view.Phase)

	assert.ErrorIs(t, f.session.Choose(context.Background(), "text"), ErrTurnInFlight)
	assert.ErrorIs(t, f.session.Start(context.Background()), ErrTurnInFlight)
	_, err := f.session.RequestInsight(context.Background())
	assert.ErrorIs(t, err, ErrTurnInFlight)
	assert.ErrorIs(t, f.session.Load(context.Background()), ErrTurnInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, "Later.", f.session.View().Text)
}

func TestChoose_FailureIsAtomic(t *testing.T) {
	f := started(t)
	before := snapshot(t, f.session)
	viewBefore := f.session.View()

	f.gen.SetTurnError(errors.New("503 from upstream"))
	err := f.session.Choose(context.Background(), "study")
	require.Error(t, err)

	assert.Equal(t, string(before), string(snapshot(t, f.session)))

	view := f.session.View()
	assert.Equal(t, PhaseAwaitingChoice.String(), view.Phase)
	assert.Equal(t, TurnErrorMessage, view.Error)
	assert.Equal(t, viewBefore.Text, view.Text)
	assert.Equal(t, viewBefore.Choices, view.Choices)

	// The player can try again.
	f.gen.SetTurn(turn("Second try.", "", "neutral", "a"))
	require.NoError(t, f.session.Choose(context.Background(), "study"))
	assert.Empty(t, f.session.View().Error)
}

func TestChoose_EmptyUnitIsAFailure(t *testing.T) {
	f := started(t)
	before := snapshot(t, f.session)

	f.gen.SetTurn(&state.TurnUnit{})
	err := f.session.Choose(context.Background(), "study")
	assert.ErrorIs(t, err, services.ErrEmptyResponse)
	assert.Equal(t, string(before), string(snapshot(t, f.session)))
}

func TestStart_FailureKeepsIdle(t *testing.T) {
	f := newFixture(t)
	f.gen.SetTurnError(services.ErrGenerationFailed)

	err := f.session.Start(context.Background())
	assert.ErrorIs(t, err, services.ErrGenerationFailed)

	view := f.session.View()
	assert.Equal(t, PhaseIdle.String(), view.Phase)
	assert.Equal(t, TurnErrorMessage, view.Error)
	assert.False(t, view.HasScene())
}

func TestArt_StaleResultDiscarded(t *testing.T) {
	f := newFixture(t)

	var calls int
	var mu sync.Mutex
	f.gen.RequestTurnFunc = func(ctx context.Context, req services.TurnRequest) (*state.TurnUnit, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return turn("Turn one.", "art one", "neutral", "next"), nil
		}
		return turn("Turn two.", "art two", "neutral", "next"), nil
	}

	releaseFirst := make(chan struct{})
	f.gen.RequestArtFunc = func(ctx context.Context, prompt string) (string, error) {
		if prompt == "art one" {
			<-releaseFirst
			return "image-one", nil
		}
		return "image-two", nil
	}

	require.NoError(t, f.session.Start(context.Background()))
	assert.True(t, f.session.View().ImageLoading)

	require.NoError(t, f.session.Choose(context.Background(), "next"))

	// Let turn two's art land before turn one's.
	require.Eventually(t, func() bool { return f.session.View().Image == "image-two" }, time.Second, time.Millisecond)

	close(releaseFirst)
	f.session.Wait()

	view := f.session.View()
	assert.Equal(t, "Turn two.", view.Text)
	assert.Equal(t, "image-two", view.Image)
	assert.False(t, view.ImageLoading)
}

func TestArt_FailureLeavesSceneUsable(t *testing.T) {
	f := newFixture(t)
	f.gen.SetArtError(errors.New("content policy"))

	require.NoError(t, f.session.Start(context.Background()))
	f.session.Wait()

	view := f.session.View()
	assert.Empty(t, view.Image)
	assert.False(t, view.ImageLoading)
	assert.Equal(t, PhaseAwaitingChoice.String(), view.Phase)
}

func TestArt_SaveBeforeArtResolves(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	f.gen.RequestArtFunc = func(ctx context.Context, prompt string) (string, error) {
		<-release
		return "late-image", nil
	}

	require.NoError(t, f.session.Start(context.Background()))
	require.NoError(t, f.session.Save(context.Background()))
	close(release)
	f.session.Wait()

	blob, err := f.store.Get(context.Background(), save.SlotKey)
	require.NoError(t, err)
	_, scene, err := save.Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, services.MockTurn().NarrativeText, scene.Text)
	assert.Len(t, scene.Choices, 2)
	assert.Empty(t, scene.Image)
}

func TestInsight(t *testing.T) {
	tests := []struct {
		name  string
		setup func(g *services.MockGenerator)
		want  string
	}{
		{
			name:  "success",
			setup: func(g *services.MockGenerator) {},
			want:  "Someone is definitely hiding something.",
		},
		{
			name: "empty",
			setup: func(g *services.MockGenerator) {
				g.RequestInsightFunc = func(ctx context.Context, narrative string) (string, error) { return "", nil }
			},
			want: InsightEmpty,
		},
		{
			name:  "error",
			setup: func(g *services.MockGenerator) { g.SetInsightError(errors.New("timeout")) },
			want:  InsightFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := started(t)
			before := snapshot(t, f.session)
			tt.setup(f.gen)

			text, err := f.session.RequestInsight(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)

			view := f.session.View()
			assert.Equal(t, tt.want, view.Insight)
			assert.False(t, view.InsightLoading)
			assert.Equal(t, string(before), string(snapshot(t, f.session)), "insight never touches game state")

			_, calls, _ := f.gen.GetCalls()
			assert.Equal(t, []string{services.MockTurn().NarrativeText}, calls)
		})
	}
}

func TestInsight_OneInFlight(t *testing.T) {
	f := started(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.gen.RequestInsightFunc = func(ctx context.Context, narrative string) (string, error) {
		close(entered)
		<-release
		return "Vibes are off.", nil
	}

	done := make(chan string, 1)
	go func() {
		text, _ := f.session.RequestInsight(context.Background())
		done <- text
	}()
	<-entered

	assert.True(t, f.session.View().InsightLoading)
	_, err := f.session.RequestInsight(context.Background())
	assert.ErrorIs(t, err, ErrInsightInFlight)
	assert.Equal(t, PhaseAwaitingChoice.String(), f.session.View().Phase, "insight does not block the main state")

	close(release)
	assert.Equal(t, "Vibes are off.", <-done)
}

func TestInsight_ClearedByNewChoice(t *testing.T) {
	f := started(t)
	_, err := f.session.RequestInsight(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, f.session.View().Insight)

	require.NoError(t, f.session.Choose(context.Background(), "study"))
	assert.Empty(t, f.session.View().Insight)
}

func TestInsight_StaleResultDiscarded(t *testing.T) {
	f := started(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.gen.RequestInsightFunc = func(ctx context.Context, narrative string) (string, error) {
		close(entered)
		<-release
		return "Old news.", nil
	}

	done := make(chan struct{})
	go func() {
		_, _ = f.session.RequestInsight(context.Background())
		close(done)
	}()
	<-entered

	require.NoError(t, f.session.Choose(context.Background(), "study"))
	close(release)
	<-done

	view := f.session.View()
	assert.Empty(t, view.Insight)
	assert.False(t, view.InsightLoading)
}

func TestInsight_RequiresScene(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.RequestInsight(context.Background())
	assert.ErrorIs(t, err, ErrNotAwaitingChoice)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	f := started(t)
	next := turn("The bell rings.", "", "school_bell", "run")
	next.Inventory = state.InventoryDelta{Add: []string{"Hall Pass"}}
	next.Relationships = []state.RelationshipDelta{{ID: "ava", DisplayName: "Ava", ScoreChange: state.IntPtr(-20), NewKind: state.KindRival}}
	f.gen.SetTurn(next)
	require.NoError(t, f.session.Choose(context.Background(), "text"))

	require.NoError(t, f.session.Save(context.Background()))
	saved := f.session.State()
	savedView := f.session.View()

	f.gen.SetTurn(turn("Detention.", "", "drama_sting", "sigh"))
	require.NoError(t, f.session.Choose(context.Background(), "run"))
	_, err := f.session.RequestInsight(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, savedView.Text, f.session.View().Text)

	require.NoError(t, f.session.Load(context.Background()))

	assert.Equal(t, saved, f.session.State())
	view := f.session.View()
	assert.Equal(t, savedView.Text, view.Text)
	assert.Equal(t, savedView.Choices, view.Choices)
	assert.Equal(t, savedView.Relationships, view.Relationships)
	assert.Empty(t, view.Insight)
	assert.False(t, view.ImageLoading)
	assert.Equal(t, PhaseAwaitingChoice.String(), view.Phase)

	cues := f.audio.Cues()
	assert.Contains(t, cues, "phone_ping")
	assert.Equal(t, "success_chime", cues[len(cues)-1])
	assert.Equal(t, 2, f.audio.inits, "start and load both wake the audio engine")

	// The restored choices are live.
	f.gen.SetTurn(turn("You made it.", "", "success_chime", "done"))
	require.NoError(t, f.session.Choose(context.Background(), "run"))
}

func TestLoad_NoSave(t *testing.T) {
	f := started(t)
	before := snapshot(t, f.session)

	err := f.session.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoSave)
	assert.Equal(t, NoSaveMessage, f.session.View().Error)
	assert.Equal(t, string(before), string(snapshot(t, f.session)))
}

func TestLoad_InvalidBlob(t *testing.T) {
	f := started(t)
	before := snapshot(t, f.session)
	require.NoError(t, f.store.Put(context.Background(), save.SlotKey, []byte("not json at all")))

	err := f.session.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoSave)
	assert.ErrorIs(t, err, save.ErrInvalidSave)
	assert.Equal(t, string(before), string(snapshot(t, f.session)))
}

func TestLoad_StoreError(t *testing.T) {
	f := started(t)
	f.store.SetGetError(errors.New("connection refused"))

	err := f.session.Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSave)
}

func TestLoad_LegacyBlobWithoutRelationships(t *testing.T) {
	f := newFixture(t)
	legacy := `{"inventory":["Smartphone"],"current_quest":"Find Jess","turn_log":[{"role":"narrator","content":"Hi"}],
		"scene_snapshot":{"text":"Hi","choices":[{"id":"a","text":"Wave"}]}}`
	require.NoError(t, f.store.Put(context.Background(), save.SlotKey, []byte(legacy)))

	require.NoError(t, f.session.Load(context.Background()))

	view := f.session.View()
	assert.Equal(t, "Hi", view.Text)
	assert.Empty(t, view.Relationships)
	assert.Equal(t, []string{"Smartphone"}, view.Inventory)

	require.NoError(t, f.session.Choose(context.Background(), "a"))
}

func TestLoad_RepairsOutOfRangeState(t *testing.T) {
	f := newFixture(t)
	blob := `{"inventory":["Phone","Phone"],
		"relationships":[{"id":"ava","name":"Ava","relationshipType":"crush","value":180}],
		"scene_snapshot":{"text":"Hi","choices":[{"id":"a","text":"Wave"}]}}`
	require.NoError(t, f.store.Put(context.Background(), save.SlotKey, []byte(blob)))

	require.NoError(t, f.session.Load(context.Background()))

	gs := f.session.State()
	assert.Equal(t, []string{"Phone"}, gs.Inventory)
	assert.Equal(t, state.Character{ID: "ava", Name: "Ava", Kind: state.KindCrush, Score: state.MaxScore}, gs.Relationships["ava"])
}

func TestSave_Errors(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.session.Save(context.Background()), ErrNothingToSave)

	require.NoError(t, f.session.Start(context.Background()))
	boom := errors.New("disk full")
	f.store.SetPutError(boom)
	assert.ErrorIs(t, f.session.Save(context.Background()), boom)
}

func TestSave_CustomSlot(t *testing.T) {
	gen := services.NewMockGenerator()
	store := storage.NewMemoryStore()
	s := New(gen, store, nil, "slot_two", slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(s.Wait)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Save(context.Background()))

	blob, err := store.Get(context.Background(), "slot_two")
	require.NoError(t, err)
	assert.NotNil(t, blob)
}

func TestToggleMute(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.session.ToggleMute())
	assert.True(t, f.session.View().Muted)
	assert.False(t, f.session.ToggleMute())
	assert.False(t, f.session.View().Muted)
}

// playedCues reads the cue counter for one cue from the metrics registry.
func playedCues(t *testing.T, cue string) float64 {
	t.Helper()
	families, err := metrics.Registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "dramahigh_sound_cues_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "cue" && l.GetValue() == cue {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestCueMetric_CountsOnlyPlayedCues(t *testing.T) {
	f := started(t)
	before := playedCues(t, "phone_ping")

	f.session.ToggleMute()
	require.NoError(t, f.session.Save(context.Background()))
	assert.Equal(t, before, playedCues(t, "phone_ping"))

	f.session.ToggleMute()
	require.NoError(t, f.session.Save(context.Background()))
	assert.Equal(t, before+1, playedCues(t, "phone_ping"))
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "awaiting_turn", PhaseAwaitingTurn.String())
	assert.Equal(t, "rendering", PhaseRendering.String())
	assert.Equal(t, "awaiting_choice", PhaseAwaitingChoice.String())
	assert.Equal(t, "unknown", Phase(42).String())
}
