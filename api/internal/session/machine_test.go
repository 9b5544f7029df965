package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snap-to-spec/api/internal/guide"
	"snap-to-spec/api/internal/ingest"
)

const phoneJSON = `{"itemName":"Smartphone","damageAnalysis":"Cracked screen","difficultyLevel":"Advanced",
"toolsRequired":["Heat gun","Suction cup"],"estimatedTime":"45-60 mins",
"safetyWarnings":["Disconnect battery before repair"],
"repairSteps":[{"stepNumber":1,"action":"Heat","explanation":"Soften adhesive"},
{"stepNumber":2,"action":"Lift","explanation":"Pry the glass"}]}`

var img = ingest.Payload{Name: "phone.jpg", MIME: "image/jpeg", Data: []byte{0xFF, 0xD8, 0xFF}, Base64: "/9j/"}

func machineWith(f guide.EngineFunc) *Machine {
	return NewMachine("s1", guide.NewClient(guide.NewManager(f), 0))
}

func returning(out string, err error) guide.EngineFunc {
	return func(context.Context, ingest.Payload) (string, error) { return out, err }
}

func drain(ch <-chan Event) []EventKind {
	var kinds []EventKind
	for {
		select {
		case ev := <-ch:
			kinds = append(kinds, ev.Kind)
		default:
			return kinds
		}
	}
}

func TestMachine_StartsIdle(t *testing.T) {
	s := machineWith(returning(phoneJSON, nil)).Snapshot()
	assert.Equal(t, Idle, s.Phase)
	assert.False(t, s.IsLoading)
	assert.Nil(t, s.Error)
	assert.Nil(t, s.Data)
}

func TestMachine_Success(t *testing.T) {
	m := machineWith(returning(phoneJSON, nil))
	events, cancel := m.Subscribe()
	defer cancel()

	snap, err := m.Submit(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, Success, snap.Phase)
	assert.False(t, snap.IsLoading)
	assert.Nil(t, snap.Error)
	require.NotNil(t, snap.Data)
	assert.Equal(t, "Smartphone", snap.Data.ItemName)
	require.NotNil(t, snap.Badge)
	assert.Equal(t, "orange", snap.Badge.Color)

	assert.Equal(t, []EventKind{EventLoading, EventSuccess}, drain(events))
}

func TestMachine_ExactlyOneLoadingBeforeTerminal(t *testing.T) {
	cases := []struct {
		name     string
		engine   guide.EngineFunc
		terminal EventKind
	}{
		{"success", returning(phoneJSON, nil), EventSuccess},
		{"empty", returning("", nil), EventFailure},
		{"transport", returning("", errors.New("connection reset")), EventFailure},
		{"missing steps", returning(`{"itemName":"x"}`, nil), EventFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := machineWith(tc.engine)
			events, cancel := m.Subscribe()
			defer cancel()

			_, err := m.Submit(context.Background(), img)
			require.NoError(t, err)
			assert.Equal(t, []EventKind{EventLoading, tc.terminal}, drain(events))
		})
	}
}

func TestMachine_EmptyResponseFails(t *testing.T) {
	m := machineWith(returning("", nil))
	snap, err := m.Submit(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, Failure, snap.Phase)
	assert.False(t, snap.IsLoading)
	assert.Nil(t, snap.Data)
	require.NotNil(t, snap.Error)
	assert.Equal(t, guide.FailureMessage, *snap.Error)
}

func TestMachine_MissingFieldNeverYieldsPartialGuide(t *testing.T) {
	partial := `{"itemName":"Kettle","damageAnalysis":"Leaks","difficultyLevel":"Beginner",
"toolsRequired":[],"estimatedTime":"5 mins","safetyWarnings":[]}`
	m := machineWith(returning(partial, nil))
	snap, err := m.Submit(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, Failure, snap.Phase)
	assert.Nil(t, snap.Data)
}

func TestMachine_ResetFromTerminalStates(t *testing.T) {
	for name, eng := range map[string]guide.EngineFunc{
		"success": returning(phoneJSON, nil),
		"failure": returning("", nil),
	} {
		t.Run(name, func(t *testing.T) {
			m := machineWith(eng)
			_, err := m.Submit(context.Background(), img)
			require.NoError(t, err)
			if name == "success" {
				_, err = m.Toggle(1)
				require.NoError(t, err)
			}

			snap, err := m.Reset()
			require.NoError(t, err)
			assert.Equal(t, Idle, snap.Phase)
			assert.False(t, snap.IsLoading)
			assert.Nil(t, snap.Error)
			assert.Nil(t, snap.Data)
			assert.Empty(t, snap.CompletedSteps)
			_, ok := m.View()
			assert.False(t, ok)
		})
	}
}

func TestMachine_ResetFromIdleIsNoop(t *testing.T) {
	m := machineWith(returning(phoneJSON, nil))
	events, cancel := m.Subscribe()
	defer cancel()

	snap, err := m.Reset()
	require.NoError(t, err)
	assert.Equal(t, Idle, snap.Phase)
	assert.Empty(t, drain(events))
}

// blockingEngine holds Generate until release is closed.
func blockingEngine() (guide.EngineFunc, chan struct{}, chan struct{}) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f := func(ctx context.Context, _ ingest.Payload) (string, error) {
		once.Do(func() { close(started) })
		select {
		case <-release:
			return phoneJSON, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f, started, release
}

func TestMachine_BusyWhileLoading(t *testing.T) {
	eng, started, release := blockingEngine()
	m := machineWith(eng)

	snap, _, err := m.SubmitAsync(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, Loading, snap.Phase)
	assert.True(t, snap.IsLoading)
	<-started

	_, err = m.Submit(context.Background(), img)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = m.Reset()
	assert.ErrorIs(t, err, ErrBusy)
	_, err = m.Toggle(1)
	assert.ErrorIs(t, err, ErrNoGuide)

	close(release)
	m.Wait()
	assert.Equal(t, Success, m.Snapshot().Phase)
}

func TestMachine_AsyncOutlivesRequestContext(t *testing.T) {
	eng, started, release := blockingEngine()
	m := machineWith(eng)

	ctx, cancel := context.WithCancel(context.Background())
	_, done, err := m.SubmitAsync(ctx, img)
	require.NoError(t, err)
	<-started
	cancel()
	close(release)
	<-done

	assert.Equal(t, Success, m.Snapshot().Phase)
}

func TestMachine_Toggle(t *testing.T) {
	m := machineWith(returning(phoneJSON, nil))
	_, err := m.Toggle(1)
	assert.ErrorIs(t, err, ErrNoGuide)

	_, err = m.Submit(context.Background(), img)
	require.NoError(t, err)

	snap, err := m.Toggle(2)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, snap.CompletedSteps)
	assert.False(t, snap.AllComplete)

	snap, err = m.Toggle(1)
	require.NoError(t, err)
	assert.True(t, snap.AllComplete)
	assert.Equal(t, "Great Work! Repair Complete.", snap.Copy.Title)

	_, err = m.Toggle(9)
	assert.ErrorIs(t, err, ErrUnknownStep)
}

func TestMachine_NewGuideResetsChecklist(t *testing.T) {
	m := machineWith(returning(phoneJSON, nil))
	_, err := m.Submit(context.Background(), img)
	require.NoError(t, err)
	_, err = m.Toggle(1)
	require.NoError(t, err)

	snap, err := m.Submit(context.Background(), img)
	require.NoError(t, err)
	assert.Empty(t, snap.CompletedSteps)
}

func TestMachine_Retry(t *testing.T) {
	calls := 0
	m := machineWith(func(context.Context, ingest.Payload) (string, error) {
		calls++
		if calls == 1 {
			return "", fmt.Errorf("timeout")
		}
		return phoneJSON, nil
	})

	_, err := m.Retry(context.Background())
	assert.ErrorIs(t, err, ErrNoImage)

	snap, err := m.Submit(context.Background(), img)
	require.NoError(t, err)
	require.Equal(t, Failure, snap.Phase)

	snap, err = m.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Success, snap.Phase)
	assert.Equal(t, 2, calls)

	_, err = m.Retry(context.Background())
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestMachine_RetryAsyncWhileWaitersPending(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	m := machineWith(func(context.Context, ingest.Payload) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls%2 == 1 {
			return "", fmt.Errorf("upstream 503")
		}
		return phoneJSON, nil
	})

	for i := 0; i < 20; i++ {
		_, first, err := m.SubmitAsync(context.Background(), img)
		require.NoError(t, err)

		var waiters sync.WaitGroup
		for j := 0; j < 4; j++ {
			waiters.Add(1)
			go func() {
				defer waiters.Done()
				m.Wait()
			}()
		}
		<-first
		require.Equal(t, Failure, m.Snapshot().Phase)

		// a retry right after the failure must not disturb goroutines still waiting on the old cycle
		_, second, err := m.RetryAsync(context.Background())
		require.NoError(t, err)
		<-second
		waiters.Wait()
		require.Equal(t, Success, m.Snapshot().Phase)
	}
}

func TestMachine_WaitWithoutCycleReturns(t *testing.T) {
	m := machineWith(returning(phoneJSON, nil))
	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked on an idle session")
	}
}

func TestMachine_CloseEndsSubscriptions(t *testing.T) {
	m := machineWith(returning(phoneJSON, nil))
	events, _ := m.Subscribe()
	m.Close()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}

	late, _ := m.Subscribe()
	_, ok := <-late
	assert.False(t, ok)
}

func TestMachine_LaggingSubscriberDoesNotBlock(t *testing.T) {
	m := machineWith(returning(phoneJSON, nil))
	_, cancel := m.Subscribe()
	defer cancel()

	_, err := m.Submit(context.Background(), img)
	require.NoError(t, err)
	for i := 0; i < subBuffer*2; i++ {
		_, err := m.Toggle(1)
		require.NoError(t, err)
	}
}

func TestPhase_Text(t *testing.T) {
	b, err := Loading.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "loading", string(b))
	assert.Equal(t, "failure", Failure.String())
}
