package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/seedpost/seedpost/internal/channel"
	chmocks "github.com/seedpost/seedpost/internal/channel/mocks"
	"github.com/seedpost/seedpost/internal/discovery"
	dmocks "github.com/seedpost/seedpost/internal/discovery/mocks"
	"github.com/seedpost/seedpost/internal/telemetry"
	"github.com/seedpost/seedpost/internal/transfer"
)

// fakeEngine never receives work in these tests
type fakeEngine struct {
	closed atomic.Int32
}

func (*fakeEngine) Start(context.Context, transfer.Descriptor, string) (transfer.Handle, error) {
	return "", errors.New("unexpected start")
}

func (*fakeEngine) Status(context.Context, transfer.Handle) (transfer.Status, error) {
	return transfer.Status{}, errors.New("unexpected status")
}

func (*fakeEngine) Cancel(context.Context, transfer.Handle) error {
	return nil
}

func (*fakeEngine) Identify(transfer.Descriptor) (string, error) {
	return "", errors.New("unidentified")
}

func (e *fakeEngine) Close() error {
	e.closed.Add(1)
	return nil
}

type testApp struct {
	app        *SeedpostApp
	channel    *chmocks.MockClient
	discoverer *dmocks.MockDiscoverer
	engine     *fakeEngine
	commands   chan channel.Command
}

func newTestApp(t *testing.T, opts ...SeedpostAppOption) *testApp {
	t.Helper()
	ctrl := gomock.NewController(t)

	tel, err := telemetry.New(context.Background(), nil)
	require.NoError(t, err)

	ta := &testApp{
		channel:    chmocks.NewMockClient(ctrl),
		discoverer: dmocks.NewMockDiscoverer(ctrl),
		engine:     &fakeEngine{},
		commands:   make(chan channel.Command),
	}

	cfg := createValidTestConfig(t)
	all := append([]SeedpostAppOption{
		WithConfig(cfg),
		WithChannelClient(ta.channel),
		WithEngine(ta.engine),
		WithDiscoverer(ta.discoverer),
		WithTelemetry(tel),
	}, opts...)

	ta.app, err = NewSeedpostApp(context.Background(), all...)
	require.NoError(t, err)
	return ta
}

func TestNewSeedpostApp_Components(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	c := ta.app.Components()

	assert.NotNil(t, c.Orchestrator)
	assert.NotNil(t, c.Plane)
	assert.NotNil(t, c.State)
	assert.NotNil(t, c.Ledger)
	assert.Same(t, ta.engine, c.Engine)
	assert.Nil(t, c.Telemetry, "injected telemetry stays with the caller")
	assert.Nil(t, ta.app.GetHTTPServer())
	assert.Equal(t, int64(42), ta.app.GetConfig().Channel.Operator)

	require.NoError(t, ta.app.Stop(time.Second))
	assert.Equal(t, int32(1), ta.engine.closed.Load())
}

func TestNewSeedpostApp_LockedLedgerIsFatal(t *testing.T) {
	t.Parallel()

	first := newTestApp(t)
	t.Cleanup(func() { _ = first.app.Stop(time.Second) })

	tel, err := telemetry.New(context.Background(), nil)
	require.NoError(t, err)
	engine := &fakeEngine{}
	ctrl := gomock.NewController(t)

	_, err = NewSeedpostApp(context.Background(),
		WithConfig(first.app.GetConfig()),
		WithChannelClient(chmocks.NewMockClient(ctrl)),
		WithEngine(engine),
		WithDiscoverer(dmocks.NewMockDiscoverer(ctrl)),
		WithTelemetry(tel),
	)
	require.Error(t, err)
	assert.Equal(t, int32(0), engine.closed.Load(), "nothing is built past the ledger")
}

func TestSeedpostApp_StartStop(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, WithAddress("127.0.0.1:0"))

	ta.channel.EXPECT().SendMessage(gomock.Any(), int64(42), startupMessage).Return(nil)
	ta.channel.EXPECT().SubscribeCommands(gomock.Any(), int64(42)).
		Return((<-chan channel.Command)(ta.commands), nil)
	ta.discoverer.EXPECT().ListLatest(gomock.Any(), 5).Return([]discovery.CandidateItem{}, nil).MinTimes(1)

	errCh := make(chan error, 1)
	go func() { errCh <- ta.app.Start() }()

	require.Eventually(t, func() bool {
		return ta.app.Components().State.Snapshot().LastScanAt != nil
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, ta.app.Stop(time.Second))
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.Equal(t, int32(1), ta.engine.closed.Load())
}

func TestSeedpostApp_CommandRoundTrip(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)

	replied := make(chan string, 1)
	ta.channel.EXPECT().SendMessage(gomock.Any(), int64(42), startupMessage).Return(nil)
	ta.channel.EXPECT().SubscribeCommands(gomock.Any(), int64(42)).
		Return((<-chan channel.Command)(ta.commands), nil)
	ta.channel.EXPECT().SendMessage(gomock.Any(), int64(42), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ int64, text string) error {
			replied <- text
			return nil
		})
	ta.discoverer.EXPECT().ListLatest(gomock.Any(), 5).Return(nil, nil).AnyTimes()

	errCh := make(chan error, 1)
	go func() { errCh <- ta.app.Start() }()

	ta.commands <- channel.Command{Name: "pause", SenderID: 42, ChatID: 42}
	select {
	case text := <-replied:
		assert.Contains(t, text, "paused")
	case <-time.After(5 * time.Second):
		t.Fatal("no reply to /pause")
	}
	assert.False(t, ta.app.Components().State.IsEnabled())

	require.NoError(t, ta.app.Stop(time.Second))
	require.NoError(t, <-errCh)
}

func TestSeedpostApp_ServesStatus(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, WithAddress("127.0.0.1:0"))
	server := ta.app.GetHTTPServer()
	require.NotNil(t, server)

	rr := httptest.NewRecorder()
	server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"itemsPublished":0`)
	assert.Contains(t, rr.Body.String(), "Channel ID")

	require.NoError(t, ta.app.Stop(time.Second))
}

func TestSeedpostApp_SubscribeFailureStopsApp(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t)
	ta.channel.EXPECT().SendMessage(gomock.Any(), int64(42), startupMessage).Return(nil)
	ta.channel.EXPECT().SubscribeCommands(gomock.Any(), int64(42)).Return(nil, fmt.Errorf("unauthorized"))
	ta.discoverer.EXPECT().ListLatest(gomock.Any(), 5).Return(nil, nil).AnyTimes()

	err := ta.app.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command plane failed")

	require.NoError(t, ta.app.Stop(time.Second))
}
