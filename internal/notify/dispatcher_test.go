package notify

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/gcn/internal/clock"
	"github.com/sweeney/gcn/internal/logic"
)

var localNow = time.Unix(1_700_000_000, 0)

func newTestDispatcher(t *testing.T, transport Transport) (*Dispatcher, *clock.Fake, *[]Result) {
	t.Helper()
	clk := clock.NewFake(localNow)
	d := New(Config{URL: "http://endpoint/gcn", Host: "device1", Pin: 4}, transport, clk)
	var results []Result
	d.OnResult(func(r Result) { results = append(results, r) })
	t.Cleanup(func() {
		assert.Zero(t, openSessions.Load(), "response session leaked")
	})
	return d, clk, &results
}

func change(value bool) logic.Notification {
	return logic.Notification{Reason: logic.ReasonChange, Value: value}
}

func TestFormatBody(t *testing.T) {
	got := FormatBody("device1", time.Unix(1000, 0), 4, true)
	assert.Equal(t, "host=device1&time=1000&gpio=4&value=1", got)

	got = FormatBody("garage", time.Unix(1700000000, 0), 17, false)
	assert.Equal(t, "host=garage&time=1700000000&gpio=17&value=0", got)
}

func TestFormatBodyDoesNotEscapeHost(t *testing.T) {
	got := FormatBody("a b&c", time.Unix(1, 0), 0, false)
	assert.Equal(t, "host=a b&c&time=1&gpio=0&value=0", got)
}

func TestNotifySendsRequest(t *testing.T) {
	transport := NewFakeTransport("")
	d, _, results := newTestDispatcher(t, transport)

	d.Notify(context.Background(), change(true))

	require.Len(t, transport.Requests, 1)
	req := transport.Requests[0]
	assert.Equal(t, "http://endpoint/gcn", req.URL)
	assert.Equal(t, ContentType, req.ContentType)
	assert.Equal(t, "host=device1&time=1700000000&gpio=4&value=1", req.Body)

	require.Len(t, *results, 1)
	res := (*results)[0]
	assert.True(t, res.Delivered)
	assert.False(t, res.HasRemote, "empty body carries no time")
	assert.False(t, res.ClockSynced)
	assert.Equal(t, 200, res.StatusCode)
}

func TestNotifyClockSyncThreshold(t *testing.T) {
	tests := []struct {
		name   string
		offset int64
		sync   bool
	}{
		{"in step", 0, false},
		{"ahead by threshold", 60, false},
		{"ahead past threshold", 61, true},
		{"behind by threshold", -60, false},
		{"behind past threshold", -61, true},
		{"far ahead", 86400, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := localNow.Unix() + tt.offset
			transport := NewFakeTransport(strconv.FormatInt(remote, 10))
			d, clk, results := newTestDispatcher(t, transport)

			d.Notify(context.Background(), change(false))

			require.Len(t, *results, 1)
			res := (*results)[0]
			assert.True(t, res.HasRemote)
			assert.Equal(t, remote, res.RemoteTime.Unix())
			assert.Equal(t, tt.sync, res.ClockSynced)
			if tt.sync {
				require.Len(t, clk.Sets, 1)
				assert.Equal(t, remote, clk.Sets[0].Unix())
			} else {
				assert.Empty(t, clk.Sets)
			}
		})
	}
}

func TestNotifyChunkedResponseNeverSyncs(t *testing.T) {
	transport := &FakeTransport{
		Events: ReplyEvents(200, strconv.FormatInt(localNow.Unix()+3600, 10), true),
		Status: 200,
	}
	d, clk, results := newTestDispatcher(t, transport)

	d.Notify(context.Background(), change(true))

	assert.Empty(t, clk.Sets)
	require.Len(t, *results, 1)
	assert.False(t, (*results)[0].HasRemote)
}

func TestNotifyGarbageBody(t *testing.T) {
	transport := NewFakeTransport("<html>bad gateway</html>")
	d, clk, results := newTestDispatcher(t, transport)

	d.Notify(context.Background(), change(true))

	assert.Empty(t, clk.Sets)
	assert.False(t, (*results)[0].HasRemote)
	assert.True(t, (*results)[0].Delivered)
}

func TestNotifyOutOfRangeRemoteTime(t *testing.T) {
	for _, body := range []string{"-9223372036854775808", "9223372036854775807", "0", "-1", "253402300800"} {
		t.Run(body, func(t *testing.T) {
			d, clk, results := newTestDispatcher(t, NewFakeTransport(body))

			d.Notify(context.Background(), change(true))

			assert.Empty(t, clk.Sets, "clock must not move")
			require.Len(t, *results, 1)
			assert.False(t, (*results)[0].HasRemote)
			assert.False(t, (*results)[0].ClockSynced)
			assert.True(t, (*results)[0].Delivered)
		})
	}
}

func TestNotifyTransportFailure(t *testing.T) {
	transport := &FakeTransport{Err: errors.New("connection refused")}
	d, clk, results := newTestDispatcher(t, transport)

	assert.NotPanics(t, func() {
		d.Notify(context.Background(), change(true))
	})

	assert.Empty(t, clk.Sets)
	require.Len(t, *results, 1)
	assert.False(t, (*results)[0].Delivered)
	assert.Error(t, (*results)[0].Err)
}

func TestNotifyMidStreamDisconnect(t *testing.T) {
	transport := &FakeTransport{
		Events: []Event{
			{Kind: EventConnected},
			{Kind: EventData, Data: []byte("1700"), ContentLength: 10},
		},
		Err: errors.New("unexpected EOF"),
	}
	d, clk, results := newTestDispatcher(t, transport)

	d.Notify(context.Background(), change(true))

	assert.Empty(t, clk.Sets)
	assert.False(t, (*results)[0].HasRemote)
}

func TestNotifyAllocationFailure(t *testing.T) {
	transport := &FakeTransport{
		Events: []Event{
			{Kind: EventData, Data: []byte("1"), ContentLength: 1 << 20},
			{Kind: EventFinish, StatusCode: 200},
		},
		Status: 200,
	}
	d, clk, results := newTestDispatcher(t, transport)

	d.Notify(context.Background(), change(true))

	assert.Empty(t, clk.Sets)
	require.Len(t, *results, 1)
	assert.ErrorIs(t, (*results)[0].Err, ErrBufferAlloc)
}

func TestNotifyClockSetFailure(t *testing.T) {
	transport := NewFakeTransport(strconv.FormatInt(localNow.Unix()+3600, 10))
	d, clk, results := newTestDispatcher(t, transport)
	clk.SetError = errors.New("operation not permitted")

	d.Notify(context.Background(), change(true))

	require.Len(t, *results, 1)
	assert.True(t, (*results)[0].HasRemote)
	assert.False(t, (*results)[0].ClockSynced)
}

func TestNotifyNonSuccessStatusStillSyncs(t *testing.T) {
	remote := localNow.Unix() + 120
	transport := &FakeTransport{
		Events: ReplyEvents(503, strconv.FormatInt(remote, 10), false),
		Status: 503,
	}
	d, clk, _ := newTestDispatcher(t, transport)

	d.Notify(context.Background(), change(true))

	require.Len(t, clk.Sets, 1)
	assert.Equal(t, remote, clk.Sets[0].Unix())
}

func TestNotifyWithoutTransport(t *testing.T) {
	d, _, results := newTestDispatcher(t, nil)

	d.Notify(context.Background(), change(true))

	require.Len(t, *results, 1)
	assert.False(t, (*results)[0].Delivered)
}

func TestNotifyRepeatedCallsDoNotLeak(t *testing.T) {
	d, _, results := newTestDispatcher(t, NewFakeTransport("1700000000"))
	failing := &FakeTransport{
		Events: []Event{{Kind: EventData, Data: []byte("17"), ContentLength: 10}},
		Err:    errors.New("reset by peer"),
	}

	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			d.transport = failing
		} else {
			d.transport = NewFakeTransport("1700000000")
		}
		d.Notify(context.Background(), change(i%3 == 0))
		require.Zero(t, openSessions.Load(), "iteration %d leaked a session", i)
	}
	assert.Len(t, *results, 50)
}
