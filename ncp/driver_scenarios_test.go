package ncp_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ezhangle/thci/ncp"
	"github.com/ezhangle/thci/ncp/gpio"
	"github.com/ezhangle/thci/ncp/hdlc"
	"github.com/ezhangle/thci/ncp/nctest"
	"github.com/ezhangle/thci/ncp/spinel"
	"github.com/ezhangle/thci/ncp/store"
)

// newTestDriver wires a Driver to a FakeNCP over back-to-back in-memory
// transports, and brings it to Initialized via the re-establish fast
// path (no real reset handshake needed for these scenarios).
func newTestDriver(t *testing.T) (*ncp.Driver, *nctest.FakeNCP, *gpio.Fake) {
	t.Helper()

	var d *ncp.Driver
	fake, transport := nctest.New(func(b byte) { d.RxISR(b) })
	fake.WithPropertyHandler(nctest.GetSetHandler(spinel.PropNetRole, []byte{byte(spinel.NetRoleDisabled)}))

	hook := &gpio.Fake{}
	cfg := &ncp.Config{
		RequestTimeout:         150 * time.Millisecond,
		AllocTimeout:           200 * time.Millisecond,
		InitializeWithoutReset: true,
	}
	d = ncp.New(context.Background(), transport, hook, cfg)

	require.NoError(t, d.Initialize(context.Background(), ncp.MaySkipReset))
	return d, fake, hook
}

// S1 - request/response round trip.
func TestScenarioRequestResponseRoundTrip(t *testing.T) {
	d, fake, _ := newTestDriver(t)
	defer func() { _ = d.Finalize(context.Background()) }()

	const version = "OPENTHREAD/1.0"
	fake.WithPropertyHandler(nctest.GetSetHandler(spinel.PropNCPVersion, append([]byte(version), 0)))

	got, err := d.NCPVersion(context.Background())
	require.NoError(t, err)
	require.Equal(t, version, got)
	require.Equal(t, ncp.Initialized, d.State())
}

// S2 - unsolicited role change posts exactly one state-changed event,
// whose handler reads the pending-flag set to zero.
func TestScenarioUnsolicitedRoleChange(t *testing.T) {
	d, fake, _ := newTestDriver(t)
	defer func() { _ = d.Finalize(context.Background()) }()

	fake.SendUnsolicited(spinel.CmdPropValueIs, spinel.PropNetRole, []byte{byte(spinel.NetRoleRouter)})

	require.Eventually(t, func() bool {
		return d.NetRole() == spinel.NetRoleRouter
	}, time.Second, time.Millisecond)

	flags := d.DrainPendingFlags()
	require.Equal(t, ncp.FlagRoleChanged, flags&ncp.FlagRoleChanged)
	require.Equal(t, ncp.PendingFlags(0), d.DrainPendingFlags())
}

// S3 - outbound datagram with stall: the message sits in the store while
// stalled, and drains exactly once stall is lifted.
func TestScenarioOutboundDatagramWithStall(t *testing.T) {
	d, fake, _ := newTestDriver(t)
	defer func() { _ = d.Finalize(context.Background()) }()

	fake.WithPropertyHandler(func(req nctest.Request) (nctest.Response, bool) {
		if req.Cmd != spinel.CmdPropValueSet || req.Key != spinel.PropStreamNet {
			return nctest.Response{}, false
		}
		return nctest.Response{Cmd: spinel.CmdPropValueIs, Key: spinel.PropLastStatus,
			Payload: spinel.NewEncoder(nil).PackedUint(spinel.StatusOK).Bytes()}, true
	})

	d.StallPump()
	require.NoError(t, d.SubmitOutbound(make([]byte, 200), store.FlagSecure))

	time.Sleep(50 * time.Millisecond)
	require.False(t, d.OutboundQueueEmpty(), "message must not drain while stalled")

	d.UnstallPump()

	require.Eventually(t, func() bool {
		return d.OutboundQueueEmpty()
	}, time.Second, 5*time.Millisecond)
}

// S4 - transaction timeout triggers recovery: the fake NCP silently
// swallows the request, so no response ever arrives within the deadline.
func TestScenarioTransactionTimeoutTriggersRecovery(t *testing.T) {
	d, fake, _ := newTestDriver(t)
	defer func() { _ = d.Finalize(context.Background()) }()

	fake.WithPropertyHandler(nctest.DropHandler(spinel.PropAllowLocalNetDataChange))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := d.SetAllowLocalNetDataChange(ctx, true)
	require.Error(t, err)

	require.Eventually(t, func() bool {
		return d.State() == ncp.ResetRecovery
	}, time.Second, time.Millisecond)
}

// Invariant 5 - a datagram arriving on the secure stream property closes
// the provisional-join window, while one on the insecure stream property
// never does, however many of the latter arrive first.
func TestScenarioSecureSeenOnInsecurePort(t *testing.T) {
	d, fake, _ := newTestDriver(t)
	defer func() { _ = d.Finalize(context.Background()) }()

	fake.SendUnsolicited(spinel.CmdPropValueIs, spinel.PropStreamNetInsecure, []byte{1, 2, 3})

	require.Eventually(t, func() bool {
		select {
		case <-d.Inbound():
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
	require.False(t, d.SecureSeenOnInsecurePort(), "insecure-stream datagram must not close the provisional-join window")

	fake.SendUnsolicited(spinel.CmdPropValueIs, spinel.PropStreamNet, []byte{4, 5, 6})

	require.Eventually(t, func() bool {
		return d.SecureSeenOnInsecurePort()
	}, time.Second, time.Millisecond)
}

// S6 - HDLC decode error triggers recovery: a frame whose check byte has
// been corrupted after encoding is fed straight onto the receive path.
func TestScenarioDecodeErrorTriggersRecovery(t *testing.T) {
	d, _, _ := newTestDriver(t)
	defer func() { _ = d.Finalize(context.Background()) }()

	penc := spinel.NewEncoder(nil)
	penc.Header(spinel.NewHeader(0, spinel.TIDDontCare)).PackedUint(spinel.CmdPropValueIs).PackedUint(spinel.PropNetRole).Uint8(uint8(spinel.NetRoleChild))

	enc := hdlc.NewEncoder()
	buf := make([]byte, 0, 64)
	enc.Reset(buf[:cap(buf)])
	_, err := enc.Write(penc.Bytes())
	require.NoError(t, err)
	require.NoError(t, enc.Finish())

	frame := append([]byte(nil), enc.Bytes()...)
	// Corrupt a payload byte (not the leading/trailing flag) so the frame
	// check fails on decode.
	frame[2] ^= 0xFF

	for _, b := range frame {
		d.RxISR(b)
	}

	require.Eventually(t, func() bool {
		return d.State() == ncp.ResetRecovery
	}, time.Second, time.Millisecond)
}
