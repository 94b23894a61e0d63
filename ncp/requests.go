package ncp

import (
	"context"

	"github.com/ezhangle/thci/ncp/spinel"
)

// The driver's ≈90 typed property calls (spec §6) are all thin wrappers
// over request (C5); these are illustrative rather than exhaustive.

// NCPVersion returns the NCP's reported version string.
func (d *Driver) NCPVersion(ctx context.Context) (string, error) {
	payload, err := d.request(ctx, spinel.CmdPropValueGet, spinel.PropNCPVersion, nil, false)
	if err != nil {
		return "", err
	}
	s, err := spinel.NewDecoder(payload).UTF8()
	if err != nil {
		return "", wrapf(KindParse, err, "decode ncp-version")
	}
	return s, nil
}

// GetNetRole queries the NCP's current net-role directly, bypassing the
// cached value maintained from unsolicited updates (d.NetRole).
func (d *Driver) GetNetRole(ctx context.Context) (NetRole, error) {
	payload, err := d.request(ctx, spinel.CmdPropValueGet, spinel.PropNetRole, nil, false)
	if err != nil {
		return 0, err
	}
	v, err := spinel.NewDecoder(payload).Uint8()
	if err != nil {
		return 0, wrapf(KindParse, err, "decode net-role")
	}
	return NetRole(v), nil
}

// SetHostPowerState sets the host-power-state property (spec §4.9 uses
// this directly for sleep/wake; this exposes it for other values, e.g.
// reserved/reset, too).
func (d *Driver) SetHostPowerState(ctx context.Context, state uint8) error {
	_, err := d.request(ctx, spinel.CmdPropValueSet, spinel.PropHostPowerState,
		func(e *spinel.Encoder) { e.Uint8(state) }, false)
	return err
}

// SetAllowLocalNetDataChange enables or disables local network-data
// mutation.
func (d *Driver) SetAllowLocalNetDataChange(ctx context.Context, allow bool) error {
	_, err := d.request(ctx, spinel.CmdPropValueSet, spinel.PropAllowLocalNetDataChange,
		func(e *spinel.Encoder) { e.Bool(allow) }, false)
	return err
}

// NetClear issues net-clear, resetting the NCP's stored network
// configuration.
func (d *Driver) NetClear(ctx context.Context) error {
	_, err := d.request(ctx, spinel.CmdNetClear, spinel.PropNetSaved, nil, false)
	return err
}

// SetNetIfUp brings the network interface up or down.
func (d *Driver) SetNetIfUp(ctx context.Context, up bool) error {
	_, err := d.request(ctx, spinel.CmdPropValueSet, spinel.PropNetIfUp,
		func(e *spinel.Encoder) { e.Bool(up) }, false)
	return err
}

// SetNetStackUp brings the Thread network stack up or down.
func (d *Driver) SetNetStackUp(ctx context.Context, up bool) error {
	_, err := d.request(ctx, spinel.CmdPropValueSet, spinel.PropNetStackUp,
		func(e *spinel.Encoder) { e.Bool(up) }, false)
	return err
}

// StartMACScan begins a MAC scan with the given channel mask and
// per-channel dwell period; scan-complete and scan-result notifications
// surface via DrainPendingFlags.
func (d *Driver) StartMACScan(ctx context.Context, mask uint32, periodMS uint16) error {
	if _, err := d.request(ctx, spinel.CmdPropValueSet, spinel.PropMACScanMask,
		func(e *spinel.Encoder) { e.Uint32(mask) }, false); err != nil {
		return err
	}
	if _, err := d.request(ctx, spinel.CmdPropValueSet, spinel.PropMACScanPeriod,
		func(e *spinel.Encoder) { e.Uint16(periodMS) }, false); err != nil {
		return err
	}
	_, err := d.request(ctx, spinel.CmdPropValueSet, spinel.PropMACScanState,
		func(e *spinel.Encoder) { e.Uint8(1) }, false)
	return err
}
