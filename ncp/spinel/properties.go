package spinel

// Commands used by the core (spec §6).
const (
	CmdPropValueGet    uint32 = 0x02
	CmdPropValueSet    uint32 = 0x03
	CmdPropValueInsert uint32 = 0x04
	CmdPropValueRemove uint32 = 0x05
	CmdNetClear        uint32 = 0x0C

	CmdPropValueIs       uint32 = 0x06
	CmdPropValueInserted uint32 = 0x07
	CmdPropValueRemoved  uint32 = 0x08

	CmdVendorPropValueGet uint32 = 0x3C00
	CmdVendorPropValueSet uint32 = 0x3C01
)

// Properties referenced by the core (spec §6). Values are illustrative of
// the real Spinel property space and are internally consistent within this
// module; they are not required to match any particular vendor's
// allocation, since the spec describes this as "a semantic list, not an
// exhaustive dictionary".
const (
	PropLastStatus    uint32 = 0x00
	PropNetRole       uint32 = 0x36
	PropNetIfUp       uint32 = 0x30
	PropNetStackUp    uint32 = 0x31
	PropNetSaved      uint32 = 0x32
	PropNCPVersion    uint32 = 0x52

	PropStreamNet        uint32 = 0x70 // secure datagram stream
	PropStreamNetInsecure uint32 = 0x71 // insecure datagram stream
	PropStreamDebug      uint32 = 0x73

	PropHostPowerState             uint32 = 0x60
	PropAllowLocalNetDataChange    uint32 = 0x4E
	PropAssistingPorts             uint32 = 0x4A

	PropIPv6AddressTable          uint32 = 0x62
	PropIPv6MulticastAddressTable uint32 = 0x63

	PropMACScanState  uint32 = 0x20
	PropMACScanMask   uint32 = 0x21
	PropMACScanPeriod uint32 = 0x22
	PropMACScanBeacon uint32 = 0x23

	PropVendorLegacyStream     uint32 = 0x3C02
	PropVendorLegacyULAPrefix  uint32 = 0x3C03
	PropVendorNetworkWake      uint32 = 0x3C04
	PropVendorNetworkLurk      uint32 = 0x3C05
	PropVendorLegacyWake       uint32 = 0x3C06

	PropChildTable uint32 = 0x64
)

// NetRole values carried by PropNetRole.
type NetRole uint8

const (
	NetRoleDisabled NetRole = iota
	NetRoleDetached
	NetRoleChild
	NetRoleRouter
	NetRoleLeader
)

func (r NetRole) String() string {
	switch r {
	case NetRoleDisabled:
		return "disabled"
	case NetRoleDetached:
		return "detached"
	case NetRoleChild:
		return "child"
	case NetRoleRouter:
		return "router"
	case NetRoleLeader:
		return "leader"
	default:
		return "unknown"
	}
}

// LastStatus codes relevant to the core: anything in [ResetRangeLow,
// ResetRangeHigh] indicates the NCP reset itself.
const (
	StatusOK             uint32 = 0x00
	StatusResetRangeLow  uint32 = 0x72
	StatusResetRangeHigh uint32 = 0x7F
)

// IsResetStatus reports whether a last-status code falls in the reset
// range (spec §4.8/§4.9).
func IsResetStatus(code uint32) bool {
	return code >= StatusResetRangeLow && code <= StatusResetRangeHigh
}
