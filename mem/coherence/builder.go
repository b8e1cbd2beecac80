package coherence

// NewDriver builds the Driver named by protocol, wiring upstream as its
// UpstreamInvalidator and allowFastWrites as its fast write-allocate
// permission.
func NewDriver(protocol Protocol, upstream UpstreamInvalidator, allowFastWrites bool) Driver {
	switch protocol {
	case ProtocolMSI:
		return NewMSIDriver(upstream, allowFastWrites)
	case ProtocolNone:
		return NewNoneDriver(allowFastWrites)
	default:
		panic("unknown coherence protocol")
	}
}
