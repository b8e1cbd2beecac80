package sim

// A Msg is anything a Port can transport. mem.Packet is the only
// implementation the core uses, but Port is defined against this narrow
// interface so the transport layer never needs to know about memory
// semantics.
type Msg interface {
	Meta() *MsgMeta
}

// MsgMeta carries the bookkeeping every transported message needs
// regardless of payload: identity and the tick it becomes deliverable.
type MsgMeta struct {
	ID   string
	Time VTimeInSec
}

// Meta returns the message's bookkeeping fields.
func (m *MsgMeta) Meta() *MsgMeta { return m }
