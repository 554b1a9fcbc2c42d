package bgp

// DebugCategory is one bit of the per-instance debug bitmask of
// spec.md §7 ("debug bgp <category>" toggles). Grounded on the
// teacher's habit (seen across ospf/ and bgp/server/*.go) of logging
// everything at Info unconditionally rather than gating by category;
// this instance narrows that down to an explicit, togglable set
// instead, per spec.md's debug-category requirement.
type DebugCategory uint32

const (
	DebugEvents DebugCategory = 1 << iota
	DebugKeepalive
	DebugOpen
	DebugUpdate
	DebugNotification
	DebugFSM
	DebugPolicy
	DebugRIB
	DebugNexthop
	DebugZebra
)

var debugNames = map[DebugCategory]string{
	DebugEvents:       "events",
	DebugKeepalive:    "keepalive",
	DebugOpen:         "open",
	DebugUpdate:       "update",
	DebugNotification: "notification",
	DebugFSM:          "fsm",
	DebugPolicy:       "policy",
	DebugRIB:          "rib",
	DebugNexthop:      "nexthop",
	DebugZebra:        "zebra",
}

// DebugMask is the live, instance-wide bitmask consulted by logging
// call sites before building a log line, so disabled categories pay
// no formatting cost.
type DebugMask struct {
	bits DebugCategory
}

func (m *DebugMask) Enable(c DebugCategory)  { m.bits |= c }
func (m *DebugMask) Disable(c DebugCategory) { m.bits &^= c }
func (m *DebugMask) Enabled(c DebugCategory) bool { return m.bits&c != 0 }

func (m *DebugMask) EnabledCategories() []string {
	var out []string
	for bit, name := range debugNames {
		if m.Enabled(bit) {
			out = append(out, name)
		}
	}
	return out
}
