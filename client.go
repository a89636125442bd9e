package bcknd

// ClientID is a small integer drawn from a closed enumeration of known
// backend names. ClientMax is the sentinel for "unresolved".
type ClientID int

const (
	ClientStatic ClientID = iota
	ClientBGP
	// ClientMax is the sentinel value denoting an unresolved/unidentified
	// adapter. Keep it last: MaxClients below depends on its ordinal.
	ClientMax
)

// MaxClients is the size of the ClientID enumeration (spec.md §6.4
// MAX_CLIENTS), i.e. the number of resolvable (non-sentinel) client ids.
const MaxClients = int(ClientMax)

var clientNames = [MaxClients]string{
	ClientStatic: "staticd",
	ClientBGP:    "bgpd",
}

// String renders the client's compile-time name, or "unknown" for an
// out-of-range id (ClientMax itself has no name; callers checking for the
// unresolved sentinel should compare against ClientMax directly).
func (c ClientID) String() string {
	if c < 0 || int(c) >= MaxClients {
		return "unknown"
	}
	return clientNames[c]
}

// ClientIDFromName resolves a self-identifying registration name against the
// compile-time table by exact match. ok is false if no client carries that
// name, in which case the caller (C5 dispatch) disconnects the adapter.
func ClientIDFromName(name string) (id ClientID, ok bool) {
	for i, n := range clientNames {
		if n == name {
			return ClientID(i), true
		}
	}
	return ClientMax, false
}

// SubscriptionCaps is the per-client bitset of subscription capabilities
// over a config-path subtree.
type SubscriptionCaps struct {
	ValidateConfig bool
	NotifyConfig   bool
	OwnOperData    bool
}

// Subscribed reports whether any capability bit is set.
func (c SubscriptionCaps) Subscribed() bool {
	return c.ValidateConfig || c.NotifyConfig || c.OwnOperData
}

// Merge ORs two capability sets together, as required when more than one
// winning pattern lists the same client (spec.md §4.2 rule 3).
func (c SubscriptionCaps) Merge(o SubscriptionCaps) SubscriptionCaps {
	return SubscriptionCaps{
		ValidateConfig: c.ValidateConfig || o.ValidateConfig,
		NotifyConfig:   c.NotifyConfig || o.NotifyConfig,
		OwnOperData:    c.OwnOperData || o.OwnOperData,
	}
}

// FullCaps is the capability set a pattern table entry grants to every
// client it lists (spec.md §4.2: "each listed client receives
// {true,true,true}").
var FullCaps = SubscriptionCaps{ValidateConfig: true, NotifyConfig: true, OwnOperData: true}

// ChangeRecord is one staged configuration-change entry produced by the
// config snapshot driver (C7) for a newly identified adapter's pending set.
type ChangeRecord struct {
	Path string
	// Created is true for the snapshot driver's initial walk, which only
	// ever stages creations (spec.md §4.7).
	Created bool
	Data    []byte
}
