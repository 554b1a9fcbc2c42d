package rib

import "github.com/openrouted/routingd/internal/rib/nexthop"

// nexthopGroupRef holds an acquired *nexthop.Group; the group carries its
// own content hash, so a Route can release its reference without
// recomputing the hash from the (possibly already-mutated) nexthop.
type nexthopGroupRef struct {
	group *nexthop.Group
}
