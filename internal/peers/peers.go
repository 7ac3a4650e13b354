// Package peers holds the minimal view of the cluster that the sync client
// needs: a flat list of sibling RPC addresses. Unlike the teacher's
// cluster.Membership, there is no consistent-hash ring or join/leave
// protocol here — spec.md's replication model is full-fanout to every
// configured peer, not partition-owner lookup, so membership is just the
// static list read from the cluster config file at startup.
package peers

// Peer identifies one sibling node's Sync RPC surface.
type Peer struct {
	Name    string
	RPCAddr string
}

// List is the static set of peers this node fans out to.
type List struct {
	peers []Peer
}

// New wraps peers into a List.
func New(peers []Peer) *List {
	return &List{peers: peers}
}

// All returns every configured peer, in config order.
func (l *List) All() []Peer {
	return l.peers
}

// Len reports how many peers are configured.
func (l *List) Len() int {
	return len(l.peers)
}
