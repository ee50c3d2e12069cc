package node

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/angeloszaimis/typesense-client/config"
)

// Node is one server of the cluster together with its last known health.
type Node struct {
	host     string
	port     int
	protocol string
	path     string

	mutex      sync.Mutex
	healthy    bool
	lastAccess time.Time
}

// New creates a node. It starts unhealthy with a zero last access time until
// the pool marks it.
func New(protocol, host string, port int, path string) *Node {
	return &Node{
		host:     host,
		port:     port,
		protocol: protocol,
		path:     path,
	}
}

// FromConfig creates a node from its configuration entry.
func FromConfig(nc config.NodeConfig) *Node {
	return New(nc.Protocol, nc.Host, nc.Port, nc.Path)
}

// URL returns the base URL endpoints are appended to.
func (n *Node) URL() string {
	return fmt.Sprintf("%s://%s%s", n.protocol, n.Address(), n.path)
}

// Address returns host:port.
func (n *Node) Address() string {
	return net.JoinHostPort(n.host, strconv.Itoa(n.port))
}

func (n *Node) String() string {
	return n.Address()
}

func (n *Node) Host() string {
	return n.host
}

func (n *Node) Port() int {
	return n.port
}

// IsHealthy returns true if the node is currently marked healthy.
func (n *Node) IsHealthy() bool {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return n.healthy
}

// LastAccess returns when the health state was last recorded.
func (n *Node) LastAccess() time.Time {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return n.lastAccess
}

// SetHealthy records the node's health observed at the given time. The last
// access time is refreshed on every call, also when the state is confirmed
// rather than changed. Returns true if the state changed.
func (n *Node) SetHealthy(healthy bool, at time.Time) (changed bool) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	changed = n.healthy != healthy
	n.healthy = healthy
	n.lastAccess = at

	return changed
}

// DueForHealthCheck reports whether more than interval has passed since the
// health state was last recorded.
func (n *Node) DueForHealthCheck(now time.Time, interval time.Duration) bool {
	return now.Sub(n.LastAccess()) > interval
}
