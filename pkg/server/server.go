// Package server implements the server side of the system: the Server File
// Service (spec §4.8) against the host filesystem under an exported root,
// and the Subscriber Registry & fan-out (spec §4.9) that drives cache
// coherence notifications.
package server

import (
	"net"

	"github.com/complyue/hbi"
	"github.com/complyue/hbi/interop"
	"github.com/complyue/hbi/mp"
	"github.com/golang/glog"
)

// defaultQueueCapacity bounds each client's pending-notification queue
// (spec §3, "bounded per-client FIFO"). Chosen generously enough that a
// client would need to fall behind by this many mutations across the whole
// export before the server starts dropping the oldest one for it.
const defaultQueueCapacity = 1024

// Server exports one root directory over HBI/TCP. Each inbound connection
// gets its own session reactor, addressed by path rather than inode.
type Server struct {
	root string
	fsd  *fsd
	reg  *registry
}

// NewServer validates root and constructs a Server ready to export it.
func NewServer(root string) (*Server, error) {
	fsd, err := newFSD(root)
	if err != nil {
		return nil, err
	}
	return &Server{root: root, fsd: fsd, reg: newRegistry()}, nil
}

// ListClients returns a snapshot of currently-connected client identifiers,
// for operational visibility only (no correctness path depends on it). It
// is a method on Server; sessions do not expose it over the connection.
func (s *Server) ListClients() []string {
	return s.reg.listClients()
}

// ListenTCP exports s.root at servAddr: one fresh session reactor per
// inbound connection, wired up through mp.UpstartTCP.
func (s *Server) ListenTCP(servAddr string) error {
	return mp.UpstartTCP(servAddr, func() *hbi.HostingEnv {
		he := hbi.NewHostingEnv()

		interop.ExposeInterOpValues(he)

		he.ExposeFunction("__hbi_init__",
			func(po *hbi.PostingEnd, ho *hbi.HostingEnd) {
				sess := &session{srv: s, po: po, ho: ho}
				he.ExposeReactor(sess)
			})

		return he
	}, func(listener *net.TCPListener) {
		glog.Infof("afsd exporting [%s] listening: %s", s.root, listener.Addr())
	})
}
