package client

import (
	"github.com/EricZhang12138/Distributed-Filesystem/pkg/pathresolve"
	"github.com/EricZhang12138/Distributed-Filesystem/pkg/wire"
	"github.com/golang/glog"
)

// runSubscriber is the client's dedicated background worker of spec §4.7:
// it holds one long-lived subscribe(client_id) conversation open for the
// lifetime of the client and applies each Notification to M/A as it
// arrives. It is started once from NewClient and exits when c.rpc.Subscribe
// returns, which happens on cancellation (Close) or a transport error.
func (c *Client) runSubscriber() {
	defer close(c.subscriberDone)

	err := c.rpc.Subscribe(c.applyNotification)
	if err != nil && !c.closing() {
		glog.Errorf("client: subscription stream ended: %+v", err)
	}
}

// applyNotification is the handler passed to ClientStub.Subscribe. It only
// ever takes the coarse mutex for the quick map mutations the table in
// spec §4.7 calls for; no I/O happens under the lock.
func (c *Client) applyNotification(n wire.Notification) {
	switch n.Kind {
	case wire.NotifyUpdate:
		c.st.mu.Lock()
		evicted := c.st.evictLocked(n.Path)
		c.st.mu.Unlock()
		if glog.V(1) {
			glog.Infof("client: UPDATE %s evicted=%v", n.Path, evicted)
		}

	case wire.NotifyDelete:
		c.st.mu.Lock()
		evicted := c.st.evictLocked(n.Path)
		c.st.mu.Unlock()
		if evicted {
			cachePath := pathresolve.CachePath(c.cacheRoot, n.Path)
			if err := c.cache.Remove(cachePath); err != nil {
				glog.Warningf("client: DELETE %s cache cleanup: %+v", n.Path, err)
			}
		}
		if glog.V(1) {
			glog.Infof("client: DELETE %s evicted=%v", n.Path, evicted)
		}

	case wire.NotifyRename:
		c.st.mu.Lock()
		c.st.rekeyLocked(n.Path, n.NewPath, pathresolve.Reprefix)
		c.st.mu.Unlock()
		if glog.V(1) {
			glog.Infof("client: RENAME %s -> %s", n.Path, n.NewPath)
		}

	default:
		glog.Warningf("client: unrecognized notification kind %v for %s", n.Kind, n.Path)
	}
}
