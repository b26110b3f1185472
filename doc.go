// Command-less package doc for the AFS-style distributed filesystem in this
// module.
//
// A server (cmd/afsd) owns an authoritative directory tree. Any number of
// clients (cmd/afsmount) fetch whole files into a local disk cache and serve
// them to local processes through a kernel filesystem bridge that is external
// to this module (see pkg/client for the bridge-facing surface). Coherence
// between clients is maintained by the server: a client that flushes a
// modified file on close causes the server to notify every other client
// currently caching that file, and those clients evict the stale copy. A
// client that reopens a file it still has cached always re-validates with the
// server first, so correctness never depends on notification delivery.
//
// pkg/server holds the authoritative tree and the per-client subscriber
// registry. pkg/client holds the disk cache, the in-memory metadata used to
// decide when a cached copy is stale, and the notification subscriber that
// applies server-driven evictions. pkg/rpc carries requests between the two
// over an HBI connection. pkg/wire defines the types that cross that wire.
package afscache
