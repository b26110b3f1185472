// Package wire defines the plain data types that cross the connection
// between an afsmount client and an afsd server, independent of the RPC
// transport carrying them.
package wire

// ChunkSize is the size, in bytes, of a single streamed content chunk for
// open/compare/close (spec §4.4).
const ChunkSize = 4096

// MaxRetries is the number of attempts the RPC Client Stub makes for
// idempotent open/compare/close calls before surfacing BackendUnavailable
// (spec §4.4, §4.5, §4.6).
const MaxRetries = 3

// Attr is the attribute snapshot served to a local getattr (spec §3).
// Time fields are nanoseconds since epoch.
type Attr struct {
	Size  uint64
	Mode  uint32
	Nlink uint32
	Uid   uint32
	Gid   uint32
	Atime int64
	Mtime int64
	Ctime int64
}

// EntryKind distinguishes directory entries returned by ls (spec §4.8, §6).
type EntryKind uint8

const (
	RegularFile EntryKind = iota
	Directory
)

func (k EntryKind) String() string {
	if k == Directory {
		return "Directory"
	}
	return "Regular_File"
}

// DirEntry is one entry of an ls(path) response.
type DirEntry struct {
	Name string
	Kind EntryKind
}

// NotifyKind is the kind of a server-pushed Notification (spec §3).
type NotifyKind uint8

const (
	NotifyUpdate NotifyKind = iota
	NotifyDelete
	NotifyRename
)

func (k NotifyKind) String() string {
	switch k {
	case NotifyUpdate:
		return "UPDATE"
	case NotifyDelete:
		return "DELETE"
	case NotifyRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Notification is pushed by the server to every client interested in Path
// when another client's close mutates it, or when it is deleted or renamed.
type Notification struct {
	Kind      NotifyKind
	Path      string
	NewPath   string // set only for NotifyRename
	Timestamp int64
}

// OpenResult is what the server streams back for an open() call: the file's
// content, chunked, tagged with the authoritative timestamp it was read at.
type OpenResult struct {
	Timestamp int64
	Size      int64
}

// CompareResult is what the server replies for a compare() call.
type CompareResult struct {
	Updated   bool // true iff the client's cached copy is stale
	Timestamp int64
	Size      int64 // only meaningful when Updated
}

// CloseResult is what the server replies for a close() call once the
// streamed content has been written atomically and stamped.
type CloseResult struct {
	Timestamp int64
}
