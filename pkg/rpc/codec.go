package rpc

import (
	"github.com/complyue/hbi"

	"github.com/EricZhang12138/Distributed-Filesystem/pkg/wire"
)

// The wire types in pkg/wire are marshaled across HBI conversations as
// hbi.LitListType literals. Each function below is a thin, explicit
// field-by-field (de)composition, no reflection-based encoding. Exported
// so both the client stub (this package) and the server's reactor methods
// (pkg/server) share one definition of the wire shape.

// EncodeAttr packs an attribute snapshot for hbi.Repr.
func EncodeAttr(a wire.Attr) hbi.LitListType {
	return hbi.LitListType{
		int64(a.Size), int64(a.Mode), int64(a.Nlink),
		int64(a.Uid), int64(a.Gid),
		a.Atime, a.Mtime, a.Ctime,
	}
}

// DecodeAttr unpacks an attribute snapshot received via RecvObj.
func DecodeAttr(v interface{}) wire.Attr {
	f := v.(hbi.LitListType)
	return wire.Attr{
		Size:  uint64(f[0].(hbi.LitIntType)),
		Mode:  uint32(f[1].(hbi.LitIntType)),
		Nlink: uint32(f[2].(hbi.LitIntType)),
		Uid:   uint32(f[3].(hbi.LitIntType)),
		Gid:   uint32(f[4].(hbi.LitIntType)),
		Atime: int64(f[5].(hbi.LitIntType)),
		Mtime: int64(f[6].(hbi.LitIntType)),
		Ctime: int64(f[7].(hbi.LitIntType)),
	}
}

// EncodeNotification packs a Notification for hbi.Repr.
func EncodeNotification(n wire.Notification) hbi.LitListType {
	return hbi.LitListType{
		int64(n.Kind), n.Path, n.NewPath, n.Timestamp,
	}
}

// DecodeNotification unpacks a Notification received via RecvObj.
func DecodeNotification(v interface{}) wire.Notification {
	f := v.(hbi.LitListType)
	return wire.Notification{
		Kind:      wire.NotifyKind(f[0].(hbi.LitIntType)),
		Path:      f[1].(string),
		NewPath:   f[2].(string),
		Timestamp: int64(f[3].(hbi.LitIntType)),
	}
}

// EncodeDirEntries packs an ls() result for hbi.Repr.
func EncodeDirEntries(des []wire.DirEntry) hbi.LitListType {
	out := make(hbi.LitListType, len(des))
	for i, de := range des {
		out[i] = hbi.LitListType{de.Name, int64(de.Kind)}
	}
	return out
}

// DecodeDirEntries unpacks an ls() result received via RecvObj.
func DecodeDirEntries(v interface{}) []wire.DirEntry {
	f := v.(hbi.LitListType)
	out := make([]wire.DirEntry, len(f))
	for i, ev := range f {
		ef := ev.(hbi.LitListType)
		out[i] = wire.DirEntry{
			Name: ef[0].(string),
			Kind: wire.EntryKind(ef[1].(hbi.LitIntType)),
		}
	}
	return out
}
