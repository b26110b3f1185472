// Package pathresolve implements the Path Resolver component (spec §4.1):
// translating a user-visible path into its server-absolute form, and a
// server-absolute path into a client-local cache path.
package pathresolve

import (
	"path"
	"strings"
)

// ServerPath re-roots a user-supplied path U under server root R, producing
// the canonical server-absolute path used as the key in every server-side
// and client-side map. Absolute U is re-rooted under R; relative U is
// appended to R. The result is always cleaned: no double separators, no
// dropped segments, and always starts with "/".
func ServerPath(root, user string) string {
	if !strings.HasPrefix(root, "/") {
		root = "/" + root
	}
	root = path.Clean(root)

	if strings.HasPrefix(user, "/") {
		// Absolute U is re-rooted: strip the leading slash and join under root.
		user = strings.TrimPrefix(user, "/")
	}

	joined := path.Join(root, user)
	if joined == "." {
		joined = "/"
	}
	if !strings.HasPrefix(joined, "/") {
		joined = "/" + joined
	}
	return joined
}

// CachePath maps a server-absolute path S to its location under a client's
// local cache root: <cache_root>/<S>.
func CachePath(cacheRoot, serverAbsolute string) string {
	cacheRoot = strings.TrimRight(cacheRoot, "/")
	if !strings.HasPrefix(serverAbsolute, "/") {
		serverAbsolute = "/" + serverAbsolute
	}
	return cacheRoot + path.Clean(serverAbsolute)
}

// BaseName returns the leaf name of a server-absolute path.
func BaseName(serverAbsolute string) string {
	return path.Base(serverAbsolute)
}

// DirName returns the parent of a server-absolute path.
func DirName(serverAbsolute string) string {
	return path.Dir(serverAbsolute)
}

// Join re-roots newParent/newName the same way ServerPath does, for use by
// rename to compute a destination server-absolute path from separate
// directory and name arguments as the bridge (spec §6) supplies them.
func Join(dir, name string) string {
	return ServerPath(dir, name)
}

// HasPrefix reports whether p is prefix or equal to it as a path segment,
// i.e. p == prefix or p starts with prefix+"/". Used by rename re-keying
// (spec §8 property 6) to decide which map entries move under a renamed
// directory.
func HasPrefix(p, prefix string) bool {
	if p == prefix {
		return true
	}
	return strings.HasPrefix(p, strings.TrimRight(prefix, "/")+"/")
}

// Reprefix rewrites p so that oldPrefix, if it is a path-segment prefix of
// p (per HasPrefix), is replaced by newPrefix. p is returned unchanged if
// oldPrefix is not a path-segment prefix of it.
func Reprefix(p, oldPrefix, newPrefix string) string {
	if !HasPrefix(p, oldPrefix) {
		return p
	}
	if p == oldPrefix {
		return newPrefix
	}
	rest := strings.TrimPrefix(p, strings.TrimRight(oldPrefix, "/")+"/")
	return ServerPath(newPrefix, rest)
}
