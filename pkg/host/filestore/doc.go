// Package filestore is a host backed by a directory. Each item is one file;
// several processes opening the same directory share the store, and a
// Watcher turns filesystem notifications into host changes so that each
// process behaves like a separate browser context.
//
// Layout of the directory:
//
//	<hex(key)>.item   the value of key, written through a temp file and renamed
//	.cleared          generation marker rewritten by every Clear
//	.tmp-<uuid>       in-flight writes, never read
//
// A Store remembers the last value it saw for every key. Its own writes
// update that memory, so its Watcher only reports what other writers did.
package filestore
