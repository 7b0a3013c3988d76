// Package state persists the mapping from logical pod names to pod records.
//
// The state file is the only record of which provider pod backs which
// logical name. [Store.Load] treats a missing file as empty state but
// reports unreadable or corrupt files as [*StorageError]. [Store.Save]
// writes atomically.
package state
