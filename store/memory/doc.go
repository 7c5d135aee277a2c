// Package memory provides in-process implementations of every goAccount
// store interface. Data lives in maps guarded by one mutex per store and is
// lost on restart; use it for tests and single-node development.
//
// Records are copied on the way in and out so callers never alias stored
// state.
package memory
