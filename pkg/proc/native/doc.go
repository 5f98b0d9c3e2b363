// Package native implements the process control backend of the thread
// package on top of ptrace(2), and the translation of the wait statuses
// of traced threads into thread events.
//
// Only Linux on amd64 and 386 hosts is supported.
package native
