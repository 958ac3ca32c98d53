/*
Package session serialises access to refinement sessions.

A Manager wraps a ports.SessionStore. Every operation on a session ID runs under a
per-ID mutex whose entry is reference counted and dropped when the last holder leaves,
and, when a ports.DistributedLocker is configured, under a lock shared with other
quill processes.
*/
package session
