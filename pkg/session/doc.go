/*
Package session hosts many live form engines at once, one per respondent
session, for servers that drive forms on behalf of remote clients.

Each session owns an engine started on creation and stopped on Close, so
progress is flushed when a session ends. Operations on the same session are
serialised by a reference-counted lock, optionally backed by a distributed
locker when several replicas share a store.
*/
package session
