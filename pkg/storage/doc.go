/*
Package storage persists status transitions in a BoltDB file under the state
directory, and provides the lock that serializes hook invocations.

# Layout

	<stateDir>/mirrorctl.db
	  status/current      last StatusRecord (JSON)
	  history/<seq>       StatusRecord per transition, big-endian sequence keys
	<stateDir>/hook.lock  held for the whole of one event

The database is opened per operation. A hook holds hook.lock while it runs,
which can be hours during a bootstrap sync, but only holds the database for
the instant it records a transition. `mirrorctl status` therefore reads the
current status while an event is still in maintenance.

The history bucket is trimmed to Options.HistoryLimit entries, oldest first.
The controller treats the store as a sink; nothing in the event handlers
reads it back.
*/
package storage
