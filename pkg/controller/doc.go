/*
Package controller maps lifecycle events onto host actions and derives the
workload status.

# Events

	install          maintenance "installing"
	                 ensure packages, configure site
	                 [bootstrap sync: maintenance "bootstrap", run every command]
	                 install schedule
	                 maintenance "install complete"

	config-changed   maintenance "updating configuration"
	                 install schedule, declare ports
	                 active "ready"

	start            ensure web service running
	                 active "ready"

A failing host action ends the event with a blocked status whose message
names the phase and the cause. Bootstrap command failures are logged and
counted but never block: the schedule retries them.

# Status

Handle returns an Outcome holding every transition in order. Reporters
(the bbolt status store, the runtime's status-set tool) receive each
transition as it happens. They are write-only; the controller never reads
status back, so each event starts from the declared configuration alone.
*/
package controller
