/*
Package events models lifecycle event deliveries.

The orchestration runtime invokes mirrorctl once per event. Each delivery is
stamped with a UUID so the log lines, the status history and the metrics of a
single invocation can be correlated:

	evt, err := events.Parse("config-changed")
	if err != nil {
		return err // wraps types.ErrUnknownEvent
	}
	logger := log.WithEvent(string(evt.Kind), evt.ID)

Events carry no payload. Handlers re-read configuration on every delivery.
*/
package events
