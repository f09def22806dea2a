/*
Package resilience provides a circuit breaker for remote backends.

The project store wraps its Redis client in a Breaker so that a dead
server fails saves and loads immediately instead of stalling the session
owner for a full network timeout on every request.

# States

	Closed --[FailureThreshold failures]-> Open --[Cooldown]-> Half-Open
	Half-Open --[Probes successes]-> Closed
	Half-Open --[failure]-> Open

Errors the caller classifies as expected (for example a missing project)
do not count as failures; see Settings.IsFailure.
*/
package resilience
