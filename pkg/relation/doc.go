/*
Package relation models the fact-exchange channel between this worker's
application and the coordinator's application.

A Relation is a consistent snapshot of one channel: stable ID, endpoint
name, remote application identity, and one databag per participant. The
Transport interface is the seam to the hosting platform, which owns
delivery and ordering; two implementations ship here, an in-memory one for
tests and a BoltDB-backed one giving the agent a durable local view.
*/
package relation
