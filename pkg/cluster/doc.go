/*
Package cluster implements the requirer side of the loki-cluster
coordination protocol.

The Requirer tracks relation health, publishes this unit's address and the
application's role set into the exchange, fetches and validates the
coordinator's published config, endpoints and certificate secret pointers,
and derives lifecycle events (created, config-received, removed) from raw
relation triggers. Consumers subscribe to the derived events and never
read the exchange directly.

The protocol is cluster-internal: the only counterpart is the coordinator
application, and at most one relation instance is expected on the
endpoint.
*/
package cluster
