// Package events provides the typed bus carrying derived cluster events
// from the requirer state machine to the operator. Downstream consumers
// react to semantically meaningful transitions rather than to every raw
// databag write.
package events
