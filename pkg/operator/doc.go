/*
Package operator maps external lifecycle triggers onto the cluster
requirer and the worker facade.

Triggers form a closed set (workload-ready, config-changed, upgrade, the
relation lifecycle, collect-status) and are processed strictly one at a
time. Status aggregation is a pure function of an explicit state snapshot,
evaluated in priority order with the first blocking or waiting condition
winning.
*/
package operator
