// Package failover contains the region failover controller: health
// aggregation, the hysteresis decision engine, the traffic-switch
// orchestrator and the monitoring scheduler. All shared region state lives
// behind one lock owned by the Manager.
package failover
