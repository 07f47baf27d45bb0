/*
Package metrics declares the Prometheus instruments and the exposition
handler.

Instruments are package-level and registered at init, covering the API
request stream, platform pool usage, migrations, backup jobs and sizes,
autoscaler decisions and bootstrap host states. Subsystems record into
them directly; nothing here has state of its own.
*/
package metrics
