/*
Package bootstrap drives the multi-phase provisioning of a cloud.

One Init call registers a cloud with its SSH host inventory and starts
the rollout in the background. Hosts advance through a fixed progress
ladder; phases run in order:

	bootstrap   bastions first, then workers, both groups in parallel
	network     every host, same ladder, role services untouched
	monitoring  metrics-collector on every host        (optional)
	backup      backup-manager on bastions + retention (optional)
	done

# The Ladder

Every host walks the same rungs during the bootstrap and network phases:

	  0%  Establishing SSH connection
	 20%  Verifying system requirements
	 40%  Installing binaries
	 60%  Configuring system services
	 80%  Applying security hardening
	 90%  Role-specific configuration
	100%  Bootstrap completed

At the 90% rung the role service inventory is installed: bastions get
orchestrator-core, network-agent, api-gateway and auth-service; workers
get orchestrator-core, network-agent and container-runtime. Later phases
reset step and progress but only ever extend the service list; service
installation is idempotent.

Status returns a deep copy sorted by host name, safe to mutate. All
state is in-memory for the process lifetime; a cloud name registers
exactly once.

StepDelay throttles the simulated per-rung work and is set to zero in
tests.
*/
package bootstrap
