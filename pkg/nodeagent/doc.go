/*
Package nodeagent is the client for the node agent running on every
managed machine.

NetworkClient is the interface the rest of the system consumes:
environment discovery, component backup and recovery requests, volume
inventory and file transfer. HTTPClient implements it over the agent's
REST API; Fake is an in-memory implementation for tests and local
development that stages ISO payloads on disk so copy semantics match the
real client.
*/
package nodeagent
