/*
Package database manages the control-plane database and the per-platform
tenant databases, including schema migrations.

Every platform gets its own MySQL database named omni_p_<platform>, fully
isolated from its siblings. The main database (omni) holds the platform
registry, users, sessions and audit records.

# Architecture

	┌───────────────────────────────────────────────┐
	│                   Manager                      │
	│                                                │
	│  ConnectionManager                             │
	│    main pool ─────────► omni                   │
	│    platform pools ────► omni_p_acme            │
	│            (lazy,       omni_p_globex          │
	│             cached)     ...                    │
	│                                                │
	│  MigrationRunner                               │
	│    Registry (sql/) ──► versioned statements    │
	│    metadata table  ──► current schema version  │
	└───────────────────────────────────────────────┘

CreatePlatform validates the name, registers the platform, provisions its
database and migrates it to the target version in one call; a provisioning
failure rolls the registry entry back.

# Migrations

SQL artifacts live under a directory tree keyed by artifact and version:

	sql/v1/main.sql              base schema for version 1
	sql/versions/V2/main.sql     step from version 1 to 2

The runner reads the current version from the artifact's metadata table,
replays the base schema on a fresh database, or applies each missing step
in order. The version row is rewritten inside a transaction only after the
statements of a step have all applied, so a failed step leaves the
recorded version untouched. Statement splitting understands string
literals, comments and DELIMITER directives.

Interactive runs prompt before migrating an out-of-date artifact;
BypassConfirm suppresses the prompt for automation.
*/
package database
