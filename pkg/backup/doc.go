/*
Package backup implements the cross-component backup coordinator, the ISO
artifact toolkit and the backup set validator.

A backup spans every component class of one source environment. The
coordinator discovers the environment through the node agent, fans jobs out
in fixed phases and folds the per-job status stream into a single registry,
producing a signed, self-describing backup set on local disk.

# Architecture

	┌──────────────────────────────────────────────────────────┐
	│                      Coordinator                          │
	│                                                           │
	│  DiscoverEnvironment ──► group nodes by type              │
	│                                                           │
	│  Phase 1  system-core      first master                   │
	│  Phase 2  director         every director     (parallel)  │
	│  Phase 3  orchestrator     every orchestrator (parallel)  │
	│  Phase 4  network-config   first controller               │
	│  Phase 5  app-definitions  first catalog                  │
	│  Phase 6  volume-data      (storage node, app) (parallel) │
	│                                                           │
	│  jobs ──status──► channel ──► aggregator ──► registry     │
	└──────────────────────────────────────────────────────────┘

Phases run strictly in order; jobs inside one phase run concurrently.
Every job publishes its transitions on one buffered channel consumed by a
single aggregator goroutine, so registry writes are serialized without
locking in the hot path. Registry updates are monotone: a terminal entry
is never regressed and progress never decreases.

A backup succeeds only when every dispatched job completed. On failure the
already-produced ISOs and the temp directory are retained for inspection;
on success the scratch space is removed and the manifest set is written.

# Backup Set Layout

	backup-20250301-090000/
	├── isos/
	│   └── <component>-<job>-<backup id>.iso
	├── metadata/
	│   ├── manifest.json
	│   ├── backup_info.yaml
	│   ├── recovery_index.db
	│   └── digital_signature/
	│       ├── manifest.sig
	│       └── backup_info.sig
	├── scripts/
	│   ├── recovery/main.sh
	│   ├── validation/validate.sh
	│   └── transformation/transform.sh
	└── temp/            (failed backups only)

manifest.json is authoritative; backup_info.yaml is the human-readable
summary; recovery_index.db is a bolt database mapping components to ISO
paths for recovery tooling. Signatures are SHA-256 digests of the signed
files.

# ISO Artifacts

IsoManager produces and inspects the ISO-shaped artifacts exchanged with
node agents. Each artifact is a tar container with a fixed layout:

	metadata/manifest.json   embedded IsoMetadata
	data/                    the backed-up payload
	scripts/                 recovery, validation, transformation hooks

# Validation

Validator checks completed sets at three levels:

  - structural: directory layout, manifest parse, ISO presence and size
  - deep: structural plus embedded ISO metadata and signature verification
  - completeness: component flags against what the backup type requires

Every run is appended to the backup record's metadata and stamps
last_validated_at, so the validation history travels with the record.

# Usage

	coord := backup.NewCoordinator(agentClient, cfg.BackupDir)
	if err := coord.Run(ctx, record, backupRepo); err != nil {
		// record.Status is failed; metadata carries the first error
	}

	v := backup.NewValidator()
	result, err := v.Validate(ctx, record, backup.ValidationDeep)
*/
package backup
