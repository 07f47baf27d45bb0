package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/log"
	"github.com/cuemby/omni-orchestrator/pkg/metrics"
	"github.com/cuemby/omni-orchestrator/pkg/models"
	"github.com/cuemby/omni-orchestrator/pkg/nodeagent"
)

// jobKey identifies one unit of work in the registry. Volume jobs get a
// synthetic node id of the form "<node>:<application>" so one storage
// node can carry several jobs.
type jobKey struct {
	nodeID    string
	component models.ComponentType
}

// registry is the single source of truth for job state during one
// backup. It has one logical writer (the aggregator) and read-only
// observers.
type registry struct {
	mu   sync.RWMutex
	jobs map[jobKey]*models.BackupJobStatus
}

func newRegistry() *registry {
	return &registry{jobs: make(map[jobKey]*models.BackupJobStatus)}
}

// upsert applies a status update, keeping job status monotone: a
// terminal entry is never regressed and progress never decreases.
func (r *registry) upsert(update models.BackupJobStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := jobKey{update.NodeID, update.ComponentType}
	existing, ok := r.jobs[key]
	if ok {
		if existing.Status.Terminal() {
			return
		}
		if update.Progress < existing.Progress {
			update.Progress = existing.Progress
		}
	}
	r.jobs[key] = &update
}

// snapshot returns a copy of every job entry
func (r *registry) snapshot() []models.BackupJobStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.BackupJobStatus, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, *job)
	}
	return out
}

// counts returns (total, completed, failed)
func (r *registry) counts() (int, int, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	completed, failed := 0, 0
	for _, job := range r.jobs {
		switch job.Status {
		case models.JobStatusCompleted:
			completed++
		case models.JobStatusFailed:
			failed++
		}
	}
	return len(r.jobs), completed, failed
}

// BackupStore is the persistence surface the coordinator needs
type BackupStore interface {
	Update(ctx context.Context, b *models.Backup) error
}

// Coordinator produces one consistent backup set spanning heterogeneous
// node types. It exclusively owns its job registry for the duration of
// one backup.
type Coordinator struct {
	client     nodeagent.NetworkClient
	isoManager *IsoManager
	storageDir string
	logger     zerolog.Logger

	// Now is the clock; tests substitute a fixed one.
	Now func() time.Time
}

// NewCoordinator creates a backup coordinator writing under storageDir
func NewCoordinator(client nodeagent.NetworkClient, storageDir string) *Coordinator {
	return &Coordinator{
		client:     client,
		isoManager: NewIsoManager(),
		storageDir: storageDir,
		logger:     log.WithComponent("backup"),
		Now:        time.Now,
	}
}

// Run executes one backup to completion, mutating the record as it
// goes and persisting it through store (which may be nil for tests).
// Errors from individual jobs are aggregated; Run returns an error only
// when the backup as a whole failed.
func (c *Coordinator) Run(ctx context.Context, b *models.Backup, store BackupStore) error {
	metrics.BackupsActive.Inc()
	defer metrics.BackupsActive.Dec()

	logger := log.WithBackupID(c.logger, b.ID)

	backupDir := filepath.Join(c.storageDir, "backup-"+c.Now().Format("20060102-150405"))
	isoDir := filepath.Join(backupDir, "isos")
	tempDir := filepath.Join(backupDir, "temp")
	for _, dir := range []string{isoDir, tempDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return c.fail(ctx, b, store, fmt.Errorf("failed to create backup directory: %w", err))
		}
	}
	b.StorageLocation = backupDir
	b.Status = models.BackupStatusInitializing
	c.persist(ctx, b, store)

	nodes, err := c.client.DiscoverEnvironment(ctx, b.SourceEnvironment)
	if err != nil {
		return c.fail(ctx, b, store, fmt.Errorf("failed to discover environment: %w", err))
	}

	byType := groupNodes(nodes)
	logger.Info().
		Int("nodes", len(nodes)).
		Str("environment", b.SourceEnvironment).
		Msg("starting backup dispatch")

	b.Status = models.BackupStatusInProgress
	c.persist(ctx, b, store)

	reg := newRegistry()
	statusCh := make(chan models.BackupJobStatus, 64)

	// Single consumer owns the registry; producers only send updates.
	var aggregator sync.WaitGroup
	aggregator.Add(1)
	go func() {
		defer aggregator.Done()
		for update := range statusCh {
			reg.upsert(update)
			logger.Debug().
				Str("node_id", update.NodeID).
				Str("component", string(update.ComponentType)).
				Str("status", string(update.Status)).
				Int("progress", update.Progress).
				Msg("backup job update")
		}
	}()

	c.dispatchPhases(ctx, b, byType, isoDir, statusCh)
	close(statusCh)
	aggregator.Wait()

	return c.finalize(ctx, b, store, reg, backupDir, tempDir)
}

// dispatchPhases runs the six dispatch phases in order, waiting for
// quiescence between phases. Jobs within one phase run concurrently.
func (c *Coordinator) dispatchPhases(ctx context.Context, b *models.Backup, byType map[nodeagent.NodeType][]*nodeagent.Node, isoDir string, statusCh chan<- models.BackupJobStatus) {
	runPhase := func(jobs []func()) {
		var wg sync.WaitGroup
		for _, job := range jobs {
			wg.Add(1)
			go func(run func()) {
				defer wg.Done()
				run()
			}(job)
		}
		wg.Wait()
	}

	// Phase 1: system core from the first master.
	if masters := byType[nodeagent.NodeTypeMaster]; len(masters) > 0 {
		node := masters[0]
		runPhase([]func(){func() {
			c.runJob(ctx, b, node.ID, node.ID, models.ComponentSystemCore, "{}", isoDir, statusCh)
		}})
	}

	// Phase 2: one director backup per director.
	var directorJobs []func()
	for _, node := range byType[nodeagent.NodeTypeDirector] {
		node := node
		directorJobs = append(directorJobs, func() {
			c.runJob(ctx, b, node.ID, node.ID, models.ComponentDirector, "{}", isoDir, statusCh)
		})
	}
	runPhase(directorJobs)

	// Phase 3: one orchestrator backup per orchestrator.
	var orchestratorJobs []func()
	for _, node := range byType[nodeagent.NodeTypeOrchestrator] {
		node := node
		orchestratorJobs = append(orchestratorJobs, func() {
			c.runJob(ctx, b, node.ID, node.ID, models.ComponentOrchestrator, "{}", isoDir, statusCh)
		})
	}
	runPhase(orchestratorJobs)

	// Phase 4: network config from the first network controller.
	if controllers := byType[nodeagent.NodeTypeNetworkController]; len(controllers) > 0 {
		node := controllers[0]
		runPhase([]func(){func() {
			c.runJob(ctx, b, node.ID, node.ID, models.ComponentNetworkConfig, "{}", isoDir, statusCh)
		}})
	}

	// Phase 5: app definitions from the first application catalog,
	// filtered by included_apps when present.
	if catalogs := byType[nodeagent.NodeTypeApplicationCatalog]; len(catalogs) > 0 {
		node := catalogs[0]
		config := appFilterConfig(b.IncludedApps)
		runPhase([]func(){func() {
			c.runJob(ctx, b, node.ID, node.ID, models.ComponentAppDefinitions, config, isoDir, statusCh)
		}})
	}

	// Phase 6: volume data, one job per (storage node, application).
	var volumeJobs []func()
	for _, node := range byType[nodeagent.NodeTypeStorage] {
		node := node
		apps, err := c.applicationsOnNode(ctx, node.ID, b.IncludedApps)
		if err != nil {
			// Inventory failure fails one synthetic job for the node so
			// the backup reflects the loss.
			volumeJobs = append(volumeJobs, func() {
				now := c.Now()
				statusCh <- models.BackupJobStatus{
					NodeID:        node.ID,
					ComponentType: models.ComponentVolumeData,
					Status:        models.JobStatusFailed,
					Error:         err.Error(),
					StartedAt:     now,
					CompletedAt:   &now,
				}
				metrics.BackupJobsTotal.WithLabelValues(string(models.ComponentVolumeData), "failed").Inc()
			})
			continue
		}
		for _, app := range apps {
			app := app
			config := fmt.Sprintf(`{"application":%q}`, app)
			volumeJobs = append(volumeJobs, func() {
				c.runJob(ctx, b, node.ID, node.ID+":"+app, models.ComponentVolumeData, config, isoDir, statusCh)
			})
		}
	}
	runPhase(volumeJobs)
}

// applicationsOnNode fetches a storage node's volume inventory, groups
// it by application and applies the included_apps filter.
func (c *Coordinator) applicationsOnNode(ctx context.Context, nodeID string, included []string) ([]string, error) {
	volumes, err := c.client.GetNodeVolumes(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to inventory volumes on %s: %w", nodeID, err)
	}

	allowed := make(map[string]bool, len(included))
	for _, app := range included {
		allowed[app] = true
	}

	seen := make(map[string]bool)
	var apps []string
	for _, v := range volumes {
		if v.Application == "" || seen[v.Application] {
			continue
		}
		if len(allowed) > 0 && !allowed[v.Application] {
			continue
		}
		seen[v.Application] = true
		apps = append(apps, v.Application)
	}
	sort.Strings(apps)
	return apps, nil
}

// runJob executes one backup job: request the component ISO on the
// node, copy it into the backup set, and publish status transitions on
// the channel. jobID distinguishes volume jobs sharing one node.
func (c *Coordinator) runJob(ctx context.Context, b *models.Backup, nodeID, jobID string, component models.ComponentType, configJSON, isoDir string, statusCh chan<- models.BackupJobStatus) {
	started := c.Now()
	status := models.BackupJobStatus{
		NodeID:        jobID,
		ComponentType: component,
		Status:        models.JobStatusStarting,
		Progress:      0,
		StartedAt:     started,
	}
	statusCh <- status

	failJob := func(err error) {
		now := c.Now()
		status.Status = models.JobStatusFailed
		status.Error = err.Error()
		status.CompletedAt = &now
		statusCh <- status
		metrics.BackupJobsTotal.WithLabelValues(string(component), "failed").Inc()
	}

	result, err := c.client.RequestComponentBackup(ctx, nodeID, component, configJSON)
	if err != nil {
		failJob(err)
		return
	}

	status.Status = models.JobStatusInProgress
	status.Progress = 50
	status.SizeBytes = result.SizeBytes
	statusCh <- status

	dest := filepath.Join(isoDir, fmt.Sprintf("%s-%s-%d.iso", component, jobID, b.ID))
	if err := c.client.CopyFileFromNode(ctx, nodeID, result.IsoPath, dest); err != nil {
		failJob(fmt.Errorf("failed to copy iso: %w", err))
		return
	}

	now := c.Now()
	status.Status = models.JobStatusCompleted
	status.Progress = 100
	status.IsoPath = dest
	status.CompletedAt = &now
	statusCh <- status
	metrics.BackupJobsTotal.WithLabelValues(string(component), "completed").Inc()
}

// finalize applies the completion predicate and assembles the manifest
// set, or records the first failure.
func (c *Coordinator) finalize(ctx context.Context, b *models.Backup, store BackupStore, reg *registry, backupDir, tempDir string) error {
	// The aggregator has drained the channel, so the registry is final;
	// the predicate still guards against an empty dispatch.
	total, completed, failed := reg.counts()
	if total == 0 {
		return c.fail(ctx, b, store, fmt.Errorf("no backup jobs were dispatched for environment %s", b.SourceEnvironment))
	}
	if completed+failed != total {
		return c.fail(ctx, b, store, fmt.Errorf("backup finished with %d of %d jobs unterminated", total-completed-failed, total))
	}

	jobs := reg.snapshot()
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].ComponentType != jobs[j].ComponentType {
			return jobs[i].ComponentType < jobs[j].ComponentType
		}
		return jobs[i].NodeID < jobs[j].NodeID
	})

	if failed > 0 {
		var firstErr string
		for _, job := range jobs {
			if job.Status == models.JobStatusFailed && firstErr == "" {
				firstErr = job.Error
			}
		}
		// Already-produced ISOs are retained for forensic use.
		return c.fail(ctx, b, store, apierrors.Newf(apierrors.KindJobFailed,
			"%d of %d backup jobs failed: %s", failed, total, firstErr))
	}

	var descriptors []IsoDescriptor
	var totalSize int64
	for _, job := range jobs {
		b.SetComponent(job.ComponentType)
		size := job.SizeBytes
		if s, err := c.isoManager.IsoSize(job.IsoPath); err == nil {
			size = s
		}
		totalSize += size
		descriptors = append(descriptors, IsoDescriptor{
			Component: job.ComponentType,
			NodeID:    job.NodeID,
			Path:      job.IsoPath,
			SizeBytes: size,
		})
	}

	if b.Metadata == nil {
		b.Metadata = models.JSONMap{}
	}
	b.Metadata["iso_files"] = descriptors
	b.Metadata["total_size_bytes"] = totalSize
	b.SizeBytes = totalSize

	now := c.Now()
	b.CompletedAt = &now

	manifestPath, err := c.isoManager.CreateBackupManifest(b, backupDir)
	if err != nil {
		return c.fail(ctx, b, store, fmt.Errorf("failed to write backup manifest: %w", err))
	}
	b.ManifestPath = manifestPath

	// Scratch space is only kept for failed backups.
	os.RemoveAll(tempDir)

	b.Status = models.BackupStatusSuccess
	c.persist(ctx, b, store)
	metrics.BackupSizeBytes.Observe(float64(totalSize))

	c.logger.Info().
		Int64("backup_id", b.ID).
		Int("isos", len(descriptors)).
		Int64("size_bytes", totalSize).
		Msg("backup complete")

	return nil
}

// fail marks the backup failed, recording the first error in metadata
func (c *Coordinator) fail(ctx context.Context, b *models.Backup, store BackupStore, err error) error {
	if b.Metadata == nil {
		b.Metadata = models.JSONMap{}
	}
	if _, ok := b.Metadata["error"]; !ok {
		b.Metadata["error"] = err.Error()
	}
	now := c.Now()
	b.CompletedAt = &now
	b.Status = models.BackupStatusFailed
	c.persist(ctx, b, store)

	lg := log.WithBackupID(c.logger, b.ID)
	lg.Error().Err(err).Msg("backup failed")
	return err
}

// persist writes the record back; persistence errors never interrupt a
// running backup.
func (c *Coordinator) persist(ctx context.Context, b *models.Backup, store BackupStore) {
	if store == nil {
		return
	}
	if err := store.Update(ctx, b); err != nil {
		lg := log.WithBackupID(c.logger, b.ID)
		lg.Error().Err(err).Msg("failed to persist backup record")
	}
}

func groupNodes(nodes []*nodeagent.Node) map[nodeagent.NodeType][]*nodeagent.Node {
	byType := make(map[nodeagent.NodeType][]*nodeagent.Node)
	for _, node := range nodes {
		byType[node.Type] = append(byType[node.Type], node)
	}
	return byType
}

func appFilterConfig(included []string) string {
	if len(included) == 0 {
		return "{}"
	}
	data, err := json.Marshal(map[string]interface{}{"included_apps": included})
	if err != nil {
		return "{}"
	}
	return string(data)
}
