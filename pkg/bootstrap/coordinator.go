package bootstrap

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/log"
	"github.com/cuemby/omni-orchestrator/pkg/metrics"
)

// DefaultStepDelay simulates the per-rung work of a host. Tests set it
// to zero through the field.
const DefaultStepDelay = 50 * time.Millisecond

// cloud is the live state for one cloud rollout
type cloud struct {
	config      CloudConfig
	phase       Phase
	hosts       map[string]*Host
	startedAt   time.Time
	completedAt *time.Time

	// retention is recorded by the backup phase.
	retentionDays int
}

// Coordinator drives cloud bootstraps. State lives for the server
// process lifetime; every host update is one short critical section.
type Coordinator struct {
	mu     sync.RWMutex
	clouds map[string]*cloud
	logger zerolog.Logger

	// StepDelay throttles the simulated ladder.
	StepDelay time.Duration
	Now       func() time.Time
}

// NewCoordinator creates a bootstrap coordinator
func NewCoordinator() *Coordinator {
	return &Coordinator{
		clouds:    make(map[string]*cloud),
		logger:    log.WithComponent("bootstrap"),
		StepDelay: DefaultStepDelay,
		Now:       time.Now,
	}
}

// Init registers a cloud and starts its rollout in the background. A
// cloud name can only be initialised once per process lifetime.
func (c *Coordinator) Init(ctx context.Context, config CloudConfig) error {
	if config.CloudName == "" {
		return apierrors.New(apierrors.KindBadRequest, "cloud_name is required")
	}
	if len(config.SSHHosts) == 0 {
		return apierrors.New(apierrors.KindBadRequest, "ssh_hosts must not be empty")
	}

	c.mu.Lock()
	if _, exists := c.clouds[config.CloudName]; exists {
		c.mu.Unlock()
		return apierrors.Newf(apierrors.KindConflict, "cloud %s is already bootstrapping", config.CloudName)
	}
	cl := &cloud{
		config:    config,
		phase:     PhaseBootstrap,
		hosts:     make(map[string]*Host, len(config.SSHHosts)),
		startedAt: c.Now(),
	}
	for _, h := range config.SSHHosts {
		cl.hosts[h.Name] = &Host{
			Name:      h.Name,
			IP:        h.IP,
			IsBastion: h.IsBastion,
			Status:    HostStatusPending,
		}
	}
	c.clouds[config.CloudName] = cl
	c.mu.Unlock()

	lg := log.WithCloud(c.logger, config.CloudName)
	lg.Info().
		Int("hosts", len(config.SSHHosts)).
		Msg("cloud bootstrap started")

	go c.runCloud(config.CloudName)
	return nil
}

// Status returns a point-in-time snapshot of a cloud rollout
func (c *Coordinator) Status(cloudName string) (*CloudStatus, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cl, ok := c.clouds[cloudName]
	if !ok {
		return nil, apierrors.NotFound("cloud", cloudName)
	}

	status := &CloudStatus{
		CloudName:   cloudName,
		Phase:       cl.phase,
		StartedAt:   cl.startedAt,
		CompletedAt: cl.completedAt,
	}
	for _, h := range cl.hosts {
		host := *h
		host.Services = append([]ServiceStatus{}, h.Services...)
		status.Hosts = append(status.Hosts, host)
	}
	sort.Slice(status.Hosts, func(i, j int) bool {
		return status.Hosts[i].Name < status.Hosts[j].Name
	})
	return status, nil
}

// runCloud executes the full phase sequence for one cloud
func (c *Coordinator) runCloud(cloudName string) {
	c.mu.RLock()
	cl := c.clouds[cloudName]
	config := cl.config
	c.mu.RUnlock()

	// Bastions come up first so workers always have an entry point.
	var bastions, workers []string
	for _, h := range config.SSHHosts {
		if h.IsBastion {
			bastions = append(bastions, h.Name)
		} else {
			workers = append(workers, h.Name)
		}
	}

	c.runHostsParallel(cloudName, bastions)
	c.runHostsParallel(cloudName, workers)

	c.setPhase(cloudName, PhaseNetwork)
	c.ConfigureNetwork(cloudName)

	if config.EnableMonitoring {
		c.setPhase(cloudName, PhaseMonitoring)
		c.SetupMonitoring(cloudName)
	}
	if config.EnableBackups {
		c.setPhase(cloudName, PhaseBackup)
		c.SetupBackups(cloudName, config.BackupRetentionDays)
	}

	c.mu.Lock()
	now := c.Now()
	cl.phase = PhaseDone
	cl.completedAt = &now
	c.mu.Unlock()

	lg := log.WithCloud(c.logger, cloudName)
	lg.Info().Msg("cloud bootstrap finished")
}

// BootstrapHost walks one host through the bootstrap ladder. It also
// backs the manual re-run endpoint.
func (c *Coordinator) BootstrapHost(cloudName, hostName string) error {
	c.mu.RLock()
	cl, ok := c.clouds[cloudName]
	var exists bool
	if ok {
		_, exists = cl.hosts[hostName]
	}
	c.mu.RUnlock()
	if !ok {
		return apierrors.NotFound("cloud", cloudName)
	}
	if !exists {
		return apierrors.NotFound("host", hostName)
	}

	c.walkLadder(cloudName, hostName, true)
	return nil
}

// ConfigureNetwork applies network configuration to every host of the
// cloud in parallel, walking the same ladder without touching the role
// service inventory.
func (c *Coordinator) ConfigureNetwork(cloudName string) error {
	names, err := c.hostNames(cloudName)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(host string) {
			defer wg.Done()
			c.walkLadder(cloudName, host, false)
		}(name)
	}
	wg.Wait()
	return nil
}

// SetupMonitoring installs the metrics collector on every host
func (c *Coordinator) SetupMonitoring(cloudName string) error {
	names, err := c.hostNames(cloudName)
	if err != nil {
		return err
	}
	for _, name := range names {
		c.addService(cloudName, name, monitoringService)
	}
	lg := log.WithCloud(c.logger, cloudName)
	lg.Info().Msg("monitoring configured")
	return nil
}

// SetupBackups installs the backup manager on bastions and records the
// retention policy.
func (c *Coordinator) SetupBackups(cloudName string, retentionDays int) error {
	c.mu.Lock()
	cl, ok := c.clouds[cloudName]
	if !ok {
		c.mu.Unlock()
		return apierrors.NotFound("cloud", cloudName)
	}
	cl.retentionDays = retentionDays
	var bastions []string
	for name, h := range cl.hosts {
		if h.IsBastion {
			bastions = append(bastions, name)
		}
	}
	c.mu.Unlock()

	for _, name := range bastions {
		c.addService(cloudName, name, backupService)
	}
	lg := log.WithCloud(c.logger, cloudName)
	lg.Info().
		Int("retention_days", retentionDays).
		Msg("backups configured")
	return nil
}

// RetentionDays returns the recorded backup retention for a cloud
func (c *Coordinator) RetentionDays(cloudName string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.clouds[cloudName]
	if !ok {
		return 0, apierrors.NotFound("cloud", cloudName)
	}
	return cl.retentionDays, nil
}

func (c *Coordinator) runHostsParallel(cloudName string, hosts []string) {
	var wg sync.WaitGroup
	for _, name := range hosts {
		wg.Add(1)
		go func(host string) {
			defer wg.Done()
			c.walkLadder(cloudName, host, true)
		}(name)
	}
	wg.Wait()
}

// walkLadder advances one host through every rung. installRole selects
// whether the role inventory is (re)applied at the 90% rung; phases
// after bootstrap reuse the ladder without it.
func (c *Coordinator) walkLadder(cloudName, hostName string, installRole bool) {
	for _, rung := range bootstrapLadder {
		c.mu.Lock()
		cl, ok := c.clouds[cloudName]
		if !ok {
			c.mu.Unlock()
			return
		}
		h, ok := cl.hosts[hostName]
		if !ok {
			c.mu.Unlock()
			return
		}
		h.CurrentStep = rung.name
		h.Progress = rung.progress
		if rung.progress < 100 {
			h.Status = HostStatusInProgress
			h.Completed = false
		} else {
			h.Status = HostStatusCompleted
			h.Completed = true
		}
		isBastion := h.IsBastion
		c.mu.Unlock()

		if rung.progress == 90 && installRole {
			services := workerServices
			if isBastion {
				services = bastionServices
			}
			for _, svc := range services {
				c.addService(cloudName, hostName, svc)
			}
		}

		c.updateHostMetrics()
		if c.StepDelay > 0 && rung.progress < 100 {
			time.Sleep(c.StepDelay)
		}
	}

	lg := log.WithCloud(c.logger, cloudName)
	lg.Debug().
		Str("host", hostName).
		Msg("host ladder complete")
}

// addService appends a service record unless the host already has it
func (c *Coordinator) addService(cloudName, hostName, service string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl, ok := c.clouds[cloudName]
	if !ok {
		return
	}
	h, ok := cl.hosts[hostName]
	if !ok {
		return
	}
	for _, s := range h.Services {
		if s.Name == service {
			return
		}
	}
	h.Services = append(h.Services, ServiceStatus{
		Name:        service,
		Status:      "running",
		InstalledAt: c.Now(),
	})
}

func (c *Coordinator) hostNames(cloudName string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.clouds[cloudName]
	if !ok {
		return nil, apierrors.NotFound("cloud", cloudName)
	}
	names := make([]string, 0, len(cl.hosts))
	for name := range cl.hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (c *Coordinator) setPhase(cloudName string, phase Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clouds[cloudName]; ok {
		cl.phase = phase
	}
}

// updateHostMetrics recomputes the per-status host gauge across clouds
func (c *Coordinator) updateHostMetrics() {
	c.mu.RLock()
	counts := make(map[HostStatus]int)
	for _, cl := range c.clouds {
		for _, h := range cl.hosts {
			counts[h.Status]++
		}
	}
	c.mu.RUnlock()

	for _, status := range []HostStatus{HostStatusPending, HostStatusInProgress, HostStatusCompleted, HostStatusFailed} {
		metrics.BootstrapHostsTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
