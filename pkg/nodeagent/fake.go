package nodeagent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cuemby/omni-orchestrator/pkg/models"
)

// Fake is an in-memory NetworkClient for tests and local development.
// Nodes, volumes and failure injection are configured up front; the
// fake materialises ISO payloads on local disk so copy semantics match
// the real client.
type Fake struct {
	mu      sync.Mutex
	nodes   map[string][]*Node   // env -> nodes
	volumes map[string][]*Volume // node id -> volumes
	isoDir  string

	// FailBackups marks (nodeID, componentType) pairs whose backup
	// request should fail.
	FailBackups map[string]bool

	// BackupRequests counts RequestComponentBackup calls by node id.
	BackupRequests map[string]int
}

// NewFake creates an empty fake; isoDir is where fake ISOs are staged
func NewFake(isoDir string) *Fake {
	return &Fake{
		nodes:          make(map[string][]*Node),
		volumes:        make(map[string][]*Volume),
		isoDir:         isoDir,
		FailBackups:    make(map[string]bool),
		BackupRequests: make(map[string]int),
	}
}

// AddNode registers a node in an environment
func (f *Fake) AddNode(env string, node *Node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[env] = append(f.nodes[env], node)
}

// AddVolume registers a volume on a storage node
func (f *Fake) AddVolume(nodeID string, v *Volume) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes[nodeID] = append(f.volumes[nodeID], v)
}

// FailBackup injects a failure for one (node, component) job
func (f *Fake) FailBackup(nodeID string, componentType models.ComponentType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FailBackups[nodeID+"/"+string(componentType)] = true
}

// DiscoverEnvironment implements NetworkClient
func (f *Fake) DiscoverEnvironment(ctx context.Context, env string) ([]*Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	nodes, ok := f.nodes[env]
	if !ok {
		return nil, fmt.Errorf("unknown environment %q", env)
	}
	return append([]*Node{}, nodes...), nil
}

// RequestComponentBackup implements NetworkClient
func (f *Fake) RequestComponentBackup(ctx context.Context, nodeID string, componentType models.ComponentType, configJSON string) (*ComponentBackupResult, error) {
	f.mu.Lock()
	f.BackupRequests[nodeID]++
	fail := f.FailBackups[nodeID+"/"+string(componentType)]
	f.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("backup of %s failed on node %s", componentType, nodeID)
	}

	isoPath := filepath.Join(f.isoDir, fmt.Sprintf("%s-%s.iso", componentType, nodeID))
	payload := []byte(fmt.Sprintf("iso payload %s %s\n", nodeID, componentType))
	if err := os.MkdirAll(f.isoDir, 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(isoPath, payload, 0644); err != nil {
		return nil, err
	}

	return &ComponentBackupResult{
		Status:        "ok",
		NodeID:        nodeID,
		ComponentType: componentType,
		IsoPath:       isoPath,
		SizeBytes:     int64(len(payload)),
		CreatedAt:     time.Now(),
	}, nil
}

// CopyFileFromNode implements NetworkClient by copying a staged file
func (f *Fake) CopyFileFromNode(ctx context.Context, nodeID, srcPath, dstPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("failed to read %s on node %s: %w", srcPath, nodeID, err)
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(dstPath, data, 0644)
}

// GetNodeVolumes implements NetworkClient
func (f *Fake) GetNodeVolumes(ctx context.Context, nodeID string) ([]*Volume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Volume{}, f.volumes[nodeID]...), nil
}

// RequestComponentRecovery implements NetworkClient
func (f *Fake) RequestComponentRecovery(ctx context.Context, nodeID string, componentType models.ComponentType, configJSON string) (*ComponentRecoveryResult, error) {
	return &ComponentRecoveryResult{
		Status:        "ok",
		NodeID:        nodeID,
		ComponentType: componentType,
	}, nil
}
