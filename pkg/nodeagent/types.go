package nodeagent

import (
	"context"
	"time"

	"github.com/cuemby/omni-orchestrator/pkg/models"
)

// NodeType classifies the role a node plays in the environment
type NodeType string

const (
	NodeTypeMaster             NodeType = "master"
	NodeTypeDirector           NodeType = "director"
	NodeTypeOrchestrator       NodeType = "orchestrator"
	NodeTypeNetworkController  NodeType = "network-controller"
	NodeTypeApplicationCatalog NodeType = "application-catalog"
	NodeTypeStorage            NodeType = "storage"
	NodeTypeCompute            NodeType = "compute"
	NodeTypeEdge               NodeType = "edge"
	NodeTypeGateway            NodeType = "gateway"
	NodeTypeUnknown            NodeType = "unknown"
)

// Node represents a discovered node in a target environment
type Node struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Type     NodeType          `json:"type"`
	IP       string            `json:"ip"`
	Hostname string            `json:"hostname"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ComponentBackupResult is the reply to a component backup request
type ComponentBackupResult struct {
	Status        string               `json:"status"`
	NodeID        string               `json:"node_id"`
	ComponentType models.ComponentType `json:"component_type"`
	IsoPath       string               `json:"iso_path"`
	SizeBytes     int64                `json:"size_bytes"`
	CreatedAt     time.Time            `json:"created_at"`
}

// ComponentRecoveryResult is the reply to a component recovery request
type ComponentRecoveryResult struct {
	Status        string               `json:"status"`
	NodeID        string               `json:"node_id"`
	ComponentType models.ComponentType `json:"component_type"`
	Detail        string               `json:"detail,omitempty"`
}

// Volume describes one volume on a storage node
type Volume struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	SizeGB      int64  `json:"size_gb"`
	Application string `json:"application"`
	Status      string `json:"status"`
}

// NetworkClient is the RPC surface the backup coordinator consumes.
// Implementations may use any transport; the control plane ships an
// HTTP/JSON client and an in-memory fake for tests.
type NetworkClient interface {
	DiscoverEnvironment(ctx context.Context, env string) ([]*Node, error)
	RequestComponentBackup(ctx context.Context, nodeID string, componentType models.ComponentType, configJSON string) (*ComponentBackupResult, error)
	CopyFileFromNode(ctx context.Context, nodeID, srcPath, dstPath string) error
	GetNodeVolumes(ctx context.Context, nodeID string) ([]*Volume, error)
	RequestComponentRecovery(ctx context.Context, nodeID string, componentType models.ComponentType, configJSON string) (*ComponentRecoveryResult, error)
}
