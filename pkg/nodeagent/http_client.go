package nodeagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuemby/omni-orchestrator/pkg/models"
)

// DefaultTimeout bounds every node-agent RPC. A timed-out RPC fails the
// calling job; the coordinator proceeds with the rest of the phase.
const DefaultTimeout = 60 * time.Second

// HTTPClient talks JSON over HTTP to the node-agent gateway
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client against the agent gateway base URL
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
	}
}

// DiscoverEnvironment lists the nodes of a target environment
func (c *HTTPClient) DiscoverEnvironment(ctx context.Context, env string) ([]*Node, error) {
	var out struct {
		Nodes []*Node `json:"nodes"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/environments/%s/nodes", env), nil, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to discover environment %s: %w", env, err)
	}
	return out.Nodes, nil
}

// RequestComponentBackup asks a node to produce a component ISO
func (c *HTTPClient) RequestComponentBackup(ctx context.Context, nodeID string, componentType models.ComponentType, configJSON string) (*ComponentBackupResult, error) {
	in := map[string]interface{}{
		"component_type": componentType,
		"config":         json.RawMessage(emptyIfBlank(configJSON)),
	}
	var out ComponentBackupResult
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/nodes/%s/backup", nodeID), in, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to request %s backup from node %s: %w", componentType, nodeID, err)
	}
	return &out, nil
}

// CopyFileFromNode streams a file from a node to a local destination
func (c *HTTPClient) CopyFileFromNode(ctx context.Context, nodeID, srcPath, dstPath string) error {
	url := fmt.Sprintf("%s/nodes/%s/files?path=%s", c.baseURL, nodeID, srcPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build file request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s from node %s: %w", srcPath, nodeID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node %s returned status %d for %s", nodeID, resp.StatusCode, srcPath)
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	f, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dstPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(dstPath)
		return fmt.Errorf("failed to write %s: %w", dstPath, err)
	}
	return nil
}

// GetNodeVolumes lists the volumes on a storage node
func (c *HTTPClient) GetNodeVolumes(ctx context.Context, nodeID string) ([]*Volume, error) {
	var out struct {
		Volumes []*Volume `json:"volumes"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/nodes/%s/volumes", nodeID), nil, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to list volumes on node %s: %w", nodeID, err)
	}
	return out.Volumes, nil
}

// RequestComponentRecovery asks a node to restore a component from an ISO
func (c *HTTPClient) RequestComponentRecovery(ctx context.Context, nodeID string, componentType models.ComponentType, configJSON string) (*ComponentRecoveryResult, error) {
	in := map[string]interface{}{
		"component_type": componentType,
		"config":         json.RawMessage(emptyIfBlank(configJSON)),
	}
	var out ComponentRecoveryResult
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/nodes/%s/recover", nodeID), in, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to request %s recovery on node %s: %w", componentType, nodeID, err)
	}
	return &out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("agent returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func emptyIfBlank(configJSON string) string {
	if strings.TrimSpace(configJSON) == "" {
		return "{}"
	}
	return configJSON
}
