// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"offer-crew/internal/common/config"
	"offer-crew/internal/common/errors"
	"offer-crew/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client wraps the Zeebe gRPC client with error mapping.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

// ClientConfig holds configuration for the Camunda/Zeebe client.
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
}

// NewClientWithConfig creates a Camunda client and checks the broker topology.
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.ConnectionTimeout <= 0 {
		config.ConnectionTimeout = 10 * time.Second
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	// Test connection with timeout
	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()

	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}

	return &Client{
		client: zeebeClient,
		config: config,
	}, nil
}

// GetClient returns the raw Zeebe client for advanced usage (e.g., job polling).
func (c *Client) GetClient() zbc.Client {
	return c.client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// DeployResource deploys a BPMN file and returns the deployment key.
func (c *Client) DeployResource(ctx context.Context, path string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	resp, err := c.client.NewDeployResourceCommand().AddResourceFile(path).Send(ctx)
	if err != nil {
		return 0, c.mapZeebeError(err, "deploy "+path)
	}
	return resp.GetKey(), nil
}

// CreateInstanceWithResult starts the latest version of processID and blocks
// until it completes, returning the requested variables as a JSON document.
func (c *Client) CreateInstanceWithResult(ctx context.Context, processID string, variables map[string]interface{}, fetch ...string) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
	}

	cmd, err := c.client.NewCreateInstanceCommand().
		BPMNProcessId(processID).
		LatestVersion().
		VariablesFromMap(variables)
	if err != nil {
		return "", errors.NewRuntimeUnavailableError("zeebe", fmt.Errorf("encode variables: %w", err))
	}

	resp, err := cmd.WithResult().FetchVariables(fetch...).Send(ctx)
	if err != nil {
		return "", c.mapZeebeError(err, "create instance of "+processID)
	}
	return resp.GetVariables(), nil
}

// mapZeebeError converts Zeebe errors into standardized application errors.
func (c *Client) mapZeebeError(err error, operation string) error {
	msg := err.Error()
	lowerMsg := strings.ToLower(msg)
	wrapped := fmt.Errorf("Zeebe operation '%s' failed: %w", operation, err)

	switch {
	case strings.Contains(lowerMsg, "deadline exceeded") ||
		strings.Contains(lowerMsg, "timeout"):
		return errors.NewRuntimeUnavailableError("zeebe", wrapped).WithMetadata("reason", "timeout")

	case strings.Contains(lowerMsg, "not found"):
		return errors.NewRuntimeUnavailableError("zeebe", wrapped).WithMetadata("reason", "not_found")

	default:
		return errors.NewRuntimeUnavailableError("zeebe", wrapped)
	}
}

// HealthCheck performs a basic health check against the Zeebe broker.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	_, err := c.client.NewTopologyCommand().Send(ctx)
	if err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

// Connect builds a client from cfg, retrying the topology check with
// exponential backoff while the broker starts up.
func Connect(cfg config.CamundaConfig, attempts int, log logger.Logger) (*Client, error) {
	clientCfg := &ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: true,
		RequestTimeout:         config.GetDuration(cfg.RequestTimeout),
	}

	if attempts < 1 {
		attempts = 1
	}

	var (
		client *Client
		err    error
	)
	delay := 2 * time.Second
	for i := 0; i < attempts; i++ {
		client, err = NewClientWithConfig(clientCfg)
		if err == nil {
			return client, nil
		}
		if i < attempts-1 {
			log.Warn("Zeebe connection failed, retrying...", map[string]interface{}{
				"error":       err,
				"attempt":     i + 1,
				"maxRetries":  attempts,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}
	return nil, fmt.Errorf("zeebe connection failed after %d attempts: %w", attempts, err)
}
