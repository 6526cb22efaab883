package natsclient

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestClient runs a throwaway NATS server in a container for integration tests
type TestClient struct {
	container testcontainers.Container
	Client    *Client
	URL       string
}

const (
	testNATSImage        = "nats:2.11.7-alpine"
	testConnectTimeout   = 5 * time.Second
	testContainerStartup = 30 * time.Second
)

// NewSharedTestClient starts a NATS container and a connected client.
// It does not need a testing.T, so it can be used from TestMain.
func NewSharedTestClient() (*TestClient, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        testNATSImage,
		ExposedPorts: []string{"4222/tcp", "8222/tcp"},
		Cmd:          []string{"--port", "4222", "--http_port", "8222"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("4222/tcp"),
			wait.ForHTTP("/").WithPort("8222/tcp").WithStartupTimeout(testContainerStartup),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start NATS container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "4222")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	url := fmt.Sprintf("nats://%s:%s", host, port.Port())

	client, err := NewClient(url, WithTimeout(testConnectTimeout), WithMaxReconnects(0))
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, testConnectTimeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &TestClient{container: container, Client: client, URL: url}, nil
}

// NewClient returns an additional connected client for the same server
func (tc *TestClient) NewClient(ctx context.Context, opts ...ClientOption) (*Client, error) {
	client, err := NewClient(tc.URL, append([]ClientOption{WithMaxReconnects(0)}, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// Terminate closes the client and stops the container
func (tc *TestClient) Terminate() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if tc.Client != nil {
		_ = tc.Client.Close(ctx)
	}
	if tc.container != nil {
		_ = tc.container.Terminate(ctx)
	}
}
