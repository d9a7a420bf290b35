package token_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/tollgate/pkg/tokensdk"
)

/*
 * Shared setup for the token service end-to-end tests: one docker network
 * holding redis, etcd and the token service image built from this tree.
 */

const (
	testImageName = "tollgate-token-test:latest"

	octKey       = "ZTJlLXRlc3Qta2V5LWUyZS10ZXN0LWtleS1lMmUtdGVzdA"
	audience     = "web"
	instanceName = "e2e"
)

// TestMain builds the token image once for the whole package.
func TestMain(m *testing.M) {
	if os.Getenv("E2E") == "" {
		fmt.Fprintln(os.Stdout, "E2E not set, skipping token service end-to-end tests")
		os.Exit(0)
	}

	fmt.Fprintf(os.Stdout, "Building Token Service Docker image...")
	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up Token Service Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	cmd := exec.CommandContext(context.Background(), "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/token/Dockerfile",
		"../../../")
	cmd.Stdout = os.Stdout
	return cmd.Run()
}

func cleanupDockerImage() {
	_ = exec.CommandContext(context.Background(), "docker", "rmi", "-f", testImageName).Run()
}

// stack is a running token service with its backends.
type stack struct {
	network *testcontainers.DockerNetwork
	token   testcontainers.Container

	TokenURL string // token service as seen from the test process
	EtcdAddr string // etcd client endpoint as seen from the test process
}

func (s *stack) Client(t *testing.T) *tokensdk.Client {
	t.Helper()
	client, err := tokensdk.NewClient(s.TokenURL)
	require.NoError(t, err)
	return client
}

// StopToken terminates the token container. Its heartbeat stops and the
// key expires with the lease.
func (s *stack) StopToken(t *testing.T) {
	t.Helper()
	timeout := 10 * time.Second
	require.NoError(t, s.token.Stop(context.Background(), &timeout))
}

func setupStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()

	nw, err := network.New(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = nw.Remove(context.Background()) })

	s := &stack{network: nw}

	startContainer(t, nw, "redis", testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	})

	etcd := startContainer(t, nw, "etcd", testcontainers.ContainerRequest{
		Image:        "gcr.io/etcd-development/etcd:v3.6.4",
		ExposedPorts: []string{"2379/tcp"},
		Cmd: []string{
			"etcd",
			"--listen-client-urls", "http://0.0.0.0:2379",
			"--advertise-client-urls", "http://etcd:2379",
		},
		WaitingFor: wait.ForListeningPort("2379/tcp").WithStartupTimeout(60 * time.Second),
	})
	s.EtcdAddr = endpoint(t, etcd, "2379")

	s.token = startContainer(t, nw, "token", testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"3000/tcp"},
		Env: map[string]string{
			"TOKEN_OCT_KEY":            octKey,
			"TOKEN_EXPIRES":            audience + "=3600",
			"TOKEN_CACHE_DRIVER":       "redis",
			"APP_REDIS":                "redis://redis:6379/0",
			"ETCD_ENDPOINTS":           "etcd:2379",
			"LISTEN_ADDR":              "0.0.0.0:3000",
			"DISCOVER_ADDR":            "http://token:3000",
			"SERVICE_INSTANCE":         instanceName,
			"LEASE_GRANT_TTL":          "3s",
			"LEASE_KEEPALIVE_INTERVAL": "1s",
			"ENV":                      "test",
			"LOG_LEVEL":                "info",
			// E2E tests issue far more pairs than the production budget allows
			"RATELIMIT_ISSUE_REQUESTS": "1000",
			"RATELIMIT_ISSUE_BURST":    "1000",
			"RATELIMIT_ADMIN_REQUESTS": "1000",
			"RATELIMIT_ADMIN_BURST":    "1000",
		},
		WaitingFor: wait.ForHTTP("/readyz").
			WithPort("3000/tcp").
			WithStartupTimeout(60 * time.Second),
	})
	s.TokenURL = "http://" + endpoint(t, s.token, "3000")

	return s
}

func startContainer(t *testing.T, nw *testcontainers.DockerNetwork, alias string, req testcontainers.ContainerRequest) testcontainers.Container {
	t.Helper()
	ctx := context.Background()

	req.Networks = []string{nw.Name}
	req.NetworkAliases = map[string][]string{nw.Name: {alias}}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start %s container", alias)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate %s container: %v", alias, err)
		}
	})
	return container
}

func endpoint(t *testing.T, c testcontainers.Container, port string) string {
	t.Helper()
	ctx := context.Background()

	host, err := c.Host(ctx)
	require.NoError(t, err)
	mapped, err := c.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, mapped.Port())
}
