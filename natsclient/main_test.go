package natsclient

import (
	"log"
	"os"
	"testing"
)

var sharedTestClient *TestClient

// TestMain starts one NATS container for the package when INTEGRATION_TESTS is set
func TestMain(m *testing.M) {
	if os.Getenv("INTEGRATION_TESTS") == "" {
		log.Println("Running unit tests only. Set INTEGRATION_TESTS=1 to run integration tests.")
		os.Exit(m.Run())
	}

	testClient, err := NewSharedTestClient()
	if err != nil {
		log.Fatalf("Failed to create shared test client: %v", err)
	}
	sharedTestClient = testClient

	exitCode := m.Run()
	testClient.Terminate()
	os.Exit(exitCode)
}

func getSharedTestClient(t *testing.T) *TestClient {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") == "" {
		t.Skip("Skipping integration test. Set INTEGRATION_TESTS=1 to run.")
	}
	if sharedTestClient == nil {
		t.Fatal("Shared test client not initialized - TestMain should have created it")
	}
	return sharedTestClient
}
