package e2e

import (
	"os"
	"testing"

	"github.com/cucumber/godog"

	"rolegate/e2e/steps/users"
)

// TestFeatures runs against the server at E2E_BASE_URL, which must have been
// started with FIRST_SUPERUSER_EMAIL and FIRST_SUPERUSER_PASSWORD matching
// E2E_SUPERUSER_EMAIL and E2E_SUPERUSER_PASSWORD.
func TestFeatures(t *testing.T) {
	baseURL := os.Getenv("E2E_BASE_URL")
	if baseURL == "" {
		t.Skip("E2E_BASE_URL not set")
	}
	prefix := os.Getenv("E2E_API_PREFIX")
	if prefix == "" {
		prefix = "/api/v1"
	}
	creds := users.Credentials{
		Email:    os.Getenv("E2E_SUPERUSER_EMAIL"),
		Password: os.Getenv("E2E_SUPERUSER_PASSWORD"),
	}
	tc := NewTestContext(baseURL, prefix)

	suite := godog.TestSuite{
		Name: "rolegate",
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			RegisterSteps(ctx, tc, creds)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("e2e scenarios failed")
	}
}
