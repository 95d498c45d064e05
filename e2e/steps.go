package e2e

import (
	"context"

	"github.com/cucumber/godog"

	"rolegate/e2e/steps/common"
	"rolegate/e2e/steps/users"
)

// RegisterSteps registers the step definitions of every package.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext, creds users.Credentials) {
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		tc.Reset()
		return ctx, nil
	})

	common.RegisterSteps(ctx, tc)
	users.RegisterSteps(ctx, tc, creds)
}
