package common

import (
	"context"
	"fmt"
	"regexp"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	Status() int
	Header(name string) string
	Body() string
	GetResponseField(field string) (any, error)
	ResponseArrayLen() (int, error)
	ClearAccessToken()
}

// RegisterSteps registers generic request and response assertion steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the service is healthy$`, steps.serviceIsHealthy)
	ctx.Step(`^I drop my access token$`, steps.dropToken)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the error code should be "([^"]*)"$`, steps.errorCodeShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the response should not contain "([^"]*)"$`, steps.bodyShouldNotContain)
	ctx.Step(`^the header "([^"]*)" should match "([^"]*)"$`, steps.headerShouldMatch)
	ctx.Step(`^the response should list at most (\d+) items?$`, steps.listAtMost)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) serviceIsHealthy(ctx context.Context) error {
	if err := s.tc.GET("/healthz"); err != nil {
		return err
	}
	return s.statusShouldBe(ctx, 200)
}

func (s *commonSteps) dropToken(ctx context.Context) error {
	s.tc.ClearAccessToken()
	return nil
}

func (s *commonSteps) statusShouldBe(ctx context.Context, want int) error {
	if got := s.tc.Status(); got != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, got, s.tc.Body())
	}
	return nil
}

func (s *commonSteps) errorCodeShouldBe(ctx context.Context, code string) error {
	return s.fieldShouldBe(ctx, "error", code)
}

func (s *commonSteps) fieldShouldBe(ctx context.Context, field, want string) error {
	got, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprint(got) != want {
		return fmt.Errorf("expected %s %q, got %v", field, want, got)
	}
	return nil
}

func (s *commonSteps) bodyShouldNotContain(ctx context.Context, text string) error {
	if regexp.MustCompile(regexp.QuoteMeta(text)).MatchString(s.tc.Body()) {
		return fmt.Errorf("response unexpectedly contains %q", text)
	}
	return nil
}

func (s *commonSteps) headerShouldMatch(ctx context.Context, name, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	if got := s.tc.Header(name); !re.MatchString(got) {
		return fmt.Errorf("header %s %q does not match %q", name, got, pattern)
	}
	return nil
}

func (s *commonSteps) listAtMost(ctx context.Context, n int) error {
	got, err := s.tc.ResponseArrayLen()
	if err != nil {
		return err
	}
	if got > n {
		return fmt.Errorf("expected at most %d items, got %d", n, got)
	}
	return nil
}
