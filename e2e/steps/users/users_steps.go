package users

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/cucumber/godog"
)

// Credentials of the superuser seeded by the server at startup.
type Credentials struct {
	Email    string
	Password string
}

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	API(path string) string
	GET(path string) error
	POST(path string, body any) error
	PUT(path string, body any) error
	DELETE(path string) error
	POSTForm(path string, form url.Values) error
	Status() int
	Body() string
	GetResponseField(field string) (any, error)
	SetAccessToken(token string)
	EmailFor(alias string) string
	RememberID(alias string, userID int64)
	IDFor(alias string) (int64, error)
}

// RegisterSteps registers login and user management steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext, creds Credentials) {
	steps := &userSteps{tc: tc, creds: creds}

	ctx.Step(`^I am logged in as the superuser$`, steps.loginAsSuperuser)
	ctx.Step(`^I log in as the superuser with password "([^"]*)"$`, steps.loginSuperuserWithPassword)
	ctx.Step(`^I log in as "([^"]*)" with password "([^"]*)"$`, steps.loginAs)
	ctx.Step(`^I create user "([^"]*)" with password "([^"]*)"$`, steps.createUser)
	ctx.Step(`^I have created user "([^"]*)" with password "([^"]*)"$`, steps.haveCreatedUser)
	ctx.Step(`^I list users with range "([^"]*)"$`, steps.listWithRange)
	ctx.Step(`^I list users$`, steps.listUsers)
	ctx.Step(`^I fetch my profile$`, steps.fetchMe)
	ctx.Step(`^I change my email to the address of "([^"]*)"$`, steps.changeMyEmail)
	ctx.Step(`^I deactivate user "([^"]*)"$`, steps.deactivate)
	ctx.Step(`^I delete user "([^"]*)"$`, steps.deleteUser)
	ctx.Step(`^I fetch user "([^"]*)"$`, steps.fetchUser)
}

type userSteps struct {
	tc    TestContext
	creds Credentials
}

func (s *userSteps) login(email, password string) error {
	return s.tc.POSTForm(s.tc.API("/login/access-token"), url.Values{
		"username": {email},
		"password": {password},
	})
}

func (s *userSteps) loginAsSuperuser(ctx context.Context) error {
	if s.creds.Email == "" {
		return errors.New("E2E_SUPERUSER_EMAIL is not set")
	}
	if err := s.login(s.creds.Email, s.creds.Password); err != nil {
		return err
	}
	return s.saveToken()
}

func (s *userSteps) loginSuperuserWithPassword(ctx context.Context, password string) error {
	return s.login(s.creds.Email, password)
}

// loginAs keeps the token when the login succeeds so later steps act as alias.
func (s *userSteps) loginAs(ctx context.Context, alias, password string) error {
	if err := s.login(s.tc.EmailFor(alias), password); err != nil {
		return err
	}
	if s.tc.Status() == 200 {
		return s.saveToken()
	}
	return nil
}

func (s *userSteps) saveToken() error {
	tok, err := s.tc.GetResponseField("access_token")
	if err != nil {
		return err
	}
	raw, ok := tok.(string)
	if !ok || raw == "" {
		return fmt.Errorf("no access token in %s", s.tc.Body())
	}
	s.tc.SetAccessToken(raw)
	return nil
}

func (s *userSteps) createUser(ctx context.Context, alias, password string) error {
	body := map[string]any{
		"email":            s.tc.EmailFor(alias),
		"password":         password,
		"password_confirm": password,
	}
	if err := s.tc.POST(s.tc.API("/users"), body); err != nil {
		return err
	}
	if s.tc.Status() != 200 {
		return nil
	}
	v, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	n, ok := v.(float64)
	if !ok {
		return fmt.Errorf("unexpected id %v", v)
	}
	s.tc.RememberID(alias, int64(n))
	return nil
}

func (s *userSteps) haveCreatedUser(ctx context.Context, alias, password string) error {
	if err := s.createUser(ctx, alias, password); err != nil {
		return err
	}
	if s.tc.Status() != 200 {
		return fmt.Errorf("create %s: status %d: %s", alias, s.tc.Status(), s.tc.Body())
	}
	return nil
}

func (s *userSteps) listWithRange(ctx context.Context, rng string) error {
	return s.tc.GET(s.tc.API("/users?" + url.Values{"range": {rng}}.Encode()))
}

func (s *userSteps) listUsers(ctx context.Context) error {
	return s.tc.GET(s.tc.API("/users"))
}

func (s *userSteps) fetchMe(ctx context.Context) error {
	return s.tc.GET(s.tc.API("/users/me"))
}

func (s *userSteps) changeMyEmail(ctx context.Context, alias string) error {
	return s.tc.PUT(s.tc.API("/users/me"), map[string]any{"email": s.tc.EmailFor(alias)})
}

func (s *userSteps) userPath(alias string) (string, error) {
	userID, err := s.tc.IDFor(alias)
	if err != nil {
		return "", err
	}
	return s.tc.API(fmt.Sprintf("/users/%d", userID)), nil
}

func (s *userSteps) deactivate(ctx context.Context, alias string) error {
	path, err := s.userPath(alias)
	if err != nil {
		return err
	}
	return s.tc.PUT(path, map[string]any{"is_active": false})
}

func (s *userSteps) deleteUser(ctx context.Context, alias string) error {
	path, err := s.userPath(alias)
	if err != nil {
		return err
	}
	return s.tc.DELETE(path)
}

func (s *userSteps) fetchUser(ctx context.Context, alias string) error {
	path, err := s.userPath(alias)
	if err != nil {
		return err
	}
	return s.tc.GET(path)
}
