package features

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/cucumber/godog"

	"assetline/internal/app"
	"assetline/internal/config"
	"assetline/internal/domain"
	"assetline/internal/engine"
)

type lifecycleContext struct {
	dir     string
	env     *app.Env
	request domain.Request
	err     error
}

func (c *lifecycleContext) reset(ctx context.Context) error {
	dir, err := os.MkdirTemp("", "assetline-features-")
	if err != nil {
		return err
	}
	env, err := app.Open(ctx, dir, config.Default(), nil)
	if err != nil {
		os.RemoveAll(dir)
		return err
	}
	c.dir, c.env = dir, env
	c.request = domain.Request{}
	c.err = nil
	return nil
}

func (c *lifecycleContext) close() {
	if c.env != nil {
		c.env.Close()
	}
	if c.dir != "" {
		os.RemoveAll(c.dir)
	}
	c.env, c.dir = nil, ""
}

func (c *lifecycleContext) aUserWithRoleAndGrade(id, role, grade string) error {
	_, err := c.env.Engine.AddUser(context.Background(), domain.User{ID: id, Grade: grade, Roles: []string{role}}, "seed")
	return err
}

func (c *lifecycleContext) anAvailableItem(id string) error {
	_, err := c.env.Engine.AddItem(context.Background(), domain.Item{ID: id, Name: id, IsAvailable: true}, "seed")
	return err
}

func (c *lifecycleContext) itemIsMarkedUnavailable(id string) error {
	_, err := c.env.Engine.SetItemAvailability(context.Background(), id, false, "seed")
	return err
}

func (c *lifecycleContext) requests(requester, item, start, end, manager string) error {
	req, err := c.env.Engine.CreateRequest(context.Background(), engine.CreateRequestOptions{
		RequesterID: requester,
		ManagerID:   manager,
		Lines:       []domain.RequestLine{{ItemID: item, Quantity: 1}},
		StartDate:   start,
		EndDate:     end,
	})
	c.err = err
	if err == nil {
		c.request = req
	}
	return nil
}

func (c *lifecycleContext) recordsManagerDecision(actor, decision string) error {
	return c.apply(c.env.Engine.DecideManagerApproval(context.Background(), c.request.ID, actor, domain.Decision(decision), ""))
}

func (c *lifecycleContext) recordsPicDecision(actor, decision string) error {
	return c.apply(c.env.Engine.DecidePicApproval(context.Background(), c.request.ID, actor, domain.Decision(decision), ""))
}

func (c *lifecycleContext) returnsTheItems(actor string) error {
	return c.apply(c.env.Engine.ReturnItems(context.Background(), c.request.ID, actor))
}

func (c *lifecycleContext) apply(req domain.Request, err error) error {
	c.err = err
	if err == nil {
		c.request = req
	}
	return nil
}

func (c *lifecycleContext) reload() (domain.Request, error) {
	if c.request.ID == "" {
		return domain.Request{}, fmt.Errorf("no request created")
	}
	return c.env.Engine.Repo.GetRequest(context.Background(), nil, c.request.ID)
}

func (c *lifecycleContext) theRequestStatusIs(status string) error {
	req, err := c.reload()
	if err != nil {
		return err
	}
	if string(req.Status) != status {
		return fmt.Errorf("expected status %s, got %s", status, req.Status)
	}
	return nil
}

func (c *lifecycleContext) theApprovalLogHasEntries(n int) error {
	req, err := c.reload()
	if err != nil {
		return err
	}
	if len(req.Approvals) != n {
		return fmt.Errorf("expected %d approval entries, got %d", n, len(req.Approvals))
	}
	return nil
}

func (c *lifecycleContext) itemAvailability(want bool) func(id string) error {
	return func(id string) error {
		it, err := c.env.Engine.GetItem(context.Background(), id)
		if err != nil {
			return err
		}
		if it.IsAvailable != want {
			return fmt.Errorf("item %s available=%t, want %t", id, it.IsAvailable, want)
		}
		return nil
	}
}

func (c *lifecycleContext) theOperationFailsWith(kind string) error {
	if c.err == nil {
		return fmt.Errorf("expected %s error, operation succeeded", kind)
	}
	if got := engine.KindOf(c.err); string(got) != kind {
		return fmt.Errorf("expected %s error, got %q: %v", kind, got, c.err)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &lifecycleContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		return ctx, tc.reset(ctx)
	})
	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		tc.close()
		return ctx, nil
	})

	ctx.Step(`^a user "([^"]*)" with role "([^"]*)" and grade "([^"]*)"$`, tc.aUserWithRoleAndGrade)
	ctx.Step(`^an available item "([^"]*)"$`, tc.anAvailableItem)
	ctx.Step(`^item "([^"]*)" is marked unavailable$`, tc.itemIsMarkedUnavailable)

	ctx.Step(`^"([^"]*)" requests "([^"]*)" from "([^"]*)" to "([^"]*)" with manager "([^"]*)"$`, tc.requests)
	ctx.Step(`^"([^"]*)" records the manager decision "([^"]*)"$`, tc.recordsManagerDecision)
	ctx.Step(`^"([^"]*)" records the PIC decision "([^"]*)"$`, tc.recordsPicDecision)
	ctx.Step(`^"([^"]*)" returns the items$`, tc.returnsTheItems)

	ctx.Step(`^the request status is "([^"]*)"$`, tc.theRequestStatusIs)
	ctx.Step(`^the approval log has (\d+) entries$`, tc.theApprovalLogHasEntries)
	ctx.Step(`^item "([^"]*)" is unavailable$`, tc.itemAvailability(false))
	ctx.Step(`^item "([^"]*)" is available$`, tc.itemAvailability(true))
	ctx.Step(`^the operation fails with "([^"]*)"$`, tc.theOperationFailsWith)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"request_lifecycle.feature"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
