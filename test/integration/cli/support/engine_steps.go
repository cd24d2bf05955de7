package support

import (
	"fmt"

	"github.com/cucumber/godog"
	"github.com/spf13/afero"

	"github.com/MeKo-Tech/qrlens/internal/engines"
)

func (testCtx *TestContext) registry() *engines.Store {
	return engines.NewStore(afero.NewOsFs(), testCtx.EnginesFile)
}

func (testCtx *TestContext) theRegistryShouldHaveEngines(n int) error {
	list, err := testCtx.registry().List()
	if err != nil {
		return err
	}
	if len(list) != n {
		return fmt.Errorf("registry has %d engines, want %d", len(list), n)
	}
	return nil
}

func (testCtx *TestContext) theEngineShouldBeEnabled(name, state string) error {
	e, err := testCtx.registry().FindByName(name)
	if err != nil {
		return err
	}
	if want := state == "enabled"; e.Enabled != want {
		return fmt.Errorf("engine %s enabled=%t, want %s", name, e.Enabled, state)
	}
	return nil
}

func (testCtx *TestContext) anEngineIsRegistered(name, url string) error {
	_, err := testCtx.registry().Add(name, url)
	return err
}

// RegisterEngineSteps registers steps that inspect the engine registry file.
func (testCtx *TestContext) RegisterEngineSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the engine registry should have (\d+) engines?$`, testCtx.theRegistryShouldHaveEngines)
	sc.Step(`^the engine "([^"]*)" should be (enabled|disabled)$`, testCtx.theEngineShouldBeEnabled)
	sc.Step(`^an engine "([^"]*)" with URL "([^"]*)" is registered$`, testCtx.anEngineIsRegistered)
}
