package verify

import (
	"go.uber.org/zap"
)

// Step names double as metric labels.
const (
	StepOpenLogin    = "open_login"
	StepLogin        = "login"
	StepOpenFeature  = "open_feature"
	StepWaitTable    = "wait_table"
	StepColumnHeader = "column_header"
	StepOpenForm     = "open_form"
	StepSubAccount   = "sub_account"
	StepSettle       = "settle"
)

// AccountForm is the accounts-master check: log in if needed, open the
// account list, open the create form and reveal the sub-account fields.
func AccountForm() []Step {
	return []Step{
		{Name: StepOpenLogin, Run: openLogin},
		{Name: StepLogin, Run: login},
		{Name: StepOpenFeature, Run: openFeature},
		{Name: StepWaitTable, Run: waitTable},
		{Name: StepColumnHeader, Run: columnHeader},
		{Name: StepOpenForm, Run: openForm},
		{Name: StepSubAccount, Run: subAccount},
		{Name: StepSettle, Run: settle},
	}
}

func openLogin(env *Env) error {
	env.Println("Navigating to login...")
	return env.Navigate(env.cfg.App.URL(env.cfg.App.LoginPath))
}

func login(env *Env) error {
	cfg := env.cfg
	state := DetectAuthState(env.session.URL(), cfg.App.LoginPath)
	env.logger.Debug("auth state", zap.Stringer("state", state))
	if state == Authenticated {
		env.Println("Already logged in.")
		return nil
	}

	env.Println("Logging in...")
	if err := env.Fill(cfg.Locators.Email, cfg.Credentials.Email); err != nil {
		return err
	}
	if err := env.Fill(cfg.Locators.Password, cfg.Credentials.Password); err != nil {
		return err
	}
	if err := env.Click(cfg.Locators.Submit); err != nil {
		return err
	}
	if err := env.WaitForURL("**"+cfg.App.LandingPath, cfg.Timeouts.Navigation); err != nil {
		return err
	}
	env.Println("Logged in successfully.")
	return nil
}

func openFeature(env *Env) error {
	label := env.cfg.App.FeatureName
	if label == "" {
		label = env.cfg.App.FeaturePath
	}
	env.Println("Navigating to " + label + "...")
	return env.Navigate(env.cfg.App.URL(env.cfg.App.FeaturePath))
}

func waitTable(env *Env) error {
	if err := env.WaitForElement(env.cfg.Locators.Table, env.cfg.Timeouts.Element); err != nil {
		return err
	}
	env.Println("Table loaded.")
	return nil
}

func columnHeader(env *Env) error {
	return env.ExpectVisible(env.cfg.Locators.ColumnHeader)
}

func openForm(env *Env) error {
	env.Println("Opening Create Form...")
	if err := env.Click(env.cfg.Locators.NewRecord); err != nil {
		return err
	}
	env.Println("Verifying Form...")
	return env.ExpectVisible(env.cfg.Locators.FormSection)
}

func subAccount(env *Env) error {
	env.Println("Testing Sub Account Interaction...")
	loc := env.cfg.Locators
	if err := env.Check(loc.SubAccount); err != nil {
		return err
	}
	if err := env.ExpectVisible(loc.ParentSearch); err != nil {
		return err
	}
	return env.ExpectVisible(loc.AutoCodeToggle)
}

// settle gives CSS transitions time to finish before the screenshot.
func settle(env *Env) error {
	return env.Sleep(env.cfg.Timeouts.Settle)
}
