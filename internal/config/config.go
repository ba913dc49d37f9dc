package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/erp-adi/uiverify/internal/browser"
)

// EnvPrefix is prepended to every environment override (UIVERIFY_APP_BASE_URL, ...).
const EnvPrefix = "UIVERIFY"

// Config represents the verification configuration
type Config struct {
	App         AppConfig         `mapstructure:"app" yaml:"app"`
	Credentials CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`
	Artifacts   ArtifactsConfig   `mapstructure:"artifacts" yaml:"artifacts"`
	Timeouts    TimeoutsConfig    `mapstructure:"timeouts" yaml:"timeouts"`
	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Locators    LocatorsConfig    `mapstructure:"locators" yaml:"locators"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	Schedule    ScheduleConfig    `mapstructure:"schedule" yaml:"schedule"`
	Fixture     FixtureConfig     `mapstructure:"fixture" yaml:"fixture"`
	Run         RunConfig         `mapstructure:"run" yaml:"run"`
}

// AppConfig locates the application under test.
type AppConfig struct {
	BaseURL     string `mapstructure:"base_url" yaml:"base_url"`
	LoginPath   string `mapstructure:"login_path" yaml:"login_path"`
	LandingPath string `mapstructure:"landing_path" yaml:"landing_path"`
	FeaturePath string `mapstructure:"feature_path" yaml:"feature_path"`
	// FeatureName labels the feature page in progress output.
	FeatureName string `mapstructure:"feature_name" yaml:"feature_name"`
}

// CredentialsConfig is the test account used to log in.
type CredentialsConfig struct {
	Email    string `mapstructure:"email" yaml:"email"`
	Password string `mapstructure:"password" yaml:"password"`
}

// ArtifactsConfig names the success and failure screenshot paths.
type ArtifactsConfig struct {
	SuccessPath string `mapstructure:"success_path" yaml:"success_path"`
	FailurePath string `mapstructure:"failure_path" yaml:"failure_path"`
}

// TimeoutsConfig bounds every wait the runner performs.
type TimeoutsConfig struct {
	Default    time.Duration `mapstructure:"default" yaml:"default"`
	Navigation time.Duration `mapstructure:"navigation" yaml:"navigation"`
	Element    time.Duration `mapstructure:"element" yaml:"element"`
	Assertion  time.Duration `mapstructure:"assertion" yaml:"assertion"`
	Settle     time.Duration `mapstructure:"settle" yaml:"settle"`
}

// BrowserConfig selects and tunes the browser driver.
type BrowserConfig struct {
	Driver         string   `mapstructure:"driver" yaml:"driver"`
	Headless       bool     `mapstructure:"headless" yaml:"headless"`
	SlowMo         int      `mapstructure:"slow_mo" yaml:"slow_mo"`
	ViewportWidth  int      `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int      `mapstructure:"viewport_height" yaml:"viewport_height"`
	Install        bool     `mapstructure:"install" yaml:"install"`
	Args           []string `mapstructure:"args" yaml:"args"`
}

// LocatorsConfig names every element the account form flow touches.
type LocatorsConfig struct {
	Email          browser.Target `mapstructure:"email" yaml:"email"`
	Password       browser.Target `mapstructure:"password" yaml:"password"`
	Submit         browser.Target `mapstructure:"submit" yaml:"submit"`
	Table          browser.Target `mapstructure:"table" yaml:"table"`
	ColumnHeader   browser.Target `mapstructure:"column_header" yaml:"column_header"`
	NewRecord      browser.Target `mapstructure:"new_record" yaml:"new_record"`
	FormSection    browser.Target `mapstructure:"form_section" yaml:"form_section"`
	SubAccount     browser.Target `mapstructure:"sub_account" yaml:"sub_account"`
	ParentSearch   browser.Target `mapstructure:"parent_search" yaml:"parent_search"`
	AutoCodeToggle browser.Target `mapstructure:"auto_code_toggle" yaml:"auto_code_toggle"`
}

// LoggingConfig controls log level, format and the optional rotated file.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// MetricsConfig enables the textfile and Pushgateway sinks.
type MetricsConfig struct {
	Textfile       string `mapstructure:"textfile" yaml:"textfile"`
	PushgatewayURL string `mapstructure:"pushgateway_url" yaml:"pushgateway_url"`
	Job            string `mapstructure:"job" yaml:"job"`
}

// ScheduleConfig drives the schedule command.
type ScheduleConfig struct {
	Cron    string        `mapstructure:"cron" yaml:"cron"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// FixtureConfig configures the fixture command.
type FixtureConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// RunConfig controls process exit behaviour.
type RunConfig struct {
	StrictExit bool `mapstructure:"strict_exit" yaml:"strict_exit"`
}

// Loader owns the viper instance and the current configuration snapshot.
type Loader struct {
	v   *viper.Viper
	mu  sync.RWMutex
	cfg *Config
}

// Load reads configuration from configFile, or searches for uiverify.yaml in
// the working directory and ./config when configFile is empty.
func Load(configFile string) (*Loader, error) {
	loadDotEnv(".env")

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("uiverify")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return &Loader{v: v, cfg: cfg}, nil
}

// Get returns the current configuration (thread-safe)
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// ConfigFile reports the file the loader read, or "" when running on defaults.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Watch reloads the configuration whenever the backing file changes.
// Invalid revisions are reported through onError and the previous snapshot is kept.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		newCfg, err := decode(l.v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		l.mu.Lock()
		l.cfg = newCfg
		l.mu.Unlock()
		if onChange != nil {
			onChange(newCfg)
		}
	})
	l.v.WatchConfig()
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	resolveLocators(v, &cfg.Locators)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the runner cannot work with.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.App.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("app.base_url %q must be an absolute URL", c.App.BaseURL))
	}
	for key, p := range map[string]string{
		"app.login_path":   c.App.LoginPath,
		"app.landing_path": c.App.LandingPath,
		"app.feature_path": c.App.FeaturePath,
	} {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("%s %q must start with /", key, p))
		}
	}
	if c.Credentials.Email == "" || c.Credentials.Password == "" {
		errs = append(errs, errors.New("credentials.email and credentials.password are required"))
	}
	if c.Artifacts.SuccessPath == "" || c.Artifacts.FailurePath == "" {
		errs = append(errs, errors.New("artifacts.success_path and artifacts.failure_path are required"))
	} else if c.Artifacts.SuccessPath == c.Artifacts.FailurePath {
		errs = append(errs, errors.New("artifacts.success_path and artifacts.failure_path must differ"))
	}
	for key, d := range map[string]time.Duration{
		"timeouts.default":    c.Timeouts.Default,
		"timeouts.navigation": c.Timeouts.Navigation,
		"timeouts.element":    c.Timeouts.Element,
		"timeouts.assertion":  c.Timeouts.Assertion,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}
	if c.Timeouts.Settle < 0 {
		errs = append(errs, errors.New("timeouts.settle must not be negative"))
	}
	switch c.Browser.Driver {
	case browser.DriverPlaywright, browser.DriverChromedp:
	default:
		errs = append(errs, fmt.Errorf("browser.driver %q is not one of %s, %s",
			c.Browser.Driver, browser.DriverPlaywright, browser.DriverChromedp))
	}
	for name, t := range c.Locators.All() {
		if err := t.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("locators.%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// All returns every locator keyed by its config name.
func (l LocatorsConfig) All() map[string]browser.Target {
	return map[string]browser.Target{
		"email":            l.Email,
		"password":         l.Password,
		"submit":           l.Submit,
		"table":            l.Table,
		"column_header":    l.ColumnHeader,
		"new_record":       l.NewRecord,
		"form_section":     l.FormSection,
		"sub_account":      l.SubAccount,
		"parent_search":    l.ParentSearch,
		"auto_code_toggle": l.AutoCodeToggle,
	}
}

// strategyKeys are the locator fields that select how an element is found.
var strategyKeys = []string{"test_id", "role", "label", "placeholder", "css"}

// resolveLocators lets a locator configured in the file or environment
// replace its default: once any strategy key is set explicitly, strategies
// that only come from defaults are cleared.
func resolveLocators(v *viper.Viper, l *LocatorsConfig) {
	for name, t := range l.refs() {
		prefix := "locators." + name + "."
		set := make(map[string]bool, len(strategyKeys))
		explicit := false
		for _, k := range strategyKeys {
			set[k] = isExplicit(v, prefix+k)
			explicit = explicit || set[k]
		}
		if !explicit {
			continue
		}
		if !set["test_id"] {
			t.TestID = ""
		}
		if !set["role"] {
			t.Role = ""
			if !isExplicit(v, prefix+"name") {
				t.Name = ""
			}
		}
		if !set["label"] {
			t.Label = ""
		}
		if !set["placeholder"] {
			t.Placeholder = ""
		}
		if !set["css"] {
			t.CSS = ""
		}
	}
}

// isExplicit reports whether key comes from the config file or a UIVERIFY_*
// variable rather than from setDefaults.
func isExplicit(v *viper.Viper, key string) bool {
	if v.InConfig(key) {
		return true
	}
	env := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	_, ok := os.LookupEnv(env)
	return ok
}

func (l *LocatorsConfig) refs() map[string]*browser.Target {
	return map[string]*browser.Target{
		"email":            &l.Email,
		"password":         &l.Password,
		"submit":           &l.Submit,
		"table":            &l.Table,
		"column_header":    &l.ColumnHeader,
		"new_record":       &l.NewRecord,
		"form_section":     &l.FormSection,
		"sub_account":      &l.SubAccount,
		"parent_search":    &l.ParentSearch,
		"auto_code_toggle": &l.AutoCodeToggle,
	}
}

// URL joins the base URL with an application path.
func (a AppConfig) URL(path string) string {
	return strings.TrimRight(a.BaseURL, "/") + path
}

// Redacted returns a copy that is safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Credentials.Password != "" {
		out.Credentials.Password = "********"
	}
	return &out
}

// BrowserOptions maps the browser and timeout sections onto driver options.
func (c *Config) BrowserOptions() browser.Options {
	return browser.Options{
		Driver:         c.Browser.Driver,
		Headless:       c.Browser.Headless,
		SlowMo:         time.Duration(c.Browser.SlowMo) * time.Millisecond,
		ViewportWidth:  c.Browser.ViewportWidth,
		ViewportHeight: c.Browser.ViewportHeight,
		DefaultTimeout: c.Timeouts.Default,
		Install:        c.Browser.Install,
		Args:           c.Browser.Args,
	}
}
