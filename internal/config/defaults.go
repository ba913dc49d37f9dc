package config

import (
	"time"

	"github.com/spf13/viper"
)

// Defaults reproduce the local development setup of the ERP dashboard.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.base_url", "http://localhost:3000")
	v.SetDefault("app.login_path", "/login")
	v.SetDefault("app.landing_path", "/dashboard")
	v.SetDefault("app.feature_path", "/dashboard/masters/akun-perkiraan")
	v.SetDefault("app.feature_name", "Akun Perkiraan")

	v.SetDefault("credentials.email", "admin@erp-adi.com")
	v.SetDefault("credentials.password", "admin123")

	v.SetDefault("artifacts.success_path", "verification/account_form.png")
	v.SetDefault("artifacts.failure_path", "verification/error.png")

	v.SetDefault("timeouts.default", 30*time.Second)
	v.SetDefault("timeouts.navigation", 30*time.Second)
	v.SetDefault("timeouts.element", 10*time.Second)
	v.SetDefault("timeouts.assertion", 5*time.Second)
	v.SetDefault("timeouts.settle", time.Second)

	v.SetDefault("browser.driver", "playwright")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.slow_mo", 0)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 720)
	v.SetDefault("browser.install", true)
	v.SetDefault("browser.args", []string{})

	locator := func(name string, fields map[string]any) {
		for k, val := range fields {
			v.SetDefault("locators."+name+"."+k, val)
		}
		// Unset strategies still need a key so env overrides can reach them.
		for _, k := range []string{"role", "name", "label", "placeholder", "test_id", "css", "exact"} {
			if _, ok := fields[k]; !ok {
				if k == "exact" {
					v.SetDefault("locators."+name+"."+k, false)
				} else {
					v.SetDefault("locators."+name+"."+k, "")
				}
			}
		}
	}
	locator("email", map[string]any{"css": "input[type=email]"})
	locator("password", map[string]any{"css": "input[type=password]"})
	locator("submit", map[string]any{"role": "button", "name": "Masuk"})
	locator("table", map[string]any{"css": "table"})
	locator("column_header", map[string]any{"role": "columnheader", "name": "Kode Perkiraan"})
	locator("new_record", map[string]any{"test_id": "new-record"})
	locator("form_section", map[string]any{"role": "button", "name": "Informasi Umum"})
	locator("sub_account", map[string]any{"label": "Sub Akun", "exact": true})
	locator("parent_search", map[string]any{"placeholder": "Cari/Pilih Akun Induk..."})
	locator("auto_code_toggle", map[string]any{"label": "Pengkodean otomatis dengan prefix kode akun induk"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", false)

	v.SetDefault("metrics.textfile", "")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "uiverify")

	v.SetDefault("schedule.cron", "0 */15 * * * *")
	v.SetDefault("schedule.timeout", 5*time.Minute)

	v.SetDefault("fixture.addr", "127.0.0.1:3000")

	v.SetDefault("run.strict_exit", false)
}
