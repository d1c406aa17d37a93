// Portd - HTTP API daemon for fabric switch-port configuration
//
// Serves the same change pipeline as the portctl CLI over a REST API, for
// automation systems that open tickets instead of shells. Configuration is
// read from /etc/portd/portd.yaml (overridable with PORTD_CONFIG), with
// every key also settable through PORTD_* environment variables.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fabricfleet/portctl/pkg/api"
	"github.com/fabricfleet/portctl/pkg/audit"
	"github.com/fabricfleet/portctl/pkg/authz"
	"github.com/fabricfleet/portctl/pkg/change"
	"github.com/fabricfleet/portctl/pkg/device"
	"github.com/fabricfleet/portctl/pkg/fleet"
	"github.com/fabricfleet/portctl/pkg/inventory"
	"github.com/fabricfleet/portctl/pkg/orchestrator"
	"github.com/fabricfleet/portctl/pkg/precheck"
	"github.com/fabricfleet/portctl/pkg/store"
	"github.com/fabricfleet/portctl/pkg/util"
	"github.com/fabricfleet/portctl/pkg/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	v := viper.New()
	v.SetDefault("listen", ":8080")
	v.SetDefault("inventory", "/etc/portd/hosts.yaml")
	v.SetDefault("store", "/var/lib/portd/commits")
	v.SetDefault("audit_log", "/var/lib/portd/audit.log")
	v.SetDefault("concurrency", fleet.DefaultConcurrency)
	v.SetDefault("device_timeout", fleet.DefaultPerDeviceTimeout)
	v.SetDefault("precheck_timeout", 30*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", true)

	v.SetEnvPrefix("PORTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfg := os.Getenv("PORTD_CONFIG"); cfg != "" {
		v.SetConfigFile(cfg)
	} else {
		v.SetConfigName("portd")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/portd")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
		// No config file is fine, defaults and env vars carry the daemon.
	}

	if err := util.SetLogLevel(v.GetString("log_level")); err != nil {
		return err
	}
	if v.GetBool("log_json") {
		util.SetJSONFormat()
	}

	inv, err := inventory.NewFileSource(v.GetString("inventory"))
	if err != nil {
		return err
	}
	commits, err := store.Open(v.GetString("store"))
	if err != nil {
		return err
	}
	eventLog, err := audit.NewFileLogger(v.GetString("audit_log"))
	if err != nil {
		return err
	}
	audit.SetDefaultLogger(eventLog)
	defer eventLog.Close()

	exec := device.NewDispatcher(inv)
	orch := orchestrator.New(
		precheck.NewEngine(exec, v.GetDuration("precheck_timeout")),
		change.NewCommandRenderer(),
		commits,
		fleet.NewExecutor(exec, v.GetInt("concurrency"), v.GetDuration("device_timeout")),
	)

	handler := api.NewHandler(orch, inv)
	if policyPath := v.GetString("policy"); policyPath != "" {
		policy, err := authz.LoadPolicy(policyPath)
		if err != nil {
			return err
		}
		handler.UseAuthz(authz.NewChecker(policy))
		util.Infof("authorization policy loaded from %s", policyPath)
	}

	addr := v.GetString("listen")
	util.Infof("portd %s listening on %s", version.Info(), addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
