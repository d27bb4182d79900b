package main

import (
	"fmt"
	"strings"

	"github.com/mkrol/marginalia"
)

// Run executes the config command.
func (c *ConfigCmd) Run(deps *Dependencies) error {
	if c.Init {
		if err := deps.Configs.Save(deps.Config); err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", marginalia.ErrorMessage(err))
			return err
		}
		fmt.Fprintf(deps.Stdout, "Wrote %s\n", deps.Configs.Path())
		return nil
	}

	cfg := deps.Config

	token := "not set"
	if cfg.APIToken != "" {
		token = "set"
	}
	tmpl := "default"
	if cfg.TemplateConfigured() {
		tmpl = "custom"
	}
	lastSync := "never"
	if !cfg.LastSync.IsZero() {
		lastSync = cfg.LastSync.Format("2006-01-02 15:04:05 MST")
	}

	fmt.Fprintf(deps.Stdout, "config:    %s\n", deps.Configs.Path())
	fmt.Fprintf(deps.Stdout, "api_base:  %s\n", cfg.APIBase)
	fmt.Fprintf(deps.Stdout, "api_token: %s\n", token)
	fmt.Fprintf(deps.Stdout, "username:  %s\n", cfg.Username)
	fmt.Fprintf(deps.Stdout, "groups:    %s\n", strings.Join(cfg.Groups, ", "))
	fmt.Fprintf(deps.Stdout, "db_path:   %s\n", cfg.DBPath)
	fmt.Fprintf(deps.Stdout, "template:  %s\n", tmpl)
	fmt.Fprintf(deps.Stdout, "last_sync: %s\n", lastSync)
	return nil
}
