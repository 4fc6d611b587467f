package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/vburojevic/dedicated/internal/config"
)

// ConfigCmd groups configuration inspection commands
type ConfigCmd struct {
	Show ConfigShowCmd `cmd:"" default:"1" help:"Show the effective configuration"`
	Path ConfigPathCmd `cmd:"" help:"Show which configuration file is in use"`
}

// ConfigShowCmd prints the effective configuration after flags are applied
type ConfigShowCmd struct{}

// configOutput is the NDJSON shape of the effective configuration.
type configOutput struct {
	Type         string   `json:"type"`
	Format       string   `json:"format"`
	Level        string   `json:"level"`
	NoColor      bool     `json:"nocolor"`
	ContentDirs  []string `json:"content_dirs"`
	CacheDB      string   `json:"cache_db"`
	ReplayDir    string   `json:"replay_dir"`
	PollInterval string   `json:"poll_interval"`
	MaxReadyWait string   `json:"max_ready_wait"`
	Connect      string   `json:"connect_timeout"`
}

// Run executes the config show command
func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.Config
	if globals.Format == "json" {
		return json.NewEncoder(globals.Stdout).Encode(configOutput{
			Type:         "config",
			Format:       cfg.Format,
			Level:        cfg.Level,
			NoColor:      cfg.NoColor,
			ContentDirs:  cfg.ContentDirs(),
			CacheDB:      cfg.CachePath(),
			ReplayDir:    cfg.ReplayPath(),
			PollInterval: cfg.Supervisor.PollInterval.String(),
			MaxReadyWait: cfg.Supervisor.MaxReadyWait.String(),
			Connect:      cfg.Engine.ConnectTimeout.String(),
		})
	}

	w := globals.Stdout
	fmt.Fprintln(w, "Current Configuration:")
	fmt.Fprintf(w, "  format:   %s\n", cfg.Format)
	fmt.Fprintf(w, "  level:    %s\n", cfg.Level)
	fmt.Fprintf(w, "  nocolor:  %v\n", cfg.NoColor)
	fmt.Fprintln(w, "Content:")
	for _, dir := range cfg.ContentDirs() {
		fmt.Fprintf(w, "  data dir: %s\n", dir)
	}
	cacheDB := cfg.CachePath()
	if cacheDB == "" {
		cacheDB = "(disabled)"
	}
	fmt.Fprintf(w, "  cache db: %s\n", cacheDB)
	fmt.Fprintf(w, "  replays:  %s\n", cfg.ReplayPath())
	fmt.Fprintln(w, "Session:")
	fmt.Fprintf(w, "  poll interval:   %s\n", cfg.Supervisor.PollInterval)
	fmt.Fprintf(w, "  max ready wait:  %s\n", cfg.Supervisor.MaxReadyWait)
	fmt.Fprintf(w, "  connect timeout: %s\n", cfg.Engine.ConnectTimeout)
	return nil
}

// ConfigPathCmd shows the config file path
type ConfigPathCmd struct{}

// Run executes the config path command
func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := config.ConfigFile()
	if globals.Format == "json" {
		return json.NewEncoder(globals.Stdout).Encode(map[string]interface{}{
			"type":  "config_path",
			"path":  path,
			"found": path != "",
		})
	}
	if path == "" {
		fmt.Fprintln(globals.Stdout, "No configuration file found")
		return nil
	}
	fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	return nil
}

// ListConfigVarsCmd lists every configuration key
type ListConfigVarsCmd struct{}

// configVarOutput is one NDJSON line of list-config-vars.
type configVarOutput struct {
	Type        string      `json:"type"`
	Key         string      `json:"key"`
	Env         string      `json:"env"`
	Default     interface{} `json:"default"`
	Description string      `json:"description"`
}

// Run executes the list-config-vars command
func (c *ListConfigVarsCmd) Run(globals *Globals) error {
	vars := config.Vars()
	if globals.Format == "json" {
		enc := json.NewEncoder(globals.Stdout)
		for _, v := range vars {
			if err := enc.Encode(configVarOutput{
				Type:        "config_var",
				Key:         v.Key,
				Env:         v.Env,
				Default:     jsonDefault(v.Default),
				Description: v.Description,
			}); err != nil {
				return err
			}
		}
		return nil
	}

	rows := lo.Map(vars, func(v config.Var, _ int) []string {
		return []string{v.Key, v.Env, formatDefault(v.Default), v.Description}
	})
	table := tablewriter.NewWriter(globals.Stdout)
	table.Header("KEY", "ENV", "DEFAULT", "DESCRIPTION")
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// jsonDefault renders durations the way config files spell them.
func jsonDefault(v interface{}) interface{} {
	if d, ok := v.(time.Duration); ok {
		return d.String()
	}
	return v
}

func formatDefault(v interface{}) string {
	switch d := v.(type) {
	case nil:
		return ""
	case string:
		return d
	case []string:
		if len(d) == 0 {
			return ""
		}
		return fmt.Sprint(d)
	default:
		return fmt.Sprint(d)
	}
}
