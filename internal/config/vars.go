package config

import (
	"sort"
	"strings"
)

// Var describes one configuration key.
type Var struct {
	Key         string
	Default     interface{}
	Env         string
	Description string
}

// Vars lists every configuration key with its default and environment variable, sorted by key.
func Vars() []Var {
	d := Default()
	vars := []Var{
		{Key: "format", Default: d.Format, Description: "Log encoding: console or json"},
		{Key: "level", Default: d.Level, Description: "Minimum log level: debug, info, warn, error"},
		{Key: "nocolor", Default: d.NoColor, Description: "Disable colorized console logs"},
		{Key: "data_dir", Default: d.DataDir, Description: "Primary data directory holding maps/ and games/"},
		{Key: "data_dirs", Default: d.DataDirs, Description: "Additional read-only data directories"},
		{Key: "isolation", Default: d.Isolation, Description: "Limit content scanning to data_dir"},
		{Key: "isolation_dir", Default: d.IsolationDir, Description: "Limit content scanning to this directory"},
		{Key: "cache_db", Default: d.CacheDB, Description: "Checksum cache database (off to disable)"},
		{Key: "replay_dir", Default: d.ReplayDir, Description: "Directory for replay artifacts"},
		{Key: "supervisor.poll_interval", Default: d.Supervisor.PollInterval, Description: "Pause between session status polls"},
		{Key: "supervisor.max_ready_wait", Default: d.Supervisor.MaxReadyWait, Description: "Give up waiting for readiness after this long (0 = never)"},
		{Key: "engine.connect_timeout", Default: d.Engine.ConnectTimeout, Description: "Abort a session nobody joined within this long (0 = never)"},
	}
	for i := range vars {
		vars[i].Env = EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(vars[i].Key))
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Key < vars[j].Key })
	return vars
}
