// Package config provides a go-simpler.org/env configuration table and
// helpers for working with the list of key/value pairs a participant
// process is configured from, following the teacher's app/config pattern.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"go-simpler.org/env"
	lol "lol.mleku.dev"
	"lol.mleku.dev/chk"
)

// C holds a participant process's configuration, loaded from environment
// variables and defaults.
type C struct {
	AppName       string `env:"DDSCORE_APP_NAME" usage:"name to display in log lines" default:"ddscore"`
	ConfigDir     string `env:"DDSCORE_CONFIG_DIR" usage:"directory for any on-disk state" default:"~/.config/ddscore"`
	DomainID      uint32 `env:"DDSCORE_DOMAIN_ID" default:"0" usage:"DDS domain id; selects the SPDP/SEDP port range"`
	ParticipantID uint32 `env:"DDSCORE_PARTICIPANT_ID" default:"0" usage:"participant index on this host; spreads the unicast discovery/user ports"`
	LogLevel      string `env:"DDSCORE_LOG_LEVEL" default:"info" usage:"log level: fatal error warn info debug trace"`
	LogToStdout   bool   `env:"DDSCORE_LOG_TO_STDOUT" default:"false" usage:"log to stdout instead of stderr"`
	Pprof         string `env:"DDSCORE_PPROF" usage:"enable pprof in modes: cpu,memory,allocation"`
	HeartbeatTick string `env:"DDSCORE_HEARTBEAT_TICK" default:"200ms" usage:"how often the event loop checks writer heartbeat deadlines"`
}

// New loads configuration from the environment, applying xdg defaults the
// way the teacher's config.New resolves DataDir.
func New() (cfg *C, err error) {
	cfg = &C{}
	if err = env.Load(cfg, &env.Options{SliceSep: ","}); chk.T(err) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n\n", err)
		}
		PrintHelp(cfg, os.Stderr)
		os.Exit(0)
	}
	if cfg.ConfigDir == "" || strings.Contains(cfg.ConfigDir, "~") {
		cfg.ConfigDir = filepath.Join(xdg.ConfigHome, cfg.AppName)
	}
	if HelpRequested() {
		PrintHelp(cfg, os.Stderr)
		os.Exit(0)
	}
	if cfg.LogToStdout {
		lol.Writer = os.Stdout
	}
	lol.SetLogLevel(cfg.LogLevel)
	return
}

// HeartbeatTickDuration parses HeartbeatTick, falling back to the eventloop
// package's own default on a malformed value.
func (c *C) HeartbeatTickDuration(fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(c.HeartbeatTick)
	if err != nil {
		return fallback
	}
	return d
}

// HelpRequested reports whether the first CLI argument requests help.
func HelpRequested() (help bool) {
	if len(os.Args) > 1 {
		switch strings.ToLower(os.Args[1]) {
		case "help", "-h", "--h", "-help", "--help", "?":
			help = true
		}
	}
	return
}

// KV is a key/value pair.
type KV struct{ Key, Value string }

// KVSlice is a sortable slice of key/value pairs.
type KVSlice []KV

func (kv KVSlice) Len() int           { return len(kv) }
func (kv KVSlice) Less(i, j int) bool { return kv[i].Key < kv[j].Key }
func (kv KVSlice) Swap(i, j int)      { kv[i], kv[j] = kv[j], kv[i] }

// EnvKV extracts key/value pairs from cfg's env struct tags.
func EnvKV(cfg any) (m KVSlice) {
	t := reflect.TypeOf(cfg)
	for i := 0; i < t.NumField(); i++ {
		k := t.Field(i).Tag.Get("env")
		if k == "" {
			continue
		}
		v := reflect.ValueOf(cfg).Field(i).Interface()
		var val string
		switch vv := v.(type) {
		case string:
			val = vv
		case int, int32, uint32, bool, time.Duration:
			val = fmt.Sprint(vv)
		case []string:
			if len(vv) > 0 {
				val = strings.Join(vv, ",")
			}
		}
		m = append(m, KV{k, val})
	}
	return
}

// PrintEnv writes cfg's env vars, sorted, as key=value lines.
func PrintEnv(cfg *C, w io.Writer) {
	kvs := EnvKV(*cfg)
	sort.Sort(kvs)
	for _, kv := range kvs {
		fmt.Fprintf(w, "%s=%s\n", kv.Key, kv.Value)
	}
}

// PrintHelp writes usage text plus the current configuration to w.
func PrintHelp(cfg *C, w io.Writer) {
	fmt.Fprintf(w, "%s\n\n", cfg.AppName)
	fmt.Fprintf(w, "Usage: %s [help]\n\nEnvironment variables:\n\n", cfg.AppName)
	env.Usage(cfg, w, &env.Options{SliceSep: ","})
	fmt.Fprintf(w, "\ncurrent configuration:\n\n")
	PrintEnv(cfg, w)
	fmt.Fprintln(w)
}
