package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/xplshn/gasm/pkg/cli"
)

type Feature int

const (
	FeatCEsc Feature = iota
	FeatDollarHex
	FeatSlashComments
	FeatRewrite
	FeatCount
)

type Warning int

const (
	WarnShadow Warning = iota
	WarnOverflow
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

const (
	DefaultBlockSize = 32768
	DefaultMaxDepth  = 64
)

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning
	// BlockSize is the capacity of each symbol arena block.
	BlockSize int
	// MaxBlocks caps the arena chain; 0 means unlimited.
	MaxBlocks int
	// MaxDepth bounds expression nesting.
	MaxDepth int
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		BlockSize:  DefaultBlockSize,
		MaxDepth:   DefaultMaxDepth,
	}

	features := map[Feature]Info{
		FeatCEsc:          {"c-esc", true, "Recognize C-style '\\' escapes in quoted literals."},
		FeatDollarHex:     {"dollar-hex", true, "Read '$FF' as a hexadecimal number."},
		FeatSlashComments: {"slash-comments", true, "Recognize '//' and '/* */' comments."},
		FeatRewrite:       {"rewrite", false, "Redefine existing labels in place instead of reporting duplicates (testing aid)."},
	}

	warnings := map[Warning]Info{
		WarnShadow:   {"shadow", true, "Warn when a local label hides a global one."},
		WarnOverflow: {"overflow", true, "Warn when a value does not fit its data width."},
		WarnExtra:    {"extra", false, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ApplyFlag handles a single -W<name>, -Wno-<name>, -F<name> or -Fno-<name>
// switch. -Wall toggles every warning at once.
func (c *Config) ApplyFlag(flag string) error {
	trimmed := strings.TrimPrefix(flag, "-")
	var isWarning bool
	switch {
	case strings.HasPrefix(trimmed, "W"):
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
	default:
		return fmt.Errorf("unrecognized flag '%s'", flag)
	}

	name := trimmed[1:]
	enable := !strings.HasPrefix(name, "no-")
	name = strings.TrimPrefix(name, "no-")

	if isWarning && name == "all" {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return nil
	}

	if isWarning {
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s'", name)
		}
		c.SetWarning(w, enable)
		return nil
	}
	f, ok := c.FeatureMap[name]
	if !ok {
		return fmt.Errorf("unknown feature '%s'", name)
	}
	c.SetFeature(f, enable)
	return nil
}

// ApplyFlags applies every flag in order; -Wall/-Wno-all go first so that
// individual switches can override them.
func (c *Config) ApplyFlags(flags []string) error {
	for _, f := range flags {
		if f == "-Wall" || f == "-Wno-all" {
			if err := c.ApplyFlag(f); err != nil {
				return err
			}
		}
	}
	for _, f := range flags {
		if f == "-Wall" || f == "-Wno-all" {
			continue
		}
		if err := c.ApplyFlag(f); err != nil {
			return err
		}
	}
	return nil
}

// FlagGroup holds the enable/disable switches registered for one group.
type FlagGroup struct {
	Warnings []cli.FlagGroupEntry
	Features []cli.FlagGroupEntry
}

// SetupFlagGroups registers the -W and -F switches on fs. The returned
// entries are indexed by Warning and Feature.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) *FlagGroup {
	g := &FlagGroup{
		Warnings: make([]cli.FlagGroupEntry, WarnCount),
		Features: make([]cli.FlagGroupEntry, FeatCount),
	}
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		g.Warnings[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "W", Usage: info.Description,
			Enabled: new(bool), Disabled: new(bool),
		}
	}
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		g.Features[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "F", Usage: info.Description,
			Enabled: new(bool), Disabled: new(bool),
		}
	}
	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning", "Available Warnings:", g.Warnings)
	fs.AddFlagGroup("Feature Flags", "Enable or disable specific features", "feature", "Available Features:", g.Features)
	return g
}

// Apply copies the switches set on the command line into c.
func (g *FlagGroup) Apply(c *Config) {
	for i, entry := range g.Warnings {
		if *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range g.Features {
		if *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}

// PrintFeatures lists every feature and warning with its current state.
func (c *Config) PrintFeatures(w io.Writer) {
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		fmt.Fprintf(w, "  - F%-16s: %v (%s)\n", info.Name, info.Enabled, info.Description)
	}
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		fmt.Fprintf(w, "  - W%-16s: %v (%s)\n", info.Name, info.Enabled, info.Description)
	}
}
