package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

const DefaultConfigFile = "oasplit.yaml"

type Config struct {
	Spec            string   `koanf:"spec"`
	OutputDir       string   `koanf:"output-dir"`
	Format          string   `koanf:"format"`
	Indent          int      `koanf:"indent"`
	Placement       string   `koanf:"placement"`
	ResponseNames   []string `koanf:"response-names"`
	AlwaysInclude   []string `koanf:"always-include"`
	ExpandResponses bool     `koanf:"expand-responses"`
	ContinueOnError bool     `koanf:"continue-on-error"`
	Verify          bool     `koanf:"verify"`
}

func defaults() map[string]any {
	return map[string]any{
		"spec":           "./example.yaml",
		"output-dir":     "./generated",
		"format":         "auto",
		"indent":         2,
		"placement":      "membership",
		"response-names": []string{"BadRequestResponse", "UnauthorizedAccessResponse", "InternalServerErrorResponse"},
		"always-include": []string{"Error"},
	}
}

// BindFlags binds the flags shared by every command that reads a spec.
func BindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.StringP("config", "c", "", "Config file path (default: oasplit.yaml)")
	flags.StringP("spec", "s", "", "OpenAPI spec file path (default: ./example.yaml)")
	flags.StringP("output-dir", "o", "", "Output root directory (default: ./generated)")
	flags.String("format", "", "Output format: auto, yaml, json")
	flags.Int("indent", 0, "Indentation width of output documents")
	flags.String("placement", "", "Component placement: membership, fixed")
	flags.StringSlice("response-names", nil, "Names routed to components.responses with --placement=fixed")
	flags.StringSlice("always-include", nil, "Schemas included in every output")
	flags.Bool("expand-responses", false, "Follow references inside response definitions")
	flags.Bool("continue-on-error", false, "Report failed paths and keep going")
	flags.Bool("verify", false, "Check every output document with libopenapi")
	flags.Bool("dry-run", false, "Print output without writing files")
}

// Load layers defaults, the config file and flags, in that order. A
// positional spec argument beats all of them.
func Load(cmd *cobra.Command, args []string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			configFile = DefaultConfigFile
		}
	}

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	flagsMap := buildFlagsMap(cmd)
	if len(args) > 0 && args[0] != "" {
		flagsMap["spec"] = args[0]
	}
	if len(flagsMap) > 0 {
		if err := k.Load(confmap.Provider(flagsMap, "."), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func buildFlagsMap(cmd *cobra.Command) map[string]any {
	m := make(map[string]any)
	flags := cmd.Flags()

	for _, name := range []string{"spec", "output-dir", "format", "placement"} {
		if v, err := flags.GetString(name); err == nil && v != "" {
			m[name] = v
		}
	}
	for _, name := range []string{"response-names", "always-include"} {
		if flags.Changed(name) {
			v, _ := flags.GetStringSlice(name)
			m[name] = v
		}
	}
	for _, name := range []string{"expand-responses", "continue-on-error", "verify"} {
		if flags.Changed(name) {
			v, _ := flags.GetBool(name)
			m[name] = v
		}
	}
	if flags.Changed("indent") {
		v, _ := flags.GetInt("indent")
		m["indent"] = v
	}

	return m
}

func (c *Config) Validate() error {
	if c.Spec == "" {
		return fmt.Errorf("spec file is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}

	validFormats := map[string]bool{"": true, "auto": true, "yaml": true, "json": true}
	if !validFormats[c.Format] {
		return fmt.Errorf("invalid format: %s (valid: auto, yaml, json)", c.Format)
	}

	validPlacements := map[string]bool{"": true, "membership": true, "fixed": true}
	if !validPlacements[c.Placement] {
		return fmt.Errorf("invalid placement: %s (valid: membership, fixed)", c.Placement)
	}

	if c.Indent < 0 || c.Indent > 8 {
		return fmt.Errorf("invalid indent: %d (valid: 0-8)", c.Indent)
	}

	return nil
}
