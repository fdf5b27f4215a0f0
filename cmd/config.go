package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc locates ~/.config/sos; tests point it at a temp dir.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "sos"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage sos configuration.

Running bare 'sos config' is the same as 'sos config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration and where each value comes from",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# sos configuration
# See: sos config show (for effective values and sources)

# State/data directory (default: ~/.config/sos)
# state_dir: {{ .StateDir }}

# SQLite incident archive (default: ~/.config/sos/sos.db)
# db_path: {{ .DBPath }}

archive:
  # Record resolved incidents in db_path (default: true)
  enabled: {{ .ArchiveEnabled }}

location:
  # Location provider: "static" or "none"
  provider: "{{ .LocationProvider }}"
  # Fix reported by the static provider
  latitude: {{ .Latitude }}
  longitude: {{ .Longitude }}
  # How long a location request may take (default: 15s)
  timeout: "{{ .LocationTimeout }}"
  # Request a fix as soon as an emergency starts (default: true)
  auto_request: {{ .AutoRequest }}

classifier:
  # "keyword" or "llm" (llm falls back to keywords on failure)
  strategy: "{{ .Strategy }}"
  # Optional TOML file extending the built-in keyword lists
  keywords_file: "{{ .KeywordsFile }}"

anthropic:
  # API key for the llm strategy (or set ANTHROPIC_API_KEY)
  api_key: ""
  model: "{{ .AnthropicModel }}"

voice:
  # Canned transcript returned by the stub voice recognizer
  transcript: "{{ .VoiceTranscript }}"

# API server port for 'sos serve'
port: {{ .Port }}

log:
  # debug, info, warn or error
  level: "{{ .LogLevel }}"
  development: {{ .LogDevelopment }}
`

type configTemplateData struct {
	StateDir         string
	DBPath           string
	ArchiveEnabled   bool
	LocationProvider string
	Latitude         float64
	Longitude        float64
	LocationTimeout  string
	AutoRequest      bool
	Strategy         string
	KeywordsFile     string
	AnthropicModel   string
	VoiceTranscript  string
	Port             int
	LogLevel         string
	LogDevelopment   bool
}

func configFilePath() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func renderConfigTemplate() ([]byte, error) {
	data := configTemplateData{
		StateDir:         viper.GetString("state_dir"),
		DBPath:           viper.GetString("db_path"),
		ArchiveEnabled:   viper.GetBool("archive.enabled"),
		LocationProvider: viper.GetString("location.provider"),
		Latitude:         viper.GetFloat64("location.latitude"),
		Longitude:        viper.GetFloat64("location.longitude"),
		LocationTimeout:  viper.GetDuration("location.timeout").String(),
		AutoRequest:      viper.GetBool("location.auto_request"),
		Strategy:         viper.GetString("classifier.strategy"),
		KeywordsFile:     viper.GetString("classifier.keywords_file"),
		AnthropicModel:   viper.GetString("anthropic.model"),
		VoiceTranscript:  viper.GetString("voice.transcript"),
		Port:             viper.GetInt("port"),
		LogLevel:         viper.GetString("log.level"),
		LogDevelopment:   viper.GetBool("log.development"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse config template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render config template: %w", err)
	}
	return buf.Bytes(), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting %s", cfgPath)
	}

	content, err := renderConfigTemplate()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	// The file may hold an API key.
	if err := os.WriteFile(cfgPath, content, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	ui.VerboseLog("\n%s", content)
	return nil
}

// configKeys lists the keys shown by `sos config show`, in display order.
var configKeys = []string{
	"state_dir",
	"db_path",
	"archive.enabled",
	"location.provider",
	"location.latitude",
	"location.longitude",
	"location.timeout",
	"location.auto_request",
	"classifier.strategy",
	"classifier.keywords_file",
	"anthropic.api_key",
	"anthropic.model",
	"voice.transcript",
	"port",
	"log.level",
	"log.development",
}

// secretKeys are masked in `sos config show`.
var secretKeys = map[string]bool{"anthropic.api_key": true}

// envVarFor mirrors viper's SOS prefix and "." -> "_" key replacer.
func envVarFor(key string) string {
	return "SOS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	fileValues := map[string]bool{}
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
		fileValues = readConfigFileValues(cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}

	table := ui.Table([]string{"Key", "Value", "Source"})
	for _, key := range configKeys {
		val := fmt.Sprint(viper.Get(key))
		if secretKeys[key] && viper.GetString(key) != "" {
			val = "********"
		}
		_ = table.Append([]string{key, val, detectSource(key, envVarFor(key), fileValues)})
	}
	return table.Render()
}

// readConfigFileValues returns the dotted keys set in the YAML file.
func readConfigFileValues(path string) map[string]bool {
	keys := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return keys
	}
	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return keys
	}
	flattenKeys("", parsed, keys)
	return keys
}

func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(key, nested, result)
			continue
		}
		result[key] = true
	}
}

// detectSource reports env over file over default, matching viper's precedence.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	switch {
	case os.Getenv(envVar) != "":
		return fmt.Sprintf("(env: %s)", envVar)
	case fileValues[key]:
		return "(file)"
	default:
		return "(default)"
	}
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set, e.g. export EDITOR=vim")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'sos config init' first)", cfgPath)
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
