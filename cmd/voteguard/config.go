package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/voteguard/voteguard-node/internal"
)

const (
	defaultAPIHost   = "0.0.0.0"
	defaultAPIPort   = 9090
	defaultLogLevel  = "info"
	defaultLogOutput = "stdout"
	defaultDatadir   = ".voteguard" // Will be prefixed with user's home directory
)

// Version is the build version, set at build time with -ldflags
var Version = internal.Version

// Config holds the application configuration
type Config struct {
	API      APIConfig
	Log      LogConfig
	Guardian GuardianConfig
	Election ElectionConfig
	Keystore KeystoreConfig
	Datadir  string
}

// APIConfig holds the API-specific configuration
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// GuardianConfig identifies this node's guardian role.
type GuardianConfig struct {
	Index   uint32 `mapstructure:"index"`
	Account string `mapstructure:"account"`
}

// ElectionConfig points to the canonical JSON artifacts of the election.
type ElectionConfig struct {
	ManifestPath   string `mapstructure:"manifest"`
	ParametersPath string `mapstructure:"parameters"`
}

// KeystoreConfig holds the local secret store unlock settings.
type KeystoreConfig struct {
	Password string `mapstructure:"password"`
}

// loadConfig loads configuration from flags, environment variables, and defaults
func loadConfig() (*Config, []string, error) {
	v := viper.New()

	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		userHomeDir = "."
	}
	defaultDatadirPath := filepath.Join(userHomeDir, defaultDatadir)

	v.SetDefault("api.host", defaultAPIHost)
	v.SetDefault("api.port", defaultAPIPort)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)
	v.SetDefault("datadir", defaultDatadirPath)

	flag.StringP("api.host", "a", defaultAPIHost, "API host")
	flag.IntP("api.port", "p", defaultAPIPort, "API port")
	flag.Uint32P("guardian.index", "g", 0, "this node's 1-based guardian index")
	flag.String("guardian.account", "", "this node's guardian account identifier")
	flag.StringP("election.manifest", "m", "", "path to the canonical manifest JSON artifact")
	flag.StringP("election.parameters", "e", "", "path to the canonical parameters JSON artifact")
	flag.String("keystore.password", "", "keystore password (prefer VOTEGUARD_KEYSTORE_PASSWORD)")
	flag.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error, fatal)")
	flag.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")
	flag.StringP("datadir", "d", defaultDatadirPath, "data directory for database and storage files")
	flag.BoolP("yes", "y", false, "approve all publish steps without prompting")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "voteguard v%s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: voteguard [flags] <command>\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		for _, c := range commandHelp {
			fmt.Fprintf(os.Stderr, "  %-16s %s\n", c[0], c[1])
		}
		fmt.Fprintf(os.Stderr, "\nFlags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  except for dashes (-) and dots (.) which are replaced by underscores (_).\n")
		fmt.Fprintf(os.Stderr, "  For example, VOTEGUARD_KEYSTORE_PASSWORD or VOTEGUARD_API_HOST\n")
	}

	flag.CommandLine.SortFlags = false
	flag.Parse()

	v.SetEnvPrefix("VOTEGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flag.CommandLine); err != nil {
		return nil, nil, fmt.Errorf("error binding flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, flag.Args(), nil
}

var commandHelp = [][2]string{
	{"serve", "run the bulletin-board HTTP server"},
	{"keygen", "generate this guardian's key and publish the public part"},
	{"shares", "encrypt and publish key shares for every peer guardian"},
	{"validate", "validate peer keys and shares, publish ceremony status"},
	{"combine", "combine received shares into this guardian's key share"},
	{"tally", "accumulate published ballots into the encrypted tally"},
	{"decrypt-share", "compute and publish decryption shares with proof commits"},
	{"decrypt-respond", "compute and publish proof responses for the tally"},
	{"finalize", "combine decryption shares and publish the plaintext result"},
	{"verify", "verify the published tally, proofs and result"},
}
