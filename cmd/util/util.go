package util

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"shardkv/lib/logger"
	"shardkv/lib/store/shardstore"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupStoreFlags adds the common store flags to a command
func SetupStoreFlags(cmd *cobra.Command) {
	key := "path"
	cmd.PersistentFlags().String(key, "./shardkv-data", WrapString("Directory of the store"))

	key = "sharding"
	cmd.PersistentFlags().String(key, "", WrapString("Sharding definition, e.g. 'meta logical(3) byhash(2,0-4)'. Must match the store's persisted definition after creation"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("Log level (debug, info, warning, error, critical)"))

	key = "disable-wal"
	cmd.PersistentFlags().Bool(key, false, WrapString("Disable the write-ahead log. Only safe for stores whose content can be rebuilt"))

	key = "range-delete-threshold"
	cmd.PersistentFlags().Int(key, 0, WrapString("Number of keys at which a range removal becomes a physical range tombstone (0 = default)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("shardkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetStoreConfig reads the store path and options from viper
func GetStoreConfig() (string, *shardstore.Options, error) {
	level, err := logger.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return "", nil, err
	}
	logger.SetLevelAll(level)

	opts := shardstore.DefaultOptions()
	opts.ShardingDefinition = viper.GetString("sharding")
	opts.DisableWAL = viper.GetBool("disable-wal")
	opts.RangeDeleteThreshold = viper.GetInt("range-delete-threshold")

	return viper.GetString("path"), opts, nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
