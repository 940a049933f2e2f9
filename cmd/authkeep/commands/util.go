package commands

import (
	"fmt"
	"os"

	"github.com/marmos91/authkeep/internal/cli/output"
	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/pkg/apiclient"
	"github.com/marmos91/authkeep/pkg/config"
)

const envToken = "AUTHKEEP_TOKEN"

// InitLogger initializes the logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	return config.GetDefaultConfigPath()
}

// newClient returns an API client for the running instance. Without --server
// the URL is derived from the api.port of the configuration, or its default.
func newClient() (*apiclient.Client, error) {
	url := serverURL
	if url == "" {
		cfg, err := config.Load(GetConfigFile())
		if err != nil {
			return nil, err
		}
		url = fmt.Sprintf("http://localhost:%d", cfg.API.Port)
	}
	client := apiclient.New(url)
	if apiToken != "" {
		client = client.WithToken(apiToken)
	}
	return client, nil
}

// printResult prints data in the --output format, rendering table for the
// table format.
func printResult(data any, table output.TableRenderer) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	return output.Print(os.Stdout, format, data, table)
}
