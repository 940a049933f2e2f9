package commands

import (
	"errors"
	"fmt"

	"github.com/marmos91/authkeep/internal/cli/output"
	"github.com/marmos91/authkeep/pkg/api/auth"
	"github.com/marmos91/authkeep/pkg/config"
	"github.com/spf13/cobra"
)

var tokenOperator string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an operator API token",
	Long: `Issue a bearer token for the operator API, signed with api.jwt_secret.

The token lifetime is api.token_ttl. Pass it to remote commands with --token
or the AUTHKEEP_TOKEN environment variable.

Examples:
  # Issue a token for the default operator
  export AUTHKEEP_TOKEN=$(authkeep token -o json | jq -r .access_token)

  # Issue a token naming the operator
  authkeep token --operator alice`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenOperator, "operator", "admin", "Operator name recorded in the token")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if cfg.API.JWTSecret == "" {
		return errors.New("api.jwt_secret is not set: the operator API accepts unauthenticated requests")
	}

	svc, err := auth.NewJWTService(auth.JWTConfig{Secret: cfg.API.JWTSecret, TokenDuration: cfg.API.TokenTTL})
	if err != nil {
		return err
	}
	token, err := svc.Issue(tokenOperator)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		fmt.Println(token.AccessToken)
		return nil
	}
	return printResult(token, nil)
}
