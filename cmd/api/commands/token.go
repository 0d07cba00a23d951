package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/your-org/marketplace-backend/internal/pkg/auth"
)

var (
	// Token flags
	tokenUser  string
	tokenEmail string
	tokenRoles []string
)

// tokenCmd mints an access token signed with the configured secret
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development access token",
	Long: `Mint an access token the way the identity service would, for local testing.
Refused when APP_ENV is production.

Examples:
  marketplace-api token --role client
  marketplace-api token --user 1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed --role freelancer`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToken(cmd)
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "User ID (random when empty)")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "dev@marketplace.local", "Email claim")
	tokenCmd.Flags().StringSliceVar(&tokenRoles, "role", []string{string(auth.RoleClient)}, "Roles to grant (freelancer, client, admin)")
}

func runToken(cmd *cobra.Command) error {
	cfg, _, err := bootstrap()
	if err != nil {
		return err
	}
	if cfg.IsProduction() {
		return fmt.Errorf("token minting is disabled in production")
	}

	userID := uuid.New()
	if tokenUser != "" {
		if userID, err = uuid.Parse(tokenUser); err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
	}

	roles := auth.ParseRoles(tokenRoles)
	if len(roles) == 0 {
		return fmt.Errorf("no valid roles in %v", tokenRoles)
	}

	token, err := auth.NewJWTManager(cfg).GenerateAccessToken(userID, tokenEmail, roles)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "user_id=%s roles=%v expires_in=%s\n", userID, roles, cfg.JWT.AccessTokenExpiry)
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
