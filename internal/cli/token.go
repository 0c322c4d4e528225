package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"freelancehub/pkg/rbac"
	"freelancehub/pkg/util"
)

// TokenCmd returns the token command
func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an existing user id",
		Long: `Issue a signed bearer token for local testing.

Examples:
  fhctl token --user 3 --role freelancer
  fhctl token --user 1 --role client --ttl 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetInt64("user")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			secret, _ := cmd.Flags().GetString("secret")

			if userID <= 0 {
				return fmt.Errorf("--user must be a positive id")
			}
			if !rbac.ValidRole(role) {
				return fmt.Errorf("--role must be %s or %s", rbac.RoleClient, rbac.RoleFreelancer)
			}
			if secret == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				secret = cfg.JWT.Secret
				if ttl == 0 {
					ttl = cfg.TokenTTL()
				}
			}
			if ttl == 0 {
				ttl = 24 * time.Hour
			}

			token, err := util.GenerateJWT(userID, role, secret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64("user", 0, "User id")
	cmd.Flags().String("role", rbac.RoleFreelancer, "client or freelancer")
	cmd.Flags().Duration("ttl", 0, "Token lifetime (default from jwt.ttl_hours)")
	cmd.Flags().String("secret", "", "Signing secret (default from config)")
	return cmd
}
