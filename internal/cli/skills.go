package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"freelancehub/internal/repository"
	"freelancehub/internal/service/recommend"
	redispkg "freelancehub/pkg/redis"
)

// SkillsCmd returns the skills command
func SkillsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skills",
		Short: "Manage the skill catalog and user skill sets",
	}
	cmd.AddCommand(skillsSetCmd())
	return cmd
}

type skillWriter interface {
	EnsureSkill(ctx context.Context, name string) (int64, error)
	SetUserSkills(ctx context.Context, userID int64, skillIDs []int64) error
}

type recommendationInvalidator interface {
	Invalidate(ctx context.Context, freelancerID int64)
}

// replaceSkills 写入技能集合后让该用户的推荐缓存失效，skill_match 依赖它
func replaceSkills(ctx context.Context, users skillWriter, cache recommendationInvalidator, userID int64, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	seen := map[string]bool{}
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		id, err := users.EnsureSkill(ctx, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := users.SetUserSkills(ctx, userID, ids); err != nil {
		return nil, err
	}
	cache.Invalidate(ctx, userID)
	return ids, nil
}

func skillsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace a user's skills, creating unknown skill names",
		Long: `Replace the skill set of a user.

Examples:
  fhctl skills set --user 3 --skill go --skill postgres`,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetInt64("user")
			names, _ := cmd.Flags().GetStringSlice("skill")
			if userID <= 0 {
				return fmt.Errorf("--user must be a positive id")
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			rdb := redispkg.NewRedisClient(a.cfg.Redis)
			defer rdb.Close()

			ids, err := replaceSkills(cmd.Context(), repository.NewUserRepository(a.pool),
				recommend.NewRedisCache(rdb, a.logger), userID, names)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "user %d skills: %s\n", userID, failLabel)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %d skills: %s (%d)\n", userID, okLabel, len(ids))
			return nil
		},
	}
	cmd.Flags().Int64("user", 0, "User id")
	cmd.Flags().StringSlice("skill", nil, "Skill name, repeatable")
	return cmd
}
