package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tendant/edu-cms/pkg/educms"
	redisevents "github.com/tendant/edu-cms/pkg/educms/events/redis"
)

func parseTarget(args []string) (educms.Kind, uuid.UUID, error) {
	kind, ok := educms.ParseKind(args[0])
	if !ok {
		return "", uuid.Nil, fmt.Errorf("unknown kind %q", args[0])
	}
	id, err := uuid.Parse(args[1])
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("invalid id %q: %w", args[1], err)
	}
	return kind, id, nil
}

// NewDeleteCommand creates the delete command
func NewDeleteCommand(a *app) *cobra.Command {
	var useJSON bool

	cmd := &cobra.Command{
		Use:   "delete <kind> <id>",
		Short: "Delete a record and every reference to it",
		Long: `Runs the full deletion of an article, counsel, podcast, video or course.
Running it again for a record whose earlier deletion stopped part way
finishes the cleanup.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseTarget(args)
			if err != nil {
				return err
			}
			svc, err := a.service(cmd)
			if err != nil {
				return err
			}

			report, derr := svc.DeleteWithReport(cmd.Context(), kind, id)
			if report != nil && (derr == nil || errors.Is(derr, educms.ErrPartialDeletion)) {
				if useJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					if err := enc.Encode(report); err != nil {
						return err
					}
				} else {
					printReport(cmd, report)
				}
			}
			return derr
		},
	}

	cmd.Flags().BoolVar(&useJSON, "json", false, "print the deletion report as JSON")
	return cmd
}

func printReport(cmd *cobra.Command, r *educms.DeletionReport) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Kind:\t%s\n", r.Kind)
	fmt.Fprintf(w, "ID:\t%s\n", r.ID)
	fmt.Fprintf(w, "Attempts:\t%d\n", r.Attempts)
	fmt.Fprintf(w, "Completed:\t%t\n", r.Completed())
	fmt.Fprintf(w, "Related pruned:\t%d\n", r.RelatedPruned)
	fmt.Fprintf(w, "Course entries pruned:\t%d\n", r.ContentPruned)
	fmt.Fprintf(w, "User references pruned:\t%d\n", r.UserRefsPruned)
	for _, f := range r.MediaFailures {
		fmt.Fprintf(w, "Media not removed:\t%s (%s)\n", f.Path, f.Error)
	}
	w.Flush()
}

// NewPruneCommand creates the prune command
func NewPruneCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prune <kind> <id>",
		Short: "Remove dangling references to a record that no longer exists",
		Long: `Runs the related, course content and user reference prune passes for
an id without touching the record itself. Every pass is idempotent.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id, err := parseTarget(args)
			if err != nil {
				return err
			}
			svc, err := a.service(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			related, err := svc.PruneRelated(ctx, kind, id)
			if err != nil {
				return err
			}
			var content int64
			if itemType, ok := educms.ItemTypeForKind(kind); ok {
				if content, err = svc.PruneCourseContent(ctx, itemType, id); err != nil {
					return err
				}
			}
			users, err := svc.PruneUserReferences(ctx, kind, id)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "related: %d, course entries: %d, user references: %d\n", related, content, users)
			return nil
		},
	}
}

// NewSeedAdminCommand creates the seed-admin command
func NewSeedAdminCommand(a *app) *cobra.Command {
	var username, phone, password string

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the bootstrap admin account",
		Long: `Creates an admin user. The password is taken from --password or, when the
flag is omitted, from ADMIN_PASSWORD. An existing account with the same
username or phone is left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = a.proc.AdminPassword
			}
			if password == "" {
				return errors.New("password required: pass --password or set ADMIN_PASSWORD")
			}
			svc, err := a.service(cmd)
			if err != nil {
				return err
			}

			user, err := svc.CreateUser(cmd.Context(), educms.CreateUserRequest{
				Username: username,
				Phone:    phone,
				Password: password,
				Role:     educms.RoleAdmin,
			})
			if errors.Is(err, educms.ErrUserExists) {
				fmt.Fprintf(cmd.OutOrStdout(), "Admin %q already exists\n", username)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (%s)\n", user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "admin", "admin username")
	cmd.Flags().StringVar(&phone, "phone", "", "admin phone number")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

// NewEventsCommand creates the events command
func NewEventsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print lifecycle events published to Redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.server.RedisURL == "" {
				return errors.New("REDIS_URL is not set")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, err := redisevents.Dial(ctx, a.server.RedisURL)
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(os.Stderr, "Listening on %s\n", a.server.RedisChannel)
			return redisevents.Listen(ctx, client, a.server.RedisChannel, func(ev redisevents.Event) {
				line := fmt.Sprintf("%s %-13s", ev.At.Format(time.RFC3339), ev.Type)
				if ev.Kind != "" {
					line += " " + string(ev.Kind)
				}
				line += " " + ev.ID.String()
				if ev.UserID != nil {
					line += " user=" + ev.UserID.String()
				}
				fmt.Fprintln(out, line)
			})
		},
	}
}
