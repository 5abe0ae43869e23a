package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"collabhub/internal/collab"
	"collabhub/internal/config"
	"collabhub/internal/realtime"
	collabsdk "collabhub/sdk/go"
)

func newClient(cfg *config.Config) *collabsdk.Client {
	base := viper.GetString("base-url")
	if base == "" {
		base = cfg.Client.BaseURL
	}
	c := collabsdk.New(base)
	if cfg.Server.BasePath != "" {
		c.BasePath = cfg.Server.BasePath
	}
	c.APIKey = viper.GetString("api-key")
	c.BearerToken = viper.GetString("token")
	c.ActorID = actorID(cfg)
	return c
}

// withStore runs fn against a one-shot store: no subscription and no
// auto-refresh. Pending retries stop when fn returns.
func withStore(fn func(*collab.Store) error) error {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	opts := collab.OptionsFromConfig(cfg.Client)
	opts.EnableRealTime = false
	opts.AutoRefresh = false
	opts.ActorID = actorID(cfg)
	opts.Logger = logger.Named("store")
	s := collab.New(newClient(cfg), opts)
	defer s.Close()
	return fn(s)
}

func hubCmd() *cobra.Command {
	h := &cobra.Command{Use: "hub", Short: "Manage hubs"}
	h.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List hubs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *collab.Store) error {
				hubs, err := s.LoadHubs(cmd.Context())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(hubs)
				}
				tw := newTable("ID", "Name", "Owner", "Members")
				for _, hb := range hubs {
					tw.AppendRow(table.Row{hb.ID, hb.Name, hb.OwnerID, hb.MemberCount})
				}
				tw.Render()
				return nil
			})
		},
	})

	var id, name, desc string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a hub owned by the actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *collab.Store) error {
				hb, err := s.CreateHub(cmd.Context(), collabsdk.CreateHubInput{ID: id, Name: name, Description: desc})
				if err != nil {
					return err
				}
				return printJSONOrText(hb, fmt.Sprintf("created hub %s (%s)", hb.ID, hb.Name))
			})
		},
	}
	create.Flags().StringVar(&id, "id", "", "hub id (generated when empty)")
	create.Flags().StringVar(&name, "name", "", "hub name")
	create.Flags().StringVar(&desc, "description", "", "description")
	_ = create.MarkFlagRequired("name")
	h.AddCommand(create)

	h.AddCommand(&cobra.Command{
		Use:   "show <hub-id>",
		Short: "Show a hub and its members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *collab.Store) error {
				ctx := cmd.Context()
				hb, err := s.LoadHub(ctx, args[0])
				if err != nil {
					return err
				}
				members, err := s.LoadTeamMembers(ctx, hb.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"hub": hb, "members": members})
				}
				fmt.Printf("Hub: %s (%s)\n", hb.Name, hb.ID)
				if hb.Description != "" {
					fmt.Println(hb.Description)
				}
				tw := newTable("Member", "Actor", "Role", "Status")
				for _, m := range members {
					tw.AppendRow(table.Row{m.ID, m.ActorID, m.Role, m.Status})
				}
				tw.Render()
				return nil
			})
		},
	})
	return h
}

func reviewCmd() *cobra.Command {
	rv := &cobra.Command{Use: "review", Short: "Work with reviews"}

	var hubID, status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List a hub's reviews",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *collab.Store) error {
				items, err := s.LoadReviews(cmd.Context(), hubID, status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Title", "Status", "Author", "Reviewers")
				for _, r := range items {
					tw.AppendRow(table.Row{r.ID, r.Title, r.Status, r.AuthorID, strings.Join(r.Reviewers, ",")})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&hubID, "hub", "", "hub id")
	list.Flags().StringVar(&status, "status", "", "draft|submitted|approved|rejected")
	_ = list.MarkFlagRequired("hub")
	rv.AddCommand(list)

	rv.AddCommand(&cobra.Command{
		Use:   "submit <review-id>",
		Short: "Submit a draft review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *collab.Store) error {
				r, err := s.SubmitReview(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSONOrText(r, fmt.Sprintf("review %s is %s", r.ID, r.Status))
			})
		},
	})
	rv.AddCommand(decisionCmd("approve", "Approve a submitted review", func(s *collab.Store) func(context.Context, string, map[string]any) (collabsdk.Review, error) {
		return s.ApproveReview
	}))
	rv.AddCommand(decisionCmd("reject", "Reject a submitted review", func(s *collab.Store) func(context.Context, string, map[string]any) (collabsdk.Review, error) {
		return s.RejectReview
	}))
	return rv
}

func decisionCmd(use, short string, pick func(*collab.Store) func(context.Context, string, map[string]any) (collabsdk.Review, error)) *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   use + " <review-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload map[string]any
			if note != "" {
				payload = map[string]any{"note": note}
			}
			return withStore(func(s *collab.Store) error {
				r, err := pick(s)(cmd.Context(), args[0], payload)
				if err != nil {
					return err
				}
				return printJSONOrText(r, fmt.Sprintf("review %s is %s", r.ID, r.Status))
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "note attached to the decision")
	return cmd
}

func notificationsCmd() *cobra.Command {
	n := &cobra.Command{Use: "notifications", Short: "Read the actor's notifications"}
	var unread bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *collab.Store) error {
				if _, err := s.LoadNotifications(cmd.Context()); err != nil {
					return err
				}
				st := s.State()
				items := st.Notifications
				if unread {
					items = nil
					for _, it := range st.Notifications {
						if !it.Read {
							items = append(items, it)
						}
					}
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Type", "Message", "Read")
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Type, it.Message, it.Read})
				}
				tw.AppendFooter(table.Row{"", "", "unread", st.UnreadCount})
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().BoolVar(&unread, "unread", false, "only unread")
	n.AddCommand(list)
	n.AddCommand(&cobra.Command{
		Use:   "read <notification-id>",
		Short: "Mark one notification read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *collab.Store) error {
				it, err := s.MarkNotificationRead(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSONOrText(it, "marked "+it.ID+" read")
			})
		},
	})
	n.AddCommand(&cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification read",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *collab.Store) error {
				changed, err := s.MarkAllNotificationsRead(cmd.Context())
				if err != nil {
					return err
				}
				return printJSONOrText(map[string]int{"changed": changed}, fmt.Sprintf("marked %d read", changed))
			})
		},
	})
	return n
}

func exportCmd() *cobra.Command {
	var hubID, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a hub as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *collab.Store) error {
				bundle, err := s.ExportHub(cmd.Context(), hubID)
				if err != nil {
					return err
				}
				if out == "" || out == "-" {
					return printJSON(bundle)
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := writeJSON(f, bundle); err != nil {
					return err
				}
				fmt.Fprintln(os.Stderr, "wrote", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&hubID, "hub", "", "hub id")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (stdout when empty)")
	_ = cmd.MarkFlagRequired("hub")
	return cmd
}

func watchCmd() *cobra.Command {
	var hubID string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow collaboration updates",
		Long: `watch keeps a store open and prints a summary line whenever its state
changes. Pushes arrive when realtime.driver is redis; otherwise the store
relies on auto-refresh.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := collab.OptionsFromConfig(cfg.Client)
			opts.ActorID = actorID(cfg)
			opts.Logger = logger.Named("store")
			if opts.EnableRealTime && cfg.Realtime.Driver == "redis" {
				bus, err := realtime.Open(cfg.Realtime)
				if err != nil {
					return err
				}
				defer bus.Close()
				opts.Subscriber = bus
			} else {
				opts.EnableRealTime = false
				opts.AutoRefresh = true
			}
			s := collab.New(newClient(cfg), opts)
			defer s.Close()

			if hubID != "" {
				if _, err := s.LoadHub(ctx, hubID); err != nil {
					return err
				}
			}
			if err := s.Refresh(ctx); err != nil {
				logger.Warn("initial refresh", zap.Error(err))
			}
			if err := s.Start(ctx); err != nil {
				return err
			}
			return followState(ctx, s)
		},
	}
	cmd.Flags().StringVar(&hubID, "hub", "", "hub to follow")
	return cmd
}

// followState prints a summary line whenever it changes.
func followState(ctx context.Context, s *collab.Store) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	var last string
	for {
		st := s.State()
		line := fmt.Sprintf("hubs=%d reviews=%d members=%d unread=%d pushes=%d connected=%t errors=%d",
			len(st.Hubs), len(st.Reviews), len(st.TeamMembers), st.UnreadCount, st.UpdateCount, st.Connected, len(st.Errors))
		if line != last {
			last = line
			fmt.Println(time.Now().Format(time.TimeOnly), line)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
