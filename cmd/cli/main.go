package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/community-events/internal/config"
	"github.com/jakechorley/community-events/pkg/clients/mailclient"
	"github.com/jakechorley/community-events/pkg/core/cascade"
	"github.com/jakechorley/community-events/pkg/core/consistency"
	"github.com/jakechorley/community-events/pkg/core/recovery"
	"github.com/jakechorley/community-events/pkg/core/services"
	"github.com/jakechorley/community-events/pkg/db"
	"github.com/jakechorley/community-events/pkg/postgres"
	"github.com/jakechorley/community-events/pkg/utils"
	"github.com/jakechorley/community-events/pkg/utils/logging"
)

// App holds the application dependencies
type App struct {
	cfg      *config.Config
	database *postgres.DB
	manager  *cascade.Manager
	recovery *recovery.Service
	logger   *zap.Logger
	ctx      context.Context

	// mail is created lazily; most commands never touch the Gmail API
	mail *mailclient.Client
}

var (
	env     string
	verbose bool
	asUser  string
	asAdmin bool
	app     *App
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Community Events CLI - Manage events, volunteers and RSVPs",
		Long:  `A CLI tool for managing community events, volunteer registrations, and the cascading updates that keep them consistent.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				if app.database != nil {
					app.database.Close()
				}
				if app.logger != nil {
					app.logger.Sync()
				}
			}
		},
	}

	// Add persistent environment flag
	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to the console")
	rootCmd.PersistentFlags().StringVarP(&asUser, "user", "u", "", "Email of the user performing the operation")
	rootCmd.PersistentFlags().BoolVar(&asAdmin, "admin", false, "Run the operation with administrator rights")

	// Add all commands
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(createEventCmd())
	rootCmd.AddCommand(updateEventCmd())
	rootCmd.AddCommand(updateVolunteerCmd())
	rootCmd.AddCommand(updateRsvpCmd())
	rootCmd.AddCommand(submitRsvpCmd())
	rootCmd.AddCommand(cancelRsvpCmd())
	rootCmd.AddCommand(repairMetricsCmd())
	rootCmd.AddCommand(checkConsistencyCmd())
	rootCmd.AddCommand(runLifecycleCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, database, and the cascade manager
func initApp() error {
	var err error
	app = &App{
		ctx: context.Background(),
	}

	// Initialize logger
	app.logger, err = logging.InitLogger(env, verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.logger.Info("Starting application", zap.String("environment", env))

	// Load configuration
	app.logger.Info("Loading configuration")
	app.cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.logger.Debug("Configuration loaded successfully")

	// Connect to the database
	app.logger.Info("Connecting to database")
	app.database, err = postgres.NewDB(app.ctx, app.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.logger.Debug("Database connection established")

	app.manager = cascade.NewManager(app.database, app.database, app.database, app.logger)
	app.recovery = recovery.NewService(app.database, app.database, app.logger)

	return nil
}

// mailClient initializes the Gmail-backed mail client on first use, running
// the OAuth flow if no valid token is cached
func mailClient() (*mailclient.Client, error) {
	if app.mail != nil {
		return app.mail, nil
	}

	oauthCfg, err := config.LoadOAuthClientWithEnv(env)
	if err != nil {
		return nil, fmt.Errorf("failed to load OAuth client config: %w", err)
	}

	oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, err
	}

	token, err := utils.GetTokenWithFlow(app.ctx, oauthConfig, env)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain OAuth token: %w", err)
	}

	app.mail, err = mailclient.NewClient(app.ctx, oauthCfg, token, app.cfg.MailSender)
	if err != nil {
		return nil, err
	}
	return app.mail, nil
}

// userContext builds the caller identity from the --user and --admin flags.
// Emails listed in adminEmails in the config are administrators implicitly.
func userContext() cascade.UserContext {
	isAdmin := asAdmin
	if !isAdmin && asUser != "" && slices.Contains(app.cfg.AdminEmails, asUser) {
		isAdmin = true
	}
	return cascade.UserContext{Email: asUser, IsAdmin: isAdmin}
}

// reportError prints validation failures field by field before handing the
// error back to cobra
func reportError(err error) error {
	var verr *cascade.ValidationError
	if errors.As(err, &verr) {
		fmt.Printf("\n✗ Validation failed for %s:\n", verr.Entity)
		for _, fe := range verr.Errors {
			fmt.Printf("  - %s: %s [%s]\n", fe.Field, fe.Message, fe.Code)
		}
		fmt.Println()
	}
	return err
}

// stringFlag returns a pointer to the flag value only if the flag was set on
// the command line, so unset flags stay out of the sparse update
func stringFlag(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

func intFlag(cmd *cobra.Command, name string) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetInt(name)
	return &v
}

// locationFlags assembles a Location from the location flags, or nil when
// none were set
func locationFlags(cmd *cobra.Command) *db.Location {
	if !cmd.Flags().Changed("location-name") && !cmd.Flags().Changed("location-address") {
		return nil
	}
	name, _ := cmd.Flags().GetString("location-name")
	address, _ := cmd.Flags().GetString("location-address")
	loc := &db.Location{Name: name, Address: address}
	if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng") {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lng, _ := cmd.Flags().GetFloat64("lng")
		loc.Coordinates = &db.Coordinates{Lat: lat, Lng: lng}
	}
	return loc
}

func addLocationFlags(cmd *cobra.Command) {
	cmd.Flags().String("location-name", "", "Venue name")
	cmd.Flags().String("location-address", "", "Venue address")
	cmd.Flags().Float64("lat", 0, "Venue latitude")
	cmd.Flags().Float64("lng", 0, "Venue longitude")
}

// Command definitions

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.database.RunMigrations(app.ctx); err != nil {
				return err
			}
			fmt.Println("\n✓ Migrations applied successfully!")
			return nil
		},
	}
}

func createEventCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "createEvent <title>",
		Short: "Create a new event (administrators only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := args[0]
			input := db.EventUpdate{
				Title:         &title,
				Description:   stringFlag(cmd, "description"),
				StartTime:     stringFlag(cmd, "start"),
				EndTime:       stringFlag(cmd, "end"),
				Location:      locationFlags(cmd),
				AttendanceCap: intFlag(cmd, "cap"),
			}
			if cmd.Flags().Changed("tags") {
				tags, _ := cmd.Flags().GetStringSlice("tags")
				input.Publish = &db.PublishConfig{Tags: tags}
			}

			event, err := services.CreateEvent(app.ctx, app.database, app.logger, input, userContext())
			if err != nil {
				return reportError(err)
			}

			fmt.Printf("\n✓ Event created successfully!\n\n")
			fmt.Printf("Event ID:    %s\n", event.EventID)
			fmt.Printf("Title:       %s\n", event.Title)
			fmt.Printf("Starts:      %s\n", event.StartTime)
			fmt.Printf("Ends:        %s\n", event.EndTime)
			fmt.Printf("Venue:       %s, %s\n", event.Location.Name, event.Location.Address)
			fmt.Printf("Cap:         %d\n\n", event.AttendanceCap)

			return nil
		},
	}

	cmd.Flags().String("description", "", "Event description")
	cmd.Flags().String("start", "", "Start time (RFC 3339)")
	cmd.Flags().String("end", "", "End time (RFC 3339)")
	addLocationFlags(cmd)
	cmd.Flags().Int("cap", 0, "Attendance cap (defaults to 15)")
	cmd.Flags().StringSlice("tags", nil, "Publish tags")

	return cmd
}

func updateEventCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "updateEvent <event_id>",
		Short: "Update an event and cascade the effects to its RSVPs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID := args[0]
			updates := db.EventUpdate{
				Title:         stringFlag(cmd, "title"),
				Description:   stringFlag(cmd, "description"),
				StartTime:     stringFlag(cmd, "start"),
				EndTime:       stringFlag(cmd, "end"),
				Location:      locationFlags(cmd),
				AttendanceCap: intFlag(cmd, "cap"),
			}
			if s := stringFlag(cmd, "status"); s != nil {
				status := db.EventStatus(*s)
				updates.Status = &status
			}

			result, err := app.manager.UpdateEvent(app.ctx, eventID, updates, userContext())
			if err != nil {
				return reportError(err)
			}

			fmt.Printf("\n✓ Event updated successfully!\n\n")
			fmt.Printf("Event ID: %s\n", result.Event.EventID)
			fmt.Printf("Status:   %s\n\n", result.Event.Status)

			if len(result.Cascades.ActionsTaken) > 0 {
				fmt.Println("Cascading updates:")
				for _, action := range result.Cascades.ActionsTaken {
					fmt.Printf("  - %s\n", action)
				}
				if result.Cascades.RSVPsUpdated > 0 {
					fmt.Printf("  %d RSVPs updated\n", result.Cascades.RSVPsUpdated)
				}
				fmt.Println()
			}

			for _, w := range result.Warnings {
				fmt.Printf("⚠️  %s\n", w)
			}

			notify, _ := cmd.Flags().GetBool("notify")
			if notify && len(result.Cascades.NotifyEmails) > 0 {
				client, err := mailClient()
				if err != nil {
					return fmt.Errorf("failed to initialize mail client: %w", err)
				}
				var sendErrs []error
				if result.Event.Status == db.EventCancelled {
					sendErrs = client.SendEventCancellationNotices(result.Event, result.Cascades.NotifyEmails)
				} else {
					sendErrs = client.SendEventChangeNotices(result.Event, result.Cascades.ChangedFields, result.Cascades.NotifyEmails)
				}
				sent := len(result.Cascades.NotifyEmails) - len(sendErrs)
				fmt.Printf("\nNotices sent to %d volunteers\n", sent)
				for _, serr := range sendErrs {
					fmt.Printf("  ✗ %v\n", serr)
				}
			} else if len(result.Cascades.NotifyEmails) > 0 {
				fmt.Printf("\n%d volunteers should be notified (%s) - rerun with --notify to email them\n",
					len(result.Cascades.NotifyEmails), strings.Join(result.Cascades.ChangedFields, ", "))
			}

			return nil
		},
	}

	cmd.Flags().String("title", "", "Event title")
	cmd.Flags().String("description", "", "Event description")
	cmd.Flags().String("start", "", "Start time (RFC 3339)")
	cmd.Flags().String("end", "", "End time (RFC 3339)")
	addLocationFlags(cmd)
	cmd.Flags().Int("cap", 0, "Attendance cap")
	cmd.Flags().String("status", "", "Event status (active, cancelled, completed, archived)")
	cmd.Flags().Bool("notify", false, "Email affected volunteers about the change")

	return cmd
}

func updateVolunteerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "updateVolunteer <email>",
		Short: "Update a volunteer profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := args[0]
			validateMetrics, _ := cmd.Flags().GetBool("validate-metrics")

			updates := db.VolunteerUpdate{
				FirstName:           stringFlag(cmd, "first-name"),
				LastName:            stringFlag(cmd, "last-name"),
				Phone:               stringFlag(cmd, "phone"),
				EmergencyContact:    stringFlag(cmd, "emergency-contact"),
				DietaryRestrictions: stringFlag(cmd, "dietary"),
				VolunteerExperience: stringFlag(cmd, "experience"),
				HowDidYouHear:       stringFlag(cmd, "heard"),
				ValidateMetrics:     validateMetrics,
			}

			result, err := app.manager.UpdateVolunteer(app.ctx, email, updates, userContext())
			if err != nil {
				return reportError(err)
			}

			fmt.Printf("\n✓ Volunteer updated successfully!\n\n")
			fmt.Printf("Email: %s\n", result.Volunteer.Email)
			fmt.Printf("Name:  %s %s\n\n", result.Volunteer.FirstName, result.Volunteer.LastName)

			if result.MetricsCorrected {
				fmt.Println("Metrics snapshot had drifted and was corrected from RSVP history")
			}
			for _, w := range result.Warnings {
				fmt.Printf("⚠️  %s\n", w)
			}

			return nil
		},
	}

	cmd.Flags().String("first-name", "", "First name")
	cmd.Flags().String("last-name", "", "Last name")
	cmd.Flags().String("phone", "", "Phone number")
	cmd.Flags().String("emergency-contact", "", "Emergency contact")
	cmd.Flags().String("dietary", "", "Dietary restrictions")
	cmd.Flags().String("experience", "", "Volunteer experience")
	cmd.Flags().String("heard", "", "How the volunteer heard about us")
	cmd.Flags().Bool("validate-metrics", false, "Check the metrics snapshot against RSVP history and correct drift")

	return cmd
}

func updateRsvpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "updateRsvp <event_id> <email>",
		Short: "Update an RSVP (status changes adjust the volunteer's counters)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, email := args[0], args[1]

			updates := db.RSVPUpdate{
				AdditionalComments: stringFlag(cmd, "comments"),
			}
			if s := stringFlag(cmd, "status"); s != nil {
				status := db.RSVPStatus(*s)
				updates.Status = &status
			}

			result, err := app.manager.UpdateRSVP(app.ctx, eventID, email, updates, userContext())
			if err != nil {
				return reportError(err)
			}

			fmt.Printf("\n✓ RSVP updated successfully!\n\n")
			fmt.Printf("Event ID: %s\n", result.RSVP.EventID)
			fmt.Printf("Email:    %s\n", result.RSVP.Email)
			fmt.Printf("Status:   %s\n\n", result.RSVP.Status)

			return nil
		},
	}

	cmd.Flags().String("status", "", "RSVP status (active, cancelled, no_show, attended)")
	cmd.Flags().String("comments", "", "Additional comments")

	return cmd
}

func submitRsvpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submitRsvp <event_id> <email> <first_name> <last_name>",
		Short: "Register a volunteer for an event",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			phone, _ := cmd.Flags().GetString("phone")
			comments, _ := cmd.Flags().GetString("comments")

			result, err := services.SubmitRSVP(app.ctx, app.database, app.logger, services.SubmitRSVPRequest{
				EventID:            args[0],
				Email:              args[1],
				FirstName:          args[2],
				LastName:           args[3],
				Phone:              phone,
				AdditionalComments: comments,
			})
			if err != nil {
				return reportError(err)
			}

			fmt.Printf("\n✓ RSVP submitted successfully!\n\n")
			fmt.Printf("Event ID:   %s\n", result.RSVP.EventID)
			fmt.Printf("Email:      %s\n", result.RSVP.Email)
			fmt.Printf("Registered: %d of %d places\n", result.RSVPCount, result.AttendanceCap)
			if result.VolunteerCreated {
				fmt.Println("A volunteer profile was created for this email")
			}
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().String("phone", "", "Phone number")
	cmd.Flags().String("comments", "", "Additional comments")

	return cmd
}

func cancelRsvpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancelRsvp <event_id> <email>",
		Short: "Cancel a volunteer's registration",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")

			result, err := services.CancelRSVP(app.ctx, app.manager, app.database, app.database,
				app.logger, args[0], args[1], reason, userContext())
			if err != nil {
				return reportError(err)
			}

			fmt.Printf("\n✓ RSVP cancelled successfully!\n\n")
			fmt.Printf("Event ID: %s\n", result.RSVP.EventID)
			fmt.Printf("Email:    %s\n", result.RSVP.Email)
			if result.HoursBeforeEvent != nil {
				fmt.Printf("Notice:   %.1f hours before the event\n", *result.HoursBeforeEvent)
			}
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().String("reason", "", "Cancellation reason")

	return cmd
}

func repairMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repairMetrics [email]",
		Short: "Rebuild volunteer metric snapshots from RSVP history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var email string
			if len(args) > 0 {
				email = args[0]
			}

			result, err := app.recovery.RepairVolunteerMetrics(app.ctx, email)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Metrics repair completed!\n\n")
			fmt.Printf("Volunteers processed: %d\n", result.VolunteersProcessed)
			fmt.Printf("Volunteers corrected: %d\n", result.VolunteersCorrected)
			if len(result.Errors) > 0 {
				fmt.Printf("\n⚠️  %d volunteers failed:\n", len(result.Errors))
				for _, e := range result.Errors {
					fmt.Printf("  ✗ %s\n", e)
				}
			}
			fmt.Println()

			return nil
		},
	}
}

func checkConsistencyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkConsistency <event_id>",
		Short: "Report consistency findings for an event and its RSVPs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID := args[0]

			event, err := app.database.GetEvent(app.ctx, eventID)
			if err != nil {
				return fmt.Errorf("failed to fetch event: %w", err)
			}
			if event == nil {
				return fmt.Errorf("event %s not found", eventID)
			}

			rsvps, err := app.database.ListEventRSVPs(app.ctx, eventID)
			if err != nil {
				return fmt.Errorf("failed to fetch RSVPs: %w", err)
			}

			findings := consistency.CheckEventRSVPConsistency(event, rsvps)
			if len(findings) == 0 {
				fmt.Printf("\n✓ No consistency issues found for event %s (%d RSVPs)\n\n", eventID, len(rsvps))
				return nil
			}

			fmt.Printf("\n⚠️  %d consistency issues found:\n\n", len(findings))
			for _, f := range findings {
				fmt.Printf("  - %s\n", f.Message)
				for _, rec := range f.AffectedRecords {
					fmt.Printf("      %s\n", rec)
				}
			}
			fmt.Println()

			return nil
		},
	}
}

func runLifecycleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runLifecycle",
		Short: "Complete ended events and archive old completed ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.RunLifecycle(app.ctx, app.manager, app.database, app.cfg, app.logger)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Lifecycle sweep completed!\n\n")
			fmt.Printf("Events completed: %d\n", len(result.EventsCompleted))
			for _, id := range result.EventsCompleted {
				fmt.Printf("  - %s\n", id)
			}
			fmt.Printf("Events archived:  %d\n", len(result.EventsArchived))
			for _, id := range result.EventsArchived {
				fmt.Printf("  - %s\n", id)
			}
			if len(result.Warnings) > 0 {
				fmt.Printf("\n⚠️  Warnings:\n")
				for _, w := range result.Warnings {
					fmt.Printf("  - %s\n", w)
				}
			}
			if result.NextSweep != nil {
				fmt.Printf("\nNext sweep due: %s\n", result.NextSweep.Format("2006-01-02 15:04"))
			}
			fmt.Println()

			return nil
		},
	}
}
