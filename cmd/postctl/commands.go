package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/unclebandit/postplanner-backend/internal/client"
	"github.com/unclebandit/postplanner-backend/internal/model"
	"github.com/unclebandit/postplanner-backend/internal/service"
)

func newRootCmd() *cobra.Command {
	var baseURL string
	api := func() *client.Client { return client.New(baseURL) }

	root := &cobra.Command{
		Use:           "postctl",
		Short:         "Operate the posting schedule API",
		SilenceUsage: true,
	}
	defaultURL := os.Getenv("POSTPLANNER_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&baseURL, "url", defaultURL, "API base URL (env POSTPLANNER_URL)")

	root.AddCommand(
		availabilityCmd(api),
		nextWeekCmd(api),
		generateCmd(api),
		jobCmd(api),
		activeJobCmd(api),
		assignCmd(api),
		statusCmd(api),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func scheduleArg(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid schedule id %q", arg)
	}
	return id, nil
}

func availabilityCmd(api func() *client.Client) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "availability <schedule-id>",
		Short: "List open slots of a schedule on a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := scheduleArg(args[0])
			if err != nil {
				return err
			}
			d, err := model.ParseDate(date)
			if err != nil {
				return err
			}
			slots, err := api().Availability(cmd.Context(), id, d)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), slots)
		},
	}
	cmd.Flags().StringVar(&date, "date", model.DateFromTime(time.Now()).String(), "date (YYYY-MM-DD)")
	return cmd
}

func nextWeekCmd(api func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "next-week <schedule-id>",
		Short: "Show the first week that can still be generated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := scheduleArg(args[0])
			if err != nil {
				return err
			}
			week, err := api().NextGeneratableWeek(cmd.Context(), id)
			if err != nil {
				return err
			}
			if week == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no generatable week within the horizon")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), week.String())
			return nil
		},
	}
}

func generateCmd(api func() *client.Client) *cobra.Command {
	var (
		week         string
		instructions string
		wait         bool
		interval     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "generate <schedule-id>",
		Short: "Start a generation job for a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := scheduleArg(args[0])
			if err != nil {
				return err
			}
			req := service.GenerationRequest{ScheduleID: id, UserInstructions: instructions}
			if week != "" {
				d, err := model.ParseDate(week)
				if err != nil {
					return err
				}
				req.GenerationWeek = &d
			}
			c := api()
			job, err := c.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "job %s queued for week %s\n", job.ID, job.GenerationWeek)
			if !wait {
				return nil
			}
			last := -1
			job, err = c.WaitJob(cmd.Context(), job.ID, interval, func(j *model.GenerationJob) {
				if j.Progress != last {
					last = j.Progress
					fmt.Fprintf(out, "  %s %3d%%\n", j.Status, j.Progress)
				}
			})
			if err != nil {
				return err
			}
			return printJSON(out, job)
		},
	}
	cmd.Flags().StringVar(&week, "week", "", "target week (any date in it, YYYY-MM-DD); default is the next generatable week")
	cmd.Flags().StringVar(&instructions, "instructions", "", "extra instructions for the generator")
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the job finishes")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval with --wait")
	return cmd
}

func jobCmd(api func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "job <job-id>",
		Short: "Show a generation job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			job, err := api().Job(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), job)
		},
	}
}

func activeJobCmd(api func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "active-job",
		Short: "Show the pending or processing generation job, if any",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			job, err := api().ActiveJob(cmd.Context())
			if err != nil {
				return err
			}
			if job == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no active job")
				return nil
			}
			return printJSON(cmd.OutOrStdout(), job)
		},
	}
}

func assignCmd(api func() *client.Client) *cobra.Command {
	var (
		req    service.AssignRequest
		slotID int
		date   string
	)
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Place content on a schedule date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := model.ParseDate(date)
			if err != nil {
				return err
			}
			req.ScheduledDate = d
			if slotID > 0 {
				req.TimeSlotID = &slotID
			}
			a, err := api().Assign(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a)
		},
	}
	cmd.Flags().IntVar(&req.ScheduleID, "schedule", 0, "schedule id")
	cmd.Flags().IntVar(&req.ContentID, "content", 0, "content id")
	cmd.Flags().IntVar(&slotID, "slot", 0, "time slot id (omit for a date-only assignment)")
	cmd.Flags().StringVar(&date, "date", "", "scheduled date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&req.ScheduledTime, "time", "", "scheduled time (HH:MM); defaults to the slot start")
	cmd.Flags().IntVar(&req.Priority, "priority", 0, "priority")
	cmd.Flags().StringVar(&req.Notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("schedule")
	_ = cmd.MarkFlagRequired("content")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func statusCmd(api func() *client.Client) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "status <assignment-id> <status>",
		Short: "Move an assignment to scheduled, published, failed or cancelled",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid assignment id %q", args[0])
			}
			a, err := api().UpdateStatus(cmd.Context(), id, model.AssignmentStatus(args[1]), reason)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "failure reason (required for failed)")
	return cmd
}
