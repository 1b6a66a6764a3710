package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"clanactivity/internal/activity"
	"clanactivity/internal/components/chrono"
	"clanactivity/internal/components/metrics"
	"clanactivity/internal/components/telemetry"
	"clanactivity/lib/textutil"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("clanactivity.cmd.clan-activity")

var (
	activityConcurrency int
	activityPolicy      string
	activityMetricsFile string
	activityDumpHttp    string
	activityOnly        []string
)

func init() {
	flags := activityCmd.Flags()
	flags.IntVar(&activityConcurrency, "concurrency", 0, "The maximum amount of members resolved at once, overrides the config.")
	flags.StringVar(&activityPolicy, "policy", "", "What to do when a member fails to resolve: fail-fast or collect-all, overrides the config.")
	flags.StringVar(&activityMetricsFile, "metrics-file", "", "Write prometheus metrics of the batch to this file, overrides the config.")
	flags.StringVar(&activityDumpHttp, "dump-http", "", "Write every http exchange into this directory, overrides the config.")
	flags.StringSliceVar(&activityOnly, "only", nil, "Only resolve the members with these names.")
	rootCmd.AddCommand(activityCmd)
}

func applyActivityFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("concurrency") {
		config.Concurrency = activityConcurrency
	}
	if flags.Changed("policy") {
		config.Policy = activityPolicy
	}
	if flags.Changed("metrics-file") {
		config.MetricsFile = activityMetricsFile
	}
	if flags.Changed("dump-http") {
		config.DumpHttp = activityDumpHttp
	}
	return config.Validate()
}

// filterMembers keeps the members named in only, every name has to exist.
func filterMembers(members []*activity.Member, only []string) ([]*activity.Member, error) {
	if len(only) == 0 {
		return members, nil
	}

	names := make([]string, len(members))
	var filtered []*activity.Member
	for i, member := range members {
		names[i] = member.Name
		if textutil.MatchName(member.Name, only) {
			filtered = append(filtered, member)
		}
	}

	for _, name := range only {
		if textutil.MatchName(name, names) {
			continue
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("member %q is not in the clan", name)
		}
		closest, _ := textutil.Closest(name, names)
		return nil, fmt.Errorf("member %q is not in the clan, did you mean %q?", name, closest)
	}
	return filtered, nil
}

var activityCmd = &cobra.Command{
	Use:   "activity [group id] [--only <name>] [--policy fail-fast|collect-all]",
	Short: "Resolves when every member of a clan was last active, least recently active first.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := applyActivityFlags(cmd)
		if err != nil {
			return err
		}
		group, err := groupArg(args)
		if err != nil {
			return err
		}
		clock, err := chrono.NewStandardImpl(config.Timezone)
		if err != nil {
			return fmt.Errorf("load timezone: %w", err)
		}
		policy, err := activity.ParsePolicy(config.Policy)
		if err != nil {
			return err
		}

		runId := uuid.NewString()
		logger := slog.Default().With("run", runId)
		tel := telemetry.SlogAPI{Logger: logger}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		ctx, span := tracer.Start(ctx, "activity", trace.WithAttributes(
			attribute.String("run", runId),
			attribute.String("group", group),
		))
		defer span.End()

		if exporters.MeterProvider != nil {
			telemetry.InstrumentPerfStats(ctx, time.Second*10)
		}

		client, err := newClient(tel)
		if err != nil {
			return fmt.Errorf("create client: %w", err)
		}
		members, err := client.ClanMembers(ctx, group)
		if err != nil {
			return err
		}
		members, err = filterMembers(members, activityOnly)
		if err != nil {
			return err
		}

		batch := metrics.NewBatch()
		roster := activity.NewRoster(
			activity.NewResolver(client, tel),
			activity.RosterOptions{
				Concurrency: config.Concurrency,
				Policy:      policy,
				Observer:    batch,
			},
			tel,
		)

		logger.Info(
			"resolving clan activity",
			"group", group,
			"members", len(members),
			"concurrency", config.Concurrency,
			"policy", policy.String(),
		)
		start := time.Now()
		report, err := roster.ResolveAll(ctx, members)
		batch.Finish(clock.Now())
		logger.Info("batch finished", "seconds", time.Since(start).Seconds(), "failures", len(report.Failures))

		if config.MetricsFile != "" {
			metricsErr := batch.WriteTextfile(config.MetricsFile)
			if metricsErr != nil {
				logger.Warn("failed to write metrics", "path", config.MetricsFile, "err", metricsErr)
			}
		}

		if policy == activity.FailFast && err != nil {
			return fmt.Errorf("batch failed: %w", err)
		}

		renderActivity(cmd.OutOrStdout(), report.Members, clock.Now())
		if len(report.Failures) > 0 {
			renderFailures(cmd.ErrOrStderr(), report.Failures)
			return fmt.Errorf("%d of %d members failed to resolve", len(report.Failures), len(members))
		}
		return nil
	},
}
