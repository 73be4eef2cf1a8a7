package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-keiba-collector/internal/cached"
	"go-keiba-collector/internal/collect"
	"go-keiba-collector/internal/fetch"
	"go-keiba-collector/internal/rules"
	"go-keiba-collector/internal/scrape"
	"go-keiba-collector/internal/store"
	"go-keiba-collector/internal/yearmonth"
)

var flagCourse string

var collectCmd = &cobra.Command{
	Use:   "collect START END OUTFILE",
	Short: "Collect records for a YYYYMM range and write training rows as CSV",
	Long: `Walk the race calendar for every month in [START, END], then the race listings,
race results and runner histories behind it. Every page is read through the local
cache database, so an interrupted run resumes where it stopped.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, err := parseRange(args[0], args[1])
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		course := cfg.Course
		if flagCourse != "" {
			course = flagCourse
		}

		rl, err := rules.Load(flagRules)
		if err != nil {
			return fmt.Errorf("loading rules: %w", err)
		}
		fc, err := fetch.New(fetch.Options{
			ProxyHTTP:       cfg.Proxy.HTTP,
			ProxyHTTPS:      cfg.Proxy.HTTPS,
			Timeout:         cfg.Source.Timeout,
			Retry:           cfg.Source.Retry,
			RetryDelay:      cfg.Source.RetryDelay,
			BreakerFailures: cfg.Source.BreakerFailures,
			BreakerCooldown: cfg.Source.BreakerCooldown,
		})
		if err != nil {
			return fmt.Errorf("http client: %w", err)
		}
		src, err := scrape.New(fc, rl, cfg.Source.Preset, cfg.Source.CalendarURL)
		if err != nil {
			return fmt.Errorf("data source: %w", err)
		}

		st, err := store.OpenSQLite(cfg.CacheDB)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer st.Close()

		run := collect.New(cached.New(st, src))
		rep, err := run.Run(cmd.Context(), collect.Plan{Start: start, End: end, Course: course, OutFile: args[2]})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d row(s) to %s.\n", rep.Rows, args[2])
		return nil
	},
}

// parseRange 解析起止年月。START 晚于 END 时范围为空，不视为错误。
func parseRange(startArg, endArg string) (int, int, error) {
	start, err := yearmonth.Parse(startArg)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid START: %w", err)
	}
	end, err := yearmonth.Parse(endArg)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid END: %w", err)
	}
	return start, end, nil
}

func init() {
	collectCmd.Flags().StringVarP(&flagCourse, "course", "c", "", "racecourse name (overrides COURSE)")
}
