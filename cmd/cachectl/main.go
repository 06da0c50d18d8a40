// cachectl inspects and manipulates a cachekit cache from the command
// line: look up or plant entries, enumerate keys by pattern, dump stats,
// and invalidate in bulk.
//
// The backend comes from CACHE_* environment variables, an optional YAML
// config file, or flags, in that order of increasing precedence:
//
//	cachectl --backend redis --redis-url redis://localhost:6379 stats
//	cachectl keys 'app:book:*'
//	cachectl clear-pattern 'app:book:list:*'
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"

	"github.com/shelfdb/cachekit/cache"
	"github.com/shelfdb/cachekit/logger"
)

var (
	cfgFile     string
	backendKind string
	cacheDir    string
	redisURL    string
	ttlFlag     string

	cfg cache.Config
	svc *cache.Service
)

func buildService(*cobra.Command, []string) error {
	var err error
	if cfgFile != "" {
		cfg, err = cache.LoadFile(cfgFile)
	} else {
		cfg, err = cache.FromEnv()
	}
	if err != nil {
		return err
	}
	if backendKind != "" {
		cfg.Backend = backendKind
	}
	if cacheDir != "" {
		cfg.Dir = cacheDir
	}
	if redisURL != "" {
		cfg.RedisURL = redisURL
	}
	svc, err = cache.New(cfg, logger.NewConsoleLogger())
	return err
}

func main() {
	root := &cobra.Command{
		Use:               "cachectl",
		Short:             "Inspect and manipulate a cachekit cache",
		SilenceUsage:      true,
		PersistentPreRunE: buildService,
		PersistentPostRun: func(*cobra.Command, []string) {
			if svc != nil {
				_ = svc.Close()
			}
		},
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&backendKind, "backend", "", "backend kind (memory, file, redis, null)")
	root.PersistentFlags().StringVar(&cacheDir, "dir", "", "cache directory (file backend)")
	root.PersistentFlags().StringVar(&redisURL, "redis-url", "", "redis connection URL")

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			val, found := svc.Get(cmd.Context(), args[0])
			if !found {
				return fmt.Errorf("no entry for %s", args[0])
			}
			fmt.Printf("%v\n", val)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a string value under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl := cfg.DefaultTTL
			if ttlFlag != "" {
				d, err := str2duration.ParseDuration(ttlFlag)
				if err != nil {
					return fmt.Errorf("invalid ttl %q: %w", ttlFlag, err)
				}
				ttl = d
			}
			if !svc.Set(cmd.Context(), args[0], args[1], ttl) {
				return fmt.Errorf("set %s failed", args[0])
			}
			return nil
		},
	}
	set.Flags().StringVar(&ttlFlag, "ttl", "", `entry TTL, e.g. "90s", "5m", "1d" (0 = never expires)`)

	del := &cobra.Command{
		Use:   "del <key>...",
		Short: "Delete one or more keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(svc.Delete(cmd.Context(), args...))
			return nil
		},
	}

	exists := &cobra.Command{
		Use:   "exists <key>",
		Short: "Exit 0 if the key holds a live entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !svc.Exists(cmd.Context(), args[0]) {
				return fmt.Errorf("no entry for %s", args[0])
			}
			fmt.Println("true")
			return nil
		},
	}

	keysCmd := &cobra.Command{
		Use:   "keys [pattern]",
		Short: "List keys matching a glob pattern (default *)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := "*"
			if len(args) > 0 {
				pattern = args[0]
			}
			for _, key := range svc.Keys(cmd.Context(), pattern) {
				fmt.Println(key)
			}
			return nil
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print a snapshot of the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(svc.Stats(cmd.Context()))
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !svc.Clear(cmd.Context()) {
				return fmt.Errorf("clear failed")
			}
			return nil
		},
	}

	clearPattern := &cobra.Command{
		Use:   "clear-pattern <pattern>",
		Short: "Delete every key matching a glob pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(svc.ClearPattern(cmd.Context(), args[0]))
			return nil
		},
	}

	root.AddCommand(get, set, del, exists, keysCmd, stats, clear, clearPattern)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
