package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"

	"github.com/getsentry/tickprof/internal/envutil"
	"github.com/getsentry/tickprof/internal/errorutil"
	"github.com/getsentry/tickprof/internal/report"
	"github.com/getsentry/tickprof/internal/session"
	"github.com/getsentry/tickprof/internal/storageprovider"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type options struct {
	stateURL string
	key      string
	tick     int64
	interval time.Duration
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "tickprof-report",
		Short:         "Render reports from a persisted profiler session",
		Long:          `tickprof-report reads the session a tickprof host persisted and renders it as a table, a callgrind dump or a pprof profile.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&o.stateURL, "state-url", envutil.GetEnvOrFallback("TICKPROF_STATE_URL", "file://./state"), "bucket or redis URL holding the session")
	flags.StringVar(&o.key, "key", envutil.GetEnvOrFallback("TICKPROF_STATE_KEY", ""), "state key of the host")
	flags.Int64Var(&o.tick, "tick", 0, "tick to report at, derived from the current time when 0")
	flags.DurationVar(&o.interval, "interval", time.Second, "slice interval of the host, used to derive the current tick")

	root.AddCommand(
		newTableCmd(o),
		newCallgrindCmd(o),
		newPprofCmd(o),
		newInspectCmd(o),
		newRmCmd(o),
	)
	return root
}

func newTableCmd(o *options) *cobra.Command {
	var maxChars int
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Print the function table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, tick, err := o.load(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), report.Table(s, tick, maxChars))
			return err
		},
	}
	cmd.Flags().IntVar(&maxChars, "max-chars", report.DefaultBudget, "size of the table")
	return cmd
}

func newCallgrindCmd(o *options) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "callgrind",
		Short: "Write the call graph in the callgrind format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, tick, err := o.load(cmd.Context())
			if err != nil {
				return err
			}
			return writeOutput(cmd, output, func(w io.Writer) error {
				_, err := io.WriteString(w, report.Callgrind(s, tick))
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write to instead of stdout")
	return cmd
}

func newPprofCmd(o *options) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "pprof",
		Short: "Write the call graph as a pprof profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, tick, err := o.load(cmd.Context())
			if err != nil {
				return err
			}
			prof, err := report.Pprof(s, tick)
			if err != nil {
				return err
			}
			return writeOutput(cmd, output, prof.Write)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "profile.pb.gz", "file to write to, - for stdout")
	return cmd
}

func newInspectCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print the persisted session as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closer, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closer.Close()
			s, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
}

func newRmCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rm",
		Short: "Remove the persisted session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closer, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closer.Close()
			if err := store.Delete(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed session %q\n", o.key)
			return err
		},
	}
}

func (o *options) open(ctx context.Context) (session.Store, io.Closer, error) {
	if o.key == "" {
		return nil, nil, fmt.Errorf("--key must be set")
	}
	if strings.HasPrefix(o.stateURL, "redis://") || strings.HasPrefix(o.stateURL, "rediss://") {
		store, err := storageprovider.NewRedisFromURL(o.stateURL, o.key)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
	bucket, err := blob.OpenBucket(ctx, o.stateURL)
	if err != nil {
		return nil, nil, err
	}
	return storageprovider.NewBlob(bucket, o.key), bucket, nil
}

// load returns the persisted session, nil when there is none, and the tick
// to report at.
func (o *options) load(ctx context.Context) (*session.Session, int64, error) {
	store, closer, err := o.open(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer closer.Close()

	s, err := store.Load(ctx)
	if err != nil {
		if errors.Is(err, errorutil.ErrNotFound) {
			return nil, o.tick, nil
		}
		return nil, 0, err
	}
	tick := o.tick
	if tick == 0 && o.interval > 0 {
		tick = time.Now().UnixNano() / int64(o.interval)
	}
	return s, tick, nil
}

func writeOutput(cmd *cobra.Command, path string, write func(w io.Writer) error) error {
	if path == "" || path == "-" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
	return err
}
