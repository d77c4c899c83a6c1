package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/tubeworker/pkg/beanstalk"
	"github.com/dmitrymomot/tubeworker/pkg/queue"
	"github.com/dmitrymomot/tubeworker/pkg/validator"
)

// putTimeout bounds connecting and putting a single job.
const putTimeout = 10 * time.Second

type putOptions struct {
	tube     string
	jobType  string
	payload  string
	priority uint32
	delay    string
	ttr      string
}

func newPutCommand() *cobra.Command {
	var opts putOptions

	cmd := &cobra.Command{
		Use:   "put",
		Short: "Put one job into a tube",
		Long: `Put one job into a tube. The body is {"type": <type>, "payload": <payload>};
the payload must be valid JSON.`,
		Example: `  tubeworker put --tube mail --type email --payload '{"to":"a@b.c"}'
  tubeworker put --type ping --delay 30s --priority 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), putTimeout)
			defer cancel()

			conn := beanstalk.NewConn()
			id, err := put(ctx, conn, address(s), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "put job %d into %s\n", id, opts.tube)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.tube, "tube", beanstalk.DefaultTube, "tube to put the job into")
	flags.StringVar(&opts.jobType, "type", "", "job type")
	flags.StringVar(&opts.payload, "payload", "{}", "job payload as JSON")
	flags.Uint32Var(&opts.priority, "priority", beanstalk.DefaultPriority, "job priority, lower is more urgent")
	flags.StringVar(&opts.delay, "delay", "0s", "delay before the job becomes ready")
	flags.StringVar(&opts.ttr, "ttr", beanstalk.DefaultTTR.String(), "time to run once reserved")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

// put encodes the job described by opts and puts it through p, which is
// connected to addr first when it is a beanstalk.Client.
func put(ctx context.Context, p beanstalk.Producer, addr beanstalk.Address, opts putOptions) (uint64, error) {
	var errs validator.ValidationErrors
	if queue.ValidateTubeName(&errs, "tube", opts.tube); !errs.IsEmpty() {
		return 0, errs
	}
	if !json.Valid([]byte(opts.payload)) {
		return 0, fmt.Errorf("payload is not valid JSON: %s", opts.payload)
	}
	body, err := queue.EncodeJob(opts.jobType, json.RawMessage(opts.payload))
	if err != nil {
		return 0, err
	}

	putOpts := beanstalk.DefaultPutOptions()
	putOpts.Priority = opts.priority
	if putOpts.Delay, err = parseDuration("delay", opts.delay); err != nil {
		return 0, err
	}
	if putOpts.TTR, err = parseDuration("ttr", opts.ttr); err != nil {
		return 0, err
	}

	if c, ok := p.(beanstalk.Client); ok {
		if err := c.Connect(ctx, addr); err != nil {
			return 0, err
		}
		defer func() { _ = c.Disconnect(context.WithoutCancel(ctx)) }()
	}
	return p.Put(ctx, opts.tube, body, putOpts)
}

func address(s settings) beanstalk.Address {
	addr := queue.Connection{Host: s.BeanstalkHost, Port: s.BeanstalkPort}
	def := queue.DefaultConnection()
	if addr.Host == "" {
		addr.Host = def.Host
	}
	if addr.Port == 0 {
		addr.Port = def.Port
	}
	return addr.Address()
}

// parseDuration accepts a Go duration ("30s") or a number of seconds ("30").
func parseDuration(name, v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	if secs, err := strconv.ParseUint(v, 10, 32); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, fmt.Errorf("invalid %s %q", name, v)
}
