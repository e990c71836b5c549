package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vvatanabe/sqsredrive"
	"github.com/vvatanabe/sqsredrive/internal/config"
	"github.com/vvatanabe/sqsredrive/internal/log"
	"github.com/vvatanabe/sqsredrive/internal/metrics"
	"github.com/vvatanabe/sqsredrive/internal/server"
)

// Manager is what the commands need from *sqsredrive.Manager.
type Manager interface {
	server.Service
	Restore(ctx context.Context) error
	PeekDLQMessages(ctx context.Context, id string, maxMessages int) ([]sqsredrive.ReceivedMessage, error)
}

var _ Manager = (*sqsredrive.Manager)(nil)

type CommandFactory struct {
	CreateManager func(ctx context.Context, flags *Flags) (Manager, error)
	// CreateGateway builds a gateway for commands that address queues by URL instead of registry ID.
	CreateGateway func(ctx context.Context, flags *Flags) (sqsredrive.Gateway, error)
	RunServer     func(ctx context.Context, flags *Flags) error
	Stdin         io.Reader
	Stdout        io.Writer
}

var defaultCommandFactory = CommandFactory{
	CreateManager: createManager,
	CreateGateway: createGateway,
	RunServer:     runServer,
	Stdin:         os.Stdin,
	Stdout:        os.Stdout,
}

var root = defaultCommandFactory.CreateRootCommand(flgs)

func (f CommandFactory) stdout() io.Writer {
	if f.Stdout == nil {
		return io.Discard
	}
	return f.Stdout
}

func (f CommandFactory) stdin() io.Reader {
	if f.Stdin == nil {
		return strings.NewReader("")
	}
	return f.Stdin
}

func (f CommandFactory) CreateRootCommand(flgs *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "sqsredrive",
		Short: "sqsredrive moves messages from Amazon SQS dead-letter queues back to their source queues",
		Long: `sqsredrive moves messages from Amazon SQS dead-letter queues back to their source queues.
Run without a subcommand to start the interactive mode.`,
		Version: "",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := f.stdout()
			defer fmt.Fprintf(w, "... Interactive is ending\n\n\n")

			fmt.Fprintln(w, "===========================================================")
			fmt.Fprintln(w, ">> Welcome to sqsredrive CLI! [INTERACTIVE MODE]")
			fmt.Fprintln(w, "===========================================================")
			fmt.Fprintln(w, "for help, enter one of the following: ? or h or help")
			fmt.Fprintln(w, "all commands in CLIs need to be typed in lowercase")
			fmt.Fprintln(w, "")

			ctx := context.Background()
			manager, err := f.CreateManager(ctx, flgs)
			if err != nil {
				return fmt.Errorf("... %v", err)
			}

			fmt.Fprintln(w, "... AWS session is properly established!")
			fmt.Fprintf(w, "Profile: %s\n", manager.Profile())
			fmt.Fprintln(w, "")

			c := Interactive{
				Manager: manager,
				Out:     w,
			}

			scanner := bufio.NewScanner(f.stdin())
			for {
				if c.Queue != nil {
					fmt.Fprintf(w, "\nQueue <%s> >> Enter command: ", c.Queue.QueueName)
				} else {
					fmt.Fprint(w, "\n>> Enter command: ")
				}
				if !scanner.Scan() {
					break
				}
				command, params := parseInput(scanner.Text())
				switch command {
				case "":
					continue
				case "quit", "q":
					return nil
				default:
					if err := c.Run(ctx, command, params); err != nil {
						printError(w, err)
					}
				}
			}
			return scanner.Err()
		},
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	return log.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
}

func newProvider(cfg *config.Config, logger logrus.FieldLogger) *sqsredrive.GatewayProvider {
	return sqsredrive.NewGatewayProvider(
		sqsredrive.WithDefaultRegion(cfg.AWS.Region),
		sqsredrive.WithProfile(cfg.AWS.Profile),
		sqsredrive.WithSTSBaseEndpoint(cfg.AWS.SQSEndpointURL),
		sqsredrive.WithGatewayOptions(
			sqsredrive.WithAWSBaseEndpoint(cfg.AWS.SQSEndpointURL),
			sqsredrive.WithAWSRetryMaxAttempts(cfg.AWS.RetryMaxAttempts),
			sqsredrive.WithGatewayLogger(logger),
		),
	)
}

func newManager(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger, m *metrics.Metrics) (*sqsredrive.Manager, error) {
	awsCfg, err := sqsredrive.LoadDefaultConfig(ctx, cfg.AWS.Region, cfg.AWS.Profile)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	registry, err := sqsredrive.NewRegistryFromConfig(awsCfg,
		sqsredrive.WithTableName(cfg.Registry.TableName),
		sqsredrive.WithDynamoDBBaseEndpoint(cfg.Registry.EndpointURL),
		func(o *sqsredrive.RegistryOptions) {
			o.RetryMaxAttempts = cfg.AWS.RetryMaxAttempts
		})
	if err != nil {
		return nil, fmt.Errorf("registry could not be established!: %w", err)
	}
	optFns := []func(*sqsredrive.ManagerOptions){sqsredrive.WithManagerLogger(logger)}
	if m != nil {
		optFns = append(optFns, sqsredrive.WithRedriverOptions(sqsredrive.WithRecorder(m)))
	}
	manager := sqsredrive.NewManager(registry, newProvider(cfg, logger), optFns...)
	// An explicit profile wins over the one saved by a previous session.
	if cfg.AWS.Profile == "" {
		if err := manager.Restore(ctx); err != nil {
			return nil, err
		}
	}
	return manager, nil
}

func createManager(ctx context.Context, flags *Flags) (Manager, error) {
	cfg, err := flags.Config(os.Getenv)
	if err != nil {
		return nil, err
	}
	return newManager(ctx, cfg, newLogger(cfg), nil)
}

func createGateway(ctx context.Context, flags *Flags) (sqsredrive.Gateway, error) {
	cfg, err := flags.Config(os.Getenv)
	if err != nil {
		return nil, err
	}
	awsCfg, err := sqsredrive.LoadDefaultConfig(ctx, cfg.AWS.Region, cfg.AWS.Profile)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return sqsredrive.NewFromConfig(awsCfg,
		sqsredrive.WithAWSBaseEndpoint(cfg.AWS.SQSEndpointURL),
		sqsredrive.WithAWSRetryMaxAttempts(cfg.AWS.RetryMaxAttempts),
		sqsredrive.WithGatewayLogger(newLogger(cfg)))
}

func runServer(ctx context.Context, flags *Flags) error {
	cfg, err := flags.Config(os.Getenv)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}
	manager, err := newManager(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	optFns := []func(*server.Options){server.WithLogger(logger)}
	if m != nil {
		optFns = append(optFns, server.WithMetrics(m, cfg.Metrics.Path))
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.WithFields(logrus.Fields{
		"addr":    cfg.Server.Addr,
		"region":  cfg.AWS.Region,
		"profile": manager.Profile(),
		"table":   cfg.Registry.TableName,
	}).Info("starting sqsredrive server")
	return server.New(manager, optFns...).Run(ctx, cfg.Server.Addr,
		cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout)
}

func parseInput(input string) (command string, params []string) {
	input = strings.TrimSpace(input)
	arr := strings.Fields(input)

	if len(arr) == 0 {
		return "", nil
	}

	command = strings.ToLower(arr[0])

	if len(arr) > 1 {
		params = make([]string, len(arr)-1)
		for i := 1; i < len(arr); i++ {
			params[i-1] = strings.TrimSpace(arr[i])
		}
	}
	return command, params
}

func Execute() {
	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	setDefaultFlags(root, flgs)
}
