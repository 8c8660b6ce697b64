package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tapstack/tapstack/pkg/check"
	"github.com/tapstack/tapstack/pkg/envspec"
)

var checkCfg struct {
	outputsFile string
	healthPath  string
	timeoutSec  int
	jsonOut     bool
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <env-file>",
		Short: "Check deployed resources against the environment definition",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}

	flags := cmd.Flags()
	flags.StringVar(&checkCfg.outputsFile, "outputs", "", "Stack outputs JSON (from `pulumi stack output --json`)")
	flags.StringVar(&checkCfg.healthPath, "health-path", "/health", "Path probed on the API endpoint")
	flags.IntVar(&checkCfg.timeoutSec, "timeout", 60, "Overall timeout in seconds")
	flags.BoolVar(&checkCfg.jsonOut, "json", false, "Print the report as JSON")
	_ = cmd.MarkFlagRequired("outputs")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	env, err := envspec.ReadEnvironment(args[0])
	if err != nil {
		return err
	}
	if err := env.Validate(); err != nil {
		return fmt.Errorf("environment %s is invalid: %w", args[0], err)
	}
	outputs, err := check.ReadOutputs(checkCfg.outputsFile)
	if err != nil {
		return err
	}

	ctx, cancel := contextWithTimeout(cmd, time.Duration(checkCfg.timeoutSec)*time.Second)
	defer cancel()

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRetryMaxAttempts(10))
	if err != nil {
		return err
	}

	checker := &check.Checker{
		EC2:        ec2.NewFromConfig(cfg),
		DDB:        dynamodb.NewFromConfig(cfg),
		S3:         s3.NewFromConfig(cfg),
		Lambda:     lambda.NewFromConfig(cfg),
		HTTP:       &http.Client{Timeout: 10 * time.Second},
		Log:        zap.L(),
		HealthPath: checkCfg.healthPath,
	}
	report := checker.Run(ctx, env, outputs)

	if checkCfg.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		for _, res := range report.Results {
			if res.Err == "" {
				fmt.Printf("%s %s\n", color.GreenString("PASS"), res.Check)
			} else {
				fmt.Printf("%s %s: %s\n", color.RedString("FAIL"), res.Check, res.Err)
			}
		}
	}

	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d check(s) failed", len(failed), len(report.Results))
	}
	return nil
}

func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, d)
}
