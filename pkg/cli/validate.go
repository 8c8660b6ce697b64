package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tapstack/tapstack/pkg/validate"
)

var validateCfg struct {
	requiredTags []string
	denyPolicies bool
	billingMode  string
	maxBuckets   int
	workers      int
	jsonOut      bool
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [templates or directories...]",
		Short: "Validate synthesized templates against the built-in rules",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runValidate,
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&validateCfg.requiredTags, "required-tags", nil, "Tag keys every taggable resource must carry")
	flags.BoolVar(&validateCfg.denyPolicies, "deny-policies", false, "Require at least one Deny statement across the template's IAM policies")
	flags.StringVar(&validateCfg.billingMode, "billing-mode", "", "Require every DynamoDB table to use this billing mode")
	flags.IntVar(&validateCfg.maxBuckets, "max-buckets", 0, "Maximum number of S3 buckets per template (0 = unbounded)")
	flags.IntVar(&validateCfg.workers, "workers", 0, "Worker pool size (0 = default)")
	flags.BoolVar(&validateCfg.jsonOut, "json", false, "Print the report as JSON")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	files, err := validate.CollectTemplates(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no template files found under %v", args)
	}

	rules := []validate.Rule{validate.NoPublicBuckets{}}
	if len(validateCfg.requiredTags) > 0 {
		rules = append(rules, validate.RequiredTags{Keys: validateCfg.requiredTags})
	}
	if validateCfg.denyPolicies {
		rules = append(rules, validate.RequireDenyStatement{})
	}
	if validateCfg.billingMode != "" {
		rules = append(rules, validate.PropertyEquals{
			Type:     "AWS::DynamoDB::Table",
			Path:     "BillingMode",
			Expected: validateCfg.billingMode,
		})
	}
	if validateCfg.maxBuckets > 0 {
		rules = append(rules, validate.ResourceCount{
			Type: "AWS::S3::Bucket",
			Max:  validateCfg.maxBuckets,
		})
	}

	runner := validate.Runner{Rules: rules, Workers: validateCfg.workers}
	report, err := runner.Run(files)
	if err != nil {
		return err
	}

	if validateCfg.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		for _, v := range report.Violations {
			fmt.Printf("%s %s: [%s] %s\n", color.RedString("FAIL"), v.File, v.Rule, v.Err)
		}
		if report.Ok() {
			fmt.Printf("%s %d file(s) checked, no violations\n", color.GreenString("OK"), report.FilesChecked)
		}
	}

	zap.S().Debugf("validated %d files with %d rules", report.FilesChecked, len(rules))
	if !report.Ok() {
		return fmt.Errorf("%d violation(s) in %d file(s)", len(report.Violations), report.FilesChecked)
	}
	return nil
}
