package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tapstack/tapstack/pkg/envspec"
	"github.com/tapstack/tapstack/pkg/infra"
)

var planCfg struct {
	jsonOut bool
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <env-file>",
		Short: "Print the deploy order and output wiring for an environment",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlan,
	}
	cmd.Flags().BoolVar(&planCfg.jsonOut, "json", false, "Print the plan as JSON")
	return cmd
}

type planOutput struct {
	DeployOrder []string      `json:"deploy_order"`
	Bindings    []planBinding `json:"bindings"`
}

type planBinding struct {
	Consumer string `json:"consumer"`
	Input    string `json:"input"`
	Source   string `json:"source"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	env, err := envspec.ReadEnvironment(args[0])
	if err != nil {
		return err
	}
	if err := env.Validate(); err != nil {
		return fmt.Errorf("environment %s is invalid: %w", args[0], err)
	}

	plan, err := infra.BuildPlan(&env)
	if err != nil {
		return err
	}
	order, err := plan.DeployOrder()
	if err != nil {
		return err
	}

	out := planOutput{DeployOrder: order}
	for _, b := range plan.Bindings() {
		out.Bindings = append(out.Bindings, planBinding{
			Consumer: b.Consumer,
			Input:    b.Input,
			Source:   b.Source.String(),
		})
	}

	if planCfg.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("%s %s (%s)\n", color.CyanString("environment"), env.AppName, env.Stage)
	fmt.Println("deploy order:")
	for i, stack := range out.DeployOrder {
		fmt.Printf("  %d. %s\n", i+1, stack)
	}
	if len(out.Bindings) > 0 {
		fmt.Println("bindings:")
		for _, b := range out.Bindings {
			fmt.Printf("  %s.%s <- %s\n", b.Consumer, b.Input, b.Source)
		}
	}
	return nil
}
