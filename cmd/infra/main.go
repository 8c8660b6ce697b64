package main

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	"github.com/tapstack/tapstack/pkg/envspec"
	"github.com/tapstack/tapstack/pkg/infra"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		cfg := config.New(ctx, "tapstack")
		envFile := cfg.Require("envFile")

		env, err := envspec.ReadEnvironment(envFile)
		if err != nil {
			return err
		}
		if err := env.Validate(); err != nil {
			return fmt.Errorf("environment %s is invalid: %w", envFile, err)
		}

		zones, err := aws.GetAvailabilityZones(ctx, &aws.GetAvailabilityZonesArgs{
			State: pulumi.StringRef("available"),
		}, nil)
		if err != nil {
			return err
		}

		_, err = infra.NewTapStack(ctx, fmt.Sprintf("%s-%s", env.AppName, env.Stage), &infra.TapStackArgs{
			Env:     &env,
			AzNames: zones.Names,
		})
		return err
	})
}
