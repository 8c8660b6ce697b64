package infra

import (
	"fmt"
	"strings"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/apigatewayv2"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/lambda"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/tapstack/tapstack/pkg/envspec"
)

type (
	ApiArgs struct {
		Spec envspec.Api
		Tags map[string]string

		// Wired from the compute component.
		FunctionNames pulumi.StringMapInput
		InvokeArns    pulumi.StringMapInput
	}

	// Api is the HTTP front door: an API Gateway v2 HTTP API with one
	// proxy integration per configured route and an auto-deploying stage.
	Api struct {
		pulumi.ResourceState

		ApiId       pulumi.StringOutput `pulumi:"apiId"`
		ApiEndpoint pulumi.StringOutput `pulumi:"apiEndpoint"`
	}
)

func NewApi(ctx *pulumi.Context, name string, args *ApiArgs, opts ...pulumi.ResourceOption) (*Api, error) {
	comp := &Api{}
	if err := ctx.RegisterComponentResource("tapstack:index:Api", name, comp, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(comp)

	api, err := apigatewayv2.NewApi(ctx, name+"-http", &apigatewayv2.ApiArgs{
		ProtocolType: pulumi.String("HTTP"),
		Tags:         resourceTags(args.Tags, name+"-http"),
	}, parent)
	if err != nil {
		return nil, err
	}

	functionNames := args.FunctionNames.ToStringMapOutput()
	invokeArns := args.InvokeArns.ToStringMapOutput()

	permitted := map[string]bool{}
	for _, route := range args.Spec.Routes {
		slug := routeSlug(route)

		// The handlers consume the v1 proxy shape (httpMethod, path, body),
		// so the integrations must deliver 1.0 events.
		integration, err := apigatewayv2.NewIntegration(ctx, fmt.Sprintf("%s-%s", name, slug), &apigatewayv2.IntegrationArgs{
			ApiId:                api.ID(),
			IntegrationType:      pulumi.String("AWS_PROXY"),
			IntegrationUri:       invokeArns.MapIndex(pulumi.String(route.Function)),
			IntegrationMethod:    pulumi.String("POST"),
			PayloadFormatVersion: pulumi.String("1.0"),
		}, parent)
		if err != nil {
			return nil, err
		}

		if _, err := apigatewayv2.NewRoute(ctx, fmt.Sprintf("%s-%s-route", name, slug), &apigatewayv2.RouteArgs{
			ApiId:    api.ID(),
			RouteKey: pulumi.Sprintf("%s %s", strings.ToUpper(route.Method), route.Path),
			Target:   pulumi.Sprintf("integrations/%s", integration.ID()),
		}, parent); err != nil {
			return nil, err
		}

		if !permitted[route.Function] {
			permitted[route.Function] = true
			if _, err := lambda.NewPermission(ctx, fmt.Sprintf("%s-%s-invoke", name, route.Function), &lambda.PermissionArgs{
				Action:    pulumi.String("lambda:InvokeFunction"),
				Function:  functionNames.MapIndex(pulumi.String(route.Function)),
				Principal: pulumi.String("apigateway.amazonaws.com"),
				SourceArn: pulumi.Sprintf("%s/*/*", api.ExecutionArn),
			}, parent); err != nil {
				return nil, err
			}
		}
	}

	stage, err := apigatewayv2.NewStage(ctx, fmt.Sprintf("%s-%s", name, args.Spec.StageName), &apigatewayv2.StageArgs{
		ApiId:      api.ID(),
		Name:       pulumi.String(args.Spec.StageName),
		AutoDeploy: pulumi.Bool(true),
		Tags:       resourceTags(args.Tags, fmt.Sprintf("%s-%s", name, args.Spec.StageName)),
	}, parent)
	if err != nil {
		return nil, err
	}

	comp.ApiId = api.ID().ToStringOutput()
	comp.ApiEndpoint = stage.InvokeUrl

	if err := ctx.RegisterResourceOutputs(comp, pulumi.Map{
		"apiId":       comp.ApiId,
		"apiEndpoint": comp.ApiEndpoint,
	}); err != nil {
		return nil, err
	}
	return comp, nil
}

// routeSlug turns "GET /items/{id}" into a name-safe fragment.
func routeSlug(route envspec.Route) string {
	path := strings.NewReplacer("/", "-", "{", "", "}", "").Replace(strings.Trim(route.Path, "/"))
	if path == "" {
		path = "root"
	}
	return strings.ToLower(route.Method) + "-" + path
}
