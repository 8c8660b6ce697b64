package check

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/tapstack/tapstack/pkg/envspec"
)

// Narrow describe-side interfaces, one method per assertion we make.
type (
	EC2Client interface {
		DescribeVpcs(ctx context.Context, params *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
		DescribeSubnets(ctx context.Context, params *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
	}

	DynamoDBClient interface {
		DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	}

	S3Client interface {
		GetBucketVersioning(ctx context.Context, params *s3.GetBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error)
	}

	LambdaClient interface {
		GetFunctionConfiguration(ctx context.Context, params *lambda.GetFunctionConfigurationInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionConfigurationOutput, error)
	}

	Checker struct {
		EC2    EC2Client
		DDB    DynamoDBClient
		S3     S3Client
		Lambda LambdaClient
		HTTP   *http.Client
		Log    *zap.Logger

		// HealthPath is appended to the API endpoint for the reachability
		// check. Default /health.
		HealthPath string
	}

	Result struct {
		Check string `json:"check"`
		Err   string `json:"error,omitempty"`
	}

	Report struct {
		Results []Result `json:"results"`
	}
)

var (
	_ EC2Client      = (*ec2.Client)(nil)
	_ DynamoDBClient = (*dynamodb.Client)(nil)
	_ S3Client       = (*s3.Client)(nil)
	_ LambdaClient   = (*lambda.Client)(nil)
)

func (r Report) Ok() bool {
	for _, res := range r.Results {
		if res.Err != "" {
			return false
		}
	}
	return true
}

func (r Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if res.Err != "" {
			failed = append(failed, res)
		}
	}
	return failed
}

// Run executes every check the environment calls for. Checks are independent;
// all of them run and all failures land in the report.
func (c *Checker) Run(ctx context.Context, env envspec.Environment, outputs StackOutputs) Report {
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}

	var results []Result
	record := func(name string, err error) {
		if err != nil {
			log.Warn("check failed", zap.String("check", name), zap.Error(err))
			results = append(results, Result{Check: name, Err: err.Error()})
			return
		}
		log.Debug("check passed", zap.String("check", name))
		results = append(results, Result{Check: name})
	}

	record("vpc", c.checkVpc(ctx, env, outputs))
	record("subnets", c.checkSubnets(ctx, outputs))

	tables, err := outputs.StringMap("TableNames")
	if err != nil && len(env.Storage.Tables) > 0 {
		record("tables", err)
	} else {
		for _, table := range env.Storage.Tables {
			record("table/"+table.Name, c.checkTable(ctx, table, tables[table.Name]))
		}
	}

	buckets, err := outputs.StringMap("BucketNames")
	if err != nil && len(env.Storage.Buckets) > 0 {
		record("buckets", err)
	} else {
		for _, bucket := range env.Storage.Buckets {
			record("bucket/"+bucket.Name, c.checkBucket(ctx, bucket, buckets[bucket.Name]))
		}
	}

	functions, err := outputs.StringMap("FunctionNames")
	if err != nil && len(env.Compute.Functions) > 0 {
		record("functions", err)
	} else {
		for _, fn := range env.Compute.Functions {
			record("function/"+fn.Name, c.checkFunction(ctx, fn, functions[fn.Name]))
		}
	}

	if len(env.Api.Routes) > 0 {
		record("api", c.checkApi(ctx, outputs))
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Check < results[j].Check })
	return Report{Results: results}
}

func (c *Checker) checkVpc(ctx context.Context, env envspec.Environment, outputs StackOutputs) error {
	vpcID, err := outputs.String("VpcId")
	if err != nil {
		return err
	}
	out, err := c.EC2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{vpcID}})
	if err != nil {
		return fmt.Errorf("describe vpc %s: %w", vpcID, err)
	}
	if len(out.Vpcs) != 1 {
		return fmt.Errorf("vpc %s not found", vpcID)
	}
	if cidr := aws.ToString(out.Vpcs[0].CidrBlock); cidr != env.Network.CidrBlock {
		return fmt.Errorf("vpc %s has cidr %s, expected %s", vpcID, cidr, env.Network.CidrBlock)
	}
	return nil
}

func (c *Checker) checkSubnets(ctx context.Context, outputs StackOutputs) error {
	publicIds, err := outputs.Strings("PublicSubnetIds")
	if err != nil {
		return err
	}
	privateIds, err := outputs.Strings("PrivateSubnetIds")
	if err != nil {
		return err
	}
	if len(publicIds) != len(privateIds) {
		return fmt.Errorf("expected matching public/private subnet counts, got %d public and %d private", len(publicIds), len(privateIds))
	}

	assertSplit := func(ids []string, wantPublic bool) error {
		out, err := c.EC2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{SubnetIds: ids})
		if err != nil {
			return fmt.Errorf("describe subnets: %w", err)
		}
		if len(out.Subnets) != len(ids) {
			return fmt.Errorf("expected %d subnets, found %d", len(ids), len(out.Subnets))
		}
		for _, subnet := range out.Subnets {
			if aws.ToBool(subnet.MapPublicIpOnLaunch) != wantPublic {
				return fmt.Errorf("subnet %s has MapPublicIpOnLaunch=%t, expected %t",
					aws.ToString(subnet.SubnetId), aws.ToBool(subnet.MapPublicIpOnLaunch), wantPublic)
			}
		}
		return nil
	}

	if err := assertSplit(publicIds, true); err != nil {
		return err
	}
	return assertSplit(privateIds, false)
}

func (c *Checker) checkTable(ctx context.Context, table envspec.Table, physical string) error {
	if physical == "" {
		return fmt.Errorf("no deployed table recorded for %q", table.Name)
	}
	out, err := c.DDB.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(physical)})
	if err != nil {
		return fmt.Errorf("describe table %s: %w", physical, err)
	}
	if out.Table.TableStatus != ddbtypes.TableStatusActive {
		return fmt.Errorf("table %s is %s, expected ACTIVE", physical, out.Table.TableStatus)
	}

	// DescribeTable omits the billing summary for provisioned tables.
	mode := string(ddbtypes.BillingModeProvisioned)
	if out.Table.BillingModeSummary != nil {
		mode = string(out.Table.BillingModeSummary.BillingMode)
	}
	if mode != table.BillingMode {
		return fmt.Errorf("table %s has billing mode %s, expected %s", physical, mode, table.BillingMode)
	}
	return nil
}

func (c *Checker) checkBucket(ctx context.Context, bucket envspec.Bucket, physical string) error {
	if physical == "" {
		return fmt.Errorf("no deployed bucket recorded for %q", bucket.Name)
	}
	out, err := c.S3.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{Bucket: aws.String(physical)})
	if err != nil {
		return fmt.Errorf("get bucket versioning %s: %w", physical, err)
	}
	versioned := out.Status == s3types.BucketVersioningStatusEnabled
	if versioned != bucket.Versioned {
		return fmt.Errorf("bucket %s versioning enabled=%t, expected %t", physical, versioned, bucket.Versioned)
	}
	return nil
}

func (c *Checker) checkFunction(ctx context.Context, fn envspec.Function, physical string) error {
	if physical == "" {
		return fmt.Errorf("no deployed function recorded for %q", fn.Name)
	}
	out, err := c.Lambda.GetFunctionConfiguration(ctx, &lambda.GetFunctionConfigurationInput{
		FunctionName: aws.String(physical),
	})
	if err != nil {
		return fmt.Errorf("get function configuration %s: %w", physical, err)
	}
	if out.State != lambdatypes.StateActive {
		return fmt.Errorf("function %s is %s, expected Active", physical, out.State)
	}
	if got := int(aws.ToInt32(out.MemorySize)); got != fn.MemoryMB {
		return fmt.Errorf("function %s has %d MB memory, expected %d", physical, got, fn.MemoryMB)
	}
	if got := int(aws.ToInt32(out.Timeout)); got != fn.TimeoutSec {
		return fmt.Errorf("function %s has %ds timeout, expected %ds", physical, got, fn.TimeoutSec)
	}
	return nil
}

func (c *Checker) checkApi(ctx context.Context, outputs StackOutputs) error {
	endpoint, err := outputs.String("ApiEndpoint")
	if err != nil {
		return err
	}
	healthPath := c.HealthPath
	if healthPath == "" {
		healthPath = "/health"
	}
	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+healthPath, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("api %s unreachable: %w", endpoint, err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api %s%s answered %d, expected 200", endpoint, healthPath, resp.StatusCode)
	}
	return nil
}
