package infra

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/tapstack/tapstack/pkg/envspec"
)

type (
	NetworkArgs struct {
		Spec    envspec.Network
		AzNames []string
		Tags    map[string]string
	}

	// Network is the VPC layer: one public and one private subnet per AZ,
	// an internet gateway for the public half, and the shared security
	// group the compute layer attaches to.
	Network struct {
		pulumi.ResourceState

		VpcId            pulumi.StringOutput      `pulumi:"vpcId"`
		PublicSubnetIds  pulumi.StringArrayOutput `pulumi:"publicSubnetIds"`
		PrivateSubnetIds pulumi.StringArrayOutput `pulumi:"privateSubnetIds"`
		SecurityGroupId  pulumi.StringOutput      `pulumi:"securityGroupId"`
	}
)

func NewNetwork(ctx *pulumi.Context, name string, args *NetworkArgs, opts ...pulumi.ResourceOption) (*Network, error) {
	comp := &Network{}
	if err := ctx.RegisterComponentResource("tapstack:index:Network", name, comp, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(comp)

	azCount := len(args.AzNames)
	if args.Spec.MaxAZs > 0 && azCount > args.Spec.MaxAZs {
		azCount = args.Spec.MaxAZs
	}
	if azCount == 0 {
		return nil, fmt.Errorf("network %s: no availability zones to place subnets in", name)
	}

	// Public subnets take the first azCount blocks, private the next azCount.
	cidrs, err := SubnetCIDRs(args.Spec.CidrBlock, args.Spec.SubnetBits, 2*azCount)
	if err != nil {
		return nil, err
	}

	vpc, err := ec2.NewVpc(ctx, name+"-vpc", &ec2.VpcArgs{
		CidrBlock:          pulumi.String(args.Spec.CidrBlock),
		EnableDnsHostnames: pulumi.Bool(true),
		EnableDnsSupport:   pulumi.Bool(true),
		Tags:               resourceTags(args.Tags, name+"-vpc"),
	}, parent)
	if err != nil {
		return nil, err
	}

	igw, err := ec2.NewInternetGateway(ctx, name+"-igw", &ec2.InternetGatewayArgs{
		VpcId: vpc.ID(),
		Tags:  resourceTags(args.Tags, name+"-igw"),
	}, parent)
	if err != nil {
		return nil, err
	}

	publicRt, err := ec2.NewRouteTable(ctx, name+"-public-rt", &ec2.RouteTableArgs{
		VpcId: vpc.ID(),
		Tags:  resourceTags(args.Tags, name+"-public-rt"),
	}, parent)
	if err != nil {
		return nil, err
	}
	if _, err := ec2.NewRoute(ctx, name+"-public-route", &ec2.RouteArgs{
		RouteTableId:         publicRt.ID(),
		DestinationCidrBlock: pulumi.String("0.0.0.0/0"),
		GatewayId:            igw.ID(),
	}, parent); err != nil {
		return nil, err
	}

	privateRt, err := ec2.NewRouteTable(ctx, name+"-private-rt", &ec2.RouteTableArgs{
		VpcId: vpc.ID(),
		Tags:  resourceTags(args.Tags, name+"-private-rt"),
	}, parent)
	if err != nil {
		return nil, err
	}

	publicIds := pulumi.StringArray{}
	privateIds := pulumi.StringArray{}
	for i := 0; i < azCount; i++ {
		az := args.AzNames[i]

		public, err := ec2.NewSubnet(ctx, fmt.Sprintf("%s-public-%d", name, i), &ec2.SubnetArgs{
			VpcId:               vpc.ID(),
			CidrBlock:           pulumi.String(cidrs[i]),
			AvailabilityZone:    pulumi.String(az),
			MapPublicIpOnLaunch: pulumi.Bool(true),
			Tags:                resourceTags(args.Tags, fmt.Sprintf("%s-public-%d", name, i)),
		}, parent)
		if err != nil {
			return nil, err
		}
		if _, err := ec2.NewRouteTableAssociation(ctx, fmt.Sprintf("%s-public-rta-%d", name, i), &ec2.RouteTableAssociationArgs{
			SubnetId:     public.ID(),
			RouteTableId: publicRt.ID(),
		}, parent); err != nil {
			return nil, err
		}
		publicIds = append(publicIds, public.ID().ToStringOutput())

		private, err := ec2.NewSubnet(ctx, fmt.Sprintf("%s-private-%d", name, i), &ec2.SubnetArgs{
			VpcId:            vpc.ID(),
			CidrBlock:        pulumi.String(cidrs[azCount+i]),
			AvailabilityZone: pulumi.String(az),
			Tags:             resourceTags(args.Tags, fmt.Sprintf("%s-private-%d", name, i)),
		}, parent)
		if err != nil {
			return nil, err
		}
		if _, err := ec2.NewRouteTableAssociation(ctx, fmt.Sprintf("%s-private-rta-%d", name, i), &ec2.RouteTableAssociationArgs{
			SubnetId:     private.ID(),
			RouteTableId: privateRt.ID(),
		}, parent); err != nil {
			return nil, err
		}
		privateIds = append(privateIds, private.ID().ToStringOutput())
	}

	ingress := ec2.SecurityGroupIngressArray{}
	for _, port := range args.Spec.PublicIngressPorts {
		ingress = append(ingress, ec2.SecurityGroupIngressArgs{
			FromPort:   pulumi.Int(port),
			ToPort:     pulumi.Int(port),
			Protocol:   pulumi.String("tcp"),
			CidrBlocks: pulumi.StringArray{pulumi.String("0.0.0.0/0")},
		})
	}
	sg, err := ec2.NewSecurityGroup(ctx, name+"-sg", &ec2.SecurityGroupArgs{
		VpcId:       vpc.ID(),
		Description: pulumi.String("application security group"),
		Ingress:     ingress,
		Egress: ec2.SecurityGroupEgressArray{
			ec2.SecurityGroupEgressArgs{
				FromPort:   pulumi.Int(0),
				ToPort:     pulumi.Int(0),
				Protocol:   pulumi.String("-1"),
				CidrBlocks: pulumi.StringArray{pulumi.String("0.0.0.0/0")},
			},
		},
		Tags: resourceTags(args.Tags, name+"-sg"),
	}, parent)
	if err != nil {
		return nil, err
	}

	comp.VpcId = vpc.ID().ToStringOutput()
	comp.PublicSubnetIds = publicIds.ToStringArrayOutput()
	comp.PrivateSubnetIds = privateIds.ToStringArrayOutput()
	comp.SecurityGroupId = sg.ID().ToStringOutput()

	if err := ctx.RegisterResourceOutputs(comp, pulumi.Map{
		"vpcId":            comp.VpcId,
		"publicSubnetIds":  comp.PublicSubnetIds,
		"privateSubnetIds": comp.PrivateSubnetIds,
		"securityGroupId":  comp.SecurityGroupId,
	}); err != nil {
		return nil, err
	}
	return comp, nil
}
