package launch

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"text/template"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// EC2API is the part of the EC2 client used to submit jobs
type EC2API interface {
	RequestSpotInstances(ctx context.Context,
		params *ec2.RequestSpotInstancesInput,
		optFns ...func(*ec2.Options)) (*ec2.RequestSpotInstancesOutput, error)
	CreateTags(ctx context.Context, params *ec2.CreateTagsInput,
		optFns ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error)
}

// EC2Submitter submits each job as a one-time spot instance request
// whose user data runs the job in Docker and syncs its data to S3
type EC2Submitter struct {
	Settings
	client EC2API
}

// NewEC2Submitter returns a new EC2Submitter using client
func NewEC2Submitter(s Settings, client EC2API) *EC2Submitter {
	return &EC2Submitter{Settings: s, client: client}
}

var userData = template.Must(template.New("user-data").Parse(`#!/bin/bash
{
die() { status=$1; shift; echo "FATAL: $*"; exit $status; }
EC2_INSTANCE_ID="$(wget -q -O - http://169.254.169.254/latest/meta-data/instance-id)"
aws ec2 create-tags --resources $EC2_INSTANCE_ID --tags Key=Name,Value={{.Name}} --region {{.Region}}
aws ec2 create-tags --resources $EC2_INSTANCE_ID --tags Key=exp_prefix,Value={{.Prefix}} --region {{.Region}}
service docker start
docker --config /home/ubuntu/.docker pull {{.Image}}
mkdir -p {{.LogDir}}
{{- if .SyncInterval}}
while /bin/true; do
    aws s3 sync --exclude '*' --include '*.csv' --include '*.json'{{if .SyncPKL}} --include '*.gob'{{end}}{{if .SyncLog}} --include '*.log'{{end}} {{.LogDir}} {{.S3Path}}
    sleep {{.SyncInterval}}
done &
{{- end}}
{{- if .SyncOnTermination}}
while /bin/true; do
    if [ -z $(curl -Is http://169.254.169.254/latest/meta-data/spot/termination-time | head -1 | grep 404 | cut -d \  -f 2) ]; then
        aws s3 cp /home/ubuntu/user_data.log {{.S3Path}}/stdout.log
        break
    fi
    sleep 5
done &
{{- end}}
docker run -v {{.LogDir}}:{{.LogDir}} --rm {{.Image}} /bin/bash -c {{.Command}}
{{- if .SyncAll}}
aws s3 cp --recursive {{.LogDir}} {{.S3Path}}
{{- end}}
aws s3 cp /home/ubuntu/user_data.log {{.S3Path}}/stdout.log
{{- if .Terminate}}
EC2_INSTANCE_ID="$(wget -q -O - http://169.254.169.254/latest/meta-data/instance-id || die "wget instance-id has failed: $?")"
aws ec2 terminate-instances --instance-ids $EC2_INSTANCE_ID --region {{.Region}}
{{- end}}
} >> /home/ubuntu/user_data.log 2>&1
`))

// UserData returns the script run by the instance of job
func (e *EC2Submitter) UserData(job Job) (string, error) {
	logDir := path.Join(e.DockerLogDir, job.Path())
	command, err := e.Command(job, logDir)
	if err != nil {
		return "", fmt.Errorf("userData: %w", err)
	}

	interval := 0
	if job.SyncS3PKL || job.SyncS3Log {
		interval = int(job.PeriodicSyncInterval.Seconds())
		if interval <= 0 {
			interval = 15
		}
	}

	var buf bytes.Buffer
	err = userData.Execute(&buf, map[string]interface{}{
		"Name":              job.ExpName,
		"Prefix":            job.ExpPrefix,
		"Region":            e.AWSRegion,
		"Image":             e.DockerImage,
		"LogDir":            logDir,
		"S3Path":            e.S3LogDir + "/" + job.Path(),
		"SyncInterval":      interval,
		"SyncPKL":           job.SyncS3PKL,
		"SyncLog":           job.SyncS3Log,
		"SyncOnTermination": job.SyncLogOnTermination,
		"SyncAll":           job.SyncAllDataToS3,
		"Terminate":         job.TerminateMachine,
		"Command":           shellJoin([]string{shellJoin(command)}),
	})
	if err != nil {
		return "", fmt.Errorf("userData: %w", err)
	}
	return buf.String(), nil
}

// SpotRequest returns the spot instance request that runs job
func (e *EC2Submitter) SpotRequest(job Job) (*ec2.RequestSpotInstancesInput,
	error) {
	price, err := e.SpotPrice()
	if err != nil {
		return nil, fmt.Errorf("spotRequest: %w", err)
	}
	subnet, err := e.Catalogue.Subnet(e.Subnet)
	if err != nil {
		return nil, fmt.Errorf("spotRequest: %w", err)
	}
	script, err := e.UserData(job)
	if err != nil {
		return nil, fmt.Errorf("spotRequest: %w", err)
	}

	return &ec2.RequestSpotInstancesInput{
		InstanceCount: aws.Int32(1),
		SpotPrice:     aws.String(price),
		Type:          types.SpotInstanceTypeOneTime,
		LaunchSpecification: &types.RequestSpotLaunchSpecification{
			ImageId:      aws.String(e.AWSImageID),
			InstanceType: types.InstanceType(e.InstanceType),
			KeyName:      aws.String(e.AWSKeyName),
			UserData: aws.String(base64.StdEncoding.EncodeToString(
				[]byte(script))),
			IamInstanceProfile: &types.IamInstanceProfileSpecification{
				Name: aws.String(e.AWSInstanceProfile),
			},
			NetworkInterfaces: []types.InstanceNetworkInterfaceSpecification{
				{
					SubnetId:                 aws.String(subnet.SubnetID),
					Groups:                   subnet.Groups,
					DeviceIndex:              aws.Int32(0),
					AssociatePublicIpAddress: aws.Bool(true),
				},
			},
		},
	}, nil
}

// Submit implements the Submitter interface
func (e *EC2Submitter) Submit(ctx context.Context, job Job) error {
	input, err := e.SpotRequest(job)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	logger := e.logger().With("exp_name", job.ExpName)
	if job.Dry {
		logger.Info("spot request", "instance_type", e.InstanceType,
			"price", aws.ToString(input.SpotPrice), "dry", true)
		return nil
	}

	out, err := e.client.RequestSpotInstances(ctx, input)
	if err != nil {
		return fmt.Errorf("submit: could not request spot instance: %w", err)
	}
	if len(out.SpotInstanceRequests) == 0 {
		return fmt.Errorf("submit: no spot instance request was made")
	}
	id := aws.ToString(out.SpotInstanceRequests[0].SpotInstanceRequestId)
	logger.Info("spot request", "id", id, "instance_type", e.InstanceType,
		"price", aws.ToString(input.SpotPrice))

	_, err = e.client.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{id},
		Tags: []types.Tag{
			{Key: aws.String("Name"), Value: aws.String(job.ExpName)},
			{Key: aws.String("exp_prefix"), Value: aws.String(job.ExpPrefix)},
		},
	})
	if err != nil {
		return fmt.Errorf("submit: could not tag spot request %v: %w", id, err)
	}
	return nil
}
