// Package beanstalk adapts the AWS Elastic Beanstalk API to the deploy
// engine's host interface.
package beanstalk

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/elasticbeanstalk"
	"github.com/aws/aws-sdk-go-v2/service/elasticbeanstalk/types"
	"github.com/sirupsen/logrus"

	"github.com/manuelinfosec/ebdeploy/internal/deploy"
)

// API is the subset of the Elastic Beanstalk client used by Client.
type API interface {
	DescribeApplicationVersions(ctx context.Context, params *elasticbeanstalk.DescribeApplicationVersionsInput, optFns ...func(*elasticbeanstalk.Options)) (*elasticbeanstalk.DescribeApplicationVersionsOutput, error)
	CreateApplication(ctx context.Context, params *elasticbeanstalk.CreateApplicationInput, optFns ...func(*elasticbeanstalk.Options)) (*elasticbeanstalk.CreateApplicationOutput, error)
	CreateApplicationVersion(ctx context.Context, params *elasticbeanstalk.CreateApplicationVersionInput, optFns ...func(*elasticbeanstalk.Options)) (*elasticbeanstalk.CreateApplicationVersionOutput, error)
	CreateEnvironment(ctx context.Context, params *elasticbeanstalk.CreateEnvironmentInput, optFns ...func(*elasticbeanstalk.Options)) (*elasticbeanstalk.CreateEnvironmentOutput, error)
	UpdateEnvironment(ctx context.Context, params *elasticbeanstalk.UpdateEnvironmentInput, optFns ...func(*elasticbeanstalk.Options)) (*elasticbeanstalk.UpdateEnvironmentOutput, error)
	DescribeEnvironments(ctx context.Context, params *elasticbeanstalk.DescribeEnvironmentsInput, optFns ...func(*elasticbeanstalk.Options)) (*elasticbeanstalk.DescribeEnvironmentsOutput, error)
}

// Client implements deploy.Host.
type Client struct {
	API API
	Log logrus.FieldLogger
}

var _ deploy.Host = (*Client)(nil)

// NewClient creates an Elastic Beanstalk client for region using the
// default credential chain.
func NewClient(ctx context.Context, region string, log logrus.FieldLogger) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{API: elasticbeanstalk.NewFromConfig(cfg), Log: log}, nil
}

func (c *Client) DescribeApplicationVersions(ctx context.Context, application string, labels ...string) ([]deploy.VersionRecord, error) {
	in := &elasticbeanstalk.DescribeApplicationVersionsInput{
		ApplicationName: aws.String(application),
	}
	if len(labels) > 0 {
		in.VersionLabels = labels
	}

	out, err := c.API.DescribeApplicationVersions(ctx, in)
	if err != nil {
		return nil, err
	}

	records := make([]deploy.VersionRecord, 0, len(out.ApplicationVersions))
	for _, v := range out.ApplicationVersions {
		r := deploy.VersionRecord{
			ApplicationName: aws.ToString(v.ApplicationName),
			VersionLabel:    aws.ToString(v.VersionLabel),
			Status:          versionStatus(v.Status),
			CreatedAt:       aws.ToTime(v.DateCreated),
		}
		if v.SourceBundle != nil {
			r.SourceBundle = &deploy.Locator{
				Bucket: aws.ToString(v.SourceBundle.S3Bucket),
				Key:    aws.ToString(v.SourceBundle.S3Key),
			}
		}
		records = append(records, r)
	}
	return records, nil
}

func (c *Client) CreateApplication(ctx context.Context, application string) error {
	out, err := c.API.CreateApplication(ctx, &elasticbeanstalk.CreateApplicationInput{
		ApplicationName: aws.String(application),
	})
	if err != nil {
		return err
	}
	if out.Application != nil {
		c.Log.WithField("arn", aws.ToString(out.Application.ApplicationArn)).Debug("Application created")
	}
	return nil
}

func (c *Client) CreateApplicationVersion(ctx context.Context, application, label string, bundle deploy.Locator, process bool) error {
	out, err := c.API.CreateApplicationVersion(ctx, &elasticbeanstalk.CreateApplicationVersionInput{
		ApplicationName: aws.String(application),
		VersionLabel:    aws.String(label),
		Process:         aws.Bool(process),
		SourceBundle: &types.S3Location{
			S3Bucket: aws.String(bundle.Bucket),
			S3Key:    aws.String(bundle.Key),
		},
	})
	if err != nil {
		return err
	}
	if v := out.ApplicationVersion; v != nil {
		c.Log.WithFields(logrus.Fields{
			"label":  aws.ToString(v.VersionLabel),
			"status": string(v.Status),
		}).Debug("Application version created")
	}
	return nil
}

func (c *Client) CreateEnvironment(ctx context.Context, target deploy.Target, label string, settings []deploy.OptionSetting) error {
	opts := make([]types.ConfigurationOptionSetting, 0, len(settings))
	for _, s := range settings {
		opts = append(opts, types.ConfigurationOptionSetting{
			Namespace:  aws.String(s.Namespace),
			OptionName: aws.String(s.Name),
			Value:      aws.String(s.Value),
		})
	}

	out, err := c.API.CreateEnvironment(ctx, &elasticbeanstalk.CreateEnvironmentInput{
		ApplicationName:   aws.String(target.ApplicationName),
		EnvironmentName:   aws.String(target.EnvironmentName),
		VersionLabel:      aws.String(label),
		SolutionStackName: aws.String(target.SolutionStackName),
		OptionSettings:    opts,
	})
	if err != nil {
		return err
	}
	c.Log.WithFields(logrus.Fields{
		"environment_id": aws.ToString(out.EnvironmentId),
		"status":         string(out.Status),
	}).Debug("Environment created")
	return nil
}

func (c *Client) UpdateEnvironment(ctx context.Context, application, environment, label string) error {
	out, err := c.API.UpdateEnvironment(ctx, &elasticbeanstalk.UpdateEnvironmentInput{
		ApplicationName: aws.String(application),
		EnvironmentName: aws.String(environment),
		VersionLabel:    aws.String(label),
	})
	if err != nil {
		return err
	}
	c.Log.WithFields(logrus.Fields{
		"environment_id": aws.ToString(out.EnvironmentId),
		"status":         string(out.Status),
	}).Debug("Environment update started")
	return nil
}

func (c *Client) DescribeEnvironments(ctx context.Context, environments ...string) ([]deploy.EnvironmentRecord, error) {
	out, err := c.API.DescribeEnvironments(ctx, &elasticbeanstalk.DescribeEnvironmentsInput{
		EnvironmentNames: environments,
	})
	if err != nil {
		return nil, err
	}

	records := make([]deploy.EnvironmentRecord, 0, len(out.Environments))
	for _, e := range out.Environments {
		records = append(records, deploy.EnvironmentRecord{
			EnvironmentName: aws.ToString(e.EnvironmentName),
			ApplicationName: aws.ToString(e.ApplicationName),
			VersionLabel:    aws.ToString(e.VersionLabel),
			Status:          deploy.EnvironmentStatus(e.Status),
			Health:          string(e.Health),
			CNAME:           aws.ToString(e.CNAME),
		})
	}
	return records, nil
}

// versionStatus collapses host version statuses into the engine's lifecycle.
func versionStatus(s types.ApplicationVersionStatus) deploy.VersionStatus {
	switch s {
	case types.ApplicationVersionStatusProcessed:
		return deploy.VersionProcessed
	case types.ApplicationVersionStatusFailed:
		return deploy.VersionFailed
	case types.ApplicationVersionStatusProcessing, types.ApplicationVersionStatusBuilding:
		return deploy.VersionProcessing
	default:
		return deploy.VersionPending
	}
}
