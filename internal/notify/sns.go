// Package notify publishes terminal pipeline envelopes.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"offer-crew/internal/common/errors"
	"offer-crew/internal/common/logger"
	"offer-crew/internal/models"
)

const channelSNS = "sns"

// Publisher is the part of *sns.Client the notifier uses.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSNotifier struct {
	publisher Publisher
	topicARN  string
	logger    logger.Logger
}

func NewSNSNotifier(publisher Publisher, topicARN string, log logger.Logger) *SNSNotifier {
	return &SNSNotifier{publisher: publisher, topicARN: topicARN, logger: log}
}

// NewSNSClient builds an SNS client from the default AWS credential chain.
func NewSNSClient(ctx context.Context, region string) (*sns.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sns.NewFromConfig(cfg), nil
}

// Notify publishes env as JSON with status and tenantName message attributes.
func (n *SNSNotifier) Notify(ctx context.Context, tenantName string, env *models.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return errors.NewNotificationFailedError(channelSNS, err)
	}

	attrs := map[string]types.MessageAttributeValue{
		"status": {DataType: aws.String("String"), StringValue: aws.String(env.Status)},
	}
	if tenantName != "" {
		attrs["tenantName"] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(tenantName)}
	}

	out, err := n.publisher.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(n.topicARN),
		Message:           aws.String(string(body)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return errors.NewNotificationFailedError(channelSNS, err)
	}

	n.logger.Debug("Published run notification", map[string]interface{}{
		"runId":     env.RunID,
		"status":    env.Status,
		"messageId": aws.ToString(out.MessageId),
	})
	return nil
}
