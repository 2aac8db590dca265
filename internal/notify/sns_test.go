package notify

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"offer-crew/internal/common/errors"
	"offer-crew/internal/common/logger"
	"offer-crew/internal/models"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sns.PublishOutput)
	return out, args.Error(1)
}

const topic = "arn:aws:sns:eu-west-1:123456789012:offer-runs"

func TestSNSNotifier_Completed(t *testing.T) {
	pub := &mockPublisher{}
	env := models.NewCompletedEnvelope("r1", "Acme", &models.OfferAnalysisResponse{
		RecommendedOffer: map[string]interface{}{"price": "9"},
	})

	pub.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		var got models.Envelope
		if err := json.Unmarshal([]byte(aws.ToString(in.Message)), &got); err != nil {
			return false
		}
		return aws.ToString(in.TopicArn) == topic &&
			got.RunID == "r1" &&
			aws.ToString(in.MessageAttributes["status"].StringValue) == models.StatusCompleted &&
			aws.ToString(in.MessageAttributes["tenantName"].StringValue) == "Acme"
	})).Return(&sns.PublishOutput{MessageId: aws.String("m-1")}, nil)

	n := NewSNSNotifier(pub, topic, logger.NewTestLogger(t))
	require.NoError(t, n.Notify(context.Background(), "Acme", env))
	pub.AssertExpectations(t)
}

func TestSNSNotifier_FailedWithoutTenant(t *testing.T) {
	pub := &mockPublisher{}
	env := models.NewFailedEnvelope("r2", "Search returned no results", "EMPTY_SEARCH_RESULTS", "search")

	pub.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		_, hasTenant := in.MessageAttributes["tenantName"]
		return !hasTenant && aws.ToString(in.MessageAttributes["status"].StringValue) == models.StatusFailed
	})).Return(&sns.PublishOutput{}, nil)

	n := NewSNSNotifier(pub, topic, logger.NewTestLogger(t))
	require.NoError(t, n.Notify(context.Background(), "", env))
	pub.AssertExpectations(t)
}

func TestSNSNotifier_PublishError(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil, stderrors.New("throttled"))

	n := NewSNSNotifier(pub, topic, logger.NewTestLogger(t))
	err := n.Notify(context.Background(), "Acme", models.NewFailedEnvelope("r3", "boom", "INTERNAL_ERROR", ""))

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotificationFailed, errors.CodeOf(err))
}
