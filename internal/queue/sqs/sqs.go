// Package sqs implements queue.Consumer on Amazon SQS.
package sqs

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/leadworks/leadgate/internal/queue"
)

const (
	maxBatch          = 10
	waitTime          = 5 * time.Second
	visibilityTimeout = 30 * time.Second
)

// Config carries the connection settings for one SQS queue. AccessKey and
// SecretKey may be empty, in which case the SDK's default credential chain
// applies. Endpoint overrides the service URL for localstack-style testing.
type Config struct {
	QueueURL  string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

type Consumer struct {
	client   *awssqs.Client
	queueURL string
}

func New(ctx context.Context, cfg Config) (*Consumer, error) {
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("sqs: queue url is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sqs: load aws config: %w", err)
	}

	client := awssqs.NewFromConfig(awsCfg, func(o *awssqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Consumer{client: client, queueURL: cfg.QueueURL}, nil
}

// Receive long-polls for up to waitTime and returns at most maxBatch
// deliveries. Received messages stay invisible to other consumers for
// visibilityTimeout.
func (c *Consumer) Receive(ctx context.Context) ([]queue.Delivery, error) {
	out, err := c.client.ReceiveMessage(ctx, &awssqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: maxBatch,
		WaitTimeSeconds:     int32(waitTime / time.Second),
		VisibilityTimeout:   int32(visibilityTimeout / time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("sqs: receive: %w", err)
	}

	now := time.Now().UTC()
	deliveries := make([]queue.Delivery, 0, len(out.Messages))
	for _, m := range out.Messages {
		deliveries = append(deliveries, queue.Delivery{
			MessageID:     aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          []byte(aws.ToString(m.Body)),
			Received:      now,
		})
	}
	return deliveries, nil
}

func (c *Consumer) Delete(ctx context.Context, d queue.Delivery) error {
	_, err := c.client.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(d.ReceiptHandle),
	})
	if err != nil {
		return fmt.Errorf("sqs: delete %s: %w", d.MessageID, err)
	}
	return nil
}

// Release leaves the message undeleted; SQS redelivers it once the
// visibilityTimeout lapses. The window doubles as the retry delay, so a
// failing dependency is probed every 30s rather than in a tight loop.
func (c *Consumer) Release(ctx context.Context, d queue.Delivery) error {
	return nil
}

func (c *Consumer) Close() error { return nil }
