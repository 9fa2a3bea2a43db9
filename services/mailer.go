package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"
)

// Mailer delivers account e-mails.
type Mailer interface {
	SendResetCode(ctx context.Context, to, code string) error
}

type sesAPI interface {
	SendEmail(ctx context.Context, in *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESMailer struct {
	client sesAPI
	from   string
}

func NewSESMailer(ctx context.Context, region, from string) (*SESMailer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("AWS config load failed: %w", err)
	}
	return &SESMailer{client: ses.NewFromConfig(cfg), from: from}, nil
}

func (m *SESMailer) send(ctx context.Context, to, subject, body string) error {
	_, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body:    &types.Body{Text: &types.Content{Data: aws.String(body)}},
		},
		Source: aws.String(m.from),
	})
	if err != nil {
		return fmt.Errorf("email send failed: %w", err)
	}
	return nil
}

func (m *SESMailer) SendResetCode(ctx context.Context, to, code string) error {
	body := fmt.Sprintf("Your password reset code is: %s\n\nIt expires in 15 minutes.", code)
	return m.send(ctx, to, "Password Reset Code", body)
}

// LogMailer writes mails to the log; used when SES is not configured.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer { return &LogMailer{log: log} }

func (m *LogMailer) SendResetCode(_ context.Context, to, code string) error {
	m.log.Info("password reset code", zap.String("to", to), zap.String("code", code))
	return nil
}
