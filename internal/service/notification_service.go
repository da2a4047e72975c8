package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidyalayaone/profile-api/pkg/config"
	"github.com/vidyalayaone/profile-api/pkg/jobs"
	"github.com/vidyalayaone/profile-api/pkg/mailer"
)

// CredentialsEmail is the payload of the post-provisioning notification.
// The password exists only here and in the rendered mail body.
type CredentialsEmail struct {
	Recipient string
	FullName  string
	Username  string
	Password  string
}

// NotificationService sends credential emails on a best-effort basis. The
// send runs on a background worker with a bounded timeout; failures are
// logged with recipient and reason but never returned to the caller and
// never include the password.
type NotificationService struct {
	mailer  mailer.Mailer
	queue   *jobs.Queue
	logger  *zap.Logger
	metrics *MetricsService
	enabled bool
}

// NewNotificationService constructs the dispatcher. Start must be called
// before notifications are accepted.
func NewNotificationService(m mailer.Mailer, cfg config.NotificationsConfig, logger *zap.Logger, metrics *MetricsService) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		mailer:  m,
		logger:  logger,
		metrics: metrics,
		enabled: cfg.Enabled,
	}
	// MaxRetries 0: a credential mail is attempted exactly once per request.
	s.queue = jobs.NewQueue("credential-mail", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: 0,
		JobTimeout: cfg.SendTimeout,
		Logger:     logger,
	})
	return s
}

// Start launches the worker pool.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// NotifyCredentials queues the credentials email. It never fails the
// caller: enqueue errors are swallowed after logging.
func (s *NotificationService) NotifyCredentials(email CredentialsEmail) {
	if !s.enabled {
		s.logger.Info("credential notification disabled, skipping", zap.String("recipient", email.Recipient))
		return
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "student_credentials",
		Payload: email,
	})
	if err != nil {
		s.metrics.RecordNotification(false)
		s.logger.Error("failed to queue credential notification",
			zap.String("recipient", email.Recipient),
			zap.Error(err),
		)
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	email, ok := job.Payload.(CredentialsEmail)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}

	msg := mailer.Message{
		To:      email.Recipient,
		Subject: "Your student account credentials",
		HTML:    renderCredentialsBody(email),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.metrics.RecordNotification(false)
		s.logger.Error("failed to send credential email",
			zap.String("recipient", email.Recipient),
			zap.String("reason", err.Error()),
		)
		return nil
	}
	s.metrics.RecordNotification(true)
	s.logger.Info("credential email sent", zap.String("recipient", email.Recipient))
	return nil
}

func renderCredentialsBody(email CredentialsEmail) string {
	return fmt.Sprintf(`<html><body>
<p>Hello %s,</p>
<p>Your student account has been created. Use the credentials below to sign in and change your password on first login.</p>
<p>Username: <b>%s</b><br>Password: <b>%s</b></p>
<p>If you did not expect this email, contact your school administrator.</p>
</body></html>`, email.FullName, email.Username, email.Password)
}
