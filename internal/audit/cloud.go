package audit

import (
	"context"
	"fmt"

	"cloud.google.com/go/logging"
	"google.golang.org/api/option"
)

// CloudSink writes structured entries to Google Cloud Logging.
type CloudSink struct {
	client *logging.Client
	logger *logging.Logger
}

// NewCloudSink creates a Cloud Logging client for projectID. A non-empty
// credentialsFile overrides application default credentials.
func NewCloudSink(ctx context.Context, projectID, credentialsFile string) (*CloudSink, error) {
	if projectID == "" {
		return nil, fmt.Errorf("cloud audit sink: project id required")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := logging.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating cloud logging client: %w", err)
	}
	return &CloudSink{client: client, logger: client.Logger(LoggerName)}, nil
}

// Write buffers the entry; it is delivered in the background and on Close.
func (s *CloudSink) Write(_ context.Context, e Entry) error {
	s.logger.Log(logging.Entry{Severity: logging.Info, Payload: e})
	return nil
}

// Close flushes buffered entries and closes the client.
func (s *CloudSink) Close() error {
	if err := s.logger.Flush(); err != nil {
		s.client.Close()
		return fmt.Errorf("flushing audit entries: %w", err)
	}
	return s.client.Close()
}
