package transcriber

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/auth/credentials"
	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	videopb "cloud.google.com/go/videointelligence/apiv1/videointelligencepb"
	"github.com/pairloop/pairloop/internal/transcriber"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type VideoIntelligenceConfig struct {
	CredentialsJSON string
	Language        string
}

// VideoIntelligenceClient submits batch speech-transcription jobs over
// blob-store URIs and checks their long-running operations.
type VideoIntelligenceClient struct {
	credentialsJSON string
	language        string
}

func NewVideoIntelligenceClient(cfg VideoIntelligenceConfig) *VideoIntelligenceClient {
	return &VideoIntelligenceClient{
		credentialsJSON: cfg.CredentialsJSON,
		language:        cfg.Language,
	}
}

func (c *VideoIntelligenceClient) newClient(ctx context.Context) (*videointelligence.Client, error) {
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(c.credentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}
	return videointelligence.NewClient(ctx, option.WithAuthCredentials(creds))
}

func (c *VideoIntelligenceClient) StartAnnotation(ctx context.Context, inputURI, outputURI string) (string, error) {
	client, err := c.newClient(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = client.Close()
	}()

	op, err := client.AnnotateVideo(ctx, &videopb.AnnotateVideoRequest{
		InputUri:  inputURI,
		OutputUri: outputURI,
		Features:  []videopb.Feature{videopb.Feature_SPEECH_TRANSCRIPTION},
		VideoContext: &videopb.VideoContext{
			SpeechTranscriptionConfig: &videopb.SpeechTranscriptionConfig{
				LanguageCode:               c.language,
				EnableAutomaticPunctuation: true,
				EnableWordConfidence:       true,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("annotate video %s: %w", inputURI, err)
	}
	slog.Info("batch transcription started", "input_uri", inputURI, "operation", op.Name())
	return op.Name(), nil
}

// CheckOperation reports whether the operation finished. A terminal
// operation error is wrapped in transcriber.ErrOperationFailed; any other
// error is transient and worth retrying.
func (c *VideoIntelligenceClient) CheckOperation(ctx context.Context, operationName string) (bool, error) {
	client, err := c.newClient(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = client.Close()
	}()

	op := client.AnnotateVideoOperation(operationName)
	_, err = op.Poll(ctx)
	if err != nil {
		if op.Done() || isTerminalOperationError(err) {
			return true, fmt.Errorf("%w: %v", transcriber.ErrOperationFailed, err)
		}
		return false, fmt.Errorf("poll operation %s: %w", operationName, err)
	}
	return op.Done(), nil
}

func isTerminalOperationError(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.NotFound, codes.InvalidArgument, codes.FailedPrecondition:
		return true
	}
	return false
}
