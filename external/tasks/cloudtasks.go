package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	taskspb "cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"cloud.google.com/go/auth/credentials"
	"github.com/pairloop/pairloop/internal/tasks"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type CloudTasksQueueConfig struct {
	CredentialsJSON     string
	ProjectID           string
	Location            string
	QueueID             string
	TargetURL           string
	ServiceAccountEmail string
}

// CloudTasksQueue schedules delayed operation checks as HTTP tasks carrying
// an OIDC token for this pipeline's own service identity, so only the
// pipeline may trigger its check endpoint.
type CloudTasksQueue struct {
	cfg CloudTasksQueueConfig
}

func NewCloudTasksQueue(cfg CloudTasksQueueConfig) tasks.Queue {
	return &CloudTasksQueue{cfg: cfg}
}

func (q *CloudTasksQueue) EnqueueOperationCheck(ctx context.Context, payload tasks.OperationCheckPayload, delay time.Duration) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode task payload: %w", err)
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(q.cfg.CredentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return fmt.Errorf("detect credentials: %w", err)
	}
	client, err := cloudtasks.NewClient(ctx, option.WithAuthCredentials(creds))
	if err != nil {
		return fmt.Errorf("create tasks client: %w", err)
	}
	defer func() {
		_ = client.Close()
	}()

	parent := fmt.Sprintf("projects/%s/locations/%s/queues/%s", q.cfg.ProjectID, q.cfg.Location, q.cfg.QueueID)
	task, err := client.CreateTask(ctx, &taskspb.CreateTaskRequest{
		Parent: parent,
		Task: &taskspb.Task{
			ScheduleTime: timestamppb.New(time.Now().Add(delay)),
			MessageType: &taskspb.Task_HttpRequest{
				HttpRequest: &taskspb.HttpRequest{
					Url:        q.cfg.TargetURL,
					HttpMethod: taskspb.HttpMethod_POST,
					Body:       body,
					Headers:    map[string]string{"Content-Type": "application/json"},
					AuthorizationHeader: &taskspb.HttpRequest_OidcToken{
						OidcToken: &taskspb.OidcToken{
							ServiceAccountEmail: q.cfg.ServiceAccountEmail,
							Audience:            q.cfg.TargetURL,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create task for connection %s: %w", payload.ConnectionID, err)
	}
	slog.Info("operation check enqueued",
		"connection_id", payload.ConnectionID,
		"operation", payload.OperationName,
		"attempt", payload.Attempt,
		"task", task.GetName(),
		"delay_sec", int(delay.Seconds()))
	return nil
}
