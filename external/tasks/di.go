package tasks

import (
	"github.com/pairloop/pairloop/internal/config"
	"github.com/pairloop/pairloop/internal/tasks"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (tasks.Queue, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewCloudTasksQueue(CloudTasksQueueConfig{
			CredentialsJSON:     c.GoogleCloudCredentialsJSON,
			ProjectID:           c.GoogleCloudProjectID,
			Location:            c.GoogleCloudLocation,
			QueueID:             c.TaskQueueID,
			TargetURL:           c.OperationCheckURL(),
			ServiceAccountEmail: c.TaskServiceAccountEmail,
		}), nil
	})
}
