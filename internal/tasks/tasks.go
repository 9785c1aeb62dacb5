package tasks

import (
	"context"
	"time"
)

// OperationCheckPayload is the body of one delayed operation-check task.
// Attempt counts deliveries of this logical check chain, starting at 1.
type OperationCheckPayload struct {
	ConnectionID  string `json:"connectionId"`
	OperationName string `json:"operationName"`
	Attempt       int    `json:"attempt"`
}

// Queue schedules durable delayed work. Delivery is at-least-once; handlers
// must be idempotent.
type Queue interface {
	EnqueueOperationCheck(ctx context.Context, payload OperationCheckPayload, delay time.Duration) error
}
