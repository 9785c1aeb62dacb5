package config

import (
	"fmt"
	"time"
)

type Config struct {
	Env                        string
	HTTPListenAddr             string
	PublicBaseURL              string
	DatabaseURL                string
	VideoAccountSID            string
	VideoAuthToken             string
	VideoAPIBaseURL            string
	TranscriptionAPIBaseURL    string
	TranscriptionServiceSID    string
	TranscribeLanguage         string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudLocation        string
	TranscriptBucket           string
	TaskQueueID                string
	TaskServiceAccountEmail    string
	OperationCheckDelaySec     int
	OperationCheckMaxAttempts  int
	GeminiAPIKey               string
	GeminiModel                string
	MailAPIURL                 string
	MailAPIKey                 string
	MailFromAddress            string
	ScheduleScanIntervalMin    int
	InternalTriggerToken       string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.OperationCheckDelaySec <= 0 {
		return fmt.Errorf("OPERATION_CHECK_DELAY_SEC must be positive, got %d", c.OperationCheckDelaySec)
	}
	if c.OperationCheckMaxAttempts <= 0 {
		return fmt.Errorf("OPERATION_CHECK_MAX_ATTEMPTS must be positive, got %d", c.OperationCheckMaxAttempts)
	}
	if c.ScheduleScanIntervalMin <= 0 {
		return fmt.Errorf("SCHEDULE_SCAN_INTERVAL_MIN must be positive, got %d", c.ScheduleScanIntervalMin)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "PUBLIC_BASE_URL", value: c.PublicBaseURL},
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "VIDEO_ACCOUNT_SID", value: c.VideoAccountSID},
		{name: "VIDEO_AUTH_TOKEN", value: c.VideoAuthToken},
		{name: "TRANSCRIPTION_SERVICE_SID", value: c.TranscriptionServiceSID},
		{name: "GOOGLE_CLOUD_PROJECT_ID", value: c.GoogleCloudProjectID},
		{name: "GOOGLE_CLOUD_CREDENTIALS_JSON", value: c.GoogleCloudCredentialsJSON},
		{name: "TRANSCRIPT_BUCKET", value: c.TranscriptBucket},
		{name: "TASK_SERVICE_ACCOUNT_EMAIL", value: c.TaskServiceAccountEmail},
		{name: "GEMINI_API_KEY", value: c.GeminiAPIKey},
		{name: "INTERNAL_TRIGGER_TOKEN", value: c.InternalTriggerToken},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// RoomWebhookURL is registered with the video platform as the status
// callback for rooms and compositions. The signature check validates
// against this exact URL, so it must match what the platform was given.
func (c *Config) RoomWebhookURL() string {
	return c.PublicBaseURL + "/webhooks/rooms"
}

func (c *Config) TranscriptionWebhookURL() string {
	return c.PublicBaseURL + "/webhooks/transcriptions"
}

func (c *Config) OperationCheckURL() string {
	return c.PublicBaseURL + "/tasks/operation-check"
}

func (c *Config) OperationCheckDelay() time.Duration {
	return time.Duration(c.OperationCheckDelaySec) * time.Second
}

func (c *Config) ScheduleScanInterval() time.Duration {
	return time.Duration(c.ScheduleScanIntervalMin) * time.Minute
}
