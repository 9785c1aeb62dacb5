package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/pairloop/pairloop/internal/config"
)

type envConfig struct {
	Env                        string `env:"ENV" envDefault:"production"`
	HTTPListenAddr             string `env:"HTTP_LISTEN_ADDR" envDefault:":8080"`
	PublicBaseURL              string `env:"PUBLIC_BASE_URL,required"`
	DatabaseURL                string `env:"DATABASE_URL,required"`
	VideoAccountSID            string `env:"VIDEO_ACCOUNT_SID,required"`
	VideoAuthToken             string `env:"VIDEO_AUTH_TOKEN,required"`
	VideoAPIBaseURL            string `env:"VIDEO_API_BASE_URL" envDefault:"https://video.twilio.com"`
	TranscriptionAPIBaseURL    string `env:"TRANSCRIPTION_API_BASE_URL" envDefault:"https://intelligence.twilio.com"`
	TranscriptionServiceSID    string `env:"TRANSCRIPTION_SERVICE_SID,required"`
	TranscribeLanguage         string `env:"TRANSCRIBE_LANGUAGE" envDefault:"en-US"`
	GoogleCloudProjectID       string `env:"GOOGLE_CLOUD_PROJECT_ID,required"`
	GoogleCloudCredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON,required"`
	GoogleCloudLocation        string `env:"GOOGLE_CLOUD_LOCATION" envDefault:"us-central1"`
	TranscriptBucket           string `env:"TRANSCRIPT_BUCKET,required"`
	TaskQueueID                string `env:"TASK_QUEUE_ID" envDefault:"transcription-checks"`
	TaskServiceAccountEmail    string `env:"TASK_SERVICE_ACCOUNT_EMAIL,required"`
	OperationCheckDelaySec     int    `env:"OPERATION_CHECK_DELAY_SEC" envDefault:"30"`
	OperationCheckMaxAttempts  int    `env:"OPERATION_CHECK_MAX_ATTEMPTS" envDefault:"120"`
	GeminiAPIKey               string `env:"GEMINI_API_KEY,required"`
	GeminiModel                string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	MailAPIURL                 string `env:"MAIL_API_URL"`
	MailAPIKey                 string `env:"MAIL_API_KEY"`
	MailFromAddress            string `env:"MAIL_FROM_ADDRESS" envDefault:"hello@pairloop.app"`
	ScheduleScanIntervalMin    int    `env:"SCHEDULE_SCAN_INTERVAL_MIN" envDefault:"30"`
	InternalTriggerToken       string `env:"INTERNAL_TRIGGER_TOKEN,required"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		HTTPListenAddr:             raw.HTTPListenAddr,
		PublicBaseURL:              raw.PublicBaseURL,
		DatabaseURL:                raw.DatabaseURL,
		VideoAccountSID:            raw.VideoAccountSID,
		VideoAuthToken:             raw.VideoAuthToken,
		VideoAPIBaseURL:            raw.VideoAPIBaseURL,
		TranscriptionAPIBaseURL:    raw.TranscriptionAPIBaseURL,
		TranscriptionServiceSID:    raw.TranscriptionServiceSID,
		TranscribeLanguage:         raw.TranscribeLanguage,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudLocation:        raw.GoogleCloudLocation,
		TranscriptBucket:           raw.TranscriptBucket,
		TaskQueueID:                raw.TaskQueueID,
		TaskServiceAccountEmail:    raw.TaskServiceAccountEmail,
		OperationCheckDelaySec:     raw.OperationCheckDelaySec,
		OperationCheckMaxAttempts:  raw.OperationCheckMaxAttempts,
		GeminiAPIKey:               raw.GeminiAPIKey,
		GeminiModel:                raw.GeminiModel,
		MailAPIURL:                 raw.MailAPIURL,
		MailAPIKey:                 raw.MailAPIKey,
		MailFromAddress:            raw.MailFromAddress,
		ScheduleScanIntervalMin:    raw.ScheduleScanIntervalMin,
		InternalTriggerToken:       raw.InternalTriggerToken,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
