package transcriber

import (
	"github.com/pairloop/pairloop/internal/config"
	"github.com/pairloop/pairloop/internal/storage"
	"github.com/pairloop/pairloop/internal/transcriber"
	"github.com/pairloop/pairloop/internal/video"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcriber.Transcriber, error) {
		c := do.MustInvoke[*config.Config](i)
		blobs := do.MustInvoke[storage.BlobStore](i)
		media := do.MustInvoke[video.Client](i)

		managed := NewManagedRESTClient(ManagedClientConfig{
			BaseURL:     c.TranscriptionAPIBaseURL,
			AccountSID:  c.VideoAccountSID,
			AuthToken:   c.VideoAuthToken,
			ServiceSID:  c.TranscriptionServiceSID,
			CallbackURL: c.TranscriptionWebhookURL(),
		})
		batch := NewVideoIntelligenceClient(VideoIntelligenceConfig{
			CredentialsJSON: c.GoogleCloudCredentialsJSON,
			Language:        c.TranscribeLanguage,
		})
		return NewAdapter(managed, batch, blobs, media), nil
	})
}
