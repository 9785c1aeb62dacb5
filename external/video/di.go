package video

import (
	"github.com/pairloop/pairloop/internal/config"
	"github.com/pairloop/pairloop/internal/video"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (video.Client, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewRESTClient(RESTClientConfig{
			BaseURL:           c.VideoAPIBaseURL,
			AccountSID:        c.VideoAccountSID,
			AuthToken:         c.VideoAuthToken,
			RoomCallbackURL:   c.RoomWebhookURL(),
			RoomJoinURLFormat: c.PublicBaseURL + "/call/%s",
		}), nil
	})
}
