package mailer

import (
	"github.com/pairloop/pairloop/internal/config"
	"github.com/pairloop/pairloop/internal/mailer"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (mailer.Sender, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewHTTPSender(c.MailAPIURL, c.MailAPIKey, c.MailFromAddress), nil
	})
}
