package pairing

import "fmt"

const pairingEmailSubject = "You've been paired for a Pairloop session"

const pairingEmailBodyFormat = `<p>Hi %s,</p>
<p>You've been matched with a teammate for your next Pairloop session.</p>
<p><a href="%s">Propose a time</a> that works for you, or <a href="%s">join the call directly</a> whenever you're both ready.</p>
<p>— Pairloop</p>`

func buildPairingEmailBody(displayName, proposeURL, joinURL string) string {
	if displayName == "" {
		displayName = "there"
	}
	return fmt.Sprintf(pairingEmailBodyFormat, displayName, proposeURL, joinURL)
}
