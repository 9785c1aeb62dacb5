package video

import "context"

// Room is the platform-side view of a session room.
type Room struct {
	SID        string
	UniqueName string
	Status     string
	URL        string
}

// Client talks to the video platform's REST API.
type Client interface {
	// EnsureRoom returns the room with the given unique name, creating it
	// with recording and this pipeline's status callback when it does not
	// exist yet. Safe to call repeatedly.
	EnsureRoom(ctx context.Context, uniqueName string) (*Room, error)
	// CloseRoom moves the room to its terminal completed status. A room
	// that no longer exists counts as already closed.
	CloseRoom(ctx context.Context, uniqueName string) error
	// CreateComposition requests an all-audio-sources merge of the room's
	// recordings. The merge completes asynchronously; the platform reports
	// it to the callback URL. Returns the composition SID immediately.
	CreateComposition(ctx context.Context, roomSID, callbackURL string) (string, error)
	// ResolveMediaURL resolves a signed, time-limited direct download URL
	// for a media object such as a finished composition.
	ResolveMediaURL(ctx context.Context, mediaSID string) (string, error)
	// ValidateSignature checks a webhook request signature computed by the
	// platform over the callback URL and sorted form parameters.
	ValidateSignature(url string, params map[string]string, signature string) bool
}
