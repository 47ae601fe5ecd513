package domain

// MediaKind distinguishes the transport send primitive used for a media
// reference.
type MediaKind int

const (
	MediaNone MediaKind = iota
	MediaPhoto
	MediaDocument
)

// BroadcastPayload is the message fanned out to every recipient: either
// text, or a media reference with an optional caption.
type BroadcastPayload struct {
	Text    string
	Media   MediaKind
	Ref     string // transport media reference, re-sent as-is
	Caption string
}

// BroadcastTally is the partial-failure accounting of one broadcast job.
type BroadcastTally struct {
	Sent   int
	Failed int
}
