package sign

import "errors"

// ErrUnknownPeer is returned by Verifier.Verify and FetchPeerKey when the
// key ID is neither the verifier's own nor one of the peers it was given.
var ErrUnknownPeer = errors.New("sign: unknown peer key")
