// File: registry/requestid.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RequestID generation, grounded on zrepl-zrepl's rpc_requestid.go: a
// UUID minted per outbound call and rendered as an opaque, URL-safe
// string, used as the InvokeRegistry key.

package registry

import (
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
	"github.com/jupiter-go/jupiter/api"
)

// NewRequestID mints a fresh, probabilistically-unique RequestID.
func NewRequestID() api.RequestID {
	id := uuid.New()
	var buf strings.Builder
	enc := base64.NewEncoder(base64.RawURLEncoding, &buf)
	_, _ = enc.Write(id[:])
	_ = enc.Close()
	return api.RequestID(buf.String())
}
