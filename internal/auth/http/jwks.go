package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/acctly/pkg/authsdk"
	"github.com/aussiebroadwan/acctly/pkg/httpx"
	"github.com/aussiebroadwan/acctly/pkg/jwtx"
)

// jwksMaxAge bounds how long a relying party may cache the key set. The
// session key only changes when its file is replaced, which also restarts
// the service.
const jwksMaxAge = 5 * time.Minute

// JWKSHandler exposes the public half of the session signing key.
//
//	@Summary		Get JWKS
//	@Description	Returns the Ed25519 public key used to verify session tokens. Enrollment and
//	@Description	login challenge tokens are HMAC signed and never verifiable by third parties.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSONCached(w, authsdk.JWKSResponse(keys.PublicJWKS()), jwksMaxAge)
	}
}
