package session

import (
	"fmt"
	"strings"

	"github.com/overture-project/overture/internal/util"
)

// Login failure codes carried in the user-id packet.
const (
	loginFailedCredentials   int32 = -1
	loginFailedOldClient     int32 = -2
	loginFailedBanned        int32 = -3
	loginFailedBannedAlt     int32 = -4
	loginFailedServerError   int32 = -5
	loginFailedNeedsPurchase int32 = -6
	loginFailedPasswordReset int32 = -7
	loginFailedVerification  int32 = -8
)

// FailureReason maps a negative user-id login code to a user-facing
// message.
func FailureReason(code int32) string {
	switch code {
	case loginFailedCredentials:
		return "incorrect credentials"
	case loginFailedOldClient:
		return "client version is too old for this server"
	case loginFailedBanned, loginFailedBannedAlt:
		return "this account has been banned"
	case loginFailedServerError:
		return "a server-side error occurred during login"
	case loginFailedNeedsPurchase:
		return "this server requires a supporter purchase"
	case loginFailedPasswordReset:
		return "a password reset is required"
	case loginFailedVerification:
		return "email verification is required"
	default:
		return fmt.Sprintf("login failed (code %d)", code)
	}
}

// TokenFailureReason maps a failure string delivered through the session
// token header to a user-facing message, or "" when the token is not a
// known failure marker.
func TokenFailureReason(token string) string {
	switch token {
	case "user-already-logged-in":
		return "this account is already logged in elsewhere"
	case "unknown-username":
		return "unknown username"
	case "incorrect-credentials", "incorrect-password":
		return "incorrect credentials"
	case "contact-staff":
		return "login refused, contact the server staff"
	default:
		return ""
	}
}

// buildLoginBody renders the plaintext login request. Callers hold s.mu.
//
// Format:
//
//	<username>\n<password md5>\n<version>|<utc offset>|<city flag>|<client hashes>|<pm flag>\n
//
// or, for token auth, "$oauth" in place of the username and the token in
// place of the hash.
func (s *Session) buildLoginBody() string {
	srv := s.cfg.GetServerData()

	var user, secret string
	switch {
	case srv.UseOAuth && s.oauthToken != "":
		user = "$oauth"
		secret = s.oauthToken
	case s.username != "" && s.passwordMD5 != "":
		user = s.username
		secret = s.passwordMD5
	default:
		return ""
	}

	cityFlag := 0
	if srv.DisplayCity {
		cityFlag = 1
	}
	pmFlag := 0
	if srv.PMsPrivate {
		pmFlag = 1
	}

	var sb strings.Builder
	sb.WriteString(user)
	sb.WriteString("\n")
	sb.WriteString(secret)
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%s|%d|%d|%s|%d\n",
		srv.ClientVersion, srv.UTCOffset, cityFlag, clientHashString(srv.ClientVersion), pmFlag))
	return sb.String()
}

// clientHashString builds the colon-joined hashed hardware/install
// identifier sequence the server fingerprints clients with.
func clientHashString(clientVersion string) string {
	ids := util.GetClientIdentifiers()
	return fmt.Sprintf("%s:%s:%s:%s:%s:",
		util.MD5Hex([]byte(clientVersion)),
		ids.Adapters,
		ids.AdaptersMD5,
		ids.InstallMD5,
		ids.DiskMD5,
	)
}
