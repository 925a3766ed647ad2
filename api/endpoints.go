package api

import "strings"

// Backend routes: the endpoints the client drives, plus every entry the
// refresh-exempt list below references.
const (
	EndpointHealth = "/health"
	EndpointRoot   = "/"

	EndpointRegister             = "/auth/register"
	EndpointLogin                = "/auth/token"
	EndpointLogout               = "/auth/logout"
	EndpointCurrentUser          = "/auth/users/me"
	EndpointPasswordResetRequest = "/auth/password-reset/request"
	EndpointPasswordResetConfirm = "/auth/password-reset/confirm"
	EndpointEmailVerifyRequest   = "/auth/email-verification/request"
	EndpointEmailVerifyConfirm   = "/auth/email-verification/confirm"
	EndpointTokenRefresh         = "/auth/token/refresh"
	EndpointOTPSetup             = "/auth/otp/setup"
	EndpointOTPVerify            = "/auth/otp/verify"
	EndpointOTPVerifyLogin       = "/auth/otp/verify-login"
	EndpointOTPBackupCode        = "/auth/otp/backup-code"

	EndpointPredict = "/audio/predict"

	EndpointPredictions = "/users/me/predictions"
	EndpointStatistics  = "/users/me/statistics"

	EndpointPublicEmotions = "/visualization/public/emotion-distribution"
)

// refreshExempt lists the endpoints that are reachable without a session.
// Requests to these never carry a bearer token, and a 401 from them is a
// real answer, not a refresh trigger.
var refreshExempt = []string{
	EndpointHealth,
	EndpointRoot,
	EndpointRegister,
	EndpointLogin,
	EndpointPasswordResetRequest,
	EndpointPasswordResetConfirm,
	EndpointEmailVerifyRequest,
	EndpointEmailVerifyConfirm,
	EndpointTokenRefresh,
	EndpointOTPSetup,
	EndpointOTPVerify,
	EndpointOTPVerifyLogin,
	EndpointOTPBackupCode,
	EndpointPublicEmotions,
}

// IsExempt matches the path exactly or by suffix, so callers that pass a
// fully qualified path still hit the table.
func IsExempt(path string) bool {
	for _, e := range refreshExempt {
		if path == e || strings.HasSuffix(path, e) {
			return true
		}
	}
	return false
}
