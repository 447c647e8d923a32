package modem

// Error tokens recorded in the error log. They travel to the collector in
// the envelope's errors array.
const (
	TokenAutoBaudFailed   = "GSM_MODULE_AUTO_BAUD_FAILED"
	TokenEchoOffFailed    = "GSM_MODULE_FAILED_TO_DISABLE_ECHO"
	TokenSetBaudFailed    = "GSM_MODULE_FAILED_TO_SET_BAUD_RATE"
	TokenSaveBaudFailed   = "GSM_MODULE_FAILED_TO_SAVE_BAUD_RATE"
	TokenVerifyBaudFailed = "GSM_MODULE_BAUD_RATE_NOT_VERIFIED"

	TokenDidNotStart    = "GSM_MODULE_DID_NOT_START"
	TokenSimNotReady    = "GSM_MODULE_SIM_NOT_READY"
	TokenDidNotRegister = "GSM_MODULE_DID_NOT_REGISTER"

	TokenInitBearerFailed    = "GSM_MODULE_FAILED_TO_INIT_BEARER"
	TokenInitHttpFailed      = "GSM_MODULE_FAILED_TO_INIT_HTTP"
	TokenConfigureHttpFailed = "GSM_MODULE_FAILED_TO_CONFIGURE_HTTP"
	TokenHttpDataFailed      = "GSM_MODULE_FAILED_TO_TRANSFER_HTTP_DATA"
	TokenHttpPostFailed      = "GSM_MODULE_FAILED_TO_SEND_HTTP_POST_REQUEST"
	TokenHttpTimedOut        = "HTTP_RESPONSE_TIMED_OUT"
)
