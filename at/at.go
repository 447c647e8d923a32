package at

import "fmt"

const (
	// Terminal Control
	CR = "\r"
	LF = '\n'

	// Response Codes
	OK       = "OK"
	ERROR    = "ERROR"
	CmeError = "+CME ERROR:"
	CmsError = "+CMS ERROR:"

	// Unsolicited lines
	Ready           = "RDY"
	SimReady        = "+CPIN: READY"
	CallReady       = "Call Ready"
	SmsReady        = "SMS Ready"
	NormalPowerDown = "NORMAL POWER DOWN"
	UrcHttpAction   = "+HTTPACTION:"

	// Prompts
	Download = "DOWNLOAD"

	// Registration states accepted as "registered" (home, roaming)
	RegisteredHome    = "+CREG: 0,1"
	RegisteredRoaming = "+CREG: 0,5"

	// HTTP header prefixes scanned after a redirect
	LocationLower = "location:"
	LocationUpper = "Location:"
)

// Plain commands
const (
	CmdAt           = "AT"
	CmdEchoOff      = "ATE0"
	CmdSaveProfile  = "AT&W"
	CmdQueryBaud    = "AT+IPR?"
	CmdRegistration = "AT+CREG?"
	CmdPowerDown    = "AT+CPOWD=1"

	CmdBearerContype = `AT+SAPBR=3,1,"Contype","GPRS"`
	CmdBearerOpen    = "AT+SAPBR=1,1"
	CmdBearerClose   = "AT+SAPBR=0,1"

	CmdQueryClock   = "AT+CLTS?"
	CmdHttpInit     = "AT+HTTPINIT"
	CmdHttpTerm     = "AT+HTTPTERM"
	CmdHttpCid      = `AT+HTTPPARA="CID",1`
	CmdHttpPost     = "AT+HTTPACTION=1"
	CmdHttpHead     = "AT+HTTPACTION=2"
	CmdHttpReadHead = "AT+HTTPHEAD"
)

// SetBaud returns the command fixing the modem's serial rate.
func SetBaud(rate int) string {
	return fmt.Sprintf("AT+IPR=%d", rate)
}

// BaudReport is the line AT+IPR? answers with when the rate is fixed.
func BaudReport(rate int) string {
	return fmt.Sprintf("+IPR: %d", rate)
}

func BearerApn(apn string) string {
	return fmt.Sprintf(`AT+SAPBR=3,1,"APN","%s"`, apn)
}

func HttpUrl(url string) string {
	return fmt.Sprintf(`AT+HTTPPARA="URL","%s"`, url)
}

func HttpContent(contentType string) string {
	return fmt.Sprintf(`AT+HTTPPARA="CONTENT","%s"`, contentType)
}

// HttpData announces a payload of size bytes the modem accepts for at
// most maxInputMillis.
func HttpData(size, maxInputMillis int) string {
	return fmt.Sprintf("AT+HTTPDATA=%d,%d", size, maxInputMillis)
}

type ResponseType int

const (
	TypeFinal  ResponseType = iota // OK, ERROR
	TypeURC                        // Asynchronous notifications
	TypeData                       // Intermediate command output (+CREG: ...)
	TypePrompt                     // HTTP data input prompt
)

func (t ResponseType) String() string {
	switch t {
	case TypeFinal:
		return "final"
	case TypeURC:
		return "urc"
	case TypeData:
		return "data"
	case TypePrompt:
		return "prompt"
	default:
		return "unknown"
	}
}
