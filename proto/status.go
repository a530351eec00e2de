package proto

// Status is a numeric result code carried in every response envelope.
//
// The table follows RFC 959 numbering with two protocol-specific extensions
// in the 7xx range (PathNotDirectory, ChangeDirectoryAccepted) and two
// reassigned 45x codes (FileExists, PermissionDenied). Codes are never
// renumbered; clients and servers must agree on this table.
type Status int

const (
	// Informational / transient (1xx-3xx)
	StatusRestartMarker        Status = 100
	StatusServiceReadyMinutes  Status = 120
	StatusDataConnectionOpen   Status = 125
	StatusFileStatusOK         Status = 150
	StatusCommandOK            Status = 200
	StatusSystemStatus         Status = 211
	StatusDirectoryStatus      Status = 212
	StatusFileStatus           Status = 213
	StatusHelpMessage          Status = 214
	StatusSystemType           Status = 215
	StatusServiceReady         Status = 220
	StatusServiceClosing       Status = 221
	StatusDataConnectionIdle   Status = 225
	StatusClosingDataConn      Status = 226
	StatusEnteringPassiveMode  Status = 227
	StatusUserLoggedIn         Status = 230
	StatusFileActionOK         Status = 250
	StatusPathnameCreated      Status = 257
	StatusNeedPassword         Status = 331
	StatusNeedAccount          Status = 332
	StatusFileActionPending    Status = 350

	// Failures (4xx/5xx)
	StatusServiceNotAvailable  Status = 421
	StatusCantOpenDataConn     Status = 425
	StatusTransferAborted      Status = 426
	StatusFileUnavailable      Status = 450
	StatusLocalError           Status = 451
	StatusInsufficientStorage  Status = 452
	StatusFileExists           Status = 453
	StatusPermissionDenied     Status = 454
	StatusSyntaxError          Status = 500
	StatusSyntaxErrorParams    Status = 501
	StatusCommandNotImpl       Status = 502
	StatusBadSequence          Status = 503
	StatusCommandNotImplParam  Status = 504
	StatusNotLoggedIn          Status = 530
	StatusNeedAccountForFiles  Status = 532
	StatusActionNotTaken       Status = 550
	StatusPageTypeUnknown      Status = 551
	StatusExceededStorage      Status = 552
	StatusFileNameNotAllowed   Status = 553

	// Protocol-specific extensions (7xx)
	StatusPathNotDirectory        Status = 720
	StatusChangeDirectoryAccepted Status = 721
)

var statusMessages = map[Status]string{
	StatusRestartMarker:           "Restart marker.",
	StatusServiceReadyMinutes:     "Service ready in min.",
	StatusDataConnectionOpen:      "Data conn. open.",
	StatusFileStatusOK:            "File status OK.",
	StatusCommandOK:               "Command OK.",
	StatusSystemStatus:            "Sys status.",
	StatusDirectoryStatus:         "Dir status.",
	StatusFileStatus:              "File status.",
	StatusHelpMessage:             "Help msg.",
	StatusSystemType:              "Sys type.",
	StatusServiceReady:            "Ready for new user.",
	StatusServiceClosing:          "Closing ctrl conn.",
	StatusDataConnectionIdle:      "Data conn. open, no transfer.",
	StatusClosingDataConn:         "Closing data conn.",
	StatusEnteringPassiveMode:     "Entering passive mode.",
	StatusUserLoggedIn:            "User logged in.",
	StatusFileActionOK:            "File action OK.",
	StatusPathnameCreated:         "Pathname created.",
	StatusNeedPassword:            "Username OK, need password.",
	StatusNeedAccount:             "Need account for login.",
	StatusFileActionPending:       "Action pending.",
	StatusServiceNotAvailable:     "Service not available.",
	StatusCantOpenDataConn:        "Can't open data conn.",
	StatusTransferAborted:         "Conn closed.",
	StatusFileUnavailable:         "File unavailable.",
	StatusLocalError:              "Local error.",
	StatusInsufficientStorage:     "Insufficient storage.",
	StatusFileExists:              "File already exists.",
	StatusPermissionDenied:        "Permission denied.",
	StatusSyntaxError:             "Syntax error.",
	StatusSyntaxErrorParams:       "Syntax error in params.",
	StatusCommandNotImpl:          "Command not implemented.",
	StatusBadSequence:             "Bad cmd sequence.",
	StatusCommandNotImplParam:     "Command not implemented for param.",
	StatusNotLoggedIn:             "Not logged in.",
	StatusNeedAccountForFiles:     "Need account for storing files.",
	StatusActionNotTaken:          "Action not taken, file unavailable.",
	StatusPageTypeUnknown:         "Action aborted, unknown page type.",
	StatusExceededStorage:         "Action aborted, exceeded storage.",
	StatusFileNameNotAllowed:      "Action not taken, name not allowed.",
	StatusPathNotDirectory:        "Path not directory.",
	StatusChangeDirectoryAccepted: "Change directory accepted.",
}

// Message returns the human-readable text for the status code.
// Unknown codes return "Unknown status code.".
func (s Status) Message() string {
	if msg, ok := statusMessages[s]; ok {
		return msg
	}
	return "Unknown status code."
}

// IsSuccess reports whether the code belongs to the success family
// (2xx completion replies plus the 721 change-directory extension).
func (s Status) IsSuccess() bool {
	return (s >= 200 && s < 300) || s == StatusChangeDirectoryAccepted
}

// IsFailure reports whether the code belongs to the failure family
// (4xx/5xx plus the 720 path-not-directory extension).
func (s Status) IsFailure() bool {
	return (s >= 400 && s < 600) || s == StatusPathNotDirectory
}

// IsTransient reports whether the code is informational or intermediate
// (1xx preliminary and 3xx intermediate replies).
func (s Status) IsTransient() bool {
	return (s >= 100 && s < 200) || (s >= 300 && s < 400)
}
