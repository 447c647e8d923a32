package modem

import "errors"

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNoPins is returned when the power-key or relay line is missing.
	ErrNoPins = errors.New("power-key and relay pins are required")

	// ErrNoErrorLog is returned when no ErrorRecorder is configured.
	ErrNoErrorLog = errors.New("no error log configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// that has not been successfully initialized.
	//
	// This can occur if the dialer returned no transport or if the Modem was
	// not created via New.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Modem that has
	// already been closed.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrLineTooLong is returned when a modem response line exceeds the
	// line buffer capacity. The partial line has been dropped.
	//
	// This typically indicates malformed input, unexpected binary data,
	// or a protocol framing error.
	ErrLineTooLong = errors.New("response line too long")

	// ErrReadTimeout is returned when no complete line arrived in time. Bytes
	// of an incomplete line are kept for the next read.
	ErrReadTimeout = errors.New("read timed out")
)
