package errors

// Error is a trivial implementation of error that allows
// errors to be declared as constants
type Error string

func (e Error) Error() string { return string(e) }
