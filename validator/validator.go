// Package validator checks client-supplied payloads before they touch
// storage. Rule failures come back joined, so a response can report every
// problem with a sync in one round trip.
package validator

type Validator struct {
	maxHomepageBytes int
}

func New(maxHomepageKB int) *Validator {
	return &Validator{
		maxHomepageBytes: maxHomepageKB * 1024,
	}
}

// Error marks a failure as the client's fault rather than the server's.
type Error struct {
	Err error
}

func (e Error) Error() string {
	return e.Err.Error()
}

func (e Error) Unwrap() error {
	return e.Err
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return Error{Err: err}
}
