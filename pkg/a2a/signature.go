package a2a

/*
Verifier checks message authenticity. The signature field is carried on
the wire but not yet enforced anywhere; whether verification belongs to
the transport or the application layer is still undecided, so the
check is pluggable and defaults to accepting everything.
*/
type Verifier interface {
	Verify(msg *Message) error
}

// NoopVerifier accepts every message, signed or not.
type NoopVerifier struct{}

func (NoopVerifier) Verify(msg *Message) error {
	return nil
}
