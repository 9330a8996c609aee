package settlement

// Sender is who is asking for a transaction to be applied. It is either an
// Identity proving itself with a signature or an Authority proving itself
// with a capability.
type Sender interface {
	SenderID() string
	isSender()
}

// Identity is an account holder. Transactions it sends must carry a
// signature verifiable with the account's registered public key.
type Identity struct {
	ID string
	// PublicKey, when set, must equal the key registered for the account.
	PublicKey string
}

func (i Identity) SenderID() string { return i.ID }
func (Identity) isSender()          {}

// Authority is a registered institution acting without a signature. It must
// present the capability issued to it.
type Authority struct {
	ID         string
	Capability string
}

func (a Authority) SenderID() string { return a.ID }
func (Authority) isSender()          {}
