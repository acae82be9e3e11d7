package interfaces

// WalletStatus is the device-wide lock state.
type WalletStatus int

const (
	// WalletUnset means no provisioning manifest exists yet.
	WalletUnset WalletStatus = iota
	// WalletEncrypted means no master secret is resident.
	WalletEncrypted
	// WalletDecrypted means the master secret is resident in memory.
	WalletDecrypted
)

func (s WalletStatus) String() string {
	switch s {
	case WalletEncrypted:
		return "ENCRYPTED"
	case WalletDecrypted:
		return "DECRYPTED"
	default:
		return "UNSET"
	}
}
