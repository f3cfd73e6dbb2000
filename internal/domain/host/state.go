package host

// Account is the identity the kiosk service runs under.
type Account struct {
	// Name is the login name, also the systemd instance name.
	Name string
	// UID is the numeric user ID.
	UID int
	// GID is the numeric primary group ID.
	GID int
	// HomeDir is the home directory holding the desktop session.
	HomeDir string
}

// State is a point-in-time snapshot of a provisioned host.
type State struct {
	// InstallDir is the checkout of the application.
	InstallDir string
	// ServiceUser is the identity the service runs under.
	ServiceUser string
	// VenvPath is the isolated runtime environment.
	VenvPath string
	// CurrentRevision is the revision of the code in InstallDir.
	CurrentRevision Revision
	// Configured is true when the application finished its first-run setup.
	Configured bool
	// Checkout is true when InstallDir is a version-control working tree.
	Checkout bool
	// VenvExists is true when the isolated environment has an interpreter.
	VenvExists bool
	// ServiceEnabled is true when the application service starts at boot.
	ServiceEnabled bool
	// ServiceActive is true when the application service is running.
	ServiceActive bool
	// TimerEnabled is true when the update timer is scheduled.
	TimerEnabled bool
}

// Provisioned reports whether the host has code, an environment and a service.
func (s *State) Provisioned() bool {
	return s.Checkout && s.VenvExists && s.ServiceEnabled
}
