package daemon

import "github.com/ankittk/pabellon/internal/config"

// StartOptions configures the daemon. Zero fields fall back to the loaded
// configuration.
type StartOptions struct {
	Home      string
	EnvFile   string         // optional .env file loaded before env overrides
	Config    *config.Config // if nil, loaded from Home
	Port      int            // overrides server.port
	Dev       bool           // CORS for a board front-end on another origin
	PprofAddr string
	APIKey    string // if set, the view server requires X-API-Key (or PABELLON_API_KEY env)
}

// StatusInfo is the result of Status (running or not, PID, listen addr).
type StatusInfo struct {
	Running bool
	PID     int
	Addr    string
}
