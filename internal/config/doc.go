// Package config loads and validates the TOML configuration shared by the
// CLI shell. The privileged helper deliberately takes no configuration: its
// whole contract is two positional arguments and the stdout protocol.
package config
